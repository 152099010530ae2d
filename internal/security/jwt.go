package security

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken marks a session token that failed validation.
var ErrInvalidToken = errors.New("security: invalid token")

// SessionClaims carries the authenticated user identity inside a JWT.
type SessionClaims struct {
	UserID uint64 `json:"uid"`
	jwt.RegisteredClaims
}

// IssueSessionToken signs a session token for the user.
func IssueSessionToken(secret string, userID uint64, expiry time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("security: empty jwt secret")
	}
	now := time.Now().UTC()
	claims := SessionClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatUint(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, errSign := token.SignedString([]byte(secret))
	if errSign != nil {
		return "", fmt.Errorf("security: sign token: %w", errSign)
	}
	return signed, nil
}

// ParseSessionToken validates a session token and returns its claims.
func ParseSessionToken(secret, raw string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	parsed, errParse := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("security: unexpected signing method %s", t.Method.Alg())
		}
		return []byte(secret), nil
	})
	if errParse != nil || !parsed.Valid || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
