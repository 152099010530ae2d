package security

import (
	"fmt"

	"github.com/pquerna/otp/totp"
)

// GenerateTOTPSecret creates a new TOTP enrollment for the account.
// It returns the shared secret and the otpauth provisioning URL.
func GenerateTOTPSecret(issuer, account string) (secret, url string, err error) {
	key, errGenerate := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
	})
	if errGenerate != nil {
		return "", "", fmt.Errorf("security: generate totp secret: %w", errGenerate)
	}
	return key.Secret(), key.URL(), nil
}

// ValidateTOTP checks a one-time code against the stored secret.
func ValidateTOTP(secret, code string) bool {
	return totp.Validate(code, secret)
}
