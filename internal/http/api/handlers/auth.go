package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/fintrack-dev/fintrack/internal/billing"
	"github.com/fintrack-dev/fintrack/internal/config"
	"github.com/fintrack-dev/fintrack/internal/models"
	"github.com/fintrack-dev/fintrack/internal/security"
)

// totpIssuer names the app in authenticator entries.
const totpIssuer = "FinTrack"

// defaultCategorySeeds are created for every new account. Seeded rows count
// against the category quota like any other creation.
var defaultCategorySeeds = []models.Category{
	{Name: "General", Icon: "tag", Color: "#6b7280", IsDefault: true},
	{Name: "Salary", Icon: "banknote", Color: "#16a34a", IsDefault: true},
}

// AuthHandler manages registration, login, and TOTP MFA endpoints.
type AuthHandler struct {
	db     *gorm.DB
	jwtCfg config.JWTConfig
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, jwtCfg config.JWTConfig) *AuthHandler {
	return &AuthHandler{db: db, jwtCfg: jwtCfg}
}

// registerRequest captures the payload for account creation.
type registerRequest struct {
	Email    string `json:"email"`    // Login email.
	Name     string `json:"name"`     // Display name.
	Password string `json:"password"` // Plaintext password.
}

// Register creates an account on the free tier with seeded categories.
func (h *AuthHandler) Register(c *gin.Context) {
	var body registerRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	email := strings.ToLower(strings.TrimSpace(body.Email))
	if email == "" || !strings.Contains(email, "@") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "valid email is required"})
		return
	}
	if len(body.Password) < 8 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password must be at least 8 characters"})
		return
	}

	hashed, errHash := security.HashPassword(body.Password)
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
		return
	}

	now := time.Now().UTC()
	limits := billing.FreeLimits()
	user := models.User{
		Email:    email,
		Name:     strings.TrimSpace(body.Name),
		Password: hashed,

		Plan:                     models.PlanFree,
		LimitMonthlyTransactions: limits.MonthlyTransactions,
		LimitActiveDebts:         limits.ActiveDebts,
		LimitRecurring:           limits.Recurring,
		LimitCategories:          limits.Categories,
		UsageCategories:          int64(len(defaultCategorySeeds)),
		UsageLastResetAt:         now,
	}

	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errCreate := tx.Create(&user).Error; errCreate != nil {
			return errCreate
		}
		for _, seed := range defaultCategorySeeds {
			category := seed
			category.UserID = user.ID
			if errSeed := tx.Create(&category).Error; errSeed != nil {
				return errSeed
			}
		}
		return nil
	})
	if errTx != nil {
		if isUniqueViolation(errTx) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create user failed"})
		return
	}

	token, errToken := security.IssueSessionToken(h.jwtCfg.Secret, user.ID, h.jwtCfg.Expiry)
	if errToken != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"token": token,
		"user":  formatUser(&user),
	})
}

// loginRequest captures the payload for password login.
type loginRequest struct {
	Email    string `json:"email"`    // Login email.
	Password string `json:"password"` // Plaintext password.
	Code     string `json:"code"`     // TOTP code for the MFA step.
}

// Login authenticates with email and password. Accounts with TOTP enabled
// get a mfa_required response and must finish via the TOTP endpoint.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	user, ok := h.authenticate(c, body.Email, body.Password)
	if !ok {
		return
	}
	if user.TOTPSecret != "" {
		c.JSON(http.StatusOK, gin.H{"mfa_required": true})
		return
	}
	h.issueSession(c, user)
}

// LoginTOTP finishes login for accounts with TOTP enabled.
func (h *AuthHandler) LoginTOTP(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	user, ok := h.authenticate(c, body.Email, body.Password)
	if !ok {
		return
	}
	if user.TOTPSecret == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "totp is not enabled"})
		return
	}
	if !security.ValidateTOTP(user.TOTPSecret, strings.TrimSpace(body.Code)) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid totp code"})
		return
	}
	h.issueSession(c, user)
}

// authenticate looks the user up by email and checks the password.
func (h *AuthHandler) authenticate(c *gin.Context, email, password string) (*models.User, bool) {
	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error; errFind != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return nil, false
	}
	if !security.VerifyPassword(user.Password, password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return nil, false
	}
	return &user, true
}

// issueSession signs a session token and writes the login response.
func (h *AuthHandler) issueSession(c *gin.Context, user *models.User) {
	token, errToken := security.IssueSessionToken(h.jwtCfg.Secret, user.ID, h.jwtCfg.Expiry)
	if errToken != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  formatUser(user),
	})
}

// MFAHandler manages TOTP enrollment for authenticated users.
type MFAHandler struct {
	db *gorm.DB
}

// NewMFAHandler constructs an MFAHandler.
func NewMFAHandler(db *gorm.DB) *MFAHandler {
	return &MFAHandler{db: db}
}

// Status reports whether TOTP is enabled.
func (h *MFAHandler) Status(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"totp_enabled": user.TOTPSecret != ""})
}

// PrepareTOTP generates a pending TOTP secret. Nothing is persisted until
// the user confirms a valid code against it.
func (h *MFAHandler) PrepareTOTP(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if user.TOTPSecret != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "totp already enabled"})
		return
	}

	secret, url, errGenerate := security.GenerateTOTPSecret(totpIssuer, user.Email)
	if errGenerate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generate totp secret failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"secret": secret, "url": url})
}

// confirmTOTPRequest captures the payload for confirming TOTP enrollment.
type confirmTOTPRequest struct {
	Secret string `json:"secret"` // Secret from the prepare step.
	Code   string `json:"code"`   // Current one-time code.
}

// ConfirmTOTP validates the code against the pending secret and enables TOTP.
func (h *MFAHandler) ConfirmTOTP(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body confirmTOTPRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	secret := strings.TrimSpace(body.Secret)
	if secret == "" || !security.ValidateTOTP(secret, strings.TrimSpace(body.Code)) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid totp code"})
		return
	}

	if errUpdate := h.db.WithContext(c.Request.Context()).
		Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("totp_secret", secret).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "enable totp failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"totp_enabled": true})
}

// disableTOTPRequest captures the payload for disabling TOTP.
type disableTOTPRequest struct {
	Code string `json:"code"` // Current one-time code.
}

// DisableTOTP turns off TOTP after validating a current code.
func (h *MFAHandler) DisableTOTP(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if user.TOTPSecret == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "totp is not enabled"})
		return
	}

	var body disableTOTPRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if !security.ValidateTOTP(user.TOTPSecret, strings.TrimSpace(body.Code)) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid totp code"})
		return
	}

	if errUpdate := h.db.WithContext(c.Request.Context()).
		Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("totp_secret", "").Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "disable totp failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"totp_enabled": false})
}

// MeHandler returns the authenticated user's profile.
type MeHandler struct{}

// NewMeHandler constructs a MeHandler.
func NewMeHandler() *MeHandler {
	return &MeHandler{}
}

// Get returns the authenticated user.
func (h *MeHandler) Get(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": formatUser(user)})
}

// formatUser converts a user model to a response payload.
func formatUser(user *models.User) gin.H {
	return gin.H{
		"id":           user.ID,
		"email":        user.Email,
		"name":         user.Name,
		"plan":         user.Plan,
		"plan_expiry":  user.PlanExpiry,
		"totp_enabled": user.TOTPSecret != "",
		"created_at":   user.CreatedAt,
	}
}

// isUniqueViolation reports whether the error is a unique constraint failure.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
