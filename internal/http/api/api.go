package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/fintrack-dev/fintrack/internal/billing"
	"github.com/fintrack-dev/fintrack/internal/config"
	"github.com/fintrack-dev/fintrack/internal/http/api/handlers"
	"github.com/fintrack-dev/fintrack/internal/models"
	"github.com/fintrack-dev/fintrack/internal/payments"
	"github.com/fintrack-dev/fintrack/internal/ratelimit"
	"github.com/fintrack-dev/fintrack/internal/reports"
	"github.com/fintrack-dev/fintrack/internal/security"
)

// RegisterRoutes registers API routes, middleware, and handlers.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg *config.Config, billingSvc *billing.Service, paymentsSvc *payments.Service, reportsSvc *reports.Service, limiter ratelimit.Limiter) {
	if r == nil || db == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(db)
	r.GET("/healthz", healthHandler.Healthz)

	v1 := r.Group("/v1")

	authHandler := handlers.NewAuthHandler(db, cfg.JWT)
	v1.POST("/auth/register", authHandler.Register)
	v1.POST("/auth/login", authHandler.Login)
	v1.POST("/auth/login/totp", authHandler.LoginTOTP)

	// Stripe calls this endpoint; authentication is the delivery signature.
	webhookHandler := handlers.NewWebhookHandler(paymentsSvc)
	v1.POST("/webhooks/stripe", webhookHandler.HandleStripe)

	authed := v1.Group("")
	authed.Use(userAuthMiddleware(db, cfg.JWT))
	authed.Use(rateLimitMiddleware(limiter, cfg.RateLimit.RequestsPerSecond))

	meHandler := handlers.NewMeHandler()
	authed.GET("/me", meHandler.Get)

	mfaHandler := handlers.NewMFAHandler(db)
	authed.GET("/mfa/status", mfaHandler.Status)
	authed.POST("/mfa/totp/prepare", mfaHandler.PrepareTOTP)
	authed.POST("/mfa/totp/confirm", mfaHandler.ConfirmTOTP)
	authed.POST("/mfa/totp/disable", mfaHandler.DisableTOTP)

	categoryHandler := handlers.NewCategoryHandler(db, billingSvc)
	authed.POST("/categories", categoryHandler.Create)
	authed.GET("/categories", categoryHandler.List)
	authed.PUT("/categories/:id", categoryHandler.Update)
	authed.DELETE("/categories/:id", categoryHandler.Delete)

	transactionHandler := handlers.NewTransactionHandler(db, billingSvc)
	authed.POST("/transactions", transactionHandler.Create)
	authed.GET("/transactions", transactionHandler.List)
	authed.GET("/transactions/:id", transactionHandler.Get)
	authed.PUT("/transactions/:id", transactionHandler.Update)
	authed.DELETE("/transactions/:id", transactionHandler.Delete)

	debtHandler := handlers.NewDebtHandler(db, billingSvc)
	authed.POST("/debts", debtHandler.Create)
	authed.GET("/debts", debtHandler.List)
	authed.PUT("/debts/:id", debtHandler.Update)
	authed.DELETE("/debts/:id", debtHandler.Delete)
	authed.POST("/debts/:id/payments", debtHandler.RecordPayment)
	authed.POST("/debts/:id/settle", debtHandler.Settle)

	recurringHandler := handlers.NewRecurringHandler(db, billingSvc)
	authed.POST("/recurring-transactions", recurringHandler.Create)
	authed.GET("/recurring-transactions", recurringHandler.List)
	authed.PUT("/recurring-transactions/:id", recurringHandler.Update)
	authed.DELETE("/recurring-transactions/:id", recurringHandler.Delete)
	authed.POST("/recurring-transactions/:id/pause", recurringHandler.Pause)
	authed.POST("/recurring-transactions/:id/resume", recurringHandler.Resume)

	reminderHandler := handlers.NewReminderHandler(db)
	authed.POST("/reminders", reminderHandler.Create)
	authed.GET("/reminders", reminderHandler.List)
	authed.PUT("/reminders/:id", reminderHandler.Update)
	authed.DELETE("/reminders/:id", reminderHandler.Delete)
	authed.POST("/reminders/:id/done", reminderHandler.Done)

	reportsHandler := handlers.NewReportsHandler(reportsSvc)
	authed.GET("/reports/summary", reportsHandler.Summary)
	authed.GET("/reports/categories", reportsHandler.Categories)
	authed.GET("/reports/trend", reportsHandler.Trend)

	billingHandler := handlers.NewBillingHandler(billingSvc, paymentsSvc)
	authed.GET("/billing/plan", billingHandler.Plan)
	authed.GET("/billing/check", billingHandler.Check)
	authed.POST("/billing/checkout", billingHandler.Checkout)
}

// userAuthMiddleware validates session JWTs and loads the user context.
func userAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseSessionToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var user models.User
		if errFind := db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}

		c.Set(handlers.ContextUserIDKey, user.ID)
		c.Set(handlers.ContextUserKey, &user)
		c.Next()
	}
}

// rateLimitMiddleware applies a per-user fixed-window request limit.
// Limiter errors fail open: a broken Redis must not take the API down.
func rateLimitMiddleware(limiter ratelimit.Limiter, requestsPerSecond int) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || requestsPerSecond <= 0 {
			c.Next()
			return
		}

		userID, ok := c.Get(handlers.ContextUserIDKey)
		if !ok {
			c.Next()
			return
		}
		id, _ := userID.(uint64)
		key := "user:" + strconv.FormatUint(id, 10)

		result, errAllow := limiter.Allow(c.Request.Context(), key, requestsPerSecond, time.Now())
		if errAllow != nil {
			log.WithError(errAllow).Warn("rate limit check failed, allowing request")
			c.Next()
			return
		}
		if !result.Allowed {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
