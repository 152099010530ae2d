package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fintrack-dev/fintrack/internal/billing"
	"github.com/fintrack-dev/fintrack/internal/payments"
)

// BillingHandler exposes plan info, limit checks, and checkout.
type BillingHandler struct {
	billing  *billing.Service
	payments *payments.Service
}

// NewBillingHandler constructs a BillingHandler.
func NewBillingHandler(billingSvc *billing.Service, paymentsSvc *payments.Service) *BillingHandler {
	return &BillingHandler{billing: billingSvc, payments: paymentsSvc}
}

// Plan returns the user's plan, usage, limits, and derived percentages.
func (h *BillingHandler) Plan(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	info, errInfo := h.billing.GetPlanInfo(c.Request.Context(), userID)
	if errInfo != nil {
		if errors.Is(errInfo, billing.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load plan info failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"plan":             info.Plan,
		"plan_expiry":      info.PlanExpiry,
		"subscribed_since": info.SubscribedSince,
		"usage":            info.Usage,
		"limits":           info.Limits,
		"percents":         billing.Percents(info),
	})
}

// Check reports whether the user may perform a quota-gated action. This is
// the advisory read; creation endpoints reserve atomically regardless.
func (h *BillingHandler) Check(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	action, errAction := billing.ParseAction(strings.TrimSpace(c.Query("action")))
	if errAction != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action"})
		return
	}

	result, errCheck := h.billing.CheckLimit(c.Request.Context(), userID, action)
	if errCheck != nil {
		if errors.Is(errCheck, billing.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "limit check failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// Checkout starts a premium-plan checkout session.
func (h *BillingHandler) Checkout(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	url, errSession := h.payments.CreateCheckoutSession(c.Request.Context(), user)
	if errSession != nil {
		if errors.Is(errSession, payments.ErrNotConfigured) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "payments are not configured"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create checkout session failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}
