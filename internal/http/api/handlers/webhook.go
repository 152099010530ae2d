package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/fintrack-dev/fintrack/internal/payments"
)

// maxWebhookBodyBytes caps the webhook payload size.
const maxWebhookBodyBytes = 65536

// WebhookHandler receives Stripe webhook deliveries.
type WebhookHandler struct {
	payments *payments.Service
}

// NewWebhookHandler constructs a WebhookHandler.
func NewWebhookHandler(paymentsSvc *payments.Service) *WebhookHandler {
	return &WebhookHandler{payments: paymentsSvc}
}

// HandleStripe verifies the delivery signature and applies the event.
// Signature failures are the caller's fault (400); internal failures are
// ours (500), which tells Stripe to redeliver.
func (h *WebhookHandler) HandleStripe(c *gin.Context) {
	payload, errRead := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if errRead != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read payload failed"})
		return
	}

	event, errVerify := webhook.ConstructEventWithOptions(
		payload,
		c.GetHeader("Stripe-Signature"),
		h.payments.WebhookSecret(),
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if errVerify != nil {
		log.WithError(errVerify).Warn("stripe webhook signature verification failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}

	if errHandle := h.payments.HandleEvent(c.Request.Context(), event); errHandle != nil {
		log.WithError(errHandle).WithField("event_type", event.Type).Error("stripe webhook handling failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "event handling failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
