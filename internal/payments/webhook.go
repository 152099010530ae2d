package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fintrack-dev/fintrack/internal/billing"
	"github.com/fintrack-dev/fintrack/internal/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v79"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// HandleEvent dispatches a verified webhook event. Unknown event types and
// unresolvable users are logged no-ops, never errors: delivery is
// at-least-once and returning an error would only trigger retries of an
// event that cannot be applied. Errors are reserved for internal failures.
func (s *Service) HandleEvent(ctx context.Context, event stripe.Event) error {
	receiptID := uuid.NewString()
	logger := log.WithFields(log.Fields{
		"receipt_id": receiptID,
		"event_id":   event.ID,
		"event_type": event.Type,
	})

	handled := false
	outcome := ""
	var errDispatch error

	switch event.Type {
	case "checkout.session.completed":
		handled, outcome, errDispatch = s.handleCheckoutCompleted(ctx, logger, event)
	case "customer.subscription.deleted":
		handled, outcome, errDispatch = s.handleSubscriptionDeleted(ctx, logger, event)
	case "invoice.payment_failed":
		logger.Warn("invoice payment failed")
		outcome = "payment failure logged"
	default:
		logger.Info("ignoring unhandled event type")
		outcome = "ignored"
	}

	if errRecord := s.recordEvent(ctx, receiptID, event, handled, outcome); errRecord != nil {
		logger.WithError(errRecord).Warn("record webhook event failed")
	}
	return errDispatch
}

// handleCheckoutCompleted upgrades the user named in the session metadata.
func (s *Service) handleCheckoutCompleted(ctx context.Context, logger *log.Entry, event stripe.Event) (bool, string, error) {
	var sess stripe.CheckoutSession
	if errUnmarshal := json.Unmarshal(event.Data.Raw, &sess); errUnmarshal != nil {
		logger.WithError(errUnmarshal).Warn("malformed checkout session payload")
		return false, "malformed payload", nil
	}

	rawID := strings.TrimSpace(sess.Metadata["user_id"])
	if rawID == "" {
		logger.Warn("checkout session missing user_id metadata")
		return false, "missing user_id metadata", nil
	}
	userID, errParse := strconv.ParseUint(rawID, 10, 64)
	if errParse != nil {
		logger.WithField("user_id", rawID).Warn("checkout session carries invalid user_id metadata")
		return false, "invalid user_id metadata", nil
	}

	if errUpgrade := s.billing.UpgradeToPremium(ctx, userID); errUpgrade != nil {
		if errors.Is(errUpgrade, billing.ErrUserNotFound) {
			logger.WithField("user_id", userID).Warn("checkout session references unknown user")
			return false, "unknown user", nil
		}
		return false, "upgrade failed", fmt.Errorf("payments: upgrade user %d: %w", userID, errUpgrade)
	}
	logger.WithField("user_id", userID).Info("user upgraded to premium")
	return true, "upgraded", nil
}

// handleSubscriptionDeleted downgrades the user mapped to the event's
// customer ID. The mapping is written at checkout-session creation; events
// for customers created elsewhere are logged and skipped.
func (s *Service) handleSubscriptionDeleted(ctx context.Context, logger *log.Entry, event stripe.Event) (bool, string, error) {
	var sub stripe.Subscription
	if errUnmarshal := json.Unmarshal(event.Data.Raw, &sub); errUnmarshal != nil {
		logger.WithError(errUnmarshal).Warn("malformed subscription payload")
		return false, "malformed payload", nil
	}
	customerID := ""
	if sub.Customer != nil {
		customerID = sub.Customer.ID
	}
	if customerID == "" {
		logger.Warn("subscription event missing customer id")
		return false, "missing customer id", nil
	}

	var user models.User
	errFind := s.db.WithContext(ctx).
		Select("id").
		Where("stripe_customer_id = ?", customerID).
		Take(&user).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			logger.WithField("customer_id", customerID).Warn("no user mapped to customer")
			return false, "unknown customer", nil
		}
		return false, "lookup failed", fmt.Errorf("payments: resolve customer %s: %w", customerID, errFind)
	}

	if errDowngrade := s.billing.DowngradeToFree(ctx, user.ID); errDowngrade != nil {
		if errors.Is(errDowngrade, billing.ErrUserNotFound) {
			logger.WithField("user_id", user.ID).Warn("subscription event references unknown user")
			return false, "unknown user", nil
		}
		return false, "downgrade failed", fmt.Errorf("payments: downgrade user %d: %w", user.ID, errDowngrade)
	}
	logger.WithField("user_id", user.ID).Info("user downgraded to free")
	return true, "downgraded", nil
}

// recordEvent stores an audit row for the received event. Rows are not
// unique on the provider event ID: redeliveries stay visible.
func (s *Service) recordEvent(ctx context.Context, receiptID string, event stripe.Event, handled bool, outcome string) error {
	row := models.WebhookEvent{
		ReceiptID: receiptID,
		EventID:   event.ID,
		EventType: string(event.Type),
		Payload:   datatypes.JSON(event.Data.Raw),
		Handled:   handled,
		Outcome:   outcome,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}
