package payments

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fintrack-dev/fintrack/internal/billing"
	"github.com/fintrack-dev/fintrack/internal/models"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/customer"
	"gorm.io/gorm"
)

// Config holds Stripe credentials and checkout settings.
type Config struct {
	SecretKey      string `yaml:"secret-key"`
	WebhookSecret  string `yaml:"webhook-secret"`
	PremiumPriceID string `yaml:"premium-price-id"`
	SuccessURL     string `yaml:"success-url"`
	CancelURL      string `yaml:"cancel-url"`
}

// Init wires the Stripe API key for the package-level client.
func Init(cfg Config) {
	stripe.Key = cfg.SecretKey
}

// ErrNotConfigured indicates missing Stripe settings.
var ErrNotConfigured = errors.New("payments: stripe is not configured")

// Service creates checkout sessions and applies webhook plan transitions.
type Service struct {
	db      *gorm.DB
	cfg     Config
	billing *billing.Service
}

// NewService constructs a payments Service.
func NewService(db *gorm.DB, cfg Config, billingSvc *billing.Service) *Service {
	return &Service{db: db, cfg: cfg, billing: billingSvc}
}

// WebhookSecret returns the shared webhook signing secret.
func (s *Service) WebhookSecret() string {
	return s.cfg.WebhookSecret
}

// CreateCheckoutSession starts a premium-plan checkout for the user and
// returns the hosted payment URL. The user ID and plan ride in the session
// metadata for webhook correlation, and the Stripe customer ID is persisted
// on the user so subscription events can be resolved later.
func (s *Service) CreateCheckoutSession(ctx context.Context, user *models.User) (string, error) {
	if strings.TrimSpace(s.cfg.SecretKey) == "" || strings.TrimSpace(s.cfg.PremiumPriceID) == "" {
		return "", ErrNotConfigured
	}

	customerID, errEnsure := s.ensureCustomer(ctx, user)
	if errEnsure != nil {
		return "", errEnsure
	}

	params := &stripe.CheckoutSessionParams{
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer: stripe.String(customerID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(s.cfg.PremiumPriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(s.cfg.SuccessURL),
		CancelURL:  stripe.String(s.cfg.CancelURL),
	}
	params.AddMetadata("user_id", strconv.FormatUint(user.ID, 10))
	params.AddMetadata("plan", string(models.PlanPremium))

	sess, errNew := session.New(params)
	if errNew != nil {
		return "", fmt.Errorf("payments: create checkout session: %w", errNew)
	}
	return sess.URL, nil
}

// ensureCustomer finds or creates the Stripe customer for the user and
// stores the mapping on the user row.
func (s *Service) ensureCustomer(ctx context.Context, user *models.User) (string, error) {
	if id := strings.TrimSpace(user.StripeCustomerID); id != "" {
		return id, nil
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(user.Email),
	}
	params.AddMetadata("user_id", strconv.FormatUint(user.ID, 10))

	cust, errNew := customer.New(params)
	if errNew != nil {
		return "", fmt.Errorf("payments: create customer: %w", errNew)
	}

	if errUpdate := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("stripe_customer_id", cust.ID).Error; errUpdate != nil {
		return "", fmt.Errorf("payments: persist customer id: %w", errUpdate)
	}
	user.StripeCustomerID = cust.ID
	return cust.ID, nil
}
