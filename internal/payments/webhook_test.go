package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/fintrack-dev/fintrack/internal/billing"
	"github.com/fintrack-dev/fintrack/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/stripe/stripe-go/v79"
	"gorm.io/gorm"
)

func newTestEnv(t *testing.T) (*gorm.DB, *Service) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := conn.AutoMigrate(&models.User{}, &models.WebhookEvent{}); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	svc := NewService(conn, Config{WebhookSecret: "whsec_test"}, billing.NewService(conn))
	return conn, svc
}

func seedUser(t *testing.T, conn *gorm.DB) *models.User {
	t.Helper()
	limits := billing.FreeLimits()
	user := models.User{
		Email:                    "user@example.com",
		Password:                 "x",
		Plan:                     models.PlanFree,
		LimitMonthlyTransactions: limits.MonthlyTransactions,
		LimitActiveDebts:         limits.ActiveDebts,
		LimitRecurring:           limits.Recurring,
		LimitCategories:          limits.Categories,
		UsageLastResetAt:         time.Now().UTC(),
	}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	return &user
}

func checkoutEvent(t *testing.T, userID string) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"id":       "cs_test_1",
		"metadata": map[string]string{"user_id": userID},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return stripe.Event{
		ID:   "evt_checkout_1",
		Type: "checkout.session.completed",
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestHandleEvent_CheckoutCompletedUpgrades(t *testing.T) {
	conn, svc := newTestEnv(t)
	user := seedUser(t, conn)
	ctx := context.Background()

	event := checkoutEvent(t, fmt.Sprintf("%d", user.ID))
	if err := svc.HandleEvent(ctx, event); err != nil {
		t.Fatalf("handle: %v", err)
	}

	var reloaded models.User
	if err := conn.First(&reloaded, user.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Plan != models.PlanPremium {
		t.Fatalf("expected premium after checkout, got %s", reloaded.Plan)
	}
	if reloaded.PlanExpiry == nil {
		t.Fatalf("expected plan expiry set")
	}
	if !billing.IsUnlimited(reloaded.LimitCategories) {
		t.Fatalf("expected unlimited ceilings after upgrade")
	}
}

func TestHandleEvent_RedeliveryStaysPremium(t *testing.T) {
	conn, svc := newTestEnv(t)
	user := seedUser(t, conn)
	ctx := context.Background()

	event := checkoutEvent(t, fmt.Sprintf("%d", user.ID))
	if err := svc.HandleEvent(ctx, event); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := svc.HandleEvent(ctx, event); err != nil {
		t.Fatalf("redelivery: %v", err)
	}

	var reloaded models.User
	if err := conn.First(&reloaded, user.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Plan != models.PlanPremium {
		t.Fatalf("expected premium after redelivery, got %s", reloaded.Plan)
	}

	var audits int64
	if err := conn.Model(&models.WebhookEvent{}).Where("event_id = ?", event.ID).Count(&audits).Error; err != nil {
		t.Fatalf("count audits: %v", err)
	}
	if audits != 2 {
		t.Fatalf("redeliveries must stay visible in the audit table, got %d rows", audits)
	}
}

func TestHandleEvent_MissingUserMetadataIsNoOp(t *testing.T) {
	conn, svc := newTestEnv(t)
	user := seedUser(t, conn)
	ctx := context.Background()

	raw, _ := json.Marshal(map[string]any{"id": "cs_test_2"})
	event := stripe.Event{
		ID:   "evt_checkout_2",
		Type: "checkout.session.completed",
		Data: &stripe.EventData{Raw: raw},
	}
	if err := svc.HandleEvent(ctx, event); err != nil {
		t.Fatalf("expected no error for missing metadata, got %v", err)
	}

	var reloaded models.User
	if err := conn.First(&reloaded, user.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Plan != models.PlanFree {
		t.Fatalf("no-op event must not change plan, got %s", reloaded.Plan)
	}
}

func TestHandleEvent_SubscriptionDeletedDowngrades(t *testing.T) {
	conn, svc := newTestEnv(t)
	user := seedUser(t, conn)
	ctx := context.Background()

	if err := svc.billing.UpgradeToPremium(ctx, user.ID); err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	if err := conn.Model(&models.User{}).Where("id = ?", user.ID).
		Update("stripe_customer_id", "cus_test_1").Error; err != nil {
		t.Fatalf("set customer id: %v", err)
	}

	raw, _ := json.Marshal(map[string]any{"id": "sub_test_1", "customer": "cus_test_1"})
	event := stripe.Event{
		ID:   "evt_sub_deleted_1",
		Type: "customer.subscription.deleted",
		Data: &stripe.EventData{Raw: raw},
	}
	if err := svc.HandleEvent(ctx, event); err != nil {
		t.Fatalf("handle: %v", err)
	}

	var reloaded models.User
	if err := conn.First(&reloaded, user.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Plan != models.PlanFree {
		t.Fatalf("expected free after subscription deletion, got %s", reloaded.Plan)
	}
	if reloaded.PlanExpiry != nil {
		t.Fatalf("expected expiry cleared")
	}
}

func TestHandleEvent_UnknownCustomerIsNoOp(t *testing.T) {
	_, svc := newTestEnv(t)

	raw, _ := json.Marshal(map[string]any{"id": "sub_test_2", "customer": "cus_unknown"})
	event := stripe.Event{
		ID:   "evt_sub_deleted_2",
		Type: "customer.subscription.deleted",
		Data: &stripe.EventData{Raw: raw},
	}
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("expected no error for unknown customer, got %v", err)
	}
}

func TestHandleEvent_UnhandledTypeIgnored(t *testing.T) {
	conn, svc := newTestEnv(t)

	raw, _ := json.Marshal(map[string]any{"id": "in_test_1"})
	event := stripe.Event{
		ID:   "evt_other_1",
		Type: "invoice.created",
		Data: &stripe.EventData{Raw: raw},
	}
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("expected no error for unhandled type, got %v", err)
	}

	var row models.WebhookEvent
	if err := conn.Where("event_id = ?", event.ID).Take(&row).Error; err != nil {
		t.Fatalf("audit row: %v", err)
	}
	if row.Handled {
		t.Fatalf("unhandled event must not be marked handled")
	}
}
