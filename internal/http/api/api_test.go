package api

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v79/webhook"
	"gorm.io/gorm"

	"github.com/fintrack-dev/fintrack/internal/billing"
	"github.com/fintrack-dev/fintrack/internal/config"
	"github.com/fintrack-dev/fintrack/internal/db"
	"github.com/fintrack-dev/fintrack/internal/models"
	"github.com/fintrack-dev/fintrack/internal/payments"
	"github.com/fintrack-dev/fintrack/internal/ratelimit"
	"github.com/fintrack-dev/fintrack/internal/reports"
)

const testWebhookSecret = "whsec_test_secret"

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	database, errOpen := db.Open(dsn)
	if errOpen != nil {
		t.Fatalf("open database: %v", errOpen)
	}
	if errMigrate := db.Migrate(database); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	cfg := &config.Config{
		JWT:       config.JWTConfig{Secret: "test-secret", Expiry: time.Hour},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 1000},
	}
	billingSvc := billing.NewService(database)
	paymentsSvc := payments.NewService(database, payments.Config{WebhookSecret: testWebhookSecret}, billingSvc)
	reportsSvc := reports.NewService(database)

	r := gin.New()
	RegisterRoutes(r, database, cfg, billingSvc, paymentsSvc, reportsSvc, ratelimit.NewMemoryLimiter())
	return r, database
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if errEncode := json.NewEncoder(&buf).Encode(body); errEncode != nil {
			t.Fatalf("encode body: %v", errEncode)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if errDecode := json.Unmarshal(w.Body.Bytes(), &out); errDecode != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), errDecode)
	}
	return out
}

func registerUser(t *testing.T, r *gin.Engine, email string) string {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/v1/auth/register", "", gin.H{
		"email":    email,
		"name":     "Test User",
		"password": "password123",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("register: missing token in %v", body)
	}
	return token
}

func TestAuthRequired(t *testing.T) {
	r, _ := newTestRouter(t)
	w := doJSON(t, r, http.MethodGet, "/v1/me", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestRegisterSeedsCategories(t *testing.T) {
	r, _ := newTestRouter(t)
	token := registerUser(t, r, "seeds@example.com")

	w := doJSON(t, r, http.MethodGet, "/v1/categories", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list categories: expected 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	categories, _ := body["categories"].([]any)
	if len(categories) != 2 {
		t.Fatalf("expected 2 seeded categories, got %d", len(categories))
	}

	w = doJSON(t, r, http.MethodGet, "/v1/billing/plan", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("plan info: expected 200, got %d", w.Code)
	}
	plan := decodeBody(t, w)
	usage, _ := plan["usage"].(map[string]any)
	if usage["categories"].(float64) != 2 {
		t.Fatalf("expected category usage 2, got %v", usage["categories"])
	}
}

func TestCategoryQuotaFlow(t *testing.T) {
	r, _ := newTestRouter(t)
	token := registerUser(t, r, "catquota@example.com")

	// Two seeds leave one free slot under the ceiling of three.
	w := doJSON(t, r, http.MethodPost, "/v1/categories", token, gin.H{"name": "Travel"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create category: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	created := decodeBody(t, w)

	w = doJSON(t, r, http.MethodPost, "/v1/categories", token, gin.H{"name": "Blocked"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 at ceiling, got %d: %s", w.Code, w.Body.String())
	}
	denial := decodeBody(t, w)
	if denial["error"] != "plan limit reached" {
		t.Fatalf("unexpected denial payload: %v", denial)
	}
	if denial["upgrade"] != true {
		t.Fatalf("expected upgrade hint for free user, got %v", denial)
	}

	// Deleting returns the slot.
	categoryID := created["id"].(float64)
	w = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/v1/categories/%.0f", categoryID), token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete category: expected 200, got %d", w.Code)
	}
	w = doJSON(t, r, http.MethodPost, "/v1/categories", token, gin.H{"name": "Travel Again"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create after delete: expected 201, got %d: %s", w.Code, w.Body.String())
	}
}

func TestTransactionQuotaBlocksAtCeiling(t *testing.T) {
	r, database := newTestRouter(t)
	token := registerUser(t, r, "txquota@example.com")

	// Shrink the ceiling so the flow is two requests, not fifty-one.
	if errUpdate := database.Model(&models.User{}).
		Where("email = ?", "txquota@example.com").
		Update("limit_monthly_transactions", 1).Error; errUpdate != nil {
		t.Fatalf("shrink limit: %v", errUpdate)
	}

	w := doJSON(t, r, http.MethodPost, "/v1/transactions", token, gin.H{
		"type":   "expense",
		"amount": 12.5,
		"note":   "coffee",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create transaction: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodPost, "/v1/transactions", token, gin.H{
		"type":   "expense",
		"amount": 3,
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 at ceiling, got %d: %s", w.Code, w.Body.String())
	}

	// Deleting a transaction does not return monthly quota.
	var transaction models.Transaction
	if errFind := database.Where("note = ?", "coffee").First(&transaction).Error; errFind != nil {
		t.Fatalf("load transaction: %v", errFind)
	}
	w = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/v1/transactions/%d", transaction.ID), token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete transaction: expected 200, got %d", w.Code)
	}
	w = doJSON(t, r, http.MethodPost, "/v1/transactions", token, gin.H{
		"type":   "income",
		"amount": 100,
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected monthly quota to stay consumed, got %d", w.Code)
	}
}

func TestTransactionUpdateClearsCategory(t *testing.T) {
	r, database := newTestRouter(t)
	token := registerUser(t, r, "clearcat@example.com")

	w := doJSON(t, r, http.MethodGet, "/v1/categories", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list categories: expected 200, got %d", w.Code)
	}
	categories, _ := decodeBody(t, w)["categories"].([]any)
	if len(categories) == 0 {
		t.Fatalf("expected seeded categories")
	}
	categoryID := categories[0].(map[string]any)["id"].(float64)

	w = doJSON(t, r, http.MethodPost, "/v1/transactions", token, gin.H{
		"type":        "expense",
		"amount":      20,
		"category_id": categoryID,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create transaction: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	created := decodeBody(t, w)
	if created["category_id"] == nil {
		t.Fatalf("expected category assigned on create")
	}
	transactionID := created["id"].(float64)

	// Omitting category_id leaves it unchanged; clear_category detaches it.
	w = doJSON(t, r, http.MethodPut, fmt.Sprintf("/v1/transactions/%.0f", transactionID), token, gin.H{
		"note": "still categorized",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if decodeBody(t, w)["category_id"] == nil {
		t.Fatalf("category must survive an unrelated update")
	}

	w = doJSON(t, r, http.MethodPut, fmt.Sprintf("/v1/transactions/%.0f", transactionID), token, gin.H{
		"clear_category": true,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("clear: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := decodeBody(t, w)["category_id"]; got != nil {
		t.Fatalf("expected category cleared in response, got %v", got)
	}

	var reloaded models.Transaction
	if errFind := database.First(&reloaded, uint64(transactionID)).Error; errFind != nil {
		t.Fatalf("reload transaction: %v", errFind)
	}
	if reloaded.CategoryID != nil {
		t.Fatalf("expected category_id null after clear, got %v", *reloaded.CategoryID)
	}
}

func TestBillingCheckEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)
	token := registerUser(t, r, "check@example.com")

	w := doJSON(t, r, http.MethodGet, "/v1/billing/check?action=create_debt", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("check: expected 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["can_perform"] != true {
		t.Fatalf("expected can_perform true, got %v", body)
	}

	w = doJSON(t, r, http.MethodGet, "/v1/billing/check?action=nonsense", token, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown action, got %d", w.Code)
	}
}

func TestStripeWebhookSignature(t *testing.T) {
	r, database := newTestRouter(t)
	registerUser(t, r, "webhook@example.com")

	var user models.User
	if errFind := database.Where("email = ?", "webhook@example.com").First(&user).Error; errFind != nil {
		t.Fatalf("load user: %v", errFind)
	}

	payload := []byte(fmt.Sprintf(
		`{"id":"evt_test_1","type":"checkout.session.completed","data":{"object":{"metadata":{"user_id":"%d","plan":"premium"}}}}`,
		user.ID,
	))

	// Wrong signature is rejected.
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad signature, got %d", w.Code)
	}

	// Properly signed delivery upgrades the user.
	now := time.Now()
	signature := webhook.ComputeSignature(now, payload, testWebhookSecret)
	header := fmt.Sprintf("t=%d,v1=%s", now.Unix(), hex.EncodeToString(signature))

	req = httptest.NewRequest(http.MethodPost, "/v1/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", header)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for signed delivery, got %d: %s", w.Code, w.Body.String())
	}

	if errReload := database.First(&user, user.ID).Error; errReload != nil {
		t.Fatalf("reload user: %v", errReload)
	}
	if user.Plan != models.PlanPremium {
		t.Fatalf("expected premium after checkout event, got %s", user.Plan)
	}
}

func TestRateLimitDeniesBursts(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	database, errOpen := db.Open(dsn)
	if errOpen != nil {
		t.Fatalf("open database: %v", errOpen)
	}
	if errMigrate := db.Migrate(database); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	cfg := &config.Config{
		JWT:       config.JWTConfig{Secret: "test-secret", Expiry: time.Hour},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 1},
	}
	billingSvc := billing.NewService(database)
	paymentsSvc := payments.NewService(database, payments.Config{}, billingSvc)
	r := gin.New()
	RegisterRoutes(r, database, cfg, billingSvc, paymentsSvc, reports.NewService(database), ratelimit.NewMemoryLimiter())

	token := registerUser(t, r, "burst@example.com")

	denied := false
	for i := 0; i < 5; i++ {
		w := doJSON(t, r, http.MethodGet, "/v1/me", token, nil)
		if w.Code == http.StatusTooManyRequests {
			denied = true
			break
		}
	}
	if !denied {
		t.Fatalf("expected at least one 429 within a burst of five at 1 rps")
	}
}
