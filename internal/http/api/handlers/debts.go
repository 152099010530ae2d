package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/fintrack-dev/fintrack/internal/billing"
	"github.com/fintrack-dev/fintrack/internal/models"
)

// DebtHandler manages debt tracking endpoints.
type DebtHandler struct {
	db      *gorm.DB
	billing *billing.Service
}

// NewDebtHandler constructs a DebtHandler.
func NewDebtHandler(db *gorm.DB, billingSvc *billing.Service) *DebtHandler {
	return &DebtHandler{db: db, billing: billingSvc}
}

// debtRequest captures the payload for creating or updating a debt.
type debtRequest struct {
	Contact   string     `json:"contact"`   // Counterparty name.
	Direction string     `json:"direction"` // "owed_to_me" or "i_owe".
	Amount    float64    `json:"amount"`    // Original amount.
	Note      string     `json:"note"`      // Free-form note.
	DueDate   *time.Time `json:"due_date"`  // Optional due date.
}

// parseDebtDirection validates the wire-level direction string.
func parseDebtDirection(raw string) (models.DebtDirection, bool) {
	switch models.DebtDirection(raw) {
	case models.DebtDirectionOwedToMe, models.DebtDirectionIOwe:
		return models.DebtDirection(raw), true
	default:
		return "", false
	}
}

// Create reserves debt quota and inserts a new open debt.
func (h *DebtHandler) Create(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body debtRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(body.Contact) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "contact is required"})
		return
	}
	direction, okDirection := parseDebtDirection(body.Direction)
	if !okDirection {
		c.JSON(http.StatusBadRequest, gin.H{"error": "direction must be owed_to_me or i_owe"})
		return
	}
	if body.Amount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
		return
	}

	reserved, errReserve := h.billing.ReserveUsage(c.Request.Context(), userID, billing.ActionCreateDebt)
	if errReserve != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "quota check failed"})
		return
	}
	if !reserved.CanPerform {
		c.JSON(http.StatusForbidden, planLimitResponse(reserved))
		return
	}

	debt := models.Debt{
		UserID:    userID,
		Contact:   strings.TrimSpace(body.Contact),
		Direction: direction,
		Amount:    body.Amount,
		Note:      body.Note,
		DueDate:   body.DueDate,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&debt).Error; errCreate != nil {
		h.billing.ReleaseUsage(c.Request.Context(), userID, billing.ActionCreateDebt)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create debt failed"})
		return
	}
	c.JSON(http.StatusCreated, formatDebt(&debt))
}

// List returns the user's debts, optionally filtered by settled state and
// direction.
func (h *DebtHandler) List(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	q := h.db.WithContext(c.Request.Context()).
		Model(&models.Debt{}).
		Where("user_id = ?", userID)

	switch strings.TrimSpace(c.Query("settled")) {
	case "true", "1":
		q = q.Where("settled = ?", true)
	case "false", "0":
		q = q.Where("settled = ?", false)
	}
	if directionQ := strings.TrimSpace(c.Query("direction")); directionQ != "" {
		if direction, ok := parseDebtDirection(directionQ); ok {
			q = q.Where("direction = ?", direction)
		}
	}

	var rows []models.Debt
	if errFind := q.Order("created_at DESC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list debts failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatDebt(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"debts": out})
}

// Update changes a debt's descriptive fields.
func (h *DebtHandler) Update(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	debt, ok := h.load(c, userID)
	if !ok {
		return
	}
	if debt.Settled {
		c.JSON(http.StatusBadRequest, gin.H{"error": "debt already settled"})
		return
	}

	var body debtRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	updates := map[string]any{}
	if contact := strings.TrimSpace(body.Contact); contact != "" {
		updates["contact"] = contact
	}
	if body.Amount > 0 {
		updates["amount"] = body.Amount
	}
	if body.Note != "" {
		updates["note"] = body.Note
	}
	if body.DueDate != nil {
		updates["due_date"] = body.DueDate
	}
	if len(updates) > 0 {
		if errUpdate := h.db.WithContext(c.Request.Context()).
			Model(debt).
			Updates(updates).Error; errUpdate != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update debt failed"})
			return
		}
	}
	c.JSON(http.StatusOK, formatDebt(debt))
}

// recordPaymentRequest captures the payload for a partial repayment.
type recordPaymentRequest struct {
	Amount float64 `json:"amount"` // Repayment amount.
}

// RecordPayment adds a repayment; reaching the full amount settles the debt
// and returns its quota slot.
func (h *DebtHandler) RecordPayment(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	debt, ok := h.load(c, userID)
	if !ok {
		return
	}
	if debt.Settled {
		c.JSON(http.StatusBadRequest, gin.H{"error": "debt already settled"})
		return
	}

	var body recordPaymentRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.Amount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
		return
	}

	paid := debt.PaidAmount + body.Amount
	if paid > debt.Amount {
		paid = debt.Amount
	}
	updates := map[string]any{"paid_amount": paid}
	settles := paid >= debt.Amount
	if settles {
		now := time.Now().UTC()
		updates["settled"] = true
		updates["settled_at"] = now
		debt.Settled = true
		debt.SettledAt = &now
	}
	if errUpdate := h.db.WithContext(c.Request.Context()).
		Model(debt).
		Updates(updates).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "record payment failed"})
		return
	}
	debt.PaidAmount = paid

	if settles {
		if errDec := h.billing.DecrementUsage(c.Request.Context(), userID, billing.ActionCreateDebt); errDec != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update usage failed"})
			return
		}
	}
	c.JSON(http.StatusOK, formatDebt(debt))
}

// Settle marks a debt fully repaid and returns its quota slot.
func (h *DebtHandler) Settle(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	debt, ok := h.load(c, userID)
	if !ok {
		return
	}
	if debt.Settled {
		c.JSON(http.StatusBadRequest, gin.H{"error": "debt already settled"})
		return
	}

	now := time.Now().UTC()
	if errUpdate := h.db.WithContext(c.Request.Context()).
		Model(debt).
		Updates(map[string]any{
			"settled":     true,
			"settled_at":  now,
			"paid_amount": debt.Amount,
		}).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "settle debt failed"})
		return
	}
	debt.Settled = true
	debt.SettledAt = &now
	debt.PaidAmount = debt.Amount

	if errDec := h.billing.DecrementUsage(c.Request.Context(), userID, billing.ActionCreateDebt); errDec != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update usage failed"})
		return
	}
	c.JSON(http.StatusOK, formatDebt(debt))
}

// Delete removes a debt. Open debts return their quota slot; settled debts
// already did when they settled.
func (h *DebtHandler) Delete(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	debt, ok := h.load(c, userID)
	if !ok {
		return
	}
	wasOpen := !debt.Settled
	if errDelete := h.db.WithContext(c.Request.Context()).Delete(debt).Error; errDelete != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete debt failed"})
		return
	}
	if wasOpen {
		if errDec := h.billing.DecrementUsage(c.Request.Context(), userID, billing.ActionCreateDebt); errDec != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update usage failed"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// load fetches the path-addressed debt scoped to the user.
func (h *DebtHandler) load(c *gin.Context, userID uint64) (*models.Debt, bool) {
	debtID, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return nil, false
	}
	var debt models.Debt
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND user_id = ?", debtID, userID).
		First(&debt).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "debt not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query debt failed"})
		return nil, false
	}
	return &debt, true
}

// formatDebt converts a debt model to a response payload.
func formatDebt(debt *models.Debt) gin.H {
	return gin.H{
		"id":          debt.ID,
		"contact":     debt.Contact,
		"direction":   debt.Direction,
		"amount":      debt.Amount,
		"paid_amount": debt.PaidAmount,
		"note":        debt.Note,
		"due_date":    debt.DueDate,
		"settled":     debt.Settled,
		"settled_at":  debt.SettledAt,
		"created_at":  debt.CreatedAt,
	}
}
