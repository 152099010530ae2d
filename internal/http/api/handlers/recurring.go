package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/fintrack-dev/fintrack/internal/billing"
	"github.com/fintrack-dev/fintrack/internal/models"
)

// RecurringHandler manages recurring transaction template endpoints.
type RecurringHandler struct {
	db      *gorm.DB
	billing *billing.Service
}

// NewRecurringHandler constructs a RecurringHandler.
func NewRecurringHandler(db *gorm.DB, billingSvc *billing.Service) *RecurringHandler {
	return &RecurringHandler{db: db, billing: billingSvc}
}

// recurringRequest captures the payload for creating or updating a template.
type recurringRequest struct {
	Type       string     `json:"type"`        // "income" or "expense".
	Amount     float64    `json:"amount"`      // Amount per occurrence.
	CategoryID *uint64    `json:"category_id"` // Optional category.
	Note       string     `json:"note"`        // Free-form note.
	Frequency  string     `json:"frequency"`   // daily/weekly/monthly/yearly.
	StartAt    *time.Time `json:"start_at"`    // First occurrence; defaults to now.
}

// parseFrequency validates the wire-level frequency string.
func parseFrequency(raw string) (models.Frequency, bool) {
	switch models.Frequency(raw) {
	case models.FrequencyDaily, models.FrequencyWeekly, models.FrequencyMonthly, models.FrequencyYearly:
		return models.Frequency(raw), true
	default:
		return "", false
	}
}

// Create reserves recurring quota and inserts a new active template.
func (h *RecurringHandler) Create(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body recurringRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	txType, okType := parseTransactionType(body.Type)
	if !okType {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be income or expense"})
		return
	}
	if body.Amount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
		return
	}
	frequency, okFrequency := parseFrequency(body.Frequency)
	if !okFrequency {
		c.JSON(http.StatusBadRequest, gin.H{"error": "frequency must be daily, weekly, monthly or yearly"})
		return
	}
	categoryID, okCategory := ownedCategoryID(c, h.db, userID, body.CategoryID)
	if !okCategory {
		return
	}

	reserved, errReserve := h.billing.ReserveUsage(c.Request.Context(), userID, billing.ActionCreateRecurring)
	if errReserve != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "quota check failed"})
		return
	}
	if !reserved.CanPerform {
		c.JSON(http.StatusForbidden, planLimitResponse(reserved))
		return
	}

	nextRun := time.Now().UTC()
	if body.StartAt != nil {
		nextRun = body.StartAt.UTC()
	}
	template := models.RecurringTransaction{
		UserID:     userID,
		CategoryID: categoryID,
		Type:       txType,
		Amount:     body.Amount,
		Note:       body.Note,
		Frequency:  frequency,
		NextRunAt:  nextRun,
		Active:     true,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&template).Error; errCreate != nil {
		h.billing.ReleaseUsage(c.Request.Context(), userID, billing.ActionCreateRecurring)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create recurring transaction failed"})
		return
	}
	c.JSON(http.StatusCreated, formatRecurring(&template))
}

// List returns the user's recurring transaction templates.
func (h *RecurringHandler) List(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var rows []models.RecurringTransaction
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list recurring transactions failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatRecurring(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"recurring_transactions": out})
}

// Update changes a template's fields.
func (h *RecurringHandler) Update(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	template, ok := h.load(c, userID)
	if !ok {
		return
	}

	var body recurringRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	updates := map[string]any{}
	if body.Type != "" {
		txType, okType := parseTransactionType(body.Type)
		if !okType {
			c.JSON(http.StatusBadRequest, gin.H{"error": "type must be income or expense"})
			return
		}
		updates["type"] = txType
	}
	if body.Amount > 0 {
		updates["amount"] = body.Amount
	}
	if body.Note != "" {
		updates["note"] = body.Note
	}
	if body.Frequency != "" {
		frequency, okFrequency := parseFrequency(body.Frequency)
		if !okFrequency {
			c.JSON(http.StatusBadRequest, gin.H{"error": "frequency must be daily, weekly, monthly or yearly"})
			return
		}
		updates["frequency"] = frequency
	}
	if body.StartAt != nil {
		updates["next_run_at"] = body.StartAt.UTC()
	}
	if body.CategoryID != nil {
		categoryID, okCategory := ownedCategoryID(c, h.db, userID, body.CategoryID)
		if !okCategory {
			return
		}
		updates["category_id"] = categoryID
	}

	if len(updates) > 0 {
		if errUpdate := h.db.WithContext(c.Request.Context()).
			Model(template).
			Updates(updates).Error; errUpdate != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update recurring transaction failed"})
			return
		}
	}
	c.JSON(http.StatusOK, formatRecurring(template))
}

// Pause stops a template from materializing. The quota slot stays held;
// only deletion returns it.
func (h *RecurringHandler) Pause(c *gin.Context) {
	h.setActive(c, false)
}

// Resume reactivates a paused template.
func (h *RecurringHandler) Resume(c *gin.Context) {
	h.setActive(c, true)
}

func (h *RecurringHandler) setActive(c *gin.Context, active bool) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	template, ok := h.load(c, userID)
	if !ok {
		return
	}
	if errUpdate := h.db.WithContext(c.Request.Context()).
		Model(template).
		Update("active", active).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update recurring transaction failed"})
		return
	}
	template.Active = active
	c.JSON(http.StatusOK, formatRecurring(template))
}

// Delete removes a template and returns its quota slot. Materialized
// transactions keep their link as history.
func (h *RecurringHandler) Delete(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	template, ok := h.load(c, userID)
	if !ok {
		return
	}
	if errDelete := h.db.WithContext(c.Request.Context()).Delete(template).Error; errDelete != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete recurring transaction failed"})
		return
	}
	if errDec := h.billing.DecrementUsage(c.Request.Context(), userID, billing.ActionCreateRecurring); errDec != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update usage failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// load fetches the path-addressed template scoped to the user.
func (h *RecurringHandler) load(c *gin.Context, userID uint64) (*models.RecurringTransaction, bool) {
	templateID, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return nil, false
	}
	var template models.RecurringTransaction
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND user_id = ?", templateID, userID).
		First(&template).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "recurring transaction not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query recurring transaction failed"})
		return nil, false
	}
	return &template, true
}

// formatRecurring converts a template model to a response payload.
func formatRecurring(template *models.RecurringTransaction) gin.H {
	return gin.H{
		"id":          template.ID,
		"type":        template.Type,
		"amount":      template.Amount,
		"category_id": template.CategoryID,
		"note":        template.Note,
		"frequency":   template.Frequency,
		"next_run_at": template.NextRunAt,
		"last_run_at": template.LastRunAt,
		"active":      template.Active,
		"created_at":  template.CreatedAt,
	}
}
