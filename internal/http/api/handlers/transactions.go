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
	"github.com/fintrack-dev/fintrack/internal/db"
	"github.com/fintrack-dev/fintrack/internal/models"
)

// TransactionHandler manages income/expense CRUD endpoints.
type TransactionHandler struct {
	db      *gorm.DB
	billing *billing.Service
}

// NewTransactionHandler constructs a TransactionHandler.
func NewTransactionHandler(database *gorm.DB, billingSvc *billing.Service) *TransactionHandler {
	return &TransactionHandler{db: database, billing: billingSvc}
}

// transactionRequest captures the payload for creating or updating a transaction.
type transactionRequest struct {
	Type       string     `json:"type"`        // "income" or "expense".
	Amount     float64    `json:"amount"`      // Transaction amount.
	CategoryID *uint64    `json:"category_id"` // Optional category.
	Note       string     `json:"note"`        // Free-form note.
	Date       *time.Time `json:"date"`        // Effective date; defaults to now.

	// ClearCategory detaches the category on update. A nil CategoryID only
	// means "unchanged", so clearing needs its own flag.
	ClearCategory bool `json:"clear_category"`
}

// parseTransactionType validates the wire-level type string.
func parseTransactionType(raw string) (models.TransactionType, bool) {
	switch models.TransactionType(raw) {
	case models.TransactionTypeIncome, models.TransactionTypeExpense:
		return models.TransactionType(raw), true
	default:
		return "", false
	}
}

// ownedCategoryID verifies the category belongs to the user.
func ownedCategoryID(c *gin.Context, database *gorm.DB, userID uint64, categoryID *uint64) (*uint64, bool) {
	if categoryID == nil {
		return nil, true
	}
	var count int64
	if errCount := database.WithContext(c.Request.Context()).
		Model(&models.Category{}).
		Where("id = ? AND user_id = ?", *categoryID, userID).
		Count(&count).Error; errCount != nil || count == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "category not found"})
		return nil, false
	}
	return categoryID, true
}

// Create reserves monthly quota and inserts a new transaction.
func (h *TransactionHandler) Create(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body transactionRequest
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
	categoryID, okCategory := ownedCategoryID(c, h.db, userID, body.CategoryID)
	if !okCategory {
		return
	}

	reserved, errReserve := h.billing.ReserveUsage(c.Request.Context(), userID, billing.ActionCreateTransaction)
	if errReserve != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "quota check failed"})
		return
	}
	if !reserved.CanPerform {
		c.JSON(http.StatusForbidden, planLimitResponse(reserved))
		return
	}

	date := time.Now().UTC()
	if body.Date != nil {
		date = body.Date.UTC()
	}
	transaction := models.Transaction{
		UserID:     userID,
		CategoryID: categoryID,
		Type:       txType,
		Amount:     body.Amount,
		Note:       body.Note,
		Date:       date,
		Source:     "user",
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&transaction).Error; errCreate != nil {
		// The monthly counter is rolling-window; a failed insert costs the
		// reserved slot and ReleaseUsage is a no-op for transactions.
		h.billing.ReleaseUsage(c.Request.Context(), userID, billing.ActionCreateTransaction)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create transaction failed"})
		return
	}
	c.JSON(http.StatusCreated, formatTransaction(&transaction))
}

// List returns the user's transactions with filters and paging.
func (h *TransactionHandler) List(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	q := h.db.WithContext(c.Request.Context()).
		Model(&models.Transaction{}).
		Where("user_id = ?", userID)

	if typeQ := strings.TrimSpace(c.Query("type")); typeQ != "" {
		if txType, ok := parseTransactionType(typeQ); ok {
			q = q.Where("type = ?", txType)
		}
	}
	if categoryQ := strings.TrimSpace(c.Query("category_id")); categoryQ != "" {
		if id, errParse := strconv.ParseUint(categoryQ, 10, 64); errParse == nil {
			q = q.Where("category_id = ?", id)
		}
	}
	if fromQ := strings.TrimSpace(c.Query("from")); fromQ != "" {
		if from, errParse := time.Parse(time.RFC3339, fromQ); errParse == nil {
			q = q.Where("date >= ?", from)
		}
	}
	if toQ := strings.TrimSpace(c.Query("to")); toQ != "" {
		if to, errParse := time.Parse(time.RFC3339, toQ); errParse == nil {
			q = q.Where("date < ?", to)
		}
	}
	if search := strings.TrimSpace(c.Query("q")); search != "" {
		pattern := db.NormalizeLikePattern(h.db, "%"+search+"%")
		q = q.Where(db.CaseInsensitiveLikeExpr(h.db, "note"), pattern)
	}

	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count transactions failed"})
		return
	}

	page, pageSize := pagination(c)
	var rows []models.Transaction
	if errFind := q.Order("date DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list transactions failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatTransaction(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"transactions": out,
		"total":        total,
		"page":         page,
		"page_size":    pageSize,
	})
}

// Get returns a single transaction.
func (h *TransactionHandler) Get(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	transaction, ok := h.load(c, userID)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, formatTransaction(transaction))
}

// Update changes a transaction's fields. Edits never touch the monthly
// counter; only creation consumes quota.
func (h *TransactionHandler) Update(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	transaction, ok := h.load(c, userID)
	if !ok {
		return
	}

	var body transactionRequest
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
	if body.Date != nil {
		updates["date"] = body.Date.UTC()
	}
	switch {
	case body.ClearCategory:
		updates["category_id"] = nil
	case body.CategoryID != nil:
		categoryID, okCategory := ownedCategoryID(c, h.db, userID, body.CategoryID)
		if !okCategory {
			return
		}
		updates["category_id"] = categoryID
	}

	if len(updates) > 0 {
		if errUpdate := h.db.WithContext(c.Request.Context()).
			Model(transaction).
			Updates(updates).Error; errUpdate != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update transaction failed"})
			return
		}
	}
	c.JSON(http.StatusOK, formatTransaction(transaction))
}

// Delete removes a transaction. The monthly counter is not returned: the
// rolling window counts creations, not surviving rows.
func (h *TransactionHandler) Delete(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	transaction, ok := h.load(c, userID)
	if !ok {
		return
	}
	if errDelete := h.db.WithContext(c.Request.Context()).Delete(transaction).Error; errDelete != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete transaction failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// load fetches the path-addressed transaction scoped to the user.
func (h *TransactionHandler) load(c *gin.Context, userID uint64) (*models.Transaction, bool) {
	transactionID, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return nil, false
	}
	var transaction models.Transaction
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND user_id = ?", transactionID, userID).
		First(&transaction).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "transaction not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query transaction failed"})
		return nil, false
	}
	return &transaction, true
}

// formatTransaction converts a transaction model to a response payload.
func formatTransaction(transaction *models.Transaction) gin.H {
	return gin.H{
		"id":          transaction.ID,
		"type":        transaction.Type,
		"amount":      transaction.Amount,
		"category_id": transaction.CategoryID,
		"note":        transaction.Note,
		"date":        transaction.Date,
		"source":      transaction.Source,
		"created_at":  transaction.CreatedAt,
	}
}

// pagination reads page/page_size query params with sane bounds.
func pagination(c *gin.Context) (page, pageSize int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}
