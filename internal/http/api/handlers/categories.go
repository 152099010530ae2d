package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/fintrack-dev/fintrack/internal/billing"
	"github.com/fintrack-dev/fintrack/internal/models"
)

// CategoryHandler manages category CRUD endpoints.
type CategoryHandler struct {
	db      *gorm.DB
	billing *billing.Service
}

// NewCategoryHandler constructs a CategoryHandler.
func NewCategoryHandler(db *gorm.DB, billingSvc *billing.Service) *CategoryHandler {
	return &CategoryHandler{db: db, billing: billingSvc}
}

// categoryRequest captures the payload for creating or updating a category.
type categoryRequest struct {
	Name  string `json:"name"`  // Display name.
	Icon  string `json:"icon"`  // Icon identifier.
	Color string `json:"color"` // Display color.
}

// Create reserves category quota and inserts a new category.
func (h *CategoryHandler) Create(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body categoryRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(body.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	reserved, errReserve := h.billing.ReserveUsage(c.Request.Context(), userID, billing.ActionCreateCategory)
	if errReserve != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "quota check failed"})
		return
	}
	if !reserved.CanPerform {
		c.JSON(http.StatusForbidden, planLimitResponse(reserved))
		return
	}

	category := models.Category{
		UserID: userID,
		Name:   strings.TrimSpace(body.Name),
		Icon:   strings.TrimSpace(body.Icon),
		Color:  strings.TrimSpace(body.Color),
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&category).Error; errCreate != nil {
		h.billing.ReleaseUsage(c.Request.Context(), userID, billing.ActionCreateCategory)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create category failed"})
		return
	}
	c.JSON(http.StatusCreated, formatCategory(&category))
}

// List returns the user's categories.
func (h *CategoryHandler) List(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var rows []models.Category
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", userID).
		Order("name ASC").
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list categories failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatCategory(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"categories": out})
}

// Update changes a category's display fields.
func (h *CategoryHandler) Update(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	categoryID, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var body categoryRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var category models.Category
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND user_id = ?", categoryID, userID).
		First(&category).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "category not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query category failed"})
		return
	}

	updates := map[string]any{}
	if name := strings.TrimSpace(body.Name); name != "" {
		updates["name"] = name
	}
	if body.Icon != "" {
		updates["icon"] = strings.TrimSpace(body.Icon)
	}
	if body.Color != "" {
		updates["color"] = strings.TrimSpace(body.Color)
	}
	if len(updates) > 0 {
		if errUpdate := h.db.WithContext(c.Request.Context()).
			Model(&category).
			Updates(updates).Error; errUpdate != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update category failed"})
			return
		}
	}
	c.JSON(http.StatusOK, formatCategory(&category))
}

// Delete removes a category, detaches its transactions, and returns quota.
func (h *CategoryHandler) Delete(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	categoryID, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var category models.Category
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND user_id = ?", categoryID, userID).
		First(&category).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "category not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query category failed"})
		return
	}

	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errDetach := tx.Model(&models.Transaction{}).
			Where("user_id = ? AND category_id = ?", userID, category.ID).
			Update("category_id", nil).Error; errDetach != nil {
			return errDetach
		}
		if errDetach := tx.Model(&models.RecurringTransaction{}).
			Where("user_id = ? AND category_id = ?", userID, category.ID).
			Update("category_id", nil).Error; errDetach != nil {
			return errDetach
		}
		return tx.Delete(&category).Error
	})
	if errTx != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete category failed"})
		return
	}

	if errDec := h.billing.DecrementUsage(c.Request.Context(), userID, billing.ActionCreateCategory); errDec != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update usage failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// formatCategory converts a category model to a response payload.
func formatCategory(category *models.Category) gin.H {
	return gin.H{
		"id":         category.ID,
		"name":       category.Name,
		"icon":       category.Icon,
		"color":      category.Color,
		"is_default": category.IsDefault,
		"created_at": category.CreatedAt,
	}
}

// planLimitResponse is the denial payload shared by quota-gated creations.
func planLimitResponse(result billing.CheckResult) gin.H {
	return gin.H{
		"error":         "plan limit reached",
		"upgrade":       result.Plan != models.PlanPremium,
		"current_usage": result.CurrentUsage,
		"limit":         result.Limit,
		"plan":          result.Plan,
	}
}
