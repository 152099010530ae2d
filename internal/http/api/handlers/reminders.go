package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/fintrack-dev/fintrack/internal/models"
)

// ReminderHandler manages reminder endpoints. Reminders are not quota-gated.
type ReminderHandler struct {
	db *gorm.DB
}

// NewReminderHandler constructs a ReminderHandler.
func NewReminderHandler(db *gorm.DB) *ReminderHandler {
	return &ReminderHandler{db: db}
}

// reminderRequest captures the payload for creating or updating a reminder.
type reminderRequest struct {
	Title    string     `json:"title"`     // Short reminder text.
	Note     string     `json:"note"`      // Longer description.
	RemindAt *time.Time `json:"remind_at"` // Trigger time.
	Repeat   string     `json:"repeat"`    // none/daily/weekly/monthly.
}

// parseReminderRepeat validates the wire-level repeat string.
func parseReminderRepeat(raw string) (models.ReminderRepeat, bool) {
	switch models.ReminderRepeat(raw) {
	case models.ReminderRepeatNone, models.ReminderRepeatDaily,
		models.ReminderRepeatWeekly, models.ReminderRepeatMonthly:
		return models.ReminderRepeat(raw), true
	default:
		return "", false
	}
}

// Create inserts a new reminder.
func (h *ReminderHandler) Create(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body reminderRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(body.Title) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}
	if body.RemindAt == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "remind_at is required"})
		return
	}
	repeat := models.ReminderRepeatNone
	if body.Repeat != "" {
		parsed, okRepeat := parseReminderRepeat(body.Repeat)
		if !okRepeat {
			c.JSON(http.StatusBadRequest, gin.H{"error": "repeat must be none, daily, weekly or monthly"})
			return
		}
		repeat = parsed
	}

	reminder := models.Reminder{
		UserID:   userID,
		Title:    strings.TrimSpace(body.Title),
		Note:     body.Note,
		RemindAt: body.RemindAt.UTC(),
		Repeat:   repeat,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&reminder).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create reminder failed"})
		return
	}
	c.JSON(http.StatusCreated, formatReminder(&reminder))
}

// List returns the user's reminders, pending first.
func (h *ReminderHandler) List(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	q := h.db.WithContext(c.Request.Context()).
		Model(&models.Reminder{}).
		Where("user_id = ?", userID)
	switch strings.TrimSpace(c.Query("done")) {
	case "true", "1":
		q = q.Where("done = ?", true)
	case "false", "0":
		q = q.Where("done = ?", false)
	}

	var rows []models.Reminder
	if errFind := q.Order("done ASC, remind_at ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list reminders failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatReminder(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"reminders": out})
}

// Update changes a reminder's fields.
func (h *ReminderHandler) Update(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	reminder, ok := h.load(c, userID)
	if !ok {
		return
	}

	var body reminderRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	updates := map[string]any{}
	if title := strings.TrimSpace(body.Title); title != "" {
		updates["title"] = title
	}
	if body.Note != "" {
		updates["note"] = body.Note
	}
	if body.RemindAt != nil {
		// A moved trigger time clears the dismissed state.
		updates["remind_at"] = body.RemindAt.UTC()
		updates["done"] = false
		updates["triggered_at"] = nil
	}
	if body.Repeat != "" {
		repeat, okRepeat := parseReminderRepeat(body.Repeat)
		if !okRepeat {
			c.JSON(http.StatusBadRequest, gin.H{"error": "repeat must be none, daily, weekly or monthly"})
			return
		}
		updates["repeat"] = repeat
	}

	if len(updates) > 0 {
		if errUpdate := h.db.WithContext(c.Request.Context()).
			Model(reminder).
			Updates(updates).Error; errUpdate != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update reminder failed"})
			return
		}
	}
	c.JSON(http.StatusOK, formatReminder(reminder))
}

// Done dismisses a reminder.
func (h *ReminderHandler) Done(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	reminder, ok := h.load(c, userID)
	if !ok {
		return
	}
	if errUpdate := h.db.WithContext(c.Request.Context()).
		Model(reminder).
		Update("done", true).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update reminder failed"})
		return
	}
	reminder.Done = true
	c.JSON(http.StatusOK, formatReminder(reminder))
}

// Delete removes a reminder.
func (h *ReminderHandler) Delete(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	reminder, ok := h.load(c, userID)
	if !ok {
		return
	}
	if errDelete := h.db.WithContext(c.Request.Context()).Delete(reminder).Error; errDelete != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete reminder failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// load fetches the path-addressed reminder scoped to the user.
func (h *ReminderHandler) load(c *gin.Context, userID uint64) (*models.Reminder, bool) {
	reminderID, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return nil, false
	}
	var reminder models.Reminder
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND user_id = ?", reminderID, userID).
		First(&reminder).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "reminder not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query reminder failed"})
		return nil, false
	}
	return &reminder, true
}

// formatReminder converts a reminder model to a response payload.
func formatReminder(reminder *models.Reminder) gin.H {
	return gin.H{
		"id":           reminder.ID,
		"title":        reminder.Title,
		"note":         reminder.Note,
		"remind_at":    reminder.RemindAt,
		"repeat":       reminder.Repeat,
		"done":         reminder.Done,
		"triggered_at": reminder.TriggeredAt,
		"created_at":   reminder.CreatedAt,
	}
}
