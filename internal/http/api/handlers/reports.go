package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fintrack-dev/fintrack/internal/reports"
)

// ReportsHandler exposes aggregate spending views.
type ReportsHandler struct {
	reports *reports.Service
}

// NewReportsHandler constructs a ReportsHandler.
func NewReportsHandler(reportsSvc *reports.Service) *ReportsHandler {
	return &ReportsHandler{reports: reportsSvc}
}

// reportMonth reads year/month query params, defaulting to the current month.
func reportMonth(c *gin.Context) (int, time.Month) {
	now := time.Now().UTC()
	year := now.Year()
	month := now.Month()
	if yearQ := c.Query("year"); yearQ != "" {
		if parsed, errParse := strconv.Atoi(yearQ); errParse == nil && parsed > 0 {
			year = parsed
		}
	}
	if monthQ := c.Query("month"); monthQ != "" {
		if parsed, errParse := strconv.Atoi(monthQ); errParse == nil && parsed >= 1 && parsed <= 12 {
			month = time.Month(parsed)
		}
	}
	return year, month
}

// Summary returns income/expense/net totals for a month.
func (h *ReportsHandler) Summary(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	year, month := reportMonth(c)
	summary, errSummary := h.reports.MonthlySummary(c.Request.Context(), userID, year, month)
	if errSummary != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "build summary failed"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Categories returns the per-category expense breakdown for a month.
func (h *ReportsHandler) Categories(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	year, month := reportMonth(c)
	slices, errBreakdown := h.reports.CategoryBreakdown(c.Request.Context(), userID, year, month)
	if errBreakdown != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "build breakdown failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": slices, "year": year, "month": int(month)})
}

// Trend returns the income/expense trend over recent months.
func (h *ReportsHandler) Trend(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	months := 6
	if monthsQ := c.Query("months"); monthsQ != "" {
		if parsed, errParse := strconv.Atoi(monthsQ); errParse == nil && parsed >= 1 && parsed <= 24 {
			months = parsed
		}
	}
	points, errTrend := h.reports.Trend(c.Request.Context(), userID, months, time.Now().UTC())
	if errTrend != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "build trend failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trend": points})
}
