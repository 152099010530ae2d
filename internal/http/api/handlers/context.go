package handlers

import (
	"github.com/fintrack-dev/fintrack/internal/models"

	"github.com/gin-gonic/gin"
)

// Context keys populated by the auth middleware.
const (
	// ContextUserIDKey holds the authenticated user ID.
	ContextUserIDKey = "userID"
	// ContextUserKey holds the loaded user record.
	ContextUserKey = "user"
)

// getUserID returns the authenticated user ID, or zero when unauthenticated.
func getUserID(c *gin.Context) uint64 {
	v, ok := c.Get(ContextUserIDKey)
	if !ok {
		return 0
	}
	id, ok := v.(uint64)
	if !ok {
		return 0
	}
	return id
}

// currentUser returns the user record loaded by the auth middleware.
func currentUser(c *gin.Context) *models.User {
	v, ok := c.Get(ContextUserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}
