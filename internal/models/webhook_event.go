package models

import (
	"time"

	"gorm.io/datatypes"
)

// WebhookEvent records a received payment-platform event for audit.
//
// Delivery is at-least-once and this table does not deduplicate; the event
// handlers stay idempotent on their own (absolute sets, not increments).
type WebhookEvent struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ReceiptID string `gorm:"type:varchar(64);not null;index"` // Correlation ID assigned at receipt.
	EventID   string `gorm:"type:varchar(255);not null;index"` // Provider event ID.
	EventType string `gorm:"type:varchar(255);not null"`       // Provider event type.

	Payload datatypes.JSON `gorm:"type:jsonb"` // Raw event object payload.

	Handled bool   `gorm:"not null;default:false"` // Whether dispatch mutated state.
	Outcome string `gorm:"type:varchar(255)"`      // Short dispatch result note.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Receipt timestamp.
}
