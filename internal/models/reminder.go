package models

import "time"

// ReminderRepeat defines how a reminder reschedules after triggering.
type ReminderRepeat string

// ReminderRepeat constants define the supported repeat modes.
const (
	// ReminderRepeatNone triggers once.
	ReminderRepeatNone ReminderRepeat = "none"
	// ReminderRepeatDaily reschedules one day ahead.
	ReminderRepeatDaily ReminderRepeat = "daily"
	// ReminderRepeatWeekly reschedules seven days ahead.
	ReminderRepeatWeekly ReminderRepeat = "weekly"
	// ReminderRepeatMonthly reschedules one calendar month ahead.
	ReminderRepeatMonthly ReminderRepeat = "monthly"
)

// Reminder is a user-scheduled note, optionally repeating.
type Reminder struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"`    // Owning user ID.
	User   User   `gorm:"foreignKey:UserID"` // Owning user record.

	Title string `gorm:"type:varchar(255);not null"` // Short reminder text.
	Note  string `gorm:"type:text"`                  // Longer description.

	RemindAt time.Time      `gorm:"not null;index"`                    // Next trigger time.
	Repeat   ReminderRepeat `gorm:"type:varchar(16);default:'none'"`   // Repeat mode.

	Done        bool       `gorm:"not null;default:false"` // Dismissed by the user.
	TriggeredAt *time.Time // Most recent trigger time.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
