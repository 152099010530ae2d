package models

import "time"

// Frequency defines how often a recurring transaction repeats.
type Frequency string

// Frequency constants define the supported repeat intervals.
const (
	// FrequencyDaily repeats every day.
	FrequencyDaily Frequency = "daily"
	// FrequencyWeekly repeats every seven days.
	FrequencyWeekly Frequency = "weekly"
	// FrequencyMonthly repeats every calendar month, clamped to month end.
	FrequencyMonthly Frequency = "monthly"
	// FrequencyYearly repeats every year, clamped for Feb 29.
	FrequencyYearly Frequency = "yearly"
)

// RecurringTransaction is a template that materializes concrete transactions
// on a schedule.
type RecurringTransaction struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"`    // Owning user ID.
	User   User   `gorm:"foreignKey:UserID"` // Owning user record.

	CategoryID *uint64   `gorm:"index"`                 // Assigned category ID.
	Category   *Category `gorm:"foreignKey:CategoryID"` // Assigned category.

	Type   TransactionType `gorm:"type:varchar(16);not null"`   // Income or expense.
	Amount float64         `gorm:"type:decimal(14,2);not null"` // Amount per occurrence.
	Note   string          `gorm:"type:text"`                   // Free-form note.

	Frequency Frequency `gorm:"type:varchar(16);not null"` // Repeat interval.
	NextRunAt time.Time `gorm:"not null;index"`            // Next materialization time.
	LastRunAt *time.Time // Most recent materialization time.

	// No column default: gorm omits zero-valued fields that carry one, which
	// would silently flip paused templates back to active on insert. Every
	// creation path sets the value explicitly.
	Active bool `gorm:"not null"` // Paused templates are skipped.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
