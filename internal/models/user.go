package models

import "time"

// Plan identifies a subscription tier.
type Plan string

// Plan constants define the supported subscription tiers.
const (
	// PlanFree is the default tier with fixed resource ceilings.
	PlanFree Plan = "free"
	// PlanPremium lifts every resource ceiling.
	PlanPremium Plan = "premium"
)

// User represents an account together with its billing record.
//
// The limit and usage columns form the per-user plan/limits table: each
// quota-gated resource kind has a ceiling and a running counter. Only the
// monthly transaction counter is time-reset; the other three are running
// totals maintained by explicit increment/decrement calls on create/delete.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Email    string `gorm:"type:text;not null;uniqueIndex"` // Unique login email.
	Name     string `gorm:"type:text"`                      // Display name.
	Password string `gorm:"type:text;not null"`             // Hashed password.

	TOTPSecret string `gorm:"type:text"` // TOTP secret when MFA is enabled.

	Plan            Plan       `gorm:"type:varchar(32);not null;default:'free'"` // Active plan tier.
	PlanExpiry      *time.Time // Premium expiry; set on upgrade, cleared on downgrade.
	SubscribedSince *time.Time // First-ever upgrade time; never reset on renewal.

	StripeCustomerID string `gorm:"type:text;index"` // Payment customer mapping for webhook correlation.

	LimitMonthlyTransactions int64 `gorm:"not null;default:50"` // Monthly transaction ceiling.
	LimitActiveDebts         int64 `gorm:"not null;default:3"`  // Active debt ceiling.
	LimitRecurring           int64 `gorm:"not null;default:2"`  // Recurring transaction ceiling.
	LimitCategories          int64 `gorm:"not null;default:3"`  // Category ceiling.

	UsageMonthlyTransactions int64     `gorm:"not null;default:0"` // Transactions created in the current window.
	UsageActiveDebts         int64     `gorm:"not null;default:0"` // Open debt count.
	UsageRecurring           int64     `gorm:"not null;default:0"` // Recurring template count.
	UsageCategories          int64     `gorm:"not null;default:0"` // Category count.
	UsageLastResetAt         time.Time `gorm:"not null"`           // Start of the current 30-day window.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
