package billing

import (
	"time"

	"github.com/fintrack-dev/fintrack/internal/models"
)

// Unlimited marks a ceiling that is never enforced. It is an explicit tagged
// value rather than a large magic number so that nothing ever computes a
// percentage against a sentinel.
const Unlimited int64 = -1

// Free-tier ceilings per resource kind.
const (
	// FreeMonthlyTransactions is the free-tier transaction ceiling per window.
	FreeMonthlyTransactions int64 = 50
	// FreeActiveDebts is the free-tier open debt ceiling.
	FreeActiveDebts int64 = 3
	// FreeRecurring is the free-tier recurring template ceiling.
	FreeRecurring int64 = 2
	// FreeCategories is the free-tier category ceiling.
	FreeCategories int64 = 3
)

// monthlyWindow is the fixed rolling reset window for the transaction
// counter. It is 30 days exactly, not calendar-month-aware.
const monthlyWindow = 30 * 24 * time.Hour

// premiumPeriod is the plan extension applied on each upgrade event.
const premiumPeriod = 30 * 24 * time.Hour

// IsUnlimited reports whether the ceiling is the explicit unlimited value.
func IsUnlimited(limit int64) bool {
	return limit == Unlimited
}

// Limits holds the per-resource ceilings of a user.
type Limits struct {
	MonthlyTransactions int64 `json:"monthly_transactions"`
	ActiveDebts         int64 `json:"active_debts"`
	Recurring           int64 `json:"recurring_transactions"`
	Categories          int64 `json:"categories"`
}

// Usage holds the current per-resource counters of a user.
type Usage struct {
	MonthlyTransactions int64     `json:"monthly_transactions"`
	ActiveDebts         int64     `json:"active_debts"`
	Recurring           int64     `json:"recurring_transactions"`
	Categories          int64     `json:"categories"`
	LastResetAt         time.Time `json:"last_reset_at"`
}

// FreeLimits returns the fixed free-tier ceilings.
func FreeLimits() Limits {
	return Limits{
		MonthlyTransactions: FreeMonthlyTransactions,
		ActiveDebts:         FreeActiveDebts,
		Recurring:           FreeRecurring,
		Categories:          FreeCategories,
	}
}

// PremiumLimits returns ceilings with every resource unlimited.
func PremiumLimits() Limits {
	return Limits{
		MonthlyTransactions: Unlimited,
		ActiveDebts:         Unlimited,
		Recurring:           Unlimited,
		Categories:          Unlimited,
	}
}

// limitsOf extracts the ceilings from a user row.
func limitsOf(u *models.User) Limits {
	return Limits{
		MonthlyTransactions: u.LimitMonthlyTransactions,
		ActiveDebts:         u.LimitActiveDebts,
		Recurring:           u.LimitRecurring,
		Categories:          u.LimitCategories,
	}
}

// usageOf extracts the counters from a user row.
func usageOf(u *models.User) Usage {
	return Usage{
		MonthlyTransactions: u.UsageMonthlyTransactions,
		ActiveDebts:         u.UsageActiveDebts,
		Recurring:           u.UsageRecurring,
		Categories:          u.UsageCategories,
		LastResetAt:         u.UsageLastResetAt,
	}
}
