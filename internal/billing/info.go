package billing

// Alert thresholds for client-facing usage warnings.
const (
	// NearLimitThreshold is the usage percentage treated as "near limit".
	NearLimitThreshold = 80.0
	// AtLimitThreshold is the usage percentage treated as "at limit".
	AtLimitThreshold = 100.0
)

// UsagePercent returns usage as a percentage of the ceiling. Unlimited
// ceilings report zero: there is no meaningful percentage of an uncapped
// resource. A zero ceiling with any usage reports 100.
func UsagePercent(usage, limit int64) float64 {
	if IsUnlimited(limit) {
		return 0
	}
	if limit <= 0 {
		if usage > 0 {
			return 100
		}
		return 0
	}
	return float64(usage) / float64(limit) * 100
}

// NearLimit reports whether usage has crossed the warning threshold.
func NearLimit(usage, limit int64) bool {
	if IsUnlimited(limit) {
		return false
	}
	return UsagePercent(usage, limit) >= NearLimitThreshold
}

// AtLimit reports whether usage has reached or passed the ceiling.
func AtLimit(usage, limit int64) bool {
	if IsUnlimited(limit) {
		return false
	}
	return UsagePercent(usage, limit) >= AtLimitThreshold
}

// ResourcePercents is the derived, non-persisted view recomputed on read.
type ResourcePercents struct {
	MonthlyTransactions float64 `json:"monthly_transactions"`
	ActiveDebts         float64 `json:"active_debts"`
	Recurring           float64 `json:"recurring_transactions"`
	Categories          float64 `json:"categories"`
}

// Percents computes per-resource usage percentages for a plan info view.
func Percents(info PlanInfo) ResourcePercents {
	return ResourcePercents{
		MonthlyTransactions: UsagePercent(info.Usage.MonthlyTransactions, info.Limits.MonthlyTransactions),
		ActiveDebts:         UsagePercent(info.Usage.ActiveDebts, info.Limits.ActiveDebts),
		Recurring:           UsagePercent(info.Usage.Recurring, info.Limits.Recurring),
		Categories:          UsagePercent(info.Usage.Categories, info.Limits.Categories),
	}
}
