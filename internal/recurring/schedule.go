package recurring

import (
	"time"

	"github.com/fintrack-dev/fintrack/internal/models"
)

// NextRun returns the occurrence following current for the frequency.
// Monthly and yearly advances clamp to the target month's last day, so a
// Jan 31 schedule lands on Feb 28 (or 29) rather than rolling into March.
func NextRun(current time.Time, freq models.Frequency) time.Time {
	switch freq {
	case models.FrequencyDaily:
		return current.Add(24 * time.Hour)
	case models.FrequencyWeekly:
		return current.Add(7 * 24 * time.Hour)
	case models.FrequencyMonthly:
		return addMonthsClamped(current, 1)
	case models.FrequencyYearly:
		return addMonthsClamped(current, 12)
	default:
		return current.Add(24 * time.Hour)
	}
}

// addMonthsClamped advances by whole months without normalization overflow.
func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	targetMonth := time.Month(int(month) + months)
	targetYear := year
	for targetMonth > 12 {
		targetMonth -= 12
		targetYear++
	}
	if last := daysIn(targetYear, targetMonth); day > last {
		day = last
	}
	hour, minute, sec := t.Clock()
	return time.Date(targetYear, targetMonth, day, hour, minute, sec, t.Nanosecond(), t.Location())
}

// daysIn returns the number of days in the month.
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
