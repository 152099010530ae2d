package recurring

import (
	"testing"
	"time"

	"github.com/fintrack-dev/fintrack/internal/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 0, 0, 0, time.UTC)
}

func TestNextRun_DailyWeekly(t *testing.T) {
	start := date(2025, time.March, 10)
	if got := NextRun(start, models.FrequencyDaily); !got.Equal(date(2025, time.March, 11)) {
		t.Fatalf("daily: got %s", got)
	}
	if got := NextRun(start, models.FrequencyWeekly); !got.Equal(date(2025, time.March, 17)) {
		t.Fatalf("weekly: got %s", got)
	}
}

func TestNextRun_MonthlyClampsToMonthEnd(t *testing.T) {
	if got := NextRun(date(2025, time.January, 31), models.FrequencyMonthly); !got.Equal(date(2025, time.February, 28)) {
		t.Fatalf("jan 31 -> got %s", got)
	}
	// Leap year.
	if got := NextRun(date(2024, time.January, 31), models.FrequencyMonthly); !got.Equal(date(2024, time.February, 29)) {
		t.Fatalf("leap jan 31 -> got %s", got)
	}
	if got := NextRun(date(2025, time.March, 31), models.FrequencyMonthly); !got.Equal(date(2025, time.April, 30)) {
		t.Fatalf("mar 31 -> got %s", got)
	}
	// December rolls into the next year.
	if got := NextRun(date(2025, time.December, 15), models.FrequencyMonthly); !got.Equal(date(2026, time.January, 15)) {
		t.Fatalf("dec 15 -> got %s", got)
	}
}

func TestNextRun_YearlyClampsFeb29(t *testing.T) {
	if got := NextRun(date(2024, time.February, 29), models.FrequencyYearly); !got.Equal(date(2025, time.February, 28)) {
		t.Fatalf("feb 29 -> got %s", got)
	}
	if got := NextRun(date(2025, time.June, 1), models.FrequencyYearly); !got.Equal(date(2026, time.June, 1)) {
		t.Fatalf("jun 1 -> got %s", got)
	}
}
