package reminders

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/fintrack-dev/fintrack/internal/db"
	"github.com/fintrack-dev/fintrack/internal/models"

	"gorm.io/gorm"
)

func newTestScanner(t *testing.T, now time.Time) (*Scanner, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	database, errOpen := db.Open(dsn)
	if errOpen != nil {
		t.Fatalf("open database: %v", errOpen)
	}
	if errMigrate := db.Migrate(database); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	scanner := NewScanner(database)
	scanner.now = func() time.Time { return now }
	return scanner, database
}

func seedReminderUser(t *testing.T, database *gorm.DB) *models.User {
	t.Helper()
	user := &models.User{Email: t.Name() + "@example.com", Password: "x"}
	if err := database.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func TestScanner_TriggersDueReminder(t *testing.T) {
	now := time.Date(2026, time.July, 1, 9, 0, 0, 0, time.UTC)
	scanner, database := newTestScanner(t, now)
	user := seedReminderUser(t, database)

	due := models.Reminder{
		UserID:   user.ID,
		Title:    "pay rent",
		RemindAt: now.Add(-time.Hour),
		Repeat:   models.ReminderRepeatNone,
	}
	notDue := models.Reminder{
		UserID:   user.ID,
		Title:    "later",
		RemindAt: now.Add(time.Hour),
		Repeat:   models.ReminderRepeatNone,
	}
	if err := database.Create(&due).Error; err != nil {
		t.Fatalf("seed reminder: %v", err)
	}
	if err := database.Create(&notDue).Error; err != nil {
		t.Fatalf("seed reminder: %v", err)
	}

	if errRun := scanner.Run(context.Background()); errRun != nil {
		t.Fatalf("run: %v", errRun)
	}

	var reloaded models.Reminder
	if err := database.First(&reloaded, due.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.TriggeredAt == nil || !reloaded.TriggeredAt.Equal(now) {
		t.Fatalf("expected triggered_at=%v, got %v", now, reloaded.TriggeredAt)
	}
	if reloaded.Done {
		t.Fatalf("one-shot reminder must stay pending until dismissed")
	}

	reloaded = models.Reminder{}
	if err := database.First(&reloaded, notDue.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.TriggeredAt != nil {
		t.Fatalf("future reminder must not trigger")
	}
}

func TestScanner_DoesNotRetriggerUntilRescheduled(t *testing.T) {
	now := time.Date(2026, time.July, 1, 9, 0, 0, 0, time.UTC)
	scanner, database := newTestScanner(t, now)
	user := seedReminderUser(t, database)

	reminder := models.Reminder{
		UserID:   user.ID,
		Title:    "water plants",
		RemindAt: now.Add(-time.Minute),
		Repeat:   models.ReminderRepeatNone,
	}
	if err := database.Create(&reminder).Error; err != nil {
		t.Fatalf("seed reminder: %v", err)
	}

	if errRun := scanner.Run(context.Background()); errRun != nil {
		t.Fatalf("first run: %v", errRun)
	}
	first := fetchTriggeredAt(t, database, reminder.ID)

	scanner.now = func() time.Time { return now.Add(time.Minute) }
	if errRun := scanner.Run(context.Background()); errRun != nil {
		t.Fatalf("second run: %v", errRun)
	}
	second := fetchTriggeredAt(t, database, reminder.ID)
	if !first.Equal(*second) {
		t.Fatalf("already-triggered reminder retriggered: %v vs %v", first, second)
	}
}

func TestScanner_RepeatingReminderAdvances(t *testing.T) {
	now := time.Date(2026, time.July, 1, 9, 0, 0, 0, time.UTC)
	scanner, database := newTestScanner(t, now)
	user := seedReminderUser(t, database)

	reminder := models.Reminder{
		UserID:   user.ID,
		Title:    "weekly review",
		RemindAt: now.Add(-time.Hour),
		Repeat:   models.ReminderRepeatWeekly,
	}
	if err := database.Create(&reminder).Error; err != nil {
		t.Fatalf("seed reminder: %v", err)
	}

	if errRun := scanner.Run(context.Background()); errRun != nil {
		t.Fatalf("run: %v", errRun)
	}

	var reloaded models.Reminder
	if err := database.First(&reloaded, reminder.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !reloaded.RemindAt.After(now) {
		t.Fatalf("repeating reminder must advance past now, got %v", reloaded.RemindAt)
	}
	want := reminder.RemindAt.Add(7 * 24 * time.Hour)
	if !reloaded.RemindAt.Equal(want) {
		t.Fatalf("expected next occurrence %v, got %v", want, reloaded.RemindAt)
	}
}

func fetchTriggeredAt(t *testing.T, database *gorm.DB, id uint64) *time.Time {
	t.Helper()
	var reminder models.Reminder
	if err := database.First(&reminder, id).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	return reminder.TriggeredAt
}
