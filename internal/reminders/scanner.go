package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/fintrack-dev/fintrack/internal/models"
	"github.com/fintrack-dev/fintrack/internal/recurring"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Scanner triggers due reminders and reschedules repeating ones.
type Scanner struct {
	db  *gorm.DB
	now func() time.Time
}

// NewScanner constructs a Scanner.
func NewScanner(db *gorm.DB) *Scanner {
	return &Scanner{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Run marks due reminders triggered. One-shot reminders stay due until the
// user dismisses them; repeating reminders advance to the next occurrence.
func (s *Scanner) Run(ctx context.Context) error {
	now := s.now()

	var due []models.Reminder
	if errFind := s.db.WithContext(ctx).
		Where("done = ? AND remind_at <= ? AND (triggered_at IS NULL OR triggered_at < remind_at)", false, now).
		Find(&due).Error; errFind != nil {
		return fmt.Errorf("reminders: load due: %w", errFind)
	}

	for i := range due {
		reminder := &due[i]
		log.WithFields(log.Fields{
			"reminder_id": reminder.ID,
			"user_id":     reminder.UserID,
			"title":       reminder.Title,
		}).Info("reminder due")

		updates := map[string]any{"triggered_at": now}
		if freq, ok := repeatFrequency(reminder.Repeat); ok {
			next := recurring.NextRun(reminder.RemindAt, freq)
			for !next.After(now) {
				next = recurring.NextRun(next, freq)
			}
			updates["remind_at"] = next
		}
		if errUpdate := s.db.WithContext(ctx).
			Model(&models.Reminder{}).
			Where("id = ?", reminder.ID).
			Updates(updates).Error; errUpdate != nil {
			log.WithError(errUpdate).WithField("reminder_id", reminder.ID).Warn("update reminder failed")
		}
	}
	return nil
}

// repeatFrequency maps a reminder repeat mode onto schedule arithmetic.
func repeatFrequency(repeat models.ReminderRepeat) (models.Frequency, bool) {
	switch repeat {
	case models.ReminderRepeatDaily:
		return models.FrequencyDaily, true
	case models.ReminderRepeatWeekly:
		return models.FrequencyWeekly, true
	case models.ReminderRepeatMonthly:
		return models.FrequencyMonthly, true
	default:
		return "", false
	}
}
