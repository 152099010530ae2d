package recurring

import (
	"context"
	"fmt"
	"time"

	"github.com/fintrack-dev/fintrack/internal/billing"
	"github.com/fintrack-dev/fintrack/internal/models"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Materializer turns due recurring templates into concrete transactions.
type Materializer struct {
	db      *gorm.DB
	billing *billing.Service
	now     func() time.Time
}

// NewMaterializer constructs a Materializer.
func NewMaterializer(db *gorm.DB, billingSvc *billing.Service) *Materializer {
	return &Materializer{
		db:      db,
		billing: billingSvc,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Run materializes every due active template once and advances its schedule.
// Background writes count against the monthly transaction counter but are
// never quota-blocked: dropping a user's scheduled money record silently
// would lose data the user already committed to.
func (m *Materializer) Run(ctx context.Context) error {
	now := m.now()

	var due []models.RecurringTransaction
	if errFind := m.db.WithContext(ctx).
		Where("active = ? AND next_run_at <= ?", true, now).
		Order("next_run_at ASC").
		Find(&due).Error; errFind != nil {
		return fmt.Errorf("recurring: load due templates: %w", errFind)
	}

	for i := range due {
		if errOne := m.materialize(ctx, &due[i], now); errOne != nil {
			log.WithError(errOne).
				WithField("recurring_id", due[i].ID).
				Warn("materialize recurring transaction failed")
		}
	}
	return nil
}

// materialize inserts one transaction and advances the template schedule.
func (m *Materializer) materialize(ctx context.Context, tmpl *models.RecurringTransaction, now time.Time) error {
	templateID := tmpl.ID
	next := NextRun(tmpl.NextRunAt, tmpl.Frequency)
	// Catch up past-due schedules without generating a backlog of rows.
	for !next.After(now) {
		next = NextRun(next, tmpl.Frequency)
	}

	row := models.Transaction{
		UserID:                 tmpl.UserID,
		CategoryID:             tmpl.CategoryID,
		Type:                   tmpl.Type,
		Amount:                 tmpl.Amount,
		Note:                   tmpl.Note,
		Date:                   tmpl.NextRunAt,
		Source:                 "recurring",
		RecurringTransactionID: &templateID,
	}

	if errTx := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errCreate := tx.Create(&row).Error; errCreate != nil {
			return errCreate
		}
		return tx.Model(&models.RecurringTransaction{}).
			Where("id = ?", tmpl.ID).
			Updates(map[string]any{
				"next_run_at": next,
				"last_run_at": now,
			}).Error
	}); errTx != nil {
		return errTx
	}

	if errInc := m.billing.IncrementUsage(ctx, tmpl.UserID, billing.ActionCreateTransaction); errInc != nil {
		log.WithError(errInc).
			WithField("user_id", tmpl.UserID).
			Warn("increment usage for materialized transaction failed")
	}
	return nil
}
