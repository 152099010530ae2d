package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fintrack-dev/fintrack/internal/models"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrUserNotFound marks an operation against an unknown user ID.
var ErrUserNotFound = errors.New("billing: user not found")

// ErrNotDecrementable marks a decrement of the monthly transaction counter,
// which is a rolling-window counter and never returns quota on deletion.
var ErrNotDecrementable = errors.New("billing: monthly transaction counter is never decremented")

// Service implements the usage and billing accounting operations: limit
// checks, counter mutation, and plan transitions.
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

// NewService constructs a Service backed by GORM.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// CheckResult reports whether an action may be performed and the state the
// decision was made against.
type CheckResult struct {
	CanPerform   bool        `json:"can_perform"`
	CurrentUsage int64       `json:"current_usage"`
	Limit        int64       `json:"limit"`
	Plan         models.Plan `json:"plan"`
	Usage        Usage       `json:"usage"`
	Limits       Limits      `json:"limits"`
}

// PlanInfo is the pure-read view of a user's billing record.
type PlanInfo struct {
	Plan            models.Plan `json:"plan"`
	PlanExpiry      *time.Time  `json:"plan_expiry,omitempty"`
	SubscribedSince *time.Time  `json:"subscribed_since,omitempty"`
	Usage           Usage       `json:"usage"`
	Limits          Limits      `json:"limits"`
}

// loadUser fetches a user row, translating missing rows to ErrUserNotFound.
func (s *Service) loadUser(ctx context.Context, userID uint64) (*models.User, error) {
	var user models.User
	if errFind := s.db.WithContext(ctx).First(&user, userID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("billing: load user: %w", errFind)
	}
	return &user, nil
}

// applyMonthlyReset zeroes the transaction counter when the 30-day window
// has elapsed, persisting before any comparison. Only free users roll the
// window, and only the monthly transaction counter is affected.
func (s *Service) applyMonthlyReset(ctx context.Context, user *models.User) error {
	if user.Plan != models.PlanFree {
		return nil
	}
	now := s.now()
	if now.Sub(user.UsageLastResetAt) <= monthlyWindow {
		return nil
	}
	if errUpdate := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"usage_monthly_transactions": 0,
			"usage_last_reset_at":        now,
		}).Error; errUpdate != nil {
		return fmt.Errorf("billing: reset monthly usage: %w", errUpdate)
	}
	user.UsageMonthlyTransactions = 0
	user.UsageLastResetAt = now
	return nil
}

// CheckLimit reports whether the user may perform the action. Premium users
// always pass without consulting counters; free users pass while the counter
// is strictly below the ceiling, so reaching the ceiling blocks the next
// creation. Hitting the ceiling is not an error.
func (s *Service) CheckLimit(ctx context.Context, userID uint64, action Action) (CheckResult, error) {
	usageCol, _, errCols := action.columns()
	if errCols != nil {
		return CheckResult{}, errCols
	}

	user, errLoad := s.loadUser(ctx, userID)
	if errLoad != nil {
		return CheckResult{}, errLoad
	}
	if errReset := s.applyMonthlyReset(ctx, user); errReset != nil {
		return CheckResult{}, errReset
	}

	current := counterValue(user, usageCol)
	limit := limitValue(user, usageCol)

	result := CheckResult{
		CurrentUsage: current,
		Limit:        limit,
		Plan:         user.Plan,
		Usage:        usageOf(user),
		Limits:       limitsOf(user),
	}
	if user.Plan == models.PlanPremium || IsUnlimited(limit) {
		result.CanPerform = true
		return result, nil
	}
	result.CanPerform = current < limit
	return result, nil
}

// IncrementUsage adds one to the action's counter. No ceiling is enforced
// here; callers are expected to have consulted CheckLimit, or to use
// ReserveUsage when the check and the increment must be one step.
func (s *Service) IncrementUsage(ctx context.Context, userID uint64, action Action) error {
	usageCol, _, errCols := action.columns()
	if errCols != nil {
		return errCols
	}
	res := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update(usageCol, gorm.Expr(usageCol+" + 1"))
	if res.Error != nil {
		return fmt.Errorf("billing: increment %s: %w", action, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// DecrementUsage subtracts one from the action's counter, clamped at zero.
// It applies only to the running-total counters; the monthly transaction
// counter never returns quota on deletion.
func (s *Service) DecrementUsage(ctx context.Context, userID uint64, action Action) error {
	if action == ActionCreateTransaction {
		return ErrNotDecrementable
	}
	usageCol, _, errCols := action.columns()
	if errCols != nil {
		return errCols
	}
	res := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update(usageCol, gorm.Expr("CASE WHEN "+usageCol+" > 0 THEN "+usageCol+" - 1 ELSE 0 END"))
	if res.Error != nil {
		return fmt.Errorf("billing: decrement %s: %w", action, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ReserveUsage checks and increments in a single conditional update, closing
// the check-then-act window between CheckLimit and IncrementUsage. Two
// concurrent reservations at ceiling-1 cannot both pass: the guard is part
// of the UPDATE statement.
func (s *Service) ReserveUsage(ctx context.Context, userID uint64, action Action) (CheckResult, error) {
	usageCol, limitCol, errCols := action.columns()
	if errCols != nil {
		return CheckResult{}, errCols
	}

	user, errLoad := s.loadUser(ctx, userID)
	if errLoad != nil {
		return CheckResult{}, errLoad
	}
	if errReset := s.applyMonthlyReset(ctx, user); errReset != nil {
		return CheckResult{}, errReset
	}

	if user.Plan == models.PlanPremium {
		// Premium skips the ceiling but not the bookkeeping: the running
		// totals keep advancing so a later downgrade still soft-locks
		// users holding more resources than the free ceilings allow.
		res := s.db.WithContext(ctx).
			Model(&models.User{}).
			Where("id = ?", userID).
			Update(usageCol, gorm.Expr(usageCol+" + 1"))
		if res.Error != nil {
			return CheckResult{}, fmt.Errorf("billing: reserve %s: %w", action, res.Error)
		}
		if res.RowsAffected == 0 {
			return CheckResult{}, ErrUserNotFound
		}
		reloaded, errReload := s.loadUser(ctx, userID)
		if errReload != nil {
			return CheckResult{}, errReload
		}
		return CheckResult{
			CanPerform:   true,
			CurrentUsage: counterValue(reloaded, usageCol),
			Limit:        limitValue(reloaded, usageCol),
			Plan:         reloaded.Plan,
			Usage:        usageOf(reloaded),
			Limits:       limitsOf(reloaded),
		}, nil
	}

	res := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND ("+limitCol+" = ? OR "+usageCol+" < "+limitCol+")", userID, Unlimited).
		Update(usageCol, gorm.Expr(usageCol+" + 1"))
	if res.Error != nil {
		return CheckResult{}, fmt.Errorf("billing: reserve %s: %w", action, res.Error)
	}

	reloaded, errReload := s.loadUser(ctx, userID)
	if errReload != nil {
		return CheckResult{}, errReload
	}
	return CheckResult{
		CanPerform:   res.RowsAffected > 0,
		CurrentUsage: counterValue(reloaded, usageCol),
		Limit:        limitValue(reloaded, usageCol),
		Plan:         reloaded.Plan,
		Usage:        usageOf(reloaded),
		Limits:       limitsOf(reloaded),
	}, nil
}

// ReleaseUsage undoes a reservation when the guarded creation fails after
// the counter was already advanced.
func (s *Service) ReleaseUsage(ctx context.Context, userID uint64, action Action) {
	if action == ActionCreateTransaction {
		// The monthly counter is never decremented, even on rollback; a
		// failed creation costs one slot of the rolling window.
		return
	}
	if errDec := s.DecrementUsage(ctx, userID, action); errDec != nil {
		log.WithError(errDec).WithField("user_id", userID).Warn("release reserved usage failed")
	}
}

// UpgradeToPremium switches the user to the premium tier. Every write is an
// absolute set, so redelivered upgrade events land on the same state apart
// from the expiry being recomputed from the latest event.
func (s *Service) UpgradeToPremium(ctx context.Context, userID uint64) error {
	now := s.now()
	expiry := now.Add(premiumPeriod)
	limits := PremiumLimits()
	res := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"plan":                       models.PlanPremium,
			"plan_expiry":                expiry,
			"subscribed_since":           gorm.Expr("COALESCE(subscribed_since, ?)", now),
			"limit_monthly_transactions": limits.MonthlyTransactions,
			"limit_active_debts":         limits.ActiveDebts,
			"limit_recurring":            limits.Recurring,
			"limit_categories":           limits.Categories,
		})
	if res.Error != nil {
		return fmt.Errorf("billing: upgrade: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// DowngradeToFree returns the user to the free tier. Usage counters are left
// untouched: a user above the free ceilings is blocked from new creation
// until usage drops, not stripped of existing data.
func (s *Service) DowngradeToFree(ctx context.Context, userID uint64) error {
	limits := FreeLimits()
	res := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"plan":                       models.PlanFree,
			"plan_expiry":                nil,
			"limit_monthly_transactions": limits.MonthlyTransactions,
			"limit_active_debts":         limits.ActiveDebts,
			"limit_recurring":            limits.Recurring,
			"limit_categories":           limits.Categories,
		})
	if res.Error != nil {
		return fmt.Errorf("billing: downgrade: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// GetPlanInfo returns the user's billing record without side effects.
func (s *Service) GetPlanInfo(ctx context.Context, userID uint64) (PlanInfo, error) {
	user, errLoad := s.loadUser(ctx, userID)
	if errLoad != nil {
		return PlanInfo{}, errLoad
	}
	return PlanInfo{
		Plan:            user.Plan,
		PlanExpiry:      user.PlanExpiry,
		SubscribedSince: user.SubscribedSince,
		Usage:           usageOf(user),
		Limits:          limitsOf(user),
	}, nil
}

// counterValue reads the usage counter matching the column name.
func counterValue(u *models.User, usageCol string) int64 {
	switch usageCol {
	case "usage_monthly_transactions":
		return u.UsageMonthlyTransactions
	case "usage_active_debts":
		return u.UsageActiveDebts
	case "usage_recurring":
		return u.UsageRecurring
	case "usage_categories":
		return u.UsageCategories
	}
	return 0
}

// limitValue reads the ceiling matching the usage column name.
func limitValue(u *models.User, usageCol string) int64 {
	switch usageCol {
	case "usage_monthly_transactions":
		return u.LimitMonthlyTransactions
	case "usage_active_debts":
		return u.LimitActiveDebts
	case "usage_recurring":
		return u.LimitRecurring
	case "usage_categories":
		return u.LimitCategories
	}
	return 0
}
