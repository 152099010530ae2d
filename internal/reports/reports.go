package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/fintrack-dev/fintrack/internal/models"

	"gorm.io/gorm"
)

// Service computes aggregate views over a user's transactions.
type Service struct {
	db *gorm.DB
}

// NewService constructs a reports Service.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// MonthlySummary holds income, expense and net totals for one month.
type MonthlySummary struct {
	Year    int     `json:"year"`
	Month   int     `json:"month"`
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
	Net     float64 `json:"net"`
}

// CategorySlice holds one category's share of monthly expenses.
type CategorySlice struct {
	CategoryID   *uint64 `json:"category_id"`
	CategoryName string  `json:"category_name"`
	Total        float64 `json:"total"`
	Percent      float64 `json:"percent"`
}

// TrendPoint holds one month of the income/expense trend.
type TrendPoint struct {
	Year    int     `json:"year"`
	Month   int     `json:"month"`
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
}

// monthRange returns the UTC start (inclusive) and end (exclusive) of a month.
func monthRange(year int, month time.Month) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// sumByType totals transaction amounts of one type inside a date range.
func (s *Service) sumByType(ctx context.Context, userID uint64, txType models.TransactionType, from, to time.Time) (float64, error) {
	var total float64
	errSum := s.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("user_id = ? AND type = ? AND date >= ? AND date < ?", userID, txType, from, to).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	if errSum != nil {
		return 0, fmt.Errorf("reports: sum %s: %w", txType, errSum)
	}
	return total, nil
}

// MonthlySummary returns income, expense and net totals for the given month.
func (s *Service) MonthlySummary(ctx context.Context, userID uint64, year int, month time.Month) (MonthlySummary, error) {
	from, to := monthRange(year, month)

	income, errIncome := s.sumByType(ctx, userID, models.TransactionTypeIncome, from, to)
	if errIncome != nil {
		return MonthlySummary{}, errIncome
	}
	expense, errExpense := s.sumByType(ctx, userID, models.TransactionTypeExpense, from, to)
	if errExpense != nil {
		return MonthlySummary{}, errExpense
	}

	return MonthlySummary{
		Year:    year,
		Month:   int(month),
		Income:  income,
		Expense: expense,
		Net:     income - expense,
	}, nil
}

// CategoryBreakdown returns per-category expense totals for the given month,
// with each slice's percentage of the month's total expenses. Transactions
// without a category are grouped under "uncategorized".
func (s *Service) CategoryBreakdown(ctx context.Context, userID uint64, year int, month time.Month) ([]CategorySlice, error) {
	from, to := monthRange(year, month)

	var rows []CategorySlice
	errGroup := s.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Select("transactions.category_id AS category_id, COALESCE(categories.name, 'uncategorized') AS category_name, SUM(transactions.amount) AS total").
		Joins("LEFT JOIN categories ON categories.id = transactions.category_id").
		Where("transactions.user_id = ? AND transactions.type = ? AND transactions.date >= ? AND transactions.date < ?",
			userID, models.TransactionTypeExpense, from, to).
		Group("transactions.category_id, categories.name").
		Order("total DESC").
		Scan(&rows).Error
	if errGroup != nil {
		return nil, fmt.Errorf("reports: category breakdown: %w", errGroup)
	}

	var grand float64
	for i := range rows {
		grand += rows[i].Total
	}
	if grand > 0 {
		for i := range rows {
			rows[i].Percent = rows[i].Total / grand * 100
		}
	}
	return rows, nil
}

// Trend returns income and expense totals for the last `months` months,
// oldest first, ending with the month containing `now`.
func (s *Service) Trend(ctx context.Context, userID uint64, months int, now time.Time) ([]TrendPoint, error) {
	if months <= 0 {
		months = 6
	}

	points := make([]TrendPoint, 0, months)
	for i := months - 1; i >= 0; i-- {
		// time.Date normalizes out-of-range months, so stepping back from
		// the first of the current month is safe at year boundaries.
		anchor := time.Date(now.Year(), now.Month()-time.Month(i), 1, 0, 0, 0, 0, time.UTC)
		from, to := monthRange(anchor.Year(), anchor.Month())

		income, errIncome := s.sumByType(ctx, userID, models.TransactionTypeIncome, from, to)
		if errIncome != nil {
			return nil, errIncome
		}
		expense, errExpense := s.sumByType(ctx, userID, models.TransactionTypeExpense, from, to)
		if errExpense != nil {
			return nil, errExpense
		}
		points = append(points, TrendPoint{
			Year:    from.Year(),
			Month:   int(from.Month()),
			Income:  income,
			Expense: expense,
		})
	}
	return points, nil
}
