package reports

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/fintrack-dev/fintrack/internal/db"
	"github.com/fintrack-dev/fintrack/internal/models"

	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	database, errOpen := db.Open(dsn)
	if errOpen != nil {
		t.Fatalf("open database: %v", errOpen)
	}
	if errMigrate := db.Migrate(database); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return NewService(database), database
}

func seedUser(t *testing.T, database *gorm.DB) *models.User {
	t.Helper()
	user := &models.User{Email: t.Name() + "@example.com", Name: "Report User", Password: "x"}
	if err := database.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func seedTx(t *testing.T, database *gorm.DB, userID uint64, txType models.TransactionType, amount float64, date time.Time, categoryID *uint64) {
	t.Helper()
	tx := &models.Transaction{
		UserID: userID,
		Type:   txType,
		Amount: amount,
		Date:   date,
	}
	tx.CategoryID = categoryID
	if err := database.Create(tx).Error; err != nil {
		t.Fatalf("seed transaction: %v", err)
	}
}

func TestMonthlySummary(t *testing.T) {
	svc, database := newTestService(t)
	user := seedUser(t, database)
	ctx := context.Background()

	june := time.Date(2026, time.June, 15, 0, 0, 0, 0, time.UTC)
	seedTx(t, database, user.ID, models.TransactionTypeIncome, 3000, june, nil)
	seedTx(t, database, user.ID, models.TransactionTypeExpense, 1200.50, june, nil)
	seedTx(t, database, user.ID, models.TransactionTypeExpense, 99.50, june, nil)
	// Outside the month, must not count.
	seedTx(t, database, user.ID, models.TransactionTypeExpense, 500, june.AddDate(0, 1, 0), nil)

	summary, err := svc.MonthlySummary(ctx, user.ID, 2026, time.June)
	if err != nil {
		t.Fatalf("monthly summary: %v", err)
	}
	if summary.Income != 3000 {
		t.Fatalf("expected income 3000, got %v", summary.Income)
	}
	if summary.Expense != 1300 {
		t.Fatalf("expected expense 1300, got %v", summary.Expense)
	}
	if summary.Net != 1700 {
		t.Fatalf("expected net 1700, got %v", summary.Net)
	}
}

func TestMonthlySummary_EmptyMonth(t *testing.T) {
	svc, database := newTestService(t)
	user := seedUser(t, database)

	summary, err := svc.MonthlySummary(context.Background(), user.ID, 2026, time.January)
	if err != nil {
		t.Fatalf("monthly summary: %v", err)
	}
	if summary.Income != 0 || summary.Expense != 0 || summary.Net != 0 {
		t.Fatalf("expected zero summary, got %+v", summary)
	}
}

func TestCategoryBreakdown(t *testing.T) {
	svc, database := newTestService(t)
	user := seedUser(t, database)
	ctx := context.Background()

	food := &models.Category{UserID: user.ID, Name: "Food"}
	rent := &models.Category{UserID: user.ID, Name: "Rent"}
	if err := database.Create(food).Error; err != nil {
		t.Fatalf("seed category: %v", err)
	}
	if err := database.Create(rent).Error; err != nil {
		t.Fatalf("seed category: %v", err)
	}

	june := time.Date(2026, time.June, 10, 0, 0, 0, 0, time.UTC)
	seedTx(t, database, user.ID, models.TransactionTypeExpense, 300, june, &food.ID)
	seedTx(t, database, user.ID, models.TransactionTypeExpense, 600, june, &rent.ID)
	seedTx(t, database, user.ID, models.TransactionTypeExpense, 100, june, nil)
	// Income must be excluded from the breakdown.
	seedTx(t, database, user.ID, models.TransactionTypeIncome, 5000, june, nil)

	slices, err := svc.CategoryBreakdown(ctx, user.ID, 2026, time.June)
	if err != nil {
		t.Fatalf("category breakdown: %v", err)
	}
	if len(slices) != 3 {
		t.Fatalf("expected 3 slices, got %d: %+v", len(slices), slices)
	}
	if slices[0].CategoryName != "Rent" || slices[0].Total != 600 {
		t.Fatalf("expected Rent 600 first, got %+v", slices[0])
	}
	if math.Abs(slices[0].Percent-60) > 0.001 {
		t.Fatalf("expected Rent at 60%%, got %v", slices[0].Percent)
	}

	var uncategorized *CategorySlice
	for i := range slices {
		if slices[i].CategoryID == nil {
			uncategorized = &slices[i]
		}
	}
	if uncategorized == nil {
		t.Fatalf("expected an uncategorized slice, got %+v", slices)
	}
	if uncategorized.CategoryName != "uncategorized" || uncategorized.Total != 100 {
		t.Fatalf("unexpected uncategorized slice: %+v", uncategorized)
	}
}

func TestTrend(t *testing.T) {
	svc, database := newTestService(t)
	user := seedUser(t, database)
	ctx := context.Background()

	now := time.Date(2026, time.March, 31, 12, 0, 0, 0, time.UTC)
	seedTx(t, database, user.ID, models.TransactionTypeIncome, 100, time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC), nil)
	seedTx(t, database, user.ID, models.TransactionTypeExpense, 40, time.Date(2026, time.February, 5, 0, 0, 0, 0, time.UTC), nil)
	seedTx(t, database, user.ID, models.TransactionTypeIncome, 200, time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC), nil)

	points, err := svc.Trend(ctx, user.ID, 3, now)
	if err != nil {
		t.Fatalf("trend: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}
	if points[0].Month != 1 || points[0].Income != 100 {
		t.Fatalf("unexpected January point: %+v", points[0])
	}
	if points[1].Month != 2 || points[1].Expense != 40 {
		t.Fatalf("unexpected February point: %+v", points[1])
	}
	if points[2].Month != 3 || points[2].Income != 200 {
		t.Fatalf("unexpected March point: %+v", points[2])
	}
}
