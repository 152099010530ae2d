package models

import "time"

// TransactionType distinguishes income from expense rows.
type TransactionType string

// TransactionType constants define the supported transaction kinds.
const (
	// TransactionTypeIncome marks money coming in.
	TransactionTypeIncome TransactionType = "income"
	// TransactionTypeExpense marks money going out.
	TransactionTypeExpense TransactionType = "expense"
)

// Transaction records a single income or expense entry.
type Transaction struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"`    // Owning user ID.
	User   User   `gorm:"foreignKey:UserID"` // Owning user record.

	CategoryID *uint64   `gorm:"index"`                 // Assigned category ID.
	Category   *Category `gorm:"foreignKey:CategoryID"` // Assigned category.

	Type   TransactionType `gorm:"type:varchar(16);not null"`       // Income or expense.
	Amount float64         `gorm:"type:decimal(14,2);not null"`     // Transaction amount.
	Note   string          `gorm:"type:text"`                       // Free-form note.
	Date   time.Time       `gorm:"not null;index"`                  // Effective date.
	Source string          `gorm:"type:varchar(32);default:'user'"` // "user" or "recurring".

	RecurringTransactionID *uint64 `gorm:"index"` // Template that materialized this row, if any.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
