package models

import "time"

// DebtDirection indicates which side of a debt the user is on.
type DebtDirection string

// DebtDirection constants define the supported debt directions.
const (
	// DebtDirectionOwedToMe marks money a contact owes the user.
	DebtDirectionOwedToMe DebtDirection = "owed_to_me"
	// DebtDirectionIOwe marks money the user owes a contact.
	DebtDirectionIOwe DebtDirection = "i_owe"
)

// Debt tracks money owed to or by a contact.
type Debt struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"`    // Owning user ID.
	User   User   `gorm:"foreignKey:UserID"` // Owning user record.

	Contact   string        `gorm:"type:varchar(255);not null"` // Counterparty name.
	Direction DebtDirection `gorm:"type:varchar(16);not null"`  // Which side the user is on.

	Amount     float64 `gorm:"type:decimal(14,2);not null"`           // Original amount.
	PaidAmount float64 `gorm:"type:decimal(14,2);not null;default:0"` // Amount repaid so far.

	Note    string     // Free-form note.
	DueDate *time.Time // Optional due date.

	Settled   bool       `gorm:"not null;default:false"` // Fully repaid.
	SettledAt *time.Time // When the debt was settled.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
