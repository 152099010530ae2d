package models

import "time"

// Category labels transactions for reporting.
type Category struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"`    // Owning user ID.
	User   User   `gorm:"foreignKey:UserID"` // Owning user record.

	Name  string `gorm:"type:varchar(255);not null"` // Display name.
	Icon  string `gorm:"type:varchar(64)"`           // Icon identifier.
	Color string `gorm:"type:varchar(32)"`           // Display color.

	IsDefault bool `gorm:"not null;default:false"` // Seeded at registration.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
