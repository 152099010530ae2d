package db

import (
	"fmt"

	"github.com/fintrack-dev/fintrack/internal/models"

	"gorm.io/gorm"
)

// Migrate applies the schema for all application entities.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	if errAutoMigrate := conn.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Transaction{},
		&models.Debt{},
		&models.RecurringTransaction{},
		&models.Reminder{},
		&models.WebhookEvent{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}
	return nil
}
