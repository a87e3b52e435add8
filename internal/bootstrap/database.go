package bootstrap

import (
	"fmt"

	"gorm.io/gorm"

	"escolapay/internal/models"
)

// Migrate ensures the payment tables exist.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Payment{},
		&models.ReconciliationFlag{},
	); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	return nil
}
