package repository

import (
	"gorm.io/gorm"

	"escolapay/internal/models"
)

// ReconciliationRepository handles reconciliation flag operations.
type ReconciliationRepository struct {
	db *gorm.DB
}

func NewReconciliationRepository(db *gorm.DB) *ReconciliationRepository {
	return &ReconciliationRepository{db: db}
}

// Flag records a charge needing manual or sweep reconciliation. Repeated
// deliveries for the same unknown charge collapse into one open flag.
func (r *ReconciliationRepository) Flag(flag *models.ReconciliationFlag) error {
	var count int64
	err := r.db.Model(&models.ReconciliationFlag{}).
		Where("provider_charge_id = ? AND resolved = ?", flag.ProviderChargeID, false).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return r.db.Create(flag).Error
}

// ListUnresolved returns open flags, oldest first.
func (r *ReconciliationRepository) ListUnresolved(limit int) ([]models.ReconciliationFlag, error) {
	if limit <= 0 {
		limit = 100
	}
	var flags []models.ReconciliationFlag
	err := r.db.
		Where("resolved = ?", false).
		Order("created_at ASC").
		Limit(limit).
		Find(&flags).Error
	return flags, err
}

// Resolve marks a flag as handled.
func (r *ReconciliationRepository) Resolve(id uint) error {
	return r.db.Model(&models.ReconciliationFlag{}).
		Where("id = ?", id).
		Update("resolved", true).Error
}
