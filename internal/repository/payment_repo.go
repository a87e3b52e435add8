package repository

import (
	"time"

	"gorm.io/gorm"

	"escolapay/internal/models"
)

// PaymentRepository handles payment database operations.
type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create inserts a new payment record.
func (r *PaymentRepository) Create(payment *models.Payment) error {
	return r.db.Create(payment).Error
}

// FindByID returns a payment by its local id.
func (r *PaymentRepository) FindByID(id string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.Where("id = ?", id).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindByChargeID returns a payment by the provider charge id.
func (r *PaymentRepository) FindByChargeID(chargeID string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.Where("provider_charge_id = ?", chargeID).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// ApplyEvent performs the guarded mutation for one webhook event. The update
// only lands when the row still carries the sequence and hash the caller read,
// so two concurrently delivered events for the same charge cannot both apply.
// Returns false when the row moved underneath the caller.
func (r *PaymentRepository) ApplyEvent(chargeID string, expectSequence int64, expectHash string, updates map[string]interface{}) (bool, error) {
	res := r.db.Model(&models.Payment{}).
		Where("provider_charge_id = ? AND last_event_sequence = ? AND last_event_hash = ?",
			chargeID, expectSequence, expectHash).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListStalePending returns PENDING payments created before the cutoff,
// candidates for a reconciliation sweep.
func (r *PaymentRepository) ListStalePending(cutoff time.Time, limit int) ([]models.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	var payments []models.Payment
	err := r.db.
		Where("status = ? AND created_at < ?", models.StatusPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&payments).Error
	return payments, err
}
