package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"escolapay/internal/models"
	"escolapay/internal/repository"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.Payment{}, &models.ReconciliationFlag{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestApplier(t *testing.T, db *gorm.DB) *Applier {
	t.Helper()
	return NewApplier(
		repository.NewPaymentRepository(db),
		repository.NewReconciliationRepository(db),
		nil,
		zap.NewNop(),
	)
}

func insertPending(t *testing.T, db *gorm.DB, chargeID string, amount float64) {
	t.Helper()
	err := db.Create(&models.Payment{
		ID:               "local-" + chargeID,
		ProviderChargeID: chargeID,
		Amount:           amount,
		DueDate:          "2025-12-01",
		Description:      "Tuition",
		BillingMethod:    "BOLETO",
		Status:           models.StatusPending,
	}).Error
	require.NoError(t, err)
}

func eventBody(t *testing.T, event, chargeID, paymentDate, dateCreated string, value *float64) []byte {
	t.Helper()
	raw, err := json.Marshal(models.WebhookEvent{
		Event: event,
		Payment: models.WebhookPayment{
			ProviderChargeID: chargeID,
			PaymentDate:      paymentDate,
			DateCreated:      dateCreated,
			Value:            value,
		},
	})
	require.NoError(t, err)
	return raw
}

func loadPayment(t *testing.T, db *gorm.DB, chargeID string) *models.Payment {
	t.Helper()
	var payment models.Payment
	require.NoError(t, db.Where("provider_charge_id = ?", chargeID).First(&payment).Error)
	return &payment
}

func TestApplyReceivedSetsStatusAndPaidDate(t *testing.T) {
	db := setupTestDB(t)
	applier := newTestApplier(t, db)
	insertPending(t, db, "pay_1", 150.00)

	raw := eventBody(t, "PAYMENT_RECEIVED", "pay_1", "2025-01-10", "2025-01-10 09:00:00", nil)
	outcome, err := applier.Apply(context.Background(), raw)

	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	payment := loadPayment(t, db, "pay_1")
	assert.Equal(t, models.StatusReceived, payment.Status)
	require.NotNil(t, payment.PaidDate)
	assert.Equal(t, "2025-01-10", *payment.PaidDate)
	assert.NotZero(t, payment.LastEventSequence)
}

func TestApplySameEventTwiceIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	applier := newTestApplier(t, db)
	insertPending(t, db, "pay_2", 80.00)

	raw := eventBody(t, "PAYMENT_RECEIVED", "pay_2", "2025-01-10", "2025-01-10 09:00:00", nil)

	first, err := applier.Apply(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, first)
	after := loadPayment(t, db, "pay_2")

	second, err := applier.Apply(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, second)

	final := loadPayment(t, db, "pay_2")
	assert.Equal(t, after.Status, final.Status)
	assert.Equal(t, after.PaidDate, final.PaidDate)
	assert.Equal(t, after.LastEventSequence, final.LastEventSequence)
	assert.Equal(t, after.LastEventHash, final.LastEventHash)
}

func TestStaleEventDoesNotRegressStatus(t *testing.T) {
	db := setupTestDB(t)
	applier := newTestApplier(t, db)
	insertPending(t, db, "pay_3", 200.00)

	received := eventBody(t, "PAYMENT_RECEIVED", "pay_3", "2025-01-10", "2025-01-10 09:00:00", nil)
	outcome, err := applier.Apply(context.Background(), received)
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, outcome)

	newAmount := 210.00
	updated := eventBody(t, "PAYMENT_UPDATED", "pay_3", "", "2025-01-11 09:00:00", &newAmount)
	outcome, err = applier.Apply(context.Background(), updated)
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, outcome)

	// An older RECEIVED delivery arriving after UPDATED must be discarded.
	lateReceived := eventBody(t, "PAYMENT_RECEIVED", "pay_3", "2025-01-09", "2025-01-09 09:00:00", nil)
	outcome, err = applier.Apply(context.Background(), lateReceived)
	require.NoError(t, err)
	assert.Equal(t, OutcomeStale, outcome)

	payment := loadPayment(t, db, "pay_3")
	assert.Equal(t, models.StatusUpdated, payment.Status)
	assert.Equal(t, 210.00, payment.Amount)
}

func TestUpdatedEventMergesCorrectedFields(t *testing.T) {
	db := setupTestDB(t)
	applier := newTestApplier(t, db)
	insertPending(t, db, "pay_4", 100.00)

	corrected := 95.50
	raw := eventBody(t, "PAYMENT_UPDATED", "pay_4", "", "2025-02-01 12:00:00", &corrected)
	outcome, err := applier.Apply(context.Background(), raw)

	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	payment := loadPayment(t, db, "pay_4")
	assert.Equal(t, models.StatusUpdated, payment.Status)
	assert.Equal(t, 95.50, payment.Amount)
	assert.Nil(t, payment.PaidDate)
}

func TestUnrecognizedEventTypeIsIgnored(t *testing.T) {
	db := setupTestDB(t)
	applier := newTestApplier(t, db)
	insertPending(t, db, "pay_5", 100.00)

	raw := eventBody(t, "PAYMENT_CHARGEBACK_REQUESTED", "pay_5", "", "2025-02-01 12:00:00", nil)
	outcome, err := applier.Apply(context.Background(), raw)

	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)

	payment := loadPayment(t, db, "pay_5")
	assert.Equal(t, models.StatusPending, payment.Status)
}

func TestOverdueOnlyFailsPendingCharges(t *testing.T) {
	db := setupTestDB(t)
	applier := newTestApplier(t, db)
	insertPending(t, db, "pay_6", 100.00)

	received := eventBody(t, "PAYMENT_RECEIVED", "pay_6", "2025-01-10", "2025-01-10 09:00:00", nil)
	_, err := applier.Apply(context.Background(), received)
	require.NoError(t, err)

	overdue := eventBody(t, "PAYMENT_OVERDUE", "pay_6", "", "2025-01-11 09:00:00", nil)
	outcome, err := applier.Apply(context.Background(), overdue)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)

	payment := loadPayment(t, db, "pay_6")
	assert.Equal(t, models.StatusReceived, payment.Status)
}

func TestOverdueFailsPendingCharge(t *testing.T) {
	db := setupTestDB(t)
	applier := newTestApplier(t, db)
	insertPending(t, db, "pay_7", 100.00)

	overdue := eventBody(t, "PAYMENT_OVERDUE", "pay_7", "", "2025-01-11 09:00:00", nil)
	outcome, err := applier.Apply(context.Background(), overdue)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	payment := loadPayment(t, db, "pay_7")
	assert.Equal(t, models.StatusFailed, payment.Status)
	assert.Nil(t, payment.PaidDate)
}

func TestUnknownChargeIsFlaggedAndAcknowledged(t *testing.T) {
	db := setupTestDB(t)
	applier := newTestApplier(t, db)

	raw := eventBody(t, "PAYMENT_RECEIVED", "pay_missing", "2025-01-10", "2025-01-10 09:00:00", nil)
	outcome, err := applier.Apply(context.Background(), raw)

	require.NoError(t, err)
	assert.Equal(t, OutcomeOrphaned, outcome)

	var flags []models.ReconciliationFlag
	require.NoError(t, db.Find(&flags).Error)
	require.Len(t, flags, 1)
	assert.Equal(t, "pay_missing", flags[0].ProviderChargeID)
	assert.False(t, flags[0].Resolved)

	// A second delivery for the same unknown charge collapses into one flag.
	_, err = applier.Apply(context.Background(), raw)
	require.NoError(t, err)
	require.NoError(t, db.Find(&flags).Error)
	assert.Len(t, flags, 1)
}

func TestMalformedPayloadReturnsMalformedError(t *testing.T) {
	db := setupTestDB(t)
	applier := newTestApplier(t, db)

	_, err := applier.Apply(context.Background(), []byte("{not json"))
	assert.True(t, errors.Is(err, ErrMalformedEvent))

	_, err = applier.Apply(context.Background(), []byte(`{"event":"PAYMENT_RECEIVED","payment":{}}`))
	assert.True(t, errors.Is(err, ErrMalformedEvent))
}
