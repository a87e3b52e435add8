package models

import "time"

// PaymentStatus is the local lifecycle state of a charge.
type PaymentStatus string

const (
	StatusPending  PaymentStatus = "PENDING"
	StatusReceived PaymentStatus = "RECEIVED"
	StatusUpdated  PaymentStatus = "UPDATED"
	StatusFailed   PaymentStatus = "FAILED"
	StatusUnknown  PaymentStatus = "UNKNOWN"
)

// Rank orders statuses so that event application can refuse regressions.
// A transition is only applied when the target rank is strictly higher,
// so duplicate and out-of-order deliveries cannot move a record backwards.
func (s PaymentStatus) Rank() int {
	switch s {
	case StatusPending:
		return 1
	case StatusReceived:
		return 2
	case StatusUpdated, StatusFailed:
		return 3
	default:
		return 0
	}
}

// Terminal reports whether no further transition is expected.
func (s PaymentStatus) Terminal() bool {
	return s == StatusUpdated || s == StatusFailed
}

// Payment maps to the `payments` table. One row per provider charge,
// created by the initiator with status PENDING and mutated only by the
// webhook applier afterwards.
type Payment struct {
	ID                 string        `gorm:"column:id;primaryKey;size:36" json:"id"`
	ProviderChargeID   string        `gorm:"column:provider_charge_id;size:100;uniqueIndex" json:"provider_charge_id"`
	CustomerProviderID string        `gorm:"column:customer_provider_id;size:100" json:"customer_provider_id"`
	IdempotencyKey     string        `gorm:"column:idempotency_key;size:36" json:"idempotency_key"`
	Amount             float64       `gorm:"column:amount" json:"amount"`
	DueDate            string        `gorm:"column:due_date;size:10" json:"due_date"`
	Description        string        `gorm:"column:description;size:500" json:"description"`
	BillingMethod      string        `gorm:"column:billing_method;size:30" json:"billing_method"`
	Status             PaymentStatus `gorm:"column:status;size:20;index" json:"status"`
	PaidDate           *string       `gorm:"column:paid_date;size:10" json:"paid_date,omitempty"`
	LastEventSequence  int64         `gorm:"column:last_event_sequence" json:"last_event_sequence"`
	LastEventHash      string        `gorm:"column:last_event_hash;size:64" json:"last_event_hash"`
	LastEventTimestamp *time.Time    `gorm:"column:last_event_timestamp" json:"last_event_timestamp,omitempty"`
	CreatedAt          time.Time     `gorm:"column:created_at" json:"created_at"`
	UpdatedAt          time.Time     `gorm:"column:updated_at" json:"updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}
