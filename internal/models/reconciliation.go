package models

import "time"

// ReconciliationFlag records a webhook delivery that referenced a charge we
// do not know locally, or a sweep finding. The provider already got a 2xx for
// the delivery, so these rows are the only trace left for operators.
type ReconciliationFlag struct {
	ID               uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ProviderChargeID string    `gorm:"column:provider_charge_id;size:100;index" json:"provider_charge_id"`
	EventType        string    `gorm:"column:event_type;size:60" json:"event_type"`
	RawPayload       string    `gorm:"column:raw_payload;type:text" json:"raw_payload"`
	Reason           string    `gorm:"column:reason;size:200" json:"reason"`
	Resolved         bool      `gorm:"column:resolved;index" json:"resolved"`
	CreatedAt        time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt        time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (ReconciliationFlag) TableName() string {
	return "reconciliation_flags"
}
