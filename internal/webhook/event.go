package webhook

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"escolapay/internal/models"
)

// EventKind is the closed set of provider event types this service reacts to.
// Anything else falls into EventUnknown and is acknowledged without mutation.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventPaymentReceived
	EventPaymentUpdated
	EventPaymentOverdue
	EventPaymentDeleted
)

// KindOf maps the provider's event type string to an EventKind.
func KindOf(event string) EventKind {
	switch event {
	case "PAYMENT_RECEIVED":
		return EventPaymentReceived
	case "PAYMENT_UPDATED":
		return EventPaymentUpdated
	case "PAYMENT_OVERDUE":
		return EventPaymentOverdue
	case "PAYMENT_DELETED":
		return EventPaymentDeleted
	default:
		return EventUnknown
	}
}

// TargetStatus returns the local status the event transitions a record to.
func (k EventKind) TargetStatus() models.PaymentStatus {
	switch k {
	case EventPaymentReceived:
		return models.StatusReceived
	case EventPaymentUpdated:
		return models.StatusUpdated
	case EventPaymentOverdue, EventPaymentDeleted:
		return models.StatusFailed
	default:
		return models.StatusUnknown
	}
}

func (k EventKind) String() string {
	switch k {
	case EventPaymentReceived:
		return "PAYMENT_RECEIVED"
	case EventPaymentUpdated:
		return "PAYMENT_UPDATED"
	case EventPaymentOverdue:
		return "PAYMENT_OVERDUE"
	case EventPaymentDeleted:
		return "PAYMENT_DELETED"
	default:
		return "UNKNOWN"
	}
}

// PayloadHash fingerprints a delivery body so sequence-less events can still
// be deduplicated.
func PayloadHash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// EventSequence derives a monotonic sequence for an event. The provider does
// not send a counter, so the event creation timestamp (millis) stands in;
// events without one get sequence 0 and are ordered by payload hash alone.
func EventSequence(evt *models.WebhookEvent) int64 {
	raw := evt.Payment.DateCreated
	if raw == "" {
		return 0
	}
	if millis, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return millis
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UnixMilli()
		}
	}
	return 0
}
