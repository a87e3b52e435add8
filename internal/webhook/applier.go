package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"escolapay/internal/models"
	"escolapay/internal/repository"
)

// Outcome classifies what applying one delivery did. Every outcome except a
// store failure is acknowledged to the provider with a 2xx.
type Outcome int

const (
	OutcomeApplied   Outcome = iota // record mutated
	OutcomeDuplicate                // exact payload already applied
	OutcomeStale                    // older or regressive event discarded
	OutcomeIgnored                  // unrecognized event type, no-op
	OutcomeOrphaned                 // charge unknown locally, flagged
)

// ErrMalformedEvent indicates the payload could not be interpreted. The
// handler still acknowledges it so the provider stops re-delivering.
var ErrMalformedEvent = errors.New("malformed webhook event")

// ErrStoreUnavailable indicates the datastore failed; the handler answers
// with a retryable status so the provider re-delivers later.
var ErrStoreUnavailable = errors.New("payment store unavailable")

// Notifier receives operator-facing notifications. Implementations must not
// block the webhook path on failure.
type Notifier interface {
	PaymentConfirmed(chargeID string, amount float64, paidDate string)
	ReconciliationFlagged(chargeID, reason string)
}

// Applier turns authenticated provider events into idempotent payment record
// mutations.
type Applier struct {
	payments *repository.PaymentRepository
	flags    *repository.ReconciliationRepository
	notifier Notifier
	locks    *chargeLocks
	logger   *zap.Logger
	now      func() time.Time
}

func NewApplier(
	payments *repository.PaymentRepository,
	flags *repository.ReconciliationRepository,
	notifier Notifier,
	logger *zap.Logger,
) *Applier {
	return &Applier{
		payments: payments,
		flags:    flags,
		notifier: notifier,
		locks:    newChargeLocks(),
		logger:   logger,
		now:      time.Now,
	}
}

// Apply processes one raw webhook delivery. It is safe to call concurrently;
// mutations for the same charge are serialized and each unique event payload
// mutates the record at most once.
func (a *Applier) Apply(ctx context.Context, raw []byte) (Outcome, error) {
	var evt models.WebhookEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		return OutcomeIgnored, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if evt.Payment.ProviderChargeID == "" {
		return OutcomeIgnored, fmt.Errorf("%w: missing payment id", ErrMalformedEvent)
	}

	kind := KindOf(evt.Event)
	if kind == EventUnknown {
		a.logger.Info("ignoring unrecognized webhook event type",
			zap.String("event", evt.Event),
			zap.String("charge_id", evt.Payment.ProviderChargeID))
		return OutcomeIgnored, nil
	}

	chargeID := evt.Payment.ProviderChargeID
	seq := EventSequence(&evt)
	hash := PayloadHash(raw)

	unlock := a.locks.Lock(chargeID)
	defer unlock()

	record, err := a.payments.FindByChargeID(chargeID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return a.flagOrphan(&evt, raw)
	}
	if err != nil {
		return OutcomeIgnored, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if hash == record.LastEventHash {
		return OutcomeDuplicate, nil
	}
	if seq != 0 && record.LastEventSequence != 0 && seq < record.LastEventSequence {
		a.logger.Info("discarding stale webhook event",
			zap.String("charge_id", chargeID),
			zap.Int64("event_sequence", seq),
			zap.Int64("last_sequence", record.LastEventSequence))
		return OutcomeStale, nil
	}

	target := kind.TargetStatus()
	if target.Rank() < record.Status.Rank() {
		return OutcomeStale, nil
	}
	// Failure events only fail charges still awaiting payment, and a failed
	// charge accepts no further transitions.
	if target == models.StatusFailed && record.Status != models.StatusPending {
		return OutcomeIgnored, nil
	}
	if record.Status == models.StatusFailed {
		return OutcomeIgnored, nil
	}
	if target.Rank() == record.Status.Rank() && target != models.StatusUpdated {
		// Same-state re-delivery with a changed payload carries nothing new
		// for RECEIVED/FAILED; only UPDATED merges repeatedly.
		return OutcomeDuplicate, nil
	}

	updates := a.buildUpdates(kind, &evt, record, seq, hash)

	applied, err := a.payments.ApplyEvent(chargeID, record.LastEventSequence, record.LastEventHash, updates)
	if err != nil {
		return OutcomeIgnored, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !applied {
		// Another instance applied an event between our read and write.
		return OutcomeStale, nil
	}

	a.logger.Info("applied webhook event",
		zap.String("charge_id", chargeID),
		zap.String("event", kind.String()),
		zap.String("status", string(target)))

	if kind == EventPaymentReceived && a.notifier != nil {
		paidDate, _ := updates["paid_date"].(string)
		a.notifier.PaymentConfirmed(chargeID, record.Amount, paidDate)
	}

	return OutcomeApplied, nil
}

func (a *Applier) buildUpdates(kind EventKind, evt *models.WebhookEvent, record *models.Payment, seq int64, hash string) map[string]interface{} {
	now := a.now()
	nextSeq := seq
	if record.LastEventSequence > nextSeq {
		nextSeq = record.LastEventSequence
	}

	updates := map[string]interface{}{
		"status":               kind.TargetStatus(),
		"last_event_sequence":  nextSeq,
		"last_event_hash":      hash,
		"last_event_timestamp": now,
		"updated_at":           now,
	}

	switch kind {
	case EventPaymentReceived:
		paidDate := evt.Payment.PaymentDate
		if paidDate == "" {
			paidDate = now.Format("2006-01-02")
		}
		updates["paid_date"] = paidDate
	case EventPaymentUpdated:
		// The update event is the one sanctioned path for the provider to
		// correct charge fields after creation.
		if evt.Payment.Value != nil && *evt.Payment.Value > 0 {
			updates["amount"] = *evt.Payment.Value
		}
		if evt.Payment.DueDate != "" {
			updates["due_date"] = evt.Payment.DueDate
		}
		if evt.Payment.Description != "" {
			updates["description"] = evt.Payment.Description
		}
	}
	return updates
}

func (a *Applier) flagOrphan(evt *models.WebhookEvent, raw []byte) (Outcome, error) {
	flag := &models.ReconciliationFlag{
		ProviderChargeID: evt.Payment.ProviderChargeID,
		EventType:        evt.Event,
		RawPayload:       string(raw),
		Reason:           "webhook event for unknown charge",
	}
	if err := a.flags.Flag(flag); err != nil {
		return OutcomeOrphaned, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	a.logger.Warn("webhook event references unknown charge, flagged for reconciliation",
		zap.String("charge_id", evt.Payment.ProviderChargeID),
		zap.String("event", evt.Event))

	if a.notifier != nil {
		a.notifier.ReconciliationFlagged(evt.Payment.ProviderChargeID, "event for unknown charge")
	}
	return OutcomeOrphaned, nil
}
