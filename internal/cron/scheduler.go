package cron

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"escolapay/internal/config"
	"escolapay/internal/models"
	"escolapay/internal/provider"
	"escolapay/internal/repository"
	"escolapay/internal/webhook"
)

const sweepTimeout = 2 * time.Minute

// Scheduler runs the periodic reconciliation sweep: it re-queries the
// provider for flagged orphan events and for pending charges that stopped
// receiving webhooks, and pushes whatever the provider reports through the
// same idempotent applier the webhook path uses.
type Scheduler struct {
	cron     *cron.Cron
	cfg      *config.ReconcileConfig
	payments *repository.PaymentRepository
	flags    *repository.ReconciliationRepository
	billing  *provider.Client
	applier  *webhook.Applier
	logger   *zap.Logger
}

// New creates a new reconciliation scheduler.
func New(
	cfg *config.ReconcileConfig,
	payments *repository.PaymentRepository,
	flags *repository.ReconciliationRepository,
	billing *provider.Client,
	applier *webhook.Applier,
	logger *zap.Logger,
) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		cfg:      cfg,
		payments: payments,
		flags:    flags,
		billing:  billing,
		applier:  applier,
		logger:   logger,
	}
}

// Start registers and starts the sweep job.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.cfg.CronSpec, func() {
		s.logger.Debug("Running: reconciliation sweep")
		s.Sweep()
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop stops the scheduler and returns a context that closes when running
// jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Sweep runs one full reconciliation pass.
func (s *Scheduler) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	s.sweepFlags(ctx)
	s.sweepStalePending(ctx)
}

func (s *Scheduler) sweepFlags(ctx context.Context) {
	flags, err := s.flags.ListUnresolved(100)
	if err != nil {
		s.logger.Error("failed to list reconciliation flags", zap.Error(err))
		return
	}

	for _, flag := range flags {
		charge, err := s.billing.GetCharge(ctx, flag.ProviderChargeID)
		if err != nil {
			var rejected *provider.RejectedError
			if errors.As(err, &rejected) && rejected.StatusCode == 404 {
				// The provider has no such charge either; nothing left to
				// reconcile against.
				s.logger.Warn("flagged charge does not exist at provider, resolving",
					zap.String("charge_id", flag.ProviderChargeID))
				if err := s.flags.Resolve(flag.ID); err != nil {
					s.logger.Error("failed to resolve flag", zap.Error(err))
				}
				continue
			}
			s.logger.Warn("provider query failed during sweep",
				zap.String("charge_id", flag.ProviderChargeID), zap.Error(err))
			continue
		}

		outcome := s.applyProviderState(ctx, charge)
		if outcome == webhook.OutcomeOrphaned {
			// Still no local record; keep the flag open for an operator.
			continue
		}
		if err := s.flags.Resolve(flag.ID); err != nil {
			s.logger.Error("failed to resolve flag",
				zap.Uint("flag_id", flag.ID), zap.Error(err))
		}
	}
}

func (s *Scheduler) sweepStalePending(ctx context.Context) {
	cutoff := time.Now().Add(-s.cfg.PendingAge)
	stale, err := s.payments.ListStalePending(cutoff, 100)
	if err != nil {
		s.logger.Error("failed to list stale pending payments", zap.Error(err))
		return
	}

	for _, payment := range stale {
		charge, err := s.billing.GetCharge(ctx, payment.ProviderChargeID)
		if err != nil {
			s.logger.Warn("provider query failed during sweep",
				zap.String("charge_id", payment.ProviderChargeID), zap.Error(err))
			continue
		}
		s.applyProviderState(ctx, charge)
	}
}

// applyProviderState synthesizes the event matching the provider's current
// charge state and runs it through the applier. Repeated sweeps produce the
// same payload, so the applier's hash check makes this idempotent.
func (s *Scheduler) applyProviderState(ctx context.Context, charge *provider.Charge) webhook.Outcome {
	eventType := eventForStatus(charge.Status)
	if eventType == "" {
		return webhook.OutcomeIgnored
	}

	value := charge.Value
	raw, err := json.Marshal(models.WebhookEvent{
		Event: eventType,
		Payment: models.WebhookPayment{
			ProviderChargeID: charge.ID,
			Status:           charge.Status,
			Value:            &value,
			PaymentDate:      charge.PaymentDate,
			DueDate:          charge.DueDate,
		},
	})
	if err != nil {
		s.logger.Error("failed to build synthetic event", zap.Error(err))
		return webhook.OutcomeIgnored
	}

	outcome, err := s.applier.Apply(ctx, raw)
	if err != nil {
		s.logger.Warn("sweep event application failed",
			zap.String("charge_id", charge.ID), zap.Error(err))
	}
	return outcome
}

// eventForStatus maps the provider's charge status to the webhook event type
// carrying the same meaning. Non-terminal statuses map to nothing.
func eventForStatus(status string) string {
	switch status {
	case "RECEIVED", "CONFIRMED", "RECEIVED_IN_CASH":
		return "PAYMENT_RECEIVED"
	case "OVERDUE":
		return "PAYMENT_OVERDUE"
	case "DELETED":
		return "PAYMENT_DELETED"
	default:
		return ""
	}
}
