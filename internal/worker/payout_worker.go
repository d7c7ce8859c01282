package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/lumapix/payments-service/internal/application"
	"github.com/lumapix/payments-service/internal/application/services"
)

// PayoutWorker periodically runs the threshold batch and requeues recent
// failures. It goes through the same service (and therefore the same lease)
// as the HTTP trigger, so an operator-started batch and a scheduled one never
// overlap.
type PayoutWorker struct {
	payoutService *services.PayoutService
	interval      time.Duration
	logger        *slog.Logger
}

func NewPayoutWorker(payoutService *services.PayoutService, interval time.Duration, logger *slog.Logger) *PayoutWorker {
	return &PayoutWorker{
		payoutService: payoutService,
		interval:      interval,
		logger:        logger,
	}
}

func (w *PayoutWorker) Start(ctx context.Context) {
	w.logger.Info("payout worker started", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("payout worker stopping")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *PayoutWorker) runOnce(ctx context.Context) {
	if _, err := w.payoutService.RetryFailed(ctx); err != nil {
		if !isExpectedSkip(err) {
			w.logger.Error("failed payout requeue failed", "error", err)
		}
	}

	result, err := w.payoutService.RunThresholdBatch(ctx)
	if err != nil {
		if !isExpectedSkip(err) {
			w.logger.Error("scheduled payout batch failed", "error", err)
		}
		return
	}

	if result.PayoutsCreated > 0 {
		w.logger.Info("scheduled payout batch created payouts", "count", result.PayoutsCreated)
	}
}

// isExpectedSkip filters the normal contention and pause outcomes so the
// worker does not log them as failures every tick.
func isExpectedSkip(err error) bool {
	svcErr, ok := application.IsServiceError(err)
	if !ok {
		return errors.Is(err, context.Canceled)
	}
	return svcErr.Code == application.ErrCodePayoutsPaused ||
		svcErr.Code == application.ErrCodeBatchInProgress
}
