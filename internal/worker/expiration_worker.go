// Package worker runs the background sweeps that keep payment state honest.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/petinel/payments-service/internal/application"
	"github.com/petinel/payments-service/internal/application/services"
)

// ExpirationWorker sweeps pending attempts past their deadline and expires
// them. Expiry goes through the same conditional update as every other
// transition, so a confirmation landing mid-sweep always wins.
type ExpirationWorker struct {
	attempts  application.AttemptStore
	reconcile *services.ReconcileService
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

func NewExpirationWorker(
	attempts application.AttemptStore,
	reconcile *services.ReconcileService,
	interval time.Duration,
	batchSize int,
	logger *slog.Logger,
) *ExpirationWorker {
	return &ExpirationWorker{
		attempts:  attempts,
		reconcile: reconcile,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
	}
}

func (w *ExpirationWorker) Start(ctx context.Context) {
	w.logger.Info("expiration worker started", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	if err := w.processExpirations(ctx); err != nil {
		w.logger.Error("expiration sweep failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("expiration worker stopping")
			return
		case <-ticker.C:
			if err := w.processExpirations(ctx); err != nil {
				w.logger.Error("expiration sweep failed", "error", err)
			}
		}
	}
}

func (w *ExpirationWorker) processExpirations(ctx context.Context) error {
	overdue, err := w.attempts.FindExpiredPending(ctx, time.Now(), w.batchSize)
	if err != nil {
		return err
	}

	if len(overdue) == 0 {
		return nil
	}

	var processed, expired int

	for _, attempt := range overdue {
		if err := w.reconcile.ExpireAttempt(ctx, attempt); err != nil {
			w.logger.Error("failed to expire attempt",
				"attempt_id", attempt.ID,
				"error", err)
		} else {
			expired++
		}
		processed++
	}

	w.logger.Info("processed expiration sweep",
		"processed", processed,
		"marked_expired", expired)

	return nil
}
