package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/petinel/payments-service/internal/application"
	"github.com/petinel/payments-service/internal/domain"
	"github.com/petinel/payments-service/internal/infrastructure/persistence/postgres"
	"github.com/petinel/payments-service/internal/watch"
)

// StatusService answers attempt status reads. Reads are transition points
// too: a pending attempt past its deadline is expired on the spot instead of
// waiting for the sweep, so no reader ever sees a ghost PENDING.
type StatusService struct {
	orders    application.OrderStore
	attempts  application.AttemptStore
	reconcile *ReconcileService
	logger    *slog.Logger
}

func NewStatusService(
	orders application.OrderStore,
	attempts application.AttemptStore,
	reconcile *ReconcileService,
	logger *slog.Logger,
) *StatusService {
	return &StatusService{
		orders:    orders,
		attempts:  attempts,
		reconcile: reconcile,
		logger:    logger,
	}
}

// GetAttempt returns the attempt after checking the requester owns its order.
func (s *StatusService) GetAttempt(ctx context.Context, attemptID, customerID string) (*domain.PaymentAttempt, error) {
	attempt, err := s.load(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	order, err := s.orders.FindByID(ctx, attempt.OrderID)
	if err != nil {
		return nil, application.NewPersistenceError(err)
	}
	if order.CustomerID != customerID {
		// Indistinguishable from a missing attempt; attempt ids are not
		// enumerable across customers.
		return nil, application.NewNotFoundError(domain.NewAttemptNotFoundError(attemptID))
	}

	return attempt, nil
}

// ReadStatus is the poll half of live observation.
func (s *StatusService) ReadStatus(ctx context.Context, attemptID string) (*watch.AttemptView, error) {
	attempt, err := s.load(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	return &watch.AttemptView{
		AttemptID: attempt.ID,
		Status:    attempt.Status,
		ExpiresAt: attempt.ExpiresAt,
	}, nil
}

// load fetches the attempt and applies lazy expiry. A confirmation racing the
// expiry wins at the data layer, in which case the re-read returns CONFIRMED.
func (s *StatusService) load(ctx context.Context, attemptID string) (*domain.PaymentAttempt, error) {
	attempt, err := s.attempts.FindByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, postgres.ErrAttemptNotFound) {
			return nil, application.NewNotFoundError(domain.NewAttemptNotFoundError(attemptID))
		}
		return nil, application.NewPersistenceError(err)
	}

	if attempt.Status != domain.AttemptPending || !attempt.PastDeadline(time.Now()) {
		return attempt, nil
	}

	if err := s.reconcile.ExpireAttempt(ctx, attempt); err != nil {
		return nil, err
	}
	return s.attempts.FindByID(ctx, attemptID)
}
