// Package services orchestrates checkout and payment reconciliation.
package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/petinel/payments-service/internal/application"
	"github.com/petinel/payments-service/internal/domain"
	"github.com/petinel/payments-service/internal/infrastructure/persistence/postgres"
)

// Provider webhook event vocabulary.
const (
	EventPaymentConfirmed = "PAYMENT_CONFIRMED"
	EventPaymentReceived  = "PAYMENT_RECEIVED"
	EventPaymentOverdue   = "PAYMENT_OVERDUE"
	EventPaymentRefunded  = "PAYMENT_REFUNDED"
	EventPaymentDeleted   = "PAYMENT_DELETED"
)

// ProviderEvent is one inbound webhook delivery, already authenticated.
// Deliveries are at-least-once and unordered.
type ProviderEvent struct {
	EventType         string
	ProviderPaymentID string
	ProviderStatus    string
	OrderRef          string
	AmountCents       int64
}

// TxRunner runs a function inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// ReconcileService drives payment attempts to their terminal state. Every
// signal channel (webhook, admin confirm, expiry sweep, synchronous card
// resolution) funnels into the same conditional-update transitions, so
// concurrent duplicate deliveries converge without double-firing side effects.
type ReconcileService struct {
	orders   application.OrderStore
	attempts application.AttemptStore
	db       TxRunner
	hub      application.StatusPublisher
	notifier application.Notifier
	logger   *slog.Logger
}

func NewReconcileService(
	orders application.OrderStore,
	attempts application.AttemptStore,
	db TxRunner,
	hub application.StatusPublisher,
	notifier application.Notifier,
	logger *slog.Logger,
) *ReconcileService {
	return &ReconcileService{
		orders:   orders,
		attempts: attempts,
		db:       db,
		hub:      hub,
		notifier: notifier,
		logger:   logger,
	}
}

// ApplyProviderEvent maps a webhook event onto the attempt state machine.
// Unknown event types are acknowledged and ignored; retrying them would not
// help. Persistence failures return an error the HTTP layer turns into a 5xx
// so the provider redelivers.
func (s *ReconcileService) ApplyProviderEvent(ctx context.Context, evt ProviderEvent) error {
	if evt.OrderRef == "" {
		return application.NewInvalidInputError(errors.New("event carries no order reference"))
	}

	switch evt.EventType {
	case EventPaymentConfirmed, EventPaymentReceived:
		attempt, err := s.resolveAttempt(ctx, evt)
		if err != nil {
			return err
		}
		if attempt == nil {
			return nil
		}
		if evt.AmountCents > 0 && evt.AmountCents != attempt.AmountCents {
			// The local record stays authoritative; the mismatch is an
			// operator concern, not grounds to drop the confirmation.
			s.logger.Warn("provider amount differs from attempt",
				"attempt_id", attempt.ID,
				"attempt_cents", attempt.AmountCents,
				"provider_cents", evt.AmountCents)
		}
		return s.ConfirmAttempt(ctx, attempt)

	case EventPaymentOverdue:
		// Non-terminal by design: the attempt stays PENDING and a later
		// confirmation still lands. Only the order's payment view shades.
		if err := s.orders.SetPaymentStatus(ctx, evt.OrderRef, domain.PaymentOverdue); err != nil {
			if errors.Is(err, postgres.ErrOrderNotFound) {
				return application.NewInvalidInputError(err)
			}
			return application.NewPersistenceError(err)
		}
		return nil

	case EventPaymentRefunded:
		return s.applyRefund(ctx, evt)

	case EventPaymentDeleted:
		attempt, err := s.resolveAttempt(ctx, evt)
		if err != nil {
			return err
		}
		if attempt == nil {
			return nil
		}
		return s.FailAttempt(ctx, attempt, "cancelled_at_provider")

	default:
		s.logger.Info("ignoring unrecognized provider event",
			"event", evt.EventType,
			"provider_payment_id", evt.ProviderPaymentID)
		return nil
	}
}

// ConfirmAttempt applies PENDING -> CONFIRMED and, when this call is the one
// that actually flipped the row, fires the paid side effects exactly once:
// order flip, live publish, customer notification.
func (s *ReconcileService) ConfirmAttempt(ctx context.Context, attempt *domain.PaymentAttempt) error {
	now := time.Now()

	var changed bool
	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		var txErr error
		changed, txErr = s.attempts.ConfirmIfPending(ctx, tx, attempt.ID, now)
		if txErr != nil {
			return txErr
		}
		if !changed {
			return nil
		}
		// The attempt flip and the order flip commit together.
		_, txErr = s.orders.MarkPaidIfAwaiting(ctx, tx, attempt.OrderID, attempt.Method)
		return txErr
	})
	if err != nil {
		return application.NewPersistenceError(err)
	}

	if !changed {
		return s.checkStaleTransition(ctx, attempt.ID, domain.AttemptConfirmed)
	}

	s.logger.Info("payment attempt confirmed",
		"attempt_id", attempt.ID,
		"order_id", attempt.OrderID,
		"method", attempt.Method)

	s.fireConfirmedSideEffects(ctx, attempt)
	return nil
}

// FailAttempt applies PENDING -> FAILED. The order keeps awaiting payment so
// the customer can retry on another rail.
func (s *ReconcileService) FailAttempt(ctx context.Context, attempt *domain.PaymentAttempt, reason string) error {
	changed, err := s.attempts.TerminateIfPending(ctx, nil, attempt.ID, domain.AttemptFailed, &reason)
	if err != nil {
		return application.NewPersistenceError(err)
	}
	if !changed {
		return s.checkStaleTransition(ctx, attempt.ID, domain.AttemptFailed)
	}

	s.logger.Info("payment attempt failed",
		"attempt_id", attempt.ID,
		"order_id", attempt.OrderID,
		"reason", reason)

	s.hub.Publish(attempt.ID, domain.AttemptFailed)
	return nil
}

// ExpireAttempt applies PENDING -> EXPIRED. A confirmation racing this call
// wins at the data layer; zero rows affected here means nothing to do.
func (s *ReconcileService) ExpireAttempt(ctx context.Context, attempt *domain.PaymentAttempt) error {
	changed, err := s.attempts.TerminateIfPending(ctx, nil, attempt.ID, domain.AttemptExpired, nil)
	if err != nil {
		return application.NewPersistenceError(err)
	}
	if !changed {
		return s.checkStaleTransition(ctx, attempt.ID, domain.AttemptExpired)
	}

	s.logger.Info("payment attempt expired",
		"attempt_id", attempt.ID,
		"order_id", attempt.OrderID)

	s.hub.Publish(attempt.ID, domain.AttemptExpired)
	return nil
}

// ConfirmManually is the direct-PIX confirmation path: a privileged operator
// verified receipt by hand. Gateway rails are confirmed by the provider, not
// by people.
func (s *ReconcileService) ConfirmManually(ctx context.Context, attemptID string) (*domain.PaymentAttempt, error) {
	attempt, err := s.attempts.FindByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, postgres.ErrAttemptNotFound) {
			return nil, application.NewNotFoundError(domain.NewAttemptNotFoundError(attemptID))
		}
		return nil, application.NewPersistenceError(err)
	}

	if attempt.Method != domain.MethodPixDirect {
		return nil, application.NewInvalidInputError(domain.NewWrongRailError(attemptID, attempt.Method))
	}

	if err := s.ConfirmAttempt(ctx, attempt); err != nil {
		return nil, err
	}

	return s.attempts.FindByID(ctx, attemptID)
}

// resolveAttempt locates the attempt a webhook event refers to, preferring the
// provider's payment id and falling back to the order's active attempt. A nil
// attempt with nil error means "nothing we can act on, acknowledge anyway".
func (s *ReconcileService) resolveAttempt(ctx context.Context, evt ProviderEvent) (*domain.PaymentAttempt, error) {
	if evt.ProviderPaymentID != "" {
		attempt, err := s.attempts.FindByProviderTransactionID(ctx, evt.ProviderPaymentID)
		if err == nil {
			return attempt, nil
		}
		if !errors.Is(err, postgres.ErrAttemptNotFound) {
			return nil, application.NewPersistenceError(err)
		}
	}

	attempt, err := s.attempts.FindActiveByOrderID(ctx, evt.OrderRef)
	if err != nil {
		if errors.Is(err, postgres.ErrAttemptNotFound) {
			// Attempts are never deleted, so an unknown reference is either a
			// foreign event or a replay for an attempt already terminal and
			// re-keyed. Retrying will not help; log and acknowledge.
			s.logger.Warn("webhook event matches no attempt",
				"event", evt.EventType,
				"order_ref", evt.OrderRef,
				"provider_payment_id", evt.ProviderPaymentID)
			return nil, nil
		}
		return nil, application.NewPersistenceError(err)
	}
	return attempt, nil
}

func (s *ReconcileService) applyRefund(ctx context.Context, evt ProviderEvent) error {
	order, err := s.orders.FindByID(ctx, evt.OrderRef)
	if err != nil {
		if errors.Is(err, postgres.ErrOrderNotFound) {
			return application.NewInvalidInputError(err)
		}
		return application.NewPersistenceError(err)
	}

	if !order.IsPaid() {
		// Refund webhook for an order that never confirmed locally: fail the
		// pending attempt if one exists, otherwise nothing to do.
		attempt, err := s.resolveAttempt(ctx, evt)
		if err != nil || attempt == nil {
			return err
		}
		return s.FailAttempt(ctx, attempt, "refunded_at_provider")
	}

	if err := order.MarkRefunded(); err != nil {
		s.logger.Warn("refund event for order in unexpected state",
			"order_id", order.ID, "status", order.Status, "error", err)
		return nil
	}
	if err := s.orders.Update(ctx, nil, order); err != nil {
		return application.NewPersistenceError(err)
	}

	s.logger.Info("order refunded", "order_id", order.ID)
	return nil
}

// checkStaleTransition distinguishes an idempotent redelivery from an anomaly.
// Re-applying the terminal state the attempt already has is a success no-op;
// an event proposing a different terminal state is logged and swallowed so the
// provider does not retry what can never apply.
func (s *ReconcileService) checkStaleTransition(ctx context.Context, attemptID string, proposed domain.AttemptStatus) error {
	current, err := s.attempts.FindByID(ctx, attemptID)
	if err != nil {
		return application.NewPersistenceError(err)
	}

	if current.Status == proposed {
		return nil
	}

	staleErr := domain.NewStaleTransitionError(current.Status, proposed)
	s.logger.Warn("stale transition ignored",
		"attempt_id", attemptID,
		"current", current.Status,
		"proposed", proposed,
		"anomaly", staleErr.Code)
	return nil
}

func (s *ReconcileService) fireConfirmedSideEffects(ctx context.Context, attempt *domain.PaymentAttempt) {
	s.hub.Publish(attempt.ID, domain.AttemptConfirmed)

	order, err := s.orders.FindByID(ctx, attempt.OrderID)
	if err != nil {
		s.logger.Error("could not load order for notification", "order_id", attempt.OrderID, "error", err)
		return
	}

	// Best effort. The transition already committed; a lost notification is
	// an operator concern, not a correctness one.
	notification := application.Notification{
		OrderID:    attempt.OrderID,
		CustomerID: order.CustomerID,
		AttemptID:  attempt.ID,
		Kind:       "payment_confirmed",
		Status:     domain.AttemptConfirmed,
		QueuedAt:   time.Now(),
	}
	if err := s.notifier.Enqueue(ctx, notification); err != nil {
		s.logger.Error("failed to enqueue confirmation notification",
			"order_id", attempt.OrderID, "error", err)
	}
}
