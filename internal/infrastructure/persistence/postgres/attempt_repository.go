package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/petinel/payments-service/internal/domain"
)

var ErrAttemptNotFound = errors.New("payment attempt not found")

type AttemptRepository struct {
	db *DB
}

func NewAttemptRepository(db *DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

const attemptColumns = `id, order_id, method, amount_cents, currency, status,
	       provider_transaction_id, pix_key, pix_payload, invoice_url,
	       expires_at, confirmed_at, failure_reason, created_at`

func (r *AttemptRepository) Create(ctx context.Context, tx pgx.Tx, attempt *domain.PaymentAttempt) error {
	query := `
		INSERT INTO payment_attempts (
            id, order_id, method, amount_cents, currency, status,
            provider_transaction_id, pix_key, pix_payload, invoice_url,
            expires_at, confirmed_at, failure_reason, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	m := toAttemptModel(attempt)
	var q Executor = r.db.Pool
	if tx != nil {
		q = tx
	}
	_, err := q.Exec(ctx, query,
		m.ID,
		m.OrderID,
		m.Method,
		m.AmountCents,
		m.Currency,
		m.Status,
		m.ProviderTransactionID,
		m.PixKey,
		m.PixPayload,
		m.InvoiceURL,
		m.ExpiresAt,
		m.ConfirmedAt,
		m.FailureReason,
		m.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return domain.NewActiveAttemptError(attempt.OrderID)
		}
		return fmt.Errorf("failed to create payment attempt: %w", err)
	}
	return nil
}

// FindByID retrieves an attempt
func (r *AttemptRepository) FindByID(ctx context.Context, id string) (*domain.PaymentAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM payment_attempts WHERE id = $1`

	row := r.db.Pool.QueryRow(ctx, query, id)
	return scanAttempt(row)
}

// FindActiveByOrderID retrieves the order's one non-terminal attempt, if any.
func (r *AttemptRepository) FindActiveByOrderID(ctx context.Context, orderID string) (*domain.PaymentAttempt, error) {
	query := `SELECT ` + attemptColumns + `
		FROM payment_attempts
		WHERE order_id = $1 AND status = $2
		ORDER BY created_at DESC
		LIMIT 1`

	row := r.db.Pool.QueryRow(ctx, query, orderID, string(domain.AttemptPending))
	return scanAttempt(row)
}

// FindByProviderTransactionID retrieves the attempt a webhook event refers to.
func (r *AttemptRepository) FindByProviderTransactionID(ctx context.Context, providerTxID string) (*domain.PaymentAttempt, error) {
	query := `SELECT ` + attemptColumns + `
		FROM payment_attempts
		WHERE provider_transaction_id = $1
		ORDER BY created_at DESC
		LIMIT 1`

	row := r.db.Pool.QueryRow(ctx, query, providerTxID)
	return scanAttempt(row)
}

// ConfirmIfPending applies PENDING -> CONFIRMED as a compare-and-set. Returns
// true only when this call changed the row; concurrent duplicate deliveries
// see zero rows affected and must skip side effects.
func (r *AttemptRepository) ConfirmIfPending(ctx context.Context, tx pgx.Tx, attemptID string, confirmedAt time.Time) (bool, error) {
	query := `
		UPDATE payment_attempts
		SET status = $1, confirmed_at = $2
		WHERE id = $3 AND status = $4
	`

	var q Executor = r.db.Pool
	if tx != nil {
		q = tx
	}
	result, err := q.Exec(ctx, query,
		string(domain.AttemptConfirmed),
		confirmedAt,
		attemptID,
		string(domain.AttemptPending),
	)
	if err != nil {
		return false, fmt.Errorf("failed to confirm attempt: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// TerminateIfPending applies PENDING -> EXPIRED or FAILED under the same
// compare-and-set discipline, so a racing confirmation always wins.
func (r *AttemptRepository) TerminateIfPending(ctx context.Context, tx pgx.Tx, attemptID string, status domain.AttemptStatus, reason *string) (bool, error) {
	if !status.IsTerminal() || status == domain.AttemptConfirmed {
		return false, fmt.Errorf("terminate requires EXPIRED or FAILED, got %s", status)
	}

	query := `
		UPDATE payment_attempts
		SET status = $1, failure_reason = $2
		WHERE id = $3 AND status = $4
	`

	var q Executor = r.db.Pool
	if tx != nil {
		q = tx
	}
	result, err := q.Exec(ctx, query,
		string(status),
		reason,
		attemptID,
		string(domain.AttemptPending),
	)
	if err != nil {
		return false, fmt.Errorf("failed to terminate attempt: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// FindExpiredPending finds pending attempts whose hard deadline has passed.
func (r *AttemptRepository) FindExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]*domain.PaymentAttempt, error) {
	query := `SELECT ` + attemptColumns + `
		FROM payment_attempts
		WHERE status = $1
		  AND expires_at IS NOT NULL
		  AND expires_at < $2
		ORDER BY expires_at ASC
		LIMIT $3`

	rows, err := r.db.Pool.Query(ctx, query, string(domain.AttemptPending), cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("query expired attempts: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.PaymentAttempt, error) {
		var m AttemptModel
		err := row.Scan(
			&m.ID, &m.OrderID, &m.Method, &m.AmountCents, &m.Currency, &m.Status,
			&m.ProviderTransactionID, &m.PixKey, &m.PixPayload, &m.InvoiceURL,
			&m.ExpiresAt, &m.ConfirmedAt, &m.FailureReason, &m.CreatedAt,
		)
		return toAttemptDomain(m), err
	})
	if err != nil {
		return nil, fmt.Errorf("scan expired attempts: %w", err)
	}

	return results, nil
}

func scanAttempt(row pgx.Row) (*domain.PaymentAttempt, error) {
	var m AttemptModel
	err := row.Scan(
		&m.ID, &m.OrderID, &m.Method, &m.AmountCents, &m.Currency, &m.Status,
		&m.ProviderTransactionID, &m.PixKey, &m.PixPayload, &m.InvoiceURL,
		&m.ExpiresAt, &m.ConfirmedAt, &m.FailureReason, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to scan payment attempt: %w", err)
	}
	return toAttemptDomain(m), nil
}
