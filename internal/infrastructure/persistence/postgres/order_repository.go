package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/petinel/payments-service/internal/domain"
)

var ErrOrderNotFound = errors.New("order not found")

type OrderRepository struct {
	db *DB
}

func NewOrderRepository(db *DB) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `id, customer_id, total_cents, currency, status, payment_status,
	       payment_method, external_payment_ref, created_at, updated_at`

func (r *OrderRepository) Create(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	query := `
		INSERT INTO orders (
            id, customer_id, total_cents, currency, status, payment_status,
            payment_method, external_payment_ref, created_at, updated_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	m := toOrderModel(order)
	var q Executor = r.db.Pool
	if tx != nil {
		q = tx
	}
	_, err := q.Exec(ctx, query,
		m.ID,
		m.CustomerID,
		m.TotalCents,
		m.Currency,
		m.Status,
		m.PaymentStatus,
		m.PaymentMethod,
		m.ExternalPaymentRef,
		m.CreatedAt,
		m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// FindByID retrieves an order
func (r *OrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	row := r.db.Pool.QueryRow(ctx, query, id)
	return scanOrder(row)
}

func (r *OrderRepository) Update(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	query := `
		UPDATE orders
		SET status = $1, payment_status = $2, payment_method = $3,
			external_payment_ref = $4, updated_at = $5
		WHERE id = $6
	`

	m := toOrderModel(order)
	var q Executor = r.db.Pool
	if tx != nil {
		q = tx
	}
	result, err := q.Exec(ctx, query,
		m.Status,
		m.PaymentStatus,
		m.PaymentMethod,
		m.ExternalPaymentRef,
		time.Now(),
		m.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// MarkPaidIfAwaiting flips AWAITING_PAYMENT -> PAID with a conditional update.
// The status predicate in the WHERE clause is what serializes concurrent
// confirmations: only the delivery that actually changes the row sees true.
func (r *OrderRepository) MarkPaidIfAwaiting(ctx context.Context, tx pgx.Tx, orderID string, method domain.PaymentMethod) (bool, error) {
	query := `
		UPDATE orders
		SET status = $1, payment_status = $2, payment_method = $3, updated_at = $4
		WHERE id = $5 AND status = $6
	`

	var q Executor = r.db.Pool
	if tx != nil {
		q = tx
	}
	result, err := q.Exec(ctx, query,
		string(domain.OrderPaid),
		string(domain.PaymentConfirmed),
		string(method),
		time.Now(),
		orderID,
		string(domain.OrderAwaitingPayment),
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark order paid: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// SetPaymentStatus updates only the payment view of the order. Used for the
// non-terminal shades (OVERDUE) that never touch the attempt.
func (r *OrderRepository) SetPaymentStatus(ctx context.Context, orderID string, status domain.PaymentStatus) error {
	query := `UPDATE orders SET payment_status = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.Pool.Exec(ctx, query, string(status), time.Now(), orderID)
	if err != nil {
		return fmt.Errorf("failed to set payment status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var m OrderModel
	err := row.Scan(
		&m.ID, &m.CustomerID, &m.TotalCents, &m.Currency, &m.Status, &m.PaymentStatus,
		&m.PaymentMethod, &m.ExternalPaymentRef, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}
	return toOrderDomain(m), nil
}
