package application

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/petinel/payments-service/internal/domain"
	"github.com/shopspring/decimal"
)

// CustomerIdentity is what the provider needs to find or create a customer.
// TaxID is the idempotent lookup key.
type CustomerIdentity struct {
	Name    string
	Email   string
	TaxID   string
	Address string
}

// ChargeRequest asks the provider for a new charge against a customer.
type ChargeRequest struct {
	CustomerRef  string
	Value        decimal.Decimal
	OrderID      string
	BillingType  string
	Description  string
	DueDate      time.Time
	Card         *CardDetails
	Installments int
}

type CardDetails struct {
	HolderName  string
	Number      string
	ExpiryMonth string
	ExpiryYear  string
	CVV         string
}

// ProviderPayment is the provider's view of a charge.
type ProviderPayment struct {
	ID         string
	Status     string
	Value      decimal.Decimal
	InvoiceURL string
	PixPayload string
	PixExpires *time.Time
}

// GatewayClient adapts the external payment provider. It holds no state.
type GatewayClient interface {
	FindOrCreateCustomer(ctx context.Context, identity CustomerIdentity) (string, error)
	CreateCharge(ctx context.Context, req ChargeRequest) (*ProviderPayment, error)
	CancelCharge(ctx context.Context, providerPaymentID string) error
}

// OrderStore owns the canonical order record.
type OrderStore interface {
	FindByID(ctx context.Context, id string) (*domain.Order, error)
	Update(ctx context.Context, tx pgx.Tx, order *domain.Order) error
	// MarkPaidIfAwaiting is the conditional flip AWAITING_PAYMENT -> PAID.
	// Returns true only when this call actually changed the row.
	MarkPaidIfAwaiting(ctx context.Context, tx pgx.Tx, orderID string, method domain.PaymentMethod) (bool, error)
	SetPaymentStatus(ctx context.Context, orderID string, status domain.PaymentStatus) error
}

// AttemptStore owns payment attempts and the compare-and-set primitives that
// serialize concurrent terminal transitions.
type AttemptStore interface {
	Create(ctx context.Context, tx pgx.Tx, attempt *domain.PaymentAttempt) error
	FindByID(ctx context.Context, id string) (*domain.PaymentAttempt, error)
	FindActiveByOrderID(ctx context.Context, orderID string) (*domain.PaymentAttempt, error)
	FindByProviderTransactionID(ctx context.Context, providerTxID string) (*domain.PaymentAttempt, error)
	// ConfirmIfPending applies PENDING -> CONFIRMED. Duplicate deliveries see
	// false and skip side effects.
	ConfirmIfPending(ctx context.Context, tx pgx.Tx, attemptID string, confirmedAt time.Time) (bool, error)
	// TerminateIfPending applies PENDING -> EXPIRED/FAILED the same way.
	TerminateIfPending(ctx context.Context, tx pgx.Tx, attemptID string, status domain.AttemptStatus, reason *string) (bool, error)
	FindExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]*domain.PaymentAttempt, error)
}

// Notification is the payload queued for the customer-facing dispatcher.
type Notification struct {
	OrderID    string               `json:"order_id"`
	CustomerID string               `json:"customer_id"`
	AttemptID  string               `json:"attempt_id"`
	Kind       string               `json:"kind"`
	Status     domain.AttemptStatus `json:"status"`
	QueuedAt   time.Time            `json:"queued_at"`
}

// Notifier enqueues a customer notification. Best-effort: implementations must
// never block or fail a state transition.
type Notifier interface {
	Enqueue(ctx context.Context, n Notification) error
}

// StatusPublisher fans a terminal transition out to live observers.
type StatusPublisher interface {
	Publish(attemptID string, status domain.AttemptStatus)
}
