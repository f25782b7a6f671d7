// Package testhelpers provides in-memory stores and factories for service tests.
package testhelpers

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/petinel/payments-service/internal/application"
	"github.com/petinel/payments-service/internal/domain"
	"github.com/petinel/payments-service/internal/infrastructure/persistence/postgres"
)

// MockOrderStore keeps orders in memory with the same conditional-update
// semantics as the Postgres repository.
type MockOrderStore struct {
	mu     sync.Mutex
	orders map[string]*domain.Order

	FindByIDFn           func(ctx context.Context, id string) (*domain.Order, error)
	UpdateFn             func(ctx context.Context, tx pgx.Tx, order *domain.Order) error
	MarkPaidIfAwaitingFn func(ctx context.Context, tx pgx.Tx, orderID string, method domain.PaymentMethod) (bool, error)
	SetPaymentStatusFn   func(ctx context.Context, orderID string, status domain.PaymentStatus) error
}

func NewMockOrderStore() *MockOrderStore {
	return &MockOrderStore{orders: make(map[string]*domain.Order)}
}

func (m *MockOrderStore) Seed(order *domain.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *order
	m.orders[order.ID] = &cp
}

func (m *MockOrderStore) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	if m.FindByIDFn != nil {
		return m.FindByIDFn(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, postgres.ErrOrderNotFound
	}
	cp := *order
	return &cp, nil
}

func (m *MockOrderStore) Update(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, tx, order)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[order.ID]; !ok {
		return postgres.ErrOrderNotFound
	}
	cp := *order
	m.orders[order.ID] = &cp
	return nil
}

func (m *MockOrderStore) MarkPaidIfAwaiting(ctx context.Context, tx pgx.Tx, orderID string, method domain.PaymentMethod) (bool, error) {
	if m.MarkPaidIfAwaitingFn != nil {
		return m.MarkPaidIfAwaitingFn(ctx, tx, orderID, method)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok {
		return false, postgres.ErrOrderNotFound
	}
	if order.Status != domain.OrderAwaitingPayment {
		return false, nil
	}
	order.Status = domain.OrderPaid
	order.PaymentStatus = domain.PaymentConfirmed
	order.PaymentMethod = &method
	order.UpdatedAt = time.Now()
	return true, nil
}

func (m *MockOrderStore) SetPaymentStatus(ctx context.Context, orderID string, status domain.PaymentStatus) error {
	if m.SetPaymentStatusFn != nil {
		return m.SetPaymentStatusFn(ctx, orderID, status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok {
		return postgres.ErrOrderNotFound
	}
	order.PaymentStatus = status
	return nil
}

// MockAttemptStore mirrors the compare-and-set behavior of the real
// repository, including the one-pending-attempt-per-order constraint.
type MockAttemptStore struct {
	mu       sync.Mutex
	attempts map[string]*domain.PaymentAttempt

	CreateFn             func(ctx context.Context, tx pgx.Tx, attempt *domain.PaymentAttempt) error
	FindByIDFn           func(ctx context.Context, id string) (*domain.PaymentAttempt, error)
	ConfirmIfPendingFn   func(ctx context.Context, tx pgx.Tx, attemptID string, confirmedAt time.Time) (bool, error)
	TerminateIfPendingFn func(ctx context.Context, tx pgx.Tx, attemptID string, status domain.AttemptStatus, reason *string) (bool, error)
	FindExpiredPendingFn func(ctx context.Context, cutoff time.Time, limit int) ([]*domain.PaymentAttempt, error)
}

func NewMockAttemptStore() *MockAttemptStore {
	return &MockAttemptStore{attempts: make(map[string]*domain.PaymentAttempt)}
}

func (m *MockAttemptStore) Seed(attempt *domain.PaymentAttempt) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *attempt
	m.attempts[attempt.ID] = &cp
}

func (m *MockAttemptStore) Create(ctx context.Context, tx pgx.Tx, attempt *domain.PaymentAttempt) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, tx, attempt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.attempts {
		if existing.OrderID == attempt.OrderID && existing.Status == domain.AttemptPending {
			return domain.NewActiveAttemptError(attempt.OrderID)
		}
	}
	cp := *attempt
	m.attempts[attempt.ID] = &cp
	return nil
}

func (m *MockAttemptStore) FindByID(ctx context.Context, id string) (*domain.PaymentAttempt, error) {
	if m.FindByIDFn != nil {
		return m.FindByIDFn(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	attempt, ok := m.attempts[id]
	if !ok {
		return nil, postgres.ErrAttemptNotFound
	}
	cp := *attempt
	return &cp, nil
}

func (m *MockAttemptStore) FindActiveByOrderID(ctx context.Context, orderID string) (*domain.PaymentAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, attempt := range m.attempts {
		if attempt.OrderID == orderID && attempt.Status == domain.AttemptPending {
			cp := *attempt
			return &cp, nil
		}
	}
	return nil, postgres.ErrAttemptNotFound
}

func (m *MockAttemptStore) FindByProviderTransactionID(ctx context.Context, providerTxID string) (*domain.PaymentAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, attempt := range m.attempts {
		if attempt.ProviderTransactionID != nil && *attempt.ProviderTransactionID == providerTxID {
			cp := *attempt
			return &cp, nil
		}
	}
	return nil, postgres.ErrAttemptNotFound
}

func (m *MockAttemptStore) ConfirmIfPending(ctx context.Context, tx pgx.Tx, attemptID string, confirmedAt time.Time) (bool, error) {
	if m.ConfirmIfPendingFn != nil {
		return m.ConfirmIfPendingFn(ctx, tx, attemptID, confirmedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	attempt, ok := m.attempts[attemptID]
	if !ok {
		return false, postgres.ErrAttemptNotFound
	}
	if attempt.Status != domain.AttemptPending {
		return false, nil
	}
	attempt.Status = domain.AttemptConfirmed
	at := confirmedAt
	attempt.ConfirmedAt = &at
	return true, nil
}

func (m *MockAttemptStore) TerminateIfPending(ctx context.Context, tx pgx.Tx, attemptID string, status domain.AttemptStatus, reason *string) (bool, error) {
	if m.TerminateIfPendingFn != nil {
		return m.TerminateIfPendingFn(ctx, tx, attemptID, status, reason)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	attempt, ok := m.attempts[attemptID]
	if !ok {
		return false, postgres.ErrAttemptNotFound
	}
	if attempt.Status != domain.AttemptPending {
		return false, nil
	}
	attempt.Status = status
	attempt.FailureReason = reason
	return true, nil
}

func (m *MockAttemptStore) FindExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]*domain.PaymentAttempt, error) {
	if m.FindExpiredPendingFn != nil {
		return m.FindExpiredPendingFn(ctx, cutoff, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.PaymentAttempt
	for _, attempt := range m.attempts {
		if attempt.Status == domain.AttemptPending && attempt.ExpiresAt != nil && attempt.ExpiresAt.Before(cutoff) {
			cp := *attempt
			out = append(out, &cp)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// MockTxRunner runs the transaction function directly with a nil tx. The
// in-memory stores do not distinguish transactional from plain calls.
type MockTxRunner struct {
	WithTxFn func(ctx context.Context, fn func(tx pgx.Tx) error) error
}

func (m *MockTxRunner) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	if m.WithTxFn != nil {
		return m.WithTxFn(ctx, fn)
	}
	return fn(nil)
}

// RecordingNotifier counts enqueues so tests can assert exactly-once delivery.
type RecordingNotifier struct {
	mu            sync.Mutex
	Notifications []application.Notification
	EnqueueFn     func(ctx context.Context, n application.Notification) error
}

func (r *RecordingNotifier) Enqueue(ctx context.Context, n application.Notification) error {
	if r.EnqueueFn != nil {
		return r.EnqueueFn(ctx, n)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Notifications = append(r.Notifications, n)
	return nil
}

func (r *RecordingNotifier) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Notifications)
}

// RecordingPublisher captures hub publishes.
type RecordingPublisher struct {
	mu       sync.Mutex
	Statuses []domain.AttemptStatus
}

func (r *RecordingPublisher) Publish(attemptID string, status domain.AttemptStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Statuses = append(r.Statuses, status)
}

func (r *RecordingPublisher) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Statuses)
}

// NewAwaitingOrder returns an order mid-checkout: awaiting payment in BRL.
func NewAwaitingOrder(totalCents int64) *domain.Order {
	method := domain.MethodGatewayPix
	now := time.Now()
	return domain.ReconstituteOrder(
		uuid.New().String(),
		"cust-"+uuid.New().String(),
		totalCents, "BRL",
		domain.OrderAwaitingPayment, domain.PaymentPending,
		&method, nil,
		now, now,
	)
}

// NewCreatedOrder returns a fresh order that has not entered checkout.
func NewCreatedOrder(totalCents int64) *domain.Order {
	now := time.Now()
	return domain.ReconstituteOrder(
		uuid.New().String(),
		"cust-"+uuid.New().String(),
		totalCents, "BRL",
		domain.OrderCreated, domain.PaymentPending,
		nil, nil,
		now, now,
	)
}

// NewPendingAttempt returns a pending attempt on the given order.
func NewPendingAttempt(orderID string, method domain.PaymentMethod, amountCents int64, expiresAt *time.Time) *domain.PaymentAttempt {
	providerTxID := "pay_" + uuid.New().String()
	return domain.ReconstituteAttempt(
		uuid.New().String(),
		orderID, method,
		amountCents, "BRL",
		domain.AttemptPending,
		&providerTxID, nil, nil, nil,
		expiresAt, nil, nil,
		time.Now(),
	)
}
