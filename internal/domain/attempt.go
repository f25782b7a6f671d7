package domain

import (
	"errors"
	"slices"
	"time"
)

// AttemptStatus represents the state of a single payment attempt
type AttemptStatus string

const (
	AttemptPending   AttemptStatus = "PENDING"
	AttemptConfirmed AttemptStatus = "CONFIRMED"
	AttemptExpired   AttemptStatus = "EXPIRED"
	AttemptFailed    AttemptStatus = "FAILED"
)

// IsTerminal reports whether no further transitions are permitted.
func (s AttemptStatus) IsTerminal() bool {
	switch s {
	case AttemptConfirmed, AttemptExpired, AttemptFailed:
		return true
	default:
		return false
	}
}

// PaymentAttempt is one charge on one rail for one order. An order owns at
// most one non-terminal attempt at a time. Attempts are never deleted; they
// stay behind for audit and webhook replay.
type PaymentAttempt struct {
	ID          string
	OrderID     string
	Method      PaymentMethod
	AmountCents int64
	Currency    string
	Status      AttemptStatus

	ProviderTransactionID *string
	PixKey                *string
	PixPayload            *string
	InvoiceURL            *string

	ExpiresAt     *time.Time
	ConfirmedAt   *time.Time
	FailureReason *string

	CreatedAt time.Time
}

func NewPaymentAttempt(id, orderID string, method PaymentMethod, amount Money) (*PaymentAttempt, error) {
	if id == "" {
		return nil, errors.New("attempt ID is required")
	}
	if orderID == "" {
		return nil, errors.New("order ID is required")
	}

	return &PaymentAttempt{
		ID:          id,
		OrderID:     orderID,
		Method:      method,
		AmountCents: amount.Cents,
		Currency:    amount.Currency,
		Status:      AttemptPending,
		CreatedAt:   time.Now(),
	}, nil
}

// CanTransitionTo enforces the monotonic lifecycle: PENDING may move to any
// terminal state; re-applying the current terminal state is an idempotent
// no-op; moving between different terminal states is a stale transition.
func (a *PaymentAttempt) CanTransitionTo(target AttemptStatus) error {
	if a.Status == target {
		return nil
	}
	switch a.Status {
	case AttemptPending:
		return a.allow(target, AttemptConfirmed, AttemptExpired, AttemptFailed)
	default:
		return NewStaleTransitionError(a.Status, target)
	}
}

func (a *PaymentAttempt) allow(target AttemptStatus, allowed ...AttemptStatus) error {
	if slices.Contains(allowed, target) {
		return nil
	}
	return NewInvalidTransitionError(a.Status, target)
}

// Confirm transitions the attempt to CONFIRMED and records when.
func (a *PaymentAttempt) Confirm(at time.Time) error {
	if err := a.CanTransitionTo(AttemptConfirmed); err != nil {
		return err
	}
	if a.Status == AttemptConfirmed {
		return nil
	}
	a.Status = AttemptConfirmed
	a.ConfirmedAt = &at
	return nil
}

// Expire transitions the attempt to EXPIRED.
func (a *PaymentAttempt) Expire() error {
	if err := a.CanTransitionTo(AttemptExpired); err != nil {
		return err
	}
	a.Status = AttemptExpired
	return nil
}

// Fail transitions the attempt to FAILED with a reason for the audit trail.
func (a *PaymentAttempt) Fail(reason string) error {
	if err := a.CanTransitionTo(AttemptFailed); err != nil {
		return err
	}
	if a.Status == AttemptFailed {
		return nil
	}
	a.Status = AttemptFailed
	a.FailureReason = &reason
	return nil
}

// PastDeadline reports whether the attempt carries a hard expiry and has passed it.
func (a *PaymentAttempt) PastDeadline(now time.Time) bool {
	return a.ExpiresAt != nil && now.After(*a.ExpiresAt)
}

// ReconstituteAttempt - special constructor for loading from the store
func ReconstituteAttempt(
	id, orderID string, method PaymentMethod,
	amountCents int64, currency string,
	status AttemptStatus,
	providerTxID, pixKey, pixPayload, invoiceURL *string,
	expiresAt, confirmedAt *time.Time,
	failureReason *string,
	createdAt time.Time,
) *PaymentAttempt {
	return &PaymentAttempt{
		ID:                    id,
		OrderID:               orderID,
		Method:                method,
		AmountCents:           amountCents,
		Currency:              currency,
		Status:                status,
		ProviderTransactionID: providerTxID,
		PixKey:                pixKey,
		PixPayload:            pixPayload,
		InvoiceURL:            invoiceURL,
		ExpiresAt:             expiresAt,
		ConfirmedAt:           confirmedAt,
		FailureReason:         failureReason,
		CreatedAt:             createdAt,
	}
}
