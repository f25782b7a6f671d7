package domain

import "fmt"

// DomainError represents a business rule violation
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

const (
	ErrCodeInvalidTransition = "INVALID_TRANSITION"
	ErrCodeStaleTransition   = "STALE_TRANSITION"
	ErrCodeAlreadyPaid       = "ALREADY_PAID"
	ErrCodeActiveAttempt     = "ACTIVE_ATTEMPT_EXISTS"
	ErrCodeOrderNotFound     = "ORDER_NOT_FOUND"
	ErrCodeAttemptNotFound   = "ATTEMPT_NOT_FOUND"
	ErrCodeInvalidAmount     = "INVALID_AMOUNT"
	ErrCodeNotOrderOwner     = "NOT_ORDER_OWNER"
	ErrCodeWrongRail         = "WRONG_RAIL"
)

func NewInvalidTransitionError(from, to AttemptStatus) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("cannot transition attempt from %s to %s", from, to),
	}
}

// NewStaleTransitionError marks an event that would move a terminal attempt
// to a different terminal state. Callers log it and move on; it is never
// surfaced to the delivering provider.
func NewStaleTransitionError(current, proposed AttemptStatus) *DomainError {
	return &DomainError{
		Code:    ErrCodeStaleTransition,
		Message: fmt.Sprintf("attempt already terminal as %s, ignoring %s", current, proposed),
	}
}

func NewAlreadyPaidError(orderID string) *DomainError {
	return &DomainError{
		Code:    ErrCodeAlreadyPaid,
		Message: fmt.Sprintf("order %s is already paid", orderID),
	}
}

func NewActiveAttemptError(orderID string) *DomainError {
	return &DomainError{
		Code:    ErrCodeActiveAttempt,
		Message: fmt.Sprintf("order %s already has a pending payment attempt", orderID),
	}
}

func NewOrderNotFoundError(orderID string) *DomainError {
	return &DomainError{
		Code:    ErrCodeOrderNotFound,
		Message: fmt.Sprintf("order %s not found", orderID),
	}
}

func NewAttemptNotFoundError(attemptID string) *DomainError {
	return &DomainError{
		Code:    ErrCodeAttemptNotFound,
		Message: fmt.Sprintf("payment attempt %s not found", attemptID),
	}
}

func NewNotOrderOwnerError(orderID string) *DomainError {
	return &DomainError{
		Code:    ErrCodeNotOrderOwner,
		Message: fmt.Sprintf("order %s does not belong to the requesting customer", orderID),
	}
}

func NewWrongRailError(attemptID string, method PaymentMethod) *DomainError {
	return &DomainError{
		Code:    ErrCodeWrongRail,
		Message: fmt.Sprintf("operation not applicable to attempt %s on rail %s", attemptID, method),
	}
}
