package application

import (
	"errors"
	"fmt"
	"net/http"
)

// APPLICATION-LEVEL ERRORS (Orchestration)

type ServiceError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

const (
	ErrCodeProviderUnavailable = "PROVIDER_UNAVAILABLE"
	ErrCodeChargeRejected      = "CHARGE_REJECTED"
	ErrCodeAlreadyPaid         = "ALREADY_PAID"
	ErrCodeInvalidWebhookAuth  = "INVALID_WEBHOOK_AUTH"
	ErrCodeActiveAttempt       = "ACTIVE_ATTEMPT_EXISTS"
	ErrCodePersistence         = "PERSISTENCE_FAILURE"
	ErrCodeInternal            = "INTERNAL_ERROR"
	ErrCodeInvalidInput        = "INVALID_INPUT"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeNotFound            = "NOT_FOUND"
)

// User-facing rejection categories. Raw provider text never leaves the service.
const (
	RejectionInvalidCard         = "invalid_card"
	RejectionDeclined            = "declined"
	RejectionInvalidCustomerData = "invalid_customer_data"
)

func NewProviderUnavailableError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeProviderUnavailable,
		Message:    "Payment provider is unavailable. Please try again.",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

func NewChargeRejectedError(category string, err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeChargeRejected,
		Message:    "Charge was rejected: " + category,
		HTTPStatus: http.StatusUnprocessableEntity,
		Err:        err,
	}
}

func NewAlreadyPaidError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeAlreadyPaid,
		Message:    "Order is already paid",
		HTTPStatus: http.StatusConflict,
		Err:        err,
	}
}

func NewAttemptConflictError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeActiveAttempt,
		Message:    "Order already has a pending payment attempt",
		HTTPStatus: http.StatusConflict,
		Err:        err,
	}
}

// NewPersistenceError marks a transient storage failure. The webhook handler
// maps it to a 5xx so the provider retries instead of giving up.
func NewPersistenceError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodePersistence,
		Message:    "Could not persist payment state",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

func NewInternalError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInternal,
		Message:    "An internal error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewInvalidInputError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInvalidInput,
		Message:    "Invalid input",
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
	}
}

func NewForbiddenError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeForbidden,
		Message:    "Not allowed",
		HTTPStatus: http.StatusForbidden,
		Err:        err,
	}
}

func NewNotFoundError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeNotFound,
		Message:    "Not found",
		HTTPStatus: http.StatusNotFound,
		Err:        err,
	}
}

func IsServiceError(err error) (*ServiceError, bool) {
	var svcErr *ServiceError
	ok := errors.As(err, &svcErr)
	return svcErr, ok
}
