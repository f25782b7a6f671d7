package gateway

import (
	"errors"
	"fmt"
	"strings"
)

type GatewayError struct {
	Code       string
	Message    string
	StatusCode int
}

type gatewayErrorResponse struct {
	Errors []struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"errors"`
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway error [%s]: %s (status: %d)", e.Code, e.Message, e.StatusCode)
}

func (e *GatewayError) IsRetryable() bool {
	return e.StatusCode >= 500
}

func IsGatewayError(err error) (*GatewayError, bool) {
	var gwErr *GatewayError
	ok := errors.As(err, &gwErr)
	return gwErr, ok
}

// RejectionCategory collapses the provider's error vocabulary into the small
// set shown to end users. Raw provider text stays in logs only.
func (e *GatewayError) RejectionCategory() string {
	code := strings.ToLower(e.Code)
	switch {
	case strings.Contains(code, "creditcard") || strings.Contains(code, "credit_card"):
		return "invalid_card"
	case strings.Contains(code, "insufficient") || strings.Contains(code, "declined") || strings.Contains(code, "refused"):
		return "declined"
	case strings.Contains(code, "cpfcnpj") || strings.Contains(code, "customer"):
		return "invalid_customer_data"
	default:
		return "declined"
	}
}
