package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/petinel/payments-service/internal/application"
	"github.com/petinel/payments-service/internal/config"
)

// RetryGatewayClient decorates a GatewayClient with bounded retries on
// retryable failures. Cancellation is never retried so a compensating cancel
// failure stays a single best-effort call per attempt of the caller's loop.
type RetryGatewayClient struct {
	inner      application.GatewayClient
	baseDelay  time.Duration
	maxRetries int
}

func NewRetryGatewayClient(inner application.GatewayClient, cfg config.RetryConfig) application.GatewayClient {
	return &RetryGatewayClient{
		inner:      inner,
		baseDelay:  time.Duration(cfg.BaseDelay) * time.Second,
		maxRetries: int(cfg.MaxRetries),
	}
}

func (r *RetryGatewayClient) FindOrCreateCustomer(ctx context.Context, identity application.CustomerIdentity) (string, error) {
	ref, err := retry(r, ctx, func(ctx context.Context) (*string, error) {
		customerRef, err := r.inner.FindOrCreateCustomer(ctx, identity)
		if err != nil {
			return nil, err
		}
		return &customerRef, nil
	})
	if err != nil {
		return "", err
	}
	return *ref, nil
}

func (r *RetryGatewayClient) CreateCharge(ctx context.Context, req application.ChargeRequest) (*application.ProviderPayment, error) {
	return retry(r, ctx, func(ctx context.Context) (*application.ProviderPayment, error) {
		return r.inner.CreateCharge(ctx, req)
	})
}

func (r *RetryGatewayClient) CancelCharge(ctx context.Context, providerPaymentID string) error {
	return r.inner.CancelCharge(ctx, providerPaymentID)
}

// Generic retry helper
func retry[T any](r *RetryGatewayClient, ctx context.Context, operation func(ctx context.Context) (*T, error)) (*T, error) {
	var lastErr error

	for attempt := 0; attempt < r.maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		resp, err := operation(ctx)
		if err == nil {
			return resp, nil
		}

		lastErr = err

		if !isRetryable(err) {
			return nil, err
		}

		if attempt < r.maxRetries-1 {
			time.Sleep(r.backoff(attempt))
		}
	}

	return nil, fmt.Errorf("maximum retries exceeded: %w", lastErr)
}

// Helper: to check retryable errors
func isRetryable(err error) bool {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.IsRetryable()
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	// Network-level failures surface as plain wrapped errors.
	return true
}

// Backoff calculation with exponential delay and jitter
func (r *RetryGatewayClient) backoff(attempt int) time.Duration {
	base := r.baseDelay * time.Duration(1<<attempt)

	jitter := time.Duration(rand.Intn(1000)) * time.Millisecond

	return base + jitter
}
