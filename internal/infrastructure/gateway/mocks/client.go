// Package mocks provides a testify mock for the gateway client.
package mocks

import (
	"context"
	"testing"

	"github.com/petinel/payments-service/internal/application"
	"github.com/stretchr/testify/mock"
)

type MockGatewayClient struct {
	mock.Mock
}

func NewMockGatewayClient(t *testing.T) *MockGatewayClient {
	m := &MockGatewayClient{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockGatewayClient) FindOrCreateCustomer(ctx context.Context, identity application.CustomerIdentity) (string, error) {
	args := m.Called(ctx, identity)
	return args.String(0), args.Error(1)
}

func (m *MockGatewayClient) CreateCharge(ctx context.Context, req application.ChargeRequest) (*application.ProviderPayment, error) {
	args := m.Called(ctx, req)
	if p, ok := args.Get(0).(*application.ProviderPayment); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockGatewayClient) CancelCharge(ctx context.Context, providerPaymentID string) error {
	args := m.Called(ctx, providerPaymentID)
	return args.Error(0)
}
