package domain_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petinel/payments-service/internal/domain"
)

func newTestOrder(t *testing.T) *domain.Order {
	t.Helper()
	total, err := domain.NewMoney(12900, "BRL")
	require.NoError(t, err)
	order, err := domain.NewOrder("order-1", "cust-1", total)
	require.NoError(t, err)
	return order
}

func TestOrder_MarkAwaitingPaymentRecordsRail(t *testing.T) {
	order := newTestOrder(t)
	ref := "pay_123"

	require.NoError(t, order.MarkAwaitingPayment(domain.MethodGatewayBoleto, &ref))

	assert.Equal(t, domain.OrderAwaitingPayment, order.Status)
	require.NotNil(t, order.PaymentMethod)
	assert.Equal(t, domain.MethodGatewayBoleto, *order.PaymentMethod)
	assert.Equal(t, "pay_123", *order.ExternalPaymentRef)
}

func TestOrder_MarkAwaitingPaymentSwitchesRailOnRetry(t *testing.T) {
	order := newTestOrder(t)
	require.NoError(t, order.MarkAwaitingPayment(domain.MethodGatewayCard, nil))

	// Card declined, customer retries on direct PIX.
	require.NoError(t, order.MarkAwaitingPayment(domain.MethodPixDirect, nil))

	assert.Equal(t, domain.OrderAwaitingPayment, order.Status)
	assert.Equal(t, domain.MethodPixDirect, *order.PaymentMethod)
}

func newPaidOrder() *domain.Order {
	now := time.Now()
	method := domain.MethodGatewayCard
	return domain.ReconstituteOrder(
		"order-2", "cust-1", 12900, "BRL",
		domain.OrderPaid, domain.PaymentConfirmed,
		&method, nil, now, now,
	)
}

func TestOrder_RefundOnlyFromPaid(t *testing.T) {
	order := newTestOrder(t)
	assert.Error(t, order.MarkRefunded())

	require.NoError(t, order.MarkAwaitingPayment(domain.MethodGatewayCard, nil))
	assert.Error(t, order.MarkRefunded(), "awaiting orders cannot be refunded")

	paid := newPaidOrder()
	assert.True(t, paid.IsPaid())
	require.NoError(t, paid.MarkRefunded())

	assert.Equal(t, domain.OrderCancelled, paid.Status)
	assert.Equal(t, domain.PaymentRefunded, paid.PaymentStatus)
}

func TestOrder_MarkOverdueOnlyShadesAwaitingOrders(t *testing.T) {
	order := newTestOrder(t)

	order.MarkOverdue()
	assert.Equal(t, domain.PaymentPending, order.PaymentStatus, "created orders do not go overdue")

	require.NoError(t, order.MarkAwaitingPayment(domain.MethodGatewayBoleto, nil))
	order.MarkOverdue()
	assert.Equal(t, domain.PaymentOverdue, order.PaymentStatus)
	assert.Equal(t, domain.OrderAwaitingPayment, order.Status, "overdue never finalizes the order")

	paid := newPaidOrder()
	paid.MarkOverdue()
	assert.Equal(t, domain.PaymentConfirmed, paid.PaymentStatus, "paid orders never shade overdue")
}

func TestParsePaymentMethod(t *testing.T) {
	method, err := domain.ParsePaymentMethod("PIX_DIRECT")
	require.NoError(t, err)
	assert.Equal(t, domain.MethodPixDirect, method)
	assert.False(t, method.GatewayMediated())

	method, err = domain.ParsePaymentMethod("GATEWAY_BOLETO")
	require.NoError(t, err)
	assert.True(t, method.GatewayMediated())

	_, err = domain.ParsePaymentMethod("WIRE_TRANSFER")
	assert.Error(t, err)
}

func TestMoney(t *testing.T) {
	_, err := domain.NewMoney(0, "BRL")
	assert.Error(t, err)

	_, err = domain.NewMoney(100, "")
	assert.Error(t, err)

	m, err := domain.NewMoney(5990, "BRL")
	require.NoError(t, err)
	assert.Equal(t, "59.9", m.Decimal().String())

	back, err := domain.MoneyFromDecimal(m.Decimal(), "BRL")
	require.NoError(t, err)
	assert.Equal(t, int64(5990), back.Cents)

	subCent := m.Decimal().Add(decimal.NewFromFloat(0.005))
	_, err = domain.MoneyFromDecimal(subCent, "BRL")
	assert.Error(t, err, "sub-cent values are rejected")
}
