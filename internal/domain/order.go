// Package domain encodes orders, payment attempts and their lifecycles.
package domain

import (
	"errors"
	"slices"
	"time"
)

// OrderStatus represents the current state of an order in its lifecycle
type OrderStatus string

const (
	OrderCreated         OrderStatus = "CREATED"
	OrderAwaitingPayment OrderStatus = "AWAITING_PAYMENT"
	OrderPaid            OrderStatus = "PAID"
	OrderCancelled       OrderStatus = "CANCELLED"
)

// PaymentStatus tracks the payment view of an order. Unlike OrderStatus it
// carries non-terminal shades such as OVERDUE that never touch the attempt.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentConfirmed PaymentStatus = "CONFIRMED"
	PaymentOverdue   PaymentStatus = "OVERDUE"
	PaymentRefunded  PaymentStatus = "REFUNDED"
	PaymentCancelled PaymentStatus = "CANCELLED"
	PaymentFailed    PaymentStatus = "FAILED"
)

// PaymentMethod is the rail an attempt runs on.
type PaymentMethod string

const (
	MethodPixDirect     PaymentMethod = "PIX_DIRECT"
	MethodGatewayPix    PaymentMethod = "GATEWAY_PIX"
	MethodGatewayBoleto PaymentMethod = "GATEWAY_BOLETO"
	MethodGatewayCard   PaymentMethod = "GATEWAY_CARD"
)

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(s); m {
	case MethodPixDirect, MethodGatewayPix, MethodGatewayBoleto, MethodGatewayCard:
		return m, nil
	}
	return "", errors.New("unknown payment method: " + s)
}

// GatewayMediated reports whether the rail goes through the external provider.
func (m PaymentMethod) GatewayMediated() bool {
	return m != MethodPixDirect
}

type Order struct {
	ID                 string
	CustomerID         string
	TotalCents         int64
	Currency           string
	Status             OrderStatus
	PaymentStatus      PaymentStatus
	PaymentMethod      *PaymentMethod
	ExternalPaymentRef *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewOrder(id, customerID string, total Money) (*Order, error) {
	if id == "" {
		return nil, errors.New("order ID is required")
	}
	if customerID == "" {
		return nil, errors.New("customer ID is required")
	}

	now := time.Now()
	return &Order{
		ID:            id,
		CustomerID:    customerID,
		TotalCents:    total.Cents,
		Currency:      total.Currency,
		Status:        OrderCreated,
		PaymentStatus: PaymentPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Orders only ever move forward: CREATED -> AWAITING_PAYMENT -> {PAID, CANCELLED},
// plus the explicit refund path PAID -> CANCELLED.
func (o *Order) canTransitionTo(target OrderStatus) error {
	switch o.Status {
	case OrderCreated:
		return o.allow(target, OrderAwaitingPayment, OrderCancelled)
	case OrderAwaitingPayment:
		return o.allow(target, OrderPaid, OrderCancelled)
	case OrderPaid:
		return o.allow(target, OrderCancelled)
	}
	return errors.New("order is terminal")
}

func (o *Order) allow(target OrderStatus, allowed ...OrderStatus) error {
	if slices.Contains(allowed, target) {
		return nil
	}
	return errors.New("invalid order transition")
}

// MarkAwaitingPayment records which rail the order is charged on. An order
// already awaiting payment stays there: a new attempt after a failed one only
// refreshes the rail and provider reference.
func (o *Order) MarkAwaitingPayment(method PaymentMethod, externalRef *string) error {
	if o.Status != OrderAwaitingPayment {
		if err := o.canTransitionTo(OrderAwaitingPayment); err != nil {
			return err
		}
		o.Status = OrderAwaitingPayment
	}
	o.PaymentMethod = &method
	o.ExternalPaymentRef = externalRef
	o.UpdatedAt = time.Now()
	return nil
}

// The AWAITING_PAYMENT -> PAID flip happens through the store's conditional
// update so concurrent confirmations serialize at the data layer; there is no
// in-memory mutator for it.

// MarkRefunded is the only backward-looking move: PAID -> CANCELLED with the
// payment view recording the refund.
func (o *Order) MarkRefunded() error {
	if o.Status != OrderPaid {
		return errors.New("only paid orders can be refunded")
	}
	o.Status = OrderCancelled
	o.PaymentStatus = PaymentRefunded
	o.UpdatedAt = time.Now()
	return nil
}

func (o *Order) MarkOverdue() {
	// Non-terminal shading only. The order keeps awaiting payment; a late
	// confirmation still lands.
	if o.Status == OrderAwaitingPayment {
		o.PaymentStatus = PaymentOverdue
		o.UpdatedAt = time.Now()
	}
}

func (o *Order) IsPaid() bool {
	return o.Status == OrderPaid
}

// ReconstituteOrder - special constructor for loading from the store
func ReconstituteOrder(
	id, customerID string,
	totalCents int64, currency string,
	status OrderStatus, paymentStatus PaymentStatus,
	method *PaymentMethod, externalRef *string,
	createdAt, updatedAt time.Time,
) *Order {
	return &Order{
		ID:                 id,
		CustomerID:         customerID,
		TotalCents:         totalCents,
		Currency:           currency,
		Status:             status,
		PaymentStatus:      paymentStatus,
		PaymentMethod:      method,
		ExternalPaymentRef: externalRef,
		CreatedAt:          createdAt,
		UpdatedAt:          updatedAt,
	}
}
