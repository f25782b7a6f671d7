package postgres

import (
	"github.com/petinel/payments-service/internal/domain"
)

// toOrderDomain: maps db model to domain entity
func toOrderDomain(m OrderModel) *domain.Order {
	var method *domain.PaymentMethod
	if m.PaymentMethod != nil {
		pm := domain.PaymentMethod(*m.PaymentMethod)
		method = &pm
	}
	return domain.ReconstituteOrder(
		m.ID,
		m.CustomerID,
		m.TotalCents,
		m.Currency,
		domain.OrderStatus(m.Status),
		domain.PaymentStatus(m.PaymentStatus),
		method,
		m.ExternalPaymentRef,
		m.CreatedAt,
		m.UpdatedAt,
	)
}

// toOrderModel: maps domain entity to db model
func toOrderModel(o *domain.Order) *OrderModel {
	var method *string
	if o.PaymentMethod != nil {
		s := string(*o.PaymentMethod)
		method = &s
	}
	return &OrderModel{
		ID:                 o.ID,
		CustomerID:         o.CustomerID,
		TotalCents:         o.TotalCents,
		Currency:           o.Currency,
		Status:             string(o.Status),
		PaymentStatus:      string(o.PaymentStatus),
		PaymentMethod:      method,
		ExternalPaymentRef: o.ExternalPaymentRef,
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
	}
}

// toAttemptDomain: maps db model to domain entity
func toAttemptDomain(m AttemptModel) *domain.PaymentAttempt {
	return domain.ReconstituteAttempt(
		m.ID,
		m.OrderID,
		domain.PaymentMethod(m.Method),
		m.AmountCents,
		m.Currency,
		domain.AttemptStatus(m.Status),
		m.ProviderTransactionID,
		m.PixKey,
		m.PixPayload,
		m.InvoiceURL,
		m.ExpiresAt,
		m.ConfirmedAt,
		m.FailureReason,
		m.CreatedAt,
	)
}

// toAttemptModel: maps domain entity to db model
func toAttemptModel(a *domain.PaymentAttempt) *AttemptModel {
	return &AttemptModel{
		ID:                    a.ID,
		OrderID:               a.OrderID,
		Method:                string(a.Method),
		AmountCents:           a.AmountCents,
		Currency:              a.Currency,
		Status:                string(a.Status),
		ProviderTransactionID: a.ProviderTransactionID,
		PixKey:                a.PixKey,
		PixPayload:            a.PixPayload,
		InvoiceURL:            a.InvoiceURL,
		ExpiresAt:             a.ExpiresAt,
		ConfirmedAt:           a.ConfirmedAt,
		FailureReason:         a.FailureReason,
		CreatedAt:             a.CreatedAt,
	}
}
