package postgres

import "time"

type OrderModel struct {
	ID                 string
	CustomerID         string
	TotalCents         int64
	Currency           string
	Status             string
	PaymentStatus      string
	PaymentMethod      *string
	ExternalPaymentRef *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type AttemptModel struct {
	ID                    string
	OrderID               string
	Method                string
	AmountCents           int64
	Currency              string
	Status                string
	ProviderTransactionID *string
	PixKey                *string
	PixPayload            *string
	InvoiceURL            *string
	ExpiresAt             *time.Time
	ConfirmedAt           *time.Time
	FailureReason         *string
	CreatedAt             time.Time
}
