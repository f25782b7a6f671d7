package domain

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Money is an amount in currency minor units (centavos).
type Money struct {
	Cents    int64
	Currency string
}

func NewMoney(cents int64, currency string) (Money, error) {
	if cents <= 0 {
		return Money{}, errors.New("amount must be positive")
	}
	if currency == "" {
		return Money{}, errors.New("currency is required")
	}
	return Money{Cents: cents, Currency: currency}, nil
}

// Decimal returns the amount in currency major units, the form the payment
// provider expects on the wire (59.90, not 5990).
func (m Money) Decimal() decimal.Decimal {
	return decimal.NewFromInt(m.Cents).Div(decimal.NewFromInt(100))
}

// MoneyFromDecimal converts a provider-supplied major-unit value to cents.
func MoneyFromDecimal(value decimal.Decimal, currency string) (Money, error) {
	cents := value.Mul(decimal.NewFromInt(100))
	if !cents.IsInteger() {
		return Money{}, errors.New("value has sub-cent precision")
	}
	return NewMoney(cents.IntPart(), currency)
}
