// Package pixdirect self-issues PIX charges without an external gateway.
package pixdirect

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Direct charges always expire 30 minutes after issuance.
const ChargeTTL = 30 * time.Minute

type Issued struct {
	PixKey        string
	TransactionID string
	ExpiresAt     time.Time
}

type Issuer struct {
	now func() time.Time
}

func NewIssuer() *Issuer {
	return &Issuer{now: time.Now}
}

// Issue generates a fresh charge for the order: a random opaque key, a
// collision-resistant transaction id and the hard deadline. No network calls.
func (i *Issuer) Issue(orderID string, amountCents int64) (*Issued, error) {
	if orderID == "" {
		return nil, fmt.Errorf("order ID is required")
	}
	if amountCents <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}

	key, err := randomKey()
	if err != nil {
		return nil, fmt.Errorf("generate pix key: %w", err)
	}

	return &Issued{
		PixKey:        key,
		TransactionID: uuid.New().String(),
		ExpiresAt:     i.now().Add(ChargeTTL),
	}, nil
}

func randomKey() (string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf), nil
}
