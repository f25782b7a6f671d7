package testhelpers

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petinel/payments-service/internal/domain"
)

// The order and attempt tables declare UUID primary keys, so factory ids
// must parse as UUIDs or the integration suite cannot insert them.
func TestFactories_EmitUUIDIdentifiers(t *testing.T) {
	order := NewAwaitingOrder(5990)
	_, err := uuid.Parse(order.ID)
	require.NoError(t, err)

	created := NewCreatedOrder(100)
	_, err = uuid.Parse(created.ID)
	require.NoError(t, err)

	expires := time.Now().Add(30 * time.Minute)
	attempt := NewPendingAttempt(order.ID, domain.MethodGatewayPix, 5990, &expires)
	_, err = uuid.Parse(attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, attempt.OrderID)
}
