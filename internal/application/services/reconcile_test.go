package services_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petinel/payments-service/internal/application"
	"github.com/petinel/payments-service/internal/application/services"
	"github.com/petinel/payments-service/internal/application/services/testhelpers"
	"github.com/petinel/payments-service/internal/domain"
)

type reconcileFixture struct {
	orders    *testhelpers.MockOrderStore
	attempts  *testhelpers.MockAttemptStore
	publisher *testhelpers.RecordingPublisher
	notifier  *testhelpers.RecordingNotifier
	service   *services.ReconcileService
}

func newReconcileFixture() *reconcileFixture {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &reconcileFixture{
		orders:    testhelpers.NewMockOrderStore(),
		attempts:  testhelpers.NewMockAttemptStore(),
		publisher: &testhelpers.RecordingPublisher{},
		notifier:  &testhelpers.RecordingNotifier{},
	}
	f.service = services.NewReconcileService(
		f.orders, f.attempts, &testhelpers.MockTxRunner{}, f.publisher, f.notifier, logger,
	)
	return f
}

func (f *reconcileFixture) seedPendingAttempt(method domain.PaymentMethod) (*domain.Order, *domain.PaymentAttempt) {
	order := testhelpers.NewAwaitingOrder(5990)
	attempt := testhelpers.NewPendingAttempt(order.ID, method, order.TotalCents, nil)
	f.orders.Seed(order)
	f.attempts.Seed(attempt)
	return order, attempt
}

func TestApplyProviderEvent_ConfirmFlipsAttemptAndOrder(t *testing.T) {
	f := newReconcileFixture()
	order, attempt := f.seedPendingAttempt(domain.MethodGatewayPix)

	err := f.service.ApplyProviderEvent(context.Background(), services.ProviderEvent{
		EventType:         services.EventPaymentConfirmed,
		ProviderPaymentID: *attempt.ProviderTransactionID,
		OrderRef:          order.ID,
	})
	require.NoError(t, err)

	saved, err := f.attempts.FindByID(context.Background(), attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptConfirmed, saved.Status)
	assert.NotNil(t, saved.ConfirmedAt)

	savedOrder, err := f.orders.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPaid, savedOrder.Status)
	assert.Equal(t, domain.PaymentConfirmed, savedOrder.PaymentStatus)

	assert.Equal(t, 1, f.publisher.Count())
	require.Equal(t, 1, f.notifier.Count())
	assert.Equal(t, "payment_confirmed", f.notifier.Notifications[0].Kind)
}

func TestApplyProviderEvent_AmountMismatchStillConfirms(t *testing.T) {
	f := newReconcileFixture()
	order, attempt := f.seedPendingAttempt(domain.MethodGatewayPix)

	// The provider reports a different amount; the local record stays
	// authoritative and the confirmation lands anyway.
	err := f.service.ApplyProviderEvent(context.Background(), services.ProviderEvent{
		EventType:         services.EventPaymentConfirmed,
		ProviderPaymentID: *attempt.ProviderTransactionID,
		OrderRef:          order.ID,
		AmountCents:       6000,
	})
	require.NoError(t, err)

	saved, err := f.attempts.FindByID(context.Background(), attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptConfirmed, saved.Status)
	assert.Equal(t, 1, f.publisher.Count())
}

func TestApplyProviderEvent_DuplicateDeliveryIsIdempotent(t *testing.T) {
	f := newReconcileFixture()
	order, attempt := f.seedPendingAttempt(domain.MethodGatewayPix)

	evt := services.ProviderEvent{
		EventType:         services.EventPaymentReceived,
		ProviderPaymentID: *attempt.ProviderTransactionID,
		OrderRef:          order.ID,
	}

	require.NoError(t, f.service.ApplyProviderEvent(context.Background(), evt))
	require.NoError(t, f.service.ApplyProviderEvent(context.Background(), evt))
	require.NoError(t, f.service.ApplyProviderEvent(context.Background(), evt))

	assert.Equal(t, 1, f.publisher.Count())
	assert.Equal(t, 1, f.notifier.Count())
}

func TestApplyProviderEvent_ConcurrentDeliveriesFireSideEffectsOnce(t *testing.T) {
	f := newReconcileFixture()
	order, attempt := f.seedPendingAttempt(domain.MethodGatewayPix)

	evt := services.ProviderEvent{
		EventType:         services.EventPaymentConfirmed,
		ProviderPaymentID: *attempt.ProviderTransactionID,
		OrderRef:          order.ID,
	}

	const deliveries = 20
	var wg sync.WaitGroup
	errs := make(chan error, deliveries)
	for range deliveries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- f.service.ApplyProviderEvent(context.Background(), evt)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, 1, f.publisher.Count())
	assert.Equal(t, 1, f.notifier.Count())

	saved, err := f.attempts.FindByID(context.Background(), attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptConfirmed, saved.Status)
}

func TestApplyProviderEvent_OverdueKeepsAttemptPending(t *testing.T) {
	f := newReconcileFixture()
	order, attempt := f.seedPendingAttempt(domain.MethodGatewayBoleto)

	err := f.service.ApplyProviderEvent(context.Background(), services.ProviderEvent{
		EventType: services.EventPaymentOverdue,
		OrderRef:  order.ID,
	})
	require.NoError(t, err)

	saved, err := f.attempts.FindByID(context.Background(), attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptPending, saved.Status)

	savedOrder, err := f.orders.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentOverdue, savedOrder.PaymentStatus)
	assert.Equal(t, domain.OrderAwaitingPayment, savedOrder.Status)

	// A confirmation after overdue still lands.
	err = f.service.ApplyProviderEvent(context.Background(), services.ProviderEvent{
		EventType:         services.EventPaymentConfirmed,
		ProviderPaymentID: *attempt.ProviderTransactionID,
		OrderRef:          order.ID,
	})
	require.NoError(t, err)

	saved, err = f.attempts.FindByID(context.Background(), attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptConfirmed, saved.Status)
}

func TestApplyProviderEvent_UnknownEventIsAcknowledged(t *testing.T) {
	f := newReconcileFixture()
	order, attempt := f.seedPendingAttempt(domain.MethodGatewayPix)

	err := f.service.ApplyProviderEvent(context.Background(), services.ProviderEvent{
		EventType: "PAYMENT_BANK_SLIP_VIEWED",
		OrderRef:  order.ID,
	})
	require.NoError(t, err)

	saved, err := f.attempts.FindByID(context.Background(), attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptPending, saved.Status)
	assert.Equal(t, 0, f.publisher.Count())
}

func TestApplyProviderEvent_UnknownAttemptIsAcknowledged(t *testing.T) {
	f := newReconcileFixture()

	order := testhelpers.NewAwaitingOrder(5990)
	f.orders.Seed(order)

	err := f.service.ApplyProviderEvent(context.Background(), services.ProviderEvent{
		EventType:         services.EventPaymentConfirmed,
		ProviderPaymentID: "pay_never_seen",
		OrderRef:          order.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, f.notifier.Count())
}

func TestApplyProviderEvent_MissingOrderRefRejected(t *testing.T) {
	f := newReconcileFixture()

	err := f.service.ApplyProviderEvent(context.Background(), services.ProviderEvent{
		EventType:         services.EventPaymentConfirmed,
		ProviderPaymentID: "pay_123",
	})

	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, application.ErrCodeInvalidInput, svcErr.Code)
}

func TestExpireAttempt_LateConfirmationWins(t *testing.T) {
	f := newReconcileFixture()
	_, attempt := f.seedPendingAttempt(domain.MethodPixDirect)

	require.NoError(t, f.service.ConfirmAttempt(context.Background(), attempt))

	// The sweep fires after confirmation already landed.
	require.NoError(t, f.service.ExpireAttempt(context.Background(), attempt))

	saved, err := f.attempts.FindByID(context.Background(), attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptConfirmed, saved.Status)
}

func TestConfirmAttempt_AfterExpiryIsSwallowedAnomaly(t *testing.T) {
	f := newReconcileFixture()
	_, attempt := f.seedPendingAttempt(domain.MethodGatewayPix)

	require.NoError(t, f.service.ExpireAttempt(context.Background(), attempt))

	// A very late webhook confirmation for the expired attempt.
	err := f.service.ConfirmAttempt(context.Background(), attempt)
	require.NoError(t, err)

	saved, err := f.attempts.FindByID(context.Background(), attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptExpired, saved.Status)
	assert.Equal(t, 0, f.notifier.Count())
}

func TestApplyProviderEvent_DeletedFailsAttempt(t *testing.T) {
	f := newReconcileFixture()
	order, attempt := f.seedPendingAttempt(domain.MethodGatewayBoleto)

	err := f.service.ApplyProviderEvent(context.Background(), services.ProviderEvent{
		EventType:         services.EventPaymentDeleted,
		ProviderPaymentID: *attempt.ProviderTransactionID,
		OrderRef:          order.ID,
	})
	require.NoError(t, err)

	saved, err := f.attempts.FindByID(context.Background(), attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptFailed, saved.Status)
	require.NotNil(t, saved.FailureReason)
	assert.Equal(t, "cancelled_at_provider", *saved.FailureReason)

	savedOrder, err := f.orders.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderAwaitingPayment, savedOrder.Status)
}

func TestApplyProviderEvent_RefundCancelsPaidOrder(t *testing.T) {
	f := newReconcileFixture()
	order, attempt := f.seedPendingAttempt(domain.MethodGatewayCard)

	require.NoError(t, f.service.ConfirmAttempt(context.Background(), attempt))

	err := f.service.ApplyProviderEvent(context.Background(), services.ProviderEvent{
		EventType:         services.EventPaymentRefunded,
		ProviderPaymentID: *attempt.ProviderTransactionID,
		OrderRef:          order.ID,
	})
	require.NoError(t, err)

	savedOrder, err := f.orders.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCancelled, savedOrder.Status)
	assert.Equal(t, domain.PaymentRefunded, savedOrder.PaymentStatus)
}

func TestConfirmManually_DirectPixOnly(t *testing.T) {
	f := newReconcileFixture()
	_, gatewayAttempt := f.seedPendingAttempt(domain.MethodGatewayPix)

	_, err := f.service.ConfirmManually(context.Background(), gatewayAttempt.ID)
	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, application.ErrCodeInvalidInput, svcErr.Code)

	directOrder := testhelpers.NewAwaitingOrder(2500)
	expires := time.Now().Add(30 * time.Minute)
	directAttempt := testhelpers.NewPendingAttempt(directOrder.ID, domain.MethodPixDirect, 2500, &expires)
	f.orders.Seed(directOrder)
	f.attempts.Seed(directAttempt)

	confirmed, err := f.service.ConfirmManually(context.Background(), directAttempt.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptConfirmed, confirmed.Status)
}

func TestConfirmAttempt_PersistenceFailureSurfacesAs5xx(t *testing.T) {
	f := newReconcileFixture()
	_, attempt := f.seedPendingAttempt(domain.MethodGatewayPix)

	f.attempts.ConfirmIfPendingFn = func(context.Context, pgx.Tx, string, time.Time) (bool, error) {
		return false, assert.AnError
	}

	err := f.service.ConfirmAttempt(context.Background(), attempt)
	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, application.ErrCodePersistence, svcErr.Code)
	assert.Equal(t, 0, f.notifier.Count())
}
