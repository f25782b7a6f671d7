package postgres_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/petinel/payments-service/internal/application/services/testhelpers"
	"github.com/petinel/payments-service/internal/domain"
	"github.com/petinel/payments-service/internal/infrastructure/persistence/postgres"
)

type RepositoryTestSuite struct {
	suite.Suite
	testDB      *testhelpers.TestDatabase
	orderRepo   *postgres.OrderRepository
	attemptRepo *postgres.AttemptRepository
}

func TestRepositorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed repository tests in short mode")
	}
	suite.Run(t, new(RepositoryTestSuite))
}

func (s *RepositoryTestSuite) SetupSuite() {
	s.testDB = testhelpers.SetupTestDatabase(s.T())
	s.orderRepo = postgres.NewOrderRepository(s.testDB.DB)
	s.attemptRepo = postgres.NewAttemptRepository(s.testDB.DB)
}

func (s *RepositoryTestSuite) TearDownSuite() {
	s.testDB.Cleanup(s.T())
}

func (s *RepositoryTestSuite) SetupTest() {
	s.testDB.CleanTables(s.T())
}

func (s *RepositoryTestSuite) createAwaitingOrder() *domain.Order {
	t := s.T()
	order := testhelpers.NewAwaitingOrder(5990)
	require.NoError(t, s.orderRepo.Create(context.Background(), nil, order))
	return order
}

func (s *RepositoryTestSuite) createPendingAttempt(orderID string) *domain.PaymentAttempt {
	t := s.T()
	expires := time.Now().Add(30 * time.Minute)
	attempt := testhelpers.NewPendingAttempt(orderID, domain.MethodGatewayPix, 5990, &expires)
	require.NoError(t, s.attemptRepo.Create(context.Background(), nil, attempt))
	return attempt
}

func (s *RepositoryTestSuite) Test_Order_RoundTrip() {
	t := s.T()
	ctx := context.Background()
	order := s.createAwaitingOrder()

	found, err := s.orderRepo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.CustomerID, found.CustomerID)
	assert.Equal(t, int64(5990), found.TotalCents)
	assert.Equal(t, domain.OrderAwaitingPayment, found.Status)

	_, err = s.orderRepo.FindByID(ctx, uuid.New().String())
	assert.ErrorIs(t, err, postgres.ErrOrderNotFound)
}

func (s *RepositoryTestSuite) Test_Attempt_RoundTrip() {
	t := s.T()
	ctx := context.Background()
	order := s.createAwaitingOrder()
	attempt := s.createPendingAttempt(order.ID)

	found, err := s.attemptRepo.FindByID(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptPending, found.Status)
	assert.Equal(t, *attempt.ProviderTransactionID, *found.ProviderTransactionID)
	require.NotNil(t, found.ExpiresAt)

	byTx, err := s.attemptRepo.FindByProviderTransactionID(ctx, *attempt.ProviderTransactionID)
	require.NoError(t, err)
	assert.Equal(t, attempt.ID, byTx.ID)

	active, err := s.attemptRepo.FindActiveByOrderID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, attempt.ID, active.ID)
}

func (s *RepositoryTestSuite) Test_Attempt_OnePendingPerOrder() {
	t := s.T()
	ctx := context.Background()
	order := s.createAwaitingOrder()
	s.createPendingAttempt(order.ID)

	second := testhelpers.NewPendingAttempt(order.ID, domain.MethodPixDirect, 5990, nil)
	err := s.attemptRepo.Create(ctx, nil, second)

	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeActiveAttempt, domainErr.Code)
}

func (s *RepositoryTestSuite) Test_Attempt_SecondPendingAllowedAfterTermination() {
	t := s.T()
	ctx := context.Background()
	order := s.createAwaitingOrder()
	first := s.createPendingAttempt(order.ID)

	reason := "declined"
	changed, err := s.attemptRepo.TerminateIfPending(ctx, nil, first.ID, domain.AttemptFailed, &reason)
	require.NoError(t, err)
	require.True(t, changed)

	second := testhelpers.NewPendingAttempt(order.ID, domain.MethodPixDirect, 5990, nil)
	require.NoError(t, s.attemptRepo.Create(ctx, nil, second))
}

func (s *RepositoryTestSuite) Test_ConfirmIfPending_OnlyOneWinner() {
	t := s.T()
	ctx := context.Background()
	order := s.createAwaitingOrder()
	attempt := s.createPendingAttempt(order.ID)

	const racers = 10
	var wg sync.WaitGroup
	wins := make(chan bool, racers)
	for range racers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			changed, err := s.attemptRepo.ConfirmIfPending(ctx, nil, attempt.ID, time.Now())
			assert.NoError(t, err)
			wins <- changed
		}()
	}
	wg.Wait()
	close(wins)

	var winners int
	for won := range wins {
		if won {
			winners++
		}
	}
	assert.Equal(t, 1, winners)

	saved, err := s.attemptRepo.FindByID(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptConfirmed, saved.Status)
	assert.NotNil(t, saved.ConfirmedAt)
}

func (s *RepositoryTestSuite) Test_TerminateIfPending_LosesToConfirmation() {
	t := s.T()
	ctx := context.Background()
	order := s.createAwaitingOrder()
	attempt := s.createPendingAttempt(order.ID)

	changed, err := s.attemptRepo.ConfirmIfPending(ctx, nil, attempt.ID, time.Now())
	require.NoError(t, err)
	require.True(t, changed)

	changed, err = s.attemptRepo.TerminateIfPending(ctx, nil, attempt.ID, domain.AttemptExpired, nil)
	require.NoError(t, err)
	assert.False(t, changed, "expiry must not overwrite a confirmation")

	saved, err := s.attemptRepo.FindByID(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptConfirmed, saved.Status)
}

func (s *RepositoryTestSuite) Test_TerminateIfPending_RejectsConfirmedTarget() {
	t := s.T()
	ctx := context.Background()
	order := s.createAwaitingOrder()
	attempt := s.createPendingAttempt(order.ID)

	_, err := s.attemptRepo.TerminateIfPending(ctx, nil, attempt.ID, domain.AttemptConfirmed, nil)
	assert.Error(t, err)
}

func (s *RepositoryTestSuite) Test_MarkPaidIfAwaiting() {
	t := s.T()
	ctx := context.Background()
	order := s.createAwaitingOrder()

	changed, err := s.orderRepo.MarkPaidIfAwaiting(ctx, nil, order.ID, domain.MethodGatewayPix)
	require.NoError(t, err)
	assert.True(t, changed)

	// Second flip finds no awaiting row.
	changed, err = s.orderRepo.MarkPaidIfAwaiting(ctx, nil, order.ID, domain.MethodGatewayPix)
	require.NoError(t, err)
	assert.False(t, changed)

	saved, err := s.orderRepo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPaid, saved.Status)
	assert.Equal(t, domain.PaymentConfirmed, saved.PaymentStatus)
}

func (s *RepositoryTestSuite) Test_FindExpiredPending() {
	t := s.T()
	ctx := context.Background()
	order := s.createAwaitingOrder()

	expired := time.Now().Add(-time.Minute)
	attempt := testhelpers.NewPendingAttempt(order.ID, domain.MethodPixDirect, 5990, &expired)
	require.NoError(t, s.attemptRepo.Create(ctx, nil, attempt))

	otherOrder := s.createAwaitingOrder()
	future := time.Now().Add(time.Hour)
	fresh := testhelpers.NewPendingAttempt(otherOrder.ID, domain.MethodPixDirect, 5990, &future)
	require.NoError(t, s.attemptRepo.Create(ctx, nil, fresh))

	found, err := s.attemptRepo.FindExpiredPending(ctx, time.Now(), 100)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, attempt.ID, found[0].ID)
}

func (s *RepositoryTestSuite) Test_WithTx_RollsBackOnError() {
	t := s.T()
	ctx := context.Background()
	order := s.createAwaitingOrder()

	attempt := testhelpers.NewPendingAttempt(order.ID, domain.MethodGatewayPix, 5990, nil)
	err := s.testDB.DB.WithTx(ctx, func(tx pgx.Tx) error {
		if err := s.attemptRepo.Create(ctx, tx, attempt); err != nil {
			return err
		}
		return errForcedRollback
	})
	require.ErrorIs(t, err, errForcedRollback)

	_, err = s.attemptRepo.FindByID(ctx, attempt.ID)
	assert.ErrorIs(t, err, postgres.ErrAttemptNotFound)
}

var errForcedRollback = errors.New("forced rollback")
