package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/petinel/payments-service/internal/application"
	"github.com/petinel/payments-service/internal/domain"
	"github.com/petinel/payments-service/internal/infrastructure/gateway"
	"github.com/petinel/payments-service/internal/infrastructure/pixdirect"
	"github.com/petinel/payments-service/internal/infrastructure/persistence/postgres"
)

// Boleto slips carry a longer deadline than instant rails.
const boletoDueDays = 3

// Provider statuses a card charge may resolve to synchronously.
const (
	providerStatusConfirmed = "CONFIRMED"
	providerStatusReceived  = "RECEIVED"
	providerStatusRefused   = "REFUSED"
)

// CreateAttemptInput carries everything a checkout needs to open a charge.
// CustomerID comes from the authenticated session, never from the body.
type CreateAttemptInput struct {
	OrderID     string
	CustomerID  string
	Method      string
	AmountCents int64

	Customer     application.CustomerIdentity
	Card         *application.CardDetails
	Installments int
}

// CheckoutService opens payment attempts. It validates the order, dispatches
// to the requested rail and persists the attempt and order together, undoing
// the provider-side charge when the local write fails.
type CheckoutService struct {
	orders    application.OrderStore
	attempts  application.AttemptStore
	gateway   application.GatewayClient
	issuer    *pixdirect.Issuer
	reconcile *ReconcileService
	db        TxRunner
	logger    *slog.Logger
}

func NewCheckoutService(
	orders application.OrderStore,
	attempts application.AttemptStore,
	gatewayClient application.GatewayClient,
	issuer *pixdirect.Issuer,
	reconcile *ReconcileService,
	db TxRunner,
	logger *slog.Logger,
) *CheckoutService {
	return &CheckoutService{
		orders:    orders,
		attempts:  attempts,
		gateway:   gatewayClient,
		issuer:    issuer,
		reconcile: reconcile,
		db:        db,
		logger:    logger,
	}
}

// CreatePaymentAttempt opens a charge for the order on the requested rail.
func (s *CheckoutService) CreatePaymentAttempt(ctx context.Context, input CreateAttemptInput) (*domain.PaymentAttempt, error) {
	method, err := domain.ParsePaymentMethod(input.Method)
	if err != nil {
		return nil, application.NewInvalidInputError(err)
	}

	order, err := s.loadOrderForCheckout(ctx, input)
	if err != nil {
		return nil, err
	}

	if err := s.guardNoActiveAttempt(ctx, order.ID); err != nil {
		return nil, err
	}

	amount, err := domain.NewMoney(input.AmountCents, order.Currency)
	if err != nil {
		return nil, application.NewInvalidInputError(err)
	}
	if amount.Cents != order.TotalCents {
		return nil, application.NewInvalidInputError(
			fmt.Errorf("charge of %d cents does not match order total of %d cents", amount.Cents, order.TotalCents))
	}

	if method == domain.MethodPixDirect {
		return s.createDirectPixAttempt(ctx, order, amount)
	}
	return s.createGatewayAttempt(ctx, order, method, amount, input)
}

func (s *CheckoutService) loadOrderForCheckout(ctx context.Context, input CreateAttemptInput) (*domain.Order, error) {
	order, err := s.orders.FindByID(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, postgres.ErrOrderNotFound) {
			return nil, application.NewNotFoundError(domain.NewOrderNotFoundError(input.OrderID))
		}
		return nil, application.NewPersistenceError(err)
	}

	if order.CustomerID != input.CustomerID {
		return nil, application.NewForbiddenError(domain.NewNotOrderOwnerError(order.ID))
	}
	if order.IsPaid() {
		return nil, application.NewAlreadyPaidError(domain.NewAlreadyPaidError(order.ID))
	}
	if order.Status == domain.OrderCancelled {
		return nil, application.NewInvalidInputError(fmt.Errorf("order %s is cancelled", order.ID))
	}
	return order, nil
}

// guardNoActiveAttempt enforces one pending attempt per order. An attempt that
// sat past its deadline is expired here rather than blocking the retry.
func (s *CheckoutService) guardNoActiveAttempt(ctx context.Context, orderID string) error {
	active, err := s.attempts.FindActiveByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, postgres.ErrAttemptNotFound) {
			return nil
		}
		return application.NewPersistenceError(err)
	}

	if !active.PastDeadline(time.Now()) {
		return application.NewAttemptConflictError(domain.NewActiveAttemptError(orderID))
	}
	return s.reconcile.ExpireAttempt(ctx, active)
}

func (s *CheckoutService) createDirectPixAttempt(ctx context.Context, order *domain.Order, amount domain.Money) (*domain.PaymentAttempt, error) {
	issued, err := s.issuer.Issue(order.ID, amount.Cents)
	if err != nil {
		return nil, application.NewInternalError(err)
	}

	attempt, err := domain.NewPaymentAttempt(uuid.New().String(), order.ID, domain.MethodPixDirect, amount)
	if err != nil {
		return nil, application.NewInvalidInputError(err)
	}
	attempt.PixKey = &issued.PixKey
	attempt.ProviderTransactionID = &issued.TransactionID
	attempt.ExpiresAt = &issued.ExpiresAt

	if err := s.persistAttempt(ctx, order, attempt); err != nil {
		return nil, err
	}

	s.logger.Info("direct pix attempt opened",
		"attempt_id", attempt.ID,
		"order_id", order.ID,
		"expires_at", issued.ExpiresAt)
	return attempt, nil
}

func (s *CheckoutService) createGatewayAttempt(
	ctx context.Context,
	order *domain.Order,
	method domain.PaymentMethod,
	amount domain.Money,
	input CreateAttemptInput,
) (*domain.PaymentAttempt, error) {
	customerRef, err := s.gateway.FindOrCreateCustomer(ctx, input.Customer)
	if err != nil {
		return nil, s.mapGatewayError(err)
	}

	payment, err := s.gateway.CreateCharge(ctx, application.ChargeRequest{
		CustomerRef:  customerRef,
		Value:        amount.Decimal(),
		OrderID:      order.ID,
		BillingType:  billingTypeFor(method),
		Description:  "Order " + order.ID,
		DueDate:      dueDateFor(method, time.Now()),
		Card:         input.Card,
		Installments: input.Installments,
	})
	if err != nil {
		return nil, s.mapGatewayError(err)
	}

	attempt, err := domain.NewPaymentAttempt(uuid.New().String(), order.ID, method, amount)
	if err != nil {
		return nil, application.NewInvalidInputError(err)
	}
	attempt.ProviderTransactionID = &payment.ID
	if payment.PixPayload != "" {
		attempt.PixPayload = &payment.PixPayload
	}
	if payment.InvoiceURL != "" {
		attempt.InvoiceURL = &payment.InvoiceURL
	}
	attempt.ExpiresAt = payment.PixExpires

	if err := s.persistAttempt(ctx, order, attempt); err != nil {
		// The provider holds a live charge with no local record. Cancel it so
		// the customer is not billed for an attempt we cannot track.
		s.compensateCharge(ctx, payment.ID, order.ID)
		return nil, err
	}

	if method == domain.MethodGatewayCard {
		return s.resolveCardCharge(ctx, attempt, payment)
	}

	s.logger.Info("gateway attempt opened",
		"attempt_id", attempt.ID,
		"order_id", order.ID,
		"method", method,
		"provider_payment_id", payment.ID)
	return attempt, nil
}

// resolveCardCharge settles a card attempt from the provider's synchronous
// answer. PIX and boleto resolve later via webhook; cards do not wait.
func (s *CheckoutService) resolveCardCharge(ctx context.Context, attempt *domain.PaymentAttempt, payment *application.ProviderPayment) (*domain.PaymentAttempt, error) {
	switch payment.Status {
	case providerStatusConfirmed, providerStatusReceived:
		if err := s.reconcile.ConfirmAttempt(ctx, attempt); err != nil {
			return nil, err
		}
	case providerStatusRefused:
		if err := s.reconcile.FailAttempt(ctx, attempt, application.RejectionDeclined); err != nil {
			return nil, err
		}
	default:
		// Some card charges stay PENDING for async anti-fraud review and
		// resolve via webhook like the other rails.
		s.logger.Info("card charge pending provider review",
			"attempt_id", attempt.ID, "provider_status", payment.Status)
		return attempt, nil
	}

	current, err := s.attempts.FindByID(ctx, attempt.ID)
	if err != nil {
		return nil, application.NewPersistenceError(err)
	}
	return current, nil
}

// persistAttempt writes the attempt and the order's rail switch atomically.
func (s *CheckoutService) persistAttempt(ctx context.Context, order *domain.Order, attempt *domain.PaymentAttempt) error {
	if err := order.MarkAwaitingPayment(attempt.Method, attempt.ProviderTransactionID); err != nil {
		return application.NewInvalidInputError(err)
	}

	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		if err := s.attempts.Create(ctx, tx, attempt); err != nil {
			return err
		}
		return s.orders.Update(ctx, tx, order)
	})
	if err == nil {
		return nil
	}

	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) && domainErr.Code == domain.ErrCodeActiveAttempt {
		// Lost the race against a concurrent checkout for the same order.
		return application.NewAttemptConflictError(err)
	}
	return application.NewPersistenceError(err)
}

func (s *CheckoutService) compensateCharge(ctx context.Context, providerPaymentID, orderID string) {
	// Detached from the request context so a client disconnect does not leak
	// an orphaned charge at the provider.
	cancelCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := s.gateway.CancelCharge(cancelCtx, providerPaymentID); err != nil {
		s.logger.Error("failed to cancel orphaned provider charge",
			"provider_payment_id", providerPaymentID,
			"order_id", orderID,
			"error", err)
		return
	}
	s.logger.Warn("cancelled provider charge after persistence failure",
		"provider_payment_id", providerPaymentID,
		"order_id", orderID)
}

func (s *CheckoutService) mapGatewayError(err error) error {
	if gwErr, ok := gateway.IsGatewayError(err); ok {
		if gwErr.IsRetryable() {
			return application.NewProviderUnavailableError(err)
		}
		return application.NewChargeRejectedError(gwErr.RejectionCategory(), err)
	}
	// Anything that never produced an HTTP status is a reachability problem.
	return application.NewProviderUnavailableError(err)
}

func billingTypeFor(method domain.PaymentMethod) string {
	switch method {
	case domain.MethodGatewayPix:
		return "PIX"
	case domain.MethodGatewayBoleto:
		return "BOLETO"
	case domain.MethodGatewayCard:
		return "CREDIT_CARD"
	default:
		return ""
	}
}

func dueDateFor(method domain.PaymentMethod, now time.Time) time.Time {
	if method == domain.MethodGatewayBoleto {
		return now.AddDate(0, 0, boletoDueDays)
	}
	return now
}
