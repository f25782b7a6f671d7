// Package handlers exposes the payment HTTP surface.
package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator"

	"github.com/petinel/payments-service/internal/application/services"
	"github.com/petinel/payments-service/internal/domain"
	"github.com/petinel/payments-service/internal/watch"
)

var validate = validator.New()

type Handlers struct {
	checkout  *services.CheckoutService
	reconcile *services.ReconcileService
	status    *services.StatusService
	hub       *watch.Hub

	webhookToken string
	logger       *slog.Logger
}

func NewHandlers(
	checkout *services.CheckoutService,
	reconcile *services.ReconcileService,
	status *services.StatusService,
	hub *watch.Hub,
	webhookToken string,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		checkout:     checkout,
		reconcile:    reconcile,
		status:       status,
		hub:          hub,
		webhookToken: webhookToken,
		logger:       logger,
	}
}

// attemptResponse is the wire shape of a payment attempt. Rail-specific fields
// are omitted when the rail does not produce them.
type attemptResponse struct {
	ID          string `json:"id"`
	OrderID     string `json:"order_id"`
	Method      string `json:"method"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`

	PixKey     string `json:"pix_key,omitempty"`
	PixPayload string `json:"pix_payload,omitempty"`
	InvoiceURL string `json:"invoice_url,omitempty"`

	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toAttemptResponse(a *domain.PaymentAttempt) attemptResponse {
	resp := attemptResponse{
		ID:          a.ID,
		OrderID:     a.OrderID,
		Method:      string(a.Method),
		AmountCents: a.AmountCents,
		Currency:    a.Currency,
		Status:      string(a.Status),
		ExpiresAt:   a.ExpiresAt,
		ConfirmedAt: a.ConfirmedAt,
		CreatedAt:   a.CreatedAt,
	}
	if a.PixKey != nil {
		resp.PixKey = *a.PixKey
	}
	if a.PixPayload != nil {
		resp.PixPayload = *a.PixPayload
	}
	if a.InvoiceURL != nil {
		resp.InvoiceURL = *a.InvoiceURL
	}
	return resp
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
