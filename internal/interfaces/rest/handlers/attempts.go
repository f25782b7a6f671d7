package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/petinel/payments-service/internal/application"
	"github.com/petinel/payments-service/internal/application/services"
	"github.com/petinel/payments-service/internal/interfaces/rest"
	"github.com/petinel/payments-service/internal/interfaces/rest/middleware"
)

type createAttemptRequest struct {
	OrderID     string `json:"order_id" validate:"required"`
	Method      string `json:"method" validate:"required"`
	AmountCents int64  `json:"amount_cents" validate:"required,gt=0"`

	Customer struct {
		Name    string `json:"name" validate:"required"`
		Email   string `json:"email" validate:"required,email"`
		TaxID   string `json:"tax_id" validate:"required"`
		Address string `json:"address"`
	} `json:"customer"`

	Card *struct {
		HolderName  string `json:"holder_name"`
		Number      string `json:"number"`
		ExpiryMonth string `json:"expiry_month"`
		ExpiryYear  string `json:"expiry_year"`
		CVV         string `json:"cvv"`
	} `json:"card,omitempty"`

	Installments int `json:"installments"`
}

// CreateAttempt opens a payment attempt for an order the caller owns.
func (h *Handlers) CreateAttempt(w http.ResponseWriter, r *http.Request) {
	var req createAttemptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rest.WriteError(w, application.NewInvalidInputError(err), h.logger)
		return
	}
	if err := validate.Struct(req); err != nil {
		rest.WriteError(w, application.NewInvalidInputError(err), h.logger)
		return
	}

	input := services.CreateAttemptInput{
		OrderID:     req.OrderID,
		CustomerID:  middleware.CustomerIDFromContext(r.Context()),
		Method:      req.Method,
		AmountCents: req.AmountCents,
		Customer: application.CustomerIdentity{
			Name:    req.Customer.Name,
			Email:   req.Customer.Email,
			TaxID:   req.Customer.TaxID,
			Address: req.Customer.Address,
		},
		Installments: req.Installments,
	}
	if req.Card != nil {
		input.Card = &application.CardDetails{
			HolderName:  req.Card.HolderName,
			Number:      req.Card.Number,
			ExpiryMonth: req.Card.ExpiryMonth,
			ExpiryYear:  req.Card.ExpiryYear,
			CVV:         req.Card.CVV,
		}
	}

	attempt, err := h.checkout.CreatePaymentAttempt(r.Context(), input)
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.WriteJSON(w, http.StatusCreated, rest.APIResponse{
		Success: true,
		Data:    toAttemptResponse(attempt),
	})
}

// GetAttempt returns the attempt's current state.
func (h *Handlers) GetAttempt(w http.ResponseWriter, r *http.Request) {
	attemptID := r.PathValue("attemptID")
	customerID := middleware.CustomerIDFromContext(r.Context())

	attempt, err := h.status.GetAttempt(r.Context(), attemptID, customerID)
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.APIResponse{
		Success: true,
		Data:    toAttemptResponse(attempt),
	})
}
