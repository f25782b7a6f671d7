package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/petinel/payments-service/internal/application"
	"github.com/petinel/payments-service/internal/application/services"
	"github.com/petinel/payments-service/internal/domain"
	"github.com/petinel/payments-service/internal/interfaces/rest"
)

// The provider sends its shared secret on every delivery.
const webhookTokenHeader = "asaas-access-token"

type webhookPayload struct {
	Event   string `json:"event"`
	Payment struct {
		ID                string          `json:"id"`
		Status            string          `json:"status"`
		Value             decimal.Decimal `json:"value"`
		ExternalReference string          `json:"externalReference"`
	} `json:"payment"`
}

// GatewayWebhook ingests provider events. Response codes steer the provider's
// redelivery: 200 stops it, including for events we choose to ignore; 5xx asks
// for another try after a transient local failure.
func (h *Handlers) GatewayWebhook(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get(webhookTokenHeader)
	if subtle.ConstantTimeCompare([]byte(token), []byte(h.webhookToken)) != 1 {
		h.logger.Warn("webhook delivery with bad token", "remote", r.RemoteAddr)
		rest.WriteJSON(w, http.StatusUnauthorized, rest.APIResponse{
			Success: false,
			Error:   &rest.ErrorDetail{Code: application.ErrCodeInvalidWebhookAuth, Message: "Invalid webhook token"},
		})
		return
	}

	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		rest.WriteError(w, application.NewInvalidInputError(err), h.logger)
		return
	}

	evt := services.ProviderEvent{
		EventType:         payload.Event,
		ProviderPaymentID: payload.Payment.ID,
		ProviderStatus:    payload.Payment.Status,
		OrderRef:          payload.Payment.ExternalReference,
	}
	if !payload.Payment.Value.IsZero() {
		amount, err := domain.MoneyFromDecimal(payload.Payment.Value, "BRL")
		if err != nil {
			h.logger.Warn("webhook payment value not representable in cents",
				"value", payload.Payment.Value.String(), "error", err)
		} else {
			evt.AmountCents = amount.Cents
		}
	}

	err := h.reconcile.ApplyProviderEvent(r.Context(), evt)
	if err != nil {
		// Malformed payloads get a 400 so the provider stops replaying them.
		var svcErr *application.ServiceError
		if errors.As(err, &svcErr) && svcErr.Code == application.ErrCodeInvalidInput {
			rest.WriteError(w, err, h.logger)
			return
		}
		rest.WriteError(w, application.NewPersistenceError(err), h.logger)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.APIResponse{Success: true})
}
