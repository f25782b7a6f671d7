package handlers

import (
	"net/http"

	"github.com/petinel/payments-service/internal/interfaces/rest"
	"github.com/petinel/payments-service/internal/interfaces/rest/middleware"
)

// ConfirmAttempt is the manual confirmation path for direct PIX, used by an
// operator who verified the transfer against the bank statement.
func (h *Handlers) ConfirmAttempt(w http.ResponseWriter, r *http.Request) {
	attemptID := r.PathValue("attemptID")

	attempt, err := h.reconcile.ConfirmManually(r.Context(), attemptID)
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	h.logger.Info("attempt confirmed manually",
		"attempt_id", attemptID,
		"operator", middleware.CustomerIDFromContext(r.Context()))

	rest.WriteJSON(w, http.StatusOK, rest.APIResponse{
		Success: true,
		Data:    toAttemptResponse(attempt),
	})
}
