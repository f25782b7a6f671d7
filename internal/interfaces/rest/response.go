// Package rest carries the HTTP response envelope shared by all handlers.
package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/petinel/payments-service/internal/application"
)

type APIResponse struct {
	Success bool         `json:"success"`
	Data    any          `json:"data,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func WriteJSON(w http.ResponseWriter, statusCode int, payload APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

// WriteError maps application errors to HTTP responses. Internal detail stays
// in the log; the wire carries only the code and the user-safe message.
func WriteError(w http.ResponseWriter, err error, logger *slog.Logger) {
	statusCode := http.StatusInternalServerError
	detail := ErrorDetail{
		Code:    application.ErrCodeInternal,
		Message: "An internal error occurred",
	}

	if svcErr, ok := application.IsServiceError(err); ok {
		statusCode = svcErr.HTTPStatus
		detail.Code = svcErr.Code
		detail.Message = svcErr.Message
	}

	if statusCode >= http.StatusInternalServerError {
		logger.Error("request failed", "status", statusCode, "error", err)
	}

	WriteJSON(w, statusCode, APIResponse{Success: false, Error: &detail})
}
