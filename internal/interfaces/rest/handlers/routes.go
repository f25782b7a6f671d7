package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/petinel/payments-service/internal/interfaces/rest/middleware"
)

// Routes builds the full HTTP handler with per-route middleware. The webhook
// route authenticates with the provider token instead of a bearer token, and
// the event stream skips the request timeout so it can outlive it.
func (h *Handlers) Routes(jwtSecret string, requestTimeout time.Duration, logger *slog.Logger) http.Handler {
	auth := middleware.Auth(jwtSecret, logger)
	timeout := middleware.Timeout(requestTimeout)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.Handle("POST /webhooks/gateway", timeout(http.HandlerFunc(h.GatewayWebhook)))

	mux.Handle("POST /api/v1/payments/attempts",
		auth(timeout(http.HandlerFunc(h.CreateAttempt))))
	mux.Handle("GET /api/v1/payments/attempts/{attemptID}",
		auth(timeout(http.HandlerFunc(h.GetAttempt))))
	mux.Handle("GET /api/v1/payments/attempts/{attemptID}/events",
		auth(http.HandlerFunc(h.StreamAttemptEvents)))
	mux.Handle("POST /api/v1/payments/attempts/{attemptID}/confirm",
		auth(middleware.RequireAdmin(timeout(http.HandlerFunc(h.ConfirmAttempt)))))

	chain := middleware.Recovery(logger)(middleware.Logging(logger)(mux))
	return chain
}
