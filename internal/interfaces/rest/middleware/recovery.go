package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/petinel/payments-service/internal/application"
	"github.com/petinel/payments-service/internal/interfaces/rest"
)

// Recovery turns a handler panic into a logged 500 envelope instead of a
// dropped connection.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				// net/http uses this sentinel to abort a response;
				// suppressing it would hide client disconnects.
				if v == http.ErrAbortHandler {
					panic(v)
				}

				logger.Error("handler panicked",
					"panic", v,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				rest.WriteError(w, application.NewInternalError(fmt.Errorf("panic: %v", v)), logger)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
