package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/petinel/payments-service/internal/interfaces/rest"
)

type contextKey string

const (
	customerIDKey contextKey = "customerID"
	roleKey       contextKey = "role"
)

const RoleAdmin = "admin"

type sessionClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Auth validates the bearer token and puts the customer identity on the
// request context. Tokens are HS256; any other method is rejected outright.
func Auth(secret string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
				writeUnauthorized(w, "Missing bearer token")
				return
			}
			tokenStr := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))

			claims := &sessionClaims{}
			token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, errors.New("unexpected signing method")
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				if errors.Is(err, jwt.ErrTokenExpired) {
					writeUnauthorized(w, "Session expired")
					return
				}
				logger.Debug("rejected bearer token", "error", err)
				writeUnauthorized(w, "Invalid token")
				return
			}
			if claims.Subject == "" {
				writeUnauthorized(w, "Invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), customerIDKey, claims.Subject)
			ctx = context.WithValue(ctx, roleKey, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin gates privileged routes. It assumes Auth already ran.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if RoleFromContext(r.Context()) != RoleAdmin {
			rest.WriteJSON(w, http.StatusForbidden, rest.APIResponse{
				Success: false,
				Error:   &rest.ErrorDetail{Code: "FORBIDDEN", Message: "Admin role required"},
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func CustomerIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(customerIDKey).(string)
	return id
}

func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(roleKey).(string)
	return role
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	rest.WriteJSON(w, http.StatusUnauthorized, rest.APIResponse{
		Success: false,
		Error:   &rest.ErrorDetail{Code: "UNAUTHORIZED", Message: message},
	})
}
