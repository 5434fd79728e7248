package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"go.uber.org/zap"
)

type contextKey string

const callerContextKey contextKey = "caller"

// CallerFromContext returns the verified token subject from the request
// context, or "" when the request was not authenticated.
func CallerFromContext(r *http.Request) string {
	caller, _ := r.Context().Value(callerContextKey).(string)
	return caller
}

// WebhookAuth validates the bearer token the voice platform attaches to every
// webhook call. Tokens are HS256-signed with a shared secret. An empty secret
// disables verification (local development).
func WebhookAuth(secret string, logger *zap.Logger) func(http.Handler) http.Handler {
	key := []byte(secret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Missing Authorization header", http.StatusUnauthorized)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
				return
			}

			token, err := jwt.Parse([]byte(parts[1]),
				jwt.WithKey(jwa.HS256, key),
				jwt.WithValidate(true),
			)
			if err != nil {
				logger.Warn("webhook_token_verification_failed", zap.Error(err))
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), callerContextKey, token.Subject())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
