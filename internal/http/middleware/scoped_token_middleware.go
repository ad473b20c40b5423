package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/podworks/pod-access-service/internal/http/response"
	"github.com/podworks/pod-access-service/internal/security"
)

type contextKey string

const (
	PayloadContextKey contextKey = "token_payload"
)

// ScopedToken authenticates the request with a token of the given
// scope. The token is taken from the Authorization header or, for
// links opened straight from the booking email, the t query parameter.
func ScopedToken(tokens *security.TokenManager, scope security.Scope) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := ""
			auth := r.Header.Get("Authorization")
			if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
				raw = strings.TrimSpace(auth[7:])
			}
			if raw == "" {
				raw = r.URL.Query().Get("t")
			}
			if raw == "" {
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing token", nil)
				return
			}
			payload, err := tokens.Verify(raw, scope)
			if err != nil {
				if errors.Is(err, security.ErrTokenExpired) {
					response.Error(w, r, http.StatusUnauthorized, "TOKEN_EXPIRED", "token expired", nil)
					return
				}
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token", nil)
				return
			}
			ctx := context.WithValue(r.Context(), PayloadContextKey, payload)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func PayloadFromContext(ctx context.Context) (map[string]any, bool) {
	p, ok := ctx.Value(PayloadContextKey).(map[string]any)
	return p, ok
}

// SessionIDFromContext extracts the session id a session-scoped token
// was issued for.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	payload, ok := PayloadFromContext(ctx)
	if !ok {
		return "", false
	}
	id, ok := payload["session_id"].(string)
	return id, ok && id != ""
}
