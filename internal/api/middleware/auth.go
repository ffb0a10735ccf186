package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/good-yellow-bee/slate/internal/logging"
	"github.com/good-yellow-bee/slate/internal/models"
	"github.com/good-yellow-bee/slate/internal/web/session"
)

type contextKey string

const principalKey contextKey = "principal"

// jsonUnauthorized writes an unauthorized error response.
func jsonUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    "UNAUTHORIZED",
			"message": "not logged in",
		},
	})
}

// SessionAuth returns middleware that requires a valid session cookie and
// stores the caller's principal in the request context.
func SessionAuth(sessions session.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, ok := session.FromRequest(sessions, r)
			if !ok {
				logging.From(r.Context()).Debugw("session missing or expired", "remote", r.RemoteAddr)
				jsonUnauthorized(w)
				return
			}

			ctx := WithPrincipal(r.Context(), s.Principal())
			ctx = logging.With(ctx, logging.From(ctx).With("user", s.Email))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// GetPrincipal returns the caller stored by SessionAuth.
func GetPrincipal(ctx context.Context) (models.Principal, bool) {
	p, ok := ctx.Value(principalKey).(models.Principal)
	if !ok || p.IsZero() {
		return models.Principal{}, false
	}
	return p, true
}

// GetUserID returns the user ID from context.
func GetUserID(ctx context.Context) string {
	p, _ := GetPrincipal(ctx)
	return p.UserID
}

// GetEmail returns the caller's email from context.
func GetEmail(ctx context.Context) string {
	p, _ := GetPrincipal(ctx)
	return p.Email
}
