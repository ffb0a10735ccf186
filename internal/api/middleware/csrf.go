package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/csrf"

	"github.com/good-yellow-bee/slate/internal/logging"
)

// CSRFHeader carries the token on responses and is expected back on
// mutating requests.
const CSRFHeader = "X-CSRF-Token"

// CSRF returns middleware protecting cookie-authenticated mutating routes.
// Every response exposes the current token in the X-CSRF-Token header.
func CSRF(key []byte, secure bool, trustedOrigins []string) func(http.Handler) http.Handler {
	protect := csrf.Protect(
		key,
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.CookieName("slate_csrf"),
		csrf.RequestHeader(CSRFHeader),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.TrustedOrigins(trustedOrigins),
		csrf.ErrorHandler(http.HandlerFunc(csrfFailure)),
	)

	return func(next http.Handler) http.Handler {
		exposeToken := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(CSRFHeader, csrf.Token(r))
			next.ServeHTTP(w, r)
		})
		protected := protect(exposeToken)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IsRequestSecure(r) {
				r = csrf.PlaintextHTTPRequest(r)
			}
			protected.ServeHTTP(w, r)
		})
	}
}

func csrfFailure(w http.ResponseWriter, r *http.Request) {
	logging.From(r.Context()).Infow("csrf check failed",
		"path", r.URL.Path,
		"reason", csrf.FailureReason(r),
	)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    "FORBIDDEN",
			"message": "invalid CSRF token",
		},
	})
}
