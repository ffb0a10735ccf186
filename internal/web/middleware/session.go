// Package middleware gates page routes on a valid session.
package middleware

import (
	"context"
	"net/http"

	"github.com/good-yellow-bee/slate/internal/web/handlers"
	"github.com/good-yellow-bee/slate/internal/web/session"
)

// RequireSession redirects to /login unless the request carries a valid
// session, which it then stores in the request context.
func RequireSession(store session.Store, secureCookies bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(session.CookieName)
			if err != nil {
				http.Redirect(w, r, "/login", http.StatusFound)
				return
			}

			sess, ok := store.Get(cookie.Value)
			if !ok {
				// Clear invalid cookie
				session.ClearCookie(w, secureCookies)
				http.Redirect(w, r, "/login", http.StatusFound)
				return
			}

			ctx := context.WithValue(r.Context(), handlers.SessionContextKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
