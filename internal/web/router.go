package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/good-yellow-bee/slate/internal/web/middleware"
)

// Pages are the session-gated page routes.
var Pages = []string{"dashboard", "studio", "production"}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	// Public routes
	r.Get("/login", s.handler.ShowLogin)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireSession(s.sessions, s.useSecureCookies))

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/dashboard", http.StatusFound)
		})
		for _, page := range Pages {
			r.Get("/"+page, s.handler.ShowPage(page))
		}
	})

	return r
}
