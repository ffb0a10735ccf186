package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/good-yellow-bee/slate/internal/api/auth"
	"github.com/good-yellow-bee/slate/internal/api/middleware"
	"github.com/good-yellow-bee/slate/internal/api/projects"
	"github.com/good-yellow-bee/slate/internal/web"
)

// setupRouter creates and configures the chi router with all routes.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestLogger(s.config.Verbose))
	r.Use(middleware.PrometheusMiddleware)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Recoverer)

	// Health checks (public, no rate limit)
	r.Get("/health", s.healthHandler.Health)
	r.Get("/health/live", s.healthHandler.Live)
	r.Get("/health/ready", s.healthHandler.Ready)

	// Relay socket; authenticates itself by cookie or ticket
	r.Get("/ws", s.relay.ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		if s.config.CSRFSecret != "" {
			r.Use(middleware.CSRF([]byte(s.config.CSRFSecret), s.config.UseSecureCookies, s.config.TrustedOrigins))
		}

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			JSONError(w, r, ErrNotFound)
		})
		r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
			JSONError(w, r, ErrMethodNotAllowed)
		})

		authHandler := auth.NewHandler(
			s.storage.Users(),
			s.sessions,
			s.lockout,
			s.tickets,
			auth.WithSuperuser(s.config.Superuser),
			auth.WithSecureCookies(s.config.UseSecureCookies),
		)

		// Public routes with IP rate limiting
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(s.ipLimiter))
			r.Post("/login", authHandler.Login)
			r.Post("/register", authHandler.Register)
		})
		r.Post("/logout", authHandler.Logout)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.SessionAuth(s.sessions))
			r.Use(middleware.RateLimitByUser(s.userLimiter))

			r.Get("/me", authHandler.Me)
			r.Get("/realtime/ticket", authHandler.Ticket)

			projectHandler := projects.NewHandler(s.storage.Projects(), s.registry, s.config.QueryTimeout)
			r.Get("/projects", projectHandler.List)
			r.Post("/save-project", projectHandler.Save)
			r.Route("/project/{id}", func(r chi.Router) {
				r.Get("/", projectHandler.Get)
				r.Delete("/", projectHandler.Delete)
				r.Post("/favorite", projectHandler.SetFavorite)
				r.Post("/archive", projectHandler.SetArchived)
				r.Get("/budget", projectHandler.Budget)
				r.Get("/presence", projectHandler.Presence)
			})
		})
	})

	// Page routes
	r.Mount("/", web.NewServer(s.sessions, s.config.UseSecureCookies).Routes())

	return r
}
