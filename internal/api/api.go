// Package api provides the HTTP server: the JSON API, the relay socket and
// the page routes.
package api

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/good-yellow-bee/slate/internal/api/auth"
	"github.com/good-yellow-bee/slate/internal/api/health"
	"github.com/good-yellow-bee/slate/internal/api/middleware"
	"github.com/good-yellow-bee/slate/internal/logging"
	"github.com/good-yellow-bee/slate/internal/realtime"
	"github.com/good-yellow-bee/slate/internal/storage"
	"github.com/good-yellow-bee/slate/internal/web/session"
)

// Config contains HTTP server configuration.
type Config struct {
	Address          string
	TicketSecret     []byte        // Signs relay tickets
	TicketTTL        time.Duration // Relay ticket lifetime
	CSRFSecret       string        // Enables CSRF protection on /api when set
	TrustedOrigins   []string      // Trusted origins for CSRF (e.g., "planner.example.com")
	UseSecureCookies bool          // Use Secure flag for cookies (true in production with HTTPS)
	HTTPTLSEnabled   bool
	HTTPTLSCertFile  string
	HTTPTLSKeyFile   string
	RateLimitPerIP   int // login/register requests per minute per IP
	RateLimitPerUser int // API requests per minute per user
	LockoutThreshold int
	LockoutDuration  time.Duration
	QueryTimeout     time.Duration // Timeout for storage-backed API calls
	Superuser        *auth.Superuser
	Realtime         realtime.Config
	Verbose          bool
}

// SetDefaults applies default values for missing configuration.
func (c *Config) SetDefaults() {
	if c.Address == "" {
		c.Address = ":3000"
	}
	if c.TicketTTL == 0 {
		c.TicketTTL = 60 * time.Second
	}
	if c.RateLimitPerIP == 0 {
		c.RateLimitPerIP = 20
	}
	if c.RateLimitPerUser == 0 {
		c.RateLimitPerUser = 600 // autosave plus dashboard polling
	}
	if c.LockoutThreshold == 0 {
		c.LockoutThreshold = 5 // 5 failed attempts
	}
	if c.LockoutDuration == 0 {
		c.LockoutDuration = 15 * time.Minute
	}
	if c.QueryTimeout == 0 {
		c.QueryTimeout = 10 * time.Second
	}
	c.Realtime.SetDefaults()
}

// Server is the HTTP server.
type Server struct {
	config        *Config
	storage       storage.Storage
	sessions      session.Store
	registry      *realtime.Registry
	relay         *realtime.Handler
	tickets       *auth.TicketService
	lockout       *auth.LockoutTracker
	ipLimiter     *middleware.RateLimiter
	userLimiter   *middleware.RateLimiter
	server        *http.Server
	healthHandler *health.Handler
	logger        logging.Logger
}

// New creates a new server. The caller owns sessions and registry and runs
// the registry separately.
func New(cfg *Config, store storage.Storage, sessions session.Store, registry *realtime.Registry) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if store == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("room registry is required")
	}
	if len(cfg.TicketSecret) == 0 {
		return nil, fmt.Errorf("ticket secret is required")
	}

	cfg.SetDefaults()

	tickets := auth.NewTicketService(cfg.TicketSecret, cfg.TicketTTL)
	s := &Server{
		config:        cfg,
		storage:       store,
		sessions:      sessions,
		registry:      registry,
		tickets:       tickets,
		lockout:       auth.NewLockoutTracker(cfg.LockoutThreshold, cfg.LockoutDuration),
		ipLimiter:     middleware.NewRateLimiter(cfg.RateLimitPerIP),
		userLimiter:   middleware.NewRateLimiter(cfg.RateLimitPerUser),
		healthHandler: health.NewHandler(),
		logger:        logging.New("api"),
	}
	s.relay = realtime.NewHandler(
		registry,
		auth.NewRelayAuthenticator(sessions, tickets),
		middleware.NewProjectAccess(store.Projects()),
		cfg.Realtime,
	)

	s.server = &http.Server{
		Addr:        cfg.Address,
		Handler:     s.setupRouter(),
		ReadTimeout: 15 * time.Second,
		// WriteTimeout stays 0: relay sockets are long-lived. API handlers
		// bound their storage calls with QueryTimeout instead.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}
	if cfg.HTTPTLSEnabled {
		s.server.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS13,
		}
	}

	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Run starts the HTTP server and blocks until context is canceled.
func (s *Server) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		s.logger.Infow("HTTP server listening", "address", s.config.Address, "tls", s.config.HTTPTLSEnabled)
		var err error
		if s.config.HTTPTLSEnabled {
			err = s.server.ListenAndServeTLS(s.config.HTTPTLSCertFile, s.config.HTTPTLSKeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	defer s.closeHelpers()

	select {
	case <-ctx.Done():
		s.logger.Infow("shutting down HTTP server")
		s.relay.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errChan:
		s.relay.Close()
		return err
	}
}

func (s *Server) closeHelpers() {
	s.lockout.Close()
	s.ipLimiter.Close()
	s.userLimiter.Close()
}

// Address returns the configured listen address.
func (s *Server) Address() string {
	return s.config.Address
}

// RegisterHealthChecker adds a health checker to the server.
func (s *Server) RegisterHealthChecker(c health.Checker) {
	if s.healthHandler != nil {
		s.healthHandler.RegisterChecker(c)
	}
}
