package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/good-yellow-bee/slate/internal/api"
	"github.com/good-yellow-bee/slate/internal/api/auth"
	"github.com/good-yellow-bee/slate/internal/api/health"
	"github.com/good-yellow-bee/slate/internal/logging"
	"github.com/good-yellow-bee/slate/internal/metrics"
	"github.com/good-yellow-bee/slate/internal/realtime"
	"github.com/good-yellow-bee/slate/internal/storage"
	"github.com/good-yellow-bee/slate/internal/web/session"
	"github.com/good-yellow-bee/slate/pkg/config"
)

var (
	configFile string
	httpAddr   string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "slate-server",
	Short: "Slate Server - collaborative pre-production planner",
	Long: `Slate Server serves the project API, the page routes and the
realtime relay that keeps collaborators on the same project in sync.`,
	RunE: runServer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.VersionString("slate-server"))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (optional)")
	rootCmd.PersistentFlags().StringVarP(&httpAddr, "address", "a", "", "HTTP listen address (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every request")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// redisPinger adapts a go-redis client to health.Pinger.
type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func runServer(cmd *cobra.Command, args []string) error {
	var cfg *Config

	if configFile != "" {
		var err error
		cfg, err = LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	} else {
		cfg = DefaultConfig()
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("validate config: %w", err)
		}
	}

	if httpAddr != "" {
		cfg.Server.HTTPAddress = httpAddr
	}
	cfg.Verbose = verbose

	if err := logging.SetLogLevel(cfg.LogLevel); err != nil {
		return err
	}
	logger := logging.New("main")
	metrics.SetBuildInfo(config.Version, config.Commit, config.BuildTime)

	// Auto-create data directory
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0750); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	store := storage.NewSQLiteStorage(cfg.Database.Path)
	if err := store.Open(); err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	logger.Infow("database initialized", "path", cfg.Database.Path)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var redisClient *redis.Client
	if cfg.Session.Backend == "redis" || cfg.Realtime.Backend == "redis" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("connect redis %s: %w", cfg.Redis.Address, err)
		}
		logger.Infow("redis connected", "address", cfg.Redis.Address)
	}

	var sessions session.Store
	if cfg.Session.Backend == "redis" {
		sessions = session.NewRedisStore(redisClient, duration(cfg.Session.TTL))
	} else {
		sessions = session.NewMemoryStore(duration(cfg.Session.TTL))
	}
	defer sessions.Close()

	var backend realtime.Backend
	if cfg.Realtime.Backend == "redis" {
		backend = realtime.NewRedisBackend(redisClient, cfg.Redis.Prefix)
	} else {
		backend = realtime.NewMemoryBackend()
	}
	registry := realtime.NewRegistry(backend)

	ticketSecret := []byte(cfg.Auth.TicketSecret)
	if len(ticketSecret) == 0 {
		ticketSecret = make([]byte, 32)
		if _, err := rand.Read(ticketSecret); err != nil {
			return fmt.Errorf("generate ticket secret: %w", err)
		}
		logger.Warnw("no ticket secret configured, relay tickets are valid on this instance only")
	}

	var superuser *auth.Superuser
	if cfg.Auth.SuperuserEmail != "" {
		superuser = &auth.Superuser{
			Email:        cfg.Auth.SuperuserEmail,
			Password:     cfg.Auth.SuperuserPassword,
			PasswordHash: cfg.Auth.SuperuserPasswordHash,
		}
	}

	srv, err := api.New(&api.Config{
		Address:          cfg.Server.HTTPAddress,
		TicketSecret:     ticketSecret,
		TicketTTL:        duration(cfg.Realtime.TicketTTL),
		CSRFSecret:       cfg.Server.CSRFSecret,
		TrustedOrigins:   cfg.Server.TrustedOrigins,
		UseSecureCookies: cfg.Server.SecureCookies,
		HTTPTLSEnabled:   cfg.Server.HTTPTLS.Enabled,
		HTTPTLSCertFile:  cfg.Server.HTTPTLS.CertFile,
		HTTPTLSKeyFile:   cfg.Server.HTTPTLS.KeyFile,
		RateLimitPerIP:   cfg.Auth.RateLimitPerIP,
		RateLimitPerUser: cfg.Auth.RateLimitPerUser,
		LockoutThreshold: cfg.Auth.LockoutThreshold,
		LockoutDuration:  duration(cfg.Auth.LockoutDuration),
		QueryTimeout:     duration(cfg.Server.QueryTimeout),
		Superuser:        superuser,
		Realtime: realtime.Config{
			SendBuffer:          cfg.Realtime.SendBuffer,
			EventsPerSecond:     cfg.Realtime.EventsPerSecond,
			Burst:               cfg.Realtime.Burst,
			PingInterval:        duration(cfg.Realtime.PingInterval),
			TrustClientIdentity: cfg.Realtime.TrustClientIdentity,
			AllowedOrigins:      cfg.Realtime.AllowedOrigins,
		},
		Verbose: cfg.Verbose,
	}, store, sessions, registry)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	srv.RegisterHealthChecker(health.NewSQLiteChecker(store.DB()))
	srv.RegisterHealthChecker(health.NewPingChecker("realtime", registry))
	if redisClient != nil {
		srv.RegisterHealthChecker(health.NewPingChecker("redis", redisPinger{client: redisClient}))
	}

	logger.Infow("starting slate-server",
		"version", config.Version,
		"address", srv.Address(),
		"session_backend", cfg.Session.Backend,
		"realtime_backend", cfg.Realtime.Backend,
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := registry.Run(gctx); err != nil {
			return fmt.Errorf("room registry: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		select {
		case <-registry.Ready():
		case <-gctx.Done():
			return nil
		}
		if err := srv.Run(gctx); err != nil {
			return fmt.Errorf("run server: %w", err)
		}
		return nil
	})

	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(cfg.Metrics.Address)
		g.Go(metricsServer.Start)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Infow("server stopped")
	return nil
}
