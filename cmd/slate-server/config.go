// Package main provides the Slate server CLI.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Session  SessionConfig  `yaml:"session"`
	Redis    RedisConfig    `yaml:"redis"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Auth     AuthConfig     `yaml:"auth"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	LogLevel string         `yaml:"log_level"`
	Verbose  bool           `yaml:"-"` // set via CLI flag
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	HTTPAddress    string        `yaml:"http_address"`    // HTTP listen address (default: :3000)
	SecureCookies  bool          `yaml:"secure_cookies"`  // Set Secure on session cookies
	TrustedOrigins []string      `yaml:"trusted_origins"` // Extra origins accepted by CSRF checks
	CSRFSecret     string        `yaml:"csrf_secret"`     // Enables CSRF protection when set (32+ bytes)
	QueryTimeout   string        `yaml:"query_timeout"`   // Storage timeout per API call (default: 10s)
	HTTPTLS        HTTPTLSConfig `yaml:"http_tls"`
}

// HTTPTLSConfig contains HTTPS settings.
type HTTPTLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// DatabaseConfig contains SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"` // SQLite file (default: ./data/slate.db)
}

// SessionConfig selects the session store.
type SessionConfig struct {
	Backend string `yaml:"backend"` // memory or redis
	TTL     string `yaml:"ttl"`     // session lifetime (default: 24h)
}

// RedisConfig contains the shared Redis connection.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"` // key prefix for relay state (default: slate)
}

// RealtimeConfig tunes the relay.
type RealtimeConfig struct {
	Backend             string   `yaml:"backend"` // memory or redis
	SendBuffer          int      `yaml:"send_buffer"`
	EventsPerSecond     float64  `yaml:"events_per_second"`
	Burst               int      `yaml:"burst"`
	TicketTTL           string   `yaml:"ticket_ttl"`
	PingInterval        string   `yaml:"ping_interval"`
	TrustClientIdentity bool     `yaml:"trust_client_identity"`
	AllowedOrigins      []string `yaml:"allowed_origins"`
}

// AuthConfig contains login settings.
type AuthConfig struct {
	SuperuserEmail        string `yaml:"superuser_email"`
	SuperuserPassword     string `yaml:"superuser_password"`      // prefer SLATE_SUPERUSER_PASSWORD
	SuperuserPasswordHash string `yaml:"superuser_password_hash"` // bcrypt hash, wins over the plaintext
	TicketSecret          string `yaml:"ticket_secret"`           // prefer SLATE_SESSION_SECRET
	LockoutThreshold      int    `yaml:"lockout_threshold"`
	LockoutDuration       string `yaml:"lockout_duration"`
	RateLimitPerIP        int    `yaml:"rate_limit_per_ip"`
	RateLimitPerUser      int    `yaml:"rate_limit_per_user"`
}

// MetricsConfig contains the Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// LoadConfig loads configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnv()
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyEnv()
	cfg.setDefaults()
	return cfg
}

// applyEnv lets secrets come from the environment instead of the file.
func (c *Config) applyEnv() {
	if v := os.Getenv("SLATE_SESSION_SECRET"); v != "" {
		c.Auth.TicketSecret = v
	}
	if v := os.Getenv("SLATE_SUPERUSER_PASSWORD"); v != "" {
		c.Auth.SuperuserPassword = v
	}
	if v := os.Getenv("SLATE_REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("SLATE_DB_PATH"); v != "" {
		c.Database.Path = v
	}
}

// setDefaults sets default values for missing config fields.
func (c *Config) setDefaults() {
	if c.Server.HTTPAddress == "" {
		c.Server.HTTPAddress = ":3000"
	}
	if c.Server.QueryTimeout == "" {
		c.Server.QueryTimeout = "10s"
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/slate.db"
	}
	if c.Session.Backend == "" {
		c.Session.Backend = "memory"
	}
	if c.Session.TTL == "" {
		c.Session.TTL = "24h"
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "slate"
	}
	if c.Realtime.Backend == "" {
		c.Realtime.Backend = "memory"
	}
	if c.Realtime.TicketTTL == "" {
		c.Realtime.TicketTTL = "60s"
	}
	if c.Realtime.PingInterval == "" {
		c.Realtime.PingInterval = "30s"
	}
	if c.Auth.LockoutDuration == "" {
		c.Auth.LockoutDuration = "15m"
	}
	if c.Metrics.Address == "" {
		c.Metrics.Address = ":9090"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.HTTPAddress == "" {
		return fmt.Errorf("server.http_address is required")
	}
	if c.Server.HTTPTLS.Enabled {
		if c.Server.HTTPTLS.CertFile == "" {
			return fmt.Errorf("server.http_tls.cert_file is required when TLS is enabled")
		}
		if c.Server.HTTPTLS.KeyFile == "" {
			return fmt.Errorf("server.http_tls.key_file is required when TLS is enabled")
		}
	}
	if c.Server.CSRFSecret != "" && len(c.Server.CSRFSecret) < 32 {
		return fmt.Errorf("server.csrf_secret must be at least 32 bytes")
	}

	durations := map[string]string{
		"server.query_timeout":   c.Server.QueryTimeout,
		"session.ttl":            c.Session.TTL,
		"realtime.ticket_ttl":    c.Realtime.TicketTTL,
		"realtime.ping_interval": c.Realtime.PingInterval,
		"auth.lockout_duration":  c.Auth.LockoutDuration,
	}
	for name, value := range durations {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	for name, backend := range map[string]string{
		"session.backend":  c.Session.Backend,
		"realtime.backend": c.Realtime.Backend,
	} {
		switch backend {
		case "memory":
		case "redis":
			if c.Redis.Address == "" {
				return fmt.Errorf("redis.address is required when %s is redis", name)
			}
		default:
			return fmt.Errorf("%s must be memory or redis, got %q", name, backend)
		}
	}

	// Instances sharing rooms must verify each other's tickets.
	if c.Realtime.Backend == "redis" && c.Auth.TicketSecret == "" {
		return fmt.Errorf("auth.ticket_secret (or SLATE_SESSION_SECRET) is required with the redis realtime backend")
	}
	if c.Auth.TicketSecret != "" && len(c.Auth.TicketSecret) < 32 {
		return fmt.Errorf("auth.ticket_secret must be at least 32 bytes")
	}

	if c.Auth.SuperuserEmail != "" && c.Auth.SuperuserPassword == "" && c.Auth.SuperuserPasswordHash == "" {
		return fmt.Errorf("auth.superuser_email needs a password (SLATE_SUPERUSER_PASSWORD or auth.superuser_password_hash)")
	}
	if c.Auth.LockoutThreshold < 0 || c.Auth.RateLimitPerIP < 0 || c.Auth.RateLimitPerUser < 0 {
		return fmt.Errorf("auth limits must not be negative")
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn or error, got %q", c.LogLevel)
	}

	return nil
}

// duration parses a value already checked by Validate.
func duration(value string) time.Duration {
	d, _ := time.ParseDuration(value)
	return d
}
