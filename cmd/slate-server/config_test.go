package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "slate.yaml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate default config: %v", err)
	}
	if cfg.Server.HTTPAddress != ":3000" {
		t.Errorf("HTTPAddress = %q, want :3000", cfg.Server.HTTPAddress)
	}
	if cfg.Session.Backend != "memory" || cfg.Realtime.Backend != "memory" {
		t.Errorf("backends = %q/%q, want memory/memory", cfg.Session.Backend, cfg.Realtime.Backend)
	}
	if got := duration(cfg.Session.TTL); got != 24*time.Hour {
		t.Errorf("session ttl = %v, want 24h", got)
	}
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  http_address: ":8080"
  trusted_origins: ["planner.example.com"]
database:
  path: /tmp/slate-test.db
session:
  backend: redis
  ttl: 2h
redis:
  address: localhost:6379
realtime:
  backend: redis
  events_per_second: 5
  trust_client_identity: true
auth:
  ticket_secret: "0123456789abcdef0123456789abcdef"
  superuser_email: admin@example.com
  superuser_password: letmein1
metrics:
  enabled: true
log_level: debug
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Server.HTTPAddress != ":8080" {
		t.Errorf("HTTPAddress = %q", cfg.Server.HTTPAddress)
	}
	if len(cfg.Server.TrustedOrigins) != 1 || cfg.Server.TrustedOrigins[0] != "planner.example.com" {
		t.Errorf("TrustedOrigins = %v", cfg.Server.TrustedOrigins)
	}
	if got := duration(cfg.Session.TTL); got != 2*time.Hour {
		t.Errorf("session ttl = %v, want 2h", got)
	}
	if cfg.Realtime.EventsPerSecond != 5 || !cfg.Realtime.TrustClientIdentity {
		t.Errorf("realtime = %+v", cfg.Realtime)
	}
	if cfg.Redis.Prefix != "slate" {
		t.Errorf("redis prefix = %q, want default slate", cfg.Redis.Prefix)
	}
	if cfg.Metrics.Address != ":9090" {
		t.Errorf("metrics address = %q, want :9090", cfg.Metrics.Address)
	}
}

func TestLoadConfig_EnvOverridesSecrets(t *testing.T) {
	t.Setenv("SLATE_SESSION_SECRET", "env-secret-env-secret-env-secret!")
	t.Setenv("SLATE_SUPERUSER_PASSWORD", "from-env")
	t.Setenv("SLATE_REDIS_PASSWORD", "redis-env")

	path := writeConfig(t, `
auth:
  ticket_secret: "file-secret-file-secret-file-secret"
  superuser_email: admin@example.com
redis:
  password: file
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Auth.TicketSecret != "env-secret-env-secret-env-secret!" {
		t.Errorf("TicketSecret = %q, want env value", cfg.Auth.TicketSecret)
	}
	if cfg.Auth.SuperuserPassword != "from-env" {
		t.Errorf("SuperuserPassword = %q, want env value", cfg.Auth.SuperuserPassword)
	}
	if cfg.Redis.Password != "redis-env" {
		t.Errorf("Redis.Password = %q, want env value", cfg.Redis.Password)
	}
}

func TestConfigValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad duration", func(c *Config) { c.Session.TTL = "soon" }, "session.ttl"},
		{"negative duration", func(c *Config) { c.Server.QueryTimeout = "-1s" }, "server.query_timeout"},
		{"unknown backend", func(c *Config) { c.Realtime.Backend = "kafka" }, "realtime.backend"},
		{"redis without address", func(c *Config) { c.Session.Backend = "redis" }, "redis.address"},
		{"redis relay without secret", func(c *Config) {
			c.Realtime.Backend = "redis"
			c.Redis.Address = "localhost:6379"
			c.Auth.TicketSecret = ""
		}, "ticket_secret"},
		{"short ticket secret", func(c *Config) { c.Auth.TicketSecret = "short" }, "at least 32 bytes"},
		{"short csrf secret", func(c *Config) { c.Server.CSRFSecret = "short" }, "csrf_secret"},
		{"superuser without password", func(c *Config) {
			c.Auth.SuperuserEmail = "admin@example.com"
			c.Auth.SuperuserPassword = ""
		}, "superuser_email"},
		{"tls without cert", func(c *Config) { c.Server.HTTPTLS.Enabled = true }, "cert_file"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.setDefaults()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want mention of %q", err, tt.want)
			}
		})
	}
}
