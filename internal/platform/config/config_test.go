package config

import (
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()

	for _, key := range []string{
		"DB_PATH",
		"SERVER_PORT",
		"LOG_LEVEL",
		"SENTRY_DSN",
		"ENV",
		"SHUTDOWN_GRACE",
		"RATE_LIMIT_BURST",
		"RATE_LIMIT_RPS",
		"RATE_LIMIT_CLIENT_TTL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.DBPath != defaultDBPath {
		t.Errorf("expected default DB path %q, got %q", defaultDBPath, cfg.DBPath)
	}

	if cfg.ServerPort != defaultServerPort {
		t.Errorf("expected default server port %d, got %d", defaultServerPort, cfg.ServerPort)
	}

	if cfg.LogLevel != defaultLogLevel {
		t.Errorf("expected default log level %q, got %q", defaultLogLevel, cfg.LogLevel)
	}

	if cfg.Environment != defaultEnvironment {
		t.Errorf("expected default environment %q, got %q", defaultEnvironment, cfg.Environment)
	}

	if cfg.ShutdownGrace != defaultShutdownGrace {
		t.Errorf("expected shutdown grace %s, got %s", defaultShutdownGrace, cfg.ShutdownGrace)
	}

	if cfg.SentryDSN != "" {
		t.Errorf("expected empty Sentry DSN, got %q", cfg.SentryDSN)
	}

	if cfg.RateLimit.Burst != defaultRateLimitBurst {
		t.Errorf("expected burst %d, got %d", defaultRateLimitBurst, cfg.RateLimit.Burst)
	}

	if cfg.RateLimit.RequestsPerSecond != defaultRateLimitRPS {
		t.Errorf("expected %d requests per second, got %v", defaultRateLimitRPS, cfg.RateLimit.RequestsPerSecond)
	}

	if cfg.RateLimit.ClientTTL != defaultRateLimitClientTTL {
		t.Errorf("expected client TTL %s, got %s", defaultRateLimitClientTTL, cfg.RateLimit.ClientTTL)
	}
}

func TestLoadWithExplicitValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_PATH", "/tmp/autoslug.db")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SENTRY_DSN", "dsn")
	t.Setenv("ENV", "production")
	t.Setenv("SHUTDOWN_GRACE", "30")
	t.Setenv("RATE_LIMIT_BURST", "5")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("RATE_LIMIT_CLIENT_TTL", "90s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.DBPath != "/tmp/autoslug.db" {
		t.Errorf("expected DB path %q, got %q", "/tmp/autoslug.db", cfg.DBPath)
	}

	if cfg.ServerPort != 9090 {
		t.Errorf("expected server port 9090, got %d", cfg.ServerPort)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("expected log level debug, got %q", cfg.LogLevel)
	}

	if cfg.SentryDSN != "dsn" {
		t.Errorf("expected Sentry DSN dsn, got %q", cfg.SentryDSN)
	}

	if cfg.Environment != "production" {
		t.Errorf("expected environment production, got %q", cfg.Environment)
	}

	if cfg.ShutdownGrace != 30*time.Second {
		t.Errorf("expected shutdown grace 30s, got %s", cfg.ShutdownGrace)
	}

	if cfg.RateLimit.Burst != 5 {
		t.Errorf("expected burst 5, got %d", cfg.RateLimit.Burst)
	}

	if cfg.RateLimit.RequestsPerSecond != 2.5 {
		t.Errorf("expected 2.5 requests per second, got %v", cfg.RateLimit.RequestsPerSecond)
	}

	if cfg.RateLimit.ClientTTL != 90*time.Second {
		t.Errorf("expected client TTL 90s, got %s", cfg.RateLimit.ClientTTL)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"SERVER_PORT":           "invalid",
		"SHUTDOWN_GRACE":        "soon",
		"RATE_LIMIT_BURST":      "0",
		"RATE_LIMIT_RPS":        "-1",
		"RATE_LIMIT_CLIENT_TTL": "-5s",
	}

	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)

			_, err := Load()
			if err == nil {
				t.Fatalf("expected error for %s=%s, got nil", key, value)
			}

			if !strings.Contains(err.Error(), "invalid "+key+" value") {
				t.Fatalf("expected error to mention invalid %s value, got %v", key, err)
			}
		})
	}
}
