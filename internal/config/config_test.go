package config

import (
	"errors"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GOOGLE_CLIENT_ID", "client-id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "client-secret")
	t.Setenv("GOOGLE_CALLBACK_URL", "https://example.com/callback")
	t.Setenv("GOOGLE_EVENT_WATCH_URL", "https://example.com/notification")
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		setRequiredEnv(t)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if cfg.Server.Port != 8080 {
			t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
		}
		if !cfg.IsProduction() {
			t.Error("expected production as default environment")
		}
		if cfg.Sync.WindowDays != 31 {
			t.Errorf("expected 31 day window, got %d", cfg.Sync.WindowDays)
		}
		if cfg.Sync.Window() != 31*24*time.Hour {
			t.Errorf("unexpected window duration %v", cfg.Sync.Window())
		}
		if cfg.Sync.RenewInterval != time.Minute {
			t.Errorf("expected minutely renew sweep, got %v", cfg.Sync.RenewInterval)
		}
		if cfg.Sync.DailyInterval != 24*time.Hour {
			t.Errorf("expected daily bulk jobs, got %v", cfg.Sync.DailyInterval)
		}
	})

	t.Run("missing required values fail", func(t *testing.T) {
		t.Setenv("GOOGLE_CLIENT_ID", "")
		t.Setenv("GOOGLE_CLIENT_SECRET", "")
		t.Setenv("GOOGLE_CALLBACK_URL", "")
		t.Setenv("GOOGLE_EVENT_WATCH_URL", "")

		_, err := Load()
		if !errors.Is(err, ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("invalid integer fails", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("PORT", "not-a-number")

		_, err := Load()
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("durations parse Go syntax", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("STALE_CHECK_INTERVAL", "90s")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if cfg.Sync.StaleInterval != 90*time.Second {
			t.Errorf("expected 90s, got %v", cfg.Sync.StaleInterval)
		}
	})
}

func TestValidate(t *testing.T) {
	t.Run("https required in production", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("GOOGLE_EVENT_WATCH_URL", "http://example.com/notification")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("plain http allowed in development", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("ENVIRONMENT", "development")
		t.Setenv("GOOGLE_EVENT_WATCH_URL", "http://localhost:8080/notification")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected development http to pass, got %v", err)
		}
	})

	t.Run("bad scheme fails", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("GOOGLE_CALLBACK_URL", "ftp://example.com/callback")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}
