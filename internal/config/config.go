package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var (
	ErrMissingConfig = errors.New("missing required configuration")
	ErrInvalidConfig = errors.New("invalid configuration value")
)

// Environment represents the deployment environment.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
)

// Config holds all application configuration.
type Config struct {
	Server       ServerConfig
	Google       GoogleConfig
	Database     DatabaseConfig
	RateLimiting RateLimitConfig
	Sync         SyncConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port        int
	Environment Environment
}

// GoogleConfig holds the OAuth client and webhook endpoint settings.
type GoogleConfig struct {
	ClientID      string
	ClientSecret  string
	CallbackURL   string
	EventWatchURL string
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// SyncConfig holds sync tuning configuration.
type SyncConfig struct {
	WindowDays    int
	MaxPages      int
	RenewInterval time.Duration
	StaleInterval time.Duration
	DailyInterval time.Duration
}

// Window returns the full-download listing window as a duration.
func (c SyncConfig) Window() time.Duration {
	return time.Duration(c.WindowDays) * 24 * time.Hour
}

// Load loads configuration from environment variables.
// It attempts to load from .env file first, but continues if not found.
func Load() (*Config, error) {
	// Attempt to load .env file (ignore error if not found)
	_ = godotenv.Load() //nolint:errcheck // Intentionally ignore - .env file is optional

	cfg := &Config{}

	// Server configuration
	port, err := getEnvInt("PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("%w: PORT: %w", ErrInvalidConfig, err)
	}
	cfg.Server.Port = port
	cfg.Server.Environment = Environment(strings.ToLower(getEnv("ENVIRONMENT", "production")))

	// Google configuration
	cfg.Google.ClientID = getEnvRequired("GOOGLE_CLIENT_ID")
	cfg.Google.ClientSecret = getEnvRequired("GOOGLE_CLIENT_SECRET")
	cfg.Google.CallbackURL = getEnvRequired("GOOGLE_CALLBACK_URL")
	cfg.Google.EventWatchURL = getEnvRequired("GOOGLE_EVENT_WATCH_URL")

	// Database configuration
	cfg.Database.Path = getEnv("DATABASE_PATH", "./data/calendar.db")

	// Rate limiting configuration
	rps, err := getEnvFloat("RATE_LIMIT_RPS", 10.0)
	if err != nil {
		return nil, fmt.Errorf("%w: RATE_LIMIT_RPS: %w", ErrInvalidConfig, err)
	}
	cfg.RateLimiting.RPS = rps

	burst, err := getEnvInt("RATE_LIMIT_BURST", 20)
	if err != nil {
		return nil, fmt.Errorf("%w: RATE_LIMIT_BURST: %w", ErrInvalidConfig, err)
	}
	cfg.RateLimiting.Burst = burst

	// Sync configuration
	windowDays, err := getEnvInt("SYNC_WINDOW_DAYS", 31)
	if err != nil {
		return nil, fmt.Errorf("%w: SYNC_WINDOW_DAYS: %w", ErrInvalidConfig, err)
	}
	cfg.Sync.WindowDays = windowDays

	maxPages, err := getEnvInt("MAX_SYNC_PAGES", 100)
	if err != nil {
		return nil, fmt.Errorf("%w: MAX_SYNC_PAGES: %w", ErrInvalidConfig, err)
	}
	cfg.Sync.MaxPages = maxPages

	renew, err := getEnvDuration("SUBSCRIPTION_RENEW_INTERVAL", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("%w: SUBSCRIPTION_RENEW_INTERVAL: %w", ErrInvalidConfig, err)
	}
	cfg.Sync.RenewInterval = renew

	stale, err := getEnvDuration("STALE_CHECK_INTERVAL", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("%w: STALE_CHECK_INTERVAL: %w", ErrInvalidConfig, err)
	}
	cfg.Sync.StaleInterval = stale

	daily, err := getEnvDuration("DAILY_JOB_INTERVAL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("%w: DAILY_JOB_INTERVAL: %w", ErrInvalidConfig, err)
	}
	cfg.Sync.DailyInterval = daily

	// Check for missing required configuration
	missing := cfg.getMissingRequired()
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
	}

	return cfg, nil
}

// getMissingRequired returns a list of missing required configuration values.
func (c *Config) getMissingRequired() []string {
	var missing []string

	if c.Google.ClientID == "" {
		missing = append(missing, "GOOGLE_CLIENT_ID")
	}
	if c.Google.ClientSecret == "" {
		missing = append(missing, "GOOGLE_CLIENT_SECRET")
	}
	if c.Google.CallbackURL == "" {
		missing = append(missing, "GOOGLE_CALLBACK_URL")
	}
	if c.Google.EventWatchURL == "" {
		missing = append(missing, "GOOGLE_EVENT_WATCH_URL")
	}

	return missing
}

// Validate checks URL formats. Production requires HTTPS on the webhook
// endpoint because the provider refuses plain HTTP callbacks.
func (c *Config) Validate() error {
	if err := c.validateURL(c.Google.CallbackURL); err != nil {
		return fmt.Errorf("%w: GOOGLE_CALLBACK_URL: %w", ErrInvalidConfig, err)
	}
	if err := c.validateURL(c.Google.EventWatchURL); err != nil {
		return fmt.Errorf("%w: GOOGLE_EVENT_WATCH_URL: %w", ErrInvalidConfig, err)
	}
	if c.Sync.WindowDays <= 0 {
		return fmt.Errorf("%w: SYNC_WINDOW_DAYS must be positive", ErrInvalidConfig)
	}
	return nil
}

func (c *Config) validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if c.IsProduction() && u.Scheme != "https" {
		return errors.New("https required in production")
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == EnvDevelopment
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == EnvProduction
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvRequired returns the value of an environment variable.
// Returns empty string if not set (caller should check for required values).
func getEnvRequired(key string) string {
	return os.Getenv(key)
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer: %w", err)
	}
	return parsed, nil
}

// getEnvFloat returns the float value of an environment variable or a default.
func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float: %w", err)
	}
	return parsed, nil
}

// getEnvDuration returns the duration value of an environment variable
// or a default. Accepts Go duration syntax such as "90s" or "24h".
func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %w", err)
	}
	return parsed, nil
}
