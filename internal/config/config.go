// Package config provides application configuration loaded from environment
// variables with defaults and validation: bot credential, temp directory,
// size ceilings, rate-limit window, and operation timeout.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Default values
const (
	DefaultTempDir         = "./temp"
	DefaultMaxFileSize     = 50 * 1024 * 1024  // Telegram upload ceiling
	DefaultMaxDownloadSize = 500 * 1024 * 1024 // extraction engine bound
	DefaultTimeout         = 5 * time.Minute   // spans download and transcode
	DefaultRateLimit       = 5
	DefaultRateWindow      = 60 * time.Second
	DefaultTempMaxAge      = time.Hour
	DefaultHealthAddr      = ":8000"
)

// ErrMissingToken is returned when no bot credential is configured
var ErrMissingToken = errors.New("BOT_TOKEN is not set")

// Config holds all configuration values for the application
type Config struct {
	BotToken string // BOT_TOKEN (required)

	TempDir    string        // TEMP_DIR
	TempMaxAge time.Duration // TEMP_MAX_AGE, janitor cutoff for stale files

	MaxFileSize     int64         // MAX_FILE_SIZE, delivery ceiling in bytes
	MaxDownloadSize int64         // MAX_DOWNLOAD_SIZE, download ceiling in bytes
	Timeout         time.Duration // DOWNLOAD_TIMEOUT, one deadline per fetch

	RateLimit  int           // RATE_LIMIT_REQUESTS per window
	RateWindow time.Duration // RATE_LIMIT_WINDOW

	HealthAddr string // HEALTH_ADDR for the liveness/metrics listener

	LogLevel  string // LOG_LEVEL: debug|info|warn|error
	LogPretty bool   // LOG_PRETTY: console writer instead of JSON
}

// Load reads configuration from the environment. A .env file is honored for
// local development; hosted deployments provide real environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		BotToken:        strings.TrimSpace(os.Getenv("BOT_TOKEN")),
		TempDir:         getEnv("TEMP_DIR", DefaultTempDir),
		TempMaxAge:      getDuration("TEMP_MAX_AGE", DefaultTempMaxAge),
		MaxFileSize:     getBytes("MAX_FILE_SIZE", DefaultMaxFileSize),
		MaxDownloadSize: getBytes("MAX_DOWNLOAD_SIZE", DefaultMaxDownloadSize),
		Timeout:         getDuration("DOWNLOAD_TIMEOUT", DefaultTimeout),
		RateLimit:       getInt("RATE_LIMIT_REQUESTS", DefaultRateLimit),
		RateWindow:      getDuration("RATE_LIMIT_WINDOW", DefaultRateWindow),
		HealthAddr:      getEnv("HEALTH_ADDR", DefaultHealthAddr),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogPretty:       isTruthy(os.Getenv("LOG_PRETTY")),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.BotToken == "" {
		return ErrMissingToken
	}
	if c.MaxFileSize <= 0 || c.MaxDownloadSize <= 0 {
		return fmt.Errorf("size ceilings must be positive (file=%d download=%d)", c.MaxFileSize, c.MaxDownloadSize)
	}
	if c.MaxFileSize > c.MaxDownloadSize {
		return fmt.Errorf("MAX_FILE_SIZE (%d) exceeds MAX_DOWNLOAD_SIZE (%d)", c.MaxFileSize, c.MaxDownloadSize)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("DOWNLOAD_TIMEOUT must be positive, got %v", c.Timeout)
	}
	if c.RateLimit < 1 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1, got %d", c.RateLimit)
	}
	if c.RateWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %v", c.RateWindow)
	}
	if c.TempMaxAge <= 0 {
		return fmt.Errorf("TEMP_MAX_AGE must be positive, got %v", c.TempMaxAge)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// getBytes parses a byte count. Plain integers are bytes; a trailing
// K/M/G multiplies by 1024 steps (e.g. "50M").
func getBytes(key string, fallback int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	mult := int64(1)
	upper := strings.ToUpper(v)
	switch {
	case strings.HasSuffix(upper, "G"):
		mult = 1024 * 1024 * 1024
		v = v[:len(v)-1]
	case strings.HasSuffix(upper, "M"):
		mult = 1024 * 1024
		v = v[:len(v)-1]
	case strings.HasSuffix(upper, "K"):
		mult = 1024
		v = v[:len(v)-1]
	}

	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return fallback
	}
	return n * mult
}

// getDuration parses a Go duration string; bare integers are seconds.
func getDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

// isTruthy reports whether an environment value should be considered true
func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}
