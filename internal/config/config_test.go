package config

import (
	"errors"
	"testing"
	"time"
)

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")

	_, err := Load()
	if !errors.Is(err, ErrMissingToken) {
		t.Errorf("Expected ErrMissingToken, got %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123456:test-token")
	t.Setenv("TEMP_DIR", "")
	t.Setenv("MAX_FILE_SIZE", "")
	t.Setenv("MAX_DOWNLOAD_SIZE", "")
	t.Setenv("DOWNLOAD_TIMEOUT", "")
	t.Setenv("RATE_LIMIT_REQUESTS", "")
	t.Setenv("RATE_LIMIT_WINDOW", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if cfg.TempDir != DefaultTempDir {
		t.Errorf("Expected default temp dir, got %s", cfg.TempDir)
	}
	if cfg.MaxFileSize != DefaultMaxFileSize {
		t.Errorf("Expected default file ceiling, got %d", cfg.MaxFileSize)
	}
	if cfg.MaxDownloadSize != DefaultMaxDownloadSize {
		t.Errorf("Expected default download ceiling, got %d", cfg.MaxDownloadSize)
	}
	if cfg.Timeout != DefaultTimeout {
		t.Errorf("Expected default timeout, got %v", cfg.Timeout)
	}
	if cfg.RateLimit != DefaultRateLimit || cfg.RateWindow != DefaultRateWindow {
		t.Errorf("Expected default rate settings, got %d per %v", cfg.RateLimit, cfg.RateWindow)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123456:test-token")
	t.Setenv("TEMP_DIR", "/var/tmp/fetch")
	t.Setenv("MAX_FILE_SIZE", "25M")
	t.Setenv("MAX_DOWNLOAD_SIZE", "1G")
	t.Setenv("DOWNLOAD_TIMEOUT", "2m")
	t.Setenv("RATE_LIMIT_REQUESTS", "10")
	t.Setenv("RATE_LIMIT_WINDOW", "30")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if cfg.TempDir != "/var/tmp/fetch" {
		t.Errorf("Expected temp dir override, got %s", cfg.TempDir)
	}
	if cfg.MaxFileSize != 25*1024*1024 {
		t.Errorf("Expected 25MiB, got %d", cfg.MaxFileSize)
	}
	if cfg.MaxDownloadSize != 1024*1024*1024 {
		t.Errorf("Expected 1GiB, got %d", cfg.MaxDownloadSize)
	}
	if cfg.Timeout != 2*time.Minute {
		t.Errorf("Expected 2m timeout, got %v", cfg.Timeout)
	}
	if cfg.RateWindow != 30*time.Second {
		t.Errorf("Expected bare-integer window in seconds, got %v", cfg.RateWindow)
	}
}

func TestLoadRejectsInvertedCeilings(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123456:test-token")
	t.Setenv("MAX_FILE_SIZE", "2G")
	t.Setenv("MAX_DOWNLOAD_SIZE", "100M")

	if _, err := Load(); err == nil {
		t.Error("Expected error when delivery ceiling exceeds download ceiling")
	}
}

func TestLoadRejectsZeroTempMaxAge(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123456:test-token")
	t.Setenv("TEMP_MAX_AGE", "0")

	if _, err := Load(); err == nil {
		t.Error("Expected error for a zero janitor cutoff")
	}
}

func TestGetBytes(t *testing.T) {
	tests := []struct {
		value    string
		expected int64
	}{
		{"1024", 1024},
		{"50M", 50 * 1024 * 1024},
		{"2K", 2048},
		{"1G", 1024 * 1024 * 1024},
		{"junk", 42},
		{"", 42},
	}

	for _, test := range tests {
		t.Setenv("TEST_BYTES", test.value)
		result := getBytes("TEST_BYTES", 42)
		if result != test.expected {
			t.Errorf("getBytes(%q) = %d, expected %d", test.value, result, test.expected)
		}
	}
}
