package fetcher

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// ContentFetchConfig controls the security and behavior of full-content
// fetching. The limits exist to keep a hostile or broken remote site from
// exhausting the worker: size and redirect caps, per-request timeout, and
// private-IP blocking.
type ContentFetchConfig struct {
	// Enabled toggles content fetching without redeployment.
	// When false the feed-provided body is always used as-is.
	Enabled bool

	// Threshold is the minimum feed-provided content length in characters.
	// Entries at or above it are considered complete and never fetched.
	Threshold int

	// Timeout bounds a single HTTP request.
	Timeout time.Duration

	// MaxBodySize is the maximum response body size in bytes, enforced while
	// reading rather than trusted from Content-Length.
	MaxBodySize int64

	// MaxRedirects caps the redirect chain. Every redirect target is
	// revalidated against the SSRF rules.
	MaxRedirects int

	// DenyPrivateIPs blocks URLs resolving to private, loopback or
	// link-local addresses. Always true in production.
	DenyPrivateIPs bool
}

// DefaultConfig returns production-ready defaults for content fetching.
func DefaultConfig() ContentFetchConfig {
	return ContentFetchConfig{
		Enabled:        true,
		Threshold:      1500,
		Timeout:        10 * time.Second,
		MaxBodySize:    10 * 1024 * 1024, // 10MB
		MaxRedirects:   5,
		DenyPrivateIPs: true,
	}
}

// Validate checks the configuration for values that would be unsafe or
// nonsensical at runtime.
func (c *ContentFetchConfig) Validate() error {
	if c.Threshold < 0 {
		return fmt.Errorf("threshold must be non-negative, got %d", c.Threshold)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}

	minBodySize := int64(1024)              // 1KB
	maxBodySize := int64(100 * 1024 * 1024) // 100MB
	if c.MaxBodySize < minBodySize || c.MaxBodySize > maxBodySize {
		return fmt.Errorf("max body size must be between %d and %d bytes, got %d", minBodySize, maxBodySize, c.MaxBodySize)
	}
	if c.MaxRedirects < 0 || c.MaxRedirects > 10 {
		return fmt.Errorf("max redirects must be between 0 and 10, got %d", c.MaxRedirects)
	}
	return nil
}

// LoadConfigFromEnv loads configuration from environment variables, falling
// back to defaults for unset variables. Unlike most relay config loading,
// an unparseable value here is a hard error: a typo in a security limit
// should stop the worker, not silently widen it. All bad values are
// reported together.
//
// Environment variables:
//   - CONTENT_FETCH_ENABLED: boolean (default: true)
//   - CONTENT_FETCH_THRESHOLD: integer characters (default: 1500)
//   - CONTENT_FETCH_TIMEOUT: duration string, e.g. "10s" (default: 10s)
//   - CONTENT_FETCH_MAX_BODY_SIZE: integer bytes (default: 10485760)
//   - CONTENT_FETCH_MAX_REDIRECTS: integer (default: 5)
//   - CONTENT_FETCH_DENY_PRIVATE_IPS: boolean (default: true)
func LoadConfigFromEnv() (ContentFetchConfig, error) {
	cfg := DefaultConfig()

	err := errors.Join(
		envBool(&cfg.Enabled, "CONTENT_FETCH_ENABLED"),
		envInt(&cfg.Threshold, "CONTENT_FETCH_THRESHOLD"),
		envDuration(&cfg.Timeout, "CONTENT_FETCH_TIMEOUT"),
		envInt64(&cfg.MaxBodySize, "CONTENT_FETCH_MAX_BODY_SIZE"),
		envInt(&cfg.MaxRedirects, "CONTENT_FETCH_MAX_REDIRECTS"),
		envBool(&cfg.DenyPrivateIPs, "CONTENT_FETCH_DENY_PRIVATE_IPS"),
	)
	if err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// envBool overrides *dst when key is set. Garbage is a hard error, not a
// fallthrough to false: "ture" must not switch off the private-IP guard.
func envBool(dst *bool, key string) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %v", key, err)
	}
	*dst = v
	return nil
}

func envInt(dst *int, key string) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %v", key, err)
	}
	*dst = v
	return nil
}

func envInt64(dst *int64, key string) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %v", key, err)
	}
	*dst = v
	return nil
}

func envDuration(dst *time.Duration, key string) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %v (expected format: '10s', '1m')", key, err)
	}
	*dst = v
	return nil
}
