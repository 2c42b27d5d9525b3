// Package retry provides retry logic with exponential backoff and jitter.
// It helps handle transient failures gracefully by automatically retrying
// operations whose failures classify as retryable in the fault taxonomy.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"catchup-relay/internal/resilience/fault"
)

// Config holds the configuration for retry logic.
type Config struct {
	// MaxAttempts is the total number of attempts, including the first
	MaxAttempts int

	// InitialDelay is the delay before the first retry
	InitialDelay time.Duration

	// MaxDelay is the maximum delay between retries
	MaxDelay time.Duration

	// Multiplier is the multiplier for exponential backoff
	Multiplier float64

	// JitterFraction spreads each delay across [1-f, 1+f] (0.0 to 1.0)
	JitterFraction float64

	// RetryOn limits retries to these fault kinds. Empty means any fault
	// whose retryable flag is set.
	RetryOn []fault.Kind
}

// Validate checks the configuration for values the executor cannot run with.
func (c Config) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.InitialDelay <= 0 {
		return fmt.Errorf("initial delay must be positive, got %v", c.InitialDelay)
	}
	if c.MaxDelay < c.InitialDelay {
		return fmt.Errorf("max delay %v is below initial delay %v", c.MaxDelay, c.InitialDelay)
	}
	if c.Multiplier < 1.0 {
		return fmt.Errorf("multiplier must be at least 1.0, got %f", c.Multiplier)
	}
	if c.JitterFraction < 0 || c.JitterFraction > 1.0 {
		return fmt.Errorf("jitter fraction must be within [0, 1], got %f", c.JitterFraction)
	}
	return nil
}

// DefaultConfig returns a generic retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialDelay:   1 * time.Second,
		MaxDelay:       60 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// NetworkConfig returns configuration for transient connectivity failures.
// Aggressive retry, short delays.
func NetworkConfig() Config {
	return Config{
		MaxAttempts:    5,
		InitialDelay:   1 * time.Second,
		MaxDelay:       30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		RetryOn:        []fault.Kind{fault.KindNetwork, fault.KindTimeout},
	}
}

// PublishRateLimitConfig returns configuration for publish channels with
// long throttling windows. Few attempts, delays in the minutes.
func PublishRateLimitConfig() Config {
	return Config{
		MaxAttempts:    2,
		InitialDelay:   60 * time.Second,
		MaxDelay:       900 * time.Second,
		Multiplier:     1.5,
		JitterFraction: 0.1,
		RetryOn:        []fault.Kind{fault.KindRateLimit},
	}
}

// AIRateLimitConfig returns configuration for throttled AI API calls.
func AIRateLimitConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialDelay:   5 * time.Second,
		MaxDelay:       120 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		RetryOn:        []fault.Kind{fault.KindRateLimit},
	}
}

// AIUnavailableConfig returns configuration for AI provider outages.
// Patient retry, spacing attempts out to let the provider recover.
func AIUnavailableConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialDelay:   10 * time.Second,
		MaxDelay:       180 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		RetryOn: []fault.Kind{
			fault.KindServiceUnavailable,
			fault.KindServiceAPI,
			fault.KindTimeout,
			fault.KindNetwork,
		},
	}
}

// DBConfig returns configuration for database operations.
// Fast retry for transient connection issues.
func DBConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialDelay:   100 * time.Millisecond,
		MaxDelay:       1 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// WithBackoff executes the given function with retry logic and exponential
// backoff. It returns nil as soon as fn succeeds. On a non-retryable failure
// or once attempts are exhausted it returns the last error exactly as fn
// produced it, so callers can still inspect the original fault (kind,
// reset time, quota fields) through the untouched chain.
func WithBackoff(ctx context.Context, cfg Config, fn func() error) error {
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		// A canceled caller aborts before the attempt is charged.
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("retry aborted: %w", err)
		}

		lastErr = fn()

		if lastErr == nil {
			if attempt > 1 {
				recoveriesTotal.Inc()
				slog.Info("operation succeeded after retry",
					slog.Int("attempt", attempt))
			}
			return nil
		}

		fe := fault.Classify(lastErr)
		attemptsTotal.WithLabelValues(fe.Kind.String()).Inc()

		if !cfg.shouldRetry(fe) {
			slog.Warn("non-retryable error, aborting",
				slog.Int("attempt", attempt),
				slog.String("kind", fe.Kind.String()),
				slog.Any("error", lastErr))
			return lastErr
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		delay := applyJitter(backoffDelay(cfg, attempt), cfg.JitterFraction)

		slog.Warn("operation failed, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", cfg.MaxAttempts),
			slog.Duration("delay", delay),
			slog.String("kind", fe.Kind.String()),
			slog.Any("error", lastErr))

		select {
		case <-time.After(delay):
			// Continue to next attempt
		case <-ctx.Done():
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		}
	}

	exhaustionsTotal.WithLabelValues(fault.KindOf(lastErr).String()).Inc()
	slog.Warn("retry attempts exhausted",
		slog.Int("max_attempts", cfg.MaxAttempts),
		slog.String("kind", fault.KindOf(lastErr).String()),
		slog.Any("error", lastErr))

	return lastErr
}

// shouldRetry applies both gates: the fault's own retryable flag and, when
// RetryOn is set, membership of its kind in that set.
func (c Config) shouldRetry(fe *fault.Error) bool {
	if fe == nil || !fe.Retryable {
		return false
	}
	if len(c.RetryOn) == 0 {
		return true
	}
	for _, k := range c.RetryOn {
		if k == fe.Kind {
			return true
		}
	}
	return false
}

// backoffDelay returns the pre-jitter delay after the given attempt,
// growing exponentially from InitialDelay and clamped at MaxDelay.
func backoffDelay(cfg Config, attempt int) time.Duration {
	d := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if d > float64(cfg.MaxDelay) {
		return cfg.MaxDelay
	}
	return time.Duration(d)
}

// applyJitter spreads the delay across [1-fraction, 1+fraction] to prevent
// thundering herd.
func applyJitter(duration time.Duration, fraction float64) time.Duration {
	if fraction <= 0 {
		return duration
	}
	if fraction > 1.0 {
		fraction = 1.0
	}
	// #nosec G404 -- Using math/rand is acceptable for jitter calculation.
	// Cryptographic randomness is not required for retry backoff jitter.
	factor := 1.0 + fraction*(2.0*rand.Float64()-1.0)
	return time.Duration(float64(duration) * factor)
}
