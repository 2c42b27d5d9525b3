package worker

import (
	"catchup-relay/internal/pkg/config"
	"fmt"
	"log/slog"
	"time"
)

// WorkerConfig holds the configuration for the relay worker process: the
// poll and drain schedules, the dedupe window, and operational limits.
//
// Configuration sources:
//   - Environment variables (loaded via LoadConfigFromEnv)
//   - Default values (provided by DefaultConfig)
//
// All fields have defaults and validation rules so the worker can start
// safely even with invalid or missing configuration.
type WorkerConfig struct {
	// PollSchedule is the cron expression for the feed delivery job.
	// Format: "minute hour day month weekday"
	// Default: "*/30 * * * *" (every 30 minutes)
	PollSchedule string

	// DrainSchedule is the cron expression for replaying the retry queue.
	// Deferred publishes wait at most one drain interval.
	// Default: "*/10 * * * *" (every 10 minutes)
	DrainSchedule string

	// Timezone is the IANA timezone name for cron scheduling.
	// Example: "Asia/Tokyo", "UTC"
	// Default: "Asia/Tokyo"
	Timezone string

	// DeliverTimeout is the maximum duration for a single delivery run.
	// The run's context is cancelled after this.
	// Default: 10 minutes
	DeliverTimeout time.Duration

	// FeedParallelism is how many feeds are polled concurrently.
	// Range: 1-32
	// Default: 4
	FeedParallelism int

	// DrainBatch is the maximum number of queued operations replayed per
	// drain pass.
	// Range: 1-100
	// Default: 10
	DrainBatch int

	// Lookback is the dedupe window. Entries published before it are
	// ignored; deliveries within it block a repost.
	// Default: 72 hours
	Lookback time.Duration

	// Retention is how long delivery records are kept before pruning.
	// Must cover Lookback, or dedupe would forget entries it still needs.
	// Default: 30 days
	Retention time.Duration

	// HealthPort is the port for the liveness/readiness HTTP server.
	// Range: 1024-65535
	// Default: 9091
	HealthPort int
}

// DefaultConfig returns a WorkerConfig with production-ready defaults:
// half-hourly polls, ten-minute drains, a 72-hour dedupe window and a
// 30-day delivery ledger.
func DefaultConfig() WorkerConfig {
	return WorkerConfig{
		PollSchedule:    "*/30 * * * *",
		DrainSchedule:   "*/10 * * * *",
		Timezone:        "Asia/Tokyo",
		DeliverTimeout:  10 * time.Minute,
		FeedParallelism: 4,
		DrainBatch:      10,
		Lookback:        72 * time.Hour,
		Retention:       30 * 24 * time.Hour,
		HealthPort:      9091,
	}
}

// Validate checks the configuration values using the reusable validators
// from internal/pkg/config. If multiple fields are invalid, all errors are
// collected and returned together.
func (c *WorkerConfig) Validate() error {
	var errors []error

	if err := config.ValidateCronSchedule(c.PollSchedule); err != nil {
		errors = append(errors, fmt.Errorf("poll schedule: %w", err))
	}

	if err := config.ValidateCronSchedule(c.DrainSchedule); err != nil {
		errors = append(errors, fmt.Errorf("drain schedule: %w", err))
	}

	if err := config.ValidateTimezone(c.Timezone); err != nil {
		errors = append(errors, fmt.Errorf("timezone: %w", err))
	}

	if err := config.ValidatePositiveDuration(c.DeliverTimeout); err != nil {
		errors = append(errors, fmt.Errorf("deliver timeout: %w", err))
	}

	if err := config.ValidateIntRange(c.FeedParallelism, 1, 32); err != nil {
		errors = append(errors, fmt.Errorf("feed parallelism: %w", err))
	}

	if err := config.ValidateIntRange(c.DrainBatch, 1, 100); err != nil {
		errors = append(errors, fmt.Errorf("drain batch: %w", err))
	}

	if err := config.ValidatePositiveDuration(c.Lookback); err != nil {
		errors = append(errors, fmt.Errorf("lookback: %w", err))
	}

	// 保持期間がルックバックより短いと重複排除が壊れる
	if c.Retention < c.Lookback {
		errors = append(errors, fmt.Errorf(
			"retention %v is below the dedupe lookback %v", c.Retention, c.Lookback))
	}

	if err := config.ValidateIntRange(c.HealthPort, 1024, 65535); err != nil {
		errors = append(errors, fmt.Errorf("health port: %w", err))
	}

	if len(errors) > 0 {
		return fmt.Errorf("validation failed: %v", errors)
	}

	return nil
}

// LoadConfigFromEnv loads worker configuration from environment variables
// with validation and automatic fallback to default values on failure.
//
// This function implements the fail-open strategy:
//  1. Start with DefaultConfig() as base
//  2. Load each field from environment variables
//  3. Validate each loaded value
//  4. If validation fails: use default value, log warning, increment metrics
//  5. Never return error - always return a valid configuration
//
// Environment variables:
//   - POLL_SCHEDULE: Cron expression (default: "*/30 * * * *")
//   - DRAIN_SCHEDULE: Cron expression (default: "*/10 * * * *")
//   - WORKER_TIMEZONE: IANA timezone name (default: "Asia/Tokyo")
//   - DELIVER_TIMEOUT: Duration string, e.g., "10m" (default: 10 minutes)
//   - FEED_PARALLELISM: Integer 1-32 (default: 4)
//   - DRAIN_BATCH: Integer 1-100 (default: 10)
//   - DEDUPE_LOOKBACK: Duration string, e.g., "72h" (default: 72 hours)
//   - DELIVERY_RETENTION: Duration string, e.g., "720h" (default: 30 days)
//   - WORKER_HEALTH_PORT: Integer 1024-65535 (default: 9091)
func LoadConfigFromEnv(logger *slog.Logger, metrics *WorkerMetrics) (*WorkerConfig, error) {
	// Start with default config
	cfg := DefaultConfig()
	st := &loadState{logger: logger, metrics: metrics}

	apply(st, "poll_schedule", &cfg.PollSchedule,
		config.LoadEnvWithFallback("POLL_SCHEDULE", cfg.PollSchedule, config.ValidateCronSchedule))

	apply(st, "drain_schedule", &cfg.DrainSchedule,
		config.LoadEnvWithFallback("DRAIN_SCHEDULE", cfg.DrainSchedule, config.ValidateCronSchedule))

	apply(st, "timezone", &cfg.Timezone,
		config.LoadEnvWithFallback("WORKER_TIMEZONE", cfg.Timezone, config.ValidateTimezone))

	apply(st, "deliver_timeout", &cfg.DeliverTimeout,
		config.LoadEnvDuration("DELIVER_TIMEOUT", cfg.DeliverTimeout, func(d time.Duration) error {
			return config.ValidateDuration(d, 1*time.Minute, 2*time.Hour)
		}))

	apply(st, "feed_parallelism", &cfg.FeedParallelism,
		config.LoadEnvInt("FEED_PARALLELISM", cfg.FeedParallelism, func(v int) error {
			return config.ValidateIntRange(v, 1, 32)
		}))

	apply(st, "drain_batch", &cfg.DrainBatch,
		config.LoadEnvInt("DRAIN_BATCH", cfg.DrainBatch, func(v int) error {
			return config.ValidateIntRange(v, 1, 100)
		}))

	apply(st, "lookback", &cfg.Lookback,
		config.LoadEnvDuration("DEDUPE_LOOKBACK", cfg.Lookback, func(d time.Duration) error {
			return config.ValidateDuration(d, 1*time.Hour, 30*24*time.Hour)
		}))

	apply(st, "retention", &cfg.Retention,
		config.LoadEnvDuration("DELIVERY_RETENTION", cfg.Retention, func(d time.Duration) error {
			return config.ValidateDuration(d, 24*time.Hour, 365*24*time.Hour)
		}))

	// 保持期間の設定ミスでルックバックを下回ったら既定値に戻す
	if cfg.Retention < cfg.Lookback {
		logger.Warn("Configuration fallback applied",
			slog.String("field", "retention"),
			slog.String("warning", fmt.Sprintf(
				"retention %v is below the dedupe lookback %v, using default", cfg.Retention, cfg.Lookback)))
		st.fallbackApplied = true
		metrics.RecordValidationError("retention")
		metrics.RecordFallback("retention", "default")
		cfg.Retention = DefaultConfig().Retention
	}

	apply(st, "health_port", &cfg.HealthPort,
		config.LoadEnvInt("WORKER_HEALTH_PORT", cfg.HealthPort, func(v int) error {
			return config.ValidateIntRange(v, 1024, 65535)
		}))

	metrics.SetFallbackActive(st.fallbackApplied)
	metrics.RecordLoadTimestamp()

	// Always return valid config (fail-open strategy)
	return &cfg, nil
}

// loadState threads the warning log and fallback bookkeeping through the
// per-field loads in LoadConfigFromEnv.
type loadState struct {
	logger          *slog.Logger
	metrics         *WorkerMetrics
	fallbackApplied bool
}

// apply copies a load result into the config field at dst and, when the
// load fell back, logs the warnings and counts the fallback under field.
func apply[T any](st *loadState, field string, dst *T, result config.LoadResult[T]) {
	*dst = result.Value
	if !result.FallbackApplied {
		return
	}
	st.fallbackApplied = true
	st.metrics.RecordValidationError(field)
	st.metrics.RecordFallback(field, "default")
	for _, warning := range result.Warnings {
		st.logger.Warn("Configuration fallback applied",
			slog.String("field", field),
			slog.String("warning", warning))
	}
}
