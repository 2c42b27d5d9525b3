// Package config provides fail-open loading of configuration values from
// environment variables.
//
// Every loader returns a usable value instead of an error: a worker that
// cannot read one of its tuning knobs should start on the documented default
// and report the problem, not crash-loop at boot. Callers log the returned
// warnings and feed the fallback flags into ConfigMetrics so a deployment
// running on defaults shows up on a dashboard rather than staying silent.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// LoadResult carries the outcome of loading one environment variable.
//
// Value is always usable. When the variable is unset it holds the caller's
// default with no warning; when the variable is set but unparsable or
// invalid it holds the default, Warnings explains why, and FallbackApplied
// is set.
type LoadResult[T any] struct {
	// Value is the parsed value, or the default on fallback.
	Value T

	// Warnings describes each problem encountered while loading, in a
	// form ready for slog. Empty when the variable was unset or valid.
	Warnings []string

	// FallbackApplied reports whether Value is the default because the
	// environment value was rejected. An unset variable does not count.
	FallbackApplied bool
}

// loadEnv is the shared pipeline behind the typed loaders: read the
// variable, parse it, then validate the parsed value. validate may be nil.
func loadEnv[T any](envKey string, defaultValue T, parse func(string) (T, error), validate func(T) error) LoadResult[T] {
	raw := os.Getenv(envKey)
	if raw == "" {
		return LoadResult[T]{Value: defaultValue}
	}

	value, err := parse(raw)
	if err == nil && validate != nil {
		err = validate(value)
	}
	if err != nil {
		return LoadResult[T]{
			Value: defaultValue,
			Warnings: []string{
				fmt.Sprintf("Invalid %s='%s': %v, falling back to default '%v'", envKey, raw, err, defaultValue),
			},
			FallbackApplied: true,
		}
	}

	return LoadResult[T]{Value: value}
}

// LoadEnvString returns the value of envKey, or defaultValue when the
// variable is unset or empty. No validation, no warnings; use
// LoadEnvWithFallback when the value needs checking.
func LoadEnvString(envKey, defaultValue string) string {
	if value := os.Getenv(envKey); value != "" {
		return value
	}
	return defaultValue
}

// LoadEnvWithFallback loads a string variable and runs it through
// validator. An invalid value falls back to the default with a warning.
//
// Example:
//
//	result := LoadEnvWithFallback("POLL_SCHEDULE", "*/30 * * * *", ValidateCronSchedule)
//	for _, w := range result.Warnings {
//		slog.Warn(w)
//	}
//	schedule := result.Value
func LoadEnvWithFallback(envKey, defaultValue string, validator func(string) error) LoadResult[string] {
	pass := func(raw string) (string, error) { return raw, nil }
	return loadEnv(envKey, defaultValue, pass, validator)
}

// LoadEnvDuration loads a Go duration string such as "10m" or "1h30m".
// validator may be nil to accept any parseable duration.
func LoadEnvDuration(envKey string, defaultValue time.Duration, validator func(time.Duration) error) LoadResult[time.Duration] {
	return loadEnv(envKey, defaultValue, parseDuration, validator)
}

// LoadEnvInt loads a base-10 integer. validator may be nil to accept any
// parseable value.
func LoadEnvInt(envKey string, defaultValue int, validator func(int) error) LoadResult[int] {
	return loadEnv(envKey, defaultValue, parseInt, validator)
}

// LoadEnvBool loads a boolean. Accepted literals are the strconv.ParseBool
// set: 1, t, T, TRUE, true, True and their false counterparts.
func LoadEnvBool(envKey string, defaultValue bool) LoadResult[bool] {
	return loadEnv(envKey, defaultValue, parseBool, nil)
}

func parseDuration(raw string) (time.Duration, error) {
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration format (use values like '30s', '5m', '1h30m')")
	}
	return value, nil
}

func parseInt(raw string) (int, error) {
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid integer format")
	}
	return value, nil
}

func parseBool(raw string) (bool, error) {
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid boolean format, expected 'true' or 'false'")
	}
	return value, nil
}
