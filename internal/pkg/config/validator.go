package config

import (
	"cmp"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser accepts the standard five-field crontab format:
// minute hour day-of-month month day-of-week.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateCronSchedule checks that schedule is a parseable five-field cron
// expression, e.g. "*/30 * * * *" or "30 9 * * 1-5". Six-field expressions
// with a seconds column are rejected. https://crontab.guru/ renders the
// accepted format.
func ValidateCronSchedule(schedule string) error {
	if schedule == "" {
		return fmt.Errorf("invalid cron schedule: cannot be empty")
	}
	if _, err := cronParser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", schedule, err)
	}
	return nil
}

// ValidateTimezone checks that timezone is a loadable IANA zone name such
// as "Asia/Tokyo" or "UTC". Requires zone data on the host (or the
// time/tzdata embed).
func ValidateTimezone(timezone string) error {
	if timezone == "" {
		return fmt.Errorf("invalid timezone: cannot be empty")
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return fmt.Errorf("invalid timezone '%s': %w", timezone, err)
	}
	return nil
}

// checkRange is the shared bounds check behind the typed range validators.
// noun names the value kind in error messages.
func checkRange[T cmp.Ordered](noun string, value, min, max T) error {
	if min > max {
		return fmt.Errorf("invalid range: min (%v) cannot be greater than max (%v)", min, max)
	}
	if value < min {
		return fmt.Errorf("%s %v is below minimum %v", noun, value, min)
	}
	if value > max {
		return fmt.Errorf("%s %v exceeds maximum %v", noun, value, max)
	}
	return nil
}

// ValidateDuration checks that duration falls within [min, max] inclusive.
func ValidateDuration(duration, min, max time.Duration) error {
	return checkRange("duration", duration, min, max)
}

// ValidateIntRange checks that value falls within [min, max] inclusive.
func ValidateIntRange(value, min, max int) error {
	return checkRange("value", value, min, max)
}

// ValidatePositiveDuration checks that duration is strictly positive.
func ValidatePositiveDuration(duration time.Duration) error {
	if duration <= 0 {
		return fmt.Errorf("duration must be positive, got %v", duration)
	}
	return nil
}
