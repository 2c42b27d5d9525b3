// Package fault defines the error taxonomy shared by the resilience core.
// Every failure crossing into retry, circuit breaking, or recovery is mapped
// to exactly one Kind carrying retryability and structured context, so
// callers can match on the category instead of string-inspecting errors.
package fault

import (
	"fmt"
	"log/slog"
	"time"
)

// Kind identifies the category of a failure.
type Kind int

const (
	// KindUnknown is the fallback for failures no classification rule matched.
	KindUnknown Kind = iota

	// KindNetwork covers connection refusal, resets, and DNS failures.
	KindNetwork

	// KindTimeout covers deadline and socket timeouts.
	KindTimeout

	// KindServiceUnavailable indicates a dependency reported itself down.
	KindServiceUnavailable

	// KindRateLimit indicates the dependency throttled the caller.
	KindRateLimit

	// KindQuotaExceeded indicates a usage quota is exhausted. Backoff does
	// not help here; recovery needs a different plan.
	KindQuotaExceeded

	// KindAuth covers rejected or expired credentials.
	KindAuth

	// KindValidation covers malformed input or output.
	KindValidation

	// KindConfig covers missing or inconsistent configuration.
	KindConfig

	// KindServiceAPI covers generic service API faults (5xx and friends).
	KindServiceAPI
)

// String returns the snake_case name of the kind, used in logs and metrics.
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindServiceUnavailable:
		return "service_unavailable"
	case KindRateLimit:
		return "rate_limit"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindAuth:
		return "auth"
	case KindValidation:
		return "validation"
	case KindConfig:
		return "config"
	case KindServiceAPI:
		return "service_api"
	default:
		return "unknown"
	}
}

// Retryable reports the default retryability of the kind. Individual faults
// may override it at construction.
func (k Kind) Retryable() bool {
	switch k {
	case KindNetwork, KindTimeout, KindServiceUnavailable, KindRateLimit, KindServiceAPI:
		return true
	default:
		return false
	}
}

// Error is the single error type of the taxonomy. The Kind tag makes it
// exhaustively matchable; kind-specific fields are populated by the
// corresponding constructor and stay zero otherwise.
type Error struct {
	Kind      Kind
	Message   string
	Context   map[string]any
	Retryable bool
	Timestamp time.Time

	// ResetTime is when a rate-limited dependency accepts traffic again.
	// Set for KindRateLimit when the dependency sent a retry-after signal.
	ResetTime time.Time

	// QuotaType, CurrentUsage and QuotaLimit describe an exhausted quota.
	QuotaType    string
	CurrentUsage int64
	QuotaLimit   int64

	// Service and StatusCode identify a service API fault.
	Service    string
	StatusCode int

	cause error
}

func newError(kind Kind, message string) *Error {
	return &Error{
		Kind:      kind,
		Message:   message,
		Retryable: kind.Retryable(),
		Timestamp: time.Now(),
	}
}

// New returns a fault of the given kind with the kind's default retryability.
func New(kind Kind, message string) *Error {
	return newError(kind, message)
}

// Network returns a connection-level fault.
func Network(message string) *Error {
	return newError(KindNetwork, message)
}

// Timeout returns a deadline or socket timeout fault.
func Timeout(message string) *Error {
	return newError(KindTimeout, message)
}

// Unavailable returns a fault for a dependency that reported itself down.
func Unavailable(message string) *Error {
	return newError(KindServiceUnavailable, message)
}

// RateLimited returns a throttling fault. resetTime may be zero when the
// dependency did not say when the limit lifts.
func RateLimited(message string, resetTime time.Time) *Error {
	e := newError(KindRateLimit, message)
	e.ResetTime = resetTime
	return e
}

// QuotaExceeded returns a quota-exhaustion fault.
func QuotaExceeded(message, quotaType string, currentUsage, quotaLimit int64) *Error {
	e := newError(KindQuotaExceeded, message)
	e.QuotaType = quotaType
	e.CurrentUsage = currentUsage
	e.QuotaLimit = quotaLimit
	return e
}

// Auth returns a credentials fault.
func Auth(message string) *Error {
	return newError(KindAuth, message)
}

// Validation returns a malformed input/output fault.
func Validation(message string) *Error {
	return newError(KindValidation, message)
}

// Config returns a configuration fault.
func Config(message string) *Error {
	return newError(KindConfig, message)
}

// ServiceAPI returns a generic service API fault.
func ServiceAPI(service string, statusCode int, message string) *Error {
	e := newError(KindServiceAPI, message)
	e.Service = service
	e.StatusCode = statusCode
	return e
}

// WithContext attaches a structured context value (operation name,
// identifiers) and returns e for chaining at the construction site.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WithRetryable overrides the kind's default retryability for this instance.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// Wrap records the underlying cause, reachable through errors.Unwrap.
func (e *Error) Wrap(cause error) *Error {
	e.cause = cause
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// LogValue renders the fault as a structured log group so slog call sites
// get the full taxonomy shape without spelling out fields.
func (e *Error) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("kind", e.Kind.String()),
		slog.String("message", e.Message),
		slog.Bool("retryable", e.Retryable),
		slog.Time("timestamp", e.Timestamp),
	}

	if !e.ResetTime.IsZero() {
		attrs = append(attrs, slog.Time("reset_time", e.ResetTime))
	}
	if e.QuotaType != "" {
		attrs = append(attrs,
			slog.String("quota_type", e.QuotaType),
			slog.Int64("current_usage", e.CurrentUsage),
			slog.Int64("quota_limit", e.QuotaLimit))
	}
	if e.Service != "" {
		attrs = append(attrs, slog.String("service", e.Service))
	}
	if e.StatusCode != 0 {
		attrs = append(attrs, slog.Int("status_code", e.StatusCode))
	}
	if e.cause != nil {
		attrs = append(attrs, slog.String("cause", e.cause.Error()))
	}
	for k, v := range e.Context {
		attrs = append(attrs, slog.Any(k, v))
	}

	return slog.GroupValue(attrs...)
}
