package fault

import (
	"context"
	"errors"
	"net"
	"net/http"
	"syscall"
	"time"
)

// From extracts the fault from err's chain, if there is one.
func From(err error) (*Error, bool) {
	var fe *Error
	ok := errors.As(err, &fe)
	return fe, ok
}

// KindOf returns the taxonomy kind of err, classifying it first when it is
// not already a fault.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if fe, ok := From(err); ok {
		return fe.Kind
	}
	return Classify(err).Kind
}

// IsRetryable reports whether err is worth retrying. An explicit
// per-instance override wins over the kind default.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if fe, ok := From(err); ok {
		return fe.Retryable
	}
	return Classify(err).Retryable
}

// Classify maps an arbitrary error to exactly one fault. Errors that already
// carry a fault are returned as-is; everything else is matched against
// transport-level signals, falling back to KindUnknown.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	if fe, ok := From(err); ok {
		return fe
	}

	// Cancellation is a caller decision, never worth retrying.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Timeout(err.Error()).WithRetryable(false).Wrap(err)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return Network(err.Error()).Wrap(err)
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return Network(err.Error()).Wrap(err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return Timeout(err.Error()).Wrap(err)
		}
		return Network(err.Error()).Wrap(err)
	}

	return New(KindUnknown, err.Error()).Wrap(err)
}

// FromHTTPStatus maps a transport status line to a fault. retryAfter is the
// dependency's parsed Retry-After hint, zero when absent.
func FromHTTPStatus(service string, statusCode int, message string, retryAfter time.Duration) *Error {
	switch {
	case statusCode == http.StatusTooManyRequests:
		var reset time.Time
		if retryAfter > 0 {
			reset = time.Now().Add(retryAfter)
		}
		return RateLimited(message, reset).
			WithContext("service", service).
			WithContext("status_code", statusCode)

	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return Auth(message).
			WithContext("service", service).
			WithContext("status_code", statusCode)

	case statusCode == http.StatusBadRequest || statusCode == http.StatusUnprocessableEntity:
		return Validation(message).
			WithContext("service", service).
			WithContext("status_code", statusCode)

	case statusCode == http.StatusRequestTimeout:
		return Timeout(message).
			WithContext("service", service).
			WithContext("status_code", statusCode)

	case statusCode == http.StatusServiceUnavailable:
		return Unavailable(message).
			WithContext("service", service).
			WithContext("status_code", statusCode)

	case statusCode >= 500:
		return ServiceAPI(service, statusCode, message)

	default:
		return ServiceAPI(service, statusCode, message).WithRetryable(false)
	}
}
