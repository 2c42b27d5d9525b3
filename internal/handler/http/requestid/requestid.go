// Package requestid assigns every HTTP request a correlation ID so that
// log lines from one request can be stitched back together.
package requestid

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// RequestIDKey is the context key under which the ID is stored.
	RequestIDKey contextKey = "request_id"
	// RequestIDHeader is the HTTP header carrying the ID in and out.
	RequestIDHeader = "X-Request-ID"
)

// FromContext returns the request ID stored in ctx, or "" when none is set.
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// WithRequestID returns a context carrying the given request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// Middleware attaches a request ID to each request. A caller-supplied
// X-Request-ID is honored when it is a well-formed UUID; anything else is
// replaced with a fresh UUID v4. The ID is stored in the request context
// and echoed in the response header.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := incomingID(r)
		if id == "" {
			id = uuid.New().String()
		}

		// クライアント側でも追跡できるようレスポンスにも載せる
		w.Header().Set(RequestIDHeader, id)

		next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), id)))
	})
}

// incomingID returns the caller-provided request ID, or "" when the header
// is absent or not a UUID. Free-form header values never reach the logs.
func incomingID(r *http.Request) string {
	header := r.Header.Get(RequestIDHeader)
	if header == "" {
		return ""
	}
	if _, err := uuid.Parse(header); err != nil {
		return ""
	}
	return header
}
