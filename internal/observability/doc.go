// Package observability holds the relay's logging, metrics and tracing
// plumbing. Nothing here knows about feeds or channels.
//
// The subpackages are wired once in cmd/relay and then reached through
// small seams:
//
//   - logging: slog construction, level and format from environment
//   - metrics: the Prometheus collectors for the delivery pipeline and
//     the ops endpoints
//   - tracing: OpenTelemetry tracer install and the HTTP span middleware
//
// Provider-specific recorders (translation metrics, for example) stay
// with their provider; only cross-cutting instruments live here.
package observability
