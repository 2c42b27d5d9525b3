// Package tracing provides OpenTelemetry tracing for the relay.
//
// Two things live here: an HTTP middleware that opens a server span per
// request (used by the ops server) and the shared tracer the delivery
// pipeline uses for per-run and per-feed spans.
//
// The package only uses the OpenTelemetry API. No exporter is configured;
// spans stay no-ops until the embedding process installs a TracerProvider
// with otel.SetTracerProvider. Trace context arrives and leaves in W3C
// traceparent headers, and every traced response carries an X-Trace-Id
// header for log correlation.
//
// Example usage:
//
//	import "catchup-relay/internal/observability/tracing"
//
//	mux := http.NewServeMux()
//	handler := tracing.Middleware(mux)
//
//	func deliver(ctx context.Context) {
//	    ctx, span := tracing.GetTracer().Start(ctx, "relay.deliver")
//	    defer span.End()
//	    // ...
//	}
package tracing
