package tracing

import (
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"catchup-relay/internal/handler/http/responsewriter"
)

// Middleware traces HTTP requests with OpenTelemetry.
//
// Incoming W3C Trace Context headers are honored, so spans join the
// caller's trace when one is propagated. The trace ID is echoed in the
// X-Trace-Id response header for client-side correlation.
//
// Spans start under a provisional "METHOD /raw/path" name because routing
// has not happened yet. Once the mux has matched, the span is renamed to
// the registered pattern ("POST /admin/breakers/{name}/reset") so that
// spans aggregate by route rather than by concrete URL.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(
			r.Context(),
			propagation.HeaderCarrier(r.Header),
		)

		ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
		)
		defer span.End()

		w.Header().Set("X-Trace-Id", span.SpanContext().TraceID().String())

		wrapped := responsewriter.Wrap(w)

		// ServeMux fills in r.Pattern on this same request during routing.
		r = r.WithContext(ctx)
		next.ServeHTTP(wrapped, r)

		if route := strings.Join(strings.Fields(r.Pattern), " "); route != "" {
			span.SetName(route)
			span.SetAttributes(attribute.String("http.route", route))
		}

		span.SetAttributes(
			attribute.Int("http.status_code", wrapped.StatusCode()),
			attribute.String("http.method", r.Method),
			attribute.String("http.path", r.URL.Path),
		)

		if wrapped.StatusCode() >= 500 {
			span.SetAttributes(attribute.Bool("error", true))
		}
	})
}
