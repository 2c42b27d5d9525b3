package tracing

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// All relay spans come from one named tracer.
var tracer = otel.Tracer("catchup-relay")

// GetTracer hands out the relay tracer for pipeline spans:
//
//	ctx, span := tracing.GetTracer().Start(ctx, "relay.deliver")
//	defer span.End()
//
// Until otel.SetTracerProvider installs a provider every span is a no-op,
// so the worker runs fine without a collector.
func GetTracer() trace.Tracer {
	return tracer
}
