package circuitbreaker

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics implements the Metrics interface using Prometheus.
//
// All metrics use a custom registry for better testability and isolation.
// The registry can be passed to promhttp.HandlerFor() to expose metrics.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	// state tracks the current state per breaker.
	// Labels:
	//   - circuit: Breaker name
	//
	// Values:
	//   - 0: Closed (normal operation)
	//   - 1: Open (dependency cut off)
	//   - 2: Half-Open (testing recovery)
	state *prometheus.GaugeVec

	// callsTotal tracks call outcomes per breaker.
	// Labels:
	//   - circuit: Breaker name
	//   - outcome: "success", "failure", or "rejected"
	callsTotal *prometheus.CounterVec

	// transitionsTotal tracks state transitions per breaker.
	// Labels:
	//   - circuit: Breaker name
	//   - from: State before the transition
	//   - to: State after the transition
	transitionsTotal *prometheus.CounterVec
}

// NewPrometheusMetrics creates a new PrometheusMetrics instance with a custom
// registry.
//
// Using a custom registry (instead of the global prometheus.DefaultRegisterer)
// avoids metric conflicts when running multiple instances and keeps tests
// isolated.
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	state := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"circuit"},
	)

	callsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_calls_total",
			Help: "Total calls through circuit breakers by outcome",
		},
		[]string{"circuit", "outcome"},
	)

	transitionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total circuit breaker state transitions",
		},
		[]string{"circuit", "from", "to"},
	)

	registry.MustRegister(
		state,
		callsTotal,
		transitionsTotal,
	)

	return &PrometheusMetrics{
		registry:         registry,
		state:            state,
		callsTotal:       callsTotal,
		transitionsTotal: transitionsTotal,
	}
}

// Registry returns the Prometheus registry containing all breaker metrics.
//
// This can be used with promhttp.HandlerFor() to expose metrics:
//
//	metrics := NewPrometheusMetrics()
//	http.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordState records the current state of a breaker.
//
// State values map directly onto the gauge: 0=closed, 1=open, 2=half-open.
func (m *PrometheusMetrics) RecordState(name string, state State) {
	m.state.WithLabelValues(name).Set(float64(state))
}

// RecordCall records the outcome of one call through a breaker.
func (m *PrometheusMetrics) RecordCall(name, outcome string) {
	m.callsTotal.WithLabelValues(name, outcome).Inc()
}

// RecordTransition records a state transition.
func (m *PrometheusMetrics) RecordTransition(name string, from, to State) {
	m.transitionsTotal.WithLabelValues(name, from.String(), to.String()).Inc()
}
