package circuitbreaker

// Metrics defines the interface for recording circuit breaker activity.
//
// Implementations can use Prometheus, StatsD, or custom metrics systems.
type Metrics interface {
	// RecordState records the current state of a breaker.
	//
	// Parameters:
	//   - name: Breaker name (e.g., "anthropic", "discord")
	//   - state: Current state
	RecordState(name string, state State)

	// RecordCall records the outcome of one call through a breaker.
	//
	// Parameters:
	//   - name: Breaker name
	//   - outcome: "success", "failure", or "rejected"
	RecordCall(name, outcome string)

	// RecordTransition records a state transition.
	//
	// Parameters:
	//   - name: Breaker name
	//   - from: State before the transition
	//   - to: State after the transition
	RecordTransition(name string, from, to State)
}

// NoOpMetrics implements the Metrics interface with no-op implementations.
//
// Useful for tests and for running breakers without a metrics backend.
type NoOpMetrics struct{}

// NewNoOpMetrics creates a new NoOpMetrics instance.
func NewNoOpMetrics() *NoOpMetrics {
	return &NoOpMetrics{}
}

// RecordState is a no-op implementation.
func (m *NoOpMetrics) RecordState(name string, state State) {
	// No-op
}

// RecordCall is a no-op implementation.
func (m *NoOpMetrics) RecordCall(name, outcome string) {
	// No-op
}

// RecordTransition is a no-op implementation.
func (m *NoOpMetrics) RecordTransition(name string, from, to State) {
	// No-op
}
