// Package circuitbreaker provides named circuit breakers for external
// service calls. Each breaker is a CLOSED/OPEN/HALF_OPEN state machine over
// a fixed-size ring of recent call outcomes: when a dependency fails often
// enough it is cut off for a cooldown period so the process stops hammering
// it, then probed carefully before traffic is restored.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// State represents the current state of a circuit breaker.
type State int

const (
	// StateClosed indicates the circuit is closed and calls flow normally.
	// This is the initial state.
	StateClosed State = iota

	// StateOpen indicates the circuit tripped. Calls are rejected with
	// *OpenError without touching the dependency until the cooldown elapses.
	StateOpen

	// StateHalfOpen indicates the circuit is testing recovery. A bounded
	// number of probe calls are let through; one failure reopens the
	// circuit, enough successes close it.
	StateHalfOpen
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// OpenError is returned when a call is rejected without invoking the
// operation. It is deliberately a distinct type from whatever the protected
// dependency returns, so callers can tell "not attempted, dependency known
// bad" apart from "attempted and failed". A rejected call is never a fresh
// failure in the breaker's own accounting.
type OpenError struct {
	// Name is the breaker that rejected the call.
	Name string

	// State is the breaker state at rejection time. Usually StateOpen;
	// StateHalfOpen when the probe budget was already spent.
	State State

	// RetryAfter is how long until the breaker will probe again. Zero when
	// rejected in half-open.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *OpenError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("circuit breaker %q is %s (retry after %v)", e.Name, e.State, e.RetryAfter)
	}
	return fmt.Sprintf("circuit breaker %q is %s", e.Name, e.State)
}

// IsOpenError reports whether err is a circuit breaker rejection.
func IsOpenError(err error) bool {
	var oe *OpenError
	return errors.As(err, &oe)
}

// Config holds the tuning parameters for a circuit breaker.
type Config struct {
	// FailureThreshold is the number of failures within the window required
	// to trip the circuit.
	FailureThreshold int

	// SuccessThreshold is the number of half-open probe successes required
	// to close the circuit again. It also bounds how many probes are let
	// through per half-open episode.
	SuccessThreshold int

	// Timeout is how long the circuit stays open before the next call is
	// allowed through as a probe.
	Timeout time.Duration

	// MinRequests is the statistical floor: the circuit never trips before
	// the window holds at least this many outcomes, so a cold start with a
	// couple of failures does not cut a healthy dependency off.
	MinRequests int

	// WindowSize is the capacity of the outcome ring. Only the last
	// WindowSize calls count toward tripping decisions.
	WindowSize int

	// FailureRateThreshold is a secondary trip condition: the circuit also
	// opens when the in-window failure rate reaches this fraction (subject
	// to the same MinRequests floor). Zero disables the rate rule.
	FailureRateThreshold float64

	// Clock provides time abstraction for testing. Default: SystemClock.
	Clock Clock

	// Metrics receives state changes and call outcomes. Default: NoOpMetrics.
	Metrics Metrics
}

// Validate checks the configuration for values a breaker cannot run with.
func (c Config) Validate() error {
	if c.FailureThreshold < 1 {
		return fmt.Errorf("failure threshold must be at least 1, got %d", c.FailureThreshold)
	}
	if c.SuccessThreshold < 1 {
		return fmt.Errorf("success threshold must be at least 1, got %d", c.SuccessThreshold)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	if c.MinRequests < 1 {
		return fmt.Errorf("min requests must be at least 1, got %d", c.MinRequests)
	}
	if c.WindowSize < c.FailureThreshold {
		return fmt.Errorf("window size %d is below failure threshold %d", c.WindowSize, c.FailureThreshold)
	}
	if c.WindowSize < c.MinRequests {
		return fmt.Errorf("window size %d is below min requests %d", c.WindowSize, c.MinRequests)
	}
	if c.FailureRateThreshold < 0 || c.FailureRateThreshold > 1.0 {
		return fmt.Errorf("failure rate threshold must be within [0, 1], got %f", c.FailureRateThreshold)
	}
	return nil
}

// DefaultConfig returns a general-purpose breaker configuration.
func DefaultConfig() Config {
	return Config{
		FailureThreshold:     5,
		SuccessThreshold:     3,
		Timeout:              60 * time.Second,
		MinRequests:          10,
		WindowSize:           100,
		FailureRateThreshold: 0.5,
	}
}

// AIProviderConfig returns configuration for translation API calls.
// Lower floor so a small number of calls is enough evidence.
func AIProviderConfig() Config {
	return Config{
		FailureThreshold:     5,
		SuccessThreshold:     3,
		Timeout:              60 * time.Second,
		MinRequests:          5,
		WindowSize:           50,
		FailureRateThreshold: 0.6,
	}
}

// FeedFetchConfig returns configuration for feed polling. Feeds flap for
// harmless reasons, so the thresholds are more tolerant and the cooldown
// longer.
func FeedFetchConfig() Config {
	return Config{
		FailureThreshold:     10,
		SuccessThreshold:     3,
		Timeout:              120 * time.Second,
		MinRequests:          10,
		WindowSize:           100,
		FailureRateThreshold: 0.7,
	}
}

// WebhookConfig returns configuration for notification webhook publishing.
// Long cooldown: webhook throttling windows last minutes, not seconds.
func WebhookConfig() Config {
	return Config{
		FailureThreshold:     5,
		SuccessThreshold:     2,
		Timeout:              300 * time.Second,
		MinRequests:          5,
		WindowSize:           50,
		FailureRateThreshold: 0.5,
	}
}

// outcome is one recorded call result in the sliding window.
type outcome struct {
	success bool
	at      time.Time
}

// Breaker is a single named circuit breaker.
//
// Window policy: a fixed-size ring buffer of the last WindowSize outcomes.
// The window and failure count reset only on a transition to CLOSED (natural
// recovery or manual reset); opening and re-opening keep the history.
//
// The state decision is a fast read under the breaker's own lock; the
// protected operation runs outside the lock. Outcomes are recorded under a
// generation token so a result that straddles a transition or reset is
// discarded instead of being misattributed to the new episode.
type Breaker struct {
	name    string
	cfg     Config
	clock   Clock
	metrics Metrics

	mu         sync.RWMutex
	state      State
	generation uint64

	// ring window of the last cfg.WindowSize outcomes
	window   []outcome
	head     int
	count    int
	failures int

	openedAt          time.Time
	lastFailureTime   time.Time
	halfOpenRequests  int
	halfOpenSuccesses int
}

// New creates a breaker with the given name and configuration. Zero or nil
// Clock/Metrics fall back to SystemClock/NoOpMetrics.
func New(name string, cfg Config) *Breaker {
	if cfg.Clock == nil {
		cfg.Clock = &SystemClock{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = &NoOpMetrics{}
	}
	if cfg.WindowSize < 1 {
		cfg.WindowSize = DefaultConfig().WindowSize
	}

	b := &Breaker{
		name:    name,
		cfg:     cfg,
		clock:   cfg.Clock,
		metrics: cfg.Metrics,
		state:   StateClosed,
		window:  make([]outcome, cfg.WindowSize),
	}
	b.metrics.RecordState(name, StateClosed)
	return b
}

// Do runs the operation through the breaker. When the circuit is open the
// call is rejected with *OpenError and op is never invoked; otherwise op's
// result is returned unchanged and its outcome recorded.
func (b *Breaker) Do(ctx context.Context, op func(context.Context) (any, error)) (any, error) {
	generation, err := b.beforeCall()
	if err != nil {
		b.metrics.RecordCall(b.name, "rejected")
		return nil, err
	}

	result, opErr := op(ctx)
	b.afterCall(generation, opErr == nil)

	if opErr != nil {
		b.metrics.RecordCall(b.name, "failure")
		return nil, opErr
	}
	b.metrics.RecordCall(b.name, "success")
	return result, nil
}

// beforeCall decides whether the call may proceed. It returns the current
// generation token for outcome attribution, or *OpenError on rejection.
func (b *Breaker) beforeCall() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()

	switch b.state {
	case StateClosed:
		return b.generation, nil

	case StateOpen:
		if elapsed := now.Sub(b.openedAt); elapsed >= b.cfg.Timeout {
			// Cooldown elapsed: this call becomes the first probe.
			b.transition(StateHalfOpen, now)
			b.halfOpenRequests++
			return b.generation, nil
		}
		return 0, &OpenError{
			Name:       b.name,
			State:      StateOpen,
			RetryAfter: b.cfg.Timeout - now.Sub(b.openedAt),
		}

	case StateHalfOpen:
		if b.halfOpenRequests >= b.cfg.SuccessThreshold {
			// Probe budget spent; wait for the in-flight probes to settle.
			return 0, &OpenError{Name: b.name, State: StateHalfOpen}
		}
		b.halfOpenRequests++
		return b.generation, nil

	default:
		return b.generation, nil
	}
}

// afterCall records the outcome of a call admitted under the given
// generation. Outcomes from a superseded generation are dropped.
func (b *Breaker) afterCall(generation uint64, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if generation != b.generation {
		return
	}

	now := b.clock.Now()

	switch b.state {
	case StateClosed:
		b.record(outcome{success: success, at: now})
		if !success {
			b.lastFailureTime = now
			if b.shouldTrip() {
				b.transition(StateOpen, now)
			}
		}

	case StateHalfOpen:
		if success {
			b.halfOpenSuccesses++
			if b.halfOpenSuccesses >= b.cfg.SuccessThreshold {
				b.transition(StateClosed, now)
			}
			return
		}
		// One failed probe is enough evidence the dependency is still sick.
		b.lastFailureTime = now
		b.transition(StateOpen, now)
	}
}

// record appends an outcome to the ring, evicting the oldest when full.
func (b *Breaker) record(o outcome) {
	if b.count == len(b.window) {
		evicted := b.window[b.head]
		if !evicted.success {
			b.failures--
		}
		b.window[b.head] = o
		b.head = (b.head + 1) % len(b.window)
	} else {
		b.window[(b.head+b.count)%len(b.window)] = o
		b.count++
	}
	if !o.success {
		b.failures++
	}
}

// shouldTrip reports whether the closed-state window warrants opening.
// Both rules sit behind the MinRequests floor.
func (b *Breaker) shouldTrip() bool {
	if b.count < b.cfg.MinRequests {
		return false
	}
	if b.failures >= b.cfg.FailureThreshold {
		return true
	}
	if b.cfg.FailureRateThreshold > 0 {
		rate := float64(b.failures) / float64(b.count)
		if rate >= b.cfg.FailureRateThreshold {
			return true
		}
	}
	return false
}

// transition moves the breaker to the given state. Must be called with the
// lock held. The window clears only when entering CLOSED; opening keeps the
// history so health reporting still shows what went wrong.
func (b *Breaker) transition(to State, now time.Time) {
	from := b.state
	if from == to {
		return
	}

	b.state = to
	b.generation++
	b.halfOpenRequests = 0
	b.halfOpenSuccesses = 0

	switch to {
	case StateOpen:
		b.openedAt = now
	case StateClosed:
		b.head = 0
		b.count = 0
		b.failures = 0
	}

	b.metrics.RecordState(b.name, to)
	b.metrics.RecordTransition(b.name, from, to)

	slog.Warn("circuit breaker state changed",
		slog.String("circuit", b.name),
		slog.String("from", from.String()),
		slog.String("to", to.String()),
		slog.Int("failures", b.failures),
		slog.Int("window", b.count))
}

// Reset forces the breaker back to CLOSED and clears all history, including
// the last failure time. This is an administrative override for operator
// intervention after a confirmed recovery.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	from := b.state
	b.state = StateClosed
	b.generation++
	b.head = 0
	b.count = 0
	b.failures = 0
	b.halfOpenRequests = 0
	b.halfOpenSuccesses = 0
	b.openedAt = time.Time{}
	b.lastFailureTime = time.Time{}

	b.metrics.RecordState(b.name, StateClosed)
	if from != StateClosed {
		b.metrics.RecordTransition(b.name, from, StateClosed)
	}

	slog.Info("circuit breaker reset",
		slog.String("circuit", b.name),
		slog.String("from", from.String()))
}

// Name returns the breaker's name.
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state. The read has no side effects: an open
// breaker whose cooldown has elapsed still reports open until the next call
// performs the transition.
func (b *Breaker) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// HealthStatus describes a breaker for health reporting.
type HealthStatus struct {
	Name            string     `json:"name"`
	State           string     `json:"state"`
	Healthy         bool       `json:"healthy"`
	FailureCount    int        `json:"failure_count"`
	FailureRate     float64    `json:"failure_rate"`
	LastFailureTime *time.Time `json:"last_failure_time,omitempty"`
}

// Health returns a read-only snapshot of the breaker.
func (b *Breaker) Health() HealthStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rate := 0.0
	if b.count > 0 {
		rate = float64(b.failures) / float64(b.count)
	}

	hs := HealthStatus{
		Name:         b.name,
		State:        b.state.String(),
		Healthy:      b.state == StateClosed,
		FailureCount: b.failures,
		FailureRate:  rate,
	}
	if !b.lastFailureTime.IsZero() {
		t := b.lastFailureTime
		hs.LastFailureTime = &t
	}
	return hs
}
