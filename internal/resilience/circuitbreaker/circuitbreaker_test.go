package circuitbreaker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// MockClock implements Clock interface for testing
type MockClock struct {
	mu  sync.RWMutex
	now time.Time
}

func NewMockClock(t time.Time) *MockClock {
	return &MockClock{now: t}
}

func (m *MockClock) Now() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now
}

func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

func (m *MockClock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

func testConfig(clock Clock) Config {
	return Config{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          60 * time.Second,
		MinRequests:      1,
		WindowSize:       10,
		Clock:            clock,
	}
}

var errBoom = errors.New("boom")

func failOp(ctx context.Context) (any, error) {
	return nil, errBoom
}

func succeedOp(ctx context.Context) (any, error) {
	return "ok", nil
}

func TestNew(t *testing.T) {
	clock := NewMockClock(time.Now())
	b := New("test-circuit", testConfig(clock))

	if b.Name() != "test-circuit" {
		t.Errorf("expected name='test-circuit', got %q", b.Name())
	}
	if b.State() != StateClosed {
		t.Errorf("expected initial state=closed, got %v", b.State())
	}
}

func TestBreaker_Do_Success(t *testing.T) {
	clock := NewMockClock(time.Now())
	b := New("test-circuit", testConfig(clock))

	result, err := b.Do(context.Background(), succeedOp)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result != "ok" {
		t.Errorf("expected result='ok', got %v", result)
	}
	if b.State() != StateClosed {
		t.Errorf("expected state=closed after success, got %v", b.State())
	}
}

func TestBreaker_Do_FailureReturnsOriginalError(t *testing.T) {
	clock := NewMockClock(time.Now())
	b := New("test-circuit", testConfig(clock))

	_, err := b.Do(context.Background(), failOp)
	if !errors.Is(err, errBoom) {
		t.Errorf("expected original error, got %v", err)
	}
	if b.State() != StateClosed {
		t.Errorf("expected state=closed after single failure, got %v", b.State())
	}
}

func TestBreaker_TripsAfterFailureThreshold(t *testing.T) {
	clock := NewMockClock(time.Now())
	b := New("test-circuit", testConfig(clock))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if b.State() != StateClosed {
			t.Fatalf("attempt %d: expected state=closed, got %v", i+1, b.State())
		}
		_, _ = b.Do(ctx, failOp)
	}

	if b.State() != StateOpen {
		t.Errorf("expected state=open after 3 failures, got %v", b.State())
	}
}

func TestBreaker_MinRequestsFloor(t *testing.T) {
	clock := NewMockClock(time.Now())
	cfg := Config{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          60 * time.Second,
		MinRequests:      10,
		WindowSize:       20,
		Clock:            clock,
	}
	b := New("test-circuit", cfg)
	ctx := context.Background()

	// 5 failures exceed the threshold but not the statistical floor.
	for i := 0; i < 5; i++ {
		_, _ = b.Do(ctx, failOp)
	}
	if b.State() != StateClosed {
		t.Errorf("expected state=closed below min requests, got %v", b.State())
	}

	// Reaching the floor with the failure count already past the threshold
	// trips the circuit on the 10th outcome.
	for i := 0; i < 4; i++ {
		_, _ = b.Do(ctx, succeedOp)
	}
	if b.State() != StateClosed {
		t.Fatalf("expected state=closed at 9 requests, got %v", b.State())
	}
	_, _ = b.Do(ctx, failOp)

	if b.State() != StateOpen {
		t.Errorf("expected state=open once window holds 10 outcomes, got %v", b.State())
	}
}

func TestBreaker_FailureRateTrips(t *testing.T) {
	clock := NewMockClock(time.Now())
	cfg := Config{
		FailureThreshold:     100, // count rule out of reach
		SuccessThreshold:     2,
		Timeout:              60 * time.Second,
		MinRequests:          10,
		WindowSize:           100,
		FailureRateThreshold: 0.5,
		Clock:                clock,
	}
	b := New("test-circuit", cfg)
	ctx := context.Background()

	// 5 successes, then failures push the rate to 50% at the 10th call.
	for i := 0; i < 5; i++ {
		_, _ = b.Do(ctx, succeedOp)
	}
	for i := 0; i < 4; i++ {
		_, _ = b.Do(ctx, failOp)
	}
	if b.State() != StateClosed {
		t.Fatalf("expected state=closed at 9 requests, got %v", b.State())
	}

	_, _ = b.Do(ctx, failOp)
	if b.State() != StateOpen {
		t.Errorf("expected state=open at 50%% failure rate, got %v", b.State())
	}
}

func TestBreaker_OpenRejectsWithoutCallingOp(t *testing.T) {
	clock := NewMockClock(time.Now())
	b := New("test-circuit", testConfig(clock))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = b.Do(ctx, failOp)
	}
	if b.State() != StateOpen {
		t.Fatalf("expected state=open, got %v", b.State())
	}

	invoked := false
	_, err := b.Do(ctx, func(ctx context.Context) (any, error) {
		invoked = true
		return nil, nil
	})

	if invoked {
		t.Error("op must not be invoked while the circuit is open")
	}
	var oe *OpenError
	if !errors.As(err, &oe) {
		t.Fatalf("expected *OpenError, got %v", err)
	}
	if oe.Name != "test-circuit" {
		t.Errorf("expected breaker name in error, got %q", oe.Name)
	}
	if oe.State != StateOpen {
		t.Errorf("expected open state in error, got %v", oe.State)
	}
	if !IsOpenError(err) {
		t.Error("expected IsOpenError to report true")
	}

	// A rejected call is not a fresh failure.
	health := b.Health()
	if health.FailureCount != 3 {
		t.Errorf("expected failure count 3 after rejection, got %d", health.FailureCount)
	}
}

func TestBreaker_RetryAfter(t *testing.T) {
	clock := NewMockClock(time.Now())
	b := New("test-circuit", testConfig(clock))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = b.Do(ctx, failOp)
	}

	clock.Advance(20 * time.Second)

	_, err := b.Do(ctx, succeedOp)
	var oe *OpenError
	if !errors.As(err, &oe) {
		t.Fatalf("expected *OpenError, got %v", err)
	}
	if oe.RetryAfter != 40*time.Second {
		t.Errorf("expected retry after 40s, got %v", oe.RetryAfter)
	}
}

func TestBreaker_HalfOpenProbeFailureReopens(t *testing.T) {
	clock := NewMockClock(time.Now())
	b := New("test-circuit", testConfig(clock))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = b.Do(ctx, failOp)
	}
	clock.Advance(61 * time.Second)

	// First call after the cooldown is admitted as a probe; its failure
	// reopens the circuit for a fresh cooldown.
	_, err := b.Do(ctx, failOp)
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected probe to run and fail, got %v", err)
	}
	if b.State() != StateOpen {
		t.Errorf("expected state=open after failed probe, got %v", b.State())
	}

	// The new cooldown starts at the probe failure, not the original trip.
	clock.Advance(30 * time.Second)
	_, err = b.Do(ctx, succeedOp)
	if !IsOpenError(err) {
		t.Errorf("expected rejection 30s into fresh cooldown, got %v", err)
	}
}

func TestBreaker_HalfOpenSuccessesClose(t *testing.T) {
	clock := NewMockClock(time.Now())
	b := New("test-circuit", testConfig(clock))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = b.Do(ctx, failOp)
	}
	clock.Advance(61 * time.Second)

	// SuccessThreshold=2: two successful probes close the circuit.
	if _, err := b.Do(ctx, succeedOp); err != nil {
		t.Fatalf("first probe: %v", err)
	}
	if b.State() != StateHalfOpen {
		t.Fatalf("expected state=half-open after first probe, got %v", b.State())
	}
	if _, err := b.Do(ctx, succeedOp); err != nil {
		t.Fatalf("second probe: %v", err)
	}

	if b.State() != StateClosed {
		t.Errorf("expected state=closed after 2 probe successes, got %v", b.State())
	}

	// Closing clears the window but keeps the last failure time.
	health := b.Health()
	if health.FailureCount != 0 {
		t.Errorf("expected failure count 0 after close, got %d", health.FailureCount)
	}
	if health.LastFailureTime == nil {
		t.Error("expected last failure time to survive natural recovery")
	}
}

func TestBreaker_ReopenKeepsWindow(t *testing.T) {
	clock := NewMockClock(time.Now())
	b := New("test-circuit", testConfig(clock))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = b.Do(ctx, failOp)
	}
	clock.Advance(61 * time.Second)
	_, _ = b.Do(ctx, failOp) // probe fails, reopen

	// Reopening keeps the closed-state history; only CLOSED clears it.
	health := b.Health()
	if health.FailureCount != 3 {
		t.Errorf("expected failure count 3 after reopen, got %d", health.FailureCount)
	}
}

func TestBreaker_HalfOpenProbeBudget(t *testing.T) {
	clock := NewMockClock(time.Now())
	b := New("test-circuit", testConfig(clock))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = b.Do(ctx, failOp)
	}
	clock.Advance(61 * time.Second)

	// Two probes (SuccessThreshold=2) block in flight.
	entered := make(chan struct{}, 2)
	release := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = b.Do(ctx, func(ctx context.Context) (any, error) {
				entered <- struct{}{}
				<-release
				return nil, nil
			})
		}()
	}
	<-entered
	<-entered

	// Budget spent: the next call is rejected while the probes settle.
	_, err := b.Do(ctx, succeedOp)
	var oe *OpenError
	if !errors.As(err, &oe) {
		t.Fatalf("expected *OpenError beyond probe budget, got %v", err)
	}
	if oe.State != StateHalfOpen {
		t.Errorf("expected half-open state in rejection, got %v", oe.State)
	}

	close(release)
	wg.Wait()

	if b.State() != StateClosed {
		t.Errorf("expected state=closed after probes succeed, got %v", b.State())
	}
}

func TestBreaker_WindowEviction(t *testing.T) {
	clock := NewMockClock(time.Now())
	cfg := Config{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          60 * time.Second,
		MinRequests:      1,
		WindowSize:       4,
		Clock:            clock,
	}
	b := New("test-circuit", cfg)
	ctx := context.Background()

	// Two failures, then enough successes to evict them from the ring.
	_, _ = b.Do(ctx, failOp)
	_, _ = b.Do(ctx, failOp)
	for i := 0; i < 4; i++ {
		_, _ = b.Do(ctx, succeedOp)
	}

	health := b.Health()
	if health.FailureCount != 0 {
		t.Errorf("expected evicted failures to leave the count, got %d", health.FailureCount)
	}
	if b.State() != StateClosed {
		t.Errorf("expected state=closed, got %v", b.State())
	}
}

func TestBreaker_StaleOutcomeDiscarded(t *testing.T) {
	clock := NewMockClock(time.Now())
	cfg := Config{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		Timeout:          60 * time.Second,
		MinRequests:      1,
		WindowSize:       10,
		Clock:            clock,
	}
	b := New("test-circuit", cfg)
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = b.Do(ctx, func(ctx context.Context) (any, error) {
			close(entered)
			<-release
			return nil, errBoom
		})
	}()
	<-entered

	// Reset while the call is in flight; its failure lands in a dead
	// generation and must not trip the fresh circuit.
	b.Reset()
	close(release)
	wg.Wait()

	if b.State() != StateClosed {
		t.Errorf("expected stale failure to be discarded, got state %v", b.State())
	}
	if health := b.Health(); health.FailureCount != 0 {
		t.Errorf("expected failure count 0, got %d", health.FailureCount)
	}
}

func TestBreaker_Reset(t *testing.T) {
	clock := NewMockClock(time.Now())
	b := New("test-circuit", testConfig(clock))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = b.Do(ctx, failOp)
	}
	if b.State() != StateOpen {
		t.Fatalf("expected state=open, got %v", b.State())
	}

	b.Reset()

	if b.State() != StateClosed {
		t.Errorf("expected state=closed after reset, got %v", b.State())
	}
	health := b.Health()
	if health.FailureCount != 0 {
		t.Errorf("expected failure count 0 after reset, got %d", health.FailureCount)
	}
	if health.LastFailureTime != nil {
		t.Error("expected reset to clear last failure time")
	}

	// Calls flow again immediately.
	if _, err := b.Do(ctx, succeedOp); err != nil {
		t.Errorf("expected call to pass after reset, got %v", err)
	}
}

func TestBreaker_StateReadHasNoSideEffects(t *testing.T) {
	clock := NewMockClock(time.Now())
	b := New("test-circuit", testConfig(clock))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = b.Do(ctx, failOp)
	}
	clock.Advance(61 * time.Second)

	// Reading state after the cooldown does not transition; the next call does.
	if b.State() != StateOpen {
		t.Errorf("expected state read to report open, got %v", b.State())
	}
	if _, err := b.Do(ctx, succeedOp); err != nil {
		t.Fatalf("expected probe to be admitted, got %v", err)
	}
	if b.State() != StateHalfOpen {
		t.Errorf("expected state=half-open after probe, got %v", b.State())
	}
}

func TestBreaker_Health(t *testing.T) {
	clock := NewMockClock(time.Now())
	b := New("test-circuit", testConfig(clock))
	ctx := context.Background()

	_, _ = b.Do(ctx, succeedOp)
	_, _ = b.Do(ctx, failOp)

	health := b.Health()
	if health.Name != "test-circuit" {
		t.Errorf("expected name 'test-circuit', got %q", health.Name)
	}
	if health.State != "closed" {
		t.Errorf("expected state 'closed', got %q", health.State)
	}
	if !health.Healthy {
		t.Error("expected healthy while closed")
	}
	if health.FailureCount != 1 {
		t.Errorf("expected failure count 1, got %d", health.FailureCount)
	}
	if health.FailureRate != 0.5 {
		t.Errorf("expected failure rate 0.5, got %f", health.FailureRate)
	}
	if health.LastFailureTime == nil {
		t.Error("expected last failure time to be set")
	}

	_, _ = b.Do(ctx, failOp)
	_, _ = b.Do(ctx, failOp)
	health = b.Health()
	if health.Healthy {
		t.Error("expected unhealthy while open")
	}
	if health.State != "open" {
		t.Errorf("expected state 'open', got %q", health.State)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name: "valid",
			cfg: Config{
				FailureThreshold:     5,
				SuccessThreshold:     3,
				Timeout:              time.Minute,
				MinRequests:          10,
				WindowSize:           100,
				FailureRateThreshold: 0.5,
			},
		},
		{
			name: "zero failure threshold",
			cfg: Config{
				SuccessThreshold: 3,
				Timeout:          time.Minute,
				MinRequests:      10,
				WindowSize:       100,
			},
			wantErr: "failure threshold",
		},
		{
			name: "zero success threshold",
			cfg: Config{
				FailureThreshold: 5,
				Timeout:          time.Minute,
				MinRequests:      10,
				WindowSize:       100,
			},
			wantErr: "success threshold",
		},
		{
			name: "zero timeout",
			cfg: Config{
				FailureThreshold: 5,
				SuccessThreshold: 3,
				MinRequests:      10,
				WindowSize:       100,
			},
			wantErr: "timeout",
		},
		{
			name: "zero min requests",
			cfg: Config{
				FailureThreshold: 5,
				SuccessThreshold: 3,
				Timeout:          time.Minute,
				WindowSize:       100,
			},
			wantErr: "min requests",
		},
		{
			name: "window below failure threshold",
			cfg: Config{
				FailureThreshold: 5,
				SuccessThreshold: 3,
				Timeout:          time.Minute,
				MinRequests:      1,
				WindowSize:       4,
			},
			wantErr: "window size",
		},
		{
			name: "rate above one",
			cfg: Config{
				FailureThreshold:     5,
				SuccessThreshold:     3,
				Timeout:              time.Minute,
				MinRequests:          10,
				WindowSize:           100,
				FailureRateThreshold: 1.5,
			},
			wantErr: "failure rate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestPresetConfigs(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "default", cfg: DefaultConfig()},
		{name: "ai provider", cfg: AIProviderConfig()},
		{name: "feed fetch", cfg: FeedFetchConfig()},
		{name: "webhook", cfg: WebhookConfig()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); err != nil {
				t.Errorf("preset must validate: %v", err)
			}
		})
	}
}

func TestOpenError_Error(t *testing.T) {
	err := &OpenError{Name: "discord", State: StateOpen, RetryAfter: 30 * time.Second}
	msg := err.Error()
	if !strings.Contains(msg, "discord") || !strings.Contains(msg, "open") || !strings.Contains(msg, "30s") {
		t.Errorf("unexpected message: %s", msg)
	}

	halfOpen := &OpenError{Name: "discord", State: StateHalfOpen}
	if !strings.Contains(halfOpen.Error(), "half-open") {
		t.Errorf("unexpected message: %s", halfOpen.Error())
	}
}

func TestIsOpenError(t *testing.T) {
	if IsOpenError(errBoom) {
		t.Error("plain error must not be an open error")
	}
	if IsOpenError(nil) {
		t.Error("nil must not be an open error")
	}

	wrapped := errors.Join(errors.New("outer"), &OpenError{Name: "x", State: StateOpen})
	if !IsOpenError(wrapped) {
		t.Error("expected wrapped *OpenError to be detected")
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
