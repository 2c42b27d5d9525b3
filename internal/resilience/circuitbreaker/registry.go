package circuitbreaker

import (
	"context"
	"sort"
	"sync"
)

// Registry manages a set of named circuit breakers sharing one metrics
// backend. Breakers are created lazily on first use: callers address a
// dependency by name ("anthropic", "discord", "feed:<url>") without caring
// whether the breaker exists yet.
type Registry struct {
	defaults Config

	mu       sync.RWMutex
	breakers map[string]*Breaker
	configs  map[string]Config
}

// NewRegistry creates a registry. Breakers without a per-name configuration
// are created from defaults; the defaults' Clock and Metrics are inherited by
// per-name configurations that leave them nil.
func NewRegistry(defaults Config) *Registry {
	if defaults.Clock == nil {
		defaults.Clock = &SystemClock{}
	}
	if defaults.Metrics == nil {
		defaults.Metrics = &NoOpMetrics{}
	}
	return &Registry{
		defaults: defaults,
		breakers: make(map[string]*Breaker),
		configs:  make(map[string]Config),
	}
}

// Configure registers a per-name configuration used when the named breaker is
// first created. Calling it after the breaker exists has no effect on the
// live breaker.
func (r *Registry) Configure(name string, cfg Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[name] = cfg
}

// Get returns the named breaker, creating it on first use.
func (r *Registry) Get(name string) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[name]; ok {
		return b
	}

	cfg, ok := r.configs[name]
	if !ok {
		cfg = r.defaults
	}
	if cfg.Clock == nil {
		cfg.Clock = r.defaults.Clock
	}
	if cfg.Metrics == nil {
		cfg.Metrics = r.defaults.Metrics
	}

	b = New(name, cfg)
	r.breakers[name] = b
	return b
}

// Do runs the operation through the named breaker, creating the breaker on
// first use.
func (r *Registry) Do(ctx context.Context, name string, op func(context.Context) (any, error)) (any, error) {
	return r.Get(name).Do(ctx, op)
}

// Reset forces the named breaker back to CLOSED. It reports whether the
// breaker existed; resetting an unknown name is not an error, just a no-op.
func (r *Registry) Reset(name string) bool {
	r.mu.RLock()
	b, ok := r.breakers[name]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	b.Reset()
	return true
}

// ResetAll forces every known breaker back to CLOSED.
func (r *Registry) ResetAll() {
	for _, b := range r.snapshot() {
		b.Reset()
	}
}

// Health returns a snapshot of every known breaker, sorted by name.
func (r *Registry) Health() []HealthStatus {
	breakers := r.snapshot()

	statuses := make([]HealthStatus, 0, len(breakers))
	for _, b := range breakers {
		statuses = append(statuses, b.Health())
	}
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Name < statuses[j].Name
	})
	return statuses
}

// Names returns the names of every known breaker, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// snapshot copies the breaker pointers so per-breaker locks are taken
// outside the registry lock.
func (r *Registry) snapshot() []*Breaker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	breakers := make([]*Breaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		breakers = append(breakers, b)
	}
	return breakers
}
