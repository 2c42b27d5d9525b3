package recovery

import (
	"log/slog"
	"sort"
)

// ServiceHealth is the merged view of one dependency: its degradation flag
// from the recovery manager and, when a breaker exists for the same name,
// the breaker's state and failure rate.
type ServiceHealth struct {
	Service      string  `json:"service"`
	Degraded     bool    `json:"degraded"`
	BreakerState string  `json:"breaker_state,omitempty"`
	FailureRate  float64 `json:"failure_rate"`
}

// HealthStatus summarizes the manager for health endpoints.
type HealthStatus struct {
	QueuedOperations int             `json:"queued_operations"`
	DegradedServices []string        `json:"degraded_services"`
	RegisteredPlans  int             `json:"registered_plans"`
	Services         []ServiceHealth `json:"services"`
}

// Degrade marks a service as degraded. Informational only: recovery and
// breaker decisions never consult the flag.
func (m *Manager) Degrade(service string) {
	m.svcMu.Lock()
	_, already := m.degraded[service]
	m.degraded[service] = struct{}{}
	m.svcMu.Unlock()

	if !already {
		slog.Warn("service degraded", slog.String("service", service))
	}
}

// Restore clears the degraded flag for a service. Returns false when the
// service was not degraded.
func (m *Manager) Restore(service string) bool {
	m.svcMu.Lock()
	_, ok := m.degraded[service]
	delete(m.degraded, service)
	m.svcMu.Unlock()

	if ok {
		slog.Info("service restored", slog.String("service", service))
	}
	return ok
}

// IsDegraded reports whether a service is currently marked degraded.
func (m *Manager) IsDegraded(service string) bool {
	m.svcMu.RLock()
	defer m.svcMu.RUnlock()
	_, ok := m.degraded[service]
	return ok
}

// Degraded returns the degraded service names, sorted.
func (m *Manager) Degraded() []string {
	m.svcMu.RLock()
	names := make([]string, 0, len(m.degraded))
	for name := range m.degraded {
		names = append(names, name)
	}
	m.svcMu.RUnlock()

	sort.Strings(names)
	return names
}

// ServiceHealth merges breaker snapshots with the degraded set. Services
// that only appear in one source still get an entry; the result is sorted
// by service name.
func (m *Manager) ServiceHealth() []ServiceHealth {
	degraded := make(map[string]bool)
	m.svcMu.RLock()
	for name := range m.degraded {
		degraded[name] = true
	}
	m.svcMu.RUnlock()

	var services []ServiceHealth
	if m.breakers != nil {
		for _, h := range m.breakers.Health() {
			services = append(services, ServiceHealth{
				Service:      h.Name,
				Degraded:     degraded[h.Name],
				BreakerState: h.State,
				FailureRate:  h.FailureRate,
			})
			delete(degraded, h.Name)
		}
	}
	for name := range degraded {
		services = append(services, ServiceHealth{Service: name, Degraded: true})
	}

	sort.Slice(services, func(i, j int) bool { return services[i].Service < services[j].Service })
	return services
}

// Health returns a point-in-time summary. Each guarded resource is read
// under its own lock; the snapshot is not atomic across them.
func (m *Manager) Health() HealthStatus {
	m.queueMu.Lock()
	queued := len(m.queue)
	m.queueMu.Unlock()

	m.planMu.RLock()
	plans := len(m.plans)
	m.planMu.RUnlock()

	return HealthStatus{
		QueuedOperations: queued,
		DegradedServices: m.Degraded(),
		RegisteredPlans:  plans,
		Services:         m.ServiceHealth(),
	}
}
