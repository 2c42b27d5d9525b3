package recovery

import (
	"log/slog"

	"catchup-relay/internal/resilience/fault"
	"catchup-relay/internal/resilience/retry"
)

// Plan is an ordered recovery strategy for one fault kind.
type Plan struct {
	// Actions run in order until one resolves the operation.
	Actions []Action

	// Retry configures the RetryWithBackoff action. A zero value falls back
	// to retry.DefaultConfig.
	Retry retry.Config

	// Fallback is the plan-level fallback for UseFallback. A fallback on the
	// Failure overrides it.
	Fallback Fallback

	// Severity is the log level for the NotifyAdmin action.
	Severity slog.Level
}

// RegisterPlan installs or replaces the recovery plan for a fault kind.
// Intended for setup time; it is safe, but pointless, to race with Recover.
func (m *Manager) RegisterPlan(kind fault.Kind, plan Plan) {
	m.planMu.Lock()
	m.plans[kind] = plan
	m.planMu.Unlock()

	slog.Info("recovery plan registered",
		slog.String("kind", kind.String()),
		slog.Int("actions", len(plan.Actions)))
}

// planFor returns the registered plan for the kind, or the generic
// retry-only plan when nothing is registered.
func (m *Manager) planFor(kind fault.Kind) Plan {
	m.planMu.RLock()
	plan, ok := m.plans[kind]
	m.planMu.RUnlock()
	if ok {
		return plan
	}

	return Plan{
		Actions:  []Action{ActionRetryWithBackoff},
		Retry:    retry.DefaultConfig(),
		Severity: slog.LevelWarn,
	}
}

// registerDefaultPlans installs the stock strategy table. Throttling gets
// patient retries; exhausted quotas skip retry entirely and go to fallback,
// queue, and an operator notification; broken credentials or configuration
// only page, since retrying cannot fix them; malformed items are skipped so
// the rest of a batch proceeds.
func (m *Manager) registerDefaultPlans() {
	m.plans[fault.KindRateLimit] = Plan{
		Actions:  []Action{ActionRetryWithBackoff},
		Retry:    retry.PublishRateLimitConfig(),
		Severity: slog.LevelInfo,
	}

	m.plans[fault.KindQuotaExceeded] = Plan{
		Actions:  []Action{ActionUseFallback, ActionSaveToQueue, ActionNotifyAdmin},
		Severity: slog.LevelError,
	}

	m.plans[fault.KindServiceAPI] = Plan{
		Actions:  []Action{ActionRetryWithBackoff, ActionSaveToQueue},
		Retry:    retry.AIUnavailableConfig(),
		Severity: slog.LevelWarn,
	}

	m.plans[fault.KindServiceUnavailable] = Plan{
		Actions:  []Action{ActionRetryWithBackoff, ActionSaveToQueue},
		Retry:    retry.AIUnavailableConfig(),
		Severity: slog.LevelWarn,
	}

	m.plans[fault.KindNetwork] = Plan{
		Actions:  []Action{ActionRetryWithBackoff},
		Retry:    retry.NetworkConfig(),
		Severity: slog.LevelInfo,
	}

	m.plans[fault.KindTimeout] = Plan{
		Actions:  []Action{ActionRetryWithBackoff, ActionUseFallback, ActionSaveToQueue},
		Retry:    retry.NetworkConfig(),
		Severity: slog.LevelWarn,
	}

	m.plans[fault.KindAuth] = Plan{
		Actions:  []Action{ActionNotifyAdmin},
		Severity: slog.LevelError,
	}

	m.plans[fault.KindConfig] = Plan{
		Actions:  []Action{ActionNotifyAdmin},
		Severity: slog.LevelError,
	}

	m.plans[fault.KindValidation] = Plan{
		Actions:  []Action{ActionSkipOperation},
		Severity: slog.LevelInfo,
	}
}
