// Package recovery provides the error recovery orchestrator: the boundary
// past which failures do not propagate. Given a classified fault it runs the
// registered recovery plan (retry, queue for later, fall back, degrade,
// notify, or skip) and always returns a structured result instead of an
// error, so one item's total failure never aborts its siblings.
package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"catchup-relay/internal/resilience/circuitbreaker"
	"catchup-relay/internal/resilience/fault"
	"catchup-relay/internal/resilience/retry"
)

// Action identifies one recovery step in a plan.
type Action string

const (
	// ActionRetryWithBackoff re-runs the failed operation through the retry
	// executor with the plan's retry configuration.
	ActionRetryWithBackoff Action = "retry_with_backoff"

	// ActionSaveToQueue defers the operation to the in-memory retry queue.
	ActionSaveToQueue Action = "save_to_queue"

	// ActionUseFallback invokes a fallback to produce a substitute result.
	ActionUseFallback Action = "use_fallback"

	// ActionDegradeService marks the dependency degraded in health reporting.
	ActionDegradeService Action = "degrade_service"

	// ActionNotifyAdmin emits a structured log event at the plan's severity.
	ActionNotifyAdmin Action = "notify_admin"

	// ActionSkipOperation resolves the operation as intentionally skipped.
	ActionSkipOperation Action = "skip_operation"
)

// Operation is a replayable unit of work.
type Operation func(ctx context.Context) (any, error)

// Fallback produces a substitute result when the primary operation cannot.
// It receives the original cause so it can shape the substitute.
type Fallback func(ctx context.Context, cause error) (any, error)

// Context describes the failed operation for plan bookkeeping and reporting.
type Context struct {
	// Operation names the unit of work, e.g. "translate" or "publish".
	Operation string

	// Service names the dependency involved, e.g. "anthropic" or "discord".
	Service string

	// Fields carries extra identifiers for logs.
	Fields map[string]any
}

// Failure bundles a failed call with everything recovery might need: the
// cause, where it happened, the operation for retry or replay, and an
// optional fallback that overrides the plan's.
type Failure struct {
	Cause     error
	Context   Context
	Operation Operation
	Fallback  Fallback
}

// ActionOutcome records one executed plan action.
type ActionOutcome struct {
	Action  Action
	Success bool
	Message string
}

// Result is the structured outcome of a recovery attempt.
type Result struct {
	// Success is true when an action definitively resolved the operation: a
	// retry or fallback produced a result, or the plan said to skip.
	Success bool

	// Queued is true when the operation was deferred to the retry queue.
	// A queued operation is deferred, not resolved: Success stays false.
	Queued bool

	// Action is the action that resolved the operation. Empty unless Success.
	Action Action

	// Result is the value produced by a successful retry or fallback.
	Result any

	// Kind is the classified kind of the original failure.
	Kind fault.Kind

	// ActionsTaken records every action attempted, in order.
	ActionsTaken []ActionOutcome
}

const defaultQueueMaxAttempts = 3

// Config holds the orchestrator's tunables.
type Config struct {
	// QueueMaxAttempts is how many replays a queued operation gets before it
	// is dropped as permanently failed. Default 3.
	QueueMaxAttempts int
}

// Manager orchestrates error recovery. Plans, the retry queue, and the
// degraded-service set are each guarded by their own lock; no action ever
// holds two at once.
type Manager struct {
	breakers         *circuitbreaker.Registry
	queueMaxAttempts int

	planMu sync.RWMutex
	plans  map[fault.Kind]Plan

	queueMu sync.Mutex
	queue   []*QueuedOperation

	svcMu    sync.RWMutex
	degraded map[string]struct{}
}

// NewManager creates a recovery manager with the default plan table.
// breakers may be nil; it only feeds service health reporting.
func NewManager(breakers *circuitbreaker.Registry, cfg Config) *Manager {
	if cfg.QueueMaxAttempts <= 0 {
		cfg.QueueMaxAttempts = defaultQueueMaxAttempts
	}

	m := &Manager{
		breakers:         breakers,
		queueMaxAttempts: cfg.QueueMaxAttempts,
		plans:            make(map[fault.Kind]Plan),
		degraded:         make(map[string]struct{}),
	}
	m.registerDefaultPlans()
	return m
}

// Recover runs the recovery plan for the failure's fault kind. Actions run
// in order; the first one that resolves the operation (a retry or fallback
// result, or an explicit skip) stops the chain, while side-effect actions
// (queueing, degrading, notifying) record their outcome and let it continue.
//
// Recover never returns an error and never panics: callbacks are invoked
// behind recover, and every outcome, including total failure, becomes a
// Result.
func (m *Manager) Recover(ctx context.Context, f Failure) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("recovery orchestrator panicked",
				slog.Any("panic", r),
				slog.String("operation", f.Context.Operation))
			res.Success = false
		}
	}()

	if f.Cause == nil {
		res.Success = true
		return res
	}

	res.Kind = fault.KindOf(f.Cause)
	plan := m.planFor(res.Kind)

	for _, action := range plan.Actions {
		outcome, value, resolved := m.runAction(ctx, action, plan, f)
		res.ActionsTaken = append(res.ActionsTaken, outcome)

		if action == ActionSaveToQueue && outcome.Success {
			res.Queued = true
		}
		if resolved {
			res.Success = true
			res.Action = action
			res.Result = value
			break
		}
	}

	slog.Info("error recovery attempted",
		slog.String("kind", res.Kind.String()),
		slog.String("operation", f.Context.Operation),
		slog.String("service", f.Context.Service),
		slog.Bool("success", res.Success),
		slog.Bool("queued", res.Queued),
		slog.Int("actions", len(res.ActionsTaken)))

	return res
}

// runAction executes one plan action. The third return value reports whether
// the action resolved the operation, which is stricter than the outcome's
// own success: queueing, degrading, and notifying can succeed as side
// effects without resolving anything.
func (m *Manager) runAction(ctx context.Context, action Action, plan Plan, f Failure) (ActionOutcome, any, bool) {
	switch action {
	case ActionRetryWithBackoff:
		return m.runRetry(ctx, plan, f)
	case ActionSaveToQueue:
		return m.runSaveToQueue(f)
	case ActionUseFallback:
		return m.runFallback(ctx, plan, f)
	case ActionDegradeService:
		return m.runDegrade(f)
	case ActionNotifyAdmin:
		return m.runNotify(ctx, plan, f)
	case ActionSkipOperation:
		return m.runSkip(f)
	default:
		return ActionOutcome{Action: action, Message: "unknown recovery action"}, nil, false
	}
}

func (m *Manager) runRetry(ctx context.Context, plan Plan, f Failure) (ActionOutcome, any, bool) {
	outcome := ActionOutcome{Action: ActionRetryWithBackoff}
	if f.Operation == nil {
		outcome.Message = "no operation to retry"
		return outcome, nil, false
	}

	cfg := plan.Retry
	if cfg.MaxAttempts == 0 {
		cfg = retry.DefaultConfig()
	}

	var value any
	err := retry.WithBackoff(ctx, cfg, func() error {
		v, err := safeOperation(ctx, f.Operation)
		if err == nil {
			value = v
		}
		return err
	})
	if err != nil {
		outcome.Message = fmt.Sprintf("retry failed: %v", err)
		return outcome, nil, false
	}

	outcome.Success = true
	outcome.Message = "retry succeeded"
	return outcome, value, true
}

func (m *Manager) runSaveToQueue(f Failure) (ActionOutcome, any, bool) {
	outcome := ActionOutcome{Action: ActionSaveToQueue}
	if f.Operation == nil {
		outcome.Message = "no operation captured, cannot defer"
		return outcome, nil, false
	}

	id := m.enqueue(f)
	outcome.Success = true
	outcome.Message = fmt.Sprintf("operation deferred as %s", id)
	// Deferred is not resolved.
	return outcome, nil, false
}

func (m *Manager) runFallback(ctx context.Context, plan Plan, f Failure) (ActionOutcome, any, bool) {
	outcome := ActionOutcome{Action: ActionUseFallback}

	fb := f.Fallback
	if fb == nil {
		fb = plan.Fallback
	}
	if fb == nil {
		outcome.Message = "no fallback available"
		return outcome, nil, false
	}

	value, err := safeFallback(ctx, fb, f.Cause)
	if err != nil {
		outcome.Message = fmt.Sprintf("fallback failed: %v", err)
		return outcome, nil, false
	}

	outcome.Success = true
	outcome.Message = "fallback produced a result"
	return outcome, value, true
}

func (m *Manager) runDegrade(f Failure) (ActionOutcome, any, bool) {
	outcome := ActionOutcome{Action: ActionDegradeService}
	if f.Context.Service == "" {
		outcome.Message = "no service named in context"
		return outcome, nil, false
	}

	m.Degrade(f.Context.Service)
	outcome.Success = true
	outcome.Message = fmt.Sprintf("service %s marked degraded", f.Context.Service)
	// Informational; the operation itself is still unresolved.
	return outcome, nil, false
}

func (m *Manager) runNotify(ctx context.Context, plan Plan, f Failure) (ActionOutcome, any, bool) {
	slog.Log(ctx, plan.Severity, "admin notification",
		slog.Any("error", f.Cause),
		slog.String("operation", f.Context.Operation),
		slog.String("service", f.Context.Service))

	return ActionOutcome{
		Action:  ActionNotifyAdmin,
		Success: true,
		Message: "admin notified",
	}, nil, false
}

func (m *Manager) runSkip(f Failure) (ActionOutcome, any, bool) {
	slog.Info("operation skipped",
		slog.String("operation", f.Context.Operation),
		slog.Any("error", f.Cause))

	return ActionOutcome{
		Action:  ActionSkipOperation,
		Success: true,
		Message: "operation skipped",
	}, nil, true
}

// safeOperation invokes op, converting a panic into an error.
func safeOperation(ctx context.Context, op Operation) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("operation panicked: %v", r)
		}
	}()
	return op(ctx)
}

// safeFallback invokes fb, converting a panic into an error.
func safeFallback(ctx context.Context, fb Fallback, cause error) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fallback panicked: %v", r)
		}
	}()
	return fb(ctx, cause)
}
