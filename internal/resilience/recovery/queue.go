package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"catchup-relay/internal/resilience/fault"
)

// QueuedOperation is a deferred unit of work awaiting replay.
type QueuedOperation struct {
	ID          string
	Kind        fault.Kind
	Context     Context
	Cause       string
	EnqueuedAt  time.Time
	Attempts    int
	MaxAttempts int

	op Operation
}

// DrainResult summarizes one queue drain pass.
type DrainResult struct {
	Processed  int `json:"processed"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	Remaining  int `json:"remaining"`
}

const defaultDrainBatch = 10

// enqueue appends the failure's operation to the retry queue and returns the
// new entry's id.
func (m *Manager) enqueue(f Failure) string {
	qo := &QueuedOperation{
		ID:          uuid.NewString(),
		Kind:        fault.KindOf(f.Cause),
		Context:     f.Context,
		Cause:       f.Cause.Error(),
		EnqueuedAt:  time.Now(),
		MaxAttempts: m.queueMaxAttempts,
		op:          f.Operation,
	}

	m.queueMu.Lock()
	m.queue = append(m.queue, qo)
	position := len(m.queue)
	m.queueMu.Unlock()

	slog.Info("operation saved to retry queue",
		slog.String("id", qo.ID),
		slog.String("operation", f.Context.Operation),
		slog.String("kind", qo.Kind.String()),
		slog.Int("queue_position", position))

	return qo.ID
}

// RetryQueued replays up to maxOperations queued operations in FIFO order.
// Succeeding entries are discarded; failing entries are re-enqueued at the
// tail until their replay budget is spent, then dropped as permanent.
// maxOperations <= 0 uses a default batch of 10.
func (m *Manager) RetryQueued(ctx context.Context, maxOperations int) DrainResult {
	if maxOperations <= 0 {
		maxOperations = defaultDrainBatch
	}

	m.queueMu.Lock()
	n := min(maxOperations, len(m.queue))
	batch := m.queue[:n]
	m.queue = m.queue[n:]
	m.queueMu.Unlock()

	var result DrainResult
	var requeue []*QueuedOperation

	for _, qo := range batch {
		result.Processed++

		err := m.replay(ctx, qo)
		if err == nil {
			result.Successful++
			slog.Info("queued operation replayed",
				slog.String("id", qo.ID),
				slog.String("operation", qo.Context.Operation))
			continue
		}

		result.Failed++
		qo.Attempts++

		if qo.Attempts >= qo.MaxAttempts {
			slog.Error("queued operation dropped after max attempts",
				slog.String("id", qo.ID),
				slog.String("operation", qo.Context.Operation),
				slog.Int("attempts", qo.Attempts))
			continue
		}

		slog.Warn("queued operation failed, re-enqueued",
			slog.String("id", qo.ID),
			slog.String("operation", qo.Context.Operation),
			slog.Int("attempts", qo.Attempts),
			slog.String("error", err.Error()))
		requeue = append(requeue, qo)
	}

	m.queueMu.Lock()
	m.queue = append(m.queue, requeue...)
	result.Remaining = len(m.queue)
	m.queueMu.Unlock()

	return result
}

// replay re-runs one queued operation.
func (m *Manager) replay(ctx context.Context, qo *QueuedOperation) error {
	if qo.op == nil {
		return fmt.Errorf("queued operation %s has no captured operation", qo.ID)
	}
	_, err := safeOperation(ctx, qo.op)
	return err
}

// Queued returns a snapshot of the retry queue in FIFO order.
func (m *Manager) Queued() []QueuedOperation {
	m.queueMu.Lock()
	defer m.queueMu.Unlock()

	out := make([]QueuedOperation, len(m.queue))
	for i, qo := range m.queue {
		out[i] = *qo
	}
	return out
}
