package notifier

import (
	"context"

	"catchup-relay/internal/domain/entity"
)

// NoOpNotifier discards every publish. Disabled channels get one so the
// pipeline never needs a nil check.
type NoOpNotifier struct{}

func NewNoOpNotifier() *NoOpNotifier {
	return &NoOpNotifier{}
}

// Publish accepts and drops the update.
func (n *NoOpNotifier) Publish(ctx context.Context, update *entity.Update) error {
	return nil
}

// Name identifies this channel for logs and breaker names.
func (n *NoOpNotifier) Name() string {
	return "noop"
}
