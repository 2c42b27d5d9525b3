package repository

import (
	"context"
	"time"

	"catchup-relay/internal/domain/entity"
)

// DeliveryRepository records what has been delivered where, and answers the
// dedupe lookback query the pipeline runs before publishing.
type DeliveryRepository interface {
	// Record stores a delivery. Recording the same (dedupe key, channel)
	// pair twice returns entity.ErrDuplicate.
	Record(ctx context.Context, delivery *entity.Delivery) error
	// RecentKeys returns the dedupe keys delivered to channel since the
	// given time.
	RecentKeys(ctx context.Context, channel string, since time.Time) (map[string]bool, error)
	// Prune deletes delivery records older than the given time and returns
	// how many were removed.
	Prune(ctx context.Context, olderThan time.Time) (int64, error)
}
