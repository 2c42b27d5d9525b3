package postgres

import (
	"context"
	"fmt"
	"time"

	"catchup-relay/internal/domain/entity"
	"catchup-relay/internal/observability/metrics"
	"catchup-relay/internal/repository"
)

type DeliveryRepo struct{ db Querier }

func NewDeliveryRepo(db Querier) repository.DeliveryRepository {
	return &DeliveryRepo{db: db}
}

func (repo *DeliveryRepo) Record(ctx context.Context, delivery *entity.Delivery) error {
	if err := delivery.Validate(); err != nil {
		return err
	}

	deliveredAt := delivery.DeliveredAt
	if deliveredAt.IsZero() {
		deliveredAt = time.Now()
	}

	const query = `
INSERT INTO deliveries (dedupe_key, channel, feed_name, title, link, delivered_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	start := time.Now()
	_, err := repo.db.ExecContext(ctx, query,
		delivery.DedupeKey, delivery.Channel, delivery.FeedName, delivery.Title, delivery.Link, deliveredAt)
	metrics.RecordDBQuery("record_delivery", time.Since(start))
	if isUniqueViolation(err) {
		return entity.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("Record: %w", err)
	}
	return nil
}

func (repo *DeliveryRepo) RecentKeys(ctx context.Context, channel string, since time.Time) (map[string]bool, error) {
	const query = `
SELECT dedupe_key
FROM deliveries
WHERE channel = $1 AND delivered_at >= $2`
	start := time.Now()
	rows, err := repo.db.QueryContext(ctx, query, channel, since)
	metrics.RecordDBQuery("recent_keys", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("RecentKeys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	keys := make(map[string]bool)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("RecentKeys: Scan: %w", err)
		}
		keys[key] = true
	}
	return keys, rows.Err()
}

func (repo *DeliveryRepo) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	const query = `
DELETE FROM deliveries
WHERE delivered_at < $1`
	start := time.Now()
	result, err := repo.db.ExecContext(ctx, query, olderThan)
	metrics.RecordDBQuery("prune_deliveries", time.Since(start))
	if err != nil {
		return 0, fmt.Errorf("Prune: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("Prune: RowsAffected: %w", err)
	}
	return deleted, nil
}
