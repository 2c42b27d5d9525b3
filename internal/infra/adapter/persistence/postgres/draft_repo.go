package postgres

import (
	"context"
	"fmt"
	"time"

	"catchup-relay/internal/domain/entity"
	"catchup-relay/internal/observability/metrics"
	"catchup-relay/internal/repository"
)

type DraftRepo struct{ db Querier }

func NewDraftRepo(db Querier) repository.DraftRepository {
	return &DraftRepo{db: db}
}

func (repo *DraftRepo) Save(ctx context.Context, draft *entity.Draft) (int64, error) {
	if err := draft.Validate(); err != nil {
		return 0, err
	}

	const query = `
INSERT INTO drafts (guid, channel, title, link, body, failure_kind)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id`
	start := time.Now()
	var id int64
	err := repo.db.QueryRowContext(ctx, query,
		draft.GUID, draft.Channel, draft.Title, draft.Link, draft.Body, draft.FailureKind,
	).Scan(&id)
	metrics.RecordDBQuery("save_draft", time.Since(start))
	if err != nil {
		return 0, fmt.Errorf("Save: %w", err)
	}
	return id, nil
}

func (repo *DraftRepo) ListRecent(ctx context.Context, limit int) ([]*entity.Draft, error) {
	if limit <= 0 {
		limit = 50
	}

	const query = `
SELECT id, guid, channel, title, link, body, failure_kind, created_at
FROM drafts
ORDER BY created_at DESC
LIMIT $1`
	start := time.Now()
	rows, err := repo.db.QueryContext(ctx, query, limit)
	metrics.RecordDBQuery("list_drafts", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("ListRecent: %w", err)
	}
	defer func() { _ = rows.Close() }()

	// パフォーマンス最適化: メモリ再割り当てを削減するため事前割り当て
	drafts := make([]*entity.Draft, 0, limit)
	for rows.Next() {
		var draft entity.Draft
		if err := rows.Scan(&draft.ID, &draft.GUID, &draft.Channel, &draft.Title,
			&draft.Link, &draft.Body, &draft.FailureKind, &draft.CreatedAt); err != nil {
			return nil, fmt.Errorf("ListRecent: Scan: %w", err)
		}
		drafts = append(drafts, &draft)
	}
	return drafts, rows.Err()
}

func (repo *DraftRepo) CountByChannel(ctx context.Context) (map[string]int64, error) {
	const query = `
SELECT channel, COUNT(*)
FROM drafts
GROUP BY channel`
	start := time.Now()
	rows, err := repo.db.QueryContext(ctx, query)
	metrics.RecordDBQuery("count_drafts", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("CountByChannel: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int64)
	for rows.Next() {
		var channel string
		var count int64
		if err := rows.Scan(&channel, &count); err != nil {
			return nil, fmt.Errorf("CountByChannel: Scan: %w", err)
		}
		counts[channel] = count
	}
	return counts, rows.Err()
}
