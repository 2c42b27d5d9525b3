package repository

import (
	"context"

	"catchup-relay/internal/domain/entity"
)

// DraftRepository stores digests whose delivery failed past recovery. Drafts
// are an operator surface: they are reviewed and posted by hand, never
// replayed automatically.
type DraftRepository interface {
	// Save parks a draft and returns its assigned id.
	Save(ctx context.Context, draft *entity.Draft) (int64, error)
	// ListRecent returns the newest drafts, most recent first.
	ListRecent(ctx context.Context, limit int) ([]*entity.Draft, error)
	// CountByChannel returns the number of parked drafts per channel.
	CountByChannel(ctx context.Context) (map[string]int64, error)
}
