// Package fixtures provides reusable test data generators for the relay's tests.
package fixtures

import (
	"fmt"
	"time"

	"catchup-relay/internal/domain/entity"
)

// UpdateOption is a functional option for customizing test updates.
type UpdateOption func(*entity.Update)

// NewTestUpdate creates a valid Update with sensible defaults.
// Use functional options to customize it for specific test cases.
//
// Example:
//
//	update := NewTestUpdate()
//	update := NewTestUpdate(WithGUID("entry-42"), WithSummary("要約です", "ja"))
func NewTestUpdate(opts ...UpdateOption) *entity.Update {
	now := time.Now()
	u := &entity.Update{
		GUID:        "entry-1",
		FeedName:    "go-blog",
		FeedURL:     "https://example.com/feed",
		Title:       "Release notes",
		Link:        "https://example.com/releases/1",
		Content:     "The latest release cuts build times and ships several fixes.",
		PublishedAt: now,
		FetchedAt:   now,
	}

	for _, opt := range opts {
		opt(u)
	}

	return u
}

// WithGUID sets the update GUID.
func WithGUID(guid string) UpdateOption {
	return func(u *entity.Update) { u.GUID = guid }
}

// WithFeed sets the feed name and URL the update came from.
func WithFeed(name, url string) UpdateOption {
	return func(u *entity.Update) {
		u.FeedName = name
		u.FeedURL = url
	}
}

// WithTitle sets the update title.
func WithTitle(title string) UpdateOption {
	return func(u *entity.Update) { u.Title = title }
}

// WithLink sets the update link.
func WithLink(link string) UpdateOption {
	return func(u *entity.Update) { u.Link = link }
}

// WithBody sets the entry body content.
func WithBody(body string) UpdateOption {
	return func(u *entity.Update) { u.Content = body }
}

// WithSummary sets the translated summary and its language.
func WithSummary(summary, language string) UpdateOption {
	return func(u *entity.Update) {
		u.Summary = summary
		u.Language = language
	}
}

// WithPublishedAt sets the publication time.
func WithPublishedAt(t time.Time) UpdateOption {
	return func(u *entity.Update) { u.PublishedAt = t }
}

// GenerateUpdates returns count updates for one feed, newest first, published
// an hour apart. GUIDs, titles, and bodies are numbered from count down to 1
// so ordering tests can assert on them.
//
// Example:
//
//	updates := GenerateUpdates("go-blog", 2, time.Now())
//	// updates[0]: guid-2 "Entry 2" (newest), updates[1]: guid-1 "Entry 1"
func GenerateUpdates(feedName string, count int, newest time.Time) []*entity.Update {
	updates := make([]*entity.Update, 0, count)
	for i := 0; i < count; i++ {
		n := count - i
		updates = append(updates, &entity.Update{
			GUID:        fmt.Sprintf("guid-%d", n),
			FeedName:    feedName,
			Title:       fmt.Sprintf("Entry %d", n),
			Link:        fmt.Sprintf("https://example.com/entry%d", n),
			Content:     fmt.Sprintf("Body %d", n),
			PublishedAt: newest.Add(-time.Duration(i) * time.Hour),
		})
	}
	return updates
}

// DraftOption is a functional option for customizing parked drafts.
type DraftOption func(*entity.Draft)

// NewTestDraft creates a valid Draft with sensible defaults.
//
// Example:
//
//	draft := NewTestDraft()
//	draft := NewTestDraft(WithDraftChannel("slack"), WithDraftFailure("timeout"))
func NewTestDraft(opts ...DraftOption) *entity.Draft {
	d := &entity.Draft{
		GUID:        "entry-1",
		Channel:     "discord",
		Title:       "Release notes",
		Link:        "https://example.com/releases/1",
		Body:        "本文の要約",
		FailureKind: "rate_limit",
		CreatedAt:   time.Now(),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// WithDraftID sets the stored draft ID.
func WithDraftID(id int64) DraftOption {
	return func(d *entity.Draft) { d.ID = id }
}

// WithDraftGUID sets the draft GUID.
func WithDraftGUID(guid string) DraftOption {
	return func(d *entity.Draft) { d.GUID = guid }
}

// WithDraftChannel sets the channel the delivery was bound for.
func WithDraftChannel(channel string) DraftOption {
	return func(d *entity.Draft) { d.Channel = channel }
}

// WithDraftTitle sets the draft title.
func WithDraftTitle(title string) DraftOption {
	return func(d *entity.Draft) { d.Title = title }
}

// WithDraftLink sets the draft link.
func WithDraftLink(link string) DraftOption {
	return func(d *entity.Draft) { d.Link = link }
}

// WithDraftBody sets the draft body.
func WithDraftBody(body string) DraftOption {
	return func(d *entity.Draft) { d.Body = body }
}

// WithDraftFailure sets the classified failure kind that parked the draft.
func WithDraftFailure(kind string) DraftOption {
	return func(d *entity.Draft) { d.FailureKind = kind }
}

// WithDraftCreatedAt sets the parked time.
func WithDraftCreatedAt(t time.Time) DraftOption {
	return func(d *entity.Draft) { d.CreatedAt = t }
}

// DeliveryOption is a functional option for customizing delivery records.
type DeliveryOption func(*entity.Delivery)

// NewTestDelivery creates a valid Delivery with sensible defaults.
//
// Example:
//
//	d := NewTestDelivery()
//	d := NewTestDelivery(WithDeliveryChannel("slack"), WithDeliveredAt(then))
func NewTestDelivery(opts ...DeliveryOption) *entity.Delivery {
	d := &entity.Delivery{
		DedupeKey:   "feed-a:entry-1",
		Channel:     "discord",
		FeedName:    "feed-a",
		Title:       "Release notes",
		Link:        "https://example.com/releases/1",
		DeliveredAt: time.Now(),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// WithDeliveryKey sets the dedupe key.
func WithDeliveryKey(key string) DeliveryOption {
	return func(d *entity.Delivery) { d.DedupeKey = key }
}

// WithDeliveryChannel sets the channel the update went to.
func WithDeliveryChannel(channel string) DeliveryOption {
	return func(d *entity.Delivery) { d.Channel = channel }
}

// WithDeliveryFeed sets the feed name the update came from.
func WithDeliveryFeed(name string) DeliveryOption {
	return func(d *entity.Delivery) { d.FeedName = name }
}

// WithDeliveredAt sets the delivery time.
func WithDeliveredAt(t time.Time) DeliveryOption {
	return func(d *entity.Delivery) { d.DeliveredAt = t }
}
