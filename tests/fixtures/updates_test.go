package fixtures_test

import (
	"testing"
	"time"

	"catchup-relay/tests/fixtures"
)

// TestNewTestUpdate tests that the default update passes entity validation
func TestNewTestUpdate(t *testing.T) {
	update := fixtures.NewTestUpdate()

	if err := update.Validate(); err != nil {
		t.Errorf("Default update should be valid, got %v", err)
	}
	if update.DedupeKey() != update.GUID {
		t.Errorf("Expected dedupe key %q, got %q", update.GUID, update.DedupeKey())
	}
}

// TestNewTestUpdate_Options tests that functional options override defaults
func TestNewTestUpdate_Options(t *testing.T) {
	published := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	update := fixtures.NewTestUpdate(
		fixtures.WithGUID("entry-42"),
		fixtures.WithFeed("release-feed", "https://example.com/releases.xml"),
		fixtures.WithSummary("要約です", "ja"),
		fixtures.WithPublishedAt(published),
	)

	if update.GUID != "entry-42" {
		t.Errorf("Expected GUID %q, got %q", "entry-42", update.GUID)
	}
	if update.FeedName != "release-feed" {
		t.Errorf("Expected feed name %q, got %q", "release-feed", update.FeedName)
	}
	if update.Summary != "要約です" || update.Language != "ja" {
		t.Errorf("Expected summary with language, got %q / %q", update.Summary, update.Language)
	}
	if !update.PublishedAt.Equal(published) {
		t.Errorf("Expected published at %v, got %v", published, update.PublishedAt)
	}
}

// TestGenerateUpdates tests ordering and numbering of generated batches
func TestGenerateUpdates(t *testing.T) {
	now := time.Now()
	updates := fixtures.GenerateUpdates("go-blog", 3, now)

	if len(updates) != 3 {
		t.Fatalf("Expected 3 updates, got %d", len(updates))
	}

	// 先頭が最新、以降1時間ずつ古くなる
	if updates[0].GUID != "guid-3" || updates[2].GUID != "guid-1" {
		t.Errorf("Expected guid-3 first and guid-1 last, got %q and %q", updates[0].GUID, updates[2].GUID)
	}
	if !updates[0].PublishedAt.Equal(now) {
		t.Errorf("Expected newest published at %v, got %v", now, updates[0].PublishedAt)
	}
	if got := updates[0].PublishedAt.Sub(updates[1].PublishedAt); got != time.Hour {
		t.Errorf("Expected 1h spacing, got %v", got)
	}

	seen := map[string]bool{}
	for _, u := range updates {
		if u.FeedName != "go-blog" {
			t.Errorf("Expected feed name %q, got %q", "go-blog", u.FeedName)
		}
		if err := u.Validate(); err != nil {
			t.Errorf("Generated update %q should be valid, got %v", u.GUID, err)
		}
		if seen[u.DedupeKey()] {
			t.Errorf("Duplicate dedupe key %q", u.DedupeKey())
		}
		seen[u.DedupeKey()] = true
	}
}

// TestNewTestDraft tests that the default draft passes entity validation
func TestNewTestDraft(t *testing.T) {
	draft := fixtures.NewTestDraft()

	if err := draft.Validate(); err != nil {
		t.Errorf("Default draft should be valid, got %v", err)
	}

	custom := fixtures.NewTestDraft(
		fixtures.WithDraftID(7),
		fixtures.WithDraftChannel("slack"),
		fixtures.WithDraftFailure("timeout"),
	)
	if custom.ID != 7 || custom.Channel != "slack" || custom.FailureKind != "timeout" {
		t.Errorf("Options not applied: ID=%d Channel=%q FailureKind=%q", custom.ID, custom.Channel, custom.FailureKind)
	}
}

// TestNewTestDelivery tests that the default delivery passes entity validation
func TestNewTestDelivery(t *testing.T) {
	d := fixtures.NewTestDelivery()

	if err := d.Validate(); err != nil {
		t.Errorf("Default delivery should be valid, got %v", err)
	}

	then := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	custom := fixtures.NewTestDelivery(
		fixtures.WithDeliveryKey("feed-b:entry-9"),
		fixtures.WithDeliveredAt(then),
	)
	if custom.DedupeKey != "feed-b:entry-9" {
		t.Errorf("Expected dedupe key %q, got %q", "feed-b:entry-9", custom.DedupeKey)
	}
	if !custom.DeliveredAt.Equal(then) {
		t.Errorf("Expected delivered at %v, got %v", then, custom.DeliveredAt)
	}
}
