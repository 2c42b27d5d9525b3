// Package scraper turns remote RSS/Atom feeds into normalized updates.
// It uses the gofeed library to parse feed content.
package scraper

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"catchup-relay/internal/domain/entity"
	"catchup-relay/internal/resilience/fault"

	"github.com/mmcdole/gofeed"
)

// RSSFetcher parses RSS/Atom feeds using the gofeed library. It is a plain
// client: fetch failures come back as classified faults and the delivery
// pipeline decides whether to retry or trip a breaker.
type RSSFetcher struct {
	client    *http.Client
	userAgent string
}

// NewRSSFetcher creates a new RSSFetcher with the given HTTP client.
func NewRSSFetcher(client *http.Client) *RSSFetcher {
	return &RSSFetcher{
		client:    client,
		userAgent: "CatchupRelayBot/1.0",
	}
}

// Fetch retrieves and parses an RSS/Atom feed from the given URL.
// Returns one Update per entry with the body already sanitized to plain text.
func (f *RSSFetcher) Fetch(ctx context.Context, feedName, feedURL string) ([]*entity.Update, error) {
	fp := gofeed.NewParser()
	fp.UserAgent = f.userAgent
	fp.Client = f.client

	feed, err := fp.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, classifyFeedError(feedURL, err)
	}

	now := time.Now()
	updates := make([]*entity.Update, 0, len(feed.Items))
	for _, it := range feed.Items {
		pubAt := now
		if it.PublishedParsed != nil {
			pubAt = *it.PublishedParsed
		} else if it.UpdatedParsed != nil {
			pubAt = *it.UpdatedParsed
		}

		// Content優先、なければDescriptionを使用
		content := it.Content
		if content == "" {
			content = it.Description
		}

		updates = append(updates, &entity.Update{
			GUID:        it.GUID,
			FeedName:    feedName,
			FeedURL:     feedURL,
			Title:       strings.TrimSpace(it.Title),
			Link:        it.Link,
			Content:     Sanitize(content),
			PublishedAt: pubAt,
			FetchedAt:   now,
		})
	}

	return updates, nil
}

// classifyFeedError maps gofeed failures to faults. gofeed surfaces non-2xx
// responses as HTTPError; everything else goes through transport classification.
func classifyFeedError(feedURL string, err error) error {
	var httpErr gofeed.HTTPError
	if errors.As(err, &httpErr) {
		return fault.FromHTTPStatus("feed-fetch", httpErr.StatusCode, "feed fetch failed", 0).
			WithContext("feed_url", feedURL).
			Wrap(err)
	}
	return fault.Classify(err).WithContext("feed_url", feedURL)
}
