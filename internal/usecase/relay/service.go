// Package relay implements the delivery pipeline: poll configured feeds,
// enhance and translate new entries, and publish them to each channel.
// The infra clients it drives are plain clients; retries, circuit breaking,
// and failure recovery are applied here, at the pipeline level.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"catchup-relay/internal/domain/entity"
	"catchup-relay/internal/infra/scraper"
	"catchup-relay/internal/observability/metrics"
	"catchup-relay/internal/observability/tracing"
	"catchup-relay/internal/repository"
	"catchup-relay/internal/resilience/circuitbreaker"
	"catchup-relay/internal/resilience/fault"
	"catchup-relay/internal/resilience/recovery"
	"catchup-relay/internal/resilience/retry"
	"catchup-relay/internal/utils/text"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// FeedFetcher is an interface for fetching RSS/Atom feeds from a URL.
type FeedFetcher interface {
	Fetch(ctx context.Context, feedName, feedURL string) ([]*entity.Update, error)
}

// ContentFetcher fetches full article text when a feed entry is a stub.
type ContentFetcher interface {
	// ShouldFetch reports whether the feed-provided body is thin enough to
	// warrant fetching the full article.
	ShouldFetch(content string) bool
	FetchContent(ctx context.Context, url string) (string, error)
}

// Translator renders a digest of text in the target language.
type Translator interface {
	Translate(ctx context.Context, text, language string) (string, error)
	Name() string
}

// Notifier publishes one update to a delivery channel.
type Notifier interface {
	Publish(ctx context.Context, update *entity.Update) error
	Name() string
}

// Feed identifies one polled source.
type Feed struct {
	Name string
	URL  string
}

// Channel couples a configured delivery target with its publisher.
// Language selects the digest language for this channel.
type Channel struct {
	Name     string
	Language string
	Notifier Notifier
}

// Config holds the pipeline's tunables.
type Config struct {
	// FeedParallelism is how many feeds are polled concurrently.
	FeedParallelism int

	// Lookback is the dedupe window: entries published before it are
	// ignored, and deliveries within it block a repost.
	Lookback time.Duration

	// FetchRetry configures in-line retries of the feed fetch. Defaults to
	// retry.NetworkConfig.
	FetchRetry retry.Config
}

const (
	defaultFeedParallelism = 4
	defaultLookback        = 72 * time.Hour
)

// Service orchestrates the delivery pipeline. It owns the resilience
// decisions for every stage: feed fetches retry in-line behind per-feed
// breakers, translation falls over from the primary provider to the
// fallback, and publish failures go to the recovery orchestrator, which may
// retry, queue the publish for a later drain, or park the update as a draft.
type Service struct {
	Feeds              []Feed
	Channels           []Channel
	FeedFetcher        FeedFetcher
	ContentFetcher     ContentFetcher // nil disables content enhancement
	Translator         Translator     // nil disables translation
	FallbackTranslator Translator     // nil disables provider failover
	Drafts             repository.DraftRepository
	Deliveries         repository.DeliveryRepository
	Breakers           *circuitbreaker.Registry
	Recovery           *recovery.Manager
	config             Config
}

// NewService creates a delivery pipeline with the provided dependencies.
// ContentFetcher, Translator, and FallbackTranslator may be nil to disable
// the corresponding stage. Zero config fields fall back to defaults.
func NewService(
	feeds []Feed,
	channels []Channel,
	feedFetcher FeedFetcher,
	contentFetcher ContentFetcher,
	translator Translator,
	fallbackTranslator Translator,
	drafts repository.DraftRepository,
	deliveries repository.DeliveryRepository,
	breakers *circuitbreaker.Registry,
	recoveryMgr *recovery.Manager,
	cfg Config,
) *Service {
	if cfg.FeedParallelism <= 0 {
		cfg.FeedParallelism = defaultFeedParallelism
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = defaultLookback
	}
	if cfg.FetchRetry.MaxAttempts == 0 {
		cfg.FetchRetry = retry.NetworkConfig()
	}

	return &Service{
		Feeds:              feeds,
		Channels:           channels,
		FeedFetcher:        feedFetcher,
		ContentFetcher:     contentFetcher,
		Translator:         translator,
		FallbackTranslator: fallbackTranslator,
		Drafts:             drafts,
		Deliveries:         deliveries,
		Breakers:           breakers,
		Recovery:           recoveryMgr,
		config:             cfg,
	}
}

// DeliveryStatus is the outcome of one per-channel delivery attempt.
type DeliveryStatus string

const (
	// StatusDelivered means the update was published to the channel.
	StatusDelivered DeliveryStatus = "delivered"
	// StatusQueued means the publish was deferred to the retry queue.
	StatusQueued DeliveryStatus = "queued"
	// StatusFailed means the publish failed; the update may have been
	// parked as a draft (DraftID is set when it was).
	StatusFailed DeliveryStatus = "failed"
	// StatusSkipped means the delivery was deliberately not attempted.
	StatusSkipped DeliveryStatus = "skipped"
)

// DeliveryResult records the outcome of delivering one update to one channel.
type DeliveryResult struct {
	Feed      string
	Channel   string
	DedupeKey string
	Title     string
	Status    DeliveryStatus
	// Kind is the classified kind of the final failure. Unset on delivered.
	Kind fault.Kind
	// DraftID is the parked draft's id when the update fell back to the
	// draft store.
	DraftID int64
}

// Stats contains statistics about one delivery run. Skipped counts dedupe
// hits as well as deliveries a recovery plan deliberately skipped.
type Stats struct {
	Feeds     int
	Entries   int64
	Delivered int64
	Queued    int64
	Failed    int64
	Skipped   int64
	Duration  time.Duration
	Results   []DeliveryResult
}

// resultSink collects per-channel delivery results across feed goroutines.
type resultSink struct {
	mu      sync.Mutex
	results []DeliveryResult
}

func (rs *resultSink) add(r DeliveryResult) {
	rs.mu.Lock()
	rs.results = append(rs.results, r)
	rs.mu.Unlock()
}

// CollectAndDeliver runs one delivery pass over all configured feeds.
// It performs the following steps:
//  1. Loads the recently delivered keys per channel (the dedupe window)
//  2. Polls feeds concurrently, bounded by FeedParallelism
//  3. For each new entry: enhances stub content, translates per channel
//     language, and publishes to each channel that has not seen it
//
// One entry's failure never aborts its siblings; per-channel outcomes are
// collected in Stats.Results. The returned error is non-nil only when the
// run could not start (dedupe lookup failed) or the context was canceled.
func (s *Service) CollectAndDeliver(ctx context.Context) (*Stats, error) {
	logger := slog.Default()
	startAll := time.Now()
	stats := &Stats{Feeds: len(s.Feeds)}
	sink := &resultSink{}

	ctx, span := tracing.GetTracer().Start(ctx, "relay.deliver")
	defer span.End()

	// 重複排除の照会に失敗したまま配信すると重複投稿になるため中断する
	recent, err := s.loadRecentKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("load recent delivery keys: %w", err)
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.config.FeedParallelism)
	for _, feed := range s.Feeds {
		feed := feed
		eg.Go(func() error {
			return s.processFeed(egCtx, feed, recent, stats, sink)
		})
	}
	waitErr := eg.Wait()

	stats.Duration = time.Since(startAll)
	stats.Results = sink.results
	span.SetAttributes(
		attribute.Int("relay.feeds", stats.Feeds),
		attribute.Int64("relay.entries", stats.Entries),
		attribute.Int64("relay.delivered", stats.Delivered),
		attribute.Int64("relay.queued", stats.Queued),
		attribute.Int64("relay.failed", stats.Failed),
	)

	if waitErr != nil {
		return stats, fmt.Errorf("delivery run aborted: %w", waitErr)
	}

	logger.Info("delivery run completed",
		slog.Int("feeds", stats.Feeds),
		slog.Int64("entries", stats.Entries),
		slog.Int64("delivered", stats.Delivered),
		slog.Int64("queued", stats.Queued),
		slog.Int64("failed", stats.Failed),
		slog.Int64("skipped", stats.Skipped),
		slog.Duration("duration", stats.Duration),
	)

	return stats, nil
}

// loadRecentKeys returns the dedupe keys delivered to each channel within
// the lookback window, keyed by channel name.
func (s *Service) loadRecentKeys(ctx context.Context) (map[string]map[string]bool, error) {
	since := time.Now().Add(-s.config.Lookback)
	recent := make(map[string]map[string]bool, len(s.Channels))
	for _, ch := range s.Channels {
		keys, err := s.Deliveries.RecentKeys(ctx, ch.Name, since)
		if err != nil {
			return nil, fmt.Errorf("recent keys for channel %s: %w", ch.Name, err)
		}
		recent[ch.Name] = keys
	}
	return recent, nil
}

// processFeed polls one feed and delivers its new entries. Fetch failures
// are logged and skipped so other feeds continue; only context cancellation
// propagates.
func (s *Service) processFeed(
	ctx context.Context,
	feed Feed,
	recent map[string]map[string]bool,
	stats *Stats,
	sink *resultSink,
) error {
	logger := slog.Default()
	start := time.Now()

	ctx, span := tracing.GetTracer().Start(ctx, "relay.feed")
	defer span.End()
	span.SetAttributes(attribute.String("feed.name", feed.Name))

	updates, err := s.fetchFeed(ctx, feed)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("failed to fetch feed",
			slog.String("feed", feed.Name),
			slog.String("feed_url", feed.URL),
			slog.Any("error", err))
		metrics.RecordFeedPollError(feed.Name, "fetch_failed")
		// Continue with other feeds even if one fails
		return nil
	}

	if len(updates) == 0 {
		logger.Info("feed is empty",
			slog.String("feed", feed.Name),
			slog.String("feed_url", feed.URL))
		return nil
	}

	cutoff := time.Now().Add(-s.config.Lookback)
	beforeDelivered := atomic.LoadInt64(&stats.Delivered)

	// フィードは新しい順に並ぶことが多いので、古い順に配信する
	for i := len(updates) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.processEntry(ctx, feed, updates[i], cutoff, recent, stats, sink)
	}

	duration := time.Since(start)
	metrics.RecordFeedPoll(feed.Name, duration, int64(len(updates)))

	logger.Info("feed poll completed",
		slog.String("feed", feed.Name),
		slog.Int("entries", len(updates)),
		slog.Int64("delivered", atomic.LoadInt64(&stats.Delivered)-beforeDelivered),
		slog.Duration("duration", duration),
	)

	return nil
}

// fetchFeed fetches one feed through its breaker with in-line retries.
// An open breaker rejects with a non-retryable error, so a dead feed is
// skipped quickly instead of being hammered.
func (s *Service) fetchFeed(ctx context.Context, feed Feed) ([]*entity.Update, error) {
	name := "feed-fetch:" + feed.Name

	var updates []*entity.Update
	err := retry.WithBackoff(ctx, s.config.FetchRetry, func() error {
		out, err := s.Breakers.Do(ctx, name, func(ctx context.Context) (any, error) {
			return s.FeedFetcher.Fetch(ctx, feed.Name, feed.URL)
		})
		if err != nil {
			return err
		}
		updates, _ = out.([]*entity.Update)
		return nil
	})
	return updates, err
}

// processEntry delivers one entry to every channel that has not seen it.
// Entries published before the lookback window are ignored.
func (s *Service) processEntry(
	ctx context.Context,
	feed Feed,
	update *entity.Update,
	cutoff time.Time,
	recent map[string]map[string]bool,
	stats *Stats,
	sink *resultSink,
) {
	atomic.AddInt64(&stats.Entries, 1)

	if update.PublishedAt.Before(cutoff) {
		return
	}

	key := update.DedupeKey()
	need := make([]Channel, 0, len(s.Channels))
	for _, ch := range s.Channels {
		// 既に配信済みのチャンネルはスキップ
		if recent[ch.Name][key] {
			atomic.AddInt64(&stats.Skipped, 1)
			continue
		}
		need = append(need, ch)
	}
	if len(need) == 0 {
		return
	}

	if err := update.Validate(); err != nil {
		slog.Warn("skipping malformed entry",
			slog.String("feed", feed.Name),
			slog.String("link", update.Link),
			slog.Any("error", err))
		atomic.AddInt64(&stats.Skipped, int64(len(need)))
		return
	}

	update.Content = s.enhanceContent(ctx, feed, update)

	// 同じ言語のチャンネルが複数あっても翻訳は言語ごとに1回で済ませる
	summaries := make(map[string]string, len(need))
	for _, ch := range need {
		if _, ok := summaries[ch.Language]; !ok {
			summaries[ch.Language] = s.translate(ctx, update, ch.Language)
		}
	}

	for _, ch := range need {
		r := s.deliverTo(ctx, feed, ch, update, summaries[ch.Language])
		s.tally(stats, sink, r)
	}
}

// tally records one delivery outcome into the run's stats and results.
func (s *Service) tally(stats *Stats, sink *resultSink, r DeliveryResult) {
	sink.add(r)
	metrics.RecordDelivery(r.Channel, string(r.Status))

	switch r.Status {
	case StatusDelivered:
		atomic.AddInt64(&stats.Delivered, 1)
	case StatusQueued:
		atomic.AddInt64(&stats.Queued, 1)
	case StatusFailed:
		atomic.AddInt64(&stats.Failed, 1)
	case StatusSkipped:
		atomic.AddInt64(&stats.Skipped, 1)
	}
}

// enhanceContent fetches the full article when the feed body is a stub.
// It never fails the entry: any fetch problem falls back to the feed body.
func (s *Service) enhanceContent(ctx context.Context, feed Feed, update *entity.Update) string {
	logger := slog.Default()

	if s.ContentFetcher == nil {
		// Feature disabled, use the feed body
		return update.Content
	}

	if !s.ContentFetcher.ShouldFetch(update.Content) {
		metrics.RecordContentFetchSkipped()
		return update.Content
	}

	name := "content-fetch:" + feed.Name
	fetchStart := time.Now()
	out, err := s.Breakers.Do(ctx, name, func(ctx context.Context) (any, error) {
		return s.ContentFetcher.FetchContent(ctx, update.Link)
	})
	fetchDuration := time.Since(fetchStart)

	if err != nil {
		logger.Warn("content fetch failed, using feed body",
			slog.String("url", update.Link),
			slog.Any("error", err),
			slog.Duration("fetch_duration", fetchDuration))
		metrics.RecordContentFetchFailed(fetchDuration)
		return update.Content
	}

	fetched, _ := out.(string)
	metrics.RecordContentFetchSuccess(fetchDuration, len(fetched))

	// 抽出結果がHTMLのことがあるのでプレーンテキストに揃える
	body := scraper.Sanitize(fetched)
	if text.CountRunes(body) > text.CountRunes(update.Content) {
		return body
	}

	logger.Debug("fetched content shorter than feed body, keeping feed body",
		slog.String("url", update.Link))
	return update.Content
}

// translate renders the digest for one language. Best effort: the primary
// provider is tried first, then the fallback, each through its own breaker.
// On total failure it returns "" and the channel falls back to the
// sanitized body.
func (s *Service) translate(ctx context.Context, update *entity.Update, language string) string {
	for _, tr := range []Translator{s.Translator, s.FallbackTranslator} {
		if tr == nil {
			continue
		}

		name := "translator-" + tr.Name()
		out, err := s.Breakers.Do(ctx, name, func(ctx context.Context) (any, error) {
			return tr.Translate(ctx, update.Content, language)
		})
		if err == nil {
			summary, _ := out.(string)
			return summary
		}

		slog.Warn("translation provider failed",
			slog.String("provider", tr.Name()),
			slog.String("language", language),
			slog.String("link", update.Link),
			slog.Any("error", err))
	}

	if s.Translator != nil || s.FallbackTranslator != nil {
		slog.Warn("translation failed, delivering original body",
			slog.String("language", language),
			slog.String("link", update.Link))
	}
	return ""
}

// deliverTo publishes one update to one channel. The publish runs through
// the channel's breaker; failures go to the recovery orchestrator, whose
// plan may retry, queue the publish for a later drain, or park the update
// as a draft.
func (s *Service) deliverTo(ctx context.Context, feed Feed, ch Channel, update *entity.Update, summary string) DeliveryResult {
	msg := *update
	msg.Language = ch.Language
	msg.Summary = summary

	result := DeliveryResult{
		Feed:      feed.Name,
		Channel:   ch.Name,
		DedupeKey: msg.DedupeKey(),
		Title:     msg.Title,
	}

	breakerName := "notifier-" + ch.Notifier.Name()
	op := func(ctx context.Context) (any, error) {
		if _, err := s.Breakers.Do(ctx, breakerName, func(ctx context.Context) (any, error) {
			return nil, ch.Notifier.Publish(ctx, &msg)
		}); err != nil {
			return nil, err
		}
		s.recordDelivery(ctx, feed, ch, &msg)
		return nil, nil
	}

	_, err := op(ctx)
	if err == nil {
		result.Status = StatusDelivered
		return result
	}

	// 開いたブレーカーは即座に棄却する。次回の実行に任せる
	var openErr *circuitbreaker.OpenError
	if errors.As(err, &openErr) {
		slog.Warn("channel breaker open, deferring delivery",
			slog.String("channel", ch.Name),
			slog.String("link", msg.Link),
			slog.Duration("retry_after", openErr.RetryAfter))
		result.Status = StatusFailed
		result.Kind = fault.KindServiceUnavailable
		return result
	}

	res := s.Recovery.Recover(ctx, recovery.Failure{
		Cause: err,
		Context: recovery.Context{
			Operation: "publish",
			Service:   breakerName,
			Fields: map[string]any{
				"channel": ch.Name,
				"feed":    feed.Name,
				"link":    msg.Link,
			},
		},
		Operation: op,
		Fallback:  s.parkDraft(ch, &msg),
	})

	result.Kind = res.Kind
	switch {
	case res.Success && res.Action == recovery.ActionUseFallback:
		if id, ok := res.Result.(int64); ok {
			result.DraftID = id
		}
		result.Status = StatusFailed
	case res.Success && res.Action == recovery.ActionSkipOperation:
		result.Status = StatusSkipped
	case res.Success:
		// リトライで配信済み。記録はopの中で済んでいる
		result.Status = StatusDelivered
	case res.Queued:
		result.Status = StatusQueued
	default:
		result.Status = StatusFailed
	}
	return result
}

// recordDelivery stores the delivery record. The webhook has already fired,
// so this runs even when the caller is shutting down: losing the record
// means a duplicate post next run.
func (s *Service) recordDelivery(ctx context.Context, feed Feed, ch Channel, msg *entity.Update) {
	rec := &entity.Delivery{
		DedupeKey:   msg.DedupeKey(),
		Channel:     ch.Name,
		FeedName:    feed.Name,
		Title:       msg.Title,
		Link:        msg.Link,
		DeliveredAt: time.Now(),
	}

	err := s.Deliveries.Record(context.WithoutCancel(ctx), rec)
	switch {
	case err == nil:
	case errors.Is(err, entity.ErrDuplicate):
		slog.Debug("delivery already recorded",
			slog.String("channel", ch.Name),
			slog.String("dedupe_key", rec.DedupeKey))
	default:
		slog.Warn("failed to record delivery; entry may repost next run",
			slog.String("channel", ch.Name),
			slog.String("dedupe_key", rec.DedupeKey),
			slog.Any("error", err))
	}
}

// parkDraft returns the fallback that parks the undeliverable update in the
// draft store for operator review. The returned draft id becomes the
// recovery result.
func (s *Service) parkDraft(ch Channel, msg *entity.Update) recovery.Fallback {
	return func(ctx context.Context, cause error) (any, error) {
		body := msg.Summary
		if body == "" {
			body = msg.Content
		}

		draft := &entity.Draft{
			GUID:        msg.DedupeKey(),
			Channel:     ch.Name,
			Title:       msg.Title,
			Link:        msg.Link,
			Body:        body,
			FailureKind: fault.KindOf(cause).String(),
			CreatedAt:   time.Now(),
		}

		id, err := s.Drafts.Save(context.WithoutCancel(ctx), draft)
		if err != nil {
			return nil, fmt.Errorf("park draft: %w", err)
		}

		slog.Info("undeliverable update parked as draft",
			slog.Int64("draft_id", id),
			slog.String("channel", ch.Name),
			slog.String("link", msg.Link))
		return id, nil
	}
}
