package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"catchup-relay/internal/config"
	"catchup-relay/internal/domain/entity"
	"catchup-relay/internal/handler/http/respond"
	pgRepo "catchup-relay/internal/infra/adapter/persistence/postgres"
	"catchup-relay/internal/infra/db"
	"catchup-relay/internal/infra/fetcher"
	"catchup-relay/internal/infra/notifier"
	"catchup-relay/internal/infra/scraper"
	"catchup-relay/internal/infra/translator"
	workerPkg "catchup-relay/internal/infra/worker"
	"catchup-relay/internal/observability/logging"
	"catchup-relay/internal/observability/metrics"
	"catchup-relay/internal/repository"
	"catchup-relay/internal/resilience/circuitbreaker"
	"catchup-relay/internal/resilience/recovery"
	relayUC "catchup-relay/internal/usecase/relay"
)

func main() {
	logger := initLogger()
	database := initDatabase(logger)
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	// Create context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load worker configuration (fail-open strategy)
	workerMetrics := workerPkg.NewWorkerMetrics()
	workerMetrics.MustRegister()
	workerConfig, err := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	if err != nil {
		logger.Error("failed to load worker configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker configuration loaded",
		slog.String("poll_schedule", workerConfig.PollSchedule),
		slog.String("drain_schedule", workerConfig.DrainSchedule),
		slog.String("timezone", workerConfig.Timezone),
		slog.Duration("deliver_timeout", workerConfig.DeliverTimeout),
		slog.Int("feed_parallelism", workerConfig.FeedParallelism),
		slog.Int("drain_batch", workerConfig.DrainBatch),
		slog.Duration("dedupe_lookback", workerConfig.Lookback),
		slog.Int("health_port", workerConfig.HealthPort))

	topo := loadTopology(logger)

	// Delivery channels come from the topology; each webhook URL lives in
	// the environment variable the channel names.
	channels := buildChannels(logger, topo)
	if len(channels) == 0 {
		logger.Error("no usable delivery channels, check the webhook environment variables named in the topology")
		os.Exit(1)
	}

	// Breaker registry with per-dependency settings from the topology and
	// Prometheus state metrics.
	breakerMetrics := circuitbreaker.NewPrometheusMetrics()
	breakerDefaults := circuitbreaker.DefaultConfig()
	breakerDefaults.Metrics = breakerMetrics
	breakers := circuitbreaker.NewRegistry(breakerDefaults)
	configureBreakers(breakers, topo)

	recoveryMgr := recovery.NewManager(breakers, recovery.Config{})

	// The draft store sits behind its own breaker so a refusing database
	// does not get hammered by every delivery.
	guard := db.NewBreaker(database)
	draftRepo := pgRepo.NewDraftRepo(guard)
	deliveryRepo := pgRepo.NewDeliveryRepo(guard)

	svc := setupRelayService(logger, topo, workerConfig, channels, draftRepo, deliveryRepo, breakers, recoveryMgr)

	// Ops surface: Prometheus metrics, health snapshots, admin endpoints
	startOpsServer(ctx, logger, &opsServer{
		logger:         logger,
		breakers:       breakers,
		recovery:       recoveryMgr,
		drafts:         draftRepo,
		security:       &topo.Security,
		breakerMetrics: breakerMetrics,
		drainBatch:     workerConfig.DrainBatch,
	})

	// Start health check server
	healthAddr := fmt.Sprintf(":%d", workerConfig.HealthPort)
	healthServer := workerPkg.NewHealthServer(healthAddr, logger)
	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()
	logger.Info("health check server started", slog.String("addr", healthAddr))

	go reportPoolStats(ctx, database)

	if os.Getenv("RELAY_RUN_ONCE") == "true" {
		logger.Info("single run mode, exiting after one delivery pass")
		runDeliveryJob(logger, svc, workerConfig, workerMetrics, recoveryMgr, deliveryRepo, draftRepo)
		return
	}

	startCronWorker(ctx, logger, svc, workerConfig, workerMetrics, healthServer, recoveryMgr, deliveryRepo, draftRepo)
}

// initLogger initializes the process-wide structured logger. Level comes
// from LOG_LEVEL, output from LOG_FORMAT (json unless "text").
func initLogger() *slog.Logger {
	var logger *slog.Logger
	if os.Getenv("LOG_FORMAT") == "text" {
		logger = logging.NewTextLogger()
	} else {
		logger = logging.NewLogger()
	}
	slog.SetDefault(logger)
	return logger
}

// initDatabase opens the connection pool named by DATABASE_URL and applies
// the relay schema. The delivery ledger is what keeps reposts out, so the
// worker refuses to start without it.
func initDatabase(logger *slog.Logger) *sql.DB {
	database, err := db.Open(os.Getenv("DATABASE_URL"))
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	if err := db.MigrateUp(database); err != nil {
		logger.Error("failed to apply database migrations", slog.Any("error", err))
		os.Exit(1)
	}
	return database
}

// loadTopology reads the relay topology from the path in RELAY_TOPOLOGY,
// defaulting to config/relay.yaml.
func loadTopology(logger *slog.Logger) *config.Topology {
	path := os.Getenv("RELAY_TOPOLOGY")
	if path == "" {
		path = "config/relay.yaml"
	}
	topo, err := config.LoadTopology(path)
	if err != nil {
		logger.Error("failed to load relay topology", slog.String("path", path), slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("relay topology loaded",
		slog.String("path", path),
		slog.Int("feeds", len(topo.Feeds)),
		slog.Int("channels", len(topo.EnabledChannels())),
		slog.Int("policies", len(topo.Policies)))
	return topo
}

// setupRelayService creates the delivery pipeline with all dependencies.
func setupRelayService(
	logger *slog.Logger,
	topo *config.Topology,
	workerConfig *workerPkg.WorkerConfig,
	channels []relayUC.Channel,
	drafts repository.DraftRepository,
	deliveries repository.DeliveryRepository,
	breakers *circuitbreaker.Registry,
	recoveryMgr *recovery.Manager,
) *relayUC.Service {
	httpClient := createHTTPClient()
	feedFetcher := scraper.NewRSSFetcher(httpClient)

	contentFetcher := buildContentFetcher(logger)
	primary, fallback := buildTranslators(logger)

	feeds := make([]relayUC.Feed, 0, len(topo.Feeds))
	for _, f := range topo.Feeds {
		feeds = append(feeds, relayUC.Feed{Name: f.Name, URL: f.URL})
	}

	relayConfig := relayUC.Config{
		FeedParallelism: workerConfig.FeedParallelism,
		Lookback:        workerConfig.Lookback,
	}
	// 明示的なポリシーがある時だけフェッチの既定リトライを上書きする
	if _, ok := topo.Policies["feed-fetch"]; ok {
		relayConfig.FetchRetry = topo.RetryConfigFor("feed-fetch")
	}

	return relayUC.NewService(
		feeds,
		channels,
		feedFetcher,
		contentFetcher,
		primary,
		fallback,
		drafts,
		deliveries,
		breakers,
		recoveryMgr,
		relayConfig,
	)
}

// buildChannels creates a notifier per enabled channel in the topology.
// Channels with a missing or malformed webhook URL are skipped, never
// replaced with a no-op: recording a delivery that never happened would
// poison the dedupe ledger.
func buildChannels(logger *slog.Logger, topo *config.Topology) []relayUC.Channel {
	enabled := topo.EnabledChannels()
	channels := make([]relayUC.Channel, 0, len(enabled))

	for _, ch := range enabled {
		webhookURL := os.Getenv(ch.WebhookEnv)
		if !validWebhookURL(logger, ch, webhookURL) {
			continue
		}

		var n relayUC.Notifier
		switch ch.Type {
		case config.ChannelDiscord:
			n = notifier.NewDiscordNotifier(notifier.DiscordConfig{
				WebhookURL: webhookURL,
				Timeout:    30 * time.Second,
			})
		case config.ChannelSlack:
			n = notifier.NewSlackNotifier(notifier.SlackConfig{
				WebhookURL: webhookURL,
				Timeout:    30 * time.Second,
			})
		default:
			// LoadTopology rejects unknown types before we get here
			continue
		}

		channels = append(channels, relayUC.Channel{
			Name:     ch.Name,
			Language: ch.Language,
			Notifier: n,
		})
		logger.Info("channel initialized",
			slog.String("channel", ch.Name),
			slog.String("type", ch.Type),
			slog.String("language", ch.Language))
	}

	return channels
}

// validWebhookURL checks a channel's webhook URL: the shared webhook rules
// (https only, no private-network hosts) plus the provider's expected host
// and webhook path.
func validWebhookURL(logger *slog.Logger, ch config.ChannelConfig, webhookURL string) bool {
	if webhookURL == "" {
		logger.Warn("channel skipped, webhook env not set",
			slog.String("channel", ch.Name),
			slog.String("env", ch.WebhookEnv))
		return false
	}

	if err := entity.ValidateWebhookURL(webhookURL); err != nil {
		logger.Warn("channel skipped, invalid webhook URL",
			slog.String("channel", ch.Name),
			slog.Any("error", err))
		return false
	}

	// ValidateWebhookURL has already parsed it once
	u, _ := url.Parse(webhookURL)

	var host, pathPrefix string
	switch ch.Type {
	case config.ChannelDiscord:
		host, pathPrefix = "discord.com", "/api/webhooks/"
	case config.ChannelSlack:
		host, pathPrefix = "hooks.slack.com", "/services/"
	default:
		return false
	}

	if u.Host != host {
		logger.Warn("channel skipped, unexpected webhook host",
			slog.String("channel", ch.Name),
			slog.String("host", u.Host))
		return false
	}
	if !strings.HasPrefix(u.Path, pathPrefix) {
		logger.Warn("channel skipped, unexpected webhook path",
			slog.String("channel", ch.Name),
			slog.String("path", u.Path))
		return false
	}

	return true
}

// buildTranslators selects the translation providers from the available API
// keys: Claude primary, OpenAI fallback. Translation is an enhancement, so
// with no keys the relay delivers untranslated text instead of refusing to
// start.
func buildTranslators(logger *slog.Logger) (relayUC.Translator, relayUC.Translator) {
	var available []relayUC.Translator

	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		available = append(available, translator.NewClaude(key))
		logger.Info("translator initialized", slog.String("provider", "anthropic"))
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		available = append(available, translator.NewOpenAI(key))
		logger.Info("translator initialized", slog.String("provider", "openai"))
	}

	switch len(available) {
	case 0:
		logger.Warn("no translator API keys configured, delivering untranslated text")
		return nil, nil
	case 1:
		return available[0], nil
	default:
		return available[0], available[1]
	}
}

// buildContentFetcher creates the full-content fetcher, or nil when content
// enhancement is disabled. Configuration errors are fatal here: fetcher
// limits are SSRF protections and must not fall back silently.
func buildContentFetcher(logger *slog.Logger) relayUC.ContentFetcher {
	cfg, err := fetcher.LoadConfigFromEnv()
	if err != nil {
		logger.Error("invalid content fetch configuration", slog.Any("error", err))
		os.Exit(1)
	}
	if !cfg.Enabled {
		logger.Info("content fetching disabled")
		return nil
	}
	logger.Info("content fetching enabled",
		slog.Int("threshold", cfg.Threshold),
		slog.Duration("timeout", cfg.Timeout),
		slog.Bool("deny_private_ips", cfg.DenyPrivateIPs))
	return fetcher.NewReadabilityFetcher(cfg)
}

// configureBreakers seeds the registry from the topology's policy map before
// first use. Per-feed breakers take an exact key ("feed-fetch:Go Blog") when
// one exists, otherwise the stage-wide key ("feed-fetch").
func configureBreakers(breakers *circuitbreaker.Registry, topo *config.Topology) {
	stageConfig := func(stage, feedName string) {
		name := stage + ":" + feedName
		if _, ok := topo.Policies[name]; ok {
			breakers.Configure(name, topo.BreakerConfigFor(name))
			return
		}
		if _, ok := topo.Policies[stage]; ok {
			breakers.Configure(name, topo.BreakerConfigFor(stage))
		}
	}

	for _, feed := range topo.Feeds {
		stageConfig("feed-fetch", feed.Name)
		stageConfig("content-fetch", feed.Name)
	}

	// Service-level policies (translators, notifiers) use the policy key as
	// the breaker name directly.
	for name := range topo.Policies {
		if name == "feed-fetch" || name == "content-fetch" || strings.Contains(name, ":") {
			continue
		}
		breakers.Configure(name, topo.BreakerConfigFor(name))
	}
}

// createHTTPClient creates an HTTP client with timeouts and connection pooling.
// TLS 1.2+ is enforced for security.
func createHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12, // Enforce TLS 1.2+
			},
		},
	}
}

// startCronWorker starts the cron scheduler with the poll and drain jobs and
// blocks until the shutdown signal arrives.
func startCronWorker(
	ctx context.Context,
	logger *slog.Logger,
	svc *relayUC.Service,
	cfg *workerPkg.WorkerConfig,
	workerMetrics *workerPkg.WorkerMetrics,
	healthServer *workerPkg.HealthServer,
	recoveryMgr *recovery.Manager,
	deliveries repository.DeliveryRepository,
	drafts repository.DraftRepository,
) {
	// Load timezone
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("invalid timezone, using UTC", slog.String("timezone", cfg.Timezone), slog.Any("error", err))
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc))

	_, err = c.AddFunc(cfg.PollSchedule, func() {
		runDeliveryJob(logger, svc, cfg, workerMetrics, recoveryMgr, deliveries, drafts)
	})
	if err != nil {
		logger.Error("failed to add delivery job", slog.String("schedule", cfg.PollSchedule), slog.Any("error", err))
		os.Exit(1)
	}

	_, err = c.AddFunc(cfg.DrainSchedule, func() {
		runDrainJob(logger, cfg, workerMetrics, recoveryMgr)
	})
	if err != nil {
		logger.Error("failed to add drain job", slog.String("schedule", cfg.DrainSchedule), slog.Any("error", err))
		os.Exit(1)
	}

	c.Start()

	// Mark as ready after cron is set up
	healthServer.SetReady(true)
	logger.Info("worker marked as ready")

	logger.Info("worker started",
		slog.String("poll_schedule", cfg.PollSchedule),
		slog.String("drain_schedule", cfg.DrainSchedule),
		slog.String("timezone", loc.String()))

	<-ctx.Done()

	logger.Info("shutdown signal received")
	healthServer.SetReady(false)

	// Wait for running jobs, but not past the delivery timeout
	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(cfg.DeliverTimeout):
		logger.Warn("timed out waiting for running jobs")
	}
	logger.Info("worker stopped")
}

// runDeliveryJob executes a single delivery pass with timeout and error
// handling, then runs housekeeping.
func runDeliveryJob(
	logger *slog.Logger,
	svc *relayUC.Service,
	cfg *workerPkg.WorkerConfig,
	workerMetrics *workerPkg.WorkerMetrics,
	recoveryMgr *recovery.Manager,
	deliveries repository.DeliveryRepository,
	drafts repository.DraftRepository,
) {
	startTime := time.Now()
	workerMetrics.RecordRun("started")
	logger.Info("delivery run started")

	// 配信処理のタイムアウト（設定から取得）
	ctx, cancel := context.WithTimeout(context.Background(), cfg.DeliverTimeout)
	defer cancel()

	stats, err := svc.CollectAndDeliver(ctx)
	if err != nil {
		// 機密情報をマスクしてログ出力
		logger.Error("delivery run failed", slog.Any("error", respond.SanitizeError(err)))
		workerMetrics.RecordRun("failure")
		workerMetrics.RecordRunDuration(time.Since(startTime).Seconds())
		return
	}

	// Record metrics
	workerMetrics.RecordRun("success")
	workerMetrics.RecordRunDuration(time.Since(startTime).Seconds())
	workerMetrics.RecordEntriesDelivered(stats.Delivered)
	workerMetrics.RecordEntriesFailed(stats.Failed)
	workerMetrics.SetRetryQueueDepth(len(recoveryMgr.Queued()))
	workerMetrics.RecordLastSuccess()

	housekeep(logger, cfg, deliveries, drafts)
}

// runDrainJob replays publishes parked on the retry queue. Stays quiet when
// the queue is empty.
func runDrainJob(
	logger *slog.Logger,
	cfg *workerPkg.WorkerConfig,
	workerMetrics *workerPkg.WorkerMetrics,
	recoveryMgr *recovery.Manager,
) {
	if len(recoveryMgr.Queued()) == 0 {
		workerMetrics.SetRetryQueueDepth(0)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DeliverTimeout)
	defer cancel()

	result := recoveryMgr.RetryQueued(ctx, cfg.DrainBatch)
	workerMetrics.SetRetryQueueDepth(result.Remaining)

	logger.Info("retry queue drained",
		slog.Int("processed", result.Processed),
		slog.Int("successful", result.Successful),
		slog.Int("failed", result.Failed),
		slog.Int("remaining", result.Remaining))
}

// housekeep prunes delivery records past the retention window and refreshes
// the parked-draft gauges. It runs after each delivery pass with its own
// deadline so a run that ate the whole timeout cannot starve it.
func housekeep(
	logger *slog.Logger,
	cfg *workerPkg.WorkerConfig,
	deliveries repository.DeliveryRepository,
	drafts repository.DraftRepository,
) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pruned, err := deliveries.Prune(ctx, time.Now().Add(-cfg.Retention))
	if err != nil {
		logger.Warn("failed to prune delivery records", slog.Any("error", respond.SanitizeError(err)))
	} else if pruned > 0 {
		logger.Info("pruned delivery records",
			slog.Int64("pruned", pruned),
			slog.Duration("retention", cfg.Retention))
	}

	counts, err := drafts.CountByChannel(ctx)
	if err != nil {
		logger.Warn("failed to count parked drafts", slog.Any("error", respond.SanitizeError(err)))
		return
	}
	for channel, count := range counts {
		metrics.UpdateDraftsParked(channel, count)
	}
}

// reportPoolStats periodically exports connection pool gauges.
func reportPoolStats(ctx context.Context, database *sql.DB) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := database.Stats()
			metrics.UpdateDBConnectionStats(s.InUse, s.Idle)
		}
	}
}
