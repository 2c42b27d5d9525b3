package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Delivery pipeline metrics, labeled by feed or channel name from the
// topology so dashboards can break runs down per source.
var (
	// EntriesSeenTotal counts feed entries seen while polling, per feed.
	EntriesSeenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_entries_seen_total",
			Help: "Total number of feed entries seen while polling",
		},
		[]string{"feed"},
	)

	// DeliveriesTotal counts per-channel delivery outcomes.
	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_deliveries_total",
			Help: "Total number of per-channel delivery attempts by outcome",
		},
		[]string{"channel", "status"},
	)

	// FeedPollDuration measures the time to poll and process one feed.
	FeedPollDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_feed_poll_duration_seconds",
			Help:    "Time taken to poll and process a feed",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"feed"},
	)

	// FeedPollErrors counts poll failures by feed and a stable error tag.
	FeedPollErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_feed_poll_errors_total",
			Help: "Total number of feed poll errors",
		},
		[]string{"feed", "error_type"},
	)

	// DraftsParked tracks parked drafts awaiting operator review, per channel.
	DraftsParked = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relay_drafts_parked",
			Help: "Number of parked drafts awaiting operator review",
		},
		[]string{"channel"},
	)
)

// Content fetch metrics cover the optional full-article fetch that fills in
// thin feed entries before translation.
var (
	// ContentFetchAttemptsTotal counts fetch attempts by result
	// (success, failure, skipped).
	ContentFetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_fetch_attempts_total",
			Help: "Total number of content fetch attempts",
		},
		[]string{"result"},
	)

	// ContentFetchDuration measures the time to fetch article content.
	ContentFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "content_fetch_duration_seconds",
			Help:    "Time taken to fetch article content",
			Buckets: []float64{0.1, 0.2, 0.4, 0.8, 1.6, 3.2, 6.4, 12.8},
		},
	)

	// ContentFetchSize measures fetched content size in bytes.
	ContentFetchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "content_fetch_size_bytes",
			Help: "Fetched article content size in bytes",
			Buckets: []float64{
				100, 200, 400, 800, 1600, 3200, 6400, 12800,
				25600, 51200, 102400, 204800, 409600, 819200,
				1638400, 3276800, 6553600, 10485760, // up to 10MB
			},
		},
	)
)

// Ops server metrics, recorded by the handler middleware. The path label
// carries the matched route pattern, not the raw URL.
var (
	// HTTPRequestsTotal counts requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration measures request duration in seconds.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// InFlightRequests tracks requests currently being served.
	InFlightRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "Number of HTTP requests currently being served",
		},
	)
)

// Database metrics cover the delivery ledger and draft store queries plus
// the shared pgx pool.
var (
	// DBQueryDuration measures query duration by operation tag.
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		},
		[]string{"operation"},
	)

	// DBConnectionsActive tracks in-use pool connections.
	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	// DBConnectionsIdle tracks idle pool connections.
	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle database connections",
		},
	)
)

// RecordHTTPRequest records one served request on the count and duration
// series.
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}
