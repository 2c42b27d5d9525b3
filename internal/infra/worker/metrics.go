package worker

import (
	"catchup-relay/internal/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WorkerMetrics provides Prometheus metrics for the relay worker process.
// It embeds the standard ConfigMetrics for configuration monitoring and adds
// delivery-job metrics.
//
// Embedded metrics (from ConfigMetrics):
//   - worker_config_load_timestamp: Unix timestamp of last configuration load
//   - worker_config_validation_errors_total: Total validation errors by field
//   - worker_config_fallbacks_total: Total fallback operations by field
//   - worker_config_fallback_active: 1 if any fallback active, 0 otherwise
//
// Worker-specific metrics:
//   - worker_delivery_runs_total: Delivery runs by status (started/success/failure)
//   - worker_delivery_run_duration_seconds: Duration histogram of delivery runs
//   - worker_entries_delivered_total: Entries delivered across all runs
//   - worker_entries_failed_total: Per-channel delivery failures across all runs
//   - worker_retry_queue_depth: Operations waiting in the retry queue
//   - worker_delivery_last_success_timestamp: Unix timestamp of the last successful run
type WorkerMetrics struct {
	// Embedded configuration metrics
	*config.ConfigMetrics

	// DeliveryRunsTotal counts delivery runs by status.
	// Labels: status (started, success, failure)
	DeliveryRunsTotal *prometheus.CounterVec

	// DeliveryRunDurationSeconds measures how long one delivery run takes.
	// Buckets cover the expected range from an empty run to a slow one
	// saturated with webhook rate limiting.
	DeliveryRunDurationSeconds prometheus.Histogram

	// EntriesDeliveredTotal counts successfully published entries.
	EntriesDeliveredTotal prometheus.Counter

	// EntriesFailedTotal counts per-channel delivery failures.
	EntriesFailedTotal prometheus.Counter

	// RetryQueueDepth is the number of deferred publishes awaiting a drain.
	RetryQueueDepth prometheus.Gauge

	// DeliveryLastSuccessTimestamp records the Unix timestamp of the last
	// successful delivery run.
	DeliveryLastSuccessTimestamp prometheus.Gauge
}

// NewWorkerMetrics creates a WorkerMetrics instance with all metrics
// initialized and registered on the default registry.
func NewWorkerMetrics() *WorkerMetrics {
	return &WorkerMetrics{
		ConfigMetrics: config.NewConfigMetrics("worker"),

		DeliveryRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_delivery_runs_total",
			Help: "Total number of delivery runs by status (started/success/failure)",
		}, []string{"status"}),

		DeliveryRunDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "worker_delivery_run_duration_seconds",
			Help:    "Duration of delivery run execution in seconds",
			Buckets: []float64{1, 5, 15, 60, 300, 900}, // 1s, 5s, 15s, 1m, 5m, 15m
		}),

		EntriesDeliveredTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "worker_entries_delivered_total",
			Help: "Total number of entries delivered across all runs",
		}),

		EntriesFailedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "worker_entries_failed_total",
			Help: "Total number of per-channel delivery failures across all runs",
		}),

		RetryQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "worker_retry_queue_depth",
			Help: "Number of deferred publish operations waiting in the retry queue",
		}),

		DeliveryLastSuccessTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "worker_delivery_last_success_timestamp",
			Help: "Unix timestamp of the last successful delivery run",
		}),
	}
}

// MustRegister is a no-op method for API compatibility.
// Metrics are automatically registered via promauto when created in NewWorkerMetrics.
func (m *WorkerMetrics) MustRegister() {
	// No-op: metrics are auto-registered via promauto
}

// RecordRun increments the delivery run counter for the given status.
// Status should be "started", "success" or "failure".
func (m *WorkerMetrics) RecordRun(status string) {
	m.DeliveryRunsTotal.WithLabelValues(status).Inc()
}

// RecordRunDuration observes the duration of one delivery run in seconds.
func (m *WorkerMetrics) RecordRunDuration(seconds float64) {
	m.DeliveryRunDurationSeconds.Observe(seconds)
}

// RecordEntriesDelivered adds the number of entries delivered in one run.
func (m *WorkerMetrics) RecordEntriesDelivered(count int64) {
	m.EntriesDeliveredTotal.Add(float64(count))
}

// RecordEntriesFailed adds the number of per-channel failures in one run.
func (m *WorkerMetrics) RecordEntriesFailed(count int64) {
	m.EntriesFailedTotal.Add(float64(count))
}

// SetRetryQueueDepth updates the retry queue depth gauge. Call it after
// every run and drain so the gauge tracks the live queue.
func (m *WorkerMetrics) SetRetryQueueDepth(depth int) {
	m.RetryQueueDepth.Set(float64(depth))
}

// RecordLastSuccess records the current time as the last successful run.
func (m *WorkerMetrics) RecordLastSuccess() {
	m.DeliveryLastSuccessTimestamp.SetToCurrentTime()
}
