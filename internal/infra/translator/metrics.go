package translator

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TranslationMetricsRecorder records digest quality and latency. The
// interface keeps Prometheus out of provider tests and lets one recorder
// serve every provider (Claude, OpenAI, NoOp).
type TranslationMetricsRecorder interface {
	// RecordLength records the length of a generated digest in runes.
	RecordLength(length int)

	// RecordLimitExceeded counts digests over the configured character limit.
	RecordLimitExceeded()

	// RecordCompliance records whether the latest digest stayed within the
	// configured character limit.
	RecordCompliance(withinLimit bool)

	// RecordDuration records one translation API round trip.
	RecordDuration(duration time.Duration)
}

// PrometheusTranslationMetrics is the production TranslationMetricsRecorder.
type PrometheusTranslationMetrics struct {
	length     prometheus.Histogram
	exceeded   prometheus.Counter
	compliance prometheus.Gauge
	duration   prometheus.Histogram
}

var (
	sharedMetrics     *PrometheusTranslationMetrics
	sharedMetricsOnce sync.Once
)

// NewPrometheusTranslationMetrics returns the process-wide recorder,
// registering its collectors on first use. Every provider constructs one,
// and tests construct many, so repeat construction must reuse the
// already-registered collectors instead of panicking.
func NewPrometheusTranslationMetrics() *PrometheusTranslationMetrics {
	sharedMetricsOnce.Do(func() {
		sharedMetrics = &PrometheusTranslationMetrics{
			length: getOrCreate(prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    "relay_translation_length_characters",
				Help:    "Distribution of digest lengths in characters (Unicode runes)",
				Buckets: []float64{100, 300, 500, 700, 900, 1100, 1500, 2000},
			})),
			exceeded: getOrCreate(prometheus.NewCounter(prometheus.CounterOpts{
				Name: "relay_translation_limit_exceeded_total",
				Help: "Total number of digests exceeding the configured character limit",
			})),
			compliance: getOrCreate(prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "relay_translation_limit_compliance_ratio",
				Help: "Ratio of digests within character limit (0.0-1.0, target: ≥0.95)",
			})),
			duration: getOrCreate(prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    "relay_translation_duration_seconds",
				Help:    "Time taken to produce a digest via AI API",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
			})),
		}
	})
	return sharedMetrics
}

// getOrCreate registers c, or hands back the collector that already owns
// the name.
func getOrCreate[C prometheus.Collector](c C) C {
	err := prometheus.Register(c)
	if err == nil {
		return c
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		return are.ExistingCollector.(C)
	}
	panic(err)
}

func (p *PrometheusTranslationMetrics) RecordLength(length int) {
	p.length.Observe(float64(length))
}

func (p *PrometheusTranslationMetrics) RecordLimitExceeded() {
	p.exceeded.Inc()
}

func (p *PrometheusTranslationMetrics) RecordCompliance(withinLimit bool) {
	if withinLimit {
		p.compliance.Set(1)
	} else {
		p.compliance.Set(0)
	}
}

func (p *PrometheusTranslationMetrics) RecordDuration(duration time.Duration) {
	p.duration.Observe(duration.Seconds())
}
