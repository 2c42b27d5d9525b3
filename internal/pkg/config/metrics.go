package config

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ConfigMetrics publishes configuration health for one component.
//
// Each component owns an instance created with NewConfigMetrics; the
// component name becomes the metric prefix, so the worker publishes
// worker_config_load_timestamp, worker_config_fallbacks_total and so on.
// Alerting on {component}_config_fallback_active catches deployments that
// are running on defaults because their environment is broken.
type ConfigMetrics struct {
	loadTimestamp    prometheus.Gauge
	validationErrors *prometheus.CounterVec
	fallbacks        *prometheus.CounterVec
	fallbackActive   prometheus.Gauge
}

// NewConfigMetrics registers the configuration gauges and counters for a
// component on the default registry. Call once per component; promauto
// panics on a duplicate component name.
func NewConfigMetrics(component string) *ConfigMetrics {
	return &ConfigMetrics{
		loadTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_config_load_timestamp", component),
			Help: fmt.Sprintf("Unix timestamp of last %s configuration load", component),
		}),
		validationErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_config_validation_errors_total", component),
			Help: fmt.Sprintf("Total number of %s configuration validation errors", component),
		}, []string{"field"}),
		fallbacks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_config_fallbacks_total", component),
			Help: fmt.Sprintf("Total number of %s configuration fallbacks by field and substitute source", component),
		}, []string{"field", "source"}),
		fallbackActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_config_fallback_active", component),
			Help: fmt.Sprintf("1 if any %s configuration fallback is active, 0 otherwise", component),
		}),
	}
}

// RecordLoadTimestamp marks a completed configuration load or reload.
func (m *ConfigMetrics) RecordLoadTimestamp() {
	m.loadTimestamp.SetToCurrentTime()
}

// RecordValidationError counts a field that failed validation.
func (m *ConfigMetrics) RecordValidationError(field string) {
	m.validationErrors.WithLabelValues(field).Inc()
}

// RecordFallback counts a field that fell back, labeled with where the
// substitute value came from (normally "default").
func (m *ConfigMetrics) RecordFallback(field, source string) {
	m.fallbacks.WithLabelValues(field, source).Inc()
}

// SetFallbackActive publishes whether the currently loaded configuration
// contains any fallback value.
func (m *ConfigMetrics) SetFallbackActive(active bool) {
	if active {
		m.fallbackActive.Set(1)
	} else {
		m.fallbackActive.Set(0)
	}
}
