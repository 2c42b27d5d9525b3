package retry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Retry executor metrics. Kind labels use the fault taxonomy's snake_case
// names so dashboards can join these series with the breaker's.
var (
	// attemptsTotal counts failed attempts by classified fault kind,
	// including the final one before an abort or exhaustion.
	attemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of failed operation attempts by fault kind",
		},
		[]string{"kind"},
	)

	// exhaustionsTotal counts operations that used up every attempt.
	exhaustionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_exhaustions_total",
			Help: "Total number of operations that exhausted their retry attempts",
		},
		[]string{"kind"},
	)

	// recoveriesTotal counts operations that succeeded after at least one
	// retry, the executor's reason to exist.
	recoveriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "retry_recoveries_total",
			Help: "Total number of operations that succeeded after retrying",
		},
	)
)
