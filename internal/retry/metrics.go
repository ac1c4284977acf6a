package retry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	retryAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "authgate",
			Subsystem: "retry",
			Name:      "attempts_total",
			Help:      "Total number of retry attempts by operation",
		},
		[]string{"operation"},
	)

	retryExhaustedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "authgate",
			Subsystem: "retry",
			Name:      "exhausted_total",
			Help:      "Total number of operations that failed after the final attempt",
		},
		[]string{"operation"},
	)
)
