package expr

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for policy evaluation.
type Metrics struct {
	evaluationsTotal   *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
	registerer         prometheus.Registerer
}

// NewMetrics creates a Metrics instance registered with the default
// registerer.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegisterer(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegisterer creates a Metrics instance with a custom
// registerer, for tests.
func NewMetricsWithRegisterer(namespace string, registerer prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "authgate"
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{registerer: registerer}

	m.evaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "policy",
			Name:      "evaluations_total",
			Help:      "Total number of expression policy evaluations",
		},
		[]string{"policy", "result"},
	)

	m.evaluationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "policy",
			Name:      "evaluation_duration_seconds",
			Help:      "Expression policy evaluation duration in seconds",
			Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01},
		},
		[]string{"policy"},
	)

	for _, c := range []prometheus.Collector{m.evaluationsTotal, m.evaluationDuration} {
		_ = m.registerer.Register(c)
	}

	return m
}

// RecordEvaluation records one policy evaluation.
func (m *Metrics) RecordEvaluation(policy, result string, duration time.Duration) {
	if m == nil || m.evaluationsTotal == nil {
		return
	}
	m.evaluationsTotal.WithLabelValues(policy, result).Inc()
	m.evaluationDuration.WithLabelValues(policy).Observe(duration.Seconds())
}
