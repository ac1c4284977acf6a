package authz

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for authorization decisions.
// All record methods are nil-safe so the engine can run unmetered.
type Metrics struct {
	decisionsTotal   *prometheus.CounterVec
	decisionDuration prometheus.Histogram
	tableSize        prometheus.Gauge
	tableSwapsTotal  prometheus.Counter
	registerer       prometheus.Registerer
}

// NewMetrics creates a Metrics instance registered with the default
// registerer so it is exposed on the /metrics endpoint.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegisterer(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegisterer creates a Metrics instance with a custom
// registerer. Useful in tests where a private registry is preferred.
func NewMetricsWithRegisterer(namespace string, registerer prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "authgate"
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{registerer: registerer}

	m.decisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "authz",
			Name:      "decisions_total",
			Help:      "Total number of authorization decisions by reason",
		},
		[]string{"reason"},
	)

	m.decisionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "authz",
			Name:      "decision_duration_seconds",
			Help:      "Authorization decision duration in seconds",
			Buckets:   []float64{.000001, .000005, .00001, .00005, .0001, .0005, .001, .005},
		},
	)

	m.tableSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "authz",
			Name:      "rule_table_size",
			Help:      "Number of explicit rules in the active table",
		},
	)

	m.tableSwapsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "authz",
			Name:      "rule_table_swaps_total",
			Help:      "Total number of rule table replacements",
		},
	)

	collectors := []prometheus.Collector{
		m.decisionsTotal,
		m.decisionDuration,
		m.tableSize,
		m.tableSwapsTotal,
	}
	for _, c := range collectors {
		_ = m.registerer.Register(c)
	}

	return m
}

// Init pre-initializes the decision reason series with zero values so
// they appear in /metrics output immediately after startup. Idempotent.
func (m *Metrics) Init() {
	if m == nil {
		return
	}
	for _, reason := range []Reason{
		ReasonPublic,
		ReasonAuthenticated,
		ReasonUnauthenticated,
		ReasonForbidden,
		ReasonPolicyDenied,
	} {
		m.decisionsTotal.WithLabelValues(string(reason))
	}
}

// RecordDecision records one authorization decision.
func (m *Metrics) RecordDecision(reason string, duration time.Duration) {
	if m == nil || m.decisionsTotal == nil {
		return
	}
	m.decisionsTotal.WithLabelValues(reason).Inc()
	m.decisionDuration.Observe(duration.Seconds())
}

// SetTableSize records the number of rules in the active table.
func (m *Metrics) SetTableSize(n int) {
	if m == nil || m.tableSize == nil {
		return
	}
	m.tableSize.Set(float64(n))
}

// RecordTableSwap records a rule table replacement.
func (m *Metrics) RecordTableSwap() {
	if m == nil || m.tableSwapsTotal == nil {
		return
	}
	m.tableSwapsTotal.Inc()
}
