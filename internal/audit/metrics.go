package audit

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the audit logger. All record
// methods are nil-safe.
type Metrics struct {
	eventsTotal  *prometheus.CounterVec
	droppedTotal *prometheus.CounterVec
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

	m := &Metrics{
		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "audit",
				Name:      "events_total",
				Help:      "Total number of audit events recorded",
			},
			[]string{"kind", "decision"},
		),
		droppedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "audit",
				Name:      "events_dropped_total",
				Help:      "Total number of audit events dropped because the queue was full",
			},
			[]string{"kind"},
		),
	}

	// Register ignoring duplicates; descriptors are identical when
	// re-registered in tests.
	_ = registerer.Register(m.eventsTotal)
	_ = registerer.Register(m.droppedTotal)

	return m
}

// Init pre-populates the kind labels with zero values so the series
// appear in /metrics output immediately after startup. Idempotent.
func (m *Metrics) Init() {
	if m == nil {
		return
	}
	kinds := []Kind{
		KindAuthentication,
		KindAuthorization,
		KindLogin,
		KindTokenIssue,
		KindTokenRevoke,
		KindConfigReload,
	}
	for _, kind := range kinds {
		for _, decision := range []Decision{DecisionAllow, DecisionDeny} {
			m.eventsTotal.WithLabelValues(string(kind), string(decision))
		}
		m.droppedTotal.WithLabelValues(string(kind))
	}
}

// RecordEvent records one queued audit event.
func (m *Metrics) RecordEvent(kind Kind, decision Decision) {
	if m == nil || m.eventsTotal == nil {
		return
	}
	m.eventsTotal.WithLabelValues(string(kind), string(decision)).Inc()
}

// RecordDropped records one dropped audit event.
func (m *Metrics) RecordDropped(kind Kind) {
	if m == nil || m.droppedTotal == nil {
		return
	}
	m.droppedTotal.WithLabelValues(string(kind)).Inc()
}
