package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultSuccess = "success"
	resultFailure = "failure"
)

// Metrics holds Prometheus metrics for authentication operations.
// All record methods are nil-safe so components can run unmetered.
type Metrics struct {
	attemptsTotal   *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	anonymousTotal  prometheus.Counter
	rejectionsTotal prometheus.Counter
	tokensIssued    *prometheus.CounterVec
	tokensRevoked   *prometheus.CounterVec
	registerer      prometheus.Registerer
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

	m.attemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "attempts_total",
			Help:      "Total number of token validation attempts",
		},
		[]string{"validator", "result"},
	)

	m.attemptDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "attempt_duration_seconds",
			Help:      "Token validation duration in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"validator"},
	)

	m.anonymousTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "anonymous_requests_total",
			Help:      "Total number of requests without credentials",
		},
	)

	m.rejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "rejections_total",
			Help:      "Total number of requests rejected in strict mode",
		},
	)

	m.tokensIssued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "tokens_issued_total",
			Help:      "Total number of tokens issued by the login endpoint",
		},
		[]string{"kind"},
	)

	m.tokensRevoked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "tokens_revoked_total",
			Help:      "Total number of tokens revoked",
		},
		[]string{"kind"},
	)

	// Register ignoring duplicates; descriptors are identical when
	// re-registered in tests.
	collectors := []prometheus.Collector{
		m.attemptsTotal,
		m.attemptDuration,
		m.anonymousTotal,
		m.rejectionsTotal,
		m.tokensIssued,
		m.tokensRevoked,
	}
	for _, c := range collectors {
		_ = m.registerer.Register(c)
	}

	return m
}

// Init pre-initializes common label combinations with zero values so
// the series appear in /metrics output immediately after startup.
// Idempotent.
func (m *Metrics) Init() {
	if m == nil {
		return
	}
	for _, validator := range []string{"jwt", "opaque", "introspection"} {
		for _, result := range []string{resultSuccess, resultFailure} {
			m.attemptsTotal.WithLabelValues(validator, result)
		}
		m.attemptDuration.WithLabelValues(validator)
	}
	for _, kind := range []string{"jwt", "opaque"} {
		m.tokensIssued.WithLabelValues(kind)
		m.tokensRevoked.WithLabelValues(kind)
	}
}

// RecordAttempt records one validator attempt.
func (m *Metrics) RecordAttempt(validator, result string, duration time.Duration) {
	if m == nil || m.attemptsTotal == nil {
		return
	}
	m.attemptsTotal.WithLabelValues(validator, result).Inc()
	m.attemptDuration.WithLabelValues(validator).Observe(duration.Seconds())
}

// RecordAnonymous records a request that carried no credentials.
func (m *Metrics) RecordAnonymous() {
	if m == nil || m.anonymousTotal == nil {
		return
	}
	m.anonymousTotal.Inc()
}

// RecordRejection records a strict-mode rejection.
func (m *Metrics) RecordRejection() {
	if m == nil || m.rejectionsTotal == nil {
		return
	}
	m.rejectionsTotal.Inc()
}

// RecordTokenIssued records a token issued by the login endpoint.
func (m *Metrics) RecordTokenIssued(kind string) {
	if m == nil || m.tokensIssued == nil {
		return
	}
	m.tokensIssued.WithLabelValues(kind).Inc()
}

// RecordTokenRevoked records a token revocation.
func (m *Metrics) RecordTokenRevoked(kind string) {
	if m == nil || m.tokensRevoked == nil {
		return
	}
	m.tokensRevoked.WithLabelValues(kind).Inc()
}
