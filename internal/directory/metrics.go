package directory

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Lookup result labels.
const (
	resultFound    = "found"
	resultNotFound = "not_found"
	resultError    = "error"
)

// Metrics holds Prometheus metrics for directory lookups. All record
// methods are nil-safe.
type Metrics struct {
	lookupsTotal   *prometheus.CounterVec
	lookupDuration *prometheus.HistogramVec
	registerer     prometheus.Registerer
}

// NewMetrics creates a Metrics instance registered with the default
// registerer.
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

	m.lookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "directory",
			Name:      "lookups_total",
			Help:      "Total number of directory lookups by backend and result",
		},
		[]string{"backend", "result"},
	)

	m.lookupDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "directory",
			Name:      "lookup_duration_seconds",
			Help:      "Directory lookup duration in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"backend"},
	)

	collectors := []prometheus.Collector{
		m.lookupsTotal,
		m.lookupDuration,
	}
	for _, c := range collectors {
		_ = m.registerer.Register(c)
	}

	return m
}

// RecordLookup records one directory lookup.
func (m *Metrics) RecordLookup(backend, result string, duration time.Duration) {
	if m == nil || m.lookupsTotal == nil {
		return
	}
	m.lookupsTotal.WithLabelValues(backend, result).Inc()
	m.lookupDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// lookupResult maps a Resolve outcome onto a result label.
func lookupResult(err error) string {
	switch {
	case err == nil:
		return resultFound
	case errors.Is(err, ErrUserNotFound):
		return resultNotFound
	default:
		return resultError
	}
}
