package health

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HealthMetrics holds Prometheus metrics for readiness probes.
type HealthMetrics struct {
	checksTotal *prometheus.CounterVec
	checkStatus *prometheus.GaugeVec
}

var (
	healthMetrics     *HealthMetrics
	healthMetricsOnce sync.Once
)

// GetHealthMetrics returns the singleton health metrics instance.
func GetHealthMetrics() *HealthMetrics {
	healthMetricsOnce.Do(func() {
		healthMetrics = newHealthMetrics()
	})
	return healthMetrics
}

func newHealthMetrics() *HealthMetrics {
	return &HealthMetrics{
		checksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "authgate",
				Subsystem: "health",
				Name:      "checks_total",
				Help:      "Total number of readiness probes by check and result",
			},
			[]string{"check", "result"},
		),
		checkStatus: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "authgate",
				Subsystem: "health",
				Name:      "check_status",
				Help:      "Latest probe result by check (1 healthy, 0 failing)",
			},
			[]string{"check"},
		),
	}
}

func (m *HealthMetrics) record(check string, healthy bool) {
	result := "success"
	value := 1.0
	if !healthy {
		result = "failure"
		value = 0
	}
	m.checksTotal.WithLabelValues(check, result).Inc()
	m.checkStatus.WithLabelValues(check).Set(value)
}
