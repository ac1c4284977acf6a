package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vyrodovalexey/avauthgate/internal/config"
	"github.com/vyrodovalexey/avauthgate/internal/health"
)

// newMetricsServer builds the operational listener: Prometheus metrics
// plus the health probes. It never shares a port with proxied traffic,
// so the rule table cannot accidentally expose it.
func newMetricsServer(cfg config.MetricsConfig, checker *health.Checker) *http.Server {
	addr := cfg.ListenAddress
	if addr == "" {
		addr = config.DefaultMetricsAddress
	}
	path := cfg.Path
	if path == "" {
		path = config.DefaultMetricsPath
	}

	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())
	mux.HandleFunc("/healthz", checker.HealthHandler())
	mux.HandleFunc("/readyz", checker.ReadinessHandler())
	mux.HandleFunc("/livez", checker.LivenessHandler())

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
