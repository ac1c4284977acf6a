package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/vyrodovalexey/avauthgate/internal/observability"
)

// Status classifies the gate's ability to serve.
type Status string

const (
	// StatusHealthy means every probe passed.
	StatusHealthy Status = "healthy"
	// StatusDegraded means a non-critical probe failed; the gate keeps
	// serving.
	StatusDegraded Status = "degraded"
	// StatusUnhealthy means a critical probe failed; the gate should be
	// pulled from rotation.
	StatusUnhealthy Status = "unhealthy"
)

// DefaultCheckTimeout bounds one readiness sweep.
const DefaultCheckTimeout = 5 * time.Second

// Check is one dependency's result within a readiness response.
type Check struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// CheckFunc probes one dependency. Method values such as a directory's
// Ping satisfy it directly.
type CheckFunc func(ctx context.Context) error

type probe struct {
	check    CheckFunc
	critical bool
}

// Checker aggregates dependency probes into liveness and readiness
// answers.
type Checker struct {
	version   string
	startTime time.Time
	timeout   time.Duration
	logger    observability.Logger

	mu     sync.RWMutex
	probes map[string]probe
}

// Option configures a Checker.
type Option func(*Checker)

// WithCheckTimeout bounds one readiness sweep.
func WithCheckTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(c *Checker) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewChecker creates a Checker reporting the given version.
func NewChecker(version string, opts ...Option) *Checker {
	c := &Checker{
		version:   version,
		startTime: time.Now(),
		timeout:   DefaultCheckTimeout,
		logger:    observability.NopLogger(),
		probes:    make(map[string]probe),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register adds a probe whose failure degrades readiness without
// failing it. The gate keeps validating tokens while a directory or
// token store hiccups.
func (c *Checker) Register(name string, check CheckFunc) {
	c.register(name, check, false)
}

// RegisterCritical adds a probe whose failure makes the gate unready.
func (c *Checker) RegisterCritical(name string, check CheckFunc) {
	c.register(name, check, true)
}

func (c *Checker) register(name string, check CheckFunc, critical bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probes[name] = probe{check: check, critical: critical}
}

// Unregister removes a probe, for dependencies swapped out on reload.
func (c *Checker) Unregister(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.probes, name)
}

// HealthResponse answers /healthz.
type HealthResponse struct {
	Status    Status    `json:"status"`
	Version   string    `json:"version,omitempty"`
	Uptime    string    `json:"uptime,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadinessResponse answers /readyz.
type ReadinessResponse struct {
	Status    Status           `json:"status"`
	Checks    map[string]Check `json:"checks,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// Health reports on the process itself.
func (c *Checker) Health() HealthResponse {
	return HealthResponse{
		Status:    StatusHealthy,
		Version:   c.version,
		Uptime:    time.Since(c.startTime).Round(time.Second).String(),
		Timestamp: time.Now(),
	}
}

// Readiness runs every probe and aggregates the results. A failing
// critical probe means unhealthy; any other failure degrades.
func (c *Checker) Readiness(ctx context.Context) ReadinessResponse {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.mu.RLock()
	probes := make(map[string]probe, len(c.probes))
	for name, p := range c.probes {
		probes[name] = p
	}
	c.mu.RUnlock()

	response := ReadinessResponse{
		Status:    StatusHealthy,
		Checks:    make(map[string]Check, len(probes)),
		Timestamp: time.Now(),
	}

	metrics := GetHealthMetrics()
	for name, p := range probes {
		err := p.check(ctx)
		metrics.record(name, err == nil)

		if err == nil {
			response.Checks[name] = Check{Status: StatusHealthy}
			continue
		}

		c.logger.Warn("readiness probe failed",
			observability.String("check", name),
			observability.Error(err),
		)

		if p.critical {
			response.Checks[name] = Check{Status: StatusUnhealthy, Message: err.Error()}
			response.Status = StatusUnhealthy
			continue
		}
		response.Checks[name] = Check{Status: StatusDegraded, Message: err.Error()}
		if response.Status != StatusUnhealthy {
			response.Status = StatusDegraded
		}
	}

	return response
}

// HealthHandler serves /healthz.
func (c *Checker) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, c.Health())
	}
}

// ReadinessHandler serves /readyz. Degraded still answers 200; only
// unhealthy pulls the gate from rotation.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := c.Readiness(r.Context())

		status := http.StatusOK
		if response.Status == StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, response)
	}
}

// LivenessHandler serves /livez.
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
