package middleware

import (
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/vyrodovalexey/avauthgate/internal/config"
	"github.com/vyrodovalexey/avauthgate/internal/observability"
)

const (
	// DefaultClientTTL is how long an idle client's bucket is kept.
	DefaultClientTTL = 10 * time.Minute

	// minSweepInterval bounds how often the sweeper may run.
	minSweepInterval = 10 * time.Second

	// maxSweepInterval bounds how rarely the sweeper may run.
	maxSweepInterval = time.Minute
)

// clientBucket pairs a limiter with its last use for TTL eviction.
type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPLimiter rate-limits requests per client address with independent
// token buckets. Idle buckets are evicted after a TTL so the map does
// not grow with every address ever seen.
type IPLimiter struct {
	rps     rate.Limit
	burst   int
	clients map[string]*clientBucket
	mu      sync.Mutex
	logger  observability.Logger
	ttl     time.Duration
	stopCh  chan struct{}
	stopped bool
}

// IPLimiterOption is a functional option for the limiter.
type IPLimiterOption func(*IPLimiter)

// WithLimiterLogger sets the logger.
func WithLimiterLogger(logger observability.Logger) IPLimiterOption {
	return func(l *IPLimiter) {
		l.logger = logger
	}
}

// WithClientTTL sets how long idle client buckets are kept.
func WithClientTTL(ttl time.Duration) IPLimiterOption {
	return func(l *IPLimiter) {
		l.ttl = ttl
	}
}

// NewIPLimiter creates a per-client limiter allowing rps requests per
// second with the given burst.
func NewIPLimiter(rps float64, burst int, opts ...IPLimiterOption) *IPLimiter {
	l := &IPLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		clients: make(map[string]*clientBucket),
		logger:  observability.NopLogger(),
		ttl:     DefaultClientTTL,
		stopCh:  make(chan struct{}),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Allow reports whether the client may proceed, consuming one token.
func (l *IPLimiter) Allow(clientIP string) bool {
	now := time.Now()

	l.mu.Lock()
	bucket, ok := l.clients[clientIP]
	if !ok {
		bucket = &clientBucket{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.clients[clientIP] = bucket
	}
	bucket.lastSeen = now
	limiter := bucket.limiter
	l.mu.Unlock()

	return limiter.Allow()
}

// Sweep evicts buckets idle longer than maxAge.
func (l *IPLimiter) Sweep(maxAge time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	evicted := 0
	for ip, bucket := range l.clients {
		if now.Sub(bucket.lastSeen) > maxAge {
			delete(l.clients, ip)
			evicted++
		}
	}

	if evicted > 0 {
		l.logger.Debug("evicted idle rate limit buckets",
			observability.Int("evicted", evicted),
			observability.Int("remaining", len(l.clients)),
		)
	}
}

// StartSweeper runs periodic eviction until Stop is called.
func (l *IPLimiter) StartSweeper() {
	interval := l.ttl / 2
	if interval > maxSweepInterval {
		interval = maxSweepInterval
	}
	if interval < minSweepInterval {
		interval = minSweepInterval
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				l.Sweep(l.ttl)
			case <-l.stopCh:
				return
			}
		}
	}()
}

// Stop terminates the sweeper goroutine. Safe to call more than once.
func (l *IPLimiter) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.stopped {
		l.stopped = true
		close(l.stopCh)
	}
}

// RateLimit returns a middleware that throttles requests per client
// address, answering 429 with Retry-After when the bucket is empty.
func RateLimit(limiter *IPLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := getClientIP(r)

			if !limiter.Allow(clientIP) {
				limiter.logger.Warn("rate limit exceeded",
					observability.String("client_ip", clientIP),
					observability.String("path", r.URL.Path),
				)
				GetMiddlewareMetrics().rateLimitDrops.Inc()

				w.Header().Set(HeaderContentType, ContentTypeJSON)
				w.Header().Set(HeaderRetryAfter, "1")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = io.WriteString(w, ErrRateLimitExceeded)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitFromConfig builds the middleware from the document section.
// It returns the limiter for lifecycle management; the caller owns
// Stop. Disabled config yields a pass-through and a nil limiter.
func RateLimitFromConfig(
	cfg *config.RateLimitConfig,
	logger observability.Logger,
) (func(http.Handler) http.Handler, *IPLimiter) {
	if cfg == nil || !cfg.Enabled {
		return func(next http.Handler) http.Handler {
			return next
		}, nil
	}

	limiter := NewIPLimiter(cfg.RequestsPerSecond, cfg.Burst, WithLimiterLogger(logger))
	limiter.StartSweeper()

	return RateLimit(limiter), limiter
}
