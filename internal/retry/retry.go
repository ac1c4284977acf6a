package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Defaults applied by the Config getters.
const (
	DefaultMaxRetries     = 3
	DefaultInitialBackoff = 100 * time.Millisecond
	DefaultMaxBackoff     = 30 * time.Second
	DefaultJitterFactor   = 0.25
	MaxJitterFactor       = 1.0
)

// Config bounds the retry loop. The zero value of any field selects
// its default, so callers set only what they care about.
type Config struct {
	// MaxRetries is the number of attempts after the first.
	MaxRetries int

	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the delay between attempts.
	MaxBackoff time.Duration

	// JitterFactor adds up to this fraction of random extra delay.
	JitterFactor float64
}

// GetMaxRetries returns the effective retry count.
func (c *Config) GetMaxRetries() int {
	if c == nil || c.MaxRetries <= 0 {
		return DefaultMaxRetries
	}
	return c.MaxRetries
}

// GetInitialBackoff returns the effective initial backoff.
func (c *Config) GetInitialBackoff() time.Duration {
	if c == nil || c.InitialBackoff <= 0 {
		return DefaultInitialBackoff
	}
	return c.InitialBackoff
}

// GetMaxBackoff returns the effective backoff cap.
func (c *Config) GetMaxBackoff() time.Duration {
	if c == nil || c.MaxBackoff <= 0 {
		return DefaultMaxBackoff
	}
	return c.MaxBackoff
}

// GetJitterFactor returns the effective jitter factor, capped at
// MaxJitterFactor.
func (c *Config) GetJitterFactor() float64 {
	if c == nil || c.JitterFactor <= 0 {
		return DefaultJitterFactor
	}
	if c.JitterFactor > MaxJitterFactor {
		return MaxJitterFactor
	}
	return c.JitterFactor
}

// Options tune a single Do call.
type Options struct {
	// Operation labels the retry metrics. Empty records nothing.
	Operation string

	// ShouldRetry reports whether another attempt could help. Nil
	// retries every error.
	ShouldRetry func(error) bool

	// OnRetry runs before each backoff sleep.
	OnRetry func(attempt int, err error, backoff time.Duration)
}

// Do runs fn until it succeeds, the error is declared permanent, the
// attempts run out, or ctx ends.
func Do(ctx context.Context, cfg *Config, fn func() error, opts *Options) error {
	maxRetries := cfg.GetMaxRetries()
	initial := cfg.GetInitialBackoff()
	maxBackoff := cfg.GetMaxBackoff()
	jitter := cfg.GetJitterFactor()

	var (
		operation   string
		shouldRetry func(error) bool
		onRetry     func(int, error, time.Duration)
	)
	if opts != nil {
		operation = opts.Operation
		shouldRetry = opts.ShouldRetry
		onRetry = opts.OnRetry
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if shouldRetry != nil && !shouldRetry(lastErr) {
			return lastErr
		}
		if attempt == maxRetries {
			break
		}

		backoff := Backoff(attempt, initial, maxBackoff, jitter)
		if operation != "" {
			retryAttemptsTotal.WithLabelValues(operation).Inc()
		}
		if onRetry != nil {
			onRetry(attempt+1, lastErr, backoff)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	if operation != "" {
		retryExhaustedTotal.WithLabelValues(operation).Inc()
	}
	return lastErr
}

// Backoff returns the delay before retry number attempt, counting from
// zero: initial doubled per attempt plus jitter, capped at maxBackoff.
func Backoff(attempt int, initial, maxBackoff time.Duration, jitterFactor float64) time.Duration {
	backoff := float64(initial) * math.Pow(2, float64(attempt))

	//nolint:gosec // G404: jitter spreads retry timing, not a secret
	backoff += backoff * jitterFactor * rand.Float64()

	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}
	return time.Duration(backoff)
}
