package introspect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/vyrodovalexey/avauthgate/internal/auth"
	"github.com/vyrodovalexey/avauthgate/internal/observability"
	"github.com/vyrodovalexey/avauthgate/internal/retry"
)

// tracer is the package-level tracer for introspection spans.
var tracer = otel.Tracer("avauthgate/introspect")

const (
	// validatorName identifies the client in the validator chain.
	validatorName = "introspection"

	// DefaultTimeout bounds a single introspection round trip.
	DefaultTimeout = 5 * time.Second

	// DefaultBreakerThreshold is the request count before the failure
	// ratio is evaluated.
	DefaultBreakerThreshold = 5

	// DefaultBreakerTimeout is how long the breaker stays open before
	// probing the endpoint again.
	DefaultBreakerTimeout = 30 * time.Second

	// DefaultMaxRetries bounds retries of a failed round trip.
	DefaultMaxRetries = 2

	// maxResponseBytes caps the introspection response body.
	maxResponseBytes = 1 << 20
)

// Config configures the introspection client.
type Config struct {
	// Endpoint is the introspection URL.
	Endpoint string `yaml:"endpoint" json:"endpoint"`

	// ClientID authenticates this gateway to the endpoint.
	ClientID string `yaml:"client_id" json:"client_id"`

	// ClientSecret is the client credential, sent via HTTP basic auth.
	ClientSecret string `yaml:"client_secret" json:"client_secret"`

	// Timeout bounds a single round trip. Zero means DefaultTimeout.
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// BreakerThreshold is the minimum request count before the breaker
	// evaluates the failure ratio. Zero means DefaultBreakerThreshold.
	BreakerThreshold int `yaml:"breaker_threshold,omitempty" json:"breaker_threshold,omitempty"`

	// BreakerTimeout is the open-state duration. Zero means
	// DefaultBreakerTimeout.
	BreakerTimeout time.Duration `yaml:"breaker_timeout,omitempty" json:"breaker_timeout,omitempty"`

	// MaxRetries bounds retries of transient failures within one
	// validation. Zero means DefaultMaxRetries; negative disables
	// retries.
	MaxRetries int `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
}

// Client validates tokens against a remote introspection endpoint. It
// implements auth.TokenValidator.
type Client struct {
	endpoint     string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	breaker      *gobreaker.CircuitBreaker
	retryCfg     *retry.Config
	logger       observability.Logger
}

var _ auth.TokenValidator = (*Client)(nil)

// Option configures the client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithClientLogger sets the logger.
func WithClientLogger(logger observability.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a Client for the configured endpoint.
func New(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("introspect: config is required")
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("introspect: endpoint is required")
	}
	u, err := url.Parse(cfg.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("introspect: invalid endpoint %q", cfg.Endpoint)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		endpoint:     cfg.Endpoint,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		httpClient:   &http.Client{Timeout: timeout},
		logger:       observability.NopLogger(),
	}
	// Negative MaxRetries disables retries entirely.
	if cfg.MaxRetries >= 0 {
		maxRetries := cfg.MaxRetries
		if maxRetries == 0 {
			maxRetries = DefaultMaxRetries
		}
		c.retryCfg = &retry.Config{
			MaxRetries:     maxRetries,
			InitialBackoff: 50 * time.Millisecond,
			MaxBackoff:     2 * time.Second,
		}
	}
	for _, opt := range opts {
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker(newBreakerSettings(cfg, c.logger))
	return c, nil
}

// newBreakerSettings builds circuit breaker settings. Only transport
// failures count against the breaker; rejected tokens mean the endpoint
// is healthy.
func newBreakerSettings(cfg *Config, logger observability.Logger) gobreaker.Settings {
	threshold := cfg.BreakerThreshold
	if threshold <= 0 {
		threshold = DefaultBreakerThreshold
	}
	breakerTimeout := cfg.BreakerTimeout
	if breakerTimeout <= 0 {
		breakerTimeout = DefaultBreakerTimeout
	}
	thresholdU32 := uint32(threshold) //nolint:gosec // positive and small

	return gobreaker.Settings{
		Name:     validatorName,
		Interval: breakerTimeout,
		Timeout:  breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= thresholdU32 && failureRatio >= 0.5
		},
		IsSuccessful: func(err error) bool {
			var reqErr *requestError
			return !errors.As(err, &reqErr)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("introspection circuit breaker state change",
				observability.String("name", name),
				observability.String("from", from.String()),
				observability.String("to", to.String()),
			)
		},
	}
}

// introspectionResponse is the RFC 7662 response shape, plus the
// non-standard roles extension some servers emit.
type introspectionResponse struct {
	Active    bool     `json:"active"`
	Subject   string   `json:"sub,omitempty"`
	Username  string   `json:"username,omitempty"`
	Scope     string   `json:"scope,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	TokenID   string   `json:"jti,omitempty"`
	ExpiresAt int64    `json:"exp,omitempty"`
	IssuedAt  int64    `json:"iat,omitempty"`
}

// requestError marks a failed round trip. Status zero means the request
// never completed.
type requestError struct {
	status int
	err    error
}

// Error implements the error interface.
func (e *requestError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("introspection request failed: %v", e.err)
	}
	return fmt.Sprintf("introspection endpoint returned status %d", e.status)
}

// Unwrap returns the underlying error.
func (e *requestError) Unwrap() error {
	return e.err
}

// transient reports whether retrying could help. Status zero is a
// transport failure. Client errors such as rejected credentials or a
// bad request will not heal on retry.
func (e *requestError) transient() bool {
	return e.status == 0 || retry.IsRetryableStatus(e.status)
}

// shouldRetry retries only transient transport failures.
func shouldRetry(err error) bool {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		return reqErr.transient()
	}
	return false
}

// Validate implements auth.TokenValidator.
func (c *Client) Validate(ctx context.Context, token string) (*auth.Principal, error) {
	ctx, span := tracer.Start(ctx, "introspect.validate")
	defer span.End()

	res, err := c.breaker.Execute(func() (interface{}, error) {
		var principal *auth.Principal
		attempt := func() error {
			var attemptErr error
			principal, attemptErr = c.introspect(ctx, token)
			return attemptErr
		}

		var retryErr error
		if c.retryCfg == nil {
			retryErr = attempt()
		} else {
			retryErr = retry.Do(ctx, c.retryCfg, attempt, &retry.Options{
				Operation:   validatorName,
				ShouldRetry: shouldRetry,
				OnRetry: func(n int, err error, backoff time.Duration) {
					c.logger.Debug("retrying introspection request",
						observability.Int("attempt", n),
						observability.Duration("backoff", backoff),
						observability.Error(err),
					)
				},
			})
		}
		if retryErr != nil {
			return nil, retryErr
		}
		return principal, nil
	})
	if err != nil {
		if rejected(err) {
			span.SetStatus(codes.Error, "token rejected")
			return nil, err
		}
		span.SetStatus(codes.Error, "endpoint unavailable")
		return nil, fmt.Errorf("%w: %v", auth.ErrValidatorUnavailable, err)
	}

	principal := res.(*auth.Principal)
	span.SetAttributes(attribute.String("auth.subject", principal.Subject))
	return principal, nil
}

// rejected reports whether err is a definitive endpoint answer about
// the token. Transport failures, open breakers, and cancelled contexts
// say nothing about the token itself.
func rejected(err error) bool {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		return false
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	default:
		return true
	}
}

// introspect performs one introspection round trip.
func (c *Client) introspect(ctx context.Context, token string) (*auth.Principal, error) {
	form := url.Values{}
	form.Set("token", token)
	form.Set("token_type_hint", "access_token")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &requestError{err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if c.clientID != "" {
		req.SetBasicAuth(c.clientID, c.clientSecret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &requestError{err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, &requestError{status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &requestError{err: err}
	}

	var ir introspectionResponse
	if err := json.Unmarshal(body, &ir); err != nil {
		return nil, &requestError{err: fmt.Errorf("failed to decode response: %w", err)}
	}

	return principalFrom(&ir)
}

// principalFrom maps an introspection response onto a Principal.
func principalFrom(ir *introspectionResponse) (*auth.Principal, error) {
	if !ir.Active {
		return nil, auth.ErrInvalidToken
	}
	if ir.Subject == "" {
		return nil, fmt.Errorf("%w: sub", auth.ErrMissingClaim)
	}

	p := &auth.Principal{
		Subject:    ir.Subject,
		Username:   ir.Username,
		Roles:      ir.Roles,
		Scopes:     strings.Fields(ir.Scope),
		AuthMethod: auth.MethodIntrospection,
		TokenID:    ir.TokenID,
	}
	if p.Username == "" {
		p.Username = ir.Subject
	}
	if ir.IssuedAt > 0 {
		p.IssuedAt = time.Unix(ir.IssuedAt, 0)
	}
	if ir.ExpiresAt > 0 {
		p.ExpiresAt = time.Unix(ir.ExpiresAt, 0)
		if p.Expired() {
			return nil, auth.ErrTokenExpired
		}
	}
	return p, nil
}

// Name implements auth.TokenValidator.
func (c *Client) Name() string {
	return validatorName
}
