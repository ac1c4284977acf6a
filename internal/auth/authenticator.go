package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/vyrodovalexey/avauthgate/internal/observability"
)

// tracer is the package-level tracer for authentication spans.
var tracer = otel.Tracer("avauthgate/auth")

// Config configures the authenticator.
type Config struct {
	// RejectInvalid selects strict mode: requests carrying credentials
	// that fail validation are rejected with 401 instead of continuing
	// as anonymous. Requests without credentials always continue; the
	// authorization engine decides whether anonymous access suffices.
	RejectInvalid bool `yaml:"reject_invalid" json:"reject_invalid"`

	// Sources lists where to look for credentials, in order. Empty
	// means the Authorization header with the Bearer scheme.
	Sources []Source `yaml:"sources,omitempty" json:"sources,omitempty"`
}

// Authenticator establishes the principal for incoming requests by
// running extracted credentials through a validator chain.
type Authenticator interface {
	// Authenticate extracts and validates credentials from r. Returns
	// (nil, ErrNoCredentials) for anonymous requests and a validation
	// error when every validator rejected the credential.
	Authenticate(r *http.Request) (*Principal, error)

	// ValidateToken runs a raw token through the validator chain.
	// The first validator that accepts it wins.
	ValidateToken(ctx context.Context, token string) (*Principal, error)

	// Middleware returns HTTP middleware that attaches the principal to
	// the request context. Anonymous requests pass through without one.
	Middleware() func(http.Handler) http.Handler
}

// authenticator is the chain-backed Authenticator implementation.
type authenticator struct {
	extractor     Extractor
	validators    []TokenValidator
	rejectInvalid bool
	logger        observability.Logger
	metrics       *Metrics
}

var _ Authenticator = (*authenticator)(nil)

// Option configures the authenticator.
type Option func(*authenticator)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(a *authenticator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(a *authenticator) {
		a.metrics = m
	}
}

// WithExtractor replaces the credential extractor built from the config.
func WithExtractor(e Extractor) Option {
	return func(a *authenticator) {
		if e != nil {
			a.extractor = e
		}
	}
}

// NewAuthenticator creates an Authenticator that tries the given
// validators in order. A nil cfg uses defaults (lenient mode, bearer
// header extraction).
func NewAuthenticator(cfg *Config, validators []TokenValidator, opts ...Option) Authenticator {
	if cfg == nil {
		cfg = &Config{}
	}
	a := &authenticator{
		extractor:     NewExtractor(cfg.Sources),
		validators:    validators,
		rejectInvalid: cfg.RejectInvalid,
		logger:        observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Authenticate implements Authenticator.
func (a *authenticator) Authenticate(r *http.Request) (*Principal, error) {
	cred, err := a.extractor.Extract(r)
	if err != nil {
		return nil, err
	}
	return a.ValidateToken(r.Context(), cred.Token)
}

// ValidateToken implements Authenticator.
func (a *authenticator) ValidateToken(ctx context.Context, token string) (*Principal, error) {
	ctx, span := tracer.Start(ctx, "auth.validate")
	defer span.End()

	if len(a.validators) == 0 {
		span.SetStatus(codes.Error, "no validators configured")
		return nil, NewValidationError("", ErrInvalidToken)
	}

	var lastErr error
	for _, v := range a.validators {
		start := time.Now()
		principal, err := v.Validate(ctx, token)
		elapsed := time.Since(start)
		if err == nil {
			a.metrics.RecordAttempt(v.Name(), resultSuccess, elapsed)
			span.SetAttributes(
				attribute.String("auth.validator", v.Name()),
				attribute.String("auth.subject", principal.Subject),
			)
			return principal, nil
		}
		a.metrics.RecordAttempt(v.Name(), resultFailure, elapsed)
		a.logger.Debug("token validation failed",
			observability.String("validator", v.Name()),
			observability.Error(err),
		)
		lastErr = NewValidationError(v.Name(), err)
	}

	span.SetStatus(codes.Error, "all validators rejected token")
	return nil, lastErr
}

// Middleware implements Authenticator.
func (a *authenticator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cred, err := a.extractor.Extract(r)
			if errors.Is(err, ErrNoCredentials) {
				a.metrics.RecordAnonymous()
				next.ServeHTTP(w, r)
				return
			}

			var principal *Principal
			if err == nil {
				principal, err = a.ValidateToken(r.Context(), cred.Token)
			}
			if err != nil {
				a.handleFailure(w, r, next, err)
				return
			}

			ctx := ContextWithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// handleFailure applies the configured mode to a credential that was
// present but did not validate. Strict mode rejects immediately;
// lenient mode records the failure and continues anonymously, leaving
// the decision to the authorization engine.
func (a *authenticator) handleFailure(w http.ResponseWriter, r *http.Request, next http.Handler, err error) {
	a.logger.Debug("authentication failed",
		observability.String("path", r.URL.Path),
		observability.Error(err),
	)

	if a.rejectInvalid {
		a.metrics.RecordRejection()
		writeInvalidTokenResponse(w)
		return
	}

	ctx := ContextWithAuthError(r.Context(), err)
	next.ServeHTTP(w, r.WithContext(ctx))
}

// writeInvalidTokenResponse renders the strict-mode 401 for a rejected
// credential, per RFC 6750 section 3.
func writeInvalidTokenResponse(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"invalid token"}`))
}
