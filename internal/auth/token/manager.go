package token

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vyrodovalexey/avauthgate/internal/auth"
	"github.com/vyrodovalexey/avauthgate/internal/observability"
)

const (
	// validatorName identifies the manager in the validator chain.
	validatorName = "opaque"

	// rawTokenBytes is the entropy of a raw token before encoding.
	rawTokenBytes = 32

	// DefaultTTL is the lifetime of issued tokens.
	DefaultTTL = time.Hour
)

// Manager issues, validates, and revokes opaque tokens against a Store.
// It implements auth.TokenValidator so the authenticator can consume
// opaque tokens alongside JWTs.
type Manager struct {
	store   Store
	ttl     time.Duration
	logger  observability.Logger
	metrics *auth.Metrics
}

var _ auth.TokenValidator = (*Manager)(nil)

// ManagerOption configures the manager.
type ManagerOption func(*Manager)

// WithTTL sets the lifetime of issued tokens.
func WithTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithManagerLogger sets the logger.
func WithManagerLogger(logger observability.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithManagerMetrics sets the metrics collector.
func WithManagerMetrics(metrics *auth.Metrics) ManagerOption {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// NewManager creates a Manager over store.
func NewManager(store Store, opts ...ManagerOption) *Manager {
	if store == nil {
		panic("token: manager requires a store")
	}
	m := &Manager{
		store:  store,
		ttl:    DefaultTTL,
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Issue mints a fresh token for the subject and stores its record. The
// raw token is returned exactly once; only its hash is kept.
func (m *Manager) Issue(ctx context.Context, subject, username string, roles, scopes []string) (string, *Record, error) {
	if subject == "" {
		return "", nil, fmt.Errorf("token: issue requires a subject")
	}

	raw, err := randomToken()
	if err != nil {
		return "", nil, fmt.Errorf("token: failed to generate token: %w", err)
	}

	now := time.Now()
	rec := &Record{
		ID:        uuid.NewString(),
		Subject:   subject,
		Username:  username,
		Roles:     append([]string(nil), roles...),
		Scopes:    append([]string(nil), scopes...),
		IssuedAt:  now,
		ExpiresAt: now.Add(m.ttl),
	}

	if err := m.store.Put(ctx, Hash(raw), rec, m.ttl); err != nil {
		return "", nil, fmt.Errorf("token: failed to store token: %w", err)
	}

	m.metrics.RecordTokenIssued(validatorName)
	m.logger.Debug("opaque token issued",
		observability.String("token_id", rec.ID),
		observability.String("subject", subject),
		observability.Time("expires_at", rec.ExpiresAt),
	)
	return raw, rec, nil
}

// Revoke deletes the record for a raw token. Revoking an unknown token
// succeeds silently; the caller learns nothing about token existence.
func (m *Manager) Revoke(ctx context.Context, raw string) error {
	if err := m.store.Delete(ctx, Hash(raw)); err != nil {
		return fmt.Errorf("token: failed to revoke token: %w", err)
	}
	m.metrics.RecordTokenRevoked(validatorName)
	return nil
}

// Validate implements auth.TokenValidator.
func (m *Manager) Validate(ctx context.Context, raw string) (*auth.Principal, error) {
	rec, err := m.store.Get(ctx, Hash(raw))
	if errors.Is(err, ErrNotFound) {
		return nil, auth.ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", auth.ErrValidatorUnavailable, err)
	}
	// TTL should have evicted it, but clocks and sweeps lag.
	if rec.Expired() {
		return nil, auth.ErrTokenExpired
	}

	return &auth.Principal{
		Subject:    rec.Subject,
		Username:   rec.Username,
		Roles:      rec.Roles,
		Scopes:     rec.Scopes,
		AuthMethod: auth.MethodOpaque,
		TokenID:    rec.ID,
		IssuedAt:   rec.IssuedAt,
		ExpiresAt:  rec.ExpiresAt,
	}, nil
}

// Name implements auth.TokenValidator.
func (m *Manager) Name() string {
	return validatorName
}

// Ping reports store health, for readiness checks.
func (m *Manager) Ping(ctx context.Context) error {
	return m.store.Ping(ctx)
}

// randomToken returns a URL-safe random token string.
func randomToken() (string, error) {
	buf := make([]byte, rawTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
