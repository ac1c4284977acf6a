package jwt

import (
	"context"
	"errors"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/vyrodovalexey/avauthgate/internal/auth"
	"github.com/vyrodovalexey/avauthgate/internal/observability"
)

// validatorName identifies this validator in logs and metrics.
const validatorName = "jwt"

// Validator validates JWTs against a static key or a cached JWKS.
type Validator struct {
	cfg    *Config
	alg    jwa.SignatureAlgorithm
	key    jwk.Key // static key; nil when keySet is used
	keySet jwk.Set // cached JWKS view; nil when key is used
	logger observability.Logger
}

var _ auth.TokenValidator = (*Validator)(nil)

// ValidatorOption configures the validator.
type ValidatorOption func(*Validator)

// WithValidatorLogger sets the logger.
func WithValidatorLogger(logger observability.Logger) ValidatorOption {
	return func(v *Validator) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// NewValidator creates a Validator from cfg. With a JWKSURL configured
// the key set is fetched once before returning and refreshed in the
// background until ctx is canceled; an unreachable JWKS endpoint is a
// startup error, not a per-request one.
func NewValidator(ctx context.Context, cfg *Config, opts ...ValidatorOption) (*Validator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("jwt: config is required")
	}

	alg, err := resolveAlgorithm(cfg.Algorithm)
	if err != nil {
		return nil, fmt.Errorf("jwt: %w", err)
	}

	v := &Validator{
		cfg:    cfg,
		alg:    alg,
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(v)
	}

	switch {
	case cfg.JWKSURL != "":
		if isHMAC(alg) {
			return nil, fmt.Errorf("jwt: JWKS cannot serve HMAC algorithm %s", cfg.Algorithm)
		}
		cache := jwk.NewCache(ctx)
		if err := cache.Register(cfg.JWKSURL, jwk.WithMinRefreshInterval(cfg.jwksRefreshInterval())); err != nil {
			return nil, fmt.Errorf("jwt: failed to register JWKS url: %w", err)
		}
		if _, err := cache.Refresh(ctx, cfg.JWKSURL); err != nil {
			return nil, fmt.Errorf("jwt: initial JWKS fetch failed: %w", err)
		}
		v.keySet = jwk.NewCachedSet(cache, cfg.JWKSURL)
		v.logger.Info("jwks key source configured",
			observability.String("url", cfg.JWKSURL),
			observability.Duration("refresh_interval", cfg.jwksRefreshInterval()),
		)

	case isHMAC(alg):
		key, err := hmacKey(cfg.Secret)
		if err != nil {
			return nil, fmt.Errorf("jwt: %w", err)
		}
		v.key = key

	case cfg.PublicKeyFile != "":
		key, err := loadPEMKey(cfg.PublicKeyFile)
		if err != nil {
			return nil, fmt.Errorf("jwt: %w", err)
		}
		v.key = key

	default:
		return nil, fmt.Errorf("jwt: no key source configured for algorithm %s", cfg.Algorithm)
	}

	return v, nil
}

// Name implements auth.TokenValidator.
func (v *Validator) Name() string {
	return validatorName
}

// Validate implements auth.TokenValidator.
func (v *Validator) Validate(ctx context.Context, token string) (*auth.Principal, error) {
	parseOpts := []jwt.ParseOption{
		jwt.WithContext(ctx),
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(v.cfg.clockSkew()),
	}
	if v.cfg.Issuer != "" {
		parseOpts = append(parseOpts, jwt.WithIssuer(v.cfg.Issuer))
	}
	if v.cfg.Audience != "" {
		parseOpts = append(parseOpts, jwt.WithAudience(v.cfg.Audience))
	}
	if v.keySet != nil {
		parseOpts = append(parseOpts, jwt.WithKeySet(v.keySet, jws.WithInferAlgorithmFromKey(true)))
	} else {
		parseOpts = append(parseOpts, jwt.WithKey(v.alg, v.key))
	}

	tok, err := jwt.Parse([]byte(token), parseOpts...)
	if err != nil {
		return nil, mapParseError(err)
	}

	return v.principalFrom(tok), nil
}

// mapParseError translates jwx parse failures onto the auth error
// taxonomy. Anything not recognized as a temporal claim failure is a
// generic invalid token; callers get no oracle for probing claims.
func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired()):
		return fmt.Errorf("%w: %v", auth.ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenNotYetValid()):
		return fmt.Errorf("%w: %v", auth.ErrTokenNotYetValid, err)
	case errors.Is(err, jwt.ErrInvalidIssuedAt()):
		return fmt.Errorf("%w: %v", auth.ErrTokenNotYetValid, err)
	default:
		return fmt.Errorf("%w: %v", auth.ErrInvalidToken, err)
	}
}
