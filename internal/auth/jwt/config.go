package jwt

import (
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
)

// Defaults applied by NewValidator and NewSigner.
const (
	// DefaultClockSkew tolerates modest clock drift on exp and nbf.
	DefaultClockSkew = 30 * time.Second

	// DefaultTokenTTL is the lifetime of issued tokens.
	DefaultTokenTTL = time.Hour

	// DefaultJWKSRefreshInterval is the minimum interval between JWKS
	// refreshes.
	DefaultJWKSRefreshInterval = 15 * time.Minute

	// DefaultRolesClaim is the claim carrying role names.
	DefaultRolesClaim = "roles"

	// DefaultScopeClaim is the claim carrying space-separated scopes.
	DefaultScopeClaim = "scope"

	// DefaultUsernameClaim is the claim carrying the login name.
	DefaultUsernameClaim = "preferred_username"
)

// Config configures JWT validation and issuance. Exactly one key source
// must be set: Secret for HMAC algorithms, PublicKeyFile for asymmetric
// verification, or JWKSURL for remote key sets.
type Config struct {
	// Algorithm names the signature algorithm (HS256, RS256, ES256, ...).
	Algorithm string `yaml:"algorithm" json:"algorithm"`

	// Secret is the shared secret for HMAC algorithms.
	Secret string `yaml:"secret,omitempty" json:"secret,omitempty"`

	// PublicKeyFile is a PEM file holding the verification key for
	// asymmetric algorithms.
	PublicKeyFile string `yaml:"public_key_file,omitempty" json:"public_key_file,omitempty"`

	// PrivateKeyFile is a PEM file holding the signing key. Required
	// only for issuing tokens with an asymmetric algorithm.
	PrivateKeyFile string `yaml:"private_key_file,omitempty" json:"private_key_file,omitempty"`

	// JWKSURL fetches verification keys from a JWKS endpoint.
	JWKSURL string `yaml:"jwks_url,omitempty" json:"jwks_url,omitempty"`

	// JWKSRefreshInterval is the minimum interval between JWKS
	// refreshes. Zero means DefaultJWKSRefreshInterval.
	JWKSRefreshInterval time.Duration `yaml:"jwks_refresh_interval,omitempty" json:"jwks_refresh_interval,omitempty"`

	// Issuer, when set, must equal the token's iss claim.
	Issuer string `yaml:"issuer,omitempty" json:"issuer,omitempty"`

	// Audience, when set, must appear in the token's aud claim.
	Audience string `yaml:"audience,omitempty" json:"audience,omitempty"`

	// ClockSkew tolerates clock drift when checking temporal claims.
	// Zero means DefaultClockSkew.
	ClockSkew time.Duration `yaml:"clock_skew,omitempty" json:"clock_skew,omitempty"`

	// TokenTTL is the lifetime of issued tokens. Zero means
	// DefaultTokenTTL.
	TokenTTL time.Duration `yaml:"token_ttl,omitempty" json:"token_ttl,omitempty"`

	// RolesClaim overrides the claim holding role names.
	RolesClaim string `yaml:"roles_claim,omitempty" json:"roles_claim,omitempty"`

	// ScopeClaim overrides the claim holding scopes.
	ScopeClaim string `yaml:"scope_claim,omitempty" json:"scope_claim,omitempty"`

	// UsernameClaim overrides the claim holding the login name.
	UsernameClaim string `yaml:"username_claim,omitempty" json:"username_claim,omitempty"`
}

// supportedAlgorithms maps configuration names onto jwa algorithms.
var supportedAlgorithms = map[string]jwa.SignatureAlgorithm{
	"HS256": jwa.HS256,
	"HS384": jwa.HS384,
	"HS512": jwa.HS512,
	"RS256": jwa.RS256,
	"RS384": jwa.RS384,
	"RS512": jwa.RS512,
	"ES256": jwa.ES256,
	"ES384": jwa.ES384,
	"ES512": jwa.ES512,
}

// resolveAlgorithm maps a configured algorithm name onto its jwa value.
func resolveAlgorithm(name string) (jwa.SignatureAlgorithm, error) {
	alg, ok := supportedAlgorithms[name]
	if !ok {
		return "", fmt.Errorf("algorithm %q is not supported", name)
	}
	return alg, nil
}

// SupportedAlgorithm reports whether name is a recognized signature
// algorithm, for configuration validation ahead of validator construction.
func SupportedAlgorithm(name string) bool {
	_, ok := supportedAlgorithms[name]
	return ok
}

// isHMAC reports whether alg is a symmetric HMAC algorithm.
func isHMAC(alg jwa.SignatureAlgorithm) bool {
	switch alg {
	case jwa.HS256, jwa.HS384, jwa.HS512:
		return true
	default:
		return false
	}
}

// clockSkew returns the configured skew or the default.
func (c *Config) clockSkew() time.Duration {
	if c.ClockSkew > 0 {
		return c.ClockSkew
	}
	return DefaultClockSkew
}

// tokenTTL returns the configured issue TTL or the default.
func (c *Config) tokenTTL() time.Duration {
	if c.TokenTTL > 0 {
		return c.TokenTTL
	}
	return DefaultTokenTTL
}

// jwksRefreshInterval returns the configured refresh interval or the default.
func (c *Config) jwksRefreshInterval() time.Duration {
	if c.JWKSRefreshInterval > 0 {
		return c.JWKSRefreshInterval
	}
	return DefaultJWKSRefreshInterval
}

// rolesClaim returns the configured roles claim or the default.
func (c *Config) rolesClaim() string {
	if c.RolesClaim != "" {
		return c.RolesClaim
	}
	return DefaultRolesClaim
}

// scopeClaim returns the configured scope claim or the default.
func (c *Config) scopeClaim() string {
	if c.ScopeClaim != "" {
		return c.ScopeClaim
	}
	return DefaultScopeClaim
}

// usernameClaim returns the configured username claim or the default.
func (c *Config) usernameClaim() string {
	if c.UsernameClaim != "" {
		return c.UsernameClaim
	}
	return DefaultUsernameClaim
}
