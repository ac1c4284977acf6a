package jwt

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// IssueRequest carries the identity to embed in an issued token.
type IssueRequest struct {
	// Subject becomes the sub claim.
	Subject string

	// Username becomes the configured username claim.
	Username string

	// Roles becomes the configured roles claim.
	Roles []string

	// Scopes are joined into the configured scope claim.
	Scopes []string
}

// Signer issues signed JWTs, typically on behalf of the login endpoint.
type Signer struct {
	cfg *Config
	alg jwa.SignatureAlgorithm
	key jwk.Key
}

// NewSigner creates a Signer from cfg. HMAC algorithms sign with the
// shared secret; asymmetric algorithms require PrivateKeyFile.
func NewSigner(cfg *Config) (*Signer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("jwt: config is required")
	}

	alg, err := resolveAlgorithm(cfg.Algorithm)
	if err != nil {
		return nil, fmt.Errorf("jwt: %w", err)
	}

	var key jwk.Key
	if isHMAC(alg) {
		key, err = hmacKey(cfg.Secret)
	} else {
		if cfg.PrivateKeyFile == "" {
			return nil, fmt.Errorf("jwt: signing with %s requires private_key_file", cfg.Algorithm)
		}
		key, err = loadPEMKey(cfg.PrivateKeyFile)
	}
	if err != nil {
		return nil, fmt.Errorf("jwt: %w", err)
	}

	return &Signer{cfg: cfg, alg: alg, key: key}, nil
}

// Issue builds and signs a token for req. It returns the compact
// serialized token and its expiry.
func (s *Signer) Issue(req IssueRequest) (string, time.Time, error) {
	if req.Subject == "" {
		return "", time.Time{}, fmt.Errorf("jwt: issue requires a subject")
	}

	now := time.Now()
	expiresAt := now.Add(s.cfg.tokenTTL())

	builder := jwt.NewBuilder().
		Subject(req.Subject).
		IssuedAt(now).
		Expiration(expiresAt).
		JwtID(uuid.NewString())

	if s.cfg.Issuer != "" {
		builder = builder.Issuer(s.cfg.Issuer)
	}
	if s.cfg.Audience != "" {
		builder = builder.Audience([]string{s.cfg.Audience})
	}
	if req.Username != "" {
		builder = builder.Claim(s.cfg.usernameClaim(), req.Username)
	}
	if len(req.Roles) > 0 {
		builder = builder.Claim(s.cfg.rolesClaim(), req.Roles)
	}
	if len(req.Scopes) > 0 {
		builder = builder.Claim(s.cfg.scopeClaim(), strings.Join(req.Scopes, " "))
	}

	tok, err := builder.Build()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwt: failed to build token: %w", err)
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(s.alg, s.key))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwt: failed to sign token: %w", err)
	}

	return string(signed), expiresAt, nil
}
