package auth

import (
	"context"
	"time"
)

// Method identifies how a principal was authenticated.
type Method string

const (
	// MethodJWT indicates validation of a signed JWT.
	MethodJWT Method = "jwt"

	// MethodOpaque indicates lookup of an opaque token in the token store.
	MethodOpaque Method = "opaque"

	// MethodIntrospection indicates validation via a remote OAuth2
	// token introspection endpoint.
	MethodIntrospection Method = "introspection"

	// MethodPassword indicates a direct username/password login.
	MethodPassword Method = "password"
)

// Principal is the authenticated identity attached to a single request.
// A nil Principal means the request is anonymous. Principals are built
// once per request from the validated credential and never mutated; any
// component that needs to hold one beyond the request should Clone it.
type Principal struct {
	// Subject is the stable identifier of the authenticated party.
	Subject string `json:"sub"`

	// Username is the human-readable login name, when the credential
	// carries one. May equal Subject.
	Username string `json:"username,omitempty"`

	// Roles contains the role names granted to the principal.
	Roles []string `json:"roles,omitempty"`

	// Scopes contains the OAuth2 scopes granted to the credential.
	Scopes []string `json:"scopes,omitempty"`

	// AuthMethod records which validator produced the principal.
	AuthMethod Method `json:"auth_method"`

	// TokenID is the unique identifier of the credential (jti), if any.
	TokenID string `json:"token_id,omitempty"`

	// IssuedAt is when the credential was issued.
	IssuedAt time.Time `json:"iat,omitempty"`

	// ExpiresAt is when the credential expires. Zero means no expiry.
	ExpiresAt time.Time `json:"exp,omitempty"`

	// Claims contains additional claims carried by the credential.
	Claims map[string]interface{} `json:"claims,omitempty"`
}

// Expired reports whether the principal's credential is past its expiry.
// A nil principal and a zero ExpiresAt are never expired.
func (p *Principal) Expired() bool {
	if p == nil || p.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(p.ExpiresAt)
}

// Authenticated reports whether the principal represents a live
// authenticated identity: non-nil, with a subject, and not expired.
func (p *Principal) Authenticated() bool {
	return p != nil && p.Subject != "" && !p.Expired()
}

// HasRole reports whether the principal carries the given role.
func (p *Principal) HasRole(role string) bool {
	if p == nil {
		return false
	}
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the principal carries at least one of the
// given roles. An empty argument list reports false.
func (p *Principal) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if p.HasRole(role) {
			return true
		}
	}
	return false
}

// HasScope reports whether the principal carries the given scope.
func (p *Principal) HasScope(scope string) bool {
	if p == nil {
		return false
	}
	for _, s := range p.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the principal. Handlers spawning
// background work must clone rather than share the request principal.
func (p *Principal) Clone() *Principal {
	if p == nil {
		return nil
	}
	cp := *p
	if p.Roles != nil {
		cp.Roles = append([]string(nil), p.Roles...)
	}
	if p.Scopes != nil {
		cp.Scopes = append([]string(nil), p.Scopes...)
	}
	if p.Claims != nil {
		cp.Claims = make(map[string]interface{}, len(p.Claims))
		for k, v := range p.Claims {
			cp.Claims[k] = v
		}
	}
	return &cp
}

// contextKey is an unexported type for context keys defined in this package.
type contextKey int

const (
	principalContextKey contextKey = iota
	authErrorContextKey
)

// ContextWithPrincipal returns a copy of ctx carrying the principal.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// PrincipalFromContext extracts the principal from ctx. The second
// return value is false when the request is anonymous.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalContextKey).(*Principal)
	if !ok || p == nil {
		return nil, false
	}
	return p, true
}

// MustPrincipalFromContext extracts the principal from ctx and panics
// when none is present. Only for handlers mounted behind a rule that
// requires authentication.
func MustPrincipalFromContext(ctx context.Context) *Principal {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		panic("auth: no principal in context")
	}
	return p
}

// ContextWithAuthError returns a copy of ctx recording why
// authentication failed. Set in lenient mode so that later stages can
// distinguish a request that never carried credentials from one whose
// credentials were rejected.
func ContextWithAuthError(ctx context.Context, err error) context.Context {
	return context.WithValue(ctx, authErrorContextKey, err)
}

// AuthErrorFromContext returns the recorded authentication failure, or
// nil when authentication succeeded or was never attempted.
func AuthErrorFromContext(ctx context.Context) error {
	err, _ := ctx.Value(authErrorContextKey).(error)
	return err
}
