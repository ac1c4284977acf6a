package auth

import "context"

// TokenValidator validates a raw credential and produces the principal
// it represents. Implementations must be safe for concurrent use and
// must honor ctx cancellation when validation involves I/O.
//
// Validate returns a package sentinel (ErrInvalidToken, ErrTokenExpired,
// ErrTokenRevoked, ...) or an error wrapping one, so callers can map the
// failure without knowing the validator's internals. Transient backend
// failures wrap ErrValidatorUnavailable instead of rejecting the
// credential.
type TokenValidator interface {
	// Validate checks the token and returns the authenticated principal.
	Validate(ctx context.Context, token string) (*Principal, error)

	// Name identifies the validator in logs and metrics.
	Name() string
}
