package auth

import (
	"errors"
	"fmt"
)

// Sentinel errors for authentication operations.
var (
	// ErrNoCredentials indicates that the request carried no credentials.
	ErrNoCredentials = errors.New("no credentials provided")

	// ErrMalformedCredentials indicates that credentials were present
	// but could not be parsed.
	ErrMalformedCredentials = errors.New("malformed credentials")

	// ErrInvalidToken indicates that the token failed validation.
	ErrInvalidToken = errors.New("invalid token")

	// ErrInvalidSignature indicates that the token signature is invalid.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrTokenExpired indicates that the token has expired.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenNotYetValid indicates that the token is not yet valid.
	ErrTokenNotYetValid = errors.New("token not yet valid")

	// ErrTokenRevoked indicates that the token has been revoked.
	ErrTokenRevoked = errors.New("token revoked")

	// ErrInvalidIssuer indicates that the token issuer is invalid.
	ErrInvalidIssuer = errors.New("invalid issuer")

	// ErrInvalidAudience indicates that the token audience is invalid.
	ErrInvalidAudience = errors.New("invalid audience")

	// ErrMissingClaim indicates that a required claim is missing.
	ErrMissingClaim = errors.New("missing required claim")

	// ErrUnsupportedAlgorithm indicates an unsupported signing algorithm.
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")

	// ErrKeyNotFound indicates that no verification key could be resolved.
	ErrKeyNotFound = errors.New("verification key not found")

	// ErrValidatorUnavailable indicates that a validator dependency
	// (token store, introspection endpoint) was unreachable.
	ErrValidatorUnavailable = errors.New("validator unavailable")

	// ErrInvalidCredentials indicates that a username/password pair was
	// rejected. Deliberately silent about which half was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ValidationError wraps a validation failure with the name of the
// validator that produced it.
type ValidationError struct {
	// Validator is the name of the validator that rejected the credential.
	Validator string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Validator == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Validator, e.Err)
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a ValidationError for the given validator.
func NewValidationError(validator string, err error) *ValidationError {
	return &ValidationError{Validator: validator, Err: err}
}

// IsCredentialRejection reports whether err represents a definitive
// rejection of the credential, as opposed to a transient validator
// failure. Rejections are safe to surface as 401; transient failures
// should not blame the caller.
func IsCredentialRejection(err error) bool {
	switch {
	case errors.Is(err, ErrValidatorUnavailable):
		return false
	case err == nil:
		return false
	default:
		return true
	}
}
