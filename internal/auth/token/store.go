package token

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// ErrNotFound is returned by Store.Get when no live record exists for
// the hash. Callers cannot distinguish never-issued, expired, and
// revoked tokens, which is deliberate.
var ErrNotFound = errors.New("token not found")

// Record is the stored server-side state for an issued opaque token.
type Record struct {
	// ID is the unique identifier of the token grant.
	ID string `json:"id"`

	// Subject is the authenticated subject the token represents.
	Subject string `json:"subject"`

	// Username is the login name, when known.
	Username string `json:"username,omitempty"`

	// Roles are the role names granted to the subject.
	Roles []string `json:"roles,omitempty"`

	// Scopes are the scopes granted to the token.
	Scopes []string `json:"scopes,omitempty"`

	// IssuedAt is when the token was issued.
	IssuedAt time.Time `json:"issued_at"`

	// ExpiresAt is when the token expires.
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the record is past its expiry.
func (r *Record) Expired() bool {
	return !r.ExpiresAt.IsZero() && time.Now().After(r.ExpiresAt)
}

// clone returns a copy so store internals never alias caller data.
func (r *Record) clone() *Record {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Roles = append([]string(nil), r.Roles...)
	cp.Scopes = append([]string(nil), r.Scopes...)
	return &cp
}

// Hash returns the storage key for a raw token: lowercase hex SHA-256.
func Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Store persists token records keyed by token hash. Implementations
// must be safe for concurrent use.
type Store interface {
	// Put stores rec under hash for at most ttl.
	Put(ctx context.Context, hash string, rec *Record, ttl time.Duration) error

	// Get returns the live record stored under hash, or ErrNotFound.
	Get(ctx context.Context, hash string) (*Record, error)

	// Delete removes the record stored under hash. Deleting an absent
	// record is not an error.
	Delete(ctx context.Context, hash string) error

	// Ping verifies connectivity to the backing store.
	Ping(ctx context.Context) error

	// Close releases store resources.
	Close() error
}
