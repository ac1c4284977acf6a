package directory

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"
)

// Sentinel errors for directory operations.
var (
	// ErrUserNotFound indicates that no record exists for the username.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserInactive indicates that the user exists but may not log in.
	ErrUserInactive = errors.New("user inactive")

	// ErrInvalidCredentials indicates a rejected username/password pair.
	// Deliberately silent about which half was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// UserRecord is a directory entry. PasswordHash is always a bcrypt hash;
// the directory never sees plaintext passwords at rest.
type UserRecord struct {
	// ID is the stable subject identifier.
	ID string `yaml:"id" json:"id"`

	// Username is the login name, unique under case folding.
	Username string `yaml:"username" json:"username"`

	// PasswordHash is the bcrypt hash of the password.
	PasswordHash string `yaml:"password_hash" json:"-"`

	// Roles are granted role names.
	Roles []string `yaml:"roles,omitempty" json:"roles,omitempty"`

	// Active gates login. Inactive users resolve but cannot authenticate.
	Active bool `yaml:"active" json:"active"`
}

// Clone returns a deep copy.
func (u *UserRecord) Clone() *UserRecord {
	if u == nil {
		return nil
	}
	out := *u
	out.Roles = append([]string(nil), u.Roles...)
	return &out
}

// Directory resolves usernames to user records.
type Directory interface {
	// Resolve returns the record for username, comparing
	// case-insensitively. Returns ErrUserNotFound when absent.
	Resolve(ctx context.Context, username string) (*UserRecord, error)

	// Ping reports backend health, for readiness checks.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// foldUsername normalizes a username for caseless comparison. A fresh
// Caser per call: cases.Caser is not safe for concurrent use.
func foldUsername(username string) string {
	return cases.Fold().String(username)
}

// HashPassword produces a bcrypt hash for seeding records.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("directory: failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches the bcrypt hash.
func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// dummyHash is compared against when the user does not exist, so the
// unknown-user path costs the same as a real bcrypt comparison.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// Authenticate resolves username and verifies password. Unknown users
// and wrong passwords both return ErrInvalidCredentials; inactive users
// return ErrUserInactive.
func Authenticate(ctx context.Context, d Directory, username, password string) (*UserRecord, error) {
	rec, err := d.Resolve(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !rec.Active {
		return nil, ErrUserInactive
	}
	if !VerifyPassword(rec.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return rec, nil
}
