package token

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avauthgate/internal/auth"
)

// failingStore returns a fixed error from every operation.
type failingStore struct {
	err error
}

func (f *failingStore) Put(context.Context, string, *Record, time.Duration) error {
	return f.err
}

func (f *failingStore) Get(context.Context, string) (*Record, error) { return nil, f.err }
func (f *failingStore) Delete(context.Context, string) error         { return f.err }
func (f *failingStore) Ping(context.Context) error                   { return f.err }
func (f *failingStore) Close() error                                 { return nil }

func newTestManager(t *testing.T, opts ...ManagerOption) *Manager {
	t.Helper()

	store := NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	return NewManager(store, opts...)
}

func TestManager_IssueValidate(t *testing.T) {
	t.Parallel()

	mgr := newTestManager(t)
	ctx := context.Background()

	raw, rec, err := mgr.Issue(ctx, "alice", "alice", []string{"USER", "ADMIN"}, []string{"read"})
	require.NoError(t, err)
	require.NotEmpty(t, raw)
	require.NotNil(t, rec)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "alice", rec.Subject)
	assert.WithinDuration(t, time.Now().Add(DefaultTTL), rec.ExpiresAt, 5*time.Second)

	p, err := mgr.Validate(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Subject)
	assert.Equal(t, []string{"USER", "ADMIN"}, p.Roles)
	assert.Equal(t, []string{"read"}, p.Scopes)
	assert.Equal(t, auth.MethodOpaque, p.AuthMethod)
	assert.Equal(t, rec.ID, p.TokenID)
	assert.True(t, p.Authenticated())
}

func TestManager_IssueUniqueTokens(t *testing.T) {
	t.Parallel()

	mgr := newTestManager(t)
	ctx := context.Background()

	raw1, rec1, err := mgr.Issue(ctx, "alice", "", nil, nil)
	require.NoError(t, err)
	raw2, rec2, err := mgr.Issue(ctx, "alice", "", nil, nil)
	require.NoError(t, err)

	assert.NotEqual(t, raw1, raw2)
	assert.NotEqual(t, rec1.ID, rec2.ID)
}

func TestManager_IssueRequiresSubject(t *testing.T) {
	t.Parallel()

	mgr := newTestManager(t)

	_, _, err := mgr.Issue(context.Background(), "", "", nil, nil)
	assert.Error(t, err)
}

func TestManager_ValidateUnknownToken(t *testing.T) {
	t.Parallel()

	mgr := newTestManager(t)

	_, err := mgr.Validate(context.Background(), "never-issued")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
	assert.True(t, auth.IsCredentialRejection(err))
}

func TestManager_ValidateExpiredToken(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })

	// Seed an already-expired record directly; the store deadline is
	// still open so Get returns it and the manager must reject it.
	rec := testRecord("alice")
	rec.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, store.Put(context.Background(), Hash("stale"), rec, time.Hour))

	mgr := NewManager(store)
	_, err := mgr.Validate(context.Background(), "stale")
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
}

func TestManager_ValidateStoreUnavailable(t *testing.T) {
	t.Parallel()

	mgr := NewManager(&failingStore{err: errors.New("connection refused")})

	_, err := mgr.Validate(context.Background(), "whatever")
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrValidatorUnavailable)
	assert.False(t, auth.IsCredentialRejection(err))
}

func TestManager_Revoke(t *testing.T) {
	t.Parallel()

	mgr := newTestManager(t)
	ctx := context.Background()

	raw, _, err := mgr.Issue(ctx, "alice", "alice", nil, nil)
	require.NoError(t, err)

	require.NoError(t, mgr.Revoke(ctx, raw))

	_, err = mgr.Validate(ctx, raw)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	// Revoking an unknown token does not leak existence.
	assert.NoError(t, mgr.Revoke(ctx, "never-issued"))
}

func TestManager_WithTTL(t *testing.T) {
	t.Parallel()

	mgr := newTestManager(t, WithTTL(time.Minute))

	_, rec, err := mgr.Issue(context.Background(), "alice", "", nil, nil)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), rec.ExpiresAt, 5*time.Second)
}

func TestManager_Name(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "opaque", newTestManager(t).Name())
}

func TestManager_StoreKeepsOnlyHashes(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	mgr := NewManager(store)

	ctx := context.Background()
	raw, _, err := mgr.Issue(ctx, "alice", "", nil, nil)
	require.NoError(t, err)

	// The raw token is not a usable store key.
	_, err = store.Get(ctx, raw)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Get(ctx, Hash(raw))
	assert.NoError(t, err)
}

func TestNewManager_NilStore(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { NewManager(nil) })
}
