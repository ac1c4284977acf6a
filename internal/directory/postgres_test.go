package directory

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDirectory(t *testing.T) (*PostgresDirectory, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	dir := NewPostgresDirectoryFromDB(db)
	t.Cleanup(func() { _ = dir.Close() })

	return dir, mock
}

func userColumns() []string {
	return []string{"id", "username", "password_hash", "roles", "active"}
}

func TestPostgresDirectory_Resolve(t *testing.T) {
	t.Parallel()

	dir, mock := newMockDirectory(t)

	mock.ExpectQuery(regexp.QuoteMeta(resolveQuery)).
		WithArgs("Alice").
		WillReturnRows(sqlmock.NewRows(userColumns()).
			AddRow("u-1", "alice", "$2a$10$hash", "{USER,ADMIN}", true))

	rec, err := dir.Resolve(context.Background(), "Alice")
	require.NoError(t, err)
	assert.Equal(t, "u-1", rec.ID)
	assert.Equal(t, "alice", rec.Username)
	assert.Equal(t, "$2a$10$hash", rec.PasswordHash)
	assert.Equal(t, []string{"USER", "ADMIN"}, rec.Roles)
	assert.True(t, rec.Active)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDirectory_ResolveNotFound(t *testing.T) {
	t.Parallel()

	dir, mock := newMockDirectory(t)

	mock.ExpectQuery(regexp.QuoteMeta(resolveQuery)).
		WithArgs("mallory").
		WillReturnRows(sqlmock.NewRows(userColumns()))

	_, err := dir.Resolve(context.Background(), "mallory")
	assert.ErrorIs(t, err, ErrUserNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDirectory_ResolveQueryError(t *testing.T) {
	t.Parallel()

	dir, mock := newMockDirectory(t)

	mock.ExpectQuery(regexp.QuoteMeta(resolveQuery)).
		WithArgs("alice").
		WillReturnError(errors.New("connection reset"))

	_, err := dir.Resolve(context.Background(), "alice")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUserNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDirectory_ResolveEmptyRoles(t *testing.T) {
	t.Parallel()

	dir, mock := newMockDirectory(t)

	mock.ExpectQuery(regexp.QuoteMeta(resolveQuery)).
		WithArgs("bob").
		WillReturnRows(sqlmock.NewRows(userColumns()).
			AddRow("u-2", "bob", "$2a$10$hash", "{}", false))

	rec, err := dir.Resolve(context.Background(), "bob")
	require.NoError(t, err)
	assert.Empty(t, rec.Roles)
	assert.False(t, rec.Active)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDirectory_Ping(t *testing.T) {
	t.Parallel()

	dir, mock := newMockDirectory(t)

	mock.ExpectPing()
	assert.NoError(t, dir.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("down"))
	assert.Error(t, dir.Ping(context.Background()))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewPostgresDirectory_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewPostgresDirectory(context.Background(), nil)
	assert.Error(t, err)

	_, err = NewPostgresDirectory(context.Background(), &PostgresConfig{})
	assert.Error(t, err)
}
