package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/vyrodovalexey/avauthgate/internal/observability"
)

const postgresBackend = "postgres"

// resolveQuery matches usernames case-insensitively in SQL so the
// database collation cannot reintroduce case sensitivity.
const resolveQuery = `
	SELECT id, username, password_hash, roles, active
	FROM users
	WHERE LOWER(username) = LOWER($1)
`

// PostgresConfig configures the PostgreSQL directory backend.
type PostgresConfig struct {
	// DSN is the lib/pq connection string.
	DSN string `yaml:"dsn" json:"dsn"`

	// MaxOpenConns caps the connection pool. Zero means driver default.
	MaxOpenConns int `yaml:"max_open_conns,omitempty" json:"max_open_conns,omitempty"`

	// MaxIdleConns caps idle connections. Zero means driver default.
	MaxIdleConns int `yaml:"max_idle_conns,omitempty" json:"max_idle_conns,omitempty"`

	// ConnMaxLifetime bounds connection reuse.
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime,omitempty" json:"conn_max_lifetime,omitempty"`
}

// PostgresDirectory resolves users from a PostgreSQL users table.
type PostgresDirectory struct {
	db      *sql.DB
	logger  observability.Logger
	metrics *Metrics
}

var _ Directory = (*PostgresDirectory)(nil)

// PostgresOption configures the postgres directory.
type PostgresOption func(*PostgresDirectory)

// WithPostgresLogger sets the logger.
func WithPostgresLogger(logger observability.Logger) PostgresOption {
	return func(d *PostgresDirectory) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithPostgresMetrics sets the metrics collector.
func WithPostgresMetrics(m *Metrics) PostgresOption {
	return func(d *PostgresDirectory) {
		d.metrics = m
	}
}

// NewPostgresDirectory opens a connection pool and verifies it with a
// ping so a bad DSN fails at startup, not on the first login.
func NewPostgresDirectory(ctx context.Context, cfg *PostgresConfig, opts ...PostgresOption) (*PostgresDirectory, error) {
	if cfg == nil || cfg.DSN == "" {
		return nil, fmt.Errorf("directory: postgres dsn is required")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("directory: failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("directory: failed to ping database: %w", err)
	}

	d := NewPostgresDirectoryFromDB(db, opts...)
	d.logger.Info("postgres directory connected")
	return d, nil
}

// NewPostgresDirectoryFromDB wraps an existing pool, for tests.
func NewPostgresDirectoryFromDB(db *sql.DB, opts ...PostgresOption) *PostgresDirectory {
	d := &PostgresDirectory{
		db:     db,
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Resolve implements Directory.
func (d *PostgresDirectory) Resolve(ctx context.Context, username string) (*UserRecord, error) {
	start := time.Now()

	rec := &UserRecord{}
	err := d.db.QueryRowContext(ctx, resolveQuery, username).Scan(
		&rec.ID,
		&rec.Username,
		&rec.PasswordHash,
		pq.Array(&rec.Roles),
		&rec.Active,
	)
	if errors.Is(err, sql.ErrNoRows) {
		d.metrics.RecordLookup(postgresBackend, resultNotFound, time.Since(start))
		return nil, ErrUserNotFound
	}
	if err != nil {
		d.metrics.RecordLookup(postgresBackend, resultError, time.Since(start))
		return nil, fmt.Errorf("directory: failed to resolve user: %w", err)
	}

	d.metrics.RecordLookup(postgresBackend, resultFound, time.Since(start))
	return rec, nil
}

// Ping implements Directory.
func (d *PostgresDirectory) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return d.db.PingContext(ctx)
}

// Close implements Directory.
func (d *PostgresDirectory) Close() error {
	return d.db.Close()
}
