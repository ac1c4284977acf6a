package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vyrodovalexey/avauthgate/internal/observability"
)

// DefaultKeyPrefix namespaces token keys inside a shared Redis.
const DefaultKeyPrefix = "authgate:token:"

// RedisConfig configures the Redis-backed token store.
type RedisConfig struct {
	// Address is the host:port of the Redis server.
	Address string `yaml:"address" json:"address"`

	// Password authenticates to Redis, when required.
	Password string `yaml:"password,omitempty" json:"password,omitempty"`

	// DB selects the Redis logical database.
	DB int `yaml:"db,omitempty" json:"db,omitempty"`

	// KeyPrefix namespaces token keys. Empty means DefaultKeyPrefix.
	KeyPrefix string `yaml:"key_prefix,omitempty" json:"key_prefix,omitempty"`

	// DialTimeout bounds connection establishment.
	DialTimeout time.Duration `yaml:"dial_timeout,omitempty" json:"dial_timeout,omitempty"`

	// ReadTimeout bounds read commands.
	ReadTimeout time.Duration `yaml:"read_timeout,omitempty" json:"read_timeout,omitempty"`

	// WriteTimeout bounds write commands.
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty" json:"write_timeout,omitempty"`

	// PoolSize caps the connection pool.
	PoolSize int `yaml:"pool_size,omitempty" json:"pool_size,omitempty"`
}

// RedisStore is a Redis-backed Store. Records are stored as JSON with a
// server-side TTL, so expiry needs no sweeper and revocation is visible
// to every gateway instance at once.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger observability.Logger
}

var _ Store = (*RedisStore)(nil)

// RedisOption configures the Redis store.
type RedisOption func(*RedisStore)

// WithRedisLogger sets the logger.
func WithRedisLogger(logger observability.Logger) RedisOption {
	return func(s *RedisStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg *RedisConfig, opts ...RedisOption) (*RedisStore, error) {
	if cfg == nil || cfg.Address == "" {
		return nil, fmt.Errorf("token: redis address is required")
	}

	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.DialTimeout > 0 {
		options.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		options.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		options.WriteTimeout = cfg.WriteTimeout
	}
	if cfg.PoolSize > 0 {
		options.PoolSize = cfg.PoolSize
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	s := &RedisStore{
		client: redis.NewClient(options),
		prefix: prefix,
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.client.Ping(ctx).Err(); err != nil {
		_ = s.client.Close()
		return nil, fmt.Errorf("token: redis ping failed: %w", err)
	}

	s.logger.Info("redis token store connected",
		observability.String("address", cfg.Address),
		observability.Int("db", cfg.DB),
	)
	return s, nil
}

// NewRedisStoreFromClient wraps an existing client, for tests.
func NewRedisStoreFromClient(client *redis.Client, prefix string, opts ...RedisOption) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	s := &RedisStore{
		client: client,
		prefix: prefix,
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// key returns the namespaced Redis key for a token hash.
func (s *RedisStore) key(hash string) string {
	return s.prefix + hash
}

// Put implements Store.
func (s *RedisStore) Put(ctx context.Context, hash string, rec *Record, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("token: failed to encode record: %w", err)
	}
	if err := s.client.Set(ctx, s.key(hash), data, ttl).Err(); err != nil {
		return fmt.Errorf("token: redis set failed: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, hash string) (*Record, error) {
	data, err := s.client.Get(ctx, s.key(hash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("token: redis get failed: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("token: failed to decode record: %w", err)
	}
	return &rec, nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, hash string) error {
	if err := s.client.Del(ctx, s.key(hash)).Err(); err != nil {
		return fmt.Errorf("token: redis delete failed: %w", err)
	}
	return nil
}

// Ping implements Store.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
