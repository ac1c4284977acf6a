package directory

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const memoryBackend = "memory"

// MemoryDirectory is an in-memory Directory keyed by case-folded
// username. Suitable for small static user sets seeded from
// configuration.
type MemoryDirectory struct {
	mu      sync.RWMutex
	users   map[string]*UserRecord
	metrics *Metrics
}

var _ Directory = (*MemoryDirectory)(nil)

// MemoryOption configures the memory directory.
type MemoryOption func(*MemoryDirectory)

// WithMemoryMetrics sets the metrics collector.
func WithMemoryMetrics(m *Metrics) MemoryOption {
	return func(d *MemoryDirectory) {
		d.metrics = m
	}
}

// NewMemoryDirectory creates a directory seeded with users. Usernames
// that collide under case folding are rejected.
func NewMemoryDirectory(users []*UserRecord, opts ...MemoryOption) (*MemoryDirectory, error) {
	d := &MemoryDirectory{
		users: make(map[string]*UserRecord, len(users)),
	}
	for _, opt := range opts {
		opt(d)
	}

	for _, u := range users {
		if err := d.put(u); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// put validates and stores a record. Caller holds no lock during
// construction; Upsert takes it.
func (d *MemoryDirectory) put(u *UserRecord) error {
	if u == nil || u.Username == "" {
		return fmt.Errorf("directory: user record requires a username")
	}
	key := foldUsername(u.Username)
	if _, exists := d.users[key]; exists {
		return fmt.Errorf("directory: duplicate username %q", u.Username)
	}
	d.users[key] = u.Clone()
	return nil
}

// Resolve implements Directory.
func (d *MemoryDirectory) Resolve(_ context.Context, username string) (*UserRecord, error) {
	start := time.Now()

	d.mu.RLock()
	rec, ok := d.users[foldUsername(username)]
	d.mu.RUnlock()

	if !ok {
		d.metrics.RecordLookup(memoryBackend, resultNotFound, time.Since(start))
		return nil, ErrUserNotFound
	}
	d.metrics.RecordLookup(memoryBackend, resultFound, time.Since(start))
	return rec.Clone(), nil
}

// Upsert adds or replaces a record. Used when configuration reloads.
func (d *MemoryDirectory) Upsert(u *UserRecord) error {
	if u == nil || u.Username == "" {
		return fmt.Errorf("directory: user record requires a username")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[foldUsername(u.Username)] = u.Clone()
	return nil
}

// Len returns the number of records.
func (d *MemoryDirectory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.users)
}

// Ping implements Directory.
func (d *MemoryDirectory) Ping(_ context.Context) error {
	return nil
}

// Close implements Directory.
func (d *MemoryDirectory) Close() error {
	return nil
}
