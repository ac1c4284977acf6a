package token

import (
	"context"
	"sync"
	"time"
)

// defaultCleanupInterval is how often the in-memory store sweeps
// expired records.
const defaultCleanupInterval = time.Minute

// memoryEntry pairs a record with its storage deadline.
type memoryEntry struct {
	rec      *Record
	deadline time.Time
}

// MemoryStore is a process-local Store for single-instance deployments
// and tests. Tokens do not survive restarts; use the Redis store when
// they must.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry

	stopOnce sync.Once
	stopCh   chan struct{}
}

var _ Store = (*MemoryStore)(nil)

// MemoryOption configures the memory store.
type MemoryOption func(*memoryOptions)

type memoryOptions struct {
	cleanupInterval time.Duration
}

// WithCleanupInterval overrides how often expired records are swept.
func WithCleanupInterval(d time.Duration) MemoryOption {
	return func(o *memoryOptions) {
		if d > 0 {
			o.cleanupInterval = d
		}
	}
}

// NewMemoryStore creates a MemoryStore and starts its sweeper.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	options := memoryOptions{cleanupInterval: defaultCleanupInterval}
	for _, opt := range opts {
		opt(&options)
	}

	s := &MemoryStore{
		entries: make(map[string]memoryEntry),
		stopCh:  make(chan struct{}),
	}
	go s.sweep(options.cleanupInterval)
	return s
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, hash string, rec *Record, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[hash] = memoryEntry{
		rec:      rec.clone(),
		deadline: time.Now().Add(ttl),
	}
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, hash string) (*Record, error) {
	s.mu.RLock()
	entry, ok := s.entries[hash]
	s.mu.RUnlock()

	if !ok || time.Now().After(entry.deadline) {
		return nil, ErrNotFound
	}
	return entry.rec.clone(), nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, hash)
	return nil
}

// Ping implements Store.
func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}

// Close stops the sweeper. Safe to call more than once.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	return nil
}

// Len returns the number of stored records, including not-yet-swept
// expired ones. For tests and diagnostics.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// sweep drops expired records periodically until Close.
func (s *MemoryStore) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for hash, entry := range s.entries {
				if now.After(entry.deadline) {
					delete(s.entries, hash)
				}
			}
			s.mu.Unlock()
		case <-s.stopCh:
			return
		}
	}
}
