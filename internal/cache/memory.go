package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robalyx/roprofile/internal/types"
	"go.uber.org/zap"
)

// BackendMemory is the backend name for the in-process cache.
const BackendMemory = "memory"

type memoryEntry struct {
	profile   *types.Profile
	expiresAt time.Time
}

// MemoryOption configures a Memory cache.
type MemoryOption func(*Memory)

// WithClock overrides the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

// WithSweepInterval enables a background goroutine evicting expired entries.
func WithSweepInterval(interval time.Duration) MemoryOption {
	return func(m *Memory) {
		m.sweepInterval = interval
	}
}

// Memory is an in-process cache. Expired entries are evicted on read and,
// if a sweep interval is set, periodically in the background.
type Memory struct {
	entries       map[string]memoryEntry
	mu            sync.Mutex
	now           func() time.Time
	sweepInterval time.Duration
	hits          atomic.Uint64
	misses        atomic.Uint64
	stop          chan struct{}
	stopOnce      sync.Once
	logger        *zap.Logger
}

// NewMemory creates an empty in-process cache.
func NewMemory(logger *zap.Logger, opts ...MemoryOption) *Memory {
	m := &Memory{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
		stop:    make(chan struct{}),
		logger:  logger.Named("memory_cache"),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.sweepInterval > 0 {
		go m.sweep()
	}

	return m
}

// Get returns the entry for key if it has not expired. A stale entry is removed.
func (m *Memory) Get(_ context.Context, key string) (*types.Profile, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		m.misses.Add(1)
		return nil, false
	}

	if m.now().After(entry.expiresAt) {
		delete(m.entries, key)
		m.misses.Add(1)
		return nil, false
	}

	m.hits.Add(1)
	return cloneProfile(entry.profile), true
}

// Set stores value under key, replacing any existing entry.
func (m *Memory) Set(_ context.Context, key string, value *types.Profile, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = memoryEntry{
		profile:   cloneProfile(value),
		expiresAt: m.now().Add(ttl),
	}
	return nil
}

// Delete removes key and reports whether it was present.
func (m *Memory) Delete(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.entries[key]
	delete(m.entries, key)
	return ok, nil
}

// Clear removes every entry and returns how many there were.
func (m *Memory) Clear(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.entries)
	m.entries = make(map[string]memoryEntry)
	return n, nil
}

// Keys lists stored keys, including expired entries not yet evicted.
func (m *Memory) Keys(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.entries))
	for key := range m.entries {
		keys = append(keys, key)
	}
	return keys, nil
}

// Stats reports entry counts and hit ratios.
func (m *Memory) Stats(_ context.Context) (Stats, error) {
	m.mu.Lock()
	entries := len(m.entries)
	m.mu.Unlock()

	return Stats{
		Backend: BackendMemory,
		Entries: entries,
		Hits:    m.hits.Load(),
		Misses:  m.misses.Load(),
	}, nil
}

// Close stops the background sweeper.
func (m *Memory) Close() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})
}

// sweep periodically evicts expired entries until Close is called.
func (m *Memory) sweep() {
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := m.evictExpired(); removed > 0 {
				m.logger.Debug("Evicted expired entries", zap.Int("removed", removed))
			}
		case <-m.stop:
			return
		}
	}
}

func (m *Memory) evictExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for key, entry := range m.entries {
		if now.After(entry.expiresAt) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}
