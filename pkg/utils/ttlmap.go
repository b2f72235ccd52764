package utils

import (
	"sync"
	"time"
)

// TTLMap provides a thread-safe map with expiring entries.
// Every entry shares the same TTL, refreshed on each Set.
type TTLMap[K comparable, V any] struct {
	mu      sync.RWMutex
	data    map[K]V
	expires map[K]time.Time
	ttl     time.Duration
	stop    chan struct{}
	once    sync.Once
}

// DefaultTTL replaces a non-positive TTL given to NewTTLMap.
const DefaultTTL = time.Minute

// NewTTLMap creates a new TTLMap with the specified TTL duration.
// A background goroutine removes expired entries until Close is called.
func NewTTLMap[K comparable, V any](ttl time.Duration) *TTLMap[K, V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	m := &TTLMap[K, V]{
		data:    make(map[K]V),
		expires: make(map[K]time.Time),
		ttl:     ttl,
		stop:    make(chan struct{}),
	}

	go m.cleanup()

	return m
}

// Get retrieves a value from the map.
// Returns the value and whether it exists/is valid.
func (m *TTLMap[K, V]) Get(key K) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, exists := m.data[key]
	if !exists || time.Now().After(m.expires[key]) {
		var zero V
		return zero, false
	}

	return value, true
}

// GetOrCreate returns the live value for key, creating it with create when
// it is missing or expired. The lookup and insert happen under one lock.
func (m *TTLMap[K, V]) GetOrCreate(key K, create func() V) V {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if value, exists := m.data[key]; exists && !now.After(m.expires[key]) {
		m.expires[key] = now.Add(m.ttl)
		return value
	}

	value := create()
	m.data[key] = value
	m.expires[key] = now.Add(m.ttl)

	return value
}

// Set adds or updates a value in the map.
func (m *TTLMap[K, V]) Set(key K, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = value
	m.expires[key] = time.Now().Add(m.ttl)
}

// Delete removes a key from the map.
func (m *TTLMap[K, V]) Delete(key K) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	delete(m.expires, key)
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (m *TTLMap[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.data)
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (m *TTLMap[K, V]) Close() {
	m.once.Do(func() {
		close(m.stop)
	})
}

// cleanup periodically removes expired entries.
func (m *TTLMap[K, V]) cleanup() {
	ticker := time.NewTicker(m.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.mu.Lock()
			now := time.Now()
			for key, expires := range m.expires {
				if now.After(expires) {
					delete(m.data, key)
					delete(m.expires, key)
				}
			}
			m.mu.Unlock()
		}
	}
}
