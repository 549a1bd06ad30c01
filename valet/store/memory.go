package store

import (
	"context"
	"strings"
	"sync"
	"time"
)

// memoryEntry is a stored value with optional expiry.
type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

// expired reports whether the entry is past its expiry at the given instant.
func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Memory is an in-memory KeyValue implementation for single-process
// deployments and tests.
//
// Thread-safe. Expired entries are removed lazily on access; PurgeExpired
// may be called periodically to bound memory growth.
type Memory struct {
	entries map[string]*memoryEntry
	mu      sync.Mutex
}

// NewMemory creates a new in-memory store.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]*memoryEntry),
	}
}

// Put stores value under key.
func (m *Memory) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	entry := &memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = time.Now().UTC().Add(ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry
	return nil
}

// Get returns the value for key, treating expired entries as absent.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.entries[key]
	if !exists {
		return nil, false, nil
	}
	if entry.expired(time.Now().UTC()) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return append([]byte(nil), entry.value...), true, nil
}

// DeleteIfPresent atomically removes key and returns its value.
func (m *Memory) DeleteIfPresent(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.entries[key]
	if !exists {
		return nil, false, nil
	}
	delete(m.entries, key)
	if entry.expired(time.Now().UTC()) {
		return nil, false, nil
	}
	return append([]byte(nil), entry.value...), true, nil
}

// PutIfAbsent stores value only if key is absent (or expired).
func (m *Memory) PutIfAbsent(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, exists := m.entries[key]; exists && !entry.expired(time.Now().UTC()) {
		return false, nil
	}
	entry := &memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = time.Now().UTC().Add(ttl)
	}
	m.entries[key] = entry
	return true, nil
}

// Keys returns all live keys with the given prefix.
func (m *Memory) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	keys := make([]string, 0)
	for key, entry := range m.entries {
		if entry.expired(now) {
			delete(m.entries, key)
			continue
		}
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// PurgeExpired removes all expired entries. Returns the number removed.
func (m *Memory) PurgeExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	count := 0
	for key, entry := range m.entries {
		if entry.expired(now) {
			delete(m.entries, key)
			count++
		}
	}
	return count
}

// Len returns the number of live entries. Useful for tests.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	count := 0
	for _, entry := range m.entries {
		if !entry.expired(now) {
			count++
		}
	}
	return count
}

// Ensure Memory implements KeyValue.
var _ KeyValue = (*Memory)(nil)
