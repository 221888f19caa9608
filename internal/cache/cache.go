// Package cache provides the short-TTL read-through cache for listing
// collections. The backing store is a generic key-value TTL cache; when it
// is unavailable every read degrades to a miss and callers fall through to
// the record store.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// DefaultTTL matches the listing-collection snapshot lifetime.
const DefaultTTL = 300 * time.Second

// Store is a TTL key-value snapshot cache. Implementations must treat
// backend failures as misses on Get and as no-ops on Put/Invalidate;
// cache trouble never surfaces to callers.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration)
	Invalidate(ctx context.Context, key string)
}

// ListingsKey builds the per-user listing collection scope key.
func ListingsKey(userID string) string {
	return BuildKey("products", userID)
}

// BuildKey joins key parts with the cache key separator.
func BuildKey(parts ...string) string {
	return strings.Join(parts, ":")
}

// Memory is an in-process Store, used when no cache backend is configured
// and as the reference for invalidate-wins semantics: Invalidate and Put
// share one mutex, so an invalidation ordered after a populate always
// leaves the key in a miss state.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// NewMemory creates an empty in-process cache store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if !e.expires.IsZero() && time.Now().After(e.expires) {
		delete(m.entries, key)
		return nil, false
	}
	return e.value, true
}

func (m *Memory) Put(_ context.Context, key string, value []byte, ttl time.Duration) {
	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expires = time.Now().Add(ttl)
	}

	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
}

func (m *Memory) Invalidate(_ context.Context, key string) {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
}
