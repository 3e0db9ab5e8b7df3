package cache

import (
	"context"
	"sync"
	"time"
)

// Cache is a TTL key/value store used to short-circuit repeated fetch and
// search calls. Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Put(ctx context.Context, key, value string, ttl time.Duration)
}

type entry struct {
	value     string
	expiresAt time.Time
	storedAt  time.Time
}

// Memory is a bounded in-memory TTL cache. When full, the stalest entry is
// dropped to make room.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
	max     int
}

// NewMemory creates a memory cache holding at most max entries.
func NewMemory(max int) *Memory {
	if max <= 0 {
		max = 512
	}
	return &Memory{entries: make(map[string]entry), max: max}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return "", false
	}
	if time.Now().After(e.expiresAt) {
		delete(m.entries, key)
		return "", false
	}
	return e.value, true
}

func (m *Memory) Put(_ context.Context, key, value string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[key]; !exists && len(m.entries) >= m.max {
		m.evictStalest(now)
	}
	m.entries[key] = entry{value: value, expiresAt: now.Add(ttl), storedAt: now}
}

// evictStalest removes the expired entries first, then the oldest one if
// still over capacity. Caller holds the lock.
func (m *Memory) evictStalest(now time.Time) {
	var oldestKey string
	var oldestAt time.Time
	for k, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, k)
			continue
		}
		if oldestKey == "" || e.storedAt.Before(oldestAt) {
			oldestKey = k
			oldestAt = e.storedAt
		}
	}
	if len(m.entries) >= m.max && oldestKey != "" {
		delete(m.entries, oldestKey)
	}
}

// Len reports the current entry count.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
