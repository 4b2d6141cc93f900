package agent

import (
	"context"
	"sync"
	"time"
)

type Cache[S any] interface {
	Set(ctx context.Context, key string, val S) error
	Get(ctx context.Context, key string) (S, bool, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

type cacheEntry[S any] struct {
	val     S
	expires time.Time
}

// MemoryCache is a process-local Cache. With a positive ttl an entry expires
// ttl after its last Set; expired entries are dropped on access and swept at
// most once per ttl on write.
type MemoryCache[S any] struct {
	mu        sync.RWMutex
	m         map[string]cacheEntry[S]
	ttl       time.Duration
	now       func() time.Time
	lastSweep time.Time
}

func NewMemoryCache[S any](ttl time.Duration) *MemoryCache[S] {
	return &MemoryCache[S]{
		m:   map[string]cacheEntry[S]{},
		ttl: ttl,
		now: time.Now,
	}
}

func (m *MemoryCache[S]) Set(ctx context.Context, key string, val S) error {
	now := m.now()
	entry := cacheEntry[S]{val: val}
	if m.ttl > 0 {
		entry.expires = now.Add(m.ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ttl > 0 && now.Sub(m.lastSweep) >= m.ttl {
		for k, e := range m.m {
			if m.expiredAt(e, now) {
				delete(m.m, k)
			}
		}
		m.lastSweep = now
	}
	m.m[key] = entry
	return nil
}

func (m *MemoryCache[S]) Get(ctx context.Context, key string) (S, bool, error) {
	m.mu.RLock()
	entry, ok := m.m[key]
	m.mu.RUnlock()
	if ok && m.expiredAt(entry, m.now()) {
		m.deleteExpired(key)
		ok = false
	}
	if !ok {
		var zero S
		return zero, false, nil
	}
	return entry.val, true, nil
}

func (m *MemoryCache[S]) Del(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.m, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache[S]) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := m.Get(ctx, key)
	return ok, err
}

// deleteExpired removes key only if it is still expired under the write lock,
// so an entry rewritten after the read survives.
func (m *MemoryCache[S]) deleteExpired(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.m[key]
	if !ok || !m.expiredAt(entry, m.now()) {
		return false
	}
	delete(m.m, key)
	return true
}

func (m *MemoryCache[S]) expiredAt(entry cacheEntry[S], now time.Time) bool {
	return !entry.expires.IsZero() && !now.Before(entry.expires)
}
