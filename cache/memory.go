// Package cache provides a process-local dream.Cache and the codec the
// client uses to store query rows in any dream.Cache.
package cache

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	dream "github.com/rvohealth/dream-sub006"
)

// Memory is an in-memory dream.Cache with LRU eviction and per-entry
// expiry. It is safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	lru     *simplelru.LRU[string, entry]
	maxSize int
	now     func() time.Time
	stats   Stats
}

type entry struct {
	value   []byte
	expires time.Time
}

// Stats counts the cache traffic.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Expired   int64
	Size      int
}

// Option configures a Memory cache.
type Option func(*Memory)

// WithMaxSize bounds the number of entries. Zero means no bound.
func WithMaxSize(n int) Option {
	return func(m *Memory) { m.maxSize = n }
}

// WithClock sets the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(m *Memory) { m.now = now }
}

// NewMemory returns an empty cache.
func NewMemory(opts ...Option) *Memory {
	m := &Memory{now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	size := m.maxSize
	if size <= 0 {
		size = math.MaxInt32
	}
	// NewLRU only fails for a non-positive size.
	m.lru, _ = simplelru.NewLRU[string, entry](size, nil)
	return m
}

// Get implements dream.Cache.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.lru.Get(key)
	if !ok {
		m.stats.Misses++
		return nil, nil
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		m.lru.Remove(key)
		m.stats.Misses++
		m.stats.Expired++
		return nil, nil
	}
	m.stats.Hits++
	return append([]byte(nil), e.value...), nil
}

// Set implements dream.Cache.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var expires time.Time
	if ttl > 0 {
		expires = m.now().Add(ttl)
	}
	if m.lru.Add(key, entry{value: append([]byte(nil), value...), expires: expires}) {
		m.stats.Evictions++
	}
	return nil
}

// Delete implements dream.Cache.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lru.Remove(key)
	return nil
}

// DeletePrefix implements dream.Cache.
func (m *Memory) DeletePrefix(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range m.lru.Keys() {
		if strings.HasPrefix(key, prefix) {
			m.lru.Remove(key)
		}
	}
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lru.Len()
}

// Stats returns a snapshot of the cache counters.
func (m *Memory) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats
	s.Size = m.lru.Len()
	return s
}

var _ dream.Cache = (*Memory)(nil)
