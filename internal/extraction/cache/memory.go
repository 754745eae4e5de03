// Package cache stores extractor output so resubmitted documents are not
// sent to the extraction backends twice.
package cache

import (
	"context"
	"maps"
	"sync"
	"time"

	"casework/internal/casefile"
)

type entry struct {
	fields   casefile.Fields
	storedAt time.Time
}

// InMemoryCache is a process-local extraction cache with TTL expiration.
type InMemoryCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	clock   func() time.Time
}

// MemoryOption configures an InMemoryCache.
type MemoryOption func(*InMemoryCache)

// WithClock injects a clock for tests.
func WithClock(clock func() time.Time) MemoryOption {
	return func(c *InMemoryCache) {
		c.clock = clock
	}
}

// NewInMemoryCache creates a new in-memory cache with the specified TTL.
func NewInMemoryCache(ttl time.Duration, opts ...MemoryOption) *InMemoryCache {
	c := &InMemoryCache{
		entries: make(map[string]entry),
		ttl:     ttl,
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns a copy of the cached fields. Expired entries are reported as
// missing and removed.
func (c *InMemoryCache) Get(_ context.Context, key string) (casefile.Fields, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if c.clock().Sub(e.storedAt) >= c.ttl {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false, nil
	}
	return maps.Clone(e.fields), true, nil
}

// Set stores fields under key.
func (c *InMemoryCache) Set(_ context.Context, key string, fields casefile.Fields) error {
	if fields == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{fields: maps.Clone(fields), storedAt: c.clock()}
	return nil
}

// Len returns the number of stored entries, expired or not.
func (c *InMemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
