package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultMaxEntries bounds the in-process cache when no size is configured.
const DefaultMaxEntries = 1024

type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryProvider is a size-bounded in-process cache backed by an expirable LRU.
// The LRU ttl caps every entry's lifetime and expired entries are purged in the
// background. A shorter per-call ttl is honoured on read.
type MemoryProvider struct {
	lru *expirable.LRU[string, entry]
	now func() time.Time
}

// NewMemoryProvider creates an empty cache holding at most maxEntries values for
// at most ttl. Non-positive arguments fall back to DefaultMaxEntries and no
// lifetime cap.
func NewMemoryProvider(maxEntries int, ttl time.Duration) *MemoryProvider {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &MemoryProvider{
		lru: expirable.NewLRU[string, entry](maxEntries, nil, ttl),
		now: time.Now,
	}
}

// Get retrieves a value if present and not expired.
func (c *MemoryProvider) Get(_ context.Context, key string) ([]byte, error) {
	e, ok := c.lru.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	if e.expired(c.now()) {
		c.lru.Remove(key)
		return nil, ErrCacheMiss
	}
	return clone(e.value), nil
}

// Set stores a value. A non-positive ttl keeps it for the cache lifetime.
func (c *MemoryProvider) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.lru.Add(key, c.entry(value, ttl))
	return nil
}

// SetNX stores the value only when the key is absent or expired.
func (c *MemoryProvider) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if e, ok := c.lru.Peek(key); ok && !e.expired(c.now()) {
		return false, nil
	}
	c.lru.Add(key, c.entry(value, ttl))
	return true, nil
}

// Del removes an entry.
func (c *MemoryProvider) Del(_ context.Context, key string) error {
	c.lru.Remove(key)
	return nil
}

// Len reports how many entries are held, including ones not yet purged.
func (c *MemoryProvider) Len() int {
	return c.lru.Len()
}

// Close drops every entry.
func (c *MemoryProvider) Close() error {
	c.lru.Purge()
	return nil
}

func (c *MemoryProvider) entry(value []byte, ttl time.Duration) entry {
	var expires time.Time
	if ttl > 0 {
		expires = c.now().Add(ttl)
	}
	return entry{value: clone(value), expiresAt: expires}
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
