package cache

import (
	"context"
	"sync"
	"time"
)

// InMemoryCache is a process-local Cache implementation used for
// development and tests when no Redis is available. Expiry is enforced
// lazily on read plus a periodic sweep.
type InMemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*memEntry
	closed  bool
	done    chan struct{}
}

type memEntry struct {
	value     []byte
	expiresAt time.Time // zero means persistent
}

func (e *memEntry) expired() bool {
	return !e.expiresAt.IsZero() && time.Now().After(e.expiresAt)
}

// NewInMemoryCache creates an in-memory cache with periodic eviction.
func NewInMemoryCache() *InMemoryCache {
	c := &InMemoryCache{
		entries: make(map[string]*memEntry),
		done:    make(chan struct{}),
	}
	go c.evictLoop()
	return c
}

// live returns the entry for key if it exists and has not expired.
// Callers must hold at least a read lock.
func (c *InMemoryCache) live(key string) (*memEntry, bool) {
	entry, ok := c.entries[key]
	if !ok || entry.expired() {
		return nil, false
	}
	return entry, true
}

func (c *InMemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.live(key)
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(entry.value))
	copy(cp, entry.value)
	return cp, nil
}

func (c *InMemoryCache) Put(_ context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store(key, value, time.Time{})
	return nil
}

func (c *InMemoryCache) PutWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := validateTTL(ttl); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store(key, value, time.Now().Add(ttl))
	return nil
}

// Update is check-then-write, atomic here because the mutex spans both
// steps. The existing expiry carries over unchanged.
func (c *InMemoryCache) Update(_ context.Context, key string, value []byte) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.live(key)
	if !ok {
		return false, nil
	}
	c.store(key, value, entry.expiresAt)
	return true, nil
}

func (c *InMemoryCache) UpdateWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	if err := validateTTL(ttl); err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.live(key); !ok {
		return false, nil
	}
	c.store(key, value, time.Now().Add(ttl))
	return true, nil
}

func (c *InMemoryCache) Delete(_ context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.live(key)
	delete(c.entries, key)
	return ok, nil
}

func (c *InMemoryCache) UpdateTTL(_ context.Context, key string, ttl time.Duration) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	if err := validateTTL(ttl); err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.live(key)
	if !ok {
		return false, nil
	}
	entry.expiresAt = time.Now().Add(ttl)
	return true, nil
}

func (c *InMemoryCache) Exists(_ context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.live(key)
	return ok, nil
}

func (c *InMemoryCache) GetTTL(_ context.Context, key string) (TTL, error) {
	if err := validateKey(key); err != nil {
		return TTL{}, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.live(key)
	if !ok {
		return TTL{}, ErrNotFound
	}
	if entry.expiresAt.IsZero() {
		return TTL{HasExpiry: false}, nil
	}
	return TTL{HasExpiry: true, Remaining: time.Until(entry.expiresAt)}, nil
}

func (c *InMemoryCache) Keys(ctx context.Context, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*"
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	var keys []string
	for key, entry := range c.entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.expired() {
			continue
		}
		ok, err := matchGlob(pattern, key)
		if err != nil {
			return nil, err
		}
		if ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (c *InMemoryCache) Ping(_ context.Context) error { return nil }

func (c *InMemoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)
	c.entries = nil
	return nil
}

func (c *InMemoryCache) store(key string, value []byte, expiresAt time.Time) {
	if c.closed {
		return
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	c.entries[key] = &memEntry{value: cp, expiresAt: expiresAt}
}

func (c *InMemoryCache) evictLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.Lock()
			for key, entry := range c.entries {
				if entry.expired() {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}
