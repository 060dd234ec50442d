package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e *entry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// Memory is an in-process Cache with a background sweep of expired entries.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*entry
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemory creates a memory cache that sweeps expired entries every interval.
func NewMemory(interval time.Duration) *Memory {
	if interval <= 0 {
		interval = time.Minute
	}
	c := &Memory{
		entries: make(map[string]*entry),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go c.sweep(interval)
	return c
}

// Get retrieves a copy of the value stored under key.
func (c *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || e.expired(c.now()) {
		return nil, ErrCacheMiss
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

// Set stores a copy of value.
func (c *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	v := make([]byte, len(value))
	copy(v, value)

	c.mu.Lock()
	c.entries[key] = &entry{value: v, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

// Delete removes keys.
func (c *Memory) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	c.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired or not.
func (c *Memory) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the sweep goroutine.
func (c *Memory) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	return nil
}

func (c *Memory) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *Memory) removeExpired() {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
		}
	}
}
