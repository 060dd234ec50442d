// Package cache holds short-lived copies of processing log lookups.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss indicates the key was not found in cache.
var ErrCacheMiss = errors.New("cache miss")

// Cache stores opaque values by key.
// Memory is used for single-instance deployments, Redis when several
// API instances must see the same invalidations.
type Cache interface {
	// Get retrieves a value by key. Returns ErrCacheMiss if not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes the given keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error

	// Close releases background resources.
	Close() error
}

// Nop caches nothing.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, error) { return nil, ErrCacheMiss }
func (Nop) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (Nop) Delete(context.Context, ...string) error { return nil }
func (Nop) Close() error { return nil }

var (
	_ Cache = Nop{}
	_ Cache = (*Memory)(nil)
	_ Cache = (*Redis)(nil)
)
