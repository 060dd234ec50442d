// Package lock serializes batches that touch the same serial numbers.
package lock

import (
	"context"
	"errors"
	"sort"
)

// ErrNotObtained is returned when a key could not be locked in time.
var ErrNotObtained = errors.New("lock not obtained")

// Release unlocks everything an Acquire call locked. It is safe to call more than once.
type Release func()

// Locker locks sets of keys.
type Locker interface {
	// Acquire blocks until every key is held or ctx is done. Keys are locked
	// in sorted order so that overlapping sets cannot deadlock.
	Acquire(ctx context.Context, keys []string) (Release, error)
}

// normalizeKeys sorts and de-duplicates keys.
func normalizeKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
