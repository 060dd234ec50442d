package lock

import (
	"context"
	"fmt"
	"sync"
)

type keyEntry struct {
	sem  chan struct{}
	refs int
}

// Local is an in-process keyed mutex for single-instance deployments.
type Local struct {
	mu   sync.Mutex
	keys map[string]*keyEntry
}

// NewLocal creates a new in-process locker.
func NewLocal() *Local {
	return &Local{keys: make(map[string]*keyEntry)}
}

// Acquire implements Locker.
func (l *Local) Acquire(ctx context.Context, keys []string) (Release, error) {
	keys = normalizeKeys(keys)
	held := make([]string, 0, len(keys))

	for _, key := range keys {
		if err := l.lock(ctx, key); err != nil {
			l.unlockAll(held)
			return nil, fmt.Errorf("%w: %s: %v", ErrNotObtained, key, err)
		}
		held = append(held, key)
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.unlockAll(held) })
	}, nil
}

func (l *Local) lock(ctx context.Context, key string) error {
	l.mu.Lock()
	e, ok := l.keys[key]
	if !ok {
		e = &keyEntry{sem: make(chan struct{}, 1)}
		l.keys[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.drop(key, e)
		return ctx.Err()
	}
}

func (l *Local) unlockAll(keys []string) {
	for i := len(keys) - 1; i >= 0; i-- {
		l.mu.Lock()
		e := l.keys[keys[i]]
		l.mu.Unlock()
		<-e.sem
		l.drop(keys[i], e)
	}
}

func (l *Local) drop(key string, e *keyEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.keys, key)
	}
}

// Len returns the number of keys currently held or waited on.
func (l *Local) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}

var _ Locker = (*Local)(nil)
