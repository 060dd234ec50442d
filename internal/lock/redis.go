package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ChrisHK/label-printer/internal/logging"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// RedisConfig holds settings for the Redis locker.
type RedisConfig struct {
	// Prefix namespaces lock keys. Default: "lock:serial:"
	Prefix string

	// TTL bounds how long a crashed holder keeps a key. Default: 5 minutes
	TTL time.Duration

	// Wait bounds how long Acquire retries a contended key. Default: 30 seconds
	Wait time.Duration

	// Refresh is how often held keys get their TTL extended. Default: TTL/3
	Refresh time.Duration
}

// Redis locks keys across instances with bsm/redislock.
type Redis struct {
	client *redislock.Client
	config RedisConfig
}

// NewRedis creates a Redis-backed locker.
func NewRedis(rdb *redis.Client, config RedisConfig) *Redis {
	if config.Prefix == "" {
		config.Prefix = "lock:serial:"
	}
	if config.TTL == 0 {
		config.TTL = 5 * time.Minute
	}
	if config.Wait == 0 {
		config.Wait = 30 * time.Second
	}
	if config.Refresh <= 0 || config.Refresh >= config.TTL {
		config.Refresh = config.TTL / 3
	}
	return &Redis{client: redislock.New(rdb), config: config}
}

// Acquire implements Locker.
func (r *Redis) Acquire(ctx context.Context, keys []string) (Release, error) {
	keys = normalizeKeys(keys)

	waitCtx, cancel := context.WithTimeout(ctx, r.config.Wait)
	defer cancel()

	opts := &redislock.Options{RetryStrategy: redislock.ExponentialBackoff(10*time.Millisecond, 500*time.Millisecond)}
	held := make([]*redislock.Lock, 0, len(keys))

	for _, key := range keys {
		l, err := r.client.Obtain(waitCtx, r.config.Prefix+key, r.config.TTL, opts)
		if err != nil {
			r.releaseAll(held)
			if errors.Is(err, redislock.ErrNotObtained) || errors.Is(err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %s", ErrNotObtained, key)
			}
			return nil, fmt.Errorf("obtain lock %s: %w", key, err)
		}
		held = append(held, l)
	}

	if len(held) == 0 {
		return func() {}, nil
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go r.keepAlive(held, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			r.releaseAll(held)
		})
	}, nil
}

// keepAlive extends the TTL of held locks until stop is closed, so a batch
// running longer than the TTL keeps its keys.
func (r *Redis) keepAlive(held []*redislock.Lock, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.config.Refresh)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), r.config.Refresh)
			for _, l := range held {
				if err := l.Refresh(ctx, r.config.TTL, nil); err != nil {
					logging.Component("RedisLocker").WithError(err).WithField("key", l.Key()).Error("failed to refresh lock")
				}
			}
			cancel()
		}
	}
}

func (r *Redis) releaseAll(held []*redislock.Lock) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := len(held) - 1; i >= 0; i-- {
		if err := held[i].Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			logging.Component("RedisLocker").WithError(err).WithField("key", held[i].Key()).Warn("failed to release lock")
		}
	}
}

var _ Locker = (*Redis)(nil)
