package lock

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func TestRedisLocker(t *testing.T) {
	rdb := newTestRedis(t)
	prefix := "test:lock:" + time.Now().Format("150405.000000") + ":"
	l := NewRedis(rdb, RedisConfig{Prefix: prefix, TTL: 10 * time.Second, Wait: 100 * time.Millisecond})
	ctx := context.Background()

	release, err := l.Acquire(ctx, []string{"S2", "S1"})
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	if _, err := l.Acquire(ctx, []string{"S1"}); !errors.Is(err, ErrNotObtained) {
		t.Errorf("contended Acquire() error = %v, want ErrNotObtained", err)
	}

	release()

	again, err := l.Acquire(ctx, []string{"S1"})
	if err != nil {
		t.Fatalf("Acquire() after release error = %v", err)
	}
	again()
}

func TestRedisLockerRefreshesHeldKeys(t *testing.T) {
	rdb := newTestRedis(t)
	prefix := "test:lock:" + time.Now().Format("150405.000000") + ":"
	l := NewRedis(rdb, RedisConfig{Prefix: prefix, TTL: 300 * time.Millisecond, Wait: 50 * time.Millisecond})
	ctx := context.Background()

	release, err := l.Acquire(ctx, []string{"S1"})
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	time.Sleep(time.Second)

	if _, err := l.Acquire(ctx, []string{"S1"}); !errors.Is(err, ErrNotObtained) {
		t.Errorf("Acquire() past the TTL error = %v, want ErrNotObtained", err)
	}

	release()

	again, err := l.Acquire(ctx, []string{"S1"})
	if err != nil {
		t.Fatalf("Acquire() after release error = %v", err)
	}
	again()
}

func TestNewRedisDefaults(t *testing.T) {
	tests := []struct {
		name        string
		config      RedisConfig
		wantRefresh time.Duration
	}{
		{"defaults", RedisConfig{}, 100 * time.Second},
		{"refresh from ttl", RedisConfig{TTL: 30 * time.Second}, 10 * time.Second},
		{"explicit refresh", RedisConfig{TTL: 30 * time.Second, Refresh: 5 * time.Second}, 5 * time.Second},
		{"refresh not below ttl", RedisConfig{TTL: 30 * time.Second, Refresh: time.Minute}, 10 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewRedis(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), tt.config)
			if l.config.Refresh != tt.wantRefresh {
				t.Errorf("Refresh = %v, want %v", l.config.Refresh, tt.wantRefresh)
			}
		})
	}
}
