package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestMemoryGetSetDelete(t *testing.T) {
	c := NewMemory(time.Hour)
	defer c.Close()
	ctx := context.Background()

	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Get() on empty cache error = %v, want ErrCacheMiss", err)
	}

	value := []byte("v1")
	if err := c.Set(ctx, "k", value, time.Minute); err != nil {
		t.Fatal(err)
	}
	value[0] = 'x'

	got, err := c.Get(ctx, "k")
	if err != nil || string(got) != "v1" {
		t.Fatalf("Get() = %q, %v; want v1", got, err)
	}

	_ = c.Set(ctx, "k2", []byte("v2"), time.Minute)
	if err := c.Delete(ctx, "k", "k2", "missing"); err != nil {
		t.Fatal(err)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d after Delete, want 0", c.Len())
	}
}

func TestMemoryExpiry(t *testing.T) {
	c := NewMemory(time.Hour)
	defer c.Close()
	ctx := context.Background()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	_ = c.Set(ctx, "k", []byte("v"), time.Minute)
	now = now.Add(2 * time.Minute)

	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get() of expired entry error = %v, want ErrCacheMiss", err)
	}
	c.removeExpired()
	if c.Len() != 0 {
		t.Errorf("Len() = %d after sweep, want 0", c.Len())
	}
}

func TestMemoryCloseTwice(t *testing.T) {
	c := NewMemory(0)
	c.Close()
	c.Close()
}

func TestNop(t *testing.T) {
	var c Cache = Nop{}
	ctx := context.Background()
	_ = c.Set(ctx, "k", []byte("v"), time.Minute)
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Nop.Get() error = %v, want ErrCacheMiss", err)
	}
}

func TestRedis(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	c := NewRedis(rdb, "test:cache:"+time.Now().Format("150405.000000")+":")
	ctx := context.Background()

	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Get() error = %v, want ErrCacheMiss", err)
	}
	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if got, err := c.Get(ctx, "k"); err != nil || string(got) != "v" {
		t.Fatalf("Get() = %q, %v", got, err)
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get() after Delete error = %v", err)
	}
}
