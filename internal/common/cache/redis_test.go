package cache

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c, err := NewRedisCacheWithClient(client)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestGetMissingKeyIsEmpty(t *testing.T) {
	t.Parallel()
	c, _ := newTestCache(t)

	v, err := c.Get(context.Background(), "nope")
	if err != nil || v != "" {
		t.Fatalf("Get() = %q, %v", v, err)
	}
}

func TestLockOwnership(t *testing.T) {
	t.Parallel()
	c, _ := newTestCache(t)
	ctx := context.Background()

	ok, err := c.TryLock(ctx, "lock:s1", "worker-a", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first TryLock = %v, %v", ok, err)
	}
	ok, err = c.TryLock(ctx, "lock:s1", "worker-b", time.Minute)
	if err != nil || ok {
		t.Fatalf("second TryLock = %v, %v", ok, err)
	}

	if err := c.Unlock(ctx, "lock:s1", "worker-b"); err != nil {
		t.Fatalf("foreign unlock: %v", err)
	}
	if n, _ := c.Exists(ctx, "lock:s1"); n != 1 {
		t.Fatalf("foreign unlock must not release the lock")
	}
	if err := c.Unlock(ctx, "lock:s1", "worker-a"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if n, _ := c.Exists(ctx, "lock:s1"); n != 0 {
		t.Fatalf("lock should be released")
	}
}

func TestPublishSubscribe(t *testing.T) {
	t.Parallel()
	c, _ := newTestCache(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, closeFn, err := c.Subscribe(ctx, "status:s1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer closeFn()

	if err := c.Publish(ctx, "status:s1", "running"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case msg := <-ch:
		if msg != "running" {
			t.Fatalf("message = %q", msg)
		}
	case <-ctx.Done():
		t.Fatalf("no message received")
	}
}

func TestGetWithCachedCachesMisses(t *testing.T) {
	t.Parallel()
	c, mr := newTestCache(t)
	ctx := context.Background()

	calls := 0
	load := func(context.Context) (int, error) {
		calls++
		return 0, nil
	}
	for i := 0; i < 2; i++ {
		v, err := GetWithCached(ctx, c, "n:1", time.Minute, time.Minute,
			func(v int) bool { return v == 0 },
			strconv.Itoa,
			strconv.Atoi,
			load,
		)
		if err != nil || v != 0 {
			t.Fatalf("GetWithCached = %d, %v", v, err)
		}
	}
	if calls != 1 {
		t.Fatalf("loader called %d times, want 1", calls)
	}
	if got, _ := mr.Get("n:1"); got != NullCacheValue {
		t.Fatalf("cached value = %q", got)
	}
}

func TestGetWithCachedPropagatesLoaderError(t *testing.T) {
	t.Parallel()
	c, _ := newTestCache(t)
	boom := errors.New("db down")

	_, err := GetWithCached(context.Background(), c, "n:2", time.Minute, time.Minute,
		func(v int) bool { return v == 0 },
		strconv.Itoa,
		strconv.Atoi,
		func(context.Context) (int, error) { return 0, boom },
	)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestJitterTTL(t *testing.T) {
	t.Parallel()
	for i := 0; i < 20; i++ {
		got := JitterTTL(10 * time.Second)
		if got < 9*time.Second || got > 10*time.Second {
			t.Fatalf("JitterTTL out of range: %v", got)
		}
	}
	if JitterTTL(0) != 0 {
		t.Fatalf("zero ttl should stay zero")
	}
}
