package cache

import (
	"context"
	"time"
)

// Cache is the subset of Redis the verification service relies on: plain
// keys for submission status and cache-aside reads, counters for rate limits,
// short-lived locks for job dedupe, and pub/sub for live status streams.
type Cache interface {
	BasicOps
	LockOps
	PubSubOps

	// Ping verifies the cache connection is alive
	Ping(ctx context.Context) error

	// Close closes the cache connection
	Close() error
}

// BasicOps defines basic key-value operations
type BasicOps interface {
	// Get returns "" with a nil error when the key is missing.
	Get(ctx context.Context, key string) (string, error)

	// Set stores a key-value pair; a zero ttl never expires.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// SetNX sets the value only if the key does not exist.
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)

	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, keys ...string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// TTL returns -1 if the key has no expiration and -2 if it is missing.
	TTL(ctx context.Context, key string) (time.Duration, error)

	Incr(ctx context.Context, key string) (int64, error)
}

// LockOps defines owner-checked distributed locks.
type LockOps interface {
	// TryLock acquires key for owner. It returns false when someone else holds it.
	TryLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)

	// Unlock releases key only if owner still holds it.
	Unlock(ctx context.Context, key, owner string) error
}

// PubSubOps defines fan-out notifications.
type PubSubOps interface {
	Publish(ctx context.Context, channel string, message string) error

	// Subscribe delivers messages until ctx is done or the returned close func is called.
	Subscribe(ctx context.Context, channel string) (<-chan string, func() error, error)
}
