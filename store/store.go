// Package store defines the shared key/value store abstraction that every
// coordination primitive in herdlock is built on.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly
// the same []byte that was previously passed to SetEx/SetNX for a key (no
// prepended metadata, no re-encoding, no mutation).
//
// All operations may be invoked concurrently from many goroutines, processes,
// and hosts against the same backing store. CompareAndDelete and IncrWindow
// must stay atomic under that concurrency (native command or a scripted
// transaction, never read-then-write).
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable marks a transient backend failure (network, timeout, server
// down). Every implementation wraps such failures with this sentinel so the
// circuit breaker can recognize them; a miss is never an error.
var ErrUnavailable = errors.New("store unavailable")

// Unavailable wraps err as a store-unavailable condition for operation op.
// errors.Is(result, ErrUnavailable) holds, and err stays reachable for As/Is.
func Unavailable(op string, err error) error {
	return fmt.Errorf("store %s: %w: %w", op, ErrUnavailable, err)
}

// Client is the minimal shared-store surface the cache, lock, and rate
// limiter need. Missing keys are reported via ok=false / zero results, never
// via errors.
type Client interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// SetEx stores value under key with the given TTL (atomic set-with-expiry).
	// ttl <= 0 means no expiry.
	SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetNX stores value only if key is absent, with the given TTL.
	// Returns whether the write happened.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// CompareAndDelete atomically deletes key iff its current value equals
	// expected. Returns whether the delete happened.
	CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error)

	// IncrWindow atomically increments the counter at key and, when this is
	// the first increment of the window, arms the key to expire after window.
	// Returns the post-increment count and the time remaining until expiry.
	IncrWindow(ctx context.Context, key string, window time.Duration) (count int64, remaining time.Duration, err error)

	// Scan returns the keys matching a redis-style glob pattern.
	Scan(ctx context.Context, pattern string) ([]string, error)

	// Del removes keys (best-effort) and returns how many existed.
	Del(ctx context.Context, keys ...string) (int64, error)

	// Close releases resources.
	Close(ctx context.Context) error
}
