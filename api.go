package herdlock

import (
	"context"
	"time"

	"github.com/unkn0wn-root/herdlock/breaker"
	c "github.com/unkn0wn-root/herdlock/codec"
	"github.com/unkn0wn-root/herdlock/store"
)

// Factory computes a fresh value for a key. It runs under the recompute lock
// (at most one concurrent execution per key across all processes) unless the
// cache is degraded, in which case every caller runs it directly.
type Factory[V any] func(ctx context.Context) (V, error)

// Fetch tunes a single GetWithLock call. The zero value picks the cache-wide
// defaults from Options.
type Fetch struct {
	// TTL for the primary entry written on success. 0 => Options.DefaultTTL.
	TTL time.Duration
	// UseStale enables stale-while-revalidate: the last successfully
	// computed value may be served while a fresh one is being (or needs to
	// be) computed, and is the fallback when waiting times out. Note this
	// relaxes "every caller observes the single fresh result" to "only when
	// no stale data exists".
	UseStale bool
	// MaxWait bounds how long a caller that lost the lock race waits for
	// the winner's value. 0 => Options.MaxWait.
	MaxWait time.Duration
}

// Cache is the high-level coordination API: at-most-one concurrent
// recomputation per key, stale fallback, and breaker-gated degradation.
// V is the caller's value type. Serialization is handled by a pluggable
// Codec[V].
type Cache[V any] interface {
	Enabled() bool
	Close(context.Context) error

	// Get is the read-only fast path: hit, miss, or store error.
	Get(ctx context.Context, key string) (v V, ok bool, err error)

	// GetWithLock returns the cached value for key, or coordinates exactly
	// one factory execution among all concurrent callers to produce it.
	GetWithLock(ctx context.Context, key string, factory Factory[V], opt Fetch) (V, error)

	// Set writes the primary entry and refreshes the stale twin.
	Set(ctx context.Context, key string, value V, ttl time.Duration) error

	// Invalidate deletes the primary entry and the stale twin for key.
	Invalidate(ctx context.Context, key string) error

	// InvalidatePattern deletes all entries whose key matches the
	// redis-style glob and returns how many primary entries were removed.
	InvalidatePattern(ctx context.Context, pattern string) (int, error)

	// ResetBreaker closes the circuit breaker and resumes store
	// coordination (administrative override; the breaker also half-opens
	// by itself after its cooldown).
	ResetBreaker()
}

// Options tune the behavior of the cache.
// Only Namespace, Store and Codec are required; others have sensible defaults.
type Options[V any] struct {
	// Required
	Namespace string // logical namespace to avoid collisions. e.g. "render", "embedding"
	Store     store.Client
	Codec     c.Codec[V]

	Logger Logger // if nil, NopLogger is used
	Hooks  Hooks  // if nil, NopHooks is used

	DefaultTTL   time.Duration // primary entries; 0 => 10m
	StaleTTL     time.Duration // stale twins; 0 => 1h
	LeaseTTL     time.Duration // recompute lock lease; must exceed worst-case factory runtime; 0 => 30s
	MaxWait      time.Duration // waiter patience; 0 => 5s
	PollInterval time.Duration // waiter poll cadence; 0 => 50ms
	OpTimeout    time.Duration // per store round-trip; 0 => 500ms

	Breaker  breaker.Config // zero value => 5 failures / 30s cooldown
	Disabled bool           // default false (enabled); disabled => factories run directly
}

func New[V any](opts Options[V]) (Cache[V], error) {
	return newCache[V](opts)
}
