// Package herdlock implements a shared-store cache with thundering-herd
// protection: among any number of concurrent callers (goroutines, processes,
// hosts) requesting the same missing key, exactly one executes the factory;
// the rest observe that single result. Coordination happens entirely through
// the shared store — there is no trusted client-local state.
//
// Components:
//   - store.Client: byte store with TTLs and atomic primitives (Redis or
//     in-process memory).
//   - codec.Codec[V]: (de)serializes V <-> []byte.
//   - lock.Locker: lease-based mutex with token-checked release.
//   - breaker.Breaker: fail-fast guard; while open the cache skips store
//     coordination and calls factories directly (degraded, uncached mode).
//   - ratelimit.Limiter: fixed-window request accounting on the same store.
//
// Keys:
//
//	cache:<ns>:<key>               primary entries
//	stale:<ns>:<key>               stale twins (longer TTL, backward-looking)
//	lock:<ns>:<key>                recompute leases
//	rate:<ns>:<identity>:<res>     rate windows
//
// Usual pattern:
//
//	v, err := cache.GetWithLock(ctx, key, loadFromProvider, herdlock.Fetch{
//	    TTL:      5 * time.Minute,
//	    UseStale: true, // serve last-known-good while revalidating
//	})
package herdlock
