package herdlock

import (
	"context"

	"github.com/unkn0wn-root/herdlock/keygen"
)

// Wrap turns fn into a cached function: concurrent calls with equal
// arguments share one execution via GetWithLock. The cache key is
// name + ":" + keygen.Key(name, args...), so arguments of different types
// or order never collide, and InvalidatePattern(name + ":*") clears every
// result of the wrapped function.
//
// name must be unique per function within the cache's namespace.
func Wrap[V any](cache Cache[V], name string, opt Fetch, fn func(ctx context.Context, args ...any) (V, error)) func(ctx context.Context, args ...any) (V, error) {
	return func(ctx context.Context, args ...any) (V, error) {
		parts := make([]any, 0, len(args)+1)
		parts = append(parts, name)
		parts = append(parts, args...)
		key := name + ":" + keygen.Key(parts...)

		return cache.GetWithLock(ctx, key, func(ctx context.Context) (V, error) {
			return fn(ctx, args...)
		}, opt)
	}
}
