package herdlock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/unkn0wn-root/herdlock/breaker"
	cod "github.com/unkn0wn-root/herdlock/codec"
	"github.com/unkn0wn-root/herdlock/internal/wire"
	"github.com/unkn0wn-root/herdlock/lock"
	"github.com/unkn0wn-root/herdlock/store"
)

const (
	defaultTTL   = 10 * time.Minute
	defaultStale = time.Hour
	defaultLease = 30 * time.Second
	defaultWait  = 5 * time.Second
	defaultPoll  = 50 * time.Millisecond
	defaultOpTO  = 500 * time.Millisecond
)

type cache[V any] struct {
	ns      string
	st      store.Client
	codec   cod.Codec[V]
	locker  *lock.Locker
	brk     *breaker.Breaker
	log     Logger
	hooks   Hooks
	enabled bool

	defaultTTL   time.Duration
	staleTTL     time.Duration
	leaseTTL     time.Duration
	maxWait      time.Duration
	pollInterval time.Duration
	opTimeout    time.Duration

	// background revalidators
	revalWg sync.WaitGroup
}

func newCache[V any](opts Options[V]) (*cache[V], error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("herdlock: store is required")
	}
	if opts.Codec == nil {
		return nil, fmt.Errorf("herdlock: codec is required")
	}
	if opts.Namespace == "" {
		return nil, fmt.Errorf("herdlock: namespace is required")
	}

	locker, err := lock.New(opts.Store, opts.Namespace)
	if err != nil {
		return nil, err
	}

	c := &cache[V]{
		ns:      opts.Namespace,
		st:      opts.Store,
		codec:   opts.Codec,
		locker:  locker,
		brk:     breaker.New(opts.Breaker),
		enabled: !opts.Disabled,
	}

	// defaults
	c.log = coalesce[Logger](opts.Logger, NopLogger{})
	c.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	c.defaultTTL = coalesce[time.Duration](opts.DefaultTTL, defaultTTL)
	c.staleTTL = coalesce[time.Duration](opts.StaleTTL, defaultStale)
	c.leaseTTL = coalesce[time.Duration](opts.LeaseTTL, defaultLease)
	c.maxWait = coalesce[time.Duration](opts.MaxWait, defaultWait)
	c.pollInterval = coalesce[time.Duration](opts.PollInterval, defaultPoll)
	c.opTimeout = coalesce[time.Duration](opts.OpTimeout, defaultOpTO)

	return c, nil
}

func (c *cache[V]) Enabled() bool { return c.enabled }

func (c *cache[V]) ResetBreaker() { c.brk.Reset() }

func (c *cache[V]) Close(ctx context.Context) error {
	c.revalWg.Wait()
	if c.st != nil {
		return c.st.Close(ctx)
	}
	return nil
}

func (c *cache[V]) primaryKey(key string) string { return "cache:" + c.ns + ":" + key }
func (c *cache[V]) staleKey(key string) string   { return "stale:" + c.ns + ":" + key }

// opCtx bounds one store round-trip so a degraded store cannot hang a caller.
func (c *cache[V]) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.opTimeout)
}

// storeFail feeds a store outcome to the breaker. Only distinguished
// unavailability errors count; corrupt entries and codec failures are not
// backend trouble.
func (c *cache[V]) storeFail(err error) {
	if !errors.Is(err, store.ErrUnavailable) {
		return
	}
	if c.brk.RecordFailure() {
		c.hooks.BreakerOpen(c.brk.Failures())
		c.log.Warn("breaker opened; store coordination suspended", Fields{"ns": c.ns, "err": err})
	}
}

func (c *cache[V]) storeOK() {
	if c.brk.RecordSuccess() {
		c.hooks.BreakerClose()
		c.log.Info("breaker closed; store coordination resumed", Fields{"ns": c.ns})
	}
}

func (c *cache[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	if !c.enabled {
		return zero, false, nil
	}
	v, _, ok, err := c.readEntry(ctx, c.primaryKey(key), wire.KindPrimary)
	if err != nil {
		c.storeFail(err)
		return zero, false, err
	}
	if ok {
		c.storeOK()
	}
	return v, ok, nil
}

func (c *cache[V]) GetWithLock(ctx context.Context, key string, factory Factory[V], opt Fetch) (V, error) {
	var zero V
	if factory == nil {
		return zero, ErrNilFactory
	}
	if !c.enabled || c.brk.IsOpen() {
		// degraded or disabled: uncached, possibly duplicated work, but
		// never blocked on a broken store
		return factory(ctx)
	}

	ttl := coalesce[time.Duration](opt.TTL, c.defaultTTL)
	maxWait := coalesce[time.Duration](opt.MaxWait, c.maxWait)

	// fast path
	v, _, ok, err := c.readEntry(ctx, c.primaryKey(key), wire.KindPrimary)
	if err != nil {
		c.storeFail(err)
		return factory(ctx)
	}
	if ok {
		c.storeOK()
		return v, nil
	}

	// miss: race for the recompute lock
	token, err := c.locker.TryAcquire(ctx, key, c.leaseTTL)
	if err != nil {
		c.storeFail(err)
		return factory(ctx)
	}
	if token != "" {
		return c.computeLocked(ctx, key, factory, ttl, opt, token)
	}
	return c.awaitValue(ctx, key, factory, maxWait, opt)
}

// computeLocked runs with the lock held. Exactly one caller per key reaches
// this path at a time; everyone else is in awaitValue.
func (c *cache[V]) computeLocked(ctx context.Context, key string, factory Factory[V], ttl time.Duration, opt Fetch, token string) (V, error) {
	var zero V

	// double-check: a writer that finished between our read and this
	// acquire has already released, so its value is visible now
	if v, _, ok, err := c.readEntry(ctx, c.primaryKey(key), wire.KindPrimary); err == nil && ok {
		c.release(ctx, key, token)
		c.storeOK()
		return v, nil
	}

	if opt.UseStale {
		if sv, age, ok := c.readStale(ctx, key); ok {
			// stale-while-revalidate: serve the last known good value now
			// and recompute in the background under the held lease
			c.hooks.StaleServed(key, age)
			c.log.Debug("serving stale while revalidating", Fields{"key": key, "age": age})
			c.revalWg.Add(1)
			go c.revalidate(key, factory, ttl, token)
			return sv, nil
		}
	}

	v, ferr := factory(ctx)
	if ferr != nil {
		c.release(ctx, key, token)
		// business-logic failure, not a store failure: propagate verbatim
		return zero, ferr
	}

	if werr := c.write(ctx, key, v, ttl, opt.UseStale); werr != nil {
		c.storeFail(werr)
		c.log.Warn("cache write failed; returning computed value uncached", Fields{"key": key, "err": werr})
	} else {
		c.storeOK()
	}
	c.release(ctx, key, token)
	return v, nil
}

// revalidate recomputes key in the background after a stale serve. The lease
// keeps other callers from duplicating the work; it is released (or expires)
// when done.
func (c *cache[V]) revalidate(key string, factory Factory[V], ttl time.Duration, token string) {
	defer c.revalWg.Done()
	ctx, cancel := context.WithTimeout(context.Background(), c.leaseTTL)
	defer cancel()

	v, err := factory(ctx)
	if err != nil {
		c.log.Warn("background revalidate failed; stale twin retained", Fields{"key": key, "err": err})
		c.release(ctx, key, token)
		return
	}
	if werr := c.write(ctx, key, v, ttl, true); werr != nil {
		c.storeFail(werr)
		c.log.Warn("background revalidate write failed", Fields{"key": key, "err": werr})
	} else {
		c.storeOK()
	}
	c.release(ctx, key, token)
}

// awaitValue is the loser's path: another caller is computing. Poll until
// the value appears or maxWait elapses — never call the factory here; that
// is what keeps the computation at-most-one under contention.
func (c *cache[V]) awaitValue(ctx context.Context, key string, factory Factory[V], maxWait time.Duration, opt Fetch) (V, error) {
	var zero V
	c.hooks.LockContended(key)

	if opt.UseStale {
		if sv, age, ok := c.readStale(ctx, key); ok {
			// trade freshness for latency instead of waiting on the winner
			c.hooks.StaleServed(key, age)
			return sv, nil
		}
	}

	deadline := time.NewTimer(maxWait)
	defer deadline.Stop()
	tick := time.NewTicker(c.pollInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-deadline.C:
			if opt.UseStale {
				// last chance: a twin may have appeared while we waited
				if sv, age, ok := c.readStale(ctx, key); ok {
					c.hooks.StaleServed(key, age)
					return sv, nil
				}
			}
			c.hooks.WaitTimeout(key)
			return zero, fmt.Errorf("%w: %q after %v", ErrWaitTimeout, key, maxWait)
		case <-tick.C:
			v, _, ok, err := c.readEntry(ctx, c.primaryKey(key), wire.KindPrimary)
			if err != nil {
				c.storeFail(err)
				if c.brk.IsOpen() {
					// store went away mid-wait; degrade like everyone else
					return factory(ctx)
				}
				continue
			}
			if ok {
				c.storeOK()
				return v, nil
			}
		}
	}
}

func (c *cache[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	if !c.enabled {
		return nil
	}
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	err := c.write(ctx, key, value, ttl, true)
	if err != nil {
		c.storeFail(err)
		return err
	}
	c.storeOK()
	return nil
}

func (c *cache[V]) Invalidate(ctx context.Context, key string) error {
	if !c.enabled {
		return nil
	}
	octx, cancel := c.opCtx(ctx)
	_, perr := c.st.Del(octx, c.primaryKey(key))
	cancel()

	octx, cancel = c.opCtx(ctx)
	_, serr := c.st.Del(octx, c.staleKey(key))
	cancel()

	if perr != nil {
		c.storeFail(perr)
		return &InvalidateError{Key: key, PrimaryErr: perr, StaleErr: serr}
	}
	if serr != nil {
		// twin outliving the primary only widens the stale fallback window;
		// tolerated, the primary invalidation already took effect
		c.storeFail(serr)
		c.log.Warn("stale twin delete failed during invalidate", Fields{"key": key, "err": serr})
		return nil
	}
	c.storeOK()
	c.log.Debug("invalidated key", Fields{"key": key})
	return nil
}

func (c *cache[V]) InvalidatePattern(ctx context.Context, pattern string) (int, error) {
	if !c.enabled {
		return 0, nil
	}
	// OpTimeout bounds each round-trip, not the sweep as a whole: a large
	// pattern is four store calls and must not time out on their sum
	octx, cancel := c.opCtx(ctx)
	pkeys, err := c.st.Scan(octx, "cache:"+c.ns+":"+pattern)
	cancel()
	if err != nil {
		c.storeFail(err)
		return 0, err
	}
	octx, cancel = c.opCtx(ctx)
	skeys, err := c.st.Scan(octx, "stale:"+c.ns+":"+pattern)
	cancel()
	if err != nil {
		c.storeFail(err)
		return 0, err
	}

	octx, cancel = c.opCtx(ctx)
	n, err := c.st.Del(octx, pkeys...)
	cancel()
	if err != nil {
		c.storeFail(err)
		return 0, err
	}
	octx, cancel = c.opCtx(ctx)
	_, serr := c.st.Del(octx, skeys...)
	cancel()
	if serr != nil {
		c.storeFail(serr)
		c.log.Warn("stale sweep failed during pattern invalidate", Fields{"pattern": pattern, "err": serr})
	}
	c.storeOK()
	c.log.Debug("invalidated pattern", Fields{"pattern": pattern, "removed": n})
	return int(n), nil
}

// readEntry fetches and validates one framed entry. Corrupt or wrong-kind
// frames are deleted (self-heal) and reported as a miss.
func (c *cache[V]) readEntry(ctx context.Context, storageKey string, want wire.Kind) (V, time.Time, bool, error) {
	var zero V
	octx, cancel := c.opCtx(ctx)
	raw, ok, err := c.st.Get(octx, storageKey)
	cancel()
	if err != nil || !ok {
		return zero, time.Time{}, false, err
	}

	kind, storedAt, payload, err := wire.Decode(raw)
	if err != nil {
		c.selfHeal(ctx, storageKey, "corrupt")
		return zero, time.Time{}, false, nil
	}
	if kind != want {
		c.selfHeal(ctx, storageKey, "kind_mismatch")
		return zero, time.Time{}, false, nil
	}
	v, err := c.codec.Decode(payload)
	if err != nil {
		c.selfHeal(ctx, storageKey, "value_decode")
		return zero, time.Time{}, false, nil
	}
	return v, storedAt, true, nil
}

// readStale is best-effort: store errors are fed to the breaker and treated
// as "no stale available".
func (c *cache[V]) readStale(ctx context.Context, key string) (V, time.Duration, bool) {
	v, storedAt, ok, err := c.readEntry(ctx, c.staleKey(key), wire.KindStale)
	if err != nil {
		c.storeFail(err)
		var zero V
		return zero, 0, false
	}
	if !ok {
		var zero V
		return zero, 0, false
	}
	return v, time.Since(storedAt), true
}

// write stores the primary entry and, when withStale is set, a twin under
// the stale key with the same storedAt and a longer TTL. The twin is always
// written after the primary, so it can never be newer.
func (c *cache[V]) write(ctx context.Context, key string, value V, ttl time.Duration, withStale bool) error {
	payload, err := c.codec.Encode(value)
	if err != nil {
		return err
	}
	now := time.Now()

	octx, cancel := c.opCtx(ctx)
	err = c.st.SetEx(octx, c.primaryKey(key), wire.Encode(wire.KindPrimary, now, payload), ttl)
	cancel()
	if err != nil {
		return err
	}
	if withStale {
		octx, cancel = c.opCtx(ctx)
		err = c.st.SetEx(octx, c.staleKey(key), wire.Encode(wire.KindStale, now, payload), c.staleTTL)
		cancel()
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *cache[V]) selfHeal(ctx context.Context, storageKey, reason string) {
	octx, cancel := c.opCtx(ctx)
	_, _ = c.st.Del(octx, storageKey)
	cancel()
	c.hooks.SelfHeal(storageKey, reason)
	c.log.Debug("self-healed bad entry", Fields{"key": storageKey, "reason": reason})
}

// release is best-effort: a failed release just means the lease will expire
// on its own.
func (c *cache[V]) release(ctx context.Context, key, token string) {
	octx, cancel := c.opCtx(ctx)
	defer cancel()
	if _, err := c.locker.Release(octx, key, token); err != nil {
		c.storeFail(err)
		c.log.Debug("lock release failed; lease will expire", Fields{"key": key, "err": err})
	}
}
