// usage:
//
// import (
//
//	"log/slog"
//
//	"github.com/unkn0wn-root/herdlock"
//	asynchook "github.com/unkn0wn-root/herdlock/hooks/async"
//	"github.com/unkn0wn-root/herdlock/sloghooks"
//
// )
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    ContendedEvery: 10, // sample logs: ~every 10th contention
//	})
//
// hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
// defer hooks.Close()
//
//	cache, _ := herdlock.New[Render](herdlock.Options[Render]{
//	    Namespace: "app:prod:render",
//	    Store:     st,
//	    Codec:     codec.JSON[Render]{},
//	    Hooks:     hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"
	"time"

	"github.com/unkn0wn-root/herdlock"
)

type Hooks struct {
	inner herdlock.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ herdlock.Hooks = (*Hooks)(nil)

func New(inner herdlock.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) SelfHeal(k, r string)  { h.try(func() { h.inner.SelfHeal(k, r) }) }
func (h *Hooks) LockContended(k string) { h.try(func() { h.inner.LockContended(k) }) }
func (h *Hooks) WaitTimeout(k string)  { h.try(func() { h.inner.WaitTimeout(k) }) }
func (h *Hooks) BreakerOpen(n int)     { h.try(func() { h.inner.BreakerOpen(n) }) }
func (h *Hooks) BreakerClose()         { h.try(func() { h.inner.BreakerClose() }) }
func (h *Hooks) StaleServed(k string, age time.Duration) {
	h.try(func() { h.inner.StaleServed(k, age) })
}
