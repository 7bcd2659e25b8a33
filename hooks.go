package herdlock

import "time"

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The cache calls them on hot paths.
type Hooks interface {
	// An entry was deleted by the cache on read.
	// reason ∈ {"corrupt", "kind_mismatch", "value_decode"}
	SelfHeal(storageKey, reason string)

	// A caller lost the recompute-lock race and entered the wait path.
	LockContended(key string)

	// A stale twin was served instead of a fresh value.
	StaleServed(key string, age time.Duration)

	// A waiter exceeded its max wait without observing a value.
	WaitTimeout(key string)

	// The circuit breaker opened (store coordination suspended).
	BreakerOpen(failures int)

	// The circuit breaker closed again after a successful probe.
	BreakerClose()
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) SelfHeal(string, string)           {}
func (NopHooks) LockContended(string)              {}
func (NopHooks) StaleServed(string, time.Duration) {}
func (NopHooks) WaitTimeout(string)                {}
func (NopHooks) BreakerOpen(int)                   {}
func (NopHooks) BreakerClose()                     {}
