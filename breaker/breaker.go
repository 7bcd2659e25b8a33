// Package breaker implements a process-local circuit breaker for shared
// store operations. After Threshold consecutive failures the breaker opens
// and callers stop attempting store coordination; once Cooldown elapses a
// single probe is allowed through (half-open), closing on success and
// reopening on failure. Reset closes the breaker unconditionally.
package breaker

import (
	"sync"
	"time"
)

const (
	DefaultThreshold = 5
	DefaultCooldown  = 30 * time.Second
)

type state int

const (
	closed state = iota
	open
	halfOpen
)

type Breaker struct {
	mu        sync.Mutex
	st        state
	failures  int
	threshold int
	cooldown  time.Duration
	openedAt  time.Time

	now func() time.Time // test seam
}

type Config struct {
	Threshold int           // consecutive failures to open; 0 => 5
	Cooldown  time.Duration // time until a half-open probe; 0 => 30s
}

func New(cfg Config) *Breaker {
	b := &Breaker{
		threshold: cfg.Threshold,
		cooldown:  cfg.Cooldown,
		now:       time.Now,
	}
	if b.threshold <= 0 {
		b.threshold = DefaultThreshold
	}
	if b.cooldown <= 0 {
		b.cooldown = DefaultCooldown
	}
	return b
}

// RecordFailure notes a store failure. Returns true when this call is the
// one that opened the breaker (for one-shot logging/hooks).
func (b *Breaker) RecordFailure() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.st {
	case halfOpen:
		// probe failed; go straight back to open
		b.st = open
		b.openedAt = b.now()
		return true
	case open:
		return false
	}
	b.failures++
	if b.failures >= b.threshold {
		b.st = open
		b.openedAt = b.now()
		return true
	}
	return false
}

// RecordSuccess notes a healthy store round-trip. Closes the breaker when a
// half-open probe succeeds. Returns true when this call closed the breaker.
func (b *Breaker) RecordSuccess() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	wasRecovering := b.st == halfOpen
	b.st = closed
	b.failures = 0
	return wasRecovering
}

// IsOpen reports whether store coordination should be skipped. When the
// cooldown has elapsed the breaker moves to half-open and lets the caller
// through as a probe.
func (b *Breaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.st {
	case closed:
		return false
	case halfOpen:
		// a probe is already in flight; everyone else stays held back
		// until it reports via RecordSuccess or RecordFailure
		return true
	}
	if b.now().Sub(b.openedAt) >= b.cooldown {
		b.st = halfOpen
		return false
	}
	return true
}

// Failures returns the current consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Reset closes the breaker and clears the failure count.
func (b *Breaker) Reset() {
	b.mu.Lock()
	b.st = closed
	b.failures = 0
	b.mu.Unlock()
}
