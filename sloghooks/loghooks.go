package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/herdlock"
)

type Options struct {
	// Sampling to avoid floods on hot keys; 0/1 = log all.
	SelfHealEvery  uint64
	ContendedEvery uint64
	StaleEvery     uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	selfHealCtr  atomic.Uint64
	contendedCtr atomic.Uint64
	staleCtr     atomic.Uint64
}

var _ herdlock.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) SelfHeal(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("herdlock.self_heal",
		"key", h.redact(storageKey),
		"reason", reason)
}

func (h *Hooks) LockContended(key string) {
	if h.l == nil || !sample(h.opts.ContendedEvery, &h.contendedCtr) {
		return
	}
	h.l.Debug("herdlock.lock_contended",
		"key", h.redact(key))
}

func (h *Hooks) StaleServed(key string, age time.Duration) {
	if h.l == nil || !sample(h.opts.StaleEvery, &h.staleCtr) {
		return
	}
	h.l.Info("herdlock.stale_served",
		"key", h.redact(key),
		"age", age)
}

func (h *Hooks) WaitTimeout(key string) {
	if h.l == nil {
		return
	}
	h.l.Warn("herdlock.wait_timeout",
		"key", h.redact(key))
}

func (h *Hooks) BreakerOpen(failures int) {
	if h.l == nil {
		return
	}
	h.l.Error("herdlock.breaker_open",
		"failures", failures)
}

func (h *Hooks) BreakerClose() {
	if h.l == nil {
		return
	}
	h.l.Info("herdlock.breaker_close")
}
