// Package ratelimit implements fixed-window request accounting per
// (identity, resource) pair on a shared store. Every window key self-expires
// via the store's TTL, so memory stays bounded without any server-side list
// of known clients.
package ratelimit

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/unkn0wn-root/herdlock/store"
)

const (
	DefaultWindow = time.Minute
	DefaultLimit  = 60
)

var ErrNilStore = errors.New("ratelimit: nil store")

type Config struct {
	// Namespace isolates this limiter's keys. Required.
	Namespace string
	// Limit is the steady-state cap per window. 0 => 60.
	Limit int
	// Window is the accounting interval. 0 => 1m.
	Window time.Duration
	// Burst is an extra allowance honored only while the window is young
	// (age <= BurstWindow). 0 disables bursting.
	Burst int
	// BurstWindow bounds how long after a window opens the burst allowance
	// applies. 0 => Window/10.
	BurstWindow time.Duration
	// FailClosed denies requests when the store is unreachable. The zero
	// value fails open: a broken limiter must not take the product down.
	FailClosed bool
}

// Result is the outcome of one Check call.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter counts requests per (identity, resource) in fixed windows.
// Distinct pairs are fully independent. Safe for concurrent use from any
// number of goroutines and processes sharing the store.
type Limiter struct {
	st          store.Client
	ns          string
	limit       int
	window      time.Duration
	burst       int
	burstWindow time.Duration
	failClosed  bool
}

func New(st store.Client, cfg Config) (*Limiter, error) {
	if st == nil {
		return nil, ErrNilStore
	}
	if cfg.Namespace == "" {
		return nil, errors.New("ratelimit: namespace is required")
	}
	l := &Limiter{
		st:          st,
		ns:          cfg.Namespace,
		limit:       cfg.Limit,
		window:      cfg.Window,
		burst:       cfg.Burst,
		burstWindow: cfg.BurstWindow,
		failClosed:  cfg.FailClosed,
	}
	if l.limit <= 0 {
		l.limit = DefaultLimit
	}
	if l.window <= 0 {
		l.window = DefaultWindow
	}
	if l.burstWindow <= 0 {
		l.burstWindow = l.window / 10
	}
	return l, nil
}

// keyEscaper keeps the ':' separator unambiguous inside key components, so
// ("a:b","c") and ("a","b:c") — or any IPv6 identity — never fold into one
// window.
var keyEscaper = strings.NewReplacer(`\`, `\\`, ":", `\:`)

func (l *Limiter) key(identity, resource string) string {
	return "rate:" + l.ns + ":" + keyEscaper.Replace(identity) + ":" + keyEscaper.Replace(resource)
}

// Check records one request for (identity, resource) and reports whether it
// is within the limit. The increment is atomic with respect to concurrent
// checkers on the same pair — no lost updates. When the store is down the
// error is returned and Allowed follows the FailClosed policy.
func (l *Limiter) Check(ctx context.Context, identity, resource string) (Result, error) {
	count, remaining, err := l.st.IncrWindow(ctx, l.key(identity, resource), l.window)
	if err != nil {
		return Result{Allowed: !l.failClosed}, err
	}

	limit := l.limit
	if l.burst > 0 {
		// the window's age is how much of it has already elapsed
		if age := l.window - remaining; age <= l.burstWindow {
			limit += l.burst
		}
	}

	left := limit - int(count)
	if left < 0 {
		left = 0
	}
	return Result{
		Allowed:   count <= int64(limit),
		Remaining: left,
		ResetAt:   time.Now().Add(remaining),
	}, nil
}

// Reset deletes the window for (identity, resource) outright, immediately
// re-allowing requests. Administrative override / test reset.
func (l *Limiter) Reset(ctx context.Context, identity, resource string) error {
	_, err := l.st.Del(ctx, l.key(identity, resource))
	return err
}
