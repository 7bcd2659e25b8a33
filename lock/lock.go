// Package lock provides a lease-based distributed mutex on top of a shared
// store. Acquire is a non-blocking atomic set-if-absent with a lease TTL;
// Release only deletes the lock when the stored token still belongs to the
// caller, so a slow holder whose lease already expired cannot delete a lock
// that has since been re-acquired by someone else. Lease expiry is the sole
// crash-recovery mechanism; there is no heartbeat renewal.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/unkn0wn-root/herdlock/store"
)

var ErrNilStore = errors.New("lock: nil store")

type Locker struct {
	st store.Client
	ns string
}

func New(st store.Client, namespace string) (*Locker, error) {
	if st == nil {
		return nil, ErrNilStore
	}
	return &Locker{st: st, ns: namespace}, nil
}

func (l *Locker) key(k string) string { return "lock:" + l.ns + ":" + k }

// TryAcquire attempts to take the lock for key with the given lease. On
// success it returns a fresh opaque ownership token; when another holder is
// active it returns "" with a nil error. The lease must exceed the expected
// worst-case critical-section runtime.
func (l *Locker) TryAcquire(ctx context.Context, key string, lease time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := l.st.SetNX(ctx, l.key(key), []byte(token), lease)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return token, nil
}

// Release deletes the lock iff the stored token equals token. Returns
// whether the release actually removed the lock; false means the lease had
// already expired (and possibly been re-acquired).
func (l *Locker) Release(ctx context.Context, key, token string) (bool, error) {
	return l.st.CompareAndDelete(ctx, l.key(key), []byte(token))
}
