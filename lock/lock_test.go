package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/unkn0wn-root/herdlock/store/memory"
)

func newLocker(t *testing.T) *Locker {
	t.Helper()
	l, err := New(memory.New(), "test")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l
}

func TestAcquireRelease(t *testing.T) {
	ctx := context.Background()
	l := newLocker(t)

	tok, err := l.TryAcquire(ctx, "k", time.Minute)
	if err != nil || tok == "" {
		t.Fatalf("TryAcquire: tok=%q err=%v", tok, err)
	}

	// second acquire while held must fail without error
	tok2, err := l.TryAcquire(ctx, "k", time.Minute)
	if err != nil || tok2 != "" {
		t.Fatalf("second TryAcquire should lose: tok=%q err=%v", tok2, err)
	}

	ok, err := l.Release(ctx, "k", tok)
	if err != nil || !ok {
		t.Fatalf("Release: ok=%v err=%v", ok, err)
	}

	// free again
	tok3, err := l.TryAcquire(ctx, "k", time.Minute)
	if err != nil || tok3 == "" {
		t.Fatalf("TryAcquire after release: tok=%q err=%v", tok3, err)
	}
}

func TestTokenCheckedRelease(t *testing.T) {
	ctx := context.Background()
	l := newLocker(t)

	tok, _ := l.TryAcquire(ctx, "k", time.Minute)
	if ok, _ := l.Release(ctx, "k", "not-the-token"); ok {
		t.Fatalf("release with wrong token must not remove the lock")
	}
	if ok, _ := l.Release(ctx, "k", tok); !ok {
		t.Fatalf("release with owner token should remove the lock")
	}
}

// A holder whose lease expired must not be able to delete the lock after a
// new owner re-acquired it.
func TestExpiredHolderCannotReleaseNewOwner(t *testing.T) {
	ctx := context.Background()
	l := newLocker(t)

	slow, _ := l.TryAcquire(ctx, "k", 15*time.Millisecond)
	if slow == "" {
		t.Fatalf("first acquire should win")
	}
	time.Sleep(30 * time.Millisecond) // lease expires

	fresh, _ := l.TryAcquire(ctx, "k", time.Minute)
	if fresh == "" {
		t.Fatalf("expired lease should be re-acquirable")
	}

	if ok, _ := l.Release(ctx, "k", slow); ok {
		t.Fatalf("stale token released a lock owned by someone else")
	}
	if ok, _ := l.Release(ctx, "k", fresh); !ok {
		t.Fatalf("current owner should still hold the lock")
	}
}

func TestMutualExclusionUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	l := newLocker(t)

	const n = 32
	var wg sync.WaitGroup
	wg.Add(n)
	var mu sync.Mutex
	var winners []string
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			tok, err := l.TryAcquire(ctx, "k", time.Minute)
			if err != nil {
				t.Errorf("TryAcquire: %v", err)
				return
			}
			if tok != "" {
				mu.Lock()
				winners = append(winners, tok)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if len(winners) != 1 {
		t.Fatalf("expected exactly one winner, got %d", len(winners))
	}
}

func TestDistinctKeysIndependent(t *testing.T) {
	ctx := context.Background()
	l := newLocker(t)

	a, _ := l.TryAcquire(ctx, "a", time.Minute)
	b, _ := l.TryAcquire(ctx, "b", time.Minute)
	if a == "" || b == "" {
		t.Fatalf("locks on distinct keys must not contend: a=%q b=%q", a, b)
	}
}
