package memory

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"
)

func TestSetExGetDel(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, ok, err := s.Get(ctx, "k"); err != nil || ok {
		t.Fatalf("expected miss, ok=%v err=%v", ok, err)
	}
	if err := s.SetEx(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("SetEx: %v", err)
	}
	b, ok, err := s.Get(ctx, "k")
	if err != nil || !ok || string(b) != "v" {
		t.Fatalf("Get: ok=%v err=%v val=%q", ok, err, b)
	}
	n, err := s.Del(ctx, "k", "nope")
	if err != nil || n != 1 {
		t.Fatalf("Del: n=%d err=%v", n, err)
	}
}

func TestExpiry(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.SetEx(ctx, "k", []byte("v"), 20*time.Millisecond); err != nil {
		t.Fatalf("SetEx: %v", err)
	}
	time.Sleep(40 * time.Millisecond)
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatalf("entry should have expired")
	}
}

func TestSetNX(t *testing.T) {
	ctx := context.Background()
	s := New()

	ok, err := s.SetNX(ctx, "k", []byte("a"), time.Minute)
	if err != nil || !ok {
		t.Fatalf("first SetNX should win: ok=%v err=%v", ok, err)
	}
	ok, err = s.SetNX(ctx, "k", []byte("b"), time.Minute)
	if err != nil || ok {
		t.Fatalf("second SetNX should lose: ok=%v err=%v", ok, err)
	}
	// after expiry the key is free again
	if err := s.SetEx(ctx, "k2", []byte("x"), 10*time.Millisecond); err != nil {
		t.Fatalf("SetEx: %v", err)
	}
	time.Sleep(25 * time.Millisecond)
	if ok, _ := s.SetNX(ctx, "k2", []byte("y"), time.Minute); !ok {
		t.Fatalf("SetNX after expiry should win")
	}
}

func TestCompareAndDelete(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.SetEx(ctx, "k", []byte("token-1"), time.Minute)

	if ok, _ := s.CompareAndDelete(ctx, "k", []byte("token-2")); ok {
		t.Fatalf("CAD with wrong token must not delete")
	}
	if _, ok, _ := s.Get(ctx, "k"); !ok {
		t.Fatalf("key should survive failed CAD")
	}
	if ok, _ := s.CompareAndDelete(ctx, "k", []byte("token-1")); !ok {
		t.Fatalf("CAD with matching token should delete")
	}
	if ok, _ := s.CompareAndDelete(ctx, "k", []byte("token-1")); ok {
		t.Fatalf("CAD on missing key should report false")
	}
}

func TestIncrWindowAtomicUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	s := New()

	const n = 64
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, _, _ = s.IncrWindow(ctx, "w", time.Minute)
		}()
	}
	wg.Wait()

	count, remaining, err := s.IncrWindow(ctx, "w", time.Minute)
	if err != nil {
		t.Fatalf("IncrWindow: %v", err)
	}
	if count != n+1 {
		t.Fatalf("lost updates: count=%d want=%d", count, n+1)
	}
	if remaining <= 0 || remaining > time.Minute {
		t.Fatalf("remaining out of range: %v", remaining)
	}
}

func TestIncrWindowRestartsAfterExpiry(t *testing.T) {
	ctx := context.Background()
	s := New()

	if c, _, _ := s.IncrWindow(ctx, "w", 15*time.Millisecond); c != 1 {
		t.Fatalf("first increment should be 1, got %d", c)
	}
	if c, _, _ := s.IncrWindow(ctx, "w", 15*time.Millisecond); c != 2 {
		t.Fatalf("second increment should be 2, got %d", c)
	}
	time.Sleep(30 * time.Millisecond)
	if c, _, _ := s.IncrWindow(ctx, "w", 15*time.Millisecond); c != 1 {
		t.Fatalf("window should have reset, got %d", c)
	}
}

func TestScanGlob(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, k := range []string{"cache:app:a", "cache:app:b", "cache:other:c", "lock:app:a"} {
		_ = s.SetEx(ctx, k, []byte("x"), time.Minute)
	}
	keys, err := s.Scan(ctx, "cache:app:*")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	sort.Strings(keys)
	want := []string{"cache:app:a", "cache:app:b"}
	if len(keys) != len(want) || keys[0] != want[0] || keys[1] != want[1] {
		t.Fatalf("Scan got %v want %v", keys, want)
	}
}
