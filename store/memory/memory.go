// Package memory implements store.Client in-process. It provides the same
// atomicity guarantees as the Redis client, but only within one process:
// use it for tests and single-node deployments, never for cross-process
// coordination.
package memory

import (
	"context"
	"path"
	"sync"
	"time"

	"github.com/unkn0wn-root/herdlock/store"
)

type entry struct {
	val []byte
	exp time.Time // zero => no TTL
}

type Memory struct {
	mu sync.Mutex
	m  map[string]entry
}

var _ store.Client = (*Memory)(nil)

func New() *Memory { return &Memory{m: make(map[string]entry)} }

// expired reports whether e is past its TTL. Caller holds mu.
func (s *Memory) expired(e entry, now time.Time) bool {
	return !e.exp.IsZero() && now.After(e.exp)
}

func (s *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[key]
	if !ok {
		return nil, false, nil
	}
	if s.expired(e, time.Now()) {
		delete(s.m, key)
		return nil, false, nil
	}
	out := make([]byte, len(e.val))
	copy(out, e.val)
	return out, true, nil
}

func (s *Memory) SetEx(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	v := make([]byte, len(value))
	copy(v, value)
	s.mu.Lock()
	s.m[key] = entry{val: v, exp: exp}
	s.mu.Unlock()
	return nil
}

func (s *Memory) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.m[key]; ok && !s.expired(e, now) {
		return false, nil
	}
	var exp time.Time
	if ttl > 0 {
		exp = now.Add(ttl)
	}
	v := make([]byte, len(value))
	copy(v, value)
	s.m[key] = entry{val: v, exp: exp}
	return true, nil
}

func (s *Memory) CompareAndDelete(_ context.Context, key string, expected []byte) (bool, error) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[key]
	if !ok || s.expired(e, now) {
		delete(s.m, key)
		return false, nil
	}
	if string(e.val) != string(expected) {
		return false, nil
	}
	delete(s.m, key)
	return true, nil
}

func (s *Memory) IncrWindow(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[key]
	if !ok || s.expired(e, now) {
		exp := now.Add(window)
		s.m[key] = entry{val: []byte{1}, exp: exp}
		return 1, window, nil
	}
	// counter lives in val as a little manual int to keep entry uniform
	count := decodeCount(e.val) + 1
	e.val = encodeCount(count)
	s.m[key] = e
	return count, time.Until(e.exp), nil
}

func (s *Memory) Scan(_ context.Context, pattern string) ([]string, error) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k, e := range s.m {
		if s.expired(e, now) {
			delete(s.m, k)
			continue
		}
		// path.Match implements the same *, ?, [...] glob subset as redis
		// MATCH for keys that contain no '/'
		if ok, err := path.Match(pattern, k); err == nil && ok {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (s *Memory) Del(_ context.Context, keys ...string) (int64, error) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, k := range keys {
		if e, ok := s.m[k]; ok {
			if !s.expired(e, now) {
				n++
			}
			delete(s.m, k)
		}
	}
	return n, nil
}

func (s *Memory) Close(context.Context) error { return nil }

// Len reports the number of live entries. Test helper.
func (s *Memory) Len() int {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.m {
		if !s.expired(e, now) {
			n++
		}
	}
	return n
}

func encodeCount(v int64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

func decodeCount(b []byte) int64 {
	if len(b) == 1 {
		return int64(b[0]) // first-increment marker
	}
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}
