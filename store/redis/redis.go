// Package redis implements store.Client on top of go-redis. Atomicity of
// CompareAndDelete and IncrWindow comes from server-side Lua scripts, so the
// guarantees hold across processes and hosts sharing one Redis.
package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/herdlock/store"
)

var ErrNilClient = errors.New("redis store: nil client")

// delete key iff its value equals the caller's token
var cadScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// INCR and arm the expiry only on the first increment of the window;
// returns {count, pttl_ms}
var incrWindowScript = goredis.NewScript(`
local c = redis.call("INCR", KEYS[1])
if c == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local t = redis.call("PTTL", KEYS[1])
return {c, t}
`)

type Redis struct {
	rdb         goredis.UniversalClient
	closeClient bool
}

var _ store.Client = (*Redis)(nil)

type Config struct {
	Client      goredis.UniversalClient
	CloseClient bool // set true only if this store exclusively owns the client
}

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Redis{rdb: cfg.Client, closeClient: cfg.CloseClient}, nil
}

func (s *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, store.Unavailable("get", err)
	}
	return b, true, nil
}

func (s *Redis) SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0 // non-positive TTLs mean "no expiry" per Client contract
	}
	if err := s.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return store.Unavailable("setex", err)
	}
	return nil
}

func (s *Redis) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, store.Unavailable("setnx", err)
	}
	return ok, nil
}

func (s *Redis) CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error) {
	n, err := cadScript.Run(ctx, s.rdb, []string{key}, expected).Int64()
	if err != nil {
		return false, store.Unavailable("cad", err)
	}
	return n == 1, nil
}

func (s *Redis) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	res, err := incrWindowScript.Run(ctx, s.rdb, []string{key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, 0, store.Unavailable("incrwindow", err)
	}
	if len(res) != 2 {
		return 0, 0, store.Unavailable("incrwindow", errors.New("unexpected script reply"))
	}
	count := res[0]
	remaining := time.Duration(res[1]) * time.Millisecond
	if remaining < 0 {
		// PTTL returns -1/-2 for missing expiry; treat as a full window
		remaining = window
	}
	return count, remaining, nil
}

func (s *Redis) Scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := s.rdb.Scan(ctx, 0, pattern, 256).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, store.Unavailable("scan", err)
	}
	return keys, nil
}

func (s *Redis) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.rdb.Del(ctx, keys...).Result()
	if err != nil {
		return 0, store.Unavailable("del", err)
	}
	return n, nil
}

// Close releases the underlying redis client only when this store owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (s *Redis) Close(context.Context) error {
	if s.closeClient {
		if err := s.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
