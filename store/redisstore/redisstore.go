// Copyright (c) 2026 Uber Technologies, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package redisstore implements the gateway's shared store on Redis. Every
// operation is a single round trip: compare-and-swap and the sliding window
// run as Lua scripts, so concurrent pods cannot interleave between a read
// and its dependent write.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/callguard/api/store"
)

const _keyPrefix = "callguard:"

// casScript swaps the value only when the current value matches. An empty
// expected value means set-if-absent. TTL is in milliseconds; zero means no
// expiry.
var casScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if ARGV[1] == '' then
	if current then return 0 end
else
	if not current or current ~= ARGV[1] then return 0 end
end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[1], ARGV[2])
end
return 1
`)

// windowScript prunes window members at or before the cutoff score, then
// admits a new member when the remaining count is under capacity. The key
// expires one window after its newest member so idle vendors cost nothing.
var windowScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
local count = redis.call('ZCARD', KEYS[1])
if count < tonumber(ARGV[2]) then
	redis.call('ZADD', KEYS[1], ARGV[3], ARGV[4])
	redis.call('PEXPIRE', KEYS[1], ARGV[5])
	return {1, count + 1}
end
return {0, count}
`)

// Store is a Redis-backed shared store. Its scope is always Global.
type Store struct {
	client redis.UniversalClient
}

var _ store.Store = (*Store)(nil)

// New wraps a connected Redis client. The client's own pooling, timeouts,
// and replication are the caller's concern.
func New(client redis.UniversalClient) *Store {
	return &Store{client: client}
}

// Scope always reports Global: Redis state is visible to every pod.
func (s *Store) Scope() store.Scope { return store.Global }

// Get returns the value at key.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, _keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %q: %w", key, err)
	}
	return v, true, nil
}

// Set unconditionally writes the value with the given TTL.
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, _keyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// CompareAndSwap writes value only if the key currently holds old.
func (s *Store) CompareAndSwap(ctx context.Context, key, old, value string, ttl time.Duration) (bool, error) {
	res, err := casScript.Run(ctx, s.client,
		[]string{_keyPrefix + key},
		old, value, ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("redis cas %q: %w", key, err)
	}
	return res == 1, nil
}

// WindowAdd implements the sliding-window counter on a sorted set keyed by
// timestamp scores.
func (s *Store) WindowAdd(ctx context.Context, key string, now time.Time, window time.Duration, capacity int64) (bool, int64, error) {
	cutoff := now.Add(-window).UnixNano()
	member := strconv.FormatInt(now.UnixNano(), 10) + "-" + strconv.FormatInt(rand.Int63(), 36)

	res, err := windowScript.Run(ctx, s.client,
		[]string{_keyPrefix + "win:" + key},
		cutoff, capacity, now.UnixNano(), member, window.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("redis window add %q: %w", key, err)
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("redis window add %q: unexpected script reply %v", key, res)
	}
	return res[0] == 1, res[1], nil
}
