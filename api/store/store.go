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

// Package store defines the atomic key-value store consumed by the gateway's
// fleet-wide control components (circuit breaker, vendor rate limiter, caller
// quota). Every mutation is a single atomic round trip: the breaker and the
// limiters never read-then-write as two operations, since concurrent pods
// would race between the two.
package store

import (
	"context"
	"time"
)

// Scope declares whether a store's state is visible to one pod or to the
// whole fleet. Components that exist to provide fleet-wide guarantees (the
// circuit breaker, the vendor rate limiter, the caller quota guard) refuse
// construction with a Local store.
type Scope int

const (
	// Local state is owned by a single pod process.
	Local Scope = iota

	// Global state is shared by every pod in the fleet.
	Global
)

// String returns the lowercase scope name.
func (s Scope) String() string {
	if s == Global {
		return "global"
	}
	return "local"
}

// Store is an atomic key-value store.
//
// Implementations MUST make each method a single atomic operation with
// respect to concurrent callers, whether those callers are goroutines in one
// process (memstore) or pods across a fleet (redisstore).
type Store interface {
	// Scope reports whether the store's state is pod-local or fleet-wide.
	Scope() Scope

	// Get returns the value at key, and whether the key exists.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set unconditionally writes the value with the given TTL. A zero TTL
	// means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// CompareAndSwap writes value only if the key currently holds old.
	// An empty old means "only if the key is absent". It returns whether the
	// swap happened.
	CompareAndSwap(ctx context.Context, key, old, value string, ttl time.Duration) (swapped bool, err error)

	// WindowAdd implements a sliding-window counter in one atomic operation:
	// it drops window entries older than the window, and if fewer than
	// capacity entries remain it records a new entry at now. It returns
	// whether the entry was admitted and the entry count after the call.
	WindowAdd(ctx context.Context, key string, now time.Time, window time.Duration, capacity int64) (admitted bool, count int64, err error)
}
