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

// Package memstore provides an in-process implementation of the gateway's
// shared store. It exists for single-process deployments and for exercising
// the breaker and limiter state machines in tests without a real distributed
// store; the state machine logic cannot tell the two apart.
package memstore

import (
	"context"
	"sync"
	"time"

	"go.uber.org/callguard/api/store"
	"go.uber.org/callguard/internal/clock"
)

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for TTLs and window pruning.
func WithClock(clk clock.Clock) Option {
	return func(s *Store) {
		s.clock = clk
	}
}

// Scoped marks the store with the given scope. The default is Local; tests
// that stand in for a fleet-wide store construct one with store.Global.
func Scoped(scope store.Scope) Option {
	return func(s *Store) {
		s.scope = scope
	}
}

type entry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

// Store is an in-memory atomic key-value store.
type Store struct {
	mu      sync.Mutex
	scope   store.Scope
	clock   clock.Clock
	entries map[string]entry
	windows map[string][]time.Time
}

var _ store.Store = (*Store)(nil)

// New returns an empty in-memory store.
func New(opts ...Option) *Store {
	s := &Store{
		scope:   store.Local,
		clock:   clock.NewReal(),
		entries: make(map[string]entry),
		windows: make(map[string][]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scope reports the scope the store was constructed with.
func (s *Store) Scope() store.Scope { return s.scope }

// Get returns the live value at key.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.liveEntry(key)
	if !ok {
		return "", false, nil
	}
	return e.value, true, nil
}

// Set unconditionally writes the value.
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = s.newEntry(value, ttl)
	return nil
}

// CompareAndSwap writes value only if the key currently holds old, or if old
// is empty and the key is absent.
func (s *Store) CompareAndSwap(ctx context.Context, key, old, value string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.liveEntry(key)
	if old == "" {
		if ok {
			return false, nil
		}
	} else if !ok || e.value != old {
		return false, nil
	}
	s.entries[key] = s.newEntry(value, ttl)
	return true, nil
}

// WindowAdd prunes entries older than the window and admits a new entry when
// fewer than capacity remain.
func (s *Store) WindowAdd(ctx context.Context, key string, now time.Time, window time.Duration, capacity int64) (bool, int64, error) {
	if err := ctx.Err(); err != nil {
		return false, 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-window)
	kept := s.windows[key][:0]
	for _, at := range s.windows[key] {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}

	admitted := int64(len(kept)) < capacity
	if admitted {
		kept = append(kept, now)
	}
	s.windows[key] = kept
	return admitted, int64(len(kept)), nil
}

func (s *Store) liveEntry(key string) (entry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return entry{}, false
	}
	if !e.expiresAt.IsZero() && !e.expiresAt.After(s.clock.Now()) {
		delete(s.entries, key)
		return entry{}, false
	}
	return e, true
}

func (s *Store) newEntry(value string, ttl time.Duration) entry {
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = s.clock.Now().Add(ttl)
	}
	return e
}
