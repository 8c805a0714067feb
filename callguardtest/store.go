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

package callguardtest

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/callguard/api/store"
)

// CountingStore wraps a store.Store and counts shared-state traffic by key
// prefix, so tests can assert how many rate-limit tokens or quota slots a
// call actually consumed. It can also be forced to fail, to exercise store
// failure policies.
type CountingStore struct {
	inner store.Store

	mu         sync.Mutex
	windowAdds map[string]int
	admitted   map[string]int
	failWith   error
}

var _ store.Store = (*CountingStore)(nil)

// NewCountingStore wraps the given store.
func NewCountingStore(inner store.Store) *CountingStore {
	return &CountingStore{
		inner:      inner,
		windowAdds: make(map[string]int),
		admitted:   make(map[string]int),
	}
}

// FailWith makes every subsequent operation return err. Pass nil to heal the
// store.
func (c *CountingStore) FailWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failWith = err
}

// WindowAdds returns how many WindowAdd calls hit keys with the given
// prefix.
func (c *CountingStore) WindowAdds(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.countLocked(c.windowAdds, prefix)
}

// Admitted returns how many WindowAdd calls with the given key prefix were
// granted, i.e. how many tokens were actually consumed.
func (c *CountingStore) Admitted(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.countLocked(c.admitted, prefix)
}

func (c *CountingStore) countLocked(m map[string]int, prefix string) int {
	total := 0
	for key, n := range m {
		if strings.HasPrefix(key, prefix) {
			total += n
		}
	}
	return total
}

func (c *CountingStore) failing() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failWith
}

// Scope reports the wrapped store's scope.
func (c *CountingStore) Scope() store.Scope { return c.inner.Scope() }

// Get delegates to the wrapped store.
func (c *CountingStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := c.failing(); err != nil {
		return "", false, err
	}
	return c.inner.Get(ctx, key)
}

// Set delegates to the wrapped store.
func (c *CountingStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.failing(); err != nil {
		return err
	}
	return c.inner.Set(ctx, key, value, ttl)
}

// CompareAndSwap delegates to the wrapped store.
func (c *CountingStore) CompareAndSwap(ctx context.Context, key, old, value string, ttl time.Duration) (bool, error) {
	if err := c.failing(); err != nil {
		return false, err
	}
	return c.inner.CompareAndSwap(ctx, key, old, value, ttl)
}

// WindowAdd delegates to the wrapped store and records the attempt and its
// outcome.
func (c *CountingStore) WindowAdd(ctx context.Context, key string, now time.Time, window time.Duration, capacity int64) (bool, int64, error) {
	if err := c.failing(); err != nil {
		return false, 0, err
	}
	admitted, count, err := c.inner.WindowAdd(ctx, key, now, window, capacity)
	if err != nil {
		return admitted, count, err
	}
	c.mu.Lock()
	c.windowAdds[key]++
	if admitted {
		c.admitted[key]++
	}
	c.mu.Unlock()
	return admitted, count, err
}
