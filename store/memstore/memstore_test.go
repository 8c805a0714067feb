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

package memstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/callguard/api/store"
	"go.uber.org/callguard/internal/clock"
)

func TestScope(t *testing.T) {
	assert.Equal(t, store.Local, New().Scope())
	assert.Equal(t, store.Global, New(Scoped(store.Global)).Scope())
}

func TestSetGet(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "k", "v", 0))
	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestCancelledContextFailsEveryOp(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, s.Set(ctx, "k", "v", 0), context.Canceled)
	_, err = s.CompareAndSwap(ctx, "k", "", "v", 0)
	assert.ErrorIs(t, err, context.Canceled)
	_, _, err = s.WindowAdd(ctx, "k", time.Now(), time.Second, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTTLExpiry(t *testing.T) {
	ctx := context.Background()
	fc := clock.NewFake()
	s := New(WithClock(fc))

	require.NoError(t, s.Set(ctx, "k", "v", time.Minute))
	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	fc.Add(time.Minute)
	_, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "value should expire with its TTL")
}

func TestCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	s := New()

	// Empty old means set-if-absent.
	swapped, err := s.CompareAndSwap(ctx, "k", "", "a", 0)
	require.NoError(t, err)
	assert.True(t, swapped)

	swapped, err = s.CompareAndSwap(ctx, "k", "", "b", 0)
	require.NoError(t, err)
	assert.False(t, swapped, "set-if-absent must fail when present")

	swapped, err = s.CompareAndSwap(ctx, "k", "wrong", "b", 0)
	require.NoError(t, err)
	assert.False(t, swapped)

	swapped, err = s.CompareAndSwap(ctx, "k", "a", "b", 0)
	require.NoError(t, err)
	assert.True(t, swapped)

	v, _, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "b", v)
}

func TestCompareAndSwapRace(t *testing.T) {
	// Only one of many concurrent swappers from the same base value may win.
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Set(ctx, "k", "base", 0))

	var wins int64
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			swapped, err := s.CompareAndSwap(ctx, "k", "base", "next", 0)
			assert.NoError(t, err)
			if swapped {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), wins)
}

func TestWindowAddBounded(t *testing.T) {
	ctx := context.Background()
	fc := clock.NewFake()
	s := New(WithClock(fc))

	for i := int64(1); i <= 3; i++ {
		admitted, count, err := s.WindowAdd(ctx, "w", fc.Now(), time.Minute, 3)
		require.NoError(t, err)
		assert.True(t, admitted)
		assert.Equal(t, i, count)
	}

	admitted, count, err := s.WindowAdd(ctx, "w", fc.Now(), time.Minute, 3)
	require.NoError(t, err)
	assert.False(t, admitted)
	assert.Equal(t, int64(3), count)
}

func TestWindowAddSlides(t *testing.T) {
	ctx := context.Background()
	fc := clock.NewFake()
	s := New(WithClock(fc))

	admitted, _, err := s.WindowAdd(ctx, "w", fc.Now(), time.Minute, 1)
	require.NoError(t, err)
	require.True(t, admitted)

	admitted, _, err = s.WindowAdd(ctx, "w", fc.Now(), time.Minute, 1)
	require.NoError(t, err)
	assert.False(t, admitted)

	fc.Add(61 * time.Second)
	admitted, count, err := s.WindowAdd(ctx, "w", fc.Now(), time.Minute, 1)
	require.NoError(t, err)
	assert.True(t, admitted, "old entries must fall out of the window")
	assert.Equal(t, int64(1), count)
}
