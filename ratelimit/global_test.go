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

package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/callguard/api/store"
	"go.uber.org/callguard/internal/clock"
	"go.uber.org/callguard/store/memstore"
)

func TestNewGlobalValidation(t *testing.T) {
	fc := clock.NewFake()
	global := memstore.New(memstore.Scoped(store.Global), memstore.WithClock(fc))

	_, err := NewGlobal("vendor", memstore.New(), 10, time.Minute)
	require.Error(t, err, "local store must be rejected")

	_, err = NewGlobal("vendor", global, 0, time.Minute)
	require.Error(t, err)

	_, err = NewGlobal("vendor", global, 10, 0)
	require.Error(t, err)
}

func TestGlobalLimiterBound(t *testing.T) {
	ctx := context.Background()
	fc := clock.NewFake()
	st := memstore.New(memstore.Scoped(store.Global), memstore.WithClock(fc))

	l, err := NewGlobal("vendor", st, 5, time.Minute, WithClock(fc))
	require.NoError(t, err)

	granted := 0
	for i := 0; i < 10; i++ {
		ok, err := l.Allow(ctx)
		require.NoError(t, err)
		if ok {
			granted++
		}
	}
	assert.Equal(t, 5, granted, "no more than capacity grants per window")

	fc.Add(61 * time.Second)
	ok, err := l.Allow(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "capacity returns after the window slides")
}

func TestGlobalLimiterSharedAcrossPods(t *testing.T) {
	// Several limiters over one store stand in for a fleet of pods; the
	// aggregate grant count must still respect the vendor's capacity.
	ctx := context.Background()
	fc := clock.NewFake()
	st := memstore.New(memstore.Scoped(store.Global), memstore.WithClock(fc))

	const pods = 4
	const capacity = 10

	limiters := make([]*GlobalLimiter, pods)
	for i := range limiters {
		l, err := NewGlobal("vendor", st, capacity, time.Minute, WithClock(fc))
		require.NoError(t, err)
		limiters[i] = l
	}

	var mu sync.Mutex
	granted := 0
	var wg sync.WaitGroup
	for _, l := range limiters {
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(l *GlobalLimiter) {
				defer wg.Done()
				ok, err := l.Allow(ctx)
				assert.NoError(t, err)
				if ok {
					mu.Lock()
					granted++
					mu.Unlock()
				}
			}(l)
		}
	}
	wg.Wait()

	assert.Equal(t, capacity, granted, "fleet-wide grants must not exceed the vendor contract")
}

func TestAcquireReturnsOnContextDone(t *testing.T) {
	ctx := context.Background()
	st := memstore.New(memstore.Scoped(store.Global))

	l, err := NewGlobal("vendor", st, 1, time.Minute)
	require.NoError(t, err)

	require.NoError(t, l.Acquire(ctx))

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err = l.Acquire(waitCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSmootherSizing(t *testing.T) {
	// 10 concurrent slots over 2s mean latency at a 0.8 margin: 4 rps.
	s, err := NewSmoother(10, 2*time.Second, 0.8)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, float64(s.Limit()), 0.001)
}

func TestSmootherValidation(t *testing.T) {
	_, err := NewSmoother(0, time.Second, 0.8)
	require.Error(t, err)
	_, err = NewSmoother(10, 0, 0.8)
	require.Error(t, err)
	_, err = NewSmoother(10, time.Second, 1.5)
	require.Error(t, err)
	_, err = NewSmoother(10, time.Second, -0.1)
	require.Error(t, err)

	s, err := NewSmoother(10, time.Second, 0)
	require.NoError(t, err)
	assert.InDelta(t, 8.0, float64(s.Limit()), 0.001, "zero margin selects the default")
}
