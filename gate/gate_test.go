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

package gate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNewRejectsNonPositive(t *testing.T) {
	_, err := New(0)
	require.Error(t, err)
	_, err = New(-1)
	require.Error(t, err)
}

func TestAcquireRelease(t *testing.T) {
	g, err := New(2)
	require.NoError(t, err)

	release, err := g.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, g.InUse())
	assert.Equal(t, 0.5, g.Saturation())

	release()
	assert.Equal(t, 0, g.InUse())

	// Double release must not free a slot twice.
	release()
	assert.Equal(t, 0, g.InUse())
}

func TestAcquireBlocksAtCapacity(t *testing.T) {
	g, err := New(1)
	require.NoError(t, err)

	release, err := g.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = g.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release2, err := g.Acquire(context.Background())
	require.NoError(t, err)
	release2()
}

func TestInUseNeverExceedsMax(t *testing.T) {
	const maxSlots = 5
	const workers = 50

	g, err := New(maxSlots)
	require.NoError(t, err)

	var mu sync.Mutex
	peak := 0

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := g.Acquire(context.Background())
			if !assert.NoError(t, err) {
				return
			}
			defer release()

			in := g.InUse()
			mu.Lock()
			if in > peak {
				peak = in
			}
			mu.Unlock()
			assert.LessOrEqual(t, in, maxSlots)
			time.Sleep(time.Millisecond)
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, g.InUse(), "all slots must return after completion")
	assert.LessOrEqual(t, peak, maxSlots)
	assert.Greater(t, peak, 1, "expected some concurrency in the test")
}

func TestReleaseOnCancelledAcquire(t *testing.T) {
	g, err := New(1)
	require.NoError(t, err)

	release, err := g.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := g.Acquire(ctx)
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled acquire did not return")
	}

	release()
	assert.Equal(t, 0, g.InUse())
}
