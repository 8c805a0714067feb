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

package clock

import (
	"runtime"
	"sync"
	"time"
)

// FakeClock is a clock that only moves forward programmatically. It is
// preferable to a real-time clock when testing time-based behavior such as
// circuit breaker open-timeouts and rate-limit windows.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*fakeWaiter
}

var _ Clock = (*FakeClock)(nil)

type fakeWaiter struct {
	at time.Time
	ch chan time.Time
}

// NewFake returns a fake clock set to the Unix epoch.
// Unix(0, 0) rather than the zero time, so windows that special-case the
// zero value as "not started" behave as in production.
func NewFake() *FakeClock {
	return &FakeClock{now: time.Unix(0, 0)}
}

// Now returns the current time on the fake clock.
func (fc *FakeClock) Now() time.Time {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.now
}

// After produces a channel that emits once the clock has been advanced by at
// least d.
func (fc *FakeClock) After(d time.Duration) <-chan time.Time {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	w := &fakeWaiter{at: fc.now.Add(d), ch: make(chan time.Time, 1)}
	if d <= 0 {
		w.ch <- fc.now
		return w.ch
	}
	fc.waiters = append(fc.waiters, w)
	return w.ch
}

// Sleep pauses the goroutine until the clock is advanced by d. The clock must
// be moved forward from a separate goroutine.
func (fc *FakeClock) Sleep(d time.Duration) {
	<-fc.After(d)
}

// Add moves the fake clock forward by the duration, firing any waiters whose
// time has come.
func (fc *FakeClock) Add(d time.Duration) {
	fc.mu.Lock()
	fc.now = fc.now.Add(d)
	end := fc.now
	remaining := fc.waiters[:0]
	for _, w := range fc.waiters {
		if !w.at.After(end) {
			w.ch <- end
		} else {
			remaining = append(remaining, w)
		}
	}
	fc.waiters = remaining
	fc.mu.Unlock()

	// Let woken goroutines run before the caller proceeds.
	runtime.Gosched()
}
