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

// Package gate bounds in-flight vendor calls per pod with a counting
// semaphore. The gate is strictly pod-local: it protects this process's
// sockets, memory, and event loop, not the vendor's contract. Slots must
// never be held across a retry backoff sleep; the retry loop releases the
// gate before backing off and re-acquires for the next attempt.
package gate

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/atomic"
)

// Gate is a counting semaphore over vendor-call slots.
type Gate struct {
	slots chan struct{}
	max   int
	inUse atomic.Int32
}

// New returns a gate with the given number of slots.
func New(maxSlots int) (*Gate, error) {
	if maxSlots <= 0 {
		return nil, errors.New("gate needs at least one slot")
	}
	return &Gate{
		slots: make(chan struct{}, maxSlots),
		max:   maxSlots,
	}, nil
}

// Acquire obtains a slot, blocking until one frees up or the context is
// done. On success it returns a release function that must be called exactly
// once on every exit path, including cancellation; calling it more than once
// is a no-op.
func (g *Gate) Acquire(ctx context.Context) (release func(), err error) {
	select {
	case g.slots <- struct{}{}:
	default:
		// Slow path: wait for a slot or the deadline.
		select {
		case g.slots <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	g.inUse.Inc()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.inUse.Dec()
			<-g.slots
		})
	}, nil
}

// InUse returns the number of slots currently held.
func (g *Gate) InUse() int {
	return int(g.inUse.Load())
}

// Max returns the gate's slot count.
func (g *Gate) Max() int {
	return g.max
}

// Saturation returns the held fraction of slots, in [0, 1]. The load shedder
// and the retry budget read this as the pod's primary pressure signal.
func (g *Gate) Saturation() float64 {
	return float64(g.inUse.Load()) / float64(g.max)
}
