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

// Package ratelimit provides the gateway's two throughput governors: the
// store-backed global limiter that enforces the vendor's contractual rate
// across the whole fleet, and the pod-local smoother that shapes bursts to
// this pod's own capacity. The global limiter is configured to the vendor's
// contract exactly — never divided by pod count — so it stays correct under
// autoscaling.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/uber-go/tally"
	"go.uber.org/callguard/api/store"
	"go.uber.org/callguard/internal/clock"
)

const _keyPrefix = "rl:"

// GlobalOption configures a GlobalLimiter.
type GlobalOption func(*GlobalLimiter)

// WithClock overrides the limiter's clock.
func WithClock(clk clock.Clock) GlobalOption {
	return func(l *GlobalLimiter) {
		l.clock = clk
	}
}

// WithMetricsScope sets a tally scope for limiter metrics.
func WithMetricsScope(scope tally.Scope) GlobalOption {
	return func(l *GlobalLimiter) {
		l.grants = scope.Counter("ratelimit_grants")
		l.denials = scope.Counter("ratelimit_denials")
	}
}

// WithPollInterval overrides how often Acquire re-polls the shared window
// while waiting for capacity.
func WithPollInterval(d time.Duration) GlobalOption {
	return func(l *GlobalLimiter) {
		l.pollInterval = d
	}
}

// GlobalLimiter enforces a sliding-window request rate against the shared
// store. One instance per vendor key; every pod consults it before every
// vendor call.
type GlobalLimiter struct {
	store        store.Store
	key          string
	capacity     int64
	window       time.Duration
	clock        clock.Clock
	pollInterval time.Duration

	grants  tally.Counter
	denials tally.Counter
}

// NewGlobal builds the fleet-wide limiter for a vendor key. Construction
// fails on a pod-local store: only shared state can keep the aggregate rate
// within the vendor's contract regardless of pod count.
func NewGlobal(key string, st store.Store, capacity int64, window time.Duration, opts ...GlobalOption) (*GlobalLimiter, error) {
	if st.Scope() != store.Global {
		return nil, fmt.Errorf("global rate limiter for %q requires a global store, got %v", key, st.Scope())
	}
	if capacity <= 0 {
		return nil, errors.New("global rate limiter capacity must be positive")
	}
	if window <= 0 {
		return nil, errors.New("global rate limiter window must be positive")
	}

	l := &GlobalLimiter{
		store:    st,
		key:      _keyPrefix + key,
		capacity: capacity,
		window:   window,
		clock:    clock.NewReal(),
		grants:   tally.NoopScope.Counter("ratelimit_grants"),
		denials:  tally.NoopScope.Counter("ratelimit_denials"),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.pollInterval == 0 {
		// One token's worth of window, clamped to keep polling civil.
		l.pollInterval = window / time.Duration(capacity)
		if l.pollInterval < 5*time.Millisecond {
			l.pollInterval = 5 * time.Millisecond
		}
		if l.pollInterval > 250*time.Millisecond {
			l.pollInterval = 250 * time.Millisecond
		}
	}
	return l, nil
}

// Allow makes a single attempt to take a window slot.
func (l *GlobalLimiter) Allow(ctx context.Context) (bool, error) {
	admitted, _, err := l.store.WindowAdd(ctx, l.key, l.clock.Now(), l.window, l.capacity)
	if err != nil {
		return false, err
	}
	if admitted {
		l.grants.Inc(1)
	} else {
		l.denials.Inc(1)
	}
	return admitted, nil
}

// Acquire blocks until a window slot is granted or the context is done. The
// caller bounds the wait with the admission queue timeout.
func (l *GlobalLimiter) Acquire(ctx context.Context) error {
	for {
		admitted, err := l.Allow(ctx)
		if err != nil {
			return err
		}
		if admitted {
			return nil
		}
		select {
		case <-l.clock.After(l.pollInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
