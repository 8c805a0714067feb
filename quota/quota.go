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

// Package quota enforces per-caller fairness quotas in shared state, so a
// caller's allowance holds regardless of which pod serves the request. A
// denial is a terminal outcome for the call: the gateway never waits for or
// retries quota.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/uber-go/tally"
	"go.uber.org/callguard/api/store"
	"go.uber.org/callguard/callguarderrors"
	"go.uber.org/callguard/internal/clock"
)

const _keyPrefix = "quota:"

// Option configures a Guard.
type Option func(*Guard)

// WithClock overrides the guard's clock.
func WithClock(clk clock.Clock) Option {
	return func(g *Guard) {
		g.clock = clk
	}
}

// WithMetricsScope sets a tally scope for quota metrics.
func WithMetricsScope(scope tally.Scope) Option {
	return func(g *Guard) {
		g.allowed = scope.Counter("quota_allowed")
		g.denied = scope.Counter("quota_denied")
	}
}

// Guard is the global per-caller quota check. Like the vendor rate limiter
// it is a store-backed sliding window, keyed by caller instead of vendor.
type Guard struct {
	store    store.Store
	capacity int64
	window   time.Duration
	clock    clock.Clock

	allowed tally.Counter
	denied  tally.Counter
}

// NewGuard builds a quota guard over a fleet-wide store.
func NewGuard(st store.Store, capacity int64, window time.Duration, opts ...Option) (*Guard, error) {
	if st.Scope() != store.Global {
		return nil, fmt.Errorf("quota guard requires a global store, got %v", st.Scope())
	}
	if capacity <= 0 {
		return nil, errors.New("quota capacity must be positive")
	}
	if window <= 0 {
		return nil, errors.New("quota window must be positive")
	}
	g := &Guard{
		store:    st,
		capacity: capacity,
		window:   window,
		clock:    clock.NewReal(),
		allowed:  tally.NoopScope.Counter("quota_allowed"),
		denied:   tally.NoopScope.Counter("quota_denied"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// CheckAndConsume atomically consumes one unit of the caller's quota. It
// returns nil when allowed, a CodeQuotaExceeded status when denied, and a
// plain error for store faults.
func (g *Guard) CheckAndConsume(ctx context.Context, caller string) error {
	admitted, count, err := g.store.WindowAdd(ctx, _keyPrefix+caller, g.clock.Now(), g.window, g.capacity)
	if err != nil {
		return err
	}
	if !admitted {
		g.denied.Inc(1)
		return callguarderrors.QuotaExceededErrorf(
			"caller %q exceeded quota of %d per %v (current %d)",
			caller, g.capacity, g.window, count,
		)
	}
	g.allowed.Inc(1)
	return nil
}
