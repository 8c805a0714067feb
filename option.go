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

package callguard

import (
	"github.com/uber-go/tally"
	"go.uber.org/callguard/api/backoff"
	"go.uber.org/callguard/api/middleware"
	"go.uber.org/callguard/api/store"
	"go.uber.org/callguard/internal/clock"
	"go.uber.org/zap"
)

// Option customizes a Gateway beyond its Config.
type Option func(*options)

type options struct {
	logger      *zap.Logger
	scope       tally.Scope
	clock       clock.Clock
	globalStore store.Store
	strategy    backoff.Strategy
	middleware  []middleware.UnaryOutbound
}

func defaultOptions() options {
	return options{
		logger: zap.NewNop(),
		scope:  tally.NoopScope,
		clock:  clock.NewReal(),
	}
}

// WithLogger sets the logger for gateway lifecycle and degradation events.
// Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetricsScope sets the tally scope for gateway metrics. Defaults to
// tally.NoopScope.
func WithMetricsScope(scope tally.Scope) Option {
	return func(o *options) {
		o.scope = scope
	}
}

// WithClock overrides the time source. Tests use this with a fake clock.
func WithClock(clk clock.Clock) Option {
	return func(o *options) {
		o.clock = clk
	}
}

// WithGlobalStore sets the shared store backing the breaker, the vendor rate
// limiter, and the quota guard. The store must be Global scope. Without this
// option the gateway falls back to an in-process store, which protects a
// single pod but cannot coordinate a fleet.
func WithGlobalStore(st store.Store) Option {
	return func(o *options) {
		o.globalStore = st
	}
}

// WithBackoff overrides the retry backoff strategy.
func WithBackoff(strategy backoff.Strategy) Option {
	return func(o *options) {
		o.strategy = strategy
	}
}

// WithMiddleware wraps the vendor outbound with middleware, applied so the
// first middleware given is the outermost. Middleware runs inside the guard
// pipeline, once per attempt.
func WithMiddleware(mw ...middleware.UnaryOutbound) Option {
	return func(o *options) {
		o.middleware = append(o.middleware, mw...)
	}
}
