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
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/uber-go/tally"
	"go.uber.org/callguard/api/backoff"
	"go.uber.org/callguard/api/middleware"
	"go.uber.org/callguard/api/store"
	"go.uber.org/callguard/api/transport"
	"go.uber.org/callguard/breaker"
	"go.uber.org/callguard/callguarderrors"
	"go.uber.org/callguard/gate"
	internalbackoff "go.uber.org/callguard/internal/backoff"
	"go.uber.org/callguard/internal/clock"
	"go.uber.org/callguard/internal/health"
	"go.uber.org/callguard/quota"
	"go.uber.org/callguard/ratelimit"
	"go.uber.org/callguard/retrybudget"
	"go.uber.org/callguard/shedder"
	"go.uber.org/callguard/store/memstore"
	"go.uber.org/zap"
)

// Gateway mediates calls to one rate-limited vendor. It layers admission
// control (shedding, per-caller quota, shared circuit breaker, global and
// local rate limits, local concurrency) in front of the vendor transport and
// retries retryable failures within an adaptive budget.
//
// A Gateway is safe for concurrent use. Build one per vendor per process and
// share it.
type Gateway struct {
	cfg      Config
	out      transport.UnaryOutbound
	shedder  *shedder.Shedder
	quota    *quota.Guard // nil when quota is disabled
	breaker  *breaker.Breaker
	global   *ratelimit.GlobalLimiter
	smoother *ratelimit.Smoother
	gate     *gate.Gate
	budget   *retrybudget.Calculator
	strategy backoff.Strategy
	health   *health.Window
	clock    clock.Clock
	logger   *zap.Logger
	metrics  gatewayMetrics
}

// New builds a Gateway for the configured vendor, guarding calls issued
// through the given outbound.
func New(cfg Config, out transport.UnaryOutbound, opts ...Option) (*Gateway, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid gateway config: %v", err)
	}
	if out == nil {
		return nil, fmt.Errorf("gateway for vendor %q needs an outbound", cfg.Vendor)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger.With(zap.String("vendor", cfg.Vendor))
	scope := o.scope.Tagged(map[string]string{"vendor": cfg.Vendor})

	st := o.globalStore
	if st == nil {
		st = memstore.New(memstore.Scoped(store.Global), memstore.WithClock(o.clock))
		logger.Warn("no shared store configured; falling back to in-process state, fleet coordination disabled")
	}

	brk, err := breaker.New(cfg.Vendor, st, breaker.Config{
		FailureThreshold:  cfg.CircuitBreaker.FailureThreshold,
		SuccessThreshold:  cfg.CircuitBreaker.SuccessThreshold,
		OpenTimeout:       cfg.CircuitBreaker.OpenTimeout,
		HalfOpenMaxProbes: cfg.CircuitBreaker.HalfOpenMaxProbes,
		FailureWindow:     cfg.CircuitBreaker.FailureWindow,
	},
		breaker.WithClock(o.clock),
		breaker.WithLogger(logger),
		breaker.WithMetricsScope(scope.SubScope("breaker")),
	)
	if err != nil {
		return nil, err
	}

	global, err := ratelimit.NewGlobal(cfg.Vendor, st, cfg.VendorRateLimit.Capacity, cfg.VendorRateLimit.Window,
		ratelimit.WithClock(o.clock),
		ratelimit.WithMetricsScope(scope.SubScope("ratelimit")),
	)
	if err != nil {
		return nil, err
	}

	smoother, err := ratelimit.NewSmoother(cfg.LocalConcurrencyLimit, cfg.ExpectedCallLatency, cfg.LocalRateSafetyMargin)
	if err != nil {
		return nil, err
	}

	gt, err := gate.New(cfg.LocalConcurrencyLimit)
	if err != nil {
		return nil, err
	}

	var guard *quota.Guard
	if cfg.Quota.enabled() {
		guard, err = quota.NewGuard(st, cfg.Quota.Capacity, cfg.Quota.Window,
			quota.WithClock(o.clock),
			quota.WithMetricsScope(scope.SubScope("quota")),
		)
		if err != nil {
			return nil, err
		}
	}

	shed, err := shedder.New(shedder.Thresholds{
		ShedAllAbove:  cfg.Shedding.ShedAllAbove,
		ShedFreeAbove: cfg.Shedding.ShedFreeAbove,
	}, shedder.WithMetricsScope(scope.SubScope("shedder")))
	if err != nil {
		return nil, err
	}

	budget, err := retrybudget.New(retrybudget.Config{
		MaxRetries:      int(cfg.MaxRetries),
		QueueWaitLimit:  cfg.RetryBudget.QueueWaitLimit,
		SaturationLimit: cfg.RetryBudget.SaturationLimit,
	})
	if err != nil {
		return nil, err
	}

	strategy := o.strategy
	if strategy == nil {
		var boOpts []internalbackoff.ExponentialOption
		if cfg.Backoff.Base > 0 {
			boOpts = append(boOpts, internalbackoff.Base(cfg.Backoff.Base))
		}
		if cfg.Backoff.Min > 0 {
			boOpts = append(boOpts, internalbackoff.Min(cfg.Backoff.Min))
		}
		if cfg.Backoff.Max > 0 {
			boOpts = append(boOpts, internalbackoff.Max(cfg.Backoff.Max))
		}
		strategy, err = internalbackoff.NewExponential(boOpts...)
		if err != nil {
			return nil, err
		}
	}

	for i := len(o.middleware) - 1; i >= 0; i-- {
		out = middleware.ApplyUnaryOutbound(out, o.middleware[i])
	}

	if cfg.SLATimeout > 0 {
		worst := time.Duration(1+cfg.MaxRetries) * cfg.CallTimeout
		if cfg.SLATimeout < worst {
			logger.Warn("SLA timeout cannot absorb a fully retried call",
				zap.Duration("slaTimeout", cfg.SLATimeout),
				zap.Duration("worstCase", worst),
				zap.Int("maxRetries", int(cfg.MaxRetries)),
			)
		}
	}

	return &Gateway{
		cfg:      cfg,
		out:      out,
		shedder:  shed,
		quota:    guard,
		breaker:  brk,
		global:   global,
		smoother: smoother,
		gate:     gt,
		budget:   budget,
		strategy: strategy,
		health:   health.NewWindow(0, o.clock),
		clock:    o.clock,
		logger:   logger,
		metrics:  newGatewayMetrics(scope),
	}, nil
}

// Call runs one guarded call end to end: admission, the vendor call, and
// retries within the adaptive budget. The returned error, when non-nil, is
// always a *callguarderrors.Status.
func (g *Gateway) Call(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, callguarderrors.BadRequestErrorf("invalid request: %v", err)
	}
	if !req.Deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, req.Deadline)
		defer cancel()
	}
	g.metrics.calls.Inc(1)

	// Shed before touching any shared state: a saturated pod must fail this
	// request in microseconds.
	if saturation := g.gate.Saturation(); g.shedder.ShouldShed(req.Tier, saturation) {
		g.metrics.sheds.Inc(1)
		return nil, callguarderrors.ShedErrorf("pod saturated at %.2f, shedding %v traffic", saturation, req.Tier)
	}

	// Per-caller quota is consumed once per call, never per retry attempt.
	if g.quota != nil {
		switch err := g.quota.CheckAndConsume(ctx, req.Caller); {
		case err == nil:
		case callguarderrors.IsStatus(err):
			g.metrics.quotaDenials.Inc(1)
			return nil, err
		case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
			// The caller's own context expired mid-check; that is not a
			// store fault.
			return nil, callguarderrors.CancelledErrorf("call abandoned during quota check: %v", ctx.Err())
		default:
			if ferr := g.storeFault("quota", err); ferr != nil {
				return nil, ferr
			}
		}
	}

	res, err := g.callWithRetries(ctx, req)
	if err != nil {
		g.metrics.failures.Inc(1)
		return nil, err
	}
	g.metrics.successes.Inc(1)
	return res, nil
}

// Submit is Call in Outcome form, for hosting layers that prefer to branch
// on codes instead of unwrapping errors.
func (g *Gateway) Submit(ctx context.Context, req *transport.Request) Outcome {
	res, err := g.Call(ctx, req)
	return Outcome{Response: res, Err: err}
}

// Saturation exposes the local gate's saturation ratio for health endpoints.
func (g *Gateway) Saturation() float64 {
	return g.gate.Saturation()
}

// BreakerState reports the breaker state this pod last observed, without a
// store round trip.
func (g *Gateway) BreakerState() breaker.State {
	return g.breaker.CachedState()
}

// storeFault applies the configured store failure policy to a shared-store
// error: nil to continue on local guards only, or a terminal status.
func (g *Gateway) storeFault(stage string, err error) error {
	g.metrics.storeFaults.Inc(1)
	if g.cfg.StoreFailurePolicy == FailClosed {
		g.logger.Error("shared store unavailable, rejecting call",
			zap.String("stage", stage), zap.Error(err))
		return callguarderrors.InternalErrorf("shared store unavailable during %s check: %v", stage, err)
	}
	g.logger.Warn("shared store unavailable, continuing on local guards only",
		zap.String("stage", stage), zap.Error(err))
	return nil
}

type gatewayMetrics struct {
	calls         tally.Counter
	successes     tally.Counter
	failures      tally.Counter
	sheds         tally.Counter
	quotaDenials  tally.Counter
	queueTimeouts tally.Counter
	retries       tally.Counter
	exhausted     tally.Counter
	storeFaults   tally.Counter
}

func newGatewayMetrics(scope tally.Scope) gatewayMetrics {
	return gatewayMetrics{
		calls:         scope.Counter("calls"),
		successes:     scope.Counter("successes"),
		failures:      scope.Counter("failures"),
		sheds:         scope.Counter("sheds"),
		quotaDenials:  scope.Counter("quota_denials"),
		queueTimeouts: scope.Counter("queue_timeouts"),
		retries:       scope.Counter("retries"),
		exhausted:     scope.Counter("retries_exhausted"),
		storeFaults:   scope.Counter("store_faults"),
	}
}
