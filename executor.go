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
	"time"

	"go.uber.org/callguard/api/transport"
	"go.uber.org/callguard/breaker"
	"go.uber.org/callguard/callguarderrors"
	"go.uber.org/zap"
)

// callWithRetries drives attempts until success, a terminal failure, or an
// exhausted budget. The budget is consulted fresh before every retry so a
// breaker trip or saturation spike mid-call stops the loop immediately.
func (g *Gateway) callWithRetries(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	bo := g.strategy.Backoff()
	attempts := 0
	for {
		attempts++
		res, err := g.attempt(ctx, req)
		if err == nil {
			return res, nil
		}
		st := callguarderrors.FromError(err)
		if callguarderrors.IsAdmission(err) {
			// The attempt never reached the vendor; surface the rejection
			// without an attempt count.
			return nil, st
		}
		if !st.Retryable() {
			// Terminal vendor errors surface as-is; retrying a 400 cannot
			// change the answer.
			return nil, st.WithAttempts(attempts)
		}

		retriesUsed := attempts - 1
		budget := 0
		if g.cfg.MaxRetries > 0 {
			budget = g.budget.Budget(
				g.breaker.CachedState() == breaker.Open,
				g.health.Snapshot(),
				g.gate.Saturation(),
			)
		}
		if retriesUsed >= budget {
			if retriesUsed == 0 {
				return nil, st.WithAttempts(attempts)
			}
			g.metrics.exhausted.Inc(1)
			return nil, callguarderrors.ExhaustedErrorf(attempts, "retry budget exhausted: %v", st)
		}

		g.metrics.retries.Inc(1)
		g.logger.Debug("retrying vendor call",
			zap.String("procedure", req.Procedure),
			zap.Int("attempt", attempts),
			zap.String("code", st.Code().String()),
		)
		select {
		case <-g.clock.After(bo.Duration(uint(retriesUsed))):
		case <-ctx.Done():
			return nil, callguarderrors.CancelledErrorf("call abandoned during backoff: %v", ctx.Err())
		}
	}
}

// attempt runs one admission pass and, if admitted, one vendor call. Every
// resource taken during admission is released before attempt returns, so
// nothing is held across a retry backoff.
func (g *Gateway) attempt(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	admitStart := g.clock.Now()
	admCtx, admCancel := context.WithTimeout(ctx, g.cfg.AdmissionQueueTimeout)
	release, err := g.admit(admCtx, ctx)
	admCancel()
	g.health.RecordQueueWait(g.clock.Now().Sub(admitStart))
	if err != nil {
		return nil, err
	}
	defer release()

	callCtx, callCancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
	defer callCancel()

	start := g.clock.Now()
	res, callErr := g.out.Call(callCtx, req)
	elapsed := g.clock.Now().Sub(start)

	if callErr == nil {
		g.health.RecordAttempt(true, elapsed)
		g.recordBreaker(ctx, true)
		return res, nil
	}

	st := callguarderrors.FromError(callErr)
	switch st.Code() {
	case callguarderrors.CodeCancelled, callguarderrors.CodeBadRequest:
		// The caller walked away or the request was malformed; neither says
		// anything about vendor health.
	default:
		g.health.RecordAttempt(false, elapsed)
		g.recordBreaker(ctx, false)
	}
	return nil, st
}

// admit walks the admission ladder under the queue-timeout context: breaker,
// global vendor tokens, local smoother, local concurrency slot, in that
// order. An open breaker consumes nothing downstream of it. On success the
// returned release frees the gate slot.
func (g *Gateway) admit(admCtx, parent context.Context) (release func(), err error) {
	if err := g.breaker.Allow(admCtx); err != nil {
		if callguarderrors.IsStatus(err) {
			return nil, err
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, g.admissionAbort(parent, "breaker check")
		}
		if ferr := g.storeFault("breaker", err); ferr != nil {
			return nil, ferr
		}
	}

	if err := g.global.Acquire(admCtx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, g.admissionAbort(parent, "vendor rate tokens")
		}
		if ferr := g.storeFault("ratelimit", err); ferr != nil {
			return nil, ferr
		}
	}

	if err := g.smoother.Wait(admCtx); err != nil {
		return nil, g.admissionAbort(parent, "local rate smoother")
	}

	release, err = g.gate.Acquire(admCtx)
	if err != nil {
		return nil, g.admissionAbort(parent, "concurrency slot")
	}
	return release, nil
}

// admissionAbort distinguishes a queue timeout from the caller giving up:
// only the former is the gateway's failure to admit in time.
func (g *Gateway) admissionAbort(parent context.Context, stage string) error {
	if parent.Err() != nil {
		return callguarderrors.CancelledErrorf("call abandoned while waiting for %s: %v", stage, parent.Err())
	}
	g.metrics.queueTimeouts.Inc(1)
	return callguarderrors.QueueTimeoutErrorf("gave up after %v waiting for %s", g.cfg.AdmissionQueueTimeout, stage)
}

// _breakerRecordTimeout bounds the store round trip that reports an attempt
// outcome to the shared breaker.
const _breakerRecordTimeout = 3 * time.Second

// recordBreaker reports an attempt outcome to the shared breaker. It runs on
// a detached context: the outcome is evidence about the vendor and must reach
// the store even when the caller has already given up. Store faults are
// logged, not surfaced: the attempt's own outcome already decided the call.
func (g *Gateway) recordBreaker(ctx context.Context, ok bool) {
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), _breakerRecordTimeout)
	defer cancel()

	var err error
	if ok {
		err = g.breaker.RecordSuccess(recCtx)
	} else {
		err = g.breaker.RecordFailure(recCtx)
	}
	if err != nil {
		g.metrics.storeFaults.Inc(1)
		g.logger.Warn("failed to record attempt outcome on shared breaker", zap.Error(err))
	}
}
