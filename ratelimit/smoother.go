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
	"errors"
	"time"

	"golang.org/x/time/rate"
)

const _defaultSafetyMargin = 0.8

// Smoother is the pod-local rate shaper. It exists for burst absorption and
// pod self-protection, not vendor compliance: its rate is derived from this
// pod's concurrency budget and the vendor's typical latency, so it stays
// correct under autoscaling without reconfiguration.
type Smoother struct {
	limiter *rate.Limiter
}

// SmootherRate computes the sustainable local request rate:
// (concurrency / mean latency) scaled by the safety margin.
func SmootherRate(concurrency int, meanLatency time.Duration, margin float64) rate.Limit {
	return rate.Limit(float64(concurrency) / meanLatency.Seconds() * margin)
}

// NewSmoother builds the local smoother. The margin must be in (0, 1]; zero
// selects the 0.8 default.
func NewSmoother(concurrency int, meanLatency time.Duration, margin float64) (*Smoother, error) {
	if concurrency <= 0 {
		return nil, errors.New("local smoother needs a positive concurrency limit")
	}
	if meanLatency <= 0 {
		return nil, errors.New("local smoother needs a positive mean vendor latency")
	}
	if margin == 0 {
		margin = _defaultSafetyMargin
	}
	if margin < 0 || margin > 1 {
		return nil, errors.New("local smoother safety margin must be in (0, 1]")
	}
	return &Smoother{
		limiter: rate.NewLimiter(SmootherRate(concurrency, meanLatency, margin), concurrency),
	}, nil
}

// Wait blocks until the local rate allows another call or the context is
// done.
func (s *Smoother) Wait(ctx context.Context) error {
	return s.limiter.Wait(ctx)
}

// Limit returns the configured local rate, for logs and validation.
func (s *Smoother) Limit() rate.Limit {
	return s.limiter.Limit()
}
