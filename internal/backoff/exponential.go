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

// Package backoff provides the full-jitter exponential backoff used between
// retry attempts. The jitter matters here: the retry loop backs off outside
// the concurrency gate, and synchronized retries from many callers would
// land on the vendor as a thundering herd.
package backoff

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	apibackoff "go.uber.org/callguard/api/backoff"
	"go.uber.org/multierr"
)

// ExponentialOption defines options that can be applied to an exponential
// backoff strategy.
type ExponentialOption func(*exponentialOptions)

// exponentialOptions are the configuration options for an exponential
// backoff.
type exponentialOptions struct {
	base, min, max time.Duration
	rand           *rand.Rand
	minMaxDiff     int64
}

func (e exponentialOptions) validate() (err error) {
	if e.base <= 0 {
		err = multierr.Append(err, errors.New("invalid base for exponential backoff, need greater than zero"))
	}
	if e.min < 0 {
		err = multierr.Append(err, errors.New("invalid min for exponential backoff, need greater than or equal to zero"))
	}
	if e.max < 0 {
		err = multierr.Append(err, errors.New("invalid max for exponential backoff, need greater than or equal to zero"))
	}
	if e.max < e.min {
		err = multierr.Append(err, errors.New("exponential max value must be greater than min value"))
	}
	return err
}

var defaultExponentialOpts = exponentialOptions{
	base: 10 * time.Millisecond,
	max:  time.Second,
	rand: rand.New(rand.NewSource(time.Now().UnixNano())),
}

// Base sets the first attempt's backoff; each subsequent attempt doubles it.
func Base(t time.Duration) ExponentialOption {
	return func(options *exponentialOptions) {
		options.base = t
	}
}

// Max sets the absolute max time that will ever be returned for a backoff.
func Max(t time.Duration) ExponentialOption {
	return func(options *exponentialOptions) {
		options.max = t
	}
}

// Min sets the absolute min time that will ever be returned for a backoff.
func Min(t time.Duration) ExponentialOption {
	return func(options *exponentialOptions) {
		options.min = t
	}
}

// randGenerator is an internal option for overriding the random number
// generator in tests.
func randGenerator(rand *rand.Rand) ExponentialOption {
	return func(options *exponentialOptions) {
		options.rand = rand
	}
}

// Exponential is an exponential backoff strategy with full jitter: the wait
// after attempt n is drawn uniformly from the closed interval
// [min, min(max, base<<n)]. It is safe to use concurrently.
type Exponential struct {
	opts exponentialOptions

	mu sync.Mutex // guards opts.rand
}

// NewExponential returns a new exponential backoff strategy, or an error if
// the options are contradictory.
func NewExponential(opts ...ExponentialOption) (*Exponential, error) {
	options := defaultExponentialOpts
	for _, opt := range opts {
		opt(&options)
	}

	if err := options.validate(); err != nil {
		return nil, err
	}
	options.minMaxDiff = options.max.Nanoseconds() - options.min.Nanoseconds()

	return &Exponential{opts: options}, nil
}

var _ apibackoff.Strategy = (*Exponential)(nil)
var _ apibackoff.Backoff = (*Exponential)(nil)

// Backoff returns the strategy itself: Exponential carries no per-loop
// state, so one instance serves every retry loop.
func (e *Exponential) Backoff() apibackoff.Backoff {
	return e
}

// Duration takes an attempt number and returns the duration the caller
// should wait.
func (e *Exponential) Duration(attempts uint) time.Duration {
	minlessBackoff := (1 << attempts) * e.opts.base.Nanoseconds()

	// Either the bit shift went negative, or we went past the max duration
	// we're willing to back off. In both cases go to the max value.
	if minlessBackoff > e.opts.minMaxDiff || minlessBackoff <= 0 {
		minlessBackoff = e.opts.minMaxDiff
	}

	e.mu.Lock()
	jitter := e.opts.rand.Int63n(minlessBackoff + 1)
	e.mu.Unlock()
	return e.opts.min + time.Duration(jitter)
}
