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

// Package shedder rejects new work at the pod door when the pod itself is
// unhealthy. The check is the cheapest stage of the pipeline: it reads local
// gauges, touches no shared state, and never errors.
package shedder

import (
	"errors"

	"github.com/uber-go/tally"
	"go.uber.org/callguard/api/transport"
	"go.uber.org/multierr"
)

// Thresholds are the gate-saturation levels at which tiers get shed.
type Thresholds struct {
	// ShedAllAbove sheds every tier except premium once gate saturation
	// exceeds it. Defaults to 0.9.
	ShedAllAbove float64 `config:"shedAllAbove" yaml:"shedAllAbove"`

	// ShedFreeAbove sheds the free tier once gate saturation exceeds it.
	// Defaults to 0.7.
	ShedFreeAbove float64 `config:"shedFreeAbove" yaml:"shedFreeAbove"`
}

func (t Thresholds) withDefaults() Thresholds {
	if t.ShedAllAbove == 0 {
		t.ShedAllAbove = 0.9
	}
	if t.ShedFreeAbove == 0 {
		t.ShedFreeAbove = 0.7
	}
	return t
}

func (t Thresholds) validate() (err error) {
	if t.ShedAllAbove < 0 || t.ShedAllAbove > 1 {
		err = multierr.Append(err, errors.New("shedAllAbove must be in [0, 1]"))
	}
	if t.ShedFreeAbove < 0 || t.ShedFreeAbove > 1 {
		err = multierr.Append(err, errors.New("shedFreeAbove must be in [0, 1]"))
	}
	if err == nil && t.ShedFreeAbove > t.ShedAllAbove {
		err = errors.New("shedFreeAbove must not exceed shedAllAbove")
	}
	return err
}

// Option configures a Shedder.
type Option func(*Shedder)

// WithMetricsScope sets a tally scope for shed counters.
func WithMetricsScope(scope tally.Scope) Option {
	return func(s *Shedder) {
		s.sheds = scope.Counter("sheds")
	}
}

// Shedder decides, per request, whether to reject before touching any
// resource.
type Shedder struct {
	thresholds Thresholds
	sheds      tally.Counter
}

// New builds a shedder with the given thresholds.
func New(thresholds Thresholds, opts ...Option) (*Shedder, error) {
	thresholds = thresholds.withDefaults()
	if err := thresholds.validate(); err != nil {
		return nil, err
	}
	s := &Shedder{
		thresholds: thresholds,
		sheds:      tally.NoopScope.Counter("sheds"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ShouldShed reports whether a request of the given tier should be rejected
// at the current gate saturation. Ties break by tier: premium survives until
// the pod is effectively full, free goes first.
func (s *Shedder) ShouldShed(tier transport.Tier, saturation float64) bool {
	shed := false
	switch {
	case saturation > s.thresholds.ShedAllAbove:
		shed = tier != transport.TierPremium
	case saturation > s.thresholds.ShedFreeAbove:
		shed = tier == transport.TierFree
	}
	if shed {
		s.sheds.Inc(1)
	}
	return shed
}
