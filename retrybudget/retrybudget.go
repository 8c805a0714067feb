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

// Package retrybudget computes, per top-level call, how many retries the
// current pod can afford. The budget shrinks as local conditions degrade so
// that one overloaded pod never amplifies an outage with retry storms, and
// reaches the configured maximum only when the pod is healthy. Nothing here
// is persisted; the budget is recomputed from live signals on every call.
package retrybudget

import (
	"errors"
	"time"

	"go.uber.org/callguard/internal/health"
)

const (
	_defaultMaxRetries        = 3
	_defaultQueueWaitLimit    = 2 * time.Second
	_defaultSaturationLimit   = 0.9
	_highErrorRate            = 0.5
	_elevatedErrorRate        = 0.2
	_highErrorRateRetries     = 1
	_elevatedErrorRateRetries = 2

	// The error-rate heuristic needs a few observations before it means
	// anything: a cold window holding one failed attempt is not a degraded
	// vendor.
	_minErrorRateSamples = 10
)

// Config bounds the calculator.
type Config struct {
	// MaxRetries is the budget when the pod is healthy. Defaults to 3.
	MaxRetries int `config:"maxRetries" yaml:"maxRetries"`

	// QueueWaitLimit zeroes the budget once recent admission waits exceed
	// it. Defaults to 2s.
	QueueWaitLimit time.Duration `config:"queueWaitLimit" yaml:"queueWaitLimit"`

	// SaturationLimit zeroes the budget once gate saturation exceeds it.
	// Defaults to 0.9.
	SaturationLimit float64 `config:"saturationLimit" yaml:"saturationLimit"`
}

func (c Config) withDefaults() Config {
	if c.MaxRetries == 0 {
		c.MaxRetries = _defaultMaxRetries
	}
	if c.QueueWaitLimit == 0 {
		c.QueueWaitLimit = _defaultQueueWaitLimit
	}
	if c.SaturationLimit == 0 {
		c.SaturationLimit = _defaultSaturationLimit
	}
	return c
}

// Calculator derives retry budgets from local health.
type Calculator struct {
	cfg Config
}

// New builds a Calculator.
func New(cfg Config) (*Calculator, error) {
	cfg = cfg.withDefaults()
	if cfg.MaxRetries < 0 {
		return nil, errors.New("max retries must not be negative")
	}
	if cfg.SaturationLimit < 0 || cfg.SaturationLimit > 1 {
		return nil, errors.New("saturation limit must be in [0, 1]")
	}
	return &Calculator{cfg: cfg}, nil
}

// Budget returns the number of retries permitted for a call starting now.
//
// An open breaker, a backed-up admission queue, or a saturated gate all mean
// zero: retrying into any of those conditions only deepens them. Otherwise
// the budget steps down with the recent error rate.
func (c *Calculator) Budget(breakerOpen bool, snap health.Snapshot, gateSaturation float64) int {
	if breakerOpen {
		return 0
	}
	if snap.QueueWait > c.cfg.QueueWaitLimit {
		return 0
	}
	if gateSaturation > c.cfg.SaturationLimit {
		return 0
	}

	budget := c.cfg.MaxRetries
	if snap.Attempts >= _minErrorRateSamples {
		switch {
		case snap.ErrorRate > _highErrorRate:
			budget = _highErrorRateRetries
		case snap.ErrorRate > _elevatedErrorRate:
			budget = _elevatedErrorRateRetries
		}
	}
	if budget > c.cfg.MaxRetries {
		budget = c.cfg.MaxRetries
	}
	return budget
}
