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

package retrybudget

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/callguard/internal/health"
)

func newCalculator(t *testing.T) *Calculator {
	t.Helper()
	c, err := New(Config{})
	require.NoError(t, err)
	return c
}

func TestOpenBreakerZeroesBudget(t *testing.T) {
	c := newCalculator(t)

	// Breaker open wins regardless of every other signal.
	for _, snap := range []health.Snapshot{
		{},
		{ErrorRate: 0.0},
		{ErrorRate: 1.0, QueueWait: 10 * time.Second},
	} {
		assert.Zero(t, c.Budget(true, snap, 0.0))
		assert.Zero(t, c.Budget(true, snap, 1.0))
	}
}

func TestQueueWaitZeroesBudget(t *testing.T) {
	c := newCalculator(t)
	assert.Zero(t, c.Budget(false, health.Snapshot{QueueWait: 3 * time.Second}, 0))
	assert.Equal(t, 3, c.Budget(false, health.Snapshot{QueueWait: time.Second}, 0))
}

func TestSaturationZeroesBudget(t *testing.T) {
	c := newCalculator(t)
	assert.Zero(t, c.Budget(false, health.Snapshot{}, 0.95))
	assert.Equal(t, 3, c.Budget(false, health.Snapshot{}, 0.5))
}

func TestBudgetStepsWithErrorRate(t *testing.T) {
	c := newCalculator(t)

	assert.Equal(t, 3, c.Budget(false, health.Snapshot{Attempts: 50, ErrorRate: 0.1}, 0))
	assert.Equal(t, 2, c.Budget(false, health.Snapshot{Attempts: 50, ErrorRate: 0.3}, 0))
	assert.Equal(t, 1, c.Budget(false, health.Snapshot{Attempts: 50, ErrorRate: 0.7}, 0))
}

func TestColdWindowKeepsFullBudget(t *testing.T) {
	c := newCalculator(t)

	// Two attempts that both failed is not a degraded vendor; the error-rate
	// heuristic stays out of the way until the window has real data.
	assert.Equal(t, 3, c.Budget(false, health.Snapshot{Attempts: 2, ErrorRate: 1.0}, 0))
}

func TestBudgetMonotoneInErrorRate(t *testing.T) {
	c := newCalculator(t)

	prev := c.Budget(false, health.Snapshot{Attempts: 50, ErrorRate: 0}, 0)
	for rate := 0.05; rate <= 1.0; rate += 0.05 {
		cur := c.Budget(false, health.Snapshot{Attempts: 50, ErrorRate: rate}, 0)
		assert.LessOrEqual(t, cur, prev, "budget must not grow as the error rate grows (rate %v)", rate)
		prev = cur
	}
}

func TestConfiguredMaxCapsBudget(t *testing.T) {
	c, err := New(Config{MaxRetries: 1})
	require.NoError(t, err)

	assert.Equal(t, 1, c.Budget(false, health.Snapshot{}, 0))
	assert.Equal(t, 1, c.Budget(false, health.Snapshot{Attempts: 50, ErrorRate: 0.3}, 0), "step values never exceed the configured max")
}

func TestConfigValidation(t *testing.T) {
	_, err := New(Config{MaxRetries: -1})
	require.Error(t, err)

	_, err = New(Config{SaturationLimit: 2})
	require.Error(t, err)
}
