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

package backoff

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExponentialValidation(t *testing.T) {
	tests := []struct {
		msg        string
		opts       []ExponentialOption
		wantErrors []string
	}{
		{
			msg:  "invalid base",
			opts: []ExponentialOption{Base(0)},
			wantErrors: []string{
				"invalid base for exponential backoff, need greater than zero",
			},
		},
		{
			msg:  "invalid min",
			opts: []ExponentialOption{Min(-time.Second)},
			wantErrors: []string{
				"invalid min for exponential backoff, need greater than or equal to zero",
			},
		},
		{
			msg:  "invalid max and min",
			opts: []ExponentialOption{Min(-time.Second), Max(-time.Second)},
			wantErrors: []string{
				"invalid min for exponential backoff, need greater than or equal to zero",
				"invalid max for exponential backoff, need greater than or equal to zero",
			},
		},
		{
			msg:  "max less than min",
			opts: []ExponentialOption{Min(time.Second), Max(time.Millisecond)},
			wantErrors: []string{
				"exponential max value must be greater than min value",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			_, err := NewExponential(tt.opts...)
			require.Error(t, err)
			for _, want := range tt.wantErrors {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestExponentialBounds(t *testing.T) {
	min := 5 * time.Millisecond
	max := 500 * time.Millisecond
	strategy, err := NewExponential(
		Base(10*time.Millisecond),
		Min(min),
		Max(max),
		randGenerator(rand.New(rand.NewSource(42))),
	)
	require.NoError(t, err)

	boff := strategy.Backoff()
	for attempt := uint(0); attempt < 40; attempt++ {
		d := boff.Duration(attempt)
		assert.True(t, d >= min, "attempt %d: %v below min", attempt, d)
		assert.True(t, d <= max, "attempt %d: %v above max", attempt, d)
	}
}

func TestExponentialFirstAttemptWithinBase(t *testing.T) {
	strategy, err := NewExponential(
		Base(10*time.Millisecond),
		Max(time.Second),
		randGenerator(rand.New(rand.NewSource(7))),
	)
	require.NoError(t, err)

	// Full jitter: attempt 0 draws from [0, base].
	for i := 0; i < 100; i++ {
		d := strategy.Duration(0)
		assert.True(t, d <= 10*time.Millisecond, "attempt 0 backoff %v above base", d)
	}
}

func TestExponentialLargeAttemptSaturates(t *testing.T) {
	max := 100 * time.Millisecond
	strategy, err := NewExponential(
		Base(time.Millisecond),
		Max(max),
		randGenerator(rand.New(rand.NewSource(1))),
	)
	require.NoError(t, err)

	// Attempt numbers past the shift width must not wrap negative.
	for i := 0; i < 100; i++ {
		d := strategy.Duration(64)
		assert.True(t, d >= 0 && d <= max, "saturated backoff %v out of range", d)
	}
}
