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

package shedder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/callguard/api/transport"
)

func TestThresholdValidation(t *testing.T) {
	_, err := New(Thresholds{ShedAllAbove: 1.5})
	require.Error(t, err)

	_, err = New(Thresholds{ShedAllAbove: 0.5, ShedFreeAbove: 0.8})
	require.Error(t, err, "free threshold above the all threshold is contradictory")
}

func TestShedMatrix(t *testing.T) {
	s, err := New(Thresholds{})
	require.NoError(t, err)

	tests := []struct {
		msg        string
		saturation float64
		tier       transport.Tier
		want       bool
	}{
		{"idle pod admits free", 0.5, transport.TierFree, false},
		{"idle pod admits standard", 0.5, transport.TierStandard, false},
		{"idle pod admits premium", 0.5, transport.TierPremium, false},

		{"busy pod sheds free", 0.8, transport.TierFree, true},
		{"busy pod admits standard", 0.8, transport.TierStandard, false},
		{"busy pod admits premium", 0.8, transport.TierPremium, false},

		{"saturated pod sheds free", 0.95, transport.TierFree, true},
		{"saturated pod sheds standard", 0.95, transport.TierStandard, true},
		{"saturated pod admits premium", 0.95, transport.TierPremium, false},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, s.ShouldShed(tt.tier, tt.saturation))
		})
	}
}

func TestBoundaryIsExclusive(t *testing.T) {
	s, err := New(Thresholds{})
	require.NoError(t, err)

	// Exactly at the threshold admits; only strictly above sheds.
	assert.False(t, s.ShouldShed(transport.TierFree, 0.7))
	assert.False(t, s.ShouldShed(transport.TierStandard, 0.9))
}
