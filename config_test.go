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

package callguard_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/callguard"
	"go.uber.org/callguard/api/transport"
	"go.uber.org/callguard/callguardtest"
)

const _fullConfigYAML = `
vendor: acme
vendor_rate_limit:
  capacity: 100
  window: 1s
quota:
  capacity: 10
  window: 1m
local_concurrency_limit: 5
local_rate_safety_margin: 0.75
expected_call_latency: 200ms
admission_queue_timeout: 2s
call_timeout: 8s
circuit_breaker:
  failure_threshold: 4
  success_threshold: 3
  open_timeout: 45s
max_retries: 2
backoff:
  base: 20ms
  max: 2s
shedding:
  shed_all_above: 0.85
  shed_free_above: 0.6
store_failure_policy: failclosed
`

func TestParseConfig(t *testing.T) {
	cfg, err := callguard.ParseConfig(strings.NewReader(_fullConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, "acme", cfg.Vendor)
	assert.Equal(t, int64(100), cfg.VendorRateLimit.Capacity)
	assert.Equal(t, time.Second, cfg.VendorRateLimit.Window)
	assert.Equal(t, int64(10), cfg.Quota.Capacity)
	assert.Equal(t, time.Minute, cfg.Quota.Window)
	assert.Equal(t, 5, cfg.LocalConcurrencyLimit)
	assert.Equal(t, 0.75, cfg.LocalRateSafetyMargin)
	assert.Equal(t, 200*time.Millisecond, cfg.ExpectedCallLatency)
	assert.Equal(t, 2*time.Second, cfg.AdmissionQueueTimeout)
	assert.Equal(t, 8*time.Second, cfg.CallTimeout)
	assert.Equal(t, 4, cfg.CircuitBreaker.FailureThreshold)
	assert.Equal(t, 3, cfg.CircuitBreaker.SuccessThreshold)
	assert.Equal(t, 45*time.Second, cfg.CircuitBreaker.OpenTimeout)
	assert.Equal(t, callguard.RetryLimit(2), cfg.MaxRetries)
	assert.Equal(t, 20*time.Millisecond, cfg.Backoff.Base)
	assert.Equal(t, 2*time.Second, cfg.Backoff.Max)
	assert.Equal(t, 0.85, cfg.Shedding.ShedAllAbove)
	assert.Equal(t, 0.6, cfg.Shedding.ShedFreeAbove)
	assert.Equal(t, callguard.FailClosed, cfg.StoreFailurePolicy)
}

func TestParsedConfigBuildsGateway(t *testing.T) {
	cfg, err := callguard.ParseConfig(strings.NewReader(_fullConfigYAML))
	require.NoError(t, err)

	gw, err := callguard.New(cfg, callguardtest.NewScriptedOutbound(callguardtest.Succeed()))
	require.NoError(t, err)
	assert.NotNil(t, gw)
}

func TestExplicitZeroMaxRetriesDisablesRetries(t *testing.T) {
	const base = `
vendor: acme
vendor_rate_limit:
  capacity: 100
  window: 1s
`
	// An absent key leaves the zero value, which selects the default of
	// three retries when the gateway is built.
	cfg, err := callguard.ParseConfig(strings.NewReader(base))
	require.NoError(t, err)
	assert.Equal(t, callguard.RetryLimit(0), cfg.MaxRetries)

	// An explicit zero means zero retries, not "use the default".
	cfg, err = callguard.ParseConfig(strings.NewReader(base + "max_retries: 0\n"))
	require.NoError(t, err)
	assert.Equal(t, callguard.RetryLimit(-1), cfg.MaxRetries)

	out := callguardtest.NewScriptedOutbound(
		callguardtest.FailStatus(503),
		callguardtest.Succeed(),
	)
	gw, err := callguard.New(cfg, out)
	require.NoError(t, err)

	_, err = gw.Call(context.Background(), &transport.Request{
		Caller:    "billing",
		Tier:      transport.TierStandard,
		Procedure: "charge",
	})
	require.Error(t, err)
	assert.Equal(t, 1, out.Calls(), "a retryable failure must not be retried")
}

func TestParseConfigMap(t *testing.T) {
	cfg, err := callguard.ParseConfigMap(map[string]interface{}{
		"vendor": "acme",
		"vendor_rate_limit": map[string]interface{}{
			"capacity": 50,
			"window":   "1s",
		},
		"store_failure_policy": "failopen",
	})
	require.NoError(t, err)
	assert.Equal(t, "acme", cfg.Vendor)
	assert.Equal(t, int64(50), cfg.VendorRateLimit.Capacity)
	assert.Equal(t, callguard.FailOpen, cfg.StoreFailurePolicy)
}

func TestParseConfigRejectsGarbage(t *testing.T) {
	_, err := callguard.ParseConfig(strings.NewReader("vendor: [not, a, string"))
	assert.Error(t, err)

	_, err = callguard.ParseConfigMap(map[string]interface{}{
		"store_failure_policy": "explode",
	})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		msg     string
		mutate  func(*callguard.Config)
		wantErr string
	}{
		{
			msg:     "missing vendor",
			mutate:  func(c *callguard.Config) { c.Vendor = "" },
			wantErr: "vendor name is required",
		},
		{
			msg:     "missing vendor rate limit",
			mutate:  func(c *callguard.Config) { c.VendorRateLimit = callguard.WindowConfig{} },
			wantErr: "vendor_rate_limit",
		},
		{
			msg: "rate limit without window",
			mutate: func(c *callguard.Config) {
				c.VendorRateLimit = callguard.WindowConfig{Capacity: 10}
			},
			wantErr: "window must be positive",
		},
		{
			msg:     "bad safety margin",
			mutate:  func(c *callguard.Config) { c.LocalRateSafetyMargin = 1.5 },
			wantErr: "local_rate_safety_margin",
		},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			cfg := callguard.Config{
				Vendor:          "acme",
				VendorRateLimit: callguard.WindowConfig{Capacity: 10, Window: time.Second},
			}
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	err := callguard.Config{
		Vendor:                "",
		LocalRateSafetyMargin: -1,
	}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vendor name is required")
	assert.Contains(t, err.Error(), "vendor_rate_limit")
	assert.Contains(t, err.Error(), "local_rate_safety_margin")
}

func TestStoreFailurePolicyStrings(t *testing.T) {
	assert.Equal(t, "failopen", callguard.FailOpen.String())
	assert.Equal(t, "failclosed", callguard.FailClosed.String())

	var p callguard.StoreFailurePolicy
	require.NoError(t, p.UnmarshalText([]byte("failclosed")))
	assert.Equal(t, callguard.FailClosed, p)
	require.NoError(t, p.UnmarshalText(nil))
	assert.Equal(t, callguard.FailOpen, p, "empty defaults to failopen")
	assert.Error(t, p.UnmarshalText([]byte("bogus")))
}
