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
	"fmt"
	"io"
	"io/ioutil"
	"time"

	"github.com/uber-go/mapdecode"
	"go.uber.org/multierr"
	yaml "gopkg.in/yaml.v2"
)

const _tagName = "config"

const (
	_defaultLocalConcurrencyLimit = 8
	_defaultLocalRateSafetyMargin = 0.8
	_defaultExpectedCallLatency   = time.Second
	_defaultAdmissionQueueTimeout = 3 * time.Second
	_defaultCallTimeout           = 10 * time.Second
	_defaultMaxRetries            = 3
)

// StoreFailurePolicy decides what the gateway does when the shared store is
// unreachable: degrade to the pod-local guards, or reject outright.
type StoreFailurePolicy int

const (
	// FailOpen degrades gracefully: the breaker is treated as closed and the
	// global limiter and quota guard are skipped, leaving the local smoother
	// and concurrency gate as the only protection. This is the default; a
	// store outage must not take the vendor integration down with it.
	FailOpen StoreFailurePolicy = iota

	// FailClosed rejects calls with an internal error while the store is
	// unreachable. Use this when overrunning the vendor's limits is worse
	// than failing the caller.
	FailClosed
)

func (p StoreFailurePolicy) String() string {
	switch p {
	case FailOpen:
		return "failopen"
	case FailClosed:
		return "failclosed"
	default:
		return fmt.Sprintf("StoreFailurePolicy(%d)", int(p))
	}
}

// UnmarshalText parses "failopen" or "failclosed".
func (p *StoreFailurePolicy) UnmarshalText(text []byte) error {
	switch string(text) {
	case "", "failopen":
		*p = FailOpen
	case "failclosed":
		*p = FailClosed
	default:
		return fmt.Errorf("unknown store failure policy %q", string(text))
	}
	return nil
}

// Decode implements attribute-map decoding; mapdecode does not consult
// encoding.TextUnmarshaler on its own.
func (p *StoreFailurePolicy) Decode(into mapdecode.Into) error {
	var s string
	if err := into(&s); err != nil {
		return err
	}
	return p.UnmarshalText([]byte(s))
}

// RetryLimit caps retry attempts. The zero value selects the package
// default; a negative value disables retries. Configuration decoding is the
// exception: a document that says 0 means "no retries", not "use the
// default", so an explicit 0 decodes as disabled.
type RetryLimit int

// Decode implements attribute-map decoding.
func (r *RetryLimit) Decode(into mapdecode.Into) error {
	var n int
	if err := into(&n); err != nil {
		return err
	}
	if n == 0 {
		n = -1
	}
	*r = RetryLimit(n)
	return nil
}

// WindowConfig describes a sliding-window allowance: at most Capacity events
// per Window.
type WindowConfig struct {
	Capacity int64         `config:"capacity"`
	Window   time.Duration `config:"window"`
}

func (w WindowConfig) enabled() bool { return w.Capacity > 0 }

func (w WindowConfig) validate(name string) error {
	if !w.enabled() {
		return nil
	}
	if w.Window <= 0 {
		return fmt.Errorf("%s: window must be positive, got %v", name, w.Window)
	}
	return nil
}

// BreakerConfig configures the shared circuit breaker. Zero fields take the
// breaker package defaults.
type BreakerConfig struct {
	FailureThreshold  int           `config:"failure_threshold"`
	SuccessThreshold  int           `config:"success_threshold"`
	OpenTimeout       time.Duration `config:"open_timeout"`
	HalfOpenMaxProbes int           `config:"half_open_max_probes"`
	FailureWindow     time.Duration `config:"failure_window"`
}

// BackoffConfig configures the full-jitter exponential backoff between retry
// attempts. Zero fields take the backoff package defaults.
type BackoffConfig struct {
	Base time.Duration `config:"base"`
	Min  time.Duration `config:"min"`
	Max  time.Duration `config:"max"`
}

// SheddingConfig configures the load shedder's saturation thresholds. Zero
// fields take the shedder package defaults.
type SheddingConfig struct {
	ShedAllAbove  float64 `config:"shed_all_above"`
	ShedFreeAbove float64 `config:"shed_free_above"`
}

// RetryBudgetConfig configures the adaptive retry budget's cutoffs. Zero
// fields take the retrybudget package defaults.
type RetryBudgetConfig struct {
	QueueWaitLimit  time.Duration `config:"queue_wait_limit"`
	SaturationLimit float64       `config:"saturation_limit"`
}

// Config is the gateway configuration for one guarded vendor.
type Config struct {
	// Vendor names the guarded vendor. It keys all shared state (breaker
	// record, rate limiter window) in the store, so every pod fronting the
	// same vendor must use the same name. Required.
	Vendor string `config:"vendor"`

	// VendorRateLimit is the vendor's contractual request allowance, shared
	// by the whole fleet. Required.
	VendorRateLimit WindowConfig `config:"vendor_rate_limit"`

	// Quota is the per-caller allowance. Zero capacity disables the quota
	// guard.
	Quota WindowConfig `config:"quota"`

	// LocalConcurrencyLimit caps in-flight vendor calls from this pod.
	// Defaults to 8.
	LocalConcurrencyLimit int `config:"local_concurrency_limit"`

	// LocalRateSafetyMargin scales the pod-local smoother below the rate the
	// concurrency limit could theoretically sustain, in (0, 1]. Defaults to
	// 0.8.
	LocalRateSafetyMargin float64 `config:"local_rate_safety_margin"`

	// ExpectedCallLatency is the anticipated mean vendor latency used to
	// size the local smoother. Defaults to 1s.
	ExpectedCallLatency time.Duration `config:"expected_call_latency"`

	// AdmissionQueueTimeout bounds how long one attempt may wait in
	// admission (breaker check, global tokens, smoother, gate slot) before
	// giving up. Defaults to 3s.
	AdmissionQueueTimeout time.Duration `config:"admission_queue_timeout"`

	// CallTimeout bounds a single vendor call once admitted. Defaults to
	// 10s.
	CallTimeout time.Duration `config:"call_timeout"`

	// SLATimeout, if set, is the end-to-end bound the hosting service
	// promises its own callers. The gateway warns at build time when retries
	// cannot fit inside it.
	SLATimeout time.Duration `config:"sla_timeout"`

	// CircuitBreaker configures the shared breaker.
	CircuitBreaker BreakerConfig `config:"circuit_breaker"`

	// MaxRetries caps retry attempts after the first call. The adaptive
	// budget may allow fewer. Defaults to 3; set negative (or an explicit 0
	// in a config document) to disable retries.
	MaxRetries RetryLimit `config:"max_retries"`

	// Backoff configures the wait between retry attempts.
	Backoff BackoffConfig `config:"backoff"`

	// Shedding configures the load shedder thresholds.
	Shedding SheddingConfig `config:"shedding"`

	// RetryBudget configures the adaptive retry budget cutoffs.
	RetryBudget RetryBudgetConfig `config:"retry_budget"`

	// StoreFailurePolicy decides behavior when the shared store is down.
	StoreFailurePolicy StoreFailurePolicy `config:"store_failure_policy"`
}

func (c Config) withDefaults() Config {
	if c.LocalConcurrencyLimit == 0 {
		c.LocalConcurrencyLimit = _defaultLocalConcurrencyLimit
	}
	if c.LocalRateSafetyMargin == 0 {
		c.LocalRateSafetyMargin = _defaultLocalRateSafetyMargin
	}
	if c.ExpectedCallLatency == 0 {
		c.ExpectedCallLatency = _defaultExpectedCallLatency
	}
	if c.AdmissionQueueTimeout == 0 {
		c.AdmissionQueueTimeout = _defaultAdmissionQueueTimeout
	}
	if c.CallTimeout == 0 {
		c.CallTimeout = _defaultCallTimeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = _defaultMaxRetries
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	return c
}

// Validate returns all configuration problems at once.
func (c Config) Validate() error {
	var err error
	if c.Vendor == "" {
		err = multierr.Append(err, fmt.Errorf("vendor name is required"))
	}
	if !c.VendorRateLimit.enabled() {
		err = multierr.Append(err, fmt.Errorf("vendor_rate_limit: capacity must be positive, got %d", c.VendorRateLimit.Capacity))
	}
	err = multierr.Append(err, c.VendorRateLimit.validate("vendor_rate_limit"))
	err = multierr.Append(err, c.Quota.validate("quota"))
	if c.LocalConcurrencyLimit < 0 {
		err = multierr.Append(err, fmt.Errorf("local_concurrency_limit must be positive, got %d", c.LocalConcurrencyLimit))
	}
	if c.LocalRateSafetyMargin < 0 || c.LocalRateSafetyMargin > 1 {
		err = multierr.Append(err, fmt.Errorf("local_rate_safety_margin must be in (0, 1], got %v", c.LocalRateSafetyMargin))
	}
	if c.AdmissionQueueTimeout < 0 {
		err = multierr.Append(err, fmt.Errorf("admission_queue_timeout must be positive, got %v", c.AdmissionQueueTimeout))
	}
	if c.CallTimeout < 0 {
		err = multierr.Append(err, fmt.Errorf("call_timeout must be positive, got %v", c.CallTimeout))
	}
	return err
}

// ParseConfig decodes a YAML document into a Config. Durations accept Go
// duration strings ("30s", "1m"). The YAML goes through an attribute map, so
// the same struct tags serve ParseConfigMap.
func ParseConfig(r io.Reader) (Config, error) {
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %v", err)
	}
	var attrs map[string]interface{}
	if err := yaml.Unmarshal(data, &attrs); err != nil {
		return Config{}, fmt.Errorf("parse config YAML: %v", err)
	}
	return ParseConfigMap(attrs)
}

// ParseConfigMap decodes an attribute map, such as a block lifted out of a
// larger service configuration, into a Config.
func ParseConfigMap(attrs map[string]interface{}) (Config, error) {
	var cfg Config
	if err := mapdecode.Decode(&cfg, attrs, mapdecode.TagName(_tagName)); err != nil {
		return Config{}, fmt.Errorf("decode config: %v", err)
	}
	return cfg, nil
}
