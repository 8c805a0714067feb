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

// Package breaker implements the fleet-wide circuit breaker. Its state lives
// in the shared store and every transition is a compare-and-swap, so all
// pods observe the same trip and the same recovery: a pod-local breaker
// would only protect one pod while the rest of the fleet kept hammering a
// failing vendor.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/uber-go/tally"
	"go.uber.org/atomic"
	"go.uber.org/callguard/api/store"
	"go.uber.org/callguard/callguarderrors"
	"go.uber.org/callguard/internal/clock"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	_keyPrefix = "cb:"

	// casAttempts bounds how many times an operation re-reads and re-swaps
	// under contention before giving up.
	_casAttempts = 16
)

// errContention is returned when the CAS loop never won against concurrent
// writers. Callers treat it like a store fault.
var errContention = errors.New("breaker state contention exceeded retry limit")

// Config controls the breaker's thresholds.
type Config struct {
	// FailureThreshold is the number of windowed failures in Closed that trip
	// the breaker. Defaults to 5.
	FailureThreshold int `config:"failureThreshold" yaml:"failureThreshold"`

	// SuccessThreshold is the number of half-open probe successes required to
	// close the breaker. Defaults to 2.
	SuccessThreshold int `config:"successThreshold" yaml:"successThreshold"`

	// OpenTimeout is how long the breaker stays open before allowing
	// half-open probes. Defaults to 30s.
	OpenTimeout time.Duration `config:"openTimeout" yaml:"openTimeout"`

	// HalfOpenMaxProbes bounds concurrent probes in HalfOpen. Defaults to
	// SuccessThreshold.
	HalfOpenMaxProbes int `config:"halfOpenMaxProbes" yaml:"halfOpenMaxProbes"`

	// FailureWindow bounds how long Closed failures accumulate before the
	// counter resets. Defaults to 60s.
	FailureWindow time.Duration `config:"failureWindow" yaml:"failureWindow"`

	// RecordTTL is the shared record's TTL, refreshed on every write.
	// Defaults to 10m.
	RecordTTL time.Duration `config:"recordTTL" yaml:"recordTTL"`
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 5
	}
	if c.SuccessThreshold == 0 {
		c.SuccessThreshold = 2
	}
	if c.OpenTimeout == 0 {
		c.OpenTimeout = 30 * time.Second
	}
	if c.HalfOpenMaxProbes == 0 {
		c.HalfOpenMaxProbes = c.SuccessThreshold
	}
	if c.FailureWindow == 0 {
		c.FailureWindow = time.Minute
	}
	if c.RecordTTL == 0 {
		c.RecordTTL = 10 * time.Minute
	}
	return c
}

func (c Config) validate() (err error) {
	if c.FailureThreshold < 0 {
		err = multierr.Append(err, errors.New("breaker failure threshold must not be negative"))
	}
	if c.SuccessThreshold < 0 {
		err = multierr.Append(err, errors.New("breaker success threshold must not be negative"))
	}
	if c.OpenTimeout < 0 {
		err = multierr.Append(err, errors.New("breaker open timeout must not be negative"))
	}
	return err
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithClock overrides the breaker's clock.
func WithClock(clk clock.Clock) Option {
	return func(b *Breaker) {
		b.clock = clk
	}
}

// WithLogger sets a zap logger for state transition logs.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Breaker) {
		b.logger = logger
	}
}

// WithMetricsScope sets a tally scope for breaker metrics.
func WithMetricsScope(scope tally.Scope) Option {
	return func(b *Breaker) {
		b.metrics = newMetrics(scope)
	}
}

// Breaker is the shared circuit breaker for one vendor key.
type Breaker struct {
	store   store.Store
	key     string
	vendor  string
	cfg     Config
	clock   clock.Clock
	logger  *zap.Logger
	metrics metrics

	// lastState caches the most recently observed state for cheap
	// introspection. Decisions always go to the store.
	lastState atomic.Int32
}

// New builds a breaker for the vendor key on top of a fleet-wide store.
// Construction fails if the store is pod-local: the breaker's entire value
// is that the whole fleet stops together.
func New(vendor string, st store.Store, cfg Config, opts ...Option) (*Breaker, error) {
	if st.Scope() != store.Global {
		return nil, fmt.Errorf("circuit breaker for vendor %q requires a global store, got %v", vendor, st.Scope())
	}
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	b := &Breaker{
		store:   st,
		key:     _keyPrefix + vendor,
		vendor:  vendor,
		cfg:     cfg,
		clock:   clock.NewReal(),
		logger:  zap.NewNop(),
		metrics: newMetrics(tally.NoopScope),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Allow reports whether a call may proceed right now. It returns nil to
// admit, a CodeCircuitOpen status to reject, or a plain error for store
// faults (the gateway's store-failure policy decides those).
func (b *Breaker) Allow(ctx context.Context) error {
	rec, admit, err := b.apply(ctx, eventTick)
	if err != nil {
		return err
	}
	if !admit {
		b.metrics.rejections.Inc(1)
		return callguarderrors.CircuitOpenErrorf("circuit open for vendor %q", b.vendor)
	}
	if rec.state == HalfOpen {
		b.metrics.probes.Inc(1)
	}
	return nil
}

// RecordSuccess records a successful vendor call against the shared state.
func (b *Breaker) RecordSuccess(ctx context.Context) error {
	_, _, err := b.apply(ctx, eventSuccess)
	return err
}

// RecordFailure records a vendor failure against the shared state.
func (b *Breaker) RecordFailure(ctx context.Context) error {
	_, _, err := b.apply(ctx, eventFailure)
	return err
}

// State reads the authoritative state from the store.
func (b *Breaker) State(ctx context.Context) (State, error) {
	raw, ok, err := b.store.Get(ctx, b.key)
	if err != nil {
		return Closed, err
	}
	if !ok {
		return Closed, nil
	}
	rec, err := decodeRecord(raw)
	if err != nil {
		return Closed, err
	}
	return rec.state, nil
}

// CachedState returns the last state this pod observed, without a store
// round trip. Metrics and logs use this; admission decisions never do.
func (b *Breaker) CachedState() State {
	return State(b.lastState.Load())
}

// apply runs one event through the transition function with a CAS loop
// against the store.
func (b *Breaker) apply(ctx context.Context, ev event) (record, bool, error) {
	now := b.clock.Now()
	for i := 0; i < _casAttempts; i++ {
		raw, ok, err := b.store.Get(ctx, b.key)
		if err != nil {
			return record{}, false, err
		}

		var rec record
		if ok {
			rec, err = decodeRecord(raw)
			if err != nil {
				// A corrupt record is replaced rather than trusted.
				b.logger.Warn("replacing corrupt breaker record",
					zap.String("vendor", b.vendor),
					zap.Error(err),
				)
				ok = false
			}
		}

		next, admit := transition(rec, ev, now, b.cfg)
		b.lastState.Store(int32(next.state))

		if ok && next == rec {
			return next, admit, nil
		}

		old := ""
		if ok {
			old = raw
		}
		swapped, err := b.store.CompareAndSwap(ctx, b.key, old, next.encode(), b.cfg.RecordTTL)
		if err != nil {
			return record{}, false, err
		}
		if swapped {
			if next.state != rec.state {
				b.observeTransition(rec.state, next.state)
			}
			return next, admit, nil
		}
		// Lost the race against another pod; re-read and retry.
	}
	return record{}, false, errContention
}

func (b *Breaker) observeTransition(from, to State) {
	b.metrics.transitions(to).Inc(1)
	log := b.logger.Info
	if to == Open {
		log = b.logger.Warn
	}
	log("circuit breaker state changed",
		zap.String("vendor", b.vendor),
		zap.Stringer("from", from),
		zap.Stringer("to", to),
	)
}

type metrics struct {
	rejections tally.Counter
	probes     tally.Counter

	toClosed   tally.Counter
	toOpen     tally.Counter
	toHalfOpen tally.Counter
}

func newMetrics(scope tally.Scope) metrics {
	return metrics{
		rejections: scope.Counter("breaker_rejections"),
		probes:     scope.Counter("breaker_probes"),
		toClosed:   scope.Tagged(map[string]string{"to": "closed"}).Counter("breaker_transitions"),
		toOpen:     scope.Tagged(map[string]string{"to": "open"}).Counter("breaker_transitions"),
		toHalfOpen: scope.Tagged(map[string]string{"to": "half_open"}).Counter("breaker_transitions"),
	}
}

func (m metrics) transitions(to State) tally.Counter {
	switch to {
	case Open:
		return m.toOpen
	case HalfOpen:
		return m.toHalfOpen
	default:
		return m.toClosed
	}
}
