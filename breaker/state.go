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

package breaker

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// State is a circuit breaker state.
type State int

const (
	// Closed is the initial state: calls proceed, failures are counted.
	Closed State = iota

	// Open rejects every call immediately.
	Open

	// HalfOpen lets a bounded number of probe calls through.
	HalfOpen
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// event is an input to the breaker's transition function.
type event int

const (
	// eventTick asks whether a call may proceed right now, moving Open to
	// HalfOpen once the open timeout has elapsed and reserving half-open
	// probe slots.
	eventTick event = iota

	// eventSuccess records a successful vendor call.
	eventSuccess

	// eventFailure records a vendor failure that counts against the breaker.
	eventFailure
)

// record is the breaker's shared state for one vendor key. It round-trips
// through the store as a compact string so compare-and-swap can work on the
// exact serialized value.
type record struct {
	state             State
	failures          int
	windowStart       time.Time
	openedAt          time.Time
	halfOpenSuccesses int
	probesInFlight    int
	probedAt          time.Time
}

func (r record) encode() string {
	return strings.Join([]string{
		strconv.Itoa(int(r.state)),
		strconv.Itoa(r.failures),
		strconv.FormatInt(r.windowStart.UnixNano(), 10),
		strconv.FormatInt(r.openedAt.UnixNano(), 10),
		strconv.Itoa(r.halfOpenSuccesses),
		strconv.Itoa(r.probesInFlight),
		strconv.FormatInt(r.probedAt.UnixNano(), 10),
	}, ":")
}

func decodeRecord(raw string) (record, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 7 {
		return record{}, fmt.Errorf("malformed breaker record %q", raw)
	}
	nums := make([]int64, 7)
	for i, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return record{}, fmt.Errorf("malformed breaker record %q: %v", raw, err)
		}
		nums[i] = n
	}
	return record{
		state:             State(nums[0]),
		failures:          int(nums[1]),
		windowStart:       time.Unix(0, nums[2]),
		openedAt:          time.Unix(0, nums[3]),
		halfOpenSuccesses: int(nums[4]),
		probesInFlight:    int(nums[5]),
		probedAt:          time.Unix(0, nums[6]),
	}, nil
}

// transition is the breaker's pure state machine: given the shared record, an
// event, and the current time, it returns the next record and whether the
// call in question may proceed. All branching lives here so the machine is
// exhaustively testable without a store.
func transition(r record, ev event, now time.Time, cfg Config) (next record, admit bool) {
	switch ev {
	case eventTick:
		switch r.state {
		case Closed:
			return r, true
		case Open:
			if now.Sub(r.openedAt) >= cfg.OpenTimeout {
				return record{state: HalfOpen, probesInFlight: 1, probedAt: now}, true
			}
			return r, false
		case HalfOpen:
			// A probe whose outcome never came back (the pod died, the
			// caller gave up mid-flight) must not hold its slot until the
			// record TTL expires. Slots older than the open timeout are
			// reclaimed.
			if r.probesInFlight > 0 && now.Sub(r.probedAt) >= cfg.OpenTimeout {
				r.probesInFlight = 0
			}
			if r.probesInFlight < cfg.HalfOpenMaxProbes {
				r.probesInFlight++
				r.probedAt = now
				return r, true
			}
			return r, false
		}

	case eventSuccess:
		switch r.state {
		case Closed:
			r.failures = 0
			return r, true
		case Open:
			// Stale success from a call issued before the trip. Ignore.
			return r, true
		case HalfOpen:
			r.halfOpenSuccesses++
			if r.halfOpenSuccesses >= cfg.SuccessThreshold {
				return record{state: Closed}, true
			}
			if r.probesInFlight > 0 {
				r.probesInFlight--
			}
			return r, true
		}

	case eventFailure:
		switch r.state {
		case Closed:
			if r.failures == 0 || now.Sub(r.windowStart) > cfg.FailureWindow {
				r.failures = 1
				r.windowStart = now
			} else {
				r.failures++
			}
			if r.failures >= cfg.FailureThreshold {
				return record{state: Open, openedAt: now}, true
			}
			return r, true
		case Open:
			return r, true
		case HalfOpen:
			// A single probe failure reopens immediately.
			return record{state: Open, openedAt: now}, true
		}
	}
	return r, true
}
