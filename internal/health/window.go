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

// Package health keeps the pod-local view of recent vendor-call outcomes and
// admission queue waits. The load shedder and the adaptive retry budget are
// driven entirely by this window plus the gate's saturation ratio; nothing
// here is shared across pods.
package health

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/callguard/internal/clock"
)

const _defaultWindowSize = 128

// Snapshot is a point-in-time view of local health.
type Snapshot struct {
	// Attempts is the number of vendor-call attempts currently in the
	// window.
	Attempts int

	// ErrorRate is the fraction of windowed attempts that failed. Admission
	// rejections never reach the window, so a queue timeout does not count
	// against the vendor here.
	ErrorRate float64

	// MeanLatency and P95Latency summarize windowed attempt durations.
	MeanLatency time.Duration
	P95Latency  time.Duration

	// QueueWait is the mean admission wait over the windowed samples.
	QueueWait time.Duration
}

type attemptSample struct {
	ok  bool
	dur time.Duration
	at  time.Time
}

// Window is a bounded ring of recent attempt and queue-wait samples. The
// oldest sample is evicted on insert once the ring is full. Safe for
// concurrent use within one process.
type Window struct {
	mu sync.Mutex

	clock clock.Clock
	size  int

	attempts    []attemptSample
	attemptNext int
	attemptFull bool

	waits    []time.Duration
	waitNext int
	waitFull bool
}

// NewWindow returns a window holding up to size samples of each kind. A
// non-positive size falls back to the default.
func NewWindow(size int, clk clock.Clock) *Window {
	if size <= 0 {
		size = _defaultWindowSize
	}
	if clk == nil {
		clk = clock.NewReal()
	}
	return &Window{
		clock:    clk,
		size:     size,
		attempts: make([]attemptSample, size),
		waits:    make([]time.Duration, size),
	}
}

// RecordAttempt records the outcome and duration of one vendor-call attempt.
func (w *Window) RecordAttempt(ok bool, dur time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.attempts[w.attemptNext] = attemptSample{ok: ok, dur: dur, at: w.clock.Now()}
	w.attemptNext++
	if w.attemptNext == w.size {
		w.attemptNext = 0
		w.attemptFull = true
	}
}

// RecordQueueWait records how long a call spent in admission before its
// attempt could start.
func (w *Window) RecordQueueWait(dur time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.waits[w.waitNext] = dur
	w.waitNext++
	if w.waitNext == w.size {
		w.waitNext = 0
		w.waitFull = true
	}
}

// Snapshot computes the current health summary.
func (w *Window) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	var snap Snapshot

	n := w.attemptNext
	if w.attemptFull {
		n = w.size
	}
	if n > 0 {
		var failures int
		var total time.Duration
		durs := make([]time.Duration, n)
		for i := 0; i < n; i++ {
			s := w.attempts[i]
			if !s.ok {
				failures++
			}
			total += s.dur
			durs[i] = s.dur
		}
		sort.Slice(durs, func(i, j int) bool { return durs[i] < durs[j] })

		snap.Attempts = n
		snap.ErrorRate = float64(failures) / float64(n)
		snap.MeanLatency = total / time.Duration(n)
		snap.P95Latency = durs[(n*95)/100]
	}

	wn := w.waitNext
	if w.waitFull {
		wn = w.size
	}
	if wn > 0 {
		var total time.Duration
		for i := 0; i < wn; i++ {
			total += w.waits[i]
		}
		snap.QueueWait = total / time.Duration(wn)
	}

	return snap
}
