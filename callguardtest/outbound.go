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

// Package callguardtest provides fakes for testing code built on callguard:
// a scripted vendor outbound and a store wrapper that counts shared-state
// traffic, so tests can assert exactly which resources a call consumed.
package callguardtest

import (
	"context"
	"sync"

	"go.uber.org/callguard/api/transport"
	"go.uber.org/callguard/callguarderrors"
)

// Result is one scripted vendor reply.
type Result struct {
	Response *transport.Response
	Err      error
}

// Succeed returns a Result with a minimal 200 response.
func Succeed() Result {
	return Result{Response: &transport.Response{StatusCode: 200}}
}

// RespondWith returns a successful Result carrying the given body.
func RespondWith(body []byte) Result {
	return Result{Response: &transport.Response{StatusCode: 200, Body: body}}
}

// FailStatus returns a Result failing with a vendor error for the given
// transport status.
func FailStatus(status int) Result {
	return Result{Err: callguarderrors.VendorErrorf(status, "scripted vendor error %d", status)}
}

// FailTimeout returns a Result failing with a call timeout.
func FailTimeout() Result {
	return Result{Err: callguarderrors.CallTimeoutErrorf("scripted vendor timeout")}
}

// ScriptedOutbound is a transport.UnaryOutbound that replays a fixed result
// sequence and records how it was driven. Once the script runs out, the last
// result repeats.
type ScriptedOutbound struct {
	mu          sync.Mutex
	script      []Result
	calls       int
	inFlight    int
	maxInFlight int

	// OnCall, if set, runs at the start of every call while the in-flight
	// count is held. Tests use it to block attempts or to observe gateway
	// state mid-call.
	OnCall func(ctx context.Context, req *transport.Request)
}

var _ transport.UnaryOutbound = (*ScriptedOutbound)(nil)

// NewScriptedOutbound builds a ScriptedOutbound; at least one result is
// required.
func NewScriptedOutbound(results ...Result) *ScriptedOutbound {
	if len(results) == 0 {
		panic("scripted outbound needs at least one result")
	}
	return &ScriptedOutbound{script: results}
}

// Call replays the next scripted result.
func (s *ScriptedOutbound) Call(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	s.mu.Lock()
	i := s.calls
	if i >= len(s.script) {
		i = len(s.script) - 1
	}
	result := s.script[i]
	s.calls++
	s.inFlight++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
	hook := s.OnCall
	s.mu.Unlock()

	if hook != nil {
		hook(ctx, req)
	}

	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()

	// Honor the context the way a real transport would, so blocking hooks
	// produce timeouts instead of late successes.
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return nil, callguarderrors.CallTimeoutErrorf("scripted vendor call outlived its deadline")
	case context.Canceled:
		return nil, callguarderrors.CancelledErrorf("scripted vendor call cancelled")
	}
	return result.Response, result.Err
}

// Calls returns how many times the vendor was called.
func (s *ScriptedOutbound) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// MaxInFlight returns the highest concurrency the vendor observed.
func (s *ScriptedOutbound) MaxInFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxInFlight
}
