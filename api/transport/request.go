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

package transport

import (
	"errors"
	"time"
)

// Request is one unit of work bound for the vendor. A Request is immutable
// once submitted to a gateway; the gateway never mutates it, and callers must
// not reuse the body buffer until a terminal outcome is returned.
type Request struct {
	// Caller identifies the originator of the request for per-caller quota
	// accounting. Required.
	Caller string

	// Tier is the caller's priority tier, consulted by the load shedder.
	Tier Tier

	// Procedure names the vendor operation. Used for metrics tags and as the
	// request path by HTTP outbounds.
	Procedure string

	// Headers are forwarded verbatim to the vendor transport.
	Headers map[string]string

	// Body is the opaque request payload.
	Body []byte

	// Deadline, if non-zero, is an explicit per-request deadline applied in
	// addition to any context deadline.
	Deadline time.Time
}

// Validate returns an error if the request is missing required fields.
func (r *Request) Validate() error {
	if r == nil {
		return errors.New("request is nil")
	}
	if r.Caller == "" {
		return errors.New("request has no caller")
	}
	return nil
}

// Response is the vendor's reply to a successful call.
type Response struct {
	// StatusCode is the vendor's transport-level status (an HTTP status for
	// HTTP outbounds).
	StatusCode int

	// Headers carries the vendor's response headers.
	Headers map[string]string

	// Body is the opaque response payload.
	Body []byte
}
