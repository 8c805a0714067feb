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
	"go.uber.org/callguard/api/transport"
	"go.uber.org/callguard/callguarderrors"
)

// Outcome is the terminal result of a guarded call, in a shape convenient
// for hosting layers that translate results to their own wire protocol.
type Outcome struct {
	// Response is the vendor's reply; nil unless OK.
	Response *transport.Response

	// Err is the terminal error; nil when OK. Always a
	// *callguarderrors.Status when non-nil.
	Err error
}

// OK reports whether the call succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

// Code returns the outcome code, CodeOK on success.
func (o Outcome) Code() callguarderrors.Code {
	return callguarderrors.FromError(o.Err).Code()
}

// Attempts returns how many vendor attempts were made, when known.
func (o Outcome) Attempts() int {
	return callguarderrors.FromError(o.Err).Attempts()
}

// HTTPStatus suggests a response status for HTTP hosting layers: 200 on
// success, 429 for quota denials, 503 for sheds and open circuits, 504 for
// timeouts, 502 for vendor failures.
func (o Outcome) HTTPStatus() int {
	return o.Code().HTTPStatus()
}
