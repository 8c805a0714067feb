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

import "context"

// UnaryOutbound is a transport that sends a single request to the vendor and
// waits for its response.
//
// Implementations MUST respect context cancellation: a cancelled context must
// abort the in-flight call and return ctx.Err() (possibly wrapped). The
// gateway's call timeout is enforced through the context passed here, so an
// outbound must never wait longer than the context allows.
type UnaryOutbound interface {
	// Call sends the request and returns the vendor's response.
	//
	// Outbounds translate vendor-level failures (non-2xx statuses, transport
	// timeouts) into errors carrying a callguarderrors code so the gateway
	// can classify them for retry and breaker accounting.
	Call(ctx context.Context, req *Request) (*Response, error)
}

// UnaryOutboundFunc adapts a function into a UnaryOutbound.
type UnaryOutboundFunc func(context.Context, *Request) (*Response, error)

// Call implements UnaryOutbound.
func (f UnaryOutboundFunc) Call(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}
