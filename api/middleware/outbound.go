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

// Package middleware defines the outbound middleware used to assemble a
// gateway's admission pipeline around a vendor transport.
package middleware

import (
	"context"

	"go.uber.org/callguard/api/transport"
)

// UnaryOutbound defines transport-level middleware for UnaryOutbounds.
//
// UnaryOutbound middleware MAY do zero or more of the following: change the
// context, reject the request without calling the given outbound, handle the
// returned error, call the given outbound zero or more times.
//
// UnaryOutbound middleware MUST be thread-safe, and is re-used across
// requests.
type UnaryOutbound interface {
	Call(ctx context.Context, req *transport.Request, out transport.UnaryOutbound) (*transport.Response, error)
}

// NopUnaryOutbound is a middleware that simply calls the underlying outbound.
var NopUnaryOutbound UnaryOutbound = nopUnaryOutbound{}

type nopUnaryOutbound struct{}

func (nopUnaryOutbound) Call(ctx context.Context, req *transport.Request, out transport.UnaryOutbound) (*transport.Response, error) {
	return out.Call(ctx, req)
}

// ApplyUnaryOutbound wraps the given outbound with the given middleware.
func ApplyUnaryOutbound(o transport.UnaryOutbound, f UnaryOutbound) transport.UnaryOutbound {
	if f == nil {
		return o
	}
	return unaryOutboundWithMiddleware{o: o, f: f}
}

// UnaryOutboundFunc adapts a function into a UnaryOutbound middleware.
type UnaryOutboundFunc func(context.Context, *transport.Request, transport.UnaryOutbound) (*transport.Response, error)

// Call for UnaryOutboundFunc.
func (f UnaryOutboundFunc) Call(ctx context.Context, req *transport.Request, out transport.UnaryOutbound) (*transport.Response, error) {
	return f(ctx, req, out)
}

type unaryOutboundWithMiddleware struct {
	o transport.UnaryOutbound
	f UnaryOutbound
}

func (fo unaryOutboundWithMiddleware) Call(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	return fo.f.Call(ctx, req, fo.o)
}
