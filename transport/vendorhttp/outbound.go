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

// Package vendorhttp provides an HTTP UnaryOutbound for calling the guarded
// vendor. It translates transport-level conditions into the guarded call
// outcome taxonomy: 5xx responses and timeouts are retryable, 4xx responses
// are terminal.
package vendorhttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	opentracinglog "github.com/opentracing/opentracing-go/log"
	"go.uber.org/callguard/api/transport"
	"go.uber.org/callguard/callguarderrors"
)

const (
	// CallerHeader carries the logical caller name on the wire.
	CallerHeader = "X-Callguard-Caller"
	// TierHeader carries the caller tier on the wire.
	TierHeader = "X-Callguard-Tier"
	// ProcedureHeader carries the procedure name on the wire.
	ProcedureHeader = "X-Callguard-Procedure"
)

const (
	defaultDialTimeout           = 2 * time.Second
	defaultTLSHandshakeTimeout   = 2 * time.Second
	defaultResponseHeaderTimeout = 5 * time.Second
	defaultIdleConnTimeout       = 90 * time.Second
	defaultMaxConnsPerHost       = 64
	defaultMaxIdleConnsPerHost   = 8

	// Responses larger than this are truncated rather than buffered without
	// bound; the vendor's payloads are small control-plane bodies.
	maxResponseBytes = 4 << 20
)

// Option customizes an Outbound.
type Option func(*Outbound)

// WithClient overrides the HTTP client used for vendor calls. The caller owns
// the client's connection pool sizing and phase timeouts.
func WithClient(client *http.Client) Option {
	return func(o *Outbound) {
		o.client = client
	}
}

// WithTracer sets the tracer used to report a span per vendor attempt.
// Defaults to opentracing.GlobalTracer().
func WithTracer(tracer opentracing.Tracer) Option {
	return func(o *Outbound) {
		o.tracer = tracer
	}
}

// WithResponseHeaderTimeout bounds how long the default transport waits for
// the vendor's response headers. Ignored when WithClient is used.
func WithResponseHeaderTimeout(timeout time.Duration) Option {
	return func(o *Outbound) {
		o.responseHeaderTimeout = timeout
	}
}

// Outbound is an HTTP transport.UnaryOutbound for the vendor API. Procedures
// map to paths under the configured base URL.
type Outbound struct {
	baseURL               *url.URL
	client                *http.Client
	tracer                opentracing.Tracer
	responseHeaderTimeout time.Duration
}

var _ transport.UnaryOutbound = (*Outbound)(nil)

// NewOutbound builds an HTTP outbound for the given vendor base URL.
func NewOutbound(baseURL string, opts ...Option) (*Outbound, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("vendorhttp: invalid base URL %q: %v", baseURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("vendorhttp: base URL %q must be http or https", baseURL)
	}
	o := &Outbound{
		baseURL:               parsed,
		tracer:                opentracing.GlobalTracer(),
		responseHeaderTimeout: defaultResponseHeaderTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.client == nil {
		o.client = &http.Client{Transport: newDefaultTransport(o.responseHeaderTimeout)}
	}
	return o, nil
}

// newDefaultTransport returns an http.Transport with bounded per-host
// connections and explicit phase timeouts, so a wedged vendor cannot grow the
// pool or hold dials open indefinitely.
func newDefaultTransport(responseHeaderTimeout time.Duration) *http.Transport {
	return &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   defaultDialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   defaultTLSHandshakeTimeout,
		ResponseHeaderTimeout: responseHeaderTimeout,
		IdleConnTimeout:       defaultIdleConnTimeout,
		MaxConnsPerHost:       defaultMaxConnsPerHost,
		MaxIdleConnsPerHost:   defaultMaxIdleConnsPerHost,
	}
}

// Call issues a single vendor request and classifies the result.
func (o *Outbound) Call(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, callguarderrors.BadRequestErrorf("invalid vendor request: %v", err)
	}

	span, ctx := o.startSpan(ctx, req)
	defer span.Finish()

	httpReq, err := o.buildRequest(ctx, req)
	if err != nil {
		return nil, callguarderrors.InternalErrorf("build vendor request: %v", err)
	}
	if err := o.tracer.Inject(span.Context(), opentracing.HTTPHeaders, opentracing.HTTPHeadersCarrier(httpReq.Header)); err != nil {
		span.LogFields(opentracinglog.String("event", "tracer inject failed"), opentracinglog.Error(err))
	}

	httpRes, err := o.client.Do(httpReq)
	if err != nil {
		st := classifyTransportError(ctx, req, err)
		markSpanError(span, st)
		return nil, st
	}
	defer httpRes.Body.Close()

	ext.HTTPStatusCode.Set(span, uint16(httpRes.StatusCode))

	body, err := ioutil.ReadAll(io.LimitReader(httpRes.Body, maxResponseBytes))
	if err != nil {
		st := classifyTransportError(ctx, req, err)
		markSpanError(span, st)
		return nil, st
	}

	if httpRes.StatusCode >= 400 {
		st := callguarderrors.VendorErrorf(
			httpRes.StatusCode,
			"vendor returned %d for procedure %q: %s",
			httpRes.StatusCode, req.Procedure, strings.TrimSpace(string(body)),
		)
		markSpanError(span, st)
		return nil, st
	}

	return &transport.Response{
		StatusCode: httpRes.StatusCode,
		Headers:    fromHTTPHeader(httpRes.Header),
		Body:       body,
	}, nil
}

func (o *Outbound) buildRequest(ctx context.Context, req *transport.Request) (*http.Request, error) {
	target := *o.baseURL
	target.Path = joinPath(o.baseURL.Path, req.Procedure)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), bytes.NewReader(req.Body))
	if err != nil {
		return nil, err
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	httpReq.Header.Set(CallerHeader, req.Caller)
	httpReq.Header.Set(TierHeader, req.Tier.String())
	httpReq.Header.Set(ProcedureHeader, req.Procedure)
	return httpReq, nil
}

func (o *Outbound) startSpan(ctx context.Context, req *transport.Request) (opentracing.Span, context.Context) {
	var opts []opentracing.StartSpanOption
	if parent := opentracing.SpanFromContext(ctx); parent != nil {
		opts = append(opts, opentracing.ChildOf(parent.Context()))
	}
	span := o.tracer.StartSpan("vendor::"+req.Procedure, opts...)
	ext.SpanKindRPCClient.Set(span)
	ext.PeerService.Set(span, o.baseURL.Host)
	span.SetTag("callguard.caller", req.Caller)
	span.SetTag("callguard.tier", req.Tier.String())
	return span, opentracing.ContextWithSpan(ctx, span)
}

// classifyTransportError maps a transport failure to the outcome taxonomy.
// Deadline expiry is a call timeout; everything else (refused connections,
// resets, header timeouts) is a retryable vendor error without a status.
func classifyTransportError(ctx context.Context, req *transport.Request, err error) *callguarderrors.Status {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return callguarderrors.CallTimeoutErrorf("vendor call for procedure %q timed out: %v", req.Procedure, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return callguarderrors.CancelledErrorf("vendor call for procedure %q cancelled: %v", req.Procedure, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return callguarderrors.CallTimeoutErrorf("vendor call for procedure %q timed out: %v", req.Procedure, err)
	}
	// Connection-level failures before a response are safe to retry; a 599
	// vendor status marks them retryable without claiming a real HTTP code.
	return callguarderrors.VendorErrorf(599, "vendor call for procedure %q failed: %v", req.Procedure, err)
}

func markSpanError(span opentracing.Span, st *callguarderrors.Status) {
	ext.Error.Set(span, true)
	span.LogFields(
		opentracinglog.String("error.kind", st.Code().String()),
		opentracinglog.String("message", st.Error()),
	)
}

func fromHTTPHeader(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}

func joinPath(base, procedure string) string {
	base = strings.TrimSuffix(base, "/")
	return base + "/" + strings.TrimPrefix(procedure, "/")
}
