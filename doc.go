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

// Package callguard guards outbound calls to rate-limited vendors from a
// fleet of stateless pods.
//
// A Gateway layers admission control in front of a vendor transport:
//
//   - a tier-aware load shedder rejects work a saturated pod cannot take,
//   - a per-caller quota guard enforces fair shares of the vendor allowance,
//   - a circuit breaker shared through a store opens for the whole fleet
//     when the vendor degrades,
//   - a store-backed sliding window holds the fleet inside the vendor's
//     contractual rate, while a pod-local smoother spreads this pod's calls,
//   - a local concurrency gate caps in-flight calls per pod.
//
// Admitted calls run under a call timeout and retry retryable failures with
// full-jitter backoff, inside an adaptive budget that collapses to zero when
// the breaker is open or the pod is struggling.
//
// Build a Gateway from a Config and an outbound, then call through it:
//
//	out, err := vendorhttp.NewOutbound("https://vendor.example.com")
//	if err != nil {
//		return err
//	}
//	gw, err := callguard.New(cfg, out,
//		callguard.WithLogger(logger),
//		callguard.WithGlobalStore(redisstore.New(client)),
//	)
//	if err != nil {
//		return err
//	}
//	res, err := gw.Call(ctx, &transport.Request{
//		Caller:    "billing",
//		Tier:      transport.TierPremium,
//		Procedure: "charge",
//		Body:      payload,
//	})
//
// Errors returned by Call are *callguarderrors.Status values whose codes say
// which layer rejected the call.
package callguard
