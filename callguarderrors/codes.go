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

package callguarderrors

import "strconv"

const (
	// CodeOK means no error; returned on success.
	CodeOK Code = 0

	// CodeCancelled means the caller's context was cancelled or its deadline
	// elapsed before the gateway produced an outcome.
	CodeCancelled Code = 1

	// CodeShed means the pod's load shedder rejected the request before any
	// resource was touched. Never retried by the gateway.
	CodeShed Code = 2

	// CodeQuotaExceeded means the caller exceeded its fleet-wide quota.
	// Never retried by the gateway.
	CodeQuotaExceeded Code = 3

	// CodeQueueTimeout means the admission queue timeout elapsed while
	// waiting on the breaker check, a rate-limiter token, or a gate slot.
	// Never retried by the gateway: retrying during admission overload only
	// worsens it.
	CodeQueueTimeout Code = 4

	// CodeCircuitOpen means the shared circuit breaker is open for the
	// vendor. Terminal for the current call; the breaker self-heals through
	// half-open probing.
	CodeCircuitOpen Code = 5

	// CodeCallTimeout means the in-flight vendor call exceeded the call
	// timeout. Retryable within the adaptive retry budget.
	CodeCallTimeout Code = 6

	// CodeVendorError means the vendor answered with an error status.
	// Retryable when the status is a 5xx, terminal otherwise.
	CodeVendorError Code = 7

	// CodeBadRequest means the request itself is invalid (validation
	// failure). Terminal, never retried.
	CodeBadRequest Code = 8

	// CodeExhausted means every permitted attempt failed. The count of
	// attempts is carried on the Status.
	CodeExhausted Code = 9

	// CodeInternal means a gateway fault, such as an unreachable shared
	// store under a fail-closed policy.
	CodeInternal Code = 10
)

// Code is a canonical outcome code for a guarded call. Every error the
// gateway returns carries exactly one Code.
type Code int

// String returns the lowercase string representation of the code.
func (c Code) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeCancelled:
		return "cancelled"
	case CodeShed:
		return "shed"
	case CodeQuotaExceeded:
		return "quota-exceeded"
	case CodeQueueTimeout:
		return "queue-timeout"
	case CodeCircuitOpen:
		return "circuit-open"
	case CodeCallTimeout:
		return "call-timeout"
	case CodeVendorError:
		return "vendor-error"
	case CodeBadRequest:
		return "bad-request"
	case CodeExhausted:
		return "exhausted"
	case CodeInternal:
		return "internal"
	default:
		return strconv.Itoa(int(c))
	}
}

// HTTPStatus returns the response status a hosting layer should map this
// code to, preserving the distinction between "try again later" (429/503/504)
// and "this request cannot succeed" (4xx/502).
func (c Code) HTTPStatus() int {
	switch c {
	case CodeOK:
		return 200
	case CodeCancelled:
		return 499
	case CodeShed:
		return 503
	case CodeQuotaExceeded:
		return 429
	case CodeQueueTimeout:
		return 504
	case CodeCircuitOpen:
		return 503
	case CodeCallTimeout:
		return 504
	case CodeVendorError:
		return 502
	case CodeBadRequest:
		return 400
	case CodeExhausted:
		return 502
	case CodeInternal:
		return 500
	default:
		return 500
	}
}
