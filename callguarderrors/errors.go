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

// Package callguarderrors defines the outcome taxonomy for guarded calls.
// Every expected condition (shed, quota denied, circuit open, timeout,
// vendor error) is a typed Status with a Code rather than an opaque error,
// so hosting layers can map outcomes to responses and the retry layer can
// classify failures without string matching.
package callguarderrors

import (
	"errors"
	"fmt"
)

// Status represents a guarded call outcome error.
type Status struct {
	code         Code
	err          error
	vendorStatus int
	retryable    bool
	attempts     int
}

// Newf returns a new Status.
//
// The Code should never be CodeOK; if it is, this returns nil.
func Newf(code Code, format string, args ...interface{}) *Status {
	if code == CodeOK {
		return nil
	}
	var err error
	if len(args) == 0 {
		err = errors.New(format)
	} else {
		err = fmt.Errorf(format, args...)
	}
	return &Status{
		code:      code,
		err:       err,
		retryable: code == CodeCallTimeout,
	}
}

// FromError returns the Status for the provided error.
//
// If the error is nil, this returns nil. If the error is not a Status (even
// wrapped), it is wrapped with CodeInternal: anything without a code is a
// fault, not an expected outcome.
func FromError(err error) *Status {
	if err == nil {
		return nil
	}
	var st *Status
	if errors.As(err, &st) {
		return st
	}
	return &Status{code: CodeInternal, err: err}
}

// IsStatus returns whether the provided error carries a Status, including
// wrapped errors. This is false if the error is nil.
func IsStatus(err error) bool {
	var st *Status
	return errors.As(err, &st)
}

// Code returns the Status code, or CodeOK if the Status is nil.
func (s *Status) Code() Code {
	if s == nil {
		return CodeOK
	}
	return s.code
}

// VendorStatus returns the vendor's transport-level status code, or zero if
// the outcome did not come from a vendor response.
func (s *Status) VendorStatus() int {
	if s == nil {
		return 0
	}
	return s.vendorStatus
}

// Attempts returns how many attempts were made before this outcome, or zero
// if the outcome predates the first attempt.
func (s *Status) Attempts() int {
	if s == nil {
		return 0
	}
	return s.attempts
}

// Retryable reports whether the gateway may retry after this outcome.
func (s *Status) Retryable() bool {
	if s == nil {
		return false
	}
	return s.retryable
}

// WithVendorStatus returns a new Status annotated with the vendor's status
// code. Statuses for 5xx responses become retryable.
func (s *Status) WithVendorStatus(status int) *Status {
	if s == nil {
		return nil
	}
	copied := *s
	copied.vendorStatus = status
	copied.retryable = s.retryable || status >= 500
	return &copied
}

// WithAttempts returns a new Status annotated with the attempt count.
func (s *Status) WithAttempts(attempts int) *Status {
	if s == nil {
		return nil
	}
	copied := *s
	copied.attempts = attempts
	return &copied
}

// Error implements the error interface.
func (s *Status) Error() string {
	if s.vendorStatus != 0 {
		return fmt.Sprintf("code:%s vendor-status:%d message:%s", s.code, s.vendorStatus, s.err.Error())
	}
	return fmt.Sprintf("code:%s message:%s", s.code, s.err.Error())
}

// Unwrap supports errors.Unwrap.
func (s *Status) Unwrap() error {
	if s == nil {
		return nil
	}
	return s.err
}

// CancelledErrorf returns a new Status with CodeCancelled.
func CancelledErrorf(format string, args ...interface{}) *Status {
	return Newf(CodeCancelled, format, args...)
}

// ShedErrorf returns a new Status with CodeShed.
func ShedErrorf(format string, args ...interface{}) *Status {
	return Newf(CodeShed, format, args...)
}

// QuotaExceededErrorf returns a new Status with CodeQuotaExceeded.
func QuotaExceededErrorf(format string, args ...interface{}) *Status {
	return Newf(CodeQuotaExceeded, format, args...)
}

// QueueTimeoutErrorf returns a new Status with CodeQueueTimeout.
func QueueTimeoutErrorf(format string, args ...interface{}) *Status {
	return Newf(CodeQueueTimeout, format, args...)
}

// CircuitOpenErrorf returns a new Status with CodeCircuitOpen.
func CircuitOpenErrorf(format string, args ...interface{}) *Status {
	return Newf(CodeCircuitOpen, format, args...)
}

// CallTimeoutErrorf returns a new Status with CodeCallTimeout.
func CallTimeoutErrorf(format string, args ...interface{}) *Status {
	return Newf(CodeCallTimeout, format, args...)
}

// VendorErrorf returns a new Status with CodeVendorError for the given vendor
// status code. The Status is retryable when the code is a 5xx.
func VendorErrorf(status int, format string, args ...interface{}) *Status {
	return Newf(CodeVendorError, format, args...).WithVendorStatus(status)
}

// BadRequestErrorf returns a new Status with CodeBadRequest.
func BadRequestErrorf(format string, args ...interface{}) *Status {
	return Newf(CodeBadRequest, format, args...)
}

// ExhaustedErrorf returns a new Status with CodeExhausted for the given
// attempt count.
func ExhaustedErrorf(attempts int, format string, args ...interface{}) *Status {
	return Newf(CodeExhausted, format, args...).WithAttempts(attempts)
}

// InternalErrorf returns a new Status with CodeInternal.
func InternalErrorf(format string, args ...interface{}) *Status {
	return Newf(CodeInternal, format, args...)
}

// IsRetryable returns whether the gateway's retry layer may attempt the call
// again after this error: call timeouts and retryable vendor errors qualify;
// admission errors and client errors never do.
func IsRetryable(err error) bool {
	return FromError(err).Retryable()
}

// IsAdmission returns whether the error was produced before the vendor call
// started: sheds, quota denials, queue timeouts, and circuit-open rejections.
// Admission errors are excluded from the vendor error-rate accounting.
func IsAdmission(err error) bool {
	switch FromError(err).Code() {
	case CodeShed, CodeQuotaExceeded, CodeQueueTimeout, CodeCircuitOpen:
		return true
	default:
		return false
	}
}
