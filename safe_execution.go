// safe_execution.go: Convenience factory and call-wrapping helpers
//
// This module provides the two shortcuts most applications want: a factory
// that builds a tuned boundary in one call, and a wrapper that turns any
// risky function into a self-guarding one with call-through/fall-back
// semantics.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginguard

import (
	"time"
)

// NewPluginBoundary creates an error boundary for the named plugin with the
// given consecutive-failure budget and recovery timeout, applying standard
// defaults for everything else. The boundary logs silently; use
// NewErrorBoundary directly to attach a logger.
//
// Example:
//
//	boundary := NewPluginBoundary("mail-plugin", 3, 60*time.Second)
func NewPluginBoundary(name string, maxFailures int, recoveryTimeout time.Duration) *ErrorBoundary {
	return NewErrorBoundary(name, BoundaryConfig{
		MaxFailures:     maxFailures,
		RecoveryTimeout: recoveryTimeout,
	}, nil)
}

// SafePluginExecution wraps fn with "call through the boundary, fall back on
// failure" semantics for the named method.
//
// Each invocation of the returned function opens a guarded scope. If the
// boundary rejects the call, the registered fallback's result is returned
// immediately (or nil when none is registered). Otherwise fn runs guarded:
// a clean return is recorded as a success and passed through, while an error
// or panic is recorded and replaced by the fallback result. Only a failing
// fallback can surface an error to the caller.
//
// Example:
//
//	send := SafePluginExecution(boundary, "send_mail", func() (any, error) {
//	    return mailPlugin.Send(msg)
//	})
//	result, err := send()
func SafePluginExecution(boundary *ErrorBoundary, method string, fn func() (any, error)) func() (any, error) {
	return func() (any, error) {
		ec := boundary.Execute(method, nil)
		if !ec.ShouldProceed() {
			ec.Finish(nil)
			return ec.ExecuteFallback()
		}

		result, err := runGuardedResult(fn)
		if err == nil {
			ec.MarkSuccess()
			ec.Finish(nil)
			return result, nil
		}

		ec.Finish(err)
		return ec.ExecuteFallback()
	}
}

// runGuardedResult executes fn, converting a panic into a classified error.
func runGuardedResult(fn func() (any, error)) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = recoveredPanicError(r)
		}
	}()
	return fn()
}
