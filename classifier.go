// classifier.go: Error-kind classification for guarded failures
//
// Severity in the guard system is derived from an explicit error-kind tag
// rather than from error message matching. Guarded code can attach a kind to
// its errors with WithKind; everything else is placed by the boundary's
// Classifier, which defaults to DefaultClassifier.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginguard

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime"
)

// Classifier assigns an ErrorKind to a failure intercepted by a boundary.
//
// A classifier must be pure and fast: it runs under the boundary's health
// lock. Returning KindFatal disables the plugin immediately, so custom
// classifiers should reserve it for genuinely process-fatal conditions.
type Classifier func(err error) ErrorKind

// KindError wraps an error with an explicit ErrorKind so that guarded code
// can control its own classification.
type KindError struct {
	Kind ErrorKind
	Err  error
}

// WithKind tags err with an explicit error kind. The returned error
// unwraps to err for errors.Is/As inspection.
func WithKind(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	return &KindError{Kind: kind, Err: err}
}

// Error implements the error interface.
func (e *KindError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

// Unwrap exposes the wrapped error.
func (e *KindError) Unwrap() error {
	return e.Err
}

// panicError marks a failure that originated as a recovered panic inside a
// guarded scope. The captured stack is the stack at recovery time.
type panicError struct {
	value interface{}
	stack string
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}

// recoveredPanicError converts a recovered panic value into an error the
// classifier understands. runtime.Error panics (nil dereferences, bad type
// assertions, index out of range) classify as KindTypeMismatch; any other
// panic value is treated as fatal.
func recoveredPanicError(recovered interface{}) error {
	buf := make([]byte, 64<<10)
	n := runtime.Stack(buf, false)

	pe := &panicError{value: recovered, stack: string(buf[:n])}
	if _, ok := recovered.(runtime.Error); ok {
		return WithKind(KindTypeMismatch, pe)
	}
	return WithKind(KindFatal, pe)
}

// DefaultClassifier is the classification used by boundaries unless a custom
// Classifier is installed.
//
// Placement rules, checked in order:
//  1. An explicit KindError tag wins
//  2. context deadline/cancellation and net.Error timeouts are transient
//  3. runtime.Error values are contract violations (type-mismatch)
//  4. Everything else is unknown
func DefaultClassifier(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}

	var kindErr *KindError
	if errors.As(err, &kindErr) {
		return kindErr.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTransient
	}

	var runtimeErr runtime.Error
	if errors.As(err, &runtimeErr) {
		return KindTypeMismatch
	}

	return KindUnknown
}
