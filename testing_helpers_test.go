// testing_helpers_test.go: Shared test helper utilities
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginguard

import (
	"errors"
	"testing"
	"time"
)

// TestAssertions provides enhanced test assertion helpers
type TestAssertions struct {
	t *testing.T
}

// NewTestAssertions creates new test assertion helper
func NewTestAssertions(t *testing.T) *TestAssertions {
	return &TestAssertions{t: t}
}

// AssertNoError asserts that error is nil, with context
func (ta *TestAssertions) AssertNoError(err error, context string) {
	ta.t.Helper()
	if err != nil {
		ta.t.Fatalf("Expected no error in %s, got: %v", context, err)
	}
}

// AssertError asserts that error is not nil, with context
func (ta *TestAssertions) AssertError(err error, context string) {
	ta.t.Helper()
	if err == nil {
		ta.t.Fatalf("Expected error in %s, got nil", context)
	}
}

// AssertEqual asserts that two values are equal
func (ta *TestAssertions) AssertEqual(expected, actual interface{}, context string) {
	ta.t.Helper()
	if expected != actual {
		ta.t.Fatalf("Expected %v in %s, got %v", expected, context, actual)
	}
}

// AssertTrue asserts that condition is true
func (ta *TestAssertions) AssertTrue(condition bool, context string) {
	ta.t.Helper()
	if !condition {
		ta.t.Fatalf("Expected true condition in %s", context)
	}
}

// AssertFalse asserts that condition is false
func (ta *TestAssertions) AssertFalse(condition bool, context string) {
	ta.t.Helper()
	if condition {
		ta.t.Fatalf("Expected false condition in %s", context)
	}
}

// WaitForCondition waits for a condition to be true with timeout
func (ta *TestAssertions) WaitForCondition(condition func() bool, timeout time.Duration, message string) {
	ta.t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}

	ta.t.Fatalf("Condition not met within %v: %s", timeout, message)
}

// errBoom is the generic guarded failure used across tests.
var errBoom = errors.New("boom")

// failBoundary drives a boundary through n consecutive guarded failures.
func failBoundary(b *ErrorBoundary, n int) {
	for i := 0; i < n; i++ {
		b.Protect("op", nil, func() error { return errBoom })
	}
}

// pastDeadlineBoundary builds a boundary already in StateFailed with an
// elapsed recovery deadline, so the next availability check or watchdog
// sweep may act on it immediately.
func pastDeadlineBoundary(name string, maxFailures int) *ErrorBoundary {
	b := NewErrorBoundary(name, BoundaryConfig{
		MaxFailures:     maxFailures,
		RecoveryTimeout: time.Millisecond,
	}, nil)
	failBoundary(b, maxFailures+1)

	// Let the deadline elapse before handing the boundary to the test.
	time.Sleep(10 * time.Millisecond)
	return b
}
