// boundary_test.go: Tests for the per-plugin error boundary state machine
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginguard

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewErrorBoundaryStartsHealthy(t *testing.T) {
	boundary := NewErrorBoundary("test-plugin", BoundaryConfig{}, nil)

	health := boundary.GetHealthStatus()
	assert.Equal(t, "test-plugin", health.Plugin)
	assert.Equal(t, StateHealthy, health.State)
	assert.Equal(t, 0, health.ConsecutiveFailures)
	assert.Nil(t, health.DisabledUntil)
	assert.Equal(t, "test-plugin", boundary.Name())
}

func TestBoundarySingleFailureKeepsState(t *testing.T) {
	boundary := NewErrorBoundary("test-plugin", BoundaryConfig{MaxFailures: 5}, nil)

	failBoundary(boundary, 1)

	health := boundary.GetHealthStatus()
	assert.Equal(t, StateHealthy, health.State, "one failure must not change state")
	assert.Equal(t, 1, health.ConsecutiveFailures)
	assert.Equal(t, int64(1), health.ErrorCount)
	assert.Nil(t, health.DisabledUntil)
}

func TestBoundaryRepeatedFailuresDegrade(t *testing.T) {
	boundary := NewErrorBoundary("test-plugin", BoundaryConfig{MaxFailures: 5}, nil)

	// Everything in [2, MaxFailures] consecutive failures is degraded, not yet
	// failed.
	failBoundary(boundary, 1)
	for failures := 2; failures <= 5; failures++ {
		failBoundary(boundary, 1)
		health := boundary.GetHealthStatus()
		assert.Equal(t, StateDegraded, health.State,
			"state after %d consecutive failures", failures)
		assert.Equal(t, failures, health.ConsecutiveFailures)
		assert.Nil(t, health.DisabledUntil)
	}
}

func TestBoundaryExceedingBudgetFails(t *testing.T) {
	boundary := NewErrorBoundary("test-plugin", BoundaryConfig{
		MaxFailures:     3,
		RecoveryTimeout: time.Minute,
	}, nil)

	failBoundary(boundary, 4)

	health := boundary.GetHealthStatus()
	assert.Equal(t, StateFailed, health.State)
	assert.Equal(t, 4, health.ConsecutiveFailures)
	require.NotNil(t, health.DisabledUntil)
	assert.True(t, health.DisabledUntil.After(time.Now()),
		"recovery deadline should be in the future")
}

func TestBoundaryFailedPluginRejectsCalls(t *testing.T) {
	boundary := NewErrorBoundary("test-plugin", BoundaryConfig{
		MaxFailures:     1,
		RecoveryTimeout: time.Minute,
	}, nil)
	failBoundary(boundary, 2)

	executed := false
	ec := boundary.Protect("op", nil, func() error {
		executed = true
		return nil
	})

	assert.False(t, executed, "guarded body must not run while plugin is failed")
	assert.False(t, ec.ShouldProceed())
	assert.True(t, ec.UseFallback())
	assert.False(t, ec.Succeeded())

	// A rejected call records neither a success nor another failure.
	health := boundary.GetHealthStatus()
	assert.Equal(t, int64(2), health.ErrorCount)
	assert.Equal(t, int64(0), health.SuccessCount)
}

func TestBoundaryCriticalFailureDisablesImmediately(t *testing.T) {
	boundary := NewErrorBoundary("test-plugin", BoundaryConfig{
		MaxFailures:     10,
		RecoveryTimeout: time.Minute,
	}, nil)

	boundary.Protect("op", nil, func() error {
		return WithKind(KindFatal, errors.New("corrupted state"))
	})

	health := boundary.GetHealthStatus()
	assert.Equal(t, StateDisabled, health.State,
		"critical failure must bypass the consecutive-failure budget")
	assert.Equal(t, 1, health.ConsecutiveFailures)
	require.NotNil(t, health.DisabledUntil)
}

func TestBoundaryPanicIsContained(t *testing.T) {
	boundary := NewErrorBoundary("test-plugin", BoundaryConfig{MaxFailures: 5}, nil)

	assert.NotPanics(t, func() {
		boundary.Protect("op", nil, func() error {
			panic("plugin blew up")
		})
	})

	// A non-runtime panic value is fatal, so the plugin is disabled.
	health := boundary.GetHealthStatus()
	assert.Equal(t, StateDisabled, health.State)

	log := boundary.ErrorLog()
	require.Len(t, log, 1)
	assert.Equal(t, KindFatal, log[0].Kind)
	assert.Equal(t, SeverityCritical, log[0].Severity)
	assert.NotEmpty(t, log[0].Stack, "panic record should carry the captured stack")
}

func TestBoundaryRuntimePanicIsTypeMismatch(t *testing.T) {
	boundary := NewErrorBoundary("test-plugin", BoundaryConfig{MaxFailures: 5}, nil)

	boundary.Protect("op", nil, func() error {
		var s []int
		_ = s[3] // index out of range
		return nil
	})

	log := boundary.ErrorLog()
	require.Len(t, log, 1)
	assert.Equal(t, KindTypeMismatch, log[0].Kind)
	assert.Equal(t, SeverityHigh, log[0].Severity)

	// High severity is not critical; one failure leaves the state alone.
	assert.Equal(t, StateHealthy, boundary.GetHealthStatus().State)
}

func TestBoundarySuccessResetsConsecutiveFailures(t *testing.T) {
	boundary := NewErrorBoundary("test-plugin", BoundaryConfig{MaxFailures: 5}, nil)
	failBoundary(boundary, 3)
	assert.Equal(t, StateDegraded, boundary.GetHealthStatus().State)

	ec := boundary.Protect("op", nil, func() error { return nil })
	assert.True(t, ec.Succeeded())

	health := boundary.GetHealthStatus()
	assert.Equal(t, StateHealthy, health.State)
	assert.Equal(t, 0, health.ConsecutiveFailures)
	assert.Equal(t, int64(3), health.ErrorCount, "lifetime error count survives success")
	assert.Equal(t, int64(1), health.SuccessCount)
	assert.False(t, health.LastSuccess.IsZero())
}

func TestBoundaryElapsedDeadlineAllowsRecoveringCall(t *testing.T) {
	boundary := pastDeadlineBoundary("test-plugin", 1)

	executed := false
	ec := boundary.Protect("op", nil, func() error {
		executed = true
		return nil
	})

	assert.True(t, executed, "elapsed deadline must let the call through")
	assert.True(t, ec.Succeeded())
	assert.Equal(t, StateHealthy, boundary.GetHealthStatus().State)
}

func TestBoundaryRecoveringStateOnElapsedDeadline(t *testing.T) {
	boundary := pastDeadlineBoundary("test-plugin", 1)

	// Open the scope but do not finish it yet: the availability check alone
	// performs the lazy transition.
	ec := boundary.Execute("op", nil)
	assert.True(t, ec.ShouldProceed())

	health := boundary.GetHealthStatus()
	assert.Equal(t, StateRecovering, health.State)
	assert.Nil(t, health.DisabledUntil,
		"deadline must be cleared once the plugin is recovering")

	ec.Finish(nil)
}

func TestBoundaryRecoverySuccess(t *testing.T) {
	ta := NewTestAssertions(t)
	boundary := NewErrorBoundary("test-plugin", BoundaryConfig{
		MaxFailures:     2,
		RecoveryTimeout: time.Minute,
	}, nil)

	recoveryCalls := 0
	boundary.RegisterRecoveryHandler(func() error {
		recoveryCalls++
		return nil
	})

	// Three consecutive failures exceed the budget of two.
	failBoundary(boundary, 3)
	ta.AssertEqual(StateFailed, boundary.GetHealthStatus().State, "state after failures")

	ta.AssertTrue(boundary.AttemptRecovery(), "recovery outcome")
	ta.AssertEqual(1, recoveryCalls, "recovery handler invocations")

	health := boundary.GetHealthStatus()
	ta.AssertEqual(StateHealthy, health.State, "state after recovery")
	ta.AssertEqual(int64(1), health.RecoveryAttempts, "recovery attempts")
	ta.AssertEqual(0, health.ConsecutiveFailures, "consecutive failures after recovery")
	ta.AssertTrue(health.DisabledUntil == nil, "deadline cleared after recovery")
}

func TestBoundaryRecoveryFailureKeepsStateAndRefreshesDeadline(t *testing.T) {
	boundary := NewErrorBoundary("test-plugin", BoundaryConfig{
		MaxFailures:     1,
		RecoveryTimeout: time.Minute,
	}, nil)
	boundary.RegisterRecoveryHandler(func() error {
		return errors.New("backend still down")
	})
	failBoundary(boundary, 2)

	before := boundary.GetHealthStatus()
	require.NotNil(t, before.DisabledUntil)

	assert.False(t, boundary.AttemptRecovery())

	health := boundary.GetHealthStatus()
	assert.Equal(t, StateFailed, health.State, "failing recovery must not change state")
	assert.Equal(t, int64(1), health.RecoveryAttempts)
	require.NotNil(t, health.DisabledUntil)
	assert.False(t, health.DisabledUntil.Before(*before.DisabledUntil),
		"failing recovery refreshes the rejection window")

	// The handler failure lands in the error log flagged as a recovery
	// attempt, without touching the failure counters.
	log := boundary.ErrorLog()
	require.NotEmpty(t, log)
	last := log[len(log)-1]
	assert.True(t, last.RecoveryAttempted)
	assert.Equal(t, "recovery", last.Method)
	assert.Equal(t, 2, health.ConsecutiveFailures)
	assert.Equal(t, int64(2), health.ErrorCount)
}

func TestBoundaryRecoveryHandlersRunInOrderAndStopOnFailure(t *testing.T) {
	boundary := NewErrorBoundary("test-plugin", BoundaryConfig{}, nil)

	var order []int
	boundary.RegisterRecoveryHandler(func() error { order = append(order, 1); return nil })
	boundary.RegisterRecoveryHandler(func() error { order = append(order, 2); return errBoom })
	boundary.RegisterRecoveryHandler(func() error { order = append(order, 3); return nil })

	assert.False(t, boundary.AttemptRecovery())
	assert.Equal(t, []int{1, 2}, order, "handlers after the failing one must not run")
}

func TestBoundaryRecoveryHandlerPanicCountsAsFailure(t *testing.T) {
	boundary := NewErrorBoundary("test-plugin", BoundaryConfig{}, nil)
	boundary.RegisterRecoveryHandler(func() error {
		panic("handler blew up")
	})

	assert.NotPanics(t, func() {
		assert.False(t, boundary.AttemptRecovery())
	})
	assert.Equal(t, int64(1), boundary.GetHealthStatus().RecoveryAttempts)
}

func TestBoundaryRecoveryWithoutHandlersSucceeds(t *testing.T) {
	boundary := pastDeadlineBoundary("test-plugin", 1)

	// Nothing to run means nothing failed: the plugin is simply re-enabled,
	// mirroring the lazy call-through transition.
	assert.True(t, boundary.AttemptRecovery())
	assert.Equal(t, StateHealthy, boundary.GetHealthStatus().State)
}

func TestBoundaryDisablePlugin(t *testing.T) {
	boundary := NewErrorBoundary("test-plugin", BoundaryConfig{}, nil)

	boundary.DisablePlugin("maintenance window")

	health := boundary.GetHealthStatus()
	assert.Equal(t, StateDisabled, health.State)
	assert.Nil(t, health.DisabledUntil, "operator disable has no deadline")

	// Indefinitely disabled: the lazy transition never lets a call through.
	ec := boundary.Execute("op", nil)
	assert.False(t, ec.ShouldProceed())
	ec.Finish(nil)
}

func TestBoundaryResetHealth(t *testing.T) {
	boundary := NewErrorBoundary("test-plugin", BoundaryConfig{
		MaxFailures:     1,
		RecoveryTimeout: time.Minute,
	}, nil)
	failBoundary(boundary, 3)
	require.Equal(t, StateFailed, boundary.GetHealthStatus().State)
	require.NotEmpty(t, boundary.ErrorLog())

	boundary.ResetHealth()

	health := boundary.GetHealthStatus()
	assert.Equal(t, StateHealthy, health.State)
	assert.Equal(t, 0, health.ConsecutiveFailures)
	assert.Nil(t, health.DisabledUntil)
	assert.Empty(t, boundary.ErrorLog())

	// Lifetime metrics are historical and survive the reset.
	assert.Equal(t, int64(3), health.ErrorCount)
}

func TestBoundaryErrorLogBounded(t *testing.T) {
	boundary := NewErrorBoundary("test-plugin", BoundaryConfig{
		MaxFailures:   100,
		ErrorLogLimit: 3,
	}, nil)

	errs := []error{
		errors.New("first"), errors.New("second"), errors.New("third"),
		errors.New("fourth"), errors.New("fifth"),
	}
	for _, err := range errs {
		failure := err
		boundary.Protect("op", nil, func() error { return failure })
	}

	log := boundary.ErrorLog()
	require.Len(t, log, 3)
	assert.Equal(t, "third", log[0].Message)
	assert.Equal(t, "fifth", log[2].Message)

	// The lifetime counter still reflects every failure.
	assert.Equal(t, int64(5), boundary.GetHealthStatus().ErrorCount)
}

func TestBoundaryClearErrorLog(t *testing.T) {
	boundary := NewErrorBoundary("test-plugin", BoundaryConfig{MaxFailures: 10}, nil)
	failBoundary(boundary, 2)
	require.NotEmpty(t, boundary.ErrorLog())

	boundary.ClearErrorLog()

	assert.Empty(t, boundary.ErrorLog())
	assert.Equal(t, int64(2), boundary.GetHealthStatus().ErrorCount,
		"clearing the log must not touch the health aggregate")
}

func TestBoundaryErrorRecordFields(t *testing.T) {
	boundary := NewErrorBoundary("mail-plugin", BoundaryConfig{MaxFailures: 10}, nil)

	metadata := map[string]any{"recipient": "ops@example.com"}
	boundary.Protect("send_mail", metadata, func() error {
		return WithKind(KindTransient, errors.New("smtp timeout"))
	})

	log := boundary.ErrorLog()
	require.Len(t, log, 1)
	record := log[0]
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, "mail-plugin", record.Plugin)
	assert.Equal(t, "send_mail", record.Method)
	assert.Equal(t, KindTransient, record.Kind)
	assert.Equal(t, SeverityMedium, record.Severity)
	assert.False(t, record.Timestamp.IsZero())
	assert.Equal(t, "ops@example.com", record.Context["recipient"])
	assert.False(t, record.RecoveryAttempted)
	assert.Error(t, record.Err)
}

func TestBoundaryCustomClassifier(t *testing.T) {
	boundary := NewErrorBoundary("test-plugin", BoundaryConfig{MaxFailures: 10}, nil)
	boundary.SetClassifier(func(err error) ErrorKind {
		return KindFatal
	})

	boundary.Protect("op", nil, func() error { return errBoom })

	assert.Equal(t, StateDisabled, boundary.GetHealthStatus().State,
		"custom classifier controls severity and therefore state")

	// nil restores the default classification.
	boundary.SetClassifier(nil)
	boundary.ResetHealth()
	boundary.Protect("op", nil, func() error { return errBoom })
	assert.Equal(t, StateHealthy, boundary.GetHealthStatus().State)
}

func TestBoundaryUpdateConfig(t *testing.T) {
	boundary := NewErrorBoundary("test-plugin", BoundaryConfig{MaxFailures: 10}, nil)
	failBoundary(boundary, 2)

	boundary.UpdateConfig(BoundaryConfig{MaxFailures: 1, RecoveryTimeout: time.Minute})
	assert.Equal(t, 1, boundary.Config().MaxFailures)
	assert.Equal(t, 2, boundary.GetHealthStatus().ConsecutiveFailures,
		"retuning must not touch counters")

	// The tighter budget applies to the next failure.
	failBoundary(boundary, 1)
	assert.Equal(t, StateFailed, boundary.GetHealthStatus().State)
}

func TestBoundaryStateTransitionLogged(t *testing.T) {
	logger := NewTestLogger()
	boundary := NewErrorBoundary("test-plugin", BoundaryConfig{MaxFailures: 5}, logger)

	failBoundary(boundary, 2)

	assert.True(t, logger.HasMessage("WARN", "Plugin state changed"),
		"degradation should be logged as a state change")
}

func TestBoundaryConcurrentGuardedCalls(t *testing.T) {
	boundary := NewErrorBoundary("test-plugin", BoundaryConfig{
		MaxFailures:   1000,
		ErrorLogLimit: 0, // unbounded, every record retained
	}, nil)

	const goroutines = 8
	const callsPerGoroutine = 50

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < callsPerGoroutine; i++ {
				if i%2 == 0 {
					boundary.Protect("op", nil, func() error { return errBoom })
				} else {
					boundary.Protect("op", nil, func() error { return nil })
				}
			}
		}(g)
	}
	wg.Wait()

	health := boundary.GetHealthStatus()
	total := goroutines * callsPerGoroutine
	assert.Equal(t, int64(total/2), health.ErrorCount)
	assert.Equal(t, int64(total/2), health.SuccessCount)
	assert.Len(t, boundary.ErrorLog(), total/2)
}
