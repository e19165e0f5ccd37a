// types_test.go: Tests for shared data types and tuning defaults
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginguard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPluginStateString(t *testing.T) {
	tests := []struct {
		state    PluginState
		expected string
	}{
		{StateHealthy, "healthy"},
		{StateDegraded, "degraded"},
		{StateFailed, "failed"},
		{StateDisabled, "disabled"},
		{StateRecovering, "recovering"},
		{PluginState(99), "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.state.String())
	}
}

func TestErrorSeverityString(t *testing.T) {
	tests := []struct {
		severity ErrorSeverity
		expected string
	}{
		{SeverityLow, "low"},
		{SeverityMedium, "medium"},
		{SeverityHigh, "high"},
		{SeverityCritical, "critical"},
		{ErrorSeverity(99), "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.severity.String())
	}
}

func TestErrorKindSeverityMapping(t *testing.T) {
	tests := []struct {
		kind     ErrorKind
		severity ErrorSeverity
	}{
		{KindFatal, SeverityCritical},
		{KindTypeMismatch, SeverityHigh},
		{KindTransient, SeverityMedium},
		{KindUnknown, SeverityLow},
		{ErrorKind(99), SeverityLow},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.severity, tt.kind.Severity(),
			"kind %s should map to severity %s", tt.kind, tt.severity)
	}
}

func TestBoundaryConfigApplyDefaults(t *testing.T) {
	var config BoundaryConfig
	config.ApplyDefaults()

	defaults := DefaultBoundaryConfig()
	assert.Equal(t, defaults.MaxFailures, config.MaxFailures)
	assert.Equal(t, defaults.RecoveryTimeout, config.RecoveryTimeout)
	assert.Equal(t, defaults.ErrorLogLimit, config.ErrorLogLimit)
}

func TestBoundaryConfigApplyDefaultsPreservesExplicitValues(t *testing.T) {
	config := BoundaryConfig{
		MaxFailures:     2,
		RecoveryTimeout: time.Minute,
		ErrorLogLimit:   10,
	}
	config.ApplyDefaults()

	assert.Equal(t, 2, config.MaxFailures)
	assert.Equal(t, time.Minute, config.RecoveryTimeout)
	assert.Equal(t, 10, config.ErrorLogLimit)
}

func TestBoundaryConfigZeroLogLimitMeansUnbounded(t *testing.T) {
	config := BoundaryConfig{MaxFailures: 1, RecoveryTimeout: time.Second}
	config.ApplyDefaults()

	// Zero is a deliberate "unbounded" setting, not an unset field.
	assert.Equal(t, 0, config.ErrorLogLimit)
}

func TestWatchdogConfigApplyDefaults(t *testing.T) {
	var config WatchdogConfig
	config.ApplyDefaults()

	assert.Equal(t, DefaultWatchdogConfig().CheckInterval, config.CheckInterval)
	assert.False(t, config.AutoRecovery)

	config = WatchdogConfig{CheckInterval: time.Second, AutoRecovery: true}
	config.ApplyDefaults()
	assert.Equal(t, time.Second, config.CheckInterval)
	assert.True(t, config.AutoRecovery)
}
