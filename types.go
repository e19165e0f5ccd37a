// types.go: Common data types and structures for the plugin guard system
//
// This file contains the shared data model used throughout the guard system:
// the plugin health state machine tags, the error severity and error kind
// taxonomies, the per-failure event record, the per-plugin health aggregate,
// and the tuning configuration structures consumed by boundaries and the
// watchdog.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginguard

import (
	"time"
)

// PluginState represents the current position of a plugin in the health
// state machine.
//
// State semantics:
//   - StateHealthy: Plugin is fully operational; all guarded calls proceed
//   - StateDegraded: Repeated failures observed, still allowed to execute
//   - StateFailed: Consecutive failures exceeded the threshold; calls are
//     rejected until the recovery deadline passes
//   - StateDisabled: Plugin was disabled by a critical failure or by an
//     operator; calls are rejected until recovery or an explicit reset
//   - StateRecovering: The recovery deadline has passed and the plugin is
//     being given another chance
//
// Only boundary-internal logic transitions this value. External code can
// force a transition solely through ErrorBoundary.DisablePlugin and
// ErrorBoundary.ResetHealth.
type PluginState int32

const (
	StateHealthy PluginState = iota
	StateDegraded
	StateFailed
	StateDisabled
	StateRecovering
)

// String returns a human-readable representation of the plugin state.
func (s PluginState) String() string {
	switch s {
	case StateHealthy:
		return "healthy"
	case StateDegraded:
		return "degraded"
	case StateFailed:
		return "failed"
	case StateDisabled:
		return "disabled"
	case StateRecovering:
		return "recovering"
	default:
		return "unknown"
	}
}

// ErrorSeverity grades how dangerous a recorded failure is for the plugin.
//
// Severity is derived purely from the failure's ErrorKind, never from its
// message. SeverityCritical failures disable the plugin immediately,
// bypassing the consecutive-failure threshold; all other severities
// accumulate toward degradation and failure.
type ErrorSeverity int

const (
	SeverityLow ErrorSeverity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// String returns a human-readable representation of the severity.
func (s ErrorSeverity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ErrorKind is the host-language-neutral classification tag for guarded
// failures. Guarded code can supply a kind explicitly by wrapping its error
// with WithKind; otherwise the boundary's Classifier assigns one.
//
// Kind semantics:
//   - KindUnknown: Anything the classifier cannot place (SeverityLow)
//   - KindTransient: Timeouts, cancellations, temporary I/O failures
//     (SeverityMedium)
//   - KindTypeMismatch: Contract violations such as runtime type errors
//     (SeverityHigh)
//   - KindFatal: Process-fatal signals; the plugin must be disabled at once
//     (SeverityCritical)
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindTransient
	KindTypeMismatch
	KindFatal
)

// String returns a human-readable representation of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindTypeMismatch:
		return "type-mismatch"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Severity maps an error kind to the severity grade used by the state
// machine.
func (k ErrorKind) Severity() ErrorSeverity {
	switch k {
	case KindFatal:
		return SeverityCritical
	case KindTypeMismatch:
		return SeverityHigh
	case KindTransient:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// PluginError is the immutable event record describing one caught failure.
//
// A record is created once per intercepted failure, appended to the owning
// boundary's error log, and never mutated afterwards. The record carries
// everything an operator or dashboard needs to understand the failure
// without re-running it: classification, message, captured stack text, and
// the free-form context supplied by the caller.
type PluginError struct {
	ID                string         `json:"id"`
	Plugin            string         `json:"plugin"`
	Method            string         `json:"method,omitempty"`
	Kind              ErrorKind      `json:"kind"`
	Severity          ErrorSeverity  `json:"severity"`
	Message           string         `json:"message"`
	Stack             string         `json:"stack,omitempty"`
	Timestamp         time.Time      `json:"timestamp"`
	Context           map[string]any `json:"context,omitempty"`
	RecoveryAttempted bool           `json:"recovery_attempted"`

	// Err is the underlying error, kept for errors.Is/As inspection.
	// It is excluded from serialized snapshots.
	Err error `json:"-"`
}

// PluginHealth is the mutable aggregate describing a plugin's current
// standing. One instance is owned by each ErrorBoundary for the boundary's
// lifetime; callers only ever observe copies taken under the boundary's
// lock.
//
// Invariants maintained by the owning boundary:
//   - ConsecutiveFailures resets to zero exactly when a success is recorded
//   - DisabledUntil is non-nil only while State is StateFailed or
//     StateDisabled (a nil DisabledUntil in StateDisabled means an operator
//     disabled the plugin indefinitely)
//   - ErrorCount and SuccessCount are lifetime metrics and survive
//     ResetHealth
type PluginHealth struct {
	Plugin              string      `json:"plugin"`
	State               PluginState `json:"state"`
	ErrorCount          int64       `json:"error_count"`
	SuccessCount        int64       `json:"success_count"`
	RecoveryAttempts    int64       `json:"recovery_attempts"`
	ConsecutiveFailures int         `json:"consecutive_failures"`
	LastSuccess         time.Time   `json:"last_success,omitzero"`
	LastError           time.Time   `json:"last_error,omitzero"`
	DisabledUntil       *time.Time  `json:"disabled_until,omitempty"`
}

// BoundaryConfig tunes a single error boundary.
//
// Fields:
//   - MaxFailures: Consecutive-failure budget; one more than this trips the
//     boundary into StateFailed
//   - RecoveryTimeout: How long a failed or disabled plugin stays rejected
//     before it may be retried
//   - ErrorLogLimit: Maximum retained PluginError records (oldest dropped
//     first); zero keeps the log unbounded
type BoundaryConfig struct {
	MaxFailures     int           `json:"max_failures" yaml:"max_failures"`
	RecoveryTimeout time.Duration `json:"recovery_timeout" yaml:"recovery_timeout"`
	ErrorLogLimit   int           `json:"error_log_limit" yaml:"error_log_limit"`
}

// DefaultBoundaryConfig returns the boundary tuning used when callers do not
// supply their own.
func DefaultBoundaryConfig() BoundaryConfig {
	return BoundaryConfig{
		MaxFailures:     5,
		RecoveryTimeout: 30 * time.Second,
		ErrorLogLimit:   100,
	}
}

// ApplyDefaults fills unset fields with the standard defaults.
func (c *BoundaryConfig) ApplyDefaults() {
	defaults := DefaultBoundaryConfig()
	if c.MaxFailures <= 0 {
		c.MaxFailures = defaults.MaxFailures
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = defaults.RecoveryTimeout
	}
	if c.ErrorLogLimit < 0 {
		c.ErrorLogLimit = defaults.ErrorLogLimit
	}
}

// WatchdogConfig tunes the background supervision loop.
//
// Fields:
//   - CheckInterval: Polling interval between watchdog sweeps
//   - AutoRecovery: Whether the watchdog actively triggers recovery attempts
//     for boundaries whose recovery deadline has elapsed
type WatchdogConfig struct {
	CheckInterval time.Duration `json:"check_interval" yaml:"check_interval"`
	AutoRecovery  bool          `json:"auto_recovery" yaml:"auto_recovery"`
}

// DefaultWatchdogConfig returns the watchdog tuning used when callers do not
// supply their own. Auto recovery is enabled by default; disabling it turns
// the watchdog into a pure observer.
func DefaultWatchdogConfig() WatchdogConfig {
	return WatchdogConfig{
		CheckInterval: 30 * time.Second,
		AutoRecovery:  true,
	}
}

// ApplyDefaults fills unset fields with the standard defaults.
func (c *WatchdogConfig) ApplyDefaults() {
	if c.CheckInterval <= 0 {
		c.CheckInterval = DefaultWatchdogConfig().CheckInterval
	}
}
