// boundary.go: Per-plugin error boundary with health state machine
//
// The error boundary is the fault-isolation primitive of the guard system.
// One boundary wraps one plugin; it intercepts every failure raised by
// guarded operations, classifies it, records it into the plugin's health
// aggregate, and decides through a small state machine whether future calls
// may proceed. Failures never escape a guarded scope.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginguard

import (
	"errors"
	"sync"
	"time"

	"github.com/agilira/go-timecache"
	"github.com/google/uuid"
)

// FallbackFunc is an alternate code path invoked when the primary guarded
// operation cannot run or has failed. It receives the free-form context
// supplied to Execute; its result or error is handed back to the caller
// unmodified — the boundary does not wrap fallback execution in the same
// protection it applies to guarded code.
type FallbackFunc func(metadata map[string]any) (any, error)

// RecoveryFunc attempts to restore a disabled plugin to health. Every
// registered handler must return nil for a recovery attempt to count as
// successful; a panic inside a handler counts as a failing handler.
type RecoveryFunc func() error

// ErrorBoundary isolates one plugin's failures from the rest of the process.
//
// The boundary owns the plugin's PluginHealth aggregate, a bounded error
// log, a method-name→fallback registry, and an ordered list of recovery
// handlers. It implements the health state machine:
//
//	HEALTHY --2..MaxFailures consecutive failures--> DEGRADED
//	any state --more than MaxFailures consecutive failures--> FAILED
//	any state --critical-severity failure--> DISABLED
//	FAILED/DISABLED --recovery deadline elapsed--> RECOVERING
//	any state --success--> HEALTHY
//
// All health mutations are serialized on an internal mutex, so a boundary is
// safe for concurrent use from any number of goroutines alongside the
// watchdog.
//
// Usage example:
//
//	boundary := NewErrorBoundary("calendar", BoundaryConfig{
//	    MaxFailures:     3,
//	    RecoveryTimeout: 60 * time.Second,
//	}, logger)
//	boundary.RegisterFallback("list_events", cachedEvents)
//	boundary.RegisterRecoveryHandler(reconnect)
//
//	ec := boundary.Protect("list_events", nil, func() error {
//	    return calendar.ListEvents()
//	})
type ErrorBoundary struct {
	name   string
	config BoundaryConfig
	logger Logger

	// classify assigns an ErrorKind to intercepted failures. Set at
	// construction time, replaceable via SetClassifier before concurrent use.
	classify Classifier

	mu               sync.Mutex
	health           PluginHealth
	errorLog         []PluginError
	fallbacks        map[string]FallbackFunc
	recoveryHandlers []RecoveryFunc
}

// NewErrorBoundary creates a boundary for the named plugin.
//
// Zero-valued config fields are filled with the standard defaults
// (see DefaultBoundaryConfig). The logger may be a Logger implementation or
// nil for silent operation. The boundary starts in StateHealthy.
func NewErrorBoundary(name string, config BoundaryConfig, logger any) *ErrorBoundary {
	config.ApplyDefaults()

	return &ErrorBoundary{
		name:      name,
		config:    config,
		logger:    NewLogger(logger).With("plugin", name),
		classify:  DefaultClassifier,
		fallbacks: make(map[string]FallbackFunc),
		health: PluginHealth{
			Plugin: name,
			State:  StateHealthy,
		},
	}
}

// Name returns the plugin name this boundary guards.
func (b *ErrorBoundary) Name() string {
	return b.name
}

// Config returns the boundary's current tuning.
func (b *ErrorBoundary) Config() BoundaryConfig {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.config
}

// UpdateConfig replaces the boundary's tuning at runtime. The new values
// apply to subsequent state transitions; the current state and counters are
// untouched.
func (b *ErrorBoundary) UpdateConfig(config BoundaryConfig) {
	config.ApplyDefaults()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.config = config
}

// SetClassifier replaces the boundary's error classifier. Intended for setup
// time, before the boundary is shared across goroutines.
func (b *ErrorBoundary) SetClassifier(classify Classifier) {
	if classify == nil {
		classify = DefaultClassifier
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.classify = classify
}

// RegisterFallback stores the fallback for a method name. Exactly one
// fallback is kept per method; the last registration wins.
func (b *ErrorBoundary) RegisterFallback(method string, fn FallbackFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fallbacks[method] = fn

	b.logger.Debug("Fallback registered", "method", method)
}

// RegisterRecoveryHandler appends a handler to the ordered recovery list.
// Every registered handler runs, in registration order, on each recovery
// attempt.
func (b *ErrorBoundary) RegisterRecoveryHandler(fn RecoveryFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recoveryHandlers = append(b.recoveryHandlers, fn)

	b.logger.Debug("Recovery handler registered", "handlers", len(b.recoveryHandlers))
}

// Execute opens a guarded scope for a single call to the named method.
//
// The boundary evaluates the plugin's availability at entry: if the plugin
// is rejecting calls, the returned context reports ShouldProceed()==false
// and UseFallback()==true, and the caller must skip the guarded body. If the
// recovery deadline of a failed or disabled plugin has elapsed, this check
// opportunistically flips the plugin to StateRecovering and lets the call
// proceed.
//
// The caller finishes the scope with ExecutionContext.Finish; Protect wraps
// the whole protocol for closure-shaped call sites and additionally
// intercepts panics.
func (b *ErrorBoundary) Execute(method string, metadata map[string]any) *ExecutionContext {
	ec := &ExecutionContext{
		boundary: b,
		method:   method,
		metadata: metadata,
	}

	b.mu.Lock()
	available := b.checkAvailabilityLocked()
	state := b.health.State
	b.mu.Unlock()

	if available {
		ec.proceed = true
	} else {
		ec.useFallback = true
		b.logger.Debug("Guarded call rejected, plugin unavailable",
			"method", method,
			"state", state.String())
	}

	return ec
}

// Protect runs fn inside a guarded scope for the named method.
//
// This is the canonical guarded-execution path: availability is evaluated at
// entry, a nil return from fn records a success, and a non-nil return or a
// panic is intercepted, classified, and recorded without ever escaping to
// the caller. The returned context exposes the outcome and the fallback
// path.
func (b *ErrorBoundary) Protect(method string, metadata map[string]any, fn func() error) *ExecutionContext {
	ec := b.Execute(method, metadata)
	if !ec.ShouldProceed() {
		ec.Finish(nil)
		return ec
	}

	err := runGuarded(fn)
	if err == nil {
		ec.MarkSuccess()
	}
	ec.Finish(err)
	return ec
}

// GetHealthStatus returns a snapshot copy of the plugin's health aggregate.
func (b *ErrorBoundary) GetHealthStatus() PluginHealth {
	b.mu.Lock()
	defer b.mu.Unlock()

	snapshot := b.health
	if b.health.DisabledUntil != nil {
		deadline := *b.health.DisabledUntil
		snapshot.DisabledUntil = &deadline
	}
	return snapshot
}

// ErrorLog returns a copy of the retained failure records, oldest first.
func (b *ErrorBoundary) ErrorLog() []PluginError {
	b.mu.Lock()
	defer b.mu.Unlock()

	log := make([]PluginError, len(b.errorLog))
	copy(log, b.errorLog)
	return log
}

// ClearErrorLog drops all retained failure records without touching the
// health aggregate.
func (b *ErrorBoundary) ClearErrorLog() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errorLog = nil
}

// ResetHealth forcibly returns the plugin to StateHealthy, zeroes the
// consecutive-failure counter, clears the recovery deadline, and empties the
// error log.
//
// The lifetime ErrorCount and SuccessCount are historical metrics and are
// preserved across resets.
func (b *ErrorBoundary) ResetHealth() {
	b.mu.Lock()
	defer b.mu.Unlock()

	previous := b.health.State
	b.health.State = StateHealthy
	b.health.ConsecutiveFailures = 0
	b.health.DisabledUntil = nil
	b.errorLog = nil

	b.logger.Info("Plugin health reset", "previous_state", previous.String())
}

// DisablePlugin forces the plugin into StateDisabled with no recovery
// deadline. The plugin stays rejected until ResetHealth or a successful
// forced recovery re-enables it. Intended for manual operator intervention.
func (b *ErrorBoundary) DisablePlugin(reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.health.State = StateDisabled
	b.health.DisabledUntil = nil

	b.logger.Warn("Plugin disabled by operator", "reason", reason)
}

// AttemptRecovery runs every registered recovery handler in order and
// reports whether the attempt succeeded.
//
// On success the plugin transitions to StateHealthy with a zeroed
// consecutive-failure counter and no recovery deadline. On failure the
// plugin keeps its current state, the recovery deadline is refreshed, and
// the failing handler's error is appended to the error log with the
// recovery-attempt flag set. Either way the attempt is counted in
// RecoveryAttempts.
//
// Handlers run outside the boundary's lock so they may take arbitrary time;
// a panicking handler is treated as a failing one.
func (b *ErrorBoundary) AttemptRecovery() bool {
	b.mu.Lock()
	handlers := make([]RecoveryFunc, len(b.recoveryHandlers))
	copy(handlers, b.recoveryHandlers)
	b.mu.Unlock()

	b.logger.Info("Attempting plugin recovery", "handlers", len(handlers))

	var failure error
	for i, handler := range handlers {
		if err := runGuarded(handler); err != nil {
			failure = err
			b.logger.Warn("Recovery handler failed",
				"handler_index", i,
				"error", err)
			break
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.health.RecoveryAttempts++

	if failure == nil {
		previous := b.health.State
		b.health.State = StateHealthy
		b.health.ConsecutiveFailures = 0
		b.health.DisabledUntil = nil

		b.logger.Info("Plugin recovered",
			"previous_state", previous.String(),
			"recovery_attempts", b.health.RecoveryAttempts)
		return true
	}

	// Failing attempt: state is unchanged, the rejection window restarts.
	if b.health.State == StateFailed || b.health.State == StateDisabled {
		deadline := time.Now().Add(b.config.RecoveryTimeout)
		b.health.DisabledUntil = &deadline
	}
	b.appendErrorLocked("recovery", NewRecoveryFailedError(b.name, failure), nil, true)

	return false
}

// checkAvailabilityLocked reports whether a guarded call may proceed and
// performs the lazy, read-triggered FAILED/DISABLED → RECOVERING transition
// once the recovery deadline has elapsed. Caller must hold b.mu.
func (b *ErrorBoundary) checkAvailabilityLocked() bool {
	switch b.health.State {
	case StateHealthy, StateDegraded, StateRecovering:
		return true

	case StateFailed, StateDisabled:
		if b.health.DisabledUntil == nil {
			// Operator-disabled with no deadline: stays rejected until an
			// explicit reset or forced recovery.
			return false
		}
		if time.Now().Before(*b.health.DisabledUntil) {
			return false
		}

		previous := b.health.State
		b.health.State = StateRecovering
		b.health.DisabledUntil = nil

		b.logger.Info("Recovery deadline elapsed, allowing call through",
			"previous_state", previous.String())
		return true

	default:
		return false
	}
}

// recordSuccess registers a successful guarded call.
func (b *ErrorBoundary) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := timecache.CachedTime()
	b.health.SuccessCount++
	b.health.ConsecutiveFailures = 0
	b.health.LastSuccess = now

	if b.health.State != StateHealthy {
		b.logger.Info("Plugin back to healthy",
			"previous_state", b.health.State.String())
		b.health.State = StateHealthy
	}
	b.health.DisabledUntil = nil
}

// recordError classifies and registers an intercepted failure, driving the
// state machine.
func (b *ErrorBoundary) recordError(method string, err error, metadata map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()

	record := b.appendErrorLocked(method, err, metadata, false)

	now := record.Timestamp
	b.health.ErrorCount++
	b.health.ConsecutiveFailures++
	b.health.LastError = now

	previous := b.health.State
	switch {
	case record.Severity == SeverityCritical:
		// Critical failures disable immediately, bypassing the counter.
		deadline := now.Add(b.config.RecoveryTimeout)
		b.health.State = StateDisabled
		b.health.DisabledUntil = &deadline

	case b.health.ConsecutiveFailures > b.config.MaxFailures:
		deadline := now.Add(b.config.RecoveryTimeout)
		b.health.State = StateFailed
		b.health.DisabledUntil = &deadline

	case b.health.ConsecutiveFailures >= 2:
		b.health.State = StateDegraded
		b.health.DisabledUntil = nil
	}

	if b.health.State != previous {
		b.logger.Warn("Plugin state changed",
			"method", method,
			"from", previous.String(),
			"to", b.health.State.String(),
			"consecutive_failures", b.health.ConsecutiveFailures,
			"severity", record.Severity.String())
	} else {
		b.logger.Debug("Guarded failure recorded",
			"method", method,
			"severity", record.Severity.String(),
			"consecutive_failures", b.health.ConsecutiveFailures)
	}
}

// appendErrorLocked builds the immutable PluginError record for err and
// appends it to the bounded error log. Caller must hold b.mu.
func (b *ErrorBoundary) appendErrorLocked(method string, err error, metadata map[string]any, recoveryAttempted bool) PluginError {
	kind := b.classify(err)

	var stack string
	var pe *panicError
	if errors.As(err, &pe) {
		stack = pe.stack
	}

	record := PluginError{
		ID:                uuid.NewString(),
		Plugin:            b.name,
		Method:            method,
		Kind:              kind,
		Severity:          kind.Severity(),
		Message:           err.Error(),
		Stack:             stack,
		Timestamp:         timecache.CachedTime(),
		Context:           metadata,
		RecoveryAttempted: recoveryAttempted,
		Err:               err,
	}

	if b.config.ErrorLogLimit > 0 && len(b.errorLog) >= b.config.ErrorLogLimit {
		drop := len(b.errorLog) - b.config.ErrorLogLimit + 1
		b.errorLog = b.errorLog[drop:]
	}
	b.errorLog = append(b.errorLog, record)

	return record
}

// runGuarded executes fn, converting a panic into a classified error so that
// nothing raised inside a guarded scope can escape it.
func runGuarded(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recoveredPanicError(r)
		}
	}()
	return fn()
}
