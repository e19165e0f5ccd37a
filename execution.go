// execution.go: Scoped execution context for guarded plugin calls
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginguard

// ExecutionContext is the ephemeral scope object handed out by
// ErrorBoundary.Execute for the duration of one guarded call.
//
// It tracks whether the call should proceed, whether the boundary judged the
// plugin unavailable at entry (so a fallback should be used), whether the
// caller marked the call successful, and the failure captured at scope exit.
// An ExecutionContext belongs to a single guarded call on a single
// goroutine; it is not shared.
//
// The manual protocol:
//
//	ec := boundary.Execute("send_mail", nil)
//	if ec.ShouldProceed() {
//	    err := plugin.SendMail(msg)
//	    if err == nil {
//	        ec.MarkSuccess()
//	    }
//	    ec.Finish(err)
//	} else {
//	    ec.Finish(nil)
//	}
//	if !ec.Succeeded() {
//	    result, err := ec.ExecuteFallback()
//	    ...
//	}
//
// ErrorBoundary.Protect performs the same protocol around a closure and
// additionally intercepts panics.
type ExecutionContext struct {
	boundary *ErrorBoundary
	method   string
	metadata map[string]any

	proceed     bool
	useFallback bool
	success     bool
	finished    bool
	failure     error
}

// Method returns the method name this scope guards.
func (ec *ExecutionContext) Method() string {
	return ec.method
}

// ShouldProceed reports whether the guarded body may run. It is false when
// the boundary judged the plugin unavailable at entry, in which case the
// caller must skip the guarded body and use the fallback path.
func (ec *ExecutionContext) ShouldProceed() bool {
	return ec.proceed
}

// UseFallback reports whether the boundary redirected this call to the
// fallback path at entry.
func (ec *ExecutionContext) UseFallback() bool {
	return ec.useFallback
}

// MarkSuccess flags the guarded call as successful. The flag is read by the
// boundary when the scope finishes; without it, a cleanly completed scope
// records neither success nor failure.
func (ec *ExecutionContext) MarkSuccess() {
	ec.success = true
}

// Succeeded reports whether the guarded call completed and was marked
// successful.
func (ec *ExecutionContext) Succeeded() bool {
	return ec.finished && ec.success && ec.failure == nil
}

// Err returns the failure captured at scope exit, or nil.
func (ec *ExecutionContext) Err() error {
	return ec.failure
}

// Finish closes the guarded scope and records its outcome on the boundary.
//
// A non-nil err is classified and recorded as a failure; err == nil records
// a success if MarkSuccess was called and nothing otherwise. Finish is
// idempotent — only the first call takes effect.
func (ec *ExecutionContext) Finish(err error) {
	if ec.finished {
		return
	}
	ec.finished = true

	if err != nil {
		ec.failure = err
		ec.success = false
		ec.boundary.recordError(ec.method, err, ec.metadata)
		return
	}
	if ec.success {
		ec.boundary.recordSuccess()
	}
}

// ExecuteFallback invokes the fallback registered for the guarded method
// name, passing through the scope's free-form context.
//
// The fallback's result or error is returned unmodified; the boundary does
// not guard fallback execution. When no fallback is registered the call
// returns a nil result without error.
func (ec *ExecutionContext) ExecuteFallback() (any, error) {
	ec.boundary.mu.Lock()
	fn, ok := ec.boundary.fallbacks[ec.method]
	ec.boundary.mu.Unlock()

	if !ok {
		ec.boundary.logger.Debug("No fallback registered", "method", ec.method)
		return nil, nil
	}
	return fn(ec.metadata)
}
