// panic_recovery.go: Panic recovery utilities with stack trace support
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginguard

import (
	"runtime"
)

// withStackRecover returns a panic recovery function that logs panic details
// including the full stack trace. Used to keep supervision goroutines alive
// through unexpected panics.
//
// The returned function must be called with defer:
//
//	go func() {
//	    defer withStackRecover(logger)()
//	    // potentially panicking code
//	}()
func withStackRecover(logger Logger) func() {
	return func() {
		if r := recover(); r != nil {
			buf := make([]byte, 64<<10)
			n := runtime.Stack(buf, false)

			logger.Error("Panic recovered in goroutine",
				"panic", r,
				"stack", string(buf[:n]))
		}
	}
}

// SafeGo executes fn in a new goroutine with automatic panic recovery. If fn
// panics, the panic is logged with its stack and the goroutine terminates
// without crashing the application.
func SafeGo(logger Logger, fn func()) {
	go func() {
		defer withStackRecover(logger)()
		fn()
	}()
}
