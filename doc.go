// Package pluginguard provides per-plugin fault isolation and automatic
// recovery for Go applications that embed failure-prone plugin code. Each
// plugin gets an error boundary that intercepts failures, tracks a health
// state machine, and offers fallback execution paths, while a background
// watchdog supervises all boundaries and nudges disabled plugins back toward
// health.
//
// Key Features:
//   - Per-plugin error boundaries with a circuit-breaker style state machine
//   - Guaranteed failure containment: errors and panics never escape a
//     guarded scope
//   - Severity classification driven by an explicit error-kind taxonomy
//   - Named fallback handlers and ordered recovery handlers
//   - Background watchdog with timed automatic recovery
//   - Hot-reloading of tuning parameters via Argus
//   - Structured errors and pluggable logging
//
// Basic Usage:
//
//	// Create a boundary for a plugin
//	boundary := pluginguard.NewPluginBoundary("mail-plugin", 3, 60*time.Second)
//
//	// Register a fallback for a risky operation
//	boundary.RegisterFallback("send_mail", func(md map[string]any) (any, error) {
//		return queueForLater(md), nil
//	})
//
//	// Guard an operation; failures are recorded, never propagated
//	ec := boundary.Protect("send_mail", nil, func() error {
//		return mailPlugin.Send(msg)
//	})
//	if !ec.Succeeded() {
//		result, _ := ec.ExecuteFallback()
//		_ = result
//	}
//
//	// Supervise all boundaries with a watchdog
//	watchdog := pluginguard.NewWatchdog(pluginguard.WatchdogConfig{
//		CheckInterval: 30 * time.Second,
//		AutoRecovery:  true,
//	}, nil)
//	watchdog.RegisterBoundary(boundary)
//	watchdog.StartMonitoring()
//	defer watchdog.StopMonitoring()
//
// Concurrency:
// A boundary may be used from any number of goroutines; all health mutations
// are serialized on an internal mutex. The watchdog runs on its own goroutine
// and communicates with callers only through the lock-protected health
// aggregates.
//
// Copyright (c) 2025 AGILira - A. Giordano
// SPDX-License-Identifier: MPL-2.0
package pluginguard
