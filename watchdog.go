// watchdog.go: Background supervision and automatic recovery of boundaries
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginguard

import (
	"sync"
	"sync/atomic"
	"time"
)

// Watchdog supervises a set of error boundaries from a dedicated goroutine.
//
// On a fixed interval it re-evaluates each registered boundary: plugins that
// are failed or disabled and whose recovery deadline has elapsed get an
// active recovery attempt (when auto recovery is enabled), rather than
// waiting for the next guarded call to trigger the boundary's lazy
// availability check.
//
// The registry holds plain references; registering a boundary does not
// affect its lifetime, and boundaries remain fully usable without a
// watchdog.
//
// Key features:
//   - Idempotent start/stop lifecycle with graceful shutdown
//   - Timed automatic recovery driven by each boundary's own handlers
//   - Aggregate health snapshots across all registered plugins
//   - Synchronous forced recovery for operator intervention
//
// Usage example:
//
//	watchdog := NewWatchdog(WatchdogConfig{
//	    CheckInterval: 30 * time.Second,
//	    AutoRecovery:  true,
//	}, logger)
//	watchdog.RegisterBoundary(mailBoundary)
//	watchdog.RegisterBoundary(calendarBoundary)
//	watchdog.StartMonitoring()
//	defer watchdog.StopMonitoring()
type Watchdog struct {
	config WatchdogConfig
	logger Logger

	mu         sync.RWMutex
	boundaries map[string]*ErrorBoundary

	// Lifecycle
	running  atomic.Bool
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewWatchdog creates a watchdog with the given supervision tuning. The
// logger may be a Logger implementation or nil for silent operation. The
// watchdog starts idle; call StartMonitoring to begin supervision.
func NewWatchdog(config WatchdogConfig, logger any) *Watchdog {
	config.ApplyDefaults()

	return &Watchdog{
		config:     config,
		logger:     NewLogger(logger).With("component", "watchdog"),
		boundaries: make(map[string]*ErrorBoundary),
	}
}

// RegisterBoundary adds a boundary to the supervision registry. Registering
// a boundary under an already-registered name replaces the previous entry.
func (w *Watchdog) RegisterBoundary(boundary *ErrorBoundary) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.boundaries[boundary.Name()] = boundary

	w.logger.Debug("Boundary registered", "plugin", boundary.Name())
}

// UnregisterBoundary removes a boundary from the registry. Unregistering an
// unknown name is a no-op.
func (w *Watchdog) UnregisterBoundary(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.boundaries[name]; !ok {
		return
	}
	delete(w.boundaries, name)

	w.logger.Debug("Boundary unregistered", "plugin", name)
}

// StartMonitoring launches the supervision goroutine. The method is
// idempotent — a second call while the watchdog is already running does not
// spawn a second loop.
func (w *Watchdog) StartMonitoring() {
	if w.running.CompareAndSwap(false, true) {
		w.stopChan = make(chan struct{})
		w.doneChan = make(chan struct{})
		go w.run()

		w.logger.Info("Watchdog monitoring started",
			"check_interval", w.config.CheckInterval,
			"auto_recovery", w.config.AutoRecovery)
	}
}

// StopMonitoring halts the supervision goroutine and waits for it to finish
// any in-flight sweep. Idempotent; the watchdog can be restarted afterwards.
func (w *Watchdog) StopMonitoring() {
	if w.running.CompareAndSwap(true, false) {
		close(w.stopChan)
		<-w.doneChan

		w.logger.Info("Watchdog monitoring stopped")
	}
}

// IsRunning reports whether the supervision goroutine is active.
func (w *Watchdog) IsRunning() bool {
	return w.running.Load()
}

// Boundary returns the registered boundary for a plugin name.
func (w *Watchdog) Boundary(name string) (*ErrorBoundary, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	boundary, ok := w.boundaries[name]
	return boundary, ok
}

// RegisteredPlugins returns the names of all registered boundaries.
func (w *Watchdog) RegisteredPlugins() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	names := make([]string, 0, len(w.boundaries))
	for name := range w.boundaries {
		names = append(names, name)
	}
	return names
}

// ApplyConfig replaces the watchdog's supervision tuning. A running watchdog
// is stopped and restarted so the new interval takes effect; the tuning is
// never mutated while the supervision goroutine is live.
func (w *Watchdog) ApplyConfig(config WatchdogConfig) {
	config.ApplyDefaults()

	wasRunning := w.running.Load()
	if wasRunning {
		w.StopMonitoring()
	}
	w.config = config
	if wasRunning {
		w.StartMonitoring()
	}

	w.logger.Info("Watchdog configuration applied",
		"check_interval", config.CheckInterval,
		"auto_recovery", config.AutoRecovery)
}

// GetAllPluginHealth returns a snapshot of every registered plugin's health
// aggregate, keyed by plugin name.
func (w *Watchdog) GetAllPluginHealth() map[string]PluginHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()

	result := make(map[string]PluginHealth, len(w.boundaries))
	for name, boundary := range w.boundaries {
		result[name] = boundary.GetHealthStatus()
	}
	return result
}

// GetUnhealthyPlugins returns the health aggregates of registered plugins
// that are not currently in StateHealthy.
func (w *Watchdog) GetUnhealthyPlugins() map[string]PluginHealth {
	result := make(map[string]PluginHealth)
	for name, health := range w.GetAllPluginHealth() {
		if health.State != StateHealthy {
			result[name] = health
		}
	}
	return result
}

// ForceRecovery synchronously triggers one recovery attempt on the named
// boundary, regardless of its state or deadline. Returns the attempt's
// outcome, or false if the name is not registered.
func (w *Watchdog) ForceRecovery(name string) bool {
	w.mu.RLock()
	boundary, ok := w.boundaries[name]
	w.mu.RUnlock()

	if !ok {
		w.logger.Warn("Forced recovery requested for unknown plugin", "plugin", name)
		return false
	}

	w.logger.Info("Forcing plugin recovery", "plugin", name)
	return boundary.AttemptRecovery()
}

// run is the supervision loop.
func (w *Watchdog) run() {
	defer close(w.doneChan)
	defer withStackRecover(w.logger)()

	ticker := time.NewTicker(w.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.sweep()

		case <-w.stopChan:
			return
		}
	}
}

// sweep re-evaluates every registered boundary once and triggers automatic
// recovery where the boundary's rejection window has expired.
func (w *Watchdog) sweep() {
	w.mu.RLock()
	boundaries := make([]*ErrorBoundary, 0, len(w.boundaries))
	for _, boundary := range w.boundaries {
		boundaries = append(boundaries, boundary)
	}
	w.mu.RUnlock()

	now := time.Now()
	for _, boundary := range boundaries {
		health := boundary.GetHealthStatus()

		if health.State != StateFailed && health.State != StateDisabled {
			continue
		}
		// Operator-disabled plugins (no deadline) are left alone; they
		// require an explicit reset or forced recovery.
		if health.DisabledUntil == nil || now.Before(*health.DisabledUntil) {
			continue
		}
		if !w.config.AutoRecovery {
			w.logger.Debug("Recovery deadline elapsed, auto recovery disabled",
				"plugin", health.Plugin,
				"state", health.State.String())
			continue
		}

		w.logger.Info("Recovery deadline elapsed, attempting automatic recovery",
			"plugin", health.Plugin,
			"state", health.State.String())
		boundary.AttemptRecovery()
	}
}
