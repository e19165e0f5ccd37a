// config_watcher.go: Hot reload of guard tuning with Argus integration
//
// This module keeps a running watchdog and its registered boundaries in sync
// with a guard configuration file. Argus provides the file change detection
// and audit trail; applying a change means swapping the watchdog tuning and
// pushing resolved per-plugin boundary tuning into every registered
// boundary, all without touching plugin state or counters.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginguard

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/agilira/argus"
)

// GuardWatcherOptions configures the behavior of guard configuration
// watching.
type GuardWatcherOptions struct {
	// PollInterval for file watching (Argus handles the optimization)
	PollInterval time.Duration `json:"poll_interval"`

	// CacheTTL for Argus stat caching
	CacheTTL time.Duration `json:"cache_ttl"`

	// AuditConfig for the Argus audit system
	AuditConfig argus.AuditConfig `json:"audit_config"`
}

// DefaultGuardWatcherOptions returns optimized defaults for guard
// configuration watching.
func DefaultGuardWatcherOptions() GuardWatcherOptions {
	return GuardWatcherOptions{
		PollInterval: 5 * time.Second,
		CacheTTL:     2 * time.Second, // Should be <= PollInterval
		AuditConfig: argus.AuditConfig{
			Enabled:       true,
			OutputFile:    "plugin-guard-config-audit.jsonl",
			MinLevel:      argus.AuditInfo,
			BufferSize:    1000,
			FlushInterval: 5 * time.Second,
		},
	}
}

// GuardConfigWatcher hot-reloads guard tuning from a configuration file.
//
// Usage example:
//
//	watcher, err := NewGuardConfigWatcher(watchdog, "guard.yaml",
//	    DefaultGuardWatcherOptions(), logger)
//	if err != nil {
//	    return err
//	}
//	if err := watcher.Start(); err != nil {
//	    return err
//	}
//	defer watcher.Stop()
type GuardConfigWatcher struct {
	watchdog   *Watchdog
	watcher    *argus.Watcher
	configPath string
	logger     Logger
	options    GuardWatcherOptions

	currentConfig atomic.Pointer[GuardConfig]

	// Lifecycle: enabled flips with CAS on start/stop, stopped is a
	// permanent flag so a stopped watcher cannot be restarted against a
	// terminated Argus instance.
	enabled  atomic.Bool
	stopped  atomic.Bool
	stopOnce sync.Once
	mu       sync.Mutex
}

// NewGuardConfigWatcher creates a configuration watcher bound to a watchdog.
// The watcher does not begin observing the file until Start is called.
func NewGuardConfigWatcher(watchdog *Watchdog, configPath string, options GuardWatcherOptions, logger any) (*GuardConfigWatcher, error) {
	internalLogger := NewLogger(logger).With("component", "config-watcher")

	argusConfig := argus.Config{
		PollInterval:         options.PollInterval,
		CacheTTL:             options.CacheTTL,
		MaxWatchedFiles:      10, // Config files are typically few
		Audit:                options.AuditConfig,
		OptimizationStrategy: argus.OptimizationSingleEvent,
		ErrorHandler: func(err error, filepath string) {
			internalLogger.Error("Argus file watching error", "error", err, "file", filepath)
		},
	}

	return &GuardConfigWatcher{
		watchdog:   watchdog,
		watcher:    argus.New(argusConfig),
		configPath: configPath,
		logger:     internalLogger,
		options:    options,
	}, nil
}

// Start loads the configuration file, applies it, and begins watching for
// changes.
func (gw *GuardConfigWatcher) Start() error {
	if gw.stopped.Load() {
		return NewConfigWatcherError("watcher has been permanently stopped and cannot be restarted", nil)
	}

	gw.mu.Lock()
	defer gw.mu.Unlock()

	if !gw.enabled.CompareAndSwap(false, true) {
		return NewConfigWatcherError("watcher is already running", nil)
	}

	initialConfig, err := LoadGuardConfig(gw.configPath)
	if err != nil {
		gw.enabled.Store(false)
		return err
	}
	gw.applyConfig(initialConfig)
	gw.currentConfig.Store(&initialConfig)

	if err := gw.watcher.Watch(gw.configPath, gw.handleConfigChange); err != nil {
		gw.enabled.Store(false)
		return NewConfigWatcherError("failed to watch config file", err)
	}
	if err := gw.watcher.Start(); err != nil {
		gw.enabled.Store(false)
		return NewConfigWatcherError("failed to start Argus watcher", err)
	}

	gw.logger.Info("Guard configuration watcher started",
		"config_path", gw.configPath,
		"poll_interval", gw.options.PollInterval)
	return nil
}

// Stop permanently stops the watcher. Safe to call from multiple goroutines;
// only the first call takes effect.
func (gw *GuardConfigWatcher) Stop() error {
	if gw.stopped.Load() {
		return NewConfigWatcherError("watcher is already stopped", nil)
	}

	var stopErr error
	gw.stopOnce.Do(func() {
		gw.mu.Lock()
		defer gw.mu.Unlock()

		if !gw.enabled.CompareAndSwap(true, false) {
			stopErr = NewConfigWatcherError("watcher is not running", nil)
			return
		}
		gw.stopped.Store(true)

		if err := gw.watcher.Stop(); err != nil {
			stopErr = NewConfigWatcherError("failed to stop Argus watcher", err)
			return
		}
		gw.logger.Info("Guard configuration watcher stopped")
	})
	return stopErr
}

// IsStopped returns true if the watcher has been permanently stopped.
func (gw *GuardConfigWatcher) IsStopped() bool {
	return gw.stopped.Load()
}

// CurrentConfig returns the last successfully applied configuration.
func (gw *GuardConfigWatcher) CurrentConfig() GuardConfig {
	if config := gw.currentConfig.Load(); config != nil {
		return *config
	}
	return DefaultGuardConfig()
}

// handleConfigChange processes configuration file changes from Argus.
func (gw *GuardConfigWatcher) handleConfigChange(event argus.ChangeEvent) {
	gw.logger.Info("Guard configuration change detected",
		"path", event.Path,
		"mod_time", event.ModTime,
		"is_create", event.IsCreate,
		"is_delete", event.IsDelete,
		"is_modify", event.IsModify)

	// A deleted file leaves the current tuning in place.
	if event.IsDelete {
		gw.logger.Warn("Guard configuration file was deleted, keeping current tuning", "path", event.Path)
		return
	}

	newConfig, err := LoadGuardConfig(event.Path)
	if err != nil {
		gw.logger.Error("Failed to load new guard configuration, keeping current tuning",
			"error", err, "path", event.Path)
		return
	}

	gw.applyConfig(newConfig)
	gw.currentConfig.Store(&newConfig)

	gw.logger.Info("Guard configuration reload completed",
		"plugins", len(newConfig.Plugins))
}

// applyConfig pushes the new tuning into the watchdog and every registered
// boundary. Plugin state, counters, and the error logs are untouched.
func (gw *GuardConfigWatcher) applyConfig(config GuardConfig) {
	gw.watchdog.ApplyConfig(config.Watchdog)

	for _, name := range gw.watchdog.RegisteredPlugins() {
		if boundary, ok := gw.watchdog.Boundary(name); ok {
			boundary.UpdateConfig(config.BoundaryConfigFor(name))
		}
	}
}
