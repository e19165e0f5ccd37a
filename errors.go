// errors.go: structured error definitions for the plugin guard system
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginguard

import (
	"github.com/agilira/go-errors"
)

// Error codes for the plugin guard system
const (
	// Boundary errors (1000-1099)
	ErrCodeInvalidPluginName = "GUARD_1001"
	ErrCodePluginUnavailable = "GUARD_1002"
	ErrCodeGuardedPanic      = "GUARD_1003"

	// Recovery errors (1100-1199)
	ErrCodeRecoveryFailed = "RECOVERY_1101"

	// Watchdog errors (1200-1299)
	ErrCodeUnknownBoundary = "WATCHDOG_1201"

	// Configuration errors (1300-1399)
	ErrCodeConfigNotFound        = "CONFIG_1301"
	ErrCodeConfigParseError      = "CONFIG_1302"
	ErrCodeConfigValidationError = "CONFIG_1303"
	ErrCodeConfigWatcherError    = "CONFIG_1304"
)

// Boundary error constructors

func NewInvalidPluginNameError(name string) *errors.Error {
	return errors.New(ErrCodeInvalidPluginName, "Invalid plugin name").
		WithUserMessage("Plugin name is required and cannot be empty").
		WithContext("provided_name", name).
		WithSeverity("error")
}

func NewPluginUnavailableError(pluginName string, state PluginState) *errors.Error {
	return errors.New(ErrCodePluginUnavailable, "Plugin unavailable").
		WithUserMessage("The plugin is currently rejecting calls, use the registered fallback").
		WithContext("plugin_name", pluginName).
		WithContext("state", state.String()).
		WithSeverity("warning").
		AsRetryable()
}

func NewGuardedPanicError(pluginName string, recovered interface{}) *errors.Error {
	return errors.New(ErrCodeGuardedPanic, "Panic intercepted in guarded plugin code").
		WithUserMessage("The plugin panicked during a guarded operation").
		WithContext("plugin_name", pluginName).
		WithContext("panic_value", recovered).
		WithSeverity("critical")
}

// Recovery error constructors

func NewRecoveryFailedError(pluginName string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeRecoveryFailed, "Recovery attempt failed").
		WithUserMessage("A registered recovery handler did not complete successfully").
		WithContext("plugin_name", pluginName).
		WithSeverity("warning").
		AsRetryable()
}

// Watchdog error constructors

func NewUnknownBoundaryError(name string) *errors.Error {
	return errors.New(ErrCodeUnknownBoundary, "Unknown boundary").
		WithUserMessage("No boundary with this name is registered with the watchdog").
		WithContext("plugin_name", name).
		WithSeverity("warning")
}

// Configuration error constructors

func NewConfigNotFoundError(path string) *errors.Error {
	return errors.New(ErrCodeConfigNotFound, "Configuration file not found").
		WithUserMessage("The guard configuration file could not be found").
		WithContext("config_path", path).
		WithSeverity("error")
}

func NewConfigParseError(path string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeConfigParseError, "Configuration parse error").
		WithUserMessage("Failed to parse guard configuration file").
		WithContext("config_path", path).
		WithSeverity("error")
}

func NewConfigValidationError(message string, cause error) *errors.Error {
	if cause != nil {
		return errors.Wrap(cause, ErrCodeConfigValidationError, "Configuration validation error: "+message).
			WithUserMessage("Guard configuration validation failed").
			WithSeverity("error")
	}
	return errors.New(ErrCodeConfigValidationError, "Configuration validation error: "+message).
		WithUserMessage("Guard configuration validation failed").
		WithSeverity("error")
}

func NewConfigWatcherError(message string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeConfigWatcherError, "Configuration watcher error: "+message).
		WithUserMessage("Guard configuration monitoring failed").
		WithSeverity("error")
}
