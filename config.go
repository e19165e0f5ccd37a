// config.go: Guard configuration loading and validation
//
// Configuration is optional — boundaries and watchdogs are fully usable with
// in-code tuning — but deployments that want file-driven tuning get a single
// GuardConfig document with watchdog settings, default boundary tuning, and
// per-plugin overrides. Format detection is delegated to Argus so the same
// loader accepts YAML and JSON.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginguard

import (
	"encoding/json"
	"os"

	"github.com/agilira/argus"
	"gopkg.in/yaml.v3"
)

// GuardConfig is the file-level configuration document for the guard system.
//
// Structure:
//
//	watchdog:
//	  check_interval: 30s-equivalent nanoseconds
//	  auto_recovery: true
//	defaults:
//	  max_failures: 5
//	  recovery_timeout: 30s-equivalent nanoseconds
//	  error_log_limit: 100
//	plugins:
//	  mail-plugin:
//	    max_failures: 3
//
// Per-plugin entries override the defaults field by field; zero-valued
// fields inherit.
type GuardConfig struct {
	Watchdog WatchdogConfig            `json:"watchdog" yaml:"watchdog"`
	Defaults BoundaryConfig            `json:"defaults" yaml:"defaults"`
	Plugins  map[string]BoundaryConfig `json:"plugins,omitempty" yaml:"plugins,omitempty"`
}

// DefaultGuardConfig returns a configuration with standard tuning and no
// per-plugin overrides.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		Watchdog: DefaultWatchdogConfig(),
		Defaults: DefaultBoundaryConfig(),
	}
}

// ApplyDefaults fills unset watchdog and default-boundary fields with the
// standard defaults. Per-plugin overrides are left as authored; they inherit
// from Defaults at lookup time.
func (c *GuardConfig) ApplyDefaults() {
	c.Watchdog.ApplyDefaults()
	c.Defaults.ApplyDefaults()
}

// Validate checks the configuration for values the guard system cannot
// operate with.
func (c *GuardConfig) Validate() error {
	if c.Defaults.MaxFailures < 0 {
		return NewConfigValidationError("defaults.max_failures cannot be negative", nil)
	}
	if c.Defaults.RecoveryTimeout < 0 {
		return NewConfigValidationError("defaults.recovery_timeout cannot be negative", nil)
	}
	if c.Watchdog.CheckInterval < 0 {
		return NewConfigValidationError("watchdog.check_interval cannot be negative", nil)
	}
	for name, plugin := range c.Plugins {
		if name == "" {
			return NewInvalidPluginNameError(name)
		}
		if plugin.MaxFailures < 0 || plugin.RecoveryTimeout < 0 {
			return NewConfigValidationError("plugin '"+name+"' has negative tuning values", nil)
		}
	}
	return nil
}

// BoundaryConfigFor resolves the effective boundary tuning for a plugin:
// the per-plugin override when present, field-wise inheriting from Defaults,
// with standard defaults filling anything still unset.
func (c *GuardConfig) BoundaryConfigFor(name string) BoundaryConfig {
	resolved := c.Defaults
	resolved.ApplyDefaults()

	override, ok := c.Plugins[name]
	if !ok {
		return resolved
	}
	if override.MaxFailures > 0 {
		resolved.MaxFailures = override.MaxFailures
	}
	if override.RecoveryTimeout > 0 {
		resolved.RecoveryTimeout = override.RecoveryTimeout
	}
	if override.ErrorLogLimit > 0 {
		resolved.ErrorLogLimit = override.ErrorLogLimit
	}
	return resolved
}

// LoadGuardConfig reads, parses, and validates a guard configuration file.
// The format is detected from the file extension via Argus; YAML and JSON
// are supported.
func LoadGuardConfig(path string) (GuardConfig, error) {
	config := DefaultGuardConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, NewConfigNotFoundError(path)
		}
		return config, NewConfigParseError(path, err)
	}

	if err := parseGuardConfig(data, argus.DetectFormat(path), &config); err != nil {
		return config, NewConfigParseError(path, err)
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

// parseGuardConfig unmarshals raw config bytes according to the detected
// format. YAML handles the default case as well since it is a superset of
// JSON for the structures used here.
func parseGuardConfig(data []byte, format argus.ConfigFormat, config *GuardConfig) error {
	switch format {
	case argus.FormatJSON:
		return json.Unmarshal(data, config)
	case argus.FormatYAML:
		return yaml.Unmarshal(data, config)
	default:
		return yaml.Unmarshal(data, config)
	}
}

// NewWatchdogFromConfig builds a watchdog and one boundary per configured
// plugin, with every boundary already registered.
//
// Fallbacks, recovery handlers, and classifiers are code, not configuration;
// callers attach them to the returned boundaries afterwards.
func NewWatchdogFromConfig(config GuardConfig, logger any) (*Watchdog, map[string]*ErrorBoundary) {
	config.ApplyDefaults()

	internalLogger := NewLogger(logger)
	watchdog := NewWatchdog(config.Watchdog, internalLogger)

	boundaries := make(map[string]*ErrorBoundary, len(config.Plugins))
	for name := range config.Plugins {
		boundary := NewErrorBoundary(name, config.BoundaryConfigFor(name), internalLogger)
		boundaries[name] = boundary
		watchdog.RegisterBoundary(boundary)
	}

	return watchdog, boundaries
}
