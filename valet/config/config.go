// Package config provides core command-processing configuration.
//
// This module contains ONLY configuration relevant to the command core:
//   - TTLs for pending actions, idempotency records, and sessions
//   - Rate limit thresholds
//   - Safety toggles
//
// Infrastructure configuration (store addresses, listen addresses, audit
// database paths) lives with the process entrypoint, which parses flags
// and environment and injects the result here.
package config

import (
	"sync"
	"time"

	"github.com/valet-assistant/valet-core/valet/typeutil"
)

// CoreConfig holds command-core configuration.
//
// Infrastructure-agnostic: the same config applies whether the keyed store
// is in memory or Redis and whether the audit sink is SQLite or a stub.
type CoreConfig struct {
	// TTLs (milliseconds)
	PendingActionTTLMs int `json:"pending_action_ttl_ms"` // Lifetime of an unconfirmed action
	IdempotencyTTLMs   int `json:"idempotency_ttl_ms"`    // How long a recorded result can be replayed
	SessionTTLMs       int `json:"session_ttl_ms"`        // Idle session state lifetime
	SweepIntervalMs    int `json:"sweep_interval_ms"`     // Expired-action sweep cadence

	// Rate Limits
	RequestsPerMinute int `json:"requests_per_minute"`
	RequestsPerHour   int `json:"requests_per_hour"`

	// Safety
	RequireConfirmationForIrreversible bool `json:"require_confirmation_for_irreversible"` // Irreversible actions never run without confirmation

	// Defaults
	DefaultProfile string `json:"default_profile"`

	// Logging
	LogLevel string `json:"log_level"`
}

// DefaultCoreConfig returns a CoreConfig with default values.
func DefaultCoreConfig() *CoreConfig {
	return &CoreConfig{
		// TTLs (milliseconds)
		PendingActionTTLMs: 900000,   // 15 minutes
		IdempotencyTTLMs:   3600000,  // 1 hour
		SessionTTLMs:       86400000, // 24 hours
		SweepIntervalMs:    60000,    // 1 minute

		// Rate Limits
		RequestsPerMinute: 30,
		RequestsPerHour:   400,

		// Safety
		RequireConfirmationForIrreversible: true,

		// Defaults
		DefaultProfile: "default",

		// Logging
		LogLevel: "INFO",
	}
}

// =============================================================================
// Duration accessors
// =============================================================================

// PendingActionTTL returns the pending-action TTL as a duration.
func (c *CoreConfig) PendingActionTTL() time.Duration {
	return time.Duration(c.PendingActionTTLMs) * time.Millisecond
}

// IdempotencyTTL returns the idempotency-record TTL as a duration.
func (c *CoreConfig) IdempotencyTTL() time.Duration {
	return time.Duration(c.IdempotencyTTLMs) * time.Millisecond
}

// SessionTTL returns the session-state TTL as a duration.
func (c *CoreConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMs) * time.Millisecond
}

// SweepInterval returns the sweep cadence as a duration.
func (c *CoreConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMs) * time.Millisecond
}

// =============================================================================
// Map conversion
// =============================================================================

// CoreConfigFromMap creates CoreConfig from a map.
// Unknown keys are ignored; JSON-decoded numbers arrive as float64.
func CoreConfigFromMap(config map[string]any) *CoreConfig {
	c := DefaultCoreConfig()

	c.PendingActionTTLMs = typeutil.SafeIntDefault(config["pending_action_ttl_ms"], c.PendingActionTTLMs)
	c.IdempotencyTTLMs = typeutil.SafeIntDefault(config["idempotency_ttl_ms"], c.IdempotencyTTLMs)
	c.SessionTTLMs = typeutil.SafeIntDefault(config["session_ttl_ms"], c.SessionTTLMs)
	c.SweepIntervalMs = typeutil.SafeIntDefault(config["sweep_interval_ms"], c.SweepIntervalMs)
	c.RequestsPerMinute = typeutil.SafeIntDefault(config["requests_per_minute"], c.RequestsPerMinute)
	c.RequestsPerHour = typeutil.SafeIntDefault(config["requests_per_hour"], c.RequestsPerHour)
	c.RequireConfirmationForIrreversible = typeutil.SafeBoolDefault(config["require_confirmation_for_irreversible"], c.RequireConfirmationForIrreversible)
	c.DefaultProfile = typeutil.SafeStringDefault(config["default_profile"], c.DefaultProfile)
	c.LogLevel = typeutil.SafeStringDefault(config["log_level"], c.LogLevel)

	return c
}

// ToMap converts config to a map.
func (c *CoreConfig) ToMap() map[string]any {
	return map[string]any{
		"pending_action_ttl_ms":                 c.PendingActionTTLMs,
		"idempotency_ttl_ms":                    c.IdempotencyTTLMs,
		"session_ttl_ms":                        c.SessionTTLMs,
		"sweep_interval_ms":                     c.SweepIntervalMs,
		"requests_per_minute":                   c.RequestsPerMinute,
		"requests_per_hour":                     c.RequestsPerHour,
		"require_confirmation_for_irreversible": c.RequireConfirmationForIrreversible,
		"default_profile":                       c.DefaultProfile,
		"log_level":                             c.LogLevel,
	}
}

// =============================================================================
// GLOBAL CONFIG (set by the process entrypoint)
// =============================================================================

var (
	globalCoreConfig *CoreConfig
	configMu         sync.RWMutex
)

// GetCoreConfig gets the core configuration instance.
// Returns the injected config or defaults.
func GetCoreConfig() *CoreConfig {
	configMu.RLock()
	defer configMu.RUnlock()

	if globalCoreConfig == nil {
		return DefaultCoreConfig()
	}
	return globalCoreConfig
}

// SetCoreConfig sets the core configuration instance.
// Called by the entrypoint after parsing flags and environment.
func SetCoreConfig(config *CoreConfig) {
	configMu.Lock()
	defer configMu.Unlock()

	globalCoreConfig = config
}

// ResetCoreConfig resets core config to nil (useful for testing).
// After reset, GetCoreConfig() will return defaults.
func ResetCoreConfig() {
	configMu.Lock()
	defer configMu.Unlock()

	globalCoreConfig = nil
}
