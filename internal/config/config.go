// Package config holds the engine configuration. A Config value is passed
// explicitly into the engine entry point; the engine keeps no process-wide
// mutable state, so concurrent investigations can run against different
// configurations safely.
package config

import (
	"time"
)

// Config holds all tunables for one investigation engine instance.
type Config struct {
	// KBPath is the path to the subjects YAML file
	KBPath string

	// CatalogPath is the path to the provider catalog YAML file
	CatalogPath string

	// LogLevel is the logging level (debug, info, warn, error)
	LogLevel string

	// MaxIterations bounds the collect/generate/score loop per investigation
	MaxIterations int

	// ConfidenceThreshold terminates the loop early once the best
	// hypothesis reaches it
	ConfidenceThreshold float64

	// AdapterTimeout is the hard per-adapter-call timeout
	AdapterTimeout time.Duration

	// InvestigationBudget is the wall-clock budget for one whole
	// investigation, all iterations included
	InvestigationBudget time.Duration

	// SampleCap bounds the sample lines kept per evidence item
	SampleCap int

	// TopSignalsCap bounds the distinct signals kept per evidence item
	TopSignalsCap int

	// MaxCandidates bounds how many candidates one generation pass accepts
	MaxCandidates int

	// ConfidenceFloor separates other_hypotheses from fallback_hypotheses
	// in the report
	ConfidenceFloor float64

	// MaxFallbacks bounds the fallback_hypotheses list
	MaxFallbacks int

	// QueryCacheSize is the LRU size for the collector's query-result cache
	QueryCacheSize int

	// Model is the reasoning service model identifier
	Model string

	// TracingEnabled indicates whether OTLP trace export is enabled
	TracingEnabled bool

	// TracingEndpoint is the OTLP gRPC endpoint for trace export
	TracingEndpoint string
}

// Default returns the documented engine defaults.
func Default() Config {
	return Config{
		LogLevel:            "info",
		MaxIterations:       2,
		ConfidenceThreshold: 0.70,
		AdapterTimeout:      10 * time.Second,
		InvestigationBudget: 2 * time.Minute,
		SampleCap:           40,
		TopSignalsCap:       10,
		MaxCandidates:       5,
		ConfidenceFloor:     0.25,
		MaxFallbacks:        3,
		QueryCacheSize:      128,
		Model:               "claude-sonnet-4-5-20250929",
	}
}

// Validate checks that the configuration is usable. A bad configuration is
// fatal before any investigation starts.
func (c *Config) Validate() error {
	if c.KBPath == "" {
		return NewConfigError("KBPath must not be empty")
	}
	if c.CatalogPath == "" {
		return NewConfigError("CatalogPath must not be empty")
	}
	if c.MaxIterations < 1 {
		return NewConfigError("MaxIterations must be at least 1")
	}
	if c.ConfidenceThreshold <= 0 || c.ConfidenceThreshold > 1 {
		return NewConfigError("ConfidenceThreshold must be in (0, 1]")
	}
	if c.AdapterTimeout <= 0 {
		return NewConfigError("AdapterTimeout must be positive")
	}
	if c.InvestigationBudget <= 0 {
		return NewConfigError("InvestigationBudget must be positive")
	}
	if c.InvestigationBudget < c.AdapterTimeout {
		return NewConfigError("InvestigationBudget must be at least AdapterTimeout")
	}
	if c.SampleCap < 1 {
		return NewConfigError("SampleCap must be at least 1")
	}
	if c.TopSignalsCap < 1 {
		return NewConfigError("TopSignalsCap must be at least 1")
	}
	if c.MaxCandidates < 1 {
		return NewConfigError("MaxCandidates must be at least 1")
	}
	if c.ConfidenceFloor < 0 || c.ConfidenceFloor >= c.ConfidenceThreshold {
		return NewConfigError("ConfidenceFloor must be in [0, ConfidenceThreshold)")
	}
	if c.MaxFallbacks < 0 {
		return NewConfigError("MaxFallbacks must not be negative")
	}
	if c.QueryCacheSize < 1 {
		return NewConfigError("QueryCacheSize must be at least 1")
	}
	if c.TracingEnabled && c.TracingEndpoint == "" {
		return NewConfigError("TracingEndpoint must be set when tracing is enabled")
	}
	return nil
}

// ConfigError represents a configuration error. Configuration errors are
// fatal at load time; the engine never runs against a half-valid setup.
type ConfigError struct {
	message string
}

// NewConfigError creates a new configuration error.
func NewConfigError(message string) *ConfigError {
	return &ConfigError{message: message}
}

// Error returns the error message.
func (e *ConfigError) Error() string {
	return e.message
}
