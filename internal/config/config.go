// Package config provides configuration loading for stagehand.
//
// Configuration is layered: hardcoded defaults, then an optional YAML file,
// then STAGEHAND_* environment variables. See LoadWithFile.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete stagehand configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Logging       LoggingConfig       `koanf:"logging"`
	Observability ObservabilityConfig `koanf:"observability"`
	Session       SessionConfig       `koanf:"session"`
	Execution     ExecutionConfig     `koanf:"execution"`
	Secrets       SecretsConfig       `koanf:"secrets"`
	Synthesis     SynthesisConfig     `koanf:"synthesis"`
	Lightning     LightningConfig     `koanf:"lightning"`
	Adapter       AdapterConfig       `koanf:"adapter"`
	Events        EventsConfig        `koanf:"events"`
	Workflows     WorkflowsConfig     `koanf:"workflows"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"http_host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds the subset of logging settings exposed to operators.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	// File enables a rotating JSON log file in addition to stdout.
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry bool   `koanf:"enable_telemetry"`
	ServiceName     string `koanf:"service_name"`
	Endpoint        string `koanf:"endpoint"`
	// Protocol is "grpc" or "http/protobuf".
	Protocol   string  `koanf:"protocol"`
	UseTLS     bool    `koanf:"use_tls"`
	SampleRate float64 `koanf:"sample_rate"`
}

// SessionConfig controls the in-memory session store.
type SessionConfig struct {
	// IdleTTL expires sessions that have not been touched for this long.
	IdleTTL         Duration `koanf:"idle_ttl"`
	CleanupInterval Duration `koanf:"cleanup_interval"`
	DefaultStages   []string `koanf:"default_stages"`
}

// ExecutionConfig controls the stage execution engine.
type ExecutionConfig struct {
	StageTimeout Duration `koanf:"stage_timeout"`
}

// SecretsConfig controls credential redaction of caller input.
type SecretsConfig struct {
	Disabled bool `koanf:"disabled"`
	// Gitleaks adds the gitleaks default rule set to the built-in rules.
	Gitleaks bool `koanf:"gitleaks"`
}

// SynthesisConfig controls the synthesis engine.
type SynthesisConfig struct {
	SimilarityThreshold float64 `koanf:"similarity_threshold"`
	MaxInsights         int     `koanf:"max_insights"`
	MaxActionable       int     `koanf:"max_actionable"`
	MaxReflective       int     `koanf:"max_reflective"`
}

// LightningConfig controls the lightning flow controller.
type LightningConfig struct {
	MaxDuration           Duration `koanf:"max_duration"`
	BreakthroughThreshold float64  `koanf:"breakthrough_threshold"`
}

// AdapterConfig controls the integration adapter.
type AdapterConfig struct {
	// RatePerMinute limits calls into external processing modules.
	RatePerMinute int `koanf:"rate_per_minute"`
	Burst         int `koanf:"burst"`
}

// EventsConfig controls session event publishing.
type EventsConfig struct {
	Enabled       bool   `koanf:"enabled"`
	NATSURL       string `koanf:"nats_url"`
	NATSToken     Secret `koanf:"nats_token"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// WorkflowsConfig points at optional workflow definition files that extend
// the built-in catalogue.
type WorkflowsConfig struct {
	Files []string `koanf:"files"`
}

// Default returns a configuration populated with defaults.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Validate validates the configuration.
//
// Returns an error if:
//   - Server port is not between 1 and 65535
//   - Shutdown or stage timeout is not positive
//   - Synthesis threshold is outside (0, 1]
//   - Lightning budget is not positive or the breakthrough threshold is outside (0, 1]
//   - Event publishing is enabled without a NATS URL
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Observability.EnableTelemetry && c.Observability.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}
	if c.Execution.StageTimeout <= 0 {
		return errors.New("execution.stage_timeout must be positive")
	}
	if c.Synthesis.SimilarityThreshold <= 0 || c.Synthesis.SimilarityThreshold > 1 {
		return fmt.Errorf("synthesis.similarity_threshold must be in (0, 1], got %f", c.Synthesis.SimilarityThreshold)
	}
	if c.Synthesis.MaxInsights < 1 || c.Synthesis.MaxActionable < 0 || c.Synthesis.MaxReflective < 0 {
		return errors.New("synthesis caps must be non-negative and max_insights at least 1")
	}
	if c.Lightning.MaxDuration <= 0 {
		return errors.New("lightning.max_duration must be positive")
	}
	if c.Lightning.BreakthroughThreshold <= 0 || c.Lightning.BreakthroughThreshold > 1 {
		return fmt.Errorf("lightning.breakthrough_threshold must be in (0, 1], got %f", c.Lightning.BreakthroughThreshold)
	}
	if c.Adapter.RatePerMinute < 1 || c.Adapter.Burst < 1 {
		return errors.New("adapter rate_per_minute and burst must be at least 1")
	}
	if c.Events.Enabled && c.Events.NATSURL == "" {
		return errors.New("events.nats_url required when events are enabled")
	}
	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8470
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.File != "" {
		if cfg.Logging.MaxSizeMB == 0 {
			cfg.Logging.MaxSizeMB = 10
		}
		if cfg.Logging.MaxBackups == 0 {
			cfg.Logging.MaxBackups = 5
		}
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "stagehand"
	}
	if cfg.Observability.Endpoint == "" {
		cfg.Observability.Endpoint = "localhost:4317"
	}
	if cfg.Observability.Protocol == "" {
		cfg.Observability.Protocol = "grpc"
	}
	if cfg.Observability.SampleRate == 0 {
		cfg.Observability.SampleRate = 1.0
	}

	if cfg.Session.IdleTTL == 0 {
		cfg.Session.IdleTTL = Duration(24 * time.Hour)
	}
	if cfg.Session.CleanupInterval == 0 {
		cfg.Session.CleanupInterval = Duration(10 * time.Minute)
	}
	if len(cfg.Session.DefaultStages) == 0 {
		cfg.Session.DefaultStages = []string{"keter", "tiferet", "malchut"}
	}

	if cfg.Execution.StageTimeout == 0 {
		cfg.Execution.StageTimeout = Duration(30 * time.Second)
	}

	if cfg.Synthesis.SimilarityThreshold == 0 {
		cfg.Synthesis.SimilarityThreshold = 0.45
	}
	if cfg.Synthesis.MaxInsights == 0 {
		cfg.Synthesis.MaxInsights = 6
	}
	if cfg.Synthesis.MaxActionable == 0 {
		cfg.Synthesis.MaxActionable = 4
	}
	if cfg.Synthesis.MaxReflective == 0 {
		cfg.Synthesis.MaxReflective = 3
	}

	if cfg.Lightning.MaxDuration == 0 {
		cfg.Lightning.MaxDuration = Duration(45 * time.Minute)
	}
	if cfg.Lightning.BreakthroughThreshold == 0 {
		cfg.Lightning.BreakthroughThreshold = 0.85
	}

	if cfg.Adapter.RatePerMinute == 0 {
		cfg.Adapter.RatePerMinute = 50
	}
	if cfg.Adapter.Burst == 0 {
		cfg.Adapter.Burst = 5
	}

	if cfg.Events.SubjectPrefix == "" {
		cfg.Events.SubjectPrefix = "stagehand.sessions"
	}
}
