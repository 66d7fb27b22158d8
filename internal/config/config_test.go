package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 30*time.Second, cfg.Execution.StageTimeout.Duration())
	assert.Equal(t, 45*time.Minute, cfg.Lightning.MaxDuration.Duration())
	assert.InDelta(t, 0.45, cfg.Synthesis.SimilarityThreshold, 1e-9)
	assert.Equal(t, 4, cfg.Synthesis.MaxActionable)
	assert.Equal(t, 3, cfg.Synthesis.MaxReflective)
	assert.Equal(t, "stagehand.sessions", cfg.Events.SubjectPrefix)
	assert.False(t, cfg.Events.Enabled)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"zero stage timeout", func(c *Config) { c.Execution.StageTimeout = 0 }, "stage_timeout"},
		{"threshold above one", func(c *Config) { c.Synthesis.SimilarityThreshold = 1.5 }, "similarity_threshold"},
		{"no insights", func(c *Config) { c.Synthesis.MaxInsights = 0 }, "max_insights"},
		{"zero lightning budget", func(c *Config) { c.Lightning.MaxDuration = 0 }, "max_duration"},
		{"bad breakthrough", func(c *Config) { c.Lightning.BreakthroughThreshold = -0.1 }, "breakthrough_threshold"},
		{"events without url", func(c *Config) { c.Events.Enabled = true }, "nats_url"},
		{"telemetry without name", func(c *Config) {
			c.Observability.EnableTelemetry = true
			c.Observability.ServiceName = ""
		}, "service name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestSecret_Redacts(t *testing.T) {
	s := Secret("hunter2")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "hunter2", s.Value())
	assert.True(t, s.IsSet())

	b, err := s.MarshalJSON()
	assert.NoError(t, err)
	assert.JSONEq(t, `"[REDACTED]"`, string(b))

	assert.False(t, Secret("").IsSet())
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	assert.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Duration())
	assert.Error(t, d.UnmarshalText([]byte("-5s")))
	assert.Error(t, d.UnmarshalText([]byte("soon")))
}
