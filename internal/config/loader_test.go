package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestHome points HOME at a temp dir and returns the allowed config dir.
func setupTestHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)

	configDir := filepath.Join(home, ".config", "stagehand")
	require.NoError(t, os.MkdirAll(configDir, 0700))
	return configDir
}

func TestLoadWithFile_ValidYAML(t *testing.T) {
	configDir := setupTestHome(t)
	configPath := filepath.Join(configDir, "config.yaml")

	yamlContent := `server:
  http_port: 9191
  http_host: 127.0.0.1
session:
  idle_ttl: 2h
  default_stages: [keter, malchut]
synthesis:
  similarity_threshold: 0.5
lightning:
  max_duration: 30m
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0600))

	cfg, err := LoadWithFile(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 2*time.Hour, cfg.Session.IdleTTL.Duration())
	assert.Equal(t, []string{"keter", "malchut"}, cfg.Session.DefaultStages)
	assert.InDelta(t, 0.5, cfg.Synthesis.SimilarityThreshold, 1e-9)
	assert.Equal(t, 30*time.Minute, cfg.Lightning.MaxDuration.Duration())

	// untouched sections fall back to defaults
	assert.Equal(t, 6, cfg.Synthesis.MaxInsights)
	assert.InDelta(t, 0.85, cfg.Lightning.BreakthroughThreshold, 1e-9)
}

func TestLoadWithFile_EnvironmentOverride(t *testing.T) {
	configDir := setupTestHome(t)
	configPath := filepath.Join(configDir, "config.yaml")

	yamlContent := `server:
  http_port: 9191
execution:
  stage_timeout: 10s
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0600))

	t.Setenv("STAGEHAND_SERVER_HTTP_PORT", "7777")
	t.Setenv("STAGEHAND_EXECUTION_STAGE_TIMEOUT", "5s")

	cfg, err := LoadWithFile(configPath)
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Execution.StageTimeout.Duration())
}

func TestLoadWithFile_MissingFile(t *testing.T) {
	configDir := setupTestHome(t)

	cfg, err := LoadWithFile(filepath.Join(configDir, "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8470, cfg.Server.Port)
	assert.Equal(t, 24*time.Hour, cfg.Session.IdleTTL.Duration())
}

func TestLoadWithFile_InsecurePermissions(t *testing.T) {
	configDir := setupTestHome(t)
	configPath := filepath.Join(configDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server:\n  http_port: 9191\n"), 0644))

	_, err := LoadWithFile(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure config file permissions")
}

func TestLoadWithFile_InvalidYAML(t *testing.T) {
	configDir := setupTestHome(t)
	configPath := filepath.Join(configDir, "config.yaml")
	invalidYAML := `server:
  http_port: not-a-number
  invalid syntax here
`
	require.NoError(t, os.WriteFile(configPath, []byte(invalidYAML), 0600))

	_, err := LoadWithFile(configPath)
	assert.Error(t, err)
}

func TestLoadWithFile_RejectsOutsideAllowedDirs(t *testing.T) {
	setupTestHome(t)
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	_, err := LoadWithFile(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config path validation failed")
}

func TestValidateConfigPath(t *testing.T) {
	configDir := setupTestHome(t)

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"user config", filepath.Join(configDir, "config.yaml"), false},
		{"user subdir", filepath.Join(configDir, "prod", "config.yaml"), false},
		{"system config", "/etc/stagehand/config.yaml", false},
		{"sibling prefix", "/etc/stagehand../etc/passwd", true},
		{"traversal", filepath.Join(configDir, "..", "..", "..", "etc", "passwd"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateConfigPath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "server.http_port", envKey("STAGEHAND_SERVER_HTTP_PORT"))
	assert.Equal(t, "events.nats_url", envKey("STAGEHAND_EVENTS_NATS_URL"))
	assert.Equal(t, "debug", envKey("STAGEHAND_DEBUG"))
}
