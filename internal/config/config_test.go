package config_test

// Config Tests - YAML loading, env expansion, overrides and validation.

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compresr/journey-gateway/internal/config"
)

const validYAML = `
server:
  port: 18090
  read_timeout: 30s
  write_timeout: 30s
  allowed_origins: ["https://shop.example.com"]
  rate_limit: 50
  api_key: ${JOURNEY_TEST_API_KEY:-}
registry:
  type: sqlite
  path: ${JOURNEY_TEST_DB:-/tmp/journey.db}
  cache:
    enabled: true
    document_ttl: 1m
orchestrator:
  config_name: web-main
  stage_timeout: 0s
hostlink:
  reply_timeout: 5s
  write_timeout: 5s
monitoring:
  log_level: info
  log_format: auto
`

func TestLoadFromBytes_Valid(t *testing.T) {
	cfg, err := config.LoadFromBytes([]byte(validYAML))
	require.NoError(t, err)

	assert.Equal(t, 18090, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"https://shop.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, config.RegistrySQLite, cfg.Registry.Type)
	assert.Equal(t, "/tmp/journey.db", cfg.Registry.Path)
	assert.True(t, cfg.Registry.Cache.Enabled)
	assert.Equal(t, time.Minute, cfg.Registry.Cache.DocumentTTL)
	assert.Equal(t, "web-main", cfg.Orchestrator.ConfigName)
	assert.Equal(t, 5*time.Second, cfg.Hostlink.ReplyTimeout)
}

func TestLoadFromBytes_EnvExpansionAndOverrides(t *testing.T) {
	t.Setenv("JOURNEY_TEST_DB", "/data/registry.db")
	t.Setenv("JOURNEY_CONFIG_NAME", "from-env")
	t.Setenv("JOURNEY_TEST_API_KEY", "s3cret")

	cfg, err := config.LoadFromBytes([]byte(validYAML))
	require.NoError(t, err)
	assert.Equal(t, "/data/registry.db", cfg.Registry.Path)
	assert.Equal(t, "from-env", cfg.Orchestrator.ConfigName)
	assert.Equal(t, "s3cret", cfg.Server.APIKey)

	t.Setenv("JOURNEY_REGISTRY_PATH", "/override.db")
	t.Setenv("JOURNEY_TELEMETRY_LOG", "/tmp/runs.jsonl")
	cfg, err = config.LoadFromBytes([]byte(validYAML))
	require.NoError(t, err)
	assert.Equal(t, "/override.db", cfg.Registry.Path)
	assert.True(t, cfg.Monitoring.TelemetryEnabled)
	assert.Equal(t, "/tmp/runs.jsonl", cfg.Monitoring.TelemetryPath)
}

func TestExpandEnvWithDefaults(t *testing.T) {
	t.Setenv("JOURNEY_SET", "value")

	assert.Equal(t, "value", config.ExpandEnvWithDefaults("${JOURNEY_SET}"))
	assert.Equal(t, "fallback", config.ExpandEnvWithDefaults("${JOURNEY_UNSET_X:-fallback}"))
	assert.Equal(t, "", config.ExpandEnvWithDefaults("${JOURNEY_UNSET_X}"))
}

func TestValidate_Errors(t *testing.T) {
	base := func() *config.Config {
		return &config.Config{
			Server:   config.ServerConfig{Port: 8080, ReadTimeout: time.Second, WriteTimeout: time.Second},
			Registry: config.RegistryConfig{Type: config.RegistrySQLite, Path: "x.db"},
			Hostlink: config.HostlinkConfig{ReplyTimeout: time.Second, WriteTimeout: time.Second},
		}
	}
	require.NoError(t, base().Validate())

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"port", func(c *config.Config) { c.Server.Port = 0 }, "server.port is required"},
		{"port range", func(c *config.Config) { c.Server.Port = 70000 }, "invalid server.port"},
		{"read timeout", func(c *config.Config) { c.Server.ReadTimeout = 0 }, "server.read_timeout is required"},
		{"registry type", func(c *config.Config) { c.Registry.Type = "" }, "registry.type is required"},
		{"registry unknown", func(c *config.Config) { c.Registry.Type = "redis" }, "invalid registry.type"},
		{"sqlite path", func(c *config.Config) { c.Registry.Path = "" }, "registry.path is required"},
		{"http url", func(c *config.Config) { c.Registry.Type = config.RegistryHTTP }, "registry.url is required"},
		{"ssm prefix", func(c *config.Config) { c.Registry.Type = config.RegistrySSM }, "registry.prefix is required"},
		{"stage timeout", func(c *config.Config) { c.Orchestrator.StageTimeout = -time.Second }, "stage_timeout"},
		{"reply timeout", func(c *config.Config) { c.Hostlink.ReplyTimeout = 0 }, "hostlink.reply_timeout is required"},
		{"log format", func(c *config.Config) { c.Monitoring.LogFormat = "xml" }, "log_format"},
		{"telemetry path", func(c *config.Config) { c.Monitoring.TelemetryEnabled = true }, "telemetry_path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_File(t *testing.T) {
	_, err := config.Load("")
	assert.Error(t, err)

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validYAML), 0o600))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 18090, cfg.Server.Port)
}

func TestLoadFromBytes_InvalidYAML(t *testing.T) {
	_, err := config.LoadFromBytes([]byte("server: [unterminated"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}
