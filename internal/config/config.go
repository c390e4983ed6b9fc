// Package config loads and validates the gateway configuration.
//
// DESIGN: All configuration comes from one YAML file (or the embedded default).
// Sections are validated on load; a missing required value is an error rather
// than a silent default. Runtime tunables that have a safe zero value
// (timeouts, TTLs) fall back to package defaults where they are consumed.
//
// FILES:
//   - config.go:     Root Config struct, Load(), Validate()
//   - registry.go:   Configuration registry backend selection
//   - runtime.go:    Bootstrap, orchestrator, host link and browser settings
//   - monitoring.go: Logging and telemetry settings
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the Journey Gateway.
type Config struct {
	Server       ServerConfig       `yaml:"server"`       // HTTP server settings
	Registry     RegistryConfig     `yaml:"registry"`     // Configuration registry backend
	Bootstrap    BootstrapConfig    `yaml:"bootstrap"`    // Script compilation settings
	Orchestrator OrchestratorConfig `yaml:"orchestrator"` // Bootstrap run settings
	Hostlink     HostlinkConfig     `yaml:"hostlink"`     // Host page websocket link
	Browser      BrowserConfig      `yaml:"browser"`      // Headless page executor
	Monitoring   MonitoringConfig   `yaml:"monitoring"`   // Telemetry and logging
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port           int           `yaml:"port"`            // Port to listen on
	ReadTimeout    time.Duration `yaml:"read_timeout"`    // Max time to read request
	WriteTimeout   time.Duration `yaml:"write_timeout"`   // Max time to write response
	AllowedOrigins []string      `yaml:"allowed_origins"` // CORS / websocket origins; empty allows same-origin only
	RateLimit      int           `yaml:"rate_limit"`      // Requests per second per client IP; 0 disables
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`  // Limit for configuration uploads
	APIKey         string        `yaml:"api_key"`         // Required in X-API-Key for writes when set
}

// expandEnvWithDefaults expands environment variables with support for default values.
// Supports both ${VAR} and ${VAR:-default} syntax.
func expandEnvWithDefaults(s string) string {
	// Pattern matches ${VAR:-default} or ${VAR}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultValue := ""
		if len(parts) > 2 {
			defaultValue = parts[2]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// Load reads configuration from a YAML file.
// Returns an error if the file doesn't exist or is invalid.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config file path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	return LoadFromBytes(data)
}

// LoadFromBytes parses configuration from raw YAML bytes.
// Supports ${VAR:-default} env var expansion, env overrides, and validation.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := expandEnvWithDefaults(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// ExpandEnvWithDefaults expands environment variables with support for default values.
func ExpandEnvWithDefaults(s string) string {
	return expandEnvWithDefaults(s)
}

// applyEnvOverrides lets deployments switch the registry and default
// configuration without editing the YAML file.
func (c *Config) applyEnvOverrides() {
	// JOURNEY_CONFIG_NAME selects the configuration compiled when a page
	// does not name one.
	if name := os.Getenv("JOURNEY_CONFIG_NAME"); name != "" {
		c.Orchestrator.ConfigName = name
	}

	// JOURNEY_REGISTRY_PATH points the sqlite registry at another database
	if path := os.Getenv("JOURNEY_REGISTRY_PATH"); path != "" {
		c.Registry.Path = path
	}

	// JOURNEY_TELEMETRY_LOG overrides the run telemetry path
	if path := os.Getenv("JOURNEY_TELEMETRY_LOG"); path != "" {
		c.Monitoring.TelemetryPath = path
		c.Monitoring.TelemetryEnabled = true
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ReadTimeout == 0 {
		return fmt.Errorf("server.read_timeout is required")
	}
	if c.Server.WriteTimeout == 0 {
		return fmt.Errorf("server.write_timeout is required")
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("invalid server.rate_limit: %d (must be >= 0)", c.Server.RateLimit)
	}

	if err := c.Registry.Validate(); err != nil {
		return err
	}
	if err := c.Orchestrator.Validate(); err != nil {
		return err
	}
	if err := c.Hostlink.Validate(); err != nil {
		return err
	}
	if err := c.Monitoring.Validate(); err != nil {
		return err
	}

	return nil
}
