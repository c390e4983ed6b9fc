// Package monitoring - types.go defines shared types.
//
// DESIGN: These types are used by orchestrator/, server/ and monitoring/.
// Defined here ONCE to avoid duplication and circular imports.
//
// TYPES:
//   - RunEvent:      Telemetry data for each bootstrap run transition
//   - RequestEvent:  Telemetry data for each HTTP request
//   - Config types:  TelemetryConfig, LoggerConfig, AlertConfig
package monitoring

import "time"

// =============================================================================
// EVENT TYPES - Structured data for telemetry recording
// =============================================================================

// RunEvent captures one terminal transition of a bootstrap run.
type RunEvent struct {
	RunID        string    `json:"run_id"`
	Generation   uint64    `json:"generation"`
	Timestamp    time.Time `json:"timestamp"`
	ConfigName   string    `json:"config_name"`
	State        string    `json:"state"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	Error        string    `json:"error,omitempty"`
	Commands     int       `json:"commands"`
	HiddenFields bool      `json:"hidden_fields"`
	LatencyMs    int64     `json:"latency_ms"`
}

// RequestEvent captures an HTTP request through the server.
type RequestEvent struct {
	RequestID  string    `json:"request_id"`
	Timestamp  time.Time `json:"timestamp"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	ClientIP   string    `json:"client_ip"`
	StatusCode int       `json:"status_code"`
	BodySize   int       `json:"body_size"`
	LatencyMs  int64     `json:"latency_ms"`
}

// =============================================================================
// CONFIG TYPES
// =============================================================================

// TelemetryConfig contains telemetry configuration.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	LogPath     string `yaml:"log_path"`
	LogToStdout bool   `yaml:"log_to_stdout"`
}

// LoggerConfig contains logging configuration.
type LoggerConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console, auto
	Output string `yaml:"output"` // stdout, stderr, or file path
}

// AlertConfig contains alert thresholds.
type AlertConfig struct {
	SlowRunThreshold time.Duration `yaml:"slow_run_threshold"`
}
