// Runtime configuration for compiling and running bootstraps.
package config

import (
	"fmt"
	"time"
)

// BootstrapConfig customizes generated scripts.
type BootstrapConfig struct {
	GlobalName string `yaml:"global_name"` // SDK queue global, default Genesys
	BundlePath string `yaml:"bundle_path"` // appended to gcDomain
	LogPrefix  string `yaml:"log_prefix"`  // console diagnostics prefix
}

// OrchestratorConfig controls bootstrap runs.
type OrchestratorConfig struct {
	ConfigName   string        `yaml:"config_name"`   // default configuration for pages that name none
	StageTimeout time.Duration `yaml:"stage_timeout"` // 0 waits indefinitely
}

// HostlinkConfig controls the host page websocket.
type HostlinkConfig struct {
	ReplyTimeout time.Duration `yaml:"reply_timeout"` // wait for page replies
	WriteTimeout time.Duration `yaml:"write_timeout"` // per-message write deadline
	ReadLimit    int64         `yaml:"read_limit"`    // max inbound message size
}

// BrowserConfig configures the headless page executor used by `run`.
type BrowserConfig struct {
	DebuggerURL  string        `yaml:"debugger_url"`  // connect to an existing browser
	Headless     bool          `yaml:"headless"`      // when launching
	NavTimeout   time.Duration `yaml:"nav_timeout"`   // page load timeout
	PollInterval time.Duration `yaml:"poll_interval"` // widget readiness polling
}

// Validate checks orchestrator settings.
func (o OrchestratorConfig) Validate() error {
	if o.StageTimeout < 0 {
		return fmt.Errorf("invalid orchestrator.stage_timeout: %s (must be >= 0)", o.StageTimeout)
	}
	return nil
}

// Validate checks host link settings.
func (h HostlinkConfig) Validate() error {
	if h.ReplyTimeout == 0 {
		return fmt.Errorf("hostlink.reply_timeout is required")
	}
	if h.WriteTimeout == 0 {
		return fmt.Errorf("hostlink.write_timeout is required")
	}
	return nil
}
