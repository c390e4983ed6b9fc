// Registry backend configuration.
//
// DESIGN: One backend per deployment:
//   - sqlite: local database file (default)
//   - http:   another gateway's /v1/configs API
//   - ssm:    AWS Systems Manager parameters under a path prefix
//
// Any backend may be wrapped by the in-memory TTL cache.
package config

import (
	"fmt"
	"time"
)

// Registry backend types.
const (
	RegistrySQLite = "sqlite"
	RegistryHTTP   = "http"
	RegistrySSM    = "ssm"
)

// RegistryConfig selects and configures the configuration registry.
type RegistryConfig struct {
	Type    string        `yaml:"type"`    // sqlite, http, ssm
	Path    string        `yaml:"path"`    // sqlite database file
	URL     string        `yaml:"url"`     // http: base URL of a gateway
	Timeout time.Duration `yaml:"timeout"` // http: request timeout
	APIKey  string        `yaml:"api_key"` // http: sent as X-API-Key when set

	// ssm
	Prefix string `yaml:"prefix"` // parameter path prefix, e.g. /journey/configs
	Region string `yaml:"region"` // AWS region; empty uses the default chain

	Cache CacheConfig `yaml:"cache"`
}

// CacheConfig controls the registry read cache.
type CacheConfig struct {
	Enabled       bool          `yaml:"enabled"`
	DocumentTTL   time.Duration `yaml:"document_ttl"`
	IdentifierTTL time.Duration `yaml:"identifier_ttl"`
}

// Validate checks the backend-specific required fields.
func (r RegistryConfig) Validate() error {
	switch r.Type {
	case "":
		return fmt.Errorf("registry.type is required")
	case RegistrySQLite:
		if r.Path == "" {
			return fmt.Errorf("registry.path is required for sqlite")
		}
	case RegistryHTTP:
		if r.URL == "" {
			return fmt.Errorf("registry.url is required for http")
		}
	case RegistrySSM:
		if r.Prefix == "" {
			return fmt.Errorf("registry.prefix is required for ssm")
		}
	default:
		return fmt.Errorf("invalid registry.type: %q (must be sqlite, http or ssm)", r.Type)
	}
	return nil
}
