// Package registry stores tracking configuration documents.
//
// DESIGN: Documents are opaque JSON keyed by configName, each with a stable
// identifier assigned by the backend. The gateway only needs:
//   - lookup by name (runtime bootstrap)
//   - name -> identifier (hidden pre-chat field)
//   - CRUD by identifier (authoring)
//
// FILES:
//   - registry.go: Registry interface, errors, Open()
//   - sqlite.go:   SQLiteRegistry (modernc.org/sqlite)
//   - client.go:   Client for a remote gateway's /v1/configs API
//   - ssm.go:      SSMRegistry (AWS Systems Manager parameters)
//   - cached.go:   Cached read-through decorator
package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/compresr/journey-gateway/internal/config"
	"github.com/compresr/journey-gateway/internal/store"
)

var (
	// ErrNotFound indicates no configuration exists for the name or identifier.
	ErrNotFound = errors.New("configuration not found")

	// ErrInvalidDocument indicates the document is not a JSON object with a configName.
	ErrInvalidDocument = errors.New("invalid configuration document")

	// ErrConflict indicates another configuration already uses the name.
	ErrConflict = errors.New("configuration name already in use")

	// ErrUnavailable indicates the backend could not be reached.
	ErrUnavailable = errors.New("configuration registry unavailable")
)

// Entry summarizes one stored configuration.
type Entry struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Registry is the configuration store.
type Registry interface {
	// FetchByName returns the document stored under name.
	FetchByName(ctx context.Context, name string) ([]byte, error)

	// ResolveIdentifier returns the identifier of the configuration named name.
	ResolveIdentifier(ctx context.Context, name string) (string, error)

	// FetchByID returns the document with the given identifier.
	FetchByID(ctx context.Context, id string) ([]byte, error)

	// Save stores data. An empty existingID creates a new configuration;
	// otherwise that configuration is replaced. Returns the identifier.
	Save(ctx context.Context, data []byte, existingID string) (string, error)

	// Delete removes the configuration with the given identifier.
	Delete(ctx context.Context, id string) error

	// List returns every configuration ordered by name.
	List(ctx context.Context) ([]Entry, error)

	// Close releases backend resources.
	Close() error
}

// DocumentName validates data and returns its configName.
func DocumentName(data []byte) (string, error) {
	if !gjson.ValidBytes(data) {
		return "", fmt.Errorf("%w: not valid JSON", ErrInvalidDocument)
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return "", fmt.Errorf("%w: not a JSON object", ErrInvalidDocument)
	}
	name := doc.Get("configName").String()
	if name == "" {
		return "", fmt.Errorf("%w: configName is required", ErrInvalidDocument)
	}
	return name, nil
}

// Open builds the backend selected by cfg, wrapped in a cache when enabled.
func Open(ctx context.Context, cfg config.RegistryConfig) (Registry, error) {
	var (
		reg Registry
		err error
	)
	switch cfg.Type {
	case config.RegistrySQLite:
		reg, err = OpenSQLite(cfg.Path)
	case config.RegistryHTTP:
		reg = NewClient(cfg.URL, cfg.APIKey, cfg.Timeout)
	case config.RegistrySSM:
		reg, err = NewSSMRegistryFromConfig(ctx, cfg.Prefix, cfg.Region)
	default:
		return nil, fmt.Errorf("unknown registry type %q", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Cache.Enabled {
		reg = NewCached(reg, store.NewMemoryStoreWithTTLs(cfg.Cache.DocumentTTL, cfg.Cache.IdentifierTTL))
	}
	return reg, nil
}
