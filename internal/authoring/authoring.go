// Package authoring saves, loads, lists and deletes tracking configurations
// on behalf of an operator.
//
// DESIGN: Every operation reports its outcome through a Notifier exactly
// once (success or error), mirroring the toasts of the authoring UI. Save:
//   - fills gcEnvironment from the region table when the domain is known
//   - checks the mandatory fields (openActionName only on create)
//   - keeps the stored openActionName on update when the form omits it
//   - drops captureAll-irrelevant fields and recomputes event names
package authoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/compresr/journey-gateway/internal/journey"
	"github.com/compresr/journey-gateway/internal/monitoring"
	"github.com/compresr/journey-gateway/internal/orchestrator"
	"github.com/compresr/journey-gateway/internal/registry"
)

// ErrMissingFields indicates mandatory fields are empty.
var ErrMissingFields = errors.New("missing mandatory fields")

// MissingFieldsError lists the empty mandatory fields by label.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "please fill out the following mandatory fields: " + strings.Join(e.Fields, ", ")
}

func (e *MissingFieldsError) Unwrap() error { return ErrMissingFields }

type mandatoryField struct {
	label string
	value func(*journey.Config) string
}

var mandatory = []mandatoryField{
	{"Configuration Name", func(c *journey.Config) string { return c.ConfigName }},
	{"GC Domain", func(c *journey.Config) string { return c.Domain }},
	{"GC Environment", func(c *journey.Config) string { return c.Environment }},
	{"GC Messaging Deployment ID", func(c *journey.Config) string { return c.MessagingDeploymentID }},
	{"SF WM URL", func(c *journey.Config) string { return c.WidgetURL }},
	{"SF Org ID", func(c *journey.Config) string { return c.OrgID }},
	{"SF WM Name", func(c *journey.Config) string { return c.WidgetName }},
}

// Service is the authoring front end to a registry.
type Service struct {
	reg      registry.Registry
	notifier orchestrator.Notifier
	logger   *monitoring.Logger
}

// New creates a Service. A nil notifier discards notifications.
func New(reg registry.Registry, notifier orchestrator.Notifier, logger *monitoring.Logger) *Service {
	if notifier == nil {
		notifier = orchestrator.NotifierFunc(func(context.Context, orchestrator.Notification) {})
	}
	if logger == nil {
		logger = monitoring.Default()
	}
	return &Service{reg: reg, notifier: notifier, logger: logger}
}

// CheckMandatory returns a *MissingFieldsError when any mandatory field is
// blank. create adds the open action name.
func CheckMandatory(cfg *journey.Config, create bool) error {
	var missing []string
	for _, f := range mandatory {
		if strings.TrimSpace(f.value(cfg)) == "" {
			missing = append(missing, f.label)
		}
	}
	if create && strings.TrimSpace(cfg.OpenActionName) == "" {
		missing = append(missing, "Open Action Name")
	}
	if len(missing) > 0 {
		return &MissingFieldsError{Fields: missing}
	}
	return nil
}

// Save normalizes cfg in place and stores it. An empty existingID creates a
// configuration. Returns the identifier.
func (s *Service) Save(ctx context.Context, cfg *journey.Config, existingID string) (string, error) {
	if cfg == nil {
		return "", s.failed(ctx, "save", orchestrator.ValidationFailure, errors.New("no configuration"))
	}
	if cfg.Environment == "" {
		if env, ok := journey.EnvironmentForDomain(cfg.Domain); ok {
			cfg.Environment = env
		}
	}

	create := existingID == ""
	if err := CheckMandatory(cfg, create); err != nil {
		return "", s.failed(ctx, "save", orchestrator.ValidationFailure, err)
	}
	if !create && cfg.OpenActionName == "" {
		prev, err := s.reg.FetchByID(ctx, existingID)
		if err != nil {
			return "", s.failed(ctx, "save", orchestrator.FetchFailure, err)
		}
		prevDoc := gjson.ParseBytes(prev)
		cfg.OpenActionName = prevDoc.Get("openActionName").String()
		if cfg.OpenActionName == "" {
			cfg.OpenActionName = prevDoc.Get("gcOpenActionName").String()
		}
	}

	cfg.CleanUp()
	cfg.NormalizeEventNames()
	if err := cfg.Validate(); err != nil {
		return "", s.failed(ctx, "save", orchestrator.ValidationFailure, err)
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		return "", s.failed(ctx, "save", orchestrator.CompileFailure, err)
	}
	id, err := s.reg.Save(ctx, data, existingID)
	if err != nil {
		kind := orchestrator.FetchFailure
		if errors.Is(err, registry.ErrConflict) || errors.Is(err, registry.ErrInvalidDocument) {
			kind = orchestrator.ValidationFailure
		}
		return "", s.failed(ctx, "save", kind, err)
	}

	s.logger.Info().Str("id", id).Str("config", cfg.ConfigName).Bool("create", create).Msg("configuration saved")
	s.notifier.Notify(ctx, orchestrator.Notification{
		Severity: orchestrator.SeveritySuccess,
		Title:    "Success",
		Message:  "Configuration saved successfully",
	})
	return id, nil
}

// Load returns the configuration with the given identifier.
func (s *Service) Load(ctx context.Context, id string) (*journey.Config, error) {
	data, err := s.reg.FetchByID(ctx, id)
	if err != nil {
		return nil, s.failed(ctx, "load", orchestrator.FetchFailure, err)
	}
	cfg, err := journey.Parse(data)
	if err != nil {
		return nil, s.failed(ctx, "load", orchestrator.FetchFailure, err)
	}
	return cfg, nil
}

// Delete removes the configuration with the given identifier. An unknown
// identifier is reported, never ignored.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.reg.Delete(ctx, id); err != nil {
		return s.failed(ctx, "delete", orchestrator.FetchFailure, err)
	}
	s.logger.Info().Str("id", id).Msg("configuration deleted")
	s.notifier.Notify(ctx, orchestrator.Notification{
		Severity: orchestrator.SeveritySuccess,
		Title:    "Success",
		Message:  "Configuration deleted successfully",
	})
	return nil
}

// List returns every stored configuration.
func (s *Service) List(ctx context.Context) ([]registry.Entry, error) {
	entries, err := s.reg.List(ctx)
	if err != nil {
		return nil, s.failed(ctx, "list", orchestrator.FetchFailure, err)
	}
	return entries, nil
}

// failed notifies once and returns the classified error.
func (s *Service) failed(ctx context.Context, op string, kind orchestrator.Kind, err error) error {
	e := &orchestrator.Error{Kind: kind, Op: op + " configuration", Err: err}
	s.logger.Warn().Str("op", op).Str("kind", kind.String()).Err(err).Msg("authoring failed")
	s.notifier.Notify(ctx, orchestrator.Notification{
		Severity: orchestrator.SeverityError,
		Title:    "Error",
		Message:  fmt.Sprintf("Failed to %s configuration: %v", op, err),
		Kind:     kind.String(),
	})
	return e
}
