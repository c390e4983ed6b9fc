package compiler

import (
	"fmt"
	"strings"

	"github.com/tidwall/sjson"

	"github.com/compresr/journey-gateway/internal/contact"
	"github.com/compresr/journey-gateway/internal/journey"
	"github.com/compresr/journey-gateway/internal/traits"
)

// Defaults for Compile options.
const (
	DefaultGlobalName = "Genesys"
	DefaultBundlePath = "/genesys-bootstrap/genesys.min.js"
	DefaultLogPrefix  = "JourneyGateway"
)

type options struct {
	globalName string
	bundlePath string
	logPrefix  string
}

// Option configures Compile.
type Option func(*options)

// WithGlobalName sets the window property holding the SDK queue.
func WithGlobalName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.globalName = name
		}
	}
}

// WithBundlePath sets the bundle path appended to the configured domain.
func WithBundlePath(path string) Option {
	return func(o *options) {
		if path != "" {
			o.bundlePath = "/" + strings.TrimLeft(path, "/")
		}
	}
}

// WithLogPrefix sets the prefix of console diagnostics in rendered scripts.
func WithLogPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.logPrefix = prefix
		}
	}
}

// Compile builds the Script for cfg and visitor c. Only enabled sections
// produce commands; the open-action subscription is always present.
//
// Compile does not validate cfg beyond nil. Malformed values pass through
// to the payloads unchanged, except item event names, which are always
// derived from the item's suffix and the section prefix.
func Compile(cfg *journey.Config, c contact.Contact, opts ...Option) (*Script, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}

	o := options{
		globalName: DefaultGlobalName,
		bundlePath: DefaultBundlePath,
		logPrefix:  DefaultLogPrefix,
	}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Script{
		ConfigName: cfg.ConfigName,
		Bootstrap: Bootstrap{
			GlobalName:   o.globalName,
			BundleURL:    strings.TrimRight(cfg.Domain, "/") + o.bundlePath,
			Environment:  cfg.Environment,
			DeploymentID: cfg.MessagingDeploymentID,
		},
		OpenAction: OpenAction{
			Signal:     SignalQualifiedOpenAction,
			ActionName: cfg.OpenActionName,
		},
		logPrefix: o.logPrefix,
	}

	sections := []struct {
		name    string
		enabled bool
		build   func(*journey.Config, contact.Contact) ([]byte, error)
	}{
		{CommandPageview, cfg.Pageview.Enabled, pageviewPayload},
		{CommandFormsTrack, cfg.FormsTrack.Enabled, formsPayload},
		{CommandTrackClickEvents, cfg.ClickEvents.Enabled, listPayload("clickEvents", journey.PrefixClick, selectorFields, func(c *journey.Config) []journey.TrackedItem { return c.ClickEvents.ClickEvents })},
		{CommandTrackIdleEvents, cfg.IdleEvents.Enabled, listPayload("idleEvents", journey.PrefixIdle, idleFields, func(c *journey.Config) []journey.TrackedItem { return c.IdleEvents.IdleEvents })},
		{CommandTrackInViewport, cfg.InViewport.Enabled, listPayload("inViewportEvents", journey.PrefixViewport, selectorFields, func(c *journey.Config) []journey.TrackedItem { return c.InViewport.InViewportEvents })},
		{CommandTrackScrollDepth, cfg.ScrollDepth.Enabled, listPayload("scrollDepthEvents", journey.PrefixScroll, scrollFields, func(c *journey.Config) []journey.TrackedItem { return c.ScrollDepth.ScrollDepthEvents })},
	}

	for _, sec := range sections {
		if !sec.enabled {
			continue
		}
		payload, err := sec.build(cfg, c)
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", sec.name, err)
		}
		s.Commands = append(s.Commands, Command{Name: sec.name, Payload: payload})
	}

	return s, nil
}

// ===== SECTION PAYLOADS =====

func pageviewPayload(cfg *journey.Config, c contact.Contact) ([]byte, error) {
	p := []byte(`{}`)
	var err error
	if !cfg.Pageview.CaptureAll {
		if p, err = setString(p, "pageTitle", cfg.Pageview.PageTitle); err != nil {
			return nil, err
		}
		if p, err = setString(p, "pageLocation", cfg.Pageview.PageLocation); err != nil {
			return nil, err
		}
	}
	return traits.Map(c, cfg.Pageview.CustomAttributes).Apply(p)
}

func formsPayload(cfg *journey.Config, c contact.Contact) ([]byte, error) {
	f := cfg.FormsTrack
	p, err := sjson.SetBytes([]byte(`{}`), "captureFormDataOnAbandon", f.CaptureFormDataOnAbandon)
	if err != nil {
		return nil, err
	}
	if p, err = sjson.SetBytes(p, "captureFormDataOnSubmit", f.CaptureFormDataOnSubmit); err != nil {
		return nil, err
	}
	if !f.CaptureAll {
		if p, err = setString(p, "selector", f.Selector); err != nil {
			return nil, err
		}
		if p, err = setString(p, "formName", f.FormName); err != nil {
			return nil, err
		}
	}
	return traits.Map(c, f.CustomAttributes).Apply(p)
}

// itemFields writes the section-specific fields of one tracked item.
type itemFields func(p []byte, item journey.TrackedItem) ([]byte, error)

func selectorFields(p []byte, item journey.TrackedItem) ([]byte, error) {
	return setString(p, "selector", item.Selector)
}

func idleFields(p []byte, item journey.TrackedItem) ([]byte, error) {
	return sjson.SetBytes(p, "idleAfterSeconds", item.IdleAfterSeconds)
}

func scrollFields(p []byte, item journey.TrackedItem) ([]byte, error) {
	return sjson.SetBytes(p, "percentage", item.Percentage)
}

func listPayload(key, prefix string, fields itemFields, items func(*journey.Config) []journey.TrackedItem) func(*journey.Config, contact.Contact) ([]byte, error) {
	return func(cfg *journey.Config, c contact.Contact) ([]byte, error) {
		p, err := sjson.SetRawBytes([]byte(`{}`), key, []byte(`[]`))
		if err != nil {
			return nil, err
		}
		for i, item := range items(cfg) {
			obj, err := fields([]byte(`{}`), item)
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", key, i, err)
			}
			if obj, err = sjson.SetBytes(obj, "eventName", item.ResolvedEventName(prefix)); err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", key, i, err)
			}
			if obj, err = traits.Map(c, item.CustomAttributes).Apply(obj); err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", key, i, err)
			}
			if p, err = sjson.SetRawBytes(p, key+".-1", obj); err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", key, i, err)
			}
		}
		return p, nil
	}
}

// setString sets key only when value is non-empty.
func setString(p []byte, key, value string) ([]byte, error) {
	if value == "" {
		return p, nil
	}
	return sjson.SetBytes(p, key, value)
}
