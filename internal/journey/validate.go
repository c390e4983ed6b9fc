package journey

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	// ErrInvalidConfig indicates the document could not be decoded.
	ErrInvalidConfig = errors.New("invalid configuration document")

	// ErrMissingField indicates a required field is empty.
	ErrMissingField = errors.New("missing required field")

	// ErrInvalidValue indicates a field has an out-of-range value.
	ErrInvalidValue = errors.New("invalid field value")
)

// ValidationError locates a validation failure inside a Config.
type ValidationError struct {
	Section string // pageviewConfig, clickEventsConfig, ... or "" for identity fields
	Index   int    // item index for list sections, -1 otherwise
	Field   string
	Err     error
}

// Error returns formatted error message
func (e *ValidationError) Error() string {
	switch {
	case e.Section == "":
		return fmt.Sprintf("field '%s': %v", e.Field, e.Err)
	case e.Index >= 0:
		return fmt.Sprintf("%s[%d]: field '%s': %v", e.Section, e.Index, e.Field, e.Err)
	default:
		return fmt.Sprintf("%s: field '%s': %v", e.Section, e.Field, e.Err)
	}
}

// Unwrap returns the underlying error
func (e *ValidationError) Unwrap() error {
	return e.Err
}

func missing(field string) error {
	return &ValidationError{Index: -1, Field: field, Err: ErrMissingField}
}

// Parse decodes a registry document, checks the identity fields and
// recomputes every derived event name.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	// Older runtime documents carry the action name under the gc prefix.
	if cfg.OpenActionName == "" {
		cfg.OpenActionName = gjson.GetBytes(data, "gcOpenActionName").String()
	}
	if err := cfg.ValidateIdentity(); err != nil {
		return nil, err
	}
	cfg.NormalizeEventNames()
	return &cfg, nil
}

// ValidateIdentity checks the fields needed to bootstrap the SDK.
func (c *Config) ValidateIdentity() error {
	if strings.TrimSpace(c.ConfigName) == "" {
		return missing("configName")
	}
	if strings.TrimSpace(c.Domain) == "" {
		return missing("gcDomain")
	}
	if strings.TrimSpace(c.Environment) == "" {
		return missing("gcEnvironment")
	}
	if strings.TrimSpace(c.MessagingDeploymentID) == "" {
		return missing("gcMessagingDeplId")
	}
	return nil
}

// Validate checks identity fields and every tracked item (fail-fast).
func (c *Config) Validate() error {
	if err := c.ValidateIdentity(); err != nil {
		return err
	}

	for _, list := range c.lists() {
		for i, item := range *list.items {
			if strings.TrimSpace(item.EventNameSuffix) == "" {
				return &ValidationError{Section: list.section, Index: i, Field: "eventNameSuffix", Err: ErrMissingField}
			}
			switch list.prefix {
			case PrefixIdle:
				if item.IdleAfterSeconds <= 0 {
					return &ValidationError{Section: list.section, Index: i, Field: "idleAfterSeconds",
						Err: fmt.Errorf("%w: must be positive, got %d", ErrInvalidValue, item.IdleAfterSeconds)}
				}
			case PrefixScroll:
				if item.Percentage < 1 || item.Percentage > 100 {
					return &ValidationError{Section: list.section, Index: i, Field: "percentage",
						Err: fmt.Errorf("%w: must be 1-100, got %d", ErrInvalidValue, item.Percentage)}
				}
			default:
				if strings.TrimSpace(item.Selector) == "" {
					return &ValidationError{Section: list.section, Index: i, Field: "selector", Err: ErrMissingField}
				}
			}
		}
	}
	return nil
}

// NormalizeEventNames recomputes eventName from eventNameSuffix for every
// tracked item. Documents written before the suffix was stored carry only
// eventName; the suffix is recovered from it first.
func (c *Config) NormalizeEventNames() {
	for _, list := range c.lists() {
		items := *list.items
		for i := range items {
			items[i].EventNameSuffix = items[i].suffix(list.prefix)
			items[i].EventName = EventName(list.prefix, items[i].EventNameSuffix)
		}
	}
}

// ResolvedEventName is the event name NormalizeEventNames would store for t
// under the given section prefix.
func (t TrackedItem) ResolvedEventName(prefix string) string {
	return EventName(prefix, t.suffix(prefix))
}

func (t TrackedItem) suffix(prefix string) string {
	if t.EventNameSuffix == "" && t.EventName != "" {
		return strings.TrimPrefix(t.EventName, prefix+"_")
	}
	return t.EventNameSuffix
}

// CleanUp drops selector fields that captureAll makes irrelevant.
func (c *Config) CleanUp() {
	if c.Pageview.CaptureAll {
		c.Pageview.PageTitle = ""
		c.Pageview.PageLocation = ""
	}
	if c.FormsTrack.CaptureAll {
		c.FormsTrack.Selector = ""
		c.FormsTrack.FormName = ""
	}
}

// EnabledSections counts the sections that will emit a command.
func (c *Config) EnabledSections() int {
	n := 0
	for _, on := range []bool{
		c.Pageview.Enabled, c.FormsTrack.Enabled, c.ClickEvents.Enabled,
		c.IdleEvents.Enabled, c.InViewport.Enabled, c.ScrollDepth.Enabled,
	} {
		if on {
			n++
		}
	}
	return n
}

type itemList struct {
	section string
	prefix  string
	items   *[]TrackedItem
}

func (c *Config) lists() []itemList {
	return []itemList{
		{"clickEventsConfig", PrefixClick, &c.ClickEvents.ClickEvents},
		{"idleEventsConfig", PrefixIdle, &c.IdleEvents.IdleEvents},
		{"inViewportConfig", PrefixViewport, &c.InViewport.InViewportEvents},
		{"scrollDepthConfig", PrefixScroll, &c.ScrollDepth.ScrollDepthEvents},
	}
}
