// Package journey defines the tracking configuration schema.
//
// DESIGN: A Config is pure data. It mirrors the JSON documents kept in the
// configuration registry, so field tags use the registry's wire names
// (gcDomain, pageviewConfig, ...). Behaviour lives elsewhere:
//   - compiler/: turns a Config into SDK commands
//   - authoring/: enforces save-time rules
//
// FILES:
//   - model.go:        Config, sections, tracked items
//   - validate.go:     Parse(), Validate(), NormalizeEventNames(), CleanUp()
//   - environments.go: Genesys Cloud domain -> environment table
package journey

// Event name prefixes for the list-based sections.
const (
	PrefixClick    = "click"
	PrefixIdle     = "idle"
	PrefixViewport = "viewport"
	PrefixScroll   = "scroll"
)

// Defaults applied to newly added items.
const (
	DefaultIdleAfterSeconds = 30
	DefaultScrollPercentage = 25
	DefaultFormSelector     = "form"
)

// Config is one tracking configuration as stored in the registry.
type Config struct {
	ConfigName            string `json:"configName"`
	Domain                string `json:"gcDomain"`
	Environment           string `json:"gcEnvironment"`
	MessagingDeploymentID string `json:"gcMessagingDeplId"`
	OpenActionName        string `json:"openActionName,omitempty"`

	// Chat widget deployment identity. Only the authoring service requires these.
	WidgetURL  string `json:"sfWmUrl,omitempty"`
	OrgID      string `json:"sfOrgId,omitempty"`
	WidgetName string `json:"sfWmName,omitempty"`

	Pageview    PageviewSection    `json:"pageviewConfig"`
	FormsTrack  FormsTrackSection  `json:"formsTrackConfig"`
	ClickEvents ClickEventsSection `json:"clickEventsConfig"`
	IdleEvents  IdleEventsSection  `json:"idleEventsConfig"`
	InViewport  InViewportSection  `json:"inViewportConfig"`
	ScrollDepth ScrollDepthSection `json:"scrollDepthConfig"`
}

// CustomAttribute is a name/value pair local to one section or item.
type CustomAttribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// PageviewSection configures Journey.pageview.
type PageviewSection struct {
	Enabled          bool              `json:"enabled"`
	CaptureAll       bool              `json:"captureAll"`
	PageTitle        string            `json:"pageTitle,omitempty"`
	PageLocation     string            `json:"pageLocation,omitempty"`
	CustomAttributes []CustomAttribute `json:"customAttributes,omitempty"`
}

// FormsTrackSection configures Journey.formsTrack.
type FormsTrackSection struct {
	Enabled                  bool              `json:"enabled"`
	CaptureAll               bool              `json:"captureAll"`
	Selector                 string            `json:"selector,omitempty"`
	FormName                 string            `json:"formName,omitempty"`
	CaptureFormDataOnAbandon bool              `json:"captureFormDataOnAbandon"`
	CaptureFormDataOnSubmit  bool              `json:"captureFormDataOnSubmit"`
	CustomAttributes         []CustomAttribute `json:"customAttributes,omitempty"`
}

// TrackedItem is one rule inside a list-based section. Which of Selector,
// IdleAfterSeconds or Percentage is meaningful depends on the section.
type TrackedItem struct {
	Selector         string            `json:"selector,omitempty"`
	IdleAfterSeconds int               `json:"idleAfterSeconds,omitempty"`
	Percentage       int               `json:"percentage,omitempty"`
	EventNameSuffix  string            `json:"eventNameSuffix"`
	EventName        string            `json:"eventName"`
	CustomAttributes []CustomAttribute `json:"customAttributes,omitempty"`
}

// ClickEventsSection configures Journey.trackClickEvents.
type ClickEventsSection struct {
	Enabled     bool          `json:"enabled"`
	ClickEvents []TrackedItem `json:"clickEvents"`
}

// IdleEventsSection configures Journey.trackIdleEvents.
type IdleEventsSection struct {
	Enabled    bool          `json:"enabled"`
	IdleEvents []TrackedItem `json:"idleEvents"`
}

// InViewportSection configures Journey.trackInViewport.
type InViewportSection struct {
	Enabled          bool          `json:"enabled"`
	InViewportEvents []TrackedItem `json:"inViewportEvents"`
}

// ScrollDepthSection configures Journey.trackScrollDepth.
type ScrollDepthSection struct {
	Enabled           bool          `json:"enabled"`
	ScrollDepthEvents []TrackedItem `json:"scrollDepthEvents"`
}

// EventName derives the event name for a suffix under the given prefix.
func EventName(prefix, suffix string) string {
	return prefix + "_" + suffix
}

// NewClickEvent returns a click rule with its event name derived.
func NewClickEvent(selector, suffix string) TrackedItem {
	return TrackedItem{Selector: selector, EventNameSuffix: suffix, EventName: EventName(PrefixClick, suffix)}
}

// NewIdleEvent returns an idle rule. Zero seconds selects the default.
func NewIdleEvent(seconds int, suffix string) TrackedItem {
	if seconds == 0 {
		seconds = DefaultIdleAfterSeconds
	}
	return TrackedItem{IdleAfterSeconds: seconds, EventNameSuffix: suffix, EventName: EventName(PrefixIdle, suffix)}
}

// NewViewportEvent returns an in-viewport rule.
func NewViewportEvent(selector, suffix string) TrackedItem {
	return TrackedItem{Selector: selector, EventNameSuffix: suffix, EventName: EventName(PrefixViewport, suffix)}
}

// NewScrollEvent returns a scroll-depth rule. Zero percentage selects the default.
func NewScrollEvent(percentage int, suffix string) TrackedItem {
	if percentage == 0 {
		percentage = DefaultScrollPercentage
	}
	return TrackedItem{Percentage: percentage, EventNameSuffix: suffix, EventName: EventName(PrefixScroll, suffix)}
}

// NewConfig returns an empty configuration with the authoring defaults.
func NewConfig(name string) *Config {
	return &Config{
		ConfigName: name,
		FormsTrack: FormsTrackSection{
			Selector:                DefaultFormSelector,
			CaptureFormDataOnSubmit: true,
		},
	}
}
