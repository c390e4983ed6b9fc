package compiler_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/compresr/journey-gateway/internal/compiler"
	"github.com/compresr/journey-gateway/internal/contact"
	"github.com/compresr/journey-gateway/internal/journey"
)

func baseConfig() *journey.Config {
	cfg := journey.NewConfig("web-main")
	cfg.Domain = "https://apps.mypurecloud.ie/"
	cfg.Environment = "prod-euw1"
	cfg.MessagingDeploymentID = "dep-123"
	cfg.OpenActionName = "open_chat"
	return cfg
}

func allEnabled() *journey.Config {
	cfg := baseConfig()
	cfg.Pageview = journey.PageviewSection{Enabled: true, PageTitle: "Pricing", PageLocation: "/pricing"}
	cfg.FormsTrack.Enabled = true
	cfg.FormsTrack.FormName = "signup"
	cfg.ClickEvents = journey.ClickEventsSection{Enabled: true, ClickEvents: []journey.TrackedItem{
		journey.NewClickEvent("#buy", "buy"),
		journey.NewClickEvent("#help", "help"),
	}}
	cfg.IdleEvents = journey.IdleEventsSection{Enabled: true, IdleEvents: []journey.TrackedItem{journey.NewIdleEvent(0, "stall")}}
	cfg.InViewport = journey.InViewportSection{Enabled: true, InViewportEvents: []journey.TrackedItem{journey.NewViewportEvent("#hero", "hero")}}
	cfg.ScrollDepth = journey.ScrollDepthSection{Enabled: true, ScrollDepthEvents: []journey.TrackedItem{journey.NewScrollEvent(50, "half")}}
	return cfg
}

var visitor = contact.Contact{Email: "a@b.com", Phone: "+34666111222"}

// =============================================================================
// COMMANDS
// =============================================================================

func TestCompile_NilConfig(t *testing.T) {
	_, err := compiler.Compile(nil, visitor)
	assert.ErrorIs(t, err, compiler.ErrNilConfig)
}

func TestCompile_AllSectionsDisabled(t *testing.T) {
	s, err := compiler.Compile(baseConfig(), visitor)
	require.NoError(t, err)

	assert.Empty(t, s.Commands)
	assert.Equal(t, compiler.SignalQualifiedOpenAction, s.OpenAction.Signal)
	assert.Equal(t, "open_chat", s.OpenAction.ActionName)
}

func TestCompile_Bootstrap(t *testing.T) {
	s, err := compiler.Compile(baseConfig(), visitor)
	require.NoError(t, err)

	assert.Equal(t, compiler.Bootstrap{
		GlobalName:   "Genesys",
		BundleURL:    "https://apps.mypurecloud.ie/genesys-bootstrap/genesys.min.js",
		Environment:  "prod-euw1",
		DeploymentID: "dep-123",
	}, s.Bootstrap)
}

func TestCompile_Options(t *testing.T) {
	s, err := compiler.Compile(baseConfig(), visitor,
		compiler.WithGlobalName("GC"),
		compiler.WithBundlePath("sdk/bundle.js"),
		compiler.WithGlobalName(""))
	require.NoError(t, err)

	assert.Equal(t, "GC", s.Bootstrap.GlobalName)
	assert.Equal(t, "https://apps.mypurecloud.ie/sdk/bundle.js", s.Bootstrap.BundleURL)
}

func TestCompile_FixedSectionOrder(t *testing.T) {
	s, err := compiler.Compile(allEnabled(), visitor)
	require.NoError(t, err)

	assert.Equal(t, []string{
		compiler.CommandPageview,
		compiler.CommandFormsTrack,
		compiler.CommandTrackClickEvents,
		compiler.CommandTrackIdleEvents,
		compiler.CommandTrackInViewport,
		compiler.CommandTrackScrollDepth,
	}, s.CommandNames())
}

func TestCompile_OnlyEnabledSections(t *testing.T) {
	cfg := allEnabled()
	cfg.FormsTrack.Enabled = false
	cfg.IdleEvents.Enabled = false

	s, err := compiler.Compile(cfg, visitor)
	require.NoError(t, err)

	assert.Len(t, s.Commands, cfg.EnabledSections())
	_, ok := s.Find(compiler.CommandFormsTrack)
	assert.False(t, ok)
}

// =============================================================================
// PAYLOADS
// =============================================================================

func payload(t *testing.T, s *compiler.Script, name string) gjson.Result {
	t.Helper()
	cmd, ok := s.Find(name)
	require.True(t, ok, "missing %s", name)
	require.True(t, gjson.ValidBytes(cmd.Payload), "invalid payload for %s", name)
	return gjson.ParseBytes(cmd.Payload)
}

func TestCompile_PageviewPayload(t *testing.T) {
	s, err := compiler.Compile(allEnabled(), visitor)
	require.NoError(t, err)

	p := payload(t, s, compiler.CommandPageview)
	assert.Equal(t, "Pricing", p.Get("pageTitle").String())
	assert.Equal(t, "/pricing", p.Get("pageLocation").String())
	assert.Equal(t, "a@b.com", p.Get("customAttributes.CustomerEmail").String())
	assert.Len(t, p.Get("traitsMapper").Array(), 5)
}

func TestCompile_PageviewCaptureAllOmitsSelectors(t *testing.T) {
	cfg := allEnabled()
	cfg.Pageview.CaptureAll = true

	s, err := compiler.Compile(cfg, visitor)
	require.NoError(t, err)

	p := payload(t, s, compiler.CommandPageview)
	assert.False(t, p.Get("pageTitle").Exists())
	assert.False(t, p.Get("pageLocation").Exists())
	assert.True(t, p.Get("traitsMapper").Exists())
}

func TestCompile_FormsPayload(t *testing.T) {
	cfg := allEnabled()
	s, err := compiler.Compile(cfg, contact.Contact{})
	require.NoError(t, err)

	p := payload(t, s, compiler.CommandFormsTrack)
	assert.False(t, p.Get("captureFormDataOnAbandon").Bool())
	assert.True(t, p.Get("captureFormDataOnSubmit").Exists())
	assert.True(t, p.Get("captureFormDataOnSubmit").Bool())
	assert.Equal(t, "form", p.Get("selector").String())
	assert.Equal(t, "signup", p.Get("formName").String())
	assert.False(t, p.Get("customAttributes").Exists())

	cfg.FormsTrack.CaptureAll = true
	s, err = compiler.Compile(cfg, contact.Contact{})
	require.NoError(t, err)

	p = payload(t, s, compiler.CommandFormsTrack)
	assert.False(t, p.Get("selector").Exists())
	assert.False(t, p.Get("formName").Exists())
	assert.True(t, p.Get("captureFormDataOnAbandon").Exists())
}

func TestCompile_ListPayloads(t *testing.T) {
	s, err := compiler.Compile(allEnabled(), contact.Contact{Phone: "+34666111222"})
	require.NoError(t, err)

	clicks := payload(t, s, compiler.CommandTrackClickEvents).Get("clickEvents").Array()
	require.Len(t, clicks, 2)
	assert.Equal(t, "#buy", clicks[0].Get("selector").String())
	assert.Equal(t, "click_buy", clicks[0].Get("eventName").String())
	assert.Equal(t, "click_help", clicks[1].Get("eventName").String())
	assert.Equal(t, "+34666111222", clicks[1].Get("customAttributes.CustomerPhone").String())
	assert.False(t, clicks[1].Get("customAttributes.CustomerEmail").Exists())

	idle := payload(t, s, compiler.CommandTrackIdleEvents).Get("idleEvents.0")
	assert.Equal(t, int64(journey.DefaultIdleAfterSeconds), idle.Get("idleAfterSeconds").Int())
	assert.Equal(t, "idle_stall", idle.Get("eventName").String())

	view := payload(t, s, compiler.CommandTrackInViewport).Get("inViewportEvents.0")
	assert.Equal(t, "#hero", view.Get("selector").String())
	assert.Equal(t, "viewport_hero", view.Get("eventName").String())

	scroll := payload(t, s, compiler.CommandTrackScrollDepth).Get("scrollDepthEvents.0")
	assert.Equal(t, int64(50), scroll.Get("percentage").Int())
	assert.Equal(t, "scroll_half", scroll.Get("eventName").String())
	assert.Len(t, scroll.Get("traitsMapper").Array(), 5)
}

func TestCompile_DerivesEventNamesFromSuffix(t *testing.T) {
	cfg := baseConfig()
	cfg.ClickEvents = journey.ClickEventsSection{
		Enabled: true,
		ClickEvents: []journey.TrackedItem{
			{Selector: "#buy", EventNameSuffix: "buy", EventName: "stale_name"},
			{Selector: "#old", EventName: "click_old"},
		},
	}

	s, err := compiler.Compile(cfg, visitor)
	require.NoError(t, err)

	clicks := payload(t, s, compiler.CommandTrackClickEvents).Get("clickEvents").Array()
	require.Len(t, clicks, 2)
	assert.Equal(t, "click_buy", clicks[0].Get("eventName").String())
	assert.Equal(t, "click_old", clicks[1].Get("eventName").String())
	assert.Equal(t, "stale_name", cfg.ClickEvents.ClickEvents[0].EventName)
}

func TestCompile_EmptyListSection(t *testing.T) {
	cfg := baseConfig()
	cfg.ClickEvents.Enabled = true

	s, err := compiler.Compile(cfg, visitor)
	require.NoError(t, err)

	p := payload(t, s, compiler.CommandTrackClickEvents)
	assert.True(t, p.Get("clickEvents").IsArray())
	assert.Empty(t, p.Get("clickEvents").Array())
}

func TestCompile_ItemAttributesMerged(t *testing.T) {
	cfg := baseConfig()
	item := journey.NewClickEvent("#buy", "buy")
	item.CustomAttributes = []journey.CustomAttribute{{Name: "plan", Value: "pro"}}
	cfg.ClickEvents = journey.ClickEventsSection{Enabled: true, ClickEvents: []journey.TrackedItem{item}}

	s, err := compiler.Compile(cfg, visitor)
	require.NoError(t, err)

	attrs := payload(t, s, compiler.CommandTrackClickEvents).Get("clickEvents.0.customAttributes")
	assert.Equal(t, "pro", attrs.Get("plan").String())
	assert.Equal(t, "a@b.com", attrs.Get("CustomerEmail").String())
}

func TestCompile_DoesNotMutateConfig(t *testing.T) {
	cfg := allEnabled()
	before := *cfg
	_, err := compiler.Compile(cfg, visitor)
	require.NoError(t, err)
	assert.Equal(t, before, *cfg)
}

// =============================================================================
// RENDER
// =============================================================================

func TestRender_Ordering(t *testing.T) {
	s, err := compiler.Compile(allEnabled(), visitor)
	require.NoError(t, err)

	text, err := s.Render()
	require.NoError(t, err)

	load := strings.Index(text, `ys.onload`)
	ready := strings.Index(text, `"Journey.ready"`)
	pageview := strings.Index(text, `"Journey.pageview"`)
	scroll := strings.Index(text, `"Journey.trackScrollDepth"`)
	open := strings.Index(text, `"Journey.qualifiedOpenAction"`)

	require.True(t, load >= 0 && ready >= 0 && pageview >= 0 && scroll >= 0 && open >= 0)
	assert.Less(t, load, ready)
	assert.Less(t, pageview, scroll)
	assert.Less(t, scroll, open)
	assert.Contains(t, text, `"https://apps.mypurecloud.ie/genesys-bootstrap/genesys.min.js"`)
	assert.Contains(t, text, `props.openActionName !== "open_chat"`)
	assert.Contains(t, text, "launchChat")
	assert.Contains(t, text, ".catch(")
}

func TestRender_EscapesValues(t *testing.T) {
	cfg := baseConfig()
	cfg.OpenActionName = `x"</script><script>alert(1)//`

	s, err := compiler.Compile(cfg, visitor)
	require.NoError(t, err)

	text, err := s.Render()
	require.NoError(t, err)
	assert.NotContains(t, text, "</script>")
	assert.Contains(t, text, `x\"\u003c/script\u003e`)
}

func TestRender_EscapesPayloadStrings(t *testing.T) {
	cfg := baseConfig()
	cfg.ClickEvents = journey.ClickEventsSection{
		Enabled:     true,
		ClickEvents: []journey.TrackedItem{journey.NewClickEvent(`a[title="</script><b>&"]`, "buy")},
	}

	s, err := compiler.Compile(cfg, visitor)
	require.NoError(t, err)

	// The Script keeps the raw selector; only the rendered text is escaped.
	clicks := payload(t, s, compiler.CommandTrackClickEvents)
	assert.Equal(t, `a[title="</script><b>&"]`, clicks.Get("clickEvents.0.selector").String())

	text, err := s.Render()
	require.NoError(t, err)
	assert.NotContains(t, text, "</script>")
	assert.NotContains(t, text, "<b>")
	assert.Contains(t, text, `\u003c/script\u003e\u003cb\u003e\u0026`)
}

func TestRender_LogPrefix(t *testing.T) {
	s, err := compiler.Compile(baseConfig(), visitor, compiler.WithLogPrefix("Acme"))
	require.NoError(t, err)

	text, err := s.Render()
	require.NoError(t, err)
	assert.Contains(t, text, `"Acme - Execution started."`)
	assert.Contains(t, text, `"Acme - Error loading script."`)
}
