package sdk_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/compresr/journey-gateway/internal/sdk"
	"github.com/compresr/journey-gateway/internal/widget"
)

// widgetStub installs a fake chat widget API that records every call.
const widgetStub = `() => {
	window.__calls = [];
	window.embeddedservice_bootstrap = {
		prechatAPI: {
			setHiddenPrechatFields: (fields) => { window.__calls.push(["hidden", fields]); },
		},
		utilAPI: {
			showChatButton: () => { window.__calls.push(["showChatButton"]); },
			hideChatButton: () => { window.__calls.push(["hideChatButton"]); },
			launchChat: () => { window.__calls.push(["launchChat"]); return Promise.resolve(); },
		},
	};
}`

// openTestPage launches a headless browser, skipping when none is installed.
func openTestPage(t *testing.T) *rod.Page {
	t.Helper()
	if testing.Short() {
		t.Skip("browser tests skipped in -short mode")
	}
	bin, ok := launcher.LookPath()
	if !ok {
		t.Skip("no Chrome or Chromium found")
	}

	l := launcher.New().Bin(bin).Headless(true).Leakless(false)
	u, err := l.Launch()
	require.NoError(t, err)
	t.Cleanup(l.Kill)

	page, closePage, err := sdk.OpenPage(context.Background(), sdk.BrowserOptions{
		DebuggerURL: u,
		PageURL:     "about:blank",
		Timeout:     10 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(closePage)
	return page
}

func calls(t *testing.T, page *rod.Page) gjson.Result {
	t.Helper()
	res, err := page.Eval(`() => JSON.stringify(window.__calls || [])`)
	require.NoError(t, err)
	return gjson.Parse(res.Value.Str())
}

func TestWatchReady_WidgetReadyBeforeWatch(t *testing.T) {
	page := openTestPage(t)
	page.MustEval(widgetStub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var fired atomic.Int32
	require.NoError(t, sdk.WatchReady(ctx, page, 10*time.Millisecond, func() { fired.Add(1) }))

	assert.Eventually(t, func() bool { return fired.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}

func TestWatchReady_ReadyEventAfterWatch(t *testing.T) {
	page := openTestPage(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var fired atomic.Int32
	require.NoError(t, sdk.WatchReady(ctx, page, 10*time.Millisecond, func() { fired.Add(1) }))

	assert.Never(t, func() bool { return fired.Load() > 0 }, 100*time.Millisecond, 10*time.Millisecond)

	page.MustEval(`() => window.dispatchEvent(new Event("onEmbeddedMessagingReady"))`)
	assert.Eventually(t, func() bool { return fired.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestPageWidget_Unavailable(t *testing.T) {
	page := openTestPage(t)
	w := &sdk.PageWidget{Page: page}
	ctx := context.Background()

	assert.ErrorIs(t, w.SetHiddenFields(ctx, widget.HiddenFields{ConfigID: "cfg-1"}), widget.ErrUnavailable)
	assert.ErrorIs(t, w.Show(ctx), widget.ErrUnavailable)
	assert.ErrorIs(t, w.Launch(ctx), widget.ErrUnavailable)
}

func TestPageWidget_CallsWidgetAPI(t *testing.T) {
	page := openTestPage(t)
	page.MustEval(widgetStub)
	w := &sdk.PageWidget{Page: page}
	ctx := context.Background()

	require.NoError(t, w.SetHiddenFields(ctx, widget.HiddenFields{
		CustomerEmail: "a@b.com",
		CustomerPhone: "+34666111222",
		ConfigID:      "cfg-1",
	}))
	require.NoError(t, w.Show(ctx))
	require.NoError(t, w.Hide(ctx))
	require.NoError(t, w.Launch(ctx))

	got := calls(t, page)
	require.Len(t, got.Array(), 4)
	assert.Equal(t, "hidden", got.Get("0.0").String())
	assert.Equal(t, "cfg-1", got.Get("0.1.GPEConfigId").String())
	assert.Equal(t, "a@b.com", got.Get("0.1.CustomerEmail").String())
	assert.Equal(t, "showChatButton", got.Get("1.0").String())
	assert.Equal(t, "hideChatButton", got.Get("2.0").String())
	assert.Equal(t, "launchChat", got.Get("3.0").String())
}

func TestPageExecutor_EvaluatesBootstrap(t *testing.T) {
	page := openTestPage(t)

	require.NoError(t, (&sdk.PageExecutor{Page: page}).Execute(context.Background(), compileScript(t)))

	res, err := page.Eval(`() => typeof window.Genesys === "function" &&
		window._genesysJs === "Genesys" &&
		document.querySelector('script[src="https://apps.mypurecloud.ie/genesys-bootstrap/genesys.min.js"]') !== null`)
	require.NoError(t, err)
	assert.True(t, res.Value.Bool())
}

func TestPageExecutor_NilScript(t *testing.T) {
	err := (&sdk.PageExecutor{}).Execute(context.Background(), nil)
	assert.ErrorIs(t, err, sdk.ErrNilScript)
}
