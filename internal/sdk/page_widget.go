package sdk

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"

	"github.com/compresr/journey-gateway/internal/widget"
)

// readyFlag is set by the page listener installed in WatchReady.
const readyFlag = "__journeyWidgetReady"

// PageWidget drives the chat widget API of a browser page.
type PageWidget struct {
	Page *rod.Page
}

var _ widget.Widget = (*PageWidget)(nil)

// Show makes the chat button visible.
func (w *PageWidget) Show(ctx context.Context) error {
	return w.util(ctx, "showChatButton")
}

// Hide hides the chat button.
func (w *PageWidget) Hide(ctx context.Context) error {
	return w.util(ctx, "hideChatButton")
}

// Launch opens a conversation and waits for the widget's promise.
func (w *PageWidget) Launch(ctx context.Context) error {
	return w.util(ctx, "launchChat")
}

// SetHiddenFields injects the hidden pre-chat fields.
func (w *PageWidget) SetHiddenFields(ctx context.Context, fields widget.HiddenFields) error {
	body, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	res, err := w.Page.Context(ctx).Evaluate(rod.Eval(`(fields) => {
		const esb = window.embeddedservice_bootstrap;
		if (!esb || !esb.prechatAPI) return false;
		esb.prechatAPI.setHiddenPrechatFields(JSON.parse(fields));
		return true;
	}`, string(body)).ByPromise())
	if err != nil {
		return fmt.Errorf("set hidden fields: %w", err)
	}
	if !res.Value.Bool() {
		return widget.ErrUnavailable
	}
	return nil
}

func (w *PageWidget) util(ctx context.Context, method string) error {
	res, err := w.Page.Context(ctx).Evaluate(rod.Eval(`async (method) => {
		const esb = window.embeddedservice_bootstrap;
		if (!esb || !esb.utilAPI) return false;
		await esb.utilAPI[method]();
		return true;
	}`, method).ByPromise())
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	if !res.Value.Bool() {
		return widget.ErrUnavailable
	}
	return nil
}

// readyScript marks the widget ready when its pre-chat API is already on the
// page (the ready event fired during page load) and otherwise listens for the
// ready event. Safe to evaluate more than once.
var readyScript = strings.ReplaceAll(`() => {
	const esb = window.embeddedservice_bootstrap;
	if (esb && esb.prechatAPI) {
		window.FLAG = true;
		return;
	}
	if (window.FLAG !== undefined) return;
	window.FLAG = false;
	window.addEventListener("onEmbeddedMessagingReady", () => { window.FLAG = true; });
}`, "FLAG", readyFlag)

// WatchReady installs a listener for the widget's ready event and polls it
// until it fires or ctx ends. A widget that became ready before the call is
// reported on the first poll. fn is called at most once.
func WatchReady(ctx context.Context, page *rod.Page, interval time.Duration, fn func()) error {
	if _, err := page.Context(ctx).Eval(readyScript); err != nil {
		return fmt.Errorf("install ready listener: %w", err)
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				res, err := page.Context(ctx).Eval(`() => window.` + readyFlag + ` === true`)
				if err != nil {
					continue
				}
				if res.Value.Bool() {
					fn()
					return
				}
			}
		}
	}()
	return nil
}
