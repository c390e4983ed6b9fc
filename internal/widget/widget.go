// Package widget describes the chat widget surface the gateway drives.
//
// The widget lives in the host page. Implementations (hostlink/) forward each
// call to the page and return ErrUnavailable when the page reported that the
// widget API is absent.
package widget

import (
	"context"
	"errors"
)

// ErrUnavailable indicates the widget API is not present on the page.
var ErrUnavailable = errors.New("chat widget API not available")

// Bridge shows, hides and launches the chat widget.
type Bridge interface {
	Show(ctx context.Context) error
	Hide(ctx context.Context) error
	Launch(ctx context.Context) error
}

// HiddenFieldSetter injects hidden pre-chat fields.
type HiddenFieldSetter interface {
	SetHiddenFields(ctx context.Context, fields HiddenFields) error
}

// Widget is the full surface used by the orchestrator.
type Widget interface {
	Bridge
	HiddenFieldSetter
}

// HiddenFields is the pre-chat payload that links a conversation to the
// visitor and the configuration that launched it.
type HiddenFields struct {
	CustomerEmail string `json:"CustomerEmail"`
	CustomerPhone string `json:"CustomerPhone"`
	ConfigID      string `json:"GPEConfigId"`
}
