// Package sdktest provides an in-memory SDK queue, loader and chat widget that
// record every call, for tests of code built on sdk/ and widget/.
package sdktest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/compresr/journey-gateway/internal/compiler"
	"github.com/compresr/journey-gateway/internal/sdk"
	"github.com/compresr/journey-gateway/internal/widget"
)

// Call is one recorded interaction.
type Call struct {
	Kind    string // load, command, subscribe, show, hide, launch, hidden
	Name    string
	Payload json.RawMessage
}

// Recorder implements sdk.Queue, sdk.Loader and widget.Widget.
type Recorder struct {
	mu       sync.Mutex
	calls    []Call
	handlers map[string][]sdk.Handler
	hidden   []widget.HiddenFields

	LoadErr   error
	ShowErr   error
	LaunchErr error
	HiddenErr error
}

var (
	_ sdk.Queue     = (*Recorder)(nil)
	_ sdk.Loader    = (*Recorder)(nil)
	_ widget.Widget = (*Recorder)(nil)
)

// New returns an empty Recorder.
func New() *Recorder {
	return &Recorder{handlers: make(map[string][]sdk.Handler)}
}

func (r *Recorder) record(c Call) {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()
}

// Load records the bundle URL.
func (r *Recorder) Load(_ context.Context, b compiler.Bootstrap) error {
	r.record(Call{Kind: "load", Name: b.BundleURL})
	return r.LoadErr
}

// Command records a tracker command.
func (r *Recorder) Command(_ context.Context, name string, payload json.RawMessage) error {
	r.record(Call{Kind: "command", Name: name, Payload: payload})
	return nil
}

// Subscribe records and registers h.
func (r *Recorder) Subscribe(_ context.Context, signal string, h sdk.Handler) error {
	r.mu.Lock()
	r.handlers[signal] = append(r.handlers[signal], h)
	r.calls = append(r.calls, Call{Kind: "subscribe", Name: signal})
	r.mu.Unlock()
	return nil
}

// Fire delivers event to every handler subscribed to signal.
func (r *Recorder) Fire(signal string, event []byte) {
	r.mu.Lock()
	hs := append([]sdk.Handler(nil), r.handlers[signal]...)
	r.mu.Unlock()
	for _, h := range hs {
		h(event)
	}
}

// Show records a show call.
func (r *Recorder) Show(context.Context) error {
	r.record(Call{Kind: "show"})
	return r.ShowErr
}

// Hide records a hide call.
func (r *Recorder) Hide(context.Context) error {
	r.record(Call{Kind: "hide"})
	return nil
}

// Launch records a launch call.
func (r *Recorder) Launch(context.Context) error {
	r.record(Call{Kind: "launch"})
	return r.LaunchErr
}

// SetHiddenFields records the injected fields.
func (r *Recorder) SetHiddenFields(_ context.Context, f widget.HiddenFields) error {
	r.mu.Lock()
	r.hidden = append(r.hidden, f)
	r.calls = append(r.calls, Call{Kind: "hidden", Name: f.ConfigID})
	r.mu.Unlock()
	return r.HiddenErr
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Kinds returns "kind:name" for each call, in order.
func (r *Recorder) Kinds() []string {
	calls := r.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Kind
		if c.Name != "" {
			out[i] += ":" + c.Name
		}
	}
	return out
}

// Hidden returns every SetHiddenFields payload.
func (r *Recorder) Hidden() []widget.HiddenFields {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]widget.HiddenFields(nil), r.hidden...)
}

// Count returns the number of calls of the given kind.
func (r *Recorder) Count(kind string) int {
	n := 0
	for _, c := range r.Calls() {
		if c.Kind == kind {
			n++
		}
	}
	return n
}
