package hostlink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/compresr/journey-gateway/internal/compiler"
	"github.com/compresr/journey-gateway/internal/orchestrator"
	"github.com/compresr/journey-gateway/internal/sdk"
	"github.com/compresr/journey-gateway/internal/widget"
)

var (
	_ sdk.Queue                = (*queue)(nil)
	_ sdk.Loader               = (*loader)(nil)
	_ widget.Widget            = (*bridge)(nil)
	_ orchestrator.Notifier    = (*notifier)(nil)
	_ orchestrator.ReadySource = (*readySource)(nil)
)

// Queue returns the page's SDK queue.
func (l *Link) Queue() sdk.Queue { return &queue{l} }

// Loader returns the page's SDK bundle loader.
func (l *Link) Loader() sdk.Loader { return &loader{l} }

// Bridge returns the page's chat widget.
func (l *Link) Bridge() widget.Widget { return &bridge{l} }

// Notifier returns a Notifier that shows toasts on the page.
func (l *Link) Notifier() orchestrator.Notifier { return &notifier{l} }

// Ready returns the page's chat widget ready signal.
func (l *Link) Ready() orchestrator.ReadySource { return &readySource{l} }

// ===== SDK =====

type queue struct{ l *Link }

func (q *queue) Command(ctx context.Context, name string, payload json.RawMessage) error {
	_, err := q.l.request(ctx, Message{Type: TypeCommand, Name: name, Payload: payload})
	return err
}

// Subscribe registers h locally before asking the page to forward signal,
// so an immediate signal is not lost.
func (q *queue) Subscribe(ctx context.Context, signal string, h sdk.Handler) error {
	q.l.mu.Lock()
	q.l.signals[signal] = append(q.l.signals[signal], h)
	q.l.mu.Unlock()
	_, err := q.l.request(ctx, Message{Type: TypeSubscribe, Name: signal})
	return err
}

type loader struct{ l *Link }

func (ld *loader) Load(ctx context.Context, b compiler.Bootstrap) error {
	payload, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode bootstrap: %w", err)
	}
	_, err = ld.l.request(ctx, Message{Type: TypeLoad, Payload: payload})
	return err
}

// ===== WIDGET =====

type bridge struct{ l *Link }

func (b *bridge) Show(ctx context.Context) error { return b.call(ctx, WidgetShow, nil) }
func (b *bridge) Hide(ctx context.Context) error { return b.call(ctx, WidgetHide, nil) }
func (b *bridge) Launch(ctx context.Context) error { return b.call(ctx, WidgetLaunch, nil) }

func (b *bridge) SetHiddenFields(ctx context.Context, fields widget.HiddenFields) error {
	payload, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	return b.call(ctx, WidgetHidden, payload)
}

// call skips the round trip when the page already reported the API missing.
func (b *bridge) call(ctx context.Context, method string, payload json.RawMessage) error {
	if caps, ok := b.l.Capabilities(); ok {
		if method == WidgetHidden && !caps.Prechat || method != WidgetHidden && !caps.Util {
			return widget.ErrUnavailable
		}
	}
	_, err := b.l.request(ctx, Message{Type: TypeWidget, Name: method, Payload: payload})
	return err
}

// ===== NOTIFICATIONS =====

type notifier struct{ l *Link }

func (n *notifier) Notify(_ context.Context, note orchestrator.Notification) {
	payload, err := json.Marshal(note)
	if err == nil {
		err = n.l.send(Message{Type: TypeNotify, Payload: payload})
	}
	if err != nil {
		n.l.logger.Warn().Err(err).Str("title", note.Title).Msg("notify failed")
	}
}

// ===== READY =====

type readySource struct{ l *Link }

// OnReady registers fn for every ready message. If the page already reported
// ready, fn also runs once now.
func (r *readySource) OnReady(fn func()) {
	r.l.mu.Lock()
	r.l.readyFns = append(r.l.readyFns, fn)
	already := r.l.ready
	r.l.mu.Unlock()
	if already {
		r.l.spawn(func(context.Context) { fn() })
	}
}
