package sdk

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/compresr/journey-gateway/internal/compiler"
	"github.com/compresr/journey-gateway/internal/widget"
)

// ErrNilScript is returned by executors given no script.
var ErrNilScript = errors.New("execute: nil script")

// openActionPath locates the action name in a qualifiedOpenAction event.
const openActionPath = "data.openActionProperties.openActionName"

// QueueExecutor replays a Script through a Queue.
//
// Sequence: Load bundle -> subscribe Journey.ready -> (on ready) issue every
// command in order -> subscribe Journey.qualifiedOpenAction. A failed bundle
// load is only logged; the SDK simply never becomes ready.
type QueueExecutor struct {
	Queue  Queue
	Loader Loader
	Widget widget.Bridge // optional; nil disables the chat hand-off
}

var _ Executor = (*QueueExecutor)(nil)

// Execute starts the bootstrap and returns once the ready subscription is in place.
func (e *QueueExecutor) Execute(ctx context.Context, s *compiler.Script) error {
	if s == nil {
		return ErrNilScript
	}

	if err := e.Loader.Load(ctx, s.Bootstrap); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Error().Err(err).
			Str("config", s.ConfigName).
			Str("bundle", s.Bootstrap.BundleURL).
			Msg("sdk bundle failed to load")
		return nil
	}

	// Handlers outlive the Execute call.
	hctx := context.WithoutCancel(ctx)

	var once sync.Once
	err := e.Queue.Subscribe(ctx, compiler.SignalReady, func([]byte) {
		once.Do(func() { e.onReady(hctx, s) })
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", compiler.SignalReady, err)
	}
	return nil
}

func (e *QueueExecutor) onReady(ctx context.Context, s *compiler.Script) {
	log.Debug().Str("config", s.ConfigName).Int("commands", len(s.Commands)).Msg("sdk ready")

	for _, cmd := range s.Commands {
		if err := e.Queue.Command(ctx, cmd.Name, cmd.Payload); err != nil {
			log.Error().Err(err).Str("command", cmd.Name).Msg("tracker command failed")
		}
	}

	err := e.Queue.Subscribe(ctx, s.OpenAction.Signal, func(event []byte) {
		e.onOpenAction(ctx, s.OpenAction, event)
	})
	if err != nil {
		log.Error().Err(err).Str("signal", s.OpenAction.Signal).Msg("open action subscription failed")
	}
}

func (e *QueueExecutor) onOpenAction(ctx context.Context, action compiler.OpenAction, event []byte) {
	name := gjson.GetBytes(event, openActionPath)
	if !name.Exists() || name.String() != action.ActionName {
		return
	}
	if e.Widget == nil {
		log.Warn().Str("action", action.ActionName).Msg("open action matched but no chat widget is attached")
		return
	}

	if err := e.Widget.Show(ctx); err != nil {
		log.Error().Err(err).Msg("chat widget show failed")
		if errors.Is(err, widget.ErrUnavailable) {
			return
		}
	}
	if err := e.Widget.Launch(ctx); err != nil {
		log.Error().Err(err).Msg("chat launch failed")
		return
	}
	log.Info().Str("action", action.ActionName).Msg("chat launched")
}
