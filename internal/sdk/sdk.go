// Package sdk executes compiled scripts against the third-party tracking SDK.
//
// DESIGN: The SDK is a queue function on the host page accepting
// ("command", name, payload) and ("subscribe", signal, handler). Two executors:
//   - QueueExecutor: replays a compiler.Script through a Queue/Loader pair
//     (hostlink/ supplies both over the page websocket)
//   - PageExecutor:  renders the Script and evaluates it in a browser page (go-rod)
//
// FILES:
//   - sdk.go:            Queue, Loader, Executor interfaces
//   - queue_executor.go: QueueExecutor (ready gating, open-action hand-off)
//   - page_executor.go:  PageExecutor
package sdk

import (
	"context"
	"encoding/json"

	"github.com/compresr/journey-gateway/internal/compiler"
)

// Handler receives the JSON body of a subscribed signal.
type Handler func(event []byte)

// Queue is the SDK's command queue.
type Queue interface {
	Command(ctx context.Context, name string, payload json.RawMessage) error
	Subscribe(ctx context.Context, signal string, h Handler) error
}

// Loader loads the SDK bundle and defines the queue global.
type Loader interface {
	Load(ctx context.Context, b compiler.Bootstrap) error
}

// Executor runs a compiled Script. A nil return means the bootstrap was
// handed to the page; SDK readiness is asynchronous.
type Executor interface {
	Execute(ctx context.Context, s *compiler.Script) error
}
