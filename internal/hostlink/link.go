// Package hostlink connects the gateway to a host page over a websocket.
//
// DESIGN: The page runs a thin shim that owns the SDK queue global and the
// chat widget. The gateway drives it with request messages correlated by
// uuid; the page answers each with a reply. Unsolicited page messages
// (ready, contact, signal) are dispatched on their own goroutines so a
// handler may issue requests without blocking the read loop.
//
// FILES:
//   - link.go:          Link, read loop, request/reply correlation
//   - messages.go:      Message envelope and type names
//   - collaborators.go: sdk.Queue, sdk.Loader, widget.Widget, Notifier and
//     ReadySource views of a Link
package hostlink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/compresr/journey-gateway/internal/config"
	"github.com/compresr/journey-gateway/internal/monitoring"
	"github.com/compresr/journey-gateway/internal/sdk"
	"github.com/compresr/journey-gateway/internal/widget"
)

const (
	defaultReplyTimeout = 10 * time.Second
	defaultWriteTimeout = 5 * time.Second
)

var (
	// ErrClosed is returned for requests on a closed link.
	ErrClosed = errors.New("host link closed")

	// ErrReplyTimeout is returned when the page does not answer in time.
	ErrReplyTimeout = errors.New("host page did not reply")
)

// RemoteError is an error reported by the page in a reply.
type RemoteError struct {
	Type    string
	Name    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("host page %s %s: %s", e.Type, e.Name, e.Message)
}

// Handler processes an unsolicited page message.
type Handler func(ctx context.Context, payload []byte)

// Link is one host page connection.
type Link struct {
	ID string

	conn         *websocket.Conn
	replyTimeout time.Duration
	writeTimeout time.Duration
	logger       *monitoring.Logger
	reqLog       *monitoring.RequestLogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	pending  map[string]chan Message
	signals  map[string][]sdk.Handler
	handlers map[string]Handler
	readyFns []func()
	ready    bool
	caps     Capabilities
}

// New wraps an accepted or dialed connection. Call Run to start reading.
func New(conn *websocket.Conn, cfg config.HostlinkConfig, logger *monitoring.Logger) *Link {
	if logger == nil {
		logger = monitoring.Default()
	}
	l := &Link{
		ID:           uuid.New().String(),
		conn:         conn,
		replyTimeout: cfg.ReplyTimeout,
		writeTimeout: cfg.WriteTimeout,
		pending:      make(map[string]chan Message),
		signals:      make(map[string][]sdk.Handler),
		handlers:     make(map[string]Handler),
	}
	l.logger = logger.With("link_id", l.ID)
	l.reqLog = monitoring.NewRequestLogger(l.logger)
	if l.replyTimeout <= 0 {
		l.replyTimeout = defaultReplyTimeout
	}
	if l.writeTimeout <= 0 {
		l.writeTimeout = defaultWriteTimeout
	}
	if cfg.ReadLimit > 0 {
		conn.SetReadLimit(cfg.ReadLimit)
	}
	l.ctx, l.cancel = context.WithCancel(context.Background())
	return l
}

// Handle registers fn for an unsolicited message type such as TypeContact.
func (l *Link) Handle(typ string, fn Handler) {
	l.mu.Lock()
	l.handlers[typ] = fn
	l.mu.Unlock()
}

// Capabilities returns what the page reported in its last ready message.
func (l *Link) Capabilities() (Capabilities, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.caps, l.ready
}

// Run reads page messages until the connection or ctx closes, then releases
// every pending request. Blocks.
func (l *Link) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, l.cancel)
	defer stop()
	defer l.shutdown()

	for {
		_, data, err := l.conn.Read(l.ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure || l.ctx.Err() != nil {
				return nil
			}
			return err
		}
		l.dispatch(data)
	}
}

// Close stops the link; Run returns once in-flight handlers finish.
func (l *Link) Close() error {
	l.cancel()
	return nil
}

func (l *Link) shutdown() {
	l.cancel()
	l.wg.Wait()
	_ = l.conn.Close(websocket.StatusNormalClosure, "")
}

func (l *Link) dispatch(data []byte) {
	typ := gjson.GetBytes(data, "type").String()
	l.reqLog.LogLinkEvent(&monitoring.LinkEventInfo{LinkID: l.ID, Direction: "in", Type: typ, Size: len(data)})

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		l.logger.Warn().Err(err).Msg("invalid host message")
		return
	}

	switch msg.Type {
	case TypeReply:
		l.mu.Lock()
		ch, ok := l.pending[msg.ID]
		delete(l.pending, msg.ID)
		l.mu.Unlock()
		if !ok {
			l.logger.Debug().Str("id", msg.ID).Msg("reply for unknown request")
			return
		}
		ch <- msg

	case TypeReady:
		var caps Capabilities
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &caps); err != nil {
				l.logger.Warn().Err(err).Msg("invalid ready capabilities")
			}
		}
		l.mu.Lock()
		l.ready = true
		l.caps = caps
		fns := append([]func(){}, l.readyFns...)
		l.mu.Unlock()
		l.logger.Debug().Bool("prechat", caps.Prechat).Bool("util", caps.Util).Msg("widget ready")
		for _, fn := range fns {
			l.spawn(func(context.Context) { fn() })
		}

	case TypeSignal:
		l.mu.Lock()
		hs := append([]sdk.Handler(nil), l.signals[msg.Name]...)
		l.mu.Unlock()
		payload := []byte(msg.Payload)
		for _, h := range hs {
			l.spawn(func(context.Context) { h(payload) })
		}

	default:
		l.mu.Lock()
		h, ok := l.handlers[msg.Type]
		l.mu.Unlock()
		if !ok {
			l.logger.Debug().Str("type", msg.Type).Msg("unhandled host message")
			return
		}
		payload := []byte(msg.Payload)
		l.spawn(func(ctx context.Context) { h(ctx, payload) })
	}
}

// spawn runs fn on a goroutine that Run waits for before returning.
func (l *Link) spawn(fn func(ctx context.Context)) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		fn(l.ctx)
	}()
}

// send writes one message with the write timeout.
func (l *Link) send(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(l.ctx, l.writeTimeout)
	defer cancel()
	if err := l.conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		if l.ctx.Err() != nil {
			return ErrClosed
		}
		return err
	}
	l.reqLog.LogLinkEvent(&monitoring.LinkEventInfo{LinkID: l.ID, Direction: "out", Type: msg.Type, Size: len(data)})
	return nil
}

// request sends msg and waits for the matching reply.
func (l *Link) request(ctx context.Context, msg Message) (Message, error) {
	msg.ID = uuid.New().String()
	ch := make(chan Message, 1)
	l.mu.Lock()
	l.pending[msg.ID] = ch
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		delete(l.pending, msg.ID)
		l.mu.Unlock()
	}()

	if err := l.send(msg); err != nil {
		return Message{}, fmt.Errorf("send %s: %w", msg.Type, err)
	}

	timer := time.NewTimer(l.replyTimeout)
	defer timer.Stop()
	select {
	case reply := <-ch:
		if reply.Error == "" {
			return reply, nil
		}
		if reply.Error == ReplyUnavailable {
			return reply, widget.ErrUnavailable
		}
		return reply, &RemoteError{Type: msg.Type, Name: msg.Name, Message: reply.Error}
	case <-timer.C:
		return Message{}, fmt.Errorf("%s %s: %w", msg.Type, msg.Name, ErrReplyTimeout)
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case <-l.ctx.Done():
		return Message{}, ErrClosed
	}
}
