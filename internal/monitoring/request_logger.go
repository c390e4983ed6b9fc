// Package monitoring - request_logger.go traces HTTP requests and host link traffic.
//
// DESIGN: Debug-level only. A request is a span:
//   - Begin: logs the incoming request and captures its start time
//   - End:   logs status, size and latency, and returns the latency to the caller
//
// Host link messages are one line each (LogLinkEvent).
package monitoring

import (
	"net/http"
	"time"
)

// RequestLogger traces request lifecycles.
type RequestLogger struct {
	logger *Logger
}

// NewRequestLogger creates a new request logger.
func NewRequestLogger(logger *Logger) *RequestLogger {
	return &RequestLogger{logger: logger}
}

// RequestSpan is one in-flight request.
type RequestSpan struct {
	rl     *RequestLogger
	ID     string
	Method string
	Path   string
	Start  time.Time
}

// Begin logs an incoming request.
func (rl *RequestLogger) Begin(r *http.Request, requestID string) *RequestSpan {
	span := &RequestSpan{
		rl:     rl,
		ID:     requestID,
		Method: r.Method,
		Path:   r.URL.Path,
		Start:  time.Now(),
	}
	rl.logger.Debug().
		Str("request_id", requestID).
		Str("method", span.Method).
		Str("path", span.Path).
		Int64("content_length", max(r.ContentLength, 0)).
		Str("remote", r.RemoteAddr).
		Msg("incoming")
	return span
}

// End logs the response and returns the request latency.
func (s *RequestSpan) End(status, size int) time.Duration {
	latency := time.Since(s.Start)
	s.rl.logger.Debug().
		Str("request_id", s.ID).
		Int("status", status).
		Int("size", size).
		Dur("latency", latency).
		Msg("response")
	return latency
}

// LinkEventInfo describes one host link message.
type LinkEventInfo struct {
	LinkID    string
	Direction string // "in" or "out"
	Type      string
	Size      int
}

// LogLinkEvent logs a host link message.
func (rl *RequestLogger) LogLinkEvent(info *LinkEventInfo) {
	rl.logger.Debug().
		Str("link_id", info.LinkID).
		Str("dir", info.Direction).
		Str("type", info.Type).
		Int("size", info.Size).
		Msg("link")
}
