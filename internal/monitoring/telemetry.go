// Package monitoring - telemetry.go records events to a JSONL file.
//
// DESIGN: Tracker appends one JSON object per line to a single file kept open
// for the tracker's lifetime:
//   - RunEvent:     every terminal bootstrap run transition
//   - RequestEvent: every request through the HTTP server
//
// Each record carries an "event" discriminator ("run" or "request"). A nil or
// disabled Tracker accepts every call and records nothing.
package monitoring

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

// Tracker appends telemetry events to a JSONL file.
type Tracker struct {
	cfg    TelemetryConfig
	mu     sync.Mutex
	file   *os.File
	enc    *json.Encoder
	counts map[string]int
}

// NewTracker opens (creating if needed) the telemetry file.
func NewTracker(cfg TelemetryConfig) (*Tracker, error) {
	t := &Tracker{cfg: cfg, counts: make(map[string]int)}
	if !cfg.Enabled || cfg.LogPath == "" {
		return t, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.LogPath), 0750); err != nil {
		return nil, fmt.Errorf("telemetry dir: %w", err)
	}
	f, err := os.OpenFile(cfg.LogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("telemetry file: %w", err)
	}
	t.file = f
	t.enc = json.NewEncoder(f)
	return t, nil
}

// RecordRun records a run event.
func (t *Tracker) RecordRun(event *RunEvent) {
	if !t.enabled() {
		return
	}
	if t.cfg.LogToStdout {
		log.Info().
			Str("run_id", shortID(event.RunID)).
			Str("config", event.ConfigName).
			Str("state", event.State).
			Str("kind", event.ErrorKind).
			Int64("latency_ms", event.LatencyMs).
			Msg("telemetry")
	}
	t.record("run", event)
}

// RecordRequest records a request event.
func (t *Tracker) RecordRequest(event *RequestEvent) {
	if !t.enabled() {
		return
	}
	t.record("request", event)
}

// Counts returns how many events of each kind were written.
func (t *Tracker) Counts() map[string]int {
	out := make(map[string]int)
	if t == nil {
		return out
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, v := range t.counts {
		out[k] = v
	}
	return out
}

// Close logs a summary and closes the file.
func (t *Tracker) Close() error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.file == nil {
		return nil
	}
	log.Info().
		Str("path", t.cfg.LogPath).
		Int("runs", t.counts["run"]).
		Int("requests", t.counts["request"]).
		Msg("telemetry: session complete")

	err := t.file.Close()
	t.file, t.enc = nil, nil
	return err
}

func (t *Tracker) enabled() bool {
	return t != nil && t.cfg.Enabled
}

func (t *Tracker) record(kind string, event any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.enc == nil {
		return
	}
	line := struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}{kind, event}
	if err := t.enc.Encode(line); err != nil {
		log.Error().Err(err).Str("path", t.cfg.LogPath).Msgf("telemetry: failed to write %s event", kind)
		return
	}
	t.counts[kind]++
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
