package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"

	"github.com/compresr/journey-gateway/internal/contact"
	"github.com/compresr/journey-gateway/internal/hostlink"
	"github.com/compresr/journey-gateway/internal/orchestrator"
	"github.com/compresr/journey-gateway/internal/sdk"
)

// handleLink upgrades /v1/link?config=<name> to a host link and drives one
// orchestrator over it until the page disconnects.
func (s *Server) handleLink(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("config")
	if name == "" {
		name = s.cfg.Orchestrator.ConfigName
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.originPatterns(),
	})
	if err != nil {
		// Accept has already written the response.
		s.logger.Warn().Err(err).Msg("host link upgrade failed")
		return
	}

	link := hostlink.New(conn, s.cfg.Hostlink, s.logger)
	logger := s.logger.With("link_id", link.ID)

	orch := orchestrator.New(orchestrator.Deps{
		Registry: s.registry,
		Executor: &sdk.QueueExecutor{Queue: link.Queue(), Loader: link.Loader(), Widget: link.Bridge()},
		Widget:   link.Bridge(),
		Ready:    link.Ready(),
		Notifier: link.Notifier(),
	},
		orchestrator.WithConfigName(name),
		orchestrator.WithStageTimeout(s.cfg.Orchestrator.StageTimeout),
		orchestrator.WithCompileOptions(s.compile...),
		orchestrator.WithLogger(logger),
		orchestrator.WithMetrics(s.metrics),
		orchestrator.WithTracker(s.tracker),
		orchestrator.WithAlerts(s.alerts),
	)
	defer orch.Close()

	link.Handle(hostlink.TypeStart, func(ctx context.Context, _ []byte) {
		if _, err := orch.Load(ctx); err != nil {
			logger.Warn().Err(err).Msg("bootstrap not started")
		}
	})
	link.Handle(hostlink.TypeContact, func(ctx context.Context, payload []byte) {
		var c contact.Contact
		if err := json.Unmarshal(payload, &c); err != nil {
			s.alerts.FlagInvalidRequest(link.ID, "malformed contact payload")
			return
		}
		// Submit notifies the page itself on rejection.
		_, _ = orch.Submit(ctx, c)
	})
	link.Handle(hostlink.TypeLaunch, func(ctx context.Context, _ []byte) {
		_ = orch.LaunchChat(ctx)
	})

	logger.Info().Str("config", name).Str("remote", getClientIP(r)).Msg("host link connected")
	err = link.Run(r.Context())
	logger.Info().Err(err).Msg("host link closed")
}
