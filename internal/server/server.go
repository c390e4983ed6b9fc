// Package server is the gateway's HTTP surface.
//
// DESIGN: One net/http mux serves three audiences:
//   - operators:  /v1/configs CRUD (authoring service, optional API key)
//   - pages:      /v1/bootstrap/{name}.js compiled script, /v1/link websocket
//   - monitoring: /health with metrics counters
//
// Each /v1/link connection gets its own hostlink.Link and orchestrator.
//
// FILES:
//   - server.go:     Server, New, Start, Shutdown, routes
//   - handlers.go:   route handlers
//   - link.go:       websocket host link handler
//   - errors.go:     JSON error envelope and status mapping
//   - middleware.go: recovery, rate limit, logging, security headers
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/compresr/journey-gateway/internal/authoring"
	"github.com/compresr/journey-gateway/internal/compiler"
	"github.com/compresr/journey-gateway/internal/config"
	"github.com/compresr/journey-gateway/internal/monitoring"
	"github.com/compresr/journey-gateway/internal/orchestrator"
	"github.com/compresr/journey-gateway/internal/registry"
)

// Header names.
const (
	HeaderRequestID = "X-Request-ID"
	HeaderAPIKey    = registry.HeaderAPIKey
)

// MaxRateLimitBuckets bounds the per-IP rate limiter map.
const MaxRateLimitBuckets = 10000

const defaultMaxBodyBytes = 1 << 20

// Version is reported by /health.
var Version = "dev"

// Server serves the gateway API.
type Server struct {
	cfg       *config.Config
	registry  registry.Registry
	authoring *authoring.Service
	compile   []compiler.Option

	logger        *monitoring.Logger
	requestLogger *monitoring.RequestLogger
	metrics       *monitoring.MetricsCollector
	alerts        *monitoring.AlertManager
	tracker       *monitoring.Tracker
	rateLimiter   *rateLimiter

	handler    http.Handler
	httpServer *http.Server
	started    time.Time
}

// New builds a Server over reg. The registry is owned by the caller.
func New(cfg *config.Config, reg registry.Registry) (*Server, error) {
	tracker, err := monitoring.NewTracker(monitoring.TelemetryConfig{
		Enabled:     cfg.Monitoring.TelemetryEnabled,
		LogPath:     cfg.Monitoring.TelemetryPath,
		LogToStdout: cfg.Monitoring.LogToStdout,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	logger := monitoring.Default()
	s := &Server{
		cfg:           cfg,
		registry:      reg,
		logger:        logger,
		requestLogger: monitoring.NewRequestLogger(logger),
		metrics:       monitoring.NewMetricsCollector(),
		alerts:        monitoring.NewAlertManager(logger, monitoring.AlertConfig{SlowRunThreshold: cfg.Monitoring.SlowRunThreshold}),
		tracker:       tracker,
		started:       time.Now(),
		compile: []compiler.Option{
			compiler.WithGlobalName(cfg.Bootstrap.GlobalName),
			compiler.WithBundlePath(cfg.Bootstrap.BundlePath),
			compiler.WithLogPrefix(cfg.Bootstrap.LogPrefix),
		},
	}
	if cached, ok := reg.(*registry.Cached); ok {
		cached.SetMetrics(s.metrics)
	}
	s.authoring = authoring.New(reg, orchestrator.NotifierFunc(s.logNotification), logger)
	if cfg.Server.RateLimit > 0 {
		s.rateLimiter = newRateLimiter(cfg.Server.RateLimit)
	}
	s.handler = s.routes()
	return s, nil
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Metrics returns the server's counters.
func (s *Server) Metrics() *monitoring.MetricsCollector { return s.metrics }

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /v1/configs", s.handleListConfigs)
	mux.Handle("POST /v1/configs", s.requireAPIKey(http.HandlerFunc(s.handleSaveConfig)))
	mux.HandleFunc("GET /v1/configs/{id}", s.handleGetConfig)
	mux.Handle("DELETE /v1/configs/{id}", s.requireAPIKey(http.HandlerFunc(s.handleDeleteConfig)))
	mux.HandleFunc("GET /v1/configs/by-name/{name}", s.handleGetConfigByName)
	mux.HandleFunc("GET /v1/configs/by-name/{name}/id", s.handleResolveIdentifier)

	mux.HandleFunc("GET /v1/bootstrap/{file}", s.handleBootstrapScript)
	mux.HandleFunc("GET /v1/link", s.handleLink)

	var h http.Handler = mux
	h = s.security(h)
	h = s.loggingMiddleware(h)
	if s.rateLimiter != nil {
		h = s.rateLimit(h)
	}
	return s.panicRecovery(h)
}

// Start listens on the configured port. Blocks until Shutdown.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.handler,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}
	log.Info().Int("port", s.cfg.Server.Port).Str("registry", s.cfg.Registry.Type).Msg("journey gateway listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server and background workers.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	if s.rateLimiter != nil {
		s.rateLimiter.stop()
	}
	_ = s.tracker.Close()
	return err
}

func (s *Server) logNotification(ctx context.Context, n orchestrator.Notification) {
	event := s.logger.Info()
	if n.Severity == orchestrator.SeverityError {
		event = s.logger.Warn()
	}
	event.Str("request_id", monitoring.RequestIDFromContext(ctx)).
		Str("severity", string(n.Severity)).
		Str("title", n.Title).
		Msg(n.Message)
}
