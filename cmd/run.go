package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-rod/rod"
	"github.com/rs/zerolog/log"

	"github.com/compresr/journey-gateway/internal/contact"
	"github.com/compresr/journey-gateway/internal/monitoring"
	"github.com/compresr/journey-gateway/internal/orchestrator"
	"github.com/compresr/journey-gateway/internal/registry"
	"github.com/compresr/journey-gateway/internal/sdk"
)

const defaultPollInterval = 500 * time.Millisecond

// runBrowser opens a page, runs one bootstrap in it through the orchestrator
// and reports the final state. With --hold the page stays open until
// interrupted. Returns the exit code.
func runBrowser(args []string) int {
	loadEnvFiles()

	fs := newFlagSet("run")
	configPath := fs.String("config", "", "path to config file")
	name := fs.String("name", "", "configuration name (default: orchestrator.config_name)")
	pageURL := fs.String("url", "about:blank", "page to open")
	email := fs.String("email", "", "visitor email; with --phone, submits contact details")
	phone := fs.String("phone", "", "visitor phone (E.164)")
	headful := fs.Bool("headful", false, "show the launched browser")
	hold := fs.Bool("hold", false, "keep the page open until interrupted")
	launch := fs.Bool("launch-chat", false, "open the chat widget once ready")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(args)

	cfg, _, err := loadConfig(*configPath, *debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if *name != "" {
		cfg.Orchestrator.ConfigName = *name
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg, err := registry.Open(ctx, cfg.Registry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: open registry: %v\n", err)
		return 1
	}
	defer reg.Close()

	page, closePage, err := sdk.OpenPage(ctx, sdk.BrowserOptions{
		DebuggerURL: cfg.Browser.DebuggerURL,
		Headless:    cfg.Browser.Headless && !*headful,
		PageURL:     *pageURL,
		Timeout:     cfg.Browser.NavTimeout,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closePage()

	orch := newPageOrchestrator(ctx, cfg.Browser.PollInterval, page, reg, cfg.Orchestrator.ConfigName,
		orchestrator.WithStageTimeout(cfg.Orchestrator.StageTimeout),
		orchestrator.WithCompileOptions(bootstrapOptions(cfg)...),
		orchestrator.WithObserver(func(t orchestrator.Transition) {
			log.Info().Str("run_id", t.RunID).Str("from", t.From.String()).Str("to", t.To.String()).Msg("state")
		}),
	)
	defer orch.Close()

	var run *orchestrator.Run
	if *email != "" || *phone != "" {
		run, err = orch.Submit(ctx, contact.Contact{Email: *email, Phone: *phone})
	} else {
		run, err = orch.Load(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	state, err := run.Wait(ctx)
	fmt.Printf("%s: %s\n", run.ConfigName, state)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if *launch {
		if err := orch.LaunchChat(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}
	if *hold {
		log.Info().Msg("page open; press Ctrl-C to exit")
		<-ctx.Done()
	}
	return 0
}

// newPageOrchestrator wires an orchestrator to a browser page: the page
// executes the script, drives the widget and reports widget readiness.
func newPageOrchestrator(ctx context.Context, poll time.Duration, page *rod.Page, reg orchestrator.Registry, name string, opts ...orchestrator.Option) *orchestrator.Orchestrator {
	if poll <= 0 {
		poll = defaultPollInterval
	}
	logger := monitoring.Default()
	ready := orchestrator.ReadyFunc(func(fn func()) {
		if err := sdk.WatchReady(ctx, page, poll, fn); err != nil {
			logger.Warn().Err(err).Msg("chat widget readiness not observed")
		}
	})
	notifier := orchestrator.NotifierFunc(func(_ context.Context, n orchestrator.Notification) {
		event := logger.Info()
		switch n.Severity {
		case orchestrator.SeverityError:
			event = logger.Error()
		case orchestrator.SeverityWarning:
			event = logger.Warn()
		}
		event.Str("title", n.Title).Msg(n.Message)
	})

	opts = append([]orchestrator.Option{
		orchestrator.WithConfigName(name),
		orchestrator.WithLogger(logger),
	}, opts...)
	return orchestrator.New(orchestrator.Deps{
		Registry: reg,
		Executor: &sdk.PageExecutor{Page: page},
		Widget:   &sdk.PageWidget{Page: page},
		Ready:    ready,
		Notifier: notifier,
	}, opts...)
}
