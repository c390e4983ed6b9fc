package sdk

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"

	"github.com/compresr/journey-gateway/internal/compiler"
)

// BrowserOptions selects how a page is obtained.
type BrowserOptions struct {
	DebuggerURL string        // connect to a running browser; empty launches one
	Headless    bool          // for launched browsers
	PageURL     string        // page to open before executing
	Timeout     time.Duration // navigation timeout; 0 means 30s
}

// OpenPage connects to (or launches) a browser and opens PageURL.
// The returned close func releases the page and the browser.
func OpenPage(ctx context.Context, opts BrowserOptions) (*rod.Page, func(), error) {
	controlURL := opts.DebuggerURL
	if controlURL == "" {
		url, err := launcher.New().Headless(opts.Headless).Launch()
		if err != nil {
			return nil, nil, fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, nil, fmt.Errorf("connect to chrome: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: opts.PageURL})
	if err != nil {
		_ = browser.Close()
		return nil, nil, fmt.Errorf("create page: %w", err)
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if err := page.Timeout(timeout).WaitLoad(); err != nil {
		log.Warn().Err(err).Str("url", opts.PageURL).Msg("page load did not complete")
	}

	closeFn := func() {
		_ = page.Close()
		_ = browser.Close()
	}
	return page, closeFn, nil
}

// PageExecutor evaluates the rendered script in a browser page.
type PageExecutor struct {
	Page *rod.Page
}

var _ Executor = (*PageExecutor)(nil)

// Execute renders s and evaluates it. A script exception is returned.
func (e *PageExecutor) Execute(ctx context.Context, s *compiler.Script) error {
	if s == nil {
		return ErrNilScript
	}
	text, err := s.Render()
	if err != nil {
		return err
	}
	if _, err := e.Page.Context(ctx).Evaluate(rod.Eval("() => {\n" + text + "\n}")); err != nil {
		return fmt.Errorf("evaluate bootstrap for %s: %w", s.ConfigName, err)
	}
	log.Debug().Str("config", s.ConfigName).Msg("bootstrap evaluated in page")
	return nil
}
