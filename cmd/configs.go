package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/compresr/journey-gateway/internal/authoring"
	"github.com/compresr/journey-gateway/internal/journey"
	"github.com/compresr/journey-gateway/internal/monitoring"
	"github.com/compresr/journey-gateway/internal/orchestrator"
	"github.com/compresr/journey-gateway/internal/registry"
	"github.com/compresr/journey-gateway/internal/tui"
)

// runConfigs manages stored configurations:
//
//	configs list
//	configs show <id>
//	configs new [--from FILE]
//	configs edit <id> [--from FILE]
//	configs delete <id> [--yes]
func runConfigs(args []string, p *tui.Prompter, out io.Writer) int {
	loadEnvFiles()

	if len(args) == 0 {
		p.Error("usage: configs <list|show|new|edit|delete> [options]")
		return 2
	}
	action, args := args[0], args[1:]

	fs := flag.NewFlagSet("configs "+action, flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config file")
	from := fs.String("from", "", "read the configuration JSON from FILE instead of prompting")
	yes := fs.Bool("yes", false, "skip confirmation")
	debug := fs.Bool("debug", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, _, err := loadConfig(*configPath, *debug)
	if err != nil {
		p.Error(err.Error())
		return 1
	}
	ctx := context.Background()
	reg, err := registry.Open(ctx, cfg.Registry)
	if err != nil {
		p.Error("open registry: " + err.Error())
		return 1
	}
	defer reg.Close()

	svc := authoring.New(reg, promptNotifier(p), monitoring.Default())

	id := fs.Arg(0)
	if action == "new" {
		id = ""
	}
	needID := action == "show" || action == "edit" || action == "delete"
	if needID && id == "" {
		p.Error(fmt.Sprintf("configs %s requires an id", action))
		return 2
	}

	switch action {
	case "list":
		entries, err := svc.List(ctx)
		if err != nil {
			return 1
		}
		if len(entries) == 0 {
			p.Info("no configurations stored")
			return 0
		}
		for _, e := range entries {
			fmt.Fprintf(out, "%-38s %-30s %s\n", e.ID, e.Name, e.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return 0

	case "show":
		c, err := svc.Load(ctx, id)
		if err != nil {
			return 1
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		_ = enc.Encode(c)
		return 0

	case "new", "edit":
		c := journey.NewConfig("")
		if action == "edit" {
			if c, err = svc.Load(ctx, id); err != nil {
				return 1
			}
		}
		if *from != "" {
			c, err = readConfigFile(*from)
		} else {
			err = promptConfig(p, c, action == "new")
		}
		if err != nil {
			p.Error(err.Error())
			return 2
		}
		newID, err := svc.Save(ctx, c, id)
		if err != nil {
			return 1
		}
		fmt.Fprintln(out, newID)
		return 0

	case "delete":
		if !*yes && !p.YesNo(fmt.Sprintf("Delete configuration %s?", id), false) {
			p.Info("nothing deleted")
			return 0
		}
		if err := svc.Delete(ctx, id); err != nil {
			return 1
		}
		return 0
	}

	p.Error(fmt.Sprintf("unknown configs action %q", action))
	return 2
}

// promptNotifier shows authoring notifications as status lines.
func promptNotifier(p *tui.Prompter) orchestrator.Notifier {
	return orchestrator.NotifierFunc(func(_ context.Context, n orchestrator.Notification) {
		switch n.Severity {
		case orchestrator.SeveritySuccess:
			p.Success(n.Message)
		case orchestrator.SeverityError:
			p.Error(n.Message)
		case orchestrator.SeverityWarning:
			p.Warn(n.Message)
		default:
			p.Info(n.Message)
		}
	})
}

func readConfigFile(path string) (*journey.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c journey.Config
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &c, nil
}

// ===== INTERACTIVE FORM =====

// promptConfig fills c from the terminal, offering its current values as
// defaults. The open action name is only required on create.
func promptConfig(p *tui.Prompter, c *journey.Config, create bool) error {
	p.Header("Tracking configuration")

	var err error
	if c.ConfigName, err = p.String("Configuration Name", c.ConfigName, true); err != nil {
		return err
	}

	domains := journey.Domains()
	items := make([]tui.MenuItem, len(domains))
	current := 0
	for i, d := range domains {
		env, _ := journey.EnvironmentForDomain(d)
		items[i] = tui.MenuItem{Label: d, Description: env}
		if d == c.Domain {
			current = i
		}
	}
	idx, err := p.Select("GC Domain", items, current)
	if err != nil {
		return err
	}
	c.Domain = domains[idx]
	c.Environment = items[idx].Description

	fields := []struct {
		label    string
		value    *string
		required bool
	}{
		{"GC Messaging Deployment ID", &c.MessagingDeploymentID, true},
		{"Open Action Name", &c.OpenActionName, create},
		{"SF WM URL", &c.WidgetURL, true},
		{"SF Org ID", &c.OrgID, true},
		{"SF WM Name", &c.WidgetName, true},
	}
	for _, f := range fields {
		if *f.value, err = p.String(f.label, *f.value, f.required); err != nil {
			return err
		}
	}

	p.Header("Tracking")
	if c.Pageview.Enabled = p.YesNo("Track page views?", c.Pageview.Enabled); c.Pageview.Enabled {
		c.Pageview.CaptureAll = p.YesNo("  Capture every page?", c.Pageview.CaptureAll)
	}
	if c.FormsTrack.Enabled = p.YesNo("Track forms?", c.FormsTrack.Enabled); c.FormsTrack.Enabled {
		if c.FormsTrack.CaptureAll = p.YesNo("  Capture every form?", c.FormsTrack.CaptureAll); !c.FormsTrack.CaptureAll {
			if c.FormsTrack.Selector, err = p.String("  Form selector", c.FormsTrack.Selector, true); err != nil {
				return err
			}
		}
	}

	lists := []struct {
		label   string
		enabled *bool
		items   *[]journey.TrackedItem
		rule    func() (journey.TrackedItem, error)
	}{
		{"click events", &c.ClickEvents.Enabled, &c.ClickEvents.ClickEvents, selectorRule(p, journey.NewClickEvent)},
		{"idle events", &c.IdleEvents.Enabled, &c.IdleEvents.IdleEvents, numberRule(p, "Idle after seconds", journey.DefaultIdleAfterSeconds, journey.NewIdleEvent)},
		{"in-viewport events", &c.InViewport.Enabled, &c.InViewport.InViewportEvents, selectorRule(p, journey.NewViewportEvent)},
		{"scroll depth", &c.ScrollDepth.Enabled, &c.ScrollDepth.ScrollDepthEvents, numberRule(p, "Scroll percentage", journey.DefaultScrollPercentage, journey.NewScrollEvent)},
	}
	for _, l := range lists {
		*l.enabled = p.YesNo(fmt.Sprintf("Track %s? (%d rules)", l.label, len(*l.items)), *l.enabled)
		if !*l.enabled {
			continue
		}
		for p.YesNo(fmt.Sprintf("  Add a %s rule?", l.label), len(*l.items) == 0) {
			item, err := l.rule()
			if err != nil {
				return err
			}
			*l.items = append(*l.items, item)
		}
	}
	return nil
}

func selectorRule(p *tui.Prompter, build func(selector, suffix string) journey.TrackedItem) func() (journey.TrackedItem, error) {
	return func() (journey.TrackedItem, error) {
		selector, err := p.String("    CSS selector", "", true)
		if err != nil {
			return journey.TrackedItem{}, err
		}
		suffix, err := p.String("    Event name suffix", "", true)
		if err != nil {
			return journey.TrackedItem{}, err
		}
		return build(selector, suffix), nil
	}
}

func numberRule(p *tui.Prompter, label string, def int, build func(n int, suffix string) journey.TrackedItem) func() (journey.TrackedItem, error) {
	return func() (journey.TrackedItem, error) {
		for {
			raw, err := p.String("    "+label, strconv.Itoa(def), true)
			if err != nil {
				return journey.TrackedItem{}, err
			}
			n, convErr := strconv.Atoi(raw)
			if convErr != nil {
				p.Warn(fmt.Sprintf("%q is not a number", raw))
				continue
			}
			suffix, err := p.String("    Event name suffix", "", true)
			if err != nil {
				return journey.TrackedItem{}, err
			}
			return build(n, suffix), nil
		}
	}
}

