package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/compresr/journey-gateway/internal/compiler"
	"github.com/compresr/journey-gateway/internal/config"
	"github.com/compresr/journey-gateway/internal/contact"
	"github.com/compresr/journey-gateway/internal/journey"
	"github.com/compresr/journey-gateway/internal/registry"
)

func newFlagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ExitOnError)
}

// bootstrapOptions maps the bootstrap section to compile options.
func bootstrapOptions(cfg *config.Config) []compiler.Option {
	return []compiler.Option{
		compiler.WithGlobalName(cfg.Bootstrap.GlobalName),
		compiler.WithBundlePath(cfg.Bootstrap.BundlePath),
		compiler.WithLogPrefix(cfg.Bootstrap.LogPrefix),
	}
}

// runCompile prints the bootstrap script (or, with --commands, the compiled
// command list as JSON) for one configuration. Returns the exit code.
func runCompile(args []string, out io.Writer) int {
	loadEnvFiles()

	fs := flag.NewFlagSet("compile", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config file")
	name := fs.String("name", "", "configuration name (default: orchestrator.config_name)")
	email := fs.String("email", "", "visitor email")
	phone := fs.String("phone", "", "visitor phone (E.164)")
	commands := fs.Bool("commands", false, "print the compiled commands as JSON instead of the script")
	debug := fs.Bool("debug", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, _, err := loadConfig(*configPath, *debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if *name == "" {
		*name = cfg.Orchestrator.ConfigName
	}
	if *name == "" {
		fmt.Fprintln(os.Stderr, "Error: --name is required (or set orchestrator.config_name)")
		return 2
	}

	c := contact.Contact{Email: *email, Phone: *phone}.Normalize()
	if err := c.ValidatePartial(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	ctx := context.Background()
	reg, err := registry.Open(ctx, cfg.Registry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: open registry: %v\n", err)
		return 1
	}
	defer reg.Close()

	script, err := compileNamed(ctx, reg, *name, c, bootstrapOptions(cfg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, registry.ErrNotFound) {
			return 3
		}
		return 1
	}
	log.Debug().Str("config", *name).Strs("commands", script.CommandNames()).Msg("compiled")

	if *commands {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(script); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	text, err := script.Render()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprint(out, text)
	return 0
}

func compileNamed(ctx context.Context, reg registry.Registry, name string, c contact.Contact, opts []compiler.Option) (*compiler.Script, error) {
	doc, err := reg.FetchByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", name, err)
	}
	cfg, err := journey.Parse(doc)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return compiler.Compile(cfg, c, opts...)
}
