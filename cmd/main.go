// Package main is the entry point for the Journey Gateway.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"

	"github.com/compresr/journey-gateway/internal/config"
	"github.com/compresr/journey-gateway/internal/monitoring"
	"github.com/compresr/journey-gateway/internal/registry"
	"github.com/compresr/journey-gateway/internal/server"
	"github.com/compresr/journey-gateway/internal/tui"
)

// Version is set at build time via ldflags.
var Version = "v0.1.0"

// ANSI color codes
const (
	journeyOrange = "\033[38;2;255;79;31m"
	bold          = "\033[1m"
	reset         = "\033[0m"
)

const banner = `
     ╦╔═╗╦ ╦╦═╗╔╗╔╔═╗╦ ╦  ╔═╗╔═╗╔╦╗╔═╗╦ ╦╔═╗╦ ╦
     ║║ ║║ ║╠╦╝║║║║╣ ╚╦╝  ║ ╦╠═╣ ║ ║╣ ║║║╠═╣╚╦╝
    ╚╝╚═╝╚═╝╩╚═╝╚╝╚═╝ ╩   ╚═╝╩ ╩ ╩ ╚═╝╚╩╝╩ ╩ ╩
`

// printBanner prints the banner on an interactive terminal only.
func printBanner() {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return
	}
	fmt.Print(journeyOrange + bold + banner + reset + "\n")
}

// loadEnvFiles loads .env from standard locations.
func loadEnvFiles() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		_ = godotenv.Load()
		return
	}

	configEnv := filepath.Join(homeDir, ".config", "journey-gateway", ".env")
	if _, err := os.Stat(configEnv); err == nil {
		_ = godotenv.Load(configEnv)
	}

	// Local .env can override
	_ = godotenv.Load()
}

func main() {
	if len(os.Args) < 2 {
		printHelp()
		os.Exit(2)
	}

	args := os.Args[2:]
	switch os.Args[1] {
	case "serve", "start":
		runServer(args)
	case "compile":
		os.Exit(runCompile(args, os.Stdout))
	case "run":
		os.Exit(runBrowser(args))
	case "configs":
		os.Exit(runConfigs(args, tui.Stdio(), os.Stdout))
	case "version", "-v", "--version":
		printVersion()
	case "help", "-h", "--help":
		printHelp()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		printHelp()
		os.Exit(2)
	}
}

// resolveConfig returns the raw config and where it came from.
// Checks: user flag -> filesystem locations -> embedded config.
func resolveConfig(userConfig string) ([]byte, string, error) {
	if userConfig != "" {
		data, err := os.ReadFile(userConfig)
		if err != nil {
			return nil, "", fmt.Errorf("config file not found: %s", userConfig)
		}
		return data, userConfig, nil
	}

	var searchPaths []string
	if homeDir, _ := os.UserHomeDir(); homeDir != "" {
		searchPaths = append(searchPaths, filepath.Join(homeDir, ".config", "journey-gateway", "config.yaml"))
	}
	searchPaths = append(searchPaths, "configs/config.yaml")

	for _, path := range searchPaths {
		if data, err := os.ReadFile(path); err == nil {
			return data, path, nil
		}
	}

	if data, err := getEmbeddedConfig("config"); err == nil {
		return data, "(embedded) config.yaml", nil
	}
	return nil, "", fmt.Errorf("no config file found. Specify --config path")
}

// loadConfig resolves, parses and validates the configuration, then installs
// the global logger from its monitoring section.
func loadConfig(userConfig string, debug bool) (*config.Config, string, error) {
	data, source, err := resolveConfig(userConfig)
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.LoadFromBytes(data)
	if err != nil {
		return nil, source, fmt.Errorf("%s: %w", source, err)
	}

	level := cfg.Monitoring.LogLevel
	if debug {
		level = "debug"
	}
	monitoring.Global(monitoring.LoggerConfig{
		Level:  level,
		Format: cfg.Monitoring.LogFormat,
		Output: cfg.Monitoring.LogOutput,
	})
	return cfg, source, nil
}

// runServer starts the HTTP gateway.
func runServer(args []string) {
	loadEnvFiles()

	fs := newFlagSet("serve")
	configPath := fs.String("config", "", "path to config file")
	debug := fs.Bool("debug", false, "enable debug logging")
	noBanner := fs.Bool("no-banner", false, "suppress startup banner")
	_ = fs.Parse(args)

	if !*noBanner {
		printBanner()
	}

	cfg, source, err := loadConfig(*configPath, *debug)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	log.Info().Str("version", Version).Str("config", source).Msg("Journey Gateway starting")

	ctx := context.Background()
	reg, err := registry.Open(ctx, cfg.Registry)
	if err != nil {
		log.Fatal().Err(err).Str("type", cfg.Registry.Type).Msg("failed to open registry")
	}
	defer reg.Close()

	server.Version = Version
	srv, err := server.New(cfg, reg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create server")
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("shutdown signal received")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("server shutdown error")
		}
	}()

	if err := srv.Start(); err != nil {
		log.Error().Err(err).Msg("server error")
		return
	}
	log.Info().Msg("Journey Gateway stopped")
}

func printVersion() {
	printBanner()
	fmt.Printf("journey-gateway %s\n", Version)
	fmt.Printf("Runtime: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

func printHelp() {
	printBanner()
	fmt.Println("Journey Gateway - Genesys journey tracking compiler and runtime")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  journey-gateway <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve        Start the HTTP gateway (configs API, bootstrap scripts, host link)")
	fmt.Println("  compile      Print the bootstrap script for a configuration")
	fmt.Println("  run          Run the bootstrap in a browser page and keep it open")
	fmt.Println("  configs      List, show, create, edit or delete stored configurations")
	fmt.Println("  version      Print version information")
	fmt.Println("  help         Show this help message")
	fmt.Println()
	fmt.Println("Common options:")
	fmt.Println("  --config FILE        Gateway config (default: search, then embedded)")
	fmt.Println("  --debug              Enable debug logging")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  journey-gateway serve --config configs/config.yaml")
	fmt.Println("  journey-gateway compile --name web-main --email jane@example.com")
	fmt.Println("  journey-gateway compile --name web-main --commands")
	fmt.Println("  journey-gateway run --name web-main --url https://shop.example.com")
	fmt.Println("  journey-gateway configs new")
	fmt.Println("  journey-gateway configs edit <id> --from web-main.json")
}
