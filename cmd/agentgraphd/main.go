// agentgraphd is the agent graph daemon. It serves the graph curation,
// run submission, execution ingest, and timeline HTTP API, and owns the
// run lifecycle and routing engines behind it.
package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eigloo/agentgraph/config"
)

// Build-time variables, set via -ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(os.Args[2:])
	case "migrate":
		err = runMigrate(os.Args[2:])
	case "version":
		fmt.Printf("agentgraphd %s (commit %s, built %s)\n", Version, GitCommit, BuildTime)
	case "health":
		err = runHealth(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`agentgraphd - agent graph run lifecycle daemon

Usage:
  agentgraphd <command> [flags]

Commands:
  serve      Start the HTTP API server
  migrate    Apply database migrations and exit
  version    Print version information
  health     Probe a running daemon's health endpoint
  help       Print this help

Flags for serve and migrate:
  -config <path>    Configuration file (YAML); environment variables
                    with the AGENTGRAPH_ prefix override file values

Flags for health:
  -addr <host:port> Daemon address (default localhost:8080)
`)
}

// loadConfig resolves the configuration for serve and migrate, with
// defaults, the optional YAML file, and AGENTGRAPH_ env overrides.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.NewLoader().
		WithConfigPath(path).
		WithValidator((*config.Config).Validate).
		Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// initLogger builds the process logger from the log configuration.
func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.Encoding = cfg.Format
	if cfg.Format == "console" {
		zapCfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if len(cfg.OutputPaths) > 0 {
		zapCfg.OutputPaths = cfg.OutputPaths
	}
	zapCfg.DisableCaller = !cfg.EnableCaller
	zapCfg.DisableStacktrace = !cfg.EnableStacktrace

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

// runHealth probes a running daemon and exits non-zero when it is not
// healthy. Intended for container health checks.
func runHealth(args []string) error {
	addr := "localhost:8080"
	for i := 0; i < len(args)-1; i++ {
		if args[i] == "-addr" {
			addr = args[i+1]
		}
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://%s/healthz", addr))
	if err != nil {
		return fmt.Errorf("health probe: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health probe: status %d", resp.StatusCode)
	}
	fmt.Println("ok")
	return nil
}
