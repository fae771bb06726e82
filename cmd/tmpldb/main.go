// Package main implements the tmpldb server binary. It serves the statement
// language over HTTP, gRPC or both, against one in-memory store.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/tmpldb/tmpldb/internal/app"
	"github.com/tmpldb/tmpldb/internal/config"
	"github.com/tmpldb/tmpldb/internal/logging"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "tmpldb: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  string
		mode        string
		httpAddr    string
		grpcAddr    string
		logLevel    string
		showVersion bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&mode, "mode", "", "Serving mode: all, http, grpc")
	flag.StringVar(&httpAddr, "http-addr", "", "HTTP listen address")
	flag.StringVar(&grpcAddr, "grpc-addr", "", "gRPC listen address")
	flag.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.BoolVar(&showVersion, "version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "tmpldb - in-memory template and instance store\n\n")
		fmt.Fprintf(os.Stderr, "Usage: tmpldb [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  tmpldb --http-addr :8080\n")
		fmt.Fprintf(os.Stderr, "  tmpldb --mode grpc --grpc-addr :9090\n")
		fmt.Fprintf(os.Stderr, "  tmpldb --config /etc/tmpldb/config.yaml\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  TMPLDB_MODE         Serving mode (all, http, grpc)\n")
		fmt.Fprintf(os.Stderr, "  TMPLDB_HTTP_ADDR    HTTP listen address\n")
		fmt.Fprintf(os.Stderr, "  TMPLDB_GRPC_ADDR    gRPC listen address\n")
		fmt.Fprintf(os.Stderr, "  TMPLDB_LOG_LEVEL    Log level\n")
		fmt.Fprintf(os.Stderr, "  TMPLDB_LOG_FORMAT   Log format (text, json)\n")
	}

	flag.Parse()
	if len(flag.Args()) > 0 {
		return fmt.Errorf("unknown arguments: %v", flag.Args())
	}

	if showVersion {
		fmt.Printf("tmpldb version %s (commit: %s)\n", version, commit)
		return nil
	}

	cfg, err := loadConfig(configFile, mode, httpAddr, grpcAddr, logLevel)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, _, err := logging.New(os.Stderr, cfg.Log)
	if err != nil {
		return err
	}

	application, err := app.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}
	logger.Info("configuration",
		"version", version,
		"mode", cfg.Mode,
		"http", cfg.ShouldRunHTTP(),
		"grpc", cfg.ShouldRunGRPC(),
		"metrics", cfg.Metrics.Enabled,
	)

	if err := application.WaitForShutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// loadConfig layers defaults, the config file, TMPLDB_ environment variables
// and command line flags, later sources winning.
func loadConfig(configFile, mode, httpAddr, grpcAddr, logLevel string) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.DefaultConfig()
	}

	if err := config.LoadFromEnv(cfg); err != nil {
		return nil, err
	}

	if mode != "" {
		cfg.Mode = config.Mode(mode)
	}
	if httpAddr != "" {
		cfg.HTTP.Addr = httpAddr
	}
	if grpcAddr != "" {
		cfg.GRPC.Addr = grpcAddr
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	return cfg, cfg.Validate()
}
