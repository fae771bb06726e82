// Package main implements an interactive shell for the tmpldb statement
// language. Without -addr it runs against an in-process store.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	grpcapi "github.com/tmpldb/tmpldb/internal/api/grpc"
	"github.com/tmpldb/tmpldb/internal/config"
	"github.com/tmpldb/tmpldb/internal/logging"
	"github.com/tmpldb/tmpldb/internal/query/executor"
	"github.com/tmpldb/tmpldb/internal/store"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "tmpldb-shell: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		addr       string
		scriptFile string
		logLevel   string
	)
	flag.StringVar(&addr, "addr", "", "gRPC address of a tmpldb server (default: in-process store)")
	flag.StringVar(&scriptFile, "f", "", "Execute statements from file and exit")
	flag.StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	flag.Parse()

	logger, _, err := logging.New(os.Stderr, config.LogConfig{Level: logLevel, Format: "text"})
	if err != nil {
		return err
	}

	sh := &shell{stdout: os.Stdout, stderr: os.Stderr}
	if addr != "" {
		conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return fmt.Errorf("connecting to %s: %w", addr, err)
		}
		defer conn.Close()
		sh.runner = remoteRunner{client: grpcapi.NewQueryServiceClient(conn)}
		logger.Debug("using remote store", "addr", addr)
	} else {
		exec := executor.NewStatementExecutor(store.New(), executor.ExecutorConfig{Logger: logger})
		sh.runner = localRunner{exec: exec}
	}

	ctx := context.Background()
	if scriptFile != "" {
		f, err := os.Open(scriptFile)
		if err != nil {
			return err
		}
		defer f.Close()
		return sh.runScript(ctx, f)
	}
	return sh.interactive(ctx, os.Stdin, historyPath())
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".tmpldb_history")
}
