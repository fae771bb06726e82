// Package app provides application lifecycle management for a tmpldb server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	grpcapi "github.com/tmpldb/tmpldb/internal/api/grpc"
	httpapi "github.com/tmpldb/tmpldb/internal/api/http"
	"github.com/tmpldb/tmpldb/internal/config"
	"github.com/tmpldb/tmpldb/internal/observability"
	"github.com/tmpldb/tmpldb/internal/query/executor"
	"github.com/tmpldb/tmpldb/internal/server"
	"github.com/tmpldb/tmpldb/internal/store"
	"google.golang.org/grpc"
)

// statsWindow is how long an untouched field stays in the access statistics.
const statsWindow = time.Hour

// App owns the store, the executor and the transports serving it.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	store    *store.Store
	executor *executor.StatementExecutor
	stats    *observability.StatementStats
	metrics  *observability.Metrics
	shutdown *server.ShutdownManager

	httpServer   *http.Server
	httpListener net.Listener
	grpcServer   *grpc.Server
	grpcListener net.Listener

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New validates cfg and builds an App with an empty store.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	st := store.New()
	stats := observability.NewStatementStats(statsWindow)
	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics()
	}

	return &App{
		cfg:    cfg,
		logger: logger,
		store:  st,
		stats:  stats,
		executor: executor.NewStatementExecutor(st, executor.ExecutorConfig{
			Logger:  logger,
			Stats:   stats,
			Metrics: metrics,
		}),
		metrics: metrics,
		shutdown: server.NewShutdownManager(server.ShutdownConfig{
			ShutdownTimeout: cfg.Shutdown.Timeout,
			DrainTimeout:    cfg.Shutdown.DrainTimeout,
			Logger:          logger,
		}),
	}, nil
}

// Store returns the shared store.
func (a *App) Store() *store.Store {
	return a.store
}

// Executor returns the shared executor.
func (a *App) Executor() *executor.StatementExecutor {
	return a.executor
}

// HTTPAddr returns the bound HTTP address, or "" when HTTP is not running.
func (a *App) HTTPAddr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.httpListener == nil {
		return ""
	}
	return a.httpListener.Addr().String()
}

// GRPCAddr returns the bound gRPC address, or "" when gRPC is not running.
func (a *App) GRPCAddr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.grpcListener == nil {
		return ""
	}
	return a.grpcListener.Addr().String()
}

// Start binds the configured listeners and serves them in the background.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return fmt.Errorf("app is already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if a.cfg.ShouldRunHTTP() {
		if err := a.startHTTP(); err != nil {
			a.closeListeners()
			cancel()
			return fmt.Errorf("failed to start HTTP API: %w", err)
		}
	}

	if a.cfg.ShouldRunGRPC() {
		if err := a.startGRPC(); err != nil {
			a.closeListeners()
			cancel()
			return fmt.Errorf("failed to start gRPC API: %w", err)
		}
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.pruneStats(ctx)
	}()

	a.running = true
	a.logger.Info("tmpldb started", "mode", a.cfg.Mode)
	return nil
}

func (a *App) startHTTP() error {
	handler := httpapi.NewRouter(httpapi.RouterConfig{
		Executor:       a.executor,
		Store:          a.store,
		Stats:          a.stats,
		Metrics:        a.metrics,
		MetricsPath:    a.cfg.Metrics.Path,
		MaxSourceBytes: a.cfg.Query.MaxSourceBytes,
		Compression:    a.cfg.HTTP.Compression,
		Mode:           string(a.cfg.Mode),
		Logger:         a.logger,
		Outer:          []func(http.Handler) http.Handler{server.ShutdownMiddleware(a.shutdown)},
	})

	lis, err := net.Listen("tcp", a.cfg.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on HTTP address: %w", err)
	}
	a.httpListener = lis
	a.httpServer = &http.Server{
		Handler:      handler,
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
	}
	a.shutdown.RegisterCloser("http", server.HTTPServerCloser(a.httpServer, a.cfg.Shutdown.Timeout))

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.logger.Info("HTTP API listening", "addr", lis.Addr().String())
		if err := a.httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("HTTP server error", "err", err)
		}
	}()
	return nil
}

func (a *App) startGRPC() error {
	lis, err := net.Listen("tcp", a.cfg.GRPC.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on gRPC address: %w", err)
	}
	a.grpcListener = lis
	a.grpcServer = grpcapi.NewServer(grpcapi.NewQueryServer(a.executor, a.cfg.Query.MaxSourceBytes, a.logger))
	a.shutdown.RegisterCloser("grpc", server.CloserFunc(func() error {
		a.grpcServer.GracefulStop()
		return nil
	}))

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.logger.Info("gRPC API listening", "addr", lis.Addr().String())
		if err := a.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			a.logger.Error("gRPC server error", "err", err)
		}
	}()
	return nil
}

// pruneStats drops stale field statistics until ctx is done.
func (a *App) pruneStats(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.stats.Prune()
		}
	}
}

func (a *App) closeListeners() {
	if a.httpListener != nil {
		a.httpListener.Close()
	}
	if a.grpcListener != nil {
		a.grpcListener.Close()
	}
}

// Stop drains in-flight requests and stops every transport.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	a.mu.Unlock()

	err := a.shutdown.Shutdown(ctx, "stop requested")

	if a.cancel != nil {
		a.cancel()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(a.cfg.Shutdown.Timeout):
		a.logger.Warn("shutdown timeout, some goroutines may not have finished")
	}

	st := a.store.Stats()
	a.logger.Info("tmpldb stopped", "templates", st.Templates, "instances", st.Instances)
	return err
}

// WaitForShutdown blocks until a shutdown signal is received or ctx is done,
// then stops the app.
func (a *App) WaitForShutdown(ctx context.Context) error {
	err := a.shutdown.ListenForSignals(ctx)
	if stopErr := a.Stop(context.Background()); err == nil {
		err = stopErr
	}
	return err
}
