package http

import (
	"log/slog"
	"net/http"

	"github.com/tmpldb/tmpldb/internal/observability"
	"github.com/tmpldb/tmpldb/internal/query/executor"
	"github.com/tmpldb/tmpldb/internal/store"
)

// RouterConfig wires the HTTP API to an executor and its collaborators.
type RouterConfig struct {
	Executor executor.QueryExecutor
	Store    *store.Store

	// Stats backs /v1/stats (optional)
	Stats *observability.StatementStats

	// Metrics is served at MetricsPath when both are set
	Metrics     *observability.Metrics
	MetricsPath string

	MaxSourceBytes int64
	Compression    bool
	Mode           string
	Logger         *slog.Logger

	// Outer wraps every route, outside the default chain
	Outer []func(http.Handler) http.Handler
}

// NewRouter builds the tmpldb HTTP handler:
//
//	POST /v1/query   execute statements
//	GET  /v1/stats   store sizes and statement counters
//	GET  /healthz    liveness
//	GET  <metrics>   Prometheus exposition
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	api := DefaultMiddleware(cfg.Logger, cfg.Compression)

	mux := http.NewServeMux()
	mux.Handle("/v1/query", api(NewQueryHandler(cfg.Executor, cfg.MaxSourceBytes, cfg.Logger)))
	mux.Handle("/v1/stats", api(NewStatsHandler(cfg.Store, cfg.Stats)))
	mux.Handle("/healthz", HealthHandler("tmpldb", cfg.Mode))
	if cfg.Metrics != nil && cfg.MetricsPath != "" {
		mux.Handle(cfg.MetricsPath, cfg.Metrics.Handler())
	}

	return ChainMiddleware(cfg.Outer...)(mux)
}
