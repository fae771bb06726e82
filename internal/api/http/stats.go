package http

import (
	"net/http"
	"strconv"

	"github.com/tmpldb/tmpldb/internal/observability"
	"github.com/tmpldb/tmpldb/internal/store"
)

// StatsResponse is the body of GET /v1/stats.
type StatsResponse struct {
	Store      store.Stats            `json:"store"`
	Statements observability.Snapshot `json:"statements"`
	RequestID  string                 `json:"request_id"`
}

// StatsHandler handles GET /v1/stats requests. The optional top query
// parameter limits how many hot fields are listed (default 10).
type StatsHandler struct {
	store *store.Store
	stats *observability.StatementStats
}

// NewStatsHandler creates a new stats handler. stats may be nil.
func NewStatsHandler(st *store.Store, stats *observability.StatementStats) *StatsHandler {
	return &StatsHandler{store: st, stats: stats}
}

// ServeHTTP handles the stats HTTP request.
func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed", RequestID: requestID})
		return
	}

	top := 10
	if v := r.URL.Query().Get("top"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, ErrorResponse{Error: "top must be a non-negative integer", RequestID: requestID})
			return
		}
		top = n
	}

	resp := StatsResponse{
		Store:     h.store.Stats(),
		RequestID: requestID,
	}
	if h.stats != nil {
		resp.Statements = h.stats.Snapshot(top)
	}
	writeJSON(w, http.StatusOK, resp)
}

// HealthHandler reports liveness along with the serving mode.
func HealthHandler(service, mode string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": service,
			"mode":    mode,
		})
	}
}
