package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"

	tmplerrors "github.com/tmpldb/tmpldb/internal/errors"
	"github.com/tmpldb/tmpldb/internal/query/executor"
	"github.com/tmpldb/tmpldb/internal/query/lexer"
)

// QueryRequest represents a query request.
type QueryRequest struct {
	Source string `json:"source"`
}

// QueryResponse represents the query response. Records holds the rendered
// output of the batch so float values keep their fraction.
type QueryResponse struct {
	Records   json.RawMessage `json:"records"`
	Count     int             `json:"count"`
	RequestID string          `json:"request_id"`
}

// QueryHandler handles POST /v1/query requests.
//
// The body is either JSON ({"source": "..."}) or, with a text/plain content
// type, the statement source itself.
type QueryHandler struct {
	executor       executor.QueryExecutor
	maxSourceBytes int64
	logger         *slog.Logger
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(exec executor.QueryExecutor, maxSourceBytes int64, logger *slog.Logger) *QueryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryHandler{
		executor:       exec,
		maxSourceBytes: maxSourceBytes,
		logger:         logger,
	}
}

// ServeHTTP handles the query HTTP request.
func (h *QueryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed", RequestID: requestID})
		return
	}

	source, status, err := h.readSource(w, r)
	if err != nil {
		writeError(w, status, ErrorResponse{Error: err.Error(), RequestID: requestID})
		return
	}

	lines, err := lexer.Tokenize(source)
	if err != nil {
		h.writeStatementError(w, r, err)
		return
	}

	out, count, err := h.executor.ExecuteJSON(r.Context(), lines)
	if err != nil {
		h.writeStatementError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, QueryResponse{
		Records:   out,
		Count:     count,
		RequestID: requestID,
	})
}

func (h *QueryHandler) readSource(w http.ResponseWriter, r *http.Request) (string, int, error) {
	body := r.Body
	if h.maxSourceBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxSourceBytes)
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "text/plain" {
		data, err := io.ReadAll(body)
		if err != nil {
			return "", bodyErrorStatus(err), fmt.Errorf("invalid request body: %w", err)
		}
		if len(data) == 0 {
			return "", http.StatusBadRequest, errors.New("source is required")
		}
		return string(data), 0, nil
	}

	var req QueryRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return "", bodyErrorStatus(err), fmt.Errorf("invalid request body: %w", err)
	}
	if req.Source == "" {
		return "", http.StatusBadRequest, errors.New("source is required")
	}
	return req.Source, 0, nil
}

func bodyErrorStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func (h *QueryHandler) writeStatementError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := GetRequestID(r.Context())
	status, resp := errorResponse(err)
	resp.RequestID = requestID
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "query failed", "err", err, "request_id", requestID)
	}
	writeError(w, status, resp)
}

// errorResponse maps a lexer or statement error to an HTTP status and body.
func errorResponse(err error) (int, ErrorResponse) {
	var lexErr *lexer.LexError
	if errors.As(err, &lexErr) {
		return http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  tmplerrors.CodeSyntaxError,
			Line:  lexErr.Line,
		}
	}

	resp := ErrorResponse{Error: err.Error(), Code: tmplerrors.GetCode(err)}
	var te *tmplerrors.TmplError
	if errors.As(err, &te) {
		if line, ok := te.Details["line"].(int); ok {
			resp.Line = line
		}
	}

	switch {
	case tmplerrors.IsSyntax(err):
		return http.StatusBadRequest, resp
	case tmplerrors.IsNotFound(err):
		return http.StatusNotFound, resp
	case tmplerrors.IsAlreadyExists(err):
		return http.StatusConflict, resp
	default:
		return http.StatusInternalServerError, resp
	}
}
