package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tmpldb/tmpldb/internal/query/executor"
)

func TestStatsHandler(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	if rec := env.query(t, schemaSource+"\nquery p1 get age\nquery p1 set age value 6", nil); rec.Code != http.StatusOK {
		t.Fatalf("seed query status = %d", rec.Code)
	}

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/stats?top=1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp StatsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Store.Templates != 1 || resp.Store.Instances != 1 {
		t.Errorf("store = %+v", resp.Store)
	}
	if resp.Statements.Statements[executor.KindDefine] != 1 {
		t.Errorf("statements = %v", resp.Statements.Statements)
	}
	if len(resp.Statements.TopFields) != 1 || resp.Statements.TopFields[0].Field != "age" {
		t.Errorf("top fields = %+v", resp.Statements.TopFields)
	}
}

func TestStatsHandler_BadRequests(t *testing.T) {
	env := newTestEnv(t, 1<<20)

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/stats?top=-1", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative top status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/stats", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d", rec.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	env.query(t, "query type", nil)

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"healthy"`) {
		t.Errorf("healthz = %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `tmpldb_statements_total{kind="query_type"} 1`) {
		t.Errorf("metrics body missing statement counter:\n%s", rec.Body.String())
	}
}
