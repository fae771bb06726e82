package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestManager(drain time.Duration) *ShutdownManager {
	return NewShutdownManager(ShutdownConfig{
		ShutdownTimeout: time.Second,
		DrainTimeout:    drain,
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestShutdownClosesInReverseOrder(t *testing.T) {
	sm := newTestManager(100 * time.Millisecond)

	var order []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		sm.RegisterCloser(name, CloserFunc(func() error {
			order = append(order, name)
			return nil
		}))
	}

	if err := sm.Shutdown(context.Background(), "test"); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if got := strings.Join(order, ","); got != "third,second,first" {
		t.Errorf("close order = %s", got)
	}
	if !sm.IsShuttingDown() {
		t.Error("manager should report shutting down")
	}
	select {
	case <-sm.ShutdownCh():
	default:
		t.Error("shutdown channel should be closed")
	}
}

func TestShutdownRunsOnce(t *testing.T) {
	sm := newTestManager(100 * time.Millisecond)
	boom := errors.New("boom")
	calls := 0
	sm.RegisterCloser("flaky", CloserFunc(func() error {
		calls++
		return boom
	}))

	err1 := sm.Shutdown(context.Background(), "first")
	err2 := sm.Shutdown(context.Background(), "second")
	if calls != 1 {
		t.Errorf("closer called %d times", calls)
	}
	if !errors.Is(err1, boom) || !errors.Is(err2, boom) {
		t.Errorf("errors = %v, %v; want both to wrap boom", err1, err2)
	}
}

func TestTrackRequestRejectedAfterShutdown(t *testing.T) {
	sm := newTestManager(100 * time.Millisecond)
	if !sm.TrackRequest() {
		t.Fatal("request should be accepted before shutdown")
	}
	sm.UntrackRequest()

	if err := sm.Shutdown(context.Background(), "test"); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if sm.TrackRequest() {
		t.Error("request should be rejected after shutdown")
	}
	if sm.InFlightCount() != 0 {
		t.Errorf("in-flight = %d", sm.InFlightCount())
	}
}

func TestShutdownDrainTimeout(t *testing.T) {
	sm := newTestManager(100 * time.Millisecond)
	sm.TrackRequest()

	err := sm.Shutdown(context.Background(), "test")
	if err == nil || !strings.Contains(err.Error(), "in-flight") {
		t.Errorf("expected drain timeout error, got %v", err)
	}
}

func TestShutdownWaitsForInFlight(t *testing.T) {
	sm := newTestManager(2 * time.Second)
	sm.TrackRequest()

	go func() {
		time.Sleep(100 * time.Millisecond)
		sm.UntrackRequest()
	}()

	if err := sm.Shutdown(context.Background(), "test"); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestShutdownMiddleware(t *testing.T) {
	sm := newTestManager(100 * time.Millisecond)
	handler := ShutdownMiddleware(sm)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sm.InFlightCount() != 1 {
			t.Errorf("in-flight during request = %d", sm.InFlightCount())
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d", rec.Code)
	}

	sm.Shutdown(context.Background(), "test")

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status after shutdown = %d", rec.Code)
	}
}

func TestListenForSignalsContextCancel(t *testing.T) {
	sm := newTestManager(100 * time.Millisecond)
	closed := make(chan struct{})
	sm.RegisterCloser("marker", CloserFunc(func() error {
		close(closed)
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sm.ListenForSignals(ctx); err != nil {
		t.Fatalf("ListenForSignals: %v", err)
	}
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Error("closer not called")
	}
}

func TestHTTPServerCloser(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	if err := HTTPServerCloser(srv.Config, time.Second).Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
