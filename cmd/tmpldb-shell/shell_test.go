package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"strings"
	"testing"

	grpcapi "github.com/tmpldb/tmpldb/internal/api/grpc"
	"github.com/tmpldb/tmpldb/internal/query/executor"
	"github.com/tmpldb/tmpldb/internal/store"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

const script = `type Counter
name n type integer value 1
end

create c1 type Counter
query c1 set n value 7
query c1 get n
`

func newLocalShell() (*shell, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	exec := executor.NewStatementExecutor(store.New(), executor.ExecutorConfig{Logger: logger})
	return &shell{runner: localRunner{exec: exec}, stdout: &stdout, stderr: &stderr}, &stdout, &stderr
}

func TestRunScriptLocal(t *testing.T) {
	sh, stdout, stderr := newLocalShell()
	if err := sh.runScript(context.Background(), strings.NewReader(script)); err != nil {
		t.Fatalf("runScript: %v (stderr %q)", err, stderr.String())
	}
	out := stdout.String()
	if !strings.Contains(out, `"instance": "c1"`) || !strings.Contains(out, `"n": 7`) {
		t.Errorf("output = %s", out)
	}
}

func TestRunScriptReportsError(t *testing.T) {
	sh, stdout, stderr := newLocalShell()
	err := sh.runScript(context.Background(), strings.NewReader("query missing"))
	if err == nil {
		t.Fatal("expected failure")
	}
	if stdout.Len() != 0 {
		t.Errorf("stdout = %q", stdout.String())
	}
	if !strings.HasPrefix(stderr.String(), "error: ") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestExecuteKeepsStateBetweenBatches(t *testing.T) {
	sh, stdout, _ := newLocalShell()
	ctx := context.Background()
	if !sh.execute(ctx, "type Counter\nname n type integer value 1\nend\ncreate c1 type Counter") {
		t.Fatal("first batch failed")
	}
	if stdout.Len() != 0 {
		t.Errorf("statements without output printed %q", stdout.String())
	}
	if !sh.execute(ctx, "query c1 get n") {
		t.Fatal("second batch failed")
	}
	if !strings.Contains(stdout.String(), `"n": 1`) {
		t.Errorf("output = %s", stdout.String())
	}
}

func TestRunScriptRemote(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	exec := executor.NewStatementExecutor(store.New(), executor.ExecutorConfig{Logger: logger})
	lis := bufconn.Listen(1 << 20)
	srv := grpcapi.NewServer(grpcapi.NewQueryServer(exec, 1<<20, logger))
	go srv.Serve(lis)
	defer srv.Stop()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var stdout, stderr bytes.Buffer
	sh := &shell{runner: remoteRunner{client: grpcapi.NewQueryServiceClient(conn)}, stdout: &stdout, stderr: &stderr}
	if err := sh.runScript(context.Background(), strings.NewReader(script)); err != nil {
		t.Fatalf("runScript: %v (stderr %q)", err, stderr.String())
	}
	if !strings.Contains(stdout.String(), `"n": 7`) {
		t.Errorf("output = %s", stdout.String())
	}
}
