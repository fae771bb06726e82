package grpc

import (
	"context"
	"io"
	"log/slog"
	"net"
	"strings"
	"testing"

	"github.com/tmpldb/tmpldb/internal/query/executor"
	"github.com/tmpldb/tmpldb/internal/store"
	"github.com/tmpldb/tmpldb/pkg/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

func newTestClient(t *testing.T, maxSourceBytes int64) (QueryServiceClient, *store.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.New()
	exec := executor.NewStatementExecutor(st, executor.ExecutorConfig{Logger: logger})

	lis := bufconn.Listen(1 << 20)
	srv := NewServer(NewQueryServer(exec, maxSourceBytes, logger))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return NewQueryServiceClient(conn), st
}

func sourceRequest(t *testing.T, source string) *structpb.Struct {
	t.Helper()
	req, err := structpb.NewStruct(map[string]interface{}{"source": source})
	if err != nil {
		t.Fatal(err)
	}
	return req
}

const schemaSource = `type Person
name label type string value x
name age type integer value 9007199254740993
name height type float value 3
end
create p1 type Person`

func TestExecute_RoundTrip(t *testing.T) {
	client, _ := newTestClient(t, 1<<20)

	var header metadata.MD
	resp, err := client.Execute(context.Background(),
		sourceRequest(t, schemaSource+"\nquery p1\nquery type\nquery p1 get height label"),
		grpc.Header(&header))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if ids := header.Get("x-request-id"); len(ids) != 1 || ids[0] == "" {
		t.Errorf("x-request-id header = %v", ids)
	}

	recs, err := DecodeRecords(resp)
	if err != nil {
		t.Fatalf("DecodeRecords: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}

	inst := recs[0]
	if inst.Schema != "Person" || inst.Instance != "p1" {
		t.Errorf("identity = %q/%q", inst.Schema, inst.Instance)
	}
	if v, _ := inst.Get("age"); !v.Equal(types.Integer(9007199254740993)) {
		t.Errorf("age = %+v, want exact 64-bit integer", v)
	}
	if v, _ := inst.Get("height"); v.Kind != types.KindFloat || v.Float != 3 {
		t.Errorf("height = %+v", v)
	}

	if recs[1].IsInstance() {
		t.Errorf("definition decoded with instance %q", recs[1].Instance)
	}

	names := recs[2].FieldNames()
	if len(names) != 2 || names[0] != "height" || names[1] != "label" {
		t.Errorf("projection order = %v", names)
	}
}

func TestExecute_RequestIDFromMetadata(t *testing.T) {
	client, _ := newTestClient(t, 1<<20)

	ctx := metadata.AppendToOutgoingContext(context.Background(), "x-request-id", "rid-7")
	var header metadata.MD
	if _, err := client.Execute(ctx, sourceRequest(t, "query type"), grpc.Header(&header)); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if ids := header.Get("x-request-id"); len(ids) != 1 || ids[0] != "rid-7" {
		t.Errorf("x-request-id header = %v", ids)
	}
}

func TestExecute_ErrorCodes(t *testing.T) {
	tests := []struct {
		name   string
		source string
		code   codes.Code
	}{
		{"empty source", "", codes.InvalidArgument},
		{"syntax", "value x", codes.InvalidArgument},
		{"lex", `query p1 set label value "open`, codes.InvalidArgument},
		{"not found", "query ghost", codes.NotFound},
		{"duplicate", "type T\nend\ntype T\nend", codes.AlreadyExists},
		{"unencodable float", "type T\nname f type float value Inf\nend\nquery type", codes.Internal},
		{"too large", "query type # " + strings.Repeat("x", 200), codes.ResourceExhausted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, 128)
			_, err := client.Execute(context.Background(), sourceRequest(t, tt.source))
			if got := status.Code(err); got != tt.code {
				t.Errorf("code = %s, want %s (err %v)", got, tt.code, err)
			}
		})
	}
}

func TestExecute_StoreSharedAcrossCalls(t *testing.T) {
	client, st := newTestClient(t, 1<<20)
	ctx := context.Background()

	if _, err := client.Execute(ctx, sourceRequest(t, schemaSource)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := client.Execute(ctx, sourceRequest(t, "query p1 set age value 1")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if s := st.Stats(); s.Templates != 1 || s.Instances != 1 {
		t.Errorf("store = %+v", s)
	}

	resp, err := client.Execute(ctx, sourceRequest(t, "query p1 get age"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	recs, err := DecodeRecords(resp)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := recs[0].Get("age"); !v.Equal(types.Integer(1)) {
		t.Errorf("age = %+v", v)
	}
}
