// Package benchmark provides performance benchmarks for tmpldb.
package benchmark

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tmpldb/tmpldb/internal/observability"
	"github.com/tmpldb/tmpldb/internal/query/executor"
	"github.com/tmpldb/tmpldb/internal/query/lexer"
	"github.com/tmpldb/tmpldb/internal/store"
	"github.com/tmpldb/tmpldb/pkg/types"
)

const schema = `type Event
name kind type string value "click"
name count type integer value 0
name weight type float value 1.5
name source type string
end`

func newExecutor(b *testing.B, instances int) *executor.StatementExecutor {
	b.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	e := executor.NewStatementExecutor(store.New(), executor.ExecutorConfig{
		Logger: logger,
		Stats:  observability.NewStatementStats(time.Hour),
	})

	var sb strings.Builder
	sb.WriteString(schema)
	for i := 0; i < instances; i++ {
		fmt.Fprintf(&sb, "\ncreate e%d type Event", i)
	}
	mustRun(b, e, sb.String())
	return e
}

func mustLex(b *testing.B, source string) []types.Line {
	b.Helper()
	lines, err := lexer.Tokenize(source)
	if err != nil {
		b.Fatal(err)
	}
	return lines
}

func mustRun(b *testing.B, e *executor.StatementExecutor, source string) []*types.Record {
	b.Helper()
	recs, err := e.Execute(context.Background(), mustLex(b, source))
	if err != nil {
		b.Fatal(err)
	}
	return recs
}

// BenchmarkTokenize measures lexing of a mixed statement batch.
func BenchmarkTokenize(b *testing.B) {
	source := schema + `
create e1 type Event
query e1 then
set count value 42
set weight value 2.25
get kind count weight
end
query e1 set source value "bench \"quoted\" text"`

	b.ReportAllocs()
	b.SetBytes(int64(len(source)))
	for i := 0; i < b.N; i++ {
		if _, err := lexer.Tokenize(source); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkGet measures single-field projection against a populated store.
func BenchmarkGet(b *testing.B) {
	for _, size := range []int{10, 1000} {
		b.Run(fmt.Sprintf("instances=%d", size), func(b *testing.B) {
			e := newExecutor(b, size)
			lines := mustLex(b, fmt.Sprintf("query e%d get count weight", size-1))

			b.ResetTimer()
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := e.Execute(context.Background(), lines); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkTransaction measures a read-modify-write block.
func BenchmarkTransaction(b *testing.B) {
	e := newExecutor(b, 100)
	lines := mustLex(b, `query e50 then
get count
set count value 7
set weight value 3.5
get count weight
end`)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := e.Execute(context.Background(), lines); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkParallelTransactions measures contention on the instance lock.
func BenchmarkParallelTransactions(b *testing.B) {
	e := newExecutor(b, 100)
	var next atomic.Int64

	b.ResetTimer()
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			n := next.Add(1)
			lines, err := lexer.Tokenize(fmt.Sprintf("query e%d then\nset count value %d\nget count\nend", n%100, n))
			if err != nil {
				b.Error(err)
				return
			}
			if _, err := e.Execute(context.Background(), lines); err != nil {
				b.Error(err)
				return
			}
		}
	})
}

// BenchmarkRender measures JSON rendering of a full listing.
func BenchmarkRender(b *testing.B) {
	e := newExecutor(b, 1000)
	recs := e.Store().Instances()

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := executor.Render(recs); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkCreateDelete measures instantiation followed by removal.
func BenchmarkCreateDelete(b *testing.B) {
	e := newExecutor(b, 0)
	create := mustLex(b, "create tmp type Event")
	remove := mustLex(b, "delete tmp")

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := e.Execute(context.Background(), create); err != nil {
			b.Fatal(err)
		}
		if _, err := e.Execute(context.Background(), remove); err != nil {
			b.Fatal(err)
		}
	}
}
