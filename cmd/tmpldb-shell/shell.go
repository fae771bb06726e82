package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	grpcapi "github.com/tmpldb/tmpldb/internal/api/grpc"
	"github.com/tmpldb/tmpldb/internal/query/executor"
	"github.com/tmpldb/tmpldb/internal/query/lexer"
	"github.com/tmpldb/tmpldb/pkg/types"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	promptBegin = "tmpldb> "
	promptMid   = "     -> "
	exitCommand = "exit"
	quitCommand = "quit"
)

const splash = `tmpldb shell
Statements are executed when an empty line is entered. Type "exit" to quit.
`

// runner executes a batch of statement source.
type runner interface {
	Run(ctx context.Context, source string) ([]*types.Record, error)
}

// localRunner executes against an in-process store.
type localRunner struct {
	exec *executor.StatementExecutor
}

func (r localRunner) Run(ctx context.Context, source string) ([]*types.Record, error) {
	lines, err := lexer.Tokenize(source)
	if err != nil {
		return nil, err
	}
	return r.exec.Execute(ctx, lines)
}

// remoteRunner sends each batch to a tmpldb server over gRPC.
type remoteRunner struct {
	client grpcapi.QueryServiceClient
}

func (r remoteRunner) Run(ctx context.Context, source string) ([]*types.Record, error) {
	req, err := structpb.NewStruct(map[string]interface{}{"source": source})
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	return grpcapi.DecodeRecords(resp)
}

type shell struct {
	runner runner
	stdout io.Writer
	stderr io.Writer
}

// execute runs one batch and prints its records, or the error that stopped
// it. Statements before the failing one keep their effects.
func (s *shell) execute(ctx context.Context, source string) bool {
	recs, err := s.runner.Run(ctx, source)
	if err != nil {
		fmt.Fprintf(s.stderr, "error: %v\n", err)
		return false
	}
	if len(recs) == 0 {
		return true
	}
	out, err := executor.Render(recs)
	if err != nil {
		fmt.Fprintf(s.stderr, "error: %v\n", err)
		return false
	}
	fmt.Fprintf(s.stdout, "%s\n", out)
	return true
}

// runScript executes the whole of r as a single batch.
func (s *shell) runScript(ctx context.Context, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading script: %w", err)
	}
	if !s.execute(ctx, string(data)) {
		return fmt.Errorf("script failed")
	}
	return nil
}

// interactive reads statements until exit, executing each batch when a blank
// line is entered.
func (s *shell) interactive(ctx context.Context, stdin io.ReadCloser, historyPath string) error {
	fmt.Fprint(s.stdout, splash)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:                 promptBegin,
		HistoryFile:            historyPath,
		HistoryLimit:           10000,
		DisableAutoSaveHistory: true,

		Stdin:  stdin,
		Stdout: s.stdout,
		Stderr: s.stderr,
	})
	if err != nil {
		return fmt.Errorf("getting readline: %w", err)
	}
	defer rl.Close()

	var batch []string
	flush := func() {
		if len(batch) == 0 {
			return
		}
		source := strings.Join(batch, "\n")
		batch = batch[:0]
		rl.SaveHistory(source)
		s.execute(ctx, source)
	}

	for {
		if len(batch) > 0 {
			rl.SetPrompt(promptMid)
		} else {
			rl.SetPrompt(promptBegin)
		}

		line, err := rl.Readline()
		switch {
		case err == readline.ErrInterrupt:
			batch = batch[:0]
			continue
		case err == io.EOF:
			flush()
			return nil
		case err != nil:
			return fmt.Errorf("reading line: %w", err)
		}

		trimmed := strings.TrimSpace(line)
		if len(batch) == 0 && (trimmed == exitCommand || trimmed == quitCommand) {
			return nil
		}
		if trimmed == "" {
			flush()
			continue
		}
		batch = append(batch, line)
	}
}
