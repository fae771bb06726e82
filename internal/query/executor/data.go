package executor

import (
	"context"
	"encoding/json"

	tmplerrors "github.com/tmpldb/tmpldb/internal/errors"
	"github.com/tmpldb/tmpldb/pkg/types"
)

// Data runs the statements and renders their output as indented JSON.
// Execution failures are returned as-is; a rendering failure is reported as a
// serialization error.
func (e *StatementExecutor) Data(ctx context.Context, lines []types.Line) (string, error) {
	out, _, err := e.ExecuteJSON(ctx, lines)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// ExecuteJSON runs the statements and returns the rendered output with the
// number of records in it. Rendering failures are counted in the error
// metrics like execution failures.
func (e *StatementExecutor) ExecuteJSON(ctx context.Context, lines []types.Line) ([]byte, int, error) {
	recs, err := e.Execute(ctx, lines)
	if err != nil {
		return nil, 0, err
	}
	out, err := Render(recs)
	if err != nil {
		if e.metrics != nil {
			e.metrics.ObserveError(tmplerrors.GetCode(err))
		}
		e.logger.InfoContext(ctx, "render failed", "err", err)
		return nil, 0, err
	}
	return out, len(recs), nil
}

// Render serializes records as an indented JSON array. An empty result
// renders as [].
func Render(recs []*types.Record) ([]byte, error) {
	if recs == nil {
		recs = []*types.Record{}
	}
	out, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return nil, tmplerrors.NewSerializationError("failed to render output", err)
	}
	return out, nil
}
