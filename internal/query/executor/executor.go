// Package executor interprets tokenized statement lines against a store.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tmplerrors "github.com/tmpldb/tmpldb/internal/errors"
	"github.com/tmpldb/tmpldb/internal/observability"
	"github.com/tmpldb/tmpldb/internal/store"
	"github.com/tmpldb/tmpldb/pkg/types"
)

// Statement kinds used for stats and metrics labels.
const (
	KindDefine      = "define"
	KindCreate      = "create"
	KindQueryType   = "query_type"
	KindQuery       = "query"
	KindQueryGet    = "query_get"
	KindQuerySet    = "query_set"
	KindTransaction = "transaction"
	KindDelete      = "delete"
	KindDeleteType  = "delete_type"
)

// QueryExecutor executes statement batches.
type QueryExecutor interface {
	// Execute runs the statements and returns the output records in statement order
	Execute(ctx context.Context, lines []types.Line) ([]*types.Record, error)

	// Data runs the statements and renders the output as JSON
	Data(ctx context.Context, lines []types.Line) (string, error)

	// ExecuteJSON runs the statements and returns the rendered output and record count
	ExecuteJSON(ctx context.Context, lines []types.Line) ([]byte, int, error)
}

// ExecutorConfig holds optional collaborators for the executor.
type ExecutorConfig struct {
	// Logger receives per-statement debug logs (default: slog.Default())
	Logger *slog.Logger

	// Stats tracks statement and field access counts (optional)
	Stats *observability.StatementStats

	// Metrics exports Prometheus counters (optional)
	Metrics *observability.Metrics
}

// StatementExecutor implements QueryExecutor over a store.
//
// A batch runs synchronously on the calling goroutine. It stops at the first
// failing statement; statements before it stay applied to the store.
type StatementExecutor struct {
	store   *store.Store
	logger  *slog.Logger
	stats   *observability.StatementStats
	metrics *observability.Metrics
}

// NewStatementExecutor creates an executor over st.
func NewStatementExecutor(st *store.Store, cfg ExecutorConfig) *StatementExecutor {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &StatementExecutor{
		store:   st,
		logger:  cfg.Logger,
		stats:   cfg.Stats,
		metrics: cfg.Metrics,
	}
}

// Store returns the store the executor runs against.
func (e *StatementExecutor) Store() *store.Store {
	return e.store
}

// Execute walks lines with a cursor, dispatching on the leading token of each
// statement. Block statements consume every line up to and including the
// first following line that starts with end.
func (e *StatementExecutor) Execute(ctx context.Context, lines []types.Line) ([]*types.Record, error) {
	start := time.Now()

	var output []*types.Record
	for i := 0; i < len(lines); {
		next, recs, err := e.executeStatement(ctx, lines, i)
		if err != nil {
			err = atLine(err, i+1)
			e.finish(ctx, start, err)
			return nil, err
		}
		output = append(output, recs...)
		i = next
	}

	e.finish(ctx, start, nil)
	return output, nil
}

// executeStatement runs the statement starting at lines[i] and returns the
// index of the next statement.
func (e *StatementExecutor) executeStatement(ctx context.Context, lines []types.Line, i int) (int, []*types.Record, error) {
	line := lines[i]
	kind, ok := line.Leading()
	if !ok {
		return 0, nil, tmplerrors.NewSyntaxError("empty statement")
	}

	switch kind {
	case types.TokenType:
		end, err := findEnd(lines, i+1)
		if err != nil {
			return 0, nil, err
		}
		return end + 1, nil, e.define(ctx, lines[i:end+1])

	case types.TokenCreate:
		return i + 1, nil, e.create(ctx, line)

	case types.TokenQuery:
		return e.query(ctx, lines, i)

	case types.TokenDelete:
		return i + 1, nil, e.delete(ctx, line)

	case types.TokenName, types.TokenEnd, types.TokenSet, types.TokenGet:
		// Stray block markers at top level carry no meaning.
		return i + 1, nil, nil

	default:
		return 0, nil, tmplerrors.NewSyntaxError(fmt.Sprintf("unexpected %s at start of statement", kind))
	}
}

func (e *StatementExecutor) define(ctx context.Context, block []types.Line) error {
	tmpl, err := CreateTemplate(block)
	if err != nil {
		return err
	}
	if err := e.store.AddTemplate(tmpl); err != nil {
		return err
	}
	e.observe(ctx, KindDefine, "template", tmpl.Schema, "fields", tmpl.Len())
	return nil
}

// create handles: create <instance> type <template>
func (e *StatementExecutor) create(ctx context.Context, line types.Line) error {
	if len(line) != 4 || line[1].Kind != types.TokenLiteral || line[2].Kind != types.TokenType {
		return tmplerrors.NewSyntaxError("create must be: create <instance> type <template>")
	}
	name, schema := line[1].Value, line[3].Value
	if name == "" {
		return tmplerrors.NewSyntaxError("instance name must not be empty")
	}
	if _, err := e.store.Instantiate(schema, name); err != nil {
		return err
	}
	e.observe(ctx, KindCreate, "instance", name, "template", schema)
	return nil
}

// query handles every statement that starts with query.
func (e *StatementExecutor) query(ctx context.Context, lines []types.Line, i int) (int, []*types.Record, error) {
	line := lines[i]
	if len(line) < 2 {
		return 0, nil, tmplerrors.NewSyntaxError("query needs a target")
	}

	switch line[1].Kind {
	case types.TokenType:
		if len(line) != 2 {
			return 0, nil, tmplerrors.NewSyntaxError("query type takes no arguments")
		}
		templates := e.store.Templates()
		e.observe(ctx, KindQueryType, "templates", len(templates))
		return i + 1, templates, nil

	case types.TokenLiteral:
		// handled below

	default:
		return 0, nil, tmplerrors.NewSyntaxError(fmt.Sprintf("unexpected %s after query", line[1].Kind))
	}

	name := line[1].Value
	if len(line) == 2 {
		rec, err := e.queryInstance(ctx, name)
		if err != nil {
			return 0, nil, err
		}
		return i + 1, []*types.Record{rec}, nil
	}

	switch line[2].Kind {
	case types.TokenGet:
		fields, err := parseFieldList(line[3:])
		if err != nil {
			return 0, nil, err
		}
		proj, perr := e.queryGet(ctx, name, fields)
		if perr != nil {
			return 0, nil, perr
		}
		return i + 1, []*types.Record{proj}, nil

	case types.TokenSet:
		field, value, err := parseAssignment(line[3:])
		if err != nil {
			return 0, nil, err
		}
		return i + 1, nil, e.querySet(ctx, name, field, value)

	case types.TokenThen:
		if len(line) != 3 {
			return 0, nil, tmplerrors.NewSyntaxError("then must end the query line")
		}
		end, err := findEnd(lines, i+1)
		if err != nil {
			return 0, nil, err
		}
		recs, err := e.transaction(ctx, name, lines[i+1:end])
		if err != nil {
			return 0, nil, err
		}
		return end + 1, recs, nil

	default:
		return 0, nil, tmplerrors.NewSyntaxError(fmt.Sprintf("unexpected %s after query target", line[2].Kind))
	}
}

// queryInstance returns a copy of the named instance.
func (e *StatementExecutor) queryInstance(ctx context.Context, name string) (*types.Record, error) {
	sess := e.store.Exclusive()
	defer sess.Release()

	inst, err := sess.Take(name)
	if err != nil {
		return nil, err
	}
	sess.Put(inst)

	e.observe(ctx, KindQuery, "instance", name)
	return inst.Clone(), nil
}

// queryGet projects the named fields of an instance. The stored instance is
// not modified, including when a field is missing.
func (e *StatementExecutor) queryGet(ctx context.Context, name string, fields []string) (*types.Record, error) {
	sess := e.store.Exclusive()
	defer sess.Release()

	inst, err := sess.Take(name)
	if err != nil {
		return nil, err
	}
	proj, perr := inst.Project(fields)
	sess.Put(inst)
	if perr != nil {
		return nil, tmplerrors.NewFieldNotFound(fmt.Sprintf("instance %q", name), perr)
	}

	e.recordAccess(inst.Schema, fields, "get")
	e.observe(ctx, KindQueryGet, "instance", name, "fields", len(fields))
	return proj, nil
}

// querySet replaces one field of an instance. The value is not checked
// against the type the template declared for the field.
func (e *StatementExecutor) querySet(ctx context.Context, name, field string, value types.Value) error {
	sess := e.store.Exclusive()
	defer sess.Release()

	inst, err := sess.Take(name)
	if err != nil {
		return err
	}
	inst.Set(field, value)
	sess.Put(inst)

	e.recordAccess(inst.Schema, []string{field}, "set")
	e.observe(ctx, KindQuerySet, "instance", name, "field", field)
	return nil
}

// transaction runs a then...end block while holding the instance session.
func (e *StatementExecutor) transaction(ctx context.Context, name string, body []types.Line) ([]*types.Record, error) {
	sess := e.store.Exclusive()
	defer sess.Release()

	inst, err := sess.Take(name)
	if err != nil {
		return nil, err
	}

	e.logger.DebugContext(ctx, "transaction begin", "session", sess.ID(), "instance", name, "lines", len(body))
	recs, err := multilineQuery(inst, body, sess, e.recordAccessOne)
	if err != nil {
		return nil, err
	}
	e.observe(ctx, KindTransaction, "session", sess.ID(), "instance", name, "outputs", len(recs))
	return recs, nil
}

// delete handles: delete <instance> and delete type <template>
func (e *StatementExecutor) delete(ctx context.Context, line types.Line) error {
	if len(line) == 2 && line[1].Kind == types.TokenLiteral {
		name := line[1].Value
		sess := e.store.Exclusive()
		err := sess.Remove(name)
		sess.Release()
		if err != nil {
			return err
		}
		e.observe(ctx, KindDelete, "instance", name)
		return nil
	}

	if len(line) == 3 && line[1].Kind == types.TokenType && line[2].Kind == types.TokenLiteral {
		name := line[2].Value
		removed, err := e.store.RemoveTemplate(name)
		if err != nil {
			return err
		}
		e.observe(ctx, KindDeleteType, "template", name, "cascaded", removed)
		return nil
	}

	return tmplerrors.NewSyntaxError("delete must be: delete <instance> or delete type <template>")
}

func (e *StatementExecutor) recordAccess(template string, fields []string, operation string) {
	for _, f := range fields {
		e.recordAccessOne(template, f, operation)
	}
}

func (e *StatementExecutor) recordAccessOne(template, field, operation string) {
	if e.stats != nil {
		e.stats.RecordFieldAccess(template, field, operation)
	}
}

// observe counts one successful statement and logs it at debug level.
func (e *StatementExecutor) observe(ctx context.Context, kind string, attrs ...any) {
	if e.stats != nil {
		e.stats.RecordStatement(kind)
	}
	if e.metrics != nil {
		e.metrics.ObserveStatement(kind)
	}
	e.logger.DebugContext(ctx, "statement executed", append([]any{"kind", kind}, attrs...)...)
}

// finish records batch-level metrics once Execute returns.
func (e *StatementExecutor) finish(ctx context.Context, start time.Time, err error) {
	if e.metrics != nil {
		e.metrics.ObserveDuration(time.Since(start))
		st := e.store.Stats()
		e.metrics.SetStored(st.Templates, st.Instances)
		if err != nil {
			e.metrics.ObserveError(tmplerrors.GetCode(err))
		}
	}
	if err != nil {
		e.logger.InfoContext(ctx, "statement failed", "err", err)
	}
}

// findEnd returns the index of the first line at or after from whose leading
// token is end.
func findEnd(lines []types.Line, from int) (int, error) {
	for j := from; j < len(lines); j++ {
		if k, ok := lines[j].Leading(); ok && k == types.TokenEnd {
			return j, nil
		}
	}
	return 0, tmplerrors.NewUnterminatedBlock("block has no end line")
}

// atLine attaches the 1-based statement line to err.
func atLine(err error, line int) error {
	te, ok := err.(*tmplerrors.TmplError)
	if !ok {
		return tmplerrors.NewInternalError(fmt.Sprintf("line %d", line), err)
	}
	return te.WithDetails(map[string]interface{}{"line": line})
}
