package executor

import (
	"fmt"

	tmplerrors "github.com/tmpldb/tmpldb/internal/errors"
	"github.com/tmpldb/tmpldb/internal/store"
	"github.com/tmpldb/tmpldb/pkg/types"
)

// accessFunc is notified of every field read ("get") or write ("set").
type accessFunc func(template, field, operation string)

// MultilineQuery runs the get/set lines of a then...end block against one
// instance. The caller has already taken the instance out of the session and
// holds the session for the whole call.
//
// Each get line appends one projection of the working instance as it stands
// at that point in the block, so a set earlier in the block is visible to a
// later get. The working instance is put back into the session exactly once,
// also when a line fails; there is no rollback of sets that already ran.
func MultilineQuery(instance *types.Record, lines []types.Line, sess *store.Session) ([]*types.Record, error) {
	return multilineQuery(instance, lines, sess, nil)
}

func multilineQuery(instance *types.Record, lines []types.Line, sess *store.Session, onAccess accessFunc) ([]*types.Record, error) {
	working := instance
	defer sess.Put(working)

	var output []*types.Record
	for i, line := range lines {
		kind, ok := line.Leading()
		if !ok {
			return nil, blockError(tmplerrors.NewSyntaxError("empty statement in block"), i)
		}

		switch kind {
		case types.TokenGet:
			fields, err := parseFieldList(line[1:])
			if err != nil {
				return nil, blockError(err, i)
			}
			proj, perr := working.Project(fields)
			if perr != nil {
				return nil, blockError(tmplerrors.NewFieldNotFound(
					fmt.Sprintf("instance %q", working.Instance), perr), i)
			}
			notify(onAccess, working.Schema, fields, "get")
			output = append(output, proj)

		case types.TokenSet:
			field, value, err := parseAssignment(line[1:])
			if err != nil {
				return nil, blockError(err, i)
			}
			working.Set(field, value)
			notify(onAccess, working.Schema, []string{field}, "set")

		default:
			return nil, blockError(tmplerrors.NewSyntaxError(
				fmt.Sprintf("unexpected %s in block, want get or set", kind)), i)
		}
	}
	return output, nil
}

// parseFieldList reads one or more bare field names.
func parseFieldList(tokens []types.TokenMatch) ([]string, *tmplerrors.TmplError) {
	if len(tokens) == 0 {
		return nil, tmplerrors.NewSyntaxError("get needs at least one field")
	}
	fields := make([]string, len(tokens))
	for i, t := range tokens {
		if t.Kind != types.TokenLiteral {
			return nil, tmplerrors.NewSyntaxError(fmt.Sprintf("expected field name, got %s", t.Kind))
		}
		fields[i] = t.Value
	}
	return fields, nil
}

// parseAssignment reads "<field> value <literal|integer|float>".
func parseAssignment(tokens []types.TokenMatch) (string, types.Value, *tmplerrors.TmplError) {
	if len(tokens) != 3 {
		return "", types.Value{}, tmplerrors.NewSyntaxError("set must be: set <field> value <literal>")
	}
	if tokens[0].Kind != types.TokenLiteral || tokens[1].Kind != types.TokenValue {
		return "", types.Value{}, tmplerrors.NewSyntaxError("set must be: set <field> value <literal>")
	}
	kind, ok := types.KindForLiteral(tokens[2].Kind)
	if !ok {
		return "", types.Value{}, tmplerrors.NewSyntaxError(
			fmt.Sprintf("expected literal, integer or float, got %s", tokens[2].Kind))
	}
	v, err := types.ParseValue(kind, tokens[2].Value)
	if err != nil {
		return "", types.Value{}, tmplerrors.NewInvalidLiteral(fmt.Sprintf("value for field %q", tokens[0].Value), err)
	}
	return tokens[0].Value, v, nil
}

func notify(onAccess accessFunc, template string, fields []string, operation string) {
	if onAccess == nil {
		return
	}
	for _, f := range fields {
		onAccess(template, f, operation)
	}
}

func blockError(err *tmplerrors.TmplError, index int) *tmplerrors.TmplError {
	return err.WithDetails(map[string]interface{}{"block_line": index + 1})
}
