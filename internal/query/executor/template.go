package executor

import (
	"fmt"

	tmplerrors "github.com/tmpldb/tmpldb/internal/errors"
	"github.com/tmpldb/tmpldb/pkg/types"
)

// CreateTemplate builds a definition from a template declaration block:
//
//	type <name>
//	name <field> type <string|integer|float> [value <literal>]
//	...
//	end
//
// A field without a starting value gets its type's zero value.
func CreateTemplate(lines []types.Line) (*types.Record, error) {
	if len(lines) < 2 {
		return nil, tmplerrors.NewSyntaxError("template block needs a header and an end line")
	}
	first, last := lines[0], lines[len(lines)-1]

	if len(first) != 2 || first[0].Kind != types.TokenType {
		return nil, tmplerrors.NewSyntaxError("template header must be: type <name>")
	}
	if k, ok := last.Leading(); !ok || k != types.TokenEnd {
		return nil, tmplerrors.NewSyntaxError("template block must close with end")
	}
	name := first[1].Value
	if name == "" {
		return nil, tmplerrors.NewSyntaxError("template name must not be empty")
	}

	tmpl := types.NewTemplate(name)
	for i, line := range lines[1 : len(lines)-1] {
		field, value, err := parseFieldDeclaration(line)
		if err != nil {
			return nil, err.WithDetails(map[string]interface{}{"block_line": i + 2})
		}
		tmpl.Set(field, value)
	}
	return tmpl, nil
}

// parseFieldDeclaration reads "name <field> type <type>" with an optional
// "value <literal>" suffix.
func parseFieldDeclaration(line types.Line) (string, types.Value, *tmplerrors.TmplError) {
	if len(line) != 4 && len(line) != 6 {
		return "", types.Value{}, tmplerrors.NewSyntaxError(
			fmt.Sprintf("field declaration has %d tokens, want 4 or 6", len(line)))
	}
	if line[0].Kind != types.TokenName || line[2].Kind != types.TokenType {
		return "", types.Value{}, tmplerrors.NewSyntaxError("field declaration must be: name <field> type <type>")
	}
	if !line[3].Kind.IsTypeMarker() {
		return "", types.Value{}, tmplerrors.NewSyntaxError(
			fmt.Sprintf("unknown field type %q", line[3].Value))
	}
	kind, _ := types.KindForTypeMarker(line[3].Kind)
	field := line[1].Value

	if len(line) == 4 {
		return field, types.ZeroValue(kind), nil
	}

	if line[4].Kind != types.TokenValue {
		return "", types.Value{}, tmplerrors.NewSyntaxError("expected value before starting literal")
	}
	v, err := types.ParseValue(kind, line[5].Value)
	if err != nil {
		return "", types.Value{}, tmplerrors.NewInvalidLiteral(
			fmt.Sprintf("starting value for field %q", field), err)
	}
	return field, v, nil
}
