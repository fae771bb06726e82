package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ValueKind identifies which variant of a Value is populated.
type ValueKind int

const (
	KindText ValueKind = iota
	KindInteger
	KindFloat
)

// String returns the string representation of a ValueKind.
func (k ValueKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	default:
		return "unknown"
	}
}

// Value holds exactly one of text, integer or floating-point data.
// Only the field matching Kind is meaningful; there is no coercion between
// variants.
type Value struct {
	Kind ValueKind

	Text  string  // for KindText
	Int   int64   // for KindInteger
	Float float64 // for KindFloat
}

// Text returns a text Value.
func Text(s string) Value { return Value{Kind: KindText, Text: s} }

// Integer returns an integer Value.
func Integer(i int64) Value { return Value{Kind: KindInteger, Int: i} }

// Float returns a floating-point Value.
func Float(f float64) Value { return Value{Kind: KindFloat, Float: f} }

// ZeroValue returns the default used when a field declares no starting value.
func ZeroValue(kind ValueKind) Value {
	return Value{Kind: kind}
}

// ParseValue builds a Value of the given kind from raw token text.
// Text is taken verbatim; integer and float text must parse cleanly.
func ParseValue(kind ValueKind, raw string) (Value, error) {
	switch kind {
	case KindText:
		return Text(raw), nil
	case KindInteger:
		i, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("invalid integer literal %q: %w", raw, err)
		}
		return Integer(i), nil
	case KindFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Value{}, fmt.Errorf("invalid float literal %q: %w", raw, err)
		}
		return Float(f), nil
	default:
		return Value{}, fmt.Errorf("unknown value kind %d", kind)
	}
}

// KindForTypeMarker maps a field type token to the Value kind it declares.
func KindForTypeMarker(k TokenKind) (ValueKind, bool) {
	switch k {
	case TokenStringType:
		return KindText, true
	case TokenIntegerType:
		return KindInteger, true
	case TokenFloatType:
		return KindFloat, true
	}
	return 0, false
}

// KindForLiteral maps a literal token to the Value kind it carries.
func KindForLiteral(k TokenKind) (ValueKind, bool) {
	switch k {
	case TokenLiteral:
		return KindText, true
	case TokenInteger:
		return KindInteger, true
	case TokenFloat:
		return KindFloat, true
	}
	return 0, false
}

// Equal reports whether two values have the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindText:
		return v.Text == o.Text
	case KindInteger:
		return v.Int == o.Int
	case KindFloat:
		return v.Float == o.Float
	}
	return false
}

// String renders the value as statement text. Finite floats use plain
// decimal notation with a fraction, so they lex back as floats.
func (v Value) String() string {
	switch v.Kind {
	case KindInteger:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return formatDecimal(v.Float)
	default:
		return v.Text
	}
}

// MarshalJSON renders text as a JSON string and numbers as JSON numbers.
// Floats always keep a fraction or exponent so 3.0 never reads back as 3.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindText:
		return json.Marshal(v.Text)
	case KindInteger:
		return []byte(strconv.FormatInt(v.Int, 10)), nil
	case KindFloat:
		if math.IsNaN(v.Float) || math.IsInf(v.Float, 0) {
			return nil, fmt.Errorf("unsupported float value: %v", v.Float)
		}
		return []byte(formatFloat(v.Float)), nil
	default:
		return nil, fmt.Errorf("unknown value kind %d", v.Kind)
	}
}

// UnmarshalJSON accepts what MarshalJSON produces.
func (v *Value) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if strings.HasPrefix(s, `"`) {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*v = Text(text)
		return nil
	}
	if strings.ContainsAny(s, ".eE") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid float: %w", err)
		}
		*v = Float(f)
		return nil
	}
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer: %w", err)
	}
	*v = Integer(i)
	return nil
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEIN") {
		s += ".0"
	}
	return s
}

// formatDecimal is formatFloat without exponents; the lexer has no exponent
// form for floats.
func formatDecimal(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
