package types

import (
	"fmt"
	"strings"
)

// TokenKind tags a lexical token of the statement language.
type TokenKind int

const (
	// Structural keywords
	TokenType TokenKind = iota // schema-begin, also "query type" / "create ... type"
	TokenCreate
	TokenQuery
	TokenDelete
	TokenSet
	TokenGet
	TokenValue
	TokenThen
	TokenEnd
	TokenName

	// Literals
	TokenLiteral
	TokenInteger
	TokenFloat

	// Type markers
	TokenStringType
	TokenIntegerType
	TokenFloatType
)

var tokenKindNames = map[TokenKind]string{
	TokenType:        "TYPE",
	TokenCreate:      "CREATE",
	TokenQuery:       "QUERY",
	TokenDelete:      "DELETE",
	TokenSet:         "SET",
	TokenGet:         "GET",
	TokenValue:       "VALUE",
	TokenThen:        "THEN",
	TokenEnd:         "END",
	TokenName:        "NAME",
	TokenLiteral:     "LITERAL",
	TokenInteger:     "INTEGER",
	TokenFloat:       "FLOAT",
	TokenStringType:  "STRING_TYPE",
	TokenIntegerType: "INTEGER_TYPE",
	TokenFloatType:   "FLOAT_TYPE",
}

// String returns the string representation of a TokenKind.
func (k TokenKind) String() string {
	if s, ok := tokenKindNames[k]; ok {
		return s
	}
	return "UNKNOWN"
}

// IsTypeMarker reports whether the kind names a field type.
func (k TokenKind) IsTypeMarker() bool {
	return k == TokenStringType || k == TokenIntegerType || k == TokenFloatType
}

// TokenMatch is one lexed token: its kind and the raw text it was read from.
type TokenMatch struct {
	Kind  TokenKind
	Value string
}

// String returns a string representation of the token.
func (t TokenMatch) String() string {
	return fmt.Sprintf("%s(%q)", t.Kind, t.Value)
}

// Tok is shorthand for building a TokenMatch.
func Tok(kind TokenKind, value string) TokenMatch {
	return TokenMatch{Kind: kind, Value: value}
}

// Line is one statement line: an ordered sequence of tokens.
type Line []TokenMatch

// Leading returns the kind of the first token. ok is false for an empty line.
func (l Line) Leading() (kind TokenKind, ok bool) {
	if len(l) == 0 {
		return 0, false
	}
	return l[0].Kind, true
}

// String renders the line for diagnostics.
func (l Line) String() string {
	parts := make([]string, len(l))
	for i, t := range l {
		parts[i] = t.String()
	}
	return strings.Join(parts, " ")
}
