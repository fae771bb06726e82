// Package lexer turns statement source text into tokenized lines for the
// executor. One statement per line; blank lines and lines starting with '#'
// are skipped.
package lexer

import (
	"fmt"
	"strings"

	"github.com/tmpldb/tmpldb/pkg/types"
)

// LexError reports a lexical error with location information.
type LexError struct {
	Message string
	Line    int // 1-based source line
	Column  int // 1-based byte column
}

func (e *LexError) Error() string {
	return fmt.Sprintf("lex error at %d:%d: %s", e.Line, e.Column, e.Message)
}

// keywords maps statement keywords to their token kinds.
var keywords = map[string]types.TokenKind{
	"TYPE":    types.TokenType,
	"CREATE":  types.TokenCreate,
	"QUERY":   types.TokenQuery,
	"DELETE":  types.TokenDelete,
	"SET":     types.TokenSet,
	"GET":     types.TokenGet,
	"VALUE":   types.TokenValue,
	"THEN":    types.TokenThen,
	"END":     types.TokenEnd,
	"NAME":    types.TokenName,
	"STRING":  types.TokenStringType,
	"INTEGER": types.TokenIntegerType,
	"FLOAT":   types.TokenFloatType,
}

// Lexer tokenizes a single source line.
type Lexer struct {
	input   string
	line    int
	pos     int  // Current position in input
	readPos int  // Reading position (after current char)
	ch      byte // Current character
}

// NewLexer creates a new Lexer for one line of input.
func NewLexer(input string, line int) *Lexer {
	l := &Lexer{input: input, line: line}
	l.readChar()
	return l
}

// Tokenize splits source into lines and lexes each one.
func Tokenize(source string) ([]types.Line, error) {
	var lines []types.Line
	for i, raw := range strings.Split(source, "\n") {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		line, err := NewLexer(raw, i+1).Line()
		if err != nil {
			return nil, err
		}
		if len(line) > 0 {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

// Line returns every token on the line.
func (l *Lexer) Line() (types.Line, error) {
	var line types.Line
	for {
		l.skipWhitespace()
		if l.ch == 0 {
			return line, nil
		}
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		line = append(line, tok)
	}
}

// readChar reads the next character and advances the position.
func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
}

// peekChar returns the next character without advancing.
func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) skipWhitespace() {
	for isSpace(l.ch) {
		l.readChar()
	}
}

func (l *Lexer) errorf(format string, args ...interface{}) error {
	return &LexError{Message: fmt.Sprintf(format, args...), Line: l.line, Column: l.pos + 1}
}

func (l *Lexer) next() (types.TokenMatch, error) {
	switch {
	case l.ch == '"':
		return l.readString()
	case isDigit(l.ch) || (l.ch == '-' && isDigit(l.peekChar())):
		return l.readNumber(), nil
	default:
		return l.readWord(), nil
	}
}

// readWord reads a keyword or bare literal up to the next whitespace.
func (l *Lexer) readWord() types.TokenMatch {
	start := l.pos
	for l.ch != 0 && !isSpace(l.ch) {
		l.readChar()
	}
	word := l.input[start:l.pos]
	if kind, ok := keywords[strings.ToUpper(word)]; ok {
		return types.Tok(kind, word)
	}
	return types.Tok(types.TokenLiteral, word)
}

// readNumber reads an integer or float literal. A word that starts like a
// number but continues with other characters is a bare literal.
func (l *Lexer) readNumber() types.TokenMatch {
	start := l.pos
	if l.ch == '-' {
		l.readChar()
	}
	hasDecimal := false
	for isDigit(l.ch) || (l.ch == '.' && !hasDecimal && isDigit(l.peekChar())) {
		if l.ch == '.' {
			hasDecimal = true
		}
		l.readChar()
	}
	if l.ch != 0 && !isSpace(l.ch) {
		for l.ch != 0 && !isSpace(l.ch) {
			l.readChar()
		}
		return types.Tok(types.TokenLiteral, l.input[start:l.pos])
	}

	literal := l.input[start:l.pos]
	if hasDecimal {
		return types.Tok(types.TokenFloat, literal)
	}
	return types.Tok(types.TokenInteger, literal)
}

// readString reads a double-quoted literal. \" and \\ are the only escapes.
func (l *Lexer) readString() (types.TokenMatch, error) {
	startCol := l.pos
	l.readChar() // Skip opening quote

	var sb strings.Builder
	for l.ch != '"' {
		switch l.ch {
		case 0:
			return types.TokenMatch{}, &LexError{Message: "unterminated string", Line: l.line, Column: startCol + 1}
		case '\\':
			switch l.peekChar() {
			case '"', '\\':
				l.readChar()
			default:
				return types.TokenMatch{}, l.errorf("invalid escape \\%c", l.peekChar())
			}
		}
		sb.WriteByte(l.ch)
		l.readChar()
	}
	l.readChar() // Skip closing quote

	if l.ch != 0 && !isSpace(l.ch) {
		return types.TokenMatch{}, l.errorf("unexpected %q after string", l.ch)
	}
	return types.Tok(types.TokenLiteral, sb.String()), nil
}

// isSpace reports ASCII separators only. Bytes of multi-byte UTF-8 runes
// are always part of a word.
func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\r' || ch == '\v' || ch == '\f'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}
