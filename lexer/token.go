package lexer

import (
	"fmt"

	"github.com/deicod/jinjac/diag"
)

// TokenType represents the type of a token
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenText
	TokenRaw
	TokenExprStart
	TokenExprEnd
	TokenTagStart
	TokenTagEnd
	TokenCommentStart
	TokenCommentEnd
	TokenName
	TokenString
	TokenInt
	TokenFloat
	TokenOperator
)

var tokenNames = map[TokenType]string{
	TokenEOF:          "EOF",
	TokenText:         "TEXT",
	TokenRaw:          "RAW",
	TokenExprStart:    "EXPR_START",
	TokenExprEnd:      "EXPR_END",
	TokenTagStart:     "TAG_START",
	TokenTagEnd:       "TAG_END",
	TokenCommentStart: "COMMENT_START",
	TokenCommentEnd:   "COMMENT_END",
	TokenName:         "NAME",
	TokenString:       "STRING",
	TokenInt:          "INT",
	TokenFloat:        "FLOAT",
	TokenOperator:     "OPERATOR",
}

func (tt TokenType) String() string {
	if name, ok := tokenNames[tt]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", tt)
}

// Whitespace is the trim intent attached to one side of a delimiter.
type Whitespace int

const (
	// WsNone means no directive is adjacent on that side.
	WsNone Whitespace = iota
	// WsDefault is a directive without an explicit marker; the configured
	// default applies.
	WsDefault
	WsPreserve
	WsMinimize
	WsSuppress
)

var whitespaceNames = map[Whitespace]string{
	WsNone:     "none",
	WsDefault:  "default",
	WsPreserve: "preserve",
	WsMinimize: "minimize",
	WsSuppress: "suppress",
}

func (w Whitespace) String() string {
	if name, ok := whitespaceNames[w]; ok {
		return name
	}
	return fmt.Sprintf("Whitespace(%d)", w)
}

// Marker returns the delimiter marker character for w, or "" when w has none.
func (w Whitespace) Marker() string {
	switch w {
	case WsPreserve:
		return "+"
	case WsMinimize:
		return "~"
	case WsSuppress:
		return "-"
	}
	return ""
}

// ParseWhitespace maps a configuration value to a trim mode.
func ParseWhitespace(s string) (Whitespace, bool) {
	switch s {
	case "preserve", "":
		return WsPreserve, true
	case "minimize":
		return WsMinimize, true
	case "suppress":
		return WsSuppress, true
	}
	return WsNone, false
}

func markerWhitespace(c byte) (Whitespace, bool) {
	switch c {
	case '+':
		return WsPreserve, true
	case '~':
		return WsMinimize, true
	case '-':
		return WsSuppress, true
	}
	return WsDefault, false
}

// Token represents a single token in the template. Ws is only meaningful
// on delimiter tokens: the marker following a start delimiter or preceding
// an end delimiter.
type Token struct {
	Type  TokenType
	Value string
	Ws    Whitespace
	Span  diag.Span
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q) at %d:%d", t.Type, t.Value, t.Span.Line, t.Span.Column)
}

// Is reports whether the token is an operator or name with the given value.
func (t Token) Is(value string) bool {
	return (t.Type == TokenOperator || t.Type == TokenName) && t.Value == value
}

// TokenStream buffers a lazy token source for lookahead. The first lexing
// error ends the stream: every later call yields EOF and Err reports it.
type TokenStream struct {
	lex    *Lexer
	buf    []Token
	err    error
	last   Token
	closed bool
}

// NewTokenStream creates a stream pulling tokens from lex on demand.
func NewTokenStream(lex *Lexer) *TokenStream {
	return &TokenStream{lex: lex}
}

func (ts *TokenStream) fill(n int) {
	for len(ts.buf) <= n && !ts.closed {
		tok, err := ts.lex.Next()
		if err != nil {
			ts.err = err
			ts.closed = true
			return
		}
		ts.buf = append(ts.buf, tok)
		if tok.Type == TokenEOF {
			ts.closed = true
		}
	}
}

func (ts *TokenStream) eofToken() Token {
	return Token{Type: TokenEOF, Span: ts.lex.eofSpan()}
}

// Next consumes and returns the current token.
func (ts *TokenStream) Next() Token {
	ts.fill(0)
	if len(ts.buf) == 0 {
		return ts.eofToken()
	}
	tok := ts.buf[0]
	if tok.Type != TokenEOF {
		ts.buf = ts.buf[1:]
	}
	ts.last = tok
	return tok
}

// Peek returns the current token without consuming it.
func (ts *TokenStream) Peek() Token {
	return ts.PeekN(0)
}

// PeekN returns the token n positions ahead of the current one.
func (ts *TokenStream) PeekN(n int) Token {
	ts.fill(n)
	if n >= len(ts.buf) {
		return ts.eofToken()
	}
	return ts.buf[n]
}

// Last returns the most recently consumed token.
func (ts *TokenStream) Last() Token {
	return ts.last
}

// Eof reports whether the stream is exhausted.
func (ts *TokenStream) Eof() bool {
	return ts.Peek().Type == TokenEOF
}

// Err returns the lexing error that ended the stream, if any.
func (ts *TokenStream) Err() error {
	return ts.err
}
