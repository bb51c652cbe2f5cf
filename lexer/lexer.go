package lexer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/deicod/jinjac/diag"
)

type mode int

const (
	modeData mode = iota
	modeInside
	modeDone
)

// operators sorted so that longer operators match first
var operators = []string{
	"//", "**", "==", "!=", ">=", "<=",
	"=", "+", "-", "*", "/", "%", "~", "[", "]", "(", ")",
	">", "<", ".", ":", "|", ",", "{", "}",
}

// Lexer scans template source into tokens on demand.
type Lexer struct {
	src    string
	syntax Syntax
	pos    int
	line   int
	col    int
	mode   mode

	// state of the open expression or tag
	end       string
	endType   TokenType
	open      diag.Span
	what      string
	depth     int
	tagTokens int
	rawTag    bool

	pending []Token
	err     error
}

// New creates a lexer for source using the given delimiters. Invalid UTF-8
// is reported by the first call to Next.
func New(source string, syntax Syntax) *Lexer {
	l := &Lexer{
		src:    source,
		syntax: syntax.WithDefaults(),
		line:   1,
		col:    1,
	}
	if !utf8.ValidString(source) {
		off := invalidOffset(source)
		line, col := diag.Locate(source, off)
		l.err = diag.New(diag.KindEncoding, diag.Span{Start: off, End: off + 1, Line: line, Column: col},
			"template source is not valid UTF-8 (invalid byte 0x%02x)", source[off])
	}
	return l
}

// Tokenize scans the whole source eagerly.
func Tokenize(source string, syntax Syntax) ([]Token, error) {
	l := New(source, syntax)
	var tokens []Token
	for {
		tok, err := l.Next()
		if err != nil {
			return tokens, err
		}
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens, nil
		}
	}
}

// Next returns the next token. After EOF it keeps returning EOF; after an
// error it keeps returning that error.
func (l *Lexer) Next() (Token, error) {
	if l.err != nil {
		return Token{}, l.err
	}
	if len(l.pending) > 0 {
		tok := l.pending[0]
		l.pending = l.pending[1:]
		return tok, nil
	}

	var (
		tok Token
		err error
	)
	switch l.mode {
	case modeData:
		tok, err = l.lexData()
	case modeInside:
		tok, err = l.lexInside()
	default:
		return Token{Type: TokenEOF, Span: l.eofSpan()}, nil
	}
	if err != nil {
		l.err = err
		return Token{}, err
	}
	return tok, nil
}

func (l *Lexer) mark() diag.Span {
	return diag.Span{Start: l.pos, End: l.pos, Line: l.line, Column: l.col}
}

func (l *Lexer) spanFrom(start diag.Span) diag.Span {
	start.End = l.pos
	return start
}

func (l *Lexer) eofSpan() diag.Span {
	return diag.Span{Start: len(l.src), End: len(l.src), Line: l.line, Column: l.col}
}

// advance moves n bytes forward, keeping line and column current.
func (l *Lexer) advance(n int) {
	end := l.pos + n
	for l.pos < end {
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		if r == '\n' {
			l.line++
			l.col = 1
		} else {
			l.col++
		}
		l.pos += size
	}
}

func (l *Lexer) lexData() (Token, error) {
	if l.pos >= len(l.src) {
		l.mode = modeDone
		return Token{Type: TokenEOF, Span: l.eofSpan()}, nil
	}

	idx, kind := l.nextDelimiter()
	if idx < 0 {
		idx = len(l.src)
	}
	if idx > l.pos {
		start := l.mark()
		value := l.src[l.pos:idx]
		l.advance(idx - l.pos)
		return Token{Type: TokenText, Value: value, Span: l.spanFrom(start)}, nil
	}

	switch kind {
	case TokenCommentStart:
		return l.lexComment()
	case TokenExprStart:
		return l.openConstruct(l.syntax.ExprStart, l.syntax.ExprEnd, TokenExprStart, TokenExprEnd, "expression"), nil
	default:
		return l.openConstruct(l.syntax.BlockStart, l.syntax.BlockEnd, TokenTagStart, TokenTagEnd, "tag"), nil
	}
}

// nextDelimiter finds the closest start delimiter at or after pos.
func (l *Lexer) nextDelimiter() (int, TokenType) {
	best, kind := -1, TokenEOF
	rest := l.src[l.pos:]
	for _, c := range []struct {
		delim string
		typ   TokenType
	}{
		{l.syntax.ExprStart, TokenExprStart},
		{l.syntax.BlockStart, TokenTagStart},
		{l.syntax.CommentStart, TokenCommentStart},
	} {
		if i := strings.Index(rest, c.delim); i >= 0 && (best < 0 || i < best) {
			best, kind = i, c.typ
		}
	}
	if best < 0 {
		return -1, TokenEOF
	}
	return l.pos + best, kind
}

func (l *Lexer) openConstruct(open, end string, startType, endType TokenType, what string) Token {
	start := l.mark()
	l.advance(len(open))
	ws := WsDefault
	if l.pos < len(l.src) {
		if m, ok := markerWhitespace(l.src[l.pos]); ok {
			ws = m
			l.advance(1)
		}
	}
	l.mode = modeInside
	l.end = end
	l.endType = endType
	l.what = what
	l.depth = 0
	l.tagTokens = 0
	l.rawTag = false
	l.open = l.spanFrom(start)
	return Token{Type: startType, Value: open, Ws: ws, Span: l.open}
}

func (l *Lexer) lexComment() (Token, error) {
	start := l.mark()
	bodyStart := l.pos + len(l.syntax.CommentStart)
	lead := WsDefault
	if bodyStart < len(l.src) {
		if m, ok := markerWhitespace(l.src[bodyStart]); ok {
			lead = m
			bodyStart++
		}
	}
	rel := strings.Index(l.src[bodyStart:], l.syntax.CommentEnd)
	if rel < 0 {
		open := start
		open.End = start.Start + len(l.syntax.CommentStart)
		return Token{}, diag.New(diag.KindLex, open, "unterminated comment, missing %q", l.syntax.CommentEnd)
	}
	endAt := bodyStart + rel
	bodyEnd := endAt
	trail := WsDefault
	if endAt > bodyStart {
		if m, ok := markerWhitespace(l.src[endAt-1]); ok {
			trail = m
			bodyEnd--
		}
	}
	body := l.src[bodyStart:bodyEnd]
	l.advance(bodyEnd - l.pos)
	open := Token{Type: TokenCommentStart, Value: body, Ws: lead, Span: l.spanFrom(start)}

	closeStart := l.mark()
	l.advance(endAt + len(l.syntax.CommentEnd) - l.pos)
	l.pending = append(l.pending, Token{Type: TokenCommentEnd, Value: l.syntax.CommentEnd, Ws: trail, Span: l.spanFrom(closeStart)})
	return open, nil
}

func (l *Lexer) skipSpace() {
	for l.pos < len(l.src) {
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		if !unicode.IsSpace(r) {
			return
		}
		l.advance(size)
	}
}

func isCloser(c byte) bool {
	return c == ')' || c == ']' || c == '}'
}

func (l *Lexer) lexInside() (Token, error) {
	l.skipSpace()
	if l.pos >= len(l.src) {
		return Token{}, diag.New(diag.KindLex, l.open, "unterminated %s, missing %q", l.what, l.end)
	}

	c := l.src[l.pos]
	if l.depth == 0 || !isCloser(c) {
		if m, ok := markerWhitespace(c); ok && strings.HasPrefix(l.src[l.pos+1:], l.end) {
			return l.closeConstruct(1, m)
		}
		if strings.HasPrefix(l.src[l.pos:], l.end) {
			return l.closeConstruct(0, WsDefault)
		}
	}

	start := l.mark()
	var tok Token
	r, _ := utf8.DecodeRuneInString(l.src[l.pos:])
	switch {
	case r == '_' || unicode.IsLetter(r):
		tok = l.lexName()
	case c >= '0' && c <= '9':
		tok = l.lexNumber()
	case c == '\'' || c == '"':
		t, err := l.lexString()
		if err != nil {
			return Token{}, err
		}
		tok = t
	default:
		op := ""
		for _, candidate := range operators {
			if strings.HasPrefix(l.src[l.pos:], candidate) {
				op = candidate
				break
			}
		}
		if op == "" {
			l.advance(len(string(r)))
			return Token{}, diag.New(diag.KindLex, l.spanFrom(start), "unexpected character %q inside %s", r, l.what)
		}
		l.advance(len(op))
		switch op {
		case "(", "[", "{":
			l.depth++
		case ")", "]", "}":
			if l.depth > 0 {
				l.depth--
			}
		}
		tok = Token{Type: TokenOperator, Value: op}
	}
	tok.Span = l.spanFrom(start)

	l.tagTokens++
	l.rawTag = l.endType == TokenTagEnd && l.tagTokens == 1 && tok.Type == TokenName && tok.Value == "raw"
	return tok, nil
}

func (l *Lexer) closeConstruct(markerLen int, ws Whitespace) (Token, error) {
	start := l.mark()
	l.advance(markerLen + len(l.end))
	tok := Token{Type: l.endType, Value: l.end, Ws: ws, Span: l.spanFrom(start)}
	l.mode = modeData
	if l.rawTag && l.tagTokens == 1 {
		if err := l.lexRaw(); err != nil {
			return Token{}, err
		}
	}
	return tok, nil
}

// lexRaw queues the raw body and the endraw tag that closes it.
func (l *Lexer) lexRaw() error {
	rawOpen := l.open
	search := l.pos
	for {
		rel := strings.Index(l.src[search:], l.syntax.BlockStart)
		if rel < 0 {
			return diag.New(diag.KindLex, rawOpen, "unterminated raw block, missing endraw")
		}
		at := search + rel
		m, ok := l.matchEndraw(at)
		if !ok {
			search = at + len(l.syntax.BlockStart)
			continue
		}
		if at > l.pos {
			start := l.mark()
			value := l.src[l.pos:at]
			l.advance(at - l.pos)
			l.pending = append(l.pending, Token{Type: TokenRaw, Value: value, Span: l.spanFrom(start)})
		}
		emit := func(typ TokenType, value string, ws Whitespace, from, to int) {
			l.advance(from - l.pos)
			start := l.mark()
			l.advance(to - l.pos)
			l.pending = append(l.pending, Token{Type: typ, Value: value, Ws: ws, Span: l.spanFrom(start)})
		}
		emit(TokenTagStart, l.syntax.BlockStart, m.lead, at, m.openEnd)
		emit(TokenName, "endraw", WsDefault, m.nameStart, m.nameStart+len("endraw"))
		emit(TokenTagEnd, l.syntax.BlockEnd, m.trail, m.closeStart, m.end)
		return nil
	}
}

type endrawMatch struct {
	openEnd    int
	nameStart  int
	closeStart int
	end        int
	lead       Whitespace
	trail      Whitespace
}

// matchEndraw checks for `{%[marker] endraw [marker]%}` at offset at.
func (l *Lexer) matchEndraw(at int) (endrawMatch, bool) {
	m := endrawMatch{lead: WsDefault, trail: WsDefault}
	i := at + len(l.syntax.BlockStart)
	if i < len(l.src) {
		if ws, ok := markerWhitespace(l.src[i]); ok {
			m.lead = ws
			i++
		}
	}
	m.openEnd = i
	for i < len(l.src) && isASCIISpace(l.src[i]) {
		i++
	}
	if !strings.HasPrefix(l.src[i:], "endraw") {
		return m, false
	}
	m.nameStart = i
	i += len("endraw")
	if i < len(l.src) && isNameByte(l.src[i]) {
		return m, false
	}
	for i < len(l.src) && isASCIISpace(l.src[i]) {
		i++
	}
	m.closeStart = i
	if i < len(l.src) {
		if ws, ok := markerWhitespace(l.src[i]); ok && strings.HasPrefix(l.src[i+1:], l.syntax.BlockEnd) {
			m.trail = ws
			i++
		}
	}
	if !strings.HasPrefix(l.src[i:], l.syntax.BlockEnd) {
		return m, false
	}
	m.end = i + len(l.syntax.BlockEnd)
	return m, true
}

func (l *Lexer) lexName() Token {
	start := l.pos
	for l.pos < len(l.src) {
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			break
		}
		l.advance(size)
	}
	return Token{Type: TokenName, Value: l.src[start:l.pos]}
}

func (l *Lexer) lexNumber() Token {
	start := l.pos
	digits := func() {
		for l.pos < len(l.src) && (isDigit(l.src[l.pos]) || l.src[l.pos] == '_') {
			l.advance(1)
		}
	}
	digits()
	typ := TokenInt
	if l.pos+1 < len(l.src) && l.src[l.pos] == '.' && isDigit(l.src[l.pos+1]) {
		typ = TokenFloat
		l.advance(1)
		digits()
	}
	if l.pos < len(l.src) && (l.src[l.pos] == 'e' || l.src[l.pos] == 'E') {
		j := l.pos + 1
		if j < len(l.src) && (l.src[j] == '+' || l.src[j] == '-') {
			j++
		}
		if j < len(l.src) && isDigit(l.src[j]) {
			typ = TokenFloat
			l.advance(j - l.pos)
			digits()
		}
	}
	return Token{Type: typ, Value: strings.ReplaceAll(l.src[start:l.pos], "_", "")}
}

func (l *Lexer) lexString() (Token, error) {
	start := l.mark()
	quote := l.src[l.pos]
	i := l.pos + 1
	for {
		if i >= len(l.src) {
			open := start
			open.End = start.Start + 1
			return Token{}, diag.New(diag.KindLex, open, "unterminated string literal")
		}
		if l.src[i] == '\\' {
			i += 2
			continue
		}
		if l.src[i] == quote {
			break
		}
		i++
	}
	value := unescapeString(l.src[l.pos+1 : i])
	l.advance(i + 1 - l.pos)
	return Token{Type: TokenString, Value: value}, nil
}

func unescapeString(value string) string {
	if !strings.Contains(value, "\\") {
		return value
	}
	var b strings.Builder
	for i := 0; i < len(value); i++ {
		c := value[i]
		if c != '\\' || i+1 >= len(value) {
			b.WriteByte(c)
			continue
		}
		i++
		switch value[i] {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case '\\', '"', '\'':
			b.WriteByte(value[i])
		default:
			b.WriteByte('\\')
			b.WriteByte(value[i])
		}
	}
	return b.String()
}

func invalidOffset(s string) int {
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			return i
		}
		i += size
	}
	return len(s)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isASCIISpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isNameByte(c byte) bool {
	return c == '_' || isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
