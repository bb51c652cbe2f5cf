package parser

import (
	"fmt"
	"strings"

	"github.com/deicod/jinjac/diag"
	"github.com/deicod/jinjac/lexer"
	"github.com/deicod/jinjac/nodes"
)

// Parser turns a token stream into a template unit
type Parser struct {
	stream        *lexer.TokenStream
	name          string
	tmpl          *nodes.Template
	tagStack      []string
	endTokenStack [][]string

	// lastEnd is the trim marker of the most recently closed delimiter,
	// WsNone before the first one.
	lastEnd lexer.Whitespace

	blockNames map[string]bool
	macroNames map[string]bool
	inMacro    bool
	loopDepth  int
	// sawContent is set once the unit has anything but whitespace and
	// comments, after which extends is no longer allowed.
	sawContent bool
}

// NewParser creates a parser for source using the given delimiters.
func NewParser(source, name string, syntax lexer.Syntax) *Parser {
	return &Parser{
		stream:     lexer.NewTokenStream(lexer.New(source, syntax)),
		name:       name,
		lastEnd:    lexer.WsNone,
		blockNames: make(map[string]bool),
		macroNames: make(map[string]bool),
	}
}

// next consumes a token and remembers the marker of closing delimiters.
func (p *Parser) next() lexer.Token {
	tok := p.stream.Next()
	switch tok.Type {
	case lexer.TokenExprEnd, lexer.TokenTagEnd, lexer.TokenCommentEnd:
		p.lastEnd = tok.Ws
	}
	return tok
}

// Fail creates a parse error at span. A lexing error that ended the
// stream takes precedence, since it is what the parser tripped over.
func (p *Parser) Fail(span diag.Span, format string, args ...any) error {
	if err := p.stream.Err(); err != nil {
		return diag.WithTemplate(err, p.name)
	}
	err := diag.New(diag.KindParse, span, format, args...)
	err.Template = p.name
	return err
}

// FailUnknownTag is called when the parser encounters an unknown tag
func (p *Parser) FailUnknownTag(tok lexer.Token) error {
	return p.failUntilEOF(tok.Value, p.endTokenStack, tok.Span)
}

// FailEOF is called when EOF is encountered unexpectedly
func (p *Parser) FailEOF(endTokens []string) error {
	stack := make([][]string, len(p.endTokenStack))
	copy(stack, p.endTokenStack)
	if endTokens != nil {
		stack = append(stack, endTokens)
	}
	return p.failUntilEOF("", stack, p.stream.Peek().Span)
}

func (p *Parser) failUntilEOF(name string, endTokenStack [][]string, span diag.Span) error {
	expected := make(map[string]bool)
	for _, exprs := range endTokenStack {
		for _, expr := range exprs {
			expected[expr] = true
		}
	}

	var currentlyLooking string
	if len(endTokenStack) > 0 {
		currentlyLooking = strings.Join(endTokenStack[len(endTokenStack)-1], " or ")
	}

	var message strings.Builder
	if name == "" {
		message.WriteString("Unexpected end of template.")
	} else {
		fmt.Fprintf(&message, "Encountered unknown tag %q.", name)
	}

	if currentlyLooking != "" {
		if name != "" && expected[name] {
			fmt.Fprintf(&message, " You probably made a nesting mistake. The parser is expecting this tag, but currently looking for %s.", currentlyLooking)
		} else {
			fmt.Fprintf(&message, " The parser was looking for the following tags: %s.", currentlyLooking)
		}
	}

	if len(p.tagStack) > 0 {
		fmt.Fprintf(&message, " The innermost block that needs to be closed is %q.", p.tagStack[len(p.tagStack)-1])
	}

	return p.Fail(span, "%s", message.String())
}

// Current returns the current token without consuming it
func (p *Parser) Current() lexer.Token {
	return p.stream.Peek()
}

// Look returns the token after the current one without consuming
func (p *Parser) Look() lexer.Token {
	return p.stream.PeekN(1)
}

// SkipIf skips a token if it matches the expected type
func (p *Parser) SkipIf(expectedType lexer.TokenType) bool {
	if p.stream.Peek().Type == expectedType {
		p.next()
		return true
	}
	return false
}

// SkipIfOp skips an operator or keyword token with the given value
func (p *Parser) SkipIfOp(value string) bool {
	if p.stream.Peek().Is(value) {
		p.next()
		return true
	}
	return false
}

// Expect consumes and returns a token, failing if it doesn't match the expected type
func (p *Parser) Expect(expectedType lexer.TokenType) (lexer.Token, error) {
	token := p.stream.Peek()
	if token.Type == expectedType {
		return p.next(), nil
	}
	if token.Type == lexer.TokenEOF {
		return token, p.FailEOF(nil)
	}
	return token, p.Fail(token.Span, "expected %s, got %s", describeToken(expectedType), describe(token))
}

// ExpectOp consumes an operator or keyword with the given value
func (p *Parser) ExpectOp(value string) (lexer.Token, error) {
	token := p.stream.Peek()
	if token.Is(value) {
		return p.next(), nil
	}
	if token.Type == lexer.TokenEOF {
		return token, p.FailEOF(nil)
	}
	return token, p.Fail(token.Span, "expected %q, got %s", value, describe(token))
}

// describeToken provides a human-readable description of a token type
func describeToken(tokenType lexer.TokenType) string {
	switch tokenType {
	case lexer.TokenEOF:
		return "end of template"
	case lexer.TokenText:
		return "text"
	case lexer.TokenExprStart:
		return "start of expression"
	case lexer.TokenExprEnd:
		return "end of expression"
	case lexer.TokenTagStart:
		return "start of tag"
	case lexer.TokenTagEnd:
		return "end of tag"
	case lexer.TokenCommentStart:
		return "start of comment"
	case lexer.TokenCommentEnd:
		return "end of comment"
	case lexer.TokenName:
		return "name"
	case lexer.TokenString:
		return "string"
	case lexer.TokenInt:
		return "integer"
	case lexer.TokenFloat:
		return "float"
	default:
		return tokenType.String()
	}
}

// describe provides a description of a concrete token
func describe(token lexer.Token) string {
	switch token.Type {
	case lexer.TokenName:
		return fmt.Sprintf("name %q", token.Value)
	case lexer.TokenString:
		return fmt.Sprintf("string %q", token.Value)
	case lexer.TokenOperator:
		return fmt.Sprintf("%q", token.Value)
	case lexer.TokenInt, lexer.TokenFloat:
		return fmt.Sprintf("number %s", token.Value)
	}
	return describeToken(token.Type)
}

// testEndTokens checks if the current token is one of the given tag names
func (p *Parser) testEndTokens(endTokens []string) bool {
	token := p.stream.Peek()
	if token.Type != lexer.TokenName {
		return false
	}
	for _, endToken := range endTokens {
		if token.Value == endToken {
			return true
		}
	}
	return false
}

// reserved names that cannot be bound or used as block and macro names
var reserved = map[string]bool{
	"and": true, "or": true, "not": true, "in": true, "is": true,
	"if": true, "else": true, "true": true, "false": true, "none": true,
	"loop": true, "super": true,
}

func isReserved(name string) bool {
	return reserved[strings.ToLower(name)]
}
