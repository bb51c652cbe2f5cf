package parser

import (
	"strings"

	"github.com/deicod/jinjac/diag"
	"github.com/deicod/jinjac/lexer"
	"github.com/deicod/jinjac/nodes"
)

// Parse parses the whole template into a Template node
func (p *Parser) Parse() (*nodes.Template, error) {
	p.tmpl = &nodes.Template{Name: p.name}
	body, err := p.Subparse(nil)
	if err != nil {
		return nil, err
	}
	if err := p.stream.Err(); err != nil {
		return nil, diag.WithTemplate(err, p.name)
	}
	p.tmpl.Body = body
	p.tmpl.Span = diag.Span{Line: 1, Column: 1, End: p.stream.Peek().Span.End}
	return p.tmpl, nil
}

// statement keywords that open a tag
var statementKeywords = map[string]bool{
	"break":    true,
	"continue": true,
	"for":      true,
	"if":       true,
	"block":    true,
	"extends":  true,
	"macro":    true,
	"include":  true,
	"let":      true,
	"set":      true,
	"call":     true,
	"filter":   true,
	"raw":      true,
}

// ParseStatement parses a single statement. The opening delimiter has been
// consumed; the closing one is left for the caller.
func (p *Parser) ParseStatement(open lexer.Token) (nodes.Stmt, error) {
	token := p.stream.Peek()
	if token.Type != lexer.TokenName {
		if token.Type == lexer.TokenEOF {
			return nil, p.FailEOF(nil)
		}
		return nil, p.Fail(token.Span, "tag name expected")
	}

	if !statementKeywords[token.Value] {
		return nil, p.FailUnknownTag(token)
	}

	p.tagStack = append(p.tagStack, token.Value)
	defer func() {
		p.tagStack = p.tagStack[:len(p.tagStack)-1]
	}()

	if token.Value != "extends" {
		p.sawContent = true
	}

	switch token.Value {
	case "break":
		return p.ParseBreak(open)
	case "continue":
		return p.ParseContinue(open)
	case "for":
		return p.ParseFor(open)
	case "if":
		return p.ParseIf(open)
	case "block":
		return p.ParseBlock(open)
	case "extends":
		return p.ParseExtends(open)
	case "macro":
		return p.ParseMacro(open)
	case "include":
		return p.ParseInclude(open)
	case "let", "set":
		return p.ParseLet(open)
	case "call":
		return p.ParseCallMacro(open)
	case "filter":
		return p.ParseFilterBlock(open)
	case "raw":
		return p.ParseRaw(open)
	}
	return nil, p.FailUnknownTag(token)
}

// ParseStatements parses a body up to one of the end tokens. The current
// token is the end of the opening tag. When dropNeedle is set the end tag
// name is consumed too.
func (p *Parser) ParseStatements(endTokens []string, dropNeedle bool) ([]nodes.Stmt, error) {
	if _, err := p.Expect(lexer.TokenTagEnd); err != nil {
		return nil, err
	}

	result, err := p.Subparse(endTokens)
	if err != nil {
		return nil, err
	}

	if p.stream.Peek().Type == lexer.TokenEOF {
		return nil, p.FailEOF(endTokens)
	}

	if dropNeedle {
		p.next()
	}
	return result, nil
}

// Subparse parses until one of the end tokens is reached. On return the
// current token is the end tag name.
func (p *Parser) Subparse(endTokens []string) ([]nodes.Stmt, error) {
	var body []nodes.Stmt

	if endTokens != nil {
		p.endTokenStack = append(p.endTokenStack, endTokens)
		defer func() {
			p.endTokenStack = p.endTokenStack[:len(p.endTokenStack)-1]
		}()
	}

	for !p.stream.Eof() {
		token := p.stream.Peek()

		switch token.Type {
		case lexer.TokenText:
			p.next()
			if strings.TrimSpace(token.Value) != "" {
				p.sawContent = true
			}
			text := &nodes.Text{Value: token.Value, Lead: p.lastEnd, Trail: p.trailing()}
			text.Span = token.Span
			body = append(body, text)

		case lexer.TokenCommentStart:
			p.next()
			end, err := p.Expect(lexer.TokenCommentEnd)
			if err != nil {
				return nil, err
			}
			comment := &nodes.Comment{Value: token.Value}
			comment.Span = token.Span.To(end.Span)
			p.tmpl.Comments = append(p.tmpl.Comments, comment)

		case lexer.TokenExprStart:
			p.next()
			p.sawContent = true
			stmt, err := p.ParseOutput(token)
			if err != nil {
				return nil, err
			}
			body = append(body, stmt)

		case lexer.TokenTagStart:
			p.next()
			if endTokens != nil && p.testEndTokens(endTokens) {
				return body, nil
			}

			stmt, err := p.ParseStatement(token)
			if err != nil {
				return nil, err
			}
			body = append(body, stmt)

			if _, err := p.Expect(lexer.TokenTagEnd); err != nil {
				return nil, err
			}

		default:
			return nil, p.Fail(token.Span, "unexpected %s", describe(token))
		}
	}

	return body, nil
}

// trailing returns the marker of the delimiter following a text token.
func (p *Parser) trailing() lexer.Whitespace {
	switch next := p.stream.Peek(); next.Type {
	case lexer.TokenExprStart, lexer.TokenTagStart, lexer.TokenCommentStart:
		return next.Ws
	}
	return lexer.WsNone
}

// closeSpan extends the span of a statement to the end tag just consumed.
func (p *Parser) closeSpan(open lexer.Token) diag.Span {
	span := open.Span.To(p.stream.Last().Span)
	if next := p.stream.Peek(); next.Type == lexer.TokenTagEnd {
		span = span.To(next.Span)
	}
	return span
}
