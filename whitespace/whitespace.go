// Package whitespace applies trim markers to the literal text of a template.
package whitespace

import (
	"strings"
	"unicode"

	"github.com/deicod/jinjac/lexer"
	"github.com/deicod/jinjac/nodes"
)

// Normalize returns a copy of tmpl with the trim markers of every text and
// raw node applied. WsDefault markers take the value of def; a def of
// WsNone or WsDefault preserves. Both markers of a normalized node are set
// to WsPreserve, so normalizing again changes nothing.
func Normalize(tmpl *nodes.Template, def lexer.Whitespace) *nodes.Template {
	out := nodes.CloneStmt(tmpl).(*nodes.Template)
	normalizeStmts(out.Body, def)
	for _, m := range out.Macros {
		normalizeStmts(m.Body, def)
	}
	return out
}

func normalizeStmts(stmts []nodes.Stmt, def lexer.Whitespace) {
	for _, stmt := range stmts {
		nodes.Walk(nodes.NodeVisitorFunc(func(n nodes.Node) interface{} {
			switch t := n.(type) {
			case *nodes.Text:
				t.Value = Trim(t.Value, resolve(t.Lead, def), resolve(t.Trail, def))
				t.Lead, t.Trail = lexer.WsPreserve, lexer.WsPreserve
			case *nodes.Raw:
				t.Value = Trim(t.Value, resolve(t.Lead, def), resolve(t.Trail, def))
				t.Lead, t.Trail = lexer.WsPreserve, lexer.WsPreserve
			case nodes.Expr:
				return true
			}
			return nil
		}), stmt)
	}
}

func resolve(ws, def lexer.Whitespace) lexer.Whitespace {
	if ws != lexer.WsDefault {
		return ws
	}
	switch def {
	case lexer.WsSuppress, lexer.WsMinimize:
		return def
	}
	return lexer.WsPreserve
}

// Trim applies a leading then a trailing marker to text. WsNone and
// WsPreserve leave their side untouched.
func Trim(text string, lead, trail lexer.Whitespace) string {
	switch lead {
	case lexer.WsSuppress:
		text = strings.TrimLeftFunc(text, unicode.IsSpace)
	case lexer.WsMinimize:
		text = strings.TrimLeft(text, " \t")
		if strings.HasPrefix(text, "\r\n") {
			text = text[2:]
		} else if strings.HasPrefix(text, "\n") {
			text = text[1:]
		}
	}

	switch trail {
	case lexer.WsSuppress:
		text = strings.TrimRightFunc(text, unicode.IsSpace)
	case lexer.WsMinimize:
		text = strings.TrimRight(text, " \t")
		if strings.HasSuffix(text, "\r\n") {
			text = text[:len(text)-2]
		} else if strings.HasSuffix(text, "\n") {
			text = text[:len(text)-1]
		}
	}
	return text
}
