package parser

import (
	"github.com/deicod/jinjac/lexer"
	"github.com/deicod/jinjac/nodes"
)

// Parse parses source into a template unit named name, using the given
// delimiters. Errors are *diag.Error values located in source.
func Parse(source, name string, syntax lexer.Syntax) (*nodes.Template, error) {
	return NewParser(source, name, syntax).Parse()
}

// ParseTemplate parses source with the default delimiters.
func ParseTemplate(source string) (*nodes.Template, error) {
	return Parse(source, "template", lexer.DefaultSyntax())
}
