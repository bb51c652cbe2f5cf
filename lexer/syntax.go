package lexer

import (
	"strings"
	"unicode"

	"github.com/deicod/jinjac/diag"
)

// DefaultSyntaxName names the built-in delimiter set.
const DefaultSyntaxName = "default"

// Syntax is a named set of delimiters
type Syntax struct {
	Name         string
	BlockStart   string
	BlockEnd     string
	ExprStart    string
	ExprEnd      string
	CommentStart string
	CommentEnd   string
}

// DefaultSyntax returns the Jinja delimiters.
func DefaultSyntax() Syntax {
	return Syntax{
		Name:         DefaultSyntaxName,
		BlockStart:   "{%",
		BlockEnd:     "%}",
		ExprStart:    "{{",
		ExprEnd:      "}}",
		CommentStart: "{#",
		CommentEnd:   "#}",
	}
}

// WithDefaults fills empty delimiters from the default syntax.
func (s Syntax) WithDefaults() Syntax {
	def := DefaultSyntax()
	fill := func(v *string, d string) {
		if *v == "" {
			*v = d
		}
	}
	fill(&s.BlockStart, def.BlockStart)
	fill(&s.BlockEnd, def.BlockEnd)
	fill(&s.ExprStart, def.ExprStart)
	fill(&s.ExprEnd, def.ExprEnd)
	fill(&s.CommentStart, def.CommentStart)
	fill(&s.CommentEnd, def.CommentEnd)
	return s
}

// Validate checks that the delimiters can be scanned unambiguously.
func (s Syntax) Validate() error {
	for _, d := range []string{s.BlockStart, s.BlockEnd, s.ExprStart, s.ExprEnd, s.CommentStart, s.CommentEnd} {
		if len(d) < 2 {
			return diag.Named(diag.KindConfig, s.Name, diag.Span{}, "delimiters must be at least two characters long: %q", d)
		}
		if strings.IndexFunc(d, unicode.IsSpace) >= 0 {
			return diag.Named(diag.KindConfig, s.Name, diag.Span{}, "delimiters may not contain white spaces: %q", d)
		}
	}
	pairs := [][2]string{
		{s.BlockStart, s.ExprStart},
		{s.BlockStart, s.CommentStart},
		{s.ExprStart, s.CommentStart},
	}
	for _, p := range pairs {
		if strings.HasPrefix(p[0], p[1]) || strings.HasPrefix(p[1], p[0]) {
			return diag.Named(diag.KindConfig, s.Name, diag.Span{}, "a delimiter may not be the prefix of another delimiter: %q vs %q", p[0], p[1])
		}
	}
	return nil
}
