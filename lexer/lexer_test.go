package lexer

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/deicod/jinjac/diag"
)

// shape renders tokens compactly so tests can compare whole streams.
func shape(tokens []Token) []string {
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		s := fmt.Sprintf("%s:%s", tok.Type, tok.Value)
		if tok.Ws != WsNone && tok.Ws != WsDefault {
			s += ":" + tok.Ws.String()
		}
		out = append(out, s)
	}
	return out
}

func TestBasicLexing(t *testing.T) {
	tests := []struct {
		name     string
		template string
		want     []string
	}{
		{
			name:     "simple text",
			template: "Hello, World!",
			want:     []string{"TEXT:Hello, World!", "EOF:"},
		},
		{
			name:     "simple variable",
			template: "Hello, {{ name }}!",
			want:     []string{"TEXT:Hello, ", "EXPR_START:{{", "NAME:name", "EXPR_END:}}", "TEXT:!", "EOF:"},
		},
		{
			name:     "simple block",
			template: "{% if ok %}yes{% endif %}",
			want: []string{
				"TAG_START:{%", "NAME:if", "NAME:ok", "TAG_END:%}", "TEXT:yes",
				"TAG_START:{%", "NAME:endif", "TAG_END:%}", "EOF:",
			},
		},
		{
			name:     "comment",
			template: "a{#- note -#}b",
			want:     []string{"TEXT:a", "COMMENT_START: note :suppress", "COMMENT_END:#}:suppress", "TEXT:b", "EOF:"},
		},
		{
			name:     "trim markers",
			template: "{%- if x -%}{{+ a ~}}",
			want: []string{
				"TAG_START:{%:suppress", "NAME:if", "NAME:x", "TAG_END:%}:suppress",
				"EXPR_START:{{:preserve", "NAME:a", "EXPR_END:}}:minimize", "EOF:",
			},
		},
		{
			name:     "raw block",
			template: "{% raw %}{{ x }}{% if %}{%- endraw +%}",
			want: []string{
				"TAG_START:{%", "NAME:raw", "TAG_END:%}", "RAW:{{ x }}{% if %}",
				"TAG_START:{%:suppress", "NAME:endraw", "TAG_END:%}:preserve", "EOF:",
			},
		},
		{
			name:     "nested braces",
			template: "{{ {'a': 1}}}",
			want: []string{
				"EXPR_START:{{", "OPERATOR:{", "STRING:a", "OPERATOR::", "INT:1", "OPERATOR:}", "EXPR_END:}}", "EOF:",
			},
		},
		{
			name:     "numbers and operators",
			template: "{{ 1_000 + 2.5e3 // x ** 2 }}",
			want: []string{
				"EXPR_START:{{", "INT:1000", "OPERATOR:+", "FLOAT:2.5e3", "OPERATOR://",
				"NAME:x", "OPERATOR:**", "INT:2", "EXPR_END:}}", "EOF:",
			},
		},
		{
			name:     "string escapes",
			template: `{{ "a\"b\n" }}`,
			want:     []string{"EXPR_START:{{", "STRING:a\"b\n", "EXPR_END:}}", "EOF:"},
		},
		{
			name:     "minus before end is an operator when spaced",
			template: "{{ a - b }}",
			want:     []string{"EXPR_START:{{", "NAME:a", "OPERATOR:-", "NAME:b", "EXPR_END:}}", "EOF:"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := Tokenize(tt.template, DefaultSyntax())
			if err != nil {
				t.Fatalf("Tokenize() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, shape(tokens)); diff != "" {
				t.Fatalf("token mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLexErrors(t *testing.T) {
	tests := []struct {
		name     string
		template string
		kind     diag.Kind
		start    int
	}{
		{name: "unterminated expression", template: "ab {{ name", kind: diag.KindLex, start: 3},
		{name: "unterminated tag", template: "{% if x", kind: diag.KindLex, start: 0},
		{name: "unterminated comment", template: "x\n{# note", kind: diag.KindLex, start: 2},
		{name: "unterminated raw", template: "{% raw %}{{ x }}", kind: diag.KindLex, start: 0},
		{name: "unterminated string", template: "{{ 'abc }}", kind: diag.KindLex, start: 3},
		{name: "unbalanced brackets", template: "{{ dict['key' }}", kind: diag.KindLex, start: 0},
		{name: "unknown character", template: "{{ a $ b }}", kind: diag.KindLex, start: 5},
		{name: "invalid utf8", template: "ab\xffcd", kind: diag.KindEncoding, start: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Tokenize(tt.template, DefaultSyntax())
			if err == nil {
				t.Fatalf("expected error")
			}
			var de *diag.Error
			if !errors.As(err, &de) {
				t.Fatalf("expected *diag.Error, got %T", err)
			}
			if de.Kind != tt.kind {
				t.Fatalf("expected kind %s, got %s", tt.kind, de.Kind)
			}
			if de.Span.Start != tt.start {
				t.Fatalf("expected error at offset %d, got %d", tt.start, de.Span.Start)
			}
		})
	}
}

func TestEncodingErrorBeforeTokens(t *testing.T) {
	l := New("{{ ok }}\xfe", DefaultSyntax())
	_, err := l.Next()
	if !errors.Is(err, diag.ErrEncoding) {
		t.Fatalf("expected encoding error on first token, got %v", err)
	}
}

func TestPositionTracking(t *testing.T) {
	template := "line 1\nline 2 {{ variable }}\nline 3"
	tokens, err := Tokenize(template, DefaultSyntax())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var found bool
	for _, tok := range tokens {
		if tok.Type == TokenName && tok.Value == "variable" {
			found = true
			if tok.Span.Line != 2 || tok.Span.Column != 11 {
				t.Fatalf("expected variable at 2:11, got %d:%d", tok.Span.Line, tok.Span.Column)
			}
		}
	}
	if !found {
		t.Fatalf("variable token not found")
	}
}

func TestSpansCoverSourceInOrder(t *testing.T) {
	template := "a {{ x|upper }} b {%- if y %}c{% endif -%}\n{# z #}d"
	tokens, err := Tokenize(template, DefaultSyntax())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	prevEnd := 0
	for _, tok := range tokens {
		if tok.Span.Start < prevEnd {
			t.Fatalf("token %s overlaps previous token ending at %d", tok, prevEnd)
		}
		for _, c := range template[prevEnd:tok.Span.Start] {
			if c != ' ' && c != '\t' && c != '\n' {
				t.Fatalf("gap before %s contains %q", tok, template[prevEnd:tok.Span.Start])
			}
		}
		if tok.Type == TokenText && template[tok.Span.Start:tok.Span.End] != tok.Value {
			t.Fatalf("text span %v does not match value %q", tok.Span, tok.Value)
		}
		prevEnd = tok.Span.End
	}
	if prevEnd != len(template) {
		t.Fatalf("tokens end at %d, source has %d bytes", prevEnd, len(template))
	}
}

func TestCustomSyntax(t *testing.T) {
	syntax := Syntax{
		Name:         "angle",
		BlockStart:   "<%",
		BlockEnd:     "%>",
		ExprStart:    "<<",
		ExprEnd:      ">>",
		CommentStart: "<#",
		CommentEnd:   "#>",
	}
	if err := syntax.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	tokens, err := Tokenize("a <<x>> {{ y }} <%- raw %><<z>><% endraw %>", syntax)
	if err != nil {
		t.Fatalf("Tokenize() error = %v", err)
	}
	want := []string{
		"TEXT:a ", "EXPR_START:<<", "NAME:x", "EXPR_END:>>", "TEXT: {{ y }} ",
		"TAG_START:<%:suppress", "NAME:raw", "TAG_END:%>", "RAW:<<z>>",
		"TAG_START:<%", "NAME:endraw", "TAG_END:%>", "EOF:",
	}
	if diff := cmp.Diff(want, shape(tokens)); diff != "" {
		t.Fatalf("token mismatch (-want +got):\n%s", diff)
	}
}

func TestSyntaxValidate(t *testing.T) {
	tests := []struct {
		name   string
		syntax Syntax
		ok     bool
	}{
		{name: "default", syntax: DefaultSyntax(), ok: true},
		{name: "too short", syntax: Syntax{BlockStart: "{"}.WithDefaults(), ok: false},
		{name: "whitespace", syntax: Syntax{ExprStart: "{ {"}.WithDefaults(), ok: false},
		{name: "prefix", syntax: Syntax{BlockStart: "{{%"}.WithDefaults(), ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.syntax.Validate()
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, diag.ErrConfig) {
				t.Fatalf("expected config error, got %v", err)
			}
		})
	}
}

func TestTokenStreamLookahead(t *testing.T) {
	stream := NewTokenStream(New("{{ a.b }}", DefaultSyntax()))
	if got := stream.PeekN(2); !got.Is(".") {
		t.Fatalf("expected '.' two tokens ahead, got %s", got)
	}
	if got := stream.Next(); got.Type != TokenExprStart {
		t.Fatalf("expected EXPR_START, got %s", got)
	}
	for !stream.Eof() {
		stream.Next()
	}
	if stream.Next().Type != TokenEOF {
		t.Fatalf("expected EOF to repeat")
	}
	if stream.Err() != nil {
		t.Fatalf("unexpected error: %v", stream.Err())
	}
}

func TestTokenStreamStopsOnError(t *testing.T) {
	stream := NewTokenStream(New("ok {{ x", DefaultSyntax()))
	for !stream.Eof() {
		stream.Next()
	}
	if !errors.Is(stream.Err(), diag.ErrLex) {
		t.Fatalf("expected lex error, got %v", stream.Err())
	}
}
