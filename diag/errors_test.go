package diag

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "Located",
			err:  &Error{Kind: KindParse, Message: "unexpected end", Template: "page.html", Span: Span{Line: 3, Column: 7}},
			want: "parse_error at page.html:3:7: unexpected end",
		},
		{
			name: "SpanOnly",
			err:  &Error{Kind: KindLex, Message: "unterminated comment", Span: Span{Line: 1, Column: 2}},
			want: "lex_error at line 1, column 2: unterminated comment",
		},
		{
			name: "TemplateOnly",
			err:  &Error{Kind: KindTemplateNotFound, Message: `template "a.html" not found`, Template: "b.html"},
			want: `template_not_found_error at b.html: template "a.html" not found`,
		},
		{
			name: "Bare",
			err:  &Error{Kind: KindConfig, Message: "bad"},
			want: "config_error: bad",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.err.Error(); got != tc.want {
				t.Fatalf("Error() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestError_IsAndUnwrap(t *testing.T) {
	err := Named(KindCycle, "a.html", Span{Line: 1, Column: 1}, "extends cycle: %s", "a.html -> a.html")
	err.Cause = fs.ErrNotExist
	wrapped := fmt.Errorf("compiling: %w", err)

	if !errors.Is(wrapped, ErrCycle) {
		t.Fatal("sentinel not matched through wrapping")
	}
	if errors.Is(wrapped, ErrParse) {
		t.Fatal("matched the sentinel of another kind")
	}
	if !errors.Is(wrapped, fs.ErrNotExist) {
		t.Fatal("cause not reachable")
	}
	if KindOf(wrapped) != KindCycle || KindOf(errors.New("plain")) != "" {
		t.Fatal("KindOf mismatch")
	}
	if err.Name != "a.html" || err.Message != "extends cycle: a.html -> a.html" {
		t.Fatalf("Named fields: %+v", err)
	}
}

func TestWithTemplate(t *testing.T) {
	err := New(KindParse, Span{}, "x")
	if WithTemplate(err, "a.html"); err.Template != "a.html" {
		t.Fatalf("template not attached: %q", err.Template)
	}
	if WithTemplate(err, "b.html"); err.Template != "a.html" {
		t.Fatalf("existing template replaced: %q", err.Template)
	}
	plain := errors.New("plain")
	if WithTemplate(plain, "a.html") != plain {
		t.Fatal("non-diagnostic errors must pass through")
	}
}

func TestLocate(t *testing.T) {
	src := "ab\n\tcé{{ x }}\n"
	tests := []struct {
		offset       int
		line, column int
	}{
		{0, 1, 1},
		{2, 1, 3},
		{3, 2, 1},
		{7, 2, 4},
		{100, 3, 1},
	}
	for _, tc := range tests {
		line, column := Locate(src, tc.offset)
		if line != tc.line || column != tc.column {
			t.Errorf("Locate(%d) = %d:%d, want %d:%d", tc.offset, line, column, tc.line, tc.column)
		}
	}
}

func TestSpan(t *testing.T) {
	a := Span{Start: 2, End: 5, Line: 1, Column: 3}
	b := Span{Start: 8, End: 12, Line: 1, Column: 9}
	if diff := cmp.Diff(Span{Start: 2, End: 12, Line: 1, Column: 3}, a.To(b)); diff != "" {
		t.Fatalf("To mismatch (-want +got):\n%s", diff)
	}
	if !(Span{}).IsZero() || a.IsZero() {
		t.Fatal("IsZero mismatch")
	}
	if got := a.String(); got != "1:3[2:5]" {
		t.Fatalf("String() = %q", got)
	}
}

func TestFormat(t *testing.T) {
	src := "line one\n\t{{ nope }}\n"
	err := &Error{Kind: KindUnknownBinding, Message: `"nope" is not defined`, Template: "page.html", Span: Span{Line: 2, Column: 5}}
	want := "unknown_binding_error at page.html:2:5: \"nope\" is not defined\n" +
		" 2 | \t{{ nope }}\n" +
		"   | \t   ^"
	if diff := cmp.Diff(want, err.Format(src)); diff != "" {
		t.Fatalf("Format mismatch (-want +got):\n%s", diff)
	}

	if got := err.Format(""); got != err.Error() {
		t.Fatalf("Format without source = %q", got)
	}
	err.Span.Line = 9
	if got := err.Format(src); got != err.Error() {
		t.Fatalf("Format past the end = %q", got)
	}
}
