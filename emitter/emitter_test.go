package emitter

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/deicod/jinjac/binder"
	"github.com/deicod/jinjac/diag"
	"github.com/deicod/jinjac/escape"
	"github.com/deicod/jinjac/inheritance"
	"github.com/deicod/jinjac/ir"
	"github.com/deicod/jinjac/lexer"
	"github.com/deicod/jinjac/loader"
	"github.com/deicod/jinjac/nodes"
	"github.com/deicod/jinjac/parser"
	"github.com/deicod/jinjac/schema"
	"github.com/deicod/jinjac/whitespace"
)

var testSchema = schema.MustNew(
	schema.Entry{Name: "name", Type: schema.StringType},
	schema.Entry{Name: "title", Type: schema.StringType},
	schema.Entry{Name: "n", Type: schema.IntType},
	schema.Entry{Name: "ok", Type: schema.BoolType},
	schema.Entry{Name: "items", Type: schema.ListOf(schema.StringType)},
)

// build runs the whole pipeline over files and emits the unit named root.
func build(t *testing.T, files map[string]string, root string, def lexer.Whitespace) *ir.Program {
	t.Helper()
	parsed := make(map[string]*nodes.Template)
	for name, src := range files {
		tmpl, err := parser.Parse(src, name, lexer.DefaultSyntax())
		if err != nil {
			t.Fatalf("parse %s: %v", name, err)
		}
		parsed[name] = tmpl
	}
	flat, err := inheritance.Resolve(parsed[root], func(name string) (*nodes.Template, error) {
		if tmpl, ok := parsed[name]; ok {
			return tmpl, nil
		}
		return nil, loader.NotFound(name, nil)
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	res, err := binder.Bind(flat, testSchema, nil)
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	res.Template = whitespace.Normalize(res.Template, def)
	if err := escape.Validate(res.Template, escape.DefaultEscapers().ModeFor(root)); err != nil {
		t.Fatalf("validate: %v", err)
	}
	p, err := Emit(res)
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	return p
}

func lines(l ...string) string {
	return strings.Join(l, "\n") + "\n"
}

func TestEmit(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "Hello",
			src:  "Hello, {{ name }}!",
			want: lines(
				`literal "Hello, "`,
				`emit name escape=html`,
				`literal "!"`,
			),
		},
		{
			name: "ElifNestsInElse",
			src:  "{% if ok %}a{% elif n > 1 %}b{% else %}c{% endif %}",
			want: lines(
				`branch ok`,
				`  then`,
				`    literal "a"`,
				`  else`,
				`    branch (n > 1)`,
				`      then`,
				`        literal "b"`,
				`      else`,
				`        literal "c"`,
			),
		},
		{
			name: "LoopWithMetadata",
			src:  "{% for x in items %}{% if loop.first %}{% continue %}{% endif %}{{ x }}{% else %}none{% endfor %}",
			want: lines(
				`loop loopvar:x#0 in items meta=loop#1[first]`,
				`  body`,
				`    branch loop#1.first`,
				`      then`,
				`        continue`,
				`    emit loopvar:x#0 escape=html`,
				`  else`,
				`    literal "none"`,
			),
		},
		{
			name: "LoopCondition",
			src:  "{% for x in items if x != title %}{% break %}{% endfor %}",
			want: lines(
				`loop loopvar:x#0 in items if (loopvar:x#0 != title) meta=loop#1[]`,
				`  body`,
				`    break`,
			),
		},
		{
			name: "MacroDefaults",
			src:  `{% macro greet(name, greeting="Hello") %}{{ greeting }}, {{ name }}{% endmacro %}{{ greet("Ann") }}{{ greet("Bo", greeting="Hi") }}`,
			want: lines(
				`define page.html#greet(param:name#0, param:greeting#1)`,
				`  emit param:greeting#1 escape=html`,
				`  literal ", "`,
				`  emit param:name#0 escape=html`,
				`call page.html#greet("Ann", "Hello")`,
				`call page.html#greet("Bo", "Hi")`,
			),
		},
		{
			name: "LetFilterBlockAndOperators",
			src:  `{% let x = title ~ "!" %}{% filter upper %}{{ x|truncate(3)|e }}{% endfilter %}{{ 1 < n < 3 }}{{ not ok }}{{ -n }}`,
			want: lines(
				`bind local:x#0 = (title ~ "!")`,
				`filtered |upper escape=html`,
				`  emit local:x#0|truncate(3)|e escape=none`,
				`emit ((1 < n) and (n < 3)) escape=html`,
				`emit not ok escape=html`,
				`emit -n escape=html`,
			),
		},
		{
			name: "NestedFilterInArgument",
			src:  `{{ items|join(title|lower) }}{{ name if ok }}`,
			want: lines(
				`emit items|join(title|lower) escape=html`,
				`emit (name if ok) escape=html`,
			),
		},
		{
			name: "DefinedFolds",
			src:  `{% if name is defined and missing is not defined %}y{% endif %}`,
			want: lines(
				`branch (true and true)`,
				`  then`,
				`    literal "y"`,
			),
		},
		{
			name: "CommentsAndRawCoalesce",
			src:  "a{# note #}b{% raw %}{{ c }}{% endraw %}d",
			want: lines(`literal "ab{{ c }}d"`),
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := build(t, map[string]string{"page.html": tc.src}, "page.html", lexer.WsPreserve)
			if diff := cmp.Diff(tc.want, ir.DumpCode(p.Code)); diff != "" {
				t.Fatalf("code mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEmit_Inheritance(t *testing.T) {
	files := map[string]string{
		"base.html":  "<{% block t %}B{% endblock %}|{% include \"nav.html\" %}>",
		"nav.html":   "[{{ title }}]",
		"child.html": `{% extends "base.html" %}{% block t %}C{{ super() }}{% endblock %}`,
	}
	p := build(t, files, "child.html", lexer.WsPreserve)
	want := lines(
		`literal "<CB|["`,
		`emit title escape=html`,
		`literal "]>"`,
	)
	if diff := cmp.Diff(want, ir.DumpCode(p.Code)); diff != "" {
		t.Fatalf("code mismatch (-want +got):\n%s", diff)
	}
}

func TestEmit_LiteralOnly(t *testing.T) {
	src := "  plain {text} }}\n\n"
	for _, def := range []lexer.Whitespace{lexer.WsPreserve, lexer.WsSuppress, lexer.WsMinimize} {
		p := build(t, map[string]string{"page.txt": src}, "page.txt", def)
		want := []ir.Instruction{&ir.EmitLiteral{Text: src}}
		if diff := cmp.Diff(want, p.Code); diff != "" {
			t.Fatalf("default %s (-want +got):\n%s", def, diff)
		}
	}
}

func TestEmit_Empty(t *testing.T) {
	p := build(t, map[string]string{"page.html": "{# nothing #}"}, "page.html", lexer.WsPreserve)
	if len(p.Code) != 0 {
		t.Fatalf("expected no instructions, got:\n%s", ir.DumpCode(p.Code))
	}
}

func TestEmit_ProgramMetadata(t *testing.T) {
	p := build(t, map[string]string{"page.html": "{% for x in items %}{{ x }}, {% endfor %}{% let y = n %}"}, "page.html", lexer.WsPreserve)
	if p.Name != "page.html" {
		t.Fatalf("name = %q", p.Name)
	}
	if p.SizeHint != 5 {
		t.Fatalf("size hint = %d, want 5", p.SizeHint)
	}
	wantContext := []ir.Var{
		{Name: "name", Kind: "context", Type: "string"},
		{Name: "title", Kind: "context", Type: "string"},
		{Name: "n", Kind: "context", Type: "int"},
		{Name: "ok", Kind: "context", Type: "bool"},
		{Name: "items", Kind: "context", Type: "list<string>"},
	}
	if diff := cmp.Diff(wantContext, p.Context); diff != "" {
		t.Fatalf("context mismatch (-want +got):\n%s", diff)
	}
	wantSlots := []ir.Var{
		{Name: "x", Kind: "loopvar", Type: "string"},
		{Name: "loop", Kind: "loop", Type: "any"},
		{Name: "y", Kind: "local", Type: "int"},
	}
	if diff := cmp.Diff(wantSlots, p.Slots); diff != "" {
		t.Fatalf("slots mismatch (-want +got):\n%s", diff)
	}
}

func TestEmit_Deterministic(t *testing.T) {
	files := map[string]string{
		"lib.html":  `{% macro a(x) %}{{ x }}{% endmacro %}{% macro b() %}{{ a(1) }}{% endmacro %}`,
		"page.html": `{% include "lib.html" %}{% for k, v in items %}{{ b() }}{{ loop.index }}{% endfor %}`,
	}
	first := ir.Dump(build(t, files, "page.html", lexer.WsMinimize))
	for i := 0; i < 10; i++ {
		if again := ir.Dump(build(t, files, "page.html", lexer.WsMinimize)); again != first {
			t.Fatalf("run %d differs:\n%s", i, cmp.Diff(first, again))
		}
	}
}

func TestEmit_RejectsUnboundTemplates(t *testing.T) {
	tmpl, err := parser.Parse("{{ name }}", "page.html", lexer.DefaultSyntax())
	if err != nil {
		t.Fatal(err)
	}
	_, err = Emit(&binder.Result{Template: tmpl})
	if !errors.Is(err, diag.ErrUnknownBinding) {
		t.Fatalf("expected unknown binding error, got %v", err)
	}
	var de *diag.Error
	if !errors.As(err, &de) || de.Template != "page.html" {
		t.Fatalf("error not attributed: %v", err)
	}
}
