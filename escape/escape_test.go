package escape

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/deicod/jinjac/binder"
	"github.com/deicod/jinjac/diag"
	"github.com/deicod/jinjac/inheritance"
	"github.com/deicod/jinjac/lexer"
	"github.com/deicod/jinjac/loader"
	"github.com/deicod/jinjac/nodes"
	"github.com/deicod/jinjac/parser"
	"github.com/deicod/jinjac/schema"
)

func bound(t *testing.T, src string) *nodes.Template {
	t.Helper()
	tmpl, err := parser.Parse(src, "page.html", lexer.DefaultSyntax())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	flat, err := inheritance.Resolve(tmpl, func(name string) (*nodes.Template, error) {
		return nil, loader.NotFound(name, nil)
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	sch := schema.MustNew(
		schema.Entry{Name: "title", Type: schema.StringType},
		schema.Entry{Name: "count", Type: schema.IntType},
		schema.Entry{Name: "items", Type: schema.ListOf(schema.StringType)},
		schema.Entry{Name: "data", Type: schema.AnyType},
		schema.Entry{Name: "user", Type: schema.OpaqueOf("User")},
	)
	res, err := binder.Bind(flat, sch, nil)
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	return res.Template
}

func TestModeFor(t *testing.T) {
	e := DefaultEscapers()
	tests := map[string]string{
		"page.html":      HTML,
		"page.htm":       HTML,
		"layout.J2":      HTML,
		"icons/logo.svg": HTML,
		"feed.xml":       HTML,
		"mail.jinja":     HTML,
		"mail.jinja2":    HTML,
		"README.md":      None,
		"notes.txt":      None,
		"config.yml":     None,
		"raw.none":       None,
		"Makefile":       None,
		"paper.tex":      None,
		"dir.html/plain": None,
	}
	for name, want := range tests {
		if got := e.ModeFor(name); got != want {
			t.Errorf("ModeFor(%q) = %q, want %q", name, got, want)
		}
	}

	e.Add("latex", ".tex", "sty")
	if got := e.ModeFor("paper.tex"); got != "latex" {
		t.Fatalf("custom escaper not used: %q", got)
	}
	if diff := cmp.Diff([]string{HTML, "latex", None}, e.Modes()); diff != "" {
		t.Fatalf("modes mismatch (-want +got):\n%s", diff)
	}
	want := []string{"htm", "html", "j2", "jinja", "jinja2", "md", "none", "sty", "svg", "tex", "txt", "xml", "yml"}
	if diff := cmp.Diff(want, e.Extensions()); diff != "" {
		t.Fatalf("extensions mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate_OutputModes(t *testing.T) {
	tmpl := bound(t, "{{ title }}{{ title|safe }}{{ title|upper|e }}{{ title|e|upper }}{{ count }}{% filter upper %}x{% endfilter %}{% filter upper|safe %}y{% endfilter %}")
	if err := Validate(tmpl, HTML); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got []string
	for _, stmt := range tmpl.Body {
		switch n := stmt.(type) {
		case *nodes.Output:
			got = append(got, n.Escape)
		case *nodes.FilterBlock:
			got = append(got, "block:"+n.Escape)
		}
	}
	want := []string{HTML, None, None, None, HTML, "block:" + HTML, "block:" + None}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("escape modes mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate_ModeOverride(t *testing.T) {
	tmpl := bound(t, "{% for i in items %}{{ i }}{% endfor %}")
	if err := Validate(tmpl, None); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := tmpl.Body[0].(*nodes.For).Body[0].(*nodes.Output)
	if out.Escape != None {
		t.Fatalf("escape = %q, want none", out.Escape)
	}
}

func TestValidate_Accepts(t *testing.T) {
	for _, src := range []string{
		"{{ data|abs }}",
		"{{ user|upper }}",
		"{{ count|abs|into_f64 }}",
		"{{ items|join(\", \") }}",
		"{{ title|format(1, count, \"x\") }}",
		"{{ title|truncate(count) }}",
		"{{ title|escape(\"html\") }}",
		"{{ items|length|filesizeformat }}",
		"{% macro m(x=title|upper) %}{{ x|lower }}{% endmacro %}{{ m() }}",
	} {
		if err := Validate(bound(t, src), HTML); err != nil {
			t.Errorf("Validate(%q) = %v", src, err)
		}
	}
}

func TestValidate_FilterTypeErrors(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		filter string
	}{
		{"InputClass", "{{ items|upper }}", "upper"},
		{"NumberInput", "{{ title|abs }}", "abs"},
		{"MissingArgument", "{{ title|truncate }}", "truncate"},
		{"TooManyArguments", "{{ title|upper(1) }}", "upper"},
		{"ArgumentClass", `{{ title|truncate("x") }}`, "truncate"},
		{"ChainedResultType", "{{ items|length|upper|abs }}", "abs"},
		{"NestedInArgument", "{{ items|join(items|upper) }}", "upper"},
		{"InsideCondition", "{% if items|trim %}{% endif %}", "trim"},
		{"FilterBlockArity", "{% filter truncate %}x{% endfilter %}", "truncate"},
		{"FilterBlockChain", "{% filter length|upper|abs %}x{% endfilter %}", "abs"},
		{"MacroBody", "{% macro m(a) %}{{ items|title }}{% endmacro %}{{ m(1) }}", "title"},
		{"MacroDefault", "{% macro m(a=items|trim) %}{% endmacro %}{{ m() }}", "trim"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(bound(t, tc.src), HTML)
			if err == nil {
				t.Fatalf("expected error for %q", tc.src)
			}
			if !errors.Is(err, diag.ErrFilterType) {
				t.Fatalf("error %v is not a filter type error", err)
			}
			var de *diag.Error
			errors.As(err, &de)
			if de.Name != tc.filter {
				t.Fatalf("name = %q, want %q (%v)", de.Name, tc.filter, err)
			}
			if de.Template != "page.html" || de.Span.Line == 0 {
				t.Fatalf("error not located: %v", err)
			}
		})
	}
}
