package filters

import (
	"testing"

	"github.com/pkg/errors"

	"github.com/deicod/jinjac/schema"
)

func TestBuiltinsPresent(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{
		"abs", "capitalize", "center", "e", "escape", "filesizeformat", "fmt", "format",
		"indent", "into_f64", "into_isize", "join", "linebreaks", "linebreaksbr", "lower",
		"lowercase", "paragraphbreaks", "safe", "title", "trim", "truncate", "upper",
		"uppercase", "urlencode", "urlencode_strict", "wordcount", "json", "length",
	} {
		if _, ok := r.Lookup(name); !ok {
			t.Errorf("built-in filter %q missing", name)
		}
	}
	if def, _ := r.Lookup("safe"); !def.Safe {
		t.Errorf("safe must opt out of escaping")
	}
}

func TestClassAccepts(t *testing.T) {
	tests := []struct {
		class Class
		typ   *schema.Type
		want  bool
	}{
		{Display, schema.StringType, true},
		{Display, schema.ListOf(schema.StringType), false},
		{Number, schema.IntType, true},
		{Number, schema.StringType, false},
		{Integer, schema.FloatType, false},
		{Iterable, schema.MapOf(schema.IntType), true},
		{Iterable, schema.BoolType, false},
		{Text, schema.OpaqueOf("Markup"), true},
		{Boolean, schema.AnyType, true},
	}
	for _, tt := range tests {
		if got := tt.class.Accepts(tt.typ); got != tt.want {
			t.Errorf("%s.Accepts(%s) = %v, want %v", tt.class, tt.typ, got, tt.want)
		}
	}
}

func TestRegisterCustom(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(Def{Name: "currency", Input: Number, Output: schema.StringType}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	def, ok := r.Lookup("currency")
	if !ok || !def.Custom {
		t.Fatalf("expected custom filter to be registered")
	}
	if err := r.Register(Def{Name: "upper"}); err == nil {
		t.Fatalf("expected error when redefining a built-in")
	}
	if err := r.Register(Def{Name: "bad-name"}); err == nil {
		t.Fatalf("expected error for invalid name")
	}
	bad := Def{Name: "x", Params: []Param{{Name: "a", Optional: true}, {Name: "b"}}}
	if err := r.Register(bad); err == nil {
		t.Fatalf("expected error for required after optional")
	}
}

func TestLoadStarlark(t *testing.T) {
	src := `
filter("currency", input="number", output="string", args=["symbol:string?"])
filter("markdown", input="string", safe=True)
[filter(name, output="string") for name in ["shout", "whisper"]]
`
	defs, err := LoadStarlark("filters.star", src)
	if err != nil {
		t.Fatalf("LoadStarlark() error = %v", err)
	}
	if len(defs) != 4 {
		t.Fatalf("expected 4 filters, got %d", len(defs))
	}
	cur := defs[0]
	if cur.Name != "currency" || cur.Input != Number || cur.Output.Kind != schema.String {
		t.Fatalf("unexpected currency contract %+v", cur)
	}
	if len(cur.Params) != 1 || cur.Params[0].Name != "symbol" || !cur.Params[0].Optional || cur.Params[0].Class != Text {
		t.Fatalf("unexpected currency params %+v", cur.Params)
	}
	if !defs[1].Safe || defs[1].Output != nil {
		t.Fatalf("unexpected markdown contract %+v", defs[1])
	}
	if defs[3].Name != "whisper" {
		t.Fatalf("expected loop-declared filter, got %q", defs[3].Name)
	}
}

func TestLoadStarlarkErrors(t *testing.T) {
	for name, src := range map[string]string{
		"bad class":  `filter("x", input="blob")`,
		"bad output": `filter("x", output="strng")`,
		"bad arg":    `filter("x", args=[1])`,
		"syntax":     `filter(`,
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadStarlark("f.star", src); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestDeclaredWrapsCause(t *testing.T) {
	_, err := Declared("x", "blob", "", nil, false, false)
	if err == nil {
		t.Fatal("expected error")
	}
	if got := err.Error(); got != `filter "x": unknown filter type class "blob"` {
		t.Fatalf("Error() = %q", got)
	}
	if got := errors.Cause(err).Error(); got != `unknown filter type class "blob"` {
		t.Fatalf("cause = %q", got)
	}
}

func TestSignature(t *testing.T) {
	r := NewRegistry()
	tests := map[string]string{
		"truncate": "truncate(length: int) display -> string",
		"safe":     "safe any -> input [safe]",
		"escape":   "escape(escaper?: string) display -> string [escapes]",
		"format":   "format(...) string -> string",
		"length":   "length iterable -> int",
	}
	for name, want := range tests {
		def, ok := r.Lookup(name)
		if !ok {
			t.Fatalf("filter %q missing", name)
		}
		if got := def.Signature(); got != want {
			t.Errorf("%s signature = %q, want %q", name, got, want)
		}
	}
}
