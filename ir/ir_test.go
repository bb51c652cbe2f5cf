package ir

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"
)

func sample() *Program {
	name := &Ref{Kind: "context", Name: "name"}
	return &Program{
		Name:      "hello.html",
		Extension: "html",
		MIMEType:  MIMEType("html"),
		Escape:    "html",
		Context:   []Var{{Name: "name", Kind: "context", Type: "string"}},
		Slots: []Var{
			{Name: "who", Kind: "param", Type: "any"},
			{Name: "item", Kind: "loopvar", Type: "string"},
			{Name: "loop", Kind: "loop", Type: "any"},
		},
		Code: []Instruction{
			&DefineMacro{
				ID:     "hello.html#greet",
				Name:   "greet",
				Params: []Ref{{Kind: "param", Name: "who", Slot: 0}},
				Body: []Instruction{
					&EmitLiteral{Text: "Hi "},
					&EmitExpr{Expr: &Ref{Kind: "param", Name: "who", Slot: 0}, Escape: "html"},
				},
			},
			&EmitLiteral{Text: "Hello, "},
			&EmitExpr{Expr: name, Filters: []FilterCall{{Name: "upper"}, {Name: "truncate", Args: []Expr{&Lit{Value: int64(3)}}}}, Escape: "html"},
			&Branch{
				Cond: &Op{Op: "==", Left: name, Right: &Lit{Value: "x"}},
				Then: []Instruction{&CallMacro{ID: "hello.html#greet", Args: []Expr{&Lit{Value: "x"}}}},
				Else: []Instruction{&EmitLiteral{Text: "!"}},
			},
			&Loop{
				Targets: []Ref{{Kind: "loopvar", Name: "item", Slot: 1}},
				Iter:    &List{Items: []Expr{&Lit{Value: "a"}, &Lit{Value: "b"}}},
				Loop:    2,
				Meta:    []string{"first"},
				Body: []Instruction{
					&Branch{Cond: &LoopMeta{Slot: 2, Field: "first"}, Then: []Instruction{&Continue{}}},
					&EmitExpr{Expr: &Ref{Kind: "loopvar", Name: "item", Slot: 1}, Escape: "none"},
				},
			},
		},
	}
}

func TestBuilder_Coalesces(t *testing.T) {
	b := NewBuilder()
	b.Literal("a").Literal("").Add(&EmitLiteral{Text: "b"}).Add(&Break{}).Literal("").Literal("c").Literal("d")
	want := []Instruction{&EmitLiteral{Text: "ab"}, &Break{}, &EmitLiteral{Text: "cd"}}
	if diff := cmp.Diff(want, b.Code()); diff != "" {
		t.Fatalf("code mismatch (-want +got):\n%s", diff)
	}
	if b.Len() != 3 {
		t.Fatalf("Len() = %d", b.Len())
	}
}

func TestBuilder_DoesNotMutateAddedLiteral(t *testing.T) {
	first := &EmitLiteral{Text: "a"}
	b := NewBuilder().Add(first).Literal("b")
	if first.Text != "a" {
		t.Fatalf("added literal modified: %q", first.Text)
	}
	if got := b.Code()[0].(*EmitLiteral).Text; got != "ab" {
		t.Fatalf("coalesced = %q", got)
	}
}

func TestProgram_MacrosAndBody(t *testing.T) {
	p := sample()
	if got := len(p.Macros()); got != 1 {
		t.Fatalf("Macros() = %d, want 1", got)
	}
	if got := len(p.Body()); got != 4 {
		t.Fatalf("Body() = %d, want 4", got)
	}
	if _, ok := p.Body()[0].(*EmitLiteral); !ok {
		t.Fatalf("body starts with %T", p.Body()[0])
	}
}

func TestComputeSizeHint(t *testing.T) {
	// "Hi " + "Hello, " + "!" is 11 bytes; three expressions add 9
	if got := ComputeSizeHint(sample().Code); got != 20 {
		t.Fatalf("ComputeSizeHint() = %d, want 20", got)
	}
	if got := ComputeSizeHint(nil); got != 0 {
		t.Fatalf("empty size hint = %d", got)
	}
}

func TestMIMEType(t *testing.T) {
	tests := map[string]string{
		"html":  "text/html; charset=utf-8",
		".HTML": "text/html; charset=utf-8",
		"j2":    "text/html; charset=utf-8",
		"txt":   "text/plain; charset=utf-8",
		"":      "text/plain; charset=utf-8",
		"svg":   "image/svg+xml",
		"md":    "text/markdown; charset=utf-8",
		"weird": "text/plain; charset=utf-8",
	}
	for ext, want := range tests {
		if got := MIMEType(ext); got != want {
			t.Errorf("MIMEType(%q) = %q, want %q", ext, got, want)
		}
	}
}

func TestDump(t *testing.T) {
	want := strings.Join([]string{
		`program "hello.html" ext="html" mime="text/html; charset=utf-8" escape=html size=0`,
		`  define hello.html#greet(param:who#0)`,
		`    literal "Hi "`,
		`    emit param:who#0 escape=html`,
		`  literal "Hello, "`,
		`  emit name|upper|truncate(3) escape=html`,
		`  branch (name == "x")`,
		`    then`,
		`      call hello.html#greet("x")`,
		`    else`,
		`      literal "!"`,
		`  loop loopvar:item#1 in ["a", "b"] meta=loop#2[first]`,
		`    body`,
		`      branch loop#2.first`,
		`        then`,
		`          continue`,
		`      emit loopvar:item#1 escape=none`,
		``,
	}, "\n")
	if diff := cmp.Diff(want, Dump(sample())); diff != "" {
		t.Fatalf("dump mismatch (-want +got):\n%s", diff)
	}
}

func TestExprString(t *testing.T) {
	x := &Ref{Kind: "context", Name: "x"}
	tests := []struct {
		expr Expr
		want string
	}{
		{&Lit{}, "none"},
		{&Lit{Value: 1.5}, "1.5"},
		{&Lit{Value: true}, "true"},
		{&Attr{X: x, Name: "a"}, "x.a"},
		{&Index{X: x, Key: &Lit{Value: int64(0)}}, "x[0]"},
		{&Not{X: x}, "not x"},
		{&Neg{X: x}, "-x"},
		{&Cond{Test: x, Then: &Lit{Value: "a"}}, `("a" if x)`},
		{&Cond{Test: x, Then: &Lit{Value: "a"}, Else: &Lit{Value: "b"}}, `("a" if x else "b")`},
		{&Dict{Keys: []Expr{&Lit{Value: "k"}}, Values: []Expr{x}}, `{"k": x}`},
		{&Apply{X: x, Filter: FilterCall{Name: "join", Args: []Expr{&Lit{Value: ","}}}}, `x|join(",")`},
		{&Ref{Kind: "local", Name: "y", Slot: 4}, "local:y#4"},
	}
	for _, tc := range tests {
		if got := ExprString(tc.expr); got != tc.want {
			t.Errorf("ExprString() = %q, want %q", got, tc.want)
		}
	}
}

func TestMarshal(t *testing.T) {
	p := sample()
	p.SizeHint = ComputeSizeHint(p.Code)
	data, err := Marshal(p)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var doc struct {
		Name     string `yaml:"name"`
		MIMEType string `yaml:"mime_type"`
		SizeHint int    `yaml:"size_hint"`
		Code     []struct {
			Op      string   `yaml:"op"`
			ID      string   `yaml:"id"`
			Text    string   `yaml:"text"`
			Expr    string   `yaml:"expr"`
			Filters []string `yaml:"filters"`
			Loop    *int     `yaml:"loop"`
		} `yaml:"code"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		t.Fatalf("output is not yaml: %v\n%s", err, data)
	}
	if doc.Name != "hello.html" || doc.SizeHint != 20 || doc.MIMEType != "text/html; charset=utf-8" {
		t.Fatalf("header mismatch: %+v", doc)
	}
	var ops []string
	for _, c := range doc.Code {
		ops = append(ops, c.Op)
	}
	if diff := cmp.Diff([]string{"define", "literal", "emit", "branch", "loop"}, ops); diff != "" {
		t.Fatalf("ops mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"upper", "truncate(3)"}, doc.Code[2].Filters); diff != "" {
		t.Fatalf("filters mismatch (-want +got):\n%s", diff)
	}
	if doc.Code[4].Loop == nil || *doc.Code[4].Loop != 2 {
		t.Fatalf("loop slot not encoded: %v", doc.Code[4].Loop)
	}

	p2 := sample()
	p2.SizeHint = ComputeSizeHint(p2.Code)
	again, err := Marshal(p2)
	if err != nil {
		t.Fatal(err)
	}
	if string(again) != string(data) {
		t.Fatalf("marshal not deterministic")
	}
}
