// Package escape decides the escaping mode of every output and checks
// filter chains against their declared contracts.
package escape

import (
	"path"
	"sort"
	"strings"

	"github.com/deicod/jinjac/diag"
	"github.com/deicod/jinjac/nodes"
	"github.com/deicod/jinjac/schema"
)

// Built-in escape modes
const (
	HTML = "html"
	None = "none"
)

// Escapers maps template extensions to escape modes.
type Escapers struct {
	byExt map[string]string
}

// DefaultEscapers returns the built-in extension table.
func DefaultEscapers() *Escapers {
	e := &Escapers{byExt: make(map[string]string)}
	e.Add(HTML, "html", "htm", "j2", "jinja", "jinja2", "svg", "xml")
	e.Add(None, "md", "none", "txt", "yml")
	return e
}

// Add maps extensions, given without the dot, to mode. Later additions
// replace earlier ones.
func (e *Escapers) Add(mode string, exts ...string) {
	for _, ext := range exts {
		e.byExt[strings.TrimPrefix(strings.ToLower(ext), ".")] = mode
	}
}

// Extension returns the extension of a template name without the dot.
func Extension(name string) string {
	return strings.TrimPrefix(path.Ext(name), ".")
}

// ModeFor returns the escape mode of a template by its extension. Names
// without a known extension are not escaped.
func (e *Escapers) ModeFor(name string) string {
	if mode, ok := e.byExt[strings.ToLower(Extension(name))]; ok {
		return mode
	}
	return None
}

// Modes returns every mode with at least one extension, sorted.
func (e *Escapers) Modes() []string {
	seen := make(map[string]bool)
	var modes []string
	for _, mode := range e.byExt {
		if !seen[mode] {
			seen[mode] = true
			modes = append(modes, mode)
		}
	}
	sort.Strings(modes)
	return modes
}

// Extensions returns every mapped extension, sorted.
func (e *Escapers) Extensions() []string {
	exts := make([]string, 0, len(e.byExt))
	for ext := range e.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Validate checks every filter application of a bound template and stores
// the escape mode of each output and filter block. Outputs whose filter
// chain contains a safe or escaping filter are not escaped again; all
// others use mode. tmpl is annotated in place.
func Validate(tmpl *nodes.Template, mode string) error {
	v := &validator{unit: tmpl.Name, mode: mode}
	if err := v.stmts(tmpl.Body); err != nil {
		return err
	}
	for _, m := range tmpl.Macros {
		v.unit = tmpl.Name
		if m.Template != "" {
			v.unit = m.Template
		}
		for _, p := range m.Params {
			if err := v.expr(p.Default); err != nil {
				return err
			}
		}
		if err := v.stmts(m.Body); err != nil {
			return err
		}
	}
	return nil
}

type validator struct {
	unit string
	mode string
}

func (v *validator) fail(name string, span diag.Span, format string, args ...any) error {
	err := diag.Named(diag.KindFilterType, name, span, format, args...)
	err.Template = v.unit
	return err
}

func (v *validator) stmts(stmts []nodes.Stmt) error {
	var failure error
	for _, stmt := range stmts {
		nodes.Walk(nodes.NodeVisitorFunc(func(n nodes.Node) interface{} {
			if failure != nil {
				return true
			}
			switch s := n.(type) {
			case *nodes.Output:
				s.Escape = v.outputMode(s.Expr)
			case *nodes.FilterBlock:
				failure = v.chain(s.Filters, schema.StringType)
				s.Escape = v.mode
				if optsOut(s.Filters) {
					s.Escape = None
				}
			case nodes.Expr:
				failure = v.expr(s)
				return true
			}
			return nil
		}), stmt)
		if failure != nil {
			return failure
		}
	}
	return nil
}

// outputMode is none when the outer filter chain of e opts out.
func (v *validator) outputMode(e nodes.Expr) string {
	var chain []*nodes.Filter
	for {
		f, ok := e.(*nodes.Filter)
		if !ok {
			break
		}
		chain = append(chain, f)
		e = f.Node
	}
	if optsOut(chain) {
		return None
	}
	return v.mode
}

func optsOut(chain []*nodes.Filter) bool {
	for _, f := range chain {
		if f.Def != nil && (f.Def.Safe || f.Def.Escapes) {
			return true
		}
	}
	return false
}

// expr checks every filter application inside e.
func (v *validator) expr(e nodes.Expr) error {
	if e == nil {
		return nil
	}
	for _, n := range nodes.FindAll(e, isFilter) {
		f := n.(*nodes.Filter)
		if f.Node == nil {
			continue
		}
		if err := v.check(f, f.Node.StaticType()); err != nil {
			return err
		}
	}
	return nil
}

// chain checks a filter block chain whose first input is in.
func (v *validator) chain(chain []*nodes.Filter, in *schema.Type) error {
	for _, f := range chain {
		if err := v.check(f, in); err != nil {
			return err
		}
		for _, arg := range f.Args {
			if err := v.expr(arg); err != nil {
				return err
			}
		}
		in = f.StaticType()
	}
	return nil
}

func (v *validator) check(f *nodes.Filter, in *schema.Type) error {
	def := f.Def
	if def == nil {
		return v.fail(f.Name, f.Span, "filter %q was not resolved", f.Name)
	}
	if !def.Input.Accepts(in) {
		return v.fail(f.Name, f.Span, "filter %q expects %s input, got %s", f.Name, def.Input, in)
	}
	if n := len(f.Args); n < def.MinArgs() {
		return v.fail(f.Name, f.Span, "filter %q takes at least %d arguments, %d given", f.Name, def.MinArgs(), n)
	} else if n > len(def.Params) && !def.Variadic {
		return v.fail(f.Name, f.Span, "filter %q takes at most %d arguments, %d given", f.Name, len(def.Params), n)
	}
	for i, arg := range f.Args {
		if i >= len(def.Params) {
			break
		}
		param := def.Params[i]
		if !param.Class.Accepts(arg.StaticType()) {
			return v.fail(f.Name, arg.GetSpan(), "argument %q of filter %q expects %s, got %s",
				param.Name, f.Name, param.Class, arg.StaticType())
		}
	}
	return nil
}

func isFilter(n nodes.Node) bool {
	_, ok := n.(*nodes.Filter)
	return ok
}
