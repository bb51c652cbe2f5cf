// Package binder resolves every name, filter and macro call of a flattened
// template against the context schema and infers static types.
package binder

import (
	"fmt"
	"sort"
	"strings"

	"github.com/deicod/jinjac/diag"
	"github.com/deicod/jinjac/filters"
	"github.com/deicod/jinjac/nodes"
	"github.com/deicod/jinjac/schema"
)

// Slot describes one numbered binding of a compiled template.
type Slot struct {
	Name string
	Kind nodes.RefKind
	Type *schema.Type
}

// Result is a bound template: a copy of the input with every Name carrying
// its Ref, every expression its static type, every filter its contract and
// every macro call its bound arguments.
type Result struct {
	Template *nodes.Template
	Schema   *schema.Schema
	Slots    []Slot
}

// loopFields are the read-only members of the loop binding.
var loopFields = map[string]*schema.Type{
	"index":  schema.IntType,
	"index0": schema.IntType,
	"first":  schema.BoolType,
	"last":   schema.BoolType,
	"length": schema.IntType,
}

type binder struct {
	unit     string
	schema   *schema.Schema
	registry *filters.Registry
	global   *Scope
	// macro tables by unit, and the unit whose table call sites use
	scopes     map[string]map[string]*nodes.MacroDef
	macroScope string
	slots      []Slot
	// loops whose body is being bound, innermost last
	loops []*nodes.For
}

// Bind resolves tmpl against sch and registry. tmpl is not modified. A nil
// schema is empty and a nil registry holds the built-in filters only.
func Bind(tmpl *nodes.Template, sch *schema.Schema, registry *filters.Registry) (*Result, error) {
	if sch == nil {
		sch = schema.Empty()
	}
	if registry == nil {
		registry = filters.NewRegistry()
	}

	bound := nodes.CloneStmt(tmpl).(*nodes.Template)
	b := &binder{
		unit:     bound.Name,
		schema:   sch,
		registry: registry,
		global:   ContextScope(sch),
		scopes:   macroScopes(bound),
	}

	if err := b.checkRecursion(bound); err != nil {
		return nil, err
	}

	// parameters and defaults first, so calls can be bound in any order
	for _, m := range bound.Macros {
		b.unit = macroUnit(m, bound.Name)
		for _, p := range m.Params {
			if p.Default != nil {
				def, err := b.expr(p.Default, b.global)
				if err != nil {
					return nil, err
				}
				p.Default = def
			}
			p.Ref = &nodes.Ref{Kind: nodes.RefParam, Name: p.Name, Slot: b.alloc(p.Name, nodes.RefParam, schema.AnyType), Type: schema.AnyType}
		}
	}
	for _, m := range bound.Macros {
		b.unit = macroUnit(m, bound.Name)
		b.macroScope = macroScopeOf(m, bound.Name)
		frame := b.global.NewChildScope(fmt.Sprintf("macro %q", m.Name))
		for _, p := range m.Params {
			ref := *p.Ref
			frame.Declare(&ref)
		}
		if err := b.stmts(m.Body, frame); err != nil {
			return nil, err
		}
	}

	b.unit = bound.Name
	b.macroScope = bound.Name
	if err := b.stmts(bound.Body, b.global.NewChildScope(fmt.Sprintf("template %q", bound.Name))); err != nil {
		return nil, err
	}

	return &Result{Template: bound, Schema: sch, Slots: b.slots}, nil
}

func macroUnit(m *nodes.MacroDef, fallback string) string {
	if m.Template != "" {
		return m.Template
	}
	return fallback
}

func macroScopeOf(m *nodes.MacroDef, fallback string) string {
	if m.Unit != "" {
		return m.Unit
	}
	return fallback
}

// macroScopes builds the macro table of every unit of tmpl. A template
// that did not go through the inheritance resolver has a single table.
func macroScopes(tmpl *nodes.Template) map[string]map[string]*nodes.MacroDef {
	scopes := make(map[string]map[string]*nodes.MacroDef)
	if tmpl.MacroScopes == nil {
		table := make(map[string]*nodes.MacroDef, len(tmpl.Macros))
		for _, m := range tmpl.Macros {
			if _, ok := table[m.Name]; !ok {
				table[m.Name] = m
			}
		}
		scopes[tmpl.Name] = table
		return scopes
	}

	byID := make(map[string]*nodes.MacroDef, len(tmpl.Macros))
	for _, m := range tmpl.Macros {
		byID[m.ID] = m
	}
	for unit, ids := range tmpl.MacroScopes {
		table := make(map[string]*nodes.MacroDef, len(ids))
		for name, id := range ids {
			if m, ok := byID[id]; ok {
				table[name] = m
			}
		}
		scopes[unit] = table
	}
	return scopes
}

// macro returns the macro callable as name at the current call site.
func (b *binder) macro(name string) (*nodes.MacroDef, bool) {
	def, ok := b.scopes[b.macroScope][name]
	return def, ok
}

func (b *binder) alloc(name string, kind nodes.RefKind, t *schema.Type) int {
	b.slots = append(b.slots, Slot{Name: name, Kind: kind, Type: t})
	return len(b.slots) - 1
}

func (b *binder) fail(kind diag.Kind, name string, span diag.Span, format string, args ...any) error {
	err := diag.Named(kind, name, span, format, args...)
	err.Template = b.unit
	return err
}

// declare binds name in the frame s and returns a copy of the new ref.
func (b *binder) declare(s *Scope, name string, kind nodes.RefKind, t *schema.Type, span diag.Span) (*nodes.Ref, error) {
	if _, own := s.vars[name]; own {
		return nil, b.fail(diag.KindReassignment, name, span, "%q is already defined in this scope (%s)", name, s.Describe())
	}
	ref := &nodes.Ref{Kind: kind, Name: name, Slot: b.alloc(name, kind, t), Type: t}
	s.Declare(ref)
	out := *ref
	return &out, nil
}

func (b *binder) stmts(list []nodes.Stmt, s *Scope) error {
	for _, stmt := range list {
		if err := b.stmt(stmt, s); err != nil {
			return err
		}
	}
	return nil
}

func (b *binder) stmt(stmt nodes.Stmt, s *Scope) error {
	switch n := stmt.(type) {
	case *nodes.Text, *nodes.Raw, *nodes.Comment, *nodes.Break, *nodes.Continue, *nodes.Extends:
		return nil

	case *nodes.MacroDef:
		// bound from the template's macro list
		return nil

	case *nodes.Output:
		if call, ok := n.Expr.(*nodes.Call); ok {
			return b.macroCall(call, s)
		}
		expr, err := b.expr(n.Expr, s)
		if err != nil {
			return err
		}
		n.Expr = expr
		return nil

	case *nodes.If:
		return b.ifStmt(n, s)

	case *nodes.For:
		return b.forStmt(n, s)

	case *nodes.Let:
		value, err := b.expr(n.Value, s)
		if err != nil {
			return err
		}
		n.Value = value
		ref, err := b.declare(s, n.Target.Name, nodes.RefLocal, value.StaticType(), n.Target.Span)
		if err != nil {
			return err
		}
		n.Target.Ref = ref
		n.Target.SetStaticType(ref.Type)
		return nil

	case *nodes.Block:
		return b.stmts(n.Body, s.NewChildScope(fmt.Sprintf("block %q", n.Name)))

	case *nodes.Include:
		// the included unit's calls resolve against its own macros
		prev := b.macroScope
		if n.Resolved {
			b.macroScope = n.Template
		}
		err := b.stmts(n.Body, s.NewChildScope(fmt.Sprintf("include %q", n.Template)))
		b.macroScope = prev
		return err

	case *nodes.CallMacro:
		return b.macroCall(n.Call, s)

	case *nodes.FilterBlock:
		in := schema.StringType
		for _, f := range n.Filters {
			if err := b.filter(f, in, s); err != nil {
				return err
			}
			in = f.StaticType()
		}
		return b.stmts(n.Body, s.NewChildScope("filter block"))

	case *nodes.Super:
		return b.fail(diag.KindNoSuperBlock, "", n.Span, "super() must be resolved before binding")
	}
	panic("binder: unhandled statement " + stmt.Type())
}

func (b *binder) ifStmt(n *nodes.If, s *Scope) error {
	test, err := b.expr(n.Test, s)
	if err != nil {
		return err
	}
	n.Test = test
	if err := b.stmts(n.Body, s.NewChildScope("if branch")); err != nil {
		return err
	}
	for _, elif := range n.Elif {
		if err := b.ifStmt(elif, s); err != nil {
			return err
		}
	}
	if n.Else != nil {
		return b.stmts(n.Else, s.NewChildScope("else branch"))
	}
	return nil
}

func (b *binder) forStmt(n *nodes.For, s *Scope) error {
	iter, err := b.expr(n.Iter, s)
	if err != nil {
		return err
	}
	n.Iter = iter

	frame := s.NewChildScope("for loop over " + nodes.ExprString(n.Iter))
	types := targetTypes(iter.StaticType(), len(n.Targets))
	for i, target := range n.Targets {
		ref, err := b.declare(frame, target.Name, nodes.RefLoopVar, types[i], target.Span)
		if err != nil {
			return err
		}
		target.Ref = ref
		target.SetStaticType(ref.Type)
	}
	n.Loop = &nodes.Ref{Kind: nodes.RefLoop, Name: "loop", Slot: b.alloc("loop", nodes.RefLoop, schema.AnyType), Type: schema.AnyType}
	n.LoopFields = nil

	if n.Test != nil {
		test, err := b.expr(n.Test, frame)
		if err != nil {
			return err
		}
		n.Test = test
	}

	// lets in the body shadow the targets instead of reassigning them
	body := frame.NewChildScope(frame.Describe())
	b.loops = append(b.loops, n)
	err = b.stmts(n.Body, body)
	b.loops = b.loops[:len(b.loops)-1]
	if err != nil {
		return err
	}
	sort.Strings(n.LoopFields)

	if n.Else != nil {
		return b.stmts(n.Else, s.NewChildScope("for-else branch"))
	}
	return nil
}

// targetTypes infers loop variable types. Two targets unpack map entries
// into key and value.
func targetTypes(iter *schema.Type, n int) []*schema.Type {
	types := make([]*schema.Type, n)
	for i := range types {
		types[i] = schema.AnyType
	}
	switch {
	case n == 1:
		types[0] = iter.ElemType()
	case n == 2 && iter.Kind == schema.Map:
		types[0], types[1] = schema.StringType, iter.ElemType()
	}
	return types
}

// macroCall binds a standalone macro call.
func (b *binder) macroCall(call *nodes.Call, s *Scope) error {
	name := call.Callee()
	def, ok := b.macro(name)
	if name == "" || !ok {
		return b.notCallable(call, s)
	}
	// params, loop variables and lets shadow macros
	if ref, bound := s.Get(name); bound && ref.Kind != nodes.RefContext {
		return b.notCallable(call, s)
	}

	if len(call.Args) > len(def.Params) {
		return b.fail(diag.KindMacroArity, name, call.Span,
			"macro %q takes %d arguments, %d given", name, len(def.Params), len(call.Args))
	}

	bound := make([]nodes.Expr, len(def.Params))
	for i, arg := range call.Args {
		arg, err := b.expr(arg, s)
		if err != nil {
			return err
		}
		call.Args[i] = arg
		bound[i] = nodes.CloneExpr(arg)
	}
	for _, kw := range call.Kwargs {
		idx := def.Param(kw.Key)
		if idx < 0 {
			return b.fail(diag.KindUnknownArgument, kw.Key, kw.Span, "macro %q has no parameter %q", name, kw.Key)
		}
		if bound[idx] != nil {
			return b.fail(diag.KindMacroArity, kw.Key, kw.Span, "argument %q of macro %q given twice", kw.Key, name)
		}
		value, err := b.expr(kw.Value, s)
		if err != nil {
			return err
		}
		kw.Value = value
		bound[idx] = nodes.CloneExpr(value)
	}
	for i, p := range def.Params {
		if bound[i] != nil {
			continue
		}
		if p.Default == nil {
			return b.fail(diag.KindMacroArity, p.Name, call.Span, "missing required argument %q of macro %q", p.Name, name)
		}
		bound[i] = nodes.CloneExpr(p.Default)
	}

	call.Macro = def
	call.Bound = bound
	call.SetStaticType(schema.StringType)
	return nil
}

func (b *binder) notCallable(call *nodes.Call, s *Scope) error {
	name := call.Callee()
	switch {
	case name == "":
		callee := nodes.ExprString(call.Node)
		return b.fail(diag.KindUnknownBinding, callee, call.Span, "%q is not a macro", callee)
	case s.Has(name):
		return b.fail(diag.KindUnknownBinding, name, call.Span, "%q is not a macro", name)
	}
	return b.fail(diag.KindUnknownBinding, name, call.Span, "%q is not defined (in %s)", name, s.Describe())
}

type macroEdge struct {
	call   *nodes.Call
	callee *nodes.MacroDef
}

// callees lists the macro calls below n, each resolved against the table
// of the unit it appears in. Calls to a name in skip are not macro calls.
func (b *binder) callees(n nodes.Node, unit string, skip func(string) bool, out *[]macroEdge) {
	nodes.Walk(nodes.NodeVisitorFunc(func(c nodes.Node) interface{} {
		switch x := c.(type) {
		case *nodes.Include:
			for _, stmt := range x.Body {
				b.callees(stmt, x.Template, nil, out)
			}
			return true
		case *nodes.Call:
			name := x.Callee()
			if skip != nil && skip(name) {
				return nil
			}
			if def, ok := b.scopes[unit][name]; ok {
				*out = append(*out, macroEdge{call: x, callee: def})
			}
		}
		return nil
	}), n)
}

// checkRecursion rejects macros that call themselves directly or through
// other macros.
func (b *binder) checkRecursion(tmpl *nodes.Template) error {
	calls := make(map[*nodes.MacroDef][]macroEdge)
	for _, m := range tmpl.Macros {
		var edges []macroEdge
		skip := func(name string) bool { return m.Param(name) >= 0 }
		for _, stmt := range m.Body {
			b.callees(stmt, macroScopeOf(m, tmpl.Name), skip, &edges)
		}
		calls[m] = edges
	}

	const (
		unvisited = iota
		resolving
		done
	)
	state := make(map[*nodes.MacroDef]int)
	var path []*nodes.MacroDef
	var visit func(m *nodes.MacroDef) error
	visit = func(m *nodes.MacroDef) error {
		state[m] = resolving
		path = append(path, m)
		for _, edge := range calls[m] {
			switch state[edge.callee] {
			case resolving:
				start := 0
				for i, p := range path {
					if p == edge.callee {
						start = i
					}
				}
				var cycle []string
				for _, p := range path[start:] {
					cycle = append(cycle, p.Name)
				}
				cycle = append(cycle, edge.callee.Name)
				err := diag.Named(diag.KindCycle, edge.callee.Name, edge.call.Span, "macro recursion: %s", strings.Join(cycle, " -> "))
				err.Template = macroUnit(m, tmpl.Name)
				return err
			case unvisited:
				if err := visit(edge.callee); err != nil {
					return err
				}
			}
		}
		path = path[:len(path)-1]
		state[m] = done
		return nil
	}
	for _, m := range tmpl.Macros {
		if state[m] == unvisited {
			if err := visit(m); err != nil {
				return err
			}
		}
	}
	return nil
}
