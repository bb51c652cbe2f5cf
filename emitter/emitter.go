// Package emitter lowers a bound, normalized and validated template into an
// ir.Program.
package emitter

import (
	"fmt"

	"github.com/deicod/jinjac/binder"
	"github.com/deicod/jinjac/diag"
	"github.com/deicod/jinjac/ir"
	"github.com/deicod/jinjac/nodes"
)

// Emit lowers res.Template. Macro definitions come first, in the order of
// the template's macro list, followed by the body. The program's extension,
// MIME type and escape mode are left for the caller to fill in.
func Emit(res *binder.Result) (*ir.Program, error) {
	tmpl := res.Template
	e := &emitter{unit: tmpl.Name}

	out := ir.NewBuilder()
	seen := make(map[string]bool, len(tmpl.Macros))
	for _, m := range tmpl.Macros {
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		def, err := e.visitMacro(m)
		if err != nil {
			return nil, err
		}
		out.Add(def)
	}
	e.unit = tmpl.Name
	if err := e.stmts(out, tmpl.Body); err != nil {
		return nil, err
	}

	p := &ir.Program{Name: tmpl.Name, Code: out.Code()}
	if res.Schema != nil {
		for _, entry := range res.Schema.Entries() {
			p.Context = append(p.Context, ir.Var{Name: entry.Name, Kind: nodes.RefContext.String(), Type: entry.Type.String()})
		}
	}
	for _, slot := range res.Slots {
		p.Slots = append(p.Slots, ir.Var{Name: slot.Name, Kind: slot.Kind.String(), Type: slot.Type.String()})
	}
	p.SizeHint = ir.ComputeSizeHint(p.Code)
	return p, nil
}

type emitter struct {
	unit string
}

func (e *emitter) fail(node nodes.Node, format string, args ...interface{}) error {
	err := diag.New(diag.KindUnknownBinding, node.GetSpan(), format, args...)
	err.Template = e.unit
	return err
}

func (e *emitter) visitMacro(m *nodes.MacroDef) (*ir.DefineMacro, error) {
	if m.Template != "" {
		e.unit = m.Template
	}
	def := &ir.DefineMacro{ID: m.ID, Name: m.Name}
	for _, p := range m.Params {
		if p.Ref == nil {
			return nil, e.fail(m, "parameter %q of macro %q reached the emitter unbound", p.Name, m.Name)
		}
		def.Params = append(def.Params, ref(p.Ref))
	}
	body := ir.NewBuilder()
	if err := e.stmts(body, m.Body); err != nil {
		return nil, err
	}
	def.Body = body.Code()
	return def, nil
}

func (e *emitter) stmts(out *ir.Builder, list []nodes.Stmt) error {
	for _, stmt := range list {
		if err := e.stmt(out, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (e *emitter) block(list []nodes.Stmt) ([]ir.Instruction, error) {
	b := ir.NewBuilder()
	if err := e.stmts(b, list); err != nil {
		return nil, err
	}
	return b.Code(), nil
}

func (e *emitter) stmt(out *ir.Builder, stmt nodes.Stmt) error {
	switch n := stmt.(type) {
	case *nodes.Text:
		out.Literal(n.Value)
	case *nodes.Raw:
		out.Literal(n.Value)
	case *nodes.Comment, *nodes.Extends, *nodes.MacroDef:
		// zero width; macros are emitted from the hoisted list
	case *nodes.Output:
		return e.visitOutput(out, n)
	case *nodes.If:
		branch, err := e.visitIf(n.Test, n.Body, n.Elif, n.Else)
		if err != nil {
			return err
		}
		out.Add(branch)
	case *nodes.For:
		return e.visitFor(out, n)
	case *nodes.Let:
		value, err := e.expr(n.Value)
		if err != nil {
			return err
		}
		if n.Target.Ref == nil {
			return e.fail(n, "%q reached the emitter unbound", n.Target.Name)
		}
		out.Add(&ir.Bind{Target: ref(n.Target.Ref), Value: value})
	case *nodes.Block:
		return e.stmts(out, n.Body)
	case *nodes.Include:
		if !n.Resolved {
			return e.fail(n, "include of %q reached the emitter unresolved", n.Template)
		}
		return e.stmts(out, n.Body)
	case *nodes.CallMacro:
		call, err := e.visitCall(n.Call)
		if err != nil {
			return err
		}
		out.Add(call)
	case *nodes.FilterBlock:
		return e.visitFilterBlock(out, n)
	case *nodes.Break:
		out.Add(&ir.Break{})
	case *nodes.Continue:
		out.Add(&ir.Continue{})
	case *nodes.Super:
		return e.fail(n, "super() reached the emitter unresolved")
	default:
		panic(fmt.Sprintf("emitter: unhandled statement %T", stmt))
	}
	return nil
}

func (e *emitter) visitOutput(out *ir.Builder, n *nodes.Output) error {
	if call, ok := n.Expr.(*nodes.Call); ok {
		inst, err := e.visitCall(call)
		if err != nil {
			return err
		}
		out.Add(inst)
		return nil
	}

	// peel the outer filter chain, innermost filter first
	var chain []*nodes.Filter
	base := n.Expr
	for {
		f, ok := base.(*nodes.Filter)
		if !ok {
			break
		}
		chain = append([]*nodes.Filter{f}, chain...)
		base = f.Node
	}
	value, err := e.expr(base)
	if err != nil {
		return err
	}
	filters, err := e.filterCalls(chain)
	if err != nil {
		return err
	}
	out.Add(&ir.EmitExpr{Expr: value, Filters: filters, Escape: n.Escape})
	return nil
}

// visitIf lowers an if statement; each elif becomes a Branch nested in the
// else side of the previous one.
func (e *emitter) visitIf(test nodes.Expr, body []nodes.Stmt, elifs []*nodes.If, els []nodes.Stmt) (*ir.Branch, error) {
	cond, err := e.expr(test)
	if err != nil {
		return nil, err
	}
	then, err := e.block(body)
	if err != nil {
		return nil, err
	}
	branch := &ir.Branch{Cond: cond, Then: then}
	if len(elifs) > 0 {
		next, err := e.visitIf(elifs[0].Test, elifs[0].Body, elifs[1:], els)
		if err != nil {
			return nil, err
		}
		branch.Else = []ir.Instruction{next}
		return branch, nil
	}
	if branch.Else, err = e.block(els); err != nil {
		return nil, err
	}
	return branch, nil
}

func (e *emitter) visitFor(out *ir.Builder, n *nodes.For) error {
	if n.Loop == nil {
		return e.fail(n, "for loop reached the emitter unbound")
	}
	loop := &ir.Loop{Loop: n.Loop.Slot, Meta: append([]string(nil), n.LoopFields...)}
	for _, target := range n.Targets {
		if target.Ref == nil {
			return e.fail(target, "%q reached the emitter unbound", target.Name)
		}
		loop.Targets = append(loop.Targets, ref(target.Ref))
	}
	var err error
	if loop.Iter, err = e.expr(n.Iter); err != nil {
		return err
	}
	if n.Test != nil {
		if loop.Cond, err = e.expr(n.Test); err != nil {
			return err
		}
	}
	if loop.Body, err = e.block(n.Body); err != nil {
		return err
	}
	if loop.Else, err = e.block(n.Else); err != nil {
		return err
	}
	out.Add(loop)
	return nil
}

func (e *emitter) visitCall(call *nodes.Call) (*ir.CallMacro, error) {
	if call.Macro == nil {
		return nil, e.fail(call, "call of %q reached the emitter unbound", nodes.ExprString(call.Node))
	}
	args, err := e.exprs(call.Bound)
	if err != nil {
		return nil, err
	}
	return &ir.CallMacro{ID: call.Macro.ID, Args: args}, nil
}

func (e *emitter) visitFilterBlock(out *ir.Builder, n *nodes.FilterBlock) error {
	filters, err := e.filterCalls(n.Filters)
	if err != nil {
		return err
	}
	body, err := e.block(n.Body)
	if err != nil {
		return err
	}
	out.Add(&ir.EmitFiltered{Filters: filters, Escape: n.Escape, Body: body})
	return nil
}

func (e *emitter) filterCalls(chain []*nodes.Filter) ([]ir.FilterCall, error) {
	var calls []ir.FilterCall
	for _, f := range chain {
		call, err := e.filterCall(f)
		if err != nil {
			return nil, err
		}
		calls = append(calls, call)
	}
	return calls, nil
}

func (e *emitter) filterCall(f *nodes.Filter) (ir.FilterCall, error) {
	if f.Def == nil {
		return ir.FilterCall{}, e.fail(f, "filter %q reached the emitter unresolved", f.Name)
	}
	args, err := e.exprs(f.Args)
	if err != nil {
		return ir.FilterCall{}, err
	}
	return ir.FilterCall{Name: f.Name, Args: args}, nil
}

func ref(r *nodes.Ref) ir.Ref {
	return ir.Ref{Kind: r.Kind.String(), Name: r.Name, Slot: r.Slot}
}
