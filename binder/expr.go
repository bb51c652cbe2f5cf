package binder

import (
	"strings"

	"github.com/deicod/jinjac/diag"
	"github.com/deicod/jinjac/nodes"
	"github.com/deicod/jinjac/schema"
)

// expr binds e in scope s and returns the expression to keep in its place,
// which differs from e only when a test was folded to a constant.
func (b *binder) expr(e nodes.Expr, s *Scope) (nodes.Expr, error) {
	switch n := e.(type) {
	case nil:
		return nil, nil

	case *nodes.Name:
		if n.Name == "loop" {
			return nil, b.bareLoop(n, s)
		}
		ref, ok := s.Get(n.Name)
		if !ok {
			return nil, b.fail(diag.KindUnknownBinding, n.Name, n.Span, "%q is not defined (in %s)", n.Name, s.Describe())
		}
		r := *ref
		n.Ref = &r
		n.SetStaticType(ref.Type)

	case *nodes.Const:
		n.SetStaticType(constType(n.Value))

	case *nodes.List:
		if err := b.exprs(n.Items, s); err != nil {
			return nil, err
		}
		n.SetStaticType(schema.ListOf(common(n.Items)))

	case *nodes.Tuple:
		if err := b.exprs(n.Items, s); err != nil {
			return nil, err
		}
		n.SetStaticType(schema.ListOf(common(n.Items)))

	case *nodes.Dict:
		values := make([]nodes.Expr, len(n.Pairs))
		for i, pair := range n.Pairs {
			key, err := b.expr(pair.Key, s)
			if err != nil {
				return nil, err
			}
			value, err := b.expr(pair.Value, s)
			if err != nil {
				return nil, err
			}
			pair.Key, pair.Value = key, value
			values[i] = value
		}
		n.SetStaticType(schema.MapOf(common(values)))

	case *nodes.Getattr:
		return b.getattr(n, s)

	case *nodes.Getitem:
		return b.getitem(n, s)

	case *nodes.BinExpr:
		left, err := b.expr(n.Left, s)
		if err != nil {
			return nil, err
		}
		right, err := b.expr(n.Right, s)
		if err != nil {
			return nil, err
		}
		n.Left, n.Right = left, right
		n.SetStaticType(binaryType(n.Op, left.StaticType(), right.StaticType()))

	case *nodes.UnaryExpr:
		operand, err := b.expr(n.Node, s)
		if err != nil {
			return nil, err
		}
		n.Node = operand
		switch t := operand.StaticType(); {
		case n.Op == "not":
			n.SetStaticType(schema.BoolType)
		case t.IsNumeric():
			n.SetStaticType(t)
		default:
			n.SetStaticType(schema.AnyType)
		}

	case *nodes.Compare:
		expr, err := b.expr(n.Expr, s)
		if err != nil {
			return nil, err
		}
		n.Expr = expr
		for _, op := range n.Ops {
			operand, err := b.expr(op.Expr, s)
			if err != nil {
				return nil, err
			}
			op.Expr = operand
		}
		n.SetStaticType(schema.BoolType)

	case *nodes.Concat:
		if err := b.exprs(n.Nodes, s); err != nil {
			return nil, err
		}
		n.SetStaticType(schema.StringType)

	case *nodes.CondExpr:
		test, err := b.expr(n.Test, s)
		if err != nil {
			return nil, err
		}
		then, err := b.expr(n.Expr1, s)
		if err != nil {
			return nil, err
		}
		n.Test, n.Expr1 = test, then
		n.SetStaticType(schema.AnyType)
		if n.Expr2 != nil {
			other, err := b.expr(n.Expr2, s)
			if err != nil {
				return nil, err
			}
			n.Expr2 = other
			n.SetStaticType(common([]nodes.Expr{then, other}))
		}

	case *nodes.Filter:
		input, err := b.expr(n.Node, s)
		if err != nil {
			return nil, err
		}
		n.Node = input
		if err := b.filter(n, input.StaticType(), s); err != nil {
			return nil, err
		}

	case *nodes.Test:
		return b.test(n, s)

	case *nodes.Call:
		name := n.Callee()
		if _, ok := b.macro(name); ok && name != "" {
			return nil, b.fail(diag.KindParse, name, n.Span,
				"macro %q can only be called on its own in an output tag or with a call tag", name)
		}
		return nil, b.notCallable(n, s)

	default:
		panic("binder: unhandled expression " + e.Type())
	}
	return e, nil
}

func (b *binder) exprs(list []nodes.Expr, s *Scope) error {
	for i, e := range list {
		bound, err := b.expr(e, s)
		if err != nil {
			return err
		}
		list[i] = bound
	}
	return nil
}

func (b *binder) bareLoop(n *nodes.Name, s *Scope) error {
	if len(b.loops) == 0 {
		return b.fail(diag.KindUnknownBinding, n.Name, n.Span, "%q is not defined (in %s)", n.Name, s.Describe())
	}
	return b.fail(diag.KindUnknownBinding, n.Name, n.Span, "loop metadata is only available as loop.<field>")
}

func (b *binder) getattr(n *nodes.Getattr, s *Scope) (nodes.Expr, error) {
	if base, ok := n.Node.(*nodes.Name); ok && base.Name == "loop" {
		if len(b.loops) == 0 {
			return nil, b.fail(diag.KindUnknownBinding, "loop", base.Span, "%q is not defined (in %s)", "loop", s.Describe())
		}
		t, ok := loopFields[n.Attr]
		if !ok {
			name := "loop." + n.Attr
			return nil, b.fail(diag.KindUnknownBinding, name, n.Span,
				"%q is not defined (loop provides index, index0, first, last and length)", name)
		}
		loop := b.loops[len(b.loops)-1]
		if !contains(loop.LoopFields, n.Attr) {
			loop.LoopFields = append(loop.LoopFields, n.Attr)
		}
		r := *loop.Loop
		base.Ref = &r
		base.SetStaticType(schema.AnyType)
		n.SetStaticType(t)
		return n, nil
	}

	node, err := b.expr(n.Node, s)
	if err != nil {
		return nil, err
	}
	n.Node = node

	t := node.StaticType()
	name := nodes.ExprString(node) + "." + n.Attr
	switch t.Kind {
	case schema.Struct:
		field, ok := t.Field(n.Attr)
		if !ok {
			return nil, b.fail(diag.KindUnknownBinding, name, n.Span, "%q is not defined (%s has fields %s)",
				name, nodes.ExprString(node), fieldNames(t))
		}
		n.SetStaticType(field)
	case schema.Map:
		n.SetStaticType(t.ElemType())
	case schema.Any, schema.Opaque:
		n.SetStaticType(schema.AnyType)
	default:
		return nil, b.fail(diag.KindUnknownBinding, name, n.Span, "%q is not defined (%s is a %s)",
			name, nodes.ExprString(node), t)
	}
	return n, nil
}

func (b *binder) getitem(n *nodes.Getitem, s *Scope) (nodes.Expr, error) {
	node, err := b.expr(n.Node, s)
	if err != nil {
		return nil, err
	}
	arg, err := b.expr(n.Arg, s)
	if err != nil {
		return nil, err
	}
	n.Node, n.Arg = node, arg

	t := node.StaticType()
	switch t.Kind {
	case schema.List, schema.Map, schema.String:
		n.SetStaticType(t.ElemType())
	case schema.Struct:
		key, ok := arg.(*nodes.Const)
		if !ok {
			n.SetStaticType(schema.AnyType)
			break
		}
		attr, _ := key.Value.(string)
		field, ok := t.Field(attr)
		if !ok {
			name := nodes.ExprString(node) + "." + attr
			return nil, b.fail(diag.KindUnknownBinding, name, n.Span, "%q is not defined (%s has fields %s)",
				name, nodes.ExprString(node), fieldNames(t))
		}
		n.SetStaticType(field)
	default:
		n.SetStaticType(schema.AnyType)
	}
	return n, nil
}

func (b *binder) filter(f *nodes.Filter, in *schema.Type, s *Scope) error {
	def, ok := b.registry.Lookup(f.Name)
	if !ok {
		return b.fail(diag.KindUnknownFilter, f.Name, f.Span, "unknown filter %q", f.Name)
	}
	if err := b.exprs(f.Args, s); err != nil {
		return err
	}
	f.Def = def
	f.SetStaticType(def.ResultType(in))
	return nil
}

// test folds `x is [not] defined` to a boolean constant: x is defined
// when it binds without an unknown binding error.
func (b *binder) test(n *nodes.Test, s *Scope) (nodes.Expr, error) {
	if n.Name != "defined" {
		return nil, b.fail(diag.KindParse, n.Name, n.Span, "unknown test %q", n.Name)
	}

	var saved []string
	if len(b.loops) > 0 {
		saved = append(saved, b.loops[len(b.loops)-1].LoopFields...)
	}
	defined := true
	if _, err := b.expr(nodes.CloneExpr(n.Node), s); err != nil {
		if diag.KindOf(err) != diag.KindUnknownBinding {
			return nil, err
		}
		defined = false
	}
	if len(b.loops) > 0 {
		b.loops[len(b.loops)-1].LoopFields = saved
	}

	folded := &nodes.Const{Value: defined != n.Negated}
	folded.Span = n.Span
	folded.SetStaticType(schema.BoolType)
	return folded, nil
}

func constType(v interface{}) *schema.Type {
	switch v.(type) {
	case string:
		return schema.StringType
	case int64:
		return schema.IntType
	case float64:
		return schema.FloatType
	case bool:
		return schema.BoolType
	}
	return schema.AnyType
}

// common returns the shared static type of exprs, or any.
func common(exprs []nodes.Expr) *schema.Type {
	if len(exprs) == 0 {
		return schema.AnyType
	}
	first := exprs[0].StaticType()
	for _, e := range exprs[1:] {
		if !e.StaticType().Equal(first) {
			return schema.AnyType
		}
	}
	return first
}

func binaryType(op string, l, r *schema.Type) *schema.Type {
	switch op {
	case "and", "or":
		if l.Equal(r) {
			return l
		}
		return schema.AnyType
	case "/":
		if l.IsNumeric() && r.IsNumeric() {
			return schema.FloatType
		}
		return schema.AnyType
	case "+":
		if l.Kind == schema.String && r.Kind == schema.String {
			return schema.StringType
		}
		if l.Kind == schema.List && l.Equal(r) {
			return l
		}
	}
	switch {
	case l.Kind == schema.Int && r.Kind == schema.Int:
		return schema.IntType
	case l.IsNumeric() && r.IsNumeric():
		return schema.FloatType
	}
	return schema.AnyType
}

func fieldNames(t *schema.Type) string {
	names := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		names[i] = f.Name
	}
	return strings.Join(names, ", ")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
