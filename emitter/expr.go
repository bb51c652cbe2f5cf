package emitter

import (
	"fmt"

	"github.com/deicod/jinjac/ir"
	"github.com/deicod/jinjac/nodes"
)

func (e *emitter) exprs(list []nodes.Expr) ([]ir.Expr, error) {
	out := make([]ir.Expr, 0, len(list))
	for _, item := range list {
		lowered, err := e.expr(item)
		if err != nil {
			return nil, err
		}
		out = append(out, lowered)
	}
	return out, nil
}

func (e *emitter) expr(expr nodes.Expr) (ir.Expr, error) {
	switch n := expr.(type) {
	case *nodes.Name:
		if n.Ref == nil {
			return nil, e.fail(n, "%q reached the emitter unresolved", n.Name)
		}
		r := ref(n.Ref)
		return &r, nil

	case *nodes.Const:
		return &ir.Lit{Value: n.Value}, nil

	case *nodes.List:
		items, err := e.exprs(n.Items)
		if err != nil {
			return nil, err
		}
		return &ir.List{Items: items}, nil

	case *nodes.Tuple:
		items, err := e.exprs(n.Items)
		if err != nil {
			return nil, err
		}
		return &ir.List{Items: items}, nil

	case *nodes.Dict:
		d := &ir.Dict{}
		for _, pair := range n.Pairs {
			key, err := e.expr(pair.Key)
			if err != nil {
				return nil, err
			}
			value, err := e.expr(pair.Value)
			if err != nil {
				return nil, err
			}
			d.Keys = append(d.Keys, key)
			d.Values = append(d.Values, value)
		}
		return d, nil

	case *nodes.Getattr:
		if base, ok := n.Node.(*nodes.Name); ok && base.Ref != nil && base.Ref.Kind == nodes.RefLoop {
			return &ir.LoopMeta{Slot: base.Ref.Slot, Field: n.Attr}, nil
		}
		x, err := e.expr(n.Node)
		if err != nil {
			return nil, err
		}
		return &ir.Attr{X: x, Name: n.Attr}, nil

	case *nodes.Getitem:
		x, err := e.expr(n.Node)
		if err != nil {
			return nil, err
		}
		key, err := e.expr(n.Arg)
		if err != nil {
			return nil, err
		}
		return &ir.Index{X: x, Key: key}, nil

	case *nodes.BinExpr:
		left, err := e.expr(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := e.expr(n.Right)
		if err != nil {
			return nil, err
		}
		return &ir.Op{Op: n.Op, Left: left, Right: right}, nil

	case *nodes.UnaryExpr:
		x, err := e.expr(n.Node)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case "not":
			return &ir.Not{X: x}, nil
		case "-":
			return &ir.Neg{X: x}, nil
		}
		return x, nil

	case *nodes.Compare:
		return e.visitCompare(n)

	case *nodes.Concat:
		parts, err := e.exprs(n.Nodes)
		if err != nil {
			return nil, err
		}
		if len(parts) == 0 {
			return &ir.Lit{Value: ""}, nil
		}
		acc := parts[0]
		for _, part := range parts[1:] {
			acc = &ir.Op{Op: "~", Left: acc, Right: part}
		}
		return acc, nil

	case *nodes.CondExpr:
		c := &ir.Cond{}
		var err error
		if c.Test, err = e.expr(n.Test); err != nil {
			return nil, err
		}
		if c.Then, err = e.expr(n.Expr1); err != nil {
			return nil, err
		}
		if n.Expr2 != nil {
			if c.Else, err = e.expr(n.Expr2); err != nil {
				return nil, err
			}
		}
		return c, nil

	case *nodes.Filter:
		x, err := e.expr(n.Node)
		if err != nil {
			return nil, err
		}
		call, err := e.filterCall(n)
		if err != nil {
			return nil, err
		}
		return &ir.Apply{X: x, Filter: call}, nil

	case *nodes.Test:
		return nil, e.fail(n, "test %q reached the emitter unfolded", n.Name)

	case *nodes.Call:
		return nil, e.fail(n, "call of %q reached the emitter inside an expression", nodes.ExprString(n.Node))
	}
	panic(fmt.Sprintf("emitter: unhandled expression %T", expr))
}

// visitCompare lowers `a < b < c` to `(a < b) and (b < c)`.
func (e *emitter) visitCompare(n *nodes.Compare) (ir.Expr, error) {
	left, err := e.expr(n.Expr)
	if err != nil {
		return nil, err
	}
	var acc ir.Expr
	for _, op := range n.Ops {
		right, err := e.expr(op.Expr)
		if err != nil {
			return nil, err
		}
		cmp := &ir.Op{Op: op.Op, Left: left, Right: right}
		if acc == nil {
			acc = cmp
		} else {
			acc = &ir.Op{Op: "and", Left: acc, Right: cmp}
		}
		left = right
	}
	if acc == nil {
		return left, nil
	}
	return acc, nil
}
