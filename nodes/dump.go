package nodes

import (
	"fmt"
	"strings"
)

// Dump renders a node and its descendants as an indented tree, one node
// per line.
func Dump(node Node) string {
	var b strings.Builder
	dump(&b, node, 0)
	return b.String()
}

func dump(b *strings.Builder, node Node, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(label(node))
	b.WriteByte('\n')
	for _, child := range node.GetChildren() {
		dump(b, child, depth+1)
	}
}

func label(node Node) string {
	switch n := node.(type) {
	case *Template:
		if n.Parent != "" {
			return fmt.Sprintf("Template(name=%q, parent=%q)", n.Name, n.Parent)
		}
		return fmt.Sprintf("Template(name=%q)", n.Name)
	case *Text:
		return fmt.Sprintf("Text(value=%q, lead=%s, trail=%s)", n.Value, n.Lead, n.Trail)
	case *Raw:
		return fmt.Sprintf("Raw(value=%q)", n.Value)
	case *Output:
		if n.Escape != "" {
			return fmt.Sprintf("Output(escape=%s)", n.Escape)
		}
	case *For:
		names := make([]string, len(n.Targets))
		for i, t := range n.Targets {
			names[i] = t.Name
		}
		return fmt.Sprintf("For(targets=%s)", strings.Join(names, ", "))
	case *Block:
		return fmt.Sprintf("Block(name=%s)", n.Name)
	case *Extends:
		return fmt.Sprintf("Extends(template=%q)", n.Template)
	case *Include:
		return fmt.Sprintf("Include(template=%q)", n.Template)
	case *MacroDef:
		params := make([]string, len(n.Params))
		for i, p := range n.Params {
			params[i] = p.Name
			if p.Default != nil {
				params[i] += "=" + ExprString(p.Default)
			}
		}
		return fmt.Sprintf("MacroDef(name=%s, params=[%s])", n.Name, strings.Join(params, ", "))
	case *FilterBlock:
		names := make([]string, len(n.Filters))
		for i, f := range n.Filters {
			names[i] = f.Name
		}
		return fmt.Sprintf("FilterBlock(filters=%s)", strings.Join(names, "|"))
	case *Comment:
		return fmt.Sprintf("Comment(value=%q)", n.Value)
	case *Name:
		if n.Ref != nil {
			return fmt.Sprintf("Name(name=%s, ref=%s#%d)", n.Name, n.Ref.Kind, n.Ref.Slot)
		}
		return fmt.Sprintf("Name(name=%s)", n.Name)
	case *Const:
		return fmt.Sprintf("Const(value=%s)", constString(n.Value))
	case *Getattr:
		return fmt.Sprintf("Getattr(attr=%s)", n.Attr)
	case *BinExpr:
		return fmt.Sprintf("BinExpr(operator=%s)", n.Op)
	case *UnaryExpr:
		return fmt.Sprintf("UnaryExpr(operator=%s)", n.Op)
	case *Compare:
		ops := make([]string, len(n.Ops))
		for i, op := range n.Ops {
			ops[i] = op.Op
		}
		return fmt.Sprintf("Compare(ops=%s)", strings.Join(ops, " "))
	case *Filter:
		return fmt.Sprintf("Filter(name=%s)", n.Name)
	case *Test:
		if n.Negated {
			return fmt.Sprintf("Test(name=%s, negated)", n.Name)
		}
		return fmt.Sprintf("Test(name=%s)", n.Name)
	case *Call:
		if len(n.Kwargs) > 0 {
			keys := make([]string, len(n.Kwargs))
			for i, kw := range n.Kwargs {
				keys[i] = kw.Key
			}
			return fmt.Sprintf("Call(kwargs=%s)", strings.Join(keys, ", "))
		}
	}
	return node.Type()
}

func constString(v interface{}) string {
	switch c := v.(type) {
	case nil:
		return "none"
	case string:
		return fmt.Sprintf("%q", c)
	default:
		return fmt.Sprint(c)
	}
}

// ExprString renders an expression back to compact template syntax. It is
// used in labels and diagnostics, not for round-tripping.
func ExprString(e Expr) string {
	switch n := e.(type) {
	case nil:
		return ""
	case *Name:
		return n.Name
	case *Const:
		return constString(n.Value)
	case *List:
		return "[" + joinExprs(n.Items) + "]"
	case *Tuple:
		return "(" + joinExprs(n.Items) + ")"
	case *Dict:
		parts := make([]string, len(n.Pairs))
		for i, p := range n.Pairs {
			parts[i] = ExprString(p.Key) + ": " + ExprString(p.Value)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *Getattr:
		return ExprString(n.Node) + "." + n.Attr
	case *Getitem:
		return ExprString(n.Node) + "[" + ExprString(n.Arg) + "]"
	case *BinExpr:
		return ExprString(n.Left) + " " + n.Op + " " + ExprString(n.Right)
	case *UnaryExpr:
		if n.Op == "not" {
			return "not " + ExprString(n.Node)
		}
		return n.Op + ExprString(n.Node)
	case *Compare:
		s := ExprString(n.Expr)
		for _, op := range n.Ops {
			s += " " + op.Op + " " + ExprString(op.Expr)
		}
		return s
	case *Concat:
		parts := make([]string, len(n.Nodes))
		for i, p := range n.Nodes {
			parts[i] = ExprString(p)
		}
		return strings.Join(parts, " ~ ")
	case *CondExpr:
		s := ExprString(n.Expr1) + " if " + ExprString(n.Test)
		if n.Expr2 != nil {
			s += " else " + ExprString(n.Expr2)
		}
		return s
	case *Filter:
		s := n.Name
		if n.Node != nil {
			s = ExprString(n.Node) + "|" + s
		}
		if len(n.Args) > 0 {
			s += "(" + joinExprs(n.Args) + ")"
		}
		return s
	case *Test:
		if n.Negated {
			return ExprString(n.Node) + " is not " + n.Name
		}
		return ExprString(n.Node) + " is " + n.Name
	case *Call:
		args := joinExprs(n.Args)
		for _, kw := range n.Kwargs {
			if args != "" {
				args += ", "
			}
			args += kw.Key + "=" + ExprString(kw.Value)
		}
		return ExprString(n.Node) + "(" + args + ")"
	}
	return e.Type()
}

func joinExprs(exprs []Expr) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = ExprString(e)
	}
	return strings.Join(parts, ", ")
}
