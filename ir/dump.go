package ir

import (
	"fmt"
	"strings"
)

// Dump renders a program as indented text, one instruction per line. The
// output depends only on the program, so equal programs dump equally.
func Dump(p *Program) string {
	var b strings.Builder
	fmt.Fprintf(&b, "program %q ext=%q mime=%q escape=%s size=%d\n",
		p.Name, p.Extension, p.MIMEType, p.Escape, p.SizeHint)
	dumpCode(&b, p.Code, 1)
	return b.String()
}

// DumpCode renders an instruction sequence the way Dump does.
func DumpCode(code []Instruction) string {
	var b strings.Builder
	dumpCode(&b, code, 0)
	return b.String()
}

func dumpCode(b *strings.Builder, code []Instruction, depth int) {
	for _, inst := range code {
		dumpInstruction(b, inst, depth)
	}
}

func line(b *strings.Builder, depth int, format string, args ...interface{}) {
	b.WriteString(strings.Repeat("  ", depth))
	fmt.Fprintf(b, format, args...)
	b.WriteByte('\n')
}

func dumpInstruction(b *strings.Builder, inst Instruction, depth int) {
	switch n := inst.(type) {
	case *EmitLiteral:
		line(b, depth, "literal %q", n.Text)
	case *EmitExpr:
		line(b, depth, "emit %s%s escape=%s", ExprString(n.Expr), chainString(n.Filters), n.Escape)
	case *Branch:
		line(b, depth, "branch %s", ExprString(n.Cond))
		line(b, depth+1, "then")
		dumpCode(b, n.Then, depth+2)
		if len(n.Else) > 0 {
			line(b, depth+1, "else")
			dumpCode(b, n.Else, depth+2)
		}
	case *Loop:
		targets := make([]string, len(n.Targets))
		for i := range n.Targets {
			targets[i] = ExprString(&n.Targets[i])
		}
		head := fmt.Sprintf("loop %s in %s", strings.Join(targets, ", "), ExprString(n.Iter))
		if n.Cond != nil {
			head += " if " + ExprString(n.Cond)
		}
		head += fmt.Sprintf(" meta=loop#%d[%s]", n.Loop, strings.Join(n.Meta, ","))
		line(b, depth, "%s", head)
		line(b, depth+1, "body")
		dumpCode(b, n.Body, depth+2)
		if len(n.Else) > 0 {
			line(b, depth+1, "else")
			dumpCode(b, n.Else, depth+2)
		}
	case *CallMacro:
		line(b, depth, "call %s(%s)", n.ID, exprList(n.Args))
	case *DefineMacro:
		params := make([]string, len(n.Params))
		for i := range n.Params {
			params[i] = ExprString(&n.Params[i])
		}
		line(b, depth, "define %s(%s)", n.ID, strings.Join(params, ", "))
		dumpCode(b, n.Body, depth+1)
	case *Bind:
		line(b, depth, "bind %s = %s", ExprString(&n.Target), ExprString(n.Value))
	case *Break:
		line(b, depth, "break")
	case *Continue:
		line(b, depth, "continue")
	case *EmitFiltered:
		line(b, depth, "filtered %s escape=%s", chainString(n.Filters), n.Escape)
		dumpCode(b, n.Body, depth+1)
	default:
		panic(fmt.Sprintf("ir: unhandled instruction %T", inst))
	}
}

func chainString(chain []FilterCall) string {
	var b strings.Builder
	for _, f := range chain {
		b.WriteString("|")
		b.WriteString(filterString(f))
	}
	return b.String()
}

func filterString(f FilterCall) string {
	if len(f.Args) == 0 {
		return f.Name
	}
	return f.Name + "(" + exprList(f.Args) + ")"
}

func exprList(list []Expr) string {
	parts := make([]string, len(list))
	for i, e := range list {
		parts[i] = ExprString(e)
	}
	return strings.Join(parts, ", ")
}

// ExprString renders e compactly. Slot refs print as kind:name#slot.
func ExprString(e Expr) string {
	switch n := e.(type) {
	case nil:
		return "<nil>"
	case *Ref:
		if n.Kind == "context" {
			return n.Name
		}
		return fmt.Sprintf("%s:%s#%d", n.Kind, n.Name, n.Slot)
	case *Lit:
		return litString(n.Value)
	case *Attr:
		return ExprString(n.X) + "." + n.Name
	case *Index:
		return ExprString(n.X) + "[" + ExprString(n.Key) + "]"
	case *Op:
		return "(" + ExprString(n.Left) + " " + n.Op + " " + ExprString(n.Right) + ")"
	case *Not:
		return "not " + ExprString(n.X)
	case *Neg:
		return "-" + ExprString(n.X)
	case *Cond:
		s := "(" + ExprString(n.Then) + " if " + ExprString(n.Test)
		if n.Else != nil {
			s += " else " + ExprString(n.Else)
		}
		return s + ")"
	case *List:
		return "[" + exprList(n.Items) + "]"
	case *Dict:
		parts := make([]string, len(n.Keys))
		for i := range n.Keys {
			parts[i] = ExprString(n.Keys[i]) + ": " + ExprString(n.Values[i])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *LoopMeta:
		return fmt.Sprintf("loop#%d.%s", n.Slot, n.Field)
	case *Apply:
		return ExprString(n.X) + "|" + filterString(n.Filter)
	}
	panic(fmt.Sprintf("ir: unhandled expression %T", e))
}

func litString(v interface{}) string {
	switch c := v.(type) {
	case nil:
		return "none"
	case string:
		return fmt.Sprintf("%q", c)
	default:
		return fmt.Sprint(c)
	}
}
