package nodes

import (
	"github.com/deicod/jinjac/filters"
	"github.com/deicod/jinjac/schema"
)

// RefKind tells where a resolved binding lives
type RefKind int

const (
	RefContext RefKind = iota
	RefLocal
	RefLoopVar
	RefParam
	RefLoop
)

var refKindNames = [...]string{"context", "local", "loopvar", "param", "loop"}

func (k RefKind) String() string {
	if int(k) < len(refKindNames) {
		return refKindNames[k]
	}
	return "unknown"
}

// Ref is a resolved binding. Context refs address the schema by name,
// every other kind addresses a numbered slot.
type Ref struct {
	Kind RefKind
	Name string
	Slot int
	Type *schema.Type
}

// Name is a variable reference
type Name struct {
	BaseExpr
	Name string
	Ref  *Ref
}

func (n *Name) GetChildren() []Node { return nil }
func (n *Name) Type() string        { return "Name" }

// Const is a literal. Value holds a string, int64, float64, bool or nil.
type Const struct {
	BaseExpr
	Value interface{}
}

func (c *Const) GetChildren() []Node { return nil }
func (c *Const) Type() string        { return "Const" }

// List is a list literal
type List struct {
	BaseExpr
	Items []Expr
}

func (l *List) GetChildren() []Node { return exprsAsNodes(l.Items...) }
func (l *List) Type() string        { return "List" }

// Tuple is a parenthesized tuple literal or an unpacking target list
type Tuple struct {
	BaseExpr
	Items []Expr
}

func (t *Tuple) GetChildren() []Node { return exprsAsNodes(t.Items...) }
func (t *Tuple) Type() string        { return "Tuple" }

// Pair is one key/value entry of a dict literal
type Pair struct {
	BaseNode
	Key   Expr
	Value Expr
}

// Dict is a dict literal
type Dict struct {
	BaseExpr
	Pairs []*Pair
}

func (d *Dict) GetChildren() []Node {
	var children []Node
	for _, p := range d.Pairs {
		children = append(children, exprsAsNodes(p.Key, p.Value)...)
	}
	return children
}
func (d *Dict) Type() string { return "Dict" }

// Getattr is a dotted field access
type Getattr struct {
	BaseExpr
	Node Expr
	Attr string
}

func (g *Getattr) GetChildren() []Node { return exprsAsNodes(g.Node) }
func (g *Getattr) Type() string        { return "Getattr" }

// Getitem is a subscript access
type Getitem struct {
	BaseExpr
	Node Expr
	Arg  Expr
}

func (g *Getitem) GetChildren() []Node { return exprsAsNodes(g.Node, g.Arg) }
func (g *Getitem) Type() string        { return "Getitem" }

// BinExpr is a binary operation: arithmetic, `and`, `or` or `in`.
type BinExpr struct {
	BaseExpr
	Left  Expr
	Right Expr
	Op    string
}

func (b *BinExpr) GetChildren() []Node { return exprsAsNodes(b.Left, b.Right) }
func (b *BinExpr) Type() string        { return "BinExpr" }

// UnaryExpr is `not`, unary minus or unary plus
type UnaryExpr struct {
	BaseExpr
	Op   string
	Node Expr
}

func (u *UnaryExpr) GetChildren() []Node { return exprsAsNodes(u.Node) }
func (u *UnaryExpr) Type() string        { return "UnaryExpr" }

// Operand is one link of a comparison chain
type Operand struct {
	BaseNode
	Op   string
	Expr Expr
}

// Compare is a (possibly chained) comparison
type Compare struct {
	BaseExpr
	Expr Expr
	Ops  []*Operand
}

func (c *Compare) GetChildren() []Node {
	children := exprsAsNodes(c.Expr)
	for _, op := range c.Ops {
		children = append(children, exprsAsNodes(op.Expr)...)
	}
	return children
}
func (c *Compare) Type() string { return "Compare" }

// Concat is string concatenation with `~`
type Concat struct {
	BaseExpr
	Nodes []Expr
}

func (c *Concat) GetChildren() []Node { return exprsAsNodes(c.Nodes...) }
func (c *Concat) Type() string        { return "Concat" }

// CondExpr is an inline `a if test else b`. Expr2 is nil without an else.
type CondExpr struct {
	BaseExpr
	Test  Expr
	Expr1 Expr
	Expr2 Expr
}

func (c *CondExpr) GetChildren() []Node { return exprsAsNodes(c.Test, c.Expr1, c.Expr2) }
func (c *CondExpr) Type() string        { return "CondExpr" }

// Filter applies a named filter. Node is nil inside a filter block; Def is
// set by the binder.
type Filter struct {
	BaseExpr
	Node Expr
	Name string
	Args []Expr
	Def  *filters.Def
}

func (f *Filter) GetChildren() []Node {
	return append(exprsAsNodes(f.Node), exprsAsNodes(f.Args...)...)
}
func (f *Filter) Type() string { return "Filter" }

// Test is an `is [not] name` test
type Test struct {
	BaseExpr
	Node    Expr
	Name    string
	Negated bool
}

func (t *Test) GetChildren() []Node { return exprsAsNodes(t.Node) }
func (t *Test) Type() string        { return "Test" }

// Keyword is a named call argument
type Keyword struct {
	BaseNode
	Key   string
	Value Expr
}

// Call is a call expression. The binder resolves macro calls: Macro is the
// callee and Bound holds one argument per parameter, defaults substituted.
type Call struct {
	BaseExpr
	Node   Expr
	Args   []Expr
	Kwargs []*Keyword
	Macro  *MacroDef
	Bound  []Expr
}

func (c *Call) GetChildren() []Node {
	children := exprsAsNodes(c.Node)
	children = append(children, exprsAsNodes(c.Args...)...)
	for _, kw := range c.Kwargs {
		children = append(children, exprsAsNodes(kw.Value)...)
	}
	return children
}
func (c *Call) Type() string { return "Call" }

// Callee returns the called name when the call target is a plain name.
func (c *Call) Callee() string {
	if n, ok := c.Node.(*Name); ok {
		return n.Name
	}
	return ""
}
