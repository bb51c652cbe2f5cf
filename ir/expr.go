package ir

// Expr is a lowered, fully resolved expression.
type Expr interface {
	isExpr()
}

// Ref reads a binding. Context refs are addressed by Name, every other kind
// by Slot.
type Ref struct {
	Kind string
	Name string
	Slot int
}

// Lit is a constant: a string, int64, float64, bool or nil.
type Lit struct {
	Value interface{}
}

// Attr reads the field or map key Name of X.
type Attr struct {
	X    Expr
	Name string
}

// Index reads X[Key].
type Index struct {
	X   Expr
	Key Expr
}

// Op is a binary operator. Comparison chains are lowered to "and" of
// pairwise comparisons and string concatenation uses "~".
type Op struct {
	Op    string
	Left  Expr
	Right Expr
}

// Not is boolean negation.
type Not struct {
	X Expr
}

// Neg is arithmetic negation.
type Neg struct {
	X Expr
}

// Cond is `Then if Test else Else`. A nil Else yields an empty value.
type Cond struct {
	Test Expr
	Then Expr
	Else Expr
}

// List builds a list.
type List struct {
	Items []Expr
}

// Dict builds a map. Keys and Values are parallel.
type Dict struct {
	Keys   []Expr
	Values []Expr
}

// LoopMeta reads a metadata field of the loop in Slot.
type LoopMeta struct {
	Slot  int
	Field string
}

// Apply applies a filter inside an expression.
type Apply struct {
	X      Expr
	Filter FilterCall
}

func (*Ref) isExpr()      {}
func (*Lit) isExpr()      {}
func (*Attr) isExpr()     {}
func (*Index) isExpr()    {}
func (*Op) isExpr()       {}
func (*Not) isExpr()      {}
func (*Neg) isExpr()      {}
func (*Cond) isExpr()     {}
func (*List) isExpr()     {}
func (*Dict) isExpr()     {}
func (*LoopMeta) isExpr() {}
func (*Apply) isExpr()    {}
