package nodes

import "github.com/deicod/jinjac/lexer"

// Template is a Template Unit: one named template with its body and the
// blocks and macros it defines.
type Template struct {
	BaseStmt
	Name string
	// Parent is the extends target, empty when the template has none.
	Parent  string
	Extends *Extends
	Body    []Stmt
	// Blocks lists every block definition in document order, nested
	// blocks included.
	Blocks   []*Block
	Macros   []*MacroDef
	Comments []*Comment
	// MacroScopes maps a unit name to the IDs of the macros callable from
	// that unit's body and macros, by macro name. Set by the inheritance
	// resolver.
	MacroScopes map[string]map[string]string
}

func (t *Template) GetChildren() []Node { return stmtsAsNodes(t.Body) }
func (t *Template) Type() string        { return "Template" }

// Block returns the block definition with the given name.
func (t *Template) Block(name string) *Block {
	for _, b := range t.Blocks {
		if b.Name == name {
			return b
		}
	}
	return nil
}

// Macro returns the macro definition with the given name.
func (t *Template) Macro(name string) *MacroDef {
	for _, m := range t.Macros {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// Text is literal template text. Lead and Trail carry the trim marker of
// the directive immediately before and after it.
type Text struct {
	BaseStmt
	Value string
	Lead  lexer.Whitespace
	Trail lexer.Whitespace
}

func (t *Text) GetChildren() []Node { return nil }
func (t *Text) Type() string        { return "Text" }

// Raw is the verbatim body of a raw region.
type Raw struct {
	BaseStmt
	Value string
	Lead  lexer.Whitespace
	Trail lexer.Whitespace
}

func (r *Raw) GetChildren() []Node { return nil }
func (r *Raw) Type() string        { return "Raw" }

// Output prints an expression. Escape is filled in by the escape validator.
type Output struct {
	BaseStmt
	Expr   Expr
	Escape string
}

func (o *Output) GetChildren() []Node { return exprsAsNodes(o.Expr) }
func (o *Output) Type() string        { return "Output" }

// If represents an if statement with its elif chain
type If struct {
	BaseStmt
	Test Expr
	Body []Stmt
	Elif []*If
	Else []Stmt
}

func (i *If) GetChildren() []Node {
	children := exprsAsNodes(i.Test)
	children = append(children, stmtsAsNodes(i.Body)...)
	for _, elif := range i.Elif {
		children = append(children, elif)
	}
	return append(children, stmtsAsNodes(i.Else)...)
}
func (i *If) Type() string { return "If" }

// For represents a for loop. Loop is the binding of the implicit loop
// metadata and LoopFields the metadata the body reads, both set by the
// binder.
type For struct {
	BaseStmt
	Targets    []*Name
	Iter       Expr
	Test       Expr
	Body       []Stmt
	Else       []Stmt
	Loop       *Ref
	LoopFields []string
}

func (f *For) GetChildren() []Node {
	var children []Node
	for _, t := range f.Targets {
		children = append(children, t)
	}
	children = append(children, exprsAsNodes(f.Iter, f.Test)...)
	children = append(children, stmtsAsNodes(f.Body)...)
	return append(children, stmtsAsNodes(f.Else)...)
}
func (f *For) Type() string { return "For" }

// Let introduces a single-assignment binding in the current scope
type Let struct {
	BaseStmt
	Target *Name
	Value  Expr
}

func (l *Let) GetChildren() []Node { return exprsAsNodes(l.Target, l.Value) }
func (l *Let) Type() string        { return "Let" }

// Block is a named, overridable region
type Block struct {
	BaseStmt
	Name string
	Body []Stmt
}

func (b *Block) GetChildren() []Node { return stmtsAsNodes(b.Body) }
func (b *Block) Type() string        { return "Block" }

// Extends names the parent template
type Extends struct {
	BaseStmt
	Template string
}

func (e *Extends) GetChildren() []Node { return nil }
func (e *Extends) Type() string        { return "Extends" }

// Include splices another template in place. Body is filled in by the
// inheritance resolver.
type Include struct {
	BaseStmt
	Template string
	Body     []Stmt
	Resolved bool
}

func (i *Include) GetChildren() []Node { return stmtsAsNodes(i.Body) }
func (i *Include) Type() string        { return "Include" }

// CallMacro is the `call` statement form of a macro call
type CallMacro struct {
	BaseStmt
	Call *Call
}

func (c *CallMacro) GetChildren() []Node { return exprsAsNodes(c.Call) }
func (c *CallMacro) Type() string        { return "CallMacro" }

// MacroDef defines a macro. ID, Template and Unit are assigned by the
// inheritance resolver: Template is the file holding the definition and
// Unit the resolved unit whose macros its body calls.
type MacroDef struct {
	BaseStmt
	Name     string
	Params   []*Param
	Body     []Stmt
	ID       string
	Template string
	Unit     string
}

func (m *MacroDef) GetChildren() []Node {
	var children []Node
	for _, p := range m.Params {
		if p.Default != nil {
			children = append(children, p.Default)
		}
	}
	return append(children, stmtsAsNodes(m.Body)...)
}
func (m *MacroDef) Type() string { return "MacroDef" }

// Param returns the index of the named parameter, or -1.
func (m *MacroDef) Param(name string) int {
	for i, p := range m.Params {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// Param is a declared macro parameter
type Param struct {
	BaseNode
	Name    string
	Default Expr
	Ref     *Ref
}

// FilterBlock applies a filter chain to the output of its body
type FilterBlock struct {
	BaseStmt
	Filters []*Filter
	Body    []Stmt
	Escape  string
}

func (f *FilterBlock) GetChildren() []Node {
	var children []Node
	for _, flt := range f.Filters {
		children = append(children, flt)
	}
	return append(children, stmtsAsNodes(f.Body)...)
}
func (f *FilterBlock) Type() string { return "FilterBlock" }

// Comment is a discarded comment, kept for diagnostics only
type Comment struct {
	BaseStmt
	Value string
}

func (c *Comment) GetChildren() []Node { return nil }
func (c *Comment) Type() string        { return "Comment" }

// Break exits the innermost loop
type Break struct {
	BaseStmt
}

func (b *Break) GetChildren() []Node { return nil }
func (b *Break) Type() string        { return "Break" }

// Continue skips to the next iteration of the innermost loop
type Continue struct {
	BaseStmt
}

func (c *Continue) GetChildren() []Node { return nil }
func (c *Continue) Type() string        { return "Continue" }

// Super stands for `{{ super() }}` until the inheritance resolver replaces
// it with the parent's block body.
type Super struct {
	BaseStmt
}

func (s *Super) GetChildren() []Node { return nil }
func (s *Super) Type() string        { return "Super" }
