// Package ir defines the instruction sequence a compiled template lowers to.
// A Program is plain data: the host code generator walks it in order and
// writes the bytes each instruction produces to its output sink.
package ir

// Instruction is one step of a Program.
type Instruction interface {
	isInstruction()
}

// EmitLiteral writes Text verbatim.
type EmitLiteral struct {
	Text string
}

// EmitExpr writes the value of Expr after applying Filters in order and
// escaping the result with the Escape mode.
type EmitExpr struct {
	Expr    Expr
	Filters []FilterCall
	Escape  string
}

// Branch runs Then when Cond is truthy and Else otherwise. An elif chain is
// a Branch nested as the only instruction of Else.
type Branch struct {
	Cond Expr
	Then []Instruction
	Else []Instruction
}

// Loop runs Body once per element of Iter that passes Cond. Targets are the
// slots the element is unpacked into; Loop is the slot holding the loop
// metadata and Meta names the fields the body reads. Else runs when no
// element passed.
type Loop struct {
	Targets []Ref
	Iter    Expr
	Cond    Expr
	Body    []Instruction
	Else    []Instruction
	Loop    int
	Meta    []string
}

// CallMacro runs the macro ID with one argument per parameter.
type CallMacro struct {
	ID   string
	Args []Expr
}

// DefineMacro declares a macro once, ahead of the template body.
type DefineMacro struct {
	ID     string
	Name   string
	Params []Ref
	Body   []Instruction
}

// Bind stores Value in a local slot for the rest of the enclosing scope.
type Bind struct {
	Target Ref
	Value  Expr
}

// Break leaves the innermost loop.
type Break struct{}

// Continue skips to the next iteration of the innermost loop.
type Continue struct{}

// EmitFiltered renders Body into a buffer, applies Filters to it and
// writes the result escaped with Escape.
type EmitFiltered struct {
	Filters []FilterCall
	Escape  string
	Body    []Instruction
}

func (*EmitLiteral) isInstruction()  {}
func (*EmitExpr) isInstruction()     {}
func (*Branch) isInstruction()       {}
func (*Loop) isInstruction()         {}
func (*CallMacro) isInstruction()    {}
func (*DefineMacro) isInstruction()  {}
func (*Bind) isInstruction()         {}
func (*Break) isInstruction()        {}
func (*Continue) isInstruction()     {}
func (*EmitFiltered) isInstruction() {}

var (
	_ Instruction = (*EmitLiteral)(nil)
	_ Instruction = (*EmitExpr)(nil)
	_ Instruction = (*Branch)(nil)
	_ Instruction = (*Loop)(nil)
	_ Instruction = (*CallMacro)(nil)
	_ Instruction = (*DefineMacro)(nil)
	_ Instruction = (*Bind)(nil)
	_ Instruction = (*Break)(nil)
	_ Instruction = (*Continue)(nil)
	_ Instruction = (*EmitFiltered)(nil)
)

// FilterCall applies the filter Name with Args after the input value.
type FilterCall struct {
	Name string
	Args []Expr
}

// Var is a named, typed binding: a context entry or a numbered slot.
type Var struct {
	Name string
	Kind string
	Type string
}

// Program is the result of compiling one template.
type Program struct {
	Name      string
	Extension string
	MIMEType  string
	Escape    string
	// SizeHint estimates the rendered size: every literal byte plus three
	// per emitted expression.
	SizeHint int
	Context  []Var
	// Slots is indexed by the Slot of every non-context Ref.
	Slots []Var
	// Code holds every DefineMacro first, then the template body.
	Code []Instruction
}

// Macros returns the hoisted macro definitions.
func (p *Program) Macros() []*DefineMacro {
	var out []*DefineMacro
	for _, inst := range p.Code {
		m, ok := inst.(*DefineMacro)
		if !ok {
			break
		}
		out = append(out, m)
	}
	return out
}

// Body returns the instructions after the macro definitions.
func (p *Program) Body() []Instruction {
	return p.Code[len(p.Macros()):]
}

// Walk calls fn for every instruction of code in depth-first order,
// descending into nested sequences.
func Walk(code []Instruction, fn func(Instruction)) {
	for _, inst := range code {
		fn(inst)
		switch n := inst.(type) {
		case *Branch:
			Walk(n.Then, fn)
			Walk(n.Else, fn)
		case *Loop:
			Walk(n.Body, fn)
			Walk(n.Else, fn)
		case *DefineMacro:
			Walk(n.Body, fn)
		case *EmitFiltered:
			Walk(n.Body, fn)
		}
	}
}

// ComputeSizeHint returns the size hint of code.
func ComputeSizeHint(code []Instruction) int {
	size := 0
	Walk(code, func(inst Instruction) {
		switch n := inst.(type) {
		case *EmitLiteral:
			size += len(n.Text)
		case *EmitExpr, *EmitFiltered:
			size += 3
		}
	})
	return size
}
