package ir

// Builder accumulates one instruction sequence. Adjacent literals are
// merged and empty literals dropped as they are added.
type Builder struct {
	code []Instruction
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Literal appends text.
func (b *Builder) Literal(text string) *Builder {
	if text == "" {
		return b
	}
	if n := len(b.code); n > 0 {
		if last, ok := b.code[n-1].(*EmitLiteral); ok {
			b.code[n-1] = &EmitLiteral{Text: last.Text + text}
			return b
		}
	}
	b.code = append(b.code, &EmitLiteral{Text: text})
	return b
}

// Add appends inst. Literals go through Literal.
func (b *Builder) Add(inst Instruction) *Builder {
	if lit, ok := inst.(*EmitLiteral); ok {
		return b.Literal(lit.Text)
	}
	b.code = append(b.code, inst)
	return b
}

// Len returns the number of instructions added so far.
func (b *Builder) Len() int {
	return len(b.code)
}

// Code returns the built sequence.
func (b *Builder) Code() []Instruction {
	return b.code
}
