package ir

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

type yamlProgram struct {
	Name      string            `yaml:"name"`
	Extension string            `yaml:"extension,omitempty"`
	MIMEType  string            `yaml:"mime_type"`
	Escape    string            `yaml:"escape"`
	SizeHint  int               `yaml:"size_hint"`
	Context   []yamlVar         `yaml:"context,omitempty"`
	Slots     []yamlVar         `yaml:"slots,omitempty"`
	Code      []yamlInstruction `yaml:"code"`
}

type yamlVar struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind,omitempty"`
	Type string `yaml:"type"`
}

type yamlInstruction struct {
	Op      string            `yaml:"op"`
	ID      string            `yaml:"id,omitempty"`
	Text    string            `yaml:"text,omitempty"`
	Expr    string            `yaml:"expr,omitempty"`
	Cond    string            `yaml:"cond,omitempty"`
	Targets []string          `yaml:"targets,omitempty"`
	Iter    string            `yaml:"iter,omitempty"`
	Loop    *int              `yaml:"loop,omitempty"`
	Meta    []string          `yaml:"meta,omitempty"`
	Target  string            `yaml:"target,omitempty"`
	Value   string            `yaml:"value,omitempty"`
	Params  []string          `yaml:"params,omitempty"`
	Args    []string          `yaml:"args,omitempty"`
	Filters []string          `yaml:"filters,omitempty"`
	Escape  string            `yaml:"escape,omitempty"`
	Then    []yamlInstruction `yaml:"then,omitempty"`
	Body    []yamlInstruction `yaml:"body,omitempty"`
	Else    []yamlInstruction `yaml:"else,omitempty"`
}

// MarshalYAML renders the program as a YAML document with expressions in
// their compact text form.
func (p *Program) MarshalYAML() (interface{}, error) {
	out := yamlProgram{
		Name:      p.Name,
		Extension: p.Extension,
		MIMEType:  p.MIMEType,
		Escape:    p.Escape,
		SizeHint:  p.SizeHint,
		Code:      yamlCode(p.Code),
	}
	for _, v := range p.Context {
		out.Context = append(out.Context, yamlVar{Name: v.Name, Type: v.Type})
	}
	for _, v := range p.Slots {
		out.Slots = append(out.Slots, yamlVar(v))
	}
	return out, nil
}

// Marshal encodes p as YAML.
func Marshal(p *Program) ([]byte, error) {
	return yaml.Marshal(p)
}

func yamlCode(code []Instruction) []yamlInstruction {
	out := make([]yamlInstruction, 0, len(code))
	for _, inst := range code {
		out = append(out, yamlInst(inst))
	}
	return out
}

func yamlInst(inst Instruction) yamlInstruction {
	switch n := inst.(type) {
	case *EmitLiteral:
		return yamlInstruction{Op: "literal", Text: n.Text}
	case *EmitExpr:
		return yamlInstruction{Op: "emit", Expr: ExprString(n.Expr), Filters: filterStrings(n.Filters), Escape: n.Escape}
	case *Branch:
		return yamlInstruction{Op: "branch", Cond: ExprString(n.Cond), Then: yamlCode(n.Then), Else: optionalCode(n.Else)}
	case *Loop:
		y := yamlInstruction{
			Op:   "loop",
			Iter: ExprString(n.Iter),
			Loop: intPtr(n.Loop),
			Meta: n.Meta,
			Body: yamlCode(n.Body),
			Else: optionalCode(n.Else),
		}
		for i := range n.Targets {
			y.Targets = append(y.Targets, ExprString(&n.Targets[i]))
		}
		if n.Cond != nil {
			y.Cond = ExprString(n.Cond)
		}
		return y
	case *CallMacro:
		y := yamlInstruction{Op: "call", ID: n.ID}
		for _, a := range n.Args {
			y.Args = append(y.Args, ExprString(a))
		}
		return y
	case *DefineMacro:
		y := yamlInstruction{Op: "define", ID: n.ID, Body: yamlCode(n.Body)}
		for i := range n.Params {
			y.Params = append(y.Params, ExprString(&n.Params[i]))
		}
		return y
	case *Bind:
		return yamlInstruction{Op: "bind", Target: ExprString(&n.Target), Value: ExprString(n.Value)}
	case *Break:
		return yamlInstruction{Op: "break"}
	case *Continue:
		return yamlInstruction{Op: "continue"}
	case *EmitFiltered:
		return yamlInstruction{Op: "filtered", Filters: filterStrings(n.Filters), Escape: n.Escape, Body: yamlCode(n.Body)}
	}
	panic(fmt.Sprintf("ir: unhandled instruction %T", inst))
}

func optionalCode(code []Instruction) []yamlInstruction {
	if len(code) == 0 {
		return nil
	}
	return yamlCode(code)
}

func filterStrings(chain []FilterCall) []string {
	var out []string
	for _, f := range chain {
		out = append(out, filterString(f))
	}
	return out
}

func intPtr(v int) *int {
	return &v
}
