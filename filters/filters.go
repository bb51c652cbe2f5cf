// Package filters declares the type contracts of template filters.
package filters

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/deicod/jinjac/schema"
)

// Class is the set of static types a filter input or argument accepts.
type Class int

const (
	AnyValue Class = iota
	Display
	Text
	Number
	Integer
	Iterable
	Boolean
)

var classNames = map[Class]string{
	AnyValue: "any",
	Display:  "display",
	Text:     "string",
	Number:   "number",
	Integer:  "int",
	Iterable: "iterable",
	Boolean:  "bool",
}

func (c Class) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Class(%d)", c)
}

// ParseClass maps a declared class name to a Class.
func ParseClass(s string) (Class, error) {
	if s == "" {
		return AnyValue, nil
	}
	for c, name := range classNames {
		if name == s {
			return c, nil
		}
	}
	switch s {
	case "text", "str":
		return Text, nil
	case "integer":
		return Integer, nil
	case "float":
		return Number, nil
	}
	return AnyValue, errors.Errorf("unknown filter type class %q", s)
}

// Accepts reports whether a value of static type t satisfies the class.
// Values of unknown or opaque type are accepted everywhere; the host
// generator checks them.
func (c Class) Accepts(t *schema.Type) bool {
	if t.IsAny() || t.Kind == schema.Opaque {
		return true
	}
	switch c {
	case AnyValue:
		return true
	case Display:
		return t.IsScalar()
	case Text:
		return t.Kind == schema.String
	case Number:
		return t.IsNumeric()
	case Integer:
		return t.Kind == schema.Int
	case Iterable:
		return t.Kind == schema.List || t.Kind == schema.Map || t.Kind == schema.String
	case Boolean:
		return t.Kind == schema.Bool
	}
	return false
}

// Param is a declared filter argument
type Param struct {
	Name     string
	Class    Class
	Optional bool
}

// Def is the contract of one filter.
type Def struct {
	Name   string
	Input  Class
	Params []Param
	// Variadic allows any number of extra arguments of any type after Params.
	Variadic bool
	// Output is the result type; nil means the input type passes through.
	Output *schema.Type
	// Safe marks the result as exempt from automatic escaping.
	Safe bool
	// Escapes means the filter escapes its input itself.
	Escapes bool
	Custom  bool
}

// MinArgs returns the number of required arguments.
func (d *Def) MinArgs() int {
	n := 0
	for _, p := range d.Params {
		if !p.Optional {
			n++
		}
	}
	return n
}

// ResultType returns the static type produced for an input of type in.
func (d *Def) ResultType(in *schema.Type) *schema.Type {
	if d.Output != nil {
		return d.Output
	}
	if in == nil {
		return schema.AnyType
	}
	return in
}

// Signature renders the contract for help output, e.g.
// "truncate(length: int) display -> string".
func (d *Def) Signature() string {
	var b strings.Builder
	b.WriteString(d.Name)
	if len(d.Params) > 0 || d.Variadic {
		b.WriteString("(")
		for i, p := range d.Params {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(p.Name)
			if p.Optional {
				b.WriteString("?")
			}
			b.WriteString(": " + p.Class.String())
		}
		if d.Variadic {
			if len(d.Params) > 0 {
				b.WriteString(", ")
			}
			b.WriteString("...")
		}
		b.WriteString(")")
	}
	b.WriteString(" " + d.Input.String() + " -> ")
	if d.Output != nil {
		b.WriteString(d.Output.String())
	} else {
		b.WriteString("input")
	}
	if d.Safe {
		b.WriteString(" [safe]")
	}
	if d.Escapes {
		b.WriteString(" [escapes]")
	}
	return b.String()
}

// Registry resolves filter names to contracts. It is safe for concurrent
// lookups once populated.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]*Def
}

// NewRegistry returns a registry holding the built-in filters.
func NewRegistry() *Registry {
	r := &Registry{defs: make(map[string]*Def)}
	for _, def := range builtins() {
		d := def
		r.defs[d.Name] = &d
	}
	return r
}

// Register adds a custom filter. Built-in filters cannot be replaced.
func (r *Registry) Register(def Def) error {
	if !isIdentifier(def.Name) {
		return errors.Errorf("invalid filter name %q", def.Name)
	}
	seenOptional := false
	for _, p := range def.Params {
		if p.Optional {
			seenOptional = true
		} else if seenOptional {
			return errors.Errorf("filter %q: required parameter %q follows an optional one", def.Name, p.Name)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.defs[def.Name]; ok && !existing.Custom {
		return errors.Errorf("filter %q is built in and cannot be redefined", def.Name)
	}
	def.Custom = true
	r.defs[def.Name] = &def
	return nil
}

// Lookup returns the contract for name.
func (r *Registry) Lookup(name string) (*Def, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	return def, ok
}

// Names returns all registered filter names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		letter := c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		if !letter && (i == 0 || c < '0' || c > '9') {
			return false
		}
	}
	return true
}
