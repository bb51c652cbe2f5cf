package binder

import (
	"github.com/deicod/jinjac/nodes"
	"github.com/deicod/jinjac/schema"
)

// Scope is one frame of compile-time bindings. Frames are chained to their
// parent and never modified once a child has been pushed on top of them,
// except by declarations into the frame itself.
type Scope struct {
	parent *Scope
	desc   string
	vars   map[string]*nodes.Ref
	order  []string
}

// NewScope creates a root scope
func NewScope(desc string) *Scope {
	return &Scope{
		desc: desc,
		vars: make(map[string]*nodes.Ref),
	}
}

// ContextScope returns the bottom frame holding the schema entries.
func ContextScope(sch *schema.Schema) *Scope {
	s := NewScope("template context")
	for i, entry := range sch.Entries() {
		s.vars[entry.Name] = &nodes.Ref{Kind: nodes.RefContext, Name: entry.Name, Slot: i, Type: entry.Type}
		s.order = append(s.order, entry.Name)
	}
	return s
}

// NewChildScope pushes a frame on top of s
func (s *Scope) NewChildScope(desc string) *Scope {
	child := NewScope(desc)
	child.parent = s
	return child
}

// Declare adds a binding to this frame. It reports false when the name is
// already bound in the same frame.
func (s *Scope) Declare(ref *nodes.Ref) bool {
	if _, ok := s.vars[ref.Name]; ok {
		return false
	}
	s.vars[ref.Name] = ref
	s.order = append(s.order, ref.Name)
	return true
}

// Get resolves a name, searching parent frames if not found
func (s *Scope) Get(name string) (*nodes.Ref, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if ref, ok := cur.vars[name]; ok {
			return ref, true
		}
	}
	return nil, false
}

// Has checks if a name is bound in any frame
func (s *Scope) Has(name string) bool {
	_, ok := s.Get(name)
	return ok
}

// Local returns the names declared in this frame in declaration order
func (s *Scope) Local() []string {
	return append([]string(nil), s.order...)
}

// Describe names the frame for diagnostics, e.g. "for loop over items".
func (s *Scope) Describe() string {
	return s.desc
}

// Depth is the number of frames below s.
func (s *Scope) Depth() int {
	depth := 0
	for cur := s.parent; cur != nil; cur = cur.parent {
		depth++
	}
	return depth
}
