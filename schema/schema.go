package schema

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Entry is one named binding of a schema
type Entry struct {
	Name string
	Type *Type
}

// Schema is an ordered, read-only mapping from binding name to type.
type Schema struct {
	entries []Entry
	index   map[string]int
}

// New builds a schema from entries in order. Duplicate names are an error.
func New(entries ...Entry) (*Schema, error) {
	s := &Schema{index: make(map[string]int, len(entries))}
	for _, e := range entries {
		if err := s.add(e.Name, e.Type); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// MustNew is like New but panics on error. Intended for tests and literals.
func MustNew(entries ...Entry) *Schema {
	s, err := New(entries...)
	if err != nil {
		panic(err)
	}
	return s
}

// Empty returns a schema with no bindings.
func Empty() *Schema {
	return &Schema{index: map[string]int{}}
}

func (s *Schema) add(name string, t *Type) error {
	if name == "" {
		return errors.New("schema binding name must not be empty")
	}
	if _, dup := s.index[name]; dup {
		return errors.Errorf("schema binding %q declared twice", name)
	}
	if t == nil {
		t = AnyType
	}
	s.index[name] = len(s.entries)
	s.entries = append(s.entries, Entry{Name: name, Type: t})
	return nil
}

// Lookup returns the type of a top-level binding.
func (s *Schema) Lookup(name string) (*Type, bool) {
	if s == nil {
		return nil, false
	}
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return s.entries[i].Type, true
}

// Entries returns the bindings in declaration order.
func (s *Schema) Entries() []Entry {
	if s == nil {
		return nil
	}
	return append([]Entry(nil), s.entries...)
}

// Len returns the number of bindings.
func (s *Schema) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

func (s *Schema) String() string {
	return StructOf(s.fields()...).String()
}

func (s *Schema) fields() []Field {
	fields := make([]Field, 0, s.Len())
	for _, e := range s.Entries() {
		fields = append(fields, Field{Name: e.Name, Type: e.Type})
	}
	return fields
}

// Parse decodes a YAML schema document. Scalars are type expressions,
// mappings are structs (field order kept) and a one-element sequence is a
// list of that element:
//
//	name: string
//	user:
//	  email: string
//	posts:
//	  - title: string
func Parse(data []byte) (*Schema, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "decoding schema")
	}
	s := Empty()
	if len(doc.Content) == 0 {
		return s, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, errors.Errorf("line %d: schema must be a mapping of binding names to types", root.Line)
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		t, err := typeFromNode(value)
		if err != nil {
			return nil, errors.Wrapf(err, "binding %q", key.Value)
		}
		if err := s.add(key.Value, t); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// LoadFile reads and parses a YAML schema file.
func LoadFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading schema %s", path)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "schema %s", path)
	}
	return s, nil
}

func typeFromNode(n *yaml.Node) (*Type, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		t, err := ParseType(n.Value)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return t, nil
	case yaml.MappingNode:
		fields := make([]Field, 0, len(n.Content)/2)
		seen := map[string]bool{}
		for i := 0; i+1 < len(n.Content); i += 2 {
			name := n.Content[i].Value
			if seen[name] {
				return nil, fmt.Errorf("line %d: field %q declared twice", n.Content[i].Line, name)
			}
			seen[name] = true
			ft, err := typeFromNode(n.Content[i+1])
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", name, err)
			}
			fields = append(fields, Field{Name: name, Type: ft})
		}
		return StructOf(fields...), nil
	case yaml.SequenceNode:
		if len(n.Content) != 1 {
			return nil, fmt.Errorf("line %d: a list type takes exactly one element type", n.Line)
		}
		elem, err := typeFromNode(n.Content[0])
		if err != nil {
			return nil, err
		}
		return ListOf(elem), nil
	case yaml.AliasNode:
		return typeFromNode(n.Alias)
	}
	return nil, fmt.Errorf("line %d: unsupported type node", n.Line)
}
