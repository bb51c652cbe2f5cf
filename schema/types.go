// Package schema describes the statically known context a template is
// compiled against.
package schema

import (
	"fmt"
	"strings"
)

// Kind classifies a type descriptor
type Kind int

const (
	Any Kind = iota
	String
	Int
	Float
	Bool
	List
	Map
	Struct
	Opaque
)

var kindNames = map[Kind]string{
	Any:    "any",
	String: "string",
	Int:    "int",
	Float:  "float",
	Bool:   "bool",
	List:   "list",
	Map:    "map",
	Struct: "struct",
	Opaque: "opaque",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Type is a semantic type descriptor: a primitive, an aggregate (list, map,
// struct) or an opaque host type known only by name.
type Type struct {
	Kind   Kind
	Name   string
	Elem   *Type
	Fields []Field
}

// Field is a named member of a struct type
type Field struct {
	Name string
	Type *Type
}

var (
	AnyType    = &Type{Kind: Any}
	StringType = &Type{Kind: String}
	IntType    = &Type{Kind: Int}
	FloatType  = &Type{Kind: Float}
	BoolType   = &Type{Kind: Bool}
)

// ListOf returns a list type with the given element type.
func ListOf(elem *Type) *Type {
	return &Type{Kind: List, Elem: elem}
}

// MapOf returns a string-keyed map type with the given value type.
func MapOf(elem *Type) *Type {
	return &Type{Kind: Map, Elem: elem}
}

// StructOf returns a struct type with fields in the given order.
func StructOf(fields ...Field) *Type {
	return &Type{Kind: Struct, Fields: fields}
}

// OpaqueOf returns a host type the compiler cannot look into.
func OpaqueOf(name string) *Type {
	return &Type{Kind: Opaque, Name: name}
}

// IsAny reports whether t carries no static information.
func (t *Type) IsAny() bool {
	return t == nil || t.Kind == Any
}

// IsNumeric reports whether t is an int or a float.
func (t *Type) IsNumeric() bool {
	return t != nil && (t.Kind == Int || t.Kind == Float)
}

// IsScalar reports whether t is a primitive value.
func (t *Type) IsScalar() bool {
	return t != nil && (t.Kind == String || t.Kind == Int || t.Kind == Float || t.Kind == Bool)
}

// Field looks up a struct field.
func (t *Type) Field(name string) (*Type, bool) {
	if t == nil || t.Kind != Struct {
		return nil, false
	}
	for _, f := range t.Fields {
		if f.Name == name {
			return f.Type, true
		}
	}
	return nil, false
}

// ElemType returns the type produced by iterating or indexing t.
func (t *Type) ElemType() *Type {
	if t == nil {
		return AnyType
	}
	switch t.Kind {
	case List, Map:
		if t.Elem != nil {
			return t.Elem
		}
	case String:
		return StringType
	}
	return AnyType
}

// Equal reports structural equality.
func (t *Type) Equal(o *Type) bool {
	if t == nil || o == nil {
		return t.IsAny() && o.IsAny()
	}
	if t.Kind != o.Kind || t.Name != o.Name || len(t.Fields) != len(o.Fields) {
		return false
	}
	if (t.Elem == nil) != (o.Elem == nil) || (t.Elem != nil && !t.Elem.Equal(o.Elem)) {
		return false
	}
	for i := range t.Fields {
		if t.Fields[i].Name != o.Fields[i].Name || !t.Fields[i].Type.Equal(o.Fields[i].Type) {
			return false
		}
	}
	return true
}

func (t *Type) String() string {
	if t == nil {
		return "any"
	}
	switch t.Kind {
	case List:
		return "list<" + t.Elem.String() + ">"
	case Map:
		return "map<" + t.Elem.String() + ">"
	case Opaque:
		return "opaque<" + t.Name + ">"
	case Struct:
		parts := make([]string, len(t.Fields))
		for i, f := range t.Fields {
			parts[i] = f.Name + ": " + f.Type.String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return t.Kind.String()
}

// ParseType parses a type expression: string, int, float, bool, any,
// list<T>, []T, map<T>, opaque<Name>.
func ParseType(expr string) (*Type, error) {
	s := strings.TrimSpace(expr)
	switch s {
	case "string", "str":
		return StringType, nil
	case "int", "integer":
		return IntType, nil
	case "float", "number":
		return FloatType, nil
	case "bool", "boolean":
		return BoolType, nil
	case "any", "":
		return AnyType, nil
	}
	if strings.HasPrefix(s, "[]") {
		elem, err := ParseType(s[2:])
		if err != nil {
			return nil, err
		}
		return ListOf(elem), nil
	}
	if open := strings.IndexByte(s, '<'); open > 0 && strings.HasSuffix(s, ">") {
		inner := s[open+1 : len(s)-1]
		if strings.TrimSpace(inner) == "" {
			return nil, fmt.Errorf("type %q needs a type argument", expr)
		}
		switch s[:open] {
		case "list":
			elem, err := ParseType(inner)
			if err != nil {
				return nil, err
			}
			return ListOf(elem), nil
		case "map":
			elem, err := ParseType(inner)
			if err != nil {
				return nil, err
			}
			return MapOf(elem), nil
		case "opaque":
			return OpaqueOf(strings.TrimSpace(inner)), nil
		}
	}
	return nil, fmt.Errorf("unknown type %q", expr)
}
