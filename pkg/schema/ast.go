package schema

import (
	"fmt"
	"strconv"
)

// Kind identifies a field type. The numeric values are the wire tags of
// the binary format and must never change. Tags 3 through 6 are reserved.
type Kind int

// Field type kinds.
const (
	KindInt          Kind = 0
	KindFloat        Kind = 1
	KindDouble       Kind = 2
	KindString       Kind = 7
	KindStaticString Kind = 8
	KindStruct       Kind = 9
	KindAbstract     Kind = 10
	KindArray        Kind = 11
	KindIter         Kind = 12
	KindShort        Kind = 13
	KindByte         Kind = 14
	KindBool         Kind = 15
)

// NumKinds bounds the tag space; tables indexed by Kind use this length.
const NumKinds = 16

var kindNames = map[Kind]string{
	KindInt:          "int",
	KindFloat:        "float",
	KindDouble:       "double",
	KindString:       "string",
	KindStaticString: "static_string",
	KindStruct:       "struct",
	KindAbstract:     "abstract",
	KindArray:        "array",
	KindIter:         "iter",
	KindShort:        "short",
	KindByte:         "byte",
	KindBool:         "bool",
}

// String returns the schema keyword of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Valid reports whether k is an assigned wire tag.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// IsScalar reports whether values of the kind are fixed-width primitives.
func (k Kind) IsScalar() bool {
	switch k {
	case KindInt, KindFloat, KindDouble, KindShort, KindByte, KindBool:
		return true
	}
	return false
}

// Type is a field type reference.
type Type struct {
	Kind Kind

	// MaxLen is the byte width of a static_string. Zero means undeclared.
	MaxLen int

	// StructName names the referenced struct for struct and abstract kinds.
	StructName string

	// Elem is the element type of array and iter kinds.
	Elem *Type

	// IterVar optionally names the per-element variable of array and iter
	// kinds. When set, the field's get expression applies to each element.
	IterVar string
}

// String formats the type the way it is written in schema text.
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case KindStaticString:
		return fmt.Sprintf("static_string[%d]", t.MaxLen)
	case KindStruct:
		return t.StructName
	case KindAbstract:
		return "abstract(" + t.StructName + ")"
	case KindArray, KindIter:
		if t.IterVar != "" {
			return fmt.Sprintf("%s(%s, %s)", t.Kind, t.IterVar, t.Elem)
		}
		return fmt.Sprintf("%s(%s)", t.Kind, t.Elem)
	}
	return t.Kind.String()
}

// Clone returns a deep copy of the type.
func (t *Type) Clone() *Type {
	if t == nil {
		return nil
	}
	c := *t
	c.Elem = t.Elem.Clone()
	return &c
}

// Walk calls fn for t and every nested element type.
func (t *Type) Walk(fn func(*Type)) {
	for cur := t; cur != nil; cur = cur.Elem {
		fn(cur)
	}
}

// Field is one named, typed slot of a struct.
type Field struct {
	Name string
	Type *Type
	Get  string // optional get expression source
	Set  string // optional set expression source
}

// StructDef is a parsed struct declaration.
type StructDef struct {
	Name   string
	ID     int32 // zero when the schema text does not pin an id
	Fields []Field
}

// Field returns the field with the given name.
func (d *StructDef) Field(name string) (*Field, bool) {
	for i := range d.Fields {
		if d.Fields[i].Name == name {
			return &d.Fields[i], true
		}
	}
	return nil, false
}

// Clone returns a deep copy of the definition.
func (d *StructDef) Clone() *StructDef {
	c := &StructDef{Name: d.Name, ID: d.ID, Fields: make([]Field, len(d.Fields))}
	for i, f := range d.Fields {
		f.Type = f.Type.Clone()
		c.Fields[i] = f
	}
	return c
}

// References returns the struct names the definition refers to, in field
// order and without duplicates.
func (d *StructDef) References() []string {
	seen := make(map[string]bool)
	var refs []string
	for _, f := range d.Fields {
		f.Type.Walk(func(t *Type) {
			if t.StructName != "" && !seen[t.StructName] {
				seen[t.StructName] = true
				refs = append(refs, t.StructName)
			}
		})
	}
	return refs
}
