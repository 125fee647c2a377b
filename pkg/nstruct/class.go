package nstruct

import "reflect"

// ReadFunc populates dst with the fields decoded for the struct being
// read. Only the first call assigns; later calls are no-ops.
type ReadFunc func(dst any) error

// Getter computes a field's value at write time. For array and iter
// fields whose type names an iteration variable, it is called once per
// element with the element bound in env.
type Getter func(obj any, env map[string]any) (any, error)

// Loader is implemented by types that populate themselves during reads.
// A type implementing it needs no Class.Load hook.
type Loader interface {
	LoadSTRUCT(read ReadFunc) error
}

// Iterable is a source for iter fields.
type Iterable interface {
	ForEach(fn func(v any) bool)
}

// Class binds a schema to a Go type.
type Class struct {
	// Name of the struct. Defaults to the name declared in Schema.
	Name string

	// Schema declares exactly one struct.
	Schema string

	// Parent names a registered struct this one extends. Its fields are
	// prepended to the struct's own unless already declared, and values of
	// this class may be written through abstract fields of the parent.
	Parent string

	// New returns a blank instance: a pointer to a struct, a *Record or a
	// map[string]any.
	New func() any

	// Load populates obj after New. It must call read to assign the
	// decoded fields. Optional.
	Load func(obj any, read ReadFunc) error

	// FromSTRUCT is the one-phase construction hook, used when New is nil.
	FromSTRUCT func(read ReadFunc) (any, error)

	// Getters override field values at write time, by field name.
	Getters map[string]Getter

	goType reflect.Type
	stub   bool
}

// Stub reports whether the class was synthesized for a struct only known
// from an embedded schema.
func (c *Class) Stub() bool { return c.stub }

func stubClass(name string) *Class {
	return &Class{
		Name: name,
		New:  func() any { return NewRecord(name) },
		stub: true,
	}
}

func loadViaInterface(obj any, read ReadFunc) error {
	return obj.(Loader).LoadSTRUCT(read)
}
