package nstruct

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	ErrUnknownClass  = errors.New("nstruct: unknown struct")
	ErrNoSuchField   = errors.New("no such field")
	ErrAlreadyLoaded = errors.New("nstruct: object already loaded")
	ErrNoConstructor = errors.New("nstruct: class has neither New nor FromSTRUCT")
	ErrNotPointer    = errors.New("nstruct: New must return a pointer, *Record or map")
	ErrTooDeep       = errors.New("nstruct: struct nesting too deep")
	ErrIDsExhausted  = errors.New("nstruct: no struct ids left")
)

// NotStructableError is returned when writing a value whose type was never
// registered.
type NotStructableError struct {
	Type string
}

func (e *NotStructableError) Error() string {
	return fmt.Sprintf("nstruct: non-STRUCTable object of type %s", e.Type)
}

// UnknownStructIDError is returned when a stream references a struct id
// the registry does not know. The stream is corrupt or from an
// incompatible writer; there is no recovery.
type UnknownStructIDError struct {
	ID     int32
	Offset int
}

func (e *UnknownStructIDError) Error() string {
	return fmt.Sprintf("nstruct: unknown struct id %d at offset %d", e.ID, e.Offset)
}

// IterLengthError reports an iterable that yielded a different number of
// items on the write pass than on the counting pass.
type IterLengthError struct {
	Struct   string
	Field    string
	Declared int
	Actual   int
}

func (e *IterLengthError) Error() string {
	return fmt.Sprintf("nstruct: %s.%s: iterator yielded %d items after declaring %d",
		e.Struct, e.Field, e.Actual, e.Declared)
}

// IDConflictError is returned when two structs claim the same id.
type IDConflictError struct {
	ID       int32
	Existing string
	Incoming string
}

func (e *IDConflictError) Error() string {
	return fmt.Sprintf("nstruct: struct id %d of %s already used by %s", e.ID, e.Incoming, e.Existing)
}

// TypeError is returned when a value cannot be packed as, or assigned
// from, a field type.
type TypeError struct {
	Want string
	Got  string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("cannot use %s as %s", e.Got, e.Want)
}

// FieldError locates an error inside a struct field.
type FieldError struct {
	Struct string
	Field  string
	Err    error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s.%s: %v", e.Struct, e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }
