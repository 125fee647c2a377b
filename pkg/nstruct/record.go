package nstruct

// Record is a dynamic struct value: an ordered set of named fields.
// Registries use records for structs they only know from an embedded
// schema, so such values survive a read and re-write unchanged.
type Record struct {
	Struct string

	names  []string
	values map[string]any
}

// NewRecord creates an empty record of the given struct.
func NewRecord(structName string) *Record {
	return &Record{Struct: structName, values: make(map[string]any)}
}

// Set assigns a field, appending it if new.
func (r *Record) Set(name string, v any) {
	if r.values == nil {
		r.values = make(map[string]any)
	}
	if _, ok := r.values[name]; !ok {
		r.names = append(r.names, name)
	}
	r.values[name] = v
}

// Get returns a field value.
func (r *Record) Get(name string) (any, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Fields returns field names in assignment order.
func (r *Record) Fields() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Len returns the number of fields.
func (r *Record) Len() int { return len(r.names) }
