package nstruct

import (
	"fmt"
	"reflect"

	"github.com/leapstack-labs/structkit/pkg/binpack"
	"github.com/leapstack-labs/structkit/pkg/schema"
)

// ReadObject decodes one struct at the cursor. class selects the struct:
// a name, an id (int or int32), a *Class, a reflect.Type or a value of a
// registered type. A nil class reads the struct id from the cursor first.
func (r *Registry) ReadObject(cur *binpack.Cursor, class any) (any, error) {
	if class == nil {
		offset := cur.Pos()
		id, err := cur.Int32()
		if err != nil {
			return nil, fmt.Errorf("read struct id: %w", err)
		}
		def, ok := r.StructByID(id)
		if !ok {
			return nil, &UnknownStructIDError{ID: id, Offset: offset}
		}
		class = def.Name
	}
	def, cls, err := r.resolveClass(class)
	if err != nil {
		return nil, err
	}
	return r.readStruct(cur, def, cls, 0)
}

// Unmarshal decodes one struct from data using the registry's byte order.
// Trailing bytes are ignored.
func (r *Registry) Unmarshal(data []byte, class any) (any, error) {
	return r.ReadObject(binpack.NewCursor(data, binpack.WithByteOrder(r.order)), class)
}

// Decode unmarshals data as the struct registered for T.
func Decode[T any](r *Registry, data []byte) (T, error) {
	var zero T
	obj, err := r.Unmarshal(data, reflect.TypeFor[T]())
	if err != nil {
		return zero, err
	}
	if out, ok := obj.(T); ok {
		return out, nil
	}
	if rv := reflect.ValueOf(obj); rv.Kind() == reflect.Pointer && !rv.IsNil() {
		if out, ok := rv.Elem().Interface().(T); ok {
			return out, nil
		}
	}
	return zero, &TypeError{Want: reflect.TypeFor[T]().String(), Got: typeName(obj)}
}

func (r *Registry) resolveClass(class any) (*schema.StructDef, *Class, error) {
	switch c := class.(type) {
	case string:
		return r.lookup(c)
	case int32:
		return r.lookupID(c)
	case int:
		return r.lookupID(int32(c))
	case *Class:
		name := c.Name
		if name == "" {
			def, err := schema.ParseOne(c.Schema)
			if err != nil {
				return nil, nil, err
			}
			name = def.Name
		}
		return r.lookup(name)
	case reflect.Type:
		r.mu.RLock()
		name, ok := r.types[c]
		if !ok && c.Kind() != reflect.Pointer {
			name, ok = r.types[reflect.PointerTo(c)]
		}
		r.mu.RUnlock()
		if !ok {
			return nil, nil, &NotStructableError{Type: c.String()}
		}
		return r.lookup(name)
	}
	if name, ok := r.NameOf(class); ok {
		return r.lookup(name)
	}
	return nil, nil, &NotStructableError{Type: typeName(class)}
}

func (r *Registry) lookupID(id int32) (*schema.StructDef, *Class, error) {
	def, ok := r.StructByID(id)
	if !ok {
		return nil, nil, &UnknownStructIDError{ID: id}
	}
	return r.lookup(def.Name)
}

// readStruct decodes every field before constructing the object, so the
// cursor advances past the struct whatever the hooks do.
func (r *Registry) readStruct(cur *binpack.Cursor, def *schema.StructDef, cls *Class, depth int) (any, error) {
	if depth > maxDepth {
		return nil, ErrTooDeep
	}
	names := make([]string, len(def.Fields))
	values := make([]any, len(def.Fields))
	for i := range def.Fields {
		f := &def.Fields[i]
		v, err := r.unpack(cur, f.Type, depth)
		if err != nil {
			return nil, &FieldError{Struct: def.Name, Field: f.Name, Err: err}
		}
		names[i], values[i] = f.Name, v
	}
	return r.construct(def, cls, names, values)
}

// construct runs the class's construction hooks. New then Load is the
// normal path; FromSTRUCT is the one-phase legacy path. Hooks that never
// call read still get their fields assigned.
func (r *Registry) construct(def *schema.StructDef, cls *Class, names []string, values []any) (any, error) {
	var loaded any
	read := func(dst any) error {
		if loaded != nil {
			if sameObject(loaded, dst) {
				return nil
			}
			return ErrAlreadyLoaded
		}
		loaded = dst
		return r.assignFields(dst, names, values)
	}

	switch {
	case cls.New != nil:
		obj := cls.New()
		if cls.Load != nil {
			if err := cls.Load(obj, read); err != nil {
				return nil, fmt.Errorf("load %s: %w", def.Name, err)
			}
		}
		if loaded == nil {
			if cls.Load != nil {
				r.logger.Warn("load hook did not read its fields", "struct", def.Name)
			}
			if err := read(obj); err != nil {
				return nil, fmt.Errorf("load %s: %w", def.Name, err)
			}
		}
		return obj, nil

	case cls.FromSTRUCT != nil:
		obj, err := cls.FromSTRUCT(read)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", def.Name, err)
		}
		if loaded == nil && obj != nil {
			r.logger.Warn("load hook did not read its fields", "struct", def.Name)
			if err := read(obj); err != nil {
				return nil, fmt.Errorf("load %s: %w", def.Name, err)
			}
		}
		return obj, nil
	}
	return nil, fmt.Errorf("load %s: %w", def.Name, ErrNoConstructor)
}

func sameObject(a, b any) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Kind() != vb.Kind() {
		return false
	}
	switch va.Kind() {
	case reflect.Pointer, reflect.Map:
		return va.Pointer() == vb.Pointer()
	}
	return false
}
