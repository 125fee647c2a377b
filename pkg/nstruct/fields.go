package nstruct

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// fieldCache maps Go struct types to the index paths of their fields.
type fieldCache struct {
	mu    sync.RWMutex
	types map[reflect.Type]*fieldIndex
}

type fieldIndex struct {
	exact map[string][]int
	fold  map[string][]int
	names []string
}

func newFieldCache() *fieldCache {
	return &fieldCache{types: make(map[reflect.Type]*fieldIndex)}
}

// lookup finds the field matching name: by struct tag or exact Go name
// first, then case-insensitively.
func (c *fieldCache) lookup(t reflect.Type, name string) ([]int, bool) {
	idx := c.index(t)
	if path, ok := idx.exact[name]; ok {
		return path, true
	}
	path, ok := idx.fold[strings.ToLower(name)]
	return path, ok
}

func (c *fieldCache) index(t reflect.Type) *fieldIndex {
	c.mu.RLock()
	idx, ok := c.types[t]
	c.mu.RUnlock()
	if ok {
		return idx
	}

	idx = &fieldIndex{exact: make(map[string][]int), fold: make(map[string][]int)}
	for _, sf := range reflect.VisibleFields(t) {
		tag, hasTag := sf.Tag.Lookup("struct")
		if tag == "-" || !sf.IsExported() {
			continue
		}
		if sf.Anonymous && !hasTag {
			continue
		}
		key := sf.Name
		if hasTag && tag != "" {
			key = tag
		}
		if _, dup := idx.exact[key]; dup {
			continue
		}
		idx.exact[key] = sf.Index
		idx.names = append(idx.names, key)
		if _, dup := idx.fold[strings.ToLower(key)]; !dup {
			idx.fold[strings.ToLower(key)] = sf.Index
		}
	}

	c.mu.Lock()
	c.types[t] = idx
	c.mu.Unlock()
	return idx
}

// fieldValue reads the named field of obj. A nil pointer yields nil.
func (r *Registry) fieldValue(obj any, name string) (any, error) {
	switch v := obj.(type) {
	case nil:
		return nil, nil
	case *Record:
		if v == nil {
			return nil, nil
		}
		val, _ := v.Get(name)
		return val, nil
	case map[string]any:
		return v[name], nil
	}

	rv := reflect.ValueOf(obj)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w %q on %s", ErrNoSuchField, name, rv.Type())
	}
	path, ok := r.fields.lookup(rv.Type(), name)
	if !ok {
		return nil, fmt.Errorf("%w %q on %s", ErrNoSuchField, name, rv.Type())
	}
	fv, err := rv.FieldByIndexErr(path)
	if err != nil {
		// nil embedded pointer
		return nil, nil
	}
	return fv.Interface(), nil
}

// fieldNames lists the field names of obj visible to schemas.
func (r *Registry) fieldNames(obj any) []string {
	switch v := obj.(type) {
	case *Record:
		return v.Fields()
	case map[string]any:
		names := make([]string, 0, len(v))
		for k := range v {
			names = append(names, k)
		}
		return names
	}
	t := reflect.TypeOf(obj)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}
	return r.fields.index(t).names
}

// assignFields stores decoded values into dst following def's field order.
// Fields dst does not have are skipped: the file may be older or newer
// than the Go type.
func (r *Registry) assignFields(dst any, names []string, values []any) error {
	switch v := dst.(type) {
	case *Record:
		for i, name := range names {
			v.Set(name, values[i])
		}
		return nil
	case map[string]any:
		for i, name := range names {
			v[name] = values[i]
		}
		return nil
	}

	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("nstruct: cannot populate %T: %w", dst, ErrNotPointer)
	}
	sv := rv.Elem()
	for i, name := range names {
		path, ok := r.fields.lookup(sv.Type(), name)
		if !ok {
			r.logger.Debug("skipping field absent from Go type", "type", sv.Type().String(), "field", name)
			continue
		}
		fv := fieldByIndexAlloc(sv, path)
		if err := assign(fv, values[i]); err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
	}
	return nil
}

// fieldByIndexAlloc is FieldByIndex that allocates nil embedded pointers.
func fieldByIndexAlloc(v reflect.Value, path []int) reflect.Value {
	for i, x := range path {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v
}
