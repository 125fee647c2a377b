package nstruct

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/leapstack-labs/structkit/pkg/binpack"
	"github.com/leapstack-labs/structkit/pkg/schema"
)

// TypeKey is the key under which ToValue records the concrete struct of
// abstract fields.
const TypeKey = "_type"

// OrderedMap is a string-keyed map that remembers insertion order.
type OrderedMap struct {
	Keys   []string
	Values map[string]any
}

// NewOrderedMap creates an empty map.
func NewOrderedMap() *OrderedMap {
	return &OrderedMap{Values: make(map[string]any)}
}

// Set assigns key, appending it if new.
func (m *OrderedMap) Set(key string, v any) {
	if _, ok := m.Values[key]; !ok {
		m.Keys = append(m.Keys, key)
	}
	m.Values[key] = v
}

// Get returns the value of key.
func (m *OrderedMap) Get(key string) (any, bool) {
	v, ok := m.Values[key]
	return v, ok
}

// MarshalJSON writes keys in insertion order.
func (m *OrderedMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.Keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(m.Values[k])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ToValue converts obj into plain data following its schema: structs
// become *OrderedMap in field order, sequences []any, integers int64 and
// floats float64. Values pass through the same getters as a binary write.
func (r *Registry) ToValue(obj any) (*OrderedMap, error) {
	name, ok := r.NameOf(obj)
	if !ok || isNil(obj) {
		return nil, &NotStructableError{Type: typeName(obj)}
	}
	def, cls, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	return r.structValue(obj, def, cls, 0)
}

// ToJSON renders ToValue as indented JSON.
func (r *Registry) ToJSON(obj any) ([]byte, error) {
	v, err := r.ToValue(obj)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(v, "", "  ")
}

func (r *Registry) structValue(obj any, def *schema.StructDef, cls *Class, depth int) (*OrderedMap, error) {
	if depth > maxDepth {
		return nil, ErrTooDeep
	}
	out := NewOrderedMap()
	for i := range def.Fields {
		f := &def.Fields[i]
		w := &writeCtx{obj: obj, def: def, field: f, cls: cls, depth: depth}
		val, err := r.resolveField(w)
		if err == nil {
			val, err = r.plainValue(w, val, f.Type)
		}
		if err != nil {
			return nil, &FieldError{Struct: def.Name, Field: f.Name, Err: err}
		}
		out.Set(f.Name, val)
	}
	return out, nil
}

func (r *Registry) plainValue(w *writeCtx, val any, t *schema.Type) (any, error) {
	switch t.Kind {
	case schema.KindInt, schema.KindShort, schema.KindByte:
		return toInt64(val, t.Kind)
	case schema.KindFloat, schema.KindDouble:
		return toFloat64(val, t.Kind)
	case schema.KindBool:
		return toBool(val)
	case schema.KindString:
		return toString(val, t.Kind)
	case schema.KindStaticString:
		s, err := toString(val, t.Kind)
		if err != nil {
			return nil, err
		}
		if t.MaxLen <= 0 {
			return nil, binpack.ErrNoMaxLength
		}
		return s, nil
	case schema.KindStruct:
		if isNil(val) {
			return nil, nil
		}
		def, cls, err := r.lookup(t.StructName)
		if err != nil {
			return nil, err
		}
		return r.structValue(val, def, cls, w.depth+1)
	case schema.KindAbstract:
		if isNil(val) {
			return nil, nil
		}
		name := t.StructName
		if actual, ok := r.NameOf(val); ok {
			if _, isRecord := val.(*Record); isRecord || r.extends(actual, name) {
				name = actual
			}
		}
		def, cls, err := r.lookup(name)
		if err != nil {
			return nil, err
		}
		m, err := r.structValue(val, def, cls, w.depth+1)
		if err != nil {
			return nil, err
		}
		typed := NewOrderedMap()
		typed.Set(TypeKey, def.Name)
		for _, k := range m.Keys {
			typed.Set(k, m.Values[k])
		}
		return typed, nil
	case schema.KindArray, schema.KindIter:
		items, err := sliceItems(val, t.Kind)
		if err != nil {
			return nil, err
		}
		out := make([]any, 0, len(items))
		for i, item := range items {
			ew, v := w, item
			if t.IterVar != "" {
				ew = w.bind(t.IterVar, item)
				if v, err = r.elementValue(ew, item); err != nil {
					return nil, fmt.Errorf("[%d]: %w", i, err)
				}
			}
			pv, err := r.plainValue(ew, v, t.Elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out = append(out, pv)
		}
		return out, nil
	}
	return nil, fmt.Errorf("nstruct: invalid field type %v", t)
}
