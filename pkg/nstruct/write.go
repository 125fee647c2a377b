package nstruct

import (
	"errors"
	"maps"

	"github.com/leapstack-labs/structkit/pkg/binpack"
	"github.com/leapstack-labs/structkit/pkg/schema"
)

// writeCtx describes the field being written.
type writeCtx struct {
	obj   any // owner of the field
	def   *schema.StructDef
	field *schema.Field
	cls   *Class
	env   map[string]any // iteration variables in scope
	depth int
}

func (w *writeCtx) bind(name string, v any) *writeCtx {
	c := *w
	c.env = make(map[string]any, len(w.env)+1)
	maps.Copy(c.env, w.env)
	c.env[name] = v
	return &c
}

// WriteObject appends the encoding of obj to buf. obj's type must be
// registered.
func (r *Registry) WriteObject(buf *binpack.Buffer, obj any) error {
	name, ok := r.NameOf(obj)
	if !ok || isNil(obj) {
		return &NotStructableError{Type: typeName(obj)}
	}
	def, cls, err := r.lookup(name)
	if err != nil {
		return err
	}
	return r.writeStruct(buf, obj, def, cls, 0)
}

// Marshal encodes obj using the registry's byte order.
func (r *Registry) Marshal(obj any) ([]byte, error) {
	buf := binpack.NewBuffer(binpack.WithByteOrder(r.order))
	if err := r.WriteObject(buf, obj); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeStruct writes def's fields in declaration order. A nil obj writes
// the zero form of every field.
func (r *Registry) writeStruct(buf *binpack.Buffer, obj any, def *schema.StructDef, cls *Class, depth int) error {
	if depth > maxDepth {
		return ErrTooDeep
	}
	for i := range def.Fields {
		f := &def.Fields[i]
		w := &writeCtx{obj: obj, def: def, field: f, cls: cls, depth: depth}

		val, err := r.resolveField(w)
		if err == nil {
			err = r.pack(buf, w, val, f.Type)
		}
		if err != nil {
			return &FieldError{Struct: def.Name, Field: f.Name, Err: err}
		}
	}
	return nil
}

// resolveField returns the value to write for w.field. Sequences with an
// iteration variable apply the get per element, so here the raw field is
// returned.
func (r *Registry) resolveField(w *writeCtx) (any, error) {
	if isNil(w.obj) {
		return nil, nil
	}
	if t := w.field.Type; (t.Kind == schema.KindArray || t.Kind == schema.KindIter) && t.IterVar != "" {
		return r.declaredField(w)
	}
	if v, ok, err := r.customGet(w); ok {
		return v, err
	}
	return r.declaredField(w)
}

// declaredField reads w.field from the object. On a file view a field the
// Go type lacks packs as its zero form, so blocks of a newer file can be
// written back; the field's original value is lost.
func (r *Registry) declaredField(w *writeCtx) (any, error) {
	v, err := r.fieldValue(w.obj, w.field.Name)
	if err != nil && r.fileView && errors.Is(err, ErrNoSuchField) {
		r.logger.Debug("writing zero value for field absent from Go type", "field", w.field.Name, "type", typeName(w.obj))
		return nil, nil
	}
	return v, err
}

// elementValue applies the field's get to one sequence element. Without a
// get the element itself is written.
func (r *Registry) elementValue(w *writeCtx, item any) (any, error) {
	if v, ok, err := r.customGet(w); ok {
		return v, err
	}
	return item, nil
}

// customGet evaluates a registered Getter or, failing that, the field's
// get expression. Stub classes never evaluate expressions, so records are
// written back exactly as read.
func (r *Registry) customGet(w *writeCtx) (any, bool, error) {
	if w.cls != nil {
		if g, ok := w.cls.Getters[w.field.Name]; ok {
			v, err := g(w.obj, w.env)
			return v, true, err
		}
		if w.cls.stub {
			return nil, false, nil
		}
	}
	if w.field.Get == "" || !r.expressions {
		return nil, false, nil
	}
	v, err := r.evalGet(w.field.Get, w.obj, w.env)
	return v, true, err
}
