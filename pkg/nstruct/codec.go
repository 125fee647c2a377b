package nstruct

import (
	"fmt"

	"github.com/leapstack-labs/structkit/pkg/binpack"
	"github.com/leapstack-labs/structkit/pkg/schema"
)

// maxDepth bounds struct nesting on both passes. Self-referential structs
// written with nil values, or cyclic object graphs, stop here.
const maxDepth = 256

type packFunc func(r *Registry, buf *binpack.Buffer, w *writeCtx, val any, t *schema.Type) error

type unpackFunc func(r *Registry, cur *binpack.Cursor, t *schema.Type, depth int) (any, error)

// Codec tables indexed by wire tag. Reserved tags stay nil.
var (
	packers   [schema.NumKinds]packFunc
	unpackers [schema.NumKinds]unpackFunc
)

func init() {
	packers[schema.KindInt] = packInt
	packers[schema.KindFloat] = packFloat
	packers[schema.KindDouble] = packDouble
	packers[schema.KindString] = packString
	packers[schema.KindStaticString] = packStaticString
	packers[schema.KindStruct] = packStruct
	packers[schema.KindAbstract] = packAbstract
	packers[schema.KindArray] = packArray
	packers[schema.KindIter] = packIter
	packers[schema.KindShort] = packShort
	packers[schema.KindByte] = packByte
	packers[schema.KindBool] = packBool

	unpackers[schema.KindInt] = unpackInt
	unpackers[schema.KindFloat] = unpackFloat
	unpackers[schema.KindDouble] = unpackDouble
	unpackers[schema.KindString] = unpackString
	unpackers[schema.KindStaticString] = unpackStaticString
	unpackers[schema.KindStruct] = unpackStruct
	unpackers[schema.KindAbstract] = unpackAbstract
	unpackers[schema.KindArray] = unpackArray
	unpackers[schema.KindIter] = unpackArray
	unpackers[schema.KindShort] = unpackShort
	unpackers[schema.KindByte] = unpackByte
	unpackers[schema.KindBool] = unpackBool
}

func validKind(t *schema.Type) error {
	if t == nil || t.Kind < 0 || t.Kind >= schema.NumKinds || packers[t.Kind] == nil {
		return fmt.Errorf("nstruct: invalid field type %v", t)
	}
	return nil
}

func (r *Registry) pack(buf *binpack.Buffer, w *writeCtx, val any, t *schema.Type) error {
	if err := validKind(t); err != nil {
		return err
	}
	return packers[t.Kind](r, buf, w, val, t)
}

func (r *Registry) unpack(cur *binpack.Cursor, t *schema.Type, depth int) (any, error) {
	if err := validKind(t); err != nil {
		return nil, err
	}
	return unpackers[t.Kind](r, cur, t, depth)
}

// ---------- Scalars ----------

func packInt(_ *Registry, buf *binpack.Buffer, _ *writeCtx, val any, t *schema.Type) error {
	i, err := toInt64(val, t.Kind)
	if err != nil {
		return err
	}
	buf.PutInt32(int32(i))
	return nil
}

func packShort(_ *Registry, buf *binpack.Buffer, _ *writeCtx, val any, t *schema.Type) error {
	i, err := toInt64(val, t.Kind)
	if err != nil {
		return err
	}
	buf.PutShort(int16(i))
	return nil
}

func packByte(_ *Registry, buf *binpack.Buffer, _ *writeCtx, val any, t *schema.Type) error {
	i, err := toInt64(val, t.Kind)
	if err != nil {
		return err
	}
	buf.PutByte(uint8(i))
	return nil
}

func packBool(_ *Registry, buf *binpack.Buffer, _ *writeCtx, val any, _ *schema.Type) error {
	b, err := toBool(val)
	if err != nil {
		return err
	}
	buf.PutBool(b)
	return nil
}

func packFloat(_ *Registry, buf *binpack.Buffer, _ *writeCtx, val any, t *schema.Type) error {
	f, err := toFloat64(val, t.Kind)
	if err != nil {
		return err
	}
	buf.PutFloat32(float32(f))
	return nil
}

func packDouble(_ *Registry, buf *binpack.Buffer, _ *writeCtx, val any, t *schema.Type) error {
	f, err := toFloat64(val, t.Kind)
	if err != nil {
		return err
	}
	buf.PutFloat64(f)
	return nil
}

func packString(_ *Registry, buf *binpack.Buffer, _ *writeCtx, val any, t *schema.Type) error {
	s, err := toString(val, t.Kind)
	if err != nil {
		return err
	}
	buf.PutString(s)
	return nil
}

func packStaticString(_ *Registry, buf *binpack.Buffer, _ *writeCtx, val any, t *schema.Type) error {
	s, err := toString(val, t.Kind)
	if err != nil {
		return err
	}
	return buf.PutStaticString(s, t.MaxLen)
}

func unpackInt(_ *Registry, cur *binpack.Cursor, _ *schema.Type, _ int) (any, error) {
	return cur.Int32()
}

func unpackShort(_ *Registry, cur *binpack.Cursor, _ *schema.Type, _ int) (any, error) {
	return cur.Short()
}

func unpackByte(_ *Registry, cur *binpack.Cursor, _ *schema.Type, _ int) (any, error) {
	return cur.Byte()
}

func unpackBool(_ *Registry, cur *binpack.Cursor, _ *schema.Type, _ int) (any, error) {
	return cur.Bool()
}

func unpackFloat(_ *Registry, cur *binpack.Cursor, _ *schema.Type, _ int) (any, error) {
	return cur.Float32()
}

func unpackDouble(_ *Registry, cur *binpack.Cursor, _ *schema.Type, _ int) (any, error) {
	return cur.Float64()
}

func unpackString(_ *Registry, cur *binpack.Cursor, _ *schema.Type, _ int) (any, error) {
	return cur.String()
}

func unpackStaticString(_ *Registry, cur *binpack.Cursor, t *schema.Type, _ int) (any, error) {
	return cur.StaticString(t.MaxLen)
}

// ---------- Structs ----------

func packStruct(r *Registry, buf *binpack.Buffer, w *writeCtx, val any, t *schema.Type) error {
	def, cls, err := r.lookup(t.StructName)
	if err != nil {
		return err
	}
	return r.writeStruct(buf, val, def, cls, w.depth+1)
}

// packAbstract writes the id of the value's own struct when it is the
// declared struct or one of its descendants, and the declared id
// otherwise. Records keep the struct they were read as.
func packAbstract(r *Registry, buf *binpack.Buffer, w *writeCtx, val any, t *schema.Type) error {
	def, cls, err := r.lookup(t.StructName)
	if err != nil {
		return err
	}
	if !isNil(val) {
		if name, ok := r.NameOf(val); ok && name != def.Name {
			_, isRecord := val.(*Record)
			if isRecord || r.extends(name, def.Name) {
				if def, cls, err = r.lookup(name); err != nil {
					return err
				}
			} else {
				r.logger.Debug("value is not a subtype of the declared struct, writing as declared",
					"declared", t.StructName, "actual", name)
			}
		}
	}
	buf.PutInt32(def.ID)
	return r.writeStruct(buf, val, def, cls, w.depth+1)
}

func unpackStruct(r *Registry, cur *binpack.Cursor, t *schema.Type, depth int) (any, error) {
	def, cls, err := r.lookup(t.StructName)
	if err != nil {
		return nil, err
	}
	return r.readStruct(cur, def, cls, depth+1)
}

func unpackAbstract(r *Registry, cur *binpack.Cursor, _ *schema.Type, depth int) (any, error) {
	offset := cur.Pos()
	id, err := cur.Int32()
	if err != nil {
		return nil, err
	}
	def, ok := r.StructByID(id)
	if !ok {
		return nil, &UnknownStructIDError{ID: id, Offset: offset}
	}
	_, cls, err := r.lookup(def.Name)
	if err != nil {
		return nil, err
	}
	return r.readStruct(cur, def, cls, depth+1)
}

// ---------- Sequences ----------

func packArray(r *Registry, buf *binpack.Buffer, w *writeCtx, val any, t *schema.Type) error {
	items, err := sliceItems(val, t.Kind)
	if err != nil {
		return err
	}
	buf.PutInt32(int32(len(items)))
	for i, item := range items {
		if err := r.packElem(buf, w, item, t); err != nil {
			return fmt.Errorf("[%d]: %w", i, err)
		}
	}
	return nil
}

// packIter counts the source on one pass and writes it on a second. The
// two passes must agree.
func packIter(r *Registry, buf *binpack.Buffer, w *writeCtx, val any, t *schema.Type) error {
	each, err := iterate(val, t.Kind)
	if err != nil {
		return err
	}

	declared := 0
	each(func(any) bool {
		declared++
		return true
	})
	buf.PutInt32(int32(declared))

	written := 0
	each(func(item any) bool {
		if written >= declared && r.strictIter {
			written++
			return false
		}
		if err = r.packElem(buf, w, item, t); err != nil {
			err = fmt.Errorf("[%d]: %w", written, err)
			return false
		}
		written++
		return true
	})
	if err != nil {
		return err
	}

	if written != declared {
		lenErr := &IterLengthError{Declared: declared, Actual: written}
		if w.def != nil {
			lenErr.Struct, lenErr.Field = w.def.Name, w.field.Name
		}
		if r.strictIter {
			return lenErr
		}
		r.logger.Warn("iterator length changed between passes", "error", lenErr.Error())
	}
	return nil
}

// packElem writes one element, first applying the field's get to it when
// the sequence names an iteration variable.
func (r *Registry) packElem(buf *binpack.Buffer, w *writeCtx, item any, t *schema.Type) error {
	if t.IterVar == "" {
		return r.pack(buf, w, item, t.Elem)
	}
	ew := w.bind(t.IterVar, item)
	v, err := r.elementValue(ew, item)
	if err != nil {
		return err
	}
	return r.pack(buf, ew, v, t.Elem)
}

func unpackArray(r *Registry, cur *binpack.Cursor, t *schema.Type, depth int) (any, error) {
	offset := cur.Pos()
	n, err := cur.Int32()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("nstruct: negative %s length %d at offset %d", t.Kind, n, offset)
	}
	items := make([]any, 0, min(int(n), cur.Remaining()))
	for i := 0; i < int(n); i++ {
		v, err := r.unpack(cur, t.Elem, depth)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		items = append(items, v)
	}
	return items, nil
}
