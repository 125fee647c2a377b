package nstruct

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"

	"github.com/leapstack-labs/structkit/pkg/schema"
)

func typeName(v any) string {
	if v == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", v)
}

// deref follows pointers and interfaces. ok is false for a nil pointer.
func deref(v any) (reflect.Value, bool) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return rv, false
		}
		rv = rv.Elem()
	}
	return rv, rv.IsValid()
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

func toInt64(v any, kind schema.Kind) (int64, error) {
	rv, ok := deref(v)
	if !ok {
		return 0, nil
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return int64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return int64(rv.Float()), nil
	case reflect.Bool:
		if rv.Bool() {
			return 1, nil
		}
		return 0, nil
	}
	return 0, &TypeError{Want: kind.String(), Got: typeName(v)}
}

func toFloat64(v any, kind schema.Kind) (float64, error) {
	rv, ok := deref(v)
	if !ok {
		return 0, nil
	}
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), nil
	case reflect.Bool:
		if rv.Bool() {
			return 1, nil
		}
		return 0, nil
	}
	return 0, &TypeError{Want: kind.String(), Got: typeName(v)}
}

func toBool(v any) (bool, error) {
	rv, ok := deref(v)
	if !ok {
		return false, nil
	}
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0, nil
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0, nil
	case reflect.String:
		return rv.Len() != 0, nil
	}
	return false, &TypeError{Want: "bool", Got: typeName(v)}
}

func toString(v any, kind schema.Kind) (string, error) {
	switch s := v.(type) {
	case nil:
		return "", nil
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	case fmt.Stringer:
		if isNil(s) {
			return "", nil
		}
		return s.String(), nil
	}
	rv, ok := deref(v)
	if !ok {
		return "", nil
	}
	if rv.Kind() == reflect.String {
		return rv.String(), nil
	}
	return "", &TypeError{Want: kind.String(), Got: typeName(v)}
}

// sliceItems flattens a slice, array or iterable into a list.
func sliceItems(v any, kind schema.Kind) ([]any, error) {
	if items, ok := v.([]any); ok {
		return items, nil
	}
	rv, ok := deref(v)
	if !ok {
		return nil, nil
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return items, nil
	}
	each, err := iterate(v, kind)
	if err != nil {
		return nil, err
	}
	var items []any
	each(func(item any) bool {
		items = append(items, item)
		return true
	})
	return items, nil
}

// iterate returns a visitor over v. Iterables, range-over-func iterators
// of one value, slices, arrays and maps (values by sorted key) are
// accepted; nil visits nothing.
func iterate(v any, kind schema.Kind) (func(yield func(any) bool), error) {
	switch it := v.(type) {
	case nil:
		return func(func(any) bool) {}, nil
	case Iterable:
		return it.ForEach, nil
	case func(func(any) bool):
		return it, nil
	}

	rv, ok := deref(v)
	if !ok {
		return func(func(any) bool) {}, nil
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return func(yield func(any) bool) {
			for i := 0; i < rv.Len(); i++ {
				if !yield(rv.Index(i).Interface()) {
					return
				}
			}
		}, nil
	case reflect.Map:
		keys := rv.MapKeys()
		slices.SortFunc(keys, compareKeys)
		return func(yield func(any) bool) {
			for _, k := range keys {
				if !yield(rv.MapIndex(k).Interface()) {
					return
				}
			}
		}, nil
	case reflect.Func:
		if seq, ok := seqFunc(rv); ok {
			return seq, nil
		}
	}
	return nil, &TypeError{Want: kind.String(), Got: typeName(v)}
}

// compareKeys orders map keys: numbers numerically, everything else by
// its printed form.
func compareKeys(a, b reflect.Value) int {
	switch a.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return cmp.Compare(a.Int(), b.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return cmp.Compare(a.Uint(), b.Uint())
	case reflect.Float32, reflect.Float64:
		return cmp.Compare(a.Float(), b.Float())
	case reflect.String:
		return cmp.Compare(a.String(), b.String())
	}
	return cmp.Compare(fmt.Sprint(a.Interface()), fmt.Sprint(b.Interface()))
}

// seqFunc adapts a func(func(T) bool), such as iter.Seq[T].
func seqFunc(fn reflect.Value) (func(yield func(any) bool), bool) {
	t := fn.Type()
	if t.NumIn() != 1 || t.NumOut() != 0 {
		return nil, false
	}
	yt := t.In(0)
	if yt.Kind() != reflect.Func || yt.NumIn() != 1 || yt.NumOut() != 1 || yt.Out(0).Kind() != reflect.Bool {
		return nil, false
	}
	return func(yield func(any) bool) {
		y := reflect.MakeFunc(yt, func(args []reflect.Value) []reflect.Value {
			return []reflect.Value{reflect.ValueOf(yield(args[0].Interface()))}
		})
		fn.Call([]reflect.Value{y})
	}, true
}

// assign stores a decoded value into dst, converting where the Go type
// differs from the wire type.
func assign(dst reflect.Value, v any) error {
	if v == nil {
		return nil
	}
	src := reflect.ValueOf(v)
	if src.Type().AssignableTo(dst.Type()) {
		dst.Set(src)
		return nil
	}

	mismatch := &TypeError{Want: dst.Type().String(), Got: typeName(v)}
	switch dst.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if !isNumeric(src) {
			return mismatch
		}
		i, err := toInt64(v, schema.KindInt)
		if err != nil {
			return err
		}
		dst.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if !isNumeric(src) {
			return mismatch
		}
		i, err := toInt64(v, schema.KindInt)
		if err != nil {
			return err
		}
		dst.SetUint(uint64(i))
	case reflect.Float32, reflect.Float64:
		if !isNumeric(src) {
			return mismatch
		}
		f, err := toFloat64(v, schema.KindDouble)
		if err != nil {
			return err
		}
		dst.SetFloat(f)
	case reflect.Bool:
		if !isNumeric(src) {
			return mismatch
		}
		b, err := toBool(v)
		if err != nil {
			return err
		}
		dst.SetBool(b)
	case reflect.String:
		if src.Kind() != reflect.String {
			return mismatch
		}
		dst.SetString(src.String())
	case reflect.Struct:
		if src.Kind() == reflect.Pointer && !src.IsNil() && src.Elem().Type().AssignableTo(dst.Type()) {
			dst.Set(src.Elem())
			return nil
		}
		return mismatch
	case reflect.Pointer:
		p := reflect.New(dst.Type().Elem())
		if err := assign(p.Elem(), v); err != nil {
			return err
		}
		dst.Set(p)
	case reflect.Slice:
		items, ok := v.([]any)
		if !ok {
			return mismatch
		}
		s := reflect.MakeSlice(dst.Type(), len(items), len(items))
		for i, item := range items {
			if err := assign(s.Index(i), item); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		dst.Set(s)
	case reflect.Array:
		items, ok := v.([]any)
		if !ok {
			return mismatch
		}
		for i := 0; i < len(items) && i < dst.Len(); i++ {
			if err := assign(dst.Index(i), items[i]); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
	default:
		return mismatch
	}
	return nil
}

func isNumeric(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Bool:
		return true
	}
	return false
}
