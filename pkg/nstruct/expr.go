package nstruct

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// maxExprSteps bounds the work a single get expression may do.
const maxExprSteps = 100_000

var exprFileOptions = &syntax.FileOptions{}

// exprCache memoizes compiled get expressions for the registry's
// lifetime. Entries are never evicted.
type exprCache struct {
	mu       sync.Mutex
	fns      map[string]*starlark.Function
	compiled int
}

func newExprCache() *exprCache {
	return &exprCache{fns: make(map[string]*starlark.Function)}
}

// compile turns src into a function of obj followed by params.
func (c *exprCache) compile(src string, params []string) (*starlark.Function, error) {
	key := strings.Join(params, ",") + "\x00" + src

	c.mu.Lock()
	defer c.mu.Unlock()
	if fn, ok := c.fns[key]; ok {
		return fn, nil
	}

	lambda := fmt.Sprintf("lambda %s: (%s)", strings.Join(append([]string{"obj"}, params...), ", "), src)
	thread := &starlark.Thread{Name: "compile"}
	v, err := starlark.EvalOptions(exprFileOptions, thread, "get", lambda, nil)
	if err != nil {
		return nil, fmt.Errorf("compile get expression %q: %w", src, err)
	}
	fn, ok := v.(*starlark.Function)
	if !ok {
		return nil, fmt.Errorf("compile get expression %q: got %s", src, v.Type())
	}
	c.fns[key] = fn
	c.compiled++
	return fn, nil
}

// Compiled returns how many distinct expressions have been compiled.
func (r *Registry) Compiled() int {
	r.exprs.mu.Lock()
	defer r.exprs.mu.Unlock()
	return r.exprs.compiled
}

// evalGet evaluates a get expression with obj and every iteration
// variable in env bound by name.
func (r *Registry) evalGet(src string, obj any, env map[string]any) (any, error) {
	params := make([]string, 0, len(env))
	for name := range env {
		if name != "obj" {
			params = append(params, name)
		}
	}
	slices.Sort(params)

	fn, err := r.exprs.compile(src, params)
	if err != nil {
		return nil, err
	}

	args := make(starlark.Tuple, 0, len(params)+1)
	sv, err := r.toStarlark(obj)
	if err != nil {
		return nil, err
	}
	args = append(args, sv)
	for _, name := range params {
		sv, err := r.toStarlark(env[name])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		args = append(args, sv)
	}

	thread := &starlark.Thread{
		Name:  "get",
		Print: func(_ *starlark.Thread, msg string) { r.logger.Debug(msg, "expr", src) },
	}
	thread.SetMaxExecutionSteps(maxExprSteps)
	result, err := starlark.Call(thread, fn, args, nil)
	if err != nil {
		return nil, fmt.Errorf("get expression %q: %w", src, err)
	}
	return r.fromStarlark(result)
}

// objectValue exposes a struct value's fields as Starlark attributes.
type objectValue struct {
	r *Registry
	v any
}

var _ starlark.HasAttrs = (*objectValue)(nil)

func (o *objectValue) String() string { return fmt.Sprintf("%v", o.v) }
func (o *objectValue) Type() string {
	if name, ok := o.r.NameOf(o.v); ok {
		return name
	}
	return typeName(o.v)
}
func (o *objectValue) Freeze() {}
func (o *objectValue) Truth() starlark.Bool { return starlark.Bool(!isNil(o.v)) }
func (o *objectValue) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable type: %s", o.Type())
}

func (o *objectValue) Attr(name string) (starlark.Value, error) {
	v, err := o.r.fieldValue(o.v, name)
	if err != nil {
		// nil, nil makes Starlark report a missing attribute
		return nil, nil //nolint:nilnil // Starlark HasAttrs convention
	}
	return o.r.toStarlark(v)
}

func (o *objectValue) AttrNames() []string {
	names := o.r.fieldNames(o.v)
	slices.Sort(names)
	return names
}

// toStarlark converts a Go value for use inside an expression. Structs,
// records and maps are exposed by attribute.
func (r *Registry) toStarlark(v any) (starlark.Value, error) {
	switch val := v.(type) {
	case nil:
		return starlark.None, nil
	case starlark.Value:
		return val, nil
	case string:
		return starlark.String(val), nil
	case bool:
		return starlark.Bool(val), nil
	case []byte:
		return starlark.Bytes(val), nil
	case *Record, map[string]any:
		return &objectValue{r: r, v: val}, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return starlark.MakeInt64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return starlark.MakeUint64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return starlark.Float(rv.Float()), nil
	case reflect.String:
		return starlark.String(rv.String()), nil
	case reflect.Bool:
		return starlark.Bool(rv.Bool()), nil
	case reflect.Slice, reflect.Array:
		list := make([]starlark.Value, rv.Len())
		for i := range list {
			sv, err := r.toStarlark(rv.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			list[i] = sv
		}
		return starlark.NewList(list), nil
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return starlark.None, nil
		}
		return &objectValue{r: r, v: v}, nil
	case reflect.Struct:
		return &objectValue{r: r, v: v}, nil
	}
	return nil, fmt.Errorf("unsupported type: %T", v)
}

// fromStarlark converts an expression result back to Go.
func (r *Registry) fromStarlark(v starlark.Value) (any, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.String:
		return string(val), nil
	case starlark.Bytes:
		return []byte(val), nil
	case starlark.Int:
		if i, ok := val.Int64(); ok {
			return i, nil
		}
		if u, ok := val.Uint64(); ok {
			return u, nil
		}
		return nil, fmt.Errorf("integer %s out of range", val)
	case starlark.Float:
		return float64(val), nil
	case starlark.Bool:
		return bool(val), nil
	case *objectValue:
		return val.v, nil
	case *starlark.List:
		out := make([]any, val.Len())
		for i := range out {
			gv, err := r.fromStarlark(val.Index(i))
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			out[i] = gv
		}
		return out, nil
	case starlark.Tuple:
		out := make([]any, len(val))
		for i, item := range val {
			gv, err := r.fromStarlark(item)
			if err != nil {
				return nil, fmt.Errorf("tuple index %d: %w", i, err)
			}
			out[i] = gv
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported expression result type %s", v.Type())
}
