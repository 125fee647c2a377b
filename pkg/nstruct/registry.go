// Package nstruct binds struct schemas to Go types and converts object
// graphs to and from the binary wire format.
//
// # Usage
//
//	type Point struct{ X, Y int32 }
//
//	reg := nstruct.New()
//	err := reg.Register(&nstruct.Class{
//	    Schema: "Point {\n  x : int;\n  y : int;\n}",
//	    New:    func() any { return &Point{} },
//	})
//	data, err := reg.Marshal(&Point{X: 3, Y: -4})
//	p, err := nstruct.Decode[*Point](reg, data)
//
// Schema fields map to Go struct fields by `struct:"name"` tag, then by
// exact name, then case-insensitively. Promoted fields of embedded structs
// are visible.
//
// A Registry is safe for concurrent reads and writes once registration is
// done. Register must not race with other calls.
package nstruct

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"sync"

	"github.com/leapstack-labs/structkit/pkg/binpack"
	"github.com/leapstack-labs/structkit/pkg/schema"
)

// Registry holds struct definitions, their classes and their ids.
type Registry struct {
	mu      sync.RWMutex
	structs map[string]*schema.StructDef
	classes map[string]*Class
	ids     map[int32]*schema.StructDef
	types   map[reflect.Type]string
	names   []string // registration order
	idgen   *IdGen

	exprs  *exprCache
	fields *fieldCache

	logger      *slog.Logger
	order       binary.ByteOrder
	strictIter  bool
	expressions bool
	fileView    bool // built by ParseEmbeddedSchema
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for soft failures.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithByteOrder sets the byte order of Marshal and Unmarshal.
func WithByteOrder(order binary.ByteOrder) Option {
	return func(r *Registry) {
		if order != nil {
			r.order = order
		}
	}
}

// WithStrictIterators controls what happens when an iterable yields a
// different number of items on the write pass than on the counting pass.
// Strict registries fail the write; lenient ones log a warning and keep
// going, leaving a block whose length prefix disagrees with its content.
// Registries are strict by default.
func WithStrictIterators(strict bool) Option {
	return func(r *Registry) { r.strictIter = strict }
}

// WithExpressions enables or disables evaluation of get expressions from
// schema text. Getters registered on a Class are always used.
func WithExpressions(enabled bool) Option {
	return func(r *Registry) { r.expressions = enabled }
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		structs:     make(map[string]*schema.StructDef),
		classes:     make(map[string]*Class),
		ids:         make(map[int32]*schema.StructDef),
		types:       make(map[reflect.Type]string),
		idgen:       NewIdGen(),
		exprs:       newExprCache(),
		fields:      newFieldCache(),
		logger:      slog.New(slog.DiscardHandler),
		order:       binpack.DefaultByteOrder,
		strictIter:  true,
		expressions: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// derive returns an empty registry sharing r's configuration and caches.
func (r *Registry) derive() *Registry {
	return &Registry{
		structs:     make(map[string]*schema.StructDef),
		classes:     make(map[string]*Class),
		ids:         make(map[int32]*schema.StructDef),
		types:       make(map[reflect.Type]string),
		idgen:       NewIdGen(),
		exprs:       r.exprs,
		fields:      r.fields,
		logger:      r.logger,
		order:       r.order,
		strictIter:  r.strictIter,
		expressions: r.expressions,
		fileView:    true,
	}
}

// Logger returns the registry's logger.
func (r *Registry) Logger() *slog.Logger { return r.logger }

// ByteOrder returns the registry's byte order.
func (r *Registry) ByteOrder() binary.ByteOrder { return r.order }

// Register parses cls.Schema and binds the struct to cls.
func (r *Registry) Register(cls *Class) error {
	return r.RegisterAs(cls, "")
}

// RegisterAs is Register with the struct name overridden.
//
// Registering a name again replaces its definition and class but keeps
// its id.
func (r *Registry) RegisterAs(cls *Class, name string) error {
	def, err := schema.ParseOne(cls.Schema)
	if err != nil {
		return err
	}
	if name == "" {
		name = cls.Name
	}
	if name != "" {
		def.Name = name
	}

	c := *cls
	c.Name = def.Name
	if c.New == nil && c.FromSTRUCT == nil {
		return fmt.Errorf("register %s: %w", c.Name, ErrNoConstructor)
	}
	if c.New != nil {
		sample := c.New()
		switch sample.(type) {
		case *Record, map[string]any:
		default:
			if t := reflect.TypeOf(sample); t == nil || t.Kind() != reflect.Pointer {
				return fmt.Errorf("register %s: %w", c.Name, ErrNotPointer)
			}
		}
		c.goType = reflect.TypeOf(sample)
		if _, ok := sample.(Loader); ok && c.Load == nil {
			c.Load = loadViaInterface
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if c.Parent != "" {
		if c.Parent == c.Name {
			return fmt.Errorf("register %s: struct cannot extend itself", c.Name)
		}
		parent, ok := r.structs[c.Parent]
		if !ok {
			return fmt.Errorf("register %s: parent %s: %w", c.Name, c.Parent, ErrUnknownClass)
		}
		def.Fields = inheritFields(parent.Fields, def.Fields)
	}

	existing := r.structs[def.Name]
	switch {
	case existing != nil:
		if def.ID != 0 && def.ID != existing.ID {
			return &IDConflictError{ID: def.ID, Existing: existing.Name, Incoming: def.Name}
		}
		def.ID = existing.ID
	case def.ID != 0:
		if other, taken := r.ids[def.ID]; taken {
			return &IDConflictError{ID: def.ID, Existing: other.Name, Incoming: def.Name}
		}
		r.idgen.Reserve(def.ID)
	default:
		if def.ID, err = r.nextFreeID(); err != nil {
			return fmt.Errorf("register %s: %w", def.Name, err)
		}
	}

	if old, ok := r.classes[def.Name]; ok && old.goType != nil {
		delete(r.types, old.goType)
	}
	r.bind(def, &c)
	if existing == nil {
		r.names = append(r.names, def.Name)
	}
	return nil
}

// MustRegister is Register that panics on error, for package level setup.
func (r *Registry) MustRegister(classes ...*Class) {
	for _, cls := range classes {
		if err := r.Register(cls); err != nil {
			panic(err)
		}
	}
}

func (r *Registry) bind(def *schema.StructDef, cls *Class) {
	r.structs[def.Name] = def
	r.classes[def.Name] = cls
	r.ids[def.ID] = def
	if cls.goType != nil && !cls.stub {
		r.types[cls.goType] = def.Name
	}
}

func (r *Registry) nextFreeID() (int32, error) {
	for {
		id, err := r.idgen.Next()
		if err != nil {
			return 0, err
		}
		if _, taken := r.ids[id]; !taken {
			return id, nil
		}
	}
}

// inheritFields prepends the parent's fields the child does not declare.
func inheritFields(parent, own []schema.Field) []schema.Field {
	declared := make(map[string]bool, len(own))
	for _, f := range own {
		declared[f.Name] = true
	}
	out := make([]schema.Field, 0, len(parent)+len(own))
	for _, f := range parent {
		if !declared[f.Name] {
			f.Type = f.Type.Clone()
			out = append(out, f)
		}
	}
	return append(out, own...)
}

// Struct returns the definition registered under name.
func (r *Registry) Struct(name string) (*schema.StructDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.structs[name]
	return def, ok
}

// StructByID returns the definition with the given id.
func (r *Registry) StructByID(id int32) (*schema.StructDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.ids[id]
	return def, ok
}

// Class returns the class registered under name.
func (r *Registry) Class(name string) (*Class, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cls, ok := r.classes[name]
	return cls, ok
}

// Structs returns every definition in registration order.
func (r *Registry) Structs() []*schema.StructDef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*schema.StructDef, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.structs[name])
	}
	return out
}

// NameOf returns the struct name registered for obj's type.
func (r *Registry) NameOf(obj any) (string, bool) {
	if rec, ok := obj.(*Record); ok {
		if rec == nil {
			return "", false
		}
		r.mu.RLock()
		_, known := r.structs[rec.Struct]
		r.mu.RUnlock()
		return rec.Struct, known
	}
	t := reflect.TypeOf(obj)
	if t == nil {
		return "", false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name, ok := r.types[t]; ok {
		return name, true
	}
	if t.Kind() != reflect.Pointer {
		name, ok := r.types[reflect.PointerTo(t)]
		return name, ok
	}
	return "", false
}

func (r *Registry) lookup(name string) (*schema.StructDef, *Class, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.structs[name]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownClass, name)
	}
	return def, r.classes[name], nil
}

// extends reports whether name is base or has base among its ancestors.
func (r *Registry) extends(name, base string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool)
	for cur := name; cur != "" && !seen[cur]; {
		if cur == base {
			return true
		}
		seen[cur] = true
		cls, ok := r.classes[cur]
		if !ok {
			return false
		}
		cur = cls.Parent
	}
	return false
}

// Schema regenerates the schema text of every registered struct, in
// registration order, with ids pinned.
func (r *Registry) Schema() string {
	return schema.Format(r.Structs(), false)
}

// FormatStruct regenerates the schema text of one struct.
func (r *Registry) FormatStruct(name string, internalOnly, noHelperExprs bool) (string, error) {
	def, _, err := r.lookup(name)
	if err != nil {
		return "", err
	}
	return schema.FormatStruct(def, internalOnly, noHelperExprs), nil
}

// InheritSchema returns the opening of a declaration of childName that
// already lists every field of the registered struct parentName.
func (r *Registry) InheritSchema(childName, parentName string) (string, error) {
	def, _, err := r.lookup(parentName)
	if err != nil {
		return "", err
	}
	return schema.InheritSchema(childName, def), nil
}

// Inherit is InheritSchema for a class that is not registered yet.
func Inherit(childName string, parent *Class) (string, error) {
	def, err := schema.ParseOne(parent.Schema)
	if err != nil {
		return "", err
	}
	return schema.InheritSchema(childName, def), nil
}

// Validate checks that every struct reference resolves and every static
// string has a width. All problems are reported together.
func (r *Registry) Validate() error {
	var errs []error
	for _, def := range r.Structs() {
		for _, f := range def.Fields {
			f.Type.Walk(func(t *schema.Type) {
				switch t.Kind {
				case schema.KindStruct, schema.KindAbstract:
					if _, ok := r.Struct(t.StructName); !ok {
						errs = append(errs, &FieldError{Struct: def.Name, Field: f.Name,
							Err: fmt.Errorf("%w: %s", ErrUnknownClass, t.StructName)})
					}
				case schema.KindStaticString:
					if t.MaxLen <= 0 {
						errs = append(errs, &FieldError{Struct: def.Name, Field: f.Name, Err: binpack.ErrNoMaxLength})
					}
				}
			})
		}
	}
	return errors.Join(errs...)
}

// ChainSuper runs the Load hook of className's parent on obj, so a child's
// hook can keep the parent's side effects. Fields are assigned by read at
// most once whichever hook calls it first. A missing parent, a parent
// without a hook, or a parent sharing the child's hook falls back to read.
func (r *Registry) ChainSuper(obj any, className string, read ReadFunc) error {
	cls, ok := r.Class(className)
	if !ok || cls.Parent == "" {
		return read(obj)
	}
	parent, ok := r.Class(cls.Parent)
	if !ok || parent.Load == nil || sameFunc(parent.Load, cls.Load) {
		return read(obj)
	}
	return parent.Load(obj, read)
}

func sameFunc(a, b func(any, ReadFunc) error) bool {
	if a == nil || b == nil {
		return false
	}
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}

// Names returns registered struct names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := slices.Clone(r.names)
	slices.Sort(out)
	return out
}
