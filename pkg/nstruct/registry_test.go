package nstruct

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdGen(t *testing.T) {
	g := NewIdGen()
	assert.Equal(t, int32(1), g.Peek())
	assert.Equal(t, int32(1), mustNext(t, g))
	assert.Equal(t, int32(2), mustNext(t, g))

	g.Reserve(10)
	assert.Equal(t, int32(11), mustNext(t, g))

	g.Reserve(3) // already passed
	assert.Equal(t, int32(12), mustNext(t, g))
}

func mustNext(t *testing.T, g *IdGen) int32 {
	t.Helper()
	id, err := g.Next()
	require.NoError(t, err)
	return id
}

func TestIdGen_Exhausted(t *testing.T) {
	g := NewIdGen()
	g.Reserve(math.MaxInt32 - 1)
	assert.Equal(t, int32(math.MaxInt32), mustNext(t, g))
	assert.Equal(t, int32(0), g.Peek())

	_, err := g.Next()
	require.ErrorIs(t, err, ErrIDsExhausted)

	g = NewIdGen()
	g.Reserve(math.MaxInt32)
	_, err = g.Next()
	require.ErrorIs(t, err, ErrIDsExhausted)
}

func TestRegister_MaxPinnedIDDoesNotWrap(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Register(&Class{
		Schema: "A id=2147483647 { x : int; }",
		New:    func() any { return NewRecord("A") },
	}))

	err := reg.Register(&Class{
		Schema: "B { x : int; }",
		New:    func() any { return NewRecord("B") },
	})
	require.ErrorIs(t, err, ErrIDsExhausted)
	_, ok := reg.Struct("B")
	assert.False(t, ok)

	for _, def := range reg.Structs() {
		assert.Positive(t, def.ID, def.Name)
	}

	// A file pinning the top id leaves no room for unpinned structs.
	_, err = New().ParseEmbeddedSchema("A id=2147483647 { x : int; }\nB { x : int; }")
	require.ErrorIs(t, err, ErrIDsExhausted)
}

func TestRegister_IDsStartAtOneAndStayStable(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Register(pointClass()))
	require.NoError(t, reg.Register(shapeClass))

	point, ok := reg.Struct("Point")
	require.True(t, ok)
	shape, ok := reg.Struct("Shape")
	require.True(t, ok)
	assert.Equal(t, int32(1), point.ID)
	assert.Equal(t, int32(2), shape.ID)

	// Registering again keeps the id and does not allocate a new one.
	require.NoError(t, reg.Register(pointClass()))
	again, _ := reg.Struct("Point")
	assert.Equal(t, int32(1), again.ID)
	assert.Len(t, reg.Structs(), 2)

	byID, ok := reg.StructByID(1)
	require.True(t, ok)
	assert.Equal(t, "Point", byID.Name)
}

func TestRegister_PinnedIDs(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Register(pointClass()))
	require.NoError(t, reg.Register(&Class{
		Schema: "Pinned id=5 {\n  v : int;\n}",
		New:    func() any { return &Point{} },
	}))
	require.NoError(t, reg.Register(shapeClass))

	pinned, _ := reg.Struct("Pinned")
	shape, _ := reg.Struct("Shape")
	assert.Equal(t, int32(5), pinned.ID)
	assert.Equal(t, int32(6), shape.ID, "auto ids skip past pinned ones")

	err := reg.Register(&Class{
		Schema: "Clash id=5 {\n  v : int;\n}",
		New:    func() any { return &Blob{} },
	})
	var conflict *IDConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "Pinned", conflict.Existing)
	assert.Equal(t, "Clash", conflict.Incoming)
}

func TestRegister_NameOverride(t *testing.T) {
	reg := New()
	require.NoError(t, reg.RegisterAs(pointClass(), "Vec2"))

	_, ok := reg.Struct("Point")
	assert.False(t, ok)
	def, ok := reg.Struct("Vec2")
	require.True(t, ok)
	assert.Equal(t, "Vec2", def.Name)

	name, ok := reg.NameOf(&Point{})
	require.True(t, ok)
	assert.Equal(t, "Vec2", name)
}

func TestRegister_Errors(t *testing.T) {
	reg := New()

	err := reg.Register(&Class{Schema: pointSchema})
	assert.ErrorIs(t, err, ErrNoConstructor)

	err = reg.Register(&Class{Schema: pointSchema, New: func() any { return Point{} }})
	assert.ErrorIs(t, err, ErrNotPointer)

	err = reg.Register(&Class{Schema: "Point {\n  x : int\n}", New: func() any { return &Point{} }})
	assert.ErrorContains(t, err, "parse error")

	err = reg.Register(&Class{Parent: "Nope", Schema: pointSchema, New: func() any { return &Point{} }})
	assert.ErrorIs(t, err, ErrUnknownClass)

	err = reg.Register(&Class{Parent: "Point", Schema: pointSchema, New: func() any { return &Point{} }})
	assert.ErrorContains(t, err, "cannot extend itself")
}

func TestRegister_ParentFieldsAreFlattened(t *testing.T) {
	reg := newShapes(t)

	circle, ok := reg.Struct("Circle")
	require.True(t, ok)
	var names []string
	for _, f := range circle.Fields {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"name", "x", "r"}, names)

	// Square already spliced the parent's fields in; nothing is doubled.
	square, _ := reg.Struct("Square")
	assert.Len(t, square.Fields, 3)
}

func TestRegistry_Schema(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Register(pointClass()))
	require.NoError(t, reg.Register(shapeClass))

	text := reg.Schema()
	assert.True(t, strings.HasPrefix(text, "Point id=1 {\n  x : int;\n  y : int;\n}\n"))
	assert.Contains(t, text, "Shape id=2 {")

	one, err := reg.FormatStruct("Shape", true, false)
	require.NoError(t, err)
	assert.Equal(t, "  name : string;\n  x : float;\n", one)

	_, err = reg.FormatStruct("Missing", false, false)
	assert.ErrorIs(t, err, ErrUnknownClass)
}

func TestRegistry_InheritSchema(t *testing.T) {
	reg := newShapes(t)

	text, err := reg.InheritSchema("Ellipse", "Circle")
	require.NoError(t, err)
	assert.Equal(t, "Ellipse {\n  name : string;\n  x : float;\n  r : float;\n", text)

	require.NoError(t, reg.Register(&Class{
		Parent: "Circle",
		Schema: text + "  r2 : float;\n}",
		New:    func() any { return &Circle{} },
	}))
	assert.True(t, reg.extends("Ellipse", "Shape"))
	assert.False(t, reg.extends("Shape", "Ellipse"))
}

func TestRegistry_Validate(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Register(&Class{
		Schema: "Line {\n  a : Point;\n  b : abstract(Point);\n}",
		New:    func() any { return &Point{} },
	}))

	err := reg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownClass)
	assert.Contains(t, err.Error(), "Line.a")
	assert.Contains(t, err.Error(), "Line.b")

	require.NoError(t, reg.Register(pointClass()))
	assert.NoError(t, reg.Validate())
}

func TestRegistry_NameOf(t *testing.T) {
	reg := newShapes(t)

	tests := []struct {
		name string
		obj  any
		want string
		ok   bool
	}{
		{"pointer", &Circle{}, "Circle", true},
		{"value of registered pointer type", Point{}, "Point", true},
		{"record", NewRecord("Shape"), "Shape", true},
		{"record of unknown struct", NewRecord("Nope"), "Nope", false},
		{"unregistered", &strings.Builder{}, "", false},
		{"nil", nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := reg.NameOf(tt.obj)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecord_ZeroValue(t *testing.T) {
	var rec Record
	rec.Set("x", int64(1))
	rec.Set("y", int64(2))
	rec.Set("x", int64(3))

	assert.Equal(t, []string{"x", "y"}, rec.Fields())
	v, ok := rec.Get("x")
	assert.True(t, ok)
	assert.Equal(t, int64(3), v)
	assert.Equal(t, 2, rec.Len())
}
