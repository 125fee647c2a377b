package nstruct

import (
	"encoding/binary"
	"errors"
	"iter"
	"log/slog"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/structkit/internal/testutil"
	"github.com/leapstack-labs/structkit/pkg/binpack"
)

func TestPoint_WireFormat(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Register(pointClass()))

	data, err := reg.Marshal(&Point{X: 3, Y: -4})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x03, 0x00, 0x00, 0x00, 0xFC, 0xFF, 0xFF, 0xFF}, data)

	p, err := Decode[*Point](reg, data)
	require.NoError(t, err)
	assert.Equal(t, &Point{X: 3, Y: -4}, p)

	byName, err := reg.Unmarshal(data, "Point")
	require.NoError(t, err)
	assert.Equal(t, p, byName)

	byValue, err := Decode[Point](reg, data)
	require.NoError(t, err)
	assert.Equal(t, Point{X: 3, Y: -4}, byValue)
}

func TestPoint_BigEndian(t *testing.T) {
	reg := New(WithByteOrder(binary.BigEndian))
	require.NoError(t, reg.Register(pointClass()))

	data, err := reg.Marshal(&Point{X: 3, Y: -4})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x03, 0xFF, 0xFF, 0xFF, 0xFC}, data)

	p, err := Decode[*Point](reg, data)
	require.NoError(t, err)
	assert.Equal(t, int32(-4), p.Y)
}

type Everything struct {
	I      int32
	F      float32
	D      float64
	S      string
	Sh     int16
	B      uint8
	Ok     bool
	Label  string `struct:"tag"`
	Ints   []int32
	Nested *Point
	Grid   [][]uint8
	Count  int
}

var everythingSchema = `
Everything {
  i      : int;
  f      : float;
  d      : double;
  s      : string;
  sh     : short;
  b      : byte;
  ok     : bool;
  tag    : static_string[4];
  ints   : array(int);
  nested : Point;
  grid   : array(array(byte));
  count  : int;
}`

func TestObject_AllTypesRoundTrip(t *testing.T) {
	reg := New(WithLogger(testutil.NewTestLogger(t)))
	require.NoError(t, reg.Register(pointClass()))
	require.NoError(t, reg.Register(&Class{Schema: everythingSchema, New: func() any { return &Everything{} }}))

	in := &Everything{
		I: -2147483648, F: 1.5, D: -0.25, S: "a≠b", Sh: -32768, B: 255, Ok: true,
		Label: "abcdef", Ints: []int32{1, -1, 0}, Nested: &Point{X: 7, Y: 8},
		Grid: [][]uint8{{1, 2}, {}, {3}}, Count: 12,
	}
	data, err := reg.Marshal(in)
	require.NoError(t, err)

	out, err := Decode[*Everything](reg, data)
	require.NoError(t, err)

	want := *in
	want.Label = "abcd"
	assert.Equal(t, &want, out)
}

type Line struct {
	A, B *Point
}

func TestObject_NilStructPacksZeroes(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Register(pointClass()))
	require.NoError(t, reg.Register(&Class{
		Schema: "Line {\n  a : Point;\n  b : Point;\n}",
		New:    func() any { return &Line{} },
	}))

	data, err := reg.Marshal(&Line{A: &Point{X: 1, Y: 2}})
	require.NoError(t, err)
	require.Len(t, data, 16)
	assert.Equal(t, make([]byte, 8), data[8:])

	out, err := Decode[*Line](reg, data)
	require.NoError(t, err)
	assert.Equal(t, &Point{}, out.B)
}

type Node struct {
	Next *Node
}

func TestObject_SelfReferenceIsBounded(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Register(&Class{
		Schema: "Node {\n  next : Node;\n}",
		New:    func() any { return &Node{} },
	}))

	_, err := reg.Marshal(&Node{})
	assert.ErrorIs(t, err, ErrTooDeep)
}

func TestObject_Polymorphism(t *testing.T) {
	reg := newShapes(t)

	in := &Drawing{
		Title: "scene",
		Main:  &Circle{Shape: Shape{Name: "c", X: 1}, R: 2},
		Items: []Drawable{
			&Square{Shape: Shape{Name: "s"}, Side: 3},
			&Shape{Name: "plain"},
			&Circle{R: 4},
		},
	}
	data, err := reg.Marshal(in)
	require.NoError(t, err)

	circle, _ := reg.Struct("Circle")
	// title: 4 byte length + 5 bytes, then the id of the concrete struct
	assert.Equal(t, circle.ID, int32(binary.LittleEndian.Uint32(data[9:13])))

	out, err := Decode[*Drawing](reg, data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
	assert.IsType(t, &Circle{}, out.Main)
	assert.IsType(t, &Square{}, out.Items[0])
	assert.IsType(t, &Shape{}, out.Items[1])
}

func TestObject_AbstractFallsBackToDeclaredStruct(t *testing.T) {
	reg := newShapes(t)

	data, err := reg.Marshal(&Drawing{Main: &Blob{Name: "b", X: 1}})
	require.NoError(t, err)

	out, err := Decode[*Drawing](reg, data)
	require.NoError(t, err)
	assert.Equal(t, &Shape{Name: "b", X: 1}, out.Main)
}

func TestObject_NilAbstractWritesDeclaredStruct(t *testing.T) {
	reg := newShapes(t)

	data, err := reg.Marshal(&Drawing{Title: "empty"})
	require.NoError(t, err)

	out, err := Decode[*Drawing](reg, data)
	require.NoError(t, err)
	assert.Equal(t, &Shape{}, out.Main)
	assert.Empty(t, out.Items)
}

func TestObject_UnknownAbstractIDIsFatal(t *testing.T) {
	reg := newShapes(t)

	buf := binpack.NewBuffer()
	buf.PutString("t")
	buf.PutInt32(999)

	_, err := reg.Unmarshal(buf.Bytes(), "Drawing")
	var unknown *UnknownStructIDError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, int32(999), unknown.ID)
	assert.Equal(t, 5, unknown.Offset)
}

func TestObject_NotStructable(t *testing.T) {
	reg := New()
	_, err := reg.Marshal(&Point{})

	var ns *NotStructableError
	require.ErrorAs(t, err, &ns)
	assert.Equal(t, "*nstruct.Point", ns.Type)
	assert.Contains(t, err.Error(), "non-STRUCTable")
}

func TestObject_ShortInput(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Register(pointClass()))

	_, err := reg.Unmarshal([]byte{1, 0, 0, 0, 2}, "Point")
	var sre *binpack.ShortReadError
	require.ErrorAs(t, err, &sre)

	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "y", fe.Field)
}

func TestObject_ReadObjectSharesCursor(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Register(pointClass()))

	buf := binpack.NewBuffer()
	require.NoError(t, reg.WriteObject(buf, &Point{X: 1, Y: 2}))
	require.NoError(t, reg.WriteObject(buf, &Point{X: 3, Y: 4}))

	cur := binpack.NewCursor(buf.Bytes())
	first, err := reg.ReadObject(cur, pointClass())
	require.NoError(t, err)
	second, err := reg.ReadObject(cur, int32(1))
	require.NoError(t, err)

	assert.Equal(t, &Point{X: 1, Y: 2}, first)
	assert.Equal(t, &Point{X: 3, Y: 4}, second)
	assert.True(t, cur.EOF())
}

func TestObject_ReadObjectWithoutClassDispatchesOnID(t *testing.T) {
	reg := newShapes(t)
	circle, ok := reg.Struct("Circle")
	require.True(t, ok)

	buf := binpack.NewBuffer()
	buf.PutInt32(1)
	require.NoError(t, reg.WriteObject(buf, &Point{X: 3, Y: -4}))
	buf.PutInt32(circle.ID)
	require.NoError(t, reg.WriteObject(buf, &Circle{Shape: Shape{Name: "c"}, R: 2}))

	cur := binpack.NewCursor(buf.Bytes())
	first, err := reg.ReadObject(cur, nil)
	require.NoError(t, err)
	assert.Equal(t, &Point{X: 3, Y: -4}, first)

	second, err := reg.ReadObject(cur, nil)
	require.NoError(t, err)
	assert.Equal(t, &Circle{Shape: Shape{Name: "c"}, R: 2}, second)
	assert.True(t, cur.EOF())

	_, err = reg.Unmarshal([]byte{0x63, 0, 0, 0}, nil)
	var unknown *UnknownStructIDError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, int32(99), unknown.ID)

	_, err = reg.Unmarshal([]byte{1, 0}, nil)
	var sre *binpack.ShortReadError
	require.ErrorAs(t, err, &sre)
}

func TestObject_TypeMismatch(t *testing.T) {
	type Wrong struct {
		X string
		Y int32
	}
	reg := New()
	require.NoError(t, reg.Register(&Class{Schema: pointSchema, New: func() any { return &Wrong{} }}))

	_, err := reg.Marshal(&Wrong{X: "no"})
	var te *TypeError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "int", te.Want)
}

// flaky yields one more item on every pass after the first.
type flaky struct {
	n      int
	passes int
}

func (f *flaky) ForEach(fn func(v any) bool) {
	f.passes++
	count := f.n
	if f.passes > 1 {
		count++
	}
	for i := 0; i < count; i++ {
		if !fn(int32(i)) {
			return
		}
	}
}

type Bag struct {
	Items any
}

var bagSchema = "Bag {\n  items : iter(int);\n}"

func TestIter_Sources(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Register(&Class{Schema: bagSchema, New: func() any { return &Bag{} }}))

	want := []byte{2, 0, 0, 0, 5, 0, 0, 0, 6, 0, 0, 0}
	tests := []struct {
		name  string
		items any
		want  []byte
	}{
		{"slice", []int32{5, 6}, want},
		{"seq", slices.Values([]int32{5, 6}), want},
		{"any func", iter.Seq[any](func(yield func(any) bool) {
			_ = yield(5) && yield(6)
		}), want},
		// a negative pass count keeps flaky stable across both passes
		{"iterable", &flaky{n: 2, passes: -10}, []byte{2, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0}},
		{"map values by key", map[string]int32{"b": 6, "a": 5}, want},
		{"nil", nil, []byte{0, 0, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := reg.Marshal(&Bag{Items: tt.items})
			require.NoError(t, err)
			assert.Equal(t, tt.want, data)
		})
	}

	out, err := Decode[*Bag](reg, want)
	require.NoError(t, err)
	assert.Equal(t, []any{int32(5), int32(6)}, out.Items)
}

func TestIter_LengthMismatchIsFatalByDefault(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Register(&Class{Schema: bagSchema, New: func() any { return &Bag{} }}))

	_, err := reg.Marshal(&Bag{Items: &flaky{n: 2}})
	var lenErr *IterLengthError
	require.ErrorAs(t, err, &lenErr)
	assert.Equal(t, 2, lenErr.Declared)
	assert.Equal(t, 3, lenErr.Actual)
	assert.Equal(t, "Bag", lenErr.Struct)
	assert.Equal(t, "items", lenErr.Field)
}

func TestIter_LengthMismatchLenient(t *testing.T) {
	logger, rec := testutil.NewRecordingLogger(t)
	reg := New(WithStrictIterators(false), WithLogger(logger))
	require.NoError(t, reg.Register(&Class{Schema: bagSchema, New: func() any { return &Bag{} }}))

	data, err := reg.Marshal(&Bag{Items: &flaky{n: 2}})
	require.NoError(t, err)

	// The declared length disagrees with what follows it.
	assert.Equal(t, []byte{2, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 2, 0, 0, 0}, data)
	assert.True(t, rec.Contains(slog.LevelWarn, "iterator length changed between passes"))
}

func TestIter_UnsupportedSource(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Register(&Class{Schema: bagSchema, New: func() any { return &Bag{} }}))

	_, err := reg.Marshal(&Bag{Items: 42})
	var te *TypeError
	require.ErrorAs(t, err, &te)
	assert.True(t, errors.As(err, new(*FieldError)))
}
