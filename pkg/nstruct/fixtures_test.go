package nstruct

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

type Point struct {
	X, Y int32
}

var pointSchema = `
Point {
  x : int;
  y : int;
}`

func pointClass() *Class {
	return &Class{Schema: pointSchema, New: func() any { return &Point{} }}
}

type Drawable interface {
	Area() float64
}

type Shape struct {
	Name string
	X    float32
}

func (s *Shape) Area() float64 { return 0 }

type Circle struct {
	Shape
	R float32
}

func (c *Circle) Area() float64 { return math.Pi * float64(c.R) * float64(c.R) }

type Square struct {
	Shape
	Side float32
}

func (s *Square) Area() float64 { return float64(s.Side) * float64(s.Side) }

// Blob has Shape's fields but does not extend it.
type Blob struct {
	Name string
	X    float32
}

func (b *Blob) Area() float64 { return 0 }

type Drawing struct {
	Title string
	Main  Drawable
	Items []Drawable
}

var shapeClass = &Class{
	Schema: "Shape {\n  name : string;\n  x : float;\n}",
	New:    func() any { return &Shape{} },
}

// newShapes returns a registry with Point, the Shape hierarchy and Drawing.
func newShapes(t *testing.T, opts ...Option) *Registry {
	t.Helper()
	reg := New(opts...)
	require.NoError(t, reg.Register(pointClass()))
	require.NoError(t, reg.Register(shapeClass))
	require.NoError(t, reg.Register(&Class{
		Parent: "Shape",
		Schema: "Circle {\n  r : float;\n}",
		New:    func() any { return &Circle{} },
	}))

	squareSchema, err := Inherit("Square", shapeClass)
	require.NoError(t, err)
	require.NoError(t, reg.Register(&Class{
		Parent: "Shape",
		Schema: squareSchema + "  side : float;\n}",
		New:    func() any { return &Square{} },
	}))

	require.NoError(t, reg.Register(&Class{
		Schema: "Blob {\n  name : string;\n  x : float;\n}",
		New:    func() any { return &Blob{} },
	}))
	require.NoError(t, reg.Register(&Class{
		Schema: `
Drawing {
  title : string;
  main  : abstract(Shape);
  items : array(abstract(Shape));
}`,
		New: func() any { return &Drawing{} },
	}))
	return reg
}
