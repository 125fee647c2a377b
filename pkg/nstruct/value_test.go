package nstruct

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToValue_Point(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Register(pointClass()))

	v, err := reg.ToValue(&Point{X: 3, Y: -4})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, v.Keys)
	x, _ := v.Get("x")
	assert.Equal(t, int64(3), x)
}

func TestToJSON_AbstractCarriesType(t *testing.T) {
	reg := newShapes(t)

	out, err := reg.ToJSON(&Drawing{
		Title: "t",
		Main:  &Circle{Shape: Shape{Name: "c", X: 1}, R: 2},
		Items: []Drawable{&Square{Side: 3}},
	})
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"title": "t",
		"main": {"_type": "Circle", "name": "c", "x": 1, "r": 2},
		"items": [{"_type": "Square", "name": "", "x": 0, "side": 3}]
	}`, string(out))

	s := string(out)
	assert.Less(t, strings.Index(s, `"title"`), strings.Index(s, `"main"`))
	assert.Less(t, strings.Index(s, `"_type"`), strings.Index(s, `"name"`))
}

func TestToValue_UsesGetExpressions(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Register(&Class{Schema: polySchema, New: func() any { return &Poly{} }}))

	v, err := reg.ToValue(&Poly{Pts: []*Point{{X: 2}}, Scale: 3})
	require.NoError(t, err)
	pts, _ := v.Get("pts")
	assert.Equal(t, []any{int64(6)}, pts)
}

func TestToValue_NotStructable(t *testing.T) {
	_, err := New().ToValue(42)
	var ns *NotStructableError
	assert.ErrorAs(t, err, &ns)
}

func TestFieldMapping(t *testing.T) {
	type Tagged struct {
		Renamed int32 `struct:"x"`
		Y       int32
		Ignored int32 `struct:"-"`
	}
	reg := New()
	require.NoError(t, reg.Register(&Class{Schema: pointSchema, New: func() any { return &Tagged{} }}))

	data, err := reg.Marshal(&Tagged{Renamed: 1, Y: 2, Ignored: 9})
	require.NoError(t, err)
	assert.Equal(t, pointBytes, data)

	out, err := Decode[*Tagged](reg, data)
	require.NoError(t, err)
	assert.Equal(t, &Tagged{Renamed: 1, Y: 2}, out)
}
