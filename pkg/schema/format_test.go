package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatStruct(t *testing.T) {
	def := &StructDef{
		Name: "Shape",
		ID:   3,
		Fields: []Field{
			{Name: "x", Type: &Type{Kind: KindFloat}},
			{Name: "tag", Type: &Type{Kind: KindStaticString, MaxLen: 8}, Get: "obj.tag.upper()"},
			{Name: "pts", Type: &Type{Kind: KindArray, IterVar: "p", Elem: &Type{Kind: KindStruct, StructName: "Point"}}, Get: "p", Set: "p = value"},
		},
	}

	full := FormatStruct(def, false, false)
	assert.Equal(t, "Shape id=3 {\n"+
		"  x : float;\n"+
		"  tag : static_string[8] | obj.tag.upper();\n"+
		"  pts : array(p, Point) | p | p = value;\n"+
		"}\n", full)

	internal := FormatStruct(def, true, true)
	assert.Equal(t, "  x : float;\n"+
		"  tag : static_string[8];\n"+
		"  pts : array(p, Point);\n", internal)
}

func TestFormat_ReparsesToSameDefinition(t *testing.T) {
	src := `
Everything id=9 {
  a : int | obj.a * 2;
  b : static_string[4];
  c : iter(k, abstract(Base)) | k.value | k.value = v;
  d : array(array(short));
}
Base {
  v : double;
}`
	defs, err := Parse(src)
	require.NoError(t, err)

	again, err := Parse(Format(defs, false))
	require.NoError(t, err)
	assert.Equal(t, defs, again)
}

func TestInheritSchema(t *testing.T) {
	parent, err := ParseOne("Shape {\n  x : float;\n  y : float;\n}")
	require.NoError(t, err)

	src := InheritSchema("Circle", parent) + "  r : float;\n}"
	child, err := ParseOne(src)
	require.NoError(t, err)

	assert.Equal(t, "Circle", child.Name)
	require.Len(t, child.Fields, 3)
	assert.Equal(t, "x", child.Fields[0].Name)
	assert.Equal(t, "y", child.Fields[1].Name)
	assert.Equal(t, "r", child.Fields[2].Name)

	// Chaining one more level keeps all inherited fields.
	grand, err := ParseOne(InheritSchema("Ring", child) + "  inner : float;\n}")
	require.NoError(t, err)
	assert.Len(t, grand.Fields, 4)
}

func TestStructDef_Clone(t *testing.T) {
	def, err := ParseOne("A {\n  xs : array(int);\n}")
	require.NoError(t, err)

	c := def.Clone()
	c.Fields[0].Type.Elem.Kind = KindByte
	assert.Equal(t, KindInt, def.Fields[0].Type.Elem.Kind)
}
