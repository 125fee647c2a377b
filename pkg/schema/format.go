package schema

import (
	"strconv"
	"strings"
)

const fieldIndent = "  "

// FormatStruct regenerates canonical schema text for def.
//
// With internalOnly set only the field lines are produced, which is what
// InheritSchema splices into a child declaration. With noHelperExprs set
// get and set expressions are omitted.
func FormatStruct(def *StructDef, internalOnly, noHelperExprs bool) string {
	var sb strings.Builder
	if !internalOnly {
		sb.WriteString(def.Name)
		if def.ID != 0 {
			sb.WriteString(" id=")
			sb.WriteString(strconv.Itoa(int(def.ID)))
		}
		sb.WriteString(" {\n")
	}
	for _, f := range def.Fields {
		writeField(&sb, f, noHelperExprs)
	}
	if !internalOnly {
		sb.WriteString("}\n")
	}
	return sb.String()
}

func writeField(sb *strings.Builder, f Field, noHelperExprs bool) {
	sb.WriteString(fieldIndent)
	sb.WriteString(f.Name)
	sb.WriteString(" : ")
	sb.WriteString(f.Type.String())
	if !noHelperExprs && f.Get != "" {
		sb.WriteString(" | ")
		sb.WriteString(f.Get)
		if f.Set != "" {
			sb.WriteString(" | ")
			sb.WriteString(f.Set)
		}
	}
	sb.WriteString(";\n")
}

// Format regenerates schema text for a list of definitions, separated by
// blank lines.
func Format(defs []*StructDef, noHelperExprs bool) string {
	parts := make([]string, len(defs))
	for i, def := range defs {
		parts[i] = FormatStruct(def, false, noHelperExprs)
	}
	return strings.Join(parts, "\n")
}

// InheritSchema returns the opening of a schema declaration for childName
// that already contains every field of parent. The caller appends its own
// field lines and the closing brace:
//
//	src := schema.InheritSchema("Circle", shapeDef) + "  radius : float;\n}"
func InheritSchema(childName string, parent *StructDef) string {
	return childName + " {\n" + FormatStruct(parent, true, false)
}
