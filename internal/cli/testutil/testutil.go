// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/structkit/internal/cli/output"
	"github.com/leapstack-labs/structkit/pkg/container"
	"github.com/leapstack-labs/structkit/pkg/nstruct"
	"github.com/leapstack-labs/structkit/pkg/schema"
)

// ShapesSchema is the schema file written by SetupTestProject.
const ShapesSchema = `Point id=1 {
  x : int;
  y : int;
}

Scene id=2 {
  name : string;
  points : array(Point);
  main : abstract(Point);
}
`

// SetupTestProject creates a temporary project with a config file, a
// schema and a container file at data/scene.bin. The catalog lives under
// the project.
func SetupTestProject(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()
	for _, dir := range []string{"schemas", "data"} {
		if err := os.MkdirAll(filepath.Join(tmpDir, dir), 0755); err != nil {
			t.Fatalf("failed to create directory %s: %v", dir, err)
		}
	}

	cfg := "schemas:\n  - schemas/shapes.struct\ncatalog_path: .structkit/catalog.db\n"
	WriteFile(t, filepath.Join(tmpDir, "structkit.yaml"), []byte(cfg))
	WriteFile(t, filepath.Join(tmpDir, "schemas", "shapes.struct"), []byte(ShapesSchema))
	WriteFile(t, filepath.Join(tmpDir, "data", "scene.bin"), SceneFile(t))

	return tmpDir
}

// WriteFile writes data to path or fails the test.
func WriteFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// SceneFile encodes a container holding one Scene block and one raw NOTE
// block, using ShapesSchema.
func SceneFile(t *testing.T) []byte {
	t.Helper()

	reg := nstruct.New()
	defs, err := schema.Parse(ShapesSchema)
	if err != nil {
		t.Fatalf("failed to parse schema: %v", err)
	}
	for _, def := range defs {
		name := def.Name
		cls := &nstruct.Class{
			Schema: schema.FormatStruct(def, false, false),
			New:    func() any { return nstruct.NewRecord(name) },
		}
		if err := reg.Register(cls); err != nil {
			t.Fatalf("failed to register %s: %v", name, err)
		}
	}

	point := func(x, y int32) *nstruct.Record {
		p := nstruct.NewRecord("Point")
		p.Set("x", x)
		p.Set("y", y)
		return p
	}
	scene := nstruct.NewRecord("Scene")
	scene.Set("name", "demo")
	scene.Set("points", []any{point(1, 2), point(3, 4)})
	scene.Set("main", point(5, 6))

	data, err := container.NewWriter(reg).Encode([]container.Block{
		{Type: "DATA", Payload: container.StructPayload{Object: scene}},
		{Type: "NOTE", Payload: container.NewRawString("hello")},
	})
	if err != nil {
		t.Fatalf("failed to encode scene: %v", err)
	}
	return data
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode and TTY state.
// Output is captured in buffers for inspection.
func NewTestRenderer(mode output.OutputMode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// NewTestRendererText creates a new test renderer in text mode (simulated TTY).
func NewTestRendererText() *TestRenderer {
	return NewTestRenderer(output.ModeText, true)
}

// NewTestRendererMarkdown creates a new test renderer in markdown mode.
func NewTestRendererMarkdown() *TestRenderer {
	return NewTestRenderer(output.ModeMarkdown, false)
}

// NewTestRendererJSON creates a new test renderer in JSON mode.
func NewTestRendererJSON() *TestRenderer {
	return NewTestRenderer(output.ModeJSON, false)
}

// Output returns the combined stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

// Reset clears both output buffers.
func (tr *TestRenderer) Reset() {
	tr.Out.Reset()
	tr.ErrOut.Reset()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertContains checks that the string contains the expected substring.
func AssertContains(t *testing.T, s, expected string) {
	t.Helper()
	if !strings.Contains(s, expected) {
		t.Errorf("string %q does not contain expected %q", s, expected)
	}
}

// AssertNotContains checks that the string does not contain the substring.
func AssertNotContains(t *testing.T, s, unexpected string) {
	t.Helper()
	if strings.Contains(s, unexpected) {
		t.Errorf("string %q unexpectedly contains %q", s, unexpected)
	}
}

// AssertValidMarkdown performs basic markdown validation.
// It checks for unclosed code fences and basic structure.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	// Check for balanced code fences
	fenceCount := strings.Count(md, "```")
	if fenceCount%2 != 0 {
		t.Errorf("unbalanced code fences in markdown: found %d occurrences", fenceCount)
	}

	// Check that headers have content
	lines := strings.Split(md, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d: %q", i+1, line)
		}
	}
}

// AssertOutputMode checks that the renderer output matches expected mode characteristics.
func AssertOutputMode(t *testing.T, tr *TestRenderer, expectedMode output.OutputMode) {
	t.Helper()

	combinedOutput := tr.Output() + tr.ErrorOutput()

	switch expectedMode {
	case output.ModeMarkdown:
		AssertNoANSI(t, combinedOutput)
		// Markdown mode should not contain ANSI codes
	case output.ModeText:
		// Text mode may contain ANSI codes if TTY
		// No specific assertion needed
	case output.ModeJSON:
		AssertNoANSI(t, combinedOutput)
		// JSON mode should not contain ANSI codes
	}
}
