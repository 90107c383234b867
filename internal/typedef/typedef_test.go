package typedef_test

import (
	"os"
	"path/filepath"
	"testing"

	"veld/internal/conformance"
	"veld/internal/heap"
	"veld/internal/meta"
	"veld/internal/typedef"
)

const sample = `
[package]
name = "geometry"

[[protocol]]
name = "Drawable"

[[protocol]]
name = "AnyRef"
marker = true

[[struct]]
name = "Point"
fields = [
  { name = "x", type = "Int64" },
  { name = "y", type = "Int64" },
]

[[enum]]
name = "Shape"
cases = ["circle", "square"]
payloads = ["Point", ""]

[[class]]
name = "Canvas"
fields = [{ name = "origin", type = "Point" }]

[[class]]
name = "Window"
super = "Canvas"

[[conformance]]
type = "Point"
protocol = "Drawable"
`

func build(t *testing.T, src string) (*meta.Universe, *conformance.Cache, *typedef.Index) {
	t.Helper()
	f, err := typedef.Parse(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	u := meta.NewUniverse(heap.NewMem(), nil)
	confs := conformance.New(nil)
	idx, err := typedef.Build(u, confs, f)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return u, confs, idx
}

func TestBuildMaterializesDeclarations(t *testing.T) {
	_, confs, idx := build(t, sample)

	point := idx.Types["Point"]
	if point == nil || point.Kind != meta.KindStruct {
		t.Fatalf("Point not built as a struct")
	}
	if point.Ops.Size != 16 || !point.Ops.POD {
		t.Fatalf("Point layout = size %d pod %v", point.Ops.Size, point.Ops.POD)
	}

	shape := idx.Types["Shape"]
	if shape == nil || shape.Kind != meta.KindEnum {
		t.Fatalf("Shape not built as an enum")
	}
	if got := len(shape.Enum.Cases); got != 2 {
		t.Fatalf("Shape cases = %d, want 2", got)
	}

	window := idx.Types["Window"]
	if window == nil || window.Superclass() != idx.Types["Canvas"] {
		t.Fatalf("Window superclass not wired to Canvas")
	}

	if _, ok := confs.Lookup(point, idx.Protocols["Drawable"]); !ok {
		t.Fatalf("declared conformance not registered")
	}
	if !idx.Protocols["AnyRef"].RefOnly {
		t.Fatalf("marker protocol lost its flag")
	}
}

func TestTupleTypeExpressions(t *testing.T) {
	u, _, idx := build(t, `
[package]
name = "tuples"

[[struct]]
name = "Pair"
fields = [{ name = "p", type = "(Int64, (Bool, Bool))" }]
`)
	b := u.Builtins()
	want := u.Tuple(b.Int64, u.Tuple(b.Bool, b.Bool))
	if idx.Types["Pair"].Struct.Fields[0].Type != want {
		t.Fatalf("tuple expression must resolve to the uniqued tuple")
	}
}

func TestBuildRejectsUnknownType(t *testing.T) {
	f, err := typedef.Parse(`
[package]
name = "bad"

[[struct]]
name = "S"
fields = [{ name = "x", type = "Missing" }]
`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	u := meta.NewUniverse(heap.NewMem(), nil)
	_, err = typedef.Build(u, conformance.New(nil), f)
	if err == nil {
		t.Fatalf("unknown field type must be rejected")
	}
}

func TestBuildRejectsDuplicate(t *testing.T) {
	f, err := typedef.Parse(`
[package]
name = "bad"

[[struct]]
name = "S"

[[struct]]
name = "S"
`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	u := meta.NewUniverse(heap.NewMem(), nil)
	if _, err := typedef.Build(u, conformance.New(nil), f); err == nil {
		t.Fatalf("duplicate declaration must be rejected")
	}
}

func TestNormalizationFoldsEquivalentNames(t *testing.T) {
	// "é" written precomposed in the declaration and decomposed at the
	// use site must name the same type.
	_, _, idx := build(t, `
[package]
name = "norm"

[[struct]]
name = "Café"

[[struct]]
name = "Menu"
fields = [{ name = "c", type = "Café" }]
`)
	menu := idx.Types["Menu"]
	if menu == nil {
		t.Fatalf("Menu not built")
	}
	if menu.Struct.Fields[0].Type != idx.Types["Café"] {
		t.Fatalf("normalization forms must resolve to one descriptor")
	}
}

func TestLoadFileRequiresPackage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, typedef.DefFileName)
	if err := os.WriteFile(path, []byte("[[struct]]\nname = \"S\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := typedef.LoadFile(path); err == nil {
		t.Fatalf("file without [package] must be rejected")
	}
}

func TestFindWalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	want := filepath.Join(root, typedef.DefFileName)
	if err := os.WriteFile(want, []byte("[package]\nname = \"p\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, ok, err := typedef.Find(nested)
	if err != nil || !ok {
		t.Fatalf("Find = (%v, %v)", ok, err)
	}
	if got != want {
		t.Fatalf("Find = %q, want %q", got, want)
	}
}
