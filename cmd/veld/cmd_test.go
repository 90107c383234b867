package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	"veld/internal/typedef"
)

func TestInitThenOpenDefs(t *testing.T) {
	dir := t.TempDir()
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)

	if err := runInit(cmd, []string{filepath.Join(dir, "shapes")}); err != nil {
		t.Fatalf("init: %v", err)
	}
	path := filepath.Join(dir, "shapes", typedef.DefFileName)

	l, err := openDefs([]string{path})
	if err != nil {
		t.Fatalf("openDefs: %v", err)
	}
	if l.Index.Package != "shapes" {
		t.Fatalf("package = %q, want shapes", l.Index.Package)
	}
	point := l.Index.Types["Point"]
	if point == nil {
		t.Fatalf("starter definitions must declare Point")
	}
	if _, ok := l.Confs.Lookup(point, l.Index.Protocols["Printable"]); !ok {
		t.Fatalf("starter conformance not registered")
	}
}

func TestInitRefusesExistingDefs(t *testing.T) {
	dir := t.TempDir()
	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})

	if err := runInit(cmd, []string{dir}); err != nil {
		t.Fatalf("first init: %v", err)
	}
	if err := runInit(cmd, []string{dir}); err == nil {
		t.Fatalf("second init must refuse to overwrite")
	}
}
