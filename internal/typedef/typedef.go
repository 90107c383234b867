// Package typedef loads type definition files and materializes their
// declarations as live descriptors. A definition file is the textual form a
// host front end would emit for the runtime to consume.
package typedef

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/unicode/norm"

	"veld/internal/conformance"
	"veld/internal/meta"
)

// DefFileName is the canonical definition file name looked up by Find.
const DefFileName = "veld.toml"

// File is the decoded shape of a definition file.
type File struct {
	Package      PackageDecl       `toml:"package"`
	Structs      []StructDecl      `toml:"struct"`
	Enums        []EnumDecl        `toml:"enum"`
	Classes      []ClassDecl       `toml:"class"`
	Protocols    []ProtocolDecl    `toml:"protocol"`
	Conformances []ConformanceDecl `toml:"conformance"`
}

type PackageDecl struct {
	Name string `toml:"name"`
}

type FieldDecl struct {
	Name string `toml:"name"`
	Type string `toml:"type"`
}

type StructDecl struct {
	Name   string      `toml:"name"`
	Fields []FieldDecl `toml:"fields"`
}

type EnumDecl struct {
	Name     string   `toml:"name"`
	Cases    []string `toml:"cases"`
	Payloads []string `toml:"payloads"`
}

type ClassDecl struct {
	Name   string      `toml:"name"`
	Super  string      `toml:"super"`
	Fields []FieldDecl `toml:"fields"`
}

type ProtocolDecl struct {
	Name             string `toml:"name"`
	ClassConstrained bool   `toml:"class_constrained"`
	Marker           bool   `toml:"marker"`
}

type ConformanceDecl struct {
	Type     string `toml:"type"`
	Protocol string `toml:"protocol"`
}

// Find walks up from startDir looking for a veld.toml.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, DefFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// LoadFile parses and validates one definition file.
func LoadFile(path string) (*File, error) {
	var f File
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if !md.IsDefined("package") {
		return nil, fmt.Errorf("%s: missing [package] section", path)
	}
	if f.Package.Name == "" {
		return nil, fmt.Errorf("%s: package.name must not be empty", path)
	}
	return &f, nil
}

// Parse decodes a definition from source text, for embedded definitions and
// tests.
func Parse(src string) (*File, error) {
	var f File
	if _, err := toml.Decode(src, &f); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	return &f, nil
}

// Index is the result of building a file: every declared descriptor and
// protocol, addressable under its normalized name.
type Index struct {
	Package   string
	Types     map[string]*meta.Descriptor
	Protocols map[string]*meta.Protocol

	// Order preserves declaration order for listing output.
	Order []string

	u *meta.Universe
}

// Build materializes every declaration of f into u and registers the declared
// conformances with confs. Declarations may reference builtins and any type
// declared earlier in the same file.
func Build(u *meta.Universe, confs *conformance.Cache, f *File) (*Index, error) {
	idx := &Index{
		Package:   f.Package.Name,
		Types:     make(map[string]*meta.Descriptor),
		Protocols: make(map[string]*meta.Protocol),
		u:         u,
	}
	seedBuiltins(u, idx)

	for _, p := range f.Protocols {
		name, err := ident(p.Name)
		if err != nil {
			return nil, fmt.Errorf("protocol: %w", err)
		}
		if _, dup := idx.Protocols[name]; dup {
			return nil, fmt.Errorf("protocol %q declared twice", name)
		}
		if p.Marker {
			idx.Protocols[name] = meta.NewMarkerProtocol(name)
		} else {
			idx.Protocols[name] = meta.NewProtocol(name, p.ClassConstrained)
		}
	}

	for _, s := range f.Structs {
		name, fields, err := idx.fields(s.Name, s.Fields)
		if err != nil {
			return nil, fmt.Errorf("struct: %w", err)
		}
		if err := idx.declare(name, u.NewStruct(name, fields)); err != nil {
			return nil, err
		}
	}
	for _, e := range f.Enums {
		name, err := ident(e.Name)
		if err != nil {
			return nil, fmt.Errorf("enum: %w", err)
		}
		if len(e.Payloads) != 0 && len(e.Payloads) != len(e.Cases) {
			return nil, fmt.Errorf("enum %q: %d payloads for %d cases", name, len(e.Payloads), len(e.Cases))
		}
		payloads := make([]*meta.Descriptor, len(e.Cases))
		for i, p := range e.Payloads {
			if p == "" {
				continue
			}
			d, err := idx.resolve(p)
			if err != nil {
				return nil, fmt.Errorf("enum %q: %w", name, err)
			}
			payloads[i] = d
		}
		if err := idx.declare(name, u.NewEnum(name, e.Cases, payloads)); err != nil {
			return nil, err
		}
	}
	for _, c := range f.Classes {
		name, fields, err := idx.fields(c.Name, c.Fields)
		if err != nil {
			return nil, fmt.Errorf("class: %w", err)
		}
		var super *meta.Descriptor
		if c.Super != "" {
			s, err := idx.resolve(c.Super)
			if err != nil {
				return nil, fmt.Errorf("class %q: %w", name, err)
			}
			if s.Kind != meta.KindClass {
				return nil, fmt.Errorf("class %q: super %q is not a class", name, c.Super)
			}
			super = s
		}
		if err := idx.declare(name, u.NewClass(name, super, fields, nil)); err != nil {
			return nil, err
		}
	}

	var records []conformance.Record
	for _, c := range f.Conformances {
		t, err := idx.resolve(c.Type)
		if err != nil {
			return nil, fmt.Errorf("conformance: %w", err)
		}
		p, ok := idx.Protocols[norm.NFC.String(c.Protocol)]
		if !ok {
			return nil, fmt.Errorf("conformance: unknown protocol %q", c.Protocol)
		}
		records = append(records, conformance.Record{
			Type:     t,
			Protocol: p,
			Witness:  &meta.WitnessTable{Protocol: p},
		})
	}
	confs.Register(records)
	return idx, nil
}

// Load combines LoadFile and Build for the common CLI path.
func Load(u *meta.Universe, confs *conformance.Cache, path string) (*Index, error) {
	f, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return Build(u, confs, f)
}

func seedBuiltins(u *meta.Universe, idx *Index) {
	b := u.Builtins()
	for name, d := range map[string]*meta.Descriptor{
		"Bool":       b.Bool,
		"Int8":       b.Int8,
		"Int16":      b.Int16,
		"Int32":      b.Int32,
		"Int64":      b.Int64,
		"Float32":    b.Float32,
		"Float64":    b.Float64,
		"RawPointer": b.RawPointer,
	} {
		idx.Types[name] = d
	}
}

func (idx *Index) declare(name string, d *meta.Descriptor) error {
	if _, dup := idx.Types[name]; dup {
		return fmt.Errorf("type %q declared twice", name)
	}
	idx.Types[name] = d
	idx.Order = append(idx.Order, name)
	return nil
}

// resolve looks up a type expression: a declared or builtin name, or a tuple
// written "(A, B)".
func (idx *Index) resolve(name string) (*meta.Descriptor, error) {
	name, err := ident(name)
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(name, "(") && strings.HasSuffix(name, ")") {
		return idx.resolveTuple(name)
	}
	d, ok := idx.Types[name]
	if !ok {
		return nil, fmt.Errorf("unknown type %q", name)
	}
	return d, nil
}

func (idx *Index) resolveTuple(expr string) (*meta.Descriptor, error) {
	inner := strings.TrimSpace(expr[1 : len(expr)-1])
	var elems []*meta.Descriptor
	if inner != "" {
		for _, part := range splitTop(inner) {
			d, err := idx.resolve(strings.TrimSpace(part))
			if err != nil {
				return nil, fmt.Errorf("tuple %q: %w", expr, err)
			}
			elems = append(elems, d)
		}
	}
	return idx.u.Tuple(elems...), nil
}

// splitTop splits on commas outside any nesting parentheses.
func splitTop(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

func (idx *Index) fields(name string, decls []FieldDecl) (string, []meta.ClassField, error) {
	name, err := ident(name)
	if err != nil {
		return "", nil, err
	}
	fields := make([]meta.ClassField, 0, len(decls))
	for _, fd := range decls {
		ft, err := idx.resolve(fd.Type)
		if err != nil {
			return "", nil, fmt.Errorf("%q field %q: %w", name, fd.Name, err)
		}
		fields = append(fields, meta.ClassField{Name: fd.Name, Type: ft})
	}
	return name, fields, nil
}

// ident canonicalizes a declared name to NFC so that definitions written in
// either normalization form name the same type.
func ident(name string) (string, error) {
	if name == "" {
		return "", errors.New("empty name")
	}
	return norm.NFC.String(name), nil
}
