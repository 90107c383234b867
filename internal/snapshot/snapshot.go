// Package snapshot serializes the descriptor table of a universe for offline
// inspection and diffing of ABI layouts between toolchain runs.
package snapshot

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"fortio.org/safecast"
	"github.com/vmihailenco/msgpack/v5"

	"veld/internal/meta"
)

// Current schema version - increment when Payload format changes
const schemaVersion uint16 = 1

// Record is the serialized form of one published descriptor.
type Record struct {
	Ref    uint32
	Name   string
	Kind   uint8
	Size   uint32
	Align  uint32
	Stride uint32

	POD            bool
	BitwiseTakable bool
	Inline         bool

	// Super is the superclass ref, 0 for none.
	Super uint32

	// Aggregate shape, when the kind has one.
	FieldNames   []string
	FieldOffsets []uint32
	Cases        []string
}

// Payload is the full snapshot of one universe.
type Payload struct {
	Schema  uint16
	Package string
	Types   []Record
}

// Capture walks every published descriptor of u into a payload.
func Capture(u *meta.Universe, pkg string) (*Payload, error) {
	descs := u.Descriptors()
	p := &Payload{Schema: schemaVersion, Package: pkg, Types: make([]Record, 0, len(descs))}
	for _, d := range descs {
		r, err := record(d)
		if err != nil {
			return nil, fmt.Errorf("snapshot %q: %w", d.Name, err)
		}
		p.Types = append(p.Types, r)
	}
	return p, nil
}

func record(d *meta.Descriptor) (Record, error) {
	size, err := safecast.Conv[uint32](d.Ops.Size)
	if err != nil {
		return Record{}, err
	}
	align, err := safecast.Conv[uint32](d.Ops.Align)
	if err != nil {
		return Record{}, err
	}
	stride, err := safecast.Conv[uint32](d.Ops.Stride)
	if err != nil {
		return Record{}, err
	}
	r := Record{
		Ref:            uint32(d.Ref()),
		Name:           d.Name,
		Kind:           uint8(d.Kind),
		Size:           size,
		Align:          align,
		Stride:         stride,
		POD:            d.Ops.POD,
		BitwiseTakable: d.Ops.BitwiseTakable,
		Inline:         d.Ops.Inline,
	}
	if s := d.Superclass(); s != nil {
		r.Super = uint32(s.Ref())
	}
	switch d.Kind {
	case meta.KindStruct:
		for i, f := range d.Struct.Fields {
			off, err := safecast.Conv[uint32](d.Struct.Offsets[i])
			if err != nil {
				return Record{}, err
			}
			r.FieldNames = append(r.FieldNames, f.Name)
			r.FieldOffsets = append(r.FieldOffsets, off)
		}
	case meta.KindClass:
		for i, f := range d.Class.Fields {
			off, err := safecast.Conv[uint32](d.Class.FieldOffsets[i])
			if err != nil {
				return Record{}, err
			}
			r.FieldNames = append(r.FieldNames, f.Name)
			r.FieldOffsets = append(r.FieldOffsets, off)
		}
	case meta.KindEnum:
		r.Cases = append(r.Cases, d.Enum.Cases...)
	}
	return r, nil
}

// Write serializes a payload to path atomically and returns the encoded
// size in bytes.
func Write(path string, p *Payload) (int, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}
	f, err := os.CreateTemp(filepath.Dir(path), "tmp-*")
	if err != nil {
		return 0, err
	}
	defer os.Remove(f.Name())

	cw := &countingWriter{w: f}
	enc := msgpack.NewEncoder(cw)
	if err := enc.Encode(p); err != nil {
		f.Close()
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, err
	}
	return cw.n, os.Rename(f.Name(), path)
}

type countingWriter struct {
	w io.Writer
	n int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += n
	return n, err
}

// Read loads a payload written by Write, rejecting unknown schemas.
func Read(path string) (*Payload, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var p Payload
	if err := msgpack.NewDecoder(f).Decode(&p); err != nil {
		return nil, fmt.Errorf("%s: failed to decode snapshot: %w", path, err)
	}
	if p.Schema != schemaVersion {
		return nil, fmt.Errorf("%s: snapshot schema %d, want %d", path, p.Schema, schemaVersion)
	}
	return &p, nil
}
