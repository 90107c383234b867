// Package meta implements the run-time type representation for Veld:
// type descriptors, their value-lifecycle operations tables, and the
// uniquing universe that guarantees one canonical descriptor per type.
package meta

import "fmt"

// Ref is a stable identifier for a published descriptor inside a Universe.
// Refs can be encoded into value storage and resolved back; descriptor
// pointers themselves remain the identity used for type equality.
type Ref uint32

// NoRef marks the absence of a descriptor.
const NoRef Ref = 0

// Descriptor identifies one run-time type: its shape, its operations table
// and the kind-specific payload. Two descriptors describe the same concrete
// type iff they are the same pointer; foreign-origin descriptors are
// translated to a local ObjectWrapper before any such comparison.
//
// Descriptors are immutable once published and are never freed.
type Descriptor struct {
	Kind Kind
	Ops  *OpsTable
	Name string

	// Pattern is set on generic instantiations and backs the
	// per-pattern conformance fast path.
	Pattern *GenericPattern

	// Exactly one payload below is non-nil, matching Kind.
	Class       *ClassData
	Struct      *StructData
	Enum        *EnumData
	Tuple       *TupleData
	Function    *FunctionData
	Metatype    *MetatypeData
	Existential *ExistentialData
	Wrapper     *WrapperData
	Foreign     *ForeignData

	ref Ref
}

// Ref returns the registry identifier assigned when the descriptor was
// published. Zero for descriptors that were never registered.
func (d *Descriptor) Ref() Ref {
	if d == nil {
		return NoRef
	}
	return d.ref
}

// Canonical translates foreign-origin descriptors to their local wrapper so
// pointer comparison is meaningful. All other descriptors are returned as-is.
func (d *Descriptor) Canonical(u *Universe) *Descriptor {
	if d == nil || d.Kind != KindForeignReference {
		return d
	}
	return u.WrapForeign(d)
}

// Superclass returns the superclass descriptor for class-like descriptors
// and nil otherwise.
func (d *Descriptor) Superclass() *Descriptor {
	if d == nil {
		return nil
	}
	switch d.Kind {
	case KindClass:
		return d.Class.Super
	case KindObjectWrapper:
		return d.Wrapper.Super
	case KindForeignReference:
		return d.Foreign.Super
	default:
		return nil
	}
}

// ClassField describes one stored property of a class or struct.
type ClassField struct {
	Name string
	Type *Descriptor
}

// ClassData is the payload of a KindClass descriptor.
type ClassData struct {
	Super         *Descriptor
	Fields        []ClassField
	InstanceSize  int
	InstanceAlign int
	FieldOffsets  []int

	// Deinit destroys instance contents when the last reference drops.
	// Invoked by the heap runtime, never by the core directly.
	Deinit func(data []byte)
}

// StructData is the payload of a KindStruct descriptor.
type StructData struct {
	Fields  []ClassField
	Offsets []int
}

// EnumData is the payload of a KindEnum descriptor. Payload cases carry one
// value type; the tag occupies a leading 32-bit word ahead of the aligned
// payload area.
type EnumData struct {
	Cases         []string
	PayloadTypes  []*Descriptor // parallel to Cases, nil for no-payload cases
	PayloadOffset int
}

// TupleData is the payload of a KindTuple descriptor.
type TupleData struct {
	Elems   []*Descriptor
	Offsets []int
}

// FunctionData is the payload of a KindFunction descriptor.
type FunctionData struct {
	Params []*Descriptor
	Result *Descriptor
}

// MetatypeData is the payload of KindMetatype and KindExistentialMetatype.
// Instance is the subject type: a concrete descriptor for plain metatypes,
// an existential descriptor for existential metatypes.
type MetatypeData struct {
	Instance *Descriptor
}

// ExistentialData is the payload of a KindExistential descriptor.
// Protocols are sorted by name so equal constraint sets unique identically.
type ExistentialData struct {
	Protocols        []*Protocol
	ClassConstrained bool
}

// WitnessCount returns how many witness refs the container carries.
func (e *ExistentialData) WitnessCount() int {
	return len(e.Protocols)
}

// WrapperData is the payload of a KindObjectWrapper descriptor: the local
// stand-in for one foreign class, used for pointer comparison.
type WrapperData struct {
	Foreign *Descriptor
	Super   *Descriptor
}

// ForeignData is the payload of a KindForeignReference descriptor.
type ForeignData struct {
	ClassName string
	Super     *Descriptor
}

func checkKind(d *Descriptor, want Kind) {
	if d == nil {
		panic("meta: nil descriptor")
	}
	if d.Kind != want {
		panic(fmt.Sprintf("meta: descriptor kind mismatch: have %v, want %v", d.Kind, want))
	}
}
