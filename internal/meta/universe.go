package meta

import (
	"fmt"
	"sync"

	"veld/internal/layout"
	"veld/internal/unique"
)

// Builtins stores descriptors for the primitive opaque types.
type Builtins struct {
	Bool       *Descriptor
	Int8       *Descriptor
	Int16      *Descriptor
	Int32      *Descriptor
	Int64      *Descriptor
	Float32    *Descriptor
	Float64    *Descriptor
	RawPointer *Descriptor
}

// Universe owns every published descriptor of one runtime instance: the
// primitive descriptors, the per-family uniquing caches, and the registry
// translating descriptors to storage-encodable refs. Descriptors from
// different universes never mix.
type Universe struct {
	Heap    Heap
	Foreign ForeignHeap
	Target  layout.Target

	mu          sync.Mutex
	byRef       []*Descriptor
	witnesses   []*WitnessTable
	witnessRefs map[*WitnessTable]Ref

	builtins Builtins
	refOps   *OpsTable
	frgnOps  *OpsTable

	podMu     sync.Mutex
	podTables map[[2]int]*OpsTable

	tuples       *unique.Cache[*Descriptor]
	functions    *unique.Cache[*Descriptor]
	metatypes    *unique.Cache[*Descriptor]
	existentials *unique.Cache[*Descriptor]
	wrappers     *unique.Cache[*Descriptor]
	foreigns     *unique.Cache[*Descriptor]

	patternsMu sync.Mutex
	patterns   map[*GenericPattern]*unique.Cache[*Descriptor]
}

// NewUniverse constructs a universe bound to one heap runtime and one
// foreign object-model runtime. foreign may be nil when no bridge exists.
func NewUniverse(heap Heap, foreign ForeignHeap) *Universe {
	u := &Universe{
		Heap:         heap,
		Foreign:      foreign,
		Target:       layout.Default(),
		byRef:        make([]*Descriptor, 1, 64), // ref 0 reserved
		witnesses:    make([]*WitnessTable, 1, 16),
		witnessRefs:  make(map[*WitnessTable]Ref, 16),
		tuples:       unique.New[*Descriptor](),
		functions:    unique.New[*Descriptor](),
		metatypes:    unique.New[*Descriptor](),
		existentials: unique.New[*Descriptor](),
		wrappers:     unique.New[*Descriptor](),
		foreigns:     unique.New[*Descriptor](),
		patterns:     make(map[*GenericPattern]*unique.Cache[*Descriptor], 8),
	}
	u.refOps = u.referenceOps()
	if foreign != nil {
		u.frgnOps = u.foreignReferenceOps()
	}
	u.builtins = Builtins{
		Bool:       u.Opaque("Bool", 1),
		Int8:       u.Opaque("Int8", 1),
		Int16:      u.Opaque("Int16", 2),
		Int32:      u.Opaque("Int32", 4),
		Int64:      u.Opaque("Int64", 8),
		Float32:    u.Opaque("Float32", 4),
		Float64:    u.Opaque("Float64", 8),
		RawPointer: u.Opaque("RawPointer", 8),
	}
	return u
}

// Builtins returns the primitive descriptors.
func (u *Universe) Builtins() Builtins {
	return u.builtins
}

// Opaque publishes a primitive POD descriptor of the given scalar size.
func (u *Universe) Opaque(name string, size int) *Descriptor {
	res := layout.Scalar(u.Target, size)
	d := &Descriptor{
		Kind: KindOpaque,
		Name: name,
		Ops:  u.podOps(res.Size, res.Align, res.Stride, res.Inline),
	}
	return u.register(d)
}

// register assigns a ref and publishes the descriptor. Registering twice is
// harmless and returns the original.
func (u *Universe) register(d *Descriptor) *Descriptor {
	u.mu.Lock()
	defer u.mu.Unlock()
	if d.ref != NoRef {
		return d
	}
	d.ref = Ref(len(u.byRef))
	u.byRef = append(u.byRef, d)
	return d
}

// ByRef resolves a registry ref back to its descriptor.
func (u *Universe) ByRef(r Ref) *Descriptor {
	u.mu.Lock()
	defer u.mu.Unlock()
	if r == NoRef || int(r) >= len(u.byRef) {
		return nil
	}
	return u.byRef[r]
}

// Descriptors snapshots every published descriptor, in registration order.
func (u *Universe) Descriptors() []*Descriptor {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]*Descriptor, 0, len(u.byRef)-1)
	for _, d := range u.byRef[1:] {
		out = append(out, d)
	}
	return out
}

// WitnessRef assigns (once) and returns the storage ref of a witness table.
func (u *Universe) WitnessRef(w *WitnessTable) Ref {
	if w == nil {
		return NoRef
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if r, ok := u.witnessRefs[w]; ok {
		return r
	}
	r := Ref(len(u.witnesses))
	u.witnesses = append(u.witnesses, w)
	u.witnessRefs[w] = r
	return r
}

// WitnessByRef resolves a witness-table ref.
func (u *Universe) WitnessByRef(r Ref) *WitnessTable {
	u.mu.Lock()
	defer u.mu.Unlock()
	if r == NoRef || int(r) >= len(u.witnesses) {
		return nil
	}
	return u.witnesses[r]
}

// argsKey renders an argument vector into a uniquing key. Arguments compare
// by identity: every argument is itself an already-published descriptor, so
// its ref is a faithful identity proxy.
func argsKey(args []*Descriptor) string {
	parts := make([]uint64, len(args))
	for i, a := range args {
		if a == nil || a.ref == NoRef {
			panic(fmt.Sprintf("meta: unpublished descriptor as uniquing argument %d", i))
		}
		parts[i] = uint64(a.ref)
	}
	return unique.Key(parts...)
}

// fieldOf converts a descriptor's ops table to a layout field.
func fieldOf(d *Descriptor) layout.Field {
	return layout.Field{
		Size:           d.Ops.Size,
		Align:          d.Ops.Align,
		POD:            d.Ops.POD,
		BitwiseTakable: d.Ops.BitwiseTakable,
	}
}
