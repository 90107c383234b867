package meta

import (
	"fmt"
	"sort"

	"veld/internal/unique"
)

// Existential returns the unique descriptor for a protocol-constrained
// container. The protocol list is sorted by name so equal constraint sets
// unique to the same descriptor. A class constraint (explicit, or implied by
// any class-constrained protocol) selects the compact representation of one
// retained handle plus witness refs; the unconstrained form stores a
// descriptor ref, witness refs, and a fixed value buffer.
func (u *Universe) Existential(classConstrained bool, protos ...*Protocol) *Descriptor {
	sorted := append([]*Protocol(nil), protos...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	for _, p := range sorted {
		if p.ClassConstrained {
			classConstrained = true
		}
	}

	parts := make([]uint64, 0, len(sorted)+1)
	if classConstrained {
		parts = append(parts, 1)
	} else {
		parts = append(parts, 0)
	}
	for _, p := range sorted {
		parts = append(parts, uint64(p.ID()))
	}
	key := unique.Key(parts...)

	return u.existentials.GetOrBuild(key, func() *Descriptor {
		data := &ExistentialData{
			Protocols:        sorted,
			ClassConstrained: classConstrained,
		}
		var ops *OpsTable
		if classConstrained {
			ops = u.classExistentialOps(data)
		} else {
			ops = u.opaqueExistentialOps(data)
		}
		d := &Descriptor{
			Kind:        KindExistential,
			Name:        existentialName(data),
			Ops:         ops,
			Existential: data,
		}
		return u.register(d)
	})
}

func existentialName(data *ExistentialData) string {
	if len(data.Protocols) == 0 {
		if data.ClassConstrained {
			return "AnyRef"
		}
		return "Any"
	}
	name := "any "
	for i, p := range data.Protocols {
		if i > 0 {
			name += " & "
		}
		name += p.Name
	}
	return name
}

// Container offsets. Both forms lead with one word (handle or descriptor
// ref) followed by the witness refs; the unconstrained form appends the
// fixed inline buffer.

func witnessOffset(i int) int { return WordSize * (1 + i) }

func (u *Universe) bufferOffset(data *ExistentialData) int {
	return WordSize * (1 + data.WitnessCount())
}

// classExistentialOps: one retained handle plus POD witness refs.
func (u *Universe) classExistentialOps(data *ExistentialData) *OpsTable {
	size := WordSize * (1 + data.WitnessCount())
	t := &OpsTable{
		Size:           size,
		Align:          WordSize,
		Stride:         size,
		POD:            false,
		BitwiseTakable: true,
		Inline:         size <= u.Target.InlineCapacity,
		InitCopy: func(dst, src []byte) {
			if h := Handle(word(src)); h != NoHandle {
				u.Heap.Retain(h)
			}
			copy(dst[:size], src)
		},
		InitTake: memcpyInit,
		Destroy: func(v []byte) {
			if h := Handle(word(v)); h != NoHandle {
				u.Heap.Release(h)
			}
		},
		DynamicType: func(v []byte) *Descriptor {
			h := Handle(word(v))
			if h == NoHandle {
				return nil
			}
			return u.Heap.DynamicType(h)
		},
		Extra: handleExtraOps(),
	}
	t.AssignCopy = func(dst, src []byte) {
		t.Destroy(dst)
		t.InitCopy(dst, src)
	}
	t.AssignTake = func(dst, src []byte) {
		t.Destroy(dst)
		t.InitTake(dst, src)
	}
	u.attachBufferOps(t)
	return t
}

// opaqueExistentialOps: descriptor ref, witness refs, then a value buffer
// whose use is chosen by the stored type's own table.
func (u *Universe) opaqueExistentialOps(data *ExistentialData) *OpsTable {
	bufOff := u.bufferOffset(data)
	size := bufOff + u.Target.InlineCapacity

	elem := func(v []byte) *Descriptor {
		d := u.ByRef(Ref(word(v)))
		if d == nil {
			panic("meta: existential container with dangling type ref")
		}
		return d
	}
	buf := func(v []byte) []byte {
		return v[bufOff : bufOff+u.Target.InlineCapacity]
	}

	t := &OpsTable{
		Size:  size,
		Align: WordSize,
		// Inline payloads may themselves be non-takable, so the
		// container is conservatively non-takable.
		Stride:         size,
		POD:            false,
		BitwiseTakable: false,
		Inline:         false,
		InitCopy: func(dst, src []byte) {
			e := elem(src)
			copy(dst[:bufOff], src) // type ref + witness refs
			storage := e.Ops.AllocBuffer(buf(dst))
			e.Ops.InitCopy(storage, e.Ops.ProjectBuffer(buf(src)))
		},
		InitTake: func(dst, src []byte) {
			e := elem(src)
			copy(dst[:bufOff], src)
			if e.Ops.Inline {
				e.Ops.InitTake(buf(dst)[:e.Ops.Size], buf(src)[:e.Ops.Size])
				return
			}
			// Steal the out-of-line buffer.
			copy(buf(dst)[:WordSize], buf(src)[:WordSize])
			putWord(buf(src), 0)
		},
		Destroy: func(v []byte) {
			e := elem(v)
			e.Ops.Destroy(e.Ops.ProjectBuffer(buf(v)))
			e.Ops.DeallocBuffer(buf(v))
		},
		DynamicType: func(v []byte) *Descriptor {
			return elem(v)
		},
	}
	t.AssignCopy = func(dst, src []byte) {
		t.Destroy(dst)
		t.InitCopy(dst, src)
	}
	t.AssignTake = func(dst, src []byte) {
		t.Destroy(dst)
		t.InitTake(dst, src)
	}
	u.attachBufferOps(t)
	return t
}

// ExistentialInit packs a value into existential storage. witnesses must be
// ordered like the container's protocol list. take consumes the source.
func (u *Universe) ExistentialInit(dst []byte, container *Descriptor, srcType *Descriptor, src []byte, witnesses []*WitnessTable, take bool) {
	checkKind(container, KindExistential)
	data := container.Existential
	if len(witnesses) != data.WitnessCount() {
		panic(fmt.Sprintf("meta: %d witnesses for %d protocols", len(witnesses), data.WitnessCount()))
	}
	for i, w := range witnesses {
		putWord(dst[witnessOffset(i):], uint64(u.WitnessRef(w)))
	}
	if data.ClassConstrained {
		// The compact form retains through the local heap, so only local
		// class references (or another class-form container) may enter.
		// Foreign references cross through unbridging or the opaque form.
		if srcType.Kind != KindClass &&
			!(srcType.Kind == KindExistential && srcType.Existential.ClassConstrained) {
			panic(fmt.Sprintf("meta: %s value in class-constrained existential", srcType.Kind))
		}
		h := Handle(word(src))
		if !take && h != NoHandle {
			u.Heap.Retain(h)
		}
		putWord(dst, uint64(h))
		return
	}
	if srcType.ref == NoRef {
		panic("meta: packing unpublished descriptor into existential")
	}
	putWord(dst, uint64(srcType.ref))
	storage := srcType.Ops.AllocBuffer(dst[u.bufferOffset(data):])
	if take {
		srcType.Ops.InitTake(storage, src)
	} else {
		srcType.Ops.InitCopy(storage, src)
	}
}

// ExistentialProject returns the dynamic type and a view of the stored
// value inside existential storage. For the class form the value view is
// the handle word itself.
func (u *Universe) ExistentialProject(v []byte, container *Descriptor) (*Descriptor, []byte) {
	checkKind(container, KindExistential)
	data := container.Existential
	if data.ClassConstrained {
		h := Handle(word(v))
		if h == NoHandle {
			return nil, nil
		}
		return u.Heap.DynamicType(h), v[:WordSize]
	}
	e := u.ByRef(Ref(word(v)))
	if e == nil {
		return nil, nil
	}
	bufOff := u.bufferOffset(data)
	return e, e.Ops.ProjectBuffer(v[bufOff : bufOff+u.Target.InlineCapacity])
}

// ExistentialWitness resolves the i'th stored witness table.
func (u *Universe) ExistentialWitness(v []byte, container *Descriptor, i int) *WitnessTable {
	checkKind(container, KindExistential)
	if i < 0 || i >= container.Existential.WitnessCount() {
		panic(fmt.Sprintf("meta: witness index %d out of range", i))
	}
	return u.WitnessByRef(Ref(word(v[witnessOffset(i):])))
}
