package meta

// OpsTable is the type-erased value-lifecycle table attached to every
// descriptor. dst/src slices are storage windows at least Size bytes long.
//
// Init* operations target uninitialized storage; Assign* operations target
// storage holding a live value. Take variants consume the source.
type OpsTable struct {
	Size   int
	Align  int
	Stride int

	// POD: copy is memcpy and destroy is a no-op.
	POD bool
	// BitwiseTakable: a take is a plain byte copy.
	BitwiseTakable bool
	// Inline: the value fits the fixed existential buffer.
	Inline bool

	InitCopy   func(dst, src []byte)
	InitTake   func(dst, src []byte)
	AssignCopy func(dst, src []byte)
	AssignTake func(dst, src []byte)
	Destroy    func(v []byte)

	// DynamicType re-derives the most-derived type of a stored value.
	// nil means the static type is already exact.
	DynamicType func(v []byte) *Descriptor

	// AllocBuffer prepares storage for one value of this type inside a
	// fixed-size buffer slot, spilling to the heap when not Inline.
	AllocBuffer func(buf []byte) []byte
	// ProjectBuffer returns the value storage inside a prepared buffer.
	ProjectBuffer func(buf []byte) []byte
	// DeallocBuffer releases buffer storage without destroying the value.
	DeallocBuffer func(buf []byte)

	// Extra holds the extra-inhabitant extension when the type has spare
	// bit patterns, nil otherwise.
	Extra *ExtraOps
}

// ExtraOps reuses bit patterns a type can never hold to encode out-of-band
// states without widening the value.
type ExtraOps struct {
	Count int
	Store func(v []byte, index int)
	Index func(v []byte) int
}

func memcpyInit(dst, src []byte) {
	copy(dst, src)
}

func noopDestroy([]byte) {}

// attachBufferOps fills the three buffer operations from the table's own
// size/inline decision. Must run after Size/Stride/Inline are final.
func (u *Universe) attachBufferOps(t *OpsTable) {
	stride := t.Stride
	if t.Inline {
		t.AllocBuffer = func(buf []byte) []byte {
			return buf[:stride]
		}
		t.ProjectBuffer = func(buf []byte) []byte {
			return buf[:stride]
		}
		t.DeallocBuffer = func([]byte) {}
		return
	}
	t.AllocBuffer = func(buf []byte) []byte {
		h := u.Heap.AllocateBuffer(stride)
		putWord(buf, uint64(h))
		return u.Heap.Buffer(h)
	}
	t.ProjectBuffer = func(buf []byte) []byte {
		return u.Heap.Buffer(Handle(word(buf)))
	}
	t.DeallocBuffer = func(buf []byte) {
		u.Heap.ReleaseBuffer(Handle(word(buf)))
		putWord(buf, 0)
	}
}

// podOps builds a memcpy/no-op table for trivial types.
func (u *Universe) podOps(size, align, stride int, inline bool) *OpsTable {
	t := &OpsTable{
		Size:           size,
		Align:          align,
		Stride:         stride,
		POD:            true,
		BitwiseTakable: true,
		Inline:         inline,
		InitCopy:       memcpyInit,
		InitTake:       memcpyInit,
		AssignCopy:     memcpyInit,
		AssignTake:     memcpyInit,
		Destroy:        noopDestroy,
	}
	u.attachBufferOps(t)
	return t
}

// referenceOps builds the retain/release table shared by all local class
// descriptors. The stored representation is one retained handle.
func (u *Universe) referenceOps() *OpsTable {
	retain := func(h Handle) {
		if h != NoHandle {
			u.Heap.Retain(h)
		}
	}
	release := func(h Handle) {
		if h != NoHandle {
			u.Heap.Release(h)
		}
	}
	return u.handleOps(retain, release, func(v []byte) *Descriptor {
		h := Handle(word(v))
		if h == NoHandle {
			return nil
		}
		return u.Heap.DynamicType(h)
	})
}

// foreignReferenceOps builds the lifetime table for foreign references,
// deferring to the foreign object-model runtime.
func (u *Universe) foreignReferenceOps() *OpsTable {
	retain := func(h Handle) {
		if h != NoHandle {
			u.Foreign.Retain(h)
		}
	}
	release := func(h Handle) {
		if h != NoHandle {
			u.Foreign.Release(h)
		}
	}
	return u.handleOps(retain, release, func(v []byte) *Descriptor {
		h := Handle(word(v))
		if h == NoHandle {
			return nil
		}
		return u.Foreign.DynamicType(h)
	})
}

func (u *Universe) handleOps(retain, release func(Handle), dynamic func(v []byte) *Descriptor) *OpsTable {
	t := &OpsTable{
		Size:           WordSize,
		Align:          WordSize,
		Stride:         WordSize,
		POD:            false,
		BitwiseTakable: true,
		Inline:         true,
		InitCopy: func(dst, src []byte) {
			retain(Handle(word(src)))
			copy(dst[:WordSize], src)
		},
		InitTake: memcpyInit,
		AssignCopy: func(dst, src []byte) {
			retain(Handle(word(src)))
			release(Handle(word(dst)))
			copy(dst[:WordSize], src)
		},
		AssignTake: func(dst, src []byte) {
			release(Handle(word(dst)))
			copy(dst[:WordSize], src)
		},
		Destroy: func(v []byte) {
			release(Handle(word(v)))
		},
		DynamicType: dynamic,
		Extra:       handleExtraOps(),
	}
	u.attachBufferOps(t)
	return t
}

// FirstObjectHandle is the lowest handle value a heap runtime may hand out.
// Values below it are reserved as extra inhabitants of reference types.
const FirstObjectHandle Handle = 4096

// handleExtraOps exposes the reserved low handle range as extra inhabitants.
// Index returns -1 for a live handle.
func handleExtraOps() *ExtraOps {
	return &ExtraOps{
		Count: int(FirstObjectHandle),
		Store: func(v []byte, index int) {
			putWord(v, uint64(index))
		},
		Index: func(v []byte) int {
			w := word(v)
			if w < uint64(FirstObjectHandle) {
				return int(w)
			}
			return -1
		},
	}
}
