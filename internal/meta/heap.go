package meta

// Handle identifies one object owned by the heap runtime. Handles are opaque
// IDs, never machine pointers, and 0 is never a live object.
type Handle uint64

// NoHandle marks the absence of an object.
const NoHandle Handle = 0

// Heap is the reference-counting runtime this core calls but does not
// implement. All methods must be safe for concurrent use.
type Heap interface {
	Retain(Handle)
	Release(Handle)

	// DynamicType reports the most-derived descriptor an object was
	// allocated with.
	DynamicType(Handle) *Descriptor

	// AllocateBuffer obtains an out-of-line value buffer of n bytes.
	AllocateBuffer(n int) Handle
	// Buffer projects the storage of an out-of-line buffer.
	Buffer(Handle) []byte
	// ReleaseBuffer returns an out-of-line buffer to the heap.
	ReleaseBuffer(Handle)
}

// ForeignHeap is the slice of the foreign object-model runtime the
// operations tables need: lifetime and dynamic-type queries for foreign
// references. Class testing lives with the cast engine.
type ForeignHeap interface {
	Retain(Handle)
	Release(Handle)
	DynamicType(Handle) *Descriptor
}
