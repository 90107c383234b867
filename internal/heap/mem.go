// Package heap provides the reference implementation of the heap runtime the
// type-system core calls into. The core itself only sees meta.Heap; Mem
// exists for tests, tooling and embedders without a native allocator.
package heap

import (
	"fmt"
	"sync"

	"veld/internal/meta"
)

// Object is one refcounted allocation.
type Object struct {
	Desc *meta.Descriptor // nil for raw value buffers
	Data []byte
	rc   int64
}

// Mem is an in-memory refcounting heap. Handles are monotonically increasing
// and never reused within a run.
type Mem struct {
	mu   sync.Mutex
	next meta.Handle
	objs map[meta.Handle]*Object
}

// NewMem returns an empty heap. The first handle starts above the reserved
// extra-inhabitant range.
func NewMem() *Mem {
	return &Mem{
		next: meta.FirstObjectHandle,
		objs: make(map[meta.Handle]*Object, 128),
	}
}

// Allocate creates a class instance of the given descriptor with refcount 1.
// The instance data spans the full instance size including the header area.
func (m *Mem) Allocate(d *meta.Descriptor) meta.Handle {
	if d == nil || d.Kind != meta.KindClass {
		panic("heap: allocating a non-class descriptor")
	}
	return m.alloc(d, make([]byte, d.Class.InstanceSize))
}

func (m *Mem) alloc(d *meta.Descriptor, data []byte) meta.Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.next
	m.next++
	m.objs[h] = &Object{Desc: d, Data: data, rc: 1}
	return h
}

func (m *Mem) get(h meta.Handle) *Object {
	obj, ok := m.objs[h]
	if !ok {
		panic(fmt.Sprintf("heap: invalid handle %d", h))
	}
	return obj
}

// Retain increments the reference count.
func (m *Mem) Retain(h meta.Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.get(h).rc++
}

// Release decrements the reference count, destroying instance contents and
// freeing the object when it drops to zero.
func (m *Mem) Release(h meta.Handle) {
	m.mu.Lock()
	obj := m.get(h)
	obj.rc--
	if obj.rc > 0 {
		m.mu.Unlock()
		return
	}
	if obj.rc < 0 {
		m.mu.Unlock()
		panic(fmt.Sprintf("heap: over-release of handle %d", h))
	}
	delete(m.objs, h)
	m.mu.Unlock()
	if obj.Desc != nil && obj.Desc.Kind == meta.KindClass && obj.Desc.Class.Deinit != nil {
		obj.Desc.Class.Deinit(obj.Data)
	}
}

// DynamicType reports the descriptor an object was allocated with.
func (m *Mem) DynamicType(h meta.Handle) *meta.Descriptor {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(h).Desc
}

// AllocateBuffer obtains a raw out-of-line value buffer.
func (m *Mem) AllocateBuffer(n int) meta.Handle {
	return m.alloc(nil, make([]byte, n))
}

// Buffer projects the storage of an out-of-line buffer.
func (m *Mem) Buffer(h meta.Handle) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(h).Data
}

// ReleaseBuffer returns an out-of-line buffer to the heap.
func (m *Mem) ReleaseBuffer(h meta.Handle) {
	m.Release(h)
}

// InstanceData exposes an object's storage, for field initialization by
// embedders and tests.
func (m *Mem) InstanceData(h meta.Handle) []byte {
	return m.Buffer(h)
}

// RefCount reports the current reference count, for leak assertions.
func (m *Mem) RefCount(h meta.Handle) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objs[h]
	if !ok {
		return 0
	}
	return obj.rc
}

// Live reports how many objects are still alive.
func (m *Mem) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objs)
}

var _ meta.Heap = (*Mem)(nil)
