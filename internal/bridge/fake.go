package bridge

import (
	"fmt"
	"sync"

	"veld/internal/meta"
)

// Fake is an in-memory foreign object model for tests and tooling. Objects
// carry a foreign class descriptor and an opaque payload.
type Fake struct {
	mu   sync.Mutex
	next meta.Handle
	objs map[meta.Handle]*fakeObject
}

type fakeObject struct {
	class   *meta.Descriptor
	payload []byte
	rc      int64
}

// NewFake returns an empty foreign runtime. Its handle space is disjoint
// from any local heap by construction (callers never mix the two).
func NewFake() *Fake {
	return &Fake{
		next: meta.FirstObjectHandle,
		objs: make(map[meta.Handle]*fakeObject, 16),
	}
}

// Allocate creates a foreign object of the given foreign class.
func (f *Fake) Allocate(class *meta.Descriptor, payload []byte) meta.Handle {
	if class == nil || class.Kind != meta.KindForeignReference {
		panic("bridge: allocating with a non-foreign descriptor")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	h := f.next
	f.next++
	f.objs[h] = &fakeObject{class: class, payload: append([]byte(nil), payload...), rc: 1}
	return h
}

func (f *Fake) get(h meta.Handle) *fakeObject {
	obj, ok := f.objs[h]
	if !ok {
		panic(fmt.Sprintf("bridge: invalid foreign handle %d", h))
	}
	return obj
}

// Retain increments the foreign reference count.
func (f *Fake) Retain(h meta.Handle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.get(h).rc++
}

// Release decrements the foreign reference count.
func (f *Fake) Release(h meta.Handle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj := f.get(h)
	obj.rc--
	if obj.rc < 0 {
		panic(fmt.Sprintf("bridge: over-release of foreign handle %d", h))
	}
	if obj.rc == 0 {
		delete(f.objs, h)
	}
}

// DynamicType reports the foreign class descriptor of an object.
func (f *Fake) DynamicType(h meta.Handle) *meta.Descriptor {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.get(h).class
}

// ClassTest walks the foreign superclass chain, the host model's own rule.
func (f *Fake) ClassTest(h meta.Handle, target *meta.Descriptor) bool {
	cls := f.DynamicType(h)
	for cls != nil {
		if cls == target {
			return true
		}
		cls = cls.Foreign.Super
	}
	return false
}

// Payload exposes a foreign object's payload for bridging witnesses.
func (f *Fake) Payload(h meta.Handle) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.get(h).payload
}

// RefCount reports a foreign object's count, for leak assertions.
func (f *Fake) RefCount(h meta.Handle) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objs[h]
	if !ok {
		return 0
	}
	return obj.rc
}

// Live reports how many foreign objects are alive.
func (f *Fake) Live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objs)
}

var _ Runtime = (*Fake)(nil)
