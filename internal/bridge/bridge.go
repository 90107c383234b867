// Package bridge defines the contract between the type-system core and the
// foreign, pre-existing reference-counted object model it interoperates
// with. The foreign runtime is consumed through Runtime; local types opt
// into bridging by registering a Witness.
package bridge

import (
	"sync"

	"veld/internal/meta"
)

// Runtime is the foreign object-model runtime. It extends the lifetime
// slice the operations tables use with the class test the cast engine
// defers to for foreign-bridged references.
type Runtime interface {
	meta.ForeignHeap

	// ClassTest reports whether the object is an instance of the target
	// foreign class (or one of its subclasses), by the host object
	// model's own rules.
	ClassTest(h meta.Handle, target *meta.Descriptor) bool
}

// Witness is the per-type bridging record a bridgeable local type exposes.
// src/dst are value storage for the local representation.
type Witness struct {
	// Bridgeable reports whether this particular value can cross.
	Bridgeable func(src []byte) bool

	// ToForeign converts the local value to a retained foreign object.
	ToForeign func(src []byte) meta.Handle

	// ForceFromForeign converts a foreign object into local storage;
	// failure is a contract violation.
	ForceFromForeign func(dst []byte, h meta.Handle)

	// CondFromForeign attempts the conversion, reporting success.
	CondFromForeign func(dst []byte, h meta.Handle) bool

	// ForeignClass is the foreign class the local type bridges through.
	ForeignClass *meta.Descriptor
}

// WitnessRegistry maps local descriptors to their bridging witnesses.
// Registration happens at load time; lookups are concurrent.
type WitnessRegistry struct {
	mu sync.RWMutex
	m  map[*meta.Descriptor]*Witness
}

// NewWitnessRegistry returns an empty registry.
func NewWitnessRegistry() *WitnessRegistry {
	return &WitnessRegistry{m: make(map[*meta.Descriptor]*Witness, 8)}
}

// Register declares a local type bridgeable.
func (r *WitnessRegistry) Register(local *meta.Descriptor, w *Witness) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[local] = w
}

// Lookup returns the witness for a local type, or nil.
func (r *WitnessRegistry) Lookup(local *meta.Descriptor) *Witness {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.m[local]
}
