package meta

import "sync/atomic"

var protocolIDs atomic.Uint32

// Protocol identifies one protocol. Protocols are nominal: every
// registration produces a distinct identity, and descriptors refer to them
// by pointer.
type Protocol struct {
	Name string

	// ClassConstrained restricts conformers to reference types, which
	// also selects the compact class-existential representation.
	ClassConstrained bool

	// RefOnly marks a marker protocol satisfied structurally by any
	// reference type, answered from the descriptor kind without
	// consulting the conformance cache.
	RefOnly bool

	id uint32
}

// NewProtocol creates a protocol identity.
func NewProtocol(name string, classConstrained bool) *Protocol {
	return &Protocol{
		Name:             name,
		ClassConstrained: classConstrained,
		id:               protocolIDs.Add(1),
	}
}

// NewMarkerProtocol creates the structural any-reference marker protocol.
func NewMarkerProtocol(name string) *Protocol {
	p := NewProtocol(name, true)
	p.RefOnly = true
	return p
}

// ID returns the protocol's stable numeric identity.
func (p *Protocol) ID() uint32 {
	if p == nil {
		return 0
	}
	return p.id
}

// WitnessTable implements one protocol's operations for one conforming
// type. Entry layout beyond the protocol pointer is owned by the code
// generator; the runtime only stores, uniques and returns tables.
type WitnessTable struct {
	Protocol *Protocol
	Entries  []any
}
