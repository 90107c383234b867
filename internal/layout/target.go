package layout

// Target describes the ABI target's pointer properties, the reference-object
// header, and the fixed inline buffer used by opaque existentials.
type Target struct {
	PtrSize  int // bytes
	PtrAlign int // bytes

	// HeaderSize is the size of the reference-object header preceding
	// class instance fields.
	HeaderSize int

	// InlineCapacity is the byte capacity of the fixed inline value
	// buffer (three pointer words).
	InlineCapacity int
}

// Default returns the 64-bit little-endian target every current backend uses.
func Default() Target {
	return Target{
		PtrSize:        8,
		PtrAlign:       8,
		HeaderSize:     16,
		InlineCapacity: 24,
	}
}
