package meta

import "encoding/binary"

// WordSize is the storage granule for handles and descriptor refs.
const WordSize = 8

func putWord(b []byte, w uint64) {
	binary.LittleEndian.PutUint64(b[:WordSize], w)
}

func word(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b[:WordSize])
}

// LoadHandle reads the handle word of a reference value.
func LoadHandle(v []byte) Handle {
	return Handle(word(v))
}

// StoreHandle writes the handle word of a reference value.
func StoreHandle(v []byte, h Handle) {
	putWord(v, uint64(h))
}

// TagSize is the storage granule for enum case tags.
const TagSize = 4

func putTag(b []byte, t uint32) {
	binary.LittleEndian.PutUint32(b[:TagSize], t)
}

func tag(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b[:TagSize])
}
