package meta

import "veld/internal/layout"

// aggregateOps synthesizes a lifecycle table for a sequence of typed fields
// placed at the given offsets. Common shapes reuse shared tables: fully POD
// aggregates get a cached memcpy table, and a single-field aggregate with no
// padding shares the field's own table. Everything else falls back to a
// generic per-field delegating implementation.
func (u *Universe) aggregateOps(elems []*Descriptor, offsets []int, res layout.Result) *OpsTable {
	if res.POD {
		return u.sharedPODOps(res.Size, res.Align, res.Stride, res.Inline)
	}
	if len(elems) == 1 && offsets[0] == 0 {
		e := elems[0].Ops
		if e.Size == res.Size && e.Stride == res.Stride {
			return e
		}
	}

	type slot struct {
		ops *OpsTable
		off int
	}
	slots := make([]slot, len(elems))
	for i, e := range elems {
		slots[i] = slot{ops: e.Ops, off: offsets[i]}
	}
	window := func(v []byte, s slot) []byte {
		return v[s.off : s.off+s.ops.Size]
	}

	t := &OpsTable{
		Size:           res.Size,
		Align:          res.Align,
		Stride:         res.Stride,
		POD:            false,
		BitwiseTakable: res.BitwiseTakable,
		Inline:         res.Inline,
		InitCopy: func(dst, src []byte) {
			for _, s := range slots {
				s.ops.InitCopy(window(dst, s), window(src, s))
			}
		},
		AssignCopy: func(dst, src []byte) {
			for _, s := range slots {
				s.ops.AssignCopy(window(dst, s), window(src, s))
			}
		},
		AssignTake: func(dst, src []byte) {
			for _, s := range slots {
				s.ops.AssignTake(window(dst, s), window(src, s))
			}
		},
		Destroy: func(v []byte) {
			for _, s := range slots {
				if !s.ops.POD {
					s.ops.Destroy(window(v, s))
				}
			}
		},
	}
	if res.BitwiseTakable {
		t.InitTake = memcpyInit
	} else {
		t.InitTake = func(dst, src []byte) {
			for _, s := range slots {
				s.ops.InitTake(window(dst, s), window(src, s))
			}
		}
	}
	u.attachBufferOps(t)
	return t
}

// sharedPODOps returns the cached memcpy table for a (size, align) shape.
func (u *Universe) sharedPODOps(size, align, stride int, inline bool) *OpsTable {
	key := [2]int{size, align}
	u.podMu.Lock()
	defer u.podMu.Unlock()
	if u.podTables == nil {
		u.podTables = make(map[[2]int]*OpsTable, 16)
	}
	if t, ok := u.podTables[key]; ok {
		return t
	}
	t := u.podOps(size, align, stride, inline)
	u.podTables[key] = t
	return t
}
