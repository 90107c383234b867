// Package layout computes size, alignment, stride and triviality for a
// sequence of typed fields. It is a pure computation: fields are placed in
// declaration order and never reordered for packing.
package layout

import "fmt"

// Field is one typed slot to place: its size/alignment plus the triviality
// bits that fold into the aggregate.
type Field struct {
	Size           int
	Align          int
	POD            bool
	BitwiseTakable bool
}

// Result is the computed aggregate layout.
type Result struct {
	Size    int
	Align   int
	Stride  int
	Offsets []int

	POD            bool
	BitwiseTakable bool

	// Inline reports whether a value of this layout fits the target's
	// fixed inline buffer.
	Inline bool
}

// Compute places fields sequentially starting at start (0 for value types,
// Target.HeaderSize for class instances): each offset is the running size
// rounded up to the field's alignment. Aggregate POD/bitwise-takable hold
// only if every field's do. Stride is the size rounded up to the aggregate
// alignment; an empty aggregate has size 0, alignment 1, stride 1.
//
// Malformed fields indicate a code-generation contract violation and panic.
func Compute(t Target, fields []Field, start int) Result {
	if start < 0 {
		panic(fmt.Sprintf("layout: negative start offset %d", start))
	}
	res := Result{
		Size:           start,
		Align:          1,
		Offsets:        make([]int, 0, len(fields)),
		POD:            true,
		BitwiseTakable: true,
	}
	for i, f := range fields {
		if f.Size < 0 || f.Align < 1 {
			panic(fmt.Sprintf("layout: malformed field %d: size=%d align=%d", i, f.Size, f.Align))
		}
		res.Size = roundUp(res.Size, f.Align)
		res.Offsets = append(res.Offsets, res.Size)
		res.Size += f.Size
		res.Align = maxInt(res.Align, f.Align)
		res.POD = res.POD && f.POD
		res.BitwiseTakable = res.BitwiseTakable && f.BitwiseTakable
	}
	res.Stride = roundUp(res.Size, res.Align)
	if res.Stride == 0 {
		res.Stride = 1
	}
	res.Inline = res.Size <= t.InlineCapacity && res.Align <= t.PtrAlign
	return res
}

// Scalar returns the layout of a self-aligned scalar of the given size.
func Scalar(t Target, size int) Result {
	if size < 0 {
		panic(fmt.Sprintf("layout: negative scalar size %d", size))
	}
	align := size
	if align < 1 {
		align = 1
	}
	if align > t.PtrAlign {
		align = t.PtrAlign
	}
	stride := roundUp(size, align)
	if stride == 0 {
		stride = 1
	}
	return Result{
		Size:           size,
		Align:          align,
		Stride:         stride,
		POD:            true,
		BitwiseTakable: true,
		Inline:         size <= t.InlineCapacity && align <= t.PtrAlign,
	}
}

func roundUp(n, align int) int {
	if align <= 1 {
		return n
	}
	r := n % align
	if r == 0 {
		return n
	}
	return n + (align - r)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
