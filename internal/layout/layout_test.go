package layout

import (
	"reflect"
	"testing"
)

func pod(size, align int) Field {
	return Field{Size: size, Align: align, POD: true, BitwiseTakable: true}
}

func TestComputeMixedAlignments(t *testing.T) {
	res := Compute(Default(), []Field{pod(4, 4), pod(1, 1), pod(8, 8)}, 0)
	if !reflect.DeepEqual(res.Offsets, []int{0, 4, 8}) {
		t.Fatalf("offsets = %v, want [0 4 8]", res.Offsets)
	}
	if res.Size != 16 || res.Stride != 16 || res.Align != 8 {
		t.Fatalf("size/stride/align = %d/%d/%d, want 16/16/8", res.Size, res.Stride, res.Align)
	}
}

func TestComputePackedBytes(t *testing.T) {
	res := Compute(Default(), []Field{pod(1, 1), pod(1, 1)}, 0)
	if !reflect.DeepEqual(res.Offsets, []int{0, 1}) {
		t.Fatalf("offsets = %v, want [0 1]", res.Offsets)
	}
	if res.Size != 2 {
		t.Fatalf("size = %d, want 2", res.Size)
	}
}

func TestComputeTrivialityFolds(t *testing.T) {
	fields := []Field{pod(8, 8), {Size: 8, Align: 8, POD: false, BitwiseTakable: true}}
	res := Compute(Default(), fields, 0)
	if res.POD {
		t.Fatalf("aggregate with a non-POD field must not be POD")
	}
	if !res.BitwiseTakable {
		t.Fatalf("all-takable fields must stay takable")
	}
}

func TestComputeClassStart(t *testing.T) {
	tgt := Default()
	res := Compute(tgt, []Field{pod(8, 8), pod(4, 4)}, tgt.HeaderSize)
	if res.Offsets[0] != tgt.HeaderSize {
		t.Fatalf("first field offset = %d, want header size %d", res.Offsets[0], tgt.HeaderSize)
	}
	if res.Offsets[1] != tgt.HeaderSize+8 {
		t.Fatalf("second field offset = %d", res.Offsets[1])
	}
}

func TestComputeEmpty(t *testing.T) {
	res := Compute(Default(), nil, 0)
	if res.Size != 0 || res.Align != 1 || res.Stride != 1 {
		t.Fatalf("empty layout = %+v", res)
	}
	if !res.POD || !res.Inline {
		t.Fatalf("empty layout must be POD and inline")
	}
}

func TestInlineEligibility(t *testing.T) {
	tgt := Default()
	cases := []struct {
		name   string
		fields []Field
		inline bool
	}{
		{"three words", []Field{pod(8, 8), pod(8, 8), pod(8, 8)}, true},
		{"four words", []Field{pod(8, 8), pod(8, 8), pod(8, 8), pod(8, 8)}, false},
		{"over-aligned", []Field{{Size: 16, Align: 16, POD: true, BitwiseTakable: true}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Compute(tgt, tc.fields, 0)
			if res.Inline != tc.inline {
				t.Fatalf("inline = %v, want %v", res.Inline, tc.inline)
			}
		})
	}
}
