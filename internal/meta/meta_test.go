package meta_test

import (
	"fmt"
	"sync/atomic"
	"testing"

	"golang.org/x/sync/errgroup"

	"veld/internal/heap"
	"veld/internal/meta"
)

func newUniverse() (*meta.Universe, *heap.Mem) {
	mem := heap.NewMem()
	return meta.NewUniverse(mem, nil), mem
}

func TestBuiltinsArePOD(t *testing.T) {
	u, _ := newUniverse()
	b := u.Builtins()
	for _, d := range []*meta.Descriptor{b.Bool, b.Int8, b.Int32, b.Int64, b.Float64, b.RawPointer} {
		if d.Kind != meta.KindOpaque {
			t.Fatalf("%s: kind = %v", d.Name, d.Kind)
		}
		if !d.Ops.POD || !d.Ops.BitwiseTakable {
			t.Fatalf("%s: primitive must be POD", d.Name)
		}
	}
	if b.Int64.Ops.Size != 8 || b.Int64.Ops.Align != 8 {
		t.Fatalf("Int64 layout = %d/%d", b.Int64.Ops.Size, b.Int64.Ops.Align)
	}
}

func TestTupleUniquing(t *testing.T) {
	u, _ := newUniverse()
	b := u.Builtins()
	t1 := u.Tuple2(b.Int64, b.Bool)
	t2 := u.Tuple2(b.Int64, b.Bool)
	if t1 != t2 {
		t.Fatalf("equal argument vectors must yield the identical descriptor")
	}
	t3 := u.Tuple2(b.Bool, b.Int64)
	if t3 == t1 {
		t.Fatalf("differing argument order must yield a different descriptor")
	}
}

func TestTupleLayout(t *testing.T) {
	u, _ := newUniverse()
	b := u.Builtins()
	d := u.Tuple3(b.Int32, b.Int8, b.Int64)
	want := []int{0, 4, 8}
	for i, off := range d.Tuple.Offsets {
		if off != want[i] {
			t.Fatalf("offset[%d] = %d, want %d", i, off, want[i])
		}
	}
	if d.Ops.Size != 16 || d.Ops.Stride != 16 || d.Ops.Align != 8 {
		t.Fatalf("size/stride/align = %d/%d/%d", d.Ops.Size, d.Ops.Stride, d.Ops.Align)
	}
}

func TestSingleElementTupleSharesTable(t *testing.T) {
	u, mem := newUniverse()
	cls := u.NewClass("Box", nil, nil, nil)
	one := u.Tuple1(cls)
	if one.Ops != cls.Ops {
		t.Fatalf("single-element aggregate must reuse the element's table")
	}
	_ = mem
}

func TestPODTableReuse(t *testing.T) {
	u, _ := newUniverse()
	b := u.Builtins()
	p1 := u.NewStruct("P1", []meta.ClassField{{Name: "x", Type: b.Int64}, {Name: "y", Type: b.Int64}})
	p2 := u.NewStruct("P2", []meta.ClassField{{Name: "a", Type: b.Int64}, {Name: "b", Type: b.Int64}})
	if p1 == p2 {
		t.Fatalf("distinct nominal structs must be distinct descriptors")
	}
	if p1.Ops != p2.Ops {
		t.Fatalf("same-shape POD structs must share one memcpy table")
	}
}

func TestFunctionUniquing(t *testing.T) {
	u, _ := newUniverse()
	b := u.Builtins()
	f1 := u.Function([]*meta.Descriptor{b.Int64}, b.Bool)
	f2 := u.Function([]*meta.Descriptor{b.Int64}, b.Bool)
	if f1 != f2 {
		t.Fatalf("function types must unique")
	}
	if f1 == u.Function([]*meta.Descriptor{b.Bool}, b.Int64) {
		t.Fatalf("different signatures must differ")
	}
}

func TestMetatypeRoundTrip(t *testing.T) {
	u, _ := newUniverse()
	b := u.Builtins()
	mt := u.Metatype(b.Int64)
	if mt != u.Metatype(b.Int64) {
		t.Fatalf("metatypes must unique")
	}
	v := make([]byte, mt.Ops.Size)
	u.MetatypeValue(v, b.Int64)
	if got := u.MetatypeInstance(v); got != b.Int64 {
		t.Fatalf("stored type ref resolved to %v", got)
	}
}

func TestClassInstanceLayoutFollowsSuper(t *testing.T) {
	u, _ := newUniverse()
	b := u.Builtins()
	base := u.NewClass("Base", nil, []meta.ClassField{{Name: "n", Type: b.Int64}}, nil)
	derived := u.NewClass("Derived", base, []meta.ClassField{{Name: "m", Type: b.Int32}}, nil)
	if base.Class.FieldOffsets[0] != u.Target.HeaderSize {
		t.Fatalf("base field offset = %d", base.Class.FieldOffsets[0])
	}
	if derived.Class.FieldOffsets[0] != base.Class.InstanceSize {
		t.Fatalf("derived fields must start at the superclass instance size")
	}
	if derived.Superclass() != base {
		t.Fatalf("superclass pointer mismatch")
	}
}

func TestEnumPayloadLifecycle(t *testing.T) {
	u, mem := newUniverse()
	_ = u.Builtins()
	cls := u.NewClass("Box", nil, nil, nil)
	opt := u.NewEnum("Opt", []string{"none", "some"}, []*meta.Descriptor{nil, cls})

	if opt.Ops.POD {
		t.Fatalf("enum with a reference payload must not be POD")
	}
	if opt.Enum.PayloadOffset != 8 {
		t.Fatalf("payload offset = %d, want 8 for an 8-aligned payload", opt.Enum.PayloadOffset)
	}

	h := mem.Allocate(cls)
	v := make([]byte, opt.Ops.Size)
	meta.EnumInit(v, opt, 1)
	meta.StoreHandle(meta.EnumPayload(v, opt), h)

	w := make([]byte, opt.Ops.Size)
	opt.Ops.InitCopy(w, v)
	if got := mem.RefCount(h); got != 2 {
		t.Fatalf("copying the payload case must retain, refcount = %d", got)
	}
	if meta.EnumCase(w, opt) != 1 {
		t.Fatalf("copy lost the case tag")
	}
	opt.Ops.Destroy(w)
	opt.Ops.Destroy(v)
	if mem.Live() != 0 {
		t.Fatalf("payload references leaked")
	}

	none := make([]byte, opt.Ops.Size)
	meta.EnumInit(none, opt, 0)
	opt.Ops.Destroy(none)
	if meta.EnumPayload(none, opt) != nil {
		t.Fatalf("payloadless case must project no payload")
	}
}

func TestExistentialUniquesBySortedProtocols(t *testing.T) {
	u, _ := newUniverse()
	p1 := meta.NewProtocol("Drawable", false)
	p2 := meta.NewProtocol("Equatable", false)
	e1 := u.Existential(false, p1, p2)
	e2 := u.Existential(false, p2, p1)
	if e1 != e2 {
		t.Fatalf("protocol order must not affect identity")
	}
	if u.Existential(false, p1) == e1 {
		t.Fatalf("different constraint sets must differ")
	}
}

func TestExistentialPackProject(t *testing.T) {
	u, mem := newUniverse()
	b := u.Builtins()
	point := u.NewStruct("Point", []meta.ClassField{{Name: "x", Type: b.Int64}, {Name: "y", Type: b.Int64}})
	p := meta.NewProtocol("Drawable", false)
	box := u.Existential(false, p)

	src := make([]byte, point.Ops.Size)
	src[0] = 7
	src[8] = 9
	dst := make([]byte, box.Ops.Size)
	u.ExistentialInit(dst, box, point, src, []*meta.WitnessTable{nil}, false)

	inner, iv := u.ExistentialProject(dst, box)
	if inner != point {
		t.Fatalf("projected type = %v, want Point", inner)
	}
	if iv[0] != 7 || iv[8] != 9 {
		t.Fatalf("projected value corrupted: % x", iv)
	}
	box.Ops.Destroy(dst)
	if mem.Live() != 0 {
		t.Fatalf("inline payload must not touch the heap, %d live", mem.Live())
	}
}

func TestExistentialSpillsLargeValues(t *testing.T) {
	u, mem := newUniverse()
	b := u.Builtins()
	big := u.NewStruct("Big", []meta.ClassField{
		{Name: "a", Type: b.Int64}, {Name: "b", Type: b.Int64},
		{Name: "c", Type: b.Int64}, {Name: "d", Type: b.Int64},
	})
	if big.Ops.Inline {
		t.Fatalf("four words must not fit the inline buffer")
	}
	box := u.Existential(false)
	src := make([]byte, big.Ops.Size)
	src[24] = 42
	dst := make([]byte, box.Ops.Size)
	u.ExistentialInit(dst, box, big, src, nil, false)
	if mem.Live() != 1 {
		t.Fatalf("spilled payload must allocate one buffer, %d live", mem.Live())
	}
	_, iv := u.ExistentialProject(dst, box)
	if iv[24] != 42 {
		t.Fatalf("spilled value corrupted")
	}
	box.Ops.Destroy(dst)
	if mem.Live() != 0 {
		t.Fatalf("destroy must release the spilled buffer")
	}
}

func TestInstantiateBuildsOnce(t *testing.T) {
	u, _ := newUniverse()
	b := u.Builtins()
	var fills atomic.Int32
	pattern := &meta.GenericPattern{
		Name: "Pair",
		Fill: func(u *meta.Universe, args []*meta.Descriptor) *meta.Descriptor {
			fills.Add(1)
			return u.MakeStruct("Pair", []meta.ClassField{
				{Name: "first", Type: args[0]},
				{Name: "second", Type: args[1]},
			})
		},
	}

	const workers = 16
	results := make([]*meta.Descriptor, workers)
	var g errgroup.Group
	for i := 0; i < workers; i++ {
		i := i
		g.Go(func() error {
			results[i] = u.Instantiate(pattern, b.Int64, b.Bool)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if n := fills.Load(); n != 1 {
		t.Fatalf("fill ran %d times, want 1", n)
	}
	for i := 1; i < workers; i++ {
		if results[i] != results[0] {
			t.Fatalf("worker %d received a different instantiation", i)
		}
	}
	if results[0].Pattern != pattern {
		t.Fatalf("instantiation must record its pattern")
	}

	other := u.Instantiate(pattern, b.Bool, b.Int64)
	if other == results[0] {
		t.Fatalf("different arguments must instantiate separately")
	}
}

func TestInstantiateRejectsPublishedFill(t *testing.T) {
	u, _ := newUniverse()
	b := u.Builtins()
	pattern := &meta.GenericPattern{
		Name: "Leaky",
		Fill: func(u *meta.Universe, args []*meta.Descriptor) *meta.Descriptor {
			return u.NewStruct("Leaky", []meta.ClassField{{Name: "x", Type: args[0]}})
		},
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("a fill that publishes its own descriptor must panic")
		}
	}()
	u.Instantiate(pattern, b.Int64)
}

func TestInstantiationIsNeverVisibleWithoutItsPattern(t *testing.T) {
	u, _ := newUniverse()
	b := u.Builtins()
	pattern := &meta.GenericPattern{
		Name: "Gen",
		Fill: func(u *meta.Universe, args []*meta.Descriptor) *meta.Descriptor {
			return u.MakeStruct("Gen", []meta.ClassField{{Name: "x", Type: args[0]}})
		},
	}

	// A scanner racing the instantiation may or may not see the new
	// descriptor, but it must never see it before the pattern is set.
	done := make(chan struct{})
	var g errgroup.Group
	g.Go(func() error {
		for {
			for _, d := range u.Descriptors() {
				if d.Name == "Gen" && d.Pattern == nil {
					return fmt.Errorf("descriptor published without its pattern")
				}
			}
			select {
			case <-done:
				return nil
			default:
			}
		}
	})
	for _, arg := range []*meta.Descriptor{b.Int64, b.Bool, b.Float64} {
		u.Instantiate(pattern, arg)
	}
	close(done)
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}

func TestByRefResolvesPublishedDescriptors(t *testing.T) {
	u, _ := newUniverse()
	b := u.Builtins()
	d := u.Tuple2(b.Int64, b.Int64)
	if d.Ref() == meta.NoRef {
		t.Fatalf("published descriptor must carry a ref")
	}
	if u.ByRef(d.Ref()) != d {
		t.Fatalf("ref must resolve to the same descriptor")
	}
}

func TestForeignWrapperUniquing(t *testing.T) {
	fake := heap.NewMem()
	u := meta.NewUniverse(fake, foreignStub{})
	root := u.ForeignClass("NSObject", nil)
	str := u.ForeignClass("NSString", root)
	w1 := u.WrapForeign(str)
	w2 := u.WrapForeign(str)
	if w1 != w2 {
		t.Fatalf("wrappers must unique per foreign class")
	}
	if w1.Kind != meta.KindObjectWrapper {
		t.Fatalf("wrapper kind = %v", w1.Kind)
	}
	if w1.Superclass() != u.WrapForeign(root) {
		t.Fatalf("wrapper chain must mirror the foreign chain")
	}
}

type foreignStub struct{}

func (foreignStub) Retain(meta.Handle)                       {}
func (foreignStub) Release(meta.Handle)                      {}
func (foreignStub) DynamicType(meta.Handle) *meta.Descriptor { return nil }
