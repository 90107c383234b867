package meta

import (
	"fmt"

	"veld/internal/layout"
)

// NewStruct publishes a monomorphic struct descriptor. The code generator
// calls this exactly once per nominal declaration; generic instantiations go
// through Instantiate instead.
func (u *Universe) NewStruct(name string, fields []ClassField) *Descriptor {
	return u.register(u.MakeStruct(name, fields))
}

// MakeStruct builds a struct descriptor without publishing it. Pattern fill
// callbacks use the Make constructors so Instantiate can finish the
// descriptor before it becomes reachable.
func (u *Universe) MakeStruct(name string, fields []ClassField) *Descriptor {
	lf := make([]layout.Field, len(fields))
	elems := make([]*Descriptor, len(fields))
	for i, f := range fields {
		if f.Type == nil {
			panic(fmt.Sprintf("meta: struct %s field %s has no type", name, f.Name))
		}
		lf[i] = fieldOf(f.Type)
		elems[i] = f.Type
	}
	res := layout.Compute(u.Target, lf, 0)
	return &Descriptor{
		Kind: KindStruct,
		Name: name,
		Ops:  u.aggregateOps(elems, res.Offsets, res),
		Struct: &StructData{
			Fields:  append([]ClassField(nil), fields...),
			Offsets: res.Offsets,
		},
	}
}

// NewEnum publishes an enum descriptor: a 32-bit case tag followed by the
// payload area sized for the largest payload. payloads is parallel to cases;
// nil marks a payloadless case.
func (u *Universe) NewEnum(name string, cases []string, payloads []*Descriptor) *Descriptor {
	return u.register(u.MakeEnum(name, cases, payloads))
}

// MakeEnum builds an enum descriptor without publishing it.
func (u *Universe) MakeEnum(name string, cases []string, payloads []*Descriptor) *Descriptor {
	if len(payloads) != len(cases) {
		panic(fmt.Sprintf("meta: enum %s: %d cases but %d payload types", name, len(cases), len(payloads)))
	}
	maxSize, maxAlign := 0, 1
	pod, takable := true, true
	for _, p := range payloads {
		if p == nil {
			continue
		}
		maxSize = maxInt(maxSize, p.Ops.Size)
		maxAlign = maxInt(maxAlign, p.Ops.Align)
		pod = pod && p.Ops.POD
		takable = takable && p.Ops.BitwiseTakable
	}
	payloadOffset := roundUp(TagSize, maxAlign)
	align := maxInt(TagSize, maxAlign)
	size := roundUp(payloadOffset+maxSize, align)
	stride := size
	inline := size <= u.Target.InlineCapacity && align <= u.Target.PtrAlign

	data := &EnumData{
		Cases:         append([]string(nil), cases...),
		PayloadTypes:  append([]*Descriptor(nil), payloads...),
		PayloadOffset: payloadOffset,
	}
	var ops *OpsTable
	if pod {
		ops = u.sharedPODOps(size, align, stride, inline)
	} else {
		ops = u.enumOps(data, size, align, stride, takable, inline)
	}
	return &Descriptor{
		Kind: KindEnum,
		Name: name,
		Ops:  ops,
		Enum: data,
	}
}

// EnumInit writes a case tag into uninitialized enum storage. The payload
// area, when the case has one, is initialized by the caller afterwards.
func EnumInit(v []byte, d *Descriptor, c int) {
	checkKind(d, KindEnum)
	if c < 0 || c >= len(d.Enum.Cases) {
		panic(fmt.Sprintf("meta: enum %s case %d out of range", d.Name, c))
	}
	putTag(v, uint32(c))
}

// EnumCase reads the stored case tag.
func EnumCase(v []byte, d *Descriptor) int {
	checkKind(d, KindEnum)
	return int(tag(v))
}

// EnumPayload returns the payload storage window for the stored case, nil
// for payloadless cases.
func EnumPayload(v []byte, d *Descriptor) []byte {
	checkKind(d, KindEnum)
	p := d.Enum.PayloadTypes[tag(v)]
	if p == nil {
		return nil
	}
	return v[d.Enum.PayloadOffset : d.Enum.PayloadOffset+p.Ops.Size]
}

// enumOps dispatches lifecycle operations on the stored case tag.
func (u *Universe) enumOps(data *EnumData, size, align, stride int, takable, inline bool) *OpsTable {
	payloadOps := func(v []byte) *OpsTable {
		c := tag(v)
		if int(c) >= len(data.PayloadTypes) {
			panic(fmt.Sprintf("meta: enum tag %d out of range", c))
		}
		if p := data.PayloadTypes[c]; p != nil {
			return p.Ops
		}
		return nil
	}
	window := func(v []byte, ops *OpsTable) []byte {
		return v[data.PayloadOffset : data.PayloadOffset+ops.Size]
	}

	t := &OpsTable{
		Size:           size,
		Align:          align,
		Stride:         stride,
		POD:            false,
		BitwiseTakable: takable,
		Inline:         inline,
		InitCopy: func(dst, src []byte) {
			copy(dst[:TagSize], src[:TagSize])
			if p := payloadOps(src); p != nil {
				p.InitCopy(window(dst, p), window(src, p))
			}
		},
		AssignCopy: func(dst, src []byte) {
			if p := payloadOps(dst); p != nil {
				p.Destroy(window(dst, p))
			}
			copy(dst[:TagSize], src[:TagSize])
			if p := payloadOps(src); p != nil {
				p.InitCopy(window(dst, p), window(src, p))
			}
		},
		Destroy: func(v []byte) {
			if p := payloadOps(v); p != nil {
				p.Destroy(window(v, p))
			}
		},
	}
	if takable {
		t.InitTake = memcpyInit
	} else {
		t.InitTake = func(dst, src []byte) {
			copy(dst[:TagSize], src[:TagSize])
			if p := payloadOps(src); p != nil {
				p.InitTake(window(dst, p), window(src, p))
			}
		}
	}
	t.AssignTake = func(dst, src []byte) {
		t.Destroy(dst)
		t.InitTake(dst, src)
	}
	u.attachBufferOps(t)
	return t
}

// NewClass publishes a class descriptor. Instance fields are placed after
// the superclass's fields (or after the object header for a root class);
// the value representation is one retained handle using the shared
// reference table. deinit may be nil, in which case a field-iterating
// destructor chaining into the superclass is synthesized.
func (u *Universe) NewClass(name string, super *Descriptor, fields []ClassField, deinit func(data []byte)) *Descriptor {
	return u.register(u.MakeClass(name, super, fields, deinit))
}

// MakeClass builds a class descriptor without publishing it.
func (u *Universe) MakeClass(name string, super *Descriptor, fields []ClassField, deinit func(data []byte)) *Descriptor {
	start := u.Target.HeaderSize
	baseAlign := 1
	if super != nil {
		checkKind(super, KindClass)
		start = super.Class.InstanceSize
		baseAlign = super.Class.InstanceAlign
	}
	lf := make([]layout.Field, len(fields))
	for i, f := range fields {
		if f.Type == nil {
			panic(fmt.Sprintf("meta: class %s field %s has no type", name, f.Name))
		}
		lf[i] = fieldOf(f.Type)
	}
	res := layout.Compute(u.Target, lf, start)
	data := &ClassData{
		Super:         super,
		Fields:        append([]ClassField(nil), fields...),
		InstanceSize:  res.Size,
		InstanceAlign: maxInt(baseAlign, res.Align),
		FieldOffsets:  res.Offsets,
		Deinit:        deinit,
	}
	if data.Deinit == nil {
		data.Deinit = u.contentDeinit(data)
	}
	return &Descriptor{
		Kind:  KindClass,
		Name:  name,
		Ops:   u.refOps,
		Class: data,
	}
}

// contentDeinit destroys own fields then chains to the superclass.
func (u *Universe) contentDeinit(data *ClassData) func([]byte) {
	return func(instance []byte) {
		for i, f := range data.Fields {
			ops := f.Type.Ops
			if ops.POD {
				continue
			}
			off := data.FieldOffsets[i]
			ops.Destroy(instance[off : off+ops.Size])
		}
		if data.Super != nil && data.Super.Class.Deinit != nil {
			data.Super.Class.Deinit(instance)
		}
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
