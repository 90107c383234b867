package meta

import (
	"veld/internal/layout"
)

// Tuple returns the unique descriptor for a tuple of the given element
// types. Concurrent first requests for the same element vector build once.
func (u *Universe) Tuple(elems ...*Descriptor) *Descriptor {
	key := argsKey(elems)
	return u.tuples.GetOrBuild(key, func() *Descriptor {
		lf := make([]layout.Field, len(elems))
		for i, e := range elems {
			lf[i] = fieldOf(e)
		}
		res := layout.Compute(u.Target, lf, 0)
		d := &Descriptor{
			Kind: KindTuple,
			Ops:  u.aggregateOps(elems, res.Offsets, res),
			Tuple: &TupleData{
				Elems:   append([]*Descriptor(nil), elems...),
				Offsets: res.Offsets,
			},
		}
		return u.register(d)
	})
}

// Small fixed-arity entry points, one per arity the code generator emits.

// Tuple1 is the unary get-or-build entry point.
func (u *Universe) Tuple1(a *Descriptor) *Descriptor { return u.Tuple(a) }

// Tuple2 is the binary get-or-build entry point.
func (u *Universe) Tuple2(a, b *Descriptor) *Descriptor { return u.Tuple(a, b) }

// Tuple3 is the ternary get-or-build entry point.
func (u *Universe) Tuple3(a, b, c *Descriptor) *Descriptor { return u.Tuple(a, b, c) }

// Function returns the unique descriptor for a function type. The value
// representation is one code-reference word; captures live behind it, so the
// representation is a retained handle like any reference.
func (u *Universe) Function(params []*Descriptor, result *Descriptor) *Descriptor {
	args := make([]*Descriptor, 0, len(params)+1)
	args = append(args, params...)
	args = append(args, result)
	key := argsKey(args)
	return u.functions.GetOrBuild(key, func() *Descriptor {
		d := &Descriptor{
			Kind: KindFunction,
			Ops:  u.refOps,
			Function: &FunctionData{
				Params: append([]*Descriptor(nil), params...),
				Result: result,
			},
		}
		return u.register(d)
	})
}

// Metatype returns the unique descriptor for the type of a concrete type.
// The value representation is one descriptor ref word; the static type is
// exact, so the table carries no dynamic-type operation.
func (u *Universe) Metatype(instance *Descriptor) *Descriptor {
	key := argsKey([]*Descriptor{instance})
	return u.metatypes.GetOrBuild(key, func() *Descriptor {
		d := &Descriptor{
			Kind:     KindMetatype,
			Ops:      u.sharedPODOps(WordSize, WordSize, WordSize, true),
			Metatype: &MetatypeData{Instance: instance},
		}
		return u.register(d)
	})
}

// ExistentialMetatype returns the unique descriptor for "any type conforming
// to the constraint", one type level up from the existential itself. The
// stored word is the descriptor ref of the conforming type, followed by its
// witness refs.
func (u *Universe) ExistentialMetatype(exist *Descriptor) *Descriptor {
	checkKind(exist, KindExistential)
	key := argsKey([]*Descriptor{exist})
	return u.metatypes.GetOrBuild("em:"+key, func() *Descriptor {
		n := exist.Existential.WitnessCount()
		size := WordSize * (1 + n)
		t := u.podOps(size, WordSize, size, size <= u.Target.InlineCapacity)
		t.DynamicType = func(v []byte) *Descriptor {
			stored := u.ByRef(Ref(word(v)))
			if stored == nil {
				return nil
			}
			return u.Metatype(stored)
		}
		d := &Descriptor{
			Kind:     KindExistentialMetatype,
			Ops:      t,
			Metatype: &MetatypeData{Instance: exist},
		}
		return u.register(d)
	})
}

// MetatypeValue writes a type reference into metatype storage.
func (u *Universe) MetatypeValue(v []byte, instance *Descriptor) {
	if instance.ref == NoRef {
		panic("meta: storing unpublished descriptor into metatype value")
	}
	putWord(v, uint64(instance.ref))
}

// MetatypeInstance reads the type a metatype value stores.
func (u *Universe) MetatypeInstance(v []byte) *Descriptor {
	return u.ByRef(Ref(word(v)))
}
