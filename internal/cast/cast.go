// Package cast implements the dynamic cast engine: every checked conversion
// generated code performs goes through Engine.Cast. Dispatch is a
// hand-specified set of rules per (source kind, target kind) pair, not a
// general subtyping algorithm.
package cast

import (
	"fmt"

	"veld/internal/bridge"
	"veld/internal/conformance"
	"veld/internal/demangle"
	"veld/internal/meta"
)

// Flags select the cast variant and its ownership contract.
type Flags uint8

const (
	// Unconditional promotes a failed cast to a fatal diagnostic.
	Unconditional Flags = 1 << iota
	// TakeOnSuccess moves the source into the destination instead of
	// copying; on success the source is consumed.
	TakeOnSuccess
	// DestroyOnFailure consumes the source even when the cast fails, so
	// the source is destroyed on every outcome.
	DestroyOnFailure
)

func (f Flags) has(x Flags) bool { return f&x != 0 }

// Engine dispatches dynamic casts over a universe. Foreign and Bridges may
// be nil when no foreign object model is attached.
type Engine struct {
	Universe     *meta.Universe
	Conformances *conformance.Cache
	Foreign      bridge.Runtime
	Bridges      *bridge.WitnessRegistry

	// Fatal reports an unconditional cast failure and must not return.
	// nil panics with the diagnostic.
	Fatal func(msg string)
}

// New returns an engine over the given collaborators.
func New(u *meta.Universe, c *conformance.Cache, foreign bridge.Runtime, bridges *bridge.WitnessRegistry) *Engine {
	return &Engine{
		Universe:     u,
		Conformances: c,
		Foreign:      foreign,
		Bridges:      bridges,
	}
}

// Cast checks src (a value of srcType) against targetType and on success
// initializes dst with the converted value. Every branch leaves the source
// in exactly the state the flags specify: untouched on a plain conditional
// failure, consumed on success with TakeOnSuccess, destroyed on failure
// with DestroyOnFailure.
func (e *Engine) Cast(dst, src []byte, srcType, targetType *meta.Descriptor, flags Flags) bool {
	if srcType == nil || targetType == nil {
		panic("cast: nil type descriptor")
	}
	if e.tryCast(dst, src, srcType, targetType, flags.has(TakeOnSuccess)) {
		return true
	}
	if flags.has(DestroyOnFailure) {
		srcType.Ops.Destroy(src)
	}
	if flags.has(Unconditional) {
		e.fail(srcType, targetType)
	}
	return false
}

// tryCast performs the conversion. On success the source is consumed iff
// take; on failure the source is always left intact.
func (e *Engine) tryCast(dst, src []byte, srcType, targetType *meta.Descriptor, take bool) bool {
	// Identical concrete descriptor: direct copy/move via the shared
	// table, no further dispatch.
	if srcType == targetType {
		if take {
			srcType.Ops.InitTake(dst, src)
		} else {
			srcType.Ops.InitCopy(dst, src)
		}
		return true
	}

	// Existential sources are transparent: project the concrete value
	// and type out and recurse with that pair as the new source. The
	// recursion is bounded by the existential nesting depth. The inner
	// cast copies; when taking, the container is destroyed afterwards,
	// which consumes exactly the outer source.
	if srcType.Kind == meta.KindExistential {
		inner, iv := e.Universe.ExistentialProject(src, srcType)
		if inner == nil {
			return false
		}
		if !e.tryCast(dst, iv, inner, targetType, false) {
			return false
		}
		if take {
			srcType.Ops.Destroy(src)
		}
		return true
	}

	switch targetType.Kind {
	case meta.KindClass, meta.KindObjectWrapper, meta.KindForeignReference:
		return e.castToReference(dst, src, srcType, targetType, take)
	case meta.KindExistential:
		return e.castToExistential(dst, src, srcType, targetType, take)
	case meta.KindMetatype:
		return e.castToMetatype(dst, src, srcType, targetType)
	case meta.KindExistentialMetatype:
		return e.castToExistentialMetatype(dst, src, srcType, targetType)
	case meta.KindStruct, meta.KindEnum, meta.KindTuple, meta.KindOpaque, meta.KindFunction:
		return e.castToConcrete(dst, src, srcType, targetType, take)
	default:
		panic(fmt.Sprintf("cast: unhandled target kind %v", targetType.Kind))
	}
}

// castToReference casts into a class, object-wrapper or foreign-reference
// target by walking superclass chains over descriptor pointers, deferring
// to the host object model for foreign targets.
func (e *Engine) castToReference(dst, src []byte, srcType, targetType *meta.Descriptor, take bool) bool {
	if !srcType.Kind.IsReference() {
		// A value source can only reach a reference target through a
		// declared bridging witness.
		return e.bridgeToForeign(dst, src, srcType, targetType, take)
	}
	h := meta.LoadHandle(src)
	if h == meta.NoHandle {
		return false
	}
	dyn := srcType.Ops.DynamicType(src)
	if dyn == nil {
		return false
	}

	if targetType.Kind == meta.KindForeignReference {
		// Foreign-bridged references defer to the host object model's
		// own class test.
		if dyn.Kind != meta.KindForeignReference || e.Foreign == nil {
			return false
		}
		if !e.Foreign.ClassTest(h, targetType) {
			return false
		}
	} else {
		if !referenceChainContains(dyn.Canonical(e.Universe), targetType) {
			return false
		}
	}

	// The representation along the whole chain is one handle word;
	// the source's own table applies the right retain discipline.
	if take {
		srcType.Ops.InitTake(dst[:meta.WordSize], src[:meta.WordSize])
	} else {
		srcType.Ops.InitCopy(dst[:meta.WordSize], src[:meta.WordSize])
	}
	return true
}

// referenceChainContains walks target's position in dyn's superclass chain
// comparing descriptor pointers.
func referenceChainContains(dyn, target *meta.Descriptor) bool {
	for c := dyn; c != nil; c = c.Superclass() {
		if c == target {
			return true
		}
	}
	return false
}

// castToExistential re-derives the source's dynamic type, checks it against
// every protocol of the target through the conformance cache, then packs
// the value into the destination representation.
func (e *Engine) castToExistential(dst, src []byte, srcType, targetType *meta.Descriptor, take bool) bool {
	data := targetType.Existential

	dyn := srcType
	if srcType.Ops.DynamicType != nil {
		if d := srcType.Ops.DynamicType(src); d != nil {
			dyn = d
		}
	}

	if data.ClassConstrained {
		// The compact representation holds one locally retained
		// handle; only local references qualify.
		if srcType.Kind != meta.KindClass {
			return false
		}
	}

	witnesses := make([]*meta.WitnessTable, 0, data.WitnessCount())
	check := dyn.Canonical(e.Universe)
	for _, p := range data.Protocols {
		w, ok := e.Conformances.Lookup(check, p)
		if !ok {
			return false
		}
		witnesses = append(witnesses, w)
	}

	packed := dyn
	if dyn.Kind == meta.KindForeignReference {
		packed = dyn.Canonical(e.Universe)
	}
	e.Universe.ExistentialInit(dst, targetType, packed, src, witnesses, take)
	return true
}

// castToMetatype handles metatype-to-metatype casts, one type level up from
// the reference rules: a stored class type converts to any of its
// superclass metatypes.
func (e *Engine) castToMetatype(dst, src []byte, srcType, targetType *meta.Descriptor) bool {
	switch srcType.Kind {
	case meta.KindMetatype, meta.KindExistentialMetatype:
	default:
		return false
	}
	stored := e.Universe.MetatypeInstance(src)
	if stored == nil {
		return false
	}
	want := targetType.Metatype.Instance
	if stored != want && !referenceChainContains(stored.Canonical(e.Universe), want) {
		return false
	}
	e.Universe.MetatypeValue(dst, stored)
	return true
}

// castToExistentialMetatype checks the stored type's conformances and packs
// the type-level container.
func (e *Engine) castToExistentialMetatype(dst, src []byte, srcType, targetType *meta.Descriptor) bool {
	switch srcType.Kind {
	case meta.KindMetatype, meta.KindExistentialMetatype:
	default:
		return false
	}
	stored := e.Universe.MetatypeInstance(src)
	if stored == nil {
		return false
	}
	exist := targetType.Metatype.Instance
	off := meta.WordSize
	for _, p := range exist.Existential.Protocols {
		w, ok := e.Conformances.Lookup(stored.Canonical(e.Universe), p)
		if !ok {
			return false
		}
		meta.StoreHandle(dst[off:], meta.Handle(e.Universe.WitnessRef(w)))
		off += meta.WordSize
	}
	e.Universe.MetatypeValue(dst, stored)
	return true
}

// castToConcrete casts into a struct/enum/tuple/opaque/function target.
// With identical descriptors handled earlier and existential sources
// unwrapped, the only remaining rule is unbridging a foreign reference
// through the target's declared bridging witness.
func (e *Engine) castToConcrete(dst, src []byte, srcType, targetType *meta.Descriptor, take bool) bool {
	if !srcType.Kind.IsReference() {
		return false
	}
	w := e.Bridges.Lookup(targetType)
	if w == nil {
		return false
	}
	h := meta.LoadHandle(src)
	if h == meta.NoHandle {
		return false
	}
	if w.CondFromForeign != nil {
		if !w.CondFromForeign(dst, h) {
			return false
		}
	} else if w.ForceFromForeign != nil {
		w.ForceFromForeign(dst, h)
	} else {
		return false
	}
	if take {
		srcType.Ops.Destroy(src)
	}
	return true
}

// bridgeToForeign converts a bridgeable local value through its foreign
// representation, then re-enters the reference cast path against the
// target.
func (e *Engine) bridgeToForeign(dst, src []byte, srcType, targetType *meta.Descriptor, take bool) bool {
	w := e.Bridges.Lookup(srcType)
	if w == nil || w.ToForeign == nil || w.ForeignClass == nil {
		return false
	}
	if w.Bridgeable != nil && !w.Bridgeable(src) {
		return false
	}
	tmp := make([]byte, meta.WordSize)
	meta.StoreHandle(tmp, w.ToForeign(src)) // retained
	if !e.castToReference(dst, tmp, w.ForeignClass, targetType, true) {
		w.ForeignClass.Ops.Destroy(tmp)
		return false
	}
	if take {
		srcType.Ops.Destroy(src)
	}
	return true
}

// fail reports an unconditional cast failure with both demangled type
// names. The engine has no unwinding mechanism; this never returns.
func (e *Engine) fail(srcType, targetType *meta.Descriptor) {
	msg := fmt.Sprintf("cast: value of type '%s' does not convert to '%s'",
		demangle.Name(srcType), demangle.Name(targetType))
	if e.Fatal != nil {
		e.Fatal(msg)
	}
	panic(msg)
}
