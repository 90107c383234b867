package meta

import "veld/internal/unique"

// ForeignClass publishes the descriptor for a class owned by the foreign
// object model. Foreign classes are nominal in the foreign runtime, so they
// unique by name; lifetime operations defer to the foreign runtime.
func (u *Universe) ForeignClass(name string, super *Descriptor) *Descriptor {
	if u.frgnOps == nil {
		panic("meta: foreign class in a universe without a foreign runtime")
	}
	if super != nil {
		checkKind(super, KindForeignReference)
	}
	var superPart uint64
	if super != nil {
		superPart = uint64(super.ref)
	}
	key := name + "/" + unique.Key(superPart)
	return u.foreigns.GetOrBuild(key, func() *Descriptor {
		d := &Descriptor{
			Kind: KindForeignReference,
			Name: name,
			Ops:  u.frgnOps,
			Foreign: &ForeignData{
				ClassName: name,
				Super:     super,
			},
		}
		return u.register(d)
	})
}

// WrapForeign translates a foreign class descriptor to its unique local
// wrapper. Wrappers exist so pointer comparison stays meaningful for types
// that originate outside this runtime; the wrapper's superclass chain
// mirrors the foreign chain, wrapped level by level.
func (u *Universe) WrapForeign(foreign *Descriptor) *Descriptor {
	checkKind(foreign, KindForeignReference)
	key := argsKey([]*Descriptor{foreign})
	return u.wrappers.GetOrBuild(key, func() *Descriptor {
		var super *Descriptor
		if fs := foreign.Foreign.Super; fs != nil {
			super = u.WrapForeign(fs)
		}
		d := &Descriptor{
			Kind: KindObjectWrapper,
			Name: foreign.Name,
			Ops:  foreign.Ops,
			Wrapper: &WrapperData{
				Foreign: foreign,
				Super:   super,
			},
		}
		return u.register(d)
	})
}
