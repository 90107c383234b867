// Package demangle renders human-readable type names for diagnostics.
// It is only consulted on failure paths, never on a success path.
package demangle

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"veld/internal/meta"
)

// Name returns the human-readable name of a descriptor. Identifier text is
// NFC-normalized so diagnostics render source names consistently.
func Name(d *meta.Descriptor) string {
	if d == nil {
		return "<unknown>"
	}
	switch d.Kind {
	case meta.KindTuple:
		parts := make([]string, len(d.Tuple.Elems))
		for i, e := range d.Tuple.Elems {
			parts[i] = Name(e)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case meta.KindFunction:
		parts := make([]string, len(d.Function.Params))
		for i, p := range d.Function.Params {
			parts[i] = Name(p)
		}
		return "(" + strings.Join(parts, ", ") + ") -> " + Name(d.Function.Result)
	case meta.KindMetatype:
		return Name(d.Metatype.Instance) + ".Type"
	case meta.KindExistentialMetatype:
		return Name(d.Metatype.Instance) + ".Type"
	case meta.KindObjectWrapper:
		return ident(d.Name)
	case meta.KindExistential:
		return existentialName(d)
	default:
		if d.Name == "" {
			return d.Kind.String()
		}
		return ident(d.Name)
	}
}

func existentialName(d *meta.Descriptor) string {
	data := d.Existential
	if len(data.Protocols) == 0 {
		if data.ClassConstrained {
			return "AnyRef"
		}
		return "Any"
	}
	parts := make([]string, len(data.Protocols))
	for i, p := range data.Protocols {
		parts[i] = ident(p.Name)
	}
	return "any " + strings.Join(parts, " & ")
}

func ident(s string) string {
	return norm.NFC.String(s)
}
