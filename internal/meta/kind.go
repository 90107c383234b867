package meta

import "fmt"

// Kind enumerates all run-time type shapes.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindOpaque
	KindStruct
	KindEnum
	KindTuple
	KindFunction
	KindClass
	KindObjectWrapper
	KindForeignReference
	KindExistential
	KindExistentialMetatype
	KindMetatype
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindOpaque:
		return "opaque"
	case KindStruct:
		return "struct"
	case KindEnum:
		return "enum"
	case KindTuple:
		return "tuple"
	case KindFunction:
		return "function"
	case KindClass:
		return "class"
	case KindObjectWrapper:
		return "object-wrapper"
	case KindForeignReference:
		return "foreign-reference"
	case KindExistential:
		return "existential"
	case KindExistentialMetatype:
		return "existential-metatype"
	case KindMetatype:
		return "metatype"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// IsReference reports whether values of this kind are single retained handles.
func (k Kind) IsReference() bool {
	switch k {
	case KindClass, KindObjectWrapper, KindForeignReference:
		return true
	default:
		return false
	}
}
