// Package codec implements the lossless projection between the wire string
// form carried in uplink JSON payloads and the typed values expected by the
// parameter bus.
package codec

// WireType identifies the canonical type of a string-encoded value as
// observed on the wire. The set is closed; new native types fold into one
// of these twelve codes rather than growing the enum.
type WireType int

const (
	TypeString WireType = 0
	TypeInt    WireType = 1
	TypeUint   WireType = 2
	TypeBool   WireType = 3
	TypeFloat  WireType = 4
	TypeDate   WireType = 5
	TypeBytes  WireType = 6
	TypeLong   WireType = 7
	TypeUlong  WireType = 8
	TypeByte   WireType = 9
	TypeNone   WireType = 10
	TypeGroup  WireType = 11
)

// String returns the wire name of the type, used in log fields and error
// messages.
func (t WireType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt:
		return "int"
	case TypeUint:
		return "uint"
	case TypeBool:
		return "bool"
	case TypeFloat:
		return "float"
	case TypeDate:
		return "datetime"
	case TypeBytes:
		return "bytes"
	case TypeLong:
		return "long"
	case TypeUlong:
		return "ulong"
	case TypeByte:
		return "byte"
	case TypeNone:
		return "none"
	case TypeGroup:
		return "group"
	default:
		return "unknown"
	}
}

// Valid reports whether t is one of the twelve closed wire-type codes.
func (t WireType) Valid() bool {
	return t >= TypeString && t <= TypeGroup
}
