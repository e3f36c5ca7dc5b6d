package codec

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/c360/webpa-gateway/errors"
)

// TypedValue is a (string-rendering, wire-type) pair, the canonical shape
// a value takes once it crosses between the uplink and the parameter bus.
type TypedValue struct {
	Value string
	Type  WireType
}

// NativeType identifies a parameter-bus-native value type, prior to
// projection onto the closed wire-type set.
type NativeType int

const (
	NativeString NativeType = iota
	NativeInt32
	NativeUint32
	NativeBoolean
	NativeDouble
	NativeSingle
	NativeDateTime
	NativeBytes
	NativeInt64
	NativeUint64
	NativeChar
	NativeByte
	NativeNone
	NativeObject // table/group
)

// MapNativeToWire applies the total mapping from parambus-native types to
// wire-type codes. Unknown natives map to TypeString; NativeNone maps to
// TypeNone explicitly rather than falling into the string default.
func MapNativeToWire(native NativeType) WireType {
	switch native {
	case NativeString, NativeChar:
		return TypeString
	case NativeInt32:
		return TypeInt
	case NativeUint32:
		return TypeUint
	case NativeBoolean:
		return TypeBool
	case NativeDouble, NativeSingle:
		return TypeFloat
	case NativeDateTime:
		return TypeDate
	case NativeBytes:
		return TypeBytes
	case NativeInt64:
		return TypeLong
	case NativeUint64:
		return TypeUlong
	case NativeByte:
		return TypeByte
	case NativeNone:
		return TypeNone
	case NativeObject:
		return TypeGroup
	default:
		return TypeString
	}
}

// Decode parses a wire string into a TypedValue, validating it against t.
// A nil error guarantees Value holds the canonical rendering for t (see
// Encode), except the literal is preserved verbatim for TypeString,
// TypeDate, TypeNone and TypeGroup.
func Decode(wire string, t WireType) (TypedValue, error) {
	switch t {
	case TypeBool:
		switch wire {
		case "true", "false":
			return TypedValue{Value: wire, Type: t}, nil
		default:
			return TypedValue{}, errors.WithKind(errors.KindUnprocessable,
				fmt.Errorf("invalid bool literal %q", wire), "codec", "Decode")
		}
	case TypeInt:
		if _, err := strconv.ParseInt(wire, 10, 32); err != nil {
			return TypedValue{}, errors.WithKind(errors.KindUnprocessable, err, "codec", "Decode")
		}
		return TypedValue{Value: wire, Type: t}, nil
	case TypeLong:
		if _, err := strconv.ParseInt(wire, 10, 64); err != nil {
			return TypedValue{}, errors.WithKind(errors.KindUnprocessable, err, "codec", "Decode")
		}
		return TypedValue{Value: wire, Type: t}, nil
	case TypeUint:
		if _, err := strconv.ParseUint(wire, 10, 32); err != nil {
			return TypedValue{}, errors.WithKind(errors.KindUnprocessable, err, "codec", "Decode")
		}
		return TypedValue{Value: wire, Type: t}, nil
	case TypeUlong:
		if _, err := strconv.ParseUint(wire, 10, 64); err != nil {
			return TypedValue{}, errors.WithKind(errors.KindUnprocessable, err, "codec", "Decode")
		}
		return TypedValue{Value: wire, Type: t}, nil
	case TypeByte:
		if _, err := strconv.ParseUint(wire, 10, 8); err != nil {
			return TypedValue{}, errors.WithKind(errors.KindUnprocessable, err, "codec", "Decode")
		}
		return TypedValue{Value: wire, Type: t}, nil
	case TypeFloat:
		if _, err := strconv.ParseFloat(wire, 64); err != nil {
			return TypedValue{}, errors.WithKind(errors.KindUnprocessable, err, "codec", "Decode")
		}
		return TypedValue{Value: wire, Type: t}, nil
	case TypeBytes:
		if _, err := base64.StdEncoding.DecodeString(wire); err != nil {
			return TypedValue{}, errors.WithKind(errors.KindUnprocessable, err, "codec", "Decode")
		}
		return TypedValue{Value: wire, Type: t}, nil
	case TypeString, TypeDate, TypeNone, TypeGroup:
		return TypedValue{Value: wire, Type: t}, nil
	default:
		return TypedValue{}, errors.WithKind(errors.KindUnprocessable,
			fmt.Errorf("unknown wire type %d", t), "codec", "Decode")
	}
}

// Encode produces the canonical wire rendering of v: no trailing
// whitespace, lowercase booleans. Values already in canonical form pass
// through unchanged.
func Encode(v TypedValue) (string, WireType) {
	s := strings.TrimRight(v.Value, " \t\r\n")
	if v.Type == TypeBool {
		s = strings.ToLower(s)
	}
	return s, v.Type
}
