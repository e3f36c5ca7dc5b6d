package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEncodeRoundTrip(t *testing.T) {
	cases := []struct {
		wire string
		typ  WireType
	}{
		{"true", TypeBool},
		{"false", TypeBool},
		{"42", TypeInt},
		{"-7", TypeInt},
		{"9999999999", TypeLong},
		{"3", TypeUint},
		{"18446744073709551615", TypeUlong},
		{"255", TypeByte},
		{"3.14", TypeFloat},
		{"aGVsbG8=", TypeBytes},
		{"Device.DeviceInfo.SerialNumber", TypeString},
		{"2024-01-01T00:00:00Z", TypeDate},
	}

	for _, c := range cases {
		tv, err := Decode(c.wire, c.typ)
		require.NoError(t, err, "decode %q as %s", c.wire, c.typ)
		out, typ := Encode(tv)
		assert.Equal(t, c.typ, typ)
		assert.Equal(t, c.wire, out)
	}
}

func TestDecodeInvalidBool(t *testing.T) {
	_, err := Decode("yes", TypeBool)
	require.Error(t, err)
}

func TestDecodeInvalidInt(t *testing.T) {
	_, err := Decode("not-a-number", TypeInt)
	require.Error(t, err)
}

func TestDecodeInvalidBytes(t *testing.T) {
	_, err := Decode("not base64!!", TypeBytes)
	require.Error(t, err)
}

func TestEncodeBoolLowercasesAndTrims(t *testing.T) {
	out, typ := Encode(TypedValue{Value: "TRUE  ", Type: TypeBool})
	assert.Equal(t, "true", out)
	assert.Equal(t, TypeBool, typ)
}

func TestMapNativeToWireTotal(t *testing.T) {
	assert.Equal(t, TypeString, MapNativeToWire(NativeString))
	assert.Equal(t, TypeInt, MapNativeToWire(NativeInt32))
	assert.Equal(t, TypeUint, MapNativeToWire(NativeUint32))
	assert.Equal(t, TypeBool, MapNativeToWire(NativeBoolean))
	assert.Equal(t, TypeFloat, MapNativeToWire(NativeDouble))
	assert.Equal(t, TypeFloat, MapNativeToWire(NativeSingle))
	assert.Equal(t, TypeDate, MapNativeToWire(NativeDateTime))
	assert.Equal(t, TypeBytes, MapNativeToWire(NativeBytes))
	assert.Equal(t, TypeLong, MapNativeToWire(NativeInt64))
	assert.Equal(t, TypeUlong, MapNativeToWire(NativeUint64))
	assert.Equal(t, TypeByte, MapNativeToWire(NativeByte))
	assert.Equal(t, TypeNone, MapNativeToWire(NativeNone))
	assert.Equal(t, TypeGroup, MapNativeToWire(NativeObject))
	// Unknown native types fall back to string, not to NONE.
	assert.Equal(t, TypeString, MapNativeToWire(NativeType(999)))
}
