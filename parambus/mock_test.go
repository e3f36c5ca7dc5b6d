package parambus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/webpa-gateway/codec"
	"github.com/c360/webpa-gateway/errors"
)

func openedBus(t *testing.T) *MockBus {
	t.Helper()
	b := NewMockBus()
	require.NoError(t, b.Open(context.Background(), "test-component"))
	return b
}

func TestGetSetRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := openedBus(t)

	require.NoError(t, b.SetTyped(ctx, "Device.DeviceInfo.SerialNumber", codec.TypedValue{Value: "ABC123", Type: codec.TypeString}))
	tv, err := b.GetTyped(ctx, "Device.DeviceInfo.SerialNumber")
	require.NoError(t, err)
	assert.Equal(t, "ABC123", tv.Value)
	assert.Equal(t, codec.TypeString, tv.Type)
}

func TestGetMissingIsNotFound(t *testing.T) {
	b := openedBus(t)
	_, err := b.Get(context.Background(), "Device.Missing.Thing")
	require.Error(t, err)
	assert.Equal(t, errors.KindNotFound, errors.ClassifyKind(err))
}

func TestAddTableRowThenExpandWildcardContainsNewRow(t *testing.T) {
	ctx := context.Background()
	b := openedBus(t)

	rowPath, err := b.AddTableRow(ctx, "Device.WiFi.SSID.", []RowParam{
		{Name: "Enable", Value: "true", Type: codec.TypeBool},
		{Name: "SSID", Value: "home-network", Type: codec.TypeString},
	})
	require.NoError(t, err)
	assert.Equal(t, "Device.WiFi.SSID.1.", rowPath)

	names, err := b.ExpandWildcard(ctx, "Device.WiFi.SSID.")
	require.NoError(t, err)
	assert.Contains(t, names, rowPath)
	assert.Contains(t, names, rowPath+"Enable")
	assert.Contains(t, names, rowPath+"SSID")

	second, err := b.AddTableRow(ctx, "Device.WiFi.SSID.", nil)
	require.NoError(t, err)
	assert.Equal(t, "Device.WiFi.SSID.2.", second)
}

func TestDeleteTableRowRemovesAllNestedParams(t *testing.T) {
	ctx := context.Background()
	b := openedBus(t)

	rowPath, err := b.AddTableRow(ctx, "Device.WiFi.SSID.", []RowParam{
		{Name: "SSID", Value: "guest-network", Type: codec.TypeString},
	})
	require.NoError(t, err)

	require.NoError(t, b.DeleteTableRow(ctx, rowPath))

	names, err := b.ExpandWildcard(ctx, "Device.WiFi.SSID.")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestSubscribeRefcountOnlyFinalUnsubscribeRemoves(t *testing.T) {
	ctx := context.Background()
	b := openedBus(t)

	var fires int
	cb := func(ev Event) { fires++ }

	require.NoError(t, b.Subscribe(ctx, "Device.WiFi.SSID.", cb))
	require.NoError(t, b.Subscribe(ctx, "Device.WiFi.SSID.", cb))

	require.NoError(t, b.SetTyped(ctx, "Device.WiFi.SSID.1.SSID", codec.TypedValue{Value: "x", Type: codec.TypeString}))
	assert.Equal(t, 2, fires, "both registered callbacks should fire on one change")

	require.NoError(t, b.Unsubscribe(ctx, "Device.WiFi.SSID."))
	_, stillRegistered := b.subs["Device.WiFi.SSID."]
	assert.True(t, stillRegistered, "one unsubscribe of two should not remove the registration")

	require.NoError(t, b.Unsubscribe(ctx, "Device.WiFi.SSID."))
	_, stillRegistered = b.subs["Device.WiFi.SSID."]
	assert.False(t, stillRegistered, "last unsubscribe should remove the registration")

	err := b.Unsubscribe(ctx, "Device.WiFi.SSID.")
	require.Error(t, err)
}

func TestTestAndSetPreconditionMismatch(t *testing.T) {
	ctx := context.Background()
	b := openedBus(t)
	b.Seed("Device.X.Counter", "1", codec.TypeInt)

	err := b.TestAndSet(ctx, "Device.X.Counter", "0", "2", codec.TypeInt)
	require.Error(t, err)
	assert.Equal(t, errors.KindPreconditionFailed, errors.ClassifyKind(err))

	tv, err := b.GetTyped(ctx, "Device.X.Counter")
	require.NoError(t, err)
	assert.Equal(t, "1", tv.Value, "value must be unchanged after a failed compare")
}

func TestTestAndSetAppliesOnMatch(t *testing.T) {
	ctx := context.Background()
	b := openedBus(t)
	b.Seed("Device.X.Counter", "1", codec.TypeInt)

	require.NoError(t, b.TestAndSet(ctx, "Device.X.Counter", "1", "2", codec.TypeInt))

	tv, err := b.GetTyped(ctx, "Device.X.Counter")
	require.NoError(t, err)
	assert.Equal(t, "2", tv.Value)
}

func TestSetReadOnlyIsForbidden(t *testing.T) {
	ctx := context.Background()
	b := openedBus(t)
	b.Seed("Device.DeviceInfo.SerialNumber", "ABC123", codec.TypeString)
	require.NoError(t, b.SetAttributes(ctx, "Device.DeviceInfo.SerialNumber", Attribute{Access: AccessReadOnly}))

	err := b.Set(ctx, "Device.DeviceInfo.SerialNumber", "XYZ789")
	require.Error(t, err)
	assert.Equal(t, errors.KindForbidden, errors.ClassifyKind(err))
}

func TestReplaceTableSwapsRowSet(t *testing.T) {
	ctx := context.Background()
	b := openedBus(t)

	_, err := b.AddTableRow(ctx, "Device.WiFi.SSID.", []RowParam{{Name: "SSID", Value: "old", Type: codec.TypeString}})
	require.NoError(t, err)

	err = b.ReplaceTable(ctx, "Device.WiFi.SSID.", [][]RowParam{
		{{Name: "SSID", Value: "new-a", Type: codec.TypeString}},
		{{Name: "SSID", Value: "new-b", Type: codec.TypeString}},
	})
	require.NoError(t, err)

	names, err := b.ExpandWildcard(ctx, "Device.WiFi.SSID.")
	require.NoError(t, err)

	var ssidValues []string
	for _, n := range names {
		if v, ok := b.nodes[n]; ok && v.typ == codec.TypeString {
			ssidValues = append(ssidValues, v.value)
		}
	}
	assert.ElementsMatch(t, []string{"new-a", "new-b"}, ssidValues)
}

func TestOperationsFailBeforeOpen(t *testing.T) {
	b := NewMockBus()
	_, err := b.Get(context.Background(), "Device.X")
	require.Error(t, err)
	assert.Equal(t, errors.KindUnavailable, errors.ClassifyKind(err))
}
