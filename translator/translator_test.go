package translator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/webpa-gateway/auth"
	"github.com/c360/webpa-gateway/cache"
	"github.com/c360/webpa-gateway/codec"
	"github.com/c360/webpa-gateway/parambus"
)

func newTestBus(t *testing.T) *parambus.MockBus {
	t.Helper()
	b := parambus.NewMockBus()
	require.NoError(t, b.Open(context.Background(), "test"))
	return b
}

func TestNormalizeInternalGet(t *testing.T) {
	req, err := Normalize([]byte(`{"id":"1","op":"GET","params":["Device.DeviceInfo.SerialNumber"]}`), "fallback")
	require.NoError(t, err)
	assert.Equal(t, OpGet, req.Op)
	assert.Equal(t, "1", req.ID)
	require.Len(t, req.Params, 1)
	assert.Equal(t, "Device.DeviceInfo.SerialNumber", req.Params[0].Name)
}

func TestNormalizeMissingIDFallsBackToTransactionID(t *testing.T) {
	req, err := Normalize([]byte(`{"op":"GET","params":["Device.X"]}`), "txn-42")
	require.NoError(t, err)
	assert.Equal(t, "txn-42", req.ID)
}

func TestNormalizeUnknownOpIsBadRequest(t *testing.T) {
	_, err := Normalize([]byte(`{"op":"NOT_A_REAL_OP"}`), "x")
	require.Error(t, err)
}

func TestNormalizeWebPAGetAndPreservesID(t *testing.T) {
	req, err := Normalize([]byte(`{"id":"5","command":"GET","names":["Device.A","Device.B"]}`), "fallback")
	require.NoError(t, err)
	assert.Equal(t, OpGet, req.Op)
	assert.True(t, req.wasWebPA)
	assert.Equal(t, "5", req.ID)
}

func TestSingleGetHit(t *testing.T) {
	ctx := context.Background()
	b := newTestBus(t)
	b.Seed("Device.DeviceInfo.SerialNumber", "ABC", codec.TypeString)
	tr := New(b, nil, nil, nil)

	req, err := Normalize([]byte(`{"id":"1","op":"GET","params":["Device.DeviceInfo.SerialNumber"]}`), "x")
	require.NoError(t, err)

	resp := tr.Dispatch(ctx, req, auth.Identity{})
	assert.Equal(t, 200, resp.Status)
	require.Contains(t, resp.Results, "Device.DeviceInfo.SerialNumber")
	assert.Equal(t, "ABC", resp.Results["Device.DeviceInfo.SerialNumber"].V)
}

func TestMixedGetYields207(t *testing.T) {
	ctx := context.Background()
	b := newTestBus(t)
	b.Seed("Device.A", "1", codec.TypeInt)
	b.Seed("Device.B", "2", codec.TypeInt)
	tr := New(b, nil, nil, nil)

	req, err := Normalize([]byte(`{"op":"GET","params":["Device.A","Device.Missing","Device.B"]}`), "x")
	require.NoError(t, err)

	resp := tr.Dispatch(ctx, req, auth.Identity{})
	assert.Equal(t, 207, resp.Status)
	assert.Nil(t, resp.Results["Device.Missing"])
	assert.Equal(t, "1", resp.Results["Device.A"].V)
	assert.Equal(t, "2", resp.Results["Device.B"].V)
}

func TestGetAllFailureYields500(t *testing.T) {
	ctx := context.Background()
	b := newTestBus(t)
	tr := New(b, nil, nil, nil)

	req, err := Normalize([]byte(`{"op":"GET","params":["Device.Missing"]}`), "x")
	require.NoError(t, err)

	resp := tr.Dispatch(ctx, req, auth.Identity{})
	assert.Equal(t, 500, resp.Status)
}

func TestGetWildcardZeroExpansionIsNullFailure(t *testing.T) {
	ctx := context.Background()
	b := newTestBus(t)
	tr := New(b, nil, nil, nil)

	req, err := Normalize([]byte(`{"op":"GET","params":["Device.Empty."]}`), "x")
	require.NoError(t, err)

	resp := tr.Dispatch(ctx, req, auth.Identity{})
	assert.Equal(t, 500, resp.Status)
	result, ok := resp.Results["Device.Empty."]
	assert.True(t, ok)
	assert.Nil(t, result)
}

func TestGetNonStringParamBecomesIndexedNull(t *testing.T) {
	req, err := Normalize([]byte(`{"op":"GET","params":["Device.A", 42]}`), "x")
	require.NoError(t, err)

	ctx := context.Background()
	b := newTestBus(t)
	b.Seed("Device.A", "1", codec.TypeInt)
	tr := New(b, nil, nil, nil)

	resp := tr.Dispatch(ctx, req, auth.Identity{})
	_, hasIdx := resp.Results["_1"]
	assert.True(t, hasIdx)
	assert.Nil(t, resp.Results["_1"])
}

func TestSetInvalidatesCacheEntry(t *testing.T) {
	ctx := context.Background()
	b := newTestBus(t)
	b.Seed("Device.X", "1", codec.TypeInt)
	c := newCacheForTest(t)
	tr := New(b, c, nil, nil)

	// Prime the cache.
	tr.Dispatch(ctx, &Request{Op: OpGet, Params: []RequestParam{{Name: "Device.X", Valid: true}}}, auth.Identity{})
	_, cached := c.Get("Device.X")
	require.True(t, cached)

	setReq, err := Normalize([]byte(`{"op":"SET","param":"Device.X","value":"2"}`), "x")
	require.NoError(t, err)
	resp := tr.Dispatch(ctx, setReq, auth.Identity{})
	require.Equal(t, 200, resp.Status)

	_, stillCached := c.Get("Device.X")
	assert.False(t, stillCached, "set must invalidate the cache entry before returning")
}

func TestTestAndSetPreconditionMismatchReturns412(t *testing.T) {
	ctx := context.Background()
	b := newTestBus(t)
	b.Seed("Device.Foo", "A", codec.TypeString)
	tr := New(b, nil, nil, nil)

	req, err := Normalize([]byte(`{"op":"TEST_AND_SET","param":"Device.Foo","oldValue":"B","newValue":"C","dataType":0}`), "x")
	require.NoError(t, err)

	resp := tr.Dispatch(ctx, req, auth.Identity{})
	assert.Equal(t, 412, resp.Status)

	tv, err := b.GetTyped(ctx, "Device.Foo")
	require.NoError(t, err)
	assert.Equal(t, "A", tv.Value, "precondition mismatch must not apply the write")
}

func TestAddRowThenWildcardSeesNewRow(t *testing.T) {
	ctx := context.Background()
	b := newTestBus(t)
	tr := New(b, nil, nil, nil)

	req, err := Normalize([]byte(`{"op":"ADD_ROW","tableName":"Device.WiFi.SSID.","rowData":[{"name":"SSID","value":"home","dataType":0}]}`), "x")
	require.NoError(t, err)

	resp := tr.Dispatch(ctx, req, auth.Identity{})
	require.Equal(t, 200, resp.Status)
	require.NotEmpty(t, resp.NewRowName)

	names, err := b.ExpandWildcard(ctx, "Device.WiFi.SSID.")
	require.NoError(t, err)
	assert.Contains(t, names, resp.NewRowName)
}

func TestUnauthenticatedWriteIsUnauthorized(t *testing.T) {
	ctx := context.Background()
	b := newTestBus(t)
	b.Seed("Device.X", "1", codec.TypeInt)
	policy := auth.NewPolicy()
	tr := New(b, nil, policy, nil)

	req, err := Normalize([]byte(`{"op":"SET","param":"Device.X","value":"2"}`), "x")
	require.NoError(t, err)

	resp := tr.Dispatch(ctx, req, auth.Identity{})
	assert.Equal(t, 401, resp.Status)
}

func TestShapeFlatForNonWildcardWebPAGet(t *testing.T) {
	req, err := Normalize([]byte(`{"command":"GET","names":["Device.A"]}`), "x")
	require.NoError(t, err)
	resp := &Response{Status: 200, Results: map[string]*ResultValue{"Device.A": {V: "1", T: codec.TypeInt}}}

	out := Shape(req, resp)
	assert.Equal(t, 200, out.StatusCode)
	assert.Equal(t, "Success", out.Message)
	require.Len(t, out.Parameters, 1)
	assert.Equal(t, "Device.A", out.Parameters[0].Name)
}

func TestShapeGroupedForWildcardWebPAGet(t *testing.T) {
	req, err := Normalize([]byte(`{"command":"GET","names":["Device.DeviceInfo."]}`), "x")
	require.NoError(t, err)
	resp := &Response{Status: 200, Results: map[string]*ResultValue{
		"Device.DeviceInfo.X": {V: "1", T: codec.TypeInt},
		"Device.DeviceInfo.Y": {V: "2", T: codec.TypeInt},
	}}

	out := Shape(req, resp)
	require.Len(t, out.Parameters, 1)
	assert.Equal(t, "Device.DeviceInfo.", out.Parameters[0].Name)
	assert.Equal(t, 11, out.Parameters[0].DataType)
	assert.Equal(t, 2, out.Parameters[0].ParameterCount)
	children, ok := out.Parameters[0].Value.([]WebPAChild)
	require.True(t, ok)
	require.Len(t, children, 2)
	assert.Equal(t, "Device.DeviceInfo.X", children[0].Name, "grouped children must be in stable (sorted) order")
	assert.Equal(t, "Device.DeviceInfo.Y", children[1].Name)
}

func TestNormalizeWebPADeleteRowReadsRowString(t *testing.T) {
	req, err := Normalize([]byte(`{"command":"DELETE_ROW","row":"Device.WiFi.SSID.1."}`), "x")
	require.NoError(t, err)
	assert.Equal(t, OpDeleteRow, req.Op)
	assert.Equal(t, "Device.WiFi.SSID.1.", req.RowName)
}

func TestNormalizeWebPAAddRowReadsRowArray(t *testing.T) {
	req, err := Normalize([]byte(`{"command":"ADD_ROW","table":"Device.WiFi.SSID.","row":[{"name":"SSID","value":"home","dataType":0}]}`), "x")
	require.NoError(t, err)
	assert.Equal(t, OpAddRow, req.Op)
	require.Len(t, req.RowData, 1)
	assert.Equal(t, "SSID", req.RowData[0].Name)
}

func TestNormalizeInternalSetAcceptsEmptyValue(t *testing.T) {
	req, err := Normalize([]byte(`{"op":"SET","param":"Device.X","value":""}`), "x")
	require.NoError(t, err)
	assert.Equal(t, "Device.X", req.Param)
	assert.Equal(t, "", req.Value)
}

func TestTestAndSetComparesUnderCanonicalBoolEncoding(t *testing.T) {
	ctx := context.Background()
	b := newTestBus(t)
	b.Seed("Device.Flag", "True", codec.TypeBool)
	tr := New(b, nil, nil, nil)

	req, err := Normalize([]byte(`{"op":"TEST_AND_SET","param":"Device.Flag","oldValue":"true","newValue":"false","dataType":3}`), "x")
	require.NoError(t, err)

	resp := tr.Dispatch(ctx, req, auth.Identity{})
	assert.Equal(t, 200, resp.Status, "\"True\" and \"true\" must compare equal under canonical bool encoding")

	tv, err := b.GetTyped(ctx, "Device.Flag")
	require.NoError(t, err)
	assert.Equal(t, "false", tv.Value)
}

func newCacheForTest(t *testing.T) *cache.Cache {
	t.Helper()
	cfg := cache.DefaultConfig()
	cfg.CleanupInterval = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	c := cache.New(ctx, cfg)
	t.Cleanup(func() {
		cancel()
		_ = c.Close()
	})
	return c
}
