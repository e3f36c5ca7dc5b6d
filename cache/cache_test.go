package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/webpa-gateway/codec"
)

func newTestCache(t *testing.T, cfg Config) *Cache {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	c := New(ctx, cfg)
	t.Cleanup(func() {
		cancel()
		_ = c.Close()
	})
	return c
}

func TestSetThenGetReturnsSameValue(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CleanupInterval = time.Hour
	c := newTestCache(t, cfg)

	c.Set("Device.X", codec.TypedValue{Value: "1", Type: codec.TypeInt}, 0)
	tv, ok := c.Get("Device.X")
	require.True(t, ok)
	assert.Equal(t, "1", tv.Value)
	assert.Equal(t, codec.TypeInt, tv.Type)
}

func TestGetMissCountsAsMiss(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CleanupInterval = time.Hour
	c := newTestCache(t, cfg)

	_, ok := c.Get("Device.Missing")
	assert.False(t, ok)
	assert.EqualValues(t, 1, c.Stats().Misses())
}

func TestExpiredEntryRemovedOnAccessCountsTimeoutAndMiss(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CleanupInterval = time.Hour
	c := newTestCache(t, cfg)

	c.Set("Device.X", codec.TypedValue{Value: "1", Type: codec.TypeInt}, time.Nanosecond)
	time.Sleep(time.Millisecond)

	_, ok := c.Get("Device.X")
	assert.False(t, ok)
	assert.EqualValues(t, 1, c.Stats().Misses())
	assert.EqualValues(t, 1, c.Stats().Timeouts())
	assert.EqualValues(t, 1, c.Stats().Evictions())
}

func TestInvalidateWildcardRemovesPrefixedKeysOnly(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CleanupInterval = time.Hour
	c := newTestCache(t, cfg)

	c.Set("Device.WiFi.SSID.1.Enable", codec.TypedValue{Value: "true", Type: codec.TypeBool}, 0)
	c.Set("Device.WiFi.SSID.2.Enable", codec.TypedValue{Value: "false", Type: codec.TypeBool}, 0)
	c.Set("Device.DeviceInfo.SerialNumber", codec.TypedValue{Value: "X", Type: codec.TypeString}, 0)

	removed := c.InvalidateWildcard("Device.WiFi.SSID.*")
	assert.Equal(t, 2, removed)

	_, ok := c.Get("Device.WiFi.SSID.1.Enable")
	assert.False(t, ok)
	_, ok = c.Get("Device.DeviceInfo.SerialNumber")
	assert.True(t, ok)
}

func TestInvalidateWildcardExactKeyWithoutWildcardMarker(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CleanupInterval = time.Hour
	c := newTestCache(t, cfg)

	c.Set("Device.DeviceInfo.SerialNumber", codec.TypedValue{Value: "X", Type: codec.TypeString}, 0)
	removed := c.InvalidateWildcard("Device.DeviceInfo.SerialNumber")
	assert.Equal(t, 1, removed)
	_, ok := c.Get("Device.DeviceInfo.SerialNumber")
	assert.False(t, ok)
}

func TestSetEvictsLowestPriorityBeforeExceedingMax(t *testing.T) {
	cfg := Config{MaxEntries: 10, DefaultTTL: time.Hour, CleanupInterval: time.Hour, EnableStats: true}
	c := newTestCache(t, cfg)

	for i := 0; i < 10; i++ {
		c.Set(rowKey(i), codec.TypedValue{Value: "v", Type: codec.TypeString}, 0)
	}
	// Access entry 9 repeatedly so it has the highest priority score and
	// survives eviction; leave the rest untouched at priority 0.
	for i := 0; i < 5; i++ {
		c.Get(rowKey(9))
	}

	c.Set("Device.New.Entry", codec.TypedValue{Value: "v", Type: codec.TypeString}, 0)

	_, ok := c.Get(rowKey(9))
	assert.True(t, ok, "frequently accessed entry should survive eviction")
	assert.LessOrEqual(t, c.Stats().CurrentSize(), int64(10))
}

func rowKey(i int) string {
	return "Device.Row." + string(rune('a'+i))
}

func TestClearRemovesEverything(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CleanupInterval = time.Hour
	c := newTestCache(t, cfg)

	c.Set("Device.X", codec.TypedValue{Value: "1", Type: codec.TypeInt}, 0)
	c.Clear()
	_, ok := c.Get("Device.X")
	assert.False(t, ok)
	assert.EqualValues(t, 0, c.Stats().CurrentSize())
}

func TestExpireSweepRemovesExpiredWithoutBeingAccessed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CleanupInterval = time.Hour
	c := newTestCache(t, cfg)

	c.Set("Device.X", codec.TypedValue{Value: "1", Type: codec.TypeInt}, time.Nanosecond)
	time.Sleep(time.Millisecond)

	removed := c.ExpireSweep()
	assert.Equal(t, 1, removed)
}
