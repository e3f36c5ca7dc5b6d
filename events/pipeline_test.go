package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/webpa-gateway/cache"
	"github.com/c360/webpa-gateway/codec"
	"github.com/c360/webpa-gateway/parambus"
)

type recordingPublisher struct {
	payloads [][]byte
}

func (r *recordingPublisher) PublishNotification(payload []byte) error {
	r.payloads = append(r.payloads, payload)
	return nil
}

func newCache(t *testing.T) *cache.Cache {
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

func TestOnEventPublishesParamChangeNotification(t *testing.T) {
	pub := &recordingPublisher{}
	p := NewPipeline("gateway", "events.endpoint", nil, pub)

	before := time.Now()
	p.OnEvent(parambus.Event{
		Name:     "Device.WiFi.Radio.1.Enable",
		Category: parambus.CategoryValueChange,
		NewValue: "true",
		Type:     codec.TypeBool,
	})

	require.Len(t, pub.payloads, 1)
	var note Notification
	require.NoError(t, json.Unmarshal(pub.payloads[0], &note))
	assert.Equal(t, TypeParamChange, note.Type)
	assert.WithinDuration(t, before, time.UnixMilli(note.TimestampMs), 50*time.Millisecond)

	data, ok := note.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Device.WiFi.Radio.1.Enable", data["paramName"])
	assert.Equal(t, "true", data["newValue"])
}

func TestOnEventFillsOldValueFromCache(t *testing.T) {
	c := newCache(t)
	c.Set("Device.X", codec.TypedValue{Value: "old", Type: codec.TypeString}, 0)
	pub := &recordingPublisher{}
	p := NewPipeline("gateway", "events.endpoint", c, pub)

	p.OnEvent(parambus.Event{Name: "Device.X", Category: parambus.CategoryValueChange, NewValue: "new", Type: codec.TypeString})

	var note Notification
	require.NoError(t, json.Unmarshal(pub.payloads[0], &note))
	data := note.Data.(map[string]interface{})
	assert.Equal(t, "old", data["oldValue"])

	tv, ok := c.Get("Device.X")
	require.True(t, ok)
	assert.Equal(t, "new", tv.Value, "cache should reflect the new value after the event")
}

func TestOnEventObjectCreatedPublishesDeviceStatus(t *testing.T) {
	pub := &recordingPublisher{}
	p := NewPipeline("gateway", "events.endpoint", nil, pub)

	p.OnEvent(parambus.Event{Name: "Device.WiFi.SSID.1.", Category: parambus.CategoryObjectCreated})

	require.Len(t, pub.payloads, 1)
	var note Notification
	require.NoError(t, json.Unmarshal(pub.payloads[0], &note))
	assert.Equal(t, TypeDeviceStatus, note.Type)
}
