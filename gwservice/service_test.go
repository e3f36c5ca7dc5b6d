package gwservice

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/webpa-gateway/codec"
	"github.com/c360/webpa-gateway/config"
	"github.com/c360/webpa-gateway/parambus"
	"github.com/c360/webpa-gateway/uplink"
)

func TestInitIsIdempotent(t *testing.T) {
	cfg := config.DefaultConfig()
	s := New(cfg)
	require.NoError(t, s.Init(context.Background()))
	require.NoError(t, s.Init(context.Background()))
	assert.Equal(t, StatusStarting, s.Status())
}

func TestShutdownIsIdempotent(t *testing.T) {
	cfg := config.DefaultConfig()
	s := New(cfg)
	require.NoError(t, s.Init(context.Background()))
	require.NoError(t, s.Shutdown(context.Background()))
	require.NoError(t, s.Shutdown(context.Background()))
	assert.Equal(t, StatusStopped, s.Status())
}

func TestHandleFrameRoundTripsInternalDialectGet(t *testing.T) {
	cfg := config.DefaultConfig()
	s := New(cfg)
	require.NoError(t, s.Init(context.Background()))
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	mock, ok := s.bus.(*parambus.MockBus)
	require.True(t, ok)
	mock.Seed("Device.DeviceInfo.ModelName", "TG4482A", codec.TypeString)

	payload := []byte(`{"id":"r1","op":"GET","params":["Device.DeviceInfo.ModelName"]}`)
	out, err := s.handleFrame(context.Background(), payload, "fallback")
	require.NoError(t, err)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &resp))
	assert.Equal(t, float64(200), resp["status"])
}

func TestHandleFrameShapesWebPADialect(t *testing.T) {
	cfg := config.DefaultConfig()
	s := New(cfg)
	require.NoError(t, s.Init(context.Background()))
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	mock := s.bus.(*parambus.MockBus)
	mock.Seed("Device.DeviceInfo.ModelName", "TG4482A", codec.TypeString)

	payload := []byte(`{"command":"GET","names":["Device.DeviceInfo.ModelName"]}`)
	out, err := s.handleFrame(context.Background(), payload, "fallback")
	require.NoError(t, err)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &resp))
	assert.Contains(t, resp, "statusCode")
	assert.Contains(t, resp, "parameters")
}

func TestRunOverLineTransportEchoesReply(t *testing.T) {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	cfg := config.DefaultConfig()
	s := New(cfg)
	require.NoError(t, s.Init(context.Background()))
	s.transport = uplink.NewLineTransport(inR, outW)
	s.session = uplink.NewSession(s.transport, s.handleFrame, cfg.ServiceName, cfg.EventsEndpoint, s.logger)
	s.session.ReceiveTimeout = 10 * time.Millisecond

	mock := s.bus.(*parambus.MockBus)
	mock.Seed("Device.A", "1", codec.TypeInt)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = s.Run(ctx)
		close(done)
	}()

	frame := map[string]string{
		"kind":             "req",
		"source":           "device-1",
		"dest":             "gateway",
		"transaction_uuid": "txn-1",
		"payload":          `{"id":"r1","op":"GET","params":["Device.A"]}`,
	}
	line, err := json.Marshal(frame)
	require.NoError(t, err)
	go func() {
		_, _ = inW.Write(append(line, '\n'))
	}()

	reader := bufio.NewReader(outR)
	replyLine, err := reader.ReadBytes('\n')
	require.NoError(t, err)

	var reply map[string]interface{}
	require.NoError(t, json.Unmarshal(replyLine, &reply))
	assert.Equal(t, "txn-1", reply["transaction_uuid"])
	assert.Equal(t, "gateway", reply["source"])
	assert.Equal(t, "device-1", reply["dest"])

	s.Stop()
	cancel()
	<-done
	_ = inW.Close()
	_ = outW.Close()
}
