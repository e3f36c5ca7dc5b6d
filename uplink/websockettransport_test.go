package uplink

import (
	"context"
	"encoding/json"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// freeWSAddr reserves an ephemeral TCP port and releases it immediately,
// returning the address for the transport under test to rebind.
func freeWSAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestWebSocketTransportRoundTripsFrame(t *testing.T) {
	addr := freeWSAddr(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	transport, err := NewWebSocketTransport(ctx, addr, "/uplink")
	require.NoError(t, err)
	t.Cleanup(func() { _ = transport.Close(context.Background()) })

	require.Eventually(t, func() bool {
		conn, _, dialErr := websocket.DefaultDialer.Dial("ws://"+addr+"/uplink", nil)
		if dialErr != nil {
			return false
		}
		_ = conn.Close()
		return true
	}, time.Second, 5*time.Millisecond)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/uplink", nil)
	require.NoError(t, err)
	defer conn.Close()

	inbound := wsFrame{
		Kind:            "req",
		Source:          "device-1",
		Dest:            "gateway",
		TransactionUUID: "txn-1",
		Payload:         `{"id":"r1"}`,
	}
	data, err := json.Marshal(inbound)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))

	f, err := transport.Receive(ctx, time.Second)
	require.NoError(t, err)
	require.Equal(t, Kind("req"), f.Kind)
	require.Equal(t, "device-1", f.Source)
	require.Equal(t, "txn-1", f.TransactionUUID)

	require.NoError(t, transport.Send(ctx, Frame{
		Kind:            KindRequest,
		Source:          "gateway",
		Dest:            "device-1",
		TransactionUUID: "txn-1",
		Payload:         []byte(`{"status":200}`),
	}))

	_, reply, err := conn.ReadMessage()
	require.NoError(t, err)
	var wf wsFrame
	require.NoError(t, json.Unmarshal(reply, &wf))
	require.True(t, strings.Contains(wf.Payload, "200"))
}

func TestWebSocketTransportSendBeforeConnectReturnsUnavailable(t *testing.T) {
	addr := freeWSAddr(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	transport, err := NewWebSocketTransport(ctx, addr, "/uplink")
	require.NoError(t, err)
	t.Cleanup(func() { _ = transport.Close(context.Background()) })

	err = transport.Send(ctx, Frame{Kind: KindEvent})
	require.Error(t, err)
}
