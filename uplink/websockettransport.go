package uplink

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/c360/webpa-gateway/errors"
)

// wsFrame is the WebSocket rendering of a Frame: one JSON text message per
// frame, same field names LineTransport uses so a browser-based debug
// console can speak the same dialect the line-delimited mock does.
type wsFrame struct {
	Kind            string `json:"kind"`
	Source          string `json:"source"`
	Dest            string `json:"dest"`
	TransactionUUID string `json:"transaction_uuid"`
	ContentType     string `json:"content_type"`
	Payload         string `json:"payload"`
}

// WebSocketTransport implements Transport by serving a single upstream
// WebSocket connection: an operator console or a device simulator dials in,
// and every frame read from or written to that connection is the uplink
// traffic. It backs mode=ws, an alternative to LineTransport's mode=mock
// for driving the gateway interactively from a browser rather than a pipe.
//
// Only one connection is served at a time, matching the uplink session's
// single logical peer; a second dial replaces the first.
type WebSocketTransport struct {
	server   *http.Server
	upgrader websocket.Upgrader

	connMu sync.Mutex
	conn   *websocket.Conn

	frames chan Frame
}

// NewWebSocketTransport starts an HTTP server on addr accepting WebSocket
// upgrades at path, and returns once the listener is bound. Frames read
// from whichever connection is currently attached are delivered through
// Receive; Send writes to that same connection.
func NewWebSocketTransport(ctx context.Context, addr, path string) (*WebSocketTransport, error) {
	t := &WebSocketTransport{
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(_ *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		frames: make(chan Frame, 64),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(path, t.handleUpgrade)
	t.server = &http.Server{Addr: addr, Handler: mux}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.WithKind(errors.KindUnavailable, err, "uplink", "NewWebSocketTransport")
	}

	go func() {
		_ = t.server.Serve(listener)
	}()
	go func() {
		<-ctx.Done()
		_ = t.server.Close()
	}()

	return t, nil
}

// handleUpgrade accepts a new WebSocket connection, replacing whatever
// connection was previously attached, and starts its read loop.
func (t *WebSocketTransport) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	t.connMu.Lock()
	if t.conn != nil {
		_ = t.conn.Close()
	}
	t.conn = conn
	t.connMu.Unlock()

	go t.readLoop(conn)
}

func (t *WebSocketTransport) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var wf wsFrame
		if jsonErr := json.Unmarshal(data, &wf); jsonErr != nil {
			continue
		}
		t.frames <- Frame{
			Kind:            Kind(wf.Kind),
			Source:          wf.Source,
			Dest:            wf.Dest,
			TransactionUUID: wf.TransactionUUID,
			ContentType:     wf.ContentType,
			Payload:         []byte(wf.Payload),
		}
	}
}

// Receive returns the next frame read from whichever connection is
// currently attached, waiting up to timeout.
func (t *WebSocketTransport) Receive(ctx context.Context, timeout time.Duration) (Frame, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case f := <-t.frames:
		return f, nil
	case <-timer.C:
		return Frame{}, ErrNoFrame
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

// Send writes frame as one text message to the currently attached
// connection. Returns ErrBusUnavailable if nothing is attached yet.
func (t *WebSocketTransport) Send(ctx context.Context, frame Frame) error {
	wf := wsFrame{
		Kind:            string(frame.Kind),
		Source:          frame.Source,
		Dest:            frame.Dest,
		TransactionUUID: frame.TransactionUUID,
		ContentType:     frame.ContentType,
		Payload:         string(frame.Payload),
	}
	data, err := json.Marshal(wf)
	if err != nil {
		return errors.WithKind(errors.KindInternal, err, "uplink", "Send")
	}

	t.connMu.Lock()
	conn := t.conn
	t.connMu.Unlock()
	if conn == nil {
		return errors.WithKind(errors.KindUnavailable, errors.ErrBusUnavailable, "uplink", "Send")
	}

	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return errors.WithKind(errors.KindUnavailable, err, "uplink", "Send")
	}
	return nil
}

// Close shuts down the HTTP server and closes the attached connection, if
// any.
func (t *WebSocketTransport) Close(ctx context.Context) error {
	t.connMu.Lock()
	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
	}
	t.connMu.Unlock()
	return t.server.Shutdown(ctx)
}
