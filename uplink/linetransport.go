package uplink

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/c360/webpa-gateway/errors"
)

// lineFrame is the line-delimited JSON rendering of a Frame used by
// LineTransport, matching the mock-mode wire shape described in the
// configuration section: one JSON object per line on stdin/stdout.
type lineFrame struct {
	Kind            string `json:"kind"`
	Source          string `json:"source"`
	Dest            string `json:"dest"`
	TransactionUUID string `json:"transaction_uuid"`
	ContentType     string `json:"content_type"`
	Payload         string `json:"payload"` // the JSON payload, embedded as a raw string
}

// LineTransport implements Transport over line-delimited JSON on an
// arbitrary reader/writer pair, standing in for the uplink transport in
// mode=mock: identical framing semantics, a pipe instead of the real bus.
type LineTransport struct {
	mu     sync.Mutex
	reader *bufio.Reader
	writer io.Writer

	framesMu sync.Mutex
	frames   chan Frame
	readErr  error
	started  bool
}

// NewLineTransport wraps r/w (typically os.Stdin/os.Stdout) as a Transport.
func NewLineTransport(r io.Reader, w io.Writer) *LineTransport {
	return &LineTransport{
		reader: bufio.NewReader(r),
		writer: w,
		frames: make(chan Frame, 64),
	}
}

// startReading launches the background line-reader goroutine exactly
// once; Receive is otherwise a pure channel read so it can honor the
// caller's bounded timeout without blocking on I/O directly.
func (t *LineTransport) startReading() {
	t.framesMu.Lock()
	defer t.framesMu.Unlock()
	if t.started {
		return
	}
	t.started = true
	go func() {
		for {
			line, err := t.reader.ReadBytes('\n')
			if len(line) > 0 {
				var lf lineFrame
				if jsonErr := json.Unmarshal(line, &lf); jsonErr == nil {
					t.frames <- Frame{
						Kind:            Kind(lf.Kind),
						Source:          lf.Source,
						Dest:            lf.Dest,
						TransactionUUID: lf.TransactionUUID,
						ContentType:     lf.ContentType,
						Payload:         []byte(lf.Payload),
					}
				}
			}
			if err != nil {
				close(t.frames)
				return
			}
		}
	}()
}

// Receive returns the next frame, waiting up to timeout.
func (t *LineTransport) Receive(ctx context.Context, timeout time.Duration) (Frame, error) {
	t.startReading()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case f, ok := <-t.frames:
		if !ok {
			return Frame{}, errors.WithKind(errors.KindUnavailable, errors.ErrBusUnavailable, "uplink", "Receive")
		}
		return f, nil
	case <-timer.C:
		return Frame{}, ErrNoFrame
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

// Send writes frame as one line of JSON to the writer.
func (t *LineTransport) Send(ctx context.Context, frame Frame) error {
	lf := lineFrame{
		Kind:            string(frame.Kind),
		Source:          frame.Source,
		Dest:            frame.Dest,
		TransactionUUID: frame.TransactionUUID,
		ContentType:     frame.ContentType,
		Payload:         string(frame.Payload),
	}
	data, err := json.Marshal(lf)
	if err != nil {
		return errors.WithKind(errors.KindInternal, err, "uplink", "Send")
	}
	data = append(data, '\n')

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.writer.Write(data); err != nil {
		return errors.WithKind(errors.KindUnavailable, err, "uplink", "Send")
	}
	return nil
}

// Close is a no-op: LineTransport does not own its underlying reader/writer.
func (t *LineTransport) Close(ctx context.Context) error {
	return nil
}
