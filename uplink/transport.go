// Package uplink implements the Uplink Session: a single-threaded receive
// loop over framed messages, correlating replies by transaction id and
// message kind, and the three transports it can run against (NATS
// subscribe/publish for mode=real, line-delimited JSON over stdio for
// mode=mock, a WebSocket server for mode=ws).
package uplink

import (
	"context"
	"time"

	"github.com/c360/webpa-gateway/errors"
)

// Kind identifies the class of an inbound or outbound frame.
type Kind string

const (
	KindRequest  Kind = "req"
	KindRetrieve Kind = "retrieve"
	KindEvent    Kind = "event"
)

// dispatchableKinds is the set of kinds the receive loop treats as JSON
// requests to hand to the translator; any other kind is logged and
// dropped.
var dispatchableKinds = map[Kind]bool{
	KindRequest:  true,
	KindRetrieve: true,
	KindEvent:    true,
}

// Frame is one framed uplink message.
type Frame struct {
	Kind            Kind
	Source          string
	Dest            string
	TransactionUUID string
	ContentType     string
	Payload         []byte
}

// ErrNoFrame is returned by Transport.Receive when its bounded wait
// elapses without a frame arriving; it is not a failure, just an empty
// poll, so the receive loop treats it as a no-op iteration.
var ErrNoFrame = errors.WithKind(errors.KindTimeout, errors.ErrOperationTimeout, "uplink", "Receive")

// Transport is the uplink's pluggable transport boundary. NATSTransport
// backs mode=real; LineTransport backs mode=mock; WebSocketTransport backs
// mode=ws.
type Transport interface {
	// Receive blocks up to timeout for the next frame. Returns ErrNoFrame
	// (not a fatal error) if the bound elapses with nothing to deliver.
	Receive(ctx context.Context, timeout time.Duration) (Frame, error)
	// Send emits a frame.
	Send(ctx context.Context, frame Frame) error
	// Close releases the transport's resources.
	Close(ctx context.Context) error
}

// reply builds the response frame for an inbound request frame: same
// kind, source/destination swapped, transaction id preserved.
func reply(in Frame, payload []byte) Frame {
	return Frame{
		Kind:            in.Kind,
		Source:          in.Dest,
		Dest:            in.Source,
		TransactionUUID: in.TransactionUUID,
		ContentType:     "application/json",
		Payload:         payload,
	}
}
