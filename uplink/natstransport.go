package uplink

import (
	"context"
	"encoding/json"
	"time"

	"github.com/c360/webpa-gateway/errors"
	"github.com/c360/webpa-gateway/natsclient"
)

// uplinkSubjectPrefix roots every uplink subject; mirrors the parambus
// package's subjectPrefix convention so the two transports are easy to
// tell apart on the wire.
const uplinkSubjectPrefix = "uplink"

// wireFrame is the JSON envelope carried on the uplink subjects.
type wireFrame struct {
	Kind            string `json:"kind"`
	Source          string `json:"source"`
	Dest            string `json:"dest"`
	TransactionUUID string `json:"transaction_uuid"`
	ContentType     string `json:"content_type"`
	Payload         []byte `json:"payload"`
}

// NATSTransport implements Transport over NATS subject subscribe/publish,
// grounded on the retained circuit-breaker-aware natsclient.Client: a
// single inbound subject per component, and per-destination publish
// subjects for replies and outbound notifications.
type NATSTransport struct {
	client    *natsclient.Client
	component string
	inbox     chan Frame
}

// NewNATSTransport subscribes to the component's inbound subject and
// returns a Transport ready for Session.Run. The subscription is
// established eagerly so Receive never pays subscribe latency.
func NewNATSTransport(ctx context.Context, client *natsclient.Client, component string) (*NATSTransport, error) {
	t := &NATSTransport{
		client:    client,
		component: component,
		inbox:     make(chan Frame, 256),
	}
	subject := uplinkSubjectPrefix + "." + component + ".in"
	err := client.Subscribe(ctx, subject, func(_ context.Context, data []byte) {
		var wf wireFrame
		if jsonErr := json.Unmarshal(data, &wf); jsonErr != nil {
			return
		}
		t.inbox <- Frame{
			Kind:            Kind(wf.Kind),
			Source:          wf.Source,
			Dest:            wf.Dest,
			TransactionUUID: wf.TransactionUUID,
			ContentType:     wf.ContentType,
			Payload:         wf.Payload,
		}
	})
	if err != nil {
		return nil, errors.WithKind(errors.KindUnavailable, err, "uplink", "NewNATSTransport")
	}
	return t, nil
}

// Receive waits up to timeout for the next inbound frame.
func (t *NATSTransport) Receive(ctx context.Context, timeout time.Duration) (Frame, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case f := <-t.inbox:
		return f, nil
	case <-timer.C:
		return Frame{}, ErrNoFrame
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

// Send publishes frame to its destination's subject.
func (t *NATSTransport) Send(ctx context.Context, frame Frame) error {
	wf := wireFrame{
		Kind:            string(frame.Kind),
		Source:          frame.Source,
		Dest:            frame.Dest,
		TransactionUUID: frame.TransactionUUID,
		ContentType:     frame.ContentType,
		Payload:         frame.Payload,
	}
	data, err := json.Marshal(wf)
	if err != nil {
		return errors.WithKind(errors.KindInternal, err, "uplink", "Send")
	}
	subject := uplinkSubjectPrefix + "." + frame.Dest + ".in"
	if pubErr := t.client.Publish(ctx, subject, data); pubErr != nil {
		return errors.WithKind(errors.KindUnavailable, pubErr, "uplink", "Send")
	}
	return nil
}

// Close is a no-op: the underlying NATS subscription and connection
// lifetime are owned by natsclient.Client.Close, called separately during
// service shutdown.
func (t *NATSTransport) Close(ctx context.Context) error {
	return nil
}
