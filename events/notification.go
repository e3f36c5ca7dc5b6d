// Package events implements the Event Pipeline: parambus subscription
// callbacks are enveloped as notification JSON and handed to the uplink
// for emission to a well-known destination.
//
// Envelope construction follows the teacher's functional-options message
// pattern (see message.NewBaseMessage/message.Option) rather than a bag of
// constructor parameters.
package events

import (
	"github.com/google/uuid"

	"github.com/c360/webpa-gateway/codec"
	"github.com/c360/webpa-gateway/parambus"
	"github.com/c360/webpa-gateway/pkg/timestamp"
)

// Type is the notification type code carried on the wire.
type Type int

const (
	TypeParamChange       Type = 1
	TypeFactoryReset      Type = 2
	TypeFirmwareUpgrade   Type = 3
	TypeConnectedClient   Type = 4
	TypeTransactionStatus Type = 5
	TypeDeviceStatus      Type = 6
	TypeComponentStatus   Type = 7
)

// Notification is the outbound envelope: {type, source, destination,
// timestamp_ms, data}.
type Notification struct {
	Type        Type        `json:"type"`
	Source      string      `json:"source"`
	Destination string      `json:"destination"`
	TimestampMs int64       `json:"timestamp_ms"`
	Data        interface{} `json:"data"`
	WriteID     string      `json:"writeId,omitempty"`
}

// ParamChangeData is the TypeParamChange payload.
type ParamChangeData struct {
	ParamName string         `json:"paramName"`
	OldValue  string         `json:"oldValue"`
	NewValue  string         `json:"newValue"`
	DataType  codec.WireType `json:"dataType"`
}

// ConnectedClientData is the TypeConnectedClient payload.
type ConnectedClientData struct {
	MacAddress string `json:"macAddress"`
	Interface  string `json:"interface"`
	Connected  bool   `json:"connected"`
}

// TransactionStatusData is the TypeTransactionStatus payload.
type TransactionStatusData struct {
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
	RolledBack    int    `json:"rolledBack"`
}

// Option configures a Notification at construction, mirroring the
// teacher's message.Option pattern.
type Option func(*Notification)

// WithTimestamp overrides the default now-stamped time, for tests and
// historical replay.
func WithTimestamp(ms int64) Option {
	return func(n *Notification) { n.TimestampMs = ms }
}

// WithWriteID attaches the originating write's id, when the triggering
// mutation supplied one.
func WithWriteID(id string) Option {
	return func(n *Notification) { n.WriteID = id }
}

// New constructs a Notification with the current timestamp, applying opts
// after the defaults (matching NewBaseMessage's apply-after-defaults
// order).
func New(typ Type, source, destination string, data interface{}, opts ...Option) Notification {
	n := Notification{
		Type:        typ,
		Source:      source,
		Destination: destination,
		TimestampMs: timestamp.Now(),
		Data:        data,
	}
	for _, opt := range opts {
		opt(&n)
	}
	return n
}

// FromParamChange builds a NOTIFY_PARAM_CHANGE notification from a raw
// parambus value-change event. oldValue is best-effort: the parambus event
// itself does not carry it, so callers that have a cache lookup available
// should pass it in; callers without one pass "unknown", as Pipeline.OnEvent
// does. The write id is the event's own when it carries one, otherwise a
// freshly generated uuid.
func FromParamChange(ev parambus.Event, source, destination, oldValue string) Notification {
	writeID := ev.WriteID
	if writeID == "" {
		writeID = uuid.NewString()
	}
	return New(TypeParamChange, source, destination, ParamChangeData{
		ParamName: ev.Name,
		OldValue:  oldValue,
		NewValue:  ev.NewValue,
		DataType:  ev.Type,
	}, WithWriteID(writeID))
}

// FromTransactionStatus builds a NOTIFY_TRANSACTION_STATUS notification
// summarizing the outcome of an applied (and possibly rolled-back)
// transaction.
func FromTransactionStatus(txnID, status string, rolledBack int, source, destination string) Notification {
	return New(TypeTransactionStatus, source, destination, TransactionStatusData{
		TransactionID: txnID,
		Status:        status,
		RolledBack:    rolledBack,
	})
}
