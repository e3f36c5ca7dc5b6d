package parambus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/c360/webpa-gateway/codec"
	"github.com/c360/webpa-gateway/errors"
	"github.com/c360/webpa-gateway/natsclient"
)

// subjectPrefix roots every parambus request subject; the component name
// supplied to Open is appended as the next token so multiple components
// sharing a NATS connection never collide.
const subjectPrefix = "parambus"

// wireRequest is the envelope published for every NATSBus operation. Only
// the fields relevant to Op are populated.
type wireRequest struct {
	Op        string          `json:"op"`
	Name      string          `json:"name,omitempty"`
	Value     string          `json:"value,omitempty"`
	Type      codec.WireType  `json:"type,omitempty"`
	Prefix    string          `json:"prefix,omitempty"`
	TablePath string          `json:"table_path,omitempty"`
	RowPath   string          `json:"row_path,omitempty"`
	Row       []RowParam      `json:"row,omitempty"`
	Rows      [][]RowParam    `json:"rows,omitempty"`
	Attribute *wireAttribute  `json:"attribute,omitempty"`
	Expected  string          `json:"expected,omitempty"`
	NewValue  string          `json:"new_value,omitempty"`
}

type wireAttribute struct {
	Notify int    `json:"notify"`
	Access string `json:"access"`
}

// wireResponse is the envelope every NATSBus operation expects back.
type wireResponse struct {
	OK      bool           `json:"ok"`
	Error   string         `json:"error,omitempty"`
	Kind    string         `json:"kind,omitempty"`
	Value   string         `json:"value,omitempty"`
	Type    codec.WireType `json:"type,omitempty"`
	Names   []string       `json:"names,omitempty"`
	RowPath string         `json:"row_path,omitempty"`
	Attr    *wireAttribute `json:"attribute,omitempty"`
}

// kindFromWire maps the string kind name a responder sent back onto the
// local Kind enum, defaulting to Internal for anything unrecognized.
func kindFromWire(s string) errors.Kind {
	for k := errors.KindInvalidRequest; k <= errors.KindUnavailable; k++ {
		if k.String() == s {
			return k
		}
	}
	return errors.KindInternal
}

// NATSBus implements Bus over NATS request/reply, grounded on the
// retained circuit-breaker-aware natsclient.Client rather than a bare
// *nats.Conn: connection loss, backoff, and reconnection are handled there
// and surface here only as request timeouts or errors.Kind-classified
// failures.
type NATSBus struct {
	client    *natsclient.Client
	component string

	mu   sync.Mutex
	subs map[string]*natsSub
}

type natsSub struct {
	count int
	sub   *nats.Subscription
}

// NewNATSBus wraps an already-constructed natsclient.Client. The client is
// expected to be connected (or connecting under its own circuit breaker)
// before Open is called.
func NewNATSBus(client *natsclient.Client) *NATSBus {
	return &NATSBus{client: client, subs: make(map[string]*natsSub)}
}

func (b *NATSBus) subject(op string) string {
	return fmt.Sprintf("%s.%s.%s", subjectPrefix, b.component, op)
}

func (b *NATSBus) Open(ctx context.Context, component string) error {
	b.component = component
	return b.client.WaitForConnection(ctx)
}

func (b *NATSBus) Close(ctx context.Context) error {
	return b.client.Close(ctx)
}

// request performs one NATS request/reply call, marshalling req, sending it
// to subject op, and unmarshalling the reply into a wireResponse. A
// non-nil error from the NATS layer itself (timeout, no responders) is
// classified KindUnavailable; an application-level !OK reply is classified
// from its embedded Kind string.
func (b *NATSBus) request(ctx context.Context, op string, req wireRequest) (wireResponse, error) {
	conn := b.client.GetConnection()
	if conn == nil {
		return wireResponse{}, errors.WithKind(errors.KindUnavailable, errors.ErrBusUnavailable, "parambus", op)
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return wireResponse{}, errors.WithKind(errors.KindInvalidRequest, err, "parambus", op)
	}
	msg, err := conn.RequestWithContext(ctx, b.subject(op), payload)
	if err != nil {
		return wireResponse{}, errors.WithKind(errors.KindUnavailable, err, "parambus", op)
	}
	var resp wireResponse
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		return wireResponse{}, errors.WithKind(errors.KindInternal, err, "parambus", op)
	}
	if !resp.OK {
		return resp, errors.WithKind(kindFromWire(resp.Kind), fmt.Errorf("%s", resp.Error), "parambus", op)
	}
	return resp, nil
}

func (b *NATSBus) Get(ctx context.Context, name string) (string, error) {
	resp, err := b.request(ctx, "get", wireRequest{Op: "get", Name: name})
	if err != nil {
		return "", err
	}
	return resp.Value, nil
}

func (b *NATSBus) GetTyped(ctx context.Context, name string) (codec.TypedValue, error) {
	resp, err := b.request(ctx, "get_typed", wireRequest{Op: "get_typed", Name: name})
	if err != nil {
		return codec.TypedValue{}, err
	}
	return codec.TypedValue{Value: resp.Value, Type: resp.Type}, nil
}

func (b *NATSBus) Set(ctx context.Context, name, value string) error {
	_, err := b.request(ctx, "set", wireRequest{Op: "set", Name: name, Value: value})
	return err
}

func (b *NATSBus) SetTyped(ctx context.Context, name string, value codec.TypedValue) error {
	_, err := b.request(ctx, "set_typed", wireRequest{Op: "set_typed", Name: name, Value: value.Value, Type: value.Type})
	return err
}

func (b *NATSBus) ExpandWildcard(ctx context.Context, prefix string) ([]string, error) {
	resp, err := b.request(ctx, "expand_wildcard", wireRequest{Op: "expand_wildcard", Prefix: prefix})
	if err != nil {
		return nil, err
	}
	return resp.Names, nil
}

func (b *NATSBus) AddTableRow(ctx context.Context, tablePath string, row []RowParam) (string, error) {
	resp, err := b.request(ctx, "add_row", wireRequest{Op: "add_row", TablePath: tablePath, Row: row})
	if err != nil {
		return "", err
	}
	return resp.RowPath, nil
}

func (b *NATSBus) DeleteTableRow(ctx context.Context, rowPath string) error {
	_, err := b.request(ctx, "delete_row", wireRequest{Op: "delete_row", RowPath: rowPath})
	return err
}

func (b *NATSBus) ReplaceTable(ctx context.Context, tablePath string, rows [][]RowParam) error {
	_, err := b.request(ctx, "replace_rows", wireRequest{Op: "replace_rows", TablePath: tablePath, Rows: rows})
	return err
}

func (b *NATSBus) GetAttributes(ctx context.Context, name string) (Attribute, error) {
	resp, err := b.request(ctx, "get_attributes", wireRequest{Op: "get_attributes", Name: name})
	if err != nil {
		return Attribute{}, err
	}
	if resp.Attr == nil {
		return Attribute{}, nil
	}
	return Attribute{Notify: resp.Attr.Notify, Access: ParseAccess(resp.Attr.Access)}, nil
}

func (b *NATSBus) SetAttributes(ctx context.Context, name string, attr Attribute) error {
	_, err := b.request(ctx, "set_attributes", wireRequest{
		Op:   "set_attributes",
		Name: name,
		Attribute: &wireAttribute{
			Notify: attr.Notify,
			Access: attr.Access.String(),
		},
	})
	return err
}

// Subscribe registers cb against the NATS event subject derived from
// eventName, refcounted so repeated Subscribe calls for the same name share
// one underlying nats.Subscription. Deliveries arrive on the NATS client's
// own dispatch goroutine, matching the documented callback-thread
// behavior callers must not assume synchronous re-entrancy across.
func (b *NATSBus) Subscribe(ctx context.Context, eventName string, cb EventCallback) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.subs[eventName]
	if ok {
		s.count++
		return nil
	}

	conn := b.client.GetConnection()
	if conn == nil {
		return errors.WithKind(errors.KindUnavailable, errors.ErrBusUnavailable, "parambus", "Subscribe")
	}
	subject := fmt.Sprintf("%s.%s.event.%s", subjectPrefix, b.component, eventName)
	sub, err := conn.Subscribe(subject, func(msg *nats.Msg) {
		var ev Event
		if jsonErr := json.Unmarshal(msg.Data, &ev); jsonErr != nil {
			return
		}
		cb(ev)
	})
	if err != nil {
		return errors.WithKind(errors.KindUnavailable, err, "parambus", "Subscribe")
	}
	b.subs[eventName] = &natsSub{count: 1, sub: sub}
	return nil
}

func (b *NATSBus) Unsubscribe(ctx context.Context, eventName string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.subs[eventName]
	if !ok || s.count == 0 {
		return errors.WithKind(errors.KindNotFound, fmt.Errorf("no subscription for %q", eventName), "parambus", "Unsubscribe")
	}
	s.count--
	if s.count == 0 {
		if err := s.sub.Unsubscribe(); err != nil {
			return errors.WithKind(errors.KindInternal, err, "parambus", "Unsubscribe")
		}
		delete(b.subs, eventName)
	}
	return nil
}

func (b *NATSBus) TestAndSet(ctx context.Context, name, expected, newValue string, wireType codec.WireType) error {
	_, err := b.request(ctx, "test_and_set", wireRequest{
		Op:       "test_and_set",
		Name:     name,
		Expected: expected,
		NewValue: newValue,
		Type:     wireType,
	})
	return err
}
