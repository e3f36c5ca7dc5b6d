package translator

import (
	"context"
	"strconv"
	"strings"

	"github.com/c360/webpa-gateway/auth"
	"github.com/c360/webpa-gateway/cache"
	"github.com/c360/webpa-gateway/codec"
	"github.com/c360/webpa-gateway/errors"
	"github.com/c360/webpa-gateway/parambus"
)

// EventSink receives raw parambus events forwarded from a SUBSCRIBE
// registration made through this Translator. The Event Pipeline is the
// intended consumer; the Translator itself only relays.
type EventSink func(parambus.Event)

// Translator dispatches a normalized Request against the Parambus Adapter,
// through the Parameter Cache as a read-through, write-invalidating proxy,
// gated by the Authorization Hook.
type Translator struct {
	Bus    parambus.Bus
	Cache  *cache.Cache
	Policy *auth.Policy
	Sink   EventSink
}

// New constructs a Translator. cache and policy may be nil to disable
// caching and authorization respectively (useful for focused tests).
func New(bus parambus.Bus, c *cache.Cache, policy *auth.Policy, sink EventSink) *Translator {
	return &Translator{Bus: bus, Cache: c, Policy: policy, Sink: sink}
}

func (t *Translator) authorize(id auth.Identity, name string, perm auth.Permission) error {
	if t.Policy == nil {
		return nil
	}
	return t.Policy.Check(id, name, perm)
}

// Dispatch executes req against the bus/cache and returns the internal-
// dialect response. Callers that received a webpa-dialect request should
// pass the response through Shape afterward.
func (t *Translator) Dispatch(ctx context.Context, req *Request, id auth.Identity) *Response {
	switch req.Op {
	case OpGet:
		return t.dispatchGet(ctx, req, id)
	case OpSet:
		return t.dispatchSet(ctx, req, id)
	case OpGetAttributes:
		return t.dispatchGetAttributes(ctx, req, id)
	case OpSetAttributes:
		return t.dispatchSetAttributes(ctx, req, id)
	case OpAddRow:
		return t.dispatchAddRow(ctx, req, id)
	case OpDeleteRow:
		return t.dispatchDeleteRow(ctx, req, id)
	case OpReplaceRows:
		return t.dispatchReplaceRows(ctx, req, id)
	case OpSubscribe:
		return t.dispatchSubscribe(ctx, req, id)
	case OpUnsubscribe:
		return t.dispatchUnsubscribe(ctx, req, id)
	case OpTestAndSet:
		return t.dispatchTestAndSet(ctx, req, id)
	default:
		return &Response{ID: req.ID, Status: errors.KindInvalidRequest.HTTPStatus(), Message: "unrecognized operation"}
	}
}

// getTyped consults the cache before the bus, populating the cache on a
// bus hit. A bus error surfaces to the caller as (false) so the GET loop
// can record a null result.
func (t *Translator) getTyped(ctx context.Context, name string) (codec.TypedValue, bool) {
	if t.Cache != nil {
		if tv, ok := t.Cache.Get(name); ok {
			return tv, true
		}
	}
	tv, err := t.Bus.GetTyped(ctx, name)
	if err != nil {
		return codec.TypedValue{}, false
	}
	if t.Cache != nil {
		t.Cache.Set(name, tv, 0)
	}
	return tv, true
}

func (t *Translator) dispatchGet(ctx context.Context, req *Request, id auth.Identity) *Response {
	results := make(map[string]*ResultValue)
	successes, failures := 0, 0

	for _, p := range req.Params {
		if !p.Valid {
			results["_"+strconv.Itoa(p.Index)] = nil
			failures++
			continue
		}
		name := p.Name

		if err := t.authorize(id, name, auth.PermRead); err != nil {
			results[name] = nil
			failures++
			continue
		}

		switch {
		case strings.HasSuffix(name, "."):
			children, err := t.Bus.ExpandWildcard(ctx, name)
			if err != nil || len(children) == 0 {
				results[name] = nil
				failures++
				continue
			}
			for _, child := range children {
				if tv, ok := t.getTyped(ctx, child); ok {
					results[child] = &ResultValue{V: tv.Value, T: tv.Type}
					successes++
				} else {
					results[child] = nil
					failures++
				}
			}
		case strings.Contains(name, "*"):
			children, err := t.Bus.ExpandWildcard(ctx, name)
			if err != nil || len(children) == 0 {
				results[name] = nil
				failures++
				continue
			}
			for _, child := range children {
				if tv, ok := t.getTyped(ctx, child); ok {
					results[child] = &ResultValue{V: tv.Value, T: tv.Type}
					successes++
				} else {
					results[child] = nil
					failures++
				}
			}
		default:
			if tv, ok := t.getTyped(ctx, name); ok {
				results[name] = &ResultValue{V: tv.Value, T: tv.Type}
				successes++
			} else {
				results[name] = nil
				failures++
			}
		}
	}

	status := 200
	switch {
	case successes == 0 && failures > 0:
		status = 500
	case failures > 0 && successes > 0:
		status = 207
	case failures == 0 && successes == 0:
		status = 400
	}

	return &Response{ID: req.ID, Status: status, Results: results}
}

func (t *Translator) dispatchSet(ctx context.Context, req *Request, id auth.Identity) *Response {
	if err := t.authorize(id, req.Param, auth.PermWrite); err != nil {
		return errResponse(req.ID, err)
	}
	if err := t.Bus.Set(ctx, req.Param, req.Value); err != nil {
		return errResponse(req.ID, err)
	}
	if t.Cache != nil {
		t.Cache.Delete(req.Param)
	}
	return &Response{ID: req.ID, Status: 200, Message: "Success"}
}

func (t *Translator) dispatchGetAttributes(ctx context.Context, req *Request, id auth.Identity) *Response {
	if err := t.authorize(id, req.Param, auth.PermRead); err != nil {
		return errResponse(req.ID, err)
	}
	attr, err := t.Bus.GetAttributes(ctx, req.Param)
	if err != nil {
		return errResponse(req.ID, err)
	}
	return &Response{ID: req.ID, Status: 200, Attributes: &WireAttributes{Notify: attr.Notify, Access: attr.Access.String()}}
}

func (t *Translator) dispatchSetAttributes(ctx context.Context, req *Request, id auth.Identity) *Response {
	if err := t.authorize(id, req.Param, auth.PermWrite); err != nil {
		return errResponse(req.ID, err)
	}
	attr := parambus.Attribute{Notify: req.Attributes.Notify, Access: parambus.ParseAccess(req.Attributes.Access)}
	if err := t.Bus.SetAttributes(ctx, req.Param, attr); err != nil {
		return errResponse(req.ID, err)
	}
	return &Response{ID: req.ID, Status: 200, Message: "Success"}
}

func toRowParams(wire []WireRowParam) []parambus.RowParam {
	out := make([]parambus.RowParam, len(wire))
	for i, w := range wire {
		out[i] = parambus.RowParam{Name: w.Name, Value: w.Value, Type: codec.WireType(w.DataType)}
	}
	return out
}

func (t *Translator) dispatchAddRow(ctx context.Context, req *Request, id auth.Identity) *Response {
	if err := t.authorize(id, req.TableName, auth.PermWrite); err != nil {
		return errResponse(req.ID, err)
	}
	rowPath, err := t.Bus.AddTableRow(ctx, req.TableName, toRowParams(req.RowData))
	if err != nil {
		return errResponse(req.ID, err)
	}
	if t.Cache != nil {
		t.Cache.InvalidateWildcard(req.TableName + "*")
	}
	return &Response{ID: req.ID, Status: 200, NewRowName: rowPath, Message: "Success"}
}

func (t *Translator) dispatchDeleteRow(ctx context.Context, req *Request, id auth.Identity) *Response {
	if err := t.authorize(id, req.RowName, auth.PermWrite); err != nil {
		return errResponse(req.ID, err)
	}
	if err := t.Bus.DeleteTableRow(ctx, req.RowName); err != nil {
		return errResponse(req.ID, err)
	}
	if t.Cache != nil {
		t.Cache.InvalidateWildcard(req.RowName + "*")
	}
	return &Response{ID: req.ID, Status: 200, Message: "Success"}
}

func (t *Translator) dispatchReplaceRows(ctx context.Context, req *Request, id auth.Identity) *Response {
	if err := t.authorize(id, req.TableName, auth.PermWrite); err != nil {
		return errResponse(req.ID, err)
	}
	rows := make([][]parambus.RowParam, len(req.TableData))
	for i, r := range req.TableData {
		rows[i] = toRowParams(r)
	}
	if err := t.Bus.ReplaceTable(ctx, req.TableName, rows); err != nil {
		return errResponse(req.ID, err)
	}
	if t.Cache != nil {
		t.Cache.InvalidateWildcard(req.TableName + "*")
	}
	return &Response{ID: req.ID, Status: 200, Message: "Success"}
}

func (t *Translator) dispatchSubscribe(ctx context.Context, req *Request, id auth.Identity) *Response {
	if err := t.authorize(id, req.Event, auth.PermSubscribe); err != nil {
		return errResponse(req.ID, err)
	}
	cb := func(ev parambus.Event) {
		if t.Sink != nil {
			t.Sink(ev)
		}
	}
	if err := t.Bus.Subscribe(ctx, req.Event, cb); err != nil {
		return errResponse(req.ID, err)
	}
	return &Response{ID: req.ID, Status: 200, Message: "Success"}
}

func (t *Translator) dispatchUnsubscribe(ctx context.Context, req *Request, id auth.Identity) *Response {
	if err := t.authorize(id, req.Event, auth.PermSubscribe); err != nil {
		return errResponse(req.ID, err)
	}
	if err := t.Bus.Unsubscribe(ctx, req.Event); err != nil {
		return errResponse(req.ID, err)
	}
	return &Response{ID: req.ID, Status: 200, Message: "Success"}
}

func (t *Translator) dispatchTestAndSet(ctx context.Context, req *Request, id auth.Identity) *Response {
	if err := t.authorize(id, req.Param, auth.PermWrite); err != nil {
		return errResponse(req.ID, err)
	}
	err := t.Bus.TestAndSet(ctx, req.Param, req.OldValue, req.NewValue, codec.WireType(req.DataType))
	if err != nil {
		return errResponse(req.ID, err)
	}
	if t.Cache != nil {
		t.Cache.Set(req.Param, codec.TypedValue{Value: req.NewValue, Type: codec.WireType(req.DataType)}, 0)
	}
	return &Response{ID: req.ID, Status: 200, Message: "Success"}
}

func errResponse(id string, err error) *Response {
	return &Response{ID: id, Status: errors.ClassifyKind(err).HTTPStatus(), Message: err.Error()}
}
