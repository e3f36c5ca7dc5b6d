package events

import (
	"encoding/json"

	"github.com/c360/webpa-gateway/cache"
	"github.com/c360/webpa-gateway/codec"
	"github.com/c360/webpa-gateway/parambus"
)

// Publisher sends an already-built notification out through the uplink.
// Implemented by uplink.Session in production and a recording stub in
// tests.
type Publisher interface {
	PublishNotification(payload []byte) error
}

// Pipeline turns raw parambus events into notification envelopes and
// forwards them through a Publisher. It is the translator.EventSink
// implementation wired by the top-level service.
type Pipeline struct {
	Source      string
	Destination string
	Cache       *cache.Cache // optional, used to best-effort fill oldValue
	Out         Publisher
}

// NewPipeline constructs a Pipeline. cache may be nil.
func NewPipeline(source, destination string, c *cache.Cache, out Publisher) *Pipeline {
	return &Pipeline{Source: source, Destination: destination, Cache: c, Out: out}
}

// OnEvent is registered as the translator.EventSink for every SUBSCRIBE
// the translator dispatches. It must not call back into the parambus
// synchronously (the concurrency model's event/cache coordination rule);
// it only reads and updates the cache and writes the notification out.
func (p *Pipeline) OnEvent(ev parambus.Event) {
	var note Notification

	switch ev.Category {
	case parambus.CategoryValueChange:
		oldValue := "unknown"
		if p.Cache != nil {
			if tv, ok := p.Cache.Get(ev.Name); ok {
				oldValue = tv.Value
			}
			p.Cache.Set(ev.Name, codec.TypedValue{Value: ev.NewValue, Type: ev.Type}, 0)
		}
		note = FromParamChange(ev, p.Source, p.Destination, oldValue)
	case parambus.CategoryObjectCreated, parambus.CategoryObjectDeleted:
		note = New(TypeDeviceStatus, p.Source, p.Destination, map[string]string{
			"objectName": ev.Name,
			"action":     objectActionLabel(ev.Category),
		})
	default:
		return
	}

	payload, err := json.Marshal(note)
	if err != nil {
		return
	}
	if p.Out != nil {
		_ = p.Out.PublishNotification(payload)
	}
}

func objectActionLabel(cat parambus.EventCategory) string {
	if cat == parambus.CategoryObjectCreated {
		return "created"
	}
	return "deleted"
}
