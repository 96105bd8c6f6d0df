package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/0x30/webview-bridge-sub001/internal/wire"
)

// Event is one decoded inbound event. Known topics decode to a concrete
// variant; anything else falls through to UnknownEvent so new host topics
// remain observable without a code change here.
type Event interface {
	eventName() string
}

// PageCreatedEvent reports a confirmed surface creation.
type PageCreatedEvent struct{ wire.PageLifecycle }

// PageDestroyedEvent reports a confirmed surface teardown.
type PageDestroyedEvent struct{ wire.PageLifecycle }

// LaunchDataEvent carries push/replace launch data directed at a new page.
type LaunchDataEvent struct{ wire.LaunchData }

// PageMessageEvent is a directed or broadcast cross-page message.
type PageMessageEvent struct{ wire.PageMessage }

// ChildResultEvent carries a popped page's result to the new current page.
type ChildResultEvent struct{ wire.ChildResult }

// UnknownEvent preserves the raw payload of an unrecognized topic.
type UnknownEvent struct {
	Name string
	Raw  json.RawMessage
}

func (PageCreatedEvent) eventName() string   { return wire.EventPageCreated }
func (PageDestroyedEvent) eventName() string { return wire.EventPageDestroyed }
func (LaunchDataEvent) eventName() string    { return wire.EventLaunchData }
func (PageMessageEvent) eventName() string   { return wire.EventPageMessage }
func (ChildResultEvent) eventName() string   { return wire.EventChildResult }
func (e UnknownEvent) eventName() string     { return e.Name }

// DecodeEvent turns a raw event into its typed variant.
func DecodeEvent(name string, data json.RawMessage) (Event, error) {
	switch name {
	case wire.EventPageCreated:
		var e PageCreatedEvent
		if err := json.Unmarshal(data, &e.PageLifecycle); err != nil {
			return nil, fmt.Errorf("bridge: decode %s: %w", name, err)
		}
		return e, nil
	case wire.EventPageDestroyed:
		var e PageDestroyedEvent
		if err := json.Unmarshal(data, &e.PageLifecycle); err != nil {
			return nil, fmt.Errorf("bridge: decode %s: %w", name, err)
		}
		return e, nil
	case wire.EventLaunchData:
		var e LaunchDataEvent
		if err := json.Unmarshal(data, &e.LaunchData); err != nil {
			return nil, fmt.Errorf("bridge: decode %s: %w", name, err)
		}
		return e, nil
	case wire.EventPageMessage:
		var e PageMessageEvent
		if err := json.Unmarshal(data, &e.PageMessage); err != nil {
			return nil, fmt.Errorf("bridge: decode %s: %w", name, err)
		}
		return e, nil
	case wire.EventChildResult:
		var e ChildResultEvent
		if err := json.Unmarshal(data, &e.ChildResult); err != nil {
			return nil, fmt.Errorf("bridge: decode %s: %w", name, err)
		}
		return e, nil
	default:
		return UnknownEvent{Name: name, Raw: data}, nil
	}
}
