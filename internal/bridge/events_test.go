package bridge

import (
	"encoding/json"
	"testing"

	"github.com/0x30/webview-bridge-sub001/internal/wire"
)

func TestDecodeEventKnownTopics(t *testing.T) {
	lifecycle, _ := json.Marshal(wire.PageLifecycle{
		Page:  wire.PageInfo{ID: "p-1", StackIndex: 1},
		Stack: []wire.PageInfo{{ID: "p-root"}, {ID: "p-1", StackIndex: 1}},
	})

	evt, err := DecodeEvent(wire.EventPageCreated, lifecycle)
	if err != nil {
		t.Fatalf("DecodeEvent() = %v", err)
	}
	created, ok := evt.(PageCreatedEvent)
	if !ok {
		t.Fatalf("DecodeEvent() returned %T; want PageCreatedEvent", evt)
	}
	if created.Page.ID != "p-1" || len(created.Stack) != 2 {
		t.Fatalf("decoded = %+v; want page p-1 on a 2-deep stack", created)
	}

	child, _ := json.Marshal(wire.ChildResult{FromPageID: "p-1", ToPageID: "p-root", Result: json.RawMessage(`7`)})
	evt, err = DecodeEvent(wire.EventChildResult, child)
	if err != nil {
		t.Fatalf("DecodeEvent(childResult) = %v", err)
	}
	if cr, ok := evt.(ChildResultEvent); !ok || cr.ToPageID != "p-root" {
		t.Fatalf("decoded = %+v; want childResult to p-root", evt)
	}
}

func TestDecodeEventUnknownTopicPreservesRaw(t *testing.T) {
	evt, err := DecodeEvent("telemetry.tick", json.RawMessage(`{"n":1}`))
	if err != nil {
		t.Fatalf("DecodeEvent() = %v", err)
	}
	unknown, ok := evt.(UnknownEvent)
	if !ok {
		t.Fatalf("DecodeEvent() returned %T; want UnknownEvent", evt)
	}
	if unknown.Name != "telemetry.tick" || string(unknown.Raw) != `{"n":1}` {
		t.Fatalf("unknown = %+v; want name and raw preserved", unknown)
	}
}

func TestDecodeEventBadPayload(t *testing.T) {
	if _, err := DecodeEvent(wire.EventPageCreated, json.RawMessage(`[`)); err == nil {
		t.Fatal("DecodeEvent(bad payload) = nil; want error")
	}
}
