// Package wire defines the envelope formats exchanged between the host and
// an embedded content instance, plus the error taxonomy surfaced at that
// boundary. Every frame is a self-describing JSON object.
package wire

import (
	"encoding/json"
	"fmt"
	"time"
)

// Version is the envelope version stamped on every outbound request.
const Version = 1

// Request asks the peer to execute one capability method. CallbackID pairs
// the request with its single terminal response.
type Request struct {
	V          int             `json:"v"`
	Topic      string          `json:"topic"`
	Params     json.RawMessage `json:"params,omitempty"`
	CallbackID string          `json:"callbackId"`
}

// ErrorBody carries a coded failure inside a response.
type ErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Response is the terminal outcome for one request. Exactly one of Data or
// Error is meaningful, selected by Success.
type Response struct {
	CallbackID string          `json:"callbackId"`
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data,omitempty"`
	Error      *ErrorBody      `json:"error,omitempty"`
}

// Event is an unsolicited notification dispatched by topic name.
type Event struct {
	EventName string          `json:"eventName"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// FrameKind classifies an inbound frame.
type FrameKind int

const (
	FrameMalformed FrameKind = iota
	FrameRequest
	FrameResponse
	FrameEvent
)

// Frame is the result of classifying one inbound serialized message.
type Frame struct {
	Kind     FrameKind
	Request  *Request
	Response *Response
	Event    *Event
}

// Classify parses a raw frame into exactly one envelope shape. A frame that
// parses but matches no shape, or does not parse at all, is FrameMalformed;
// callers drop it without touching any correlation state.
func Classify(raw []byte) Frame {
	var probe struct {
		Topic      string `json:"topic"`
		CallbackID string `json:"callbackId"`
		EventName  string `json:"eventName"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return Frame{Kind: FrameMalformed}
	}

	switch {
	case probe.Topic != "" && probe.CallbackID != "":
		var req Request
		if json.Unmarshal(raw, &req) != nil {
			return Frame{Kind: FrameMalformed}
		}
		return Frame{Kind: FrameRequest, Request: &req}
	case probe.CallbackID != "":
		var resp Response
		if json.Unmarshal(raw, &resp) != nil {
			return Frame{Kind: FrameMalformed}
		}
		return Frame{Kind: FrameResponse, Response: &resp}
	case probe.EventName != "":
		var evt Event
		if json.Unmarshal(raw, &evt) != nil {
			return Frame{Kind: FrameMalformed}
		}
		return Frame{Kind: FrameEvent, Event: &evt}
	default:
		return Frame{Kind: FrameMalformed}
	}
}

// MarshalRequest builds a versioned request frame.
func MarshalRequest(topic, callbackID string, params json.RawMessage) ([]byte, error) {
	data, err := json.Marshal(Request{V: Version, Topic: topic, Params: params, CallbackID: callbackID})
	if err != nil {
		return nil, fmt.Errorf("wire: marshal request %s: %w", topic, err)
	}
	return data, nil
}

// MarshalEvent builds an event frame from any payload value.
func MarshalEvent(name string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal event %s payload: %w", name, err)
	}
	data, err := json.Marshal(Event{EventName: name, Data: body})
	if err != nil {
		return nil, fmt.Errorf("wire: marshal event %s: %w", name, err)
	}
	return data, nil
}

// Present reports whether an optional raw value actually carries data; an
// omitted field round-trips through JSON as empty or literal null.
func Present(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

// PageInfo describes one embedded-content surface as seen by both sides of
// the bridge. StackIndex values are contiguous from the root at index 0.
type PageInfo struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	Title      string    `json:"title,omitempty"`
	StackIndex int       `json:"stackIndex"`
	CreatedAt  time.Time `json:"createdAt"`
}

// StackResult is the confirmation payload for every stack-mutating
// navigator operation and for getPages. Callers derive their new mirror from
// it instead of computing indices client-side.
type StackResult struct {
	Page  PageInfo   `json:"page"`
	Stack []PageInfo `json:"stack"`
}

// Navigator event names. Lifecycle events are broadcast to every page;
// launch data, messages, and child results are directed.
const (
	EventPageCreated   = "navigator.pageCreated"
	EventPageDestroyed = "navigator.pageDestroyed"
	EventLaunchData    = "navigator.launchData"
	EventPageMessage   = "navigator.message"
	EventChildResult   = "navigator.childResult"
)

// PageLifecycle is the payload for pageCreated/pageDestroyed. Stack is the
// confirmed stack after the mutation; receivers reconcile against it rather
// than patching their own mirror.
type PageLifecycle struct {
	Page  PageInfo   `json:"page"`
	Stack []PageInfo `json:"stack"`
}

// LaunchData delivers push/replace launch data to a newly created page.
type LaunchData struct {
	PageID string          `json:"pageId"`
	Data   json.RawMessage `json:"data"`
}

// PageMessage is a cross-page message. ToPageID is empty for broadcasts.
type PageMessage struct {
	FromPageID string          `json:"fromPageId"`
	ToPageID   string          `json:"toPageId,omitempty"`
	Broadcast  bool            `json:"broadcast,omitempty"`
	Payload    json.RawMessage `json:"payload"`
}

// ChildResult delivers a popped page's result to the page becoming current.
// FromPageID is the destroyed page's identity; receivers distinguish "a child
// returned data" from a generic message by the event topic, not the payload.
type ChildResult struct {
	FromPageID string          `json:"fromPageId"`
	ToPageID   string          `json:"toPageId"`
	Result     json.RawMessage `json:"result"`
}
