package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/0x30/webview-bridge-sub001/internal/transport"
	"github.com/0x30/webview-bridge-sub001/internal/wire"
)

// responder plays the content side of a channel: it answers each inbound
// request with whatever fn returns, or stays silent when fn returns nil.
type responder struct {
	tr transport.Transport
	fn func(req wire.Request) *wire.Response

	mu   sync.Mutex
	seen []wire.Request
}

func (r *responder) HandleFrame(data []byte) {
	frame := wire.Classify(data)
	if frame.Kind != wire.FrameRequest {
		return
	}
	r.mu.Lock()
	r.seen = append(r.seen, *frame.Request)
	r.mu.Unlock()
	if r.fn == nil {
		return
	}
	resp := r.fn(*frame.Request)
	if resp == nil {
		return
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		panic(err)
	}
	_ = r.tr.Send(raw)
}

func (r *responder) HandleClosed() {}

func (r *responder) lastRequest() wire.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seen[len(r.seen)-1]
}

func newTestEngine(fn func(req wire.Request) *wire.Response, opts ...Option) (*Engine, *responder, transport.Transport) {
	hostEnd, contentEnd := transport.Pair()
	r := &responder{tr: contentEnd, fn: fn}
	contentEnd.Attach(r)
	e := New(hostEnd, opts...)
	return e, r, contentEnd
}

func TestSendResolvesWithData(t *testing.T) {
	e, _, _ := newTestEngine(func(req wire.Request) *wire.Response {
		return &wire.Response{CallbackID: req.CallbackID, Success: true, Data: json.RawMessage(`{"answer":42}`)}
	})
	defer func() { _ = e.Close() }()

	data, err := e.Send(context.Background(), "device.getInfo", nil, time.Second)
	if err != nil {
		t.Fatalf("Send() = %v", err)
	}
	if string(data) != `{"answer":42}` {
		t.Fatalf("data = %s; want {\"answer\":42}", data)
	}
	if e.PendingCount() != 0 {
		t.Fatalf("PendingCount() = %d; want 0", e.PendingCount())
	}
}

func TestSendRejectionSurfacesCodedError(t *testing.T) {
	e, _, _ := newTestEngine(func(req wire.Request) *wire.Response {
		return &wire.Response{
			CallbackID: req.CallbackID,
			Success:    false,
			Error:      &wire.ErrorBody{Code: wire.CodePermissionDenied, Message: "clipboard blocked"},
		}
	})
	defer func() { _ = e.Close() }()

	_, err := e.Send(context.Background(), "clipboard.getText", nil, time.Second)
	coded, ok := wire.AsCoded(err)
	if !ok {
		t.Fatalf("Send() = %v; want *wire.CodedError", err)
	}
	if coded.Code != wire.CodePermissionDenied {
		t.Fatalf("Code = %d; want %d", coded.Code, wire.CodePermissionDenied)
	}
}

func TestSendTimeoutThenLateResponseIsDropped(t *testing.T) {
	e, r, contentEnd := newTestEngine(nil)
	defer func() { _ = e.Close() }()

	_, err := e.Send(context.Background(), "device.getMemory", nil, 30*time.Millisecond)
	coded, ok := wire.AsCoded(err)
	if !ok || coded.Code != wire.CodeTimeout {
		t.Fatalf("Send() = %v; want TIMEOUT", err)
	}
	if e.PendingCount() != 0 {
		t.Fatalf("PendingCount() after timeout = %d; want 0", e.PendingCount())
	}

	// A response arriving after the timeout finds no pending entry and must
	// change nothing.
	late, _ := json.Marshal(wire.Response{CallbackID: r.lastRequest().CallbackID, Success: true, Data: json.RawMessage(`{}`)})
	if err := contentEnd.Send(late); err != nil {
		t.Fatalf("late Send() = %v", err)
	}
	if e.PendingCount() != 0 {
		t.Fatalf("PendingCount() after late response = %d; want 0", e.PendingCount())
	}
}

func TestDuplicateResponseIsDropped(t *testing.T) {
	e, r, contentEnd := newTestEngine(nil)
	defer func() { _ = e.Close() }()

	done := make(chan struct{})
	var data json.RawMessage
	var sendErr error
	go func() {
		defer close(done)
		data, sendErr = e.Send(context.Background(), "storage.get", map[string]string{"key": "a"}, time.Second)
	}()
	waitPending(t, e, 1)

	// Answer the same request twice; only the first terminal outcome may be
	// observed, the duplicate finds no pending entry.
	id := r.lastRequest().CallbackID
	first, _ := json.Marshal(wire.Response{CallbackID: id, Success: true, Data: json.RawMessage(`1`)})
	dup, _ := json.Marshal(wire.Response{CallbackID: id, Success: true, Data: json.RawMessage(`2`)})
	if err := contentEnd.Send(first); err != nil {
		t.Fatalf("Send(first) = %v", err)
	}
	if err := contentEnd.Send(dup); err != nil {
		t.Fatalf("Send(dup) = %v", err)
	}

	<-done
	if sendErr != nil {
		t.Fatalf("Send() = %v", sendErr)
	}
	if string(data) != `1` {
		t.Fatalf("data = %s; want 1", data)
	}
	if e.PendingCount() != 0 {
		t.Fatalf("PendingCount() = %d; want 0", e.PendingCount())
	}
}

func TestSendContextCancellation(t *testing.T) {
	e, _, _ := newTestEngine(nil)
	defer func() { _ = e.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := e.Send(ctx, "device.getInfo", nil, time.Minute)
		done <- err
	}()

	waitPending(t, e, 1)
	cancel()

	err := <-done
	coded, ok := wire.AsCoded(err)
	if !ok || coded.Code != wire.CodeCancelled {
		t.Fatalf("Send() = %v; want CANCELLED", err)
	}
	if e.PendingCount() != 0 {
		t.Fatalf("PendingCount() = %d; want 0", e.PendingCount())
	}
}

func TestCloseFailsPendingWithTransportDestroyed(t *testing.T) {
	e, _, _ := newTestEngine(nil)

	done := make(chan error, 1)
	go func() {
		_, err := e.Send(context.Background(), "device.getInfo", nil, time.Minute)
		done <- err
	}()
	waitPending(t, e, 1)

	if err := e.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}

	err := <-done
	coded, ok := wire.AsCoded(err)
	if !ok || coded.Code != wire.CodeTransportDestroyed {
		t.Fatalf("Send() = %v; want TRANSPORT_DESTROYED", err)
	}

	// New requests after destruction fail immediately with the same code.
	_, err = e.Send(context.Background(), "device.getInfo", nil, time.Second)
	coded, ok = wire.AsCoded(err)
	if !ok || coded.Code != wire.CodeTransportDestroyed {
		t.Fatalf("Send() after Close = %v; want TRANSPORT_DESTROYED", err)
	}
}

func TestMalformedFramesLeavePendingUntouched(t *testing.T) {
	e, _, contentEnd := newTestEngine(nil)
	defer func() { _ = e.Close() }()

	done := make(chan error, 1)
	go func() {
		_, err := e.Send(context.Background(), "device.getInfo", nil, 200*time.Millisecond)
		done <- err
	}()
	waitPending(t, e, 1)

	for _, raw := range []string{`not json`, `{}`, `{"foo":1}`} {
		if err := contentEnd.Send([]byte(raw)); err != nil {
			t.Fatalf("Send(%q) = %v", raw, err)
		}
	}
	if e.PendingCount() != 1 {
		t.Fatalf("PendingCount() = %d; want 1", e.PendingCount())
	}

	err := <-done
	coded, ok := wire.AsCoded(err)
	if !ok || coded.Code != wire.CodeTimeout {
		t.Fatalf("Send() = %v; want TIMEOUT", err)
	}
}

func TestEventDispatchSurvivesListenerPanic(t *testing.T) {
	e, _, contentEnd := newTestEngine(nil)
	defer func() { _ = e.Close() }()

	var delivered []string
	e.Subscribe("custom.event", func(json.RawMessage) {
		panic("listener bug")
	})
	e.Subscribe("custom.event", func(data json.RawMessage) {
		delivered = append(delivered, string(data))
	})

	frame, err := wire.MarshalEvent("custom.event", map[string]int{"n": 7})
	if err != nil {
		t.Fatalf("MarshalEvent() = %v", err)
	}
	if err := contentEnd.Send(frame); err != nil {
		t.Fatalf("Send() = %v", err)
	}

	if len(delivered) != 1 {
		t.Fatalf("deliveries = %d; want 1", len(delivered))
	}
	if delivered[0] != `{"n":7}` {
		t.Fatalf("payload = %s; want {\"n\":7}", delivered[0])
	}
}

func TestSubscriptionCancelIsIdempotent(t *testing.T) {
	e, _, contentEnd := newTestEngine(nil)
	defer func() { _ = e.Close() }()

	var calls int
	sub := e.Subscribe("custom.event", func(json.RawMessage) { calls++ })
	sub.Cancel()
	sub.Cancel()

	frame, _ := wire.MarshalEvent("custom.event", nil)
	if err := contentEnd.Send(frame); err != nil {
		t.Fatalf("Send() = %v", err)
	}
	if calls != 0 {
		t.Fatalf("calls after Cancel = %d; want 0", calls)
	}
}

func TestDefaultHandleLifecycle(t *testing.T) {
	t.Cleanup(Teardown)
	Teardown()

	if _, err := Default(); err == nil {
		t.Fatal("Default() before Init = nil error; want NOT_READY")
	} else if coded, ok := wire.AsCoded(err); !ok || coded.Code != wire.CodeNotReady {
		t.Fatalf("Default() = %v; want NOT_READY", err)
	}

	e, _, _ := newTestEngine(nil)
	if err := Init(e); err != nil {
		t.Fatalf("Init() = %v", err)
	}
	if err := Init(e); err == nil {
		t.Fatal("second Init() = nil; want error")
	}

	got, err := Default()
	if err != nil {
		t.Fatalf("Default() = %v", err)
	}
	if got != e {
		t.Fatal("Default() returned a different engine")
	}

	Teardown()
	if _, err := Default(); err == nil {
		t.Fatal("Default() after Teardown = nil error; want NOT_READY")
	}
}

func waitPending(t *testing.T, e *Engine, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if e.PendingCount() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("PendingCount() = %d; want %d", e.PendingCount(), want)
}
