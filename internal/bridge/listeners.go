package bridge

import (
	"encoding/json"
	"log/slog"

	"github.com/0x30/webview-bridge-sub001/internal/metrics"
)

// Subscription is an explicit listener handle. Cancel is idempotent and
// cancelling a handle that was never delivered to is a no-op.
type Subscription struct {
	engine *Engine
	topic  string
	id     int64
	fn     func(data json.RawMessage)
}

// Cancel removes the listener from the registry.
func (s *Subscription) Cancel() {
	if s == nil || s.engine == nil {
		return
	}
	s.engine.unsubscribe(s)
}

// Subscribe registers a callback for an event topic. Every registered
// callback for a topic is invoked on each matching inbound event, in
// registration order, within the engine's dispatch turn. Callbacks must not
// block; slow work should be deferred internally.
func (e *Engine) Subscribe(topic string, fn func(data json.RawMessage)) *Subscription {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	e.nextSubID++
	sub := &Subscription{engine: e, topic: topic, id: e.nextSubID, fn: fn}
	e.subs[topic] = append(e.subs[topic], sub)
	return sub
}

func (e *Engine) unsubscribe(sub *Subscription) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	listeners := e.subs[sub.topic]
	for i, s := range listeners {
		if s.id == sub.id {
			e.subs[sub.topic] = append(listeners[:i], listeners[i+1:]...)
			return
		}
	}
}

// dispatchEvent invokes every listener for the topic. A panic in one
// listener is recovered so it cannot prevent the others from running.
func (e *Engine) dispatchEvent(topic string, data json.RawMessage) {
	e.subMu.RLock()
	listeners := make([]*Subscription, len(e.subs[topic]))
	copy(listeners, e.subs[topic])
	e.subMu.RUnlock()

	metrics.EventsDispatched.Inc()
	for _, sub := range listeners {
		invoke(sub, topic, data)
	}
}

func invoke(sub *Subscription, topic string, data json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			metrics.ListenerPanics.Inc()
			slog.Error("bridge: event listener panicked", "topic", topic, "panic", r)
		}
	}()
	sub.fn(data)
}
