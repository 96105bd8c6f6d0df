// Package bridge implements the correlation engine shared by every
// capability facade: it pairs each outbound request with exactly one terminal
// outcome and fans inbound events out to subscribed listeners.
package bridge

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/0x30/webview-bridge-sub001/internal/metrics"
	"github.com/0x30/webview-bridge-sub001/internal/transport"
	"github.com/0x30/webview-bridge-sub001/internal/wire"
)

// DefaultTimeout bounds a request when the caller passes no explicit timeout.
const DefaultTimeout = 30 * time.Second

type outcome struct {
	data json.RawMessage
	err  error
}

// pendingRequest tracks one in-flight request. It is owned exclusively by the
// engine and removed on the first terminal transition; later responses for
// the same id find no entry and are discarded.
type pendingRequest struct {
	id        string
	topic     string
	createdAt time.Time
	result    chan outcome
	timer     *time.Timer
}

// Engine is the correlation engine for one content instance's channel.
type Engine struct {
	tr             transport.Transport
	defaultTimeout time.Duration

	pendingMu sync.Mutex
	pending   map[string]*pendingRequest
	destroyed bool

	subMu     sync.RWMutex
	subs      map[string][]*Subscription
	nextSubID int64
}

// Option configures an Engine.
type Option func(*Engine)

// WithDefaultTimeout overrides the default request timeout.
func WithDefaultTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.defaultTimeout = d
		}
	}
}

// New creates an engine and attaches it to the transport as the single
// dispatch entry point for inbound frames.
func New(tr transport.Transport, opts ...Option) *Engine {
	e := &Engine{
		tr:             tr,
		defaultTimeout: DefaultTimeout,
		pending:        make(map[string]*pendingRequest),
		subs:           make(map[string][]*Subscription),
	}
	for _, opt := range opts {
		opt(e)
	}
	tr.Attach(e)
	return e
}

// Send issues one capability request and blocks until its single terminal
// outcome: the response data, a coded rejection, TIMEOUT, CANCELLED, or
// TRANSPORT_DESTROYED. timeout <= 0 selects the engine default.
func (e *Engine) Send(ctx context.Context, topic string, params any, timeout time.Duration) (json.RawMessage, error) {
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}

	var rawParams json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, wire.NewError(wire.CodeInvalidParams, "params not serializable", err)
		}
		rawParams = data
	}

	p, err := e.register(topic, timeout)
	if err != nil {
		return nil, err
	}

	frame, err := wire.MarshalRequest(topic, p.id, rawParams)
	if err != nil {
		e.remove(p.id)
		return nil, wire.NewError(wire.CodeInternalError, "marshal request", err)
	}
	if err := e.tr.Send(frame); err != nil {
		e.remove(p.id)
		if err == transport.ErrClosed {
			return nil, wire.NewError(wire.CodeTransportDestroyed, "transport closed", err)
		}
		return nil, wire.NewError(wire.CodeInternalError, "transport send failed", err)
	}
	metrics.RequestsSent.Inc()

	select {
	case out := <-p.result:
		return out.data, out.err
	case <-ctx.Done():
		// The entry is removed first so a late response cannot deliver a
		// second outcome to this call.
		e.remove(p.id)
		return nil, wire.NewError(wire.CodeCancelled, "request cancelled", ctx.Err())
	}
}

// register creates a pending entry with a fresh callback id. The id is
// re-rolled on the (practically impossible) collision with an in-flight id.
func (e *Engine) register(topic string, timeout time.Duration) (*pendingRequest, error) {
	e.pendingMu.Lock()
	defer e.pendingMu.Unlock()
	if e.destroyed {
		return nil, wire.NewError(wire.CodeTransportDestroyed, "engine closed", nil)
	}

	id := uuid.NewString()
	for _, exists := e.pending[id]; exists; _, exists = e.pending[id] {
		id = uuid.NewString()
	}

	p := &pendingRequest{
		id:        id,
		topic:     topic,
		createdAt: time.Now(),
		result:    make(chan outcome, 1),
	}
	p.timer = time.AfterFunc(timeout, func() {
		if e.settle(id, outcome{err: wire.NewError(wire.CodeTimeout, "no response for "+topic, nil)}) {
			metrics.RequestsTimedOut.Inc()
		}
	})
	e.pending[id] = p
	return p, nil
}

// settle removes the pending entry for id and delivers the outcome. Returns
// false when the id is unknown, which makes duplicate and late responses
// no-ops by construction (remove-then-resolve).
func (e *Engine) settle(id string, out outcome) bool {
	e.pendingMu.Lock()
	p, ok := e.pending[id]
	if ok {
		delete(e.pending, id)
	}
	e.pendingMu.Unlock()
	if !ok {
		return false
	}
	p.timer.Stop()
	p.result <- out
	return true
}

func (e *Engine) remove(id string) {
	e.pendingMu.Lock()
	p, ok := e.pending[id]
	if ok {
		delete(e.pending, id)
	}
	e.pendingMu.Unlock()
	if ok {
		p.timer.Stop()
	}
}

// HandleFrame is the transport's single inbound entry point.
func (e *Engine) HandleFrame(raw []byte) {
	frame := wire.Classify(raw)
	switch frame.Kind {
	case wire.FrameResponse:
		e.handleResponse(frame.Response)
	case wire.FrameEvent:
		e.dispatchEvent(frame.Event.EventName, frame.Event.Data)
	case wire.FrameRequest:
		// The engine is the requesting side; inbound requests belong to a
		// capability dispatcher on the other end of the channel.
		slog.Warn("bridge: dropping unexpected request frame", "topic", frame.Request.Topic)
	default:
		metrics.MalformedFrames.Inc()
		slog.Warn("bridge: dropping malformed frame", "bytes", len(raw))
	}
}

func (e *Engine) handleResponse(resp *wire.Response) {
	var out outcome
	if resp.Success {
		out = outcome{data: resp.Data}
	} else {
		out = outcome{err: wire.FromErrorBody(resp.Error)}
	}
	if !e.settle(resp.CallbackID, out) {
		metrics.LateResponses.Inc()
		slog.Debug("bridge: discarding late or duplicate response", "callback_id", resp.CallbackID)
		return
	}
	metrics.RequestsResolved.Inc()
}

// HandleClosed bulk-fails every pending request with TRANSPORT_DESTROYED.
func (e *Engine) HandleClosed() {
	e.pendingMu.Lock()
	e.destroyed = true
	orphans := make([]*pendingRequest, 0, len(e.pending))
	for _, p := range e.pending {
		orphans = append(orphans, p)
	}
	e.pending = make(map[string]*pendingRequest)
	e.pendingMu.Unlock()

	err := wire.NewError(wire.CodeTransportDestroyed, "transport destroyed with request pending", nil)
	for _, p := range orphans {
		p.timer.Stop()
		p.result <- outcome{err: err}
	}
	if len(orphans) > 0 {
		slog.Info("bridge: failed pending requests on transport close", "count", len(orphans))
	}
}

// Close destroys the transport, bulk-fails pending requests, and clears the
// listener registry.
func (e *Engine) Close() error {
	err := e.tr.Close()
	e.HandleClosed()
	e.subMu.Lock()
	e.subs = make(map[string][]*Subscription)
	e.subMu.Unlock()
	return err
}

// PendingCount reports in-flight requests, for diagnostics.
func (e *Engine) PendingCount() int {
	e.pendingMu.Lock()
	defer e.pendingMu.Unlock()
	return len(e.pending)
}
