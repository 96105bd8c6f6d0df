// Package dispatch routes inbound capability requests to registered modules
// on the host side and guarantees exactly one terminal response per request.
package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/0x30/webview-bridge-sub001/internal/metrics"
	"github.com/0x30/webview-bridge-sub001/internal/transport"
	"github.com/0x30/webview-bridge-sub001/internal/wire"
)

// DefaultHandlerTimeout bounds handler execution when no policy override
// applies.
const DefaultHandlerTimeout = 30 * time.Second

// Handler executes one capability method. Returning an error rejects the
// request; a *wire.CodedError keeps its code on the wire.
type Handler func(ctx context.Context, params json.RawMessage) (json.RawMessage, error)

// Module declares a capability namespace and the methods it handles.
type Module interface {
	Namespace() string
	Methods() map[string]Handler
}

// Policy gates namespaces and overrides handler timeouts. A nil Policy
// allows everything.
type Policy interface {
	Allowed(namespace string) bool
	Timeout(namespace string) time.Duration
}

// Dispatcher serves one content instance's channel.
type Dispatcher struct {
	policy         Policy
	defaultTimeout time.Duration

	mu      sync.RWMutex
	modules map[string]map[string]Handler

	tr       transport.Transport
	closed   atomic.Bool
	inFlight atomic.Int64

	// OnClosed, when set before Bind, is invoked once when the transport
	// reports closure.
	OnClosed func()
}

// New creates a dispatcher. handlerTimeout <= 0 selects the default.
func New(policy Policy, handlerTimeout time.Duration) *Dispatcher {
	if handlerTimeout <= 0 {
		handlerTimeout = DefaultHandlerTimeout
	}
	return &Dispatcher{
		policy:         policy,
		defaultTimeout: handlerTimeout,
		modules:        make(map[string]map[string]Handler),
	}
}

// Register adds a capability module. Duplicate namespaces are refused.
func (d *Dispatcher) Register(m Module) error {
	ns := m.Namespace()
	if ns == "" || strings.Contains(ns, ".") {
		return wire.NewError(wire.CodeInvalidParams, "invalid module namespace "+ns, nil)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.modules[ns]; exists {
		return wire.NewError(wire.CodeInternalError, "namespace already registered: "+ns, nil)
	}
	methods := make(map[string]Handler, len(m.Methods()))
	for name, h := range m.Methods() {
		methods[name] = h
	}
	d.modules[ns] = methods
	return nil
}

// Bind attaches the dispatcher to a transport as its frame handler.
func (d *Dispatcher) Bind(tr transport.Transport) {
	d.tr = tr
	tr.Attach(d)
}

// HandleFrame is the transport's single inbound entry point on the host side.
func (d *Dispatcher) HandleFrame(raw []byte) {
	frame := wire.Classify(raw)
	switch frame.Kind {
	case wire.FrameRequest:
		// Handlers may block on platform services; run off the dispatch
		// turn so one slow request cannot stall the channel.
		go d.execute(*frame.Request)
	case wire.FrameResponse, wire.FrameEvent:
		slog.Debug("dispatch: ignoring non-request frame")
	default:
		metrics.MalformedFrames.Inc()
		slog.Warn("dispatch: dropping malformed frame", "bytes", len(raw))
	}
}

// HandleClosed marks the channel destroyed; later responses and events are
// discarded at Send.
func (d *Dispatcher) HandleClosed() {
	d.closed.Store(true)
	if d.OnClosed != nil {
		d.OnClosed()
	}
}

// InFlight reports requests currently executing, for diagnostics.
func (d *Dispatcher) InFlight() int64 { return d.inFlight.Load() }

func (d *Dispatcher) execute(req wire.Request) {
	d.inFlight.Add(1)
	defer d.inFlight.Add(-1)

	// The reply guard makes a second terminal response for the same
	// callback id impossible, whatever the handler below does.
	var replied atomic.Bool
	reply := func(data json.RawMessage, err error) {
		if !replied.CompareAndSwap(false, true) {
			slog.Warn("dispatch: dropping duplicate response", "topic", req.Topic, "callback_id", req.CallbackID)
			return
		}
		d.respond(req.CallbackID, data, err)
	}

	ns, method, ok := strings.Cut(req.Topic, ".")
	if !ok || ns == "" || method == "" {
		reply(nil, wire.NewError(wire.CodeMethodNotFound, "malformed topic "+req.Topic, nil))
		return
	}
	if d.policy != nil && !d.policy.Allowed(ns) {
		reply(nil, wire.NewError(wire.CodePermissionDenied, "module "+ns+" denied by policy", nil))
		return
	}

	d.mu.RLock()
	methods, nsKnown := d.modules[ns]
	handler := methods[method]
	d.mu.RUnlock()
	if !nsKnown || handler == nil {
		reply(nil, wire.NewError(wire.CodeMethodNotFound, "no handler for "+req.Topic, nil))
		return
	}

	timeout := d.defaultTimeout
	if d.policy != nil {
		if t := d.policy.Timeout(ns); t > 0 {
			timeout = t
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	data, err := runHandler(ctx, handler, req.Params)
	reply(data, err)
}

// runHandler converts a handler panic into INTERNAL_ERROR instead of taking
// the process down.
func runHandler(ctx context.Context, h Handler, params json.RawMessage) (data json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("dispatch: handler panicked", "panic", r)
			data, err = nil, wire.NewError(wire.CodeInternalError, "handler panicked", nil)
		}
	}()
	return h(ctx, params)
}

func (d *Dispatcher) respond(callbackID string, data json.RawMessage, err error) {
	if d.closed.Load() {
		slog.Debug("dispatch: channel destroyed, dropping response", "callback_id", callbackID)
		return
	}
	resp := wire.Response{CallbackID: callbackID}
	if err != nil {
		resp.Error = wire.ToErrorBody(err)
	} else {
		resp.Success = true
		resp.Data = data
	}
	frame, merr := json.Marshal(resp)
	if merr != nil {
		slog.Error("dispatch: marshal response failed", "callback_id", callbackID, "error", merr)
		return
	}
	if serr := d.tr.Send(frame); serr != nil {
		slog.Debug("dispatch: response send failed", "callback_id", callbackID, "error", serr)
		return
	}
	metrics.ResponsesEmitted.Inc()
}

// EmitEvent pushes an unsolicited event to the content instance.
func (d *Dispatcher) EmitEvent(name string, payload any) error {
	if d.closed.Load() {
		return transport.ErrClosed
	}
	frame, err := wire.MarshalEvent(name, payload)
	if err != nil {
		return err
	}
	return d.tr.Send(frame)
}
