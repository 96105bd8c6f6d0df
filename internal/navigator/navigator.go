// Package navigator is the content-side page-stack manager. It issues stack
// operations as ordinary capability calls and keeps a mirror of the stack
// that is mutated only from confirmed host payloads and lifecycle events,
// never speculatively.
package navigator

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/0x30/webview-bridge-sub001/internal/bridge"
	"github.com/0x30/webview-bridge-sub001/internal/wire"
)

// PushOptions carries the optional parts of push and replace.
type PushOptions struct {
	Title string
	Data  json.RawMessage
}

// Navigator manages the page stack for one content instance.
type Navigator struct {
	engine *bridge.Engine
	selfID string

	mu    sync.Mutex
	stack []wire.PageInfo

	// Launch data directed at this page may arrive before anyone subscribes;
	// it is buffered until the first subscription so it cannot be lost.
	launchBuf        json.RawMessage
	launchBuffered   bool
	launchDelivered  bool
	launchSubscriber func(data json.RawMessage)

	subs []*bridge.Subscription
}

// New creates a Navigator for the page identified by selfID and subscribes
// it to the host's lifecycle and messaging topics.
func New(engine *bridge.Engine, selfID string) *Navigator {
	n := &Navigator{engine: engine, selfID: selfID}
	n.subs = append(n.subs,
		engine.Subscribe(wire.EventPageCreated, n.onLifecycle),
		engine.Subscribe(wire.EventPageDestroyed, n.onLifecycle),
		engine.Subscribe(wire.EventLaunchData, n.onLaunchData),
	)
	return n
}

// Close cancels the navigator's subscriptions.
func (n *Navigator) Close() {
	for _, sub := range n.subs {
		sub.Cancel()
	}
}

// SelfID returns the page id this navigator acts as.
func (n *Navigator) SelfID() string { return n.selfID }

// Push asks the host to instantiate a new surface above the current top.
// Launch data in opts reaches the new page as a directed event; it is not
// part of this call's result.
func (n *Navigator) Push(ctx context.Context, url string, opts PushOptions) (wire.PageInfo, error) {
	return n.stackCall(ctx, "navigator.push", map[string]any{
		"url": url, "title": opts.Title, "data": opts.Data,
	})
}

// Pop asks the host to tear down delta surfaces. result, when non-nil, is
// delivered to the page that becomes current, tagged with the destroyed top
// page's identity.
func (n *Navigator) Pop(ctx context.Context, result json.RawMessage, delta int) (wire.PageInfo, error) {
	if delta <= 0 {
		return wire.PageInfo{}, wire.NewError(wire.CodeInvalidParams, "delta must be a positive integer", nil)
	}
	return n.stackCall(ctx, "navigator.pop", map[string]any{
		"result": result, "delta": delta,
	})
}

// Replace swaps the current top for a new page at the same stack index.
func (n *Navigator) Replace(ctx context.Context, url string, opts PushOptions) (wire.PageInfo, error) {
	return n.stackCall(ctx, "navigator.replace", map[string]any{
		"url": url, "title": opts.Title, "data": opts.Data,
	})
}

// PopToRoot destroys every page above the root in one batched operation.
func (n *Navigator) PopToRoot(ctx context.Context) (wire.PageInfo, error) {
	return n.stackCall(ctx, "navigator.popToRoot", nil)
}

// GetPages queries the authoritative stack, refreshing the mirror. Callers
// use it to reconcile after a timed-out stack operation.
func (n *Navigator) GetPages(ctx context.Context) ([]wire.PageInfo, error) {
	_, err := n.stackCall(ctx, "navigator.getPages", nil)
	if err != nil {
		return nil, err
	}
	return n.Stack(), nil
}

// PostMessage sends a cross-page message: directed when targetPageID is set,
// broadcast to every page except this one otherwise. It resolves when the
// host accepts the send, not when any recipient processes it.
func (n *Navigator) PostMessage(ctx context.Context, targetPageID string, payload json.RawMessage) error {
	_, err := n.engine.Send(ctx, "navigator.postMessage", map[string]any{
		"targetPageId": targetPageID, "message": payload,
	}, 0)
	return err
}

// stackCall runs one stack operation and adopts the confirmed stack from the
// response payload.
func (n *Navigator) stackCall(ctx context.Context, topic string, params map[string]any) (wire.PageInfo, error) {
	data, err := n.engine.Send(ctx, topic, params, 0)
	if err != nil {
		return wire.PageInfo{}, err
	}
	var res wire.StackResult
	if err := json.Unmarshal(data, &res); err != nil {
		return wire.PageInfo{}, wire.NewError(wire.CodeInternalError, "bad confirmation payload for "+topic, err)
	}
	n.adopt(res.Stack)
	return res.Page, nil
}

// Stack returns a copy of the mirrored page stack.
func (n *Navigator) Stack() []wire.PageInfo {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]wire.PageInfo, len(n.stack))
	copy(out, n.stack)
	return out
}

// Current returns the page with the highest stack index, when known.
func (n *Navigator) Current() (wire.PageInfo, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.stack) == 0 {
		return wire.PageInfo{}, false
	}
	return n.stack[len(n.stack)-1], true
}

func (n *Navigator) adopt(stack []wire.PageInfo) {
	if stack == nil {
		return
	}
	n.mu.Lock()
	n.stack = stack
	n.mu.Unlock()
}

func (n *Navigator) onLifecycle(data json.RawMessage) {
	var lc wire.PageLifecycle
	if err := json.Unmarshal(data, &lc); err != nil {
		slog.Debug("navigator: bad lifecycle payload", "error", err)
		return
	}
	n.adopt(lc.Stack)
}

func (n *Navigator) onLaunchData(data json.RawMessage) {
	var ld wire.LaunchData
	if err := json.Unmarshal(data, &ld); err != nil || ld.PageID != n.selfID {
		return
	}
	n.mu.Lock()
	fn := n.launchSubscriber
	if fn == nil {
		n.launchBuf = ld.Data
		n.launchBuffered = true
		n.mu.Unlock()
		return
	}
	n.launchDelivered = true
	n.mu.Unlock()
	fn(ld.Data)
}

// OnLaunchData subscribes to this page's launch data. Data that arrived
// before the first subscription is replayed immediately; launch data is
// delivered at most once.
func (n *Navigator) OnLaunchData(fn func(data json.RawMessage)) {
	n.mu.Lock()
	n.launchSubscriber = fn
	replay := n.launchBuffered && !n.launchDelivered
	buf := n.launchBuf
	if replay {
		n.launchDelivered = true
	}
	n.mu.Unlock()
	if replay {
		fn(buf)
	}
}

// OnMessage subscribes to cross-page messages addressed to this page,
// directed or broadcast. Returns a cancellable handle.
func (n *Navigator) OnMessage(fn func(from string, payload json.RawMessage)) *bridge.Subscription {
	return n.engine.Subscribe(wire.EventPageMessage, func(data json.RawMessage) {
		var msg wire.PageMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return
		}
		if msg.FromPageID == n.selfID {
			return
		}
		fn(msg.FromPageID, msg.Payload)
	})
}

// OnChildResult subscribes to results returned by popped child pages. The
// sender is the destroyed page's identity.
func (n *Navigator) OnChildResult(fn func(from string, result json.RawMessage)) *bridge.Subscription {
	return n.engine.Subscribe(wire.EventChildResult, func(data json.RawMessage) {
		var cr wire.ChildResult
		if err := json.Unmarshal(data, &cr); err != nil {
			return
		}
		if cr.ToPageID != n.selfID {
			return
		}
		fn(cr.FromPageID, cr.Result)
	})
}

// WaitStackDepth polls the mirror until it reaches depth or the context
// ends. Convenience for callers reconciling after racing operations.
func (n *Navigator) WaitStackDepth(ctx context.Context, depth int) error {
	for {
		n.mu.Lock()
		current := len(n.stack)
		n.mu.Unlock()
		if current == depth {
			return nil
		}
		select {
		case <-ctx.Done():
			return wire.NewError(wire.CodeTimeout, "stack depth not reached", ctx.Err())
		case <-time.After(5 * time.Millisecond):
		}
	}
}
