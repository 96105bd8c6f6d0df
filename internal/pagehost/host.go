// Package pagehost owns the confirmed page stack on the host side. Every
// stack mutation is serialized under one lock, applied only after the surface
// driver succeeds, and announced to content instances as lifecycle events.
package pagehost

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/0x30/webview-bridge-sub001/internal/metrics"
	"github.com/0x30/webview-bridge-sub001/internal/wire"
)

// SurfaceDriver performs the platform work of creating and destroying
// navigable surfaces. Implementations must be atomic per call: on error no
// surface may be left half-created or half-destroyed.
type SurfaceDriver interface {
	CreateSurface(ctx context.Context, page wire.PageInfo) error
	ReplaceSurface(ctx context.Context, old, new wire.PageInfo) error
	DestroySurfaces(ctx context.Context, pages []wire.PageInfo) error
}

// EventSink delivers events onto one page's channel. The dispatcher bound to
// that channel satisfies this.
type EventSink interface {
	EmitEvent(name string, payload any) error
}

type emission struct {
	pageID  string // empty for broadcast to every bound page
	exclude string // broadcast only: page to skip
	name    string
	payload any
}

// Host is the page-stack authority.
type Host struct {
	driver SurfaceDriver

	mu       sync.Mutex
	stack    []wire.PageInfo
	sinks    map[string]EventSink
	deferred map[string][]emission // directed events for pages not yet bound
}

// New creates a Host with the root page already on the stack. The root
// surface is the initial content instance and is never popped.
func New(driver SurfaceDriver, rootURL, rootTitle string) *Host {
	h := &Host{
		driver:   driver,
		sinks:    make(map[string]EventSink),
		deferred: make(map[string][]emission),
	}
	h.stack = []wire.PageInfo{{
		ID:        uuid.NewString(),
		URL:       rootURL,
		Title:     rootTitle,
		CreatedAt: time.Now(),
	}}
	metrics.StackDepth.Set(1)
	return h
}

// RootID returns the root page id, used to bind the root channel.
func (h *Host) RootID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stack[0].ID
}

// BindPage attaches a page's channel sink and flushes any directed events
// that arrived before the channel existed.
func (h *Host) BindPage(pageID string, sink EventSink) {
	h.mu.Lock()
	h.sinks[pageID] = sink
	queued := h.deferred[pageID]
	delete(h.deferred, pageID)
	h.mu.Unlock()
	for _, em := range queued {
		if err := sink.EmitEvent(em.name, em.payload); err != nil {
			slog.Debug("pagehost: deferred event delivery failed", "page_id", pageID, "event", em.name, "error", err)
		}
	}
}

// UnbindPage detaches a page's channel sink.
func (h *Host) UnbindPage(pageID string) {
	h.mu.Lock()
	delete(h.sinks, pageID)
	delete(h.deferred, pageID)
	h.mu.Unlock()
}

// Pages returns the confirmed stack.
func (h *Host) Pages() []wire.PageInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshotLocked()
}

// Push creates one surface above the current top and appends its record.
// Launch data, when present, travels as a directed event to the new page,
// never as part of the call result.
func (h *Host) Push(ctx context.Context, url, title string, data json.RawMessage) (wire.StackResult, error) {
	if url == "" {
		return wire.StackResult{}, wire.NewError(wire.CodeInvalidParams, "push requires a url", nil)
	}

	h.mu.Lock()
	page := wire.PageInfo{
		ID:         uuid.NewString(),
		URL:        url,
		Title:      title,
		StackIndex: len(h.stack),
		CreatedAt:  time.Now(),
	}
	if err := h.driver.CreateSurface(ctx, page); err != nil {
		h.mu.Unlock()
		return wire.StackResult{}, wire.NewError(wire.CodeInternalError, "surface creation failed", err)
	}
	h.stack = append(h.stack, page)
	stack := h.snapshotLocked()
	emissions := []emission{{name: wire.EventPageCreated, payload: wire.PageLifecycle{Page: page, Stack: stack}}}
	if wire.Present(data) {
		emissions = append(emissions, emission{
			pageID:  page.ID,
			name:    wire.EventLaunchData,
			payload: wire.LaunchData{PageID: page.ID, Data: data},
		})
	}
	emissions = h.queueLocked(emissions)
	h.mu.Unlock()

	h.flush(emissions)
	slog.Info("pagehost: page pushed", "page_id", page.ID, "url", url, "stack_index", page.StackIndex)
	return wire.StackResult{Page: page, Stack: stack}, nil
}

// Pop destroys delta surfaces above the (top - delta) page. The caller's
// result, when present, is delivered to the page becoming current, tagged
// with the destroyed top page's identity as sender.
func (h *Host) Pop(ctx context.Context, result json.RawMessage, delta int) (wire.StackResult, error) {
	if delta <= 0 {
		return wire.StackResult{}, wire.NewError(wire.CodeInvalidParams, "delta must be a positive integer", nil)
	}

	h.mu.Lock()
	if delta >= len(h.stack) {
		h.mu.Unlock()
		return wire.StackResult{}, wire.NewError(wire.CodeStackUnderflow, "cannot pop past the root page", nil)
	}
	removed := append([]wire.PageInfo(nil), h.stack[len(h.stack)-delta:]...)
	if err := h.driver.DestroySurfaces(ctx, removed); err != nil {
		h.mu.Unlock()
		return wire.StackResult{}, wire.NewError(wire.CodeInternalError, "surface teardown failed", err)
	}
	h.stack = h.stack[:len(h.stack)-delta]
	target := h.stack[len(h.stack)-1]
	stack := h.snapshotLocked()

	emissions := h.destroyedEmissionsLocked(removed, stack)
	if wire.Present(result) {
		from := removed[len(removed)-1] // the page that was on top
		emissions = append(emissions, emission{
			pageID:  target.ID,
			name:    wire.EventChildResult,
			payload: wire.ChildResult{FromPageID: from.ID, ToPageID: target.ID, Result: result},
		})
	}
	emissions = h.queueLocked(emissions)
	h.mu.Unlock()

	h.flush(emissions)
	slog.Info("pagehost: pages popped", "count", delta, "current", target.ID)
	return wire.StackResult{Page: target, Stack: stack}, nil
}

// Replace swaps the current top for a new page at the same index, as a
// single host operation so the stack never shows two pages at one index.
func (h *Host) Replace(ctx context.Context, url, title string, data json.RawMessage) (wire.StackResult, error) {
	if url == "" {
		return wire.StackResult{}, wire.NewError(wire.CodeInvalidParams, "replace requires a url", nil)
	}

	h.mu.Lock()
	old := h.stack[len(h.stack)-1]
	page := wire.PageInfo{
		ID:         uuid.NewString(),
		URL:        url,
		Title:      title,
		StackIndex: old.StackIndex,
		CreatedAt:  time.Now(),
	}
	if err := h.driver.ReplaceSurface(ctx, old, page); err != nil {
		h.mu.Unlock()
		return wire.StackResult{}, wire.NewError(wire.CodeInternalError, "surface replace failed", err)
	}
	h.stack[len(h.stack)-1] = page
	stack := h.snapshotLocked()

	emissions := []emission{
		{name: wire.EventPageDestroyed, payload: wire.PageLifecycle{Page: old, Stack: stack}},
		{name: wire.EventPageCreated, payload: wire.PageLifecycle{Page: page, Stack: stack}},
	}
	if wire.Present(data) {
		emissions = append(emissions, emission{
			pageID:  page.ID,
			name:    wire.EventLaunchData,
			payload: wire.LaunchData{PageID: page.ID, Data: data},
		})
	}
	emissions = h.queueLocked(emissions)
	h.mu.Unlock()

	h.flush(emissions)
	slog.Info("pagehost: page replaced", "old", old.ID, "new", page.ID, "stack_index", page.StackIndex)
	return wire.StackResult{Page: page, Stack: stack}, nil
}

// PopToRoot destroys every page above index 0 in one batched driver call.
// On driver failure nothing is removed and a single error is reported.
func (h *Host) PopToRoot(ctx context.Context) (wire.StackResult, error) {
	h.mu.Lock()
	if len(h.stack) == 1 {
		res := wire.StackResult{Page: h.stack[0], Stack: h.snapshotLocked()}
		h.mu.Unlock()
		return res, nil
	}
	removed := append([]wire.PageInfo(nil), h.stack[1:]...)
	if err := h.driver.DestroySurfaces(ctx, removed); err != nil {
		h.mu.Unlock()
		return wire.StackResult{}, wire.NewError(wire.CodeInternalError, "surface teardown failed", err)
	}
	h.stack = h.stack[:1]
	stack := h.snapshotLocked()
	emissions := h.destroyedEmissionsLocked(removed, stack)
	emissions = h.queueLocked(emissions)
	h.mu.Unlock()

	h.flush(emissions)
	slog.Info("pagehost: popped to root", "count", len(removed))
	return wire.StackResult{Page: stack[0], Stack: stack}, nil
}

// PostMessage delivers a cross-page message: directed when target is set,
// broadcast to every page except the sender otherwise. Fire-and-forget; the
// call succeeds once the send is accepted, with no recipient acknowledgment.
func (h *Host) PostMessage(from, target string, payload json.RawMessage) error {
	h.mu.Lock()
	if target != "" && !h.knownLocked(target) {
		h.mu.Unlock()
		return wire.NewError(wire.CodePageNotFound, "no page with id "+target, nil)
	}
	msg := wire.PageMessage{FromPageID: from, ToPageID: target, Broadcast: target == "", Payload: payload}
	var em emission
	if target != "" {
		em = emission{pageID: target, name: wire.EventPageMessage, payload: msg}
	} else {
		em = emission{exclude: from, name: wire.EventPageMessage, payload: msg}
	}
	now := h.queueLocked([]emission{em})
	h.mu.Unlock()

	h.flush(now)
	return nil
}

func (h *Host) knownLocked(pageID string) bool {
	for _, p := range h.stack {
		if p.ID == pageID {
			return true
		}
	}
	return false
}

func (h *Host) snapshotLocked() []wire.PageInfo {
	stack := make([]wire.PageInfo, len(h.stack))
	copy(stack, h.stack)
	metrics.StackDepth.Set(float64(len(stack)))
	return stack
}

// destroyedEmissionsLocked announces teardown top-down, matching the order
// the surfaces actually disappear.
func (h *Host) destroyedEmissionsLocked(removed, stack []wire.PageInfo) []emission {
	emissions := make([]emission, 0, len(removed))
	for i := len(removed) - 1; i >= 0; i-- {
		emissions = append(emissions, emission{
			name:    wire.EventPageDestroyed,
			payload: wire.PageLifecycle{Page: removed[i], Stack: stack},
		})
	}
	return emissions
}

// queueLocked defers directed emissions whose page channel is not bound yet;
// those replay on BindPage. It returns the emissions flush should deliver
// now, so a page binding mid-operation cannot receive an event twice.
func (h *Host) queueLocked(emissions []emission) []emission {
	now := make([]emission, 0, len(emissions))
	for _, em := range emissions {
		if em.pageID != "" {
			if _, bound := h.sinks[em.pageID]; !bound {
				h.deferred[em.pageID] = append(h.deferred[em.pageID], em)
				continue
			}
		}
		now = append(now, em)
	}
	return now
}

// flush delivers emissions outside the stack lock so a listener reacting to
// an event can immediately issue its own navigator call.
func (h *Host) flush(emissions []emission) {
	h.mu.Lock()
	type delivery struct {
		sink EventSink
		em   emission
	}
	var out []delivery
	for _, em := range emissions {
		if em.pageID != "" {
			if sink, ok := h.sinks[em.pageID]; ok {
				out = append(out, delivery{sink, em})
			}
			continue
		}
		for pageID, sink := range h.sinks {
			if em.exclude != "" && pageID == em.exclude {
				continue
			}
			out = append(out, delivery{sink, em})
		}
	}
	h.mu.Unlock()

	for _, dl := range out {
		if err := dl.sink.EmitEvent(dl.em.name, dl.em.payload); err != nil {
			slog.Debug("pagehost: event delivery failed", "event", dl.em.name, "error", err)
		}
	}
}
