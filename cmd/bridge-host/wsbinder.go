package main

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/0x30/webview-bridge-sub001/internal/capability"
	"github.com/0x30/webview-bridge-sub001/internal/dispatch"
	"github.com/0x30/webview-bridge-sub001/internal/pagehost"
	"github.com/0x30/webview-bridge-sub001/internal/transport/wsrelay"
)

// wsBinder accepts websocket channels from an external embedder and binds
// each one to a page. The embedder owns the surfaces in this mode; the host
// only tracks the stack and routes events.
type wsBinder struct {
	host           *pagehost.Host
	policy         dispatch.Policy
	handlerTimeout time.Duration
	storage        *capability.StorageModule

	mu       sync.Mutex
	channels map[string]*dispatch.Dispatcher
}

func newWSBinder(host *pagehost.Host, policy dispatch.Policy, handlerTimeout time.Duration) *wsBinder {
	return &wsBinder{
		host:           host,
		policy:         policy,
		handlerTimeout: handlerTimeout,
		storage:        capability.NewStorageModule(),
		channels:       make(map[string]*dispatch.Dispatcher),
	}
}

// serveWS upgrades the request and binds the connection to the page named by
// the "page" query parameter, defaulting to the root page.
func (b *wsBinder) serveWS(w http.ResponseWriter, r *http.Request) {
	pageID := r.URL.Query().Get("page")
	if pageID == "" {
		pageID = b.host.RootID()
	}
	if !b.knownPage(pageID) {
		http.Error(w, "unknown page", http.StatusNotFound)
		return
	}

	conn, err := wsrelay.Upgrade(w, r)
	if err != nil {
		slog.Warn("websocket upgrade failed", "page_id", pageID, "error", err)
		return
	}

	disp := dispatch.New(b.policy, b.handlerTimeout)
	_ = disp.Register(b.host.Module(pageID))
	_ = disp.Register(capability.DeviceModule{})
	_ = disp.Register(capability.ClipboardModule{})
	_ = disp.Register(b.storage)
	disp.OnClosed = func() {
		b.mu.Lock()
		delete(b.channels, pageID)
		b.mu.Unlock()
		b.host.UnbindPage(pageID)
		slog.Info("websocket channel closed", "page_id", pageID)
	}
	disp.Bind(conn)

	b.mu.Lock()
	b.channels[pageID] = disp
	b.mu.Unlock()
	b.host.BindPage(pageID, disp)
	slog.Info("websocket channel bound", "page_id", pageID)
}

func (b *wsBinder) knownPage(pageID string) bool {
	for _, p := range b.host.Pages() {
		if p.ID == pageID {
			return true
		}
	}
	return false
}

func (b *wsBinder) channelCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.channels)
}

func (b *wsBinder) inFlight() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	var total int64
	for _, d := range b.channels {
		total += d.InFlight()
	}
	return total
}
