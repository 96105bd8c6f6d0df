package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/0x30/webview-bridge-sub001/internal/capability"
	"github.com/0x30/webview-bridge-sub001/internal/dispatch"
	"github.com/0x30/webview-bridge-sub001/internal/pagehost"
	"github.com/0x30/webview-bridge-sub001/internal/transport/cdptransport"
	"github.com/0x30/webview-bridge-sub001/internal/wire"
)

type pageChannel struct {
	targetID string
	tr       *cdptransport.Transport
	disp     *dispatch.Dispatcher
}

// cdpDriver realizes surfaces as Chromium pages and wires a capability
// channel to each one. Storage is shared across pages; navigator modules are
// bound per page so the sender identity is never taken from payloads.
type cdpDriver struct {
	connector      *cdptransport.Connector
	policy         dispatch.Policy
	handlerTimeout time.Duration
	storage        *capability.StorageModule
	host           *pagehost.Host

	mu       sync.Mutex
	channels map[string]*pageChannel
}

func newCDPDriver(connector *cdptransport.Connector, policy dispatch.Policy, handlerTimeout time.Duration) *cdpDriver {
	return &cdpDriver{
		connector:      connector,
		policy:         policy,
		handlerTimeout: handlerTimeout,
		storage:        capability.NewStorageModule(),
		channels:       make(map[string]*pageChannel),
	}
}

func (d *cdpDriver) CreateSurface(ctx context.Context, page wire.PageInfo) error {
	targetID, tr, err := d.connector.OpenPage(ctx, page.URL)
	if err != nil {
		return err
	}
	d.wireChannel(page.ID, targetID, tr)
	return nil
}

func (d *cdpDriver) ReplaceSurface(ctx context.Context, old, new wire.PageInfo) error {
	if err := d.CreateSurface(ctx, new); err != nil {
		return err
	}
	d.closeChannel(old.ID)
	return nil
}

func (d *cdpDriver) DestroySurfaces(_ context.Context, pages []wire.PageInfo) error {
	for _, page := range pages {
		d.closeChannel(page.ID)
	}
	return nil
}

// OpenRoot binds a channel to the initial surface, which the embedder has
// already created.
func (d *cdpDriver) OpenRoot(ctx context.Context, rootURL, rootPageID string) error {
	targetID, tr, err := d.connector.OpenPage(ctx, rootURL)
	if err != nil {
		return fmt.Errorf("open root surface: %w", err)
	}
	d.wireChannel(rootPageID, targetID, tr)
	return nil
}

func (d *cdpDriver) wireChannel(pageID, targetID string, tr *cdptransport.Transport) {
	disp := dispatch.New(d.policy, d.handlerTimeout)
	_ = disp.Register(d.host.Module(pageID))
	_ = disp.Register(capability.DeviceModule{})
	_ = disp.Register(capability.ClipboardModule{})
	_ = disp.Register(d.storage)
	disp.Bind(tr)

	d.mu.Lock()
	d.channels[pageID] = &pageChannel{targetID: targetID, tr: tr, disp: disp}
	d.mu.Unlock()

	// The host calls the driver inside its stack lock; binding re-enters the
	// host, so it must happen off this call. Early directed events are
	// deferred by the host and replayed on bind.
	go d.host.BindPage(pageID, disp)
}

func (d *cdpDriver) closeChannel(pageID string) {
	d.mu.Lock()
	ch, ok := d.channels[pageID]
	delete(d.channels, pageID)
	d.mu.Unlock()
	if ok {
		_ = ch.tr.Close()
	}
	go d.host.UnbindPage(pageID)
}

func (d *cdpDriver) inFlight() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	var total int64
	for _, ch := range d.channels {
		total += ch.disp.InFlight()
	}
	return total
}

func (d *cdpDriver) channelCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.channels)
}
