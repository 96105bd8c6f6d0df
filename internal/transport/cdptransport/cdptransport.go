// Package cdptransport binds the bridge to real Chromium pages over CDP.
// Outbound frames are injected by evaluating the page's dispatch function;
// inbound frames arrive through a Runtime binding the page script calls.
package cdptransport

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/0x30/webview-bridge-sub001/internal/transport"
)

// bindingName is the function the page script calls to reach the host;
// dispatchExpr is the page-side entry point for host-originated frames.
const (
	bindingName  = "__webviewBridgeSend"
	dispatchExpr = "window.__webviewBridgeDispatch"
)

// Connector owns the browser-level CDP connection and opens page transports.
type Connector struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

// Connect dials the browser CDP endpoint and verifies it is reachable.
func Connect(ctx context.Context, cdpURL string) (*Connector, error) {
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.Background(), cdpURL)

	tempCtx, tempCancel := chromedp.NewContext(allocCtx)
	defer tempCancel()
	if err := chromedp.Run(tempCtx); err != nil {
		allocCancel()
		return nil, fmt.Errorf("cdptransport: connect %s: %w", cdpURL, err)
	}

	slog.Info("cdptransport connected", "cdp_url", cdpURL)
	return &Connector{allocCtx: allocCtx, allocCancel: allocCancel}, nil
}

// Close tears down the browser connection and every page transport.
func (cn *Connector) Close() {
	if cn.allocCancel != nil {
		cn.allocCancel()
	}
}

// OpenPage creates a new browser page at url and returns its target id and
// bridge transport. The page script talks to the host by calling the
// registered binding with one serialized frame per call.
func (cn *Connector) OpenPage(ctx context.Context, url string) (string, *Transport, error) {
	tabCtx, tabCancel := chromedp.NewContext(cn.allocCtx)

	t := &Transport{tabCtx: tabCtx, cancel: tabCancel}
	chromedp.ListenTarget(tabCtx, func(ev any) {
		if bc, ok := ev.(*runtime.EventBindingCalled); ok && bc.Name == bindingName {
			t.dispatch([]byte(bc.Payload))
		}
	})

	if err := chromedp.Run(tabCtx,
		runtime.Enable(),
		runtime.AddBinding(bindingName),
		chromedp.Navigate(url),
	); err != nil {
		tabCancel()
		return "", nil, fmt.Errorf("cdptransport: open page %s: %w", url, err)
	}

	c := chromedp.FromContext(tabCtx)
	targetID := string(c.Target.TargetID)

	// Tear the transport down when the tab context dies for any reason.
	go func() {
		<-tabCtx.Done()
		t.teardown()
	}()

	slog.Info("cdptransport page opened", "target_id", targetID, "url", url)
	return targetID, t, nil
}

// Transport carries bridge frames for one page.
type Transport struct {
	tabCtx context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	handler transport.Handler
	backlog [][]byte
	closed  bool
}

func (t *Transport) Send(data []byte) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return transport.ErrClosed
	}

	expr := dispatchExpr + "(" + strconv.Quote(string(data)) + ")"
	if err := chromedp.Run(t.tabCtx, chromedp.Evaluate(expr, nil)); err != nil {
		return fmt.Errorf("cdptransport: send: %w", err)
	}
	return nil
}

func (t *Transport) Attach(h transport.Handler) {
	t.mu.Lock()
	t.handler = h
	backlog := t.backlog
	t.backlog = nil
	closed := t.closed
	t.mu.Unlock()
	for _, data := range backlog {
		h.HandleFrame(data)
	}
	if closed {
		h.HandleClosed()
	}
}

func (t *Transport) Close() error {
	t.cancel()
	t.teardown()
	return nil
}

func (t *Transport) dispatch(data []byte) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	if t.handler == nil {
		t.backlog = append(t.backlog, data)
		t.mu.Unlock()
		return
	}
	h := t.handler
	t.mu.Unlock()
	h.HandleFrame(data)
}

func (t *Transport) teardown() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	h := t.handler
	t.mu.Unlock()
	if h != nil {
		h.HandleClosed()
	}
}
