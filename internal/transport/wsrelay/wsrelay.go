// Package wsrelay carries bridge frames over a WebSocket, for embedders that
// run the content side in a separate process. The host accepts connections
// via Upgrade; the content side dials with Dial.
package wsrelay

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/0x30/webview-bridge-sub001/internal/transport"
)

type side int

const (
	sideClient side = iota
	sideServer
)

// Conn is a WebSocket-backed transport endpoint.
type Conn struct {
	side side

	mu      sync.Mutex
	conn    net.Conn
	handler transport.Handler
	backlog [][]byte
	closed  bool
}

// Dial connects the content side to a host bridge endpoint.
func Dial(ctx context.Context, url string) (*Conn, error) {
	conn, _, _, err := ws.Dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("wsrelay: dial %s: %w", url, err)
	}
	c := &Conn{side: sideClient, conn: conn}
	go c.readLoop()
	return c, nil
}

// Upgrade accepts one inbound bridge connection on the host side.
func Upgrade(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		return nil, fmt.Errorf("wsrelay: upgrade: %w", err)
	}
	c := &Conn{side: sideServer, conn: conn}
	go c.readLoop()
	return c, nil
}

func (c *Conn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return transport.ErrClosed
	}
	var err error
	if c.side == sideClient {
		err = wsutil.WriteClientText(c.conn, data)
	} else {
		err = wsutil.WriteServerText(c.conn, data)
	}
	if err != nil {
		return fmt.Errorf("wsrelay: send: %w", err)
	}
	return nil
}

func (c *Conn) Attach(h transport.Handler) {
	c.mu.Lock()
	c.handler = h
	backlog := c.backlog
	c.backlog = nil
	closed := c.closed
	c.mu.Unlock()
	for _, data := range backlog {
		h.HandleFrame(data)
	}
	if closed {
		h.HandleClosed()
	}
}

func (c *Conn) Close() error {
	c.teardown()
	return nil
}

// readLoop processes incoming frames until the socket dies, then notifies
// the handler so pending requests can be bulk-failed.
func (c *Conn) readLoop() {
	for {
		c.mu.Lock()
		conn := c.conn
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}

		var data []byte
		var err error
		if c.side == sideClient {
			data, err = wsutil.ReadServerText(conn)
		} else {
			data, err = wsutil.ReadClientText(conn)
		}
		if err != nil {
			slog.Debug("wsrelay read loop exit", "error", err)
			c.teardown()
			return
		}
		c.dispatch(data)
	}
}

func (c *Conn) dispatch(data []byte) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.handler == nil {
		c.backlog = append(c.backlog, data)
		c.mu.Unlock()
		return
	}
	h := c.handler
	c.mu.Unlock()
	h.HandleFrame(data)
}

func (c *Conn) teardown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	h := c.handler
	conn := c.conn
	c.mu.Unlock()

	_ = conn.Close()
	if h != nil {
		h.HandleClosed()
	}
}
