package wsrelay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/0x30/webview-bridge-sub001/internal/transport"
)

type collector struct {
	mu     sync.Mutex
	frames []string
	closed chan struct{}
	once   sync.Once
}

func newCollector() *collector {
	return &collector{closed: make(chan struct{})}
}

func (c *collector) HandleFrame(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, string(data))
}

func (c *collector) HandleClosed() {
	c.once.Do(func() { close(c.closed) })
}

func (c *collector) awaitFrames(t *testing.T, n int) []string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		if len(c.frames) >= n {
			out := append([]string(nil), c.frames...)
			c.mu.Unlock()
			return out
		}
		c.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d frames", n)
	return nil
}

// startServer runs a host-side upgrade endpoint and hands accepted
// connections to accept.
func startServer(t *testing.T, accept func(conn *Conn)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrade(w, r)
		if err != nil {
			t.Errorf("Upgrade() = %v", err)
			return
		}
		accept(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestRoundTripBothDirections(t *testing.T) {
	serverSide := make(chan *Conn, 1)
	url := startServer(t, func(conn *Conn) { serverSide <- conn })

	client, err := Dial(context.Background(), url)
	if err != nil {
		t.Fatalf("Dial() = %v", err)
	}
	defer func() { _ = client.Close() }()

	server := <-serverSide
	serverFrames := newCollector()
	server.Attach(serverFrames)
	clientFrames := newCollector()
	client.Attach(clientFrames)

	if err := client.Send([]byte(`{"eventName":"up"}`)); err != nil {
		t.Fatalf("client Send() = %v", err)
	}
	if err := server.Send([]byte(`{"eventName":"down"}`)); err != nil {
		t.Fatalf("server Send() = %v", err)
	}

	if got := serverFrames.awaitFrames(t, 1); got[0] != `{"eventName":"up"}` {
		t.Fatalf("server frame = %s; want up event", got[0])
	}
	if got := clientFrames.awaitFrames(t, 1); got[0] != `{"eventName":"down"}` {
		t.Fatalf("client frame = %s; want down event", got[0])
	}
}

func TestBacklogFlushedOnAttach(t *testing.T) {
	serverSide := make(chan *Conn, 1)
	url := startServer(t, func(conn *Conn) { serverSide <- conn })

	client, err := Dial(context.Background(), url)
	if err != nil {
		t.Fatalf("Dial() = %v", err)
	}
	defer func() { _ = client.Close() }()
	server := <-serverSide

	// Frames arriving before any handler is attached must not be dropped.
	for _, msg := range []string{"one", "two"} {
		if err := client.Send([]byte(msg)); err != nil {
			t.Fatalf("Send(%s) = %v", msg, err)
		}
	}
	// Give the read loop time to buffer both.
	time.Sleep(50 * time.Millisecond)

	frames := newCollector()
	server.Attach(frames)
	got := frames.awaitFrames(t, 2)
	if got[0] != "one" || got[1] != "two" {
		t.Fatalf("frames = %v; want [one two]", got)
	}
}

func TestPeerCloseNotifiesHandler(t *testing.T) {
	serverSide := make(chan *Conn, 1)
	url := startServer(t, func(conn *Conn) { serverSide <- conn })

	client, err := Dial(context.Background(), url)
	if err != nil {
		t.Fatalf("Dial() = %v", err)
	}
	server := <-serverSide

	clientFrames := newCollector()
	client.Attach(clientFrames)

	if err := server.Close(); err != nil {
		t.Fatalf("server Close() = %v", err)
	}

	select {
	case <-clientFrames.closed:
	case <-time.After(5 * time.Second):
		t.Fatal("client never observed the close")
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		if err := client.Send([]byte("late")); err != nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Send kept succeeding after peer close")
		}
		time.Sleep(5 * time.Millisecond)
	}
	_ = client.Close()
	if err := client.Send([]byte("late")); err != transport.ErrClosed {
		t.Fatalf("Send after Close = %v; want ErrClosed", err)
	}
}

func TestAttachAfterCloseSignalsImmediately(t *testing.T) {
	serverSide := make(chan *Conn, 1)
	url := startServer(t, func(conn *Conn) { serverSide <- conn })

	client, err := Dial(context.Background(), url)
	if err != nil {
		t.Fatalf("Dial() = %v", err)
	}
	_ = client.Close()

	frames := newCollector()
	client.Attach(frames)
	select {
	case <-frames.closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Attach on a closed conn never signalled HandleClosed")
	}

	server := <-serverSide
	_ = server.Close()
}
