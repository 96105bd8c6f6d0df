package transport

import (
	"sync"
	"testing"
)

type recordingHandler struct {
	mu     sync.Mutex
	frames [][]byte
	closed int
}

func (h *recordingHandler) HandleFrame(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frames = append(h.frames, data)
}

func (h *recordingHandler) HandleClosed() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed++
}

func (h *recordingHandler) frameStrings() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.frames))
	for i, f := range h.frames {
		out[i] = string(f)
	}
	return out
}

func (h *recordingHandler) closedCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func TestPairDeliversInOrder(t *testing.T) {
	a, b := Pair()
	h := &recordingHandler{}
	b.Attach(h)

	for _, msg := range []string{"one", "two", "three"} {
		if err := a.Send([]byte(msg)); err != nil {
			t.Fatalf("Send(%q) = %v", msg, err)
		}
	}

	got := h.frameStrings()
	want := []string{"one", "two", "three"}
	if len(got) != len(want) {
		t.Fatalf("frames = %v; want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("frames[%d] = %q; want %q", i, got[i], want[i])
		}
	}
}

func TestPairBuffersUntilAttach(t *testing.T) {
	a, b := Pair()

	if err := a.Send([]byte("early")); err != nil {
		t.Fatalf("Send() = %v", err)
	}

	h := &recordingHandler{}
	b.Attach(h)

	got := h.frameStrings()
	if len(got) != 1 || got[0] != "early" {
		t.Fatalf("frames after Attach = %v; want [early]", got)
	}
}

func TestPairCloseNotifiesBothEndsOnce(t *testing.T) {
	a, b := Pair()
	ha := &recordingHandler{}
	hb := &recordingHandler{}
	a.Attach(ha)
	b.Attach(hb)

	if err := a.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	// Second close is a no-op.
	if err := b.Close(); err != nil {
		t.Fatalf("second Close() = %v", err)
	}

	if ha.closedCount() != 1 {
		t.Fatalf("a closed notifications = %d; want 1", ha.closedCount())
	}
	if hb.closedCount() != 1 {
		t.Fatalf("b closed notifications = %d; want 1", hb.closedCount())
	}

	if err := a.Send([]byte("late")); err != ErrClosed {
		t.Fatalf("Send after Close = %v; want ErrClosed", err)
	}
	if len(hb.frameStrings()) != 0 {
		t.Fatalf("frames after Close = %v; want none", hb.frameStrings())
	}
}
