package transport

import "sync"

// pairEnd is one endpoint of an in-process transport pair. Frames are handed
// to the peer's handler synchronously in send order; frames sent before the
// peer attaches are buffered and flushed on Attach.
type pairEnd struct {
	mu      sync.Mutex
	peer    *pairEnd
	handler Handler
	backlog [][]byte
	closed  bool
}

// Pair returns two linked in-process endpoints. Closing either end closes
// both and notifies both handlers exactly once.
func Pair() (Transport, Transport) {
	a := &pairEnd{}
	b := &pairEnd{}
	a.peer = b
	b.peer = a
	return a, b
}

func (e *pairEnd) Send(data []byte) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.mu.Unlock()
	e.peer.deliver(data)
	return nil
}

func (e *pairEnd) deliver(data []byte) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	if e.handler == nil {
		e.backlog = append(e.backlog, data)
		e.mu.Unlock()
		return
	}
	h := e.handler
	e.mu.Unlock()
	h.HandleFrame(data)
}

func (e *pairEnd) Attach(h Handler) {
	e.mu.Lock()
	e.handler = h
	backlog := e.backlog
	e.backlog = nil
	e.mu.Unlock()
	for _, data := range backlog {
		h.HandleFrame(data)
	}
}

func (e *pairEnd) Close() error {
	e.shutdown()
	e.peer.shutdown()
	return nil
}

func (e *pairEnd) shutdown() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	h := e.handler
	e.mu.Unlock()
	if h != nil {
		h.HandleClosed()
	}
}
