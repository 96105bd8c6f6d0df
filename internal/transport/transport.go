// Package transport abstracts the bidirectional frame channel between host
// code and one embedded content instance. Concrete adapters live in
// subpackages; an in-process pair for tests and co-process wiring lives here.
package transport

import "errors"

// ErrClosed is returned by Send after the channel has been destroyed.
var ErrClosed = errors.New("transport: closed")

// Handler receives inbound frames and the close notification. All frames of
// one transport are delivered through a single Handler, preserving the single
// dispatch entry point the correlation engine relies on.
type Handler interface {
	HandleFrame(data []byte)
	HandleClosed()
}

// Transport is a bidirectional frame channel. Attach must be called before
// frames are expected; frames arriving earlier are buffered by the adapter.
type Transport interface {
	Send(data []byte) error
	Attach(h Handler)
	Close() error
}
