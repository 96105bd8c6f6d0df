package bridge

import (
	"sync"

	"github.com/0x30/webview-bridge-sub001/internal/wire"
)

// The process-wide handle shared by every capability facade. It is explicit:
// nothing constructs it implicitly, and teardown is a documented operation.
var (
	defaultMu     sync.Mutex
	defaultEngine *Engine
)

// Init installs the process-wide engine. Calling Init while a handle is
// already installed is a caller bug and is rejected.
func Init(e *Engine) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultEngine != nil {
		return wire.NewError(wire.CodeInternalError, "bridge already initialized", nil)
	}
	defaultEngine = e
	return nil
}

// Default returns the process-wide engine, or NOT_READY before Init.
func Default() (*Engine, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultEngine == nil {
		return nil, wire.NewError(wire.CodeNotReady, "bridge not initialized", nil)
	}
	return defaultEngine, nil
}

// Teardown closes and clears the process-wide engine. Safe to call when no
// handle is installed.
func Teardown() {
	defaultMu.Lock()
	e := defaultEngine
	defaultEngine = nil
	defaultMu.Unlock()
	if e != nil {
		_ = e.Close()
	}
}
