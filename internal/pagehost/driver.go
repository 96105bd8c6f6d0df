package pagehost

import (
	"context"

	"github.com/0x30/webview-bridge-sub001/internal/wire"
)

// ExternalDriver is a SurfaceDriver for embedders that create and destroy
// surfaces themselves and only need the stack bookkeeping and messaging.
// Every operation succeeds; lifecycle truth still flows through the Host.
type ExternalDriver struct{}

func (ExternalDriver) CreateSurface(context.Context, wire.PageInfo) error { return nil }

func (ExternalDriver) ReplaceSurface(context.Context, wire.PageInfo, wire.PageInfo) error {
	return nil
}

func (ExternalDriver) DestroySurfaces(context.Context, []wire.PageInfo) error { return nil }
