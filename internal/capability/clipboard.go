package capability

import (
	"context"
	"encoding/json"

	"github.com/atotto/clipboard"

	"github.com/0x30/webview-bridge-sub001/internal/dispatch"
	"github.com/0x30/webview-bridge-sub001/internal/wire"
)

// ClipboardModule passes text through the system clipboard.
type ClipboardModule struct{}

func (ClipboardModule) Namespace() string { return "clipboard" }

func (m ClipboardModule) Methods() map[string]dispatch.Handler {
	return map[string]dispatch.Handler{
		"getText": m.getText,
		"setText": m.setText,
	}
}

type clipboardText struct {
	Text string `json:"text"`
}

func (ClipboardModule) getText(_ context.Context, _ json.RawMessage) (json.RawMessage, error) {
	if clipboard.Unsupported {
		return nil, wire.NewError(wire.CodeNotSupported, "no clipboard on this platform", nil)
	}
	text, err := clipboard.ReadAll()
	if err != nil {
		return nil, wire.NewError(wire.CodeInternalError, "clipboard read failed", err)
	}
	return json.Marshal(clipboardText{Text: text})
}

func (ClipboardModule) setText(_ context.Context, params json.RawMessage) (json.RawMessage, error) {
	if clipboard.Unsupported {
		return nil, wire.NewError(wire.CodeNotSupported, "no clipboard on this platform", nil)
	}
	var p clipboardText
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, wire.NewError(wire.CodeInvalidParams, "bad setText params", err)
	}
	if err := clipboard.WriteAll(p.Text); err != nil {
		return nil, wire.NewError(wire.CodeInternalError, "clipboard write failed", err)
	}
	return json.Marshal(struct{}{})
}
