package pagehost

import (
	"context"
	"encoding/json"

	"github.com/0x30/webview-bridge-sub001/internal/dispatch"
	"github.com/0x30/webview-bridge-sub001/internal/wire"
)

// Namespace is the capability namespace the navigator module registers.
const Namespace = "navigator"

type pushParams struct {
	URL   string          `json:"url"`
	Title string          `json:"title,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type popParams struct {
	Result json.RawMessage `json:"result,omitempty"`
	// Delta is a pointer so an omitted field defaults to 1 while an explicit
	// zero or negative value is rejected.
	Delta *int `json:"delta,omitempty"`
}

type postMessageParams struct {
	TargetPageID string          `json:"targetPageId,omitempty"`
	Message      json.RawMessage `json:"message"`
}

// navigatorModule exposes the host stack to one page's channel. The sender
// identity is bound at construction instead of trusted from the payload.
type navigatorModule struct {
	host   *Host
	selfID string
}

// Module returns the navigator capability module for the page with selfID.
func (h *Host) Module(selfID string) dispatch.Module {
	return &navigatorModule{host: h, selfID: selfID}
}

func (m *navigatorModule) Namespace() string { return Namespace }

func (m *navigatorModule) Methods() map[string]dispatch.Handler {
	return map[string]dispatch.Handler{
		"push":        m.push,
		"pop":         m.pop,
		"replace":     m.replace,
		"popToRoot":   m.popToRoot,
		"postMessage": m.postMessage,
		"getPages":    m.getPages,
	}
}

func (m *navigatorModule) push(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	var p pushParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, wire.NewError(wire.CodeInvalidParams, "bad push params", err)
	}
	res, err := m.host.Push(ctx, p.URL, p.Title, p.Data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(res)
}

func (m *navigatorModule) pop(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	var p popParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, wire.NewError(wire.CodeInvalidParams, "bad pop params", err)
		}
	}
	delta := 1
	if p.Delta != nil {
		delta = *p.Delta
	}
	res, err := m.host.Pop(ctx, p.Result, delta)
	if err != nil {
		return nil, err
	}
	return json.Marshal(res)
}

func (m *navigatorModule) replace(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	var p pushParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, wire.NewError(wire.CodeInvalidParams, "bad replace params", err)
	}
	res, err := m.host.Replace(ctx, p.URL, p.Title, p.Data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(res)
}

func (m *navigatorModule) popToRoot(ctx context.Context, _ json.RawMessage) (json.RawMessage, error) {
	res, err := m.host.PopToRoot(ctx)
	if err != nil {
		return nil, err
	}
	return json.Marshal(res)
}

func (m *navigatorModule) postMessage(_ context.Context, params json.RawMessage) (json.RawMessage, error) {
	var p postMessageParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, wire.NewError(wire.CodeInvalidParams, "bad postMessage params", err)
	}
	if err := m.host.PostMessage(m.selfID, p.TargetPageID, p.Message); err != nil {
		return nil, err
	}
	return json.Marshal(struct{}{})
}

func (m *navigatorModule) getPages(_ context.Context, _ json.RawMessage) (json.RawMessage, error) {
	stack := m.host.Pages()
	return json.Marshal(wire.StackResult{Page: stack[len(stack)-1], Stack: stack})
}
