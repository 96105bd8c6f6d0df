package capability

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/0x30/webview-bridge-sub001/internal/wire"
)

func call(t *testing.T, m *StorageModule, method string, params string) json.RawMessage {
	t.Helper()
	h, ok := m.Methods()[method]
	if !ok {
		t.Fatalf("no handler for %q", method)
	}
	data, err := h(context.Background(), json.RawMessage(params))
	if err != nil {
		t.Fatalf("%s(%s) = %v", method, params, err)
	}
	return data
}

func TestStorageSetGetDelete(t *testing.T) {
	m := NewStorageModule()

	call(t, m, "set", `{"key":"theme","value":{"dark":true}}`)

	var entry struct {
		Key   string          `json:"key"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(call(t, m, "get", `{"key":"theme"}`), &entry); err != nil {
		t.Fatalf("json.Unmarshal() = %v", err)
	}
	if string(entry.Value) != `{"dark":true}` {
		t.Fatalf("Value = %s; want {\"dark\":true}", entry.Value)
	}

	call(t, m, "delete", `{"key":"theme"}`)
	if err := json.Unmarshal(call(t, m, "get", `{"key":"theme"}`), &entry); err != nil {
		t.Fatalf("json.Unmarshal() = %v", err)
	}
	if string(entry.Value) != `null` {
		t.Fatalf("Value after delete = %s; want null", entry.Value)
	}
}

func TestStorageKeysSorted(t *testing.T) {
	m := NewStorageModule()
	for _, k := range []string{"zeta", "alpha", "mid"} {
		call(t, m, "set", `{"key":"`+k+`","value":1}`)
	}

	var out struct {
		Keys []string `json:"keys"`
	}
	if err := json.Unmarshal(call(t, m, "keys", ``), &out); err != nil {
		t.Fatalf("json.Unmarshal() = %v", err)
	}
	want := []string{"alpha", "mid", "zeta"}
	if len(out.Keys) != len(want) {
		t.Fatalf("Keys = %v; want %v", out.Keys, want)
	}
	for i := range want {
		if out.Keys[i] != want[i] {
			t.Fatalf("Keys[%d] = %q; want %q", i, out.Keys[i], want[i])
		}
	}
}

func TestStorageRejectsMissingKey(t *testing.T) {
	m := NewStorageModule()
	for _, method := range []string{"get", "set", "delete"} {
		h := m.Methods()[method]
		_, err := h(context.Background(), json.RawMessage(`{}`))
		coded, ok := wire.AsCoded(err)
		if !ok || coded.Code != wire.CodeInvalidParams {
			t.Fatalf("%s({}) = %v; want INVALID_PARAMS", method, err)
		}
	}
}
