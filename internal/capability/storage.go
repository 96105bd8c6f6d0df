package capability

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/0x30/webview-bridge-sub001/internal/dispatch"
	"github.com/0x30/webview-bridge-sub001/internal/wire"
)

// StorageModule is an in-memory key-value store scoped to the host process.
// Persistence across restarts is deliberately out of scope.
type StorageModule struct {
	mu   sync.RWMutex
	data map[string]json.RawMessage
}

// NewStorageModule creates an empty store.
func NewStorageModule() *StorageModule {
	return &StorageModule{data: make(map[string]json.RawMessage)}
}

func (*StorageModule) Namespace() string { return "storage" }

func (m *StorageModule) Methods() map[string]dispatch.Handler {
	return map[string]dispatch.Handler{
		"get":    m.get,
		"set":    m.set,
		"delete": m.del,
		"keys":   m.keys,
	}
}

type storageKey struct {
	Key string `json:"key"`
}

type storageEntry struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

func (m *StorageModule) get(_ context.Context, params json.RawMessage) (json.RawMessage, error) {
	var p storageKey
	if err := json.Unmarshal(params, &p); err != nil || p.Key == "" {
		return nil, wire.NewError(wire.CodeInvalidParams, "get requires a key", err)
	}
	m.mu.RLock()
	value, ok := m.data[p.Key]
	m.mu.RUnlock()
	if !ok {
		return json.Marshal(storageEntry{Key: p.Key, Value: json.RawMessage("null")})
	}
	return json.Marshal(storageEntry{Key: p.Key, Value: value})
}

func (m *StorageModule) set(_ context.Context, params json.RawMessage) (json.RawMessage, error) {
	var p storageEntry
	if err := json.Unmarshal(params, &p); err != nil || p.Key == "" {
		return nil, wire.NewError(wire.CodeInvalidParams, "set requires a key", err)
	}
	m.mu.Lock()
	m.data[p.Key] = p.Value
	m.mu.Unlock()
	return json.Marshal(struct{}{})
}

func (m *StorageModule) del(_ context.Context, params json.RawMessage) (json.RawMessage, error) {
	var p storageKey
	if err := json.Unmarshal(params, &p); err != nil || p.Key == "" {
		return nil, wire.NewError(wire.CodeInvalidParams, "delete requires a key", err)
	}
	m.mu.Lock()
	delete(m.data, p.Key)
	m.mu.Unlock()
	return json.Marshal(struct{}{})
}

func (m *StorageModule) keys(_ context.Context, _ json.RawMessage) (json.RawMessage, error) {
	m.mu.RLock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	m.mu.RUnlock()
	sort.Strings(keys)
	return json.Marshal(struct {
		Keys []string `json:"keys"`
	}{Keys: keys})
}
