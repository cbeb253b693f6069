package realtime

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/mmynk/groupchat/internal/storage"
)

// Ensure Memory implements storage.TreeStore
var _ storage.TreeStore = (*Memory)(nil)

// Memory is a volatile storage.TreeStore, used for tests and offline demos.
type Memory struct {
	mu    sync.RWMutex
	nodes map[string]map[string]storage.Node
}

// NewMemory creates an empty in-memory tree.
func NewMemory() *Memory {
	return &Memory{nodes: make(map[string]map[string]storage.Node)}
}

// ListNodes returns the nodes of a collection ordered by key.
func (m *Memory) ListNodes(_ context.Context, collection string) ([]storage.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	nodes := make([]storage.Node, 0, len(m.nodes[collection]))
	for _, n := range m.nodes[collection] {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Key < nodes[j].Key })
	return nodes, nil
}

// PutNode replaces a node's value.
func (m *Memory) PutNode(_ context.Context, collection, key string, value json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.put(collection, key, value)
	return nil
}

// MergeNode merges fields into a node's object value.
func (m *Memory) MergeNode(_ context.Context, collection, key string, fields map[string]json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	merged, err := storage.MergeFields(m.nodes[collection][key].Value, fields)
	if err != nil {
		return err
	}
	m.put(collection, key, merged)
	return nil
}

func (m *Memory) put(collection, key string, value json.RawMessage) {
	c, ok := m.nodes[collection]
	if !ok {
		c = make(map[string]storage.Node)
		m.nodes[collection] = c
	}
	c[key] = storage.Node{
		Key:       key,
		Value:     append(json.RawMessage(nil), value...),
		UpdatedAt: time.Now().Unix(),
	}
}
