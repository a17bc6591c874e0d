// Package store persists the connection and format catalogs under namespaced
// keys. Values are JSON documents regardless of backend.
package store

import (
	"encoding/json"
	"fmt"
	"sync"
)

const (
	KeyConnections = "logscope.remote-connections"
	KeyFormats     = "logscope.custom-formats"
)

// Store loads and saves JSON-encodable values by key. Load reports false when
// the key has never been written.
type Store interface {
	Load(key string, v any) (bool, error)
	Save(key string, v any) error
	Close() error
}

// Open returns the backend named by kind ("file" or "sqlite") rooted at path.
func Open(kind, path string) (Store, error) {
	switch kind {
	case "", "file":
		return NewFileStore(path)
	case "sqlite":
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", kind)
	}
}

// MemoryStore keeps values in memory. Used by tests and when no path is set.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string][]byte{}}
}

func (m *MemoryStore) Load(key string, v any) (bool, error) {
	m.mu.Lock()
	b, ok := m.data[key]
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(b, v); err != nil {
		return true, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (m *MemoryStore) Save(key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	m.mu.Lock()
	m.data[key] = b
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Close() error { return nil }
