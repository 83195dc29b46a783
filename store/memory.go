package store

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store for testing and local usage.
type MemoryStore struct {
	mu    sync.RWMutex
	forms map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{forms: map[string][]byte{}}
}

func (m *MemoryStore) Save(ctx context.Context, formID string, values map[string]any) error {
	data, err := Encode(values)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.forms[formID] = data
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Load(ctx context.Context, formID string) (map[string]any, error) {
	m.mu.RLock()
	data, ok := m.forms[formID]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return Decode(data)
}

func (m *MemoryStore) Clear(ctx context.Context, formID string) error {
	m.mu.Lock()
	delete(m.forms, formID)
	m.mu.Unlock()
	return nil
}

var _ Store = (*MemoryStore)(nil)
