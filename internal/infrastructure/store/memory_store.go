package store

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory DocStore used for tests and local runs.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string]any // collection -> id -> document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]map[string]any),
	}
}

// Set stores a document
func (ms *MemoryStore) Set(_ context.Context, collection, id string, data any) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.data[collection] == nil {
		ms.data[collection] = make(map[string]any)
	}
	ms.data[collection][id] = data
	return nil
}

// Get retrieves a document by id
func (ms *MemoryStore) Get(_ context.Context, collection, id string) (any, bool, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	if ms.data[collection] == nil {
		return nil, false, nil
	}
	data, ok := ms.data[collection][id]
	return data, ok, nil
}

// GetAll retrieves all documents in a collection
func (ms *MemoryStore) GetAll(_ context.Context, collection string) ([]any, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	if ms.data[collection] == nil {
		return nil, nil
	}

	var items []any
	for _, item := range ms.data[collection] {
		items = append(items, item)
	}
	return items, nil
}

// Delete removes a document
func (ms *MemoryStore) Delete(_ context.Context, collection, id string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.data[collection] != nil {
		delete(ms.data[collection], id)
	}
	return nil
}

// Update modifies a document using an update function
func (ms *MemoryStore) Update(_ context.Context, collection, id string, updateFn func(current any) any) (bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.data[collection] == nil {
		return false, nil
	}
	current, ok := ms.data[collection][id]
	if !ok {
		return false, nil
	}
	ms.data[collection][id] = updateFn(current)
	return true, nil
}
