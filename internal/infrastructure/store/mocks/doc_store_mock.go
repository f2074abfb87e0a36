package mocks

import (
	"context"
	"sync"
)

// MockDocStore is a mock implementation of store.DocStore for testing.
// Besides acting as an in-memory store it records calls and lets tests
// inject failures per method.
type MockDocStore struct {
	mu   sync.RWMutex
	data map[string]map[string]any // collection -> id -> document

	// Injectable errors. When non-nil the corresponding method fails.
	SetErr    error
	GetErr    error
	GetAllErr error
	DeleteErr error
	UpdateErr error

	// FailSetAfter makes Set fail with FailSetErr once N successful Set
	// calls have been recorded (0 means never). Used for partial fan-out
	// tests.
	FailSetAfter int
	FailSetErr   error

	// For tracking calls in tests
	SetCalls    []SetCall
	GetCalls    []GetCall
	DeleteCalls []DeleteCall
	UpdateCalls []UpdateCall
}

// SetCall records parameters passed to Set
type SetCall struct {
	Collection string
	ID         string
	Data       any
}

// GetCall records parameters passed to Get
type GetCall struct {
	Collection string
	ID         string
}

// DeleteCall records parameters passed to Delete
type DeleteCall struct {
	Collection string
	ID         string
}

// UpdateCall records parameters passed to Update
type UpdateCall struct {
	Collection string
	ID         string
}

// NewMockDocStore creates a new MockDocStore
func NewMockDocStore() *MockDocStore {
	return &MockDocStore{
		data:        make(map[string]map[string]any),
		SetCalls:    make([]SetCall, 0),
		GetCalls:    make([]GetCall, 0),
		DeleteCalls: make([]DeleteCall, 0),
		UpdateCalls: make([]UpdateCall, 0),
	}
}

// Set stores a document
func (m *MockDocStore) Set(_ context.Context, collection, id string, data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SetErr != nil {
		return m.SetErr
	}
	if m.FailSetAfter > 0 && len(m.SetCalls) >= m.FailSetAfter {
		return m.FailSetErr
	}

	m.SetCalls = append(m.SetCalls, SetCall{
		Collection: collection,
		ID:         id,
		Data:       data,
	})

	if m.data[collection] == nil {
		m.data[collection] = make(map[string]any)
	}
	m.data[collection][id] = data
	return nil
}

// Get retrieves a document by id
func (m *MockDocStore) Get(_ context.Context, collection, id string) (any, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.GetErr != nil {
		return nil, false, m.GetErr
	}

	m.GetCalls = append(m.GetCalls, GetCall{
		Collection: collection,
		ID:         id,
	})

	if m.data[collection] == nil {
		return nil, false, nil
	}
	data, ok := m.data[collection][id]
	return data, ok, nil
}

// GetAll retrieves all documents in a collection
func (m *MockDocStore) GetAll(_ context.Context, collection string) ([]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.GetAllErr != nil {
		return nil, m.GetAllErr
	}

	if m.data[collection] == nil {
		return []any{}, nil
	}

	items := make([]any, 0, len(m.data[collection]))
	for _, item := range m.data[collection] {
		items = append(items, item)
	}
	return items, nil
}

// Delete removes a document
func (m *MockDocStore) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.DeleteErr != nil {
		return m.DeleteErr
	}

	m.DeleteCalls = append(m.DeleteCalls, DeleteCall{
		Collection: collection,
		ID:         id,
	})

	if m.data[collection] != nil {
		delete(m.data[collection], id)
	}
	return nil
}

// Update modifies a document using an update function
func (m *MockDocStore) Update(_ context.Context, collection, id string, updateFn func(current any) any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.UpdateErr != nil {
		return false, m.UpdateErr
	}

	m.UpdateCalls = append(m.UpdateCalls, UpdateCall{
		Collection: collection,
		ID:         id,
	})

	if m.data[collection] == nil {
		return false, nil
	}
	current, ok := m.data[collection][id]
	if !ok {
		return false, nil
	}
	m.data[collection][id] = updateFn(current)
	return true, nil
}

// Reset clears all data and recorded calls
func (m *MockDocStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string]map[string]any)
	m.SetErr, m.GetErr, m.GetAllErr, m.DeleteErr, m.UpdateErr = nil, nil, nil, nil, nil
	m.FailSetAfter = 0
	m.FailSetErr = nil
	m.SetCalls = make([]SetCall, 0)
	m.GetCalls = make([]GetCall, 0)
	m.DeleteCalls = make([]DeleteCall, 0)
	m.UpdateCalls = make([]UpdateCall, 0)
}

// SetData sets a document directly for testing (without recording the call)
func (m *MockDocStore) SetData(collection, id string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[collection] == nil {
		m.data[collection] = make(map[string]any)
	}
	m.data[collection][id] = data
}

// GetData gets a document directly for testing (without recording the call)
func (m *MockDocStore) GetData(collection, id string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.data[collection] == nil {
		return nil, false
	}
	data, ok := m.data[collection][id]
	return data, ok
}
