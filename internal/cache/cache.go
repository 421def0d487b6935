// Package cache provides the in-memory snapshot store injected into the
// session and overlay synchronizers. The synchronizers depend only on the
// Get/Set/Invalidate contract, so tests can substitute their own stores and
// multiple independent sessions can be reconciled in isolation.
package cache

import "sync"

// Memory is a mutex-guarded map keyed by resource id.
type Memory[V any] struct {
	mu      sync.RWMutex
	entries map[string]V
}

// NewMemory creates an empty Memory store.
func NewMemory[V any]() *Memory[V] {
	return &Memory[V]{entries: make(map[string]V)}
}

// Get returns the entry for id and whether it exists.
func (m *Memory[V]) Get(id string) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[id]
	return v, ok
}

// Set replaces the entry for id.
func (m *Memory[V]) Set(id string, v V) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[id] = v
}

// Invalidate removes the entry for id, if present.
func (m *Memory[V]) Invalidate(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
}

// Len returns the number of entries.
func (m *Memory[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
