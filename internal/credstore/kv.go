// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package credstore

import (
	"sync"
)

// KV is a durable key/value backend.
// SetAll and DeleteAll must apply all keys or none.
type KV interface {
	// Get returns the value for key and whether it was present.
	Get(key string) (string, bool, error)

	// SetAll writes every entry atomically.
	SetAll(entries map[string]string) error

	// DeleteAll removes every key atomically. Missing keys are not an error.
	DeleteAll(keys ...string) error

	// Close releases the backend.
	Close() error
}

// MemoryKV is an in-process KV. The zero value is ready to use.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryKV creates an empty in-memory backend.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

// Get implements KV.
func (m *MemoryKV) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

// SetAll implements KV.
func (m *MemoryKV) SetAll(entries map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = make(map[string]string, len(entries))
	}
	for k, v := range entries {
		m.data[k] = v
	}
	return nil
}

// DeleteAll implements KV.
func (m *MemoryKV) DeleteAll(keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

// Len returns the number of stored keys.
func (m *MemoryKV) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Close implements KV.
func (m *MemoryKV) Close() error { return nil }
