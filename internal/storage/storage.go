// Package storage keeps the console's client-local key/value state, the
// counterpart of a browser's sessionStorage.
package storage

import (
	"sync"
)

type Storage interface {
	GetItem(key string) (string, bool, error)
	SetItem(key, value string) error
	RemoveItem(key string) error
	Clear() error
}

type Memory struct {
	items map[string]string
	mtx   sync.RWMutex
}

func NewMemory() *Memory {
	return &Memory{items: make(map[string]string)}
}

func (m *Memory) GetItem(key string) (string, bool, error) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	v, ok := m.items[key]
	return v, ok, nil
}

func (m *Memory) SetItem(key, value string) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	m.items[key] = value
	return nil
}

func (m *Memory) RemoveItem(key string) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	delete(m.items, key)
	return nil
}

func (m *Memory) Clear() error {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	m.items = make(map[string]string)
	return nil
}

func (m *Memory) Len() int {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	return len(m.items)
}
