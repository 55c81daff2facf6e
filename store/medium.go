package store

import (
	"bytes"
	"errors"
	"sort"
	"sync"
)

// ErrNotFound is returned by a Medium when a key has no stored unit
var ErrNotFound = errors.New("snapshot record not found")

// Medium stores one opaque unit per key. Write must be all-or-nothing: a
// reader sees either the previous unit or the new one, never a prefix.
type Medium interface {
	Keys() ([]string, error)
	Read(key string) ([]byte, error)
	Write(key string, data []byte) error
	Remove(key string) error
}

// MemMedium keeps records in memory
type MemMedium struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemMedium returns an empty in-memory medium
func NewMemMedium() *MemMedium {
	return &MemMedium{data: make(map[string][]byte)}
}

func (m *MemMedium) Keys() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemMedium) Read(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return bytes.Clone(d), nil
}

func (m *MemMedium) Write(key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = bytes.Clone(data)
	return nil
}

func (m *MemMedium) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.data[key]; !ok {
		return ErrNotFound
	}
	delete(m.data, key)
	return nil
}
