package clientstate

import (
	"context"
	"sync"
)

// MemoryBackend keeps values in process memory. A positive quota caps the
// total stored bytes, like a browser's storage limit.
type MemoryBackend struct {
	mu     sync.RWMutex
	values map[string][]byte
	quota  int
	used   int
}

// NewMemoryBackend creates an unbounded in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{values: make(map[string][]byte)}
}

// NewMemoryBackendWithQuota creates a backend that rejects writes past quota bytes.
func NewMemoryBackendWithQuota(quota int) *MemoryBackend {
	m := NewMemoryBackend()
	m.quota = quota
	return m
}

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *MemoryBackend) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	used := m.used - len(m.values[key]) + len(value)
	if m.quota > 0 && used > m.quota {
		return ErrQuotaExceeded
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	m.values[key] = stored
	m.used = used
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.used -= len(m.values[key])
	delete(m.values, key)
	return nil
}

// Raw writes value without quota checks. Used to plant legacy or corrupt data.
func (m *MemoryBackend) Raw(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.used += len(value) - len(m.values[key])
	m.values[key] = value
}
