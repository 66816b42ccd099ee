package cache

import (
	"context"
	"sync"
)

// MemoryCache is a process-local CartCache for development and tests.
type MemoryCache struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{data: make(map[string][]byte)}
}

func (m *MemoryCache) Get(_ context.Context, sessionID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[sessionID]
	if !ok {
		return nil, ErrCacheMiss
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *MemoryCache) Set(_ context.Context, sessionID string, payload []byte) error {
	v := make([]byte, len(payload))
	copy(v, payload)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[sessionID] = v
	return nil
}

func (m *MemoryCache) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, sessionID)
	return nil
}

func (m *MemoryCache) Ping(context.Context) error { return nil }
