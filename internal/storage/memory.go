package storage

import (
	"context"
	"sync"
)

type MemoryAdapter struct {
	mu     sync.RWMutex
	values map[string][]byte
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{values: make(map[string][]byte)}
}

func (a *MemoryAdapter) Save(_ context.Context, key string, value []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.values[key] = append([]byte(nil), value...)
	return nil
}

func (a *MemoryAdapter) Load(_ context.Context, key string) ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (a *MemoryAdapter) Close() error { return nil }
