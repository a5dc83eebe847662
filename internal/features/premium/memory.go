// Package premium — memory.go, хранилище разблокировок в памяти (тесты).
package premium

import (
	"context"
	"sync"
)

// MemoryStore — реализация Store в памяти.
type MemoryStore struct {
	mu   sync.Mutex
	data *Entitlements
}

// NewMemoryStore создаёт пустое хранилище.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Get(ctx context.Context) (*Entitlements, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, nil
	}
	cp := *m.data
	cp.UnlockedFeatures = append([]string(nil), m.data.UnlockedFeatures...)
	return &cp, nil
}

func (m *MemoryStore) Set(ctx context.Context, e Entitlements) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := e
	cp.UnlockedFeatures = append([]string(nil), e.UnlockedFeatures...)
	m.data = &cp
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = nil
	return nil
}
