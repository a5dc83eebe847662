// Package coins — memory.go, хранилище кошелька в памяти.
// Используется в тестах и в запуске без БД.
package coins

import (
	"context"
	"sync"
	"time"
)

// MemoryStore — реализация Store в памяти. Потокобезопасна.
type MemoryStore struct {
	mu      sync.Mutex
	balance *Balance
}

// NewMemoryStore создаёт пустое хранилище.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Get(ctx context.Context) (*Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balance == nil {
		return nil, nil
	}
	b := *m.balance
	return &b, nil
}

func (m *MemoryStore) Set(ctx context.Context, b Balance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balance = &b
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balance = nil
	return nil
}

func (m *MemoryStore) Credit(ctx context.Context, amount int64) (Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balance == nil {
		m.balance = &Balance{}
	}
	m.balance.Amount += amount
	m.balance.LastUpdated = time.Now()
	return *m.balance, nil
}

func (m *MemoryStore) Debit(ctx context.Context, amount int64) (Balance, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balance == nil {
		m.balance = &Balance{}
	}
	if m.balance.Amount < amount {
		return *m.balance, false, nil
	}
	m.balance.Amount -= amount
	m.balance.LastUpdated = time.Now()
	return *m.balance, true, nil
}
