package store

import (
	"context"
	"sync"
	"sync/atomic"
)

var _ SequenceStore = (*MemoryStore)(nil)

// MemoryStore 内存序号存储，进程退出后状态丢失
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]State
	closed atomic.Bool
}

// NewMemory 创建内存存储
func NewMemory() *MemoryStore {
	return &MemoryStore{states: make(map[string]State)}
}

// Load 实现 SequenceStore
func (m *MemoryStore) Load(ctx context.Context, domain string) (State, bool, error) {
	if m.closed.Load() {
		return State{}, false, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return State{}, false, err
	}
	key, err := domainKey(domain)
	if err != nil {
		return State{}, false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[key]
	return s, ok, nil
}

// Save 实现 SequenceStore
func (m *MemoryStore) Save(ctx context.Context, domain string, state State) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	key, err := domainKey(domain)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[key] = state
	return nil
}

// Close 实现 SequenceStore
func (m *MemoryStore) Close() error {
	m.closed.Store(true)
	return nil
}
