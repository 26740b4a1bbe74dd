package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/you/walletgate/domain"
)

// MockLocker implements domain.Locker with in-process mutexes. Acquire
// blocks until the key is free or ctx is done.
type MockLocker struct {
	AcquireFunc func(ctx context.Context, key string, ttl time.Duration) (string, error)

	mu    sync.Mutex
	held  map[string]chan struct{}
	seq   int
	Calls []string
}

var _ domain.Locker = (*MockLocker)(nil)

func NewMockLocker() *MockLocker {
	return &MockLocker{held: make(map[string]chan struct{})}
}

func (m *MockLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if m.AcquireFunc != nil {
		return m.AcquireFunc(ctx, key, ttl)
	}
	for {
		m.mu.Lock()
		wait, busy := m.held[key]
		if !busy {
			m.held[key] = make(chan struct{})
			m.seq++
			m.Calls = append(m.Calls, key)
			token := fmt.Sprintf("%s#%d", key, m.seq)
			m.mu.Unlock()
			return token, nil
		}
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-wait:
		}
	}
}

func (m *MockLocker) Release(ctx context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.held[key]; ok {
		close(ch)
		delete(m.held, key)
	}
	return nil
}
