package mocks

import (
	"context"
	"sync"

	"github.com/you/walletgate/domain"
)

// MockSecurityRepository is an in-memory domain.SecurityRepository. Mutate
// holds a single mutex so it gives the same per-user exclusion as the row lock.
type MockSecurityRepository struct {
	GetFunc    func(ctx context.Context, userID uint) (*domain.UserSecurity, error)
	MutateFunc func(ctx context.Context, userID uint, fn func(sec *domain.UserSecurity) error) error

	mu      sync.Mutex
	records map[uint]domain.UserSecurity
}

var _ domain.SecurityRepository = (*MockSecurityRepository)(nil)

func NewMockSecurityRepository() *MockSecurityRepository {
	return &MockSecurityRepository{records: make(map[uint]domain.UserSecurity)}
}

// Get returns a copy of the stored record, or an empty one
func (m *MockSecurityRepository) Get(ctx context.Context, userID uint) (*domain.UserSecurity, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, userID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[userID]
	if !ok {
		return &domain.UserSecurity{UserID: userID}, nil
	}
	return &rec, nil
}

// Mutate applies fn to a copy and commits it only when fn succeeds
func (m *MockSecurityRepository) Mutate(ctx context.Context, userID uint, fn func(sec *domain.UserSecurity) error) error {
	if m.MutateFunc != nil {
		return m.MutateFunc(ctx, userID, fn)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[userID]
	if !ok {
		rec = domain.UserSecurity{UserID: userID}
	}
	if err := fn(&rec); err != nil {
		return err
	}
	m.records[userID] = rec
	return nil
}

// Put seeds a record (test helper)
func (m *MockSecurityRepository) Put(rec domain.UserSecurity) {
	m.mu.Lock()
	m.records[rec.UserID] = rec
	m.mu.Unlock()
}
