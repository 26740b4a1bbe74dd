package mocks

import (
	"context"
	"sync"

	"github.com/you/walletgate/domain"
)

// MockUserRepository is an in-memory domain.UserRepository. The Func fields
// override the store when set.
type MockUserRepository struct {
	FindByIDFunc    func(ctx context.Context, id uint) (*domain.User, error)
	FindByEmailFunc func(ctx context.Context, email string) (*domain.User, error)
	FindByPhoneFunc func(ctx context.Context, phone string) (*domain.User, error)

	mu     sync.Mutex
	users  map[uint]domain.User
	nextID uint
}

var _ domain.UserRepository = (*MockUserRepository)(nil)

// NewMockUserRepository creates a repository holding users
func NewMockUserRepository(users ...domain.User) *MockUserRepository {
	m := &MockUserRepository{users: make(map[uint]domain.User)}
	for _, u := range users {
		m.users[u.ID] = u
		m.nextID = max(m.nextID, u.ID)
	}
	return m
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user.ID == 0 {
		m.nextID++
		user.ID = m.nextID
	}
	m.users[user.ID] = *user
	return nil
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uint) (*domain.User, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	return m.find(func(u domain.User) bool { return u.ID == id })
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	if m.FindByEmailFunc != nil {
		return m.FindByEmailFunc(ctx, email)
	}
	return m.find(func(u domain.User) bool { return email != "" && u.Email == email })
}

func (m *MockUserRepository) FindByPhone(ctx context.Context, phone string) (*domain.User, error) {
	if m.FindByPhoneFunc != nil {
		return m.FindByPhoneFunc(ctx, phone)
	}
	return m.find(func(u domain.User) bool { return phone != "" && u.Phone == phone })
}

func (m *MockUserRepository) Update(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return domain.ErrUserNotFound
	}
	m.users[user.ID] = *user
	return nil
}

func (m *MockUserRepository) find(match func(domain.User) bool) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			found := u
			return &found, nil
		}
	}
	return nil, domain.ErrUserNotFound
}
