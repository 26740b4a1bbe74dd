package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/you/walletgate/domain"
)

type policyKey struct {
	t domain.OTPType
	c domain.OTPChannel
}

// MockOTPPolicyRepository is an in-memory domain.OTPPolicyRepository
type MockOTPPolicyRepository struct {
	GetFunc        func(ctx context.Context, otpType domain.OTPType, channel domain.OTPChannel) (*domain.OTPPolicy, error)
	EnabledForFunc func(ctx context.Context, otpType domain.OTPType) ([]domain.OTPPolicy, error)

	mu       sync.Mutex
	policies map[policyKey]domain.OTPPolicy
}

var _ domain.OTPPolicyRepository = (*MockOTPPolicyRepository)(nil)

// NewMockOTPPolicyRepository creates a repository seeded with policies
func NewMockOTPPolicyRepository(seed ...domain.OTPPolicy) *MockOTPPolicyRepository {
	m := &MockOTPPolicyRepository{policies: make(map[policyKey]domain.OTPPolicy)}
	for _, p := range seed {
		m.policies[policyKey{p.Type, p.Channel}] = p
	}
	return m
}

func (m *MockOTPPolicyRepository) Get(ctx context.Context, otpType domain.OTPType, channel domain.OTPChannel) (*domain.OTPPolicy, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, otpType, channel)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.policies[policyKey{otpType, channel}]
	if !ok {
		return nil, domain.ErrPolicyNotFound
	}
	return &p, nil
}

func (m *MockOTPPolicyRepository) List(ctx context.Context) ([]domain.OTPPolicy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.OTPPolicy, 0, len(m.policies))
	for _, p := range m.policies {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Channel < out[j].Channel
	})
	return out, nil
}

func (m *MockOTPPolicyRepository) Upsert(ctx context.Context, policy *domain.OTPPolicy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policies[policyKey{policy.Type, policy.Channel}] = *policy
	return nil
}

func (m *MockOTPPolicyRepository) Seed(ctx context.Context, policies []domain.OTPPolicy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range policies {
		k := policyKey{p.Type, p.Channel}
		if _, ok := m.policies[k]; !ok {
			m.policies[k] = p
		}
	}
	return nil
}

func (m *MockOTPPolicyRepository) EnabledFor(ctx context.Context, otpType domain.OTPType) ([]domain.OTPPolicy, error) {
	if m.EnabledForFunc != nil {
		return m.EnabledForFunc(ctx, otpType)
	}
	all, _ := m.List(ctx)
	var out []domain.OTPPolicy
	for _, p := range all {
		if p.Type == otpType && p.Enabled {
			out = append(out, p)
		}
	}
	return out, nil
}
