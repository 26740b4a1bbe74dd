package mocks

import (
	"context"

	"github.com/you/walletgate/domain"
)

// MockPolicyService implements domain.PolicyService interface for testing
type MockPolicyService struct {
	AddPolicyFunc       func(ctx context.Context, actor string, rule domain.PolicyRule) error
	RemovePolicyFunc    func(ctx context.Context, actor string, rule domain.PolicyRule) error
	CheckPermissionFunc func(role, resource, action string) (bool, error)
	GetPoliciesFunc     func() ([]domain.PolicyRule, error)
}

// NewMockPolicyService creates a new MockPolicyService with default behaviors
func NewMockPolicyService() *MockPolicyService {
	return &MockPolicyService{}
}

// AddPolicy adds a new authorization policy
func (m *MockPolicyService) AddPolicy(ctx context.Context, actor string, rule domain.PolicyRule) error {
	if m.AddPolicyFunc != nil {
		return m.AddPolicyFunc(ctx, actor, rule)
	}
	return nil
}

// RemovePolicy removes an authorization policy
func (m *MockPolicyService) RemovePolicy(ctx context.Context, actor string, rule domain.PolicyRule) error {
	if m.RemovePolicyFunc != nil {
		return m.RemovePolicyFunc(ctx, actor, rule)
	}
	return nil
}

// CheckPermission checks if a role has permission for a resource and action
func (m *MockPolicyService) CheckPermission(role, resource, action string) (bool, error) {
	if m.CheckPermissionFunc != nil {
		return m.CheckPermissionFunc(role, resource, action)
	}
	// Default behavior: admin has all permissions, user has limited permissions
	if role == "admin" {
		return true, nil
	}
	if role == "user" && resource == "/transfers/authorize" {
		return true, nil
	}
	return false, nil
}

// GetPolicies returns all current policies
func (m *MockPolicyService) GetPolicies() ([]domain.PolicyRule, error) {
	if m.GetPoliciesFunc != nil {
		return m.GetPoliciesFunc()
	}
	return []domain.PolicyRule{
		{Role: "role_admin", Resource: "/admin/*", Action: "GET|POST|PUT|DELETE"},
		{Role: "role_user", Resource: "/transfers/authorize", Action: "POST"},
	}, nil
}

// Compile-time interface compliance verification
var _ domain.PolicyService = (*MockPolicyService)(nil)
