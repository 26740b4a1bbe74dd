package mocks

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/you/walletgate/domain"
)

// MockCasbinEnforcer is an in-memory domain.CasbinEnforcer. Resources match
// exactly or by a trailing "/*"; actions are "|"-separated or "*".
type MockCasbinEnforcer struct {
	AddPolicyFunc    func(params ...interface{}) (bool, error)
	RemovePolicyFunc func(params ...interface{}) (bool, error)
	EnforceFunc      func(rvals ...interface{}) (bool, error)
	GetPolicyFunc    func() ([][]string, error)
	SavePolicyFunc   func() error

	mu    sync.Mutex
	rules [][]string
}

var _ domain.CasbinEnforcer = (*MockCasbinEnforcer)(nil)

// NewMockCasbinEnforcer starts with the admin and wallet user rules
func NewMockCasbinEnforcer() *MockCasbinEnforcer {
	m := &MockCasbinEnforcer{}
	m.SetPolicies([][]string{
		{"role_admin", "/admin/*", "GET|POST|PUT|DELETE"},
		{"role_user", "/pin/*", "GET|POST"},
		{"role_user", "/otp/*", "POST"},
		{"role_user", "/transfers/authorize", "POST"},
	})
	return m
}

// SetPolicies replaces the stored rules
func (m *MockCasbinEnforcer) SetPolicies(rules [][]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = make([][]string, 0, len(rules))
	for _, r := range rules {
		m.rules = append(m.rules, slices.Clone(r))
	}
}

func (m *MockCasbinEnforcer) AddPolicy(params ...interface{}) (bool, error) {
	if m.AddPolicyFunc != nil {
		return m.AddPolicyFunc(params...)
	}
	rule := toStrings(params)
	if len(rule) < 3 {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.indexOf(rule) >= 0 {
		return false, nil
	}
	m.rules = append(m.rules, rule)
	return true, nil
}

func (m *MockCasbinEnforcer) RemovePolicy(params ...interface{}) (bool, error) {
	if m.RemovePolicyFunc != nil {
		return m.RemovePolicyFunc(params...)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(toStrings(params))
	if i < 0 {
		return false, nil
	}
	m.rules = slices.Delete(m.rules, i, i+1)
	return true, nil
}

func (m *MockCasbinEnforcer) Enforce(rvals ...interface{}) (bool, error) {
	if m.EnforceFunc != nil {
		return m.EnforceFunc(rvals...)
	}
	req := toStrings(rvals)
	if len(req) < 3 {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rules {
		if len(r) >= 3 && r[0] == req[0] && resourceMatches(r[1], req[1]) && actionMatches(r[2], req[2]) {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockCasbinEnforcer) GetPolicy() ([][]string, error) {
	if m.GetPolicyFunc != nil {
		return m.GetPolicyFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]string, len(m.rules))
	for i, r := range m.rules {
		out[i] = slices.Clone(r)
	}
	return out, nil
}

func (m *MockCasbinEnforcer) SavePolicy() error {
	if m.SavePolicyFunc != nil {
		return m.SavePolicyFunc()
	}
	return nil
}

func (m *MockCasbinEnforcer) indexOf(rule []string) int {
	return slices.IndexFunc(m.rules, func(r []string) bool { return slices.Equal(r, rule) })
}

func toStrings(vals []interface{}) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = fmt.Sprint(v)
	}
	return out
}

func resourceMatches(pattern, resource string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok && strings.HasSuffix(prefix, "/") {
		return strings.HasPrefix(resource, prefix)
	}
	return pattern == resource
}

func actionMatches(pattern, action string) bool {
	return pattern == "*" || slices.Contains(strings.Split(pattern, "|"), action)
}
