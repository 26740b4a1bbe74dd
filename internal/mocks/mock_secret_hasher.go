package mocks

import "github.com/you/walletgate/domain"

// MockSecretHasher implements domain.SecretHasher with a reversible prefix.
// Tests that need real digests use the bcrypt hasher at MinCost instead.
type MockSecretHasher struct {
	HashFunc   func(secret string) (string, error)
	VerifyFunc func(digest, secret string) bool
}

var _ domain.SecretHasher = (*MockSecretHasher)(nil)

func NewMockSecretHasher() *MockSecretHasher {
	return &MockSecretHasher{}
}

func (m *MockSecretHasher) Hash(secret string) (string, error) {
	if m.HashFunc != nil {
		return m.HashFunc(secret)
	}
	return "hashed_" + secret, nil
}

func (m *MockSecretHasher) Verify(digest, secret string) bool {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(digest, secret)
	}
	return digest == "hashed_"+secret
}
