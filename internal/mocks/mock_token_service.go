package mocks

import (
	"fmt"

	"github.com/you/walletgate/domain"
)

// MockTokenService implements domain.TokenService interface for testing
type MockTokenService struct {
	GenerateAccessTokenFunc func(userID uint, role string) (string, error)
	ValidateAccessTokenFunc func(token string) (*domain.TokenClaims, error)
}

var _ domain.TokenService = (*MockTokenService)(nil)

// NewMockTokenService creates a new MockTokenService with default behaviors
func NewMockTokenService() *MockTokenService {
	return &MockTokenService{}
}

// GenerateAccessToken generates an access token
func (m *MockTokenService) GenerateAccessToken(userID uint, role string) (string, error) {
	if m.GenerateAccessTokenFunc != nil {
		return m.GenerateAccessTokenFunc(userID, role)
	}
	// Default behavior: deterministic token that the default validator understands
	return fmt.Sprintf("token:%d:%s", userID, role), nil
}

// ValidateAccessToken validates an access token
func (m *MockTokenService) ValidateAccessToken(token string) (*domain.TokenClaims, error) {
	if m.ValidateAccessTokenFunc != nil {
		return m.ValidateAccessTokenFunc(token)
	}
	var userID uint
	var role string
	if _, err := fmt.Sscanf(token, "token:%d:%s", &userID, &role); err != nil {
		return nil, domain.ErrTokenInvalid
	}
	return &domain.TokenClaims{UserID: userID, Role: role}, nil
}
