package auth

import (
	"fmt"

	"github.com/you/walletgate/domain"
	"golang.org/x/crypto/bcrypt"
)

// BcryptHasher implements domain.SecretHasher. PINs and OTP codes are short,
// so the digest relies on bcrypt's cost rather than on secret entropy.
type BcryptHasher struct {
	cost int
}

// NewSecretHasher creates a bcrypt hasher; cost 0 selects bcrypt.DefaultCost
func NewSecretHasher(cost int) domain.SecretHasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash implements domain.SecretHasher
func (h *BcryptHasher) Hash(secret string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash secret: %w", err)
	}
	return string(hashedBytes), nil
}

// Verify implements domain.SecretHasher
func (h *BcryptHasher) Verify(digest, secret string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret))
	return err == nil
}
