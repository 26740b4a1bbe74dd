package mocks

import (
	"context"
	"sync"

	"github.com/you/walletgate/domain"
)

// Delivery is one code handed to MockOTPDeliverer
type Delivery struct {
	Subject string
	Channel domain.OTPChannel
	Code    string
	Type    domain.OTPType
}

// MockOTPDeliverer implements domain.OTPDeliverer. Successful deliveries are
// recorded so tests can read back the plaintext code.
type MockOTPDeliverer struct {
	DeliverFunc func(ctx context.Context, subject string, channel domain.OTPChannel, code string, otpType domain.OTPType) error

	mu         sync.Mutex
	deliveries []Delivery
}

var _ domain.OTPDeliverer = (*MockOTPDeliverer)(nil)

func NewMockOTPDeliverer() *MockOTPDeliverer {
	return &MockOTPDeliverer{}
}

func (m *MockOTPDeliverer) Deliver(ctx context.Context, subject string, channel domain.OTPChannel, code string, otpType domain.OTPType) error {
	if m.DeliverFunc != nil {
		if err := m.DeliverFunc(ctx, subject, channel, code, otpType); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.deliveries = append(m.deliveries, Delivery{Subject: subject, Channel: channel, Code: code, Type: otpType})
	m.mu.Unlock()
	return nil
}

// Deliveries returns a copy of the recorded deliveries
func (m *MockOTPDeliverer) Deliveries() []Delivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Delivery(nil), m.deliveries...)
}

// LastCode returns the most recent code delivered to subject, or ""
func (m *MockOTPDeliverer) LastCode(subject string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.deliveries) - 1; i >= 0; i-- {
		if m.deliveries[i].Subject == subject {
			return m.deliveries[i].Code
		}
	}
	return ""
}
