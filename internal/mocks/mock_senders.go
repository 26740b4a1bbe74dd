package mocks

import (
	"context"
	"sync"

	"github.com/you/walletgate/domain"
)

// SentMessage is one message captured by a mock sender
type SentMessage struct {
	To      string
	Subject string
	Body    string
}

// MockSMSSender implements domain.SMSSender and records what it sends
type MockSMSSender struct {
	SendSMSFunc func(ctx context.Context, to, message string) error

	mu   sync.Mutex
	Sent []SentMessage
}

var _ domain.SMSSender = (*MockSMSSender)(nil)

func NewMockSMSSender() *MockSMSSender {
	return &MockSMSSender{}
}

func (m *MockSMSSender) SendSMS(ctx context.Context, to, message string) error {
	if m.SendSMSFunc != nil {
		if err := m.SendSMSFunc(ctx, to, message); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.Sent = append(m.Sent, SentMessage{To: to, Body: message})
	m.mu.Unlock()
	return nil
}

// MockEmailSender implements domain.EmailSender and records what it sends
type MockEmailSender struct {
	SendEmailFunc func(ctx context.Context, to, subject, body string) error

	mu   sync.Mutex
	Sent []SentMessage
}

var _ domain.EmailSender = (*MockEmailSender)(nil)

func NewMockEmailSender() *MockEmailSender {
	return &MockEmailSender{}
}

func (m *MockEmailSender) SendEmail(ctx context.Context, to, subject, body string) error {
	if m.SendEmailFunc != nil {
		if err := m.SendEmailFunc(ctx, to, subject, body); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.Sent = append(m.Sent, SentMessage{To: to, Subject: subject, Body: body})
	m.mu.Unlock()
	return nil
}
