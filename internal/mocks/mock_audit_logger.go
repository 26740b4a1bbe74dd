package mocks

import (
	"context"
	"sync"

	"github.com/you/walletgate/domain"
)

// MockAuditLogger implements domain.AuditLogger and keeps every event it is
// given, including the ones built by the typed helpers.
type MockAuditLogger struct {
	LogEventFunc func(ctx context.Context, event *domain.AuditEvent) error

	mu     sync.Mutex
	events []domain.AuditEvent
}

var _ domain.AuditLogger = (*MockAuditLogger)(nil)

func NewMockAuditLogger() *MockAuditLogger {
	return &MockAuditLogger{}
}

func (m *MockAuditLogger) LogEvent(ctx context.Context, event *domain.AuditEvent) error {
	if m.LogEventFunc != nil {
		if err := m.LogEventFunc(ctx, event); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.events = append(m.events, *event)
	m.mu.Unlock()
	return nil
}

func (m *MockAuditLogger) record(ctx context.Context, e *domain.AuditEvent, err error) error {
	return m.LogEvent(ctx, e.WithError(err).WithClientContext(domain.ClientFromContext(ctx)))
}

func (m *MockAuditLogger) LogOTPRequest(ctx context.Context, subject string, otpType domain.OTPType, channel domain.OTPChannel, err error) error {
	e := domain.NewAuditEvent(domain.OTPRequestEvent, subject, zeroTime).
		WithMetadata("otp_type", otpType.String()).
		WithMetadata("channel", channel.String())
	return m.record(ctx, e, err)
}

func (m *MockAuditLogger) LogOTPVerification(ctx context.Context, subject string, otpType domain.OTPType, err error) error {
	e := domain.NewAuditEvent(domain.OTPVerifyEvent, subject, zeroTime).WithMetadata("otp_type", otpType.String())
	return m.record(ctx, e, err)
}

func (m *MockAuditLogger) LogPINVerification(ctx context.Context, userID uint, err error) error {
	e := domain.NewAuditEvent(domain.PINVerifyEvent, domain.SubjectForUser(userID), zeroTime).WithUser(userID)
	return m.record(ctx, e, err)
}

func (m *MockAuditLogger) LogPINChange(ctx context.Context, userID uint, err error) error {
	e := domain.NewAuditEvent(domain.PINChangeEvent, domain.SubjectForUser(userID), zeroTime).WithUser(userID)
	return m.record(ctx, e, err)
}

func (m *MockAuditLogger) LogAdminUnblock(ctx context.Context, actor string, userID uint) error {
	e := domain.NewAuditEvent(domain.PINUnblockEvent, domain.SubjectForUser(userID), zeroTime).WithUser(userID).WithActor(actor)
	return m.record(ctx, e, nil)
}

func (m *MockAuditLogger) LogAuthorization(ctx context.Context, userID uint, intent *domain.TransferIntent, decision *domain.AuthorizationDecision) error {
	e := domain.NewAuditEvent(domain.TransferAuthorizationEvent, domain.SubjectForUser(userID), decision.DecidedAt).
		WithUser(userID).
		WithAmount(intent.Amount).
		WithRisk(decision.RiskScore, decision.Indicators).
		WithReason(decision.Reason)
	e.Success = decision.Approved
	return m.LogEvent(ctx, e.WithClientContext(domain.ClientFromContext(ctx)))
}

func (m *MockAuditLogger) LogPolicyUpdate(ctx context.Context, actor string, policy *domain.OTPPolicy) error {
	e := domain.NewAuditEvent(domain.OTPPolicyUpdateEvent, actor, zeroTime).WithActor(actor)
	return m.record(ctx, e, nil)
}

func (m *MockAuditLogger) LogLogin(ctx context.Context, identity string, err error) error {
	e := domain.NewAuditEvent(domain.UserLoginEvent, identity, zeroTime)
	if err != nil {
		e.Success = false
		e.Reason = err.Error()
	}
	return m.LogEvent(ctx, e.WithClientContext(domain.ClientFromContext(ctx)))
}

// Events returns a copy of the recorded events
func (m *MockAuditLogger) Events() []domain.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.AuditEvent(nil), m.events...)
}

// EventsOfType filters the recorded events
func (m *MockAuditLogger) EventsOfType(t domain.AuditEventType) []domain.AuditEvent {
	var out []domain.AuditEvent
	for _, e := range m.Events() {
		if e.EventType == t {
			out = append(out, e)
		}
	}
	return out
}
