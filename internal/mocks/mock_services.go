package mocks

import (
	"context"
	"time"

	"github.com/you/walletgate/domain"
)

var zeroTime time.Time

// MockOTPService implements domain.OTPService interface for testing
type MockOTPService struct {
	RequestFunc      func(ctx context.Context, subject string, otpType domain.OTPType, channel domain.OTPChannel, policy domain.OTPPolicy) (*domain.OTPRecord, error)
	VerifyFunc       func(ctx context.Context, subject string, otpType domain.OTPType, code string) (*domain.VerificationToken, error)
	ConsumeTokenFunc func(ctx context.Context, token, subject string, otpType domain.OTPType) error
	HistoryFunc      func(ctx context.Context, subject string) ([]*domain.OTPRecord, error)
}

var _ domain.OTPService = (*MockOTPService)(nil)

func NewMockOTPService() *MockOTPService {
	return &MockOTPService{}
}

func (m *MockOTPService) Request(ctx context.Context, subject string, otpType domain.OTPType, channel domain.OTPChannel, policy domain.OTPPolicy) (*domain.OTPRecord, error) {
	if m.RequestFunc != nil {
		return m.RequestFunc(ctx, subject, otpType, channel, policy)
	}
	return &domain.OTPRecord{
		ID:          "otp_1",
		Subject:     subject,
		Type:        otpType,
		Channel:     channel,
		Status:      domain.OTPStatusPending,
		MaxAttempts: policy.MaxAttempts,
		ExpiresAt:   time.Now().Add(policy.Expiry()),
	}, nil
}

func (m *MockOTPService) Verify(ctx context.Context, subject string, otpType domain.OTPType, code string) (*domain.VerificationToken, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, subject, otpType, code)
	}
	return &domain.VerificationToken{Token: "verified-token", Subject: subject, Type: otpType}, nil
}

// ConsumeToken defaults to rejecting everything except "valid-token"
func (m *MockOTPService) ConsumeToken(ctx context.Context, token, subject string, otpType domain.OTPType) error {
	if m.ConsumeTokenFunc != nil {
		return m.ConsumeTokenFunc(ctx, token, subject, otpType)
	}
	if token == "valid-token" {
		return nil
	}
	return domain.NewGateError(domain.ErrUnauthorized, "otp_token_invalid")
}

func (m *MockOTPService) History(ctx context.Context, subject string) ([]*domain.OTPRecord, error) {
	if m.HistoryFunc != nil {
		return m.HistoryFunc(ctx, subject)
	}
	return nil, nil
}

// MockPINService implements domain.PINService interface for testing
type MockPINService struct {
	SetFunc             func(ctx context.Context, userID uint, pin, verificationToken string) error
	VerifyFunc          func(ctx context.Context, userID uint, pin string) error
	AdminUnblockFunc    func(ctx context.Context, actor string, userID uint) error
	StatusFunc          func(ctx context.Context, userID uint) (*domain.PINStatus, error)
	EnrollTwoFactorFunc func(ctx context.Context, userID uint) (*domain.TwoFactorEnrollment, error)
	VerifyTwoFactorFunc func(ctx context.Context, userID uint, code string) error
}

var _ domain.PINService = (*MockPINService)(nil)

func NewMockPINService() *MockPINService {
	return &MockPINService{}
}

func (m *MockPINService) Set(ctx context.Context, userID uint, pin, verificationToken string) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, userID, pin, verificationToken)
	}
	return nil
}

// Verify defaults to accepting "1234" only
func (m *MockPINService) Verify(ctx context.Context, userID uint, pin string) error {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, userID, pin)
	}
	if pin == "1234" {
		return nil
	}
	return domain.NewGateError(domain.ErrInvalidPIN, "invalid_pin")
}

func (m *MockPINService) AdminUnblock(ctx context.Context, actor string, userID uint) error {
	if m.AdminUnblockFunc != nil {
		return m.AdminUnblockFunc(ctx, actor, userID)
	}
	return nil
}

func (m *MockPINService) Status(ctx context.Context, userID uint) (*domain.PINStatus, error) {
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx, userID)
	}
	return &domain.PINStatus{PINSet: true, RemainingAttempts: domain.PINMaxFailedAttempts}, nil
}

func (m *MockPINService) EnrollTwoFactor(ctx context.Context, userID uint) (*domain.TwoFactorEnrollment, error) {
	if m.EnrollTwoFactorFunc != nil {
		return m.EnrollTwoFactorFunc(ctx, userID)
	}
	return &domain.TwoFactorEnrollment{Secret: "JBSWY3DPEHPK3PXP", URL: "otpauth://totp/walletgate:1?secret=JBSWY3DPEHPK3PXP"}, nil
}

func (m *MockPINService) VerifyTwoFactor(ctx context.Context, userID uint, code string) error {
	if m.VerifyTwoFactorFunc != nil {
		return m.VerifyTwoFactorFunc(ctx, userID, code)
	}
	return nil
}

// MockRiskScorer implements domain.RiskScorer interface for testing
type MockRiskScorer struct {
	ScoreFunc func(intent *domain.TransferIntent, history []domain.AuditEvent) domain.RiskAssessment
}

var _ domain.RiskScorer = (*MockRiskScorer)(nil)

func NewMockRiskScorer() *MockRiskScorer {
	return &MockRiskScorer{}
}

func (m *MockRiskScorer) Score(intent *domain.TransferIntent, history []domain.AuditEvent) domain.RiskAssessment {
	if m.ScoreFunc != nil {
		return m.ScoreFunc(intent, history)
	}
	return domain.RiskAssessment{Indicators: []domain.RiskIndicator{}, Level: domain.RiskLow}
}

// MockAuthorizationService implements domain.AuthorizationService interface for testing
type MockAuthorizationService struct {
	AuthorizeFunc func(ctx context.Context, userID uint, intent *domain.TransferIntent, pin, otpToken string) (*domain.AuthorizationDecision, error)
}

var _ domain.AuthorizationService = (*MockAuthorizationService)(nil)

func NewMockAuthorizationService() *MockAuthorizationService {
	return &MockAuthorizationService{}
}

func (m *MockAuthorizationService) Authorize(ctx context.Context, userID uint, intent *domain.TransferIntent, pin, otpToken string) (*domain.AuthorizationDecision, error) {
	if m.AuthorizeFunc != nil {
		return m.AuthorizeFunc(ctx, userID, intent, pin, otpToken)
	}
	return &domain.AuthorizationDecision{Approved: true, Indicators: []domain.RiskIndicator{}, RiskLevel: domain.RiskLow}, nil
}

// MockAdminService implements domain.AdminService interface for testing
type MockAdminService struct {
	UnblockUserFunc            func(ctx context.Context, actor string, userID uint) error
	GetOTPPolicyFunc           func(ctx context.Context, otpType domain.OTPType, channel domain.OTPChannel) (*domain.OTPPolicy, error)
	ListOTPPoliciesFunc        func(ctx context.Context) ([]domain.OTPPolicy, error)
	UpdateOTPPolicyFunc        func(ctx context.Context, actor string, policy *domain.OTPPolicy) error
	ListSuspiciousActivityFunc func(ctx context.Context, since time.Time) ([]domain.SuspiciousActivity, error)
	ListLoginLogsFunc          func(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEvent, int64, error)
	LoginStatisticsFunc        func(ctx context.Context, identity string, days int) (*domain.LoginStatistics, error)
}

var _ domain.AdminService = (*MockAdminService)(nil)

func NewMockAdminService() *MockAdminService {
	return &MockAdminService{}
}

func (m *MockAdminService) UnblockUser(ctx context.Context, actor string, userID uint) error {
	if m.UnblockUserFunc != nil {
		return m.UnblockUserFunc(ctx, actor, userID)
	}
	return nil
}

func (m *MockAdminService) GetOTPPolicy(ctx context.Context, otpType domain.OTPType, channel domain.OTPChannel) (*domain.OTPPolicy, error) {
	if m.GetOTPPolicyFunc != nil {
		return m.GetOTPPolicyFunc(ctx, otpType, channel)
	}
	return nil, domain.ErrPolicyNotFound
}

func (m *MockAdminService) ListOTPPolicies(ctx context.Context) ([]domain.OTPPolicy, error) {
	if m.ListOTPPoliciesFunc != nil {
		return m.ListOTPPoliciesFunc(ctx)
	}
	return []domain.OTPPolicy{}, nil
}

func (m *MockAdminService) UpdateOTPPolicy(ctx context.Context, actor string, policy *domain.OTPPolicy) error {
	if m.UpdateOTPPolicyFunc != nil {
		return m.UpdateOTPPolicyFunc(ctx, actor, policy)
	}
	return nil
}

func (m *MockAdminService) ListSuspiciousActivity(ctx context.Context, since time.Time) ([]domain.SuspiciousActivity, error) {
	if m.ListSuspiciousActivityFunc != nil {
		return m.ListSuspiciousActivityFunc(ctx, since)
	}
	return []domain.SuspiciousActivity{}, nil
}

func (m *MockAdminService) ListLoginLogs(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEvent, int64, error) {
	if m.ListLoginLogsFunc != nil {
		return m.ListLoginLogsFunc(ctx, filter)
	}
	return []domain.AuditEvent{}, 0, nil
}

func (m *MockAdminService) LoginStatistics(ctx context.Context, identity string, days int) (*domain.LoginStatistics, error) {
	if m.LoginStatisticsFunc != nil {
		return m.LoginStatisticsFunc(ctx, identity, days)
	}
	return &domain.LoginStatistics{Identity: identity, Days: days, FailureReasons: map[string]int64{}}, nil
}
