package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/you/walletgate/domain"
	"go.uber.org/zap"
)

// AuditServiceImpl implements domain.AuditLogger on top of the append-only
// repository. Every event is stamped with the service clock and the client
// context carried by ctx.
type AuditServiceImpl struct {
	repo   domain.AuditRepository
	clock  domain.Clock
	logger *zap.Logger
}

// NewAuditService creates a new audit logger
func NewAuditService(repo domain.AuditRepository, clock domain.Clock, logger *zap.Logger) domain.AuditLogger {
	return &AuditServiceImpl{repo: repo, clock: clock, logger: logger}
}

// LogEvent implements domain.AuditLogger
func (s *AuditServiceImpl) LogEvent(ctx context.Context, event *domain.AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.clock.Now()
	}
	if event.IPAddress == "" && event.Location == "" {
		event.WithClientContext(domain.ClientFromContext(ctx))
	}

	if err := s.repo.Append(ctx, event); err != nil {
		s.logger.Error("audit append failed",
			zap.String("event_type", string(event.EventType)),
			zap.String("identity", event.Identity),
			zap.Error(err),
		)
		return fmt.Errorf("failed to record audit event: %w", err)
	}

	s.logger.Debug("audit event recorded",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.EventType)),
		zap.String("identity", event.Identity),
		zap.Bool("success", event.Success),
		zap.String("reason", event.Reason),
	)
	return nil
}

func (s *AuditServiceImpl) newEvent(eventType domain.AuditEventType, identity string) *domain.AuditEvent {
	return domain.NewAuditEvent(eventType, identity, s.clock.Now())
}

func (s *AuditServiceImpl) LogOTPRequest(ctx context.Context, subject string, otpType domain.OTPType, channel domain.OTPChannel, err error) error {
	event := s.newEvent(domain.OTPRequestEvent, subject).
		WithMetadata("otp_type", otpType.String()).
		WithMetadata("channel", channel.String()).
		WithError(err)
	return s.LogEvent(ctx, event)
}

func (s *AuditServiceImpl) LogOTPVerification(ctx context.Context, subject string, otpType domain.OTPType, err error) error {
	event := s.newEvent(domain.OTPVerifyEvent, subject).
		WithMetadata("otp_type", otpType.String()).
		WithError(err)
	return s.LogEvent(ctx, event)
}

func (s *AuditServiceImpl) LogPINVerification(ctx context.Context, userID uint, err error) error {
	event := s.newEvent(domain.PINVerifyEvent, domain.SubjectForUser(userID)).
		WithUser(userID).
		WithError(err)
	return s.LogEvent(ctx, event)
}

func (s *AuditServiceImpl) LogPINChange(ctx context.Context, userID uint, err error) error {
	event := s.newEvent(domain.PINChangeEvent, domain.SubjectForUser(userID)).
		WithUser(userID).
		WithError(err)
	return s.LogEvent(ctx, event)
}

// LogAdminUnblock records a privileged action; the actor is always kept
func (s *AuditServiceImpl) LogAdminUnblock(ctx context.Context, actor string, userID uint) error {
	event := s.newEvent(domain.PINUnblockEvent, domain.SubjectForUser(userID)).
		WithUser(userID).
		WithActor(actor).
		WithReason("admin_unblock")
	return s.LogEvent(ctx, event)
}

func (s *AuditServiceImpl) LogAuthorization(ctx context.Context, userID uint, intent *domain.TransferIntent, decision *domain.AuthorizationDecision) error {
	event := s.newEvent(domain.TransferAuthorizationEvent, domain.SubjectForUser(userID)).
		WithUser(userID).
		WithAmount(intent.Amount).
		WithRisk(decision.RiskScore, decision.Indicators).
		WithReason(decision.Reason).
		WithMetadata("currency", intent.Currency).
		WithMetadata("risk_level", string(decision.RiskLevel))
	if intent.Chain != "" {
		event.WithMetadata("chain", intent.Chain)
	}
	if !decision.DecidedAt.IsZero() {
		event.Timestamp = decision.DecidedAt.UTC()
	}
	event.Success = decision.Approved

	// the intent carries the request's own client data
	event.IPAddress = intent.SourceIP
	event.DeviceSignature = intent.Device
	event.Location = intent.Location
	return s.LogEvent(ctx, event)
}

func (s *AuditServiceImpl) LogPolicyUpdate(ctx context.Context, actor string, policy *domain.OTPPolicy) error {
	event := s.newEvent(domain.OTPPolicyUpdateEvent, actor).
		WithActor(actor).
		WithMetadata("otp_type", policy.Type.String()).
		WithMetadata("channel", policy.Channel.String()).
		WithMetadata("enabled", policy.Enabled)
	return s.LogEvent(ctx, event)
}

func (s *AuditServiceImpl) LogLogin(ctx context.Context, identity string, err error) error {
	event := s.newEvent(domain.UserLoginEvent, identity)
	if err != nil {
		event.Success = false
		event.Reason = err.Error()
	}
	return s.LogEvent(ctx, event)
}
