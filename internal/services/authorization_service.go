package services

import (
	"context"
	"fmt"
	"time"

	"github.com/you/walletgate/domain"
	"go.uber.org/zap"
)

// AuthorizationConfig configures the orchestrator
type AuthorizationConfig struct {
	// AutoBlockEnabled turns the risk score into a denial at AutoBlockThreshold.
	// Off by default: the score is advisory.
	AutoBlockEnabled   bool
	AutoBlockThreshold int
	LockTTL            time.Duration
}

// AuthorizationServiceImpl implements domain.AuthorizationService
type AuthorizationServiceImpl struct {
	otp      domain.OTPService
	pin      domain.PINService
	scorer   domain.RiskScorer
	policies domain.OTPPolicyRepository
	history  domain.AuditRepository
	audit    domain.AuditLogger
	locker   domain.Locker
	clock    domain.Clock
	logger   *zap.Logger
	config   AuthorizationConfig
}

// NewAuthorizationService creates a new authorization orchestrator
func NewAuthorizationService(
	otpSvc domain.OTPService,
	pinSvc domain.PINService,
	scorer domain.RiskScorer,
	policies domain.OTPPolicyRepository,
	history domain.AuditRepository,
	audit domain.AuditLogger,
	locker domain.Locker,
	clock domain.Clock,
	logger *zap.Logger,
	config AuthorizationConfig,
) domain.AuthorizationService {
	return &AuthorizationServiceImpl{
		otp:      otpSvc,
		pin:      pinSvc,
		scorer:   scorer,
		policies: policies,
		history:  history,
		audit:    audit,
		locker:   locker,
		clock:    clock,
		logger:   logger,
		config:   config,
	}
}

// Authorize implements domain.AuthorizationService. The returned decision is
// never nil and the error, when set, is always a *domain.GateError.
func (s *AuthorizationServiceImpl) Authorize(ctx context.Context, userID uint, intent *domain.TransferIntent, pin, otpToken string) (*domain.AuthorizationDecision, error) {
	subject := domain.SubjectForUser(userID)
	stamped := s.stamp(ctx, intent)

	if stamped.Amount <= 0 {
		ge := domain.NewGateError(domain.ErrInvalidAmount, "invalid_amount")
		return s.finish(ctx, userID, stamped, s.deny(ge, domain.RiskAssessment{}), ge)
	}

	// serialize per identity so the history read includes every earlier
	// request from the same user
	lockKey := "authz:" + subject
	lockToken, err := s.locker.Acquire(ctx, lockKey, s.config.LockTTL)
	if err != nil {
		ge := domain.InternalError(fmt.Errorf("failed to acquire authorization lock: %w", err))
		return s.finish(ctx, userID, stamped, s.deny(ge, domain.RiskAssessment{}), ge)
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), lockKey, lockToken); err != nil {
			s.logger.Warn("failed to release authorization lock", zap.String("key", lockKey), zap.Error(err))
		}
	}()

	// the request time is taken under the lock so approvals made while this
	// request waited fall inside its scoring window
	stamped.RequestedAt = s.clock.Now()

	decision, ge := s.evaluate(ctx, userID, subject, stamped, pin, otpToken)
	return s.finish(ctx, userID, stamped, decision, ge)
}

// stamp copies the intent with the request time and client data filled in
func (s *AuthorizationServiceImpl) stamp(ctx context.Context, intent *domain.TransferIntent) *domain.TransferIntent {
	var stamped domain.TransferIntent
	if intent != nil {
		stamped = *intent
	}
	stamped.RequestedAt = s.clock.Now()
	if cc := domain.ClientFromContext(ctx); cc != nil {
		if stamped.SourceIP == "" {
			stamped.SourceIP = cc.IPAddress
		}
		if stamped.Device == "" {
			stamped.Device = cc.DeviceSignature
		}
		if stamped.Location == "" {
			stamped.Location = cc.Location
		}
	}
	return &stamped
}

// finish records the outcome and converts it to the caller's return values
func (s *AuthorizationServiceImpl) finish(ctx context.Context, userID uint, intent *domain.TransferIntent, decision *domain.AuthorizationDecision, ge *domain.GateError) (*domain.AuthorizationDecision, error) {
	if err := s.audit.LogAuthorization(ctx, userID, intent, decision); err != nil {
		if decision.Approved {
			// approvals require an audit record
			ge = domain.InternalError(err)
			decision.Approved = false
			decision.Reason = ge.Reason
			decision.Err = ge
			s.logger.Error("authorization denied: audit write failed", zap.Uint("user_id", userID), zap.Error(err))
		} else {
			s.logger.Error("failed to audit authorization denial", zap.Uint("user_id", userID), zap.Error(err))
		}
	}

	s.logger.Info("transfer authorization",
		zap.Uint("user_id", userID),
		zap.Int64("amount", intent.Amount),
		zap.Bool("approved", decision.Approved),
		zap.Int("risk_score", decision.RiskScore),
		zap.Strings("indicators", decision.IndicatorNames()),
		zap.String("reason", decision.Reason),
	)

	if ge != nil {
		return decision, ge
	}
	return decision, nil
}

func (s *AuthorizationServiceImpl) evaluate(ctx context.Context, userID uint, subject string, intent *domain.TransferIntent, pin, otpToken string) (*domain.AuthorizationDecision, *domain.GateError) {
	required, err := s.policies.EnabledFor(ctx, domain.OTPTypeTransaction)
	if err != nil {
		ge := domain.InternalError(err)
		return s.deny(ge, domain.RiskAssessment{}), ge
	}
	if len(required) > 0 {
		if err := s.otp.ConsumeToken(ctx, otpToken, subject, domain.OTPTypeTransaction); err != nil {
			ge := domain.AsGateError(err)
			return s.deny(ge, domain.RiskAssessment{}), ge
		}
	}

	if err := s.pin.Verify(ctx, userID, pin); err != nil {
		ge := domain.AsGateError(err)
		return s.deny(ge, domain.RiskAssessment{}), ge
	}

	history, err := s.history.Series(ctx, subject, intent.RequestedAt.Add(-24*time.Hour))
	if err != nil {
		ge := domain.InternalError(err)
		return s.deny(ge, domain.RiskAssessment{}), ge
	}
	assessment := s.scorer.Score(intent, history)

	if s.config.AutoBlockEnabled && assessment.Score >= s.config.AutoBlockThreshold {
		ge := domain.NewGateError(domain.ErrRiskBlocked, "risk_blocked")
		return s.deny(ge, assessment), ge
	}

	return &domain.AuthorizationDecision{
		Approved:   true,
		RiskScore:  assessment.Score,
		Indicators: assessment.Indicators,
		RiskLevel:  assessment.Level,
		DecidedAt:  s.clock.Now(),
	}, nil
}

func (s *AuthorizationServiceImpl) deny(ge *domain.GateError, assessment domain.RiskAssessment) *domain.AuthorizationDecision {
	indicators := assessment.Indicators
	if indicators == nil {
		indicators = []domain.RiskIndicator{}
	}
	level := assessment.Level
	if level == "" {
		level = domain.LevelForScore(assessment.Score)
	}
	return &domain.AuthorizationDecision{
		Approved:   false,
		RiskScore:  assessment.Score,
		Indicators: indicators,
		RiskLevel:  level,
		Reason:     ge.Reason,
		DecidedAt:  s.clock.Now(),
		Err:        ge,
	}
}
