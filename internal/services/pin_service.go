package services

import (
	"context"
	"errors"
	"regexp"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/you/walletgate/domain"
	"go.uber.org/zap"
)

var pinPattern = regexp.MustCompile(`^[0-9]{4,6}$`)

// PINServiceImpl implements domain.PINService. Every read-modify-write of
// the security record goes through SecurityRepository.Mutate.
type PINServiceImpl struct {
	repo       domain.SecurityRepository
	otp        domain.OTPService
	hasher     domain.SecretHasher
	audit      domain.AuditLogger
	clock      domain.Clock
	logger     *zap.Logger
	totpIssuer string
}

// NewPINService creates a new PIN state machine
func NewPINService(
	repo domain.SecurityRepository,
	otpSvc domain.OTPService,
	hasher domain.SecretHasher,
	audit domain.AuditLogger,
	clock domain.Clock,
	logger *zap.Logger,
	totpIssuer string,
) domain.PINService {
	return &PINServiceImpl{
		repo:       repo,
		otp:        otpSvc,
		hasher:     hasher,
		audit:      audit,
		clock:      clock,
		logger:     logger,
		totpIssuer: totpIssuer,
	}
}

// Set implements domain.PINService
func (s *PINServiceImpl) Set(ctx context.Context, userID uint, pin, verificationToken string) error {
	err := s.set(ctx, userID, pin, verificationToken)
	if auditErr := s.audit.LogPINChange(ctx, userID, err); auditErr != nil {
		s.logger.Error("failed to audit pin change", zap.Uint("user_id", userID), zap.Error(auditErr))
	}
	return err
}

func (s *PINServiceImpl) set(ctx context.Context, userID uint, pin, verificationToken string) error {
	if !pinPattern.MatchString(pin) {
		return domain.ErrInvalidPINFormat
	}

	subject := domain.SubjectForUser(userID)
	if err := s.otp.ConsumeToken(ctx, verificationToken, subject, domain.OTPTypePINSetup); err != nil {
		return err
	}

	digest, err := s.hasher.Hash(pin)
	if err != nil {
		return domain.InternalError(err)
	}

	err = s.repo.Mutate(ctx, userID, func(sec *domain.UserSecurity) error {
		now := s.clock.Now()
		sec.PINHash = digest
		sec.ApplyCounter(domain.CounterState{})
		sec.PINUpdatedAt = &now
		return nil
	})
	if err != nil {
		return domain.InternalError(err)
	}

	s.logger.Info("pin set", zap.Uint("user_id", userID))
	return nil
}

// Verify implements domain.PINService
func (s *PINServiceImpl) Verify(ctx context.Context, userID uint, pin string) error {
	err := s.verify(ctx, userID, pin)
	if auditErr := s.audit.LogPINVerification(ctx, userID, err); auditErr != nil {
		s.logger.Error("failed to audit pin verification", zap.Uint("user_id", userID), zap.Error(auditErr))
	}
	return err
}

func (s *PINServiceImpl) verify(ctx context.Context, userID uint, pin string) error {
	var outcome *domain.GateError

	err := s.repo.Mutate(ctx, userID, func(sec *domain.UserSecurity) error {
		outcome = nil
		now := s.clock.Now()

		if !sec.PINSet() {
			outcome = domain.NewGateError(domain.ErrPINNotSet, "pin_not_set")
			return nil
		}

		state := sec.Counter()
		if locked, remaining := domain.PINCounter.Locked(state, now); locked {
			outcome = domain.BlockedError(remaining, false)
			return nil
		}

		if s.hasher.Verify(sec.PINHash, pin) {
			domain.PINCounter.Reset(&state)
			sec.ApplyCounter(state)
			return nil
		}

		tripped := domain.PINCounter.Register(&state, now)
		sec.ApplyCounter(state)
		if tripped {
			outcome = domain.BlockedError(domain.PINLockoutDuration, true)
		} else {
			outcome = domain.NewGateError(domain.ErrInvalidPIN, "invalid_pin")
		}
		return nil
	})
	if err != nil {
		return domain.InternalError(err)
	}

	if outcome != nil {
		if outcome.Transition {
			s.logger.Warn("pin locked", zap.Uint("user_id", userID), zap.Duration("lockout", domain.PINLockoutDuration))
		}
		return outcome
	}
	return nil
}

// AdminUnblock implements domain.PINService
func (s *PINServiceImpl) AdminUnblock(ctx context.Context, actor string, userID uint) error {
	err := s.repo.Mutate(ctx, userID, func(sec *domain.UserSecurity) error {
		sec.ApplyCounter(domain.CounterState{})
		return nil
	})
	if err != nil {
		failed := domain.NewAuditEvent(domain.PINUnblockEvent, domain.SubjectForUser(userID), s.clock.Now()).
			WithUser(userID).
			WithActor(actor).
			WithError(err)
		if auditErr := s.audit.LogEvent(ctx, failed); auditErr != nil {
			s.logger.Error("failed to audit admin unblock", zap.Uint("user_id", userID), zap.Error(auditErr))
		}
		return domain.InternalError(err)
	}

	s.logger.Info("pin unblocked by admin", zap.Uint("user_id", userID), zap.String("actor", actor))
	if err := s.audit.LogAdminUnblock(ctx, actor, userID); err != nil {
		s.logger.Error("failed to audit admin unblock", zap.Uint("user_id", userID), zap.Error(err))
	}
	return nil
}

// Status implements domain.PINService
func (s *PINServiceImpl) Status(ctx context.Context, userID uint) (*domain.PINStatus, error) {
	sec, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, domain.InternalError(err)
	}

	now := s.clock.Now()
	state := sec.Counter()
	locked, _ := domain.PINCounter.Locked(state, now)

	status := &domain.PINStatus{
		PINSet:            sec.PINSet(),
		Blocked:           locked,
		RemainingAttempts: domain.PINCounter.Remaining(state, now),
		TwoFactorEnabled:  sec.TwoFactorEnabled,
	}
	if locked {
		status.BlockedUntil = sec.BlockedUntil
	}
	return status, nil
}

// EnrollTwoFactor implements domain.PINService. The secret is only active
// after the first successful VerifyTwoFactor.
func (s *PINServiceImpl) EnrollTwoFactor(ctx context.Context, userID uint) (*domain.TwoFactorEnrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.totpIssuer,
		AccountName: domain.SubjectForUser(userID),
	})
	if err != nil {
		return nil, domain.InternalError(err)
	}

	err = s.repo.Mutate(ctx, userID, func(sec *domain.UserSecurity) error {
		sec.TwoFactorSecret = key.Secret()
		sec.TwoFactorEnabled = false
		return nil
	})
	if err != nil {
		return nil, domain.InternalError(err)
	}

	return &domain.TwoFactorEnrollment{Secret: key.Secret(), URL: key.URL()}, nil
}

// VerifyTwoFactor implements domain.PINService
func (s *PINServiceImpl) VerifyTwoFactor(ctx context.Context, userID uint, code string) error {
	err := s.verifyTwoFactor(ctx, userID, code)

	event := domain.NewAuditEvent(domain.TwoFactorEvent, domain.SubjectForUser(userID), s.clock.Now()).
		WithUser(userID).
		WithError(err)
	switch {
	case errors.Is(err, domain.ErrTwoFactorNotEnrolled):
		event.WithReason("two_factor_not_enrolled")
	case errors.Is(err, domain.ErrInvalidTwoFactorCode):
		event.WithReason("invalid_two_factor_code")
	}
	if auditErr := s.audit.LogEvent(ctx, event); auditErr != nil {
		s.logger.Error("failed to audit two-factor verification", zap.Uint("user_id", userID), zap.Error(auditErr))
	}
	return err
}

func (s *PINServiceImpl) verifyTwoFactor(ctx context.Context, userID uint, code string) error {
	sec, err := s.repo.Get(ctx, userID)
	if err != nil {
		return domain.InternalError(err)
	}
	if sec.TwoFactorSecret == "" {
		return domain.ErrTwoFactorNotEnrolled
	}

	valid, err := totp.ValidateCustom(code, sec.TwoFactorSecret, s.clock.Now(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil || !valid {
		return domain.ErrInvalidTwoFactorCode
	}

	if sec.TwoFactorEnabled {
		return nil
	}
	err = s.repo.Mutate(ctx, userID, func(sec *domain.UserSecurity) error {
		sec.TwoFactorEnabled = true
		return nil
	})
	if err != nil {
		return domain.InternalError(err)
	}
	return nil
}
