package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/you/walletgate/domain"
	"go.uber.org/zap"
)

// OTPServiceImpl implements domain.OTPService. Records live in the OTP
// repository; codes are stored only as digests.
type OTPServiceImpl struct {
	repo      domain.OTPRepository
	deliverer domain.OTPDeliverer
	hasher    domain.SecretHasher
	locker    domain.Locker
	audit     domain.AuditLogger
	clock     domain.Clock
	logger    *zap.Logger
	config    OTPConfig
}

type OTPConfig struct {
	// TokenTTL bounds how long a verification token can wait to be consumed
	TokenTTL time.Duration
	// LockTTL bounds a single request, delivery included
	LockTTL time.Duration
}

// NewOTPService creates a new OTP engine
func NewOTPService(
	repo domain.OTPRepository,
	deliverer domain.OTPDeliverer,
	hasher domain.SecretHasher,
	locker domain.Locker,
	audit domain.AuditLogger,
	clock domain.Clock,
	logger *zap.Logger,
	config OTPConfig,
) domain.OTPService {
	return &OTPServiceImpl{
		repo:      repo,
		deliverer: deliverer,
		hasher:    hasher,
		locker:    locker,
		audit:     audit,
		clock:     clock,
		logger:    logger,
		config:    config,
	}
}

// Request implements domain.OTPService
func (s *OTPServiceImpl) Request(ctx context.Context, subject string, otpType domain.OTPType, channel domain.OTPChannel, policy domain.OTPPolicy) (*domain.OTPRecord, error) {
	rec, err := s.request(ctx, subject, otpType, channel, policy)
	if auditErr := s.audit.LogOTPRequest(ctx, subject, otpType, channel, err); auditErr != nil {
		s.logger.Error("failed to audit otp request", zap.String("subject", subject), zap.Error(auditErr))
	}
	return rec, err
}

func (s *OTPServiceImpl) request(ctx context.Context, subject string, otpType domain.OTPType, channel domain.OTPChannel, policy domain.OTPPolicy) (*domain.OTPRecord, error) {
	if !otpType.Valid() {
		return nil, domain.ErrUnknownOTPType
	}
	if !channel.Valid() {
		return nil, domain.ErrUnknownOTPChannel
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if policy.Type != otpType || policy.Channel != channel {
		return nil, fmt.Errorf("%w: policy is for %s/%s", domain.ErrInvalidPolicy, policy.Type, policy.Channel)
	}

	// one request per slot at a time so the cooldown check and the write
	// cannot interleave with another request
	lockKey := fmt.Sprintf("otp:%s:%s", subject, otpType)
	lockToken, err := s.locker.Acquire(ctx, lockKey, s.config.LockTTL)
	if err != nil {
		return nil, domain.InternalError(err)
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), lockKey, lockToken); err != nil {
			s.logger.Warn("failed to release otp lock", zap.String("key", lockKey), zap.Error(err))
		}
	}()

	now := s.clock.Now()
	current, err := s.repo.Active(ctx, subject, otpType)
	if err != nil && !errors.Is(err, domain.ErrOTPNotFound) {
		return nil, domain.InternalError(err)
	}
	if current != nil && current.InCooldown(channel, policy.Cooldown(), now) {
		return nil, domain.NewGateError(domain.ErrRateLimited, "otp_cooldown")
	}

	code, err := generateCode(policy.CodeLength)
	if err != nil {
		return nil, domain.InternalError(err)
	}
	digest, err := s.hasher.Hash(code)
	if err != nil {
		return nil, domain.InternalError(err)
	}

	record := &domain.OTPRecord{
		ID:          ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		Subject:     subject,
		CodeDigest:  digest,
		Type:        otpType,
		Channel:     channel,
		Status:      domain.OTPStatusPending,
		MaxAttempts: policy.MaxAttempts,
		CreatedAt:   now,
		ExpiresAt:   now.Add(policy.Expiry()),
	}

	// nothing is stored for a code nobody received
	if err := s.deliverer.Deliver(ctx, subject, channel, code, otpType); err != nil {
		return nil, &domain.GateError{Kind: domain.ErrDeliveryFailed, Reason: "delivery_failed", Cause: err}
	}

	err = s.repo.Mutate(ctx, subject, otpType, func(cur *domain.OTPRecord) (*domain.OTPRecord, error) {
		if cur != nil && cur.Status == domain.OTPStatusPending {
			cur.Status = domain.OTPStatusExpired
		}
		return record, nil
	})
	if err != nil {
		return nil, domain.InternalError(err)
	}

	s.logger.Info("otp issued",
		zap.String("subject", subject),
		zap.Stringer("otp_type", otpType),
		zap.Stringer("channel", channel),
		zap.Time("expires_at", record.ExpiresAt),
	)

	issued := *record
	issued.CodeDigest = ""
	return &issued, nil
}

// Verify implements domain.OTPService
func (s *OTPServiceImpl) Verify(ctx context.Context, subject string, otpType domain.OTPType, code string) (*domain.VerificationToken, error) {
	vt, err := s.verify(ctx, subject, otpType, code)
	if auditErr := s.audit.LogOTPVerification(ctx, subject, otpType, err); auditErr != nil {
		s.logger.Error("failed to audit otp verification", zap.String("subject", subject), zap.Error(auditErr))
	}
	return vt, err
}

func (s *OTPServiceImpl) verify(ctx context.Context, subject string, otpType domain.OTPType, code string) (*domain.VerificationToken, error) {
	if !otpType.Valid() {
		return nil, domain.ErrUnknownOTPType
	}

	now := s.clock.Now()
	var outcome *domain.GateError

	err := s.repo.Mutate(ctx, subject, otpType, func(cur *domain.OTPRecord) (*domain.OTPRecord, error) {
		outcome = nil

		if cur == nil {
			outcome = domain.NewGateError(domain.ErrOTPNotFound, "otp_not_found")
			return nil, nil
		}
		switch cur.Status {
		case domain.OTPStatusExpired:
			outcome = domain.NewGateError(domain.ErrOTPExpired, "otp_expired")
			return nil, nil
		case domain.OTPStatusVerified, domain.OTPStatusExhausted:
			outcome = domain.NewGateError(domain.ErrOTPAlreadyResolved, "otp_already_resolved")
			return nil, nil
		}

		next := *cur
		if next.ExpiredAt(now) {
			next.Status = domain.OTPStatusExpired
			outcome = domain.NewGateError(domain.ErrOTPExpired, "otp_expired")
			return &next, nil
		}

		// the counter trips on the attempt after the last allowed one
		counter := domain.AttemptCounter{Threshold: next.MaxAttempts + 1}
		state := domain.CounterState{Attempts: next.Attempts}
		tripped := counter.Register(&state, now)
		next.Attempts = state.Attempts
		if tripped {
			next.Status = domain.OTPStatusExhausted
			outcome = domain.NewGateError(domain.ErrOTPExhausted, "otp_exhausted")
			return &next, nil
		}

		if !s.hasher.Verify(next.CodeDigest, code) {
			outcome = domain.NewGateError(domain.ErrOTPInvalid, "otp_invalid")
			return &next, nil
		}

		next.Status = domain.OTPStatusVerified
		next.VerifiedAt = &now
		return &next, nil
	})
	if err != nil {
		return nil, domain.InternalError(err)
	}
	if outcome != nil {
		return nil, outcome
	}

	token, err := newVerificationToken()
	if err != nil {
		return nil, domain.InternalError(err)
	}
	vt := &domain.VerificationToken{
		Token:     token,
		Subject:   subject,
		Type:      otpType,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.config.TokenTTL),
	}
	if err := s.repo.SaveToken(ctx, vt); err != nil {
		return nil, domain.InternalError(err)
	}
	return vt, nil
}

// ConsumeToken implements domain.OTPService. A token is gone after the
// first call whatever the outcome.
func (s *OTPServiceImpl) ConsumeToken(ctx context.Context, token, subject string, otpType domain.OTPType) error {
	if token == "" {
		return domain.NewGateError(domain.ErrUnauthorized, "otp_token_missing")
	}

	vt, err := s.repo.TakeToken(ctx, token)
	if errors.Is(err, domain.ErrTokenInvalid) {
		return domain.NewGateError(domain.ErrUnauthorized, "otp_token_invalid")
	}
	if err != nil {
		return domain.InternalError(err)
	}

	if vt.Subject != subject || vt.Type != otpType || s.clock.Now().After(vt.ExpiresAt) {
		return domain.NewGateError(domain.ErrUnauthorized, "otp_token_invalid")
	}
	return nil
}

// History implements domain.OTPService. Active and archived records are
// returned newest first without their digests.
func (s *OTPServiceImpl) History(ctx context.Context, subject string) ([]*domain.OTPRecord, error) {
	var records []*domain.OTPRecord
	for _, t := range domain.AllOTPTypes {
		rec, err := s.repo.Active(ctx, subject, t)
		if errors.Is(err, domain.ErrOTPNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	archived, err := s.repo.History(ctx, subject, 0)
	if err != nil {
		return nil, err
	}
	records = append(records, archived...)

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	for _, r := range records {
		r.CodeDigest = ""
	}
	return records, nil
}

// generateCode generates a cryptographically secure numeric code
func generateCode(length int) (string, error) {
	digits := make([]byte, length)

	for i := 0; i < length; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("failed to generate random digit: %w", err)
		}
		digits[i] = byte('0' + num.Int64())
	}

	return string(digits), nil
}

func newVerificationToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate verification token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
