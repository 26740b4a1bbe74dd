package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/you/walletgate/domain"
	"go.uber.org/zap"
)

const (
	defaultStatisticsDays = 7
	maxStatisticsDays     = 90
)

// AdminServiceImpl implements domain.AdminService
type AdminServiceImpl struct {
	users     domain.UserRepository
	pin       domain.PINService
	policies  domain.OTPPolicyRepository
	auditRepo domain.AuditRepository
	audit     domain.AuditLogger
	scorer    domain.RiskScorer
	clock     domain.Clock
	validate  *validator.Validate
	logger    *zap.Logger
}

// NewAdminService creates the admin console operations
func NewAdminService(
	users domain.UserRepository,
	pinSvc domain.PINService,
	policies domain.OTPPolicyRepository,
	auditRepo domain.AuditRepository,
	audit domain.AuditLogger,
	scorer domain.RiskScorer,
	clock domain.Clock,
	logger *zap.Logger,
) domain.AdminService {
	return &AdminServiceImpl{
		users:     users,
		pin:       pinSvc,
		policies:  policies,
		auditRepo: auditRepo,
		audit:     audit,
		scorer:    scorer,
		clock:     clock,
		validate:  validator.New(),
		logger:    logger,
	}
}

// UnblockUser implements domain.AdminService
func (s *AdminServiceImpl) UnblockUser(ctx context.Context, actor string, userID uint) error {
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return err
	}
	return s.pin.AdminUnblock(ctx, actor, userID)
}

// GetOTPPolicy implements domain.AdminService
func (s *AdminServiceImpl) GetOTPPolicy(ctx context.Context, otpType domain.OTPType, channel domain.OTPChannel) (*domain.OTPPolicy, error) {
	return s.policies.Get(ctx, otpType, channel)
}

// ListOTPPolicies implements domain.AdminService
func (s *AdminServiceImpl) ListOTPPolicies(ctx context.Context) ([]domain.OTPPolicy, error) {
	return s.policies.List(ctx)
}

// UpdateOTPPolicy implements domain.AdminService
func (s *AdminServiceImpl) UpdateOTPPolicy(ctx context.Context, actor string, policy *domain.OTPPolicy) error {
	if err := s.validate.Struct(policy); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidPolicy, err)
	}
	if err := policy.Validate(); err != nil {
		return err
	}

	policy.UpdatedAt = s.clock.Now()
	if err := s.policies.Upsert(ctx, policy); err != nil {
		return err
	}

	s.logger.Info("otp policy updated",
		zap.String("actor", actor),
		zap.Stringer("otp_type", policy.Type),
		zap.Stringer("channel", policy.Channel),
		zap.Bool("enabled", policy.Enabled),
	)
	if err := s.audit.LogPolicyUpdate(ctx, actor, policy); err != nil {
		s.logger.Error("failed to audit otp policy update", zap.String("actor", actor), zap.Error(err))
	}
	return nil
}

// ListSuspiciousActivity implements domain.AdminService. Each identity seen
// since the cutoff is scored over its own history; only flagged identities
// are returned, highest score first.
func (s *AdminServiceImpl) ListSuspiciousActivity(ctx context.Context, since time.Time) ([]domain.SuspiciousActivity, error) {
	identities, err := s.auditRepo.Identities(ctx, since)
	if err != nil {
		return nil, err
	}

	flagged := []domain.SuspiciousActivity{}
	for _, identity := range identities {
		history, err := s.auditRepo.Series(ctx, identity, since)
		if err != nil {
			return nil, err
		}
		if len(history) == 0 {
			continue
		}

		assessment := s.scorer.Score(&domain.TransferIntent{}, history)
		if len(assessment.Indicators) == 0 {
			continue
		}
		flagged = append(flagged, domain.SuspiciousActivity{
			Identity:   identity,
			Assessment: assessment,
			EventCount: len(history),
			LastSeen:   history[len(history)-1].Timestamp,
		})
	}

	sort.SliceStable(flagged, func(i, j int) bool {
		return flagged[i].Assessment.Score > flagged[j].Assessment.Score
	})
	return flagged, nil
}

// ListLoginLogs implements domain.AdminService
func (s *AdminServiceImpl) ListLoginLogs(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEvent, int64, error) {
	return s.auditRepo.List(ctx, filter)
}

// LoginStatistics implements domain.AdminService. Every recorded attempt of
// the identity counts; an empty identity covers all of them.
func (s *AdminServiceImpl) LoginStatistics(ctx context.Context, identity string, days int) (*domain.LoginStatistics, error) {
	if days <= 0 {
		days = defaultStatisticsDays
	}
	if days > maxStatisticsDays {
		days = maxStatisticsDays
	}
	since := s.clock.Now().Add(-time.Duration(days) * 24 * time.Hour)

	counts, err := s.auditRepo.CountByOutcome(ctx, identity, "", since, time.Time{})
	if err != nil {
		return nil, err
	}
	ips, err := s.auditRepo.DistinctIPs(ctx, identity, since)
	if err != nil {
		return nil, err
	}
	locations, err := s.auditRepo.DistinctLocations(ctx, identity, since)
	if err != nil {
		return nil, err
	}
	reasons, err := s.auditRepo.FailureReasons(ctx, identity, since)
	if err != nil {
		return nil, err
	}

	stats := &domain.LoginStatistics{
		Identity:        identity,
		Days:            days,
		TotalAttempts:   counts.Total(),
		Successful:      counts.Success,
		Failed:          counts.Failure,
		UniqueIPs:       ips,
		UniqueLocations: locations,
		FailureReasons:  reasons,
	}
	if counts.Total() > 0 {
		stats.SuccessRate = float64(counts.Success) / float64(counts.Total()) * 100
	}
	return stats, nil
}
