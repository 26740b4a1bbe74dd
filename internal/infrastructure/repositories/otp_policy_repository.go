package repositories

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/you/walletgate/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DBOTPPolicy is one row per (otp_type, channel)
type DBOTPPolicy struct {
	OTPType         string `gorm:"primaryKey;size:32"`
	Channel         string `gorm:"primaryKey;size:16"`
	Enabled         bool   `gorm:"index"`
	CodeLength      int
	ExpiryMinutes   int
	MaxAttempts     int
	CooldownMinutes int
	UpdatedAt       time.Time
}

func (DBOTPPolicy) TableName() string {
	return "otp_policies"
}

// OTPPolicyRepositoryImpl implements domain.OTPPolicyRepository using GORM
type OTPPolicyRepositoryImpl struct {
	db *gorm.DB
}

func NewOTPPolicyRepository(db *gorm.DB) domain.OTPPolicyRepository {
	return &OTPPolicyRepositoryImpl{db: db}
}

func (r *OTPPolicyRepositoryImpl) Get(ctx context.Context, otpType domain.OTPType, channel domain.OTPChannel) (*domain.OTPPolicy, error) {
	var row DBOTPPolicy
	err := r.db.WithContext(ctx).
		Where("otp_type = ? AND channel = ?", otpType.String(), channel.String()).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrPolicyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load otp policy: %w", err)
	}
	return policyToDomain(&row)
}

func (r *OTPPolicyRepositoryImpl) List(ctx context.Context) ([]domain.OTPPolicy, error) {
	return r.find(ctx, r.db.WithContext(ctx))
}

func (r *OTPPolicyRepositoryImpl) EnabledFor(ctx context.Context, otpType domain.OTPType) ([]domain.OTPPolicy, error) {
	return r.find(ctx, r.db.WithContext(ctx).Where("otp_type = ? AND enabled = ?", otpType.String(), true))
}

// Upsert implements domain.OTPPolicyRepository
func (r *OTPPolicyRepositoryImpl) Upsert(ctx context.Context, policy *domain.OTPPolicy) error {
	row := policyToDB(policy)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to save otp policy: %w", err)
	}
	policy.UpdatedAt = row.UpdatedAt
	return nil
}

// Seed inserts policies that do not exist yet and leaves edited rows alone
func (r *OTPPolicyRepositoryImpl) Seed(ctx context.Context, policies []domain.OTPPolicy) error {
	for i := range policies {
		row := policyToDB(&policies[i])
		if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error; err != nil {
			return fmt.Errorf("failed to seed otp policy %s/%s: %w", row.OTPType, row.Channel, err)
		}
	}
	return nil
}

func (r *OTPPolicyRepositoryImpl) find(ctx context.Context, q *gorm.DB) ([]domain.OTPPolicy, error) {
	var rows []DBOTPPolicy
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list otp policies: %w", err)
	}

	out := make([]domain.OTPPolicy, 0, len(rows))
	for i := range rows {
		p, err := policyToDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	sortPolicies(out)
	return out, nil
}

func sortPolicies(ps []domain.OTPPolicy) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].Type != ps[j].Type {
			return ps[i].Type < ps[j].Type
		}
		return ps[i].Channel < ps[j].Channel
	})
}

func policyToDB(p *domain.OTPPolicy) *DBOTPPolicy {
	return &DBOTPPolicy{
		OTPType:         p.Type.String(),
		Channel:         p.Channel.String(),
		Enabled:         p.Enabled,
		CodeLength:      p.CodeLength,
		ExpiryMinutes:   p.ExpiryMinutes,
		MaxAttempts:     p.MaxAttempts,
		CooldownMinutes: p.CooldownMinutes,
	}
}

func policyToDomain(row *DBOTPPolicy) (*domain.OTPPolicy, error) {
	t, err := domain.ParseOTPType(row.OTPType)
	if err != nil {
		return nil, err
	}
	c, err := domain.ParseOTPChannel(row.Channel)
	if err != nil {
		return nil, err
	}
	return &domain.OTPPolicy{
		Type:            t,
		Channel:         c,
		Enabled:         row.Enabled,
		CodeLength:      row.CodeLength,
		ExpiryMinutes:   row.ExpiryMinutes,
		MaxAttempts:     row.MaxAttempts,
		CooldownMinutes: row.CooldownMinutes,
		UpdatedAt:       row.UpdatedAt,
	}, nil
}
