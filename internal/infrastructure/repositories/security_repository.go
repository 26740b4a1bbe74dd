package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/you/walletgate/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DBUserSecurity holds the PIN digest, the failure counter and the optional
// TOTP secret of one user
type DBUserSecurity struct {
	UserID           uint       `gorm:"primaryKey;autoIncrement:false"`
	PINHash          string     `gorm:"column:pin_hash;size:255"`
	FailedAttempts   int        `gorm:"not null;default:0"`
	BlockedUntil     *time.Time `gorm:"index"`
	TwoFactorSecret  string     `gorm:"size:64"`
	TwoFactorEnabled bool
	PINUpdatedAt     *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (DBUserSecurity) TableName() string {
	return "user_security_credentials"
}

// SecurityRepositoryImpl implements domain.SecurityRepository using GORM
type SecurityRepositoryImpl struct {
	db *gorm.DB
}

// NewSecurityRepository creates a new security credential repository
func NewSecurityRepository(db *gorm.DB) domain.SecurityRepository {
	return &SecurityRepositoryImpl{db: db}
}

// Get implements domain.SecurityRepository. A user without a row gets an
// empty record.
func (r *SecurityRepositoryImpl) Get(ctx context.Context, userID uint) (*domain.UserSecurity, error) {
	var row DBUserSecurity
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &domain.UserSecurity{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load security record: %w", err)
	}
	return securityToDomain(&row), nil
}

// Mutate implements domain.SecurityRepository. The row is created if
// missing and then read with SELECT ... FOR UPDATE, so concurrent callers
// for one user run one at a time.
func (r *SecurityRepositoryImpl) Mutate(ctx context.Context, userID uint, fn func(sec *domain.UserSecurity) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seed := DBUserSecurity{UserID: userID}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return fmt.Errorf("failed to ensure security record: %w", err)
		}

		var row DBUserSecurity
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			First(&row).Error; err != nil {
			return fmt.Errorf("failed to lock security record: %w", err)
		}

		sec := securityToDomain(&row)
		if err := fn(sec); err != nil {
			return err
		}

		updated := securityToDB(sec)
		updated.CreatedAt = row.CreatedAt
		if err := tx.Save(updated).Error; err != nil {
			return fmt.Errorf("failed to save security record: %w", err)
		}
		return nil
	})
}

func securityToDomain(row *DBUserSecurity) *domain.UserSecurity {
	return &domain.UserSecurity{
		UserID:           row.UserID,
		PINHash:          row.PINHash,
		FailedAttempts:   row.FailedAttempts,
		BlockedUntil:     utcPtr(row.BlockedUntil),
		TwoFactorSecret:  row.TwoFactorSecret,
		TwoFactorEnabled: row.TwoFactorEnabled,
		PINUpdatedAt:     utcPtr(row.PINUpdatedAt),
		UpdatedAt:        row.UpdatedAt,
	}
}

func securityToDB(sec *domain.UserSecurity) *DBUserSecurity {
	return &DBUserSecurity{
		UserID:           sec.UserID,
		PINHash:          sec.PINHash,
		FailedAttempts:   sec.FailedAttempts,
		BlockedUntil:     utcPtr(sec.BlockedUntil),
		TwoFactorSecret:  sec.TwoFactorSecret,
		TwoFactorEnabled: sec.TwoFactorEnabled,
		PINUpdatedAt:     utcPtr(sec.PINUpdatedAt),
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
