package services

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/you/walletgate/domain"
	"github.com/you/walletgate/internal/infrastructure/auth"
	"github.com/you/walletgate/internal/infrastructure/repositories"
	"github.com/you/walletgate/internal/mocks"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testStart = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// testPolicy returns an enabled policy with small, predictable limits
func testPolicy(otpType domain.OTPType, channel domain.OTPChannel) domain.OTPPolicy {
	return domain.OTPPolicy{
		Type:            otpType,
		Channel:         channel,
		Enabled:         true,
		CodeLength:      6,
		ExpiryMinutes:   5,
		MaxAttempts:     3,
		CooldownMinutes: 1,
	}
}

// setupTestDB creates an in-memory SQLite database with every table migrated
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(repositories.Models()...); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}
	return db
}

// otpFixture bundles an OTP engine backed by miniredis with its collaborators
type otpFixture struct {
	svc       domain.OTPService
	repo      domain.OTPRepository
	deliverer *mocks.MockOTPDeliverer
	audit     *mocks.MockAuditLogger
	clock     *mocks.MockClock
	redis     *miniredis.Miniredis
}

func newOTPFixture(t *testing.T) *otpFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	clock := mocks.NewMockClock(testStart)
	repo := repositories.NewOTPRepository(client, clock, 24*time.Hour)
	f := &otpFixture{
		repo:      repo,
		deliverer: mocks.NewMockOTPDeliverer(),
		audit:     mocks.NewMockAuditLogger(),
		clock:     clock,
		redis:     mr,
	}
	f.svc = NewOTPService(
		repo,
		f.deliverer,
		auth.NewSecretHasher(bcrypt.MinCost),
		mocks.NewMockLocker(),
		f.audit,
		clock,
		zap.NewNop(),
		OTPConfig{TokenTTL: 10 * time.Minute, LockTTL: 5 * time.Second},
	)
	return f
}
