package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/you/walletgate/domain"
	"github.com/you/walletgate/internal/infrastructure/repositories"
	"github.com/you/walletgate/internal/mocks"
	"go.uber.org/zap"
)

const testUserID uint = 7

type pinFixture struct {
	svc   domain.PINService
	repo  *mocks.MockSecurityRepository
	otp   *mocks.MockOTPService
	audit *mocks.MockAuditLogger
	clock *mocks.MockClock
}

func newPINFixture(t *testing.T) *pinFixture {
	t.Helper()

	f := &pinFixture{
		repo:  mocks.NewMockSecurityRepository(),
		otp:   mocks.NewMockOTPService(),
		audit: mocks.NewMockAuditLogger(),
		clock: mocks.NewMockClock(testStart),
	}
	f.svc = NewPINService(f.repo, f.otp, mocks.NewMockSecretHasher(), f.audit, f.clock, zap.NewNop(), "walletgate")
	return f
}

// withPIN stores "1234" for testUserID
func (f *pinFixture) withPIN() {
	f.repo.Put(domain.UserSecurity{UserID: testUserID, PINHash: "hashed_1234"})
}

func TestPINService_Set(t *testing.T) {
	tests := []struct {
		name    string
		pin     string
		token   string
		wantErr error
	}{
		{name: "four digits", pin: "1234", token: "valid-token"},
		{name: "six digits", pin: "123456", token: "valid-token"},
		{name: "too short", pin: "123", token: "valid-token", wantErr: domain.ErrInvalidPINFormat},
		{name: "too long", pin: "1234567", token: "valid-token", wantErr: domain.ErrInvalidPINFormat},
		{name: "not numeric", pin: "12a4", token: "valid-token", wantErr: domain.ErrInvalidPINFormat},
		{name: "without verification", pin: "1234", token: "", wantErr: domain.ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPINFixture(t)

			err := f.svc.Set(context.Background(), testUserID, tt.pin, tt.token)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				status, _ := f.svc.Status(context.Background(), testUserID)
				assert.False(t, status.PINSet)
				return
			}
			require.NoError(t, err)

			sec, _ := f.repo.Get(context.Background(), testUserID)
			assert.Equal(t, "hashed_"+tt.pin, sec.PINHash)
			require.NotNil(t, sec.PINUpdatedAt)
			assert.Len(t, f.audit.EventsOfType(domain.PINChangeEvent), 1)
		})
	}
}

func TestPINService_SetConsumesPINSetupToken(t *testing.T) {
	f := newPINFixture(t)
	var gotType domain.OTPType
	var gotSubject string
	f.otp.ConsumeTokenFunc = func(ctx context.Context, token, subject string, otpType domain.OTPType) error {
		gotType, gotSubject = otpType, subject
		return nil
	}

	require.NoError(t, f.svc.Set(context.Background(), testUserID, "4321", "tok"))
	assert.Equal(t, domain.OTPTypePINSetup, gotType)
	assert.Equal(t, "7", gotSubject)
}

func TestPINService_SetClearsLockout(t *testing.T) {
	f := newPINFixture(t)
	until := testStart.Add(time.Hour)
	f.repo.Put(domain.UserSecurity{UserID: testUserID, PINHash: "hashed_1234", FailedAttempts: 10, BlockedUntil: &until})

	require.NoError(t, f.svc.Set(context.Background(), testUserID, "5678", "valid-token"))
	assert.NoError(t, f.svc.Verify(context.Background(), testUserID, "5678"))
}

func TestPINService_VerifyNotSet(t *testing.T) {
	f := newPINFixture(t)

	err := f.svc.Verify(context.Background(), testUserID, "1234")
	assert.ErrorIs(t, err, domain.ErrPINNotSet)
}

func TestPINService_VerifyResetsCounterOnSuccess(t *testing.T) {
	f := newPINFixture(t)
	f.withPIN()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.ErrorIs(t, f.svc.Verify(ctx, testUserID, "0000"), domain.ErrInvalidPIN)
	}
	status, err := f.svc.Status(ctx, testUserID)
	require.NoError(t, err)
	assert.Equal(t, 6, status.RemainingAttempts)

	require.NoError(t, f.svc.Verify(ctx, testUserID, "1234"))
	status, _ = f.svc.Status(ctx, testUserID)
	assert.Equal(t, domain.PINMaxFailedAttempts, status.RemainingAttempts)
}

func TestPINService_LockoutAfterTenFailures(t *testing.T) {
	f := newPINFixture(t)
	f.withPIN()
	ctx := context.Background()

	var tenth time.Time
	for i := 1; i <= 10; i++ {
		f.clock.Advance(time.Minute)
		err := f.svc.Verify(ctx, testUserID, "9999")
		if i < 10 {
			require.ErrorIs(t, err, domain.ErrInvalidPIN, "attempt %d", i)
			continue
		}
		tenth = f.clock.Now()
		require.ErrorIs(t, err, domain.ErrPINBlocked)
		assert.True(t, domain.AsGateError(err).Transition)
	}

	// the correct PIN is refused while blocked
	f.clock.Advance(time.Hour)
	err := f.svc.Verify(ctx, testUserID, "1234")
	require.ErrorIs(t, err, domain.ErrPINBlocked)
	ge := domain.AsGateError(err)
	assert.False(t, ge.Transition)
	assert.Equal(t, 23*time.Hour, ge.Remaining)
	assert.NotContains(t, ge.PublicMessage(), "10")

	status, err := f.svc.Status(ctx, testUserID)
	require.NoError(t, err)
	assert.True(t, status.Blocked)
	require.NotNil(t, status.BlockedUntil)
	assert.True(t, status.BlockedUntil.Equal(tenth.Add(24*time.Hour)))
	assert.Zero(t, status.RemainingAttempts)

	transitions := 0
	for _, e := range f.audit.EventsOfType(domain.PINVerifyEvent) {
		if e.Metadata["transition"] == "blocked" {
			transitions++
		}
	}
	assert.Equal(t, 1, transitions)

	// lockout elapses on its own
	f.clock.Set(tenth.Add(24 * time.Hour).Add(time.Second))
	assert.NoError(t, f.svc.Verify(ctx, testUserID, "1234"))
}

func TestPINService_FailureAfterElapsedLockoutStartsOver(t *testing.T) {
	f := newPINFixture(t)
	until := testStart.Add(-time.Minute)
	f.repo.Put(domain.UserSecurity{UserID: testUserID, PINHash: "hashed_1234", FailedAttempts: 10, BlockedUntil: &until})

	err := f.svc.Verify(context.Background(), testUserID, "0000")
	require.ErrorIs(t, err, domain.ErrInvalidPIN)

	sec, _ := f.repo.Get(context.Background(), testUserID)
	assert.Equal(t, 1, sec.FailedAttempts)
	assert.Nil(t, sec.BlockedUntil)
}

func TestPINService_AdminUnblock(t *testing.T) {
	f := newPINFixture(t)
	until := testStart.Add(20 * time.Hour)
	f.repo.Put(domain.UserSecurity{UserID: testUserID, PINHash: "hashed_1234", FailedAttempts: 10, BlockedUntil: &until})
	ctx := context.Background()

	require.ErrorIs(t, f.svc.Verify(ctx, testUserID, "1234"), domain.ErrPINBlocked)
	require.NoError(t, f.svc.AdminUnblock(ctx, "admin@example.com", testUserID))
	assert.NoError(t, f.svc.Verify(ctx, testUserID, "1234"))

	unblocks := f.audit.EventsOfType(domain.PINUnblockEvent)
	require.Len(t, unblocks, 1)
	assert.Equal(t, "admin@example.com", unblocks[0].Actor)
	assert.True(t, unblocks[0].Success)
}

func TestPINService_AdminUnblockFailureIsAudited(t *testing.T) {
	f := newPINFixture(t)
	f.repo.MutateFunc = func(ctx context.Context, userID uint, fn func(sec *domain.UserSecurity) error) error {
		return errors.New("database unavailable")
	}

	err := f.svc.AdminUnblock(context.Background(), "admin", testUserID)
	require.ErrorIs(t, err, domain.ErrInternal)

	unblocks := f.audit.EventsOfType(domain.PINUnblockEvent)
	require.Len(t, unblocks, 1)
	assert.False(t, unblocks[0].Success)
}

func TestPINService_ConcurrentFailuresTripOnce(t *testing.T) {
	db := setupTestDB(t)
	repo := repositories.NewSecurityRepository(db)
	clock := mocks.NewMockClock(testStart)
	audit := mocks.NewMockAuditLogger()
	svc := NewPINService(repo, mocks.NewMockOTPService(), mocks.NewMockSecretHasher(), audit, clock, zap.NewNop(), "walletgate")
	ctx := context.Background()

	require.NoError(t, repo.Mutate(ctx, testUserID, func(sec *domain.UserSecurity) error {
		sec.PINHash = "hashed_1234"
		sec.FailedAttempts = 9
		return nil
	}))

	const workers = 6
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = svc.Verify(ctx, testUserID, "0000")
		}(i)
	}
	wg.Wait()

	transitions := 0
	for _, err := range errs {
		require.ErrorIs(t, err, domain.ErrPINBlocked)
		if domain.AsGateError(err).Transition {
			transitions++
		}
	}
	assert.Equal(t, 1, transitions)

	sec, err := repo.Get(ctx, testUserID)
	require.NoError(t, err)
	assert.Equal(t, domain.PINMaxFailedAttempts, sec.FailedAttempts)
	require.NotNil(t, sec.BlockedUntil)
	assert.True(t, sec.BlockedUntil.Equal(testStart.Add(domain.PINLockoutDuration)))
}

func TestPINService_TwoFactor(t *testing.T) {
	f := newPINFixture(t)
	ctx := context.Background()

	err := f.svc.VerifyTwoFactor(ctx, testUserID, "123456")
	require.ErrorIs(t, err, domain.ErrTwoFactorNotEnrolled)

	enrollment, err := f.svc.EnrollTwoFactor(ctx, testUserID)
	require.NoError(t, err)
	assert.NotEmpty(t, enrollment.Secret)
	assert.Contains(t, enrollment.URL, "otpauth://totp/")

	status, _ := f.svc.Status(ctx, testUserID)
	assert.False(t, status.TwoFactorEnabled)

	require.ErrorIs(t, f.svc.VerifyTwoFactor(ctx, testUserID, "000000x"), domain.ErrInvalidTwoFactorCode)

	code, err := totp.GenerateCode(enrollment.Secret, f.clock.Now())
	require.NoError(t, err)
	require.NoError(t, f.svc.VerifyTwoFactor(ctx, testUserID, code))

	status, _ = f.svc.Status(ctx, testUserID)
	assert.True(t, status.TwoFactorEnabled)

	events := f.audit.EventsOfType(domain.TwoFactorEvent)
	require.Len(t, events, 3)
	assert.True(t, events[2].Success)
}
