package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/you/walletgate/domain"
	"github.com/you/walletgate/internal/infrastructure/repositories"
	"github.com/you/walletgate/internal/mocks"
	"go.uber.org/zap"
)

type adminFixture struct {
	svc       domain.AdminService
	users     *mocks.MockUserRepository
	pin       *mocks.MockPINService
	policies  *mocks.MockOTPPolicyRepository
	auditRepo domain.AuditRepository
	audit     *mocks.MockAuditLogger
	clock     *mocks.MockClock
}

func newAdminFixture(t *testing.T) *adminFixture {
	t.Helper()

	f := &adminFixture{
		users:     mocks.NewMockUserRepository(),
		pin:       mocks.NewMockPINService(),
		policies:  mocks.NewMockOTPPolicyRepository(testPolicy(domain.OTPTypeLogin, domain.OTPChannelEmail)),
		auditRepo: repositories.NewAuditRepository(setupTestDB(t)),
		audit:     mocks.NewMockAuditLogger(),
		clock:     mocks.NewMockClock(testStart),
	}
	f.svc = NewAdminService(f.users, f.pin, f.policies, f.auditRepo, f.audit, NewRiskScorer(ScorerConfig{}), f.clock, zap.NewNop())
	return f
}

func (f *adminFixture) append(t *testing.T, events ...domain.AuditEvent) {
	t.Helper()
	for i := range events {
		e := events[i]
		if e.ID == "" {
			e.ID = fmt.Sprintf("evt-%s-%d-%d", e.Identity, e.Timestamp.UnixNano(), i)
		}
		require.NoError(t, f.auditRepo.Append(context.Background(), &e))
	}
}

func TestAdminService_UnblockUser(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()

	err := f.svc.UnblockUser(ctx, "admin", testUserID)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	f.users.FindByIDFunc = func(ctx context.Context, id uint) (*domain.User, error) {
		return &domain.User{ID: id, IsActive: true}, nil
	}
	var gotActor string
	f.pin.AdminUnblockFunc = func(ctx context.Context, actor string, userID uint) error {
		gotActor = actor
		return nil
	}
	require.NoError(t, f.svc.UnblockUser(ctx, "admin", testUserID))
	assert.Equal(t, "admin", gotActor)
}

func TestAdminService_UpdateOTPPolicy(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()

	t.Run("valid policy is stored and audited", func(t *testing.T) {
		policy := testPolicy(domain.OTPTypeTransaction, domain.OTPChannelSMS)
		policy.CooldownMinutes = 2
		require.NoError(t, f.svc.UpdateOTPPolicy(ctx, "admin", &policy))

		stored, err := f.svc.GetOTPPolicy(ctx, domain.OTPTypeTransaction, domain.OTPChannelSMS)
		require.NoError(t, err)
		assert.Equal(t, 2, stored.CooldownMinutes)
		assert.Equal(t, testStart, stored.UpdatedAt)

		events := f.audit.EventsOfType(domain.OTPPolicyUpdateEvent)
		require.Len(t, events, 1)
		assert.Equal(t, "admin", events[0].Actor)
	})

	t.Run("out of range values are rejected", func(t *testing.T) {
		policy := testPolicy(domain.OTPTypeLogin, domain.OTPChannelEmail)
		policy.CodeLength = 2
		err := f.svc.UpdateOTPPolicy(ctx, "admin", &policy)
		assert.ErrorIs(t, err, domain.ErrInvalidPolicy)

		stored, err := f.svc.GetOTPPolicy(ctx, domain.OTPTypeLogin, domain.OTPChannelEmail)
		require.NoError(t, err)
		assert.Equal(t, 6, stored.CodeLength)
	})

	t.Run("unknown type is rejected", func(t *testing.T) {
		policy := testPolicy(domain.OTPType(99), domain.OTPChannelEmail)
		err := f.svc.UpdateOTPPolicy(ctx, "admin", &policy)
		assert.ErrorIs(t, err, domain.ErrUnknownOTPType)
	})

	policies, err := f.svc.ListOTPPolicies(ctx)
	require.NoError(t, err)
	assert.Len(t, policies, 2)
}

func TestAdminService_GetMissingPolicy(t *testing.T) {
	f := newAdminFixture(t)

	_, err := f.svc.GetOTPPolicy(context.Background(), domain.OTPTypePasswordReset, domain.OTPChannelSMS)
	assert.ErrorIs(t, err, domain.ErrPolicyNotFound)
}

func TestAdminService_ListSuspiciousActivity(t *testing.T) {
	f := newAdminFixture(t)

	// identity 1 makes three quick transfers; identity 2 is quiet
	for i := 0; i < 3; i++ {
		f.append(t, domain.AuditEvent{
			EventType: domain.TransferAuthorizationEvent,
			Identity:  "1",
			Timestamp: testStart.Add(time.Duration(i) * time.Minute),
			IPAddress: "10.0.0.1",
			Location:  "US",
			Success:   true,
			Amount:    50,
		})
	}
	f.append(t, domain.AuditEvent{
		EventType: domain.TransferAuthorizationEvent,
		Identity:  "2",
		Timestamp: testStart,
		IPAddress: "10.0.0.2",
		Success:   true,
	})
	// identity 3 fails its PIN from many places
	for i := 0; i < 5; i++ {
		f.append(t, domain.AuditEvent{
			EventType: domain.PINVerifyEvent,
			Identity:  "3",
			Timestamp: testStart.Add(time.Duration(i) * time.Hour),
			IPAddress: fmt.Sprintf("192.168.0.%d", i),
			Location:  fmt.Sprintf("L%d", i),
			Success:   false,
			Reason:    "invalid_pin",
		})
	}

	flagged, err := f.svc.ListSuspiciousActivity(context.Background(), testStart.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, flagged, 2)

	assert.Equal(t, "3", flagged[0].Identity)
	assert.Equal(t, 65, flagged[0].Assessment.Score)
	assert.Equal(t, 5, flagged[0].EventCount)
	assert.Equal(t, testStart.Add(4*time.Hour), flagged[0].LastSeen)

	assert.Equal(t, "1", flagged[1].Identity)
	assert.Equal(t, []domain.RiskIndicator{domain.IndicatorVelocity}, flagged[1].Assessment.Indicators)
}

func TestAdminService_LoginLogsAndStatistics(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()

	f.append(t,
		domain.AuditEvent{EventType: domain.UserLoginEvent, Identity: "alice", Timestamp: testStart.Add(-time.Hour), IPAddress: "1.1.1.1", Location: "US", Success: true},
		domain.AuditEvent{EventType: domain.UserLoginEvent, Identity: "alice", Timestamp: testStart.Add(-2 * time.Hour), IPAddress: "2.2.2.2", Location: "US", Reason: "invalid_credentials"},
		domain.AuditEvent{EventType: domain.UserLoginEvent, Identity: "alice", Timestamp: testStart.Add(-3 * time.Hour), IPAddress: "2.2.2.2", Location: "BR", Reason: "invalid_credentials"},
		domain.AuditEvent{EventType: domain.UserLoginEvent, Identity: "alice", Timestamp: testStart.Add(-10 * 24 * time.Hour), IPAddress: "3.3.3.3", Success: true},
		domain.AuditEvent{EventType: domain.UserLoginEvent, Identity: "bob", Timestamp: testStart.Add(-time.Hour), IPAddress: "4.4.4.4", Success: true},
	)

	logs, total, err := f.svc.ListLoginLogs(ctx, domain.AuditFilter{Identity: "alice", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	require.Len(t, logs, 2)
	assert.True(t, logs[0].Timestamp.After(logs[1].Timestamp))

	stats, err := f.svc.LoginStatistics(ctx, "alice", 0)
	require.NoError(t, err)
	assert.Equal(t, 7, stats.Days)
	assert.Equal(t, int64(3), stats.TotalAttempts)
	assert.Equal(t, int64(1), stats.Successful)
	assert.Equal(t, int64(2), stats.Failed)
	assert.InDelta(t, 33.33, stats.SuccessRate, 0.01)
	assert.Equal(t, 2, stats.UniqueIPs)
	assert.Equal(t, 2, stats.UniqueLocations)
	assert.Equal(t, map[string]int64{"invalid_credentials": 2}, stats.FailureReasons)

	stats, err = f.svc.LoginStatistics(ctx, "", 30)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.TotalAttempts)
}
