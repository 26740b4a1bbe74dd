package notifications

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/you/walletgate/domain"
	"github.com/you/walletgate/internal/mocks"
	"go.uber.org/zap"
)

func newTestDeliverer(t *testing.T, user *domain.User) (domain.OTPDeliverer, *mocks.MockSMSSender, *mocks.MockEmailSender) {
	t.Helper()

	users := mocks.NewMockUserRepository()
	users.FindByIDFunc = func(ctx context.Context, id uint) (*domain.User, error) {
		if user != nil && id == user.ID {
			return user, nil
		}
		return nil, domain.ErrUserNotFound
	}
	sms := mocks.NewMockSMSSender()
	email := mocks.NewMockEmailSender()
	return NewChannelDeliverer(users, sms, email, zap.NewNop()), sms, email
}

func TestChannelDeliverer_Deliver(t *testing.T) {
	user := &domain.User{ID: 7, Email: "alice@example.com", Phone: "+15550001111"}

	tests := []struct {
		name      string
		user      *domain.User
		subject   string
		channel   domain.OTPChannel
		wantErr   error
		wantSMS   int
		wantEmail int
	}{
		{name: "sms goes to phone", user: user, subject: "7", channel: domain.OTPChannelSMS, wantSMS: 1},
		{name: "email goes to inbox", user: user, subject: "7", channel: domain.OTPChannelEmail, wantEmail: 1},
		{name: "unknown user", user: user, subject: "8", channel: domain.OTPChannelSMS, wantErr: domain.ErrUserNotFound},
		{name: "malformed subject", user: user, subject: "alice", channel: domain.OTPChannelSMS, wantErr: domain.ErrUserNotFound},
		{name: "missing phone", user: &domain.User{ID: 7, Email: "a@b.c"}, subject: "7", channel: domain.OTPChannelSMS, wantErr: domain.ErrNoDestination},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, sms, email := newTestDeliverer(t, tt.user)

			err := d.Deliver(context.Background(), tt.subject, tt.channel, "482913", domain.OTPTypeTransaction)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Len(t, sms.Sent, tt.wantSMS)
			assert.Len(t, email.Sent, tt.wantEmail)
		})
	}
}

func TestChannelDeliverer_SenderFailure(t *testing.T) {
	d, sms, _ := newTestDeliverer(t, &domain.User{ID: 1, Phone: "+15550001111"})
	sms.SendSMSFunc = func(ctx context.Context, to, message string) error {
		return errors.New("carrier rejected")
	}

	err := d.Deliver(context.Background(), "1", domain.OTPChannelSMS, "000000", domain.OTPTypeLogin)
	assert.ErrorIs(t, err, domain.ErrDeliveryFailed)
}

func TestChannelDeliverer_MessageCarriesCode(t *testing.T) {
	d, sms, _ := newTestDeliverer(t, &domain.User{ID: 1, Phone: "+15550001111"})

	require.NoError(t, d.Deliver(context.Background(), "1", domain.OTPChannelSMS, "123987", domain.OTPTypePINSetup))
	require.Len(t, sms.Sent, 1)
	assert.Equal(t, "+15550001111", sms.Sent[0].To)
	assert.Contains(t, sms.Sent[0].Body, "123987")
	assert.Contains(t, sms.Sent[0].Body, "pin_setup")
}
