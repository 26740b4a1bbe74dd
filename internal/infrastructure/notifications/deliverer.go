package notifications

import (
	"context"
	"fmt"

	"github.com/you/walletgate/domain"
	"go.uber.org/zap"
)

// ChannelDeliverer implements domain.OTPDeliverer by resolving the subject's
// destination for the channel and handing the code to the matching sender.
type ChannelDeliverer struct {
	users  domain.UserRepository
	sms    domain.SMSSender
	email  domain.EmailSender
	logger *zap.Logger
}

// NewChannelDeliverer creates a deliverer over the configured senders
func NewChannelDeliverer(users domain.UserRepository, sms domain.SMSSender, email domain.EmailSender, logger *zap.Logger) domain.OTPDeliverer {
	return &ChannelDeliverer{users: users, sms: sms, email: email, logger: logger}
}

// Deliver implements domain.OTPDeliverer
func (d *ChannelDeliverer) Deliver(ctx context.Context, subject string, channel domain.OTPChannel, code string, otpType domain.OTPType) error {
	userID, err := domain.UserIDFromSubject(subject)
	if err != nil {
		return err
	}
	user, err := d.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	message := fmt.Sprintf("Your %s verification code is %s. Do not share it with anyone.", otpType, code)

	switch channel {
	case domain.OTPChannelSMS:
		if user.Phone == "" {
			return domain.ErrNoDestination
		}
		err = d.sms.SendSMS(ctx, user.Phone, message)
	case domain.OTPChannelEmail:
		if user.Email == "" {
			return domain.ErrNoDestination
		}
		err = d.email.SendEmail(ctx, user.Email, "Your verification code", message)
	default:
		return domain.ErrUnknownOTPChannel
	}

	if err != nil {
		d.logger.Warn("otp delivery failed",
			zap.String("subject", subject),
			zap.Stringer("channel", channel),
			zap.Stringer("otp_type", otpType),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
	}
	return nil
}
