package notifications

import (
	"context"

	"go.uber.org/zap"
)

// LogSender writes outgoing messages to the log instead of a provider.
// It is selected with the "log" provider for local development.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (l *LogSender) SendSMS(ctx context.Context, to, message string) error {
	l.logger.Info("sms dispatched", zap.String("to", to), zap.String("message", message))
	return nil
}

func (l *LogSender) SendEmail(ctx context.Context, to, subject, body string) error {
	l.logger.Info("email dispatched", zap.String("to", to), zap.String("subject", subject), zap.String("body", body))
	return nil
}
