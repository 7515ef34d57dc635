package notification

import (
	"context"

	"github.com/rs/zerolog"
)

// LogPushSender writes push notifications to the application log instead of a
// delivery gateway. It is the default sender until a real push integration is
// configured.
type LogPushSender struct {
	logger zerolog.Logger
}

// NewLogPushSender creates a LogPushSender.
func NewLogPushSender(logger zerolog.Logger) *LogPushSender {
	return &LogPushSender{logger: logger.With().Str("channel", "push").Logger()}
}

// SendPush logs the notification and reports success.
func (s *LogPushSender) SendPush(_ context.Context, to, title, body string) error {
	s.logger.Info().
		Str("to", to).
		Str("title", title).
		Str("body", body).
		Msg("notification dispatched")
	return nil
}

// LogSMSSender writes SMS messages to the application log instead of an SMS
// gateway.
type LogSMSSender struct {
	logger zerolog.Logger
}

// NewLogSMSSender creates a LogSMSSender.
func NewLogSMSSender(logger zerolog.Logger) *LogSMSSender {
	return &LogSMSSender{logger: logger.With().Str("channel", "sms").Logger()}
}

// SendSMS logs the message and reports success.
func (s *LogSMSSender) SendSMS(_ context.Context, to, body string) error {
	s.logger.Info().
		Str("to", to).
		Str("body", body).
		Msg("notification dispatched")
	return nil
}
