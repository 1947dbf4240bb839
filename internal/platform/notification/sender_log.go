package notification

import (
	"context"

	"github.com/rs/zerolog"
)

// LogEmailSender writes outgoing email to the structured log instead of a
// real gateway. Used until an SMTP integration is configured.
type LogEmailSender struct {
	log zerolog.Logger
}

func NewLogEmailSender(log zerolog.Logger) *LogEmailSender {
	return &LogEmailSender{log: log}
}

func (s *LogEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	s.log.Info().
		Str("channel", "email").
		Str("to", to).
		Str("subject", subject).
		Str("body", body).
		Msg("notification dispatched")
	return nil
}

// LogSMSSender is the SMS counterpart of LogEmailSender.
type LogSMSSender struct {
	log zerolog.Logger
}

func NewLogSMSSender(log zerolog.Logger) *LogSMSSender {
	return &LogSMSSender{log: log}
}

func (s *LogSMSSender) SendSMS(_ context.Context, to, body string) error {
	s.log.Info().
		Str("channel", "sms").
		Str("to", to).
		Str("body", body).
		Msg("notification dispatched")
	return nil
}
