package notification

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/mandiworks/tradecore-go/internal/domain/notify"
)

// LogSender stands in for an external delivery channel (PUSH, EMAIL,
// SMS) that is not wired in this deployment. It logs the delivery and
// always acks, so channel preferences keep working without the gateway.
type LogSender struct {
	channel notify.Channel
	logger  zerolog.Logger
}

// NewLogSender creates a logging stand-in for the given channel
func NewLogSender(channel notify.Channel, logger zerolog.Logger) *LogSender {
	return &LogSender{
		channel: channel,
		logger:  logger.With().Str("component", "notify_"+string(channel)).Logger(),
	}
}

// Channel identifies the stood-in channel
func (s *LogSender) Channel() notify.Channel {
	return s.channel
}

// Send logs the would-be delivery
func (s *LogSender) Send(_ context.Context, userID string, payload notify.Payload) error {
	s.logger.Info().
		Str("user_id", userID).
		Str("event_type", payload.EventType).
		Str("subject", payload.Subject).
		Msg("notification delivered")
	return nil
}
