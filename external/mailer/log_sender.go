package mailer

import (
	"context"

	"github.com/riskibarqy/castaway-league/internal/domain/notification"
	"github.com/riskibarqy/castaway-league/internal/platform/logging"
)

// LogSender writes messages to the log instead of delivering them. It backs
// the dispatcher when no relay is configured.
type LogSender struct {
	logger *logging.Logger
}

func NewLogSender(logger *logging.Logger) *LogSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogSender{logger: logger.Component("mailer")}
}

func (s *LogSender) Send(ctx context.Context, message notification.Message) error {
	s.logger.InfoContext(ctx, "notification delivered to log",
		"message_id", message.ID,
		"kind", message.Kind,
		"recipient_id", message.RecipientID,
		"subject", message.Subject,
	)
	return nil
}
