package channels

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jantaseva/civic-workflow/internal/application/port"
	"github.com/jantaseva/civic-workflow/internal/domain/entity"
)

// EmailSender is the development e-mail channel. It logs the message a real
// SMTP or provider adapter would send.
type EmailSender struct {
	logger     *zap.Logger
	senderName string
	delay      time.Duration
}

// NewEmailSender creates a new e-mail sender with the given display name
func NewEmailSender(senderName string, logger *zap.Logger) *EmailSender {
	return &EmailSender{
		logger:     logger,
		senderName: senderName,
		delay:      500 * time.Millisecond,
	}
}

// Channel returns the channel this sender delivers to
func (s *EmailSender) Channel() string {
	return entity.ChannelEmail
}

// Send delivers one e-mail to the citizen's address
func (s *EmailSender) Send(ctx context.Context, recipient string, n *entity.Notification) error {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return ctx.Err()
	}

	s.logger.Info("Email sent",
		zap.String("to", recipient),
		zap.String("from", s.senderName),
		zap.String("subject", n.Title),
		zap.String("report_id", n.ReportID))
	return nil
}

// Verify interface compliance
var _ port.ChannelSender = (*EmailSender)(nil)
