package channels

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jantaseva/civic-workflow/internal/application/port"
	"github.com/jantaseva/civic-workflow/internal/domain/entity"
)

// SMSSender is the development SMS channel. It logs the message a real
// gateway adapter would send.
type SMSSender struct {
	logger *zap.Logger
	sender string
	delay  time.Duration
}

// NewSMSSender creates a new SMS sender with the given sender id
func NewSMSSender(sender string, logger *zap.Logger) *SMSSender {
	return &SMSSender{
		logger: logger,
		sender: sender,
		delay:  200 * time.Millisecond,
	}
}

// Channel returns the channel this sender delivers to
func (s *SMSSender) Channel() string {
	return entity.ChannelSMS
}

// Send delivers one SMS to the citizen's phone
func (s *SMSSender) Send(ctx context.Context, recipient string, n *entity.Notification) error {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return ctx.Err()
	}

	s.logger.Info("SMS sent",
		zap.String("to", recipient),
		zap.String("from", s.sender),
		zap.String("report_id", n.ReportID),
		zap.Int("body_length", len(n.Body)))
	return nil
}

// Verify interface compliance
var _ port.ChannelSender = (*SMSSender)(nil)
