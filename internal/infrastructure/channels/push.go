package channels

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jantaseva/civic-workflow/internal/application/port"
	"github.com/jantaseva/civic-workflow/internal/domain/entity"
)

// PushSender is the development push channel. It logs the payload a real
// provider adapter (FCM or similar) would send; production deployments swap
// in a provider implementation behind the same contract.
type PushSender struct {
	logger *zap.Logger
	delay  time.Duration
}

// NewPushSender creates a new push sender
func NewPushSender(logger *zap.Logger) *PushSender {
	return &PushSender{
		logger: logger,
		delay:  300 * time.Millisecond,
	}
}

// Channel returns the channel this sender delivers to
func (s *PushSender) Channel() string {
	return entity.ChannelPush
}

// Send delivers one push notification to the citizen's device topic
func (s *PushSender) Send(ctx context.Context, recipient string, n *entity.Notification) error {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return ctx.Err()
	}

	s.logger.Info("Push notification sent",
		zap.String("topic", "user_"+recipient),
		zap.String("title", n.Title),
		zap.String("report_id", n.ReportID),
		zap.String("status", n.ReportStatus))
	return nil
}

// Verify interface compliance
var _ port.ChannelSender = (*PushSender)(nil)
