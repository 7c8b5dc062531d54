package port

import (
	"context"

	"github.com/jantaseva/civic-workflow/internal/domain/entity"
)

// ChannelSender is the capability contract a delivery channel implements.
// Push, SMS and e-mail providers are external collaborators; the dispatcher
// depends only on this contract.
type ChannelSender interface {
	// Channel returns the channel this sender delivers to
	Channel() string

	// Send attempts one delivery of the notification to the recipient.
	// The recipient is a phone number for push and SMS, an address for
	// e-mail. A returned error is a failed attempt; the dispatcher owns
	// the retry policy.
	Send(ctx context.Context, recipient string, notification *entity.Notification) error
}
