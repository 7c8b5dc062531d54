package entity

import "time"

// Notification channels
const (
	ChannelPush  = "push"
	ChannelSMS   = "sms"
	ChannelEmail = "email"
)

// Channels lists every delivery channel in dispatch order
var Channels = []string{ChannelPush, ChannelSMS, ChannelEmail}

// Per-channel delivery states
const (
	ChannelPending = "pending"
	ChannelSent    = "sent"
	ChannelFailed  = "failed"
	ChannelSkipped = "skipped"
)

// Overall delivery states
const (
	DeliveryPending = "pending"
	DeliverySent    = "sent"
	DeliveryFailed  = "failed"
)

// ChannelOutcome records the delivery result of a single channel
type ChannelOutcome struct {
	Status    string `json:"status"`
	Attempts  int    `json:"attempts"`
	LastError string `json:"last_error,omitempty"`
}

// Notification is the audit record of one transition's dispatch across all
// channels. Created when a transition fires, mutated only by the dispatcher,
// never deleted.
type Notification struct {
	ID             string         `json:"id"`
	ReportID       string         `json:"report_id"`
	EventKey       string         `json:"event_key"`
	Kind           string         `json:"kind"`
	Title          string         `json:"title"`
	Body           string         `json:"body"`
	ReportStatus   string         `json:"report_status"`
	RecipientPhone string         `json:"recipient_phone,omitempty"`
	RecipientEmail string         `json:"recipient_email,omitempty"`
	Push           ChannelOutcome `json:"push"`
	SMS            ChannelOutcome `json:"sms"`
	Email          ChannelOutcome `json:"email"`
	DeliveryStatus string         `json:"delivery_status"`
	SentAt         *time.Time     `json:"sent_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Outcome returns the recorded outcome for the given channel.
func (n *Notification) Outcome(channel string) ChannelOutcome {
	switch channel {
	case ChannelPush:
		return n.Push
	case ChannelSMS:
		return n.SMS
	case ChannelEmail:
		return n.Email
	}
	return ChannelOutcome{}
}
