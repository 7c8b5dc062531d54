package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jantaseva/civic-workflow/internal/application/port"
	"github.com/jantaseva/civic-workflow/internal/domain/entity"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Config holds the per-channel retry policy
type Config struct {
	// MaxRetries is the number of retries after the first attempt
	MaxRetries int

	// RetryBackoff is the fixed delay between attempts on one channel
	RetryBackoff time.Duration
}

// DefaultConfig returns the default retry policy
func DefaultConfig() Config {
	return Config{
		MaxRetries:   2,
		RetryBackoff: 500 * time.Millisecond,
	}
}

// Dispatcher fans a composed notification out to every channel the report
// has contact data for, records the audit row before any send, and settles
// per-channel and overall delivery status after retries are exhausted.
// Dispatch is idempotent per transition event key.
type Dispatcher struct {
	notifRepo port.NotificationRepository
	senders   map[string]port.ChannelSender
	config    Config
	logger    Logger

	wg     sync.WaitGroup
	closed atomic.Bool
}

// New creates a dispatcher over the given channel senders
func New(notifRepo port.NotificationRepository, senders []port.ChannelSender, config Config, logger Logger) *Dispatcher {
	byChannel := make(map[string]port.ChannelSender, len(senders))
	for _, s := range senders {
		byChannel[s.Channel()] = s
	}

	return &Dispatcher{
		notifRepo: notifRepo,
		senders:   byChannel,
		config:    config,
		logger:    logger,
	}
}

// DispatchAsync runs Dispatch in the background. The caller is not blocked
// for channel sends; outcomes are observable through the notification audit
// trail. Close waits for in-flight dispatches.
func (d *Dispatcher) DispatchAsync(ctx context.Context, draft *entity.Notification) bool {
	if d.closed.Load() {
		d.logger.Error("Dispatch rejected, dispatcher closed", "report_id", draft.ReportID, "event_key", draft.EventKey)
		return false
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if _, err := d.Dispatch(ctx, draft); err != nil {
			d.logger.Error("Dispatch failed", "error", err, "report_id", draft.ReportID, "event_key", draft.EventKey)
		}
	}()
	return true
}

// Dispatch delivers a composed notification and blocks until every channel
// has settled. Invoking it twice for the same transition event finds the
// already-created row and skips re-dispatch unless delivery is still pending.
func (d *Dispatcher) Dispatch(ctx context.Context, draft *entity.Notification) (*entity.Notification, error) {
	notification, fresh, err := d.ensureRecord(ctx, draft)
	if err != nil {
		return nil, err
	}

	if !fresh && notification.DeliveryStatus != entity.DeliveryPending {
		d.logger.Info("Duplicate dispatch skipped",
			"notification_id", notification.ID,
			"event_key", notification.EventKey,
			"delivery_status", notification.DeliveryStatus)
		return notification, nil
	}

	var wg sync.WaitGroup
	for _, channel := range entity.Channels {
		if notification.Outcome(channel).Status != entity.ChannelPending {
			continue
		}

		sender, ok := d.senders[channel]
		if !ok {
			d.logger.Error("No sender registered for channel", "channel", channel)
			continue
		}

		wg.Add(1)
		go func(channel string, sender port.ChannelSender) {
			defer wg.Done()
			d.deliverChannel(ctx, notification, channel, sender)
		}(channel, sender)
	}
	wg.Wait()

	return d.finalize(ctx, notification.ID)
}

// Close waits for all background dispatches to complete
func (d *Dispatcher) Close() error {
	d.closed.Store(true)
	d.wg.Wait()
	return nil
}

// ensureRecord creates the pending audit row, or returns the existing one
// when this transition event was already dispatched.
func (d *Dispatcher) ensureRecord(ctx context.Context, draft *entity.Notification) (*entity.Notification, bool, error) {
	existing, err := d.notifRepo.GetByEventKey(ctx, draft.EventKey)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, port.ErrNotFound) {
		return nil, false, fmt.Errorf("lookup notification event: %w", err)
	}

	notification := *draft
	notification.ID = uuid.NewString()
	notification.DeliveryStatus = entity.DeliveryPending
	notification.Push = initialOutcome(notification.RecipientPhone)
	notification.SMS = initialOutcome(notification.RecipientPhone)
	notification.Email = initialOutcome(notification.RecipientEmail)

	if err := d.notifRepo.Create(ctx, &notification); err != nil {
		if errors.Is(err, port.ErrDuplicateEvent) {
			// Lost the insert race with a concurrent dispatch of the same event
			existing, lookupErr := d.notifRepo.GetByEventKey(ctx, draft.EventKey)
			if lookupErr != nil {
				return nil, false, fmt.Errorf("lookup after duplicate event: %w", lookupErr)
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("create notification: %w", err)
	}

	d.logger.Info("Notification recorded",
		"notification_id", notification.ID,
		"report_id", notification.ReportID,
		"kind", notification.Kind)
	return &notification, true, nil
}

func initialOutcome(recipient string) entity.ChannelOutcome {
	if recipient == "" {
		return entity.ChannelOutcome{Status: entity.ChannelSkipped}
	}
	return entity.ChannelOutcome{Status: entity.ChannelPending}
}

// deliverChannel attempts one channel until success or the retry budget is
// exhausted. Failure of one channel never blocks the others.
func (d *Dispatcher) deliverChannel(ctx context.Context, n *entity.Notification, channel string, sender port.ChannelSender) {
	recipient := n.RecipientEmail
	if channel == entity.ChannelPush || channel == entity.ChannelSMS {
		recipient = n.RecipientPhone
	}

	var lastErr error
	attempts := 0
	for attempts <= d.config.MaxRetries {
		if attempts > 0 {
			select {
			case <-time.After(d.config.RetryBackoff):
			case <-ctx.Done():
				d.settleChannel(ctx, n.ID, channel, entity.ChannelFailed, attempts, ctx.Err().Error())
				return
			}
		}

		attempts++
		if lastErr = sender.Send(ctx, recipient, n); lastErr == nil {
			d.settleChannel(ctx, n.ID, channel, entity.ChannelSent, attempts, "")
			return
		}

		d.logger.Error("Channel send failed",
			"notification_id", n.ID,
			"channel", channel,
			"attempt", attempts,
			"error", lastErr)
	}

	d.settleChannel(ctx, n.ID, channel, entity.ChannelFailed, attempts, lastErr.Error())
}

// settleChannel records a channel's terminal outcome. The compare-and-set on
// the pending status tolerates a concurrent redelivery settling the same row.
func (d *Dispatcher) settleChannel(ctx context.Context, id, channel, status string, attempts int, lastErr string) {
	updated, err := d.notifRepo.UpdateChannelStatus(ctx, id, channel, entity.ChannelPending, status, attempts, lastErr)
	if err != nil {
		d.logger.Error("Failed to record channel outcome",
			"notification_id", id, "channel", channel, "status", status, "error", err)
		return
	}
	if !updated {
		d.logger.Info("Channel outcome already settled elsewhere",
			"notification_id", id, "channel", channel)
	}
}

// finalize computes the overall delivery status once channels have settled
func (d *Dispatcher) finalize(ctx context.Context, id string) (*entity.Notification, error) {
	notification, err := d.notifRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reload notification: %w", err)
	}

	status := overallStatus(notification)
	if status == entity.DeliveryPending {
		// Another worker still owns an unsettled channel
		return notification, nil
	}

	if err := d.notifRepo.FinalizeDelivery(ctx, id, status); err != nil {
		return nil, fmt.Errorf("finalize delivery: %w", err)
	}
	notification.DeliveryStatus = status

	d.logger.Info("Notification delivery settled",
		"notification_id", id,
		"delivery_status", status)
	return notification, nil
}

// overallStatus is sent once any attempted channel succeeded, failed only
// when every attempted channel exhausted its retries. A notification with no
// attemptable channel settles as failed so the audit trail still records the
// transition.
func overallStatus(n *entity.Notification) string {
	var pending, sent int
	for _, channel := range entity.Channels {
		switch n.Outcome(channel).Status {
		case entity.ChannelPending:
			pending++
		case entity.ChannelSent:
			sent++
		}
	}

	switch {
	case pending > 0:
		return entity.DeliveryPending
	case sent > 0:
		return entity.DeliverySent
	default:
		return entity.DeliveryFailed
	}
}
