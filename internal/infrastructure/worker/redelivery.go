package worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/jantaseva/civic-workflow/internal/application/port"
	"github.com/jantaseva/civic-workflow/internal/domain/entity"
)

// Redispatcher re-runs delivery for a notification; the dispatcher's event
// key idempotency makes the re-run safe.
type Redispatcher interface {
	Dispatch(ctx context.Context, draft *entity.Notification) (*entity.Notification, error)
}

// RedeliveryWorker sweeps notifications stuck in pending delivery. A row
// stays pending when the process died between recording the notification and
// settling its channels; the sweep re-dispatches the unsettled channels.
type RedeliveryWorker struct {
	schedule   string
	staleAfter time.Duration
	batchSize  int

	notifRepo  port.NotificationRepository
	dispatcher Redispatcher
	logger     *zap.Logger

	cronEngine *cron.Cron
	ctx        context.Context
}

// NewRedeliveryWorker creates a redelivery worker. The schedule is a cron
// expression; staleAfter is how long a notification may sit pending before
// the sweep picks it up.
func NewRedeliveryWorker(
	schedule string,
	staleAfter time.Duration,
	batchSize int,
	notifRepo port.NotificationRepository,
	dispatcher Redispatcher,
	logger *zap.Logger,
) *RedeliveryWorker {
	return &RedeliveryWorker{
		schedule:   schedule,
		staleAfter: staleAfter,
		batchSize:  batchSize,
		notifRepo:  notifRepo,
		dispatcher: dispatcher,
		logger:     logger,
		cronEngine: cron.New(),
	}
}

// Name returns the worker name
func (w *RedeliveryWorker) Name() string {
	return "notification-redelivery"
}

// Start schedules the sweep
func (w *RedeliveryWorker) Start(ctx context.Context) error {
	w.ctx = ctx

	if _, err := w.cronEngine.AddFunc(w.schedule, w.sweep); err != nil {
		return err
	}

	w.cronEngine.Start()
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish
func (w *RedeliveryWorker) Stop() error {
	<-w.cronEngine.Stop().Done()
	return nil
}

func (w *RedeliveryWorker) sweep() {
	if w.ctx.Err() != nil {
		return
	}

	cutoff := time.Now().Add(-w.staleAfter)
	stale, err := w.notifRepo.ListStalePending(w.ctx, cutoff, w.batchSize)
	if err != nil {
		w.logger.Error("Redelivery sweep failed to list stale notifications", zap.Error(err))
		return
	}
	if len(stale) == 0 {
		return
	}

	w.logger.Info("Redelivery sweep picked up stale notifications", zap.Int("count", len(stale)))

	for _, n := range stale {
		if w.ctx.Err() != nil {
			return
		}

		settled, err := w.dispatcher.Dispatch(w.ctx, n)
		if err != nil {
			w.logger.Error("Redelivery dispatch failed",
				zap.String("notification_id", n.ID),
				zap.Error(err))
			continue
		}

		w.logger.Info("Redelivery completed",
			zap.String("notification_id", settled.ID),
			zap.String("delivery_status", settled.DeliveryStatus))
	}
}
