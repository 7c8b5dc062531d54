package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jantaseva/civic-workflow/internal/application/port"
	"github.com/jantaseva/civic-workflow/internal/domain/entity"
)

// NotificationRepository implements port.NotificationRepository on sqlite
type NotificationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *sql.DB, logger *zap.Logger) port.NotificationRepository {
	return &NotificationRepository{
		db:     db,
		logger: logger,
	}
}

// channelColumns maps a channel to its column prefix. Channels arrive from
// dispatcher code, never from request input; the map still guards the query
// building below.
var channelColumns = map[string]string{
	entity.ChannelPush:  "push",
	entity.ChannelSMS:   "sms",
	entity.ChannelEmail: "email",
}

const notificationColumns = `
	id, report_id, event_key, kind, title, body, report_status,
	recipient_phone, recipient_email,
	push_status, push_attempts, push_error,
	sms_status, sms_attempts, sms_error,
	email_status, email_attempts, email_error,
	delivery_status, sent_at, created_at, updated_at
`

// Create inserts a new notification audit row. The unique event key makes
// duplicate dispatches of the same transition detectable.
func (r *NotificationRepository) Create(ctx context.Context, n *entity.Notification) error {
	query := `
		INSERT INTO notifications (` + notificationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.UpdatedAt = now

	_, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		n.ID,
		n.ReportID,
		n.EventKey,
		n.Kind,
		n.Title,
		n.Body,
		n.ReportStatus,
		n.RecipientPhone,
		n.RecipientEmail,
		n.Push.Status,
		n.Push.Attempts,
		n.Push.LastError,
		n.SMS.Status,
		n.SMS.Attempts,
		n.SMS.LastError,
		n.Email.Status,
		n.Email.Attempts,
		n.Email.LastError,
		n.DeliveryStatus,
		n.SentAt,
		n.CreatedAt,
		n.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return port.ErrDuplicateEvent
		}
		r.logger.Error("Failed to create notification",
			zap.String("report_id", n.ReportID),
			zap.String("event_key", n.EventKey),
			zap.Error(err))
		return storeErr("create notification", err)
	}

	return nil
}

// GetByID retrieves a notification by id
func (r *NotificationRepository) GetByID(ctx context.Context, id string) (*entity.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = ?`
	return r.getOne(ctx, query, id)
}

// GetByEventKey retrieves the notification created for a transition event
func (r *NotificationRepository) GetByEventKey(ctx context.Context, eventKey string) (*entity.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE event_key = ?`
	return r.getOne(ctx, query, eventKey)
}

func (r *NotificationRepository) getOne(ctx context.Context, query string, arg interface{}) (*entity.Notification, error) {
	n, err := scanNotification(getExecutor(ctx, r.db).QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, port.ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get notification", zap.Error(err))
		return nil, storeErr("get notification", err)
	}
	return n, nil
}

// ListByReportID retrieves all notifications for a report, most recent first
func (r *NotificationRepository) ListByReportID(ctx context.Context, reportID string) ([]*entity.Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE report_id = ?
		ORDER BY created_at DESC
	`

	return r.list(ctx, query, reportID)
}

// ListStalePending returns notifications still pending after the cutoff,
// oldest first
func (r *NotificationRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*entity.Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE delivery_status = ? AND created_at <= ?
		ORDER BY created_at ASC
		LIMIT ?
	`

	return r.list(ctx, query, entity.DeliveryPending, cutoff, limit)
}

func (r *NotificationRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.Notification, error) {
	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list notifications", zap.Error(err))
		return nil, storeErr("list notifications", err)
	}
	defer rows.Close()

	var notifications []*entity.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, storeErr("scan notification", err)
		}
		notifications = append(notifications, n)
	}

	if err := rows.Err(); err != nil {
		return nil, storeErr("list notifications", err)
	}
	return notifications, nil
}

// UpdateChannelStatus moves one channel outcome from the expected status to
// the next with compare-and-set semantics. Concurrent channel-completion
// writers only ever touch their own channel's columns; the status predicate
// keeps a lost retry from clobbering a settled outcome.
func (r *NotificationRepository) UpdateChannelStatus(ctx context.Context, id, channel, expected, next string, attempts int, lastErr string) (bool, error) {
	col, ok := channelColumns[channel]
	if !ok {
		return false, fmt.Errorf("unknown channel %q", channel)
	}

	query := fmt.Sprintf(`
		UPDATE notifications
		SET %[1]s_status = ?, %[1]s_attempts = ?, %[1]s_error = ?, updated_at = ?
		WHERE id = ? AND %[1]s_status = ?
	`, col)

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		next, attempts, lastErr, time.Now(), id, expected)
	if err != nil {
		r.logger.Error("Failed to update channel status",
			zap.String("notification_id", id),
			zap.String("channel", channel),
			zap.Error(err))
		return false, storeErr("update channel status", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, storeErr("update channel status", err)
	}
	return affected > 0, nil
}

// FinalizeDelivery settles the overall delivery status. Only a pending row
// is finalized, so the first finisher wins.
func (r *NotificationRepository) FinalizeDelivery(ctx context.Context, id, deliveryStatus string) error {
	query := `
		UPDATE notifications
		SET delivery_status = ?, sent_at = ?, updated_at = ?
		WHERE id = ? AND delivery_status = ?
	`

	now := time.Now()
	var sentAt *time.Time
	if deliveryStatus == entity.DeliverySent {
		sentAt = &now
	}

	_, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		deliveryStatus, sentAt, now, id, entity.DeliveryPending)
	if err != nil {
		r.logger.Error("Failed to finalize delivery",
			zap.String("notification_id", id),
			zap.String("delivery_status", deliveryStatus),
			zap.Error(err))
		return storeErr("finalize delivery", err)
	}

	return nil
}

func scanNotification(row rowScanner) (*entity.Notification, error) {
	var n entity.Notification
	var recipientPhone, recipientEmail sql.NullString
	var pushErr, smsErr, emailErr sql.NullString
	var sentAt sql.NullTime

	err := row.Scan(
		&n.ID,
		&n.ReportID,
		&n.EventKey,
		&n.Kind,
		&n.Title,
		&n.Body,
		&n.ReportStatus,
		&recipientPhone,
		&recipientEmail,
		&n.Push.Status,
		&n.Push.Attempts,
		&pushErr,
		&n.SMS.Status,
		&n.SMS.Attempts,
		&smsErr,
		&n.Email.Status,
		&n.Email.Attempts,
		&emailErr,
		&n.DeliveryStatus,
		&sentAt,
		&n.CreatedAt,
		&n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	n.RecipientPhone = recipientPhone.String
	n.RecipientEmail = recipientEmail.String
	n.Push.LastError = pushErr.String
	n.SMS.LastError = smsErr.String
	n.Email.LastError = emailErr.String
	if sentAt.Valid {
		n.SentAt = &sentAt.Time
	}

	return &n, nil
}

// Verify interface compliance
var _ port.NotificationRepository = (*NotificationRepository)(nil)
