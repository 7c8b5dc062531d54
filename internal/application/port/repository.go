package port

import (
	"context"
	"time"

	"github.com/jantaseva/civic-workflow/internal/domain/entity"
)

// ReportRepository defines persistence operations for Report
type ReportRepository interface {
	Create(ctx context.Context, report *entity.Report) error
	GetByID(ctx context.Context, id string) (*entity.Report, error)
	Update(ctx context.Context, report *entity.Report) error
	List(ctx context.Context, filter entity.ReportFilter) ([]*entity.Report, error)
}

// DepartmentRepository defines persistence operations for Department
type DepartmentRepository interface {
	Create(ctx context.Context, dept *entity.Department) error
	GetByID(ctx context.Context, id string) (*entity.Department, error)
	List(ctx context.Context) ([]*entity.Department, error)
}

// NotificationRepository defines persistence operations for the Notification
// audit trail. Rows are created once per transition event and mutated only by
// the dispatcher; they are never deleted.
type NotificationRepository interface {
	// Create inserts a new notification row. ErrDuplicateEvent is returned
	// when a row with the same event key already exists.
	Create(ctx context.Context, notification *entity.Notification) error

	// GetByID retrieves a notification by its ID
	GetByID(ctx context.Context, id string) (*entity.Notification, error)

	// GetByEventKey retrieves the notification created for a transition event
	GetByEventKey(ctx context.Context, eventKey string) (*entity.Notification, error)

	// ListByReportID retrieves all notifications for a report, most recent first
	ListByReportID(ctx context.Context, reportID string) ([]*entity.Notification, error)

	// UpdateChannelStatus moves one channel outcome from an expected status to
	// a new one with compare-and-set semantics, recording the attempt count
	// and last error. Returns false without error when the row no longer
	// holds the expected status.
	UpdateChannelStatus(ctx context.Context, id, channel, expected, next string, attempts int, lastErr string) (bool, error)

	// FinalizeDelivery sets the overall delivery status once every channel
	// has settled
	FinalizeDelivery(ctx context.Context, id, deliveryStatus string) error

	// ListStalePending returns notifications still pending after the given
	// cutoff, oldest first, for redelivery
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*entity.Notification, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
