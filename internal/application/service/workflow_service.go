package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jantaseva/civic-workflow/internal/application/port"
	"github.com/jantaseva/civic-workflow/internal/domain/entity"
	"github.com/jantaseva/civic-workflow/internal/domain/lifecycle"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// NotificationDispatcher is the dispatch capability the workflow triggers as
// a decoupled side effect after a transition commits
type NotificationDispatcher interface {
	DispatchAsync(ctx context.Context, draft *entity.Notification) bool
}

// WorkflowService drives a report through its lifecycle. Each operation
// validates the transition against the persisted state, commits the new
// state, and initiates notification dispatch as a best-effort side effect.
// The returned boolean reports whether dispatch was initiated, not whether
// delivery succeeded; delivery outcomes live in the notification audit trail.
type WorkflowService interface {
	Verify(ctx context.Context, reportID, notes string) (*entity.Report, bool, error)
	Reject(ctx context.Context, reportID, reason, notes string) (*entity.Report, bool, error)
	Forward(ctx context.Context, reportID, departmentID, notes string) (*entity.Report, bool, error)
	UpdateStatus(ctx context.Context, reportID, newStatus, notes string) (*entity.Report, bool, error)
	NotificationHistory(ctx context.Context, reportID string) ([]*entity.Notification, error)
}

type workflowServiceImpl struct {
	reportRepo port.ReportRepository
	deptRepo   port.DepartmentRepository
	notifRepo  port.NotificationRepository
	txManager  port.TransactionManager
	engine     *lifecycle.Engine
	dispatcher NotificationDispatcher
	logger     Logger
	locks      *reportLocks
	now        func() time.Time
}

// NewWorkflowService creates a new WorkflowService
func NewWorkflowService(
	reportRepo port.ReportRepository,
	deptRepo port.DepartmentRepository,
	notifRepo port.NotificationRepository,
	txManager port.TransactionManager,
	dispatcher NotificationDispatcher,
	logger Logger,
) WorkflowService {
	return &workflowServiceImpl{
		reportRepo: reportRepo,
		deptRepo:   deptRepo,
		notifRepo:  notifRepo,
		txManager:  txManager,
		engine:     lifecycle.NewEngine(),
		dispatcher: dispatcher,
		logger:     logger,
		locks:      newReportLocks(),
		now:        time.Now,
	}
}

// Verify marks a pending report as verified and notifies the citizen
func (s *workflowServiceImpl) Verify(ctx context.Context, reportID, notes string) (*entity.Report, bool, error) {
	unlock := s.locks.lock(reportID)
	defer unlock()

	report, err := s.loadReport(ctx, reportID)
	if err != nil {
		return nil, false, err
	}

	updated, err := s.engine.Verify(report, notes, s.now())
	if err != nil {
		return nil, false, err
	}

	if err := s.commit(ctx, updated); err != nil {
		return nil, false, err
	}

	s.logger.Info("Report verified", "report_id", reportID)
	initiated := s.dispatch(ctx, updated, KindApproved, ComposeExtra{Note: notes})
	return updated, initiated, nil
}

// Reject rejects a not-yet-forwarded report and notifies the citizen
func (s *workflowServiceImpl) Reject(ctx context.Context, reportID, reason, notes string) (*entity.Report, bool, error) {
	unlock := s.locks.lock(reportID)
	defer unlock()

	report, err := s.loadReport(ctx, reportID)
	if err != nil {
		return nil, false, err
	}

	updated, err := s.engine.Reject(report, reason, notes, s.now())
	if err != nil {
		return nil, false, err
	}

	if err := s.commit(ctx, updated); err != nil {
		return nil, false, err
	}

	s.logger.Info("Report rejected", "report_id", reportID, "reason", reason)
	initiated := s.dispatch(ctx, updated, KindRejected, ComposeExtra{Reason: reason, Note: notes})
	return updated, initiated, nil
}

// Forward routes a verified report to an existing department and notifies
// the citizen
func (s *workflowServiceImpl) Forward(ctx context.Context, reportID, departmentID, notes string) (*entity.Report, bool, error) {
	unlock := s.locks.lock(reportID)
	defer unlock()

	report, err := s.loadReport(ctx, reportID)
	if err != nil {
		return nil, false, err
	}

	dept, err := s.deptRepo.GetByID(ctx, departmentID)
	if err != nil {
		if errors.Is(err, port.ErrNotFound) {
			return nil, false, fmt.Errorf("%w: %s", ErrUnknownDepartment, departmentID)
		}
		return nil, false, fmt.Errorf("get department: %w", err)
	}

	updated, err := s.engine.Forward(report, departmentID, notes, s.now())
	if err != nil {
		return nil, false, err
	}

	if err := s.commit(ctx, updated); err != nil {
		return nil, false, err
	}

	s.logger.Info("Report forwarded", "report_id", reportID, "department_id", departmentID)
	initiated := s.dispatch(ctx, updated, KindForwarded, ComposeExtra{Note: notes, DepartmentName: dept.Name})
	return updated, initiated, nil
}

// UpdateStatus progresses a forwarded report one step along the resolution
// chain and notifies the citizen
func (s *workflowServiceImpl) UpdateStatus(ctx context.Context, reportID, newStatus, notes string) (*entity.Report, bool, error) {
	unlock := s.locks.lock(reportID)
	defer unlock()

	report, err := s.loadReport(ctx, reportID)
	if err != nil {
		return nil, false, err
	}

	updated, err := s.engine.Progress(report, lifecycle.Status(newStatus), notes, s.now())
	if err != nil {
		return nil, false, err
	}

	if err := s.commit(ctx, updated); err != nil {
		return nil, false, err
	}

	s.logger.Info("Report status updated", "report_id", reportID, "status", newStatus)
	initiated := s.dispatch(ctx, updated, KindStatusChanged, ComposeExtra{Note: notes})
	return updated, initiated, nil
}

// NotificationHistory returns the report's notifications, most recent first
func (s *workflowServiceImpl) NotificationHistory(ctx context.Context, reportID string) ([]*entity.Notification, error) {
	if _, err := s.loadReport(ctx, reportID); err != nil {
		return nil, err
	}

	notifications, err := s.notifRepo.ListByReportID(ctx, reportID)
	if err != nil {
		s.logger.Error("Failed to list notifications", "error", err, "report_id", reportID)
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}

func (s *workflowServiceImpl) loadReport(ctx context.Context, reportID string) (*entity.Report, error) {
	report, err := s.reportRepo.GetByID(ctx, reportID)
	if err != nil {
		if errors.Is(err, port.ErrNotFound) {
			return nil, err
		}
		s.logger.Error("Failed to load report", "error", err, "report_id", reportID)
		return nil, fmt.Errorf("get report: %w", err)
	}
	return report, nil
}

func (s *workflowServiceImpl) commit(ctx context.Context, report *entity.Report) error {
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return s.reportRepo.Update(txCtx, report)
	})
	if err != nil {
		s.logger.Error("Failed to commit transition", "error", err, "report_id", report.ID)
		return fmt.Errorf("commit transition: %w", err)
	}
	return nil
}

// dispatch initiates notification delivery on a context detached from the
// caller: once the transition is committed, dispatch completes or exhausts
// retries regardless of the original request's lifetime. A failure to
// initiate never unwinds the committed transition.
func (s *workflowServiceImpl) dispatch(ctx context.Context, report *entity.Report, kind string, extra ComposeExtra) bool {
	draft := Compose(report, kind, extra)
	return s.dispatcher.DispatchAsync(context.WithoutCancel(ctx), draft)
}
