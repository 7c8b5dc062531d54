package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jantaseva/civic-workflow/internal/application/port"
	"github.com/jantaseva/civic-workflow/internal/domain/entity"
	"github.com/jantaseva/civic-workflow/internal/domain/lifecycle"
)

type mockReportRepo struct {
	mu      sync.Mutex
	reports map[string]*entity.Report

	getByIDFunc func(ctx context.Context, id string) (*entity.Report, error)
	updateFunc  func(ctx context.Context, report *entity.Report) error
}

func newMockReportRepo(reports ...*entity.Report) *mockReportRepo {
	m := &mockReportRepo{reports: make(map[string]*entity.Report)}
	for _, r := range reports {
		copied := *r
		m.reports[r.ID] = &copied
	}
	return m
}

func (m *mockReportRepo) Create(ctx context.Context, report *entity.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *report
	m.reports[report.ID] = &copied
	return nil
}

func (m *mockReportRepo) GetByID(ctx context.Context, id string) (*entity.Report, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	report, ok := m.reports[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	copied := *report
	return &copied, nil
}

func (m *mockReportRepo) Update(ctx context.Context, report *entity.Report) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, report)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reports[report.ID]; !ok {
		return port.ErrNotFound
	}
	copied := *report
	m.reports[report.ID] = &copied
	return nil
}

func (m *mockReportRepo) List(ctx context.Context, filter entity.ReportFilter) ([]*entity.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Report
	for _, r := range m.reports {
		copied := *r
		out = append(out, &copied)
	}
	return out, nil
}

type mockDeptRepo struct {
	getByIDFunc func(ctx context.Context, id string) (*entity.Department, error)
}

func (m *mockDeptRepo) Create(ctx context.Context, dept *entity.Department) error { return nil }

func (m *mockDeptRepo) GetByID(ctx context.Context, id string) (*entity.Department, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return &entity.Department{ID: id, Name: "Public Works"}, nil
}

func (m *mockDeptRepo) List(ctx context.Context) ([]*entity.Department, error) { return nil, nil }

type mockNotifRepo struct {
	listByReportFunc func(ctx context.Context, reportID string) ([]*entity.Notification, error)
}

func (m *mockNotifRepo) Create(ctx context.Context, n *entity.Notification) error { return nil }
func (m *mockNotifRepo) GetByID(ctx context.Context, id string) (*entity.Notification, error) {
	return nil, port.ErrNotFound
}
func (m *mockNotifRepo) GetByEventKey(ctx context.Context, eventKey string) (*entity.Notification, error) {
	return nil, port.ErrNotFound
}
func (m *mockNotifRepo) ListByReportID(ctx context.Context, reportID string) ([]*entity.Notification, error) {
	if m.listByReportFunc != nil {
		return m.listByReportFunc(ctx, reportID)
	}
	return nil, nil
}
func (m *mockNotifRepo) UpdateChannelStatus(ctx context.Context, id, channel, expected, next string, attempts int, lastErr string) (bool, error) {
	return true, nil
}
func (m *mockNotifRepo) FinalizeDelivery(ctx context.Context, id, deliveryStatus string) error {
	return nil
}
func (m *mockNotifRepo) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*entity.Notification, error) {
	return nil, nil
}

type mockTxManager struct{}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type mockDispatcher struct {
	mu     sync.Mutex
	drafts []*entity.Notification
	accept bool
}

func (m *mockDispatcher) DispatchAsync(ctx context.Context, draft *entity.Notification) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drafts = append(m.drafts, draft)
	return m.accept
}

func (m *mockDispatcher) dispatched() []*entity.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*entity.Notification{}, m.drafts...)
}

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

func newTestWorkflow(reportRepo *mockReportRepo, deptRepo *mockDeptRepo) (WorkflowService, *mockDispatcher) {
	disp := &mockDispatcher{accept: true}
	svc := NewWorkflowService(reportRepo, deptRepo, &mockNotifRepo{}, &mockTxManager{}, disp, nopLogger{})
	return svc, disp
}

func testPendingReport() *entity.Report {
	return &entity.Report{
		ID:            "report-1",
		Title:         "Broken streetlight",
		Status:        "pending",
		ReporterPhone: "+15550100",
		ReporterEmail: "citizen@example.com",
	}
}

func TestWorkflowService_Verify(t *testing.T) {
	repo := newMockReportRepo(testPendingReport())
	svc, disp := newTestWorkflow(repo, &mockDeptRepo{})

	report, initiated, err := svc.Verify(context.Background(), "report-1", "confirmed on site")
	require.NoError(t, err)
	assert.True(t, initiated)
	assert.True(t, report.Verified)
	assert.Equal(t, "pending", report.Status)

	stored, err := repo.GetByID(context.Background(), "report-1")
	require.NoError(t, err)
	assert.True(t, stored.Verified, "verification must be persisted")

	drafts := disp.dispatched()
	require.Len(t, drafts, 1)
	assert.Equal(t, KindApproved, drafts[0].Kind)
}

func TestWorkflowService_Verify_NotFound(t *testing.T) {
	svc, disp := newTestWorkflow(newMockReportRepo(), &mockDeptRepo{})

	_, _, err := svc.Verify(context.Background(), "missing", "")
	assert.ErrorIs(t, err, port.ErrNotFound)
	assert.Empty(t, disp.dispatched(), "no dispatch for a failed transition")
}

func TestWorkflowService_Verify_AlreadyVerified(t *testing.T) {
	report := testPendingReport()
	report.Verified = true
	svc, disp := newTestWorkflow(newMockReportRepo(report), &mockDeptRepo{})

	_, _, err := svc.Verify(context.Background(), "report-1", "")
	assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
	assert.Empty(t, disp.dispatched())
}

func TestWorkflowService_Verify_CommitFailureSkipsDispatch(t *testing.T) {
	repo := newMockReportRepo(testPendingReport())
	repo.updateFunc = func(ctx context.Context, report *entity.Report) error {
		return port.ErrStoreUnavailable
	}
	svc, disp := newTestWorkflow(repo, &mockDeptRepo{})

	_, _, err := svc.Verify(context.Background(), "report-1", "")
	assert.ErrorIs(t, err, port.ErrStoreUnavailable)
	assert.Empty(t, disp.dispatched(), "dispatch must not run for an uncommitted transition")
}

func TestWorkflowService_Reject(t *testing.T) {
	repo := newMockReportRepo(testPendingReport())
	svc, disp := newTestWorkflow(repo, &mockDeptRepo{})

	report, initiated, err := svc.Reject(context.Background(), "report-1", "duplicate", "")
	require.NoError(t, err)
	assert.True(t, initiated)
	assert.Equal(t, "rejected", report.Status)
	assert.Equal(t, "duplicate", report.RejectionReason)

	drafts := disp.dispatched()
	require.Len(t, drafts, 1)
	assert.Equal(t, KindRejected, drafts[0].Kind)
}

func TestWorkflowService_Forward(t *testing.T) {
	report := testPendingReport()
	report.Verified = true
	repo := newMockReportRepo(report)
	svc, disp := newTestWorkflow(repo, &mockDeptRepo{})

	updated, initiated, err := svc.Forward(context.Background(), "report-1", "dept-1", "assigning to roads team")
	require.NoError(t, err)
	assert.True(t, initiated)
	assert.Equal(t, "forwarded", updated.Status)
	require.NotNil(t, updated.DepartmentID)
	assert.Equal(t, "dept-1", *updated.DepartmentID)

	drafts := disp.dispatched()
	require.Len(t, drafts, 1)
	assert.Equal(t, KindForwarded, drafts[0].Kind)
	assert.Contains(t, drafts[0].Body, "Public Works")
}

func TestWorkflowService_Forward_UnknownDepartment(t *testing.T) {
	report := testPendingReport()
	report.Verified = true
	repo := newMockReportRepo(report)
	deptRepo := &mockDeptRepo{
		getByIDFunc: func(ctx context.Context, id string) (*entity.Department, error) {
			return nil, port.ErrNotFound
		},
	}
	svc, disp := newTestWorkflow(repo, deptRepo)

	_, _, err := svc.Forward(context.Background(), "report-1", "dept-404", "")
	assert.ErrorIs(t, err, ErrUnknownDepartment)
	assert.Empty(t, disp.dispatched())

	stored, getErr := repo.GetByID(context.Background(), "report-1")
	require.NoError(t, getErr)
	assert.Equal(t, "pending", stored.Status, "failed forward must not change the report")
}

func TestWorkflowService_Forward_Unverified(t *testing.T) {
	svc, _ := newTestWorkflow(newMockReportRepo(testPendingReport()), &mockDeptRepo{})

	_, _, err := svc.Forward(context.Background(), "report-1", "dept-1", "")
	assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
}

func TestWorkflowService_UpdateStatus(t *testing.T) {
	report := testPendingReport()
	report.Status = "forwarded"
	report.Verified = true
	repo := newMockReportRepo(report)
	svc, disp := newTestWorkflow(repo, &mockDeptRepo{})

	updated, initiated, err := svc.UpdateStatus(context.Background(), "report-1", "in_progress", "crew dispatched")
	require.NoError(t, err)
	assert.True(t, initiated)
	assert.Equal(t, "in_progress", updated.Status)

	drafts := disp.dispatched()
	require.Len(t, drafts, 1)
	assert.Equal(t, KindStatusChanged, drafts[0].Kind)
}

func TestWorkflowService_UpdateStatus_SkippedStep(t *testing.T) {
	report := testPendingReport()
	report.Status = "forwarded"
	report.Verified = true
	svc, _ := newTestWorkflow(newMockReportRepo(report), &mockDeptRepo{})

	_, _, err := svc.UpdateStatus(context.Background(), "report-1", "closed", "")
	assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
}

func TestWorkflowService_ConcurrentVerifyAndReject(t *testing.T) {
	repo := newMockReportRepo(testPendingReport())
	svc, _ := newTestWorkflow(repo, &mockDeptRepo{})

	var wg sync.WaitGroup
	errs := make([]error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _, errs[0] = svc.Reject(context.Background(), "report-1", "spam", "")
	}()
	go func() {
		defer wg.Done()
		_, _, errs[1] = svc.Verify(context.Background(), "report-1", "")
	}()
	wg.Wait()

	stored, err := repo.GetByID(context.Background(), "report-1")
	require.NoError(t, err)

	// Per-report locking serializes the two requests. Either order is legal:
	// verify-then-reject leaves the report rejected with both ops succeeding,
	// reject-then-verify leaves it rejected with the verify refused.
	if errs[0] == nil && errs[1] == nil {
		assert.Equal(t, "rejected", stored.Status)
	} else if errs[0] == nil {
		assert.ErrorIs(t, errs[1], lifecycle.ErrInvalidTransition)
		assert.Equal(t, "rejected", stored.Status)
	} else {
		t.Fatalf("reject failed unexpectedly: %v", errs[0])
	}
}

func TestWorkflowService_FullLifecycle(t *testing.T) {
	repo := newMockReportRepo(testPendingReport())
	svc, disp := newTestWorkflow(repo, &mockDeptRepo{})
	ctx := context.Background()

	_, _, err := svc.Verify(ctx, "report-1", "")
	require.NoError(t, err)

	_, _, err = svc.Forward(ctx, "report-1", "dept-1", "")
	require.NoError(t, err)

	for _, status := range []string{"in_progress", "resolved", "closed"} {
		_, _, err = svc.UpdateStatus(ctx, "report-1", status, "")
		require.NoError(t, err, "progressing to %s", status)
	}

	stored, err := repo.GetByID(ctx, "report-1")
	require.NoError(t, err)
	assert.Equal(t, "closed", stored.Status)

	kinds := make([]string, 0)
	for _, d := range disp.dispatched() {
		kinds = append(kinds, d.Kind)
	}
	assert.Equal(t, []string{
		KindApproved, KindForwarded,
		KindStatusChanged, KindStatusChanged, KindStatusChanged,
	}, kinds)
}

func TestWorkflowService_NotificationHistory(t *testing.T) {
	repo := newMockReportRepo(testPendingReport())
	notifRepo := &mockNotifRepo{
		listByReportFunc: func(ctx context.Context, reportID string) ([]*entity.Notification, error) {
			return []*entity.Notification{{ID: "n-2"}, {ID: "n-1"}}, nil
		},
	}
	svc := NewWorkflowService(repo, &mockDeptRepo{}, notifRepo, &mockTxManager{}, &mockDispatcher{accept: true}, nopLogger{})

	history, err := svc.NotificationHistory(context.Background(), "report-1")
	require.NoError(t, err)
	assert.Len(t, history, 2)

	_, err = svc.NotificationHistory(context.Background(), "missing")
	assert.ErrorIs(t, err, port.ErrNotFound)
}

func TestWorkflowService_DispatchRefusalDoesNotFailTransition(t *testing.T) {
	repo := newMockReportRepo(testPendingReport())
	disp := &mockDispatcher{accept: false}
	svc := NewWorkflowService(repo, &mockDeptRepo{}, &mockNotifRepo{}, &mockTxManager{}, disp, nopLogger{})

	report, initiated, err := svc.Verify(context.Background(), "report-1", "")
	require.NoError(t, err)
	assert.False(t, initiated)
	assert.True(t, report.Verified)
}
