package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jantaseva/civic-workflow/internal/application/port"
	"github.com/jantaseva/civic-workflow/internal/domain/entity"
	"github.com/jantaseva/civic-workflow/internal/domain/lifecycle"
)

// CreateReportInput carries the citizen-submitted fields of a new report
type CreateReportInput struct {
	Title         string
	Description   string
	Category      string
	Location      string
	Latitude      *float64
	Longitude     *float64
	ReporterName  string
	ReporterPhone string
	ReporterEmail string
}

// ReportService handles report intake and reads
type ReportService interface {
	Create(ctx context.Context, input CreateReportInput) (*entity.Report, error)
	Get(ctx context.Context, id string) (*entity.Report, error)
	List(ctx context.Context, filter entity.ReportFilter) ([]*entity.Report, error)
}

type reportServiceImpl struct {
	reportRepo port.ReportRepository
	logger     Logger
	now        func() time.Time
}

// NewReportService creates a new ReportService
func NewReportService(reportRepo port.ReportRepository, logger Logger) ReportService {
	return &reportServiceImpl{
		reportRepo: reportRepo,
		logger:     logger,
		now:        time.Now,
	}
}

// Create stores a new report with the initial lifecycle state
func (s *reportServiceImpl) Create(ctx context.Context, input CreateReportInput) (*entity.Report, error) {
	now := s.now()
	report := &entity.Report{
		ID:            uuid.NewString(),
		Title:         input.Title,
		Description:   input.Description,
		Category:      input.Category,
		Location:      input.Location,
		Latitude:      input.Latitude,
		Longitude:     input.Longitude,
		ReporterName:  input.ReporterName,
		ReporterPhone: input.ReporterPhone,
		ReporterEmail: input.ReporterEmail,
		Status:        lifecycle.StatusPending.String(),
		Verified:      false,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.reportRepo.Create(ctx, report); err != nil {
		s.logger.Error("Failed to create report", "error", err, "title", input.Title)
		return nil, fmt.Errorf("create report: %w", err)
	}

	s.logger.Info("Report created", "report_id", report.ID, "category", report.Category)
	return report, nil
}

// Get retrieves a report by id
func (s *reportServiceImpl) Get(ctx context.Context, id string) (*entity.Report, error) {
	report, err := s.reportRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return report, nil
}

// List retrieves reports matching the filter, newest first
func (s *reportServiceImpl) List(ctx context.Context, filter entity.ReportFilter) ([]*entity.Report, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}

	reports, err := s.reportRepo.List(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list reports", "error", err)
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return reports, nil
}
