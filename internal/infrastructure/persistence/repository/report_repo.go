package repository

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/jantaseva/civic-workflow/internal/application/port"
	"github.com/jantaseva/civic-workflow/internal/domain/entity"
)

// ReportRepository implements port.ReportRepository on sqlite
type ReportRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *sql.DB, logger *zap.Logger) port.ReportRepository {
	return &ReportRepository{
		db:     db,
		logger: logger,
	}
}

const reportColumns = `
	id, title, description, category, location, latitude, longitude,
	reporter_name, reporter_phone, reporter_email,
	status, verified, department_id, admin_notes, forwarding_notes, rejection_reason,
	verified_at, forwarded_at, rejected_at, created_at, updated_at
`

// Create inserts a new report
func (r *ReportRepository) Create(ctx context.Context, report *entity.Report) error {
	query := `
		INSERT INTO reports (` + reportColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now()
	if report.CreatedAt.IsZero() {
		report.CreatedAt = now
	}
	if report.UpdatedAt.IsZero() {
		report.UpdatedAt = now
	}

	_, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		report.ID,
		report.Title,
		report.Description,
		report.Category,
		report.Location,
		report.Latitude,
		report.Longitude,
		report.ReporterName,
		report.ReporterPhone,
		report.ReporterEmail,
		report.Status,
		report.Verified,
		report.DepartmentID,
		report.AdminNotes,
		report.ForwardingNotes,
		report.RejectionReason,
		report.VerifiedAt,
		report.ForwardedAt,
		report.RejectedAt,
		report.CreatedAt,
		report.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return port.ErrAlreadyExists
		}
		r.logger.Error("Failed to create report",
			zap.String("report_id", report.ID),
			zap.Error(err))
		return storeErr("create report", err)
	}

	return nil
}

// GetByID retrieves a report by id
func (r *ReportRepository) GetByID(ctx context.Context, id string) (*entity.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = ?`

	report, err := scanReport(getExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, port.ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get report",
			zap.String("report_id", id),
			zap.Error(err))
		return nil, storeErr("get report", err)
	}

	return report, nil
}

// Update persists the mutable lifecycle fields of a report
func (r *ReportRepository) Update(ctx context.Context, report *entity.Report) error {
	query := `
		UPDATE reports
		SET status = ?, verified = ?, department_id = ?,
			admin_notes = ?, forwarding_notes = ?, rejection_reason = ?,
			verified_at = ?, forwarded_at = ?, rejected_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		report.Status,
		report.Verified,
		report.DepartmentID,
		report.AdminNotes,
		report.ForwardingNotes,
		report.RejectionReason,
		report.VerifiedAt,
		report.ForwardedAt,
		report.RejectedAt,
		report.UpdatedAt,
		report.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update report",
			zap.String("report_id", report.ID),
			zap.Error(err))
		return storeErr("update report", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return storeErr("update report", err)
	}
	if affected == 0 {
		return port.ErrNotFound
	}

	return nil
}

// List retrieves reports matching the filter, newest first
func (r *ReportRepository) List(ctx context.Context, filter entity.ReportFilter) ([]*entity.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE 1=1`
	args := []interface{}{}

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.DepartmentID != "" {
		query += " AND department_id = ?"
		args = append(args, filter.DepartmentID)
	}
	if filter.Verified != nil {
		query += " AND verified = ?"
		args = append(args, *filter.Verified)
	}

	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list reports", zap.Error(err))
		return nil, storeErr("list reports", err)
	}
	defer rows.Close()

	var reports []*entity.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, storeErr("scan report", err)
		}
		reports = append(reports, report)
	}

	if err := rows.Err(); err != nil {
		return nil, storeErr("list reports", err)
	}
	return reports, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReport(row rowScanner) (*entity.Report, error) {
	var report entity.Report
	var latitude, longitude sql.NullFloat64
	var departmentID sql.NullString
	var adminNotes, forwardingNotes, rejectionReason sql.NullString
	var verifiedAt, forwardedAt, rejectedAt sql.NullTime

	err := row.Scan(
		&report.ID,
		&report.Title,
		&report.Description,
		&report.Category,
		&report.Location,
		&latitude,
		&longitude,
		&report.ReporterName,
		&report.ReporterPhone,
		&report.ReporterEmail,
		&report.Status,
		&report.Verified,
		&departmentID,
		&adminNotes,
		&forwardingNotes,
		&rejectionReason,
		&verifiedAt,
		&forwardedAt,
		&rejectedAt,
		&report.CreatedAt,
		&report.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if latitude.Valid {
		report.Latitude = &latitude.Float64
	}
	if longitude.Valid {
		report.Longitude = &longitude.Float64
	}
	if departmentID.Valid {
		report.DepartmentID = &departmentID.String
	}
	report.AdminNotes = adminNotes.String
	report.ForwardingNotes = forwardingNotes.String
	report.RejectionReason = rejectionReason.String
	if verifiedAt.Valid {
		report.VerifiedAt = &verifiedAt.Time
	}
	if forwardedAt.Valid {
		report.ForwardedAt = &forwardedAt.Time
	}
	if rejectedAt.Valid {
		report.RejectedAt = &rejectedAt.Time
	}

	return &report, nil
}

// Verify interface compliance
var _ port.ReportRepository = (*ReportRepository)(nil)
