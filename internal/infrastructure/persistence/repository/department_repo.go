package repository

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/jantaseva/civic-workflow/internal/application/port"
	"github.com/jantaseva/civic-workflow/internal/domain/entity"
)

// DepartmentRepository implements port.DepartmentRepository on sqlite
type DepartmentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDepartmentRepository creates a new department repository
func NewDepartmentRepository(db *sql.DB, logger *zap.Logger) port.DepartmentRepository {
	return &DepartmentRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new department; the name is unique
func (r *DepartmentRepository) Create(ctx context.Context, dept *entity.Department) error {
	query := `
		INSERT INTO departments (id, name, description, contact_email, contact_phone, head_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	if dept.CreatedAt.IsZero() {
		dept.CreatedAt = time.Now()
	}

	_, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		dept.ID,
		dept.Name,
		dept.Description,
		dept.ContactEmail,
		dept.ContactPhone,
		dept.HeadName,
		dept.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return port.ErrAlreadyExists
		}
		r.logger.Error("Failed to create department",
			zap.String("name", dept.Name),
			zap.Error(err))
		return storeErr("create department", err)
	}

	return nil
}

// GetByID retrieves a department by id
func (r *DepartmentRepository) GetByID(ctx context.Context, id string) (*entity.Department, error) {
	query := `
		SELECT id, name, description, contact_email, contact_phone, head_name, created_at
		FROM departments
		WHERE id = ?
	`

	var dept entity.Department
	var description, contactPhone, headName sql.NullString

	err := getExecutor(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&dept.ID,
		&dept.Name,
		&description,
		&dept.ContactEmail,
		&contactPhone,
		&headName,
		&dept.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, port.ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get department",
			zap.String("department_id", id),
			zap.Error(err))
		return nil, storeErr("get department", err)
	}

	dept.Description = description.String
	dept.ContactPhone = contactPhone.String
	dept.HeadName = headName.String
	return &dept, nil
}

// List retrieves all departments ordered by name
func (r *DepartmentRepository) List(ctx context.Context) ([]*entity.Department, error) {
	query := `
		SELECT id, name, description, contact_email, contact_phone, head_name, created_at
		FROM departments
		ORDER BY name ASC
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list departments", zap.Error(err))
		return nil, storeErr("list departments", err)
	}
	defer rows.Close()

	var depts []*entity.Department
	for rows.Next() {
		var dept entity.Department
		var description, contactPhone, headName sql.NullString

		if err := rows.Scan(
			&dept.ID,
			&dept.Name,
			&description,
			&dept.ContactEmail,
			&contactPhone,
			&headName,
			&dept.CreatedAt,
		); err != nil {
			return nil, storeErr("scan department", err)
		}

		dept.Description = description.String
		dept.ContactPhone = contactPhone.String
		dept.HeadName = headName.String
		depts = append(depts, &dept)
	}

	if err := rows.Err(); err != nil {
		return nil, storeErr("list departments", err)
	}
	return depts, nil
}

// Verify interface compliance
var _ port.DepartmentRepository = (*DepartmentRepository)(nil)
