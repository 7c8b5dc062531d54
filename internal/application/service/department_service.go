package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jantaseva/civic-workflow/internal/application/port"
	"github.com/jantaseva/civic-workflow/internal/domain/entity"
)

// CreateDepartmentInput carries the fields of a new department
type CreateDepartmentInput struct {
	Name         string
	Description  string
	ContactEmail string
	ContactPhone string
	HeadName     string
}

// DepartmentService manages the department catalog. Departments are
// immutable after creation.
type DepartmentService interface {
	Create(ctx context.Context, input CreateDepartmentInput) (*entity.Department, error)
	Get(ctx context.Context, id string) (*entity.Department, error)
	List(ctx context.Context) ([]*entity.Department, error)
}

type departmentServiceImpl struct {
	deptRepo port.DepartmentRepository
	logger   Logger
	now      func() time.Time
}

// NewDepartmentService creates a new DepartmentService
func NewDepartmentService(deptRepo port.DepartmentRepository, logger Logger) DepartmentService {
	return &departmentServiceImpl{
		deptRepo: deptRepo,
		logger:   logger,
		now:      time.Now,
	}
}

// Create stores a new department; the name must be unique
func (s *departmentServiceImpl) Create(ctx context.Context, input CreateDepartmentInput) (*entity.Department, error) {
	dept := &entity.Department{
		ID:           uuid.NewString(),
		Name:         input.Name,
		Description:  input.Description,
		ContactEmail: input.ContactEmail,
		ContactPhone: input.ContactPhone,
		HeadName:     input.HeadName,
		CreatedAt:    s.now(),
	}

	if err := s.deptRepo.Create(ctx, dept); err != nil {
		s.logger.Error("Failed to create department", "error", err, "name", input.Name)
		return nil, fmt.Errorf("create department: %w", err)
	}

	s.logger.Info("Department created", "department_id", dept.ID, "name", dept.Name)
	return dept, nil
}

// Get retrieves a department by id
func (s *departmentServiceImpl) Get(ctx context.Context, id string) (*entity.Department, error) {
	return s.deptRepo.GetByID(ctx, id)
}

// List retrieves all departments ordered by name
func (s *departmentServiceImpl) List(ctx context.Context) ([]*entity.Department, error) {
	depts, err := s.deptRepo.List(ctx)
	if err != nil {
		s.logger.Error("Failed to list departments", "error", err)
		return nil, fmt.Errorf("list departments: %w", err)
	}
	return depts, nil
}
