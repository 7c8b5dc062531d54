package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jantaseva/civic-workflow/internal/application/port"
	"github.com/jantaseva/civic-workflow/internal/application/service"
	"github.com/jantaseva/civic-workflow/internal/domain/entity"
	"github.com/jantaseva/civic-workflow/internal/domain/lifecycle"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	workflow    service.WorkflowService
	reports     service.ReportService
	departments service.DepartmentService
	logger      Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	workflow service.WorkflowService,
	reports service.ReportService,
	departments service.DepartmentService,
	logger Logger,
) *Handlers {
	return &Handlers{
		workflow:    workflow,
		reports:     reports,
		departments: departments,
		logger:      logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// TransitionResponse carries the updated report and whether notification
// dispatch was initiated. Dispatch outcome is observable later through the
// notification history, not in this response.
type TransitionResponse struct {
	Report                *entity.Report `json:"report"`
	NotificationInitiated bool           `json:"notification_initiated"`
}

// HealthCheck returns service health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// CreateReportRequest is the citizen report intake payload
type CreateReportRequest struct {
	Title         string   `json:"title" binding:"required"`
	Description   string   `json:"description" binding:"required"`
	Category      string   `json:"category" binding:"required"`
	Location      string   `json:"location" binding:"required"`
	Latitude      *float64 `json:"latitude"`
	Longitude     *float64 `json:"longitude"`
	ReporterName  string   `json:"reporter_name" binding:"required"`
	ReporterPhone string   `json:"reporter_phone"`
	ReporterEmail string   `json:"reporter_email"`
}

// CreateReport handles POST /api/reports
func (h *Handlers) CreateReport(c *gin.Context) {
	var req CreateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	report, err := h.reports.Create(c.Request.Context(), service.CreateReportInput{
		Title:         req.Title,
		Description:   req.Description,
		Category:      req.Category,
		Location:      req.Location,
		Latitude:      req.Latitude,
		Longitude:     req.Longitude,
		ReporterName:  req.ReporterName,
		ReporterPhone: req.ReporterPhone,
		ReporterEmail: req.ReporterEmail,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: report})
}

// GetReport handles GET /api/reports/:id
func (h *Handlers) GetReport(c *gin.Context) {
	report, err := h.reports.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: report})
}

// ListReports handles GET /api/reports
func (h *Handlers) ListReports(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	filter := entity.ReportFilter{
		Status:       c.Query("status"),
		DepartmentID: c.Query("department"),
		Limit:        limit,
		Offset:       (page - 1) * limit,
	}
	if v, ok := c.GetQuery("verified"); ok {
		verified := v == "true"
		filter.Verified = &verified
	}

	reports, err := h.reports.List(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{
		"reports": reports,
		"page":    page,
		"limit":   limit,
	}})
}

// VerifyReportRequest is the verify payload
type VerifyReportRequest struct {
	Notes string `json:"notes"`
}

// VerifyReport handles PUT /api/reports/:id/verify
func (h *Handlers) VerifyReport(c *gin.Context) {
	var req VerifyReportRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	report, initiated, err := h.workflow.Verify(c.Request.Context(), c.Param("id"), req.Notes)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: TransitionResponse{
		Report:                report,
		NotificationInitiated: initiated,
	}})
}

// RejectReportRequest is the reject payload
type RejectReportRequest struct {
	Reason string `json:"reason" binding:"required"`
	Notes  string `json:"notes"`
}

// RejectReport handles PUT /api/reports/:id/reject
func (h *Handlers) RejectReport(c *gin.Context) {
	var req RejectReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	report, initiated, err := h.workflow.Reject(c.Request.Context(), c.Param("id"), req.Reason, req.Notes)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: TransitionResponse{
		Report:                report,
		NotificationInitiated: initiated,
	}})
}

// ForwardReportRequest is the forward payload
type ForwardReportRequest struct {
	DepartmentID string `json:"department_id" binding:"required"`
	Notes        string `json:"notes"`
}

// ForwardReport handles PUT /api/reports/:id/forward
func (h *Handlers) ForwardReport(c *gin.Context) {
	var req ForwardReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	report, initiated, err := h.workflow.Forward(c.Request.Context(), c.Param("id"), req.DepartmentID, req.Notes)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: TransitionResponse{
		Report:                report,
		NotificationInitiated: initiated,
	}})
}

// UpdateStatusRequest is the status progression payload
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes"`
}

// UpdateReportStatus handles PUT /api/reports/:id/status
func (h *Handlers) UpdateReportStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	report, initiated, err := h.workflow.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status, req.Notes)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: TransitionResponse{
		Report:                report,
		NotificationInitiated: initiated,
	}})
}

// NotificationHistory handles GET /api/reports/:id/notifications
func (h *Handlers) NotificationHistory(c *gin.Context) {
	notifications, err := h.workflow.NotificationHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: notifications})
}

// CreateDepartmentRequest is the department creation payload
type CreateDepartmentRequest struct {
	Name         string `json:"name" binding:"required"`
	Description  string `json:"description"`
	ContactEmail string `json:"contact_email" binding:"required,email"`
	ContactPhone string `json:"contact_phone"`
	HeadName     string `json:"head_name"`
}

// CreateDepartment handles POST /api/departments
func (h *Handlers) CreateDepartment(c *gin.Context) {
	var req CreateDepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	dept, err := h.departments.Create(c.Request.Context(), service.CreateDepartmentInput{
		Name:         req.Name,
		Description:  req.Description,
		ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone,
		HeadName:     req.HeadName,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: dept})
}

// GetDepartment handles GET /api/departments/:id
func (h *Handlers) GetDepartment(c *gin.Context) {
	dept, err := h.departments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: dept})
}

// ListDepartments handles GET /api/departments
func (h *Handlers) ListDepartments(c *gin.Context) {
	depts, err := h.departments.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: depts})
}

// respondError maps the error taxonomy to HTTP statuses
func (h *Handlers) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, port.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, service.ErrUnknownDepartment):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, lifecycle.ErrInvalidStatus):
		status = http.StatusBadRequest
	case errors.Is(err, port.ErrAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, port.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "error", err, "path", c.Request.URL.Path)
	}

	c.JSON(status, Response{Success: false, Error: err.Error()})
}
