package lifecycle

import (
	"fmt"
	"time"

	"github.com/jantaseva/civic-workflow/internal/domain/entity"
)

// Engine applies staff actions to reports. Each operation validates the
// action against the report state as currently persisted and returns an
// updated copy with the fields to commit, or a typed rejection. The engine
// touches no storage and no clock beyond the now argument.
type Engine struct {
	machine Machine
}

// NewEngine creates an engine with the civic report lifecycle configured:
// pending may be rejected or, once verified, forwarded; forwarded reports
// progress one step at a time through in_progress and resolved to closed.
func NewEngine() *Engine {
	b := NewBuilder()

	b.Configure(StatusPending).
		Permit(ActionReject, StatusRejected).
		PermitIf(ActionForward, StatusForwarded, func(r *entity.Report) bool { return r.Verified })

	b.Configure(StatusForwarded).
		Permit(ActionStart, StatusInProgress)

	b.Configure(StatusInProgress).
		Permit(ActionResolve, StatusResolved)

	b.Configure(StatusResolved).
		Permit(ActionClose, StatusClosed)

	return &Engine{machine: b.Build()}
}

// Verify marks a pending report as verified. The status stays pending until
// the report is explicitly forwarded; verification and forwarding are
// independent gates.
func (e *Engine) Verify(r *entity.Report, notes string, now time.Time) (*entity.Report, error) {
	status, err := currentStatus(r)
	if err != nil {
		return nil, err
	}

	if status != StatusPending {
		return nil, fmt.Errorf("%w: cannot verify a report in status %s", ErrInvalidTransition, status)
	}
	if r.Verified {
		return nil, fmt.Errorf("%w: report %s is already verified", ErrInvalidTransition, r.ID)
	}

	updated := *r
	updated.Verified = true
	updated.VerifiedAt = &now
	updated.AdminNotes = appendNotes(updated.AdminNotes, notes)
	updated.UpdatedAt = now
	return &updated, nil
}

// Reject rejects a report that has not yet been forwarded.
func (e *Engine) Reject(r *entity.Report, reason, notes string, now time.Time) (*entity.Report, error) {
	status, err := currentStatus(r)
	if err != nil {
		return nil, err
	}

	next, err := e.machine.Fire(r, status, ActionReject)
	if err != nil {
		return nil, err
	}

	updated := *r
	updated.Status = next.String()
	updated.Verified = false
	updated.RejectionReason = reason
	updated.RejectedAt = &now
	updated.AdminNotes = appendNotes(updated.AdminNotes, notes)
	updated.UpdatedAt = now
	return &updated, nil
}

// Forward routes a verified report to a department. Department existence is
// the caller's responsibility; the engine only enforces lifecycle legality.
func (e *Engine) Forward(r *entity.Report, departmentID, notes string, now time.Time) (*entity.Report, error) {
	status, err := currentStatus(r)
	if err != nil {
		return nil, err
	}

	if status == StatusPending && !r.Verified {
		return nil, fmt.Errorf("%w: report %s must be verified before forwarding", ErrInvalidTransition, r.ID)
	}

	next, err := e.machine.Fire(r, status, ActionForward)
	if err != nil {
		return nil, err
	}

	updated := *r
	updated.Status = next.String()
	updated.DepartmentID = &departmentID
	updated.ForwardedAt = &now
	updated.ForwardingNotes = appendNotes(updated.ForwardingNotes, notes)
	updated.UpdatedAt = now
	return &updated, nil
}

// Progress moves a forwarded report one step along the
// in_progress -> resolved -> closed chain. Backward moves and skipped steps
// are rejected.
func (e *Engine) Progress(r *entity.Report, target Status, notes string, now time.Time) (*entity.Report, error) {
	status, err := currentStatus(r)
	if err != nil {
		return nil, err
	}

	if !target.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, target)
	}

	action, ok := progressActions[target]
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a progress status", ErrInvalidTransition, target)
	}

	next, err := e.machine.Fire(r, status, action)
	if err != nil {
		return nil, err
	}
	if next != target {
		return nil, fmt.Errorf("%w: cannot move from %s to %s", ErrInvalidTransition, status, target)
	}

	updated := *r
	updated.Status = next.String()
	updated.AdminNotes = appendNotes(updated.AdminNotes, notes)
	updated.UpdatedAt = now
	return &updated, nil
}

func currentStatus(r *entity.Report) (Status, error) {
	status := Status(r.Status)
	if !status.IsValid() {
		return status, fmt.Errorf("%w: report %s has status %q", ErrInvalidStatus, r.ID, r.Status)
	}
	return status, nil
}

// appendNotes keeps notes append-only: existing notes are never overwritten.
func appendNotes(existing, notes string) string {
	if notes == "" {
		return existing
	}
	if existing == "" {
		return notes
	}
	return existing + "\n" + notes
}
