package service

import (
	"fmt"

	"github.com/jantaseva/civic-workflow/internal/domain/entity"
	"github.com/jantaseva/civic-workflow/internal/domain/lifecycle"
)

// Notification kinds, one template family per transition
const (
	KindApproved      = "approved"
	KindRejected      = "rejected"
	KindForwarded     = "forwarded"
	KindStatusChanged = "status_changed"
)

// ComposeExtra carries the transition payload the templates interpolate
type ComposeExtra struct {
	Note           string
	Reason         string
	DepartmentName string
}

// Compose builds the channel-agnostic notification draft for a transition.
// Deterministic given its inputs: no clock, storage or network access. The
// event key ties the draft to the committed transition, so a retried dispatch
// for the same transition composes the same key.
func Compose(report *entity.Report, kind string, extra ComposeExtra) *entity.Notification {
	return &entity.Notification{
		ReportID:       report.ID,
		EventKey:       eventKey(report, kind),
		Kind:           kind,
		Title:          "Report Status Updated",
		Body:           composeBody(report, kind, extra),
		ReportStatus:   report.Status,
		RecipientPhone: report.ReporterPhone,
		RecipientEmail: report.ReporterEmail,
		DeliveryStatus: entity.DeliveryPending,
	}
}

func eventKey(report *entity.Report, kind string) string {
	return fmt.Sprintf("%s:%s:%s:%d", report.ID, kind, report.Status, report.UpdatedAt.UnixNano())
}

func composeBody(report *entity.Report, kind string, extra ComposeExtra) string {
	switch kind {
	case KindApproved:
		if extra.Note != "" {
			return fmt.Sprintf("Your report %q has been approved and verified. Admin notes: %s", report.Title, extra.Note)
		}
		return fmt.Sprintf("Your report %q has been approved and verified. Action will be taken soon.", report.Title)

	case KindRejected:
		return fmt.Sprintf("Your report %q has been reviewed. Reason: %s. You can submit a new report with additional details if needed.", report.Title, extra.Reason)

	case KindForwarded:
		dept := extra.DepartmentName
		if dept == "" {
			dept = "the responsible department"
		}
		return fmt.Sprintf("Your report %q has been forwarded to %s for action. You will receive updates on progress.", report.Title, dept)

	case KindStatusChanged:
		return statusChangeBody(report, extra.Note)
	}

	return fmt.Sprintf("Your report %q status has been updated to %s.", report.Title, report.Status)
}

func statusChangeBody(report *entity.Report, note string) string {
	switch lifecycle.Status(report.Status) {
	case lifecycle.StatusInProgress:
		if note == "" {
			note = "Our team is actively working on this issue."
		}
		return fmt.Sprintf("Work has started on your report %q. %s", report.Title, note)

	case lifecycle.StatusResolved:
		if note == "" {
			note = "Thank you for reporting this issue."
		}
		return fmt.Sprintf("Great news! Your report %q has been resolved. %s", report.Title, note)

	case lifecycle.StatusClosed:
		if note == "" {
			note = "If you still face issues, please submit a new report."
		}
		return fmt.Sprintf("Your report %q has been closed. %s", report.Title, note)
	}

	body := fmt.Sprintf("Your report %q status has been updated to %s.", report.Title, report.Status)
	if note != "" {
		body += " " + note
	}
	return body
}
