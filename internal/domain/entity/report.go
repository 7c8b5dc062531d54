package entity

import "time"

// Report represents a citizen-submitted civic issue report
type Report struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Category        string     `json:"category"`
	Location        string     `json:"location"`
	Latitude        *float64   `json:"latitude,omitempty"`
	Longitude       *float64   `json:"longitude,omitempty"`
	ReporterName    string     `json:"reporter_name"`
	ReporterPhone   string     `json:"reporter_phone"`
	ReporterEmail   string     `json:"reporter_email"`
	Status          string     `json:"status"`
	Verified        bool       `json:"verified"`
	DepartmentID    *string    `json:"department_id,omitempty"`
	AdminNotes      string     `json:"admin_notes,omitempty"`
	ForwardingNotes string     `json:"forwarding_notes,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	VerifiedAt      *time.Time `json:"verified_at,omitempty"`
	ForwardedAt     *time.Time `json:"forwarded_at,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ReportFilter narrows report listings
type ReportFilter struct {
	Status       string
	DepartmentID string
	Verified     *bool
	Limit        int
	Offset       int
}
