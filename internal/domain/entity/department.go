package entity

import "time"

// Department represents a government department reports are forwarded to
type Department struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	ContactEmail string    `json:"contact_email"`
	ContactPhone string    `json:"contact_phone,omitempty"`
	HeadName     string    `json:"head_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
