package lifecycle

// Status represents a report's position in the civic-issue lifecycle
type Status string

const (
	StatusPending    Status = "pending"
	StatusForwarded  Status = "forwarded"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
	StatusRejected   Status = "rejected"
)

var validStatuses = map[Status]bool{
	StatusPending:    true,
	StatusForwarded:  true,
	StatusInProgress: true,
	StatusResolved:   true,
	StatusClosed:     true,
	StatusRejected:   true,
}

var terminalStatuses = map[Status]bool{
	StatusClosed:   true,
	StatusRejected: true,
}

// IsTerminal returns true if the status permits no further transitions
func (s Status) IsTerminal() bool {
	return terminalStatuses[s]
}

// IsValid returns true if the status is a known lifecycle status
func (s Status) IsValid() bool {
	return validStatuses[s]
}

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}
