package lifecycle

// Action represents a staff request that can change a report's lifecycle fields
type Action string

const (
	ActionVerify  Action = "verify"
	ActionReject  Action = "reject"
	ActionForward Action = "forward"
	ActionStart   Action = "start"
	ActionResolve Action = "resolve"
	ActionClose   Action = "close"
)

// String returns the string representation of the action
func (a Action) String() string {
	return string(a)
}

// progressActions maps a setStatus target to the machine action that reaches it
var progressActions = map[Status]Action{
	StatusInProgress: ActionStart,
	StatusResolved:   ActionResolve,
	StatusClosed:     ActionClose,
}
