package lifecycle

import (
	"fmt"

	"github.com/jantaseva/civic-workflow/internal/domain/entity"
)

// GuardFunc evaluates whether a transition is allowed for the given report
type GuardFunc func(r *entity.Report) bool

// Machine validates status transitions. It is stateless: the current status
// is read from the report passed to each call, so one machine instance is
// shared safely across every report.
type Machine interface {
	// CanFire returns true if the action is configured from the given status
	CanFire(from Status, action Action) bool

	// Fire validates the action against the report's persisted status and
	// returns the status it transitions to
	Fire(r *entity.Report, from Status, action Action) (Status, error)

	// PermittedActions returns all actions configured from the given status
	PermittedActions(from Status) []Action
}

// MachineBuilder builds a configured machine
type MachineBuilder interface {
	// Configure returns a status configuration for the given status
	Configure(status Status) StatusConfiguration

	// Build creates an immutable machine from the accumulated configuration
	Build() Machine
}

// StatusConfiguration configures transitions out of a specific status
type StatusConfiguration interface {
	// Permit allows an action to transition to the target status
	Permit(action Action, to Status) StatusConfiguration

	// PermitIf allows an action to transition to the target status when the
	// guard passes
	PermitIf(action Action, to Status, guard GuardFunc) StatusConfiguration
}

type transition struct {
	to    Status
	guard GuardFunc
}

type statusConfig struct {
	from        Status
	transitions map[Action][]transition
}

type machineBuilder struct {
	configurations map[Status]*statusConfig
}

type machine struct {
	configurations map[Status]*statusConfig
}

// NewBuilder creates a new machine builder
func NewBuilder() MachineBuilder {
	return &machineBuilder{
		configurations: make(map[Status]*statusConfig),
	}
}

// Configure returns a status configuration for the given status
func (b *machineBuilder) Configure(status Status) StatusConfiguration {
	if !status.IsValid() {
		panic(fmt.Sprintf("invalid status: %s", status))
	}

	config, exists := b.configurations[status]
	if !exists {
		config = &statusConfig{
			from:        status,
			transitions: make(map[Action][]transition),
		}
		b.configurations[status] = config
	}

	return config
}

// Build creates an immutable machine from the accumulated configuration
func (b *machineBuilder) Build() Machine {
	configsCopy := make(map[Status]*statusConfig)
	for status, config := range b.configurations {
		transitionsCopy := make(map[Action][]transition)
		for action, transitions := range config.transitions {
			transitionsCopy[action] = append([]transition{}, transitions...)
		}
		configsCopy[status] = &statusConfig{
			from:        status,
			transitions: transitionsCopy,
		}
	}

	return &machine{configurations: configsCopy}
}

// Permit allows an action to transition to the target status
func (c *statusConfig) Permit(action Action, to Status) StatusConfiguration {
	return c.PermitIf(action, to, nil)
}

// PermitIf allows an action to transition to the target status when the guard passes
func (c *statusConfig) PermitIf(action Action, to Status, guard GuardFunc) StatusConfiguration {
	if !to.IsValid() {
		panic(fmt.Sprintf("invalid target status: %s", to))
	}

	c.transitions[action] = append(c.transitions[action], transition{
		to:    to,
		guard: guard,
	})

	return c
}

// CanFire returns true if the action is configured from the given status
func (m *machine) CanFire(from Status, action Action) bool {
	config, exists := m.configurations[from]
	if !exists {
		return false
	}

	transitions, exists := config.transitions[action]
	return exists && len(transitions) > 0
}

// Fire validates the action against the report's persisted status and
// returns the status it transitions to
func (m *machine) Fire(r *entity.Report, from Status, action Action) (Status, error) {
	config, exists := m.configurations[from]
	if !exists {
		return from, fmt.Errorf("%w: cannot %s a report in status %s", ErrInvalidTransition, action, from)
	}

	transitions, exists := config.transitions[action]
	if !exists || len(transitions) == 0 {
		return from, fmt.Errorf("%w: cannot %s a report in status %s", ErrInvalidTransition, action, from)
	}

	for _, t := range transitions {
		if t.guard == nil || t.guard(r) {
			return t.to, nil
		}
	}

	return from, fmt.Errorf("%w: %s from status %s blocked by guard", ErrInvalidTransition, action, from)
}

// PermittedActions returns all actions configured from the given status
func (m *machine) PermittedActions(from Status) []Action {
	config, exists := m.configurations[from]
	if !exists {
		return []Action{}
	}

	actions := make([]Action, 0, len(config.transitions))
	for action := range config.transitions {
		actions = append(actions, action)
	}

	return actions
}
