package workflow

import "context"

// StateMachine tracks an expense's lifecycle state and validates transitions.
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire returns true if the trigger is permitted in the current state
	CanFire(trigger Trigger) bool

	// Fire attempts to execute the trigger, transitioning to the new state if allowed
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers returns all triggers that can be fired in the current state
	PermittedTriggers() []Trigger
}

// NewExpenseMachine builds the approval lifecycle machine starting from the
// given state. Approvals loop through partially_approved until the last
// sequence completes; a rejection is always terminal.
func NewExpenseMachine(initial State) StateMachine {
	b := NewBuilder()

	b.Configure(StatePending).
		Permit(TriggerApproveStep, StatePartiallyApproved).
		Permit(TriggerFullyApprove, StateApproved).
		Permit(TriggerReject, StateRejected)

	b.Configure(StatePartiallyApproved).
		Permit(TriggerApproveStep, StatePartiallyApproved).
		Permit(TriggerFullyApprove, StateApproved).
		Permit(TriggerReject, StateRejected)

	return b.Build(initial)
}
