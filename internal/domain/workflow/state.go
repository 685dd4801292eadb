package workflow

// State represents an expense's position in the approval lifecycle.
type State string

const (
	// StatePending is entered at submission time when at least one approval
	// step was planned and none has been acted on yet.
	StatePending State = "pending"
	// StatePartiallyApproved means at least one approval was recorded but
	// the workflow still has open sequences.
	StatePartiallyApproved State = "partially_approved"
	// StateApproved is terminal: every sequence completed.
	StateApproved State = "approved"
	// StateRejected is terminal: a single rejection ends the workflow.
	StateRejected State = "rejected"
)

var validStates = map[State]bool{
	StatePending:           true,
	StatePartiallyApproved: true,
	StateApproved:          true,
	StateRejected:          true,
}

var terminalStates = map[State]bool{
	StateApproved: true,
	StateRejected: true,
}

// IsTerminal returns true if no further transitions are allowed from the state.
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// IsValid returns true if the state is a known lifecycle state.
func (s State) IsValid() bool {
	return validStates[s]
}

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}
