package workflow

// Trigger represents an approver action outcome that drives a state transition.
type Trigger string

const (
	// TriggerApproveStep fires when an approval was recorded but the
	// workflow still has open sequences.
	TriggerApproveStep Trigger = "APPROVE_STEP"
	// TriggerFullyApprove fires when the last sequence completed.
	TriggerFullyApprove Trigger = "FULLY_APPROVE"
	// TriggerReject fires on any rejection.
	TriggerReject Trigger = "REJECT"
)

// String returns the string representation of the trigger.
func (t Trigger) String() string {
	return string(t)
}
