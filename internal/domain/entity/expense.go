package entity

import "time"

// Expense status constants. Approved and rejected are terminal.
const (
	ExpenseStatusPending           = "pending"
	ExpenseStatusPartiallyApproved = "partially_approved"
	ExpenseStatusApproved          = "approved"
	ExpenseStatusRejected          = "rejected"
)

// Approval step instance status constants.
const (
	StepStatusPending  = "pending"
	StepStatusApproved = "approved"
	StepStatusRejected = "rejected"
	StepStatusSkipped  = "skipped"
)

// History action constants.
const (
	HistoryActionSubmitted         = "submitted"
	HistoryActionAutoApproved      = "auto_approved"
	HistoryActionStepApproved      = "step_approved"
	HistoryActionSequenceCompleted = "sequence_completed"
	HistoryActionFullyApproved     = "fully_approved"
	HistoryActionRejected          = "rejected"
)

// ApprovalStep is one approver's assignment within an expense's workflow.
// All steps sharing a sequence are evaluated in parallel against the
// sequence's percentage threshold.
type ApprovalStep struct {
	ID                  int64      `json:"id"`
	ExpenseID           int64      `json:"expense_id"`
	ApproverID          int64      `json:"approver_id"`
	StepName            string     `json:"step_name"`
	Sequence            int        `json:"sequence"`
	PercentageThreshold int        `json:"percentage_threshold"`
	IsRequired          bool       `json:"is_required"`
	Status              string     `json:"status"`
	ActedAt             *time.Time `json:"acted_at,omitempty"`
	Comment             string     `json:"comment,omitempty"`
}

// HistoryEntry is one immutable record in an expense's audit trail.
type HistoryEntry struct {
	ID        int64             `json:"id"`
	ExpenseID int64             `json:"expense_id"`
	Action    string            `json:"action"`
	ActorID   int64             `json:"actor_id"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Expense is a submitted expense together with its materialized approval
// steps. Steps are created once at submission time and only their status,
// acted_at and comment fields change afterwards.
type Expense struct {
	ID           int64     `json:"id"`
	EmployeeID   int64     `json:"employee_id"`
	CompanyID    int64     `json:"company_id"`
	Amount       float64   `json:"amount"`
	Currency     string    `json:"currency"`
	BaseAmount   float64   `json:"base_amount"`
	BaseCurrency string    `json:"base_currency"`
	Category     string    `json:"category"`
	Description  string    `json:"description,omitempty"`
	Date         time.Time `json:"date"`
	Status       string    `json:"status"`
	// CurrentStepIndex is advisory only; the authoritative position in the
	// workflow is derived from the step statuses.
	CurrentStepIndex int            `json:"current_step_index"`
	Steps            []ApprovalStep `json:"approval_steps"`
	History          []HistoryEntry `json:"history,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// IsTerminal returns true once the expense reached a final decision.
func (e *Expense) IsTerminal() bool {
	return e.Status == ExpenseStatusApproved || e.Status == ExpenseStatusRejected
}
