package entity

import "time"

// DefaultPercentageThreshold is applied when a rule step does not set one.
const DefaultPercentageThreshold = 100

// RuleStep is one phase of a configured approval workflow. Steps sharing a
// sequence number run in parallel; sequences run in ascending order.
type RuleStep struct {
	Name               string  `json:"name"`
	Sequence           int     `json:"sequence"`
	IsManagerApprover  bool    `json:"is_manager_approver"`
	SpecificApprovers  []int64 `json:"specific_approvers,omitempty"`
	RoleBasedApprovers []Role  `json:"role_based_approvers,omitempty"`
	// PercentageThreshold is the share of approvers in this step that must
	// approve before the sequence counts as complete (1..100).
	PercentageThreshold int  `json:"percentage_threshold"`
	IsRequired          bool `json:"is_required"`
	// SkipIfPreviousRejected is persisted for rule authors but not consulted
	// by the sequencer: any rejection terminates the whole workflow.
	SkipIfPreviousRejected bool `json:"skip_if_previous_rejected"`
}

// RuleConditions narrow the expenses a rule applies to. A zero-value field
// means "no constraint".
type RuleConditions struct {
	MinAmount     *float64 `json:"min_amount,omitempty"`
	MaxAmount     *float64 `json:"max_amount,omitempty"`
	Category      string   `json:"category,omitempty"`
	Department    string   `json:"department,omitempty"`
	EmployeeRoles []Role   `json:"employee_roles,omitempty"`
}

// ApprovalRule is a company-scoped, prioritized approval workflow definition.
// Higher priority rules are evaluated first; the first rule whose conditions
// all pass wins.
type ApprovalRule struct {
	ID          int64          `json:"id"`
	CompanyID   int64          `json:"company_id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Steps       []RuleStep     `json:"steps"`
	Conditions  RuleConditions `json:"conditions"`
	IsActive    bool           `json:"is_active"`
	Priority    int            `json:"priority"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
