package approval

import (
	"context"
	"fmt"
	"sort"

	"github.com/expensio/approval-engine/internal/domain/entity"
)

// DefaultManagerStepName names the fallback step used when no rule matches.
const DefaultManagerStepName = "Manager Approval"

// Directory resolves approver identities for step planning. Implemented by
// the user repository; planning batches all role lookups into a single call.
type Directory interface {
	ListByRoles(ctx context.Context, companyID int64, roles []entity.Role) ([]*entity.User, error)
}

// PlanSteps expands a matched rule into concrete approval step instances for
// one expense. For each rule step, candidate approvers are collected from the
// employee's manager, the step's specific approvers and the company users
// holding one of the step's roles, then deduplicated with the expense owner
// removed. A step left with no approvers produces no instances and is
// silently dropped, even when marked required. Neither rule nor employee is
// mutated; a fresh slice is returned.
func PlanSteps(ctx context.Context, rule *entity.ApprovalRule, employee *entity.User, dir Directory) ([]entity.ApprovalStep, error) {
	steps := make([]entity.RuleStep, len(rule.Steps))
	copy(steps, rule.Steps)
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].Sequence < steps[j].Sequence
	})

	roleMembers, err := resolveRoleMembers(ctx, rule.CompanyID, steps, dir)
	if err != nil {
		return nil, err
	}

	var instances []entity.ApprovalStep
	for _, step := range steps {
		approvers := candidateApprovers(step, employee, roleMembers)
		threshold := step.PercentageThreshold
		if threshold <= 0 || threshold > 100 {
			threshold = entity.DefaultPercentageThreshold
		}
		for _, approverID := range approvers {
			instances = append(instances, entity.ApprovalStep{
				ApproverID:          approverID,
				StepName:            step.Name,
				Sequence:            step.Sequence,
				PercentageThreshold: threshold,
				IsRequired:          step.IsRequired,
				Status:              entity.StepStatusPending,
			})
		}
	}

	return instances, nil
}

// DefaultManagerStep synthesizes the single-step fallback workflow routed to
// the employee's manager. Returns an empty slice when the employee has no
// manager, in which case no approval is required at all.
func DefaultManagerStep(employee *entity.User) []entity.ApprovalStep {
	if employee.ManagerID == nil {
		return nil
	}
	return []entity.ApprovalStep{{
		ApproverID:          *employee.ManagerID,
		StepName:            DefaultManagerStepName,
		Sequence:            1,
		PercentageThreshold: entity.DefaultPercentageThreshold,
		IsRequired:          true,
		Status:              entity.StepStatusPending,
	}}
}

// resolveRoleMembers performs one directory lookup covering every role named
// across all rule steps, avoiding a round-trip per step.
func resolveRoleMembers(ctx context.Context, companyID int64, steps []entity.RuleStep, dir Directory) (map[entity.Role][]int64, error) {
	seen := make(map[entity.Role]bool)
	var roles []entity.Role
	for _, step := range steps {
		for _, role := range step.RoleBasedApprovers {
			if !seen[role] {
				seen[role] = true
				roles = append(roles, role)
			}
		}
	}

	members := make(map[entity.Role][]int64, len(roles))
	if len(roles) == 0 {
		return members, nil
	}

	users, err := dir.ListByRoles(ctx, companyID, roles)
	if err != nil {
		return nil, fmt.Errorf("resolve role approvers: %w", err)
	}
	for _, u := range users {
		members[u.Role] = append(members[u.Role], u.ID)
	}
	return members, nil
}

// candidateApprovers unions the three approver sources for a step in a
// deterministic order (manager, specific, role-based), deduplicates by ID and
// drops the expense owner. Self-approval is never permitted.
func candidateApprovers(step entity.RuleStep, employee *entity.User, roleMembers map[entity.Role][]int64) []int64 {
	var candidates []int64

	if step.IsManagerApprover && employee.ManagerID != nil {
		candidates = append(candidates, *employee.ManagerID)
	}
	candidates = append(candidates, step.SpecificApprovers...)
	for _, role := range step.RoleBasedApprovers {
		candidates = append(candidates, roleMembers[role]...)
	}

	seen := make(map[int64]bool, len(candidates))
	approvers := make([]int64, 0, len(candidates))
	for _, id := range candidates {
		if id == employee.ID || seen[id] {
			continue
		}
		seen[id] = true
		approvers = append(approvers, id)
	}
	return approvers
}
