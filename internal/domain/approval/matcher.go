package approval

import (
	"sort"

	"github.com/expensio/approval-engine/internal/domain/entity"
)

// MatchRule returns the first rule whose conditions all pass for the given
// expense/employee pair, evaluating rules by descending priority. Ties are
// broken by the order rules arrive in (the catalog returns creation order),
// kept stable by the sort. Returns nil when no rule applies; the caller then
// falls back to the default manager-only step.
func MatchRule(expense *entity.Expense, employee *entity.User, rules []*entity.ApprovalRule) *entity.ApprovalRule {
	ordered := make([]*entity.ApprovalRule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})

	for _, rule := range ordered {
		if !rule.IsActive {
			continue
		}
		if ruleApplies(rule, expense, employee) {
			return rule
		}
	}
	return nil
}

// ruleApplies checks every configured condition; an unset condition imposes
// no constraint. Amount bounds are inclusive.
func ruleApplies(rule *entity.ApprovalRule, expense *entity.Expense, employee *entity.User) bool {
	cond := rule.Conditions

	if cond.MinAmount != nil && expense.Amount < *cond.MinAmount {
		return false
	}
	if cond.MaxAmount != nil && expense.Amount > *cond.MaxAmount {
		return false
	}
	if cond.Category != "" && expense.Category != cond.Category {
		return false
	}
	if cond.Department != "" && employee.Department != cond.Department {
		return false
	}
	if len(cond.EmployeeRoles) > 0 {
		found := false
		for _, role := range cond.EmployeeRoles {
			if employee.Role == role {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	return true
}
