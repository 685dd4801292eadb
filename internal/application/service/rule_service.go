package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/expensio/approval-engine/internal/application/port"
	"github.com/expensio/approval-engine/internal/domain/approval"
	"github.com/expensio/approval-engine/internal/domain/entity"
)

// RuleInput carries the author-provided fields of an approval rule.
type RuleInput struct {
	Name        string
	Description string
	Steps       []entity.RuleStep
	Conditions  entity.RuleConditions
	Priority    int
	IsActive    *bool
}

// RuleService manages a company's approval rule catalog. Malformed rule
// definitions and unresolved approver IDs are rejected at authoring time, not
// at submission time.
type RuleService interface {
	Create(ctx context.Context, companyID int64, input RuleInput) (*entity.ApprovalRule, error)
	Get(ctx context.Context, id, companyID int64) (*entity.ApprovalRule, error)
	List(ctx context.Context, companyID int64) ([]*entity.ApprovalRule, error)
	Update(ctx context.Context, id, companyID int64, input RuleInput) (*entity.ApprovalRule, error)
	Delete(ctx context.Context, id, companyID int64) error
}

type ruleServiceImpl struct {
	rules  port.RuleRepository
	users  port.UserRepository
	logger *zap.Logger
}

// NewRuleService creates a new RuleService.
func NewRuleService(rules port.RuleRepository, users port.UserRepository, logger *zap.Logger) RuleService {
	return &ruleServiceImpl{rules: rules, users: users, logger: logger}
}

// Create validates and persists a new rule.
func (s *ruleServiceImpl) Create(ctx context.Context, companyID int64, input RuleInput) (*entity.ApprovalRule, error) {
	if err := s.validate(ctx, companyID, input); err != nil {
		return nil, err
	}

	rule := &entity.ApprovalRule{
		CompanyID:   companyID,
		Name:        input.Name,
		Description: input.Description,
		Steps:       normalizeSteps(input.Steps),
		Conditions:  input.Conditions,
		Priority:    input.Priority,
		IsActive:    true,
	}
	if input.IsActive != nil {
		rule.IsActive = *input.IsActive
	}

	if err := s.rules.Create(ctx, rule); err != nil {
		return nil, fmt.Errorf("create rule: %w", err)
	}

	s.logger.Info("Approval rule created",
		zap.Int64("rule_id", rule.ID),
		zap.Int64("company_id", companyID),
		zap.Int("priority", rule.Priority),
		zap.Int("steps", len(rule.Steps)))

	return rule, nil
}

// Get returns one rule scoped to the caller's company.
func (s *ruleServiceImpl) Get(ctx context.Context, id, companyID int64) (*entity.ApprovalRule, error) {
	rule, err := s.rules.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load rule: %w", err)
	}
	if rule == nil || rule.CompanyID != companyID {
		return nil, fmt.Errorf("%w: rule %d", approval.ErrNotFound, id)
	}
	return rule, nil
}

// List returns all of a company's rules, highest priority first.
func (s *ruleServiceImpl) List(ctx context.Context, companyID int64) ([]*entity.ApprovalRule, error) {
	return s.rules.List(ctx, companyID)
}

// Update validates and replaces an existing rule's definition.
func (s *ruleServiceImpl) Update(ctx context.Context, id, companyID int64, input RuleInput) (*entity.ApprovalRule, error) {
	rule, err := s.Get(ctx, id, companyID)
	if err != nil {
		return nil, err
	}

	if err := s.validate(ctx, companyID, input); err != nil {
		return nil, err
	}

	rule.Name = input.Name
	rule.Description = input.Description
	rule.Steps = normalizeSteps(input.Steps)
	rule.Conditions = input.Conditions
	rule.Priority = input.Priority
	if input.IsActive != nil {
		rule.IsActive = *input.IsActive
	}

	if err := s.rules.Update(ctx, rule); err != nil {
		return nil, fmt.Errorf("update rule: %w", err)
	}

	s.logger.Info("Approval rule updated", zap.Int64("rule_id", rule.ID))
	return rule, nil
}

// Delete removes a rule. Expenses already submitted keep their materialized
// steps; deletion only affects future submissions.
func (s *ruleServiceImpl) Delete(ctx context.Context, id, companyID int64) error {
	if _, err := s.Get(ctx, id, companyID); err != nil {
		return err
	}
	if err := s.rules.Delete(ctx, id, companyID); err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	s.logger.Info("Approval rule deleted", zap.Int64("rule_id", id))
	return nil
}

func (s *ruleServiceImpl) validate(ctx context.Context, companyID int64, input RuleInput) error {
	if input.Name == "" {
		return fmt.Errorf("%w: rule name is required", approval.ErrValidation)
	}
	if len(input.Steps) == 0 {
		return fmt.Errorf("%w: at least one approval step is required", approval.ErrValidation)
	}

	var specific []int64
	for _, step := range input.Steps {
		if step.Name == "" || step.Sequence <= 0 {
			return fmt.Errorf("%w: each step must have a name and a positive sequence", approval.ErrValidation)
		}
		if step.PercentageThreshold < 0 || step.PercentageThreshold > 100 {
			return fmt.Errorf("%w: percentage threshold must be within 1..100", approval.ErrValidation)
		}
		for _, role := range step.RoleBasedApprovers {
			if !role.IsValid() {
				return fmt.Errorf("%w: unknown role %q", approval.ErrValidation, role)
			}
		}
		specific = append(specific, step.SpecificApprovers...)
	}
	for _, role := range input.Conditions.EmployeeRoles {
		if !role.IsValid() {
			return fmt.Errorf("%w: unknown role %q in conditions", approval.ErrValidation, role)
		}
	}
	if input.Conditions.MinAmount != nil && input.Conditions.MaxAmount != nil &&
		*input.Conditions.MinAmount > *input.Conditions.MaxAmount {
		return fmt.Errorf("%w: min amount exceeds max amount", approval.ErrValidation)
	}

	if len(specific) > 0 {
		users, err := s.users.ListByIDs(ctx, specific)
		if err != nil {
			return fmt.Errorf("resolve approvers: %w", err)
		}
		known := make(map[int64]bool, len(users))
		for _, u := range users {
			if u.CompanyID == companyID {
				known[u.ID] = true
			}
		}
		for _, id := range specific {
			if !known[id] {
				return fmt.Errorf("%w: approver %d not found in company", approval.ErrValidation, id)
			}
		}
	}

	return nil
}

// normalizeSteps defaults unset thresholds and required flags the way the
// rule schema documents them.
func normalizeSteps(steps []entity.RuleStep) []entity.RuleStep {
	out := make([]entity.RuleStep, len(steps))
	copy(out, steps)
	for i := range out {
		if out[i].PercentageThreshold == 0 {
			out[i].PercentageThreshold = entity.DefaultPercentageThreshold
		}
	}
	return out
}
