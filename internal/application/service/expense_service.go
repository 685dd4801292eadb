package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/expensio/approval-engine/internal/application/port"
	"github.com/expensio/approval-engine/internal/domain/approval"
	"github.com/expensio/approval-engine/internal/domain/entity"
	"github.com/expensio/approval-engine/internal/domain/workflow"
	"github.com/expensio/approval-engine/pkg/utils"
)

// SubmitExpenseInput carries the submitter-provided fields of a new expense.
type SubmitExpenseInput struct {
	Amount      float64
	Currency    string
	Category    string
	Description string
	Date        time.Time
}

// SubmitResult summarizes a submission for the caller.
type SubmitResult struct {
	ExpenseID int64  `json:"id"`
	Status    string `json:"status"`
	StepCount int    `json:"approval_steps"`
}

// ActResult reports the expense status after an approver action.
type ActResult struct {
	Status string `json:"status"`
}

// PendingApproval is one step awaiting a specific approver, with enough
// expense context to render a work queue.
type PendingApproval struct {
	Expense *entity.Expense     `json:"expense"`
	Step    entity.ApprovalStep `json:"step"`
}

// ExpenseService drives the expense approval workflow: submission with rule
// matching and step planning, approver actions, and the read paths around them.
type ExpenseService interface {
	Submit(ctx context.Context, employeeID int64, input SubmitExpenseInput) (*SubmitResult, error)
	Act(ctx context.Context, expenseID, actorID int64, action approval.Action, comment string) (*ActResult, error)
	ListPendingFor(ctx context.Context, userID int64) ([]PendingApproval, error)
	GetExpense(ctx context.Context, expenseID, viewerID int64) (*entity.Expense, error)
	ListMyExpenses(ctx context.Context, employeeID int64) ([]*entity.Expense, error)
	ListCompanyExpenses(ctx context.Context, viewerID int64) ([]*entity.Expense, error)
	ListHistory(ctx context.Context, expenseID, viewerID int64) ([]*entity.HistoryEntry, error)

	// GetActor resolves the acting user, for adapters that need the caller's
	// role or company.
	GetActor(ctx context.Context, userID int64) (*entity.User, error)
}

type expenseServiceImpl struct {
	expenses  port.ExpenseRepository
	rules     port.RuleRepository
	users     port.UserRepository
	companies port.CompanyRepository
	history   port.HistoryRepository
	converter port.CurrencyConverter
	txManager port.TransactionManager
	clock     port.Clock
	locker    *expenseLocker
	logger    *zap.Logger
}

// NewExpenseService creates a new ExpenseService.
func NewExpenseService(
	expenses port.ExpenseRepository,
	rules port.RuleRepository,
	users port.UserRepository,
	companies port.CompanyRepository,
	history port.HistoryRepository,
	converter port.CurrencyConverter,
	txManager port.TransactionManager,
	clock port.Clock,
	logger *zap.Logger,
) ExpenseService {
	return &expenseServiceImpl{
		expenses:  expenses,
		rules:     rules,
		users:     users,
		companies: companies,
		history:   history,
		converter: converter,
		txManager: txManager,
		clock:     clock,
		locker:    newExpenseLocker(),
		logger:    logger,
	}
}

// Submit creates an expense, matches the applicable approval rule and
// materializes its approval steps. Planning is a pure computation over a
// snapshot of the rule set and directory; no locking is needed here.
func (s *expenseServiceImpl) Submit(ctx context.Context, employeeID int64, input SubmitExpenseInput) (*SubmitResult, error) {
	if err := utils.ValidateAmount(input.Amount); err != nil {
		return nil, fmt.Errorf("%w: %v", approval.ErrValidation, err)
	}
	if err := utils.ValidateCurrencyCode(input.Currency); err != nil {
		return nil, fmt.Errorf("%w: %v", approval.ErrValidation, err)
	}
	if input.Category == "" {
		return nil, fmt.Errorf("%w: category is required", approval.ErrValidation)
	}

	employee, err := s.users.GetByID(ctx, employeeID)
	if err != nil {
		return nil, fmt.Errorf("load employee: %w", err)
	}
	if employee == nil {
		return nil, fmt.Errorf("%w: employee %d", approval.ErrNotFound, employeeID)
	}

	company, err := s.companies.GetByID(ctx, employee.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("load company: %w", err)
	}
	if company == nil {
		return nil, fmt.Errorf("%w: company %d", approval.ErrNotFound, employee.CompanyID)
	}

	// Conversion failure is swallowed: the raw amount stands in for the base
	// amount and the submission proceeds.
	baseAmount, err := s.converter.Convert(ctx, input.Amount, input.Currency, company.Currency)
	if err != nil {
		s.logger.Warn("Currency conversion failed, using raw amount",
			zap.String("from", input.Currency),
			zap.String("to", company.Currency),
			zap.Error(err))
		baseAmount = input.Amount
	}

	date := input.Date
	if date.IsZero() {
		date = s.clock.Now()
	}

	expense := &entity.Expense{
		EmployeeID:   employee.ID,
		CompanyID:    company.ID,
		Amount:       input.Amount,
		Currency:     input.Currency,
		BaseAmount:   baseAmount,
		BaseCurrency: company.Currency,
		Category:     input.Category,
		Description:  input.Description,
		Date:         date,
	}

	steps, err := s.planApprovalSteps(ctx, expense, employee)
	if err != nil {
		return nil, err
	}

	expense.Steps = steps
	if len(steps) > 0 {
		expense.Status = entity.ExpenseStatusPending
	} else {
		expense.Status = entity.ExpenseStatusApproved
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.expenses.Create(txCtx, expense); err != nil {
			return fmt.Errorf("create expense: %w", err)
		}

		entries := []*entity.HistoryEntry{{
			ExpenseID: expense.ID,
			Action:    entity.HistoryActionSubmitted,
			ActorID:   employee.ID,
			Metadata: map[string]string{
				"original_amount": fmt.Sprintf("%.2f %s", input.Amount, input.Currency),
				"category":        input.Category,
			},
		}}
		if len(steps) == 0 {
			entries = append(entries, &entity.HistoryEntry{
				ExpenseID: expense.ID,
				Action:    entity.HistoryActionAutoApproved,
				ActorID:   employee.ID,
			})
		}
		for _, entry := range entries {
			if err := s.history.Append(txCtx, entry); err != nil {
				return fmt.Errorf("append history: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to submit expense", zap.Int64("employee_id", employeeID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("Expense submitted",
		zap.Int64("expense_id", expense.ID),
		zap.Int64("employee_id", employee.ID),
		zap.String("status", expense.Status),
		zap.Int("steps", len(steps)))

	return &SubmitResult{ExpenseID: expense.ID, Status: expense.Status, StepCount: len(steps)}, nil
}

// planApprovalSteps matches a rule and expands it, or falls back to the
// manager-only default when nothing matches.
func (s *expenseServiceImpl) planApprovalSteps(ctx context.Context, expense *entity.Expense, employee *entity.User) ([]entity.ApprovalStep, error) {
	rules, err := s.rules.ListActive(ctx, employee.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}

	rule := approval.MatchRule(expense, employee, rules)
	if rule == nil || len(rule.Steps) == 0 {
		return approval.DefaultManagerStep(employee), nil
	}

	steps, err := approval.PlanSteps(ctx, rule, employee, s.users)
	if err != nil {
		return nil, fmt.Errorf("plan steps for rule %d: %w", rule.ID, err)
	}
	return steps, nil
}

// Act records one approver's decision. Mutations are serialized per expense
// so the threshold evaluation always sees a consistent step list and no step
// is resolved twice.
func (s *expenseServiceImpl) Act(ctx context.Context, expenseID, actorID int64, action approval.Action, comment string) (*ActResult, error) {
	s.locker.Lock(expenseID)
	defer s.locker.Unlock(expenseID)

	expense, err := s.expenses.GetByID(ctx, expenseID)
	if err != nil {
		return nil, fmt.Errorf("load expense: %w", err)
	}
	if expense == nil {
		return nil, fmt.Errorf("%w: expense %d", approval.ErrNotFound, expenseID)
	}
	if expense.IsTerminal() {
		return nil, fmt.Errorf("%w: expense %d is %s", approval.ErrTerminalState, expenseID, expense.Status)
	}

	decision, err := approval.Decide(expense.Steps, actorID, action, comment, s.clock.Now())
	if err != nil {
		return nil, err
	}

	machine := workflow.NewExpenseMachine(workflow.State(expense.Status))
	if err := machine.Fire(ctx, decision.Trigger); err != nil {
		return nil, fmt.Errorf("transition %s from %s: %w", decision.Trigger, expense.Status, err)
	}

	expense.Status = machine.State().String()
	expense.Steps = decision.Steps
	if cur, ok := approval.CurrentSequence(decision.Steps); ok {
		expense.CurrentStepIndex = cur
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.expenses.Save(txCtx, expense); err != nil {
			return fmt.Errorf("save expense: %w", err)
		}
		for _, event := range decision.Events {
			entry := &entity.HistoryEntry{
				ExpenseID: expense.ID,
				Action:    event.Action,
				ActorID:   actorID,
				Metadata:  event.Metadata,
			}
			if err := s.history.Append(txCtx, entry); err != nil {
				return fmt.Errorf("append history: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to record approver action",
			zap.Int64("expense_id", expenseID),
			zap.Int64("actor_id", actorID),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("Approver action recorded",
		zap.Int64("expense_id", expenseID),
		zap.Int64("actor_id", actorID),
		zap.String("action", string(action)),
		zap.String("status", expense.Status))

	return &ActResult{Status: expense.Status}, nil
}

// ListPendingFor returns the steps in each open expense's current sequence
// that are waiting on the given user.
func (s *expenseServiceImpl) ListPendingFor(ctx context.Context, userID int64) ([]PendingApproval, error) {
	expenses, err := s.expenses.ListAwaitingApprover(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load awaiting expenses: %w", err)
	}

	pending := make([]PendingApproval, 0, len(expenses))
	for _, expense := range expenses {
		current, ok := approval.CurrentSequence(expense.Steps)
		if !ok {
			continue
		}
		for _, step := range expense.Steps {
			if step.ApproverID == userID && step.Sequence == current && step.Status == entity.StepStatusPending {
				pending = append(pending, PendingApproval{Expense: expense, Step: step})
			}
		}
	}
	return pending, nil
}

// GetExpense returns one expense if the viewer is its owner, a company admin
// or one of its approvers.
func (s *expenseServiceImpl) GetExpense(ctx context.Context, expenseID, viewerID int64) (*entity.Expense, error) {
	expense, viewer, err := s.loadForViewer(ctx, expenseID, viewerID)
	if err != nil {
		return nil, err
	}
	if !canView(expense, viewer) {
		return nil, fmt.Errorf("%w: user %d may not view expense %d", approval.ErrNotAuthorized, viewerID, expenseID)
	}

	entries, err := s.history.ListByExpense(ctx, expenseID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	expense.History = make([]entity.HistoryEntry, 0, len(entries))
	for _, entry := range entries {
		expense.History = append(expense.History, *entry)
	}
	return expense, nil
}

// ListMyExpenses returns the employee's own expenses, newest first.
func (s *expenseServiceImpl) ListMyExpenses(ctx context.Context, employeeID int64) ([]*entity.Expense, error) {
	return s.expenses.ListByEmployee(ctx, employeeID)
}

// ListCompanyExpenses is role-scoped: admins see every expense in their
// company, managers see their own plus their direct reports', employees see
// only their own.
func (s *expenseServiceImpl) ListCompanyExpenses(ctx context.Context, viewerID int64) ([]*entity.Expense, error) {
	viewer, err := s.users.GetByID(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("load viewer: %w", err)
	}
	if viewer == nil {
		return nil, fmt.Errorf("%w: user %d", approval.ErrNotFound, viewerID)
	}

	switch viewer.Role {
	case entity.RoleAdmin:
		return s.expenses.ListByCompany(ctx, viewer.CompanyID)
	case entity.RoleManager:
		team, err := s.users.ListByManager(ctx, viewer.ID)
		if err != nil {
			return nil, fmt.Errorf("load team: %w", err)
		}
		ids := make([]int64, 0, len(team)+1)
		for _, member := range team {
			ids = append(ids, member.ID)
		}
		ids = append(ids, viewer.ID)
		return s.expenses.ListByEmployees(ctx, ids)
	default:
		return s.expenses.ListByEmployee(ctx, viewer.ID)
	}
}

// ListHistory returns the audit trail of one expense, subject to the same
// view authorization as GetExpense.
func (s *expenseServiceImpl) ListHistory(ctx context.Context, expenseID, viewerID int64) ([]*entity.HistoryEntry, error) {
	expense, viewer, err := s.loadForViewer(ctx, expenseID, viewerID)
	if err != nil {
		return nil, err
	}
	if !canView(expense, viewer) {
		return nil, fmt.Errorf("%w: user %d may not view expense %d", approval.ErrNotAuthorized, viewerID, expenseID)
	}
	return s.history.ListByExpense(ctx, expenseID)
}

// GetActor resolves one user by ID.
func (s *expenseServiceImpl) GetActor(ctx context.Context, userID int64) (*entity.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %d", approval.ErrNotFound, userID)
	}
	return user, nil
}

func (s *expenseServiceImpl) loadForViewer(ctx context.Context, expenseID, viewerID int64) (*entity.Expense, *entity.User, error) {
	expense, err := s.expenses.GetByID(ctx, expenseID)
	if err != nil {
		return nil, nil, fmt.Errorf("load expense: %w", err)
	}
	if expense == nil {
		return nil, nil, fmt.Errorf("%w: expense %d", approval.ErrNotFound, expenseID)
	}
	viewer, err := s.users.GetByID(ctx, viewerID)
	if err != nil {
		return nil, nil, fmt.Errorf("load viewer: %w", err)
	}
	if viewer == nil {
		return nil, nil, fmt.Errorf("%w: user %d", approval.ErrNotFound, viewerID)
	}
	return expense, viewer, nil
}

func canView(expense *entity.Expense, viewer *entity.User) bool {
	if expense.EmployeeID == viewer.ID {
		return true
	}
	if viewer.Role == entity.RoleAdmin && viewer.CompanyID == expense.CompanyID {
		return true
	}
	for _, step := range expense.Steps {
		if step.ApproverID == viewer.ID {
			return true
		}
	}
	return false
}
