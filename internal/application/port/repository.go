package port

import (
	"context"

	"github.com/expensio/approval-engine/internal/domain/entity"
)

// RuleRepository defines persistence operations for ApprovalRule.
type RuleRepository interface {
	Create(ctx context.Context, rule *entity.ApprovalRule) error
	GetByID(ctx context.Context, id int64) (*entity.ApprovalRule, error)

	// ListActive returns a company's active rules ordered by priority
	// descending with creation order as the stable tie-break.
	ListActive(ctx context.Context, companyID int64) ([]*entity.ApprovalRule, error)

	// List returns all of a company's rules, active or not.
	List(ctx context.Context, companyID int64) ([]*entity.ApprovalRule, error)

	Update(ctx context.Context, rule *entity.ApprovalRule) error
	Delete(ctx context.Context, id, companyID int64) error
}

// ExpenseRepository defines persistence operations for Expense and its
// approval steps. Reads return the expense with its full step list.
type ExpenseRepository interface {
	// Create persists the expense and its materialized steps.
	Create(ctx context.Context, expense *entity.Expense) error

	GetByID(ctx context.Context, id int64) (*entity.Expense, error)

	// Save writes the expense status and the current state of every step.
	Save(ctx context.Context, expense *entity.Expense) error

	ListByEmployee(ctx context.Context, employeeID int64) ([]*entity.Expense, error)
	ListByEmployees(ctx context.Context, employeeIDs []int64) ([]*entity.Expense, error)
	ListByCompany(ctx context.Context, companyID int64) ([]*entity.Expense, error)

	// ListAwaitingApprover returns open expenses (pending or partially
	// approved) in which the given user appears as an approver. The caller
	// still filters down to the current sequence.
	ListAwaitingApprover(ctx context.Context, approverID int64) ([]*entity.Expense, error)
}

// HistoryRepository defines the append-only audit trail. Entries are never
// updated or deleted.
type HistoryRepository interface {
	Append(ctx context.Context, entry *entity.HistoryEntry) error
	ListByExpense(ctx context.Context, expenseID int64) ([]*entity.HistoryEntry, error)
}

// UserRepository resolves users for approver planning and view authorization.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	ListByIDs(ctx context.Context, ids []int64) ([]*entity.User, error)
	ListByRoles(ctx context.Context, companyID int64, roles []entity.Role) ([]*entity.User, error)
	ListByManager(ctx context.Context, managerID int64) ([]*entity.User, error)
}

// CompanyRepository defines read access to companies.
type CompanyRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.Company, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
