package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/expensio/approval-engine/internal/application/port"
	"github.com/expensio/approval-engine/internal/domain/entity"
)

// ExpenseRepository implements port.ExpenseRepository. Every read returns the
// expense with its full approval step list attached.
type ExpenseRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewExpenseRepository creates a new expense repository.
func NewExpenseRepository(db *sql.DB, logger *zap.Logger) port.ExpenseRepository {
	return &ExpenseRepository{
		db:     db,
		logger: logger,
	}
}

const expenseColumns = `
	id, employee_id, company_id, amount, currency, base_amount, base_currency,
	category, description, date, status, current_step_index, created_at, updated_at
`

// Create persists the expense and its materialized approval steps.
func (r *ExpenseRepository) Create(ctx context.Context, expense *entity.Expense) error {
	query := `
		INSERT INTO expenses (
			employee_id, company_id, amount, currency, base_amount, base_currency,
			category, description, date, status, current_step_index
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	exec := getExecutor(ctx, r.db)
	result, err := exec.ExecContext(ctx, query,
		expense.EmployeeID,
		expense.CompanyID,
		expense.Amount,
		expense.Currency,
		expense.BaseAmount,
		expense.BaseCurrency,
		expense.Category,
		expense.Description,
		expense.Date,
		expense.Status,
		expense.CurrentStepIndex,
	)
	if err != nil {
		r.logger.Error("Failed to create expense", zap.Error(err))
		return fmt.Errorf("create expense: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	expense.ID = id

	for i := range expense.Steps {
		step := &expense.Steps[i]
		step.ExpenseID = id

		stepResult, err := exec.ExecContext(ctx, `
			INSERT INTO approval_steps (
				expense_id, approver_id, step_name, sequence,
				percentage_threshold, is_required, status, acted_at, comment
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			step.ExpenseID,
			step.ApproverID,
			step.StepName,
			step.Sequence,
			step.PercentageThreshold,
			step.IsRequired,
			step.Status,
			step.ActedAt,
			step.Comment,
		)
		if err != nil {
			return fmt.Errorf("create approval step: %w", err)
		}
		stepID, err := stepResult.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		step.ID = stepID
	}

	return nil
}

// GetByID retrieves one expense with its steps. Returns nil when not found.
func (r *ExpenseRepository) GetByID(ctx context.Context, id int64) (*entity.Expense, error) {
	query := `SELECT` + expenseColumns + `FROM expenses WHERE id = ?`

	expense, err := r.scanExpense(getExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get expense: %w", err)
	}

	if err := r.attachSteps(ctx, []*entity.Expense{expense}); err != nil {
		return nil, err
	}
	return expense, nil
}

// Save writes the expense status fields and the mutable fields of every step.
// Steps are created once at submission; only status, acted_at and comment
// change afterwards.
func (r *ExpenseRepository) Save(ctx context.Context, expense *entity.Expense) error {
	exec := getExecutor(ctx, r.db)

	_, err := exec.ExecContext(ctx, `
		UPDATE expenses
		SET status = ?, current_step_index = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, expense.Status, expense.CurrentStepIndex, expense.ID)
	if err != nil {
		r.logger.Error("Failed to save expense", zap.Int64("expense_id", expense.ID), zap.Error(err))
		return fmt.Errorf("save expense: %w", err)
	}

	for _, step := range expense.Steps {
		_, err := exec.ExecContext(ctx, `
			UPDATE approval_steps
			SET status = ?, acted_at = ?, comment = ?
			WHERE id = ?
		`, step.Status, step.ActedAt, step.Comment, step.ID)
		if err != nil {
			return fmt.Errorf("save approval step %d: %w", step.ID, err)
		}
	}

	return nil
}

// ListByEmployee returns an employee's expenses, newest first.
func (r *ExpenseRepository) ListByEmployee(ctx context.Context, employeeID int64) ([]*entity.Expense, error) {
	query := `SELECT` + expenseColumns + `FROM expenses WHERE employee_id = ? ORDER BY created_at DESC`
	return r.queryExpenses(ctx, query, employeeID)
}

// ListByEmployees returns the expenses of all given employees, newest first.
func (r *ExpenseRepository) ListByEmployees(ctx context.Context, employeeIDs []int64) ([]*entity.Expense, error) {
	if len(employeeIDs) == 0 {
		return nil, nil
	}
	query := `SELECT` + expenseColumns + `FROM expenses WHERE employee_id IN (` +
		placeholders(len(employeeIDs)) + `) ORDER BY created_at DESC`

	args := make([]interface{}, len(employeeIDs))
	for i, id := range employeeIDs {
		args[i] = id
	}
	return r.queryExpenses(ctx, query, args...)
}

// ListByCompany returns every expense in a company, newest first.
func (r *ExpenseRepository) ListByCompany(ctx context.Context, companyID int64) ([]*entity.Expense, error) {
	query := `SELECT` + expenseColumns + `FROM expenses WHERE company_id = ? ORDER BY created_at DESC`
	return r.queryExpenses(ctx, query, companyID)
}

// ListAwaitingApprover returns open expenses in which the user holds a pending
// step. The caller narrows the result down to the current sequence.
func (r *ExpenseRepository) ListAwaitingApprover(ctx context.Context, approverID int64) ([]*entity.Expense, error) {
	query := `SELECT` + expenseColumns + `FROM expenses
		WHERE status IN (?, ?)
		AND id IN (SELECT expense_id FROM approval_steps WHERE approver_id = ? AND status = ?)
		ORDER BY created_at ASC`
	return r.queryExpenses(ctx, query,
		entity.ExpenseStatusPending,
		entity.ExpenseStatusPartiallyApproved,
		approverID,
		entity.StepStatusPending,
	)
}

func (r *ExpenseRepository) queryExpenses(ctx context.Context, query string, args ...interface{}) ([]*entity.Expense, error) {
	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query expenses", zap.Error(err))
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*entity.Expense
	for rows.Next() {
		expense, err := r.scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, expense)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.attachSteps(ctx, expenses); err != nil {
		return nil, err
	}
	return expenses, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *ExpenseRepository) scanExpense(row rowScanner) (*entity.Expense, error) {
	var expense entity.Expense
	err := row.Scan(
		&expense.ID,
		&expense.EmployeeID,
		&expense.CompanyID,
		&expense.Amount,
		&expense.Currency,
		&expense.BaseAmount,
		&expense.BaseCurrency,
		&expense.Category,
		&expense.Description,
		&expense.Date,
		&expense.Status,
		&expense.CurrentStepIndex,
		&expense.CreatedAt,
		&expense.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &expense, nil
}

// attachSteps loads the approval steps for all given expenses in one query.
func (r *ExpenseRepository) attachSteps(ctx context.Context, expenses []*entity.Expense) error {
	if len(expenses) == 0 {
		return nil
	}

	byID := make(map[int64]*entity.Expense, len(expenses))
	args := make([]interface{}, 0, len(expenses))
	for _, e := range expenses {
		byID[e.ID] = e
		args = append(args, e.ID)
	}

	query := `
		SELECT id, expense_id, approver_id, step_name, sequence,
			percentage_threshold, is_required, status, acted_at, comment
		FROM approval_steps
		WHERE expense_id IN (` + placeholders(len(args)) + `)
		ORDER BY sequence ASC, id ASC
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query approval steps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var step entity.ApprovalStep
		err := rows.Scan(
			&step.ID,
			&step.ExpenseID,
			&step.ApproverID,
			&step.StepName,
			&step.Sequence,
			&step.PercentageThreshold,
			&step.IsRequired,
			&step.Status,
			&step.ActedAt,
			&step.Comment,
		)
		if err != nil {
			return fmt.Errorf("scan approval step: %w", err)
		}
		if expense, ok := byID[step.ExpenseID]; ok {
			expense.Steps = append(expense.Steps, step)
		}
	}
	return rows.Err()
}

// Verify interface compliance
var _ port.ExpenseRepository = (*ExpenseRepository)(nil)
