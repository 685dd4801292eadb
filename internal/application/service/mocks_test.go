package service

import (
	"context"
	"time"

	"github.com/expensio/approval-engine/internal/domain/entity"
)

// Hand-rolled mocks with overridable behavior per test.

type mockExpenseRepo struct {
	createFunc               func(ctx context.Context, expense *entity.Expense) error
	getByIDFunc              func(ctx context.Context, id int64) (*entity.Expense, error)
	saveFunc                 func(ctx context.Context, expense *entity.Expense) error
	listByEmployeeFunc       func(ctx context.Context, employeeID int64) ([]*entity.Expense, error)
	listByEmployeesFunc      func(ctx context.Context, employeeIDs []int64) ([]*entity.Expense, error)
	listByCompanyFunc        func(ctx context.Context, companyID int64) ([]*entity.Expense, error)
	listAwaitingApproverFunc func(ctx context.Context, approverID int64) ([]*entity.Expense, error)
}

func (m *mockExpenseRepo) Create(ctx context.Context, expense *entity.Expense) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, expense)
	}
	expense.ID = 1
	return nil
}

func (m *mockExpenseRepo) GetByID(ctx context.Context, id int64) (*entity.Expense, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockExpenseRepo) Save(ctx context.Context, expense *entity.Expense) error {
	if m.saveFunc != nil {
		return m.saveFunc(ctx, expense)
	}
	return nil
}

func (m *mockExpenseRepo) ListByEmployee(ctx context.Context, employeeID int64) ([]*entity.Expense, error) {
	if m.listByEmployeeFunc != nil {
		return m.listByEmployeeFunc(ctx, employeeID)
	}
	return nil, nil
}

func (m *mockExpenseRepo) ListByEmployees(ctx context.Context, employeeIDs []int64) ([]*entity.Expense, error) {
	if m.listByEmployeesFunc != nil {
		return m.listByEmployeesFunc(ctx, employeeIDs)
	}
	return nil, nil
}

func (m *mockExpenseRepo) ListByCompany(ctx context.Context, companyID int64) ([]*entity.Expense, error) {
	if m.listByCompanyFunc != nil {
		return m.listByCompanyFunc(ctx, companyID)
	}
	return nil, nil
}

func (m *mockExpenseRepo) ListAwaitingApprover(ctx context.Context, approverID int64) ([]*entity.Expense, error) {
	if m.listAwaitingApproverFunc != nil {
		return m.listAwaitingApproverFunc(ctx, approverID)
	}
	return nil, nil
}

type mockRuleRepo struct {
	createFunc     func(ctx context.Context, rule *entity.ApprovalRule) error
	getByIDFunc    func(ctx context.Context, id int64) (*entity.ApprovalRule, error)
	listActiveFunc func(ctx context.Context, companyID int64) ([]*entity.ApprovalRule, error)
	listFunc       func(ctx context.Context, companyID int64) ([]*entity.ApprovalRule, error)
	updateFunc     func(ctx context.Context, rule *entity.ApprovalRule) error
	deleteFunc     func(ctx context.Context, id, companyID int64) error
}

func (m *mockRuleRepo) Create(ctx context.Context, rule *entity.ApprovalRule) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, rule)
	}
	rule.ID = 1
	return nil
}

func (m *mockRuleRepo) GetByID(ctx context.Context, id int64) (*entity.ApprovalRule, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockRuleRepo) ListActive(ctx context.Context, companyID int64) ([]*entity.ApprovalRule, error) {
	if m.listActiveFunc != nil {
		return m.listActiveFunc(ctx, companyID)
	}
	return nil, nil
}

func (m *mockRuleRepo) List(ctx context.Context, companyID int64) ([]*entity.ApprovalRule, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, companyID)
	}
	return nil, nil
}

func (m *mockRuleRepo) Update(ctx context.Context, rule *entity.ApprovalRule) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, rule)
	}
	return nil
}

func (m *mockRuleRepo) Delete(ctx context.Context, id, companyID int64) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id, companyID)
	}
	return nil
}

type mockUserRepo struct {
	users map[int64]*entity.User

	listByRolesFunc   func(ctx context.Context, companyID int64, roles []entity.Role) ([]*entity.User, error)
	listByManagerFunc func(ctx context.Context, managerID int64) ([]*entity.User, error)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	return m.users[id], nil
}

func (m *mockUserRepo) ListByIDs(ctx context.Context, ids []int64) ([]*entity.User, error) {
	var out []*entity.User
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *mockUserRepo) ListByRoles(ctx context.Context, companyID int64, roles []entity.Role) ([]*entity.User, error) {
	if m.listByRolesFunc != nil {
		return m.listByRolesFunc(ctx, companyID, roles)
	}
	var out []*entity.User
	for _, u := range m.users {
		if u.CompanyID != companyID {
			continue
		}
		for _, role := range roles {
			if u.Role == role {
				out = append(out, u)
				break
			}
		}
	}
	return out, nil
}

func (m *mockUserRepo) ListByManager(ctx context.Context, managerID int64) ([]*entity.User, error) {
	if m.listByManagerFunc != nil {
		return m.listByManagerFunc(ctx, managerID)
	}
	var out []*entity.User
	for _, u := range m.users {
		if u.ManagerID != nil && *u.ManagerID == managerID {
			out = append(out, u)
		}
	}
	return out, nil
}

type mockCompanyRepo struct {
	companies map[int64]*entity.Company
}

func (m *mockCompanyRepo) GetByID(ctx context.Context, id int64) (*entity.Company, error) {
	return m.companies[id], nil
}

type mockHistoryRepo struct {
	entries    []*entity.HistoryEntry
	appendFunc func(ctx context.Context, entry *entity.HistoryEntry) error
}

func (m *mockHistoryRepo) Append(ctx context.Context, entry *entity.HistoryEntry) error {
	if m.appendFunc != nil {
		return m.appendFunc(ctx, entry)
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockHistoryRepo) ListByExpense(ctx context.Context, expenseID int64) ([]*entity.HistoryEntry, error) {
	var out []*entity.HistoryEntry
	for _, e := range m.entries {
		if e.ExpenseID == expenseID {
			out = append(out, e)
		}
	}
	return out, nil
}

type mockConverter struct {
	convertFunc func(ctx context.Context, amount float64, from, to string) (float64, error)
}

func (m *mockConverter) Convert(ctx context.Context, amount float64, from, to string) (float64, error) {
	if m.convertFunc != nil {
		return m.convertFunc(ctx, amount, from, to)
	}
	return amount, nil
}

// mockTxManager runs the function directly; atomicity is the repository's
// concern and not under test here.
type mockTxManager struct{}

func (mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }
