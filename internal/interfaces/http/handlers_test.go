package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/expensio/approval-engine/internal/application/service"
	"github.com/expensio/approval-engine/internal/domain/approval"
	"github.com/expensio/approval-engine/internal/domain/entity"
)

type mockExpenseService struct {
	submitFunc         func(ctx context.Context, employeeID int64, input service.SubmitExpenseInput) (*service.SubmitResult, error)
	actFunc            func(ctx context.Context, expenseID, actorID int64, action approval.Action, comment string) (*service.ActResult, error)
	listPendingForFunc func(ctx context.Context, userID int64) ([]service.PendingApproval, error)
	getExpenseFunc     func(ctx context.Context, expenseID, viewerID int64) (*entity.Expense, error)
	getActorFunc       func(ctx context.Context, userID int64) (*entity.User, error)
}

func (m *mockExpenseService) Submit(ctx context.Context, employeeID int64, input service.SubmitExpenseInput) (*service.SubmitResult, error) {
	if m.submitFunc != nil {
		return m.submitFunc(ctx, employeeID, input)
	}
	return &service.SubmitResult{ExpenseID: 1, Status: entity.ExpenseStatusPending, StepCount: 1}, nil
}

func (m *mockExpenseService) Act(ctx context.Context, expenseID, actorID int64, action approval.Action, comment string) (*service.ActResult, error) {
	if m.actFunc != nil {
		return m.actFunc(ctx, expenseID, actorID, action, comment)
	}
	return &service.ActResult{Status: entity.ExpenseStatusApproved}, nil
}

func (m *mockExpenseService) ListPendingFor(ctx context.Context, userID int64) ([]service.PendingApproval, error) {
	if m.listPendingForFunc != nil {
		return m.listPendingForFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockExpenseService) GetExpense(ctx context.Context, expenseID, viewerID int64) (*entity.Expense, error) {
	if m.getExpenseFunc != nil {
		return m.getExpenseFunc(ctx, expenseID, viewerID)
	}
	return &entity.Expense{ID: expenseID}, nil
}

func (m *mockExpenseService) ListMyExpenses(ctx context.Context, employeeID int64) ([]*entity.Expense, error) {
	return nil, nil
}

func (m *mockExpenseService) ListCompanyExpenses(ctx context.Context, viewerID int64) ([]*entity.Expense, error) {
	return nil, nil
}

func (m *mockExpenseService) ListHistory(ctx context.Context, expenseID, viewerID int64) ([]*entity.HistoryEntry, error) {
	return nil, nil
}

func (m *mockExpenseService) GetActor(ctx context.Context, userID int64) (*entity.User, error) {
	if m.getActorFunc != nil {
		return m.getActorFunc(ctx, userID)
	}
	return &entity.User{ID: userID, Role: entity.RoleAdmin, CompanyID: 1}, nil
}

type mockRuleService struct {
	createFunc func(ctx context.Context, companyID int64, input service.RuleInput) (*entity.ApprovalRule, error)
}

func (m *mockRuleService) Create(ctx context.Context, companyID int64, input service.RuleInput) (*entity.ApprovalRule, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, companyID, input)
	}
	return &entity.ApprovalRule{ID: 1, CompanyID: companyID, Name: input.Name}, nil
}

func (m *mockRuleService) Get(ctx context.Context, id, companyID int64) (*entity.ApprovalRule, error) {
	return &entity.ApprovalRule{ID: id, CompanyID: companyID}, nil
}

func (m *mockRuleService) List(ctx context.Context, companyID int64) ([]*entity.ApprovalRule, error) {
	return nil, nil
}

func (m *mockRuleService) Update(ctx context.Context, id, companyID int64, input service.RuleInput) (*entity.ApprovalRule, error) {
	return &entity.ApprovalRule{ID: id, CompanyID: companyID}, nil
}

func (m *mockRuleService) Delete(ctx context.Context, id, companyID int64) error {
	return nil
}

type mockReportService struct{}

func (mockReportService) WriteCompanyReport(ctx context.Context, viewerID int64, w io.Writer) error {
	_, err := w.Write([]byte("xlsx"))
	return err
}

func newTestServer(expenses *mockExpenseService, rules *mockRuleService) *Server {
	return NewServer(DefaultServerConfig(), expenses, rules, mockReportService{}, zap.NewNop())
}

func doRequest(s *Server, method, path, userID string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if userID != "" {
		req.Header.Set(actorHeader, userID)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(&mockExpenseService{}, &mockRuleService{})
	w := doRequest(s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireActor(t *testing.T) {
	s := newTestServer(&mockExpenseService{}, &mockRuleService{})

	w := doRequest(s, http.MethodGet, "/api/v1/expenses/mine", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(s, http.MethodGet, "/api/v1/expenses/mine", "not-a-number", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(s, http.MethodGet, "/api/v1/expenses/mine", "10", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSubmitExpense(t *testing.T) {
	expenses := &mockExpenseService{}
	var gotEmployee int64
	expenses.submitFunc = func(ctx context.Context, employeeID int64, input service.SubmitExpenseInput) (*service.SubmitResult, error) {
		gotEmployee = employeeID
		return &service.SubmitResult{ExpenseID: 7, Status: entity.ExpenseStatusPending, StepCount: 2}, nil
	}
	s := newTestServer(expenses, &mockRuleService{})

	w := doRequest(s, http.MethodPost, "/api/v1/expenses", "10", map[string]interface{}{
		"amount": 100.0, "currency": "USD", "category": "travel",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, int64(10), gotEmployee)

	var resp struct {
		Success bool                 `json:"success"`
		Data    service.SubmitResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, int64(7), resp.Data.ExpenseID)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"validation", fmt.Errorf("%w: bad amount", approval.ErrValidation), http.StatusBadRequest},
		{"not authorized", fmt.Errorf("%w: not yours", approval.ErrNotAuthorized), http.StatusForbidden},
		{"not found", fmt.Errorf("%w: expense 1", approval.ErrNotFound), http.StatusNotFound},
		{"conflict", fmt.Errorf("%w: already handled", approval.ErrConflict), http.StatusConflict},
		{"terminal", fmt.Errorf("%w: rejected", approval.ErrTerminalState), http.StatusConflict},
		{"unknown", fmt.Errorf("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expenses := &mockExpenseService{
				actFunc: func(ctx context.Context, expenseID, actorID int64, action approval.Action, comment string) (*service.ActResult, error) {
					return nil, tt.err
				},
			}
			s := newTestServer(expenses, &mockRuleService{})

			w := doRequest(s, http.MethodPost, "/api/v1/expenses/5/action", "10", map[string]string{
				"action": "approve",
			})
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestRuleAdminRequiresAdminRole(t *testing.T) {
	expenses := &mockExpenseService{
		getActorFunc: func(ctx context.Context, userID int64) (*entity.User, error) {
			return &entity.User{ID: userID, Role: entity.RoleEmployee, CompanyID: 1}, nil
		},
	}
	s := newTestServer(expenses, &mockRuleService{})

	w := doRequest(s, http.MethodPost, "/api/v1/rules", "10", map[string]interface{}{
		"name": "x",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCreateRuleScopesToAdminCompany(t *testing.T) {
	rules := &mockRuleService{}
	var gotCompany int64
	rules.createFunc = func(ctx context.Context, companyID int64, input service.RuleInput) (*entity.ApprovalRule, error) {
		gotCompany = companyID
		return &entity.ApprovalRule{ID: 3, CompanyID: companyID, Name: input.Name}, nil
	}
	expenses := &mockExpenseService{
		getActorFunc: func(ctx context.Context, userID int64) (*entity.User, error) {
			return &entity.User{ID: userID, Role: entity.RoleAdmin, CompanyID: 42}, nil
		},
	}
	s := newTestServer(expenses, rules)

	w := doRequest(s, http.MethodPost, "/api/v1/rules", "10", map[string]interface{}{
		"name": "Travel", "steps": []map[string]interface{}{{"name": "Mgr", "sequence": 1}},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, int64(42), gotCompany)
}

func TestExportExpenses(t *testing.T) {
	s := newTestServer(&mockExpenseService{}, &mockRuleService{})

	w := doRequest(s, http.MethodGet, "/api/v1/expenses/export", "10", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "expenses.xlsx")
	assert.Equal(t, "xlsx", w.Body.String())
}
