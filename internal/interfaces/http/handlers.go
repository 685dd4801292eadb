package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/expensio/approval-engine/internal/application/service"
	"github.com/expensio/approval-engine/internal/domain/approval"
	"github.com/expensio/approval-engine/internal/domain/entity"
)

// actorHeader carries the authenticated user's ID. Authentication itself is
// handled upstream; this service trusts the header.
const actorHeader = "X-User-ID"

const actorKey = "actorID"

// requireActor rejects requests without a parseable actor header.
func requireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.GetHeader(actorHeader), 10, 64)
		if err != nil || id <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "missing or invalid " + actorHeader + " header",
			})
			return
		}
		c.Set(actorKey, id)
	}
}

func actorID(c *gin.Context) int64 {
	return c.GetInt64(actorKey)
}

// Handlers contains all HTTP request handlers
type Handlers struct {
	expenseService service.ExpenseService
	ruleService    service.RuleService
	reportService  service.ReportService
	logger         *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	expenseService service.ExpenseService,
	ruleService service.RuleService,
	reportService service.ReportService,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		expenseService: expenseService,
		ruleService:    ruleService,
		reportService:  reportService,
		logger:         logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// SubmitExpenseRequest is the submission payload.
type SubmitExpenseRequest struct {
	Amount      float64   `json:"amount"`
	Currency    string    `json:"currency"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
}

// ActionRequest is an approver's decision payload.
type ActionRequest struct {
	Action  string `json:"action"`
	Comment string `json:"comment"`
}

// RuleRequest is the rule create/update payload.
type RuleRequest struct {
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Steps       []entity.RuleStep     `json:"steps"`
	Conditions  entity.RuleConditions `json:"conditions"`
	Priority    int                   `json:"priority"`
	IsActive    *bool                 `json:"is_active"`
}

func (r RuleRequest) toInput() service.RuleInput {
	return service.RuleInput{
		Name:        r.Name,
		Description: r.Description,
		Steps:       r.Steps,
		Conditions:  r.Conditions,
		Priority:    r.Priority,
		IsActive:    r.IsActive,
	}
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// SubmitExpense handles POST /api/v1/expenses
func (h *Handlers) SubmitExpense(c *gin.Context) {
	var req SubmitExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	result, err := h.expenseService.Submit(c.Request.Context(), actorID(c), service.SubmitExpenseInput{
		Amount:      req.Amount,
		Currency:    req.Currency,
		Category:    req.Category,
		Description: req.Description,
		Date:        req.Date,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: result})
}

// ListCompanyExpenses handles GET /api/v1/expenses
func (h *Handlers) ListCompanyExpenses(c *gin.Context) {
	expenses, err := h.expenseService.ListCompanyExpenses(c.Request.Context(), actorID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: expenses})
}

// ListMyExpenses handles GET /api/v1/expenses/mine
func (h *Handlers) ListMyExpenses(c *gin.Context) {
	expenses, err := h.expenseService.ListMyExpenses(c.Request.Context(), actorID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: expenses})
}

// ExportExpenses handles GET /api/v1/expenses/export
func (h *Handlers) ExportExpenses(c *gin.Context) {
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", `attachment; filename="expenses.xlsx"`)

	if err := h.reportService.WriteCompanyReport(c.Request.Context(), actorID(c), c.Writer); err != nil {
		h.logger.Error("Failed to export expenses", zap.Error(err))
		// Headers are already out; the truncated stream is the best signal left.
		c.Status(http.StatusInternalServerError)
	}
}

// GetExpense handles GET /api/v1/expenses/:id
func (h *Handlers) GetExpense(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	expense, err := h.expenseService.GetExpense(c.Request.Context(), id, actorID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: expense})
}

// GetExpenseHistory handles GET /api/v1/expenses/:id/history
func (h *Handlers) GetExpenseHistory(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	history, err := h.expenseService.ListHistory(c.Request.Context(), id, actorID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: history})
}

// ActOnExpense handles POST /api/v1/expenses/:id/action
func (h *Handlers) ActOnExpense(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	result, err := h.expenseService.Act(c.Request.Context(), id, actorID(c), approval.Action(req.Action), req.Comment)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// ListPendingApprovals handles GET /api/v1/approvals/pending
func (h *Handlers) ListPendingApprovals(c *gin.Context) {
	pending, err := h.expenseService.ListPendingFor(c.Request.Context(), actorID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: pending})
}

// CreateRule handles POST /api/v1/rules
func (h *Handlers) CreateRule(c *gin.Context) {
	companyID, ok := h.callerCompany(c)
	if !ok {
		return
	}

	var req RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	rule, err := h.ruleService.Create(c.Request.Context(), companyID, req.toInput())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: rule})
}

// ListRules handles GET /api/v1/rules
func (h *Handlers) ListRules(c *gin.Context) {
	companyID, ok := h.callerCompany(c)
	if !ok {
		return
	}

	rules, err := h.ruleService.List(c.Request.Context(), companyID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: rules})
}

// GetRule handles GET /api/v1/rules/:id
func (h *Handlers) GetRule(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	companyID, ok := h.callerCompany(c)
	if !ok {
		return
	}

	rule, err := h.ruleService.Get(c.Request.Context(), id, companyID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: rule})
}

// UpdateRule handles PUT /api/v1/rules/:id
func (h *Handlers) UpdateRule(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	companyID, ok := h.callerCompany(c)
	if !ok {
		return
	}

	var req RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	rule, err := h.ruleService.Update(c.Request.Context(), id, companyID, req.toInput())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: rule})
}

// DeleteRule handles DELETE /api/v1/rules/:id
func (h *Handlers) DeleteRule(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	companyID, ok := h.callerCompany(c)
	if !ok {
		return
	}

	if err := h.ruleService.Delete(c.Request.Context(), id, companyID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// pathID parses the :id path parameter, writing the error response itself.
func (h *Handlers) pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid id"})
		return 0, false
	}
	return id, true
}

// callerCompany resolves the acting user's company for company-scoped
// resources. Rule administration is restricted to admins.
func (h *Handlers) callerCompany(c *gin.Context) (int64, bool) {
	user, err := h.expenseService.GetActor(c.Request.Context(), actorID(c))
	if err != nil {
		h.respondError(c, err)
		return 0, false
	}
	if user.Role != entity.RoleAdmin {
		c.JSON(http.StatusForbidden, Response{Success: false, Error: "rule administration requires the admin role"})
		return 0, false
	}
	return user.CompanyID, true
}

// respondError maps domain sentinel errors to HTTP status codes.
func (h *Handlers) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, approval.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, approval.ErrNotAuthorized):
		status = http.StatusForbidden
	case errors.Is(err, approval.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, approval.ErrConflict), errors.Is(err, approval.ErrTerminalState):
		status = http.StatusConflict
	default:
		h.logger.Error("Request failed", zap.Error(err))
	}

	c.JSON(status, Response{Success: false, Error: err.Error()})
}
