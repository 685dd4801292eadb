package service

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/expensio/approval-engine/internal/application/port"
	"github.com/expensio/approval-engine/internal/domain/entity"
)

// ReportService streams expense reports. The expense set is scoped the same
// way as the company expense listing: by the viewer's role.
type ReportService interface {
	WriteCompanyReport(ctx context.Context, viewerID int64, w io.Writer) error
}

type reportServiceImpl struct {
	expenses ExpenseService
	users    port.UserRepository
	writer   port.ReportWriter
	logger   *zap.Logger
}

// NewReportService creates a new ReportService.
func NewReportService(expenses ExpenseService, users port.UserRepository, writer port.ReportWriter, logger *zap.Logger) ReportService {
	return &reportServiceImpl{
		expenses: expenses,
		users:    users,
		writer:   writer,
		logger:   logger,
	}
}

// WriteCompanyReport renders the viewer's role-scoped expense list to w.
func (s *reportServiceImpl) WriteCompanyReport(ctx context.Context, viewerID int64, w io.Writer) error {
	expenses, err := s.expenses.ListCompanyExpenses(ctx, viewerID)
	if err != nil {
		return err
	}

	seen := make(map[int64]bool)
	var ids []int64
	for _, e := range expenses {
		if !seen[e.EmployeeID] {
			seen[e.EmployeeID] = true
			ids = append(ids, e.EmployeeID)
		}
	}

	users, err := s.users.ListByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("resolve employees: %w", err)
	}
	byID := make(map[int64]*entity.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	if err := s.writer.Write(w, expenses, byID); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	s.logger.Info("Expense report exported",
		zap.Int64("viewer_id", viewerID),
		zap.Int("expenses", len(expenses)))
	return nil
}
