package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/expensio/approval-engine/internal/application/port"
	"github.com/expensio/approval-engine/internal/domain/entity"
)

const reportSheet = "Expenses"

var reportHeaders = []string{
	"ID", "Employee", "Category", "Amount", "Currency",
	"Base Amount", "Base Currency", "Date", "Status", "Approval Progress",
}

// ExcelReporter renders a set of expenses into a spreadsheet for finance
// review.
type ExcelReporter struct {
	logger *zap.Logger
}

// NewExcelReporter creates a new Excel reporter.
func NewExcelReporter(logger *zap.Logger) *ExcelReporter {
	return &ExcelReporter{logger: logger}
}

// Write renders one row per expense and streams the workbook to w. Employee
// names are looked up from the users map; missing entries fall back to the
// numeric ID.
func (r *ExcelReporter) Write(w io.Writer, expenses []*entity.Expense, users map[int64]*entity.User) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(reportSheet)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}

	for col, header := range reportHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("header cell name: %w", err)
		}
		r.setCell(f, cell, header)
	}

	for i, expense := range expenses {
		row := i + 2
		values := []interface{}{
			expense.ID,
			r.employeeName(expense.EmployeeID, users),
			expense.Category,
			expense.Amount,
			expense.Currency,
			expense.BaseAmount,
			expense.BaseCurrency,
			expense.Date.Format("2006-01-02"),
			expense.Status,
			approvalProgress(expense),
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return fmt.Errorf("cell name: %w", err)
			}
			r.setCell(f, cell, value)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}

	r.logger.Info("Expense report generated", zap.Int("expenses", len(expenses)))
	return nil
}

func (r *ExcelReporter) employeeName(id int64, users map[int64]*entity.User) string {
	if u, ok := users[id]; ok && u.Name != "" {
		return u.Name
	}
	return fmt.Sprintf("#%d", id)
}

func (r *ExcelReporter) setCell(f *excelize.File, cell string, value interface{}) {
	if err := f.SetCellValue(reportSheet, cell, value); err != nil {
		r.logger.Warn("Failed to set cell value",
			zap.String("cell", cell),
			zap.Error(err))
	}
}

// approvalProgress summarizes the step statuses, e.g. "2/3 approved".
func approvalProgress(expense *entity.Expense) string {
	if len(expense.Steps) == 0 {
		return "auto"
	}
	approved := 0
	for _, step := range expense.Steps {
		if step.Status == entity.StepStatusApproved {
			approved++
		}
	}
	return fmt.Sprintf("%d/%d approved", approved, len(expense.Steps))
}

// Verify interface compliance
var _ port.ReportWriter = (*ExcelReporter)(nil)
