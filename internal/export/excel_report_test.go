package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/expensio/approval-engine/internal/domain/entity"
)

func TestWrite(t *testing.T) {
	expenses := []*entity.Expense{
		{
			ID: 1, EmployeeID: 10, Category: "travel",
			Amount: 100, Currency: "EUR", BaseAmount: 110, BaseCurrency: "USD",
			Date:   time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
			Status: entity.ExpenseStatusPartiallyApproved,
			Steps: []entity.ApprovalStep{
				{ApproverID: 20, Sequence: 1, Status: entity.StepStatusApproved},
				{ApproverID: 30, Sequence: 2, Status: entity.StepStatusPending},
			},
		},
		{
			ID: 2, EmployeeID: 99, Category: "meals",
			Amount: 12, Currency: "USD", BaseAmount: 12, BaseCurrency: "USD",
			Date:   time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC),
			Status: entity.ExpenseStatusApproved,
		},
	}
	users := map[int64]*entity.User{
		10: {ID: 10, Name: "Eva"},
	}

	var buf bytes.Buffer
	reporter := NewExcelReporter(zap.NewNop())
	require.NoError(t, reporter.Write(&buf, expenses, users))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Expenses")
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus one row per expense")

	assert.Equal(t, "ID", rows[0][0])
	assert.Equal(t, "Eva", rows[1][1])
	assert.Equal(t, "1/2 approved", rows[1][9])
	assert.Equal(t, "#99", rows[2][1], "unknown employees fall back to their ID")
	assert.Equal(t, "auto", rows[2][9], "zero-step expenses were auto approved")
}
