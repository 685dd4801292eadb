package port

import (
	"context"
	"io"
	"time"

	"github.com/expensio/approval-engine/internal/domain/entity"
)

// CurrencyConverter converts an amount between currencies. Conversion
// failures are recoverable: the submission flow logs them and falls back to
// the unconverted amount.
type CurrencyConverter interface {
	Convert(ctx context.Context, amount float64, from, to string) (float64, error)
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time { return time.Now() }

// ReportWriter renders a set of expenses into a downloadable report.
type ReportWriter interface {
	Write(w io.Writer, expenses []*entity.Expense, users map[int64]*entity.User) error
}
