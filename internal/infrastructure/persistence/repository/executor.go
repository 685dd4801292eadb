package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/expensio/approval-engine/internal/infrastructure/persistence/sqlite"
)

// executor covers both *sql.DB and *sql.Tx so queries run the same inside
// and outside a transaction.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// getExecutor returns the transaction carried in the context, or the plain
// connection when none is open.
func getExecutor(ctx context.Context, db *sql.DB) executor {
	if tx := sqlite.ExtractTx(ctx); tx != nil {
		return tx
	}
	return db
}

// placeholders builds "?, ?, ?" for IN clauses.
func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
