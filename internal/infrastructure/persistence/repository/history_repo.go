package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/expensio/approval-engine/internal/application/port"
	"github.com/expensio/approval-engine/internal/domain/entity"
)

// HistoryRepository implements port.HistoryRepository. The audit trail is
// append-only; there are no update or delete paths.
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository.
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Append records one audit entry.
func (r *HistoryRepository) Append(ctx context.Context, entry *entity.HistoryEntry) error {
	var metadata []byte
	if len(entry.Metadata) > 0 {
		var err error
		metadata, err = json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("marshal history metadata: %w", err)
		}
	}

	query := `
		INSERT INTO expense_history (expense_id, action, actor_id, metadata)
		VALUES (?, ?, ?, ?)
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		entry.ExpenseID,
		entry.Action,
		entry.ActorID,
		metadata,
	)
	if err != nil {
		r.logger.Error("Failed to append history entry",
			zap.Int64("expense_id", entry.ExpenseID),
			zap.String("action", entry.Action),
			zap.Error(err))
		return fmt.Errorf("append history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	entry.ID = id
	return nil
}

// ListByExpense returns an expense's audit trail in insertion order.
func (r *HistoryRepository) ListByExpense(ctx context.Context, expenseID int64) ([]*entity.HistoryEntry, error) {
	query := `
		SELECT id, expense_id, action, actor_id, metadata, created_at
		FROM expense_history
		WHERE expense_id = ?
		ORDER BY id ASC
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, expenseID)
	if err != nil {
		r.logger.Error("Failed to list history", zap.Int64("expense_id", expenseID), zap.Error(err))
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var entries []*entity.HistoryEntry
	for rows.Next() {
		var entry entity.HistoryEntry
		var metadata []byte
		err := rows.Scan(
			&entry.ID,
			&entry.ExpenseID,
			&entry.Action,
			&entry.ActorID,
			&metadata,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal history metadata: %w", err)
			}
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

// Verify interface compliance
var _ port.HistoryRepository = (*HistoryRepository)(nil)
