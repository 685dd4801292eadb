package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/expensio/approval-engine/internal/application/port"
	"github.com/expensio/approval-engine/internal/domain/entity"
)

// UserRepository implements port.UserRepository.
type UserRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *sql.DB, logger *zap.Logger) port.UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

const userColumns = `
	id, name, email, role, company_id, manager_id, department, is_active,
	created_at, updated_at, last_login_at
`

// GetByID retrieves one user. Returns nil when not found.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	query := `SELECT` + userColumns + `FROM users WHERE id = ?`

	user, err := scanUser(getExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// ListByIDs retrieves all users with the given IDs. Unknown IDs are simply
// absent from the result.
func (r *UserRepository) ListByIDs(ctx context.Context, ids []int64) ([]*entity.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT` + userColumns + `FROM users WHERE id IN (` + placeholders(len(ids)) + `)`

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return r.queryUsers(ctx, query, args...)
}

// ListByRoles returns a company's active users holding any of the given roles.
func (r *UserRepository) ListByRoles(ctx context.Context, companyID int64, roles []entity.Role) ([]*entity.User, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	query := `SELECT` + userColumns + `FROM users
		WHERE company_id = ? AND is_active = 1 AND role IN (` + placeholders(len(roles)) + `)
		ORDER BY id ASC`

	args := make([]interface{}, 0, len(roles)+1)
	args = append(args, companyID)
	for _, role := range roles {
		args = append(args, string(role))
	}
	return r.queryUsers(ctx, query, args...)
}

// ListByManager returns the direct reports of one manager.
func (r *UserRepository) ListByManager(ctx context.Context, managerID int64) ([]*entity.User, error) {
	query := `SELECT` + userColumns + `FROM users WHERE manager_id = ? ORDER BY id ASC`
	return r.queryUsers(ctx, query, managerID)
}

func (r *UserRepository) queryUsers(ctx context.Context, query string, args ...interface{}) ([]*entity.User, error) {
	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query users", zap.Error(err))
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []*entity.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func scanUser(row rowScanner) (*entity.User, error) {
	var user entity.User
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Role,
		&user.CompanyID,
		&user.ManagerID,
		&user.Department,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.LastLogin,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Verify interface compliance
var _ port.UserRepository = (*UserRepository)(nil)
