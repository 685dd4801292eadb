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

// RuleRepository implements port.RuleRepository. Steps and conditions are
// stored as JSON documents: they are only ever read and written as a whole,
// and their shape evolves faster than the surrounding schema.
type RuleRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRuleRepository creates a new rule repository.
func NewRuleRepository(db *sql.DB, logger *zap.Logger) port.RuleRepository {
	return &RuleRepository{
		db:     db,
		logger: logger,
	}
}

// Create persists a new rule.
func (r *RuleRepository) Create(ctx context.Context, rule *entity.ApprovalRule) error {
	steps, conditions, err := marshalRule(rule)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO approval_rules (company_id, name, description, steps, conditions, is_active, priority)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		rule.CompanyID,
		rule.Name,
		rule.Description,
		steps,
		conditions,
		rule.IsActive,
		rule.Priority,
	)
	if err != nil {
		r.logger.Error("Failed to create rule", zap.Error(err))
		return fmt.Errorf("create rule: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	rule.ID = id
	return nil
}

// GetByID retrieves one rule. Returns nil when not found.
func (r *RuleRepository) GetByID(ctx context.Context, id int64) (*entity.ApprovalRule, error) {
	query := `
		SELECT id, company_id, name, description, steps, conditions, is_active, priority, created_at, updated_at
		FROM approval_rules WHERE id = ?
	`

	rule, err := scanRule(getExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get rule: %w", err)
	}
	return rule, nil
}

// ListActive returns a company's active rules, highest priority first with
// creation order as the stable tie-break.
func (r *RuleRepository) ListActive(ctx context.Context, companyID int64) ([]*entity.ApprovalRule, error) {
	query := `
		SELECT id, company_id, name, description, steps, conditions, is_active, priority, created_at, updated_at
		FROM approval_rules
		WHERE company_id = ? AND is_active = 1
		ORDER BY priority DESC, id ASC
	`
	return r.queryRules(ctx, query, companyID)
}

// List returns all of a company's rules, active or not.
func (r *RuleRepository) List(ctx context.Context, companyID int64) ([]*entity.ApprovalRule, error) {
	query := `
		SELECT id, company_id, name, description, steps, conditions, is_active, priority, created_at, updated_at
		FROM approval_rules
		WHERE company_id = ?
		ORDER BY priority DESC, id ASC
	`
	return r.queryRules(ctx, query, companyID)
}

// Update replaces a rule's definition.
func (r *RuleRepository) Update(ctx context.Context, rule *entity.ApprovalRule) error {
	steps, conditions, err := marshalRule(rule)
	if err != nil {
		return err
	}

	query := `
		UPDATE approval_rules
		SET name = ?, description = ?, steps = ?, conditions = ?, is_active = ?, priority = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND company_id = ?
	`

	_, err = getExecutor(ctx, r.db).ExecContext(ctx, query,
		rule.Name,
		rule.Description,
		steps,
		conditions,
		rule.IsActive,
		rule.Priority,
		rule.ID,
		rule.CompanyID,
	)
	if err != nil {
		r.logger.Error("Failed to update rule", zap.Int64("rule_id", rule.ID), zap.Error(err))
		return fmt.Errorf("update rule: %w", err)
	}
	return nil
}

// Delete removes a rule scoped to its company.
func (r *RuleRepository) Delete(ctx context.Context, id, companyID int64) error {
	_, err := getExecutor(ctx, r.db).ExecContext(ctx,
		`DELETE FROM approval_rules WHERE id = ? AND company_id = ?`, id, companyID)
	if err != nil {
		r.logger.Error("Failed to delete rule", zap.Int64("rule_id", id), zap.Error(err))
		return fmt.Errorf("delete rule: %w", err)
	}
	return nil
}

func (r *RuleRepository) queryRules(ctx context.Context, query string, args ...interface{}) ([]*entity.ApprovalRule, error) {
	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query rules", zap.Error(err))
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	var rules []*entity.ApprovalRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func scanRule(row rowScanner) (*entity.ApprovalRule, error) {
	var rule entity.ApprovalRule
	var steps, conditions []byte
	err := row.Scan(
		&rule.ID,
		&rule.CompanyID,
		&rule.Name,
		&rule.Description,
		&steps,
		&conditions,
		&rule.IsActive,
		&rule.Priority,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(steps, &rule.Steps); err != nil {
		return nil, fmt.Errorf("unmarshal rule steps: %w", err)
	}
	if err := json.Unmarshal(conditions, &rule.Conditions); err != nil {
		return nil, fmt.Errorf("unmarshal rule conditions: %w", err)
	}
	return &rule, nil
}

func marshalRule(rule *entity.ApprovalRule) (steps, conditions []byte, err error) {
	steps, err = json.Marshal(rule.Steps)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal rule steps: %w", err)
	}
	conditions, err = json.Marshal(rule.Conditions)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal rule conditions: %w", err)
	}
	return steps, conditions, nil
}

// Verify interface compliance
var _ port.RuleRepository = (*RuleRepository)(nil)
