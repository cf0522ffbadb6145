package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"pqmap-analyzer/internal/models"

	"go.uber.org/zap"
)

// RuleRepository 误报规则仓库（对应 false_event_rules 表）
type RuleRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRuleRepository 创建规则仓库
func NewRuleRepository(db *sql.DB, logger *zap.Logger) *RuleRepository {
	return &RuleRepository{
		db:     db,
		logger: logger,
	}
}

const ruleColumns = `
	rule_id,
	rule_name,
	description,
	is_active,
	conditions,
	actions,
	created_at,
	updated_at
`

// scanRule 扫描单行规则（JSONB 条件/动作）
func scanRule(s scanner) (*models.FalseEventRule, error) {
	var rule models.FalseEventRule
	var description sql.NullString
	var conditions, actions []byte

	err := s.Scan(
		&rule.RuleID,
		&rule.RuleName,
		&description,
		&rule.IsActive,
		&conditions,
		&actions,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if description.Valid {
		rule.Description = description.String
	}
	if len(conditions) > 0 {
		if err := json.Unmarshal(conditions, &rule.Conditions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal rule conditions: %w", err)
		}
	}
	if len(actions) > 0 {
		if err := json.Unmarshal(actions, &rule.Actions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal rule actions: %w", err)
		}
	}

	return &rule, nil
}

// ListRules 查询规则列表
// onlyActive=true 时仅返回启用的规则（规则匹配通道使用）
func (r *RuleRepository) ListRules(ctx context.Context, onlyActive bool) ([]models.FalseEventRule, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM false_event_rules
	`, ruleColumns)
	if onlyActive {
		query += " WHERE is_active = TRUE"
	}
	query += " ORDER BY created_at ASC"

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	rules := []models.FalseEventRule{}
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rules: %w", err)
	}

	return rules, nil
}

// GetRule 根据ID查询单个规则
func (r *RuleRepository) GetRule(ctx context.Context, ruleID string) (*models.FalseEventRule, error) {
	if ruleID == "" {
		return nil, fmt.Errorf("rule_id is required")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM false_event_rules
		WHERE rule_id = $1
	`, ruleColumns)

	rule, err := scanRule(r.db.QueryRowContext(ctx, query, ruleID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("rule not found: rule_id=%s", ruleID)
		}
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}

	return rule, nil
}

// CreateRule 创建规则
func (r *RuleRepository) CreateRule(ctx context.Context, rule *models.FalseEventRule) error {
	if rule == nil {
		return fmt.Errorf("rule is required")
	}
	if rule.RuleID == "" {
		return fmt.Errorf("rule_id is required")
	}
	if rule.RuleName == "" {
		return fmt.Errorf("rule_name is required")
	}

	conditions, err := json.Marshal(rule.Conditions)
	if err != nil {
		return fmt.Errorf("failed to marshal rule conditions: %w", err)
	}
	actions, err := json.Marshal(rule.Actions)
	if err != nil {
		return fmt.Errorf("failed to marshal rule actions: %w", err)
	}

	now := time.Now().UTC()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO false_event_rules (
			rule_id, rule_name, description, is_active, conditions, actions, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rule.RuleID, rule.RuleName, rule.Description, rule.IsActive, conditions, actions, now, now)
	if err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}

	r.logger.Info("Rule created",
		zap.String("rule_id", rule.RuleID),
		zap.String("rule_name", rule.RuleName),
	)

	return nil
}

// UpdateRule 更新规则（整体替换条件和动作）
func (r *RuleRepository) UpdateRule(ctx context.Context, rule *models.FalseEventRule) error {
	if rule == nil {
		return fmt.Errorf("rule is required")
	}
	if rule.RuleID == "" {
		return fmt.Errorf("rule_id is required")
	}

	conditions, err := json.Marshal(rule.Conditions)
	if err != nil {
		return fmt.Errorf("failed to marshal rule conditions: %w", err)
	}
	actions, err := json.Marshal(rule.Actions)
	if err != nil {
		return fmt.Errorf("failed to marshal rule actions: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE false_event_rules
		SET rule_name = $1,
		    description = $2,
		    is_active = $3,
		    conditions = $4,
		    actions = $5,
		    updated_at = CURRENT_TIMESTAMP
		WHERE rule_id = $6
	`, rule.RuleName, rule.Description, rule.IsActive, conditions, actions, rule.RuleID)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("rule not found: rule_id=%s", rule.RuleID)
	}

	return nil
}

// DeleteRule 删除规则
func (r *RuleRepository) DeleteRule(ctx context.Context, ruleID string) error {
	if ruleID == "" {
		return fmt.Errorf("rule_id is required")
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM false_event_rules WHERE rule_id = $1`, ruleID)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("rule not found: rule_id=%s", ruleID)
	}

	return nil
}
