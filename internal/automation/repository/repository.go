// Package repository provides data access for automation rules. Conditions
// and actions are stored as JSONB so rule shapes can evolve without schema
// migrations; the literal JSON text is preserved, which the due-date digit
// encoding relies on.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"pipeline_crm_backend/internal/automation/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrRuleNotFound = errors.New("automation rule not found")

// Repository provides data access for automation rules.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new automation rule repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new rule and returns it with generated fields populated.
func (r *Repository) Create(ctx context.Context, rule domain.AutomationRule) (domain.AutomationRule, error) {
	condition, actions, legacy, err := marshalRule(rule)
	if err != nil {
		return domain.AutomationRule{}, err
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO automation_rules (tenant_id, name, description, active, event_type, condition, actions, legacy_action)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`, rule.TenantID, rule.Name, rule.Description, rule.Active, rule.EventType, condition, actions, legacy)
	if err := row.Scan(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt); err != nil {
		return domain.AutomationRule{}, fmt.Errorf("insert automation rule: %w", err)
	}
	return rule, nil
}

// Update replaces the mutable fields of an existing rule.
func (r *Repository) Update(ctx context.Context, rule domain.AutomationRule) (domain.AutomationRule, error) {
	condition, actions, legacy, err := marshalRule(rule)
	if err != nil {
		return domain.AutomationRule{}, err
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE automation_rules
		SET name = $3, description = $4, active = $5, event_type = $6,
		    condition = $7, actions = $8, legacy_action = $9, updated_at = now()
		WHERE id = $1 AND tenant_id = $2
		RETURNING created_at, updated_at
	`, rule.ID, rule.TenantID, rule.Name, rule.Description, rule.Active, rule.EventType, condition, actions, legacy)
	if err := row.Scan(&rule.CreatedAt, &rule.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.AutomationRule{}, ErrRuleNotFound
		}
		return domain.AutomationRule{}, fmt.Errorf("update automation rule: %w", err)
	}
	return rule, nil
}

// SetActive flips only the active flag.
func (r *Repository) SetActive(ctx context.Context, ruleID, tenantID uuid.UUID, active bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE automation_rules
		SET active = $3, updated_at = now()
		WHERE id = $1 AND tenant_id = $2
	`, ruleID, tenantID, active)
	if err != nil {
		return fmt.Errorf("set automation rule active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// Delete removes a rule.
func (r *Repository) Delete(ctx context.Context, ruleID, tenantID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM automation_rules WHERE id = $1 AND tenant_id = $2
	`, ruleID, tenantID)
	if err != nil {
		return fmt.Errorf("delete automation rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// GetByID retrieves one rule scoped to its tenant.
func (r *Repository) GetByID(ctx context.Context, ruleID, tenantID uuid.UUID) (domain.AutomationRule, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, tenant_id, name, description, active, event_type, condition, actions, legacy_action, created_at, updated_at
		FROM automation_rules
		WHERE id = $1 AND tenant_id = $2
	`, ruleID, tenantID)
	rule, err := scanRule(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.AutomationRule{}, ErrRuleNotFound
	}
	return rule, err
}

// List returns all rules for a tenant in creation order.
func (r *Repository) List(ctx context.Context, tenantID uuid.UUID) ([]domain.AutomationRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_id, name, description, active, event_type, condition, actions, legacy_action, created_at, updated_at
		FROM automation_rules
		WHERE tenant_id = $1
		ORDER BY created_at ASC
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRules(rows)
}

// ListActive returns the tenant's active rules for one event type in creation
// order. This is the rule source the engine evaluates.
func (r *Repository) ListActive(ctx context.Context, tenantID uuid.UUID, eventType domain.EventType) ([]domain.AutomationRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_id, name, description, active, event_type, condition, actions, legacy_action, created_at, updated_at
		FROM automation_rules
		WHERE tenant_id = $1 AND event_type = $2 AND active = true
		ORDER BY created_at ASC
	`, tenantID, eventType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRules(rows)
}

func marshalRule(rule domain.AutomationRule) (condition, actions, legacy []byte, err error) {
	condition, err = json.Marshal(rule.Condition)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshal condition: %w", err)
	}
	actions, err = json.Marshal(rule.Actions)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshal actions: %w", err)
	}
	if rule.LegacyAction != nil {
		legacy, err = json.Marshal(rule.LegacyAction)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("marshal legacy action: %w", err)
		}
	}
	return condition, actions, legacy, nil
}

func scanRule(row pgx.Row) (domain.AutomationRule, error) {
	var (
		rule      domain.AutomationRule
		condition []byte
		actions   []byte
		legacy    []byte
	)
	if err := row.Scan(
		&rule.ID, &rule.TenantID, &rule.Name, &rule.Description, &rule.Active,
		&rule.EventType, &condition, &actions, &legacy, &rule.CreatedAt, &rule.UpdatedAt,
	); err != nil {
		return domain.AutomationRule{}, err
	}
	if err := unmarshalInto(condition, &rule.Condition); err != nil {
		return domain.AutomationRule{}, fmt.Errorf("decode condition: %w", err)
	}
	if err := unmarshalInto(actions, &rule.Actions); err != nil {
		return domain.AutomationRule{}, fmt.Errorf("decode actions: %w", err)
	}
	if len(legacy) > 0 {
		rule.LegacyAction = &domain.Action{}
		if err := unmarshalInto(legacy, rule.LegacyAction); err != nil {
			return domain.AutomationRule{}, fmt.Errorf("decode legacy action: %w", err)
		}
	}
	return rule, nil
}

func unmarshalInto(data []byte, dst any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}

func collectRules(rows pgx.Rows) ([]domain.AutomationRule, error) {
	var rules []domain.AutomationRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}
