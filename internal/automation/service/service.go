// Package service contains the business logic for managing automation rules.
package service

import (
	"context"
	"errors"
	"strings"

	"pipeline_crm_backend/internal/automation/datecalc"
	"pipeline_crm_backend/internal/automation/domain"
	"pipeline_crm_backend/internal/automation/repository"
	"pipeline_crm_backend/internal/automation/transport"
	"pipeline_crm_backend/platform/apperr"

	"github.com/google/uuid"
)

// Store is the persistence surface the service needs.
type Store interface {
	Create(ctx context.Context, rule domain.AutomationRule) (domain.AutomationRule, error)
	Update(ctx context.Context, rule domain.AutomationRule) (domain.AutomationRule, error)
	SetActive(ctx context.Context, ruleID, tenantID uuid.UUID, active bool) error
	Delete(ctx context.Context, ruleID, tenantID uuid.UUID) error
	GetByID(ctx context.Context, ruleID, tenantID uuid.UUID) (domain.AutomationRule, error)
	List(ctx context.Context, tenantID uuid.UUID) ([]domain.AutomationRule, error)
}

// Service manages automation rule configuration.
type Service struct {
	store Store
}

// New creates a new automation rule service.
func New(store Store) *Service {
	return &Service{store: store}
}

// Create validates and stores a new rule.
func (s *Service) Create(ctx context.Context, tenantID uuid.UUID, req transport.CreateRuleRequest) (transport.RuleResponse, error) {
	rule, err := buildRule(tenantID, req.Name, req.Description, req.Active, req.EventType, req.Condition, req.Actions, req.Action)
	if err != nil {
		return transport.RuleResponse{}, err
	}

	created, err := s.store.Create(ctx, rule)
	if err != nil {
		return transport.RuleResponse{}, apperr.Wrap(apperr.KindInternal, "create automation rule", err)
	}
	return transport.FromDomainRule(created), nil
}

// Update validates and replaces an existing rule.
func (s *Service) Update(ctx context.Context, tenantID, ruleID uuid.UUID, req transport.UpdateRuleRequest) (transport.RuleResponse, error) {
	rule, err := buildRule(tenantID, req.Name, req.Description, req.Active, req.EventType, req.Condition, req.Actions, req.Action)
	if err != nil {
		return transport.RuleResponse{}, err
	}
	rule.ID = ruleID

	updated, err := s.store.Update(ctx, rule)
	if err != nil {
		if errors.Is(err, repository.ErrRuleNotFound) {
			return transport.RuleResponse{}, apperr.NotFound("automation rule not found")
		}
		return transport.RuleResponse{}, apperr.Wrap(apperr.KindInternal, "update automation rule", err)
	}
	return transport.FromDomainRule(updated), nil
}

// SetActive toggles a rule on or off.
func (s *Service) SetActive(ctx context.Context, tenantID, ruleID uuid.UUID, active bool) error {
	err := s.store.SetActive(ctx, ruleID, tenantID, active)
	if errors.Is(err, repository.ErrRuleNotFound) {
		return apperr.NotFound("automation rule not found")
	}
	return err
}

// Delete removes a rule.
func (s *Service) Delete(ctx context.Context, tenantID, ruleID uuid.UUID) error {
	err := s.store.Delete(ctx, ruleID, tenantID)
	if errors.Is(err, repository.ErrRuleNotFound) {
		return apperr.NotFound("automation rule not found")
	}
	return err
}

// GetByID returns one rule.
func (s *Service) GetByID(ctx context.Context, tenantID, ruleID uuid.UUID) (transport.RuleResponse, error) {
	rule, err := s.store.GetByID(ctx, ruleID, tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrRuleNotFound) {
			return transport.RuleResponse{}, apperr.NotFound("automation rule not found")
		}
		return transport.RuleResponse{}, apperr.Wrap(apperr.KindInternal, "get automation rule", err)
	}
	return transport.FromDomainRule(rule), nil
}

// List returns all of the tenant's rules in creation order.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID) (transport.RuleListResponse, error) {
	rules, err := s.store.List(ctx, tenantID)
	if err != nil {
		return transport.RuleListResponse{}, apperr.Wrap(apperr.KindInternal, "list automation rules", err)
	}
	items := make([]transport.RuleResponse, 0, len(rules))
	for _, rule := range rules {
		items = append(items, transport.FromDomainRule(rule))
	}
	return transport.RuleListResponse{Items: items, Total: len(items)}, nil
}

// buildRule converts and validates the full rule configuration before it ever
// reaches storage, so the engine only loads well-formed rules.
func buildRule(tenantID uuid.UUID, name, description string, active bool, eventType string, cond transport.ConditionDTO, actionDTOs []transport.ActionDTO, legacy *transport.ActionDTO) (domain.AutomationRule, error) {
	if strings.TrimSpace(name) == "" {
		return domain.AutomationRule{}, apperr.Validation("rule name is required")
	}
	if !domain.IsKnownEventType(domain.EventType(eventType)) {
		return domain.AutomationRule{}, apperr.Validation("unknown event type " + eventType)
	}

	rule := domain.AutomationRule{
		TenantID:    tenantID,
		Name:        name,
		Description: description,
		Active:      active,
		EventType:   domain.EventType(eventType),
		Condition:   cond.ToDomainCondition(),
	}

	for _, dto := range actionDTOs {
		rule.Actions = append(rule.Actions, dto.ToDomainAction())
	}
	if legacy != nil {
		action := legacy.ToDomainAction()
		rule.LegacyAction = &action
	}

	actions := rule.ActionList()
	if len(actions) == 0 {
		return domain.AutomationRule{}, apperr.Validation("at least one action is required")
	}
	for _, action := range actions {
		if err := validateAction(action); err != nil {
			return domain.AutomationRule{}, err
		}
	}
	return rule, nil
}

// validateAction applies the per-type checks plus the due-date digit encoding
// rules a create_task action must satisfy.
func validateAction(action domain.Action) error {
	if err := action.Validate(); err != nil {
		return err
	}
	if action.Type != domain.ActionCreateTask {
		return nil
	}
	if _, err := datecalc.Parse(action.DueInDays); err != nil {
		return apperr.Wrap(apperr.KindValidation, "invalid dueInDays", err)
	}
	if _, err := datecalc.Parse(action.TaskIntervalDays); err != nil {
		return apperr.Wrap(apperr.KindValidation, "invalid taskIntervalDays", err)
	}
	return nil
}
