// Package engine evaluates automation rules against incoming lead events.
// Rules run strictly in creation order and their actions strictly in
// declaration order; an action failure abandons the rest of that rule's
// pipeline but never the following rules.
package engine

import (
	"context"
	"fmt"

	"pipeline_crm_backend/internal/automation/condition"
	"pipeline_crm_backend/internal/automation/domain"
	"pipeline_crm_backend/internal/automation/executor"
	"pipeline_crm_backend/internal/automation/ports"
	"pipeline_crm_backend/internal/events"
	"pipeline_crm_backend/platform/logger"

	"github.com/google/uuid"
)

// Engine matches active rules to one event and runs their action pipelines.
type Engine struct {
	rules      ports.RuleSource
	leads      ports.LeadStore
	tenants    ports.TenantResolver
	conditions *condition.Evaluator
	executor   *executor.Executor
	log        *logger.Logger
}

// New creates an Engine.
func New(rules ports.RuleSource, leads ports.LeadStore, tenants ports.TenantResolver, conditions *condition.Evaluator, exec *executor.Executor, log *logger.Logger) *Engine {
	return &Engine{
		rules:      rules,
		leads:      leads,
		tenants:    tenants,
		conditions: conditions,
		executor:   exec,
		log:        log,
	}
}

// Evaluate runs every matching active rule for the event. It returns an error
// only when the event itself cannot be processed (unknown lead, unresolvable
// tenant); individual rule failures are logged and absorbed so one broken
// rule cannot poison its siblings.
func (e *Engine) Evaluate(ctx context.Context, event events.Event) error {
	eventType, ok := eventTypeOf(event)
	if !ok {
		return nil
	}

	leadID, tenantID := subjectOf(event)
	if tenantID == uuid.Nil {
		resolved, err := e.tenants.TenantOf(ctx, leadID)
		if err != nil {
			return fmt.Errorf("resolve tenant for lead %s: %w", leadID, err)
		}
		tenantID = resolved
	}

	rules, err := e.rules.ListActive(ctx, tenantID, eventType)
	if err != nil {
		return fmt.Errorf("list active rules: %w", err)
	}
	if len(rules) == 0 {
		return nil
	}

	lead, err := e.leads.GetByID(ctx, leadID, tenantID)
	if err != nil {
		return fmt.Errorf("load lead %s: %w", leadID, err)
	}

	for _, rule := range rules {
		if !rule.Active {
			continue
		}
		lead = e.runRule(ctx, rule, event, lead)
	}
	return nil
}

// runRule executes one rule's pipeline and returns the freshest lead state it
// observed, so the next rule sees the effects of this one.
func (e *Engine) runRule(ctx context.Context, rule domain.AutomationRule, event events.Event, lead ports.Lead) ports.Lead {
	actions := rule.ActionList()
	if len(actions) == 0 {
		e.log.Warn("automation rule has no actions", "rule_id", rule.ID.String(), "rule_name", rule.Name)
		return lead
	}

	matched, err := e.conditions.Matches(ctx, rule.Condition, event, lead)
	if err != nil {
		e.log.RuleFailure(rule.ID.String(), rule.Name, err)
		return lead
	}
	if !matched {
		return lead
	}

	e.log.Info("automation rule matched",
		"rule_id", rule.ID.String(),
		"rule_name", rule.Name,
		"event", event.EventName(),
		"lead_id", lead.ID.String(),
	)

	for _, action := range actions {
		if err := e.executor.Execute(ctx, rule, action, event, lead); err != nil {
			e.log.ActionFailure(rule.ID.String(), string(action.Type), err)
			break
		}
		// Re-read so later actions of this rule see the mutation the
		// previous one made.
		fresh, err := e.leads.GetByID(ctx, lead.ID, lead.TenantID)
		if err != nil {
			e.log.RuleFailure(rule.ID.String(), rule.Name, err)
			break
		}
		lead = fresh
	}
	return lead
}

func eventTypeOf(event events.Event) (domain.EventType, bool) {
	switch event.(type) {
	case events.LeadStageChanged:
		return domain.EventLeadStageChanged, true
	case events.LeadMarkedSold:
		return domain.EventLeadMarkedSold, true
	case events.LeadMarkedLost:
		return domain.EventLeadMarkedLost, true
	case events.LeadResponsibleAssigned:
		return domain.EventLeadResponsibleAssigned, true
	default:
		return "", false
	}
}

func subjectOf(event events.Event) (leadID, tenantID uuid.UUID) {
	switch ev := event.(type) {
	case events.LeadStageChanged:
		return ev.LeadID, ev.TenantID
	case events.LeadMarkedSold:
		return ev.LeadID, ev.TenantID
	case events.LeadMarkedLost:
		return ev.LeadID, ev.TenantID
	case events.LeadResponsibleAssigned:
		return ev.LeadID, ev.TenantID
	default:
		return uuid.Nil, uuid.Nil
	}
}
