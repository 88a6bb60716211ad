// Package executor runs a single automation action against the lead it
// targets. Every action is idempotent against current lead state: when the
// lead is already in the action's target state the action is a silent no-op,
// which keeps repeated events from amplifying into write storms.
package executor

import (
	"context"
	"fmt"
	"time"

	"pipeline_crm_backend/internal/automation/datecalc"
	"pipeline_crm_backend/internal/automation/domain"
	"pipeline_crm_backend/internal/automation/ports"
	"pipeline_crm_backend/internal/automation/prompt"
	"pipeline_crm_backend/internal/automation/webhook"
	"pipeline_crm_backend/internal/events"
	"pipeline_crm_backend/platform/apperr"
	"pipeline_crm_backend/platform/logger"

	"github.com/google/uuid"
)

// Executor dispatches one action by kind.
type Executor struct {
	leads    ports.LeadStore
	tasks    ports.TaskStore
	fields   ports.CustomFieldStore
	prompts  prompt.Service
	webhooks webhook.Dispatcher
	log      *logger.Logger
	now      func() time.Time
}

// New creates an Executor.
func New(leads ports.LeadStore, tasks ports.TaskStore, fields ports.CustomFieldStore, prompts prompt.Service, webhooks webhook.Dispatcher, log *logger.Logger) *Executor {
	return &Executor{
		leads:    leads,
		tasks:    tasks,
		fields:   fields,
		prompts:  prompts,
		webhooks: webhooks,
		log:      log,
		now:      time.Now,
	}
}

// Execute runs one action of the rule against the lead's current state.
// Configuration problems surface as apperr.Validation; collaborator failures
// are returned as-is. The caller owns logging and failure isolation.
func (x *Executor) Execute(ctx context.Context, rule domain.AutomationRule, action domain.Action, event events.Event, lead ports.Lead) error {
	if err := action.Validate(); err != nil {
		return err
	}

	switch action.Type {
	case domain.ActionMoveLead:
		return x.moveLead(ctx, action, event, lead)
	case domain.ActionAssignResponsible:
		return x.assignResponsible(ctx, action, event, lead)
	case domain.ActionCreateTask:
		return x.createTasks(ctx, rule, action, event, lead)
	case domain.ActionMarkAsSold:
		return x.markAsSold(ctx, rule, event, lead)
	case domain.ActionMarkAsLost:
		return x.markAsLost(ctx, rule, event, lead)
	case domain.ActionCallWebhook:
		return x.callWebhook(ctx, rule, action, event, lead)
	default:
		return apperr.Validation("unknown action type " + string(action.Type))
	}
}

func (x *Executor) moveLead(ctx context.Context, action domain.Action, event events.Event, lead ports.Lead) error {
	if lead.PipelineID == *action.TargetPipelineID && lead.StageID == *action.TargetStageID {
		x.log.Debug("move_lead skipped, lead already at target", "lead_id", lead.ID.String())
		return nil
	}
	return x.leads.Move(ctx, lead.ID, lead.TenantID, *action.TargetPipelineID, *action.TargetStageID, actorOf(event))
}

func (x *Executor) assignResponsible(ctx context.Context, action domain.Action, event events.Event, lead ports.Lead) error {
	if lead.ResponsibleUUID != nil && *lead.ResponsibleUUID == *action.ResponsibleUUID {
		x.log.Debug("assign_responsible skipped, owner unchanged", "lead_id", lead.ID.String())
		return nil
	}
	return x.leads.AssignResponsible(ctx, lead.ID, lead.TenantID, *action.ResponsibleUUID, actorOf(event))
}

func (x *Executor) createTasks(ctx context.Context, rule domain.AutomationRule, action domain.Action, event events.Event, lead ports.Lead) error {
	offset, err := datecalc.Parse(action.DueInDays)
	if err != nil {
		return apperr.Wrap(apperr.KindValidation, "invalid dueInDays encoding", err)
	}
	interval, err := datecalc.Parse(action.TaskIntervalDays)
	if err != nil {
		return apperr.Wrap(apperr.KindValidation, "invalid taskIntervalDays encoding", err)
	}

	count := action.TaskCount
	if count < 1 {
		count = 1
	}

	assignee := x.resolveAssignee(action, event, lead)
	base := x.now()
	defaultDue := datecalc.Due(base, offset, interval, 0, action.DueTime)

	var confirmed *datecalc.DueDate
	if action.DueDateMode == domain.DueDateManual {
		resp, err := x.prompts.Request(ctx, prompt.Request{
			Kind:     prompt.KindTaskDueDate,
			TenantID: lead.TenantID,
			LeadID:   lead.ID,
			RuleName: rule.Name,
			TaskDefaults: &prompt.TaskDefaults{
				Title:   action.Title,
				DueAt:   defaultDue.At,
				HasTime: defaultDue.HasTime,
			},
		})
		if err != nil {
			return err
		}
		if resp == nil || resp.DueAt == nil {
			x.log.Debug("create_task abandoned, due date prompt cancelled", "rule_id", rule.ID.String())
			return nil
		}
		confirmed = &datecalc.DueDate{At: *resp.DueAt, HasTime: resp.HasTime}
	}

	for i := 0; i < count; i++ {
		var due datecalc.DueDate
		if confirmed != nil {
			due = datecalc.Step(*confirmed, interval, i)
		} else {
			due = datecalc.Due(base, offset, interval, i, action.DueTime)
		}

		title := action.Title
		if count > 1 {
			title = fmt.Sprintf("%s (%d/%d)", action.Title, i+1, count)
		}

		_, err := x.tasks.Create(ctx, ports.CreateTaskParams{
			TenantID:   lead.TenantID,
			LeadID:     lead.ID,
			Title:      title,
			Priority:   action.Priority,
			TaskTypeID: action.TaskTypeID,
			AssignedTo: assignee,
			DueAt:      due.At,
			HasDueTime: due.HasTime,
		})
		if err != nil {
			return fmt.Errorf("create task %d of %d: %w", i+1, count, err)
		}
	}

	return nil
}

// resolveAssignee picks the task owner: the explicitly configured assignee,
// else the actor that raised the triggering event, else the lead's current
// responsible owner.
func (x *Executor) resolveAssignee(action domain.Action, event events.Event, lead ports.Lead) *uuid.UUID {
	if action.AssignedTo != nil {
		return action.AssignedTo
	}
	if actor := actorOf(event); actor != nil {
		return actor
	}
	return lead.ResponsibleUUID
}

func (x *Executor) markAsSold(ctx context.Context, rule domain.AutomationRule, event events.Event, lead ports.Lead) error {
	resp, err := x.prompts.Request(ctx, prompt.Request{
		Kind:     prompt.KindMarkSold,
		TenantID: lead.TenantID,
		LeadID:   lead.ID,
		RuleName: rule.Name,
	})
	if err != nil {
		return err
	}
	if resp == nil || resp.SoldValue == nil {
		x.log.Debug("mark_as_sold abandoned, prompt cancelled", "rule_id", rule.ID.String())
		return nil
	}

	return x.leads.MarkSold(ctx, ports.MarkSoldParams{
		LeadID:          lead.ID,
		TenantID:        lead.TenantID,
		ActorID:         actorOf(event),
		SoldValue:       *resp.SoldValue,
		SaleNotes:       resp.SaleNotes,
		SkipAutomations: true,
	})
}

func (x *Executor) markAsLost(ctx context.Context, rule domain.AutomationRule, event events.Event, lead ports.Lead) error {
	resp, err := x.prompts.Request(ctx, prompt.Request{
		Kind:     prompt.KindMarkLost,
		TenantID: lead.TenantID,
		LeadID:   lead.ID,
		RuleName: rule.Name,
	})
	if err != nil {
		return err
	}
	if resp == nil || resp.LossReasonCategory == nil {
		x.log.Debug("mark_as_lost abandoned, prompt cancelled", "rule_id", rule.ID.String())
		return nil
	}

	return x.leads.MarkLost(ctx, ports.MarkLostParams{
		LeadID:             lead.ID,
		TenantID:           lead.TenantID,
		ActorID:            actorOf(event),
		LossReasonCategory: *resp.LossReasonCategory,
		LossReasonNotes:    resp.LossReasonNotes,
		SkipAutomations:    true,
	})
}

func (x *Executor) callWebhook(ctx context.Context, rule domain.AutomationRule, action domain.Action, event events.Event, lead ports.Lead) error {
	payload := webhook.Payload{
		EventType:      string(rule.EventType),
		AutomationName: rule.Name,
		Timestamp:      x.now(),
		Lead:           selectLeadFields(action.Fields, lead),
	}

	if len(action.CustomFieldIDs) > 0 {
		custom, err := x.selectCustomFields(ctx, action.CustomFieldIDs, lead)
		if err != nil {
			return fmt.Errorf("select custom fields: %w", err)
		}
		payload.CustomFields = custom
	}

	method := action.Method
	if method == "" {
		method = "POST"
	}

	return x.webhooks.Dispatch(ctx, webhook.Request{
		URL:     action.URL,
		Method:  method,
		Headers: action.Headers,
		Payload: payload,
	})
}

// selectLeadFields projects the requested standard fields out of the lead.
// Unknown field names are dropped; the rule editor only offers known ones.
func selectLeadFields(fields []string, lead ports.Lead) map[string]any {
	selected := make(map[string]any, len(fields))
	for _, field := range fields {
		switch field {
		case "id":
			selected["id"] = lead.ID.String()
		case "name":
			selected["name"] = lead.Name
		case "email":
			selected["email"] = deref(lead.Email)
		case "phone":
			selected["phone"] = deref(lead.Phone)
		case "value":
			selected["value"] = lead.Value
		case "pipeline_id":
			selected["pipeline_id"] = lead.PipelineID.String()
		case "stage_id":
			selected["stage_id"] = lead.StageID.String()
		case "responsible_uuid":
			if lead.ResponsibleUUID != nil {
				selected["responsible_uuid"] = lead.ResponsibleUUID.String()
			} else {
				selected["responsible_uuid"] = nil
			}
		case "created_at":
			selected["created_at"] = lead.CreatedAt
		}
	}
	return selected
}

func (x *Executor) selectCustomFields(ctx context.Context, ids []uuid.UUID, lead ports.Lead) (map[string]any, error) {
	defs, err := x.fields.FieldsFor(ctx, lead.TenantID, &lead.PipelineID)
	if err != nil {
		return nil, err
	}
	values, err := x.fields.ValuesFor(ctx, lead.ID)
	if err != nil {
		return nil, err
	}

	nameByID := make(map[uuid.UUID]string, len(defs))
	for _, def := range defs {
		nameByID[def.ID] = def.Name
	}
	valueByID := make(map[uuid.UUID]string, len(values))
	for _, value := range values {
		valueByID[value.FieldID] = value.Value
	}

	selected := make(map[string]any, len(ids))
	for _, id := range ids {
		name, ok := nameByID[id]
		if !ok {
			continue
		}
		selected[name] = valueByID[id]
	}
	return selected, nil
}

func actorOf(event events.Event) *uuid.UUID {
	switch ev := event.(type) {
	case events.LeadStageChanged:
		return ev.ActorID
	case events.LeadMarkedSold:
		return ev.ActorID
	case events.LeadMarkedLost:
		return ev.ActorID
	case events.LeadResponsibleAssigned:
		return ev.ActorID
	default:
		return nil
	}
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
