// Package transport defines the request/response shapes of the automation
// rule admin API.
package transport

import (
	"encoding/json"
	"time"

	"pipeline_crm_backend/internal/automation/domain"

	"github.com/google/uuid"
)

// ConditionDTO mirrors domain.Condition on the wire.
type ConditionDTO struct {
	FromStageID      *uuid.UUID  `json:"fromStageId,omitempty"`
	ToStageID        *uuid.UUID  `json:"toStageId,omitempty"`
	FromPipelineIDs  []uuid.UUID `json:"fromPipelineIds,omitempty"`
	ToPipelineIDs    []uuid.UUID `json:"toPipelineIds,omitempty"`
	PipelineID       *uuid.UUID  `json:"pipelineId,omitempty"`
	LossReasonIDs    []string    `json:"lossReasonIds,omitempty"`
	ResponsibleUUIDs []uuid.UUID `json:"responsibleUuids,omitempty"`
}

// ActionDTO mirrors domain.Action on the wire. Day offsets stay json.Number
// so the author's literal digits reach storage untouched.
type ActionDTO struct {
	Type string `json:"type" validate:"required"`

	TargetPipelineID *uuid.UUID `json:"targetPipelineId,omitempty"`
	TargetStageID    *uuid.UUID `json:"targetStageId,omitempty"`

	ResponsibleUUID *uuid.UUID `json:"responsibleUuid,omitempty"`

	Title            string      `json:"title,omitempty" validate:"omitempty,max=200"`
	Priority         *string     `json:"priority,omitempty" validate:"omitempty,oneof=low medium high"`
	TaskTypeID       *uuid.UUID  `json:"taskTypeId,omitempty"`
	AssignedTo       *uuid.UUID  `json:"assignedTo,omitempty"`
	TaskCount        int         `json:"taskCount,omitempty" validate:"omitempty,min=1,max=30"`
	DueDateMode      string      `json:"dueDateMode,omitempty" validate:"omitempty,oneof=fixed manual"`
	DueInDays        json.Number `json:"dueInDays,omitempty"`
	DueTime          *string     `json:"dueTime,omitempty"`
	TaskIntervalDays json.Number `json:"taskIntervalDays,omitempty"`

	URL            string            `json:"url,omitempty" validate:"omitempty,max=2000"`
	Method         string            `json:"method,omitempty" validate:"omitempty,oneof=GET POST"`
	Headers        map[string]string `json:"headers,omitempty"`
	Fields         []string          `json:"fields,omitempty"`
	CustomFieldIDs []uuid.UUID       `json:"customFieldIds,omitempty"`
}

// CreateRuleRequest contains data for creating a new automation rule.
type CreateRuleRequest struct {
	Name        string       `json:"name" validate:"required,min=1,max=150"`
	Description string       `json:"description,omitempty" validate:"omitempty,max=500"`
	Active      bool         `json:"active"`
	EventType   string       `json:"eventType" validate:"required"`
	Condition   ConditionDTO `json:"condition"`
	Actions     []ActionDTO  `json:"actions" validate:"omitempty,max=20,dive"`
	Action      *ActionDTO   `json:"action,omitempty"`
}

// UpdateRuleRequest replaces all mutable fields of a rule.
type UpdateRuleRequest struct {
	Name        string       `json:"name" validate:"required,min=1,max=150"`
	Description string       `json:"description,omitempty" validate:"omitempty,max=500"`
	Active      bool         `json:"active"`
	EventType   string       `json:"eventType" validate:"required"`
	Condition   ConditionDTO `json:"condition"`
	Actions     []ActionDTO  `json:"actions" validate:"omitempty,max=20,dive"`
	Action      *ActionDTO   `json:"action,omitempty"`
}

// SetActiveRequest toggles a rule without touching its configuration.
type SetActiveRequest struct {
	Active bool `json:"active"`
}

// RuleResponse represents an automation rule in API responses.
type RuleResponse struct {
	ID          uuid.UUID    `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Active      bool         `json:"active"`
	EventType   string       `json:"eventType"`
	Condition   ConditionDTO `json:"condition"`
	Actions     []ActionDTO  `json:"actions"`
	CreatedAt   string       `json:"createdAt"`
	UpdatedAt   string       `json:"updatedAt"`
}

// RuleListResponse wraps a list of rules.
type RuleListResponse struct {
	Items []RuleResponse `json:"items"`
	Total int            `json:"total"`
}

// ToDomainCondition converts the wire condition to the domain shape.
func (c ConditionDTO) ToDomainCondition() domain.Condition {
	return domain.Condition{
		FromStageID:      c.FromStageID,
		ToStageID:        c.ToStageID,
		FromPipelineIDs:  c.FromPipelineIDs,
		ToPipelineIDs:    c.ToPipelineIDs,
		PipelineID:       c.PipelineID,
		LossReasonIDs:    c.LossReasonIDs,
		ResponsibleUUIDs: c.ResponsibleUUIDs,
	}
}

// ToDomainAction converts the wire action to the domain shape.
func (a ActionDTO) ToDomainAction() domain.Action {
	return domain.Action{
		Type:             domain.ActionType(a.Type),
		TargetPipelineID: a.TargetPipelineID,
		TargetStageID:    a.TargetStageID,
		ResponsibleUUID:  a.ResponsibleUUID,
		Title:            a.Title,
		Priority:         a.Priority,
		TaskTypeID:       a.TaskTypeID,
		AssignedTo:       a.AssignedTo,
		TaskCount:        a.TaskCount,
		DueDateMode:      domain.DueDateMode(a.DueDateMode),
		DueInDays:        a.DueInDays,
		DueTime:          a.DueTime,
		TaskIntervalDays: a.TaskIntervalDays,
		URL:              a.URL,
		Method:           a.Method,
		Headers:          a.Headers,
		Fields:           a.Fields,
		CustomFieldIDs:   a.CustomFieldIDs,
	}
}

// FromDomainRule converts a domain rule into its API representation. The
// legacy single action is folded into the actions list so clients only ever
// see the modern shape.
func FromDomainRule(rule domain.AutomationRule) RuleResponse {
	actions := rule.ActionList()
	dtos := make([]ActionDTO, 0, len(actions))
	for _, action := range actions {
		dtos = append(dtos, fromDomainAction(action))
	}
	return RuleResponse{
		ID:          rule.ID,
		Name:        rule.Name,
		Description: rule.Description,
		Active:      rule.Active,
		EventType:   string(rule.EventType),
		Condition: ConditionDTO{
			FromStageID:      rule.Condition.FromStageID,
			ToStageID:        rule.Condition.ToStageID,
			FromPipelineIDs:  rule.Condition.FromPipelineIDs,
			ToPipelineIDs:    rule.Condition.ToPipelineIDs,
			PipelineID:       rule.Condition.PipelineID,
			LossReasonIDs:    rule.Condition.LossReasonIDs,
			ResponsibleUUIDs: rule.Condition.ResponsibleUUIDs,
		},
		Actions:   dtos,
		CreatedAt: rule.CreatedAt.Format(time.RFC3339),
		UpdatedAt: rule.UpdatedAt.Format(time.RFC3339),
	}
}

func fromDomainAction(action domain.Action) ActionDTO {
	return ActionDTO{
		Type:             string(action.Type),
		TargetPipelineID: action.TargetPipelineID,
		TargetStageID:    action.TargetStageID,
		ResponsibleUUID:  action.ResponsibleUUID,
		Title:            action.Title,
		Priority:         action.Priority,
		TaskTypeID:       action.TaskTypeID,
		AssignedTo:       action.AssignedTo,
		TaskCount:        action.TaskCount,
		DueDateMode:      string(action.DueDateMode),
		DueInDays:        action.DueInDays,
		DueTime:          action.DueTime,
		TaskIntervalDays: action.TaskIntervalDays,
		URL:              action.URL,
		Method:           action.Method,
		Headers:          action.Headers,
		Fields:           action.Fields,
		CustomFieldIDs:   action.CustomFieldIDs,
	}
}
