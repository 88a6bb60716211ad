package domain

import (
	"encoding/json"
	"regexp"
	"strings"

	"pipeline_crm_backend/platform/apperr"

	"github.com/google/uuid"
)

// ActionType discriminates the Action union.
type ActionType string

const (
	ActionMoveLead          ActionType = "move_lead"
	ActionAssignResponsible ActionType = "assign_responsible"
	ActionCreateTask        ActionType = "create_task"
	ActionMarkAsSold        ActionType = "mark_as_sold"
	ActionMarkAsLost        ActionType = "mark_as_lost"
	ActionCallWebhook       ActionType = "call_webhook"
)

// DueDateMode selects how a created task's due date is determined.
type DueDateMode string

const (
	// DueDateFixed computes the due date purely from the configured offsets.
	DueDateFixed DueDateMode = "fixed"
	// DueDateManual pre-computes a default and asks a human to confirm it.
	DueDateManual DueDateMode = "manual"
)

// webhookURLPattern is the only URL shape a webhook action accepts.
var webhookURLPattern = regexp.MustCompile(`^https?://`)

// Action is one executable effect of a rule. The populated fields depend on
// Type; unrelated fields are left zero. Day offsets are json.Number so the
// literal text the rule author typed survives storage round-trips (the
// due-date arithmetic reads the decimal digits, not just the value).
type Action struct {
	Type ActionType `json:"type"`

	// move_lead
	TargetPipelineID *uuid.UUID `json:"targetPipelineId,omitempty"`
	TargetStageID    *uuid.UUID `json:"targetStageId,omitempty"`

	// assign_responsible
	ResponsibleUUID *uuid.UUID `json:"responsibleUuid,omitempty"`

	// create_task
	Title            string      `json:"title,omitempty"`
	Priority         *string     `json:"priority,omitempty"`
	TaskTypeID       *uuid.UUID  `json:"taskTypeId,omitempty"`
	AssignedTo       *uuid.UUID  `json:"assignedTo,omitempty"`
	TaskCount        int         `json:"taskCount,omitempty"`
	DueDateMode      DueDateMode `json:"dueDateMode,omitempty"`
	DueInDays        json.Number `json:"dueInDays,omitempty"`
	DueTime          *string     `json:"dueTime,omitempty"`
	TaskIntervalDays json.Number `json:"taskIntervalDays,omitempty"`

	// call_webhook
	URL            string            `json:"url,omitempty"`
	Method         string            `json:"method,omitempty"`
	Headers        map[string]string `json:"headers,omitempty"`
	Fields         []string          `json:"fields,omitempty"`
	CustomFieldIDs []uuid.UUID       `json:"customFieldIds,omitempty"`
}

// Validate checks the action's configuration for the fields its type requires.
// A failed validation is a configuration error, not a collaborator failure.
func (a *Action) Validate() error {
	switch a.Type {
	case ActionMoveLead:
		if a.TargetPipelineID == nil || a.TargetStageID == nil {
			return apperr.Validation("move_lead requires targetPipelineId and targetStageId")
		}
	case ActionAssignResponsible:
		if a.ResponsibleUUID == nil {
			return apperr.Validation("assign_responsible requires responsibleUuid")
		}
	case ActionCreateTask:
		if strings.TrimSpace(a.Title) == "" {
			return apperr.Validation("create_task requires a title")
		}
		if a.DueDateMode != DueDateFixed && a.DueDateMode != DueDateManual {
			return apperr.Validation("create_task requires dueDateMode of fixed or manual")
		}
		if a.TaskCount < 0 {
			return apperr.Validation("create_task taskCount cannot be negative")
		}
	case ActionMarkAsSold, ActionMarkAsLost:
		// No configuration; the missing data is supplied interactively.
	case ActionCallWebhook:
		if !webhookURLPattern.MatchString(a.URL) {
			return apperr.Validation("call_webhook requires an http(s) url")
		}
		if len(a.Fields) == 0 && len(a.CustomFieldIDs) == 0 {
			return apperr.Validation("call_webhook requires at least one selected field")
		}
		if a.Method != "" && a.Method != "GET" && a.Method != "POST" {
			return apperr.Validation("call_webhook method must be GET or POST")
		}
	default:
		return apperr.Validation("unknown action type " + string(a.Type))
	}
	return nil
}
