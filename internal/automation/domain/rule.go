// Package domain defines the automation rule model: the trigger event types,
// the condition shapes and the action union the engine executes.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies which domain event a rule reacts to.
// Fixed at rule creation; it determines the condition shape that applies.
type EventType string

const (
	EventLeadStageChanged        EventType = "lead_stage_changed"
	EventLeadMarkedSold          EventType = "lead_marked_sold"
	EventLeadMarkedLost          EventType = "lead_marked_lost"
	EventLeadResponsibleAssigned EventType = "lead_responsible_assigned"
)

var knownEventTypes = map[EventType]struct{}{
	EventLeadStageChanged:        {},
	EventLeadMarkedSold:          {},
	EventLeadMarkedLost:          {},
	EventLeadResponsibleAssigned: {},
}

// IsKnownEventType reports whether the event type is one the engine evaluates.
func IsKnownEventType(et EventType) bool {
	_, ok := knownEventTypes[et]
	return ok
}

// Condition is the predicate payload of a rule. Which fields apply depends on
// the rule's EventType; every field is optional and an absent field matches
// any value. List fields match when they contain the observed value.
type Condition struct {
	// lead_stage_changed
	FromStageID     *uuid.UUID  `json:"fromStageId,omitempty"`
	ToStageID       *uuid.UUID  `json:"toStageId,omitempty"`
	FromPipelineIDs []uuid.UUID `json:"fromPipelineIds,omitempty"`
	ToPipelineIDs   []uuid.UUID `json:"toPipelineIds,omitempty"`

	// lead_marked_sold, lead_marked_lost, lead_responsible_assigned
	PipelineID *uuid.UUID `json:"pipelineId,omitempty"`

	// lead_marked_lost
	LossReasonIDs []string `json:"lossReasonIds,omitempty"`

	// lead_responsible_assigned
	ResponsibleUUIDs []uuid.UUID `json:"responsibleUuids,omitempty"`
}

// AutomationRule is a stored condition plus ordered action list, scoped to one
// event type and one tenant. Inactive rules are never loaded for evaluation.
type AutomationRule struct {
	ID          uuid.UUID `json:"id"`
	TenantID    uuid.UUID `json:"tenantId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Active      bool      `json:"active"`
	EventType   EventType `json:"eventType"`
	Condition   Condition `json:"condition"`
	Actions     []Action  `json:"actions,omitempty"`

	// LegacyAction predates the ordered Actions list. When Actions is empty
	// it is treated as a one-element list.
	LegacyAction *Action `json:"action,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ActionList returns the ordered actions to execute, normalizing the legacy
// single-action field to a one-element list.
func (r *AutomationRule) ActionList() []Action {
	if len(r.Actions) > 0 {
		return r.Actions
	}
	if r.LegacyAction != nil {
		return []Action{*r.LegacyAction}
	}
	return nil
}
