// Package condition evaluates a rule's condition payload against a domain
// event and the lead's current state. Absent condition fields always match;
// list fields are membership tests; distinct fields are AND-ed together.
package condition

import (
	"context"
	"fmt"

	"pipeline_crm_backend/internal/automation/domain"
	"pipeline_crm_backend/internal/automation/ports"
	"pipeline_crm_backend/internal/events"

	"github.com/google/uuid"
)

// Evaluator matches events against rule conditions. It needs the stage
// directory to resolve which pipeline owns a stage.
type Evaluator struct {
	directory ports.StageDirectory
}

// New creates an Evaluator.
func New(directory ports.StageDirectory) *Evaluator {
	return &Evaluator{directory: directory}
}

// Matches reports whether the condition holds for the event and lead.
func (e *Evaluator) Matches(ctx context.Context, cond domain.Condition, event events.Event, lead ports.Lead) (bool, error) {
	switch ev := event.(type) {
	case events.LeadStageChanged:
		return e.matchesStageChanged(ctx, cond, ev, lead)
	case events.LeadMarkedSold:
		return matchesPipeline(cond.PipelineID, lead.PipelineID), nil
	case events.LeadMarkedLost:
		if !matchesPipeline(cond.PipelineID, lead.PipelineID) {
			return false, nil
		}
		return len(cond.LossReasonIDs) == 0 || containsString(cond.LossReasonIDs, ev.LossReasonCategory), nil
	case events.LeadResponsibleAssigned:
		if !matchesPipeline(cond.PipelineID, lead.PipelineID) {
			return false, nil
		}
		return len(cond.ResponsibleUUIDs) == 0 || containsUUID(cond.ResponsibleUUIDs, ev.NewResponsibleUUID), nil
	default:
		return false, fmt.Errorf("unsupported event %q", event.EventName())
	}
}

func (e *Evaluator) matchesStageChanged(ctx context.Context, cond domain.Condition, ev events.LeadStageChanged, lead ports.Lead) (bool, error) {
	if cond.FromStageID != nil && *cond.FromStageID != ev.PreviousStageID {
		return false, nil
	}
	if cond.ToStageID != nil && *cond.ToStageID != ev.NewStageID {
		return false, nil
	}
	if len(cond.FromPipelineIDs) > 0 && !containsUUID(cond.FromPipelineIDs, lead.PipelineID) {
		return false, nil
	}
	if len(cond.ToPipelineIDs) > 0 {
		toPipeline, err := e.directory.PipelineOf(ctx, lead.TenantID, ev.NewStageID)
		if err != nil {
			return false, fmt.Errorf("resolve pipeline of stage %s: %w", ev.NewStageID, err)
		}
		if !containsUUID(cond.ToPipelineIDs, toPipeline) {
			return false, nil
		}
	}
	return true, nil
}

func matchesPipeline(want *uuid.UUID, got uuid.UUID) bool {
	return want == nil || *want == got
}

func containsUUID(list []uuid.UUID, value uuid.UUID) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

func containsString(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
