package condition

import (
	"context"
	"errors"
	"testing"

	"pipeline_crm_backend/internal/automation/domain"
	"pipeline_crm_backend/internal/automation/ports"
	"pipeline_crm_backend/internal/events"

	"github.com/google/uuid"
)

type fakeDirectory struct {
	pipelineByStage map[uuid.UUID]uuid.UUID
}

func (f *fakeDirectory) StagesOf(_ context.Context, _, _ uuid.UUID) ([]ports.Stage, error) {
	return nil, nil
}

func (f *fakeDirectory) PipelineOf(_ context.Context, _, stageID uuid.UUID) (uuid.UUID, error) {
	pipeline, ok := f.pipelineByStage[stageID]
	if !ok {
		return uuid.Nil, errors.New("stage not found")
	}
	return pipeline, nil
}

func TestMatches_EmptyConditionMatchesEverything(t *testing.T) {
	eval := New(&fakeDirectory{})
	lead := ports.Lead{ID: uuid.New(), TenantID: uuid.New(), PipelineID: uuid.New()}
	ev := events.LeadStageChanged{
		BaseEvent:       events.NewBaseEvent(),
		LeadID:          lead.ID,
		TenantID:        lead.TenantID,
		PreviousStageID: uuid.New(),
		NewStageID:      uuid.New(),
	}

	ok, err := eval.Matches(context.Background(), domain.Condition{}, ev, lead)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("empty condition must match any event")
	}
}

func TestMatches_StageChangedToStage(t *testing.T) {
	eval := New(&fakeDirectory{})
	lead := ports.Lead{TenantID: uuid.New(), PipelineID: uuid.New()}
	target := uuid.New()
	other := uuid.New()

	cond := domain.Condition{ToStageID: &target}

	matching := events.LeadStageChanged{NewStageID: target}
	if ok, _ := eval.Matches(context.Background(), cond, matching, lead); !ok {
		t.Fatal("expected match on target stage")
	}

	mismatching := events.LeadStageChanged{NewStageID: other}
	if ok, _ := eval.Matches(context.Background(), cond, mismatching, lead); ok {
		t.Fatal("expected no match on a different stage")
	}
}

func TestMatches_StageChangedToPipelineResolvesViaDirectory(t *testing.T) {
	stage := uuid.New()
	pipeline := uuid.New()
	eval := New(&fakeDirectory{pipelineByStage: map[uuid.UUID]uuid.UUID{stage: pipeline}})
	lead := ports.Lead{TenantID: uuid.New(), PipelineID: uuid.New()}

	cond := domain.Condition{ToPipelineIDs: []uuid.UUID{pipeline}}
	ev := events.LeadStageChanged{NewStageID: stage}

	ok, err := eval.Matches(context.Background(), cond, ev, lead)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected match when the new stage's pipeline is listed")
	}

	cond = domain.Condition{ToPipelineIDs: []uuid.UUID{uuid.New()}}
	if ok, _ := eval.Matches(context.Background(), cond, ev, lead); ok {
		t.Fatal("expected no match when the pipeline is not listed")
	}
}

func TestMatches_MarkedLostLossReasons(t *testing.T) {
	eval := New(&fakeDirectory{})
	lead := ports.Lead{PipelineID: uuid.New()}
	cond := domain.Condition{LossReasonIDs: []string{"A", "B"}}

	hit := events.LeadMarkedLost{LossReasonCategory: "B"}
	if ok, _ := eval.Matches(context.Background(), cond, hit, lead); !ok {
		t.Fatal("expected match for listed loss reason")
	}

	miss := events.LeadMarkedLost{LossReasonCategory: "C"}
	if ok, _ := eval.Matches(context.Background(), cond, miss, lead); ok {
		t.Fatal("rule listing reasons A,B must not fire for reason C")
	}
}

func TestMatches_MarkedSoldPipeline(t *testing.T) {
	eval := New(&fakeDirectory{})
	pipeline := uuid.New()
	lead := ports.Lead{PipelineID: pipeline}

	if ok, _ := eval.Matches(context.Background(), domain.Condition{PipelineID: &pipeline}, events.LeadMarkedSold{}, lead); !ok {
		t.Fatal("expected match for the lead's pipeline")
	}

	other := uuid.New()
	if ok, _ := eval.Matches(context.Background(), domain.Condition{PipelineID: &other}, events.LeadMarkedSold{}, lead); ok {
		t.Fatal("expected no match for a different pipeline")
	}
}

func TestMatches_ResponsibleAssigned(t *testing.T) {
	eval := New(&fakeDirectory{})
	lead := ports.Lead{PipelineID: uuid.New()}
	newOwner := uuid.New()

	cond := domain.Condition{ResponsibleUUIDs: []uuid.UUID{newOwner}}
	hit := events.LeadResponsibleAssigned{NewResponsibleUUID: newOwner}
	if ok, _ := eval.Matches(context.Background(), cond, hit, lead); !ok {
		t.Fatal("expected match for listed responsible")
	}

	miss := events.LeadResponsibleAssigned{NewResponsibleUUID: uuid.New()}
	if ok, _ := eval.Matches(context.Background(), cond, miss, lead); ok {
		t.Fatal("expected no match for unlisted responsible")
	}
}
