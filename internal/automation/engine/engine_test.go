package engine

import (
	"context"
	"errors"
	"testing"

	"pipeline_crm_backend/internal/automation/condition"
	"pipeline_crm_backend/internal/automation/domain"
	"pipeline_crm_backend/internal/automation/executor"
	"pipeline_crm_backend/internal/automation/ports"
	"pipeline_crm_backend/internal/automation/prompt"
	"pipeline_crm_backend/internal/automation/webhook"
	"pipeline_crm_backend/internal/events"
	"pipeline_crm_backend/platform/logger"

	"github.com/google/uuid"
)

// stubLeadStore keeps one mutable lead record so sequential actions observe
// each other's writes, like the real repository would.
type stubLeadStore struct {
	lead    ports.Lead
	calls   []string
	moveErr error
}

func (s *stubLeadStore) GetByID(_ context.Context, leadID, tenantID uuid.UUID) (ports.Lead, error) {
	if leadID != s.lead.ID || tenantID != s.lead.TenantID {
		return ports.Lead{}, errors.New("lead not found")
	}
	return s.lead, nil
}

func (s *stubLeadStore) Move(_ context.Context, _, _, pipelineID, stageID uuid.UUID, _ *uuid.UUID) error {
	if s.moveErr != nil {
		s.calls = append(s.calls, "move:err")
		return s.moveErr
	}
	s.lead.PipelineID = pipelineID
	s.lead.StageID = stageID
	s.calls = append(s.calls, "move")
	return nil
}

func (s *stubLeadStore) AssignResponsible(_ context.Context, _, _, responsibleUUID uuid.UUID, _ *uuid.UUID) error {
	s.lead.ResponsibleUUID = &responsibleUUID
	s.calls = append(s.calls, "assign")
	return nil
}

func (s *stubLeadStore) MarkSold(_ context.Context, _ ports.MarkSoldParams) error {
	s.calls = append(s.calls, "sold")
	return nil
}

func (s *stubLeadStore) MarkLost(_ context.Context, _ ports.MarkLostParams) error {
	s.calls = append(s.calls, "lost")
	return nil
}

func (s *stubLeadStore) TenantOf(_ context.Context, leadID uuid.UUID) (uuid.UUID, error) {
	if leadID != s.lead.ID {
		return uuid.Nil, errors.New("unknown lead")
	}
	return s.lead.TenantID, nil
}

type stubRuleSource struct {
	rules []domain.AutomationRule
}

func (s *stubRuleSource) ListActive(_ context.Context, _ uuid.UUID, eventType domain.EventType) ([]domain.AutomationRule, error) {
	var matched []domain.AutomationRule
	for _, rule := range s.rules {
		if rule.Active && rule.EventType == eventType {
			matched = append(matched, rule)
		}
	}
	return matched, nil
}

type stubDirectory struct {
	pipelineByStage map[uuid.UUID]uuid.UUID
}

func (s *stubDirectory) StagesOf(_ context.Context, _, _ uuid.UUID) ([]ports.Stage, error) {
	return nil, nil
}

func (s *stubDirectory) PipelineOf(_ context.Context, _, stageID uuid.UUID) (uuid.UUID, error) {
	pipelineID, ok := s.pipelineByStage[stageID]
	if !ok {
		return uuid.Nil, errors.New("unknown stage")
	}
	return pipelineID, nil
}

type noopTaskStore struct{ created int }

func (n *noopTaskStore) Create(_ context.Context, _ ports.CreateTaskParams) (uuid.UUID, error) {
	n.created++
	return uuid.New(), nil
}

type noopFieldStore struct{}

func (noopFieldStore) FieldsFor(_ context.Context, _ uuid.UUID, _ *uuid.UUID) ([]ports.FieldDef, error) {
	return nil, nil
}

func (noopFieldStore) ValuesFor(_ context.Context, _ uuid.UUID) ([]ports.FieldValue, error) {
	return nil, nil
}

type noopPrompts struct{}

func (noopPrompts) Request(_ context.Context, _ prompt.Request) (*prompt.Response, error) {
	return nil, nil
}

type noopDispatcher struct{}

func (noopDispatcher) Dispatch(_ context.Context, _ webhook.Request) error { return nil }

func newEngine(leads *stubLeadStore, rules *stubRuleSource, tasks ports.TaskStore) *Engine {
	log := logger.New("test")
	exec := executor.New(leads, tasks, noopFieldStore{}, noopPrompts{}, noopDispatcher{}, log)
	return New(rules, leads, leads, condition.New(&stubDirectory{}), exec, log)
}

func seedLead() ports.Lead {
	return ports.Lead{
		ID:         uuid.New(),
		TenantID:   uuid.New(),
		PipelineID: uuid.New(),
		StageID:    uuid.New(),
		Name:       "Jansen Dakwerken",
	}
}

func stageEvent(lead ports.Lead) events.LeadStageChanged {
	return events.LeadStageChanged{
		LeadID:     lead.ID,
		TenantID:   lead.TenantID,
		NewStageID: lead.StageID,
	}
}

func TestEvaluateRunsActionsInOrderOnFreshState(t *testing.T) {
	lead := seedLead()
	leads := &stubLeadStore{lead: lead}
	owner := uuid.New()
	targetPipeline := uuid.New()
	targetStage := uuid.New()

	rules := &stubRuleSource{rules: []domain.AutomationRule{{
		ID:        uuid.New(),
		Name:      "move then assign",
		Active:    true,
		EventType: domain.EventLeadStageChanged,
		Actions: []domain.Action{
			{Type: domain.ActionMoveLead, TargetPipelineID: &targetPipeline, TargetStageID: &targetStage},
			{Type: domain.ActionAssignResponsible, ResponsibleUUID: &owner},
		},
	}}}

	eng := newEngine(leads, rules, &noopTaskStore{})
	if err := eng.Evaluate(context.Background(), stageEvent(lead)); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	want := []string{"move", "assign"}
	if len(leads.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", leads.calls, want)
	}
	for i := range want {
		if leads.calls[i] != want[i] {
			t.Fatalf("call %d = %q, want %q", i, leads.calls[i], want[i])
		}
	}
	if leads.lead.StageID != targetStage {
		t.Fatalf("lead stage = %s, want %s", leads.lead.StageID, targetStage)
	}
	if leads.lead.ResponsibleUUID == nil || *leads.lead.ResponsibleUUID != owner {
		t.Fatalf("lead owner = %v, want %s", leads.lead.ResponsibleUUID, owner)
	}
}

func TestEvaluateSkipsInactiveRules(t *testing.T) {
	lead := seedLead()
	leads := &stubLeadStore{lead: lead}
	owner := uuid.New()

	rules := &stubRuleSource{rules: []domain.AutomationRule{{
		ID:        uuid.New(),
		Name:      "disabled",
		Active:    false,
		EventType: domain.EventLeadStageChanged,
		Actions:   []domain.Action{{Type: domain.ActionAssignResponsible, ResponsibleUUID: &owner}},
	}}}

	eng := newEngine(leads, rules, &noopTaskStore{})
	if err := eng.Evaluate(context.Background(), stageEvent(lead)); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(leads.calls) != 0 {
		t.Fatalf("inactive rule must not act, calls = %v", leads.calls)
	}
}

func TestEvaluateSkipsRuleWithoutActions(t *testing.T) {
	lead := seedLead()
	leads := &stubLeadStore{lead: lead}
	owner := uuid.New()

	rules := &stubRuleSource{rules: []domain.AutomationRule{
		{
			ID:        uuid.New(),
			Name:      "misconfigured",
			Active:    true,
			EventType: domain.EventLeadStageChanged,
		},
		{
			ID:        uuid.New(),
			Name:      "assign owner",
			Active:    true,
			EventType: domain.EventLeadStageChanged,
			Actions:   []domain.Action{{Type: domain.ActionAssignResponsible, ResponsibleUUID: &owner}},
		},
	}}

	eng := newEngine(leads, rules, &noopTaskStore{})
	if err := eng.Evaluate(context.Background(), stageEvent(lead)); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(leads.calls) != 1 || leads.calls[0] != "assign" {
		t.Fatalf("calls = %v, want only the second rule's assign", leads.calls)
	}
}

func TestEvaluateFailureIsolatesToOneRule(t *testing.T) {
	lead := seedLead()
	leads := &stubLeadStore{lead: lead, moveErr: errors.New("stage gone")}
	owner := uuid.New()
	targetPipeline := uuid.New()
	targetStage := uuid.New()
	tasks := &noopTaskStore{}

	rules := &stubRuleSource{rules: []domain.AutomationRule{
		{
			ID:        uuid.New(),
			Name:      "move then task",
			Active:    true,
			EventType: domain.EventLeadStageChanged,
			Actions: []domain.Action{
				{Type: domain.ActionMoveLead, TargetPipelineID: &targetPipeline, TargetStageID: &targetStage},
				{Type: domain.ActionCreateTask, Title: "never", DueDateMode: domain.DueDateFixed},
			},
		},
		{
			ID:        uuid.New(),
			Name:      "assign owner",
			Active:    true,
			EventType: domain.EventLeadStageChanged,
			Actions:   []domain.Action{{Type: domain.ActionAssignResponsible, ResponsibleUUID: &owner}},
		},
	}}

	eng := newEngine(leads, rules, tasks)
	if err := eng.Evaluate(context.Background(), stageEvent(lead)); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if tasks.created != 0 {
		t.Fatalf("failed move must abandon the rest of its rule, %d tasks created", tasks.created)
	}
	if len(leads.calls) != 2 || leads.calls[1] != "assign" {
		t.Fatalf("calls = %v, want the next rule to still run", leads.calls)
	}
}

func TestEvaluateLegacySingleActionRuleRuns(t *testing.T) {
	lead := seedLead()
	leads := &stubLeadStore{lead: lead}
	owner := uuid.New()

	rules := &stubRuleSource{rules: []domain.AutomationRule{{
		ID:           uuid.New(),
		Name:         "legacy assign",
		Active:       true,
		EventType:    domain.EventLeadStageChanged,
		LegacyAction: &domain.Action{Type: domain.ActionAssignResponsible, ResponsibleUUID: &owner},
	}}}

	eng := newEngine(leads, rules, &noopTaskStore{})
	if err := eng.Evaluate(context.Background(), stageEvent(lead)); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(leads.calls) != 1 || leads.calls[0] != "assign" {
		t.Fatalf("calls = %v, want the legacy action to run", leads.calls)
	}
}

func TestEvaluateResolvesTenantWhenEventOmitsIt(t *testing.T) {
	lead := seedLead()
	leads := &stubLeadStore{lead: lead}
	owner := uuid.New()

	rules := &stubRuleSource{rules: []domain.AutomationRule{{
		ID:        uuid.New(),
		Name:      "assign owner",
		Active:    true,
		EventType: domain.EventLeadStageChanged,
		Actions:   []domain.Action{{Type: domain.ActionAssignResponsible, ResponsibleUUID: &owner}},
	}}}

	eng := newEngine(leads, rules, &noopTaskStore{})
	event := events.LeadStageChanged{LeadID: lead.ID, NewStageID: lead.StageID}
	if err := eng.Evaluate(context.Background(), event); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(leads.calls) != 1 {
		t.Fatalf("calls = %v, want one assign", leads.calls)
	}
}

type unrelatedEvent struct{ events.BaseEvent }

func (unrelatedEvent) EventName() string { return "offers.sent" }

func TestEvaluateIgnoresUnknownEvents(t *testing.T) {
	lead := seedLead()
	leads := &stubLeadStore{lead: lead}
	eng := newEngine(leads, &stubRuleSource{}, &noopTaskStore{})

	if err := eng.Evaluate(context.Background(), unrelatedEvent{}); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(leads.calls) != 0 {
		t.Fatalf("unexpected calls %v", leads.calls)
	}
}
