// Package ports declares the collaborator interfaces the automation engine
// depends on. Concrete implementations live in their own bounded contexts
// (internal/leads, internal/directory, internal/tasks); the engine only ever
// sees these interfaces.
package ports

import (
	"context"
	"time"

	"pipeline_crm_backend/internal/automation/domain"

	"github.com/google/uuid"
)

// Lead is the engine's read view of a lead record. The lead store owns the
// full record; the engine only reads the fields automation decisions need.
type Lead struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	PipelineID      uuid.UUID
	StageID         uuid.UUID
	ResponsibleUUID *uuid.UUID
	Name            string
	Email           *string
	Phone           *string
	Value           int64
	CreatedAt       time.Time
}

// MarkSoldParams carries the interactively supplied sale data.
// SkipAutomations prevents the resulting event from re-entering the engine.
type MarkSoldParams struct {
	LeadID          uuid.UUID
	TenantID        uuid.UUID
	ActorID         *uuid.UUID
	SoldValue       int64
	SaleNotes       *string
	SkipAutomations bool
}

// MarkLostParams carries the interactively supplied loss data.
type MarkLostParams struct {
	LeadID             uuid.UUID
	TenantID           uuid.UUID
	ActorID            *uuid.UUID
	LossReasonCategory string
	LossReasonNotes    *string
	SkipAutomations    bool
}

// LeadStore is the external lead repository the engine mutates through.
type LeadStore interface {
	GetByID(ctx context.Context, leadID, tenantID uuid.UUID) (Lead, error)
	Move(ctx context.Context, leadID, tenantID, pipelineID, stageID uuid.UUID, actorID *uuid.UUID) error
	AssignResponsible(ctx context.Context, leadID, tenantID, responsibleUUID uuid.UUID, actorID *uuid.UUID) error
	MarkSold(ctx context.Context, params MarkSoldParams) error
	MarkLost(ctx context.Context, params MarkLostParams) error
}

// Stage is one step of a pipeline.
type Stage struct {
	ID         uuid.UUID
	PipelineID uuid.UUID
	Name       string
	Position   int
}

// StageDirectory resolves pipeline/stage relationships.
type StageDirectory interface {
	StagesOf(ctx context.Context, tenantID, pipelineID uuid.UUID) ([]Stage, error)
	PipelineOf(ctx context.Context, tenantID, stageID uuid.UUID) (uuid.UUID, error)
}

// CreateTaskParams is the record shape for a follow-up task.
type CreateTaskParams struct {
	TenantID   uuid.UUID
	LeadID     uuid.UUID
	Title      string
	Priority   *string
	TaskTypeID *uuid.UUID
	AssignedTo *uuid.UUID
	DueAt      time.Time
	HasDueTime bool
}

// TaskStore creates follow-up task records.
type TaskStore interface {
	Create(ctx context.Context, params CreateTaskParams) (uuid.UUID, error)
}

// FieldDef describes a tenant-defined custom field.
type FieldDef struct {
	ID         uuid.UUID
	PipelineID *uuid.UUID
	Name       string
	Kind       string
}

// FieldValue is a custom field value attached to a lead.
type FieldValue struct {
	FieldID uuid.UUID
	Value   string
}

// CustomFieldStore reads tenant custom field definitions and lead values.
type CustomFieldStore interface {
	FieldsFor(ctx context.Context, tenantID uuid.UUID, pipelineID *uuid.UUID) ([]FieldDef, error)
	ValuesFor(ctx context.Context, leadID uuid.UUID) ([]FieldValue, error)
}

// TenantResolver maps a lead to its owning tenant.
type TenantResolver interface {
	TenantOf(ctx context.Context, leadID uuid.UUID) (uuid.UUID, error)
}

// RuleSource loads the active rules for one tenant and event type, in
// creation order.
type RuleSource interface {
	ListActive(ctx context.Context, tenantID uuid.UUID, eventType domain.EventType) ([]domain.AutomationRule, error)
}
