// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"pipeline_crm_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Lead Automation Domain Events
// =============================================================================
//
// These four events are the only triggers the automation engine reacts to.
// Each carries the lead ID and tenant ID so the engine can load the current
// lead state, plus the actor that caused the mutation (nil for system actors).

// LeadStageChanged is published when a lead moves to another pipeline stage.
type LeadStageChanged struct {
	BaseEvent
	LeadID          uuid.UUID  `json:"leadId"`
	TenantID        uuid.UUID  `json:"tenantId"`
	ActorID         *uuid.UUID `json:"actorId,omitempty"`
	PreviousStageID uuid.UUID  `json:"previousStageId"`
	NewStageID      uuid.UUID  `json:"newStageId"`
}

func (e LeadStageChanged) EventName() string { return "leads.stage.changed" }

// LeadMarkedSold is published when a lead is marked as sold.
type LeadMarkedSold struct {
	BaseEvent
	LeadID    uuid.UUID  `json:"leadId"`
	TenantID  uuid.UUID  `json:"tenantId"`
	ActorID   *uuid.UUID `json:"actorId,omitempty"`
	SoldValue int64      `json:"soldValue"`
	SaleNotes *string    `json:"saleNotes,omitempty"`
}

func (e LeadMarkedSold) EventName() string { return "leads.marked.sold" }

// LeadMarkedLost is published when a lead is marked as lost.
type LeadMarkedLost struct {
	BaseEvent
	LeadID             uuid.UUID  `json:"leadId"`
	TenantID           uuid.UUID  `json:"tenantId"`
	ActorID            *uuid.UUID `json:"actorId,omitempty"`
	LossReasonCategory string     `json:"lossReasonCategory"`
	LossReasonNotes    *string    `json:"lossReasonNotes,omitempty"`
}

func (e LeadMarkedLost) EventName() string { return "leads.marked.lost" }

// LeadResponsibleAssigned is published when a lead gains a responsible owner.
type LeadResponsibleAssigned struct {
	BaseEvent
	LeadID                  uuid.UUID  `json:"leadId"`
	TenantID                uuid.UUID  `json:"tenantId"`
	ActorID                 *uuid.UUID `json:"actorId,omitempty"`
	PreviousResponsibleUUID *uuid.UUID `json:"previousResponsibleUuid,omitempty"`
	NewResponsibleUUID      uuid.UUID  `json:"newResponsibleUuid"`
}

func (e LeadResponsibleAssigned) EventName() string { return "leads.responsible.assigned" }
