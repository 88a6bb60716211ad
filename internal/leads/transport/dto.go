// Package transport defines the request shapes of the lead lifecycle API.
package transport

import "github.com/google/uuid"

// MoveLeadRequest moves a lead to another pipeline stage.
type MoveLeadRequest struct {
	PipelineID uuid.UUID `json:"pipelineId" validate:"required"`
	StageID    uuid.UUID `json:"stageId" validate:"required"`
}

// AssignResponsibleRequest changes the lead's responsible owner.
type AssignResponsibleRequest struct {
	ResponsibleUUID uuid.UUID `json:"responsibleUuid" validate:"required"`
}

// MarkSoldRequest closes a lead as sold.
type MarkSoldRequest struct {
	SoldValue int64   `json:"soldValue" validate:"min=0"`
	SaleNotes *string `json:"saleNotes,omitempty" validate:"omitempty,max=2000"`
}

// MarkLostRequest closes a lead as lost.
type MarkLostRequest struct {
	LossReasonCategory string  `json:"lossReasonCategory" validate:"required,max=100"`
	LossReasonNotes    *string `json:"lossReasonNotes,omitempty" validate:"omitempty,max=2000"`
}
