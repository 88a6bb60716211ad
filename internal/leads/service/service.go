// Package service contains the lead lifecycle operations. Every mutating
// operation writes the matching automation event into the outbox inside the
// same transaction, which is what guarantees rules eventually see the change.
package service

import (
	"context"
	"errors"
	"fmt"

	"pipeline_crm_backend/internal/automation/outbox"
	"pipeline_crm_backend/internal/automation/ports"
	"pipeline_crm_backend/internal/events"
	"pipeline_crm_backend/internal/leads/repository"
	"pipeline_crm_backend/platform/apperr"
	"pipeline_crm_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Service implements the lead store and tenant resolver the automation
// engine depends on, plus the API-facing operations.
type Service struct {
	repo   *repository.Repository
	outbox *outbox.Repository
	log    *logger.Logger
}

// New creates a new lead service.
func New(repo *repository.Repository, box *outbox.Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, outbox: box, log: log}
}

// GetByID returns the engine's read view of a lead.
func (s *Service) GetByID(ctx context.Context, leadID, tenantID uuid.UUID) (ports.Lead, error) {
	lead, err := s.repo.GetByID(ctx, leadID, tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrLeadNotFound) {
			return ports.Lead{}, apperr.NotFound("lead not found")
		}
		return ports.Lead{}, err
	}
	return toPortsLead(lead), nil
}

// TenantOf resolves the organization owning a lead.
func (s *Service) TenantOf(ctx context.Context, leadID uuid.UUID) (uuid.UUID, error) {
	tenantID, err := s.repo.TenantOf(ctx, leadID)
	if errors.Is(err, repository.ErrLeadNotFound) {
		return uuid.Nil, apperr.NotFound("lead not found")
	}
	return tenantID, err
}

// Move transfers the lead to another pipeline stage and records the stage
// change event. Moving to the current stage is a no-op.
func (s *Service) Move(ctx context.Context, leadID, tenantID, pipelineID, stageID uuid.UUID, actorID *uuid.UUID) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		lead, err := s.repo.GetForUpdate(ctx, tx, leadID, tenantID)
		if err != nil {
			return err
		}
		if lead.PipelineID == pipelineID && lead.StageID == stageID {
			return nil
		}
		if err := s.repo.UpdateStage(ctx, tx, leadID, tenantID, pipelineID, stageID); err != nil {
			return err
		}

		event := events.LeadStageChanged{
			BaseEvent:       events.NewBaseEvent(),
			LeadID:          leadID,
			TenantID:        tenantID,
			ActorID:         actorID,
			PreviousStageID: lead.StageID,
			NewStageID:      stageID,
		}
		_, err = s.outbox.Insert(ctx, tx, tenantID, event.EventName(), event)
		return err
	})
}

// AssignResponsible changes the lead's owner and records the assignment
// event. Re-assigning the current owner is a no-op.
func (s *Service) AssignResponsible(ctx context.Context, leadID, tenantID, responsibleUUID uuid.UUID, actorID *uuid.UUID) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		lead, err := s.repo.GetForUpdate(ctx, tx, leadID, tenantID)
		if err != nil {
			return err
		}
		if lead.ResponsibleUUID != nil && *lead.ResponsibleUUID == responsibleUUID {
			return nil
		}
		if err := s.repo.UpdateResponsible(ctx, tx, leadID, tenantID, responsibleUUID); err != nil {
			return err
		}

		event := events.LeadResponsibleAssigned{
			BaseEvent:               events.NewBaseEvent(),
			LeadID:                  leadID,
			TenantID:                tenantID,
			ActorID:                 actorID,
			PreviousResponsibleUUID: lead.ResponsibleUUID,
			NewResponsibleUUID:      responsibleUUID,
		}
		_, err = s.outbox.Insert(ctx, tx, tenantID, event.EventName(), event)
		return err
	})
}

// MarkSold closes the lead as sold. When SkipAutomations is set the event is
// not recorded, which is how automation-triggered sales avoid re-entering the
// engine.
func (s *Service) MarkSold(ctx context.Context, params ports.MarkSoldParams) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		lead, err := s.repo.GetForUpdate(ctx, tx, params.LeadID, params.TenantID)
		if err != nil {
			return err
		}
		if lead.Status == repository.StatusSold {
			return nil
		}
		if err := s.repo.UpdateSold(ctx, tx, params.LeadID, params.TenantID, params.SoldValue, params.SaleNotes); err != nil {
			return err
		}
		if params.SkipAutomations {
			return nil
		}

		event := events.LeadMarkedSold{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    params.LeadID,
			TenantID:  params.TenantID,
			ActorID:   params.ActorID,
			SoldValue: params.SoldValue,
			SaleNotes: params.SaleNotes,
		}
		_, err = s.outbox.Insert(ctx, tx, params.TenantID, event.EventName(), event)
		return err
	})
}

// MarkLost closes the lead as lost, honoring SkipAutomations the same way
// MarkSold does.
func (s *Service) MarkLost(ctx context.Context, params ports.MarkLostParams) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		lead, err := s.repo.GetForUpdate(ctx, tx, params.LeadID, params.TenantID)
		if err != nil {
			return err
		}
		if lead.Status == repository.StatusLost {
			return nil
		}
		if err := s.repo.UpdateLost(ctx, tx, params.LeadID, params.TenantID, params.LossReasonCategory, params.LossReasonNotes); err != nil {
			return err
		}
		if params.SkipAutomations {
			return nil
		}

		event := events.LeadMarkedLost{
			BaseEvent:          events.NewBaseEvent(),
			LeadID:             params.LeadID,
			TenantID:           params.TenantID,
			ActorID:            params.ActorID,
			LossReasonCategory: params.LossReasonCategory,
			LossReasonNotes:    params.LossReasonNotes,
		}
		_, err = s.outbox.Insert(ctx, tx, params.TenantID, event.EventName(), event)
		return err
	})
}

func (s *Service) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.repo.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		if errors.Is(err, repository.ErrLeadNotFound) {
			return apperr.NotFound("lead not found")
		}
		return err
	}
	return tx.Commit(ctx)
}

func toPortsLead(lead repository.Lead) ports.Lead {
	return ports.Lead{
		ID:              lead.ID,
		TenantID:        lead.OrganizationID,
		PipelineID:      lead.PipelineID,
		StageID:         lead.StageID,
		ResponsibleUUID: lead.ResponsibleUUID,
		Name:            lead.Name,
		Email:           lead.Email,
		Phone:           lead.Phone,
		Value:           lead.Value,
		CreatedAt:       lead.CreatedAt,
	}
}

// Compile-time checks that the service satisfies the engine's ports.
var (
	_ ports.LeadStore      = (*Service)(nil)
	_ ports.TenantResolver = (*Service)(nil)
)
