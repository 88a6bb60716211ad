// Package repository provides data access for lead records. Mutations run
// inside a caller-owned transaction so the automation outbox row commits
// atomically with the lead change.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrLeadNotFound = errors.New("lead not found")

// Status is the lead lifecycle state.
type Status string

const (
	StatusOpen Status = "open"
	StatusSold Status = "sold"
	StatusLost Status = "lost"
)

// Lead is the full persisted record.
type Lead struct {
	ID                 uuid.UUID
	OrganizationID     uuid.UUID
	PipelineID         uuid.UUID
	StageID            uuid.UUID
	ResponsibleUUID    *uuid.UUID
	Name               string
	Email              *string
	Phone              *string
	Value              int64
	Status             Status
	SoldValue          *int64
	SaleNotes          *string
	LossReasonCategory *string
	LossReasonNotes    *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

const leadColumns = `id, organization_id, pipeline_id, stage_id, responsible_uuid, name, email, phone, value,
	status, sold_value, sale_notes, loss_reason_category, loss_reason_notes, created_at, updated_at`

// Repository provides data access for leads.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new lead repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Pool exposes the underlying pool so the service can open transactions.
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// GetByID retrieves a lead scoped to its tenant.
func (r *Repository) GetByID(ctx context.Context, leadID, orgID uuid.UUID) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE id = $1 AND organization_id = $2
	`, leadID, orgID)
	return scanLead(row)
}

// GetForUpdate locks a lead row inside the transaction.
func (r *Repository) GetForUpdate(ctx context.Context, tx pgx.Tx, leadID, orgID uuid.UUID) (Lead, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE id = $1 AND organization_id = $2
		FOR UPDATE
	`, leadID, orgID)
	return scanLead(row)
}

// TenantOf resolves the owning organization of a lead.
func (r *Repository) TenantOf(ctx context.Context, leadID uuid.UUID) (uuid.UUID, error) {
	var orgID uuid.UUID
	err := r.pool.QueryRow(ctx,
		`SELECT organization_id FROM leads WHERE id = $1`, leadID,
	).Scan(&orgID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrLeadNotFound
	}
	return orgID, err
}

// UpdateStage moves the lead to another pipeline stage.
func (r *Repository) UpdateStage(ctx context.Context, tx pgx.Tx, leadID, orgID, pipelineID, stageID uuid.UUID) error {
	tag, err := tx.Exec(ctx, `
		UPDATE leads
		SET pipeline_id = $3, stage_id = $4, updated_at = now()
		WHERE id = $1 AND organization_id = $2
	`, leadID, orgID, pipelineID, stageID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLeadNotFound
	}
	return nil
}

// UpdateResponsible changes the lead's responsible owner.
func (r *Repository) UpdateResponsible(ctx context.Context, tx pgx.Tx, leadID, orgID, responsibleUUID uuid.UUID) error {
	tag, err := tx.Exec(ctx, `
		UPDATE leads
		SET responsible_uuid = $3, updated_at = now()
		WHERE id = $1 AND organization_id = $2
	`, leadID, orgID, responsibleUUID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLeadNotFound
	}
	return nil
}

// UpdateSold closes the lead as sold.
func (r *Repository) UpdateSold(ctx context.Context, tx pgx.Tx, leadID, orgID uuid.UUID, soldValue int64, saleNotes *string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE leads
		SET status = 'sold', sold_value = $3, sale_notes = $4, updated_at = now()
		WHERE id = $1 AND organization_id = $2
	`, leadID, orgID, soldValue, saleNotes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLeadNotFound
	}
	return nil
}

// UpdateLost closes the lead as lost.
func (r *Repository) UpdateLost(ctx context.Context, tx pgx.Tx, leadID, orgID uuid.UUID, category string, notes *string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE leads
		SET status = 'lost', loss_reason_category = $3, loss_reason_notes = $4, updated_at = now()
		WHERE id = $1 AND organization_id = $2
	`, leadID, orgID, category, notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLeadNotFound
	}
	return nil
}

func scanLead(row pgx.Row) (Lead, error) {
	var (
		lead   Lead
		status string
	)
	err := row.Scan(
		&lead.ID, &lead.OrganizationID, &lead.PipelineID, &lead.StageID, &lead.ResponsibleUUID,
		&lead.Name, &lead.Email, &lead.Phone, &lead.Value,
		&status, &lead.SoldValue, &lead.SaleNotes, &lead.LossReasonCategory, &lead.LossReasonNotes,
		&lead.CreatedAt, &lead.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrLeadNotFound
	}
	if err != nil {
		return Lead{}, err
	}
	lead.Status = Status(status)
	return lead, nil
}
